package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/ManuelReschke/ClipPass/internal/pkg/config"
	"github.com/ManuelReschke/ClipPass/internal/pkg/env"
	"github.com/ManuelReschke/ClipPass/internal/pkg/logging"
)

// migrator is the part of *migrate.Migrate the commands use.
type migrator interface {
	Up() error
	Steps(n int) error
	Migrate(version uint) error
	Force(version int) error
	Version() (version uint, dirty bool, err error)
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, out io.Writer) error {
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	path := flags.StringP("path", "p", "migrations", "directory containing the migration files")
	steps := flags.IntP("steps", "n", 1, "number of migrations to roll back with down")
	flags.BoolP("help", "h", false, "show help")
	if err := flags.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(out, flags)
			return nil
		}
		return err
	}
	if help, _ := flags.GetBool("help"); help || flags.NArg() == 0 {
		printUsage(out, flags)
		return nil
	}

	if _, err := env.SetupEnvFile(); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log)
	log.Info().Str("user", cfg.DB.User).Str("host", cfg.DB.Host).Int("port", cfg.DB.Port).Str("database", cfg.DB.Name).Msg("connecting for migrations")

	m, err := migrate.New("file://"+*path, cfg.DB.MigrateURL())
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warn().AnErr("source", sourceErr).AnErr("database", dbErr).Msg("closing migration resources")
		}
	}()

	return runCommand(m, flags.Args(), *steps, log)
}

func runCommand(m migrator, args []string, steps int, log zerolog.Logger) error {
	switch args[0] {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no change: database is up to date")
			return nil
		}
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		log.Info().Msg("migrations applied")

	case "down":
		if steps <= 0 {
			return fmt.Errorf("--steps must be positive")
		}
		if err := m.Steps(-steps); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		log.Info().Int("steps", steps).Msg("migrations rolled back")

	case "goto":
		version, err := versionArg(args)
		if err != nil {
			return err
		}
		err = m.Migrate(uint(version))
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Uint64("version", version).Msg("no change: database already at version")
			return nil
		}
		if err != nil {
			return fmt.Errorf("migrate to %d: %w", version, err)
		}
		log.Info().Uint64("version", version).Msg("migrated to version")

	case "force":
		version, err := versionArg(args)
		if err != nil {
			return err
		}
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
		log.Info().Uint64("version", version).Msg("version forced")

	case "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info().Msg("no migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("current migration version")

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func versionArg(args []string) (uint64, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s needs a version number", args[0])
	}
	version, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", args[1], err)
	}
	return version, nil
}

func printUsage(out io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(out, "Usage: migrate [flags] <command>")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  up        apply all pending migrations")
	fmt.Fprintln(out, "  down      roll back --steps migrations (default 1)")
	fmt.Fprintln(out, "  goto N    migrate to version N")
	fmt.Fprintln(out, "  force N   set version N without running migrations")
	fmt.Fprintln(out, "  status    print the current version")
	fmt.Fprintln(out, "Flags:")
	fmt.Fprint(out, flags.FlagUsages())
}
