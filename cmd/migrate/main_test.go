package main

import (
	"bytes"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upErr   error
	steps   []int
	target  uint
	forced  int
	version uint
	verErr  error
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Migrate(v uint) error {
	f.target = v
	return nil
}

func (f *fakeMigrator) Force(v int) error {
	f.forced = v
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, false, f.verErr }

func TestRunCommand(t *testing.T) {
	log := zerolog.Nop()

	t.Run("up without change", func(t *testing.T) {
		assert.NoError(t, runCommand(&fakeMigrator{upErr: migrate.ErrNoChange}, []string{"up"}, 1, log))
	})

	t.Run("up error", func(t *testing.T) {
		assert.Error(t, runCommand(&fakeMigrator{upErr: assert.AnError}, []string{"up"}, 1, log))
	})

	t.Run("down steps", func(t *testing.T) {
		m := &fakeMigrator{}
		require.NoError(t, runCommand(m, []string{"down"}, 2, log))
		assert.Equal(t, []int{-2}, m.steps)
		assert.Error(t, runCommand(m, []string{"down"}, 0, log))
	})

	t.Run("goto", func(t *testing.T) {
		m := &fakeMigrator{}
		require.NoError(t, runCommand(m, []string{"goto", "3"}, 1, log))
		assert.Equal(t, uint(3), m.target)
		assert.Error(t, runCommand(m, []string{"goto"}, 1, log))
		assert.Error(t, runCommand(m, []string{"goto", "x"}, 1, log))
	})

	t.Run("force", func(t *testing.T) {
		m := &fakeMigrator{}
		require.NoError(t, runCommand(m, []string{"force", "1"}, 1, log))
		assert.Equal(t, 1, m.forced)
	})

	t.Run("status before first migration", func(t *testing.T) {
		assert.NoError(t, runCommand(&fakeMigrator{verErr: migrate.ErrNilVersion}, []string{"status"}, 1, log))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, runCommand(&fakeMigrator{}, []string{"sideways"}, 1, log))
	})
}

func TestRunPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(nil, &out))
	assert.Contains(t, out.String(), "Usage: migrate")
	assert.Contains(t, out.String(), "--steps")
}
