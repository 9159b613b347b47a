package env

import (
	"os"

	"github.com/joho/godotenv"
)

// candidate .env locations, relative to the working directory of the binary
var envFiles = []string{
	".env",          // Current directory
	"../../.env",    // From cmd/clippass to project root
	"../../../.env", // Fallback for deeper nesting
}

// SetupEnvFile loads the first .env file found into the process environment.
// Variables that are already set win over the file. A missing file is not an
// error because containers usually inject the environment directly.
func SetupEnvFile() (string, error) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			return envFile, err
		}
		return envFile, nil
	}
	return "", nil
}

// GetEnv returns the environment value for key or def when unset.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
