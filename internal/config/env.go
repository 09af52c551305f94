package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvPaths lists the .env files consulted at startup, in priority order.
func EnvPaths() []string {
	envPaths := []string{
		"./.env",
	}

	if home, err := os.UserHomeDir(); err == nil {
		envPaths = append(envPaths,
			filepath.Join(home, ".medtrack", ".env"),
			filepath.Join(home, ".config", "medtrack", ".env"),
		)
	}
	return envPaths
}

// LoadEnvFiles loads every existing .env file. Variables already set in the
// environment are never overridden.
func LoadEnvFiles() error {
	for _, path := range EnvPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return err
			}
		}
	}
	return nil
}

// envAliases maps MEDTRACK_ variables to the conventional names hosting
// platforms set, first match wins.
var envAliases = map[string][]string{
	"MEDTRACK_SECURITY_JWT_SECRET": {"MEDTRACK_JWT_SECRET", "JWT_SECRET"},
	"MEDTRACK_TRACKER_TIMEZONE":    {"TZ"},
	"MEDTRACK_SERVER_PORT":         {"PORT"},
}

func resolveAlias(canonical string) string {
	for _, alias := range envAliases[canonical] {
		if val := os.Getenv(alias); val != "" {
			return val
		}
	}
	return ""
}

// ApplyAliases copies aliased variables onto their canonical names so viper
// sees them. A canonical variable that is already set wins.
func ApplyAliases() {
	for canonical := range envAliases {
		if os.Getenv(canonical) != "" {
			continue
		}
		if val := resolveAlias(canonical); val != "" {
			os.Setenv(canonical, val)
		}
	}
}
