package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every ric environment variable.
	EnvPrefix = "RIC_"

	// EnvConfigPath names the config file when --config is not given.
	EnvConfigPath = "RIC_CONFIG"

	// envNestingDelim separates nested keys in variable names,
	// e.g. RIC_RECOMMENDER__ALPHA -> recommender.alpha.
	envNestingDelim = "__"
)

// neo4jEnv maps the conventional Neo4j variables onto config keys.
var neo4jEnv = map[string]string{
	"NEO4J_URI":      "store.neo4j.uri",
	"NEO4J_USER":     "store.neo4j.user",
	"NEO4J_PASSWORD": "store.neo4j.password",
	"NEO4J_DATABASE": "store.neo4j.database",
}

// Load builds a Config by layering defaults, the YAML file at path (or
// $RIC_CONFIG, or ~/.ric/config.yaml when it exists), NEO4J_* and RIC_*
// variables. A .env file
// in the working directory is loaded into the environment first; variables
// already set take precedence over it. The result is not validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: .env: %v", ErrLoadConfig, err)
	}

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := loadFile(k, path); err != nil {
			return nil, err
		}
	} else if def, err := DefaultPath(); err == nil {
		// The default file is optional.
		if _, err := os.Stat(def); err == nil {
			if err := loadFile(k, def); err != nil {
				return nil, err
			}
		}
	}

	neo4jProvider := env.Provider("NEO4J_", ".", func(s string) string {
		return neo4jEnv[s]
	})
	if err := k.Load(neo4jProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: neo4j env: %v", ErrLoadConfig, err)
	}

	ricProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(ricProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, &InvalidConfigError{
			Path:    "environment",
			Message: err.Error(),
			Hint:    "Check value types, e.g. RIC_RECOMMENDER__ALPHA=0.3 or RIC_STORE__QUERY_TIMEOUT=10s",
		}
	}

	return cfg, nil
}

// envKey maps RIC_STORE__QUERY_TIMEOUT to store.query_timeout. RIC_CONFIG
// itself is not a config key.
func envKey(s string) string {
	if s == EnvConfigPath {
		return ""
	}
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, envNestingDelim, ".")
}

// loadFile reads a YAML file with the same error reporting as the rest of
// the package.
func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &ConfigNotFoundError{
				Path: path,
				Hint: "Run 'ric config init' to create configuration",
			}
		}
		return fmt.Errorf("failed to access config: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsPermission(err) {
			return &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
			}
		}
		return &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("YAML parse error: %v", err),
			Hint:    "Restore from .bak file if available",
		}
	}
	return nil
}

// getReadPermissionFix suggests owner-only read access, since the file may
// hold the Neo4j password.
func getReadPermissionFix(path string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("Grant your user 'Read' permission on %s", path)
	}
	return fmt.Sprintf("Run: chmod 600 %s", path)
}

// getPermissionDetails reports the current mode on unix-like systems.
func getPermissionDetails(path string) string {
	info, err := os.Stat(path)
	if err != nil || runtime.GOOS == "windows" {
		return ""
	}
	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}
