package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	"github.com/mirrorctl/pipfc/internal/mirror"
)

// keyTypos maps frequently mistyped top-level keys to the expected ones.
var keyTypos = map[string]string{
	"mirror":          "mirrors",
	"extra_index_url": "extra_index_urls",
	"logging":         "log",
	"maxconns":        "max_conns",
	"concurrency":     "max_conns",
}

// defaultConfigPath returns <user config dir>/pipfc/pipfc.toml.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pipfc", "pipfc.toml")
}

// formatError returns a human-friendly error message, optionally with stack trace
func formatError(err error, verbose bool) string {
	if verbose {
		return fmt.Sprintf("%+v", err) // Full details with stack trace
	}

	// For human-friendly output, try to extract the root message
	flattened := errors.FlattenDetails(err)
	if flattened != "" {
		return flattened
	}

	return err.Error()
}

// analyzeUndecoded examines undecoded TOML keys and provides helpful suggestions
func analyzeUndecoded(undecoded []toml.Key) (suggestions []string, unknown []string) {
	seen := make(map[string]bool)
	for _, key := range undecoded {
		if len(key) == 0 {
			continue
		}
		root := key[0]
		if correct, ok := keyTypos[root]; ok {
			if !seen[root] {
				seen[root] = true
				suggestions = append(suggestions, fmt.Sprintf("Key '%s' should be '%s'", root, correct))
			}
			continue
		}
		unknown = append(unknown, key.String())
	}
	return suggestions, unknown
}

// formatUndecodedError builds a user-friendly error message for undecoded TOML keys
func formatUndecodedError(undecoded []toml.Key) string {
	suggestions, unknown := analyzeUndecoded(undecoded)

	var errorMsg strings.Builder
	if len(suggestions) > 0 {
		errorMsg.WriteString("configuration contains keys that don't match expected structure:\n")
		for _, suggestion := range suggestions {
			errorMsg.WriteString("  • " + suggestion + "\n")
		}
		errorMsg.WriteString("\nNote: Configuration key names are case-sensitive and must match exactly.")
	}

	if len(unknown) > 0 {
		if errorMsg.Len() > 0 {
			errorMsg.WriteString("\n\nAdditionally, found unknown keys: ")
		} else {
			errorMsg.WriteString("configuration contains unknown keys: ")
		}
		errorMsg.WriteString(fmt.Sprintf("%v", unknown))
		errorMsg.WriteString("\nThese keys don't match any expected configuration structure.")
	}

	return errorMsg.String()
}

// decodeConfig reads path into a new Config. A missing file is only an error
// when required is set.
func decodeConfig(path string, required bool) (*mirror.Config, error) {
	config := mirror.NewConfig()
	if path == "" {
		return config, nil
	}

	meta, err := toml.DecodeFile(path, config)
	if err != nil {
		if os.IsNotExist(err) && !required {
			slog.Debug("no configuration file, using defaults", "path", path)
			return mirror.NewConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to decode config file %s", path)
	}

	// Check for undecoded keys which might indicate a typo
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Newf("configuration validation failed: %s", formatUndecodedError(undecoded))
	}
	return config, nil
}

// loadConfig decodes the configuration file, applies environment overrides
// and sets up logging.
func loadConfig() (*mirror.Config, error) {
	path := configPath
	required := path != ""
	if path == "" {
		path = defaultConfigPath()
	}

	config, err := decodeConfig(path, required)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnvironmentVariables(); err != nil {
		return nil, errors.Wrap(err, "environment")
	}

	if logLevel != "" {
		config.Log.Level = logLevel
	}
	if quiet {
		config.Log.Level = "error"
	}
	if err := config.Log.Apply(); err != nil {
		return nil, errors.Wrap(err, "log config")
	}
	slog.Debug("configuration loaded", "path", path)
	return config, nil
}

// logError logs err with a hint about --verbose-errors.
func logError(msg string, err error) {
	slog.Error(msg, "error", formatError(err, verboseErrors))
	if !verboseErrors {
		slog.Info("run with --verbose-errors for detailed stack traces")
	}
}

// exitOnError logs err and terminates the process with status 1.
func exitOnError(msg string, err error) {
	if err == nil {
		return
	}
	logError(msg, err)
	os.Exit(1)
}
