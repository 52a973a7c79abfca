package pipconf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/cockroachdb/errors"
)

// EnvConfigFile names the environment variable pip itself honors for an
// explicit configuration file.
const EnvConfigFile = "PIP_CONFIG_FILE"

// DefaultPath returns the per-user pip configuration file.
//
// See https://pip.pypa.io/en/stable/topics/configuration/#location
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigFile); p != "" && p != os.DevNull {
		return p, nil
	}
	return userPath(runtime.GOOS)
}

func userPath(goos string) (string, error) {
	switch goos {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA is not set")
		}
		return filepath.Join(appData, "pip", "pip.ini"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "locate home directory")
	}

	if goos == "darwin" {
		// pip prefers the XDG-style file on macOS when it already exists.
		legacy := filepath.Join(home, ".config", "pip", "pip.conf")
		if _, err := os.Stat(legacy); err == nil {
			return legacy, nil
		}
		return filepath.Join(home, "Library", "Application Support", "pip", "pip.conf"), nil
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pip", "pip.conf"), nil
	}
	return filepath.Join(home, ".config", "pip", "pip.conf"), nil
}
