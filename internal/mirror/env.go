package mirror

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const envPrefix = "PIPFC_"

func lookupEnv(name string) (string, bool) {
	return os.LookupEnv(envPrefix + name)
}

// splitList splits a comma separated list and trims its elements.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ApplyEnvironmentVariables overrides configuration values with PIPFC_*
// environment variables. Unset variables leave the configuration untouched.
func (c *Config) ApplyEnvironmentVariables() error {
	for _, d := range []struct {
		name   string
		target *tomlDuration
	}{
		{"TIMEOUT", &c.Timeout},
		{"GLOBAL_TIMEOUT", &c.GlobalTimeout},
	} {
		if v, ok := lookupEnv(d.name); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return errors.Wrapf(err, "%s%s", envPrefix, d.name)
			}
			d.target.Duration = parsed
		}
	}

	if v, ok := lookupEnv("MAX_CONNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, envPrefix+"MAX_CONNS")
		}
		c.MaxConns = n
	}
	if v, ok := lookupEnv("PROBE_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, envPrefix+"PROBE_RATE")
		}
		c.ProbeRate = f
	}

	for _, s := range []struct {
		name   string
		target *string
	}{
		{"MODE", &c.Mode},
		{"METHOD", &c.Method},
		{"USER_AGENT", &c.UserAgent},
		{"PIP_CONFIG", &c.PipConfig},
		{"LOG_LEVEL", &c.Log.Level},
		{"LOG_FORMAT", &c.Log.Format},
	} {
		if v, ok := lookupEnv(s.name); ok {
			*s.target = v
		}
	}

	if v, ok := lookupEnv("MIRRORS"); ok {
		c.Mirrors = splitList(v)
	}
	if v, ok := lookupEnv("EXTRA_INDEX_URLS"); ok {
		c.ExtraIndexURLs = splitList(v)
	}
	return nil
}
