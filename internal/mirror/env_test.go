package mirror

import (
	"reflect"
	"testing"
	"time"
)

func TestApplyEnvironmentVariables(t *testing.T) {
	tests := []struct {
		name      string
		envVars   map[string]string
		config    *Config
		expected  *Config
		expectErr bool
	}{
		{
			name: "durations and integers",
			envVars: map[string]string{
				"PIPFC_TIMEOUT":        "1500ms",
				"PIPFC_GLOBAL_TIMEOUT": "4s",
				"PIPFC_MAX_CONNS":      "8",
				"PIPFC_PROBE_RATE":     "2.5",
			},
			config: &Config{
				Timeout:  tomlDuration{5 * time.Second},
				MaxConns: 32,
			},
			expected: &Config{
				Timeout:       tomlDuration{1500 * time.Millisecond},
				GlobalTimeout: tomlDuration{4 * time.Second},
				MaxConns:      8,
				ProbeRate:     2.5,
			},
		},
		{
			name: "strings and log configuration",
			envVars: map[string]string{
				"PIPFC_MODE":       "pool",
				"PIPFC_METHOD":     "tcp",
				"PIPFC_USER_AGENT": "test-agent",
				"PIPFC_PIP_CONFIG": "/tmp/pip.conf",
				"PIPFC_LOG_LEVEL":  "debug",
				"PIPFC_LOG_FORMAT": "json",
			},
			config: &Config{
				Mode:   ModeAuto,
				Method: MethodHead,
				Log:    LogConfig{Level: "info", Format: "text"},
			},
			expected: &Config{
				Mode:      ModePool,
				Method:    MethodTCP,
				UserAgent: "test-agent",
				PipConfig: "/tmp/pip.conf",
				Log:       LogConfig{Level: "debug", Format: "json"},
			},
		},
		{
			name: "comma separated lists",
			envVars: map[string]string{
				"PIPFC_MIRRORS":          "https://a.example/simple/, https://b.example/simple/,",
				"PIPFC_EXTRA_INDEX_URLS": "https://pypi.org/simple",
			},
			config: &Config{
				Mirrors:        []string{"https://old.example/simple/"},
				ExtraIndexURLs: []string{},
			},
			expected: &Config{
				Mirrors:        []string{"https://a.example/simple/", "https://b.example/simple/"},
				ExtraIndexURLs: []string{"https://pypi.org/simple"},
			},
		},
		{
			name:    "no environment variables set",
			envVars: map[string]string{},
			config: &Config{
				MaxConns: 10,
				Log:      LogConfig{Level: "info", Format: "text"},
			},
			expected: &Config{
				MaxConns: 10,
				Log:      LogConfig{Level: "info", Format: "text"},
			},
		},
		{
			name:      "invalid integer value",
			envVars:   map[string]string{"PIPFC_MAX_CONNS": "not-a-number"},
			config:    &Config{MaxConns: 10},
			expectErr: true,
		},
		{
			name:      "invalid duration value",
			envVars:   map[string]string{"PIPFC_TIMEOUT": "5"},
			config:    &Config{},
			expectErr: true,
		},
		{
			name:      "invalid float value",
			envVars:   map[string]string{"PIPFC_PROBE_RATE": "fast"},
			config:    &Config{},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			err := tt.config.ApplyEnvironmentVariables()

			if tt.expectErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if !reflect.DeepEqual(tt.config, tt.expected) {
				t.Errorf("config = %+v, want %+v", tt.config, tt.expected)
			}
		})
	}
}
