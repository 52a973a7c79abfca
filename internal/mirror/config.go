package mirror

import (
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultMaxConns  = 32
	defaultUserAgent = "pipfc (+https://github.com/mirrorctl/pipfc)"

	// globalTimeoutSlack is added to the per-probe timeout when no global
	// timeout is configured.
	globalTimeoutSlack = 2 * time.Second
)

// DefaultIndexURL is the upstream index. It is always kept as a fallback.
const DefaultIndexURL = "https://pypi.org/simple"

// Optional extra indexes enabled by command-line switches.
const (
	NvidiaIndexURL = "https://pypi.nvidia.com/"
	BaiduIndexURL  = "https://www.paddlepaddle.org.cn/packages/stable/"
)

var (
	// MainMirrors are probed first.
	MainMirrors = []string{
		"https://pypi.tuna.tsinghua.edu.cn/simple/",
		"https://mirrors.tuna.tsinghua.edu.cn/pypi/web/simple/",
		"https://repo.huaweicloud.com/repository/pypi/simple/",
		"https://mirrors.aliyun.com/pypi/simple/",
		"https://pypi.mirrors.ustc.edu.cn/simple/",
		"https://mirrors.cloud.tencent.com/pypi/simple/",
	}

	// BackupMirrors are probed after MainMirrors.
	BackupMirrors = []string{
		"https://pypi.doubanio.com/simple/",
		"https://mirrors.163.com/pypi/simple/",
		"https://mirror.baidu.com/pypi/simple/",
	}
)

// BuiltinMirrors returns MainMirrors followed by BackupMirrors.
func BuiltinMirrors() []Mirror {
	return MirrorsFromURLs(append(append([]string{}, MainMirrors...), BackupMirrors...))
}

// MirrorsFromURLs converts urls to mirrors, dropping blanks and duplicates.
// The first occurrence of a URL decides its position.
func MirrorsFromURLs(urls []string) []Mirror {
	seen := make(map[string]bool, len(urls))
	mirrors := make([]Mirror, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		mirrors = append(mirrors, Mirror{URL: u})
	}
	return mirrors
}

// ValidateURL checks that rawURL is an absolute http or https URL.
func ValidateURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "invalid url %q", rawURL)
	}
	switch parsedURL.Scheme {
	case "http":
	case "https":
	default:
		return errors.Newf("unsupported scheme %q in %q", parsedURL.Scheme, rawURL)
	}
	if parsedURL.Hostname() == "" {
		return errors.Newf("url has no host: %q", rawURL)
	}
	return nil
}

// tomlDuration accepts Go duration strings such as "5s" or "1500ms".
type tomlDuration struct {
	time.Duration
}

func (d *tomlDuration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d tomlDuration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LogConfig represents slog configuration options
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Apply configures the global slog logger based on the configuration
func (logConfig *LogConfig) Apply() error {
	var level slog.Level
	switch strings.ToLower(logConfig.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return errors.New("invalid log level: " + logConfig.Level)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(logConfig.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "plain", "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return errors.New("invalid log format: " + logConfig.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// Config is a struct to read TOML configurations.
//
// Use https://github.com/BurntSushi/toml as follows:
//
//	config := mirror.NewConfig()
//	md, err := toml.DecodeFile("/path/to/pipfc.toml", config)
//	if err != nil {
//	    ...
//	}
type Config struct {
	Timeout        tomlDuration `toml:"timeout"`
	GlobalTimeout  tomlDuration `toml:"global_timeout"`
	MaxConns       int          `toml:"max_conns"`
	Mode           string       `toml:"mode"`
	Method         string       `toml:"method"`
	ProbeRate      float64      `toml:"probe_rate"`
	UserAgent      string       `toml:"user_agent"`
	Mirrors        []string     `toml:"mirrors"`
	ExtraIndexURLs []string     `toml:"extra_index_urls"`
	PipConfig      string       `toml:"pip_config"`
	Log            LogConfig    `toml:"log"`
}

// NewConfig creates Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:        tomlDuration{defaultTimeout},
		MaxConns:       defaultMaxConns,
		Mode:           ModeAuto,
		Method:         MethodHead,
		UserAgent:      defaultUserAgent,
		ExtraIndexURLs: []string{DefaultIndexURL},
	}
}

// Check validates the configuration.
func (c *Config) Check() error {
	if c.Timeout.Duration <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.GlobalTimeout.Duration < 0 {
		return errors.New("global_timeout must not be negative")
	}
	if c.MaxConns <= 0 {
		return errors.New("max_conns must be positive")
	}
	if c.ProbeRate < 0 {
		return errors.New("probe_rate must not be negative")
	}
	switch c.Mode {
	case ModeAuto, ModePool, ModeDispatch:
	default:
		return errors.New("invalid mode: " + c.Mode)
	}
	switch c.Method {
	case MethodHead, MethodGet, MethodTCP:
	default:
		return errors.New("invalid method: " + c.Method)
	}
	for _, u := range c.Mirrors {
		if err := ValidateURL(u); err != nil {
			return errors.Wrap(err, "mirrors")
		}
	}
	for _, u := range c.ExtraIndexURLs {
		if err := ValidateURL(u); err != nil {
			return errors.Wrap(err, "extra_index_urls")
		}
	}
	return nil
}

// EffectiveGlobalTimeout returns the deadline for a whole run.
func (c *Config) EffectiveGlobalTimeout() time.Duration {
	if c.GlobalTimeout.Duration > 0 {
		return c.GlobalTimeout.Duration
	}
	return c.Timeout.Duration + globalTimeoutSlack
}

// MirrorList returns the mirrors to probe: args when given, then the
// configured list, then the built-in one.
func (c *Config) MirrorList(args []string) []Mirror {
	if len(args) > 0 {
		return MirrorsFromURLs(args)
	}
	if len(c.Mirrors) > 0 {
		return MirrorsFromURLs(c.Mirrors)
	}
	return BuiltinMirrors()
}
