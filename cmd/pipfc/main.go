// Package main implements the pipfc command-line tool, which finds the
// fastest Python package index mirror and configures pip to use it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mirrorctl/pipfc/internal/mirror"
)

var (
	// Build information - can be set via build flags
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	// Command-line flags
	configPath    string
	logLevel      string
	quiet         bool
	verboseErrors bool
	pipConfigPath string
	viaPip        bool
	pythonPath    string
)

var rootCmd = &cobra.Command{
	Use:   "pipfc [mirror-urls...]",
	Short: "Find the fastest PyPI mirror",
	Long: `pipfc measures the connection latency of Python package index mirrors,
reports the fastest one and optionally makes it pip's default index.

Usage:
  # Probe the built-in mirror list
  pipfc

  # Probe your own mirrors
  pipfc https://mirrors.aliyun.com/pypi/simple/ https://pypi.org/simple/

  # Write the result without asking
  pipfc --yes

  # Machine-readable output, never touch pip's configuration
  pipfc --format json --no-write

  # Measure plain TCP connects with a 2 second timeout
  pipfc --method tcp --timeout 2s

Exit status is 0 when at least one mirror answered and 1 otherwise.`,
	Args: cobra.ArbitraryArgs,
	Run:  runProbe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information including build details",
	Run: func(_ *cobra.Command, _ []string) {
		printVersion()
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Validate the configuration file and report any issues.`,
	Run:   runValidate,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the index settings from pip's configuration",
	Long: `Removes global.index-url and global.extra-index-url from pip's user
configuration so that pip falls back to https://pypi.org/simple.`,
	Args: cobra.NoArgs,
	Run:  runReset,
}

var mirrorsCmd = &cobra.Command{
	Use:   "mirrors",
	Short: "List the mirrors that would be probed",
	Args:  cobra.NoArgs,
	Run:   runMirrors,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(mirrorsCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "configuration file path (default "+defaultConfigPath()+")")
	pf.StringVarP(&logLevel, "log-level", "l", "", "override log level (debug, info, warn, error)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress all output except for errors and results")
	pf.BoolVar(&verboseErrors, "verbose-errors", false, "show detailed error information including stack traces")
	pf.StringVar(&pipConfigPath, "pip-config", "", "pip configuration file to edit (default: pip's user file)")
	pf.BoolVar(&viaPip, "via-pip", false, `change settings by running "python -m pip config" instead of editing the file`)
	pf.StringVar(&pythonPath, "python", "", "python interpreter used with --via-pip (default: python3 or python in PATH)")

	f := rootCmd.Flags()
	f.BoolP("version", "v", false, "print version information and exit")
	f.Duration("timeout", 0, "per-mirror probe timeout (e.g. 5s)")
	f.Duration("global-timeout", 0, "deadline for the whole run (default: timeout + 2s)")
	f.Int("max-conns", 0, "maximum number of probes in flight")
	f.String("mode", "", "concurrency mode: auto, pool or dispatch")
	f.String("method", "", "probe method: head, get or tcp")
	f.Float64("probe-rate", 0, "maximum probe launches per second (0: unlimited)")
	f.StringP("format", "f", mirror.FormatText, "report format: text, json or yaml")
	f.BoolP("yes", "y", false, "write pip configuration without asking")
	f.Bool("no-write", false, "never write pip configuration")
	f.Bool("with-runner-up", false, "add the second fastest mirror to the extra index URLs")
	f.Bool("add-nvidia", false, "add the NVIDIA index ("+mirror.NvidiaIndexURL+") as extra index URL")
	f.Bool("add-baidu", false, "add the PaddlePaddle index ("+mirror.BaiduIndexURL+") as extra index URL")
}

func printVersion() {
	fmt.Printf("pipfc %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built: %s\n", buildDate)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
