package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mirrorctl/pipfc/internal/mirror"
	"github.com/mirrorctl/pipfc/internal/pipconf"
)

const confirmQuestion = "Do you want to set the fastest mirror as the global pip mirror? (y/n): "

// applyFlags copies explicitly set command-line flags over the configuration.
func applyFlags(cmd *cobra.Command, config *mirror.Config) {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		config.Timeout.Duration, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("global-timeout") {
		config.GlobalTimeout.Duration, _ = flags.GetDuration("global-timeout")
	}
	if flags.Changed("max-conns") {
		config.MaxConns, _ = flags.GetInt("max-conns")
	}
	if flags.Changed("mode") {
		config.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("method") {
		config.Method, _ = flags.GetString("method")
	}
	if flags.Changed("probe-rate") {
		config.ProbeRate, _ = flags.GetFloat64("probe-rate")
	}
	if pipConfigPath != "" {
		config.PipConfig = pipConfigPath
	}
}

// confirm asks question on w and reads the answer from r. Anything but "y"
// or "yes" declines, including end of input.
func confirm(r io.Reader, w io.Writer, question string) (bool, error) {
	if _, err := io.WriteString(w, question); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, errors.Wrap(err, "read answer")
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// fallbackIndexes builds the extra index URLs written next to the selected
// index: optionally the runner-up, the configured fallbacks, then the
// optional vendor indexes. The selected index and duplicates are dropped.
func fallbackIndexes(selected string, runnerUp string, configured []string, nvidia, baidu bool) []string {
	candidates := []string{runnerUp}
	candidates = append(candidates, configured...)
	if nvidia {
		candidates = append(candidates, mirror.NvidiaIndexURL)
	}
	if baidu {
		candidates = append(candidates, mirror.BaiduIndexURL)
	}

	seen := map[string]bool{selected: true}
	var extra []string
	for _, u := range candidates {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		extra = append(extra, u)
	}
	return extra
}

// newConfigurator returns the pip configurator selected by the flags.
func newConfigurator(config *mirror.Config) (pipconf.Configurator, string, error) {
	if viaPip {
		python := pythonPath
		if python == "" {
			var err error
			python, err = pipconf.FindPython()
			if err != nil {
				return nil, "", err
			}
		}
		return &pipconf.PipCommand{Python: python}, python + " -m pip config", nil
	}

	path := config.PipConfig
	if path == "" {
		var err error
		path, err = pipconf.DefaultPath()
		if err != nil {
			return nil, "", err
		}
	}
	return pipconf.NewFile(path, true), path, nil
}

// progressWriter returns stderr when a progress bar can be drawn there.
func progressWriter(format string) io.Writer {
	if quiet || format != mirror.FormatText {
		return nil
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return os.Stderr
}

// resultAction is what happens after the probes ran: prompt, then write the
// selected index through a Configurator.
type resultAction struct {
	noWrite      bool
	yes          bool
	withRunnerUp bool
	nvidia       bool
	baidu        bool
	extra        []string

	in        io.Reader
	out       io.Writer
	promptOut io.Writer

	// configurator is only called when the configuration is written.
	configurator func() (pipconf.Configurator, string, error)
}

// apply acts on the outcome of a run and returns the exit status. A run
// without a reachable mirror exits with 1 and never touches pip's
// configuration. A failed write is only a warning.
func (a *resultAction) apply(ctx context.Context, summary *mirror.Summary, runErr error) int {
	if runErr != nil || summary == nil || summary.Fastest == nil {
		if runErr == nil {
			runErr = mirror.ErrNoReachableMirror
		}
		logError("mirror probe failed", runErr)
		return 1
	}
	if a.noWrite {
		return 0
	}

	if !a.yes {
		fmt.Fprintf(a.promptOut, "\n%s\n\n", strings.Repeat("= ", 20))
		ok, err := confirm(a.in, a.promptOut, confirmQuestion)
		if err != nil {
			slog.Warn("could not read confirmation", "error", err)
			return 0
		}
		if !ok {
			return 0
		}
	}

	var runnerUp string
	if a.withRunnerUp {
		if r, ok := summary.RunnerUp(); ok {
			runnerUp = r.URL
		}
	}
	extra := fallbackIndexes(summary.Fastest.URL, runnerUp, a.extra, a.nvidia, a.baidu)

	configurator, target, err := a.configurator()
	if err != nil {
		slog.Warn("cannot locate pip configuration", "error", formatError(err, verboseErrors))
		return 0
	}
	if err := configurator.SetIndex(ctx, summary.Fastest.URL, extra); err != nil {
		slog.Warn("failed to update pip configuration", "target", target, "error", formatError(err, verboseErrors))
		return 0
	}
	fmt.Fprintf(a.out, "Global pip mirror has been successfully set to: %s\n", summary.Fastest.URL)
	if len(extra) > 0 {
		fmt.Fprintf(a.out, "Backup mirror has been successfully set to: %s\n", strings.Join(extra, " "))
	}
	return 0
}

func runProbe(cmd *cobra.Command, args []string) {
	if versionFlag, _ := cmd.Flags().GetBool("version"); versionFlag {
		printVersion()
		return
	}

	config, err := loadConfig()
	exitOnError("failed to load configuration", err)
	applyFlags(cmd, config)
	exitOnError("invalid configuration", config.Check())

	for _, u := range args {
		exitOnError("invalid mirror argument", mirror.ValidateURL(u))
	}
	mirrors := config.MirrorList(args)

	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)
	switch format {
	case mirror.FormatText, mirror.FormatJSON, mirror.FormatYAML:
	default:
		exitOnError("invalid flag", errors.New("invalid report format: "+format))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	progress := mirror.NewProgress(progressWriter(format), len(mirrors))
	runner, err := mirror.NewRunner(config, progress.Observe)
	exitOnError("failed to prepare probes", err)

	summary, runErr := runner.Run(ctx, mirrors)
	progress.Finish()

	out := cmd.OutOrStdout()
	if summary != nil {
		if err := mirror.WriteReport(out, format, summary); err != nil {
			slog.Error("failed to write report", "error", err)
		}
	}

	flags := cmd.Flags()
	action := &resultAction{
		extra:     config.ExtraIndexURLs,
		in:        cmd.InOrStdin(),
		out:       out,
		promptOut: out,
		configurator: func() (pipconf.Configurator, string, error) {
			return newConfigurator(config)
		},
	}
	action.noWrite, _ = flags.GetBool("no-write")
	action.yes, _ = flags.GetBool("yes")
	action.withRunnerUp, _ = flags.GetBool("with-runner-up")
	action.nvidia, _ = flags.GetBool("add-nvidia")
	action.baidu, _ = flags.GetBool("add-baidu")
	if format != mirror.FormatText {
		action.promptOut = cmd.ErrOrStderr()
	}

	if code := action.apply(ctx, summary, runErr); code != 0 {
		stop()
		os.Exit(code)
	}
}

func runValidate(_ *cobra.Command, _ []string) {
	path := configPath
	if path == "" {
		path = defaultConfigPath()
	}

	config, err := decodeConfig(path, true)
	exitOnError("failed to load configuration", err)

	var validationErrors []error
	if err := config.ApplyEnvironmentVariables(); err != nil {
		validationErrors = append(validationErrors, errors.Wrap(err, "environment"))
	}
	if err := config.Log.Apply(); err != nil {
		validationErrors = append(validationErrors, errors.Wrap(err, "log config"))
	}
	if err := config.Check(); err != nil {
		validationErrors = append(validationErrors, errors.Wrap(err, "global config"))
	}
	if config.PipConfig != "" {
		if _, err := os.Stat(config.PipConfig); err != nil && !os.IsNotExist(err) {
			validationErrors = append(validationErrors, errors.Wrap(err, "pip_config"))
		}
	}

	if len(validationErrors) > 0 {
		slog.Error("the toml configuration file is not valid", "path", path)
		for _, err := range validationErrors {
			slog.Error(err.Error())
		}
		os.Exit(1)
	}

	slog.Info("the toml configuration file passes validation checks", "path", path)
}

func runReset(cmd *cobra.Command, _ []string) {
	config, err := loadConfig()
	exitOnError("failed to load configuration", err)
	if pipConfigPath != "" {
		config.PipConfig = pipConfigPath
	}

	configurator, target, err := newConfigurator(config)
	exitOnError("cannot locate pip configuration", err)

	exitOnError("failed to reset pip configuration", configurator.Reset(cmd.Context()))
	fmt.Fprintf(cmd.OutOrStdout(), "pip configuration has been reset to the default settings (%s).\n", target)
}

func runMirrors(cmd *cobra.Command, _ []string) {
	config, err := loadConfig()
	exitOnError("failed to load configuration", err)

	for _, m := range config.MirrorList(nil) {
		fmt.Fprintln(cmd.OutOrStdout(), m.URL)
	}
}
