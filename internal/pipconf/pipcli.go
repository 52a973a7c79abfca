package pipconf

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

// PipCommand changes the settings through "python -m pip config", letting
// pip pick the file it considers the user configuration.
type PipCommand struct {
	Python string
}

// FindPython returns the first Python interpreter found in PATH.
func FindPython() (string, error) {
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", errors.New("no python interpreter found in PATH")
}

func (p *PipCommand) run(ctx context.Context, args ...string) error {
	args = append([]string{"-m", "pip", "config"}, args...)
	cmd := exec.CommandContext(ctx, p.Python, args...) // #nosec G204 - interpreter chosen by the user
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Debug("running pip", "python", p.Python, "args", args)
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return errors.Wrapf(err, "pip config %s: %s", args[3], msg)
		}
		return errors.Wrapf(err, "pip config %s", args[3])
	}
	return nil
}

// SetIndex implements Configurator.
func (p *PipCommand) SetIndex(ctx context.Context, indexURL string, extra []string) error {
	if indexURL == "" {
		return errors.New("empty index url")
	}
	if err := p.run(ctx, "set", "global."+keyIndexURL, indexURL); err != nil {
		return err
	}
	if len(extra) > 0 {
		return p.run(ctx, "set", "global."+keyExtraIndexURL, strings.Join(extra, " "))
	}
	return nil
}

// Reset implements Configurator.
func (p *PipCommand) Reset(ctx context.Context) error {
	if err := p.run(ctx, "unset", "global."+keyIndexURL); err != nil {
		return err
	}
	return p.run(ctx, "unset", "global."+keyExtraIndexURL)
}
