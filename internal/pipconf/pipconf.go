// Package pipconf reads and writes the index settings of pip's configuration.
package pipconf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/ini.v1"
)

const (
	globalSection    = "global"
	keyIndexURL      = "index-url"
	keyExtraIndexURL = "extra-index-url"

	timestampFormat = "20060102_150405"
	maxBackupSuffix = 1000
)

// Configurator persists the default package index.
type Configurator interface {
	// SetIndex makes indexURL the default index and extra the fallback
	// indexes. Calling it twice with the same values changes nothing.
	SetIndex(ctx context.Context, indexURL string, extra []string) error
	// Reset removes both settings.
	Reset(ctx context.Context) error
}

// Settings are the index settings found in a pip configuration file.
type Settings struct {
	IndexURL       string
	ExtraIndexURLs []string
}

// File edits a pip configuration file in place.
type File struct {
	Path string
	// Backup keeps a timestamped copy of the previous content before each
	// rewrite.
	Backup bool

	now func() time.Time
}

// NewFile returns a File configurator for path.
func NewFile(path string, backup bool) *File {
	return &File{Path: path, Backup: backup, now: time.Now}
}

func (f *File) load() ([]byte, error) {
	orig, err := os.ReadFile(f.Path)
	switch {
	case os.IsNotExist(err):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "read pip config")
	}
	return orig, nil
}

// parse reads the index settings from content. Key spellings are folded the
// way pip folds them and inline comments are not recognized, as in pip.
func parse(content []byte) (Settings, error) {
	if len(content) == 0 {
		return Settings{}, nil
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		IgnoreInlineComment:        true,
	}, content)
	if err != nil {
		return Settings{}, err
	}
	sec, err := cfg.GetSection(globalSection)
	if err != nil {
		return Settings{}, nil
	}

	var settings Settings
	for _, key := range sec.Keys() {
		switch normalizeKey(key.Name()) {
		case keyIndexURL:
			settings.IndexURL = strings.TrimSpace(key.String())
		case keyExtraIndexURL:
			settings.ExtraIndexURLs = strings.Fields(key.String())
		}
	}
	return settings, nil
}

// Read returns the current index settings. A missing file yields empty
// settings.
func (f *File) Read() (Settings, error) {
	orig, err := f.load()
	if err != nil {
		return Settings{}, err
	}
	settings, err := parse(orig)
	if err != nil {
		return Settings{}, errors.Wrapf(err, "parse %s", f.Path)
	}
	return settings, nil
}

// SetIndex implements Configurator. Only the index lines of the global
// section are rewritten; the rest of the file is kept byte for byte.
func (f *File) SetIndex(_ context.Context, indexURL string, extra []string) error {
	if indexURL == "" {
		return errors.New("empty index url")
	}

	orig, err := f.load()
	if err != nil {
		return err
	}
	extraValue := strings.Join(extra, " ")
	updated := editGlobal(orig, []setting{
		{name: keyIndexURL, value: indexURL},
		{name: keyExtraIndexURL, value: extraValue},
	}, false)
	if orig != nil && bytes.Equal(orig, updated) {
		slog.Debug("pip config already up to date", "path", f.Path)
		return nil
	}

	previous, err := parse(orig)
	if err != nil {
		slog.Warn("pip config is not valid INI, rewriting index lines only", "path", f.Path, "error", err)
	}
	if err := f.save(orig, updated); err != nil {
		return err
	}
	slog.Info("pip config updated", "path", f.Path,
		keyIndexURL, indexURL, keyExtraIndexURL, extraValue, "previous", previous.IndexURL)
	return nil
}

// Reset implements Configurator.
func (f *File) Reset(_ context.Context) error {
	orig, err := f.load()
	if err != nil {
		return err
	}
	if orig == nil {
		slog.Debug("no pip config to reset", "path", f.Path)
		return nil
	}

	updated := editGlobal(orig, []setting{
		{name: keyIndexURL},
		{name: keyExtraIndexURL},
	}, true)
	if bytes.Equal(orig, updated) {
		slog.Debug("pip config has no index settings", "path", f.Path)
		return nil
	}

	if err := f.save(orig, updated); err != nil {
		return err
	}
	slog.Info("pip config reset", "path", f.Path)
	return nil
}

func (f *File) save(orig, updated []byte) error {
	mode := os.FileMode(0644)
	if st, err := os.Stat(f.Path); err == nil {
		mode = st.Mode().Perm()
	}

	if f.Backup && orig != nil {
		backupPath, err := f.backup(orig, mode)
		if err != nil {
			return err
		}
		slog.Info("previous pip config saved", "backup", backupPath)
	}

	return writeFileAtomic(f.Path, updated, mode)
}

// backup writes content next to the config file. An existing backup is
// never overwritten; a numeric suffix is added instead.
func (f *File) backup(content []byte, mode os.FileMode) (string, error) {
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	base := filepath.Join(filepath.Dir(f.Path),
		fmt.Sprintf("%s.bak.%s", filepath.Base(f.Path), now().Format(timestampFormat)))

	for i := 0; i < maxBackupSuffix; i++ {
		backupPath := base
		if i > 0 {
			backupPath = fmt.Sprintf("%s.%d", base, i)
		}
		file, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode) // #nosec G304 - next to the pip config
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "backup pip config")
		}
		if _, err := file.Write(content); err != nil {
			_ = file.Close()
			return "", errors.Wrap(err, "backup pip config")
		}
		if err := file.Close(); err != nil {
			return "", errors.Wrap(err, "backup pip config")
		}
		return backupPath, nil
	}
	return "", errors.Newf("backup pip config: too many backups named %s", base)
}
