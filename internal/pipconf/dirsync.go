package pipconf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/cockroachdb/errors"
)

// dirSync calls fsync(2) on the directory so that a rename inside it
// survives a crash. It is a no-op on Windows, where directories cannot be
// opened for syncing.
func dirSync(d string) error {
	if runtime.GOOS == "windows" {
		return nil
	}

	f, err := os.OpenFile(filepath.Clean(d), os.O_RDONLY, 0) // #nosec G304 - d is the pip config directory
	if err != nil {
		return errors.Wrap(err, "dirSync")
	}
	err = f.Sync()
	if err != nil {
		_ = f.Close()
		return errors.Wrap(err, "dirSync")
	}
	return f.Close()
}

// writeFileAtomic replaces path with data. The new content is written to a
// temporary file in the same directory, synced, then renamed over path.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create config directory")
	}

	tempfile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tempName := tempfile.Name()
	cleanup := func() {
		_ = tempfile.Close()
		_ = os.Remove(tempName)
	}

	if _, err := tempfile.Write(data); err != nil {
		cleanup()
		return errors.Wrap(err, "write temp file")
	}
	if err := tempfile.Sync(); err != nil {
		cleanup()
		return errors.Wrap(err, "tempfile.Sync failed")
	}
	if err := tempfile.Chmod(mode); err != nil && runtime.GOOS != "windows" {
		cleanup()
		return errors.Wrap(err, "tempfile.Chmod failed")
	}
	if err := tempfile.Close(); err != nil {
		_ = os.Remove(tempName)
		return errors.Wrap(err, "close temp file")
	}

	if err := os.Rename(tempName, path); err != nil {
		_ = os.Remove(tempName)
		return errors.Wrap(err, "replace config file")
	}
	return dirSync(dir)
}
