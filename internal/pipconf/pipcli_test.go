package pipconf

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakePython writes a shell script standing in for the interpreter. It logs
// its arguments to $PIPFC_FAKE_LOG and fails when they contain "fail".
func fakePython(t *testing.T) (python, log string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	dir := t.TempDir()
	python = filepath.Join(dir, "python")
	log = filepath.Join(dir, "calls.log")
	script := `#!/bin/sh
echo "$@" >> "$PIPFC_FAKE_LOG"
case "$*" in
*fail*) echo "ERROR: cannot write config" >&2; exit 1 ;;
esac
`
	if err := os.WriteFile(python, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PIPFC_FAKE_LOG", log)
	return python, log
}

func calls(t *testing.T, log string) []string {
	t.Helper()
	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestPipCommandSetIndex(t *testing.T) {
	python, log := fakePython(t)
	p := &PipCommand{Python: python}

	err := p.SetIndex(context.Background(), "https://a.example/simple/",
		[]string{"https://b.example/simple/", "https://pypi.org/simple"})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"-m pip config set global.index-url https://a.example/simple/",
		"-m pip config set global.extra-index-url https://b.example/simple/ https://pypi.org/simple",
	}
	got := calls(t, log)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

func TestPipCommandReset(t *testing.T) {
	python, log := fakePython(t)
	p := &PipCommand{Python: python}

	if err := p.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := calls(t, log)
	if len(got) != 2 || !strings.HasSuffix(got[0], "unset global.index-url") || !strings.HasSuffix(got[1], "unset global.extra-index-url") {
		t.Errorf("calls = %q", got)
	}
}

func TestPipCommandFailure(t *testing.T) {
	python, _ := fakePython(t)
	p := &PipCommand{Python: python}

	err := p.SetIndex(context.Background(), "https://fail.example/simple/", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "cannot write config") {
		t.Errorf("error does not carry pip's stderr: %v", err)
	}
}
