package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// ErrNoOpener is returned when no URI opener exists on this platform.
var ErrNoOpener = errors.New("no URI opener available")

// Launcher asks the desktop environment to open a URI. A nil error means the
// request was handed over, not that any application received it.
type Launcher interface {
	Open(ctx context.Context, uri string) error
}

type opener struct {
	cmd  string
	args []string
}

// OSLauncher is a best-effort, cross-platform launcher
// (open / xdg-open / gio / rundll32).
type OSLauncher struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

func NewOSLauncher() *OSLauncher {
	return &OSLauncher{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (l *OSLauncher) candidates() []opener {
	switch l.goos {
	case "darwin":
		return []opener{{cmd: "open"}}
	case "windows":
		return []opener{{cmd: "rundll32", args: []string{"url.dll,FileProtocolHandler"}}}
	default:
		return []opener{
			{cmd: "xdg-open"},
			{cmd: "gio", args: []string{"open"}},
		}
	}
}

func (l *OSLauncher) Open(ctx context.Context, uri string) error {
	var lastErr error
	tried := 0
	for _, cand := range l.candidates() {
		path, err := l.lookPath(cand.cmd)
		if err != nil {
			continue
		}
		tried++
		args := append(append([]string{}, cand.args...), uri)
		if err := l.run(ctx, path, args...); err != nil {
			// best effort: try next candidate
			lastErr = fmt.Errorf("%s: %w", cand.cmd, err)
			continue
		}
		return nil
	}
	if tried == 0 {
		return fmt.Errorf("%w on %s", ErrNoOpener, l.goos)
	}
	return lastErr
}
