// Package alert renders pickup signals on an operator's terminal and desktop.
package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/btouchard/readyalert/internal/notify"
)

// Options configures a Service.
type Options struct {
	Out            io.Writer
	Toast          bool
	Sound          bool
	DesktopCommand string // e.g. "notify-send -u critical"; title and body are appended
	DesktopTimeout time.Duration
}

// Service owns the alert outputs of one watching process. It implements
// notify.Notifier.
type Service struct {
	toast   bool
	sound   bool
	command []string
	timeout time.Duration

	outMu sync.Mutex
	out   io.Writer

	probeOnce   sync.Once
	desktopPath string
	lookPath    func(string) (string, error)
	run         func(ctx context.Context, path string, args ...string) error
}

// New creates a Service.
func New(opts Options) *Service {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	timeout := opts.DesktopTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		toast:    opts.Toast,
		sound:    opts.Sound,
		command:  strings.Fields(opts.DesktopCommand),
		timeout:  timeout,
		out:      out,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

// Notify alerts for a new or ready pickup. Other kinds are ignored.
func (s *Service) Notify(e notify.Event) {
	switch e.Kind {
	case notify.KindNew:
		s.show("NEW", e)
	case notify.KindReady:
		s.show("READY", e)
		s.desktop(e)
	}
}

func (s *Service) show(label string, e notify.Event) {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	if s.toast {
		line := fmt.Sprintf("[%s] %-5s %s", time.Now().Format("15:04"), label, e.Message)
		if !e.PickupTime.IsZero() {
			line += " · pickup " + e.PickupTime.Local().Format("3:04 PM")
		}
		_, _ = fmt.Fprintln(s.out, line)
	}
	if s.sound {
		_, _ = io.WriteString(s.out, "\a")
	}
}

// desktop runs the configured notification command. The command is looked
// up once; if it is missing, desktop alerts stay off for this Service.
func (s *Service) desktop(e notify.Event) {
	if len(s.command) == 0 {
		return
	}

	s.probeOnce.Do(func() {
		path, err := s.lookPath(s.command[0])
		if err != nil {
			slog.Warn("desktop notifications unavailable", "command", s.command[0], "error", err)
			return
		}
		s.desktopPath = path
	})
	if s.desktopPath == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	args := append(append([]string{}, s.command[1:]...), e.ResidentName+" is READY!", e.Message)
	if err := s.run(ctx, s.desktopPath, args...); err != nil {
		slog.Warn("desktop notification failed", "event_id", e.EventID, "error", err)
	}
}

func runCommand(ctx context.Context, path string, args ...string) error {
	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := errors.AsType[*exec.ExitError](err); ok {
			return fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), strings.TrimSpace(string(out)))
		}
		return err
	}
	return nil
}
