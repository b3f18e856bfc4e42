package display

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/dickwu/noticewin/internal/model"
)

// ExecSurface presents windows by spawning an external presenter command, one
// process per window. The command receives the message as JSON on stdin and
// the resolved placement through NOTICEWIN_* environment variables; the window
// is considered closed when the process exits, whatever the reason.
//
// This keeps the window toolkit outside the coordination core: any program
// that can draw a window (a webview wrapper, a terminal popup, a script) can
// act as the presenter.
type ExecSurface struct {
	logger *slog.Logger

	// command is run through "sh -c", so pipelines and arguments work.
	command string

	// onClosed reports process exit; wired to Manager.HandleClosed.
	onClosed func(id string)

	mu    sync.Mutex
	procs map[string]*exec.Cmd
}

// NewExecSurface creates a surface backed by the given presenter command.
func NewExecSurface(command string, logger *slog.Logger) *ExecSurface {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecSurface{
		logger:  logger,
		command: command,
		procs:   make(map[string]*exec.Cmd),
	}
}

// SetOnClosed installs the closure callback. Must be set before Open.
func (e *ExecSurface) SetOnClosed(fn func(id string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onClosed = fn
}

// Open spawns the presenter command for msg. Returns an error only when the
// process could not be started; a presenter that draws a failure window for
// bad content is still a successful open.
func (e *ExecSurface) Open(msg *model.Message, route string, geom Geometry) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}

	cmd := exec.Command("sh", "-c", e.command)
	cmd.Env = append(os.Environ(),
		"NOTICEWIN_ID="+msg.ID,
		"NOTICEWIN_KIND="+msg.Kind,
		"NOTICEWIN_TITLE="+msg.Title,
		"NOTICEWIN_ROUTE="+route,
		fmt.Sprintf("NOTICEWIN_X=%d", geom.X),
		fmt.Sprintf("NOTICEWIN_Y=%d", geom.Y),
		fmt.Sprintf("NOTICEWIN_WIDTH=%d", geom.Width),
		fmt.Sprintf("NOTICEWIN_HEIGHT=%d", geom.Height),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe for %s: %w", msg.ID, err)
	}

	// Own process group so Close can signal the whole pipeline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start presenter for %s: %w", msg.ID, err)
	}

	e.mu.Lock()
	e.procs[msg.ID] = cmd
	onClosed := e.onClosed
	e.mu.Unlock()

	go func() {
		if _, err := stdin.Write(payload); err != nil {
			e.logger.Debug("presenter did not read payload", "id", msg.ID, "error", err)
		}
		_ = stdin.Close()
	}()

	go func(id string) {
		err := cmd.Wait()
		e.logger.Debug("presenter exited", "id", id, "error", err)

		e.mu.Lock()
		delete(e.procs, id)
		e.mu.Unlock()

		if onClosed != nil {
			onClosed(id)
		}
	}(msg.ID)

	return nil
}

// Close asks the presenter process for id to exit. The closure is reported
// asynchronously through the onClosed callback when the process is gone.
// Closing an id with no live process is a no-op.
func (e *ExecSurface) Close(id string) error {
	e.mu.Lock()
	cmd := e.procs[id]
	e.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	// Negative pid signals the process group.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("signal presenter for %s: %w", id, err)
	}
	return nil
}
