// Package mount supervises the external badfs filesystem process: it
// starts the binary against a mount directory, blocks until the mount
// answers extended-attribute calls, and later tears it down.
package mount

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"

	"badfs/internal/logging"

	"bazil.org/fuse"
	"golang.org/x/sys/unix"
)

var logger = logging.GetLogger().WithPrefix("mount")

// attrIno is the readiness sentinel. Any successful read means the mount
// is live; "operation not supported" means the kernel is still answering
// for the underlying filesystem.
const attrIno = "bf.ino"

const (
	// DefaultReadyTimeout bounds the readiness poll. The protocol itself
	// has no bound; the timeout is a deliberate safety net so a mount
	// that never comes up cannot hang the caller forever.
	DefaultReadyTimeout = 30 * time.Second

	// DefaultPollInterval is the pause between readiness probes.
	DefaultPollInterval = time.Millisecond
)

var (
	// ErrNotStarted indicates Stop was called on a supervisor that was
	// never started. This is a caller error.
	ErrNotStarted = errors.New("filesystem process was never started")

	// ErrExitedBeforeReady indicates the filesystem process exited
	// without the mount ever becoming ready.
	ErrExitedBeforeReady = errors.New("filesystem process exited before becoming ready")

	// ErrReadyTimeout indicates the mount did not become ready within
	// the configured timeout.
	ErrReadyTimeout = errors.New("filesystem was not ready before the deadline")
)

// Supervisor owns one badfs filesystem process for its lifetime. Start
// and Stop are expected to be called from the same owning goroutine, not
// interleaved.
type Supervisor struct {
	binary       string
	dir          string
	readyTimeout time.Duration
	pollInterval time.Duration
	output       io.Writer

	cmd    *exec.Cmd
	exited chan error
	waited bool
	ready  bool

	// probe is swapped out in tests.
	probe func(dir string) error
}

// Option adjusts supervisor construction.
type Option func(*Supervisor)

// WithReadyTimeout bounds how long Start waits for the mount. Zero
// disables the bound and polls until ready or process exit.
func WithReadyTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.readyTimeout = d }
}

// WithPollInterval sets the pause between readiness probes. Zero polls
// with only a scheduler yield between attempts.
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.pollInterval = d }
}

// WithOutput redirects the filesystem process's stdout and stderr.
func WithOutput(w io.Writer) Option {
	return func(s *Supervisor) { s.output = w }
}

// New creates a supervisor for the given filesystem binary and mount
// directory. The directory must already exist.
func New(binary, dir string, opts ...Option) (*Supervisor, error) {
	if binary == "" {
		return nil, fmt.Errorf("filesystem binary path is required")
	}
	if dir == "" {
		return nil, fmt.Errorf("mount directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("mount directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mount directory %s is not a directory", dir)
	}

	s := &Supervisor{
		binary:       binary,
		dir:          dir,
		readyTimeout: DefaultReadyTimeout,
		pollInterval: DefaultPollInterval,
		output:       os.Stderr,
		probe:        probeReady,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the mount directory.
func (s *Supervisor) Dir() string { return s.dir }

// Ready reports whether the mount has been observed ready and not yet
// stopped. Attribute calls against the mount before readiness are
// undefined.
func (s *Supervisor) Ready() bool { return s.ready }

// probeReady reads the inode sentinel on the mount directory. The value
// is irrelevant; only the error classifies the mount state.
func probeReady(dir string) error {
	buf := make([]byte, 32)
	_, err := unix.Getxattr(dir, attrIno, buf)
	return err
}

// notSupported reports whether a probe error means "mount not yet live":
// an unmounted directory rejects the bf namespace with ENOTSUP.
func notSupported(err error) bool {
	return errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP)
}

// Start spawns the filesystem process against the mount directory and
// blocks until the mount answers the readiness probe. It fails when the
// process exits first, when a probe fails with an unexpected error, when
// the ready timeout elapses, or when ctx is cancelled; in every failure
// case the child is torn down before returning.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.cmd != nil {
		return fmt.Errorf("filesystem process already started")
	}

	logger.Info("Starting %s on %s", s.binary, s.dir)
	cmd := exec.Command(s.binary, s.dir)
	cmd.Stdout = s.output
	cmd.Stderr = s.output
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", s.binary, err)
	}
	s.cmd = cmd
	s.exited = make(chan error, 1)
	go func() {
		s.exited <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if s.readyTimeout > 0 {
		timer := time.NewTimer(s.readyTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		err := s.probe(s.dir)
		if err == nil {
			s.ready = true
			logger.Info("Mount %s is ready", s.dir)
			return nil
		}
		if !notSupported(err) {
			s.teardown()
			return fmt.Errorf("readiness probe on %s: %w", s.dir, err)
		}

		select {
		case werr := <-s.exited:
			s.waited = true
			logger.Error("Process exited during startup: %v", werr)
			return ErrExitedBeforeReady
		case <-ctx.Done():
			s.teardown()
			return ctx.Err()
		case <-deadline:
			s.teardown()
			return ErrReadyTimeout
		default:
		}

		runtime.Gosched()
		if s.pollInterval > 0 {
			time.Sleep(s.pollInterval)
		}
	}
}

// Stop requests graceful termination and blocks until the process has
// exited. Calling Stop on a never-started supervisor is a misuse error;
// a second Stop after a successful one is a no-op.
func (s *Supervisor) Stop() error {
	if s.cmd == nil {
		return ErrNotStarted
	}
	if s.waited {
		return nil
	}

	logger.Info("Stopping filesystem on %s", s.dir)
	s.ready = false

	// Unmounting is the graceful shutdown path for a FUSE daemon: its
	// serve loop ends and it exits on its own. Fall back to a signal if
	// the unmount is refused (e.g. the mount never came up).
	if err := fuse.Unmount(s.dir); err != nil {
		logger.Debug("Unmount failed (%v), sending SIGTERM", err)
		if serr := s.cmd.Process.Signal(unix.SIGTERM); serr != nil {
			return fmt.Errorf("failed to signal filesystem process: %w", serr)
		}
	}

	werr := <-s.exited
	s.waited = true
	logger.Debug("Filesystem process exited: %v", werr)

	if werr == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(werr, &ee) && !ee.Exited() {
		// Killed by our signal rather than exiting on its own.
		return nil
	}
	return fmt.Errorf("filesystem process: %w", werr)
}

// teardown reaps the child after a failed startup so no zombie is left
// behind. Best effort; the startup error is what the caller sees.
func (s *Supervisor) teardown() {
	if err := fuse.Unmount(s.dir); err != nil {
		logger.Trace("Teardown unmount: %v", err)
	}
	if err := s.cmd.Process.Signal(unix.SIGTERM); err != nil {
		logger.Trace("Teardown signal: %v", err)
	}
	select {
	case <-s.exited:
	case <-time.After(3 * time.Second):
		if err := s.cmd.Process.Kill(); err != nil {
			logger.Warn("Failed to kill filesystem process: %v", err)
		}
		<-s.exited
	}
	s.waited = true
}

// With runs fn with the filesystem mounted: start on entry, stop on every
// exit path, including panics. The first error wins.
func (s *Supervisor) With(ctx context.Context, fn func() error) (err error) {
	if err = s.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if serr := s.Stop(); err == nil {
			err = serr
		}
	}()
	return fn()
}
