package mount

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// writeScript drops an executable that accepts the mount directory
// argument and stays alive until signalled, standing in for the
// filesystem binary.
func writeScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakefs.sh")
	script := "#!/bin/sh\nexec sleep 30\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestNewValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := New("", dir)
	assert.Error(t, err)

	_, err = New("badfs", "")
	assert.Error(t, err)

	_, err = New("badfs", filepath.Join(dir, "missing"))
	assert.Error(t, err)

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = New("badfs", file)
	assert.Error(t, err)
}

func TestStopBeforeStartIsMisuse(t *testing.T) {
	s, err := New("badfs", t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, s.Stop(), ErrNotStarted)
}

func TestExitBeforeReady(t *testing.T) {
	// "true" exits immediately and never mounts anything.
	s, err := New("true", t.TempDir())
	require.NoError(t, err)

	err = s.Start(context.Background())
	assert.ErrorIs(t, err, ErrExitedBeforeReady)
	assert.False(t, s.Ready())
}

func TestReadyTimeout(t *testing.T) {
	s, err := New(writeScript(t), t.TempDir(),
		WithReadyTimeout(100*time.Millisecond))
	require.NoError(t, err)

	err = s.Start(context.Background())
	assert.ErrorIs(t, err, ErrReadyTimeout)
	assert.False(t, s.Ready())
}

func TestStartHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s, err := New(writeScript(t), t.TempDir())
	require.NoError(t, err)
	// Keep probing "not supported" so only the context can end the loop.
	s.probe = func(string) error { return unix.ENOTSUP }

	err = s.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFatalProbeErrorAbortsStartup(t *testing.T) {
	s, err := New(writeScript(t), t.TempDir())
	require.NoError(t, err)
	s.probe = func(string) error { return unix.EIO }

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.EIO)
	assert.NotErrorIs(t, err, ErrExitedBeforeReady)
}

func TestStartBecomesReadyThenStops(t *testing.T) {
	s, err := New(writeScript(t), t.TempDir())
	require.NoError(t, err)

	// The mount needs a few probes before it answers.
	probes := 0
	s.probe = func(string) error {
		probes++
		if probes < 3 {
			return unix.ENOTSUP
		}
		return nil
	}

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Ready())
	assert.GreaterOrEqual(t, probes, 3)

	require.NoError(t, s.Stop())
	assert.False(t, s.Ready())

	// Second stop after a successful one is a no-op.
	assert.NoError(t, s.Stop())
}

func TestWithStopsOnCallbackError(t *testing.T) {
	s, err := New(writeScript(t), t.TempDir())
	require.NoError(t, err)
	s.probe = func(string) error { return nil }

	boom := errors.New("boom")
	err = s.With(context.Background(), func() error {
		assert.True(t, s.Ready())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, s.waited, "process must be reaped on the error path")
	assert.False(t, s.Ready())
}

func TestWithPropagatesStartFailure(t *testing.T) {
	s, err := New("true", t.TempDir())
	require.NoError(t, err)

	called := false
	err = s.With(context.Background(), func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrExitedBeforeReady)
	assert.False(t, called, "callback must not run without a ready mount")
}
