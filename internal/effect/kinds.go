package effect

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultErrno is the error code injected when none is configured.
const DefaultErrno = int(unix.EIO)

// Delay holds every matching operation for a fixed duration before
// letting it complete.
type Delay struct {
	common
	durationMS uint64
}

// NewDelay creates a Delay effect. The duration is carried on the wire as
// a whole count of milliseconds and must be non-negative.
func NewDelay(d time.Duration, opts ...Option) (*Delay, error) {
	if d < 0 {
		return nil, fmt.Errorf("delay %v: %w", d, ErrNegativeDuration)
	}
	return &Delay{
		common:     newCommon("delay", applyOptions(opts)),
		durationMS: uint64(d.Milliseconds()),
	}, nil
}

func (d *Delay) wire() map[string]any {
	return map[string]any{"duration_ms": d.durationMS}
}

// Flakey fails matching operations with a configured errno, in one of two
// modes:
//
//   - probability mode: each operation independently fails with
//     probability prob;
//   - interval mode: time is partitioned into a repeating cycle of an
//     available window (everything succeeds) followed by an unavailable
//     window (everything fails), anchored at attach time.
//
// The two modes are mutually exclusive; exactly one is encoded.
type Flakey struct {
	common
	prob      *float64
	availMS   uint64
	unavailMS uint64
	errno     int
}

// Prob creates a Flakey effect in probability mode. p must lie in [0, 1].
func Prob(p float64, opts ...Option) (*Flakey, error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("probability %v: %w", p, ErrProbRange)
	}
	cfg := applyOptions(opts)
	return &Flakey{
		common: newCommon("flakey", cfg),
		prob:   &p,
		errno:  cfg.errno,
	}, nil
}

// Always creates a Flakey effect that fails every matching operation.
// Shorthand for Prob(1); the encoding is identical.
func Always(opts ...Option) (*Flakey, error) {
	return Prob(1, opts...)
}

// Interval creates a Flakey effect in interval mode. Both durations are
// carried as whole milliseconds and must be non-negative. The cycle
// restarts every avail+unavail, measured from the effect's attach time.
func Interval(avail, unavail time.Duration, opts ...Option) (*Flakey, error) {
	if avail < 0 {
		return nil, fmt.Errorf("available window %v: %w", avail, ErrNegativeDuration)
	}
	if unavail < 0 {
		return nil, fmt.Errorf("unavailable window %v: %w", unavail, ErrNegativeDuration)
	}
	cfg := applyOptions(opts)
	return &Flakey{
		common:    newCommon("flakey", cfg),
		availMS:   uint64(avail.Milliseconds()),
		unavailMS: uint64(unavail.Milliseconds()),
		errno:     cfg.errno,
	}, nil
}

func (f *Flakey) wire() map[string]any {
	rec := map[string]any{"errno": f.errno}
	if f.prob != nil {
		rec["prob"] = *f.prob
	} else {
		rec["avail_ms"] = f.availMS
		rec["unavail_ms"] = f.unavailMS
	}
	return rec
}

// MaxSize caps the byte size of the target. Writes that would grow a file
// (or, on a directory, the aggregate of files beneath it) past the limit
// fail with ENOSPC.
type MaxSize struct {
	common
	limit int64
}

// NewMaxSize creates a MaxSize effect. The limit is in bytes and must be
// non-negative; a limit of zero rejects any non-empty write.
func NewMaxSize(limit int64, opts ...Option) (*MaxSize, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit %d: %w", limit, ErrNegativeLimit)
	}
	return &MaxSize{
		common: newCommon("maxsize", applyOptions(opts)),
		limit:  limit,
	}, nil
}

func (m *MaxSize) wire() map[string]any {
	return map[string]any{"limit": m.limit}
}

// Heatmap records the byte range of every matching operation into a
// histogram bucketed on align-byte boundaries. The buckets are retrieved
// through the stats attribute, not through the effect itself.
type Heatmap struct {
	common
	align int64
}

// NewHeatmap creates a Heatmap effect. align is the bucket size in bytes
// and must be positive.
func NewHeatmap(align int64, opts ...Option) (*Heatmap, error) {
	if align <= 0 {
		return nil, fmt.Errorf("align %d: %w", align, ErrAlignNotPositive)
	}
	return &Heatmap{
		common: newCommon("heatmap", applyOptions(opts)),
		align:  align,
	}, nil
}

func (h *Heatmap) wire() map[string]any {
	return map[string]any{"align": h.align}
}
