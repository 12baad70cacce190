// Package effect defines the fault-injection directives understood by the
// badfs filesystem process.
//
// An Effect describes what the filesystem should do to matching operations:
// delay them, fail them, cap the target's size, or record an access
// histogram. The client only describes the intent; enforcement happens in
// the filesystem process, which reads the encoded record from the extended
// attribute the client writes.
package effect

import (
	"encoding/json"
	"strconv"
	"sync/atomic"

	"badfs/internal/logging"
)

var logger = logging.GetLogger().WithPrefix("effect")

// DefaultOp is the operation filter applied when none is given: read+write.
const DefaultOp = "rw"

// Effect is a single fault-injection directive. Implementations form a
// closed set: Delay, Flakey, MaxSize and Heatmap.
type Effect interface {
	// Name returns the process-unique identifier of this effect,
	// used as the attribute key suffix.
	Name() string

	// Op returns the operation filter tag, e.g. "rw" or "w". The tag is
	// opaque to the client and interpreted by the filesystem process.
	Op() string

	// wire returns the kind-specific parameters of the record.
	// Unexported so the set of kinds stays closed.
	wire() map[string]any
}

// counter backs effect naming. Incremented exactly once per construction,
// of any kind; names are never reused within a process.
var counter atomic.Uint64

func nextName(kind string) string {
	n := counter.Add(1)
	name := kind + "-" + strconv.FormatUint(n, 10)
	logger.Trace("Allocated effect name %q", name)
	return name
}

// common carries the fields every kind shares.
type common struct {
	name string
	op   string
}

func newCommon(kind string, cfg config) common {
	return common{name: nextName(kind), op: cfg.op}
}

// Name returns the effect's unique name.
func (c *common) Name() string { return c.name }

// Op returns the effect's operation filter.
func (c *common) Op() string { return c.op }

// config collects cross-kind construction knobs.
type config struct {
	op    string
	errno int
}

// Option adjusts effect construction.
type Option func(*config)

// WithOp sets the operation filter tag. Defaults to DefaultOp.
func WithOp(op string) Option {
	return func(c *config) { c.op = op }
}

// WithErrno sets the error code surfaced by error-producing kinds.
// Ignored by kinds that never produce errors. Defaults to EIO.
func WithErrno(errno int) Option {
	return func(c *config) { c.errno = errno }
}

func applyOptions(opts []Option) config {
	cfg := config{op: DefaultOp, errno: DefaultErrno}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Encode serializes an effect to the wire form stored in its extended
// attribute: a JSON object of "op" plus the kind-specific parameters.
func Encode(e Effect) ([]byte, error) {
	rec := e.wire()
	rec["op"] = e.Op()
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	logger.Trace("Encoded %s: %s", e.Name(), data)
	return data, nil
}

// Record is a decoded wire record: an effect's stored form, or the
// filesystem's aggregate counters.
type Record map[string]any

// DecodeRecord parses a wire record read back from an extended attribute.
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}
