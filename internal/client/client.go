package client

import (
	"encoding/json"

	"badfs/internal/effect"
	"badfs/internal/logging"
)

var logger = logging.GetLogger().WithPrefix("client")

// Attribute keys of the badfs control protocol. Effects live under
// attrEffectPrefix + name; attrEffect is a synthetic collective key used
// only for clearing.
const (
	attrEffect       = "bf.effect"
	attrEffectPrefix = "bf.effect."
	attrStats        = "bf.stats"
	attrIno          = "bf.ino"
)

func effectKey(e effect.Effect) string {
	return attrEffectPrefix + e.Name()
}

// Attach serializes the effect and writes it to the target's attribute
// namespace. The filesystem process observes the write and begins
// enforcing the effect; it stays live until removed or cleared.
func Attach(t Target, e effect.Effect) error {
	data, err := effect.Encode(e)
	if err != nil {
		return newError(OpAttach, t, err)
	}
	logger.Debug("Attaching %s to %s", e.Name(), t)
	if err := t.setxattr(effectKey(e), data); err != nil {
		return newError(OpAttach, t, err)
	}
	return nil
}

// Remove deletes the named effect from the target. Removing an effect
// that was never attached to this target is an error, not a no-op.
func Remove(t Target, e effect.Effect) error {
	logger.Debug("Removing %s from %s", e.Name(), t)
	if err := t.removexattr(effectKey(e)); err != nil {
		return newError(OpRemove, t, err)
	}
	return nil
}

// Clear drops every effect on the target in one call, through the
// collective key rather than per-effect removal.
func Clear(t Target) error {
	logger.Debug("Clearing all effects on %s", t)
	if err := t.removexattr(attrEffect); err != nil {
		return newError(OpClear, t, err)
	}
	return nil
}

// Display reads back the stored record for the effect, decoded. It
// reports what the filesystem actually holds, independent of what the
// caller last constructed.
func Display(t Target, e effect.Effect) (effect.Record, error) {
	data, err := t.getxattr(effectKey(e))
	if err != nil {
		return nil, newError(OpDisplay, t, err)
	}
	rec, err := effect.DecodeRecord(data)
	if err != nil {
		return nil, newError(OpDisplay, t, err)
	}
	logger.Trace("Displayed %s on %s: %v", e.Name(), t, rec)
	return rec, nil
}

// DisplayAll lists every effect in scope for the target, including those
// attached to ancestor directories.
func DisplayAll(t Target) ([]effect.Record, error) {
	data, err := t.getxattr(attrEffect + "/all")
	if err != nil {
		return nil, newError(OpDisplayAll, t, err)
	}
	var recs []effect.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, newError(OpDisplayAll, t, err)
	}
	return recs, nil
}

// Stats reads the filesystem's aggregate counters for the target, e.g.
// heatmap buckets and injected error counts. Read-only; the shape of the
// record is defined by the filesystem process.
func Stats(t Target) (effect.Record, error) {
	data, err := t.getxattr(attrStats)
	if err != nil {
		return nil, newError(OpStats, t, err)
	}
	rec, err := effect.DecodeRecord(data)
	if err != nil {
		return nil, newError(OpStats, t, err)
	}
	return rec, nil
}

// Inode reads the inode sentinel for the target. Mostly useful as a
// cheap liveness check; the supervisor probes the same key for readiness.
func Inode(t Target) (string, error) {
	data, err := t.getxattr(attrIno)
	if err != nil {
		return "", newError(OpInode, t, err)
	}
	return string(data), nil
}
