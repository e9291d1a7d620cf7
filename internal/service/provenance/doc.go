// Package provenance registers training runs and their invocation records.
//
// A registration is one transactionless sequence: encode the invocation to
// its canonical script, mirror the script to object storage, insert the run
// and the insert-only invocation record, then emit audit and lineage events.
// The object write happens first so a failed database insert never leaves a
// registered run without its replayable script; re-registration with the same
// run id is a no-op on the record side (insert is idempotent on run_id).
//
// Invocation records are immutable. Status updates touch the run row only.
package provenance
