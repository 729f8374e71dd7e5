package core

import "MatchCore/internal/invariant"

// SequenceValidator enforces the sequencer's total order: every event must
// carry a sequence strictly greater than the last one applied. Gaps are
// tolerated. Redelivery is filtered upstream, so a repeat here
// means the sequencer broke its contract.
// Not thread-safe: only accessed under the engine's write lock.
type SequenceValidator struct {
	last int64
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{}
}

// ValidateSequence checks seq and advances the cursor. gap reports that
// one or more sequences were skipped.
func (sv *SequenceValidator) ValidateSequence(seq int64) (gap bool, err error) {
	if seq <= sv.last {
		return false, invariant.Violationf("sequence_regression",
			"expected > %d, got %d", sv.last, seq)
	}

	if sv.last > 0 && seq > sv.last+1 {
		gap = true
	}

	sv.last = seq
	return gap, nil
}

// LastSequence returns the last accepted sequence (0 before the first event).
func (sv *SequenceValidator) LastSequence() int64 {
	return sv.last
}
