package ledger

import (
	"sort"

	"MatchCore/internal/invariant"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	ledger *AssetLedger
}

func NewInvariantValidator(l *AssetLedger) *InvariantValidator {
	return &InvariantValidator{
		ledger: l,
	}
}

// ValidateBatch verifies every journal in the batch is well-formed
func (v *InvariantValidator) ValidateBatch(batch *Batch) error {
	if batch == nil {
		return nil
	}
	if err := batch.Validate(); err != nil {
		return invariant.Violationf("malformed_batch", "%v", err)
	}
	return nil
}

// ValidateNonNegative checks both sub-balances of a user account are >= 0.
// External accounts are exempt.
func (v *InvariantValidator) ValidateNonNegative(key AccountKey) error {
	if key.IsExternal() {
		return nil
	}
	a, _ := v.ledger.Balance(key)
	if a.Available.IsNegative() || a.Frozen.IsNegative() {
		return invariant.Violationf("negative_balance",
			"account %s: available=%s frozen=%s", key.AccountPath(), a.Available, a.Frozen)
	}
	return nil
}

// ValidateTouched runs ValidateNonNegative over every account the batch moved.
func (v *InvariantValidator) ValidateTouched(batch *Batch) error {
	if batch == nil {
		return nil
	}
	for _, key := range batch.Accounts() {
		if err := v.ValidateNonNegative(key); err != nil {
			return err
		}
	}
	return nil
}

// ValidateGlobalBalance verifies the system is zero-sum per asset
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.ledger.ComputeGlobalBalance()

	ids := make([]AssetID, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, assetID := range ids {
		if total := totals[assetID]; !total.IsZero() {
			return invariant.Violationf("global_balance",
				"global balance for %s is non-zero: %s", assetID, total)
		}
	}

	return nil
}
