package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"MatchCore/internal/invariant"
)

// AssetLedger maintains in-memory available/frozen balances and records
// every movement as a journal in the batch of the event being applied.
// It is not safe for concurrent use; the trading engine serialises access.
type AssetLedger struct {
	accounts map[AccountKey]*Asset
	pending  *Batch
}

func NewAssetLedger() *AssetLedger {
	return &AssetLedger{
		accounts: make(map[AccountKey]*Asset),
	}
}

// KeyFor maps a user id to its account key. ExternalUserID addresses the
// external boundary account.
func KeyFor(userID int64, assetID AssetID) AccountKey {
	if userID == ExternalUserID {
		return NewExternalAccountKey(assetID)
	}
	return NewUserAccountKey(userID, assetID)
}

func (l *AssetLedger) account(key AccountKey) *Asset {
	a, ok := l.accounts[key]
	if !ok {
		a = &Asset{Available: decimal.Zero, Frozen: decimal.Zero}
		l.accounts[key] = a
	}
	return a
}

// GetAccount returns the account for (user, asset), creating a zero balance
// account if none exists. It never fails.
func (l *AssetLedger) GetAccount(userID int64, assetID AssetID) Asset {
	return *l.account(KeyFor(userID, assetID))
}

// Balance returns the account without creating it.
func (l *AssetLedger) Balance(key AccountKey) (Asset, bool) {
	a, ok := l.accounts[key]
	if !ok {
		return Asset{Available: decimal.Zero, Frozen: decimal.Zero}, false
	}
	return *a, true
}

// === Journal recording ===

// Begin opens the journal batch for one event. Movements made before the
// next Drain are recorded into it.
func (l *AssetLedger) Begin(sequence, timestamp int64) {
	l.pending = &Batch{
		BatchID:   BatchID(sequence),
		Sequence:  sequence,
		Timestamp: timestamp,
	}
}

// Drain returns the open batch and closes it. Returns nil if Begin was not called.
func (l *AssetLedger) Drain() *Batch {
	b := l.pending
	l.pending = nil
	return b
}

func (l *AssetLedger) record(kind TransferKind, from, to AccountKey, amount decimal.Decimal, jt JournalType) {
	if l.pending == nil {
		return
	}
	b := l.pending
	b.Journals = append(b.Journals, Journal{
		JournalID:   JournalID(b.Sequence, len(b.Journals)),
		BatchID:     b.BatchID,
		Sequence:    b.Sequence,
		Kind:        kind,
		From:        from,
		To:          to,
		AssetID:     from.AssetID,
		Amount:      amount,
		JournalType: jt,
		Timestamp:   b.Timestamp,
	})
}

// === Transfer primitives ===

// TryTransferKeys moves amount between two sub-balances. It returns false with
// no mutation when the source sub-balance is insufficient. External accounts
// skip the available check on debit. A negative amount, a cross-asset move
// or an unknown kind is an invariant violation.
func (l *AssetLedger) TryTransferKeys(kind TransferKind, from, to AccountKey, amount decimal.Decimal, jt JournalType) (bool, error) {
	if amount.IsNegative() {
		return false, invariant.Violationf("negative_amount",
			"%s %s -> %s amount %s", kind, from.AccountPath(), to.AccountPath(), amount)
	}
	if from.AssetID != to.AssetID {
		return false, invariant.Violationf("cross_asset_transfer",
			"%s -> %s", from.AccountPath(), to.AccountPath())
	}

	// Check before get-or-create so a failed transfer leaves no trace.
	srcBal, _ := l.Balance(from)
	switch kind {
	case AvailableToAvailable:
		if !from.IsExternal() && srcBal.Available.LessThan(amount) {
			return false, nil
		}
	case AvailableToFrozen:
		if srcBal.Available.LessThan(amount) {
			return false, nil
		}
	case FrozenToAvailable:
		if srcBal.Frozen.LessThan(amount) {
			return false, nil
		}
	default:
		return false, invariant.Violationf("unknown_transfer_kind", "kind %d", kind)
	}

	src := l.account(from)
	dst := l.account(to)

	switch kind {
	case AvailableToAvailable:
		src.Available = src.Available.Sub(amount)
		dst.Available = dst.Available.Add(amount)
	case AvailableToFrozen:
		src.Available = src.Available.Sub(amount)
		dst.Frozen = dst.Frozen.Add(amount)
	case FrozenToAvailable:
		src.Frozen = src.Frozen.Sub(amount)
		dst.Available = dst.Available.Add(amount)
	}

	if amount.IsPositive() {
		l.record(kind, from, to, amount, jt)
	}
	return true, nil
}

// TryTransfer is TryTransferKeys addressed by user id.
func (l *AssetLedger) TryTransfer(kind TransferKind, fromUser, toUser int64, assetID AssetID, amount decimal.Decimal, jt JournalType) (bool, error) {
	return l.TryTransferKeys(kind, KeyFor(fromUser, assetID), KeyFor(toUser, assetID), amount, jt)
}

// Transfer is TryTransfer for funds that must already be there. Insufficient
// funds is an invariant violation.
func (l *AssetLedger) Transfer(kind TransferKind, fromUser, toUser int64, assetID AssetID, amount decimal.Decimal, jt JournalType) error {
	ok, err := l.TryTransfer(kind, fromUser, toUser, assetID, amount, jt)
	if err != nil {
		return err
	}
	if !ok {
		from := KeyFor(fromUser, assetID)
		bal, _ := l.Balance(from)
		return invariant.Violationf("insufficient_reserved",
			"%s %s: available=%s frozen=%s need=%s",
			kind, from.AccountPath(), bal.Available, bal.Frozen, amount)
	}
	return nil
}

// TryFreeze reserves amount on the user's own account.
func (l *AssetLedger) TryFreeze(userID int64, assetID AssetID, amount decimal.Decimal) (bool, error) {
	return l.TryTransfer(AvailableToFrozen, userID, userID, assetID, amount, JournalTypeFreeze)
}

// Unfreeze releases amount of the user's reservation. The reservation must exist.
func (l *AssetLedger) Unfreeze(userID int64, assetID AssetID, amount decimal.Decimal, jt JournalType) error {
	return l.Transfer(FrozenToAvailable, userID, userID, assetID, amount, jt)
}

// Deposit credits a user from the external boundary account.
func (l *AssetLedger) Deposit(userID int64, assetID AssetID, amount decimal.Decimal) error {
	return l.Transfer(AvailableToAvailable, ExternalUserID, userID, assetID, amount, JournalTypeDeposit)
}

// Withdraw debits a user to the external boundary account. Returns false
// when the available balance is insufficient.
func (l *AssetLedger) Withdraw(userID int64, assetID AssetID, amount decimal.Decimal) (bool, error) {
	return l.TryTransfer(AvailableToAvailable, userID, ExternalUserID, assetID, amount, JournalTypeWithdrawal)
}

// === Reads ===

// UserAssets returns every account the user holds, ordered by asset id.
func (l *AssetLedger) UserAssets(userID int64) []UserAsset {
	var out []UserAsset
	for k, a := range l.accounts {
		if k.Scope == AccountScopeUser && k.UserID == userID {
			out = append(out, UserAsset{Key: k, Asset: *a})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.AssetID < out[j].Key.AssetID })
	return out
}

// Snapshot returns a copy of all accounts in deterministic key order (for state hashing)
func (l *AssetLedger) Snapshot() []UserAsset {
	out := make([]UserAsset, 0, len(l.accounts))
	for k, a := range l.accounts {
		out = append(out, UserAsset{Key: k, Asset: *a})
	}
	sort.Slice(out, func(i, j int) bool { return KeyLess(out[i].Key, out[j].Key) })
	return out
}

// KeyLess orders keys by scope, user id, then asset id.
func KeyLess(a, b AccountKey) bool {
	if a.Scope != b.Scope {
		return a.Scope < b.Scope
	}
	if a.UserID != b.UserID {
		return a.UserID < b.UserID
	}
	return a.AssetID < b.AssetID
}

// Len returns the number of accounts.
func (l *AssetLedger) Len() int {
	return len(l.accounts)
}

// ComputeGlobalBalance sums available + frozen over all accounts, external
// included (should be 0 for a zero-sum ledger)
func (l *AssetLedger) ComputeGlobalBalance() map[AssetID]decimal.Decimal {
	totals := make(map[AssetID]decimal.Decimal)

	for key, a := range l.accounts {
		totals[key.AssetID] = totals[key.AssetID].Add(a.Total())
	}

	return totals
}
