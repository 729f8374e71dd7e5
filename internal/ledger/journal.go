package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferKind selects which sub-balances a transfer debits and credits.
type TransferKind int8

const (
	AvailableToAvailable TransferKind = iota + 1
	AvailableToFrozen
	FrozenToAvailable
)

func (k TransferKind) String() string {
	switch k {
	case AvailableToAvailable:
		return "AVAILABLE_TO_AVAILABLE"
	case AvailableToFrozen:
		return "AVAILABLE_TO_FROZEN"
	case FrozenToAvailable:
		return "FROZEN_TO_AVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeFreeze JournalType = iota
	JournalTypePriceImprovementRefund
	JournalTypeTradeSettlement
	JournalTypeCancelRelease
	JournalTypeDeposit
	JournalTypeWithdrawal
	JournalTypeTransfer
)

func (t JournalType) String() string {
	switch t {
	case JournalTypeFreeze:
		return "freeze"
	case JournalTypePriceImprovementRefund:
		return "price_improvement_refund"
	case JournalTypeTradeSettlement:
		return "trade_settlement"
	case JournalTypeCancelRelease:
		return "cancel_release"
	case JournalTypeDeposit:
		return "deposit"
	case JournalTypeWithdrawal:
		return "withdrawal"
	case JournalTypeTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// journalNamespace seeds deterministic journal and batch ids.
var journalNamespace = uuid.MustParse("7d4c1c52-9a4e-4a43-9bb8-5b1f3f0e2a61")

// Journal represents a single double-entry movement between two sub-balances.
type Journal struct {
	JournalID   uuid.UUID
	BatchID     uuid.UUID
	Sequence    int64
	Kind        TransferKind
	From        AccountKey
	To          AccountKey
	AssetID     AssetID
	Amount      decimal.Decimal // ALWAYS positive
	JournalType JournalType
	Timestamp   int64 // event timestamp (epoch microseconds)
}

// Batch groups the journals produced by one event.
type Batch struct {
	BatchID   uuid.UUID
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// BatchID derives the batch id for a sequence; replays produce identical ids.
func BatchID(sequence int64) uuid.UUID {
	return uuid.NewSHA1(journalNamespace, []byte(fmt.Sprintf("batch:%d", sequence)))
}

// JournalID derives the id of the n-th journal in a sequence's batch.
func JournalID(sequence int64, n int) uuid.UUID {
	return uuid.NewSHA1(journalNamespace, []byte(fmt.Sprintf("journal:%d:%d", sequence, n)))
}

// Validate ensures the batch is well-formed.
// Each journal moves one positive amount out of one sub-balance and into
// another, so every entry is balanced by construction.
func (b *Batch) Validate() error {
	for _, j := range b.Journals {
		if !j.Amount.IsPositive() {
			return fmt.Errorf("journal %s has non-positive amount: %s", j.JournalID, j.Amount)
		}

		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}

		if j.From.AssetID != j.AssetID || j.To.AssetID != j.AssetID {
			return fmt.Errorf("journal %s crosses assets", j.JournalID)
		}

		// Only freeze/unfreeze may stay inside one account.
		if j.From == j.To && j.Kind == AvailableToAvailable {
			return fmt.Errorf("journal %s is a self-transfer", j.JournalID)
		}
	}

	return nil
}

// Accounts returns the distinct accounts touched by the batch, in first-seen order.
func (b *Batch) Accounts() []AccountKey {
	seen := make(map[AccountKey]bool)
	var keys []AccountKey
	for _, j := range b.Journals {
		for _, k := range [2]AccountKey{j.From, j.To} {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}
