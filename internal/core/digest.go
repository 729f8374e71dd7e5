package core

import (
	"sort"

	"MatchCore/internal/ledger"
	fpmath "MatchCore/internal/math"
)

// computeStateDigest creates canonical bytes for the state hash: every
// account and order the event touched, then the market price and order-id cursor.
func (e *TradingEngine) computeStateDigest(balances []ledger.UserAsset, orders []OrderUpdate) []byte {
	digest := make([]byte, 0, (len(balances)+len(orders))*64+32)

	for _, b := range balances {
		// Append account path
		path := b.Key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, path...)

		digest = append(digest, fpmath.CanonicalBytes(b.Available)...)
		digest = append(digest, fpmath.CanonicalBytes(b.Frozen)...)
	}

	for _, o := range orders {
		digest = appendInt64LE(digest, o.ID)
		digest = append(digest, fpmath.CanonicalBytes(o.UnfilledQuantity)...)
		if o.Cancelled {
			digest = append(digest, 1)
		} else {
			digest = append(digest, 0)
		}
	}

	digest = append(digest, fpmath.CanonicalBytes(e.matcher.MarketPrice())...)
	digest = appendInt64LE(digest, e.nextOrderID)

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

func sortKeys(keys []ledger.AccountKey) {
	sort.Slice(keys, func(i, j int) bool { return ledger.KeyLess(keys[i], keys[j]) })
}
