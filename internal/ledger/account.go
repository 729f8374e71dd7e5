package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	// External accounts are the deposit/withdrawal boundary. Their available
	// balance goes negative as funds enter the exchange, so the ledger stays zero-sum.
	AccountScopeExternal
)

// ExternalUserID addresses the external boundary account in transfer events.
const ExternalUserID int64 = 0

// AssetID maps asset strings to numeric IDs for performance
type AssetID uint16

var (
	assetToID = map[string]AssetID{
		"USD":  1,
		"USDT": 2,
		"BTC":  3,
		"ETH":  4,
	}
	idToAsset = map[AssetID]string{
		1: "USD",
		2: "USDT",
		3: "BTC",
		4: "ETH",
	}
)

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func (id AssetID) String() string {
	if name, ok := idToAsset[id]; ok {
		return name
	}
	return fmt.Sprintf("asset(%d)", uint16(id))
}

// AccountKey identifies one (owner, asset) balance record.
type AccountKey struct {
	Scope   AccountScope
	UserID  int64
	AssetID AssetID
}

// NewUserAccountKey creates a key for user accounts
func NewUserAccountKey(userID int64, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeUser,
		UserID:  userID,
		AssetID: assetID,
	}
}

// NewExternalAccountKey creates a key for the external boundary account
func NewExternalAccountKey(assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		AssetID: assetID,
	}
}

// IsExternal reports whether the key addresses the boundary account.
func (k AccountKey) IsExternal() bool {
	return k.Scope == AccountScopeExternal
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopeUser:
		return fmt.Sprintf("user:%d:%s", k.UserID, k.AssetID)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s", k.AssetID)
	}
	return "unknown"
}

// Asset is one account's holdings: spendable and reserved sub-balances.
type Asset struct {
	Available decimal.Decimal
	Frozen    decimal.Decimal
}

// Total returns available + frozen.
func (a Asset) Total() decimal.Decimal {
	return a.Available.Add(a.Frozen)
}

// UserAsset is a read view of one account.
type UserAsset struct {
	Key AccountKey
	Asset
}
