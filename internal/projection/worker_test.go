package projection

import (
	"testing"

	"github.com/shopspring/decimal"

	"MatchCore/internal/ledger"
)

func TestBalanceRows(t *testing.T) {
	usd, _ := ledger.GetAssetID("USD")
	balances := []ledger.UserAsset{
		{Key: ledger.NewExternalAccountKey(usd), Asset: ledger.Asset{Available: decimal.NewFromInt(-150)}},
		{Key: ledger.NewUserAccountKey(42, usd), Asset: ledger.Asset{
			Available: decimal.RequireFromString("100.5"),
			Frozen:    decimal.RequireFromString("49.5"),
		}},
	}

	rows := BalanceRows(balances)
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].UserID != 0 || rows[0].AccountPath != "external:USD" || rows[0].Available != "-150" {
		t.Errorf("external row: %+v", rows[0])
	}
	if rows[1].UserID != 42 || rows[1].AccountPath != "user:42:USD" {
		t.Errorf("user row: %+v", rows[1])
	}
	if rows[1].Available != "100.5" || rows[1].Frozen != "49.5" {
		t.Errorf("amounts: %+v", rows[1])
	}
	if rows[1].AssetID != int32(usd) {
		t.Errorf("asset id: got %d", rows[1].AssetID)
	}
}
