package core_test

import (
	"testing"

	"MatchCore/internal/core"
)

func TestStateHasher_ChainIsPerMarket(t *testing.T) {
	if core.GenesisHash("BTC-USD") == core.GenesisHash("ETH-USD") {
		t.Fatal("genesis hashes of different markets collide")
	}

	a := core.NewStateHasher("BTC-USD")
	b := core.NewStateHasher("ETH-USD")
	if a.ComputeHash(1, []byte("digest")) == b.ComputeHash(1, []byte("digest")) {
		t.Error("identical events on different markets produced the same hash")
	}
}

func TestStateHasher_Deterministic(t *testing.T) {
	a := core.NewStateHasher("BTC-USD")
	b := core.NewStateHasher("BTC-USD")

	for seq := int64(1); seq <= 3; seq++ {
		ha := a.ComputeHash(seq, []byte{byte(seq)})
		hb := b.ComputeHash(seq, []byte{byte(seq)})
		if ha != hb {
			t.Fatalf("seq %d: hashes diverged", seq)
		}
		if a.GetPrevHash() != ha {
			t.Fatalf("seq %d: tip not advanced", seq)
		}
	}

	if a.ComputeHash(4, []byte("x")) == b.ComputeHash(4, []byte("y")) {
		t.Error("different digests produced the same hash")
	}
}
