package core

import (
	"crypto/sha256"
	"encoding/binary"
)

const genesisPrefix = "MatchCore:genesis:v1:"

// GenesisHash is the chain root for a market. Two instances trading
// different markets never share a chain, even over identical events.
func GenesisHash(market string) [32]byte {
	return sha256.Sum256([]byte(genesisPrefix + market))
}

// StateHasher chains state_hash[N] = SHA-256(state_hash[N-1] || seq LE || digest).
type StateHasher struct {
	tip [32]byte
}

func NewStateHasher(market string) *StateHasher {
	return &StateHasher{tip: GenesisHash(market)}
}

// ComputeHash extends the chain by one event and returns the new tip.
func (h *StateHasher) ComputeHash(sequence int64, stateDigest []byte) [32]byte {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], uint64(sequence))

	d := sha256.New()
	d.Write(h.tip[:])
	d.Write(seq[:])
	d.Write(stateDigest)
	d.Sum(h.tip[:0])
	return h.tip
}

// GetPrevHash returns the current chain tip.
func (h *StateHasher) GetPrevHash() [32]byte {
	return h.tip
}
