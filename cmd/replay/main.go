package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"MatchCore/internal/core"
	"MatchCore/internal/eventlog"
	"MatchCore/internal/ingestion"
	"MatchCore/internal/observability"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Println("Usage: replay [expected_state_hash]")
		fmt.Println("  Replays the event log into a fresh core and prints the final state hash.")
		fmt.Println("  With an expected hash, exits non-zero on mismatch.")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  MATCH_EVENT_LOG_DIR - event log directory (default: data/eventlog)")
		fmt.Println("  MATCH_MARKET, MATCH_BASE_ASSET, MATCH_QUOTE_ASSET")
		os.Exit(1)
	}

	logger := observability.NewLogger("replay")

	dir := envOrDefault("MATCH_EVENT_LOG_DIR", "data/eventlog")
	evlog, err := eventlog.Open(dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("open event log")
	}
	defer evlog.Close()

	engine, err := core.NewTradingEngine(core.Config{
		Market:              envOrDefault("MATCH_MARKET", "BTC-USD"),
		BaseAsset:           envOrDefault("MATCH_BASE_ASSET", "BTC"),
		QuoteAsset:          envOrDefault("MATCH_QUOTE_ASSET", "USD"),
		GlobalCheckInterval: 1,
	}, nil, nil, logger.Level(zerolog.WarnLevel), nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("create engine")
	}

	n, err := ingestion.ReplayLog(evlog, engine, logger, nil)
	if err != nil {
		logger.Fatal().Err(err).Int64("replayed", n).Msg("replay failed")
	}

	invErr := engine.CheckInvariants()
	hash := engine.StateHash()
	got := hex.EncodeToString(hash[:])

	fmt.Printf("events:        %d\n", n)
	fmt.Printf("last_sequence: %d\n", engine.LastSequence())
	fmt.Printf("open_orders:   %d\n", engine.OpenOrderCount())
	fmt.Printf("state_hash:    %s\n", got)
	if invErr != nil {
		fmt.Printf("invariants:    FAILED (%v)\n", invErr)
		os.Exit(2)
	}
	fmt.Println("invariants:    ok")

	if len(os.Args) > 1 && os.Args[1] != got {
		fmt.Fprintf(os.Stderr, "state hash mismatch: expected %s\n", os.Args[1])
		os.Exit(3)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
