package domain

import (
	"fmt"
	"time"
)

// Pair is the immutable configuration of one trading pair. Created once,
// referenced by the order book and by settlement batches.
type Pair struct {
	ID               int64
	PairName         string // "<base>-<quote>", e.g. "bazed-musd"
	BaseTokenSymbol  string
	QuoteTokenSymbol string
	BaseToken        string // base token contract address
	QuoteToken       string // quote token contract address
	BaseTokenType    int64
	QuoteTokenType   int64
	TokenID          *int64 // set for multi-token (ERC-1155 style) contracts
	CreatedAt        time.Time
}

// PairNameFor derives the canonical pair name from its token symbols.
func PairNameFor(baseSymbol, quoteSymbol string) string {
	return fmt.Sprintf("%s-%s", baseSymbol, quoteSymbol)
}
