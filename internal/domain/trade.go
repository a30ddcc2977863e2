package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus tracks the settlement lifecycle of a matched batch.
// A trade becomes open once the transaction is submitted; confirmation
// tracking happens outside this process.
type TradeStatus string

const (
	TradeStatusPending TradeStatus = "pending"
	TradeStatusOpen    TradeStatus = "open"
	TradeStatusFailed  TradeStatus = "failed"
)

// TradeLeg is one order's contribution to a settlement batch.
type TradeLeg struct {
	OrderID   string
	User      string
	Size      decimal.Decimal
	Signature string
}

// TradeBatch aggregates the fills of a single match event into one
// settlement contract call. Bids and asks list the buy-side and
// sell-side legs respectively. UnitPrice is the price of the first fill
// of the triggering submit; when a taker sweeps multiple levels the
// batch still reports that single price.
type TradeBatch struct {
	Pair      *Pair
	Bids      []TradeLeg
	Asks      []TradeLeg
	TotalSize decimal.Decimal
	UnitPrice decimal.Decimal
}

// Trade is the persisted record of one settlement attempt. Rows are
// kept regardless of outcome for audit and retry analysis.
type Trade struct {
	TradeID     string
	TxHash      string
	SubmittedAt time.Time
	CallArgs    string // JSON of the batch handed to the settlement contract
	Status      TradeStatus
}
