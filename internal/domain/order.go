package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side indicates whether an order buys or sells the base token.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the side an order matches against.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus represents the lifecycle state of an order. Terminal
// states (matched, cancelled) are retained forever for audit.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusMatched         OrderStatus = "matched"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Order represents a limit order submitted against a trading pair.
// The matching engine decrements remaining quantity; status transitions
// are owned by the settlement orchestrator and the cancellation path.
type Order struct {
	OrderID   string
	PairName  string
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Creator   string
	Signature string
	Status    OrderStatus
	CreatedAt time.Time
}

// NewOrderID builds the conventional order identifier
// pair:creator:side:quantity:@price:unix-ms. The identifier doubles as
// the message a creator signs, so its layout must stay stable.
func NewOrderID(pairName, creator string, side Side, quantity, price decimal.Decimal, at time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s:@%s:%d",
		pairName, creator, side, quantity.String(), price.String(), at.UnixMilli())
}

// PairFromOrderID extracts the pair segment of an order identifier.
// Returns "" for identifiers that don't follow the convention.
func PairFromOrderID(orderID string) string {
	idx := strings.IndexByte(orderID, ':')
	if idx <= 0 {
		return ""
	}
	return orderID[:idx]
}
