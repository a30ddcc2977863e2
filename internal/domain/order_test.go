package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewOrderID_Format(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	id := NewOrderID("bazed-musd", "0xabc", SideBuy,
		decimal.NewFromInt(4), decimal.RequireFromString("100.5"), at)

	want := "bazed-musd:0xabc:buy:4:@100.5:1700000000000"
	if id != want {
		t.Errorf("NewOrderID() = %q, want %q", id, want)
	}
}

func TestPairFromOrderID(t *testing.T) {
	id := NewOrderID("bazed-musd", "0xabc", SideSell,
		decimal.NewFromInt(10), decimal.NewFromInt(100), time.Now())

	if got := PairFromOrderID(id); got != "bazed-musd" {
		t.Errorf("PairFromOrderID() = %q, want %q", got, "bazed-musd")
	}
}

func TestPairFromOrderID_Malformed(t *testing.T) {
	for _, id := range []string{"", ":rest", "no-colons-here"} {
		got := PairFromOrderID(id)
		if strings.Contains(id, ":") && id[0] != ':' {
			continue
		}
		if got != "" {
			t.Errorf("PairFromOrderID(%q) = %q, want empty", id, got)
		}
	}
}

func TestSide_Opposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("buy should oppose sell")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("sell should oppose buy")
	}
}
