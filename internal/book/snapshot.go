package book

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// SnapshotEntry is the serialized form of one resting order.
type SnapshotEntry struct {
	OrderID   string          `json:"order_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Seq       uint64          `json:"seq"`
	CreatedAt time.Time       `json:"created_at"`
}

// Snapshot is the full serialized state of a book: both ledgers in
// priority order plus the sequence counter. It is the sole durable
// representation used to rehydrate a book after restart, so restoring
// it must reproduce identical matching behavior.
type Snapshot struct {
	PairName string          `json:"pair"`
	Bids     []SnapshotEntry `json:"bids"`
	Asks     []SnapshotEntry `json:"asks"`
	NextSeq  uint64          `json:"next_seq"`
}

// Snapshot captures the book's current state under the book lock.
func (b *Book) Snapshot() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Snapshot{
		PairName: b.pairName,
		NextSeq:  b.nextSeq,
	}
	b.bids.Walk(func(e Entry) bool {
		s.Bids = append(s.Bids, snapshotEntry(e))
		return true
	})
	b.asks.Walk(func(e Entry) bool {
		s.Asks = append(s.Asks, snapshotEntry(e))
		return true
	})
	return s
}

// Restore replaces the book's state with the snapshot's. Entries keep
// their original sequence numbers, so within-level FIFO order survives
// the round trip exactly.
func (b *Book) Restore(s *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = NewLedger(domain.SideBuy)
	b.asks = NewLedger(domain.SideSell)
	for _, se := range s.Bids {
		b.bids.Insert(restoredEntry(se, domain.SideBuy))
	}
	for _, se := range s.Asks {
		b.asks.Insert(restoredEntry(se, domain.SideSell))
	}
	b.nextSeq = s.NextSeq
	if b.nextSeq == 0 {
		b.nextSeq = 1
	}
}

// Marshal encodes the snapshot for the snapshot store.
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes a stored snapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func snapshotEntry(e Entry) SnapshotEntry {
	return SnapshotEntry{
		OrderID:   e.OrderID,
		Price:     e.Price,
		Quantity:  e.Quantity,
		Seq:       e.Seq,
		CreatedAt: e.CreatedAt,
	}
}

func restoredEntry(se SnapshotEntry, side domain.Side) Entry {
	return Entry{
		OrderID:   se.OrderID,
		Side:      side,
		Price:     se.Price,
		Quantity:  se.Quantity,
		Seq:       se.Seq,
		CreatedAt: se.CreatedAt,
	}
}
