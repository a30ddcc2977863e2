package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// OrderStore persists order records. Terminal orders are never deleted;
// they remain for audit.
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore creates an OrderStore over the given database.
func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Save inserts a new order row.
func (s *OrderStore) Save(ctx context.Context, o *domain.Order) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (order_id,pair_name,side,price,quantity,creator,signature,status,created_at)
VALUES (?,?,?,?,?,?,?,?,?)
`, o.OrderID, o.PairName, string(o.Side), o.Price.String(), o.Quantity.String(),
		o.Creator, o.Signature, string(o.Status), o.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// Get retrieves an order by id. Returns domain.ErrOrderNotFound if
// there is no such row.
func (s *OrderStore) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT order_id,pair_name,side,price,quantity,creator,signature,status,created_at
FROM orders WHERE order_id=?
`, orderID)

	o, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

// ListOpenByCreator returns a creator's orders still resting on a book,
// oldest first. Partially filled makers keep their remainder on the
// book, so they count as open here.
func (s *OrderStore) ListOpenByCreator(ctx context.Context, creator string) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT order_id,pair_name,side,price,quantity,creator,signature,status,created_at
FROM orders WHERE creator=? AND status IN (?,?) ORDER BY created_at ASC
`, creator, string(domain.OrderStatusOpen), string(domain.OrderStatusPartiallyFilled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus transitions an order's status. Returns
// domain.ErrOrderNotFound when the order does not exist.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status=? WHERE order_id=?`,
		string(status), orderID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func scanOrder(scan func(dest ...any) error) (*domain.Order, error) {
	var o domain.Order
	var side, price, quantity, status, createdAt string
	if err := scan(&o.OrderID, &o.PairName, &side, &price, &quantity,
		&o.Creator, &o.Signature, &status, &createdAt); err != nil {
		return nil, err
	}

	var err error
	o.Side = domain.Side(side)
	o.Status = domain.OrderStatus(status)
	if o.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("order price %q: %w", price, err)
	}
	if o.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("order quantity %q: %w", quantity, err)
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &o, nil
}
