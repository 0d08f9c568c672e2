// Package order implements the checkout commit path: validating a customer's
// delivery details and line items, and persisting the order atomically with
// price-at-commit snapshots.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a committed purchase. Orders are created once, atomically with
// their items, and never mutated afterwards.
type Order struct {
	ID        string
	FirstName string
	LastName  string
	Phone     string
	Wilaya    string
	Address   string
	Total     decimal.Decimal
	Items     []Item
	CreatedAt time.Time
}

// Item is one order line. UnitPrice is the final price captured at commit
// time; later edits to the product never touch it.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Repository defines persistence operations for orders. Create must write the
// order row and all item rows in a single transaction: both or neither.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
}
