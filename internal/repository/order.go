package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tahat-market/shop-api/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, first_name, last_name, phone, wilaya, address, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)`

	getOrderSQL = `SELECT id, first_name, last_name, phone, wilaya, address, total, created_at
		FROM orders WHERE id = $1`

	getOrderItemsSQL = `SELECT product_id, quantity, unit_price FROM order_items WHERE order_id = $1`
)

// ErrOrderNotFound is returned when a requested order does not exist.
var ErrOrderNotFound = errors.New("order not found")

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order row and every item row in one transaction, so a
// failed item insert can never leave an orphaned order behind.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.FirstName, o.LastName, o.Phone, o.Wilaya, o.Address, o.Total, o.CreatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "insert order")
		}

		for _, item := range o.Items {
			_, err := tx.Exec(ctx, insertOrderItemSQL,
				uuid.New().String(), o.ID, item.ProductID, item.Quantity, item.UnitPrice,
			)
			if err != nil {
				return errors.Wrap(err, "insert order item")
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "create order")
	}
	return nil
}

// GetByID returns one order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}

	o, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (order.Order, error) {
		var o order.Order
		err := row.Scan(&o.ID, &o.FirstName, &o.LastName, &o.Phone, &o.Wilaya,
			&o.Address, &o.Total, &o.CreatedAt)
		return o, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}

	itemRows, err := r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order items")
	}
	o.Items, err = pgx.CollectRows(itemRows, func(row pgx.CollectableRow) (order.Item, error) {
		var item order.Item
		err := row.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice)
		return item, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "get order items")
	}

	return &o, nil
}
