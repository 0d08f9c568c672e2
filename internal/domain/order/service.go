package order

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var phonePattern = regexp.MustCompile(`^0[567][0-9]{8}$`)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries every field-level failure found in a request.
// It is returned before any storage access.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid order: " + strings.Join(msgs, "; ")
}

// PlaceRequest is the input for committing an order. Item prices are the
// final prices resolved by the caller at request time; the service never
// re-reads them from the product rows.
type PlaceRequest struct {
	FirstName string
	LastName  string
	Phone     string
	Wilaya    string
	Address   string
	Total     decimal.Decimal
	Items     []Item
}

// Service validates checkout payloads and persists orders atomically.
type Service struct {
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service backed by the given repository.
func NewService(orders Repository) *Service {
	return &Service{orders: orders, now: time.Now}
}

// Place validates the request and commits the order with all its line items
// in one transaction. On success it returns the new order's id.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	o := &Order{
		ID:        uuid.New().String(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Wilaya:    req.Wilaya,
		Address:   req.Address,
		Total:     req.Total,
		Items:     req.Items,
		CreatedAt: s.now(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return "", errors.Wrap(err, "create order")
	}

	return o.ID, nil
}

// validate checks every field and collects all failures so the caller can
// surface them together.
func validate(req PlaceRequest) error {
	var fields []FieldError
	add := func(field, msg string) {
		fields = append(fields, FieldError{Field: field, Message: msg})
	}

	if len(strings.TrimSpace(req.FirstName)) < 2 {
		add("firstName", "must be at least 2 characters")
	}
	if len(strings.TrimSpace(req.LastName)) < 2 {
		add("lastName", "must be at least 2 characters")
	}
	if !phonePattern.MatchString(req.Phone) {
		add("phone", "must match 05/06/07 followed by 8 digits")
	}
	if !ValidWilaya(req.Wilaya) {
		add("wilaya", "unknown wilaya")
	}
	if len(strings.TrimSpace(req.Address)) < 10 {
		add("address", "must be at least 10 characters")
	}

	if len(req.Items) == 0 {
		add("items", "at least one item is required")
	}

	sum := decimal.Zero
	for i, item := range req.Items {
		if item.ProductID == "" {
			add(fmt.Sprintf("items[%d].productId", i), "required")
		}
		if item.Quantity < 1 {
			add(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
		if item.UnitPrice.IsNegative() {
			add(fmt.Sprintf("items[%d].price", i), "must not be negative")
		}
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	// The committed total must equal the sum of its line items.
	if len(req.Items) > 0 && !req.Total.Equal(sum) {
		add("totalAmount", "does not match the sum of line items")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
