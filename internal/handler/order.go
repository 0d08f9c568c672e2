package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tahat-market/shop-api/internal/domain/order"
)

// orderItemRequest is one checkout line. Price is the final unit price the
// client resolved at request time; it is committed as-is to preserve
// price-at-time-of-order semantics.
type orderItemRequest struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderRequest struct {
	FirstName   string             `json:"firstName"`
	LastName    string             `json:"lastName"`
	Phone       string             `json:"phone"`
	Wilaya      string             `json:"wilaya"`
	Address     string             `json:"address"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Items       []orderItemRequest `json:"items"`
}

type orderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	items := make([]order.Item, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.Item{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		}
	}

	orderID, err := h.orders.Place(r.Context(), order.PlaceRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Wilaya:    req.Wilaya,
		Address:   req.Address,
		Total:     req.TotalAmount,
		Items:     items,
	})
	if err != nil {
		var vErr *order.ValidationError
		if errors.As(err, &vErr) {
			fields := make(map[string]string, len(vErr.Fields))
			for _, f := range vErr.Fields {
				fields[f.Field] = f.Message
			}
			writeFieldErrors(w, fields)
			return
		}
		internalError(w, r, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, orderResponse{Success: true, OrderID: orderID})
}
