package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
	OrderCancelled  OrderStatus = "cancelled"
)

// Orders are never deleted, only transitioned. failed, cancelled and
// completed are terminal.
type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	CartID        string          `json:"cart_id"`
	Status        OrderStatus     `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Items         []OrderItem     `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Snapshot  ProductSnapshot `json:"product_snapshot"`
}

// ProductSnapshot is the denormalized product state captured at checkout so
// historical orders stay unaffected by later catalog edits.
type ProductSnapshot struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}
