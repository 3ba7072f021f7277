package models

// SettlementMessage asks the settlement worker to debit the wallet backing
// an order. The payload carries only the order id; all state is re-read
// under lock at processing time.
type SettlementMessage struct {
	OrderID string `json:"order_id"`
}

const (
	IndexActionIndex  = "index"
	IndexActionUpdate = "update"
	IndexActionDelete = "delete"
)

// IndexSyncMessage propagates a product mutation into the search index. The
// consumer re-reads the product at consume time, so the message carries no
// product data.
type IndexSyncMessage struct {
	Action    string `json:"action"`
	ProductID string `json:"product_id"`
}
