// Package logkey holds the structured logging attribute names used across
// handlers, so log queries match on one spelling.
package logkey

const (
	TraceID   = "trace_id"
	Error     = "error"
	UserID    = "user_id"
	ProductID = "product_id"
	OrderID   = "order_id"
)
