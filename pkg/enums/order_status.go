package enums

import "fmt"

// OrderStatus tracks the lifecycle of a customer order as stored by the backend.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPlaced         OrderStatus = "placed"
	OrderStatusAccepted       OrderStatus = "accepted"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusCutting        OrderStatus = "cutting"
	OrderStatusPacking        OrderStatus = "packing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPlaced,
	OrderStatusAccepted,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusCutting,
	OrderStatusPacking,
	OrderStatusReady,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// CustomerBarStages is the subsequence rendered by the customer progress bar.
var CustomerBarStages = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusPacking,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status change is expected.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// ActiveOrderStatuses returns every non-terminal status in display order.
func ActiveOrderStatuses() []OrderStatus {
	out := make([]OrderStatus, 0, len(validOrderStatuses))
	for _, candidate := range validOrderStatuses {
		if !candidate.IsTerminal() {
			out = append(out, candidate)
		}
	}
	return out
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
