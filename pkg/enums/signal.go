package enums

// Signal names an in-process bus message.
type Signal string

const (
	SignalCartUpdated    Signal = "cart_updated"
	SignalOrderPlaced    Signal = "order_placed"
	SignalOrderDelivered Signal = "order_delivered"
	SignalOrderCancelled Signal = "order_cancelled"
	SignalOrderModalOpen Signal = "order_modal_open"
	// SignalOrderModalClose pairs with SignalOrderModalOpen.
	SignalOrderModalClose Signal = "order_modal_close"
)

var validSignals = []Signal{
	SignalCartUpdated,
	SignalOrderPlaced,
	SignalOrderDelivered,
	SignalOrderCancelled,
	SignalOrderModalOpen,
	SignalOrderModalClose,
}

// IsValid reports whether the value is a known Signal.
func (s Signal) IsValid() bool {
	for _, candidate := range validSignals {
		if candidate == s {
			return true
		}
	}
	return false
}

// CarriesOrderID reports whether the signal payload includes an order id.
func (s Signal) CarriesOrderID() bool {
	switch s {
	case SignalOrderPlaced, SignalOrderDelivered, SignalOrderCancelled:
		return true
	}
	return false
}

// Signals returns every known signal.
func Signals() []Signal {
	out := make([]Signal, len(validSignals))
	copy(out, validSignals)
	return out
}
