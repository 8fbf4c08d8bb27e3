package tracker

import (
	"strings"

	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
)

// Modal is the full-screen notice a controller is currently showing.
type Modal string

const (
	ModalNone      Modal = ""
	ModalDelivered Modal = "delivered"
	ModalCancelled Modal = "cancelled"
)

// State is the rendered status bar for one connection.
type State struct {
	SessionID       string              `json:"session_id,omitempty"`
	Visible         bool                `json:"visible"`
	Order           *models.Order       `json:"order,omitempty"`
	Stages          []enums.OrderStatus `json:"stages"`
	ActiveIndex     int                 `json:"active_index"`
	ProgressPercent float64             `json:"progress_percent"`
	Modal           Modal               `json:"modal,omitempty"`
	ForceFull       bool                `json:"force_full"`
	DeliveredWindow bool                `json:"delivered_window"`
	HiddenByModal   bool                `json:"hidden_by_modal"`
}

// ActiveIndex places status on the customer bar; unknown statuses sit on
// the first stage.
func ActiveIndex(status enums.OrderStatus) int {
	for i, s := range enums.CustomerBarStages {
		if s == status {
			return i
		}
	}
	return 0
}

// ProgressPercent fills the bar proportionally, or completely when the order
// is delivered or a pulse is running.
func ProgressPercent(status enums.OrderStatus, forceFull bool) float64 {
	if status == enums.OrderStatusDelivered || forceFull {
		return 100
	}
	last := len(enums.CustomerBarStages) - 1
	if last <= 0 {
		return 0
	}
	return float64(ActiveIndex(status)) / float64(last) * 100
}

// Visible applies the bar's visibility rule.
func Visible(userID string, order *models.Order, deliveredWindow bool, modalDepth int) bool {
	if userID == "" || order == nil {
		return false
	}
	if order.Status == enums.OrderStatusDelivered && !deliveredWindow {
		return false
	}
	if order.Status == enums.OrderStatusCancelled {
		return false
	}
	return modalDepth == 0
}

// IsStaffRoute reports whether route sits under one of the staff prefixes.
func IsStaffRoute(route string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p != "" && strings.HasPrefix(route, p) {
			return true
		}
	}
	return false
}
