// Package feed fans row-level change notifications from the backend out to
// in-process subscribers.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/freshcut/chickenshop/pkg/enums"
)

const (
	TableOrders     = "orders"
	TableDailySales = "daily_sales"

	ColumnUserID = "user_id"
)

// Change is one row-level change reported by the backend.
type Change struct {
	Table  string         `json:"table"`
	Op     enums.ChangeOp `json:"op"`
	RowID  string         `json:"id"`
	UserID string         `json:"user_id,omitempty"`
}

type wireChange struct {
	Table  string  `json:"table"`
	Op     string  `json:"op"`
	ID     *string `json:"id"`
	UserID *string `json:"user_id"`
}

// Decode parses a notification payload as written by the notify_row_change trigger.
func Decode(payload []byte) (Change, error) {
	var w wireChange
	if err := json.Unmarshal(payload, &w); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	table := strings.TrimSpace(w.Table)
	if table == "" {
		return Change{}, fmt.Errorf("decode change: table missing")
	}
	op, err := enums.ParseChangeOp(w.Op)
	if err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	c := Change{Table: table, Op: op}
	if w.ID != nil {
		c.RowID = *w.ID
	}
	if w.UserID != nil {
		c.UserID = *w.UserID
	}
	return c, nil
}

// Filter selects changes on Table, optionally narrowed to rows whose Column
// equals Value. user_id is the only column the feed carries.
type Filter struct {
	Table  string
	Column string
	Value  string
}

func (f Filter) Matches(c Change) bool {
	if f.Table != c.Table {
		return false
	}
	switch f.Column {
	case "":
		return true
	case ColumnUserID:
		return c.UserID == f.Value
	default:
		return false
	}
}

func (f Filter) validate() error {
	if strings.TrimSpace(f.Table) == "" {
		return fmt.Errorf("filter table required")
	}
	if f.Column != "" && f.Column != ColumnUserID {
		return fmt.Errorf("unsupported filter column %q", f.Column)
	}
	return nil
}

func matchesAny(filters []Filter, c Change) bool {
	for _, f := range filters {
		if f.Matches(c) {
			return true
		}
	}
	return false
}
