package watch

import (
	"time"

	"github.com/freshcut/chickenshop/internal/feed"
)

// Policy says what a watcher listens to and how often it polls. A policy
// without filters is poll-only.
type Policy struct {
	Name         string
	Filters      []feed.Filter
	PollInterval time.Duration
}

func KitchenPolicy(interval time.Duration) Policy {
	return Policy{
		Name:         "kitchen",
		Filters:      []feed.Filter{{Table: feed.TableOrders}},
		PollInterval: interval,
	}
}

func DeliveryPolicy(interval time.Duration) Policy {
	return Policy{
		Name:         "delivery",
		Filters:      []feed.Filter{{Table: feed.TableOrders}},
		PollInterval: interval,
	}
}

func SalesPolicy(interval time.Duration) Policy {
	return Policy{
		Name: "sales",
		Filters: []feed.Filter{
			{Table: feed.TableOrders},
			{Table: feed.TableDailySales},
		},
		PollInterval: interval,
	}
}

// TrackingPolicy follows one customer's orders.
func TrackingPolicy(userID string, interval time.Duration) Policy {
	return Policy{
		Name: "tracking",
		Filters: []feed.Filter{
			{Table: feed.TableOrders, Column: feed.ColumnUserID, Value: userID},
		},
		PollInterval: interval,
	}
}

// StatusBarPolicy polls only; the status bar never depends on the feed.
func StatusBarPolicy(interval time.Duration) Policy {
	return Policy{Name: "status_bar", PollInterval: interval}
}
