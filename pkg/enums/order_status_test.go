package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("out_for_delivery")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != OrderStatusOutForDelivery {
		t.Fatalf("expected out_for_delivery, got %s", got)
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !OrderStatusDelivered.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatalf("delivered and cancelled must be terminal")
	}
	for _, status := range ActiveOrderStatuses() {
		if status.IsTerminal() {
			t.Fatalf("active list contains terminal status %s", status)
		}
	}
	if len(ActiveOrderStatuses()) != len(validOrderStatuses)-2 {
		t.Fatalf("unexpected active status count %d", len(ActiveOrderStatuses()))
	}
}

func TestParseChangeOpCaseInsensitive(t *testing.T) {
	op, err := ParseChangeOp("update")
	if err != nil || op != ChangeOpUpdate {
		t.Fatalf("expected UPDATE, got %q err=%v", op, err)
	}
	if _, err := ParseChangeOp("truncate"); err == nil {
		t.Fatalf("expected error for truncate")
	}
}

func TestRoleIsStaff(t *testing.T) {
	if RoleCustomer.IsStaff() {
		t.Fatalf("customer is not staff")
	}
	for _, role := range []Role{RoleKitchen, RoleDelivery, RoleAdmin} {
		if !role.IsStaff() {
			t.Fatalf("%s should be staff", role)
		}
	}
}

func TestParseRole(t *testing.T) {
	got, err := ParseRole("kitchen")
	if err != nil || got != RoleKitchen {
		t.Fatalf("expected kitchen, got %q err=%v", got, err)
	}
	if !got.IsStaff() || RoleCustomer.IsStaff() {
		t.Fatalf("staff classification is wrong")
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestSignalsCarryingOrderIDs(t *testing.T) {
	for _, s := range Signals() {
		want := s == SignalOrderPlaced || s == SignalOrderDelivered || s == SignalOrderCancelled
		if s.CarriesOrderID() != want {
			t.Fatalf("%s: CarriesOrderID=%v", s, s.CarriesOrderID())
		}
	}
	if Signal("order_shipped").IsValid() {
		t.Fatalf("unknown signal reported valid")
	}
}
