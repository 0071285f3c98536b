package enums

import "testing"

func TestFirstCurrencyFallsBackInOrder(t *testing.T) {
	if got := FirstCurrency("", " JPY ", "usd"); got != CurrencyJPY {
		t.Fatalf("expected jpy, got %q", got)
	}
	if got := FirstCurrency("", ""); got != CurrencyCAD {
		t.Fatalf("expected default cad, got %q", got)
	}
}

func TestZeroDecimalCurrencies(t *testing.T) {
	for _, c := range []Currency{CurrencyJPY, CurrencyKRW, CurrencyVND, "JPY"} {
		if !c.IsZeroDecimal() {
			t.Fatalf("expected %q to be zero-decimal", c)
		}
	}
	if CurrencyCAD.IsZeroDecimal() {
		t.Fatal("cad has two decimals")
	}
}

func TestTicketStatusConsumed(t *testing.T) {
	cases := map[TicketStatus]bool{
		TicketStatusValid:     true,
		TicketStatusUsed:      true,
		TicketStatusCancelled: false,
		TicketStatusRefunded:  false,
	}
	for status, want := range cases {
		if status.Consumed() != want {
			t.Fatalf("status %q consumed=%v, want %v", status, status.Consumed(), want)
		}
	}
}

func TestParseLocationTypeDefaultsToPhysical(t *testing.T) {
	loc, err := ParseLocationType("  ")
	if err != nil || loc != LocationTypePhysical {
		t.Fatalf("expected physical, got %q %v", loc, err)
	}
	if _, err := ParseLocationType("moon"); err == nil {
		t.Fatal("expected error for unknown location type")
	}
}
