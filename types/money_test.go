package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"EUR", EUR(19900), 19900, "eur", "€199.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"In JPY", In("JPY", 100), 100, "jpy", "¥100"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Remainder zero", func() Money { return USD(900).Remainder(USD(300)) }, USD(0)},
		{"Remainder nonzero", func() Money { return USD(1000).Remainder(USD(300)) }, USD(100)},
		{"Min left", func() Money { return USD(100).Min(USD(200)) }, USD(100)},
		{"Min right", func() Money { return USD(300).Min(USD(200)) }, USD(200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyIsMultipleOf(t *testing.T) {
	tests := []struct {
		name string
		m    Money
		unit Money
		want bool
	}{
		{"exact multiple", USD(900), USD(300), true},
		{"not a multiple", USD(1000), USD(300), false},
		{"zero amount", USD(0), USD(300), true},
		{"unit of one", USD(37), USD(1), true},
		{"currency mismatch", USD(900), EUR(300), false},
		{"non-positive unit", USD(900), USD(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.IsMultipleOf(tt.unit); got != tt.want {
				t.Errorf("IsMultipleOf: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	_ = USD(100).Add(EUR(100))
}

func TestMoneyRemainderNonPositiveUnit(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for non-positive unit")
		}
	}()

	_ = USD(100).Remainder(USD(0))
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Money
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", USD(100), USD(100), false, false, true},
		{"Less", USD(50), USD(100), true, false, false},
		{"Greater", USD(200), USD(100), false, true, false},
		{"Zero equal", USD(0), Zero("usd"), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	original := USD(12345)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Money
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(original) {
		t.Errorf("round trip: got %v, want %v", decoded, original)
	}
}

func TestSum(t *testing.T) {
	got := Sum("usd", USD(100), USD(200), USD(300))
	if !got.Equal(USD(600)) {
		t.Errorf("Sum: got %v, want %v", got, USD(600))
	}

	empty := Sum("eur")
	if !empty.Equal(Zero("eur")) {
		t.Errorf("Sum of nothing: got %v, want %v", empty, Zero("eur"))
	}
}
