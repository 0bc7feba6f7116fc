package money

import (
	"errors"
	"math"
	"testing"
)

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return usd(100).Add(usd(200)) }, usd(300)},
		{"Sub", func() Money { return usd(500).Sub(usd(200)) }, usd(300)},
		{"Sub below zero", func() Money { return usd(100).Sub(usd(250)) }, usd(-150)},
		{"Neg", func() Money { return usd(100).Neg() }, usd(-100)},
		{"Abs negative", func() Money { return usd(-100).Abs() }, usd(100)},
		{"Min", func() Money { return usd(30).Min(usd(20)) }, usd(20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); got != tt.expected {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyPanics(t *testing.T) {
	tests := []struct {
		name string
		op   func()
	}{
		{"currency mismatch", func() { _ = usd(100).Add(New(100, "EUR")) }},
		{"overflow", func() { _ = usd(math.MaxInt64).Add(usd(1)) }},
		{"negative overflow", func() { _ = usd(math.MinInt64).Sub(usd(1)) }},
		{"negate minimum", func() { _ = usd(math.MinInt64).Neg() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Error("expected panic")
				}
			}()
			tt.op()
		})
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		money Money
		want  string
	}{
		{usd(4900), "49.00 USD"},
		{usd(-5), "-0.05 USD"},
		{New(100, "jpy"), "100 JPY"},
		{New(1500, "KWD"), "1.500 KWD"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.money.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		currency string
		want     Money
		wantErr  bool
	}{
		{"12.34", "usd", usd(1234), false},
		{"12", "usd", usd(1200), false},
		{" 0.5 ", "usd", usd(50), false},
		{"100", "JPY", New(100, "JPY"), false},
		{"-3.10", "eur", New(-310, "EUR"), false},
		{"12.345", "usd", Money{}, true},
		{"1.5", "jpy", Money{}, true},
		{"abc", "usd", Money{}, true},
		{"100000000000000000", "usd", Money{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input+"_"+tt.currency, func(t *testing.T) {
			got, err := Parse(tt.input, tt.currency)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("Parse() error = %v, want ErrInvalidAmount", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		wantErr bool
	}{
		{"positive", usd(1), false},
		{"maximum", usd(MaxAmount), false},
		{"zero", usd(0), true},
		{"negative", usd(-1), true},
		{"above maximum", usd(MaxAmount + 1), true},
		{"bad currency", Money{Amount: 10, Currency: "DOLLARS"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.money.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("Validate() error = %v, want ErrInvalidAmount", err)
			}
		})
	}
}
