package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func usd(amount int64) Money { return New(amount, "usd") }

func amounts(shares []Money) []int64 {
	out := make([]int64, len(shares))
	for i, s := range shares {
		out[i] = s.Amount
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSplitEqual(t *testing.T) {
	tests := []struct {
		name    string
		total   Money
		n       int
		want    []int64
		wantErr error
	}{
		{name: "100 among 3", total: usd(100), n: 3, want: []int64{34, 33, 33}},
		{name: "even split", total: usd(90), n: 3, want: []int64{30, 30, 30}},
		{name: "remainder of two", total: usd(101), n: 3, want: []int64{34, 34, 33}},
		{name: "more participants than units", total: usd(2), n: 5, want: []int64{1, 1, 0, 0, 0}},
		{name: "single participant", total: usd(7), n: 1, want: []int64{7}},
		{name: "zero total", total: usd(0), n: 2, wantErr: ErrInvalidAmount},
		{name: "negative total", total: usd(-10), n: 2, wantErr: ErrInvalidAmount},
		{name: "no participants", total: usd(10), n: 0, wantErr: ErrInvalidAmount},
		{name: "too large", total: usd(MaxAmount + 1), n: 2, wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := SplitEqual(tt.total, tt.n)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SplitEqual() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitEqual() unexpected error: %v", err)
			}
			if got := amounts(shares); !equalInts(got, tt.want) {
				t.Errorf("SplitEqual() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitEqual_Properties(t *testing.T) {
	for total := int64(1); total <= 200; total += 7 {
		for n := 1; n <= 9; n++ {
			shares, err := SplitEqual(usd(total), n)
			if err != nil {
				t.Fatalf("SplitEqual(%d, %d): %v", total, n, err)
			}
			sum := Sum("USD", shares...)
			if sum.Amount != total {
				t.Errorf("SplitEqual(%d, %d) sums to %d", total, n, sum.Amount)
			}
			lo, hi := shares[0].Amount, shares[0].Amount
			for _, s := range shares {
				if s.Amount < 0 {
					t.Errorf("SplitEqual(%d, %d) produced negative share %d", total, n, s.Amount)
				}
				lo = min(lo, s.Amount)
				hi = max(hi, s.Amount)
			}
			if hi-lo > 1 {
				t.Errorf("SplitEqual(%d, %d) spread %d > 1", total, n, hi-lo)
			}
		}
	}
}

func TestSplitExact(t *testing.T) {
	tests := []struct {
		name    string
		total   Money
		shares  []Money
		wantErr error
	}{
		{name: "matches total", total: usd(100), shares: []Money{usd(60), usd(40)}},
		{name: "zero share allowed", total: usd(100), shares: []Money{usd(100), usd(0)}},
		{name: "short by one", total: usd(100), shares: []Money{usd(60), usd(39)}, wantErr: ErrSplitMismatch},
		{name: "over by one", total: usd(100), shares: []Money{usd(60), usd(41)}, wantErr: ErrSplitMismatch},
		{name: "negative share", total: usd(100), shares: []Money{usd(110), usd(-10)}, wantErr: ErrInvalidAmount},
		{name: "currency mismatch", total: usd(100), shares: []Money{New(100, "EUR")}, wantErr: ErrInvalidAmount},
		{name: "no shares", total: usd(100), wantErr: ErrInvalidAmount},
		{name: "zero total", total: usd(0), shares: []Money{usd(0)}, wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SplitExact(tt.total, tt.shares)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("SplitExact() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("SplitExact() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func pcts(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestSplitPercentage(t *testing.T) {
	tests := []struct {
		name        string
		total       Money
		percentages []decimal.Decimal
		want        []int64
		wantErr     error
	}{
		{name: "halves", total: usd(100), percentages: pcts("50", "50"), want: []int64{50, 50}},
		{name: "thirds absorb residual", total: usd(100), percentages: pcts("33.34", "33.33", "33.33"), want: []int64{33, 33, 34}},
		// 2.5 rounds to 2 and 7.5 rounds to 8 under half-to-even.
		{name: "bankers rounding", total: usd(10), percentages: pcts("25", "75"), want: []int64{2, 8}},
		{name: "bankers rounding odd", total: usd(30), percentages: pcts("25", "25", "50"), want: []int64{8, 8, 14}},
		{name: "zero percentage", total: usd(100), percentages: pcts("0", "100"), want: []int64{0, 100}},
		// 1.5 rounds to 2, leaving 1 for the second half and nothing for 0%.
		{name: "trailing zero percentage", total: usd(3), percentages: pcts("50", "50", "0"), want: []int64{2, 1, 0}},
		// Three 1.5s round to 2 and overshoot 5; the first gives one back.
		{name: "rounding overshoot", total: usd(5), percentages: pcts("30", "30", "30", "10"), want: []int64{1, 2, 2, 0}},
		{name: "sum below 100", total: usd(100), percentages: pcts("50", "49"), wantErr: ErrSplitMismatch},
		{name: "sum above 100", total: usd(100), percentages: pcts("50", "51"), wantErr: ErrSplitMismatch},
		{name: "negative percentage", total: usd(100), percentages: pcts("110", "-10"), wantErr: ErrSplitMismatch},
		{name: "no percentages", total: usd(100), wantErr: ErrInvalidAmount},
		{name: "zero total", total: usd(0), percentages: pcts("100"), wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := SplitPercentage(tt.total, tt.percentages)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SplitPercentage() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitPercentage() unexpected error: %v", err)
			}
			if got := amounts(shares); !equalInts(got, tt.want) {
				t.Errorf("SplitPercentage() = %v, want %v", got, tt.want)
			}
			if sum := Sum(tt.total.Currency, shares...); sum.Amount != tt.total.Amount {
				t.Errorf("SplitPercentage() sums to %d, want %d", sum.Amount, tt.total.Amount)
			}
		})
	}
}
