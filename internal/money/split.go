package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SplitEqual divides total into n shares. The remainder of the floor division
// is handed out one minor unit at a time to the first entries, so callers
// control who receives it by ordering their participants.
//
// The shares always sum to total and differ from each other by at most one.
func SplitEqual(total Money, n int) ([]Money, error) {
	if err := total.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: cannot split among %d participants", ErrInvalidAmount, n)
	}

	base := total.Amount / int64(n)
	remainder := total.Amount % int64(n)

	shares := make([]Money, n)
	for i := range shares {
		amount := base
		if int64(i) < remainder {
			amount++
		}
		shares[i] = Money{Amount: amount, Currency: total.Currency}
	}
	return shares, nil
}

// SplitExact validates caller-provided shares: each must be non-negative and
// in the total's currency, and together they must equal total exactly.
func SplitExact(total Money, shares []Money) ([]Money, error) {
	if err := total.Validate(); err != nil {
		return nil, err
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares given", ErrInvalidAmount)
	}

	sum := Zero(total.Currency)
	out := make([]Money, len(shares))
	for i, share := range shares {
		if share.Currency != total.Currency {
			return nil, fmt.Errorf("%w: share %d is in %s, expense is in %s", ErrInvalidAmount, i, share.Currency, total.Currency)
		}
		if share.Amount < 0 || share.Amount > MaxAmount {
			return nil, fmt.Errorf("%w: share %d is %d", ErrInvalidAmount, i, share.Amount)
		}
		sum = sum.Add(share)
		out[i] = share
	}
	if sum.Amount != total.Amount {
		return nil, fmt.Errorf("%w: shares sum to %d, total is %d", ErrSplitMismatch, sum.Amount, total.Amount)
	}
	return out, nil
}

// SplitPercentage computes each share as total*pct/100 rounded half-to-even.
// The last entry with a non-zero percentage absorbs the rounding residual so
// the sum is exact; 0% entries always get 0. When earlier entries rounded up
// past the total, they give back one minor unit each, in order, until the
// residual is no longer negative.
// Percentages must be non-negative and add up to exactly 100.
func SplitPercentage(total Money, percentages []decimal.Decimal) ([]Money, error) {
	if err := total.Validate(); err != nil {
		return nil, err
	}
	if len(percentages) == 0 {
		return nil, fmt.Errorf("%w: no percentages given", ErrInvalidAmount)
	}

	pctSum := decimal.Zero
	absorber := -1
	for i, pct := range percentages {
		if pct.IsNegative() {
			return nil, fmt.Errorf("%w: percentage %d is negative (%s)", ErrSplitMismatch, i, pct)
		}
		if pct.IsPositive() {
			absorber = i
		}
		pctSum = pctSum.Add(pct)
	}
	if !pctSum.Equal(hundred) {
		return nil, fmt.Errorf("%w: percentages sum to %s, want 100", ErrSplitMismatch, pctSum)
	}

	totalDec := decimal.NewFromInt(total.Amount)
	amounts := make([]int64, len(percentages))
	roundedUp := make([]bool, len(percentages))
	allocated := int64(0)
	for i, pct := range percentages {
		if i == absorber {
			continue
		}
		exact := totalDec.Mul(pct).Shift(-2)
		amounts[i] = exact.RoundBank(0).IntPart()
		roundedUp[i] = decimal.NewFromInt(amounts[i]).GreaterThan(exact)
		allocated += amounts[i]
	}

	residual := total.Amount - allocated
	for i := 0; residual < 0 && i < len(amounts); i++ {
		if roundedUp[i] {
			amounts[i]--
			residual++
		}
	}
	amounts[absorber] = residual

	shares := make([]Money, len(amounts))
	for i, amount := range amounts {
		shares[i] = Money{Amount: amount, Currency: total.Currency}
	}
	return shares, nil
}

// Sum adds values of one currency. An empty input sums to zero of currency.
func Sum(currency string, values ...Money) Money {
	result := Zero(currency)
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
