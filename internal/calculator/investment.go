package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Investment is the money a batch has to recover before any profit exists.
type Investment struct {
	Perceived decimal.Decimal
	Financier decimal.Decimal
	Seller    decimal.Decimal
}

// ComputeInvestment derives the financier and seller halves of a batch investment.
// realCostRatio scales the perceived investment down to the real one and
// financierShare is the fraction of it fronted by the financier.
func ComputeInvestment(quantity int, perceivedUnitCost, realCostRatio, financierShare decimal.Decimal) Investment {
	perceived := perceivedUnitCost.Mul(decimal.NewFromInt(int64(quantity)))
	actual := perceived.Mul(realCostRatio)
	financier := actual.Mul(financierShare).Round(0)
	return Investment{
		Perceived: perceived,
		Financier: financier,
		Seller:    actual.Sub(financier),
	}
}

// Partition splits quantity across sub-batches by percentage. Every slice gets
// floor(quantity*pct/100) and the last absorbs the remainder.
func Partition(quantity int, pcts []int) ([]int, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidPartition)
	}
	if len(pcts) == 0 {
		return nil, fmt.Errorf("%w: no split percentages", ErrInvalidPartition)
	}

	total := 0
	for _, pct := range pcts {
		if pct <= 0 {
			return nil, fmt.Errorf("%w: percentage %d", ErrInvalidPartition, pct)
		}
		total += pct
	}
	if total != 100 {
		return nil, fmt.Errorf("%w: percentages sum to %d", ErrInvalidPartition, total)
	}

	parts := make([]int, len(pcts))
	assigned := 0
	for i, pct := range pcts[:len(pcts)-1] {
		parts[i] = quantity * pct / 100
		assigned += parts[i]
	}
	parts[len(parts)-1] = quantity - assigned
	return parts, nil
}
