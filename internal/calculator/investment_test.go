package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestComputeInvestment(t *testing.T) {
	inv := ComputeInvestment(100, d(2400), decimal.NewFromFloat(0.5), decimal.NewFromFloat(0.5))

	assert.True(t, inv.Perceived.Equal(d(240000)))
	assert.True(t, inv.Financier.Equal(d(60000)))
	assert.True(t, inv.Seller.Equal(d(60000)))

	odd := ComputeInvestment(3, d(333), decimal.NewFromFloat(0.5), decimal.NewFromFloat(0.5))
	assert.True(t, odd.Financier.Add(odd.Seller).Equal(d(999).Mul(decimal.NewFromFloat(0.5))))
}

func TestPartition(t *testing.T) {
	parts, err := Partition(100, []int{40, 30, 30})
	require.NoError(t, err)
	assert.Equal(t, []int{40, 30, 30}, parts)

	parts, err = Partition(101, []int{40, 30, 30})
	require.NoError(t, err)
	assert.Equal(t, []int{40, 30, 31}, parts)

	parts, err = Partition(7, []int{50, 50})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, parts)

	_, err = Partition(0, []int{50, 50})
	assert.ErrorIs(t, err, ErrInvalidPartition)
	_, err = Partition(10, []int{50, 40})
	assert.ErrorIs(t, err, ErrInvalidPartition)
	_, err = Partition(10, nil)
	assert.ErrorIs(t, err, ErrInvalidPartition)
}

func TestPartitionSumsToQuantity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		quantity := rapid.IntRange(1, 1_000_000).Draw(t, "quantity")
		pcts := rapid.SampledFrom([][]int{{40, 30, 30}, {50, 50}, {34, 33, 33}}).Draw(t, "pcts")

		parts, err := Partition(quantity, pcts)
		if err != nil {
			t.Fatalf("partition: %v", err)
		}
		sum := 0
		for _, p := range parts {
			if p < 0 {
				t.Fatalf("negative slice %v", parts)
			}
			sum += p
		}
		if sum != quantity {
			t.Fatalf("sum %d != quantity %d (%v)", sum, quantity, parts)
		}
	})
}
