package calculator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type mapLookup map[uuid.UUID]*ChainNode

func (m mapLookup) FindNode(_ context.Context, id uuid.UUID) (*ChainNode, error) {
	node, ok := m[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return node, nil
}

// chain builds seller -> r1 -> ... -> rN -> root and returns the ids bottom-up.
func chain(levels int) (mapLookup, []uuid.UUID) {
	lookup := mapLookup{}
	ids := make([]uuid.UUID, levels+2)
	for i := range ids {
		ids[i] = uuid.New()
	}
	for i, id := range ids {
		node := &ChainNode{ID: id}
		if i == len(ids)-1 {
			node.IsRoot = true
		} else {
			up := ids[i+1]
			node.RecruiterID = &up
		}
		lookup[id] = node
	}
	return lookup, ids
}

func TestDistributeThreeLevels(t *testing.T) {
	lookup, ids := chain(2)
	dist := NewDistributor(lookup, 10, ChainNode{})

	shares, err := dist.Distribute(context.Background(), ids[0], d(10000))
	require.NoError(t, err)
	require.Len(t, shares, 3)

	assert.Equal(t, ids[1], shares[0].SellerID)
	assert.True(t, shares[0].Amount.Equal(d(5000)))
	assert.Equal(t, ids[2], shares[1].SellerID)
	assert.True(t, shares[1].Amount.Equal(d(2500)))
	assert.Equal(t, ids[3], shares[2].SellerID)
	assert.True(t, shares[2].Amount.Equal(d(2500)))
	assert.True(t, shares[2].IsRoot)
}

func TestDistributeWithoutRecruiter(t *testing.T) {
	seller := uuid.New()
	root := ChainNode{ID: uuid.New(), Name: "root", IsRoot: true}
	dist := NewDistributor(mapLookup{seller: {ID: seller}}, 10, root)

	shares, err := dist.Distribute(context.Background(), seller, d(800))
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, root.ID, shares[0].SellerID)
	assert.True(t, shares[0].Amount.Equal(d(800)))
}

func TestDistributeTopWithoutRecruiterActsAsRoot(t *testing.T) {
	seller, top := uuid.New(), uuid.New()
	lookup := mapLookup{
		seller: {ID: seller, RecruiterID: &top},
		top:    {ID: top},
	}
	shares, err := NewDistributor(lookup, 10, ChainNode{}).Distribute(context.Background(), seller, d(100))
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, top, shares[0].SellerID)
}

func TestDistributeDepthCap(t *testing.T) {
	lookup, ids := chain(5)
	_, err := NewDistributor(lookup, 3, ChainNode{}).Distribute(context.Background(), ids[0], d(100))
	assert.ErrorIs(t, err, ErrRecruiterChain)

	_, err = NewDistributor(lookup, 5, ChainNode{}).Distribute(context.Background(), ids[0], d(100))
	assert.NoError(t, err)
}

func TestDistributeCycle(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	lookup := mapLookup{
		a: {ID: a, RecruiterID: &b},
		b: {ID: b, RecruiterID: &a},
	}
	_, err := NewDistributor(lookup, 10, ChainNode{}).Distribute(context.Background(), a, d(100))
	assert.ErrorIs(t, err, ErrRecruiterChain)
}

func TestSplitChainSums(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		levels := rapid.IntRange(0, 10).Draw(t, "levels")
		amount := decimal.New(rapid.Int64Range(0, 10_000_000_00).Draw(t, "cents"), -2)

		shares := SplitChain(amount, levels)
		if len(shares) != levels+1 {
			t.Fatalf("got %d shares for %d levels", len(shares), levels)
		}
		sum := decimal.Zero
		for _, s := range shares {
			sum = sum.Add(s)
		}
		if !sum.Equal(amount) {
			t.Fatalf("shares sum %s != %s", sum, amount)
		}
	})
}

func TestDistributeSumsAcrossDepths(t *testing.T) {
	for levels := 0; levels <= 10; levels++ {
		lookup, ids := chain(levels)
		shares, err := NewDistributor(lookup, 10, ChainNode{}).Distribute(context.Background(), ids[0], d(12345))
		require.NoError(t, err)
		require.Len(t, shares, levels+1)

		sum := decimal.Zero
		for _, s := range shares {
			sum = sum.Add(s.Amount)
		}
		assert.True(t, sum.Equal(d(12345)), "levels %d: %s", levels, sum)
	}
}
