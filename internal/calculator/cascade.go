package calculator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/javajoker/batch-settlement/internal/models"
)

var ErrRecruiterChain = errors.New("recruiter chain error")

var half = decimal.NewFromFloat(0.5)

const DefaultMaxDepth = 10

// SplitChain halves the rising amount at each of levels recruiters and gives
// what is left to the root. The result has levels+1 entries and sums to amount.
func SplitChain(amount decimal.Decimal, levels int) []decimal.Decimal {
	shares := make([]decimal.Decimal, 0, levels+1)
	rising := amount
	for i := 0; i < levels; i++ {
		share := rising.Mul(half).Round(0)
		shares = append(shares, share)
		rising = rising.Sub(share)
	}
	return append(shares, rising)
}

// ChainNode is the slice of a seller record the distributor needs.
type ChainNode struct {
	ID          uuid.UUID
	Name        string
	RecruiterID *uuid.UUID
	IsRoot      bool
}

type RecruiterLookup interface {
	FindNode(ctx context.Context, id uuid.UUID) (*ChainNode, error)
}

// Distributor walks the recruiter chain iteratively. It only reports shares.
type Distributor struct {
	lookup   RecruiterLookup
	maxDepth int
	root     ChainNode
}

// NewDistributor builds a distributor; root is credited when the seller has no recruiter at all.
func NewDistributor(lookup RecruiterLookup, maxDepth int, root ChainNode) *Distributor {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Distributor{lookup: lookup, maxDepth: maxDepth, root: root}
}

func (d *Distributor) Distribute(ctx context.Context, sellerID uuid.UUID, amount decimal.Decimal) ([]models.CascadeShare, error) {
	seller, err := d.lookup.FindNode(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	var chain []*ChainNode
	top := &d.root
	visited := map[uuid.UUID]bool{seller.ID: true}
	next := seller.RecruiterID
	for next != nil {
		if visited[*next] {
			return nil, fmt.Errorf("%w: cycle at %s", ErrRecruiterChain, *next)
		}
		visited[*next] = true

		node, err := d.lookup.FindNode(ctx, *next)
		if err != nil {
			return nil, err
		}
		if node.IsRoot || node.RecruiterID == nil {
			top = node
			break
		}
		if len(chain) >= d.maxDepth {
			return nil, fmt.Errorf("%w: depth cap %d exceeded above seller %s", ErrRecruiterChain, d.maxDepth, sellerID)
		}
		chain = append(chain, node)
		next = node.RecruiterID
	}

	amounts := SplitChain(amount, len(chain))
	shares := make([]models.CascadeShare, 0, len(amounts))
	for i, node := range chain {
		shares = append(shares, models.CascadeShare{
			Level:    i + 1,
			SellerID: node.ID,
			Name:     node.Name,
			Amount:   amounts[i],
		})
	}
	shares = append(shares, models.CascadeShare{
		Level:    len(chain) + 1,
		SellerID: top.ID,
		Name:     top.Name,
		Amount:   amounts[len(chain)],
		IsRoot:   true,
	})
	return shares, nil
}
