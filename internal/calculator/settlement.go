// Package calculator holds the pure settlement arithmetic: investment amounts,
// sub-batch partitioning, the (sequence, total) branch table and the cascade split.
package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/javajoker/batch-settlement/internal/models"
)

var (
	ErrUnsupportedSequence = errors.New("unsupported sub-batch sequence")
	ErrInvalidPartition    = errors.New("invalid sub-batch partition")
)

var hundred = decimal.NewFromInt(100)

type Branch string

const (
	BranchInitialInvestment      Branch = "INITIAL_INVESTMENT"
	BranchClosingMixed           Branch = "CLOSING_MIXED"
	BranchIntermediateInvestment Branch = "INTERMEDIATE_INVESTMENT"
	BranchFinalProfit            Branch = "FINAL_PROFIT"
)

// Position is a sub-batch sequence number within a batch of Total sub-batches.
type Position struct {
	Sequence int
	Total    int
}

type branchRule struct {
	kind            models.SettlementType
	recovers        bool
	splitsProfit    bool
	cascadeEligible bool
}

var decisionTable = map[Position]Branch{
	{Sequence: 1, Total: 2}: BranchInitialInvestment,
	{Sequence: 1, Total: 3}: BranchInitialInvestment,
	{Sequence: 2, Total: 2}: BranchClosingMixed,
	{Sequence: 2, Total: 3}: BranchIntermediateInvestment,
	{Sequence: 3, Total: 3}: BranchFinalProfit,
}

var branchRules = map[Branch]branchRule{
	BranchInitialInvestment:      {kind: models.SettlementTypeInvestment, recovers: true},
	BranchClosingMixed:           {kind: models.SettlementTypeProfit, recovers: true, splitsProfit: true, cascadeEligible: true},
	BranchIntermediateInvestment: {kind: models.SettlementTypeInvestment, recovers: true, splitsProfit: true},
	BranchFinalProfit:            {kind: models.SettlementTypeProfit, splitsProfit: true, cascadeEligible: true},
}

// SelectBranch looks up the settlement branch for a sub-batch position.
func SelectBranch(sequence, total int) (Branch, error) {
	branch, ok := decisionTable[Position{Sequence: sequence, Total: total}]
	if !ok {
		return "", fmt.Errorf("%w: %d of %d", ErrUnsupportedSequence, sequence, total)
	}
	return branch, nil
}

// Type is the workflow tag stored on the settlement.
func (b Branch) Type() models.SettlementType {
	return branchRules[b].kind
}

// CascadeEligible reports whether the upward profit of this branch may be
// distributed through the recruiter chain.
func (b Branch) CascadeEligible() bool {
	return branchRules[b].cascadeEligible
}

type Input struct {
	Sequence        int
	TotalSubBatches int
	BusinessModel   models.BusinessModel

	Revenue   decimal.Decimal
	SurplusIn decimal.Decimal

	FinancierInvestment       decimal.Decimal
	FinancierRecovered        decimal.Decimal
	SellerInvestment          decimal.Decimal
	SellerInvestmentRecovered decimal.Decimal

	// SellerProfitPct is the seller's side of the business-model split (60 or 50).
	SellerProfitPct decimal.Decimal
}

type Proposal struct {
	Branch          Branch                `json:"branch"`
	Type            models.SettlementType `json:"type"`
	CascadeEligible bool                  `json:"cascade_eligible"`

	Revenue   decimal.Decimal `json:"revenue"`
	SurplusIn decimal.Decimal `json:"surplus_in"`
	Available decimal.Decimal `json:"available"`

	FinancierRecovery        decimal.Decimal `json:"financier_recovery"`
	SellerInvestmentRecovery decimal.Decimal `json:"seller_investment_recovery"`
	Profit                   decimal.Decimal `json:"profit"`
	SellerProfit             decimal.Decimal `json:"seller_profit"`
	UpwardProfit             decimal.Decimal `json:"upward_profit"`
	SurplusOut               decimal.Decimal `json:"surplus_out"`

	SellerAmount decimal.Decimal `json:"seller_amount"`
	UpwardAmount decimal.Decimal `json:"upward_amount"`

	Steps []models.BreakdownStep `json:"steps"`
}

// Compute runs the branch selected by (Sequence, TotalSubBatches).
// UpwardAmount is always Available minus SellerAmount.
func Compute(in Input) (*Proposal, error) {
	branch, err := SelectBranch(in.Sequence, in.TotalSubBatches)
	if err != nil {
		return nil, err
	}
	rule := branchRules[branch]

	p := &Proposal{
		Branch:                   branch,
		Type:                     rule.kind,
		CascadeEligible:          rule.cascadeEligible && in.BusinessModel == models.BusinessModelCascadeSplit,
		Revenue:                  in.Revenue,
		SurplusIn:                in.SurplusIn,
		Available:                in.Revenue.Add(in.SurplusIn),
		FinancierRecovery:        decimal.Zero,
		SellerInvestmentRecovery: decimal.Zero,
		Profit:                   decimal.Zero,
		SellerProfit:             decimal.Zero,
		UpwardProfit:             decimal.Zero,
		SurplusOut:               decimal.Zero,
	}
	p.step("revenue", p.Revenue, "approved sales in this sub-batch")
	p.step("surplus_in", p.SurplusIn, "carried from the previous settlement")
	p.step("available", p.Available, "revenue + surplus_in")

	remaining := p.Available
	if !remaining.IsPositive() {
		// a carried deficit is pushed forward untouched
		p.SurplusOut = remaining
		p.step("surplus_out", p.SurplusOut, "nothing available to settle")
		return p.finish(), nil
	}

	if rule.recovers {
		financierDue := outstanding(in.FinancierInvestment, in.FinancierRecovered)
		p.FinancierRecovery = decimal.Min(remaining, financierDue)
		remaining = remaining.Sub(p.FinancierRecovery)
		p.step("financier_recovery", p.FinancierRecovery,
			fmt.Sprintf("financier investment outstanding %s", financierDue.StringFixed(2)))

		sellerDue := outstanding(in.SellerInvestment, in.SellerInvestmentRecovered)
		p.SellerInvestmentRecovery = decimal.Min(remaining, sellerDue)
		remaining = remaining.Sub(p.SellerInvestmentRecovery)
		p.step("seller_investment_recovery", p.SellerInvestmentRecovery,
			fmt.Sprintf("seller investment outstanding %s", sellerDue.StringFixed(2)))
	}

	if rule.splitsProfit {
		p.Profit = remaining
		p.SellerProfit = p.Profit.Mul(in.SellerProfitPct).Div(hundred).Round(0)
		p.UpwardProfit = p.Profit.Sub(p.SellerProfit)
		remaining = decimal.Zero
		p.step("profit", p.Profit, string(in.BusinessModel))
		p.step("seller_profit", p.SellerProfit,
			fmt.Sprintf("%s%% of profit, rounded half-up", in.SellerProfitPct.String()))
		p.step("upward_profit", p.UpwardProfit, "profit - seller_profit")
	}

	p.SurplusOut = remaining
	p.step("surplus_out", p.SurplusOut, "carried to the next settlement")
	return p.finish(), nil
}

func (p *Proposal) finish() *Proposal {
	p.SellerAmount = p.SellerInvestmentRecovery.Add(p.SellerProfit).Add(p.SurplusOut)
	p.UpwardAmount = p.Available.Sub(p.SellerAmount)
	p.step("seller_amount", p.SellerAmount, "investment recovery + seller profit + surplus_out")
	p.step("upward_amount", p.UpwardAmount, "available - seller_amount")
	return p
}

func (p *Proposal) step(label string, amount decimal.Decimal, note string) {
	p.Steps = append(p.Steps, models.BreakdownStep{Label: label, Amount: amount, Note: note})
}

func outstanding(total, recovered decimal.Decimal) decimal.Decimal {
	due := total.Sub(recovered)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}
