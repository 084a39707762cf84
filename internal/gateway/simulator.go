package gateway

import (
	"context"
	"math/rand"
	"sync"

	"github.com/adilmk/homeserve/internal/models"
	"github.com/adilmk/homeserve/internal/utils"
)

// Simulator stands in for a real processor. The rand source is injected so
// tests pin the outcome; failureRate 0 never declines, 1 always declines.
type Simulator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	failureRate float64
}

func NewSimulator(rng *rand.Rand, failureRate float64) *Simulator {
	return &Simulator{rng: rng, failureRate: failureRate}
}

func (s *Simulator) declines() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.failureRate
}

type mobileMoneyProcessor struct {
	sim *Simulator
}

// NewMobileMoneyProcessor settles charges synchronously: a successful charge
// lands directly on paid.
func NewMobileMoneyProcessor(sim *Simulator) Processor {
	return &mobileMoneyProcessor{sim: sim}
}

func (p *mobileMoneyProcessor) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if p.sim.declines() {
		return Result{Success: false, Status: string(models.PaymentFailed), Message: "mobile money charge declined"}, nil
	}
	return Result{
		Success:       true,
		TransactionID: utils.NewReference("MMC"),
		Status:        string(models.PaymentPaid),
	}, nil
}

func (p *mobileMoneyProcessor) Refund(ctx context.Context, req RefundRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if p.sim.declines() {
		return Result{Success: false, Status: string(models.PaymentPaid), Message: "mobile money refund declined"}, nil
	}
	return Result{
		Success:       true,
		TransactionID: utils.NewReference("MMR"),
		Status:        string(models.PaymentRefunded),
	}, nil
}

type bankTransferProcessor struct {
	sim *Simulator
}

// NewBankTransferProcessor authorizes first; settlement to paid happens
// out-of-band in a real deployment.
func NewBankTransferProcessor(sim *Simulator) Processor {
	return &bankTransferProcessor{sim: sim}
}

func (p *bankTransferProcessor) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if p.sim.declines() {
		return Result{Success: false, Status: string(models.PaymentFailed), Message: "bank transfer declined"}, nil
	}
	return Result{
		Success:       true,
		TransactionID: utils.NewReference("BTC"),
		Status:        string(models.PaymentAuthorized),
	}, nil
}

func (p *bankTransferProcessor) Refund(ctx context.Context, req RefundRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if p.sim.declines() {
		return Result{Success: false, Status: string(models.PaymentPaid), Message: "bank transfer refund declined"}, nil
	}
	return Result{
		Success:       true,
		TransactionID: utils.NewReference("BTR"),
		Status:        string(models.PaymentRefunded),
	}, nil
}

type cashProcessor struct{}

// NewCashProcessor never talks to an external party: the charge stays pending
// until staff confirms the cash was collected, refunds are settled on site.
func NewCashProcessor() Processor {
	return &cashProcessor{}
}

func (p *cashProcessor) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Status:  string(models.PaymentPending),
		Message: "awaiting cash confirmation",
	}, nil
}

func (p *cashProcessor) Refund(ctx context.Context, req RefundRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Status:  string(models.PaymentRefunded),
		Message: "cash refund settled on site",
	}, nil
}

type payoutSimulator struct {
	sim *Simulator
}

func NewPayoutSimulator(sim *Simulator) PayoutProcessor {
	return &payoutSimulator{sim: sim}
}

func (p *payoutSimulator) Payout(ctx context.Context, req PayoutRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if p.sim.declines() {
		return Result{Success: false, Status: "failed", Message: "payout rejected by provider"}, nil
	}
	return Result{
		Success:       true,
		TransactionID: utils.NewReference("PO"),
		Status:        "completed",
	}, nil
}
