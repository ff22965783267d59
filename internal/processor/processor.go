// Package processor charges cards through the payment processor. The outcome of a
// charge is the only thing that decides whether a payment is applied to the ledger.
package processor

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	customError "github.com/segyhp/lease-billing/pkg/errors"
)

// ChargeRequest describes one installment charge
type ChargeRequest struct {
	AmountCents int64
	Currency    string
	CardToken   string
	LoanID      uuid.UUID
	CustomerID  uuid.UUID
	DueDateISO  string
	Email       string
}

// ChargeResult is a succeeded charge
type ChargeResult struct {
	Reference     string
	AmountCents   int64
	ReceiptStatus string
}

// Processor charges a card
type Processor interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// PaymentIntents is the slice of the Stripe client used here
type PaymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type StripeProcessor struct {
	intents PaymentIntents
}

// NewStripeProcessor returns a processor for secretKey. An empty key yields a processor
// that refuses every charge with ErrProcessorUnavailable.
func NewStripeProcessor(secretKey string) Processor {
	if strings.TrimSpace(secretKey) == "" {
		return unavailable{}
	}
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeProcessor{intents: sc.PaymentIntents}
}

func NewStripeProcessorWith(intents PaymentIntents) *StripeProcessor {
	return &StripeProcessor{intents: intents}
}

func (p *StripeProcessor) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountCents),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod:      stripe.String(req.CardToken),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	params.Context = ctx
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	params.AddMetadata("loan_id", req.LoanID.String())
	params.AddMetadata("customer_id", req.CustomerID.String())
	params.AddMetadata("due_date", req.DueDateISO)
	params.SetIdempotencyKey(idempotencyKey(req))

	pi, err := p.intents.New(params)
	if err != nil {
		return nil, customError.WrapProcessorError(err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, customError.WrapPaymentDeclined(string(pi.Status))
	}

	return &ChargeResult{
		Reference:     pi.ID,
		AmountCents:   pi.AmountReceived,
		ReceiptStatus: string(pi.Status),
	}, nil
}

// idempotencyKey makes a retried charge of the same installment with the same card a
// no-op on the processor side
func idempotencyKey(req ChargeRequest) string {
	return "installment:" + req.LoanID.String() + ":" + req.DueDateISO + ":" + req.CardToken
}

type unavailable struct{}

func (unavailable) Charge(context.Context, ChargeRequest) (*ChargeResult, error) {
	return nil, customError.WrapProcessorUnavailable()
}
