package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	customError "github.com/segyhp/lease-billing/pkg/errors"
)

type mockIntents struct {
	mock.Mock
}

func (m *mockIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.PaymentIntent), args.Error(1)
}

func chargeRequest() ChargeRequest {
	return ChargeRequest{
		AmountCents: 100000,
		Currency:    "USD",
		CardToken:   "pm_card_visa",
		LoanID:      uuid.New(),
		CustomerID:  uuid.New(),
		DueDateISO:  "2024-03-15",
		Email:       "ada@example.com",
	}
}

func TestStripeProcessor_Succeeded(t *testing.T) {
	intents := &mockIntents{}
	req := chargeRequest()

	intents.On("New", mock.MatchedBy(func(p *stripe.PaymentIntentParams) bool {
		return *p.Amount == 100000 &&
			*p.Currency == "usd" &&
			*p.PaymentMethod == "pm_card_visa" &&
			*p.Confirm &&
			p.Metadata["loan_id"] == req.LoanID.String() &&
			p.Metadata["due_date"] == "2024-03-15" &&
			*p.ReceiptEmail == "ada@example.com"
	})).Return(&stripe.PaymentIntent{ID: "pi_123", Status: stripe.PaymentIntentStatusSucceeded, AmountReceived: 100000}, nil)

	result, err := NewStripeProcessorWith(intents).Charge(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", result.Reference)
	assert.Equal(t, int64(100000), result.AmountCents)

	intents.AssertExpectations(t)
}

func TestStripeProcessor_NotSucceeded(t *testing.T) {
	intents := &mockIntents{}
	intents.On("New", mock.Anything).Return(&stripe.PaymentIntent{ID: "pi_456", Status: stripe.PaymentIntentStatusRequiresAction}, nil)

	_, err := NewStripeProcessorWith(intents).Charge(context.Background(), chargeRequest())
	assert.ErrorIs(t, err, customError.ErrPaymentDeclined)
	assert.Contains(t, customError.Message(err), "requires_action")
}

func TestStripeProcessor_CardError(t *testing.T) {
	intents := &mockIntents{}
	cardErr := &stripe.Error{Code: stripe.ErrorCodeCardDeclined, Msg: "Your card was declined."}
	intents.On("New", mock.Anything).Return(nil, cardErr)

	_, err := NewStripeProcessorWith(intents).Charge(context.Background(), chargeRequest())
	assert.ErrorIs(t, err, customError.ErrPaymentDeclined)

	var stripeErr *stripe.Error
	assert.True(t, errors.As(err, &stripeErr))
}

func TestNewStripeProcessor_WithoutKey(t *testing.T) {
	_, err := NewStripeProcessor("").Charge(context.Background(), chargeRequest())
	assert.ErrorIs(t, err, customError.ErrProcessorUnavailable)
}
