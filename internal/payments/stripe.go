package payments

import (
	"context"
	"fmt"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/trip-dispatch/internal/models"
)

// StripeClient is a thin wrapper around stripe-go for card fares.
type StripeClient struct {
	Currency string
}

// NewStripeClient initializes the stripe client with the STRIPE_API_KEY env var.
func NewStripeClient(currency string) *StripeClient {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	if currency == "" {
		currency = "rwf"
	}
	return &StripeClient{Currency: currency}
}

// Collect creates and immediately confirms a PaymentIntent for the fare.
// RWF has no minor unit, so the amount maps 1:1.
func (s *StripeClient) Collect(ctx context.Context, req models.PaymentRequest) (models.PaymentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(req.Amount)),
		Currency: stripe.String(s.Currency),
	}
	params.Description = stripe.String("trip " + req.TripID)
	pi, err := paymentintent.New(params)
	if err != nil {
		return models.PaymentResult{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return models.PaymentResult{
		Success:     pi.Status == stripe.PaymentIntentStatusSucceeded,
		Status:      string(pi.Status),
		ReferenceID: pi.ID,
	}, nil
}

// Hold creates a PaymentIntent with capture_method=manual to hold funds.
// It returns the PaymentIntent ID on success.
func (s *StripeClient) Hold(ctx context.Context, amount int64, customerID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(s.Currency),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Capture finalizes a previously-held PaymentIntent.
func (s *StripeClient) Capture(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Capture(paymentIntentID, nil)
	return err
}

// Cancel releases the hold on a PaymentIntent.
func (s *StripeClient) Cancel(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Cancel(paymentIntentID, nil)
	return err
}
