// Package payments talks to the external payment collaborators. Payment
// and trip lifecycle are deliberately decoupled: a provider failure is
// surfaced as ErrUpstream but never unwinds a completed trip.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

var ErrUpstream = errors.New("payment provider failure")

// Provider initiates collection of a trip fare.
type Provider interface {
	Collect(ctx context.Context, req models.PaymentRequest) (models.PaymentResult, error)
}

// Router picks a provider from the request's payment method: mobile money
// (mtn/airtel) or card.
type Router struct {
	Momo Provider
	Card Provider
}

func (r *Router) Collect(ctx context.Context, req models.PaymentRequest) (models.PaymentResult, error) {
	switch req.PaymentMethod {
	case "mtn", "airtel":
		if r.Momo == nil {
			return models.PaymentResult{}, fmt.Errorf("%w: mobile money not configured", ErrUpstream)
		}
		return r.Momo.Collect(ctx, req)
	case "card":
		if r.Card == nil {
			return models.PaymentResult{}, fmt.Errorf("%w: card payments not configured", ErrUpstream)
		}
		return r.Card.Collect(ctx, req)
	default:
		return models.PaymentResult{}, fmt.Errorf("unknown payment method %q", req.PaymentMethod)
	}
}

// MomoClient posts collection requests to a mobile-money aggregator over
// HTTP. The wire shape matches the collaborator contract:
// {tripId, amount, phoneNumber, paymentMethod} -> {success, status, referenceId}.
type MomoClient struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func NewMomoClient(endpoint, apiKey string) *MomoClient {
	return &MomoClient{Endpoint: endpoint, APIKey: apiKey, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (m *MomoClient) Collect(ctx context.Context, req models.PaymentRequest) (models.PaymentResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"tripId":        req.TripID,
		"amount":        req.Amount,
		"phoneNumber":   req.PhoneNumber,
		"paymentMethod": req.PaymentMethod,
	})
	if err != nil {
		return models.PaymentResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return models.PaymentResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.APIKey)
	}
	resp, err := m.Client.Do(httpReq)
	if err != nil {
		return models.PaymentResult{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return models.PaymentResult{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	var out struct {
		Success     bool   `json:"success"`
		Status      string `json:"status"`
		ReferenceID string `json:"referenceId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.PaymentResult{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return models.PaymentResult{Success: out.Success, Status: out.Status, ReferenceID: out.ReferenceID}, nil
}
