package stripegw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"golang.org/x/time/rate"

	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

// Gateway charges through Stripe PaymentIntents. Outbound calls are
// client-side rate limited and observed like any other external dependency.
type Gateway struct {
	api *client.API
	rl  *rate.Limiter
}

func New(apiKey string, rps int) (*Gateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	api := &client.API{}
	api.Init(apiKey, nil)
	return &Gateway{api: api, rl: rate.NewLimiter(rate.Limit(rps), rps)}, nil
}

func (g *Gateway) Charge(ctx context.Context, amountMinor int64, currency, paymentMethodToken string) (domain.Charge, error) {
	if err := g.rl.Wait(ctx); err != nil {
		return domain.Charge{}, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountMinor),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(paymentMethodToken),
	}
	params.Context = ctx

	start := time.Now()
	pi, err := g.api.PaymentIntents.New(params)
	observability.ObserveExternal("stripe", "payment_intents.create", StatusOf(err), time.Since(start))
	if err != nil {
		return domain.Charge{}, err
	}
	return domain.Charge{Reference: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *Gateway) ChargeStatus(ctx context.Context, reference string) (string, error) {
	if err := g.rl.Wait(ctx); err != nil {
		return "", err
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	start := time.Now()
	pi, err := g.api.PaymentIntents.Get(reference, params)
	observability.ObserveExternal("stripe", "payment_intents.get", StatusOf(err), time.Since(start))
	if err != nil {
		return "", err
	}
	return string(pi.Status), nil
}

// StatusOf maps a Stripe error to the HTTP status it carried; 200 on
// success, 0 when the request never reached Stripe.
func StatusOf(err error) int {
	if err == nil {
		return 200
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode
	}
	return 0
}
