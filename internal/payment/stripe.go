package payment

import (
	"context"
	"fmt"
	"strings"

	"roombook/internal/config"
	"roombook/internal/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeGateway creates hosted checkout sessions and refunds them.
type StripeGateway struct {
	api        *client.API
	successURL string
	cancelURL  string
	logger     *zerolog.Logger
}

func NewStripeGateway(cfg config.StripeConfig, logger *zerolog.Logger) *StripeGateway {
	return newStripeGateway(cfg, nil, logger)
}

// newStripeGateway allows pointing the client at another backend.
func newStripeGateway(cfg config.StripeConfig, backends *stripe.Backends, logger *zerolog.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &StripeGateway{
		api:        api,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		logger:     logger,
	}
}

// minorUnits converts an amount to cents.
func minorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, holdID string, amount float64, currency, description string) (*domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
					UnitAmount: stripe.Int64(minorUnits(amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(holdID),
	}
	params.Context = ctx
	params.AddMetadata("hold_id", holdID)

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}

	g.logger.Info().Str("hold_id", holdID).Str("session_id", sess.ID).Msg("Stripe checkout session created")
	return &domain.CheckoutSession{
		ID:       sess.ID,
		URL:      sess.URL,
		Amount:   amount,
		Currency: currency,
	}, nil
}

// SessionPaid reports whether the customer completed payment.
func (g *StripeGateway) SessionPaid(ctx context.Context, sessionID string) (bool, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return false, fmt.Errorf("failed to get stripe session %s: %w", sessionID, err)
	}
	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return true, nil
	default:
		return false, nil
	}
}

// RefundSession refunds the payment intent behind a checkout session.
func (g *StripeGateway) RefundSession(ctx context.Context, sessionID string) error {
	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx
	sess, err := g.api.CheckoutSessions.Get(sessionID, getParams)
	if err != nil {
		return fmt.Errorf("failed to get stripe session %s: %w", sessionID, err)
	}
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return fmt.Errorf("no payment intent found for session %s", sessionID)
	}

	params := &stripe.RefundParams{PaymentIntent: stripe.String(sess.PaymentIntent.ID)}
	params.Context = ctx
	params.AddMetadata("checkout_session", sessionID)
	ref, err := g.api.Refunds.New(params)
	if err != nil {
		return fmt.Errorf("failed to refund session %s: %w", sessionID, err)
	}

	g.logger.Info().Str("session_id", sessionID).Str("refund_id", ref.ID).Str("status", string(ref.Status)).Msg("Stripe refund created")
	return nil
}
