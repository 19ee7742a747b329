package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/coupon"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/velmostra/stagegate/config"
	"github.com/velmostra/stagegate/internal/domain"
	"github.com/velmostra/stagegate/internal/service/payments"
)

// StripeGateway implements payments.Gateway on Stripe Checkout. Stripe is
// the source of truth for "was money captured"; this type only mirrors
// session state back to the service.
type StripeGateway struct {
	webhookSecret string
	currency      string
	successURL    string
	cancelURL     string
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	stripe.Key = cfg.SecretKey
	return &StripeGateway{
		webhookSecret: cfg.WebhookSecret,
		currency:      cfg.Currency,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(int64(req.Quantity)),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.currency),
					UnitAmount: stripe.Int64(req.UnitPriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.EventTitle + " - Tickets"),
						Description: stripe.String(fmt.Sprintf("%d ticket(s), ref %s", req.Quantity, req.TicketNumber)),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("reservation_id", req.ReservationID)
	params.AddMetadata("type", "ticket")

	if req.DiscountCents > 0 {
		c, err := coupon.New(&stripe.CouponParams{
			AmountOff: stripe.Int64(req.DiscountCents),
			Currency:  stripe.String(g.currency),
			Duration:  stripe.String(string(stripe.CouponDurationOnce)),
			Name:      stripe.String("Reservation discount " + req.TicketNumber),
		})
		if err != nil {
			// Without the coupon the buyer would be charged the full
			// amount while our record shows a discount. Fail the session
			// instead; the caller can retry.
			return nil, fmt.Errorf("create coupon: %w", err)
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(c.ID)}}
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &payments.CheckoutSession{ID: s.ID, RedirectURL: s.URL}, nil
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*payments.SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return sessionStatus(s), nil
}

func (g *StripeGateway) VerifyCallback(payload []byte, signature string) (*payments.CallbackEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	callback := &payments.CallbackEvent{Type: string(event.Type)}
	if event.Type == "checkout.session.completed" {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session payload: %w", err)
		}
		if s.Metadata["type"] != "ticket" {
			// Some other product of the storefront paid through the same
			// webhook endpoint; not ours to handle.
			return &payments.CallbackEvent{Type: "ignored"}, nil
		}
		callback.Session = *sessionStatus(&s)
	}
	return callback, nil
}

func sessionStatus(s *stripe.CheckoutSession) *payments.SessionStatus {
	status := &payments.SessionStatus{
		ID:            s.ID,
		Paid:          s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		ReservationID: s.Metadata["reservation_id"],
	}
	if s.PaymentIntent != nil {
		status.PaymentRef = s.PaymentIntent.ID
	}
	return status
}

var _ payments.Gateway = (*StripeGateway)(nil)
