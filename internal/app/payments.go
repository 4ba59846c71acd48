package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"staybook/internal/domain"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// PaymentIntent is what the caller needs to finish a charge client-side.
type PaymentIntent struct {
	Reference    string
	ClientSecret string
	TotalCost    decimal.Decimal
}

// ConfirmResult reports the settled state after a gateway callback. A
// cancelled invoice is an expected outcome, not a system error.
type ConfirmResult struct {
	Status  domain.InvoiceStatus
	Message string
}

// PaymentService owns the charge -> invoice -> settle pipeline. It is the
// only writer of invoices and bookings.
type PaymentService struct {
	quotes   *QuoteService
	avail    *AvailabilityService
	bookings domain.BookingRepository
	gateway  domain.PaymentGateway
	notify   domain.NotificationSink
	currency string
}

func NewPaymentService(q *QuoteService, a *AvailabilityService, b domain.BookingRepository, g domain.PaymentGateway, n domain.NotificationSink, currency string) *PaymentService {
	return &PaymentService{quotes: q, avail: a, bookings: b, gateway: g, notify: n, currency: currency}
}

// InitiatePayment recomputes the quote, validates availability, requests a
// gateway charge and persists the pending invoice with its line items in one
// transaction. Not idempotent: every call is a fresh payment attempt.
func (s *PaymentService) InitiatePayment(ctx context.Context, userID, roomID int64, serviceIDs []int64, rng domain.Range, paymentMethodToken string) (PaymentIntent, error) {
	q, err := s.quotes.Quote(ctx, roomID, serviceIDs, rng)
	if err != nil {
		return PaymentIntent{}, err
	}

	// Cheap pre-check before money moves. The authoritative check repeats
	// inside the booking transaction.
	if ok, err := s.avail.IsAvailable(ctx, q.Room.Ref(), rng); err != nil {
		return PaymentIntent{}, err
	} else if !ok {
		return PaymentIntent{}, &domain.ConflictError{Ref: q.Room.Ref(), Name: q.Room.Number}
	}
	for _, svc := range q.Services {
		if !svc.IsLimited {
			continue
		}
		units, err := s.avail.AvailableUnits(ctx, svc, rng)
		if err != nil {
			return PaymentIntent{}, err
		}
		if units < 1 {
			return PaymentIntent{}, &domain.ConflictError{Ref: svc.Ref(), Name: svc.Name}
		}
	}

	charge, err := s.gateway.Charge(ctx, minorUnits(q.TotalCost), s.currency, paymentMethodToken)
	if err != nil {
		log.Error().Err(err).Int64("room_id", roomID).Msg("gateway charge failed")
		return PaymentIntent{}, &domain.GatewayError{Cause: err}
	}

	inv := domain.Invoice{
		UserID:     userID,
		StartDate:  rng.Start,
		EndDate:    rng.End,
		CountMonth: q.Span.Months,
		CountDay:   q.Span.Days,
		TotalCost:  q.TotalCost.Round(2),
		Status:     domain.InvoicePending,
		PaymentID:  charge.Reference,
	}
	items, guards := s.buildLines(q)

	invoiceID, err := s.bookings.CreateInvoiceWithBookings(ctx, inv, items, guards)
	if err != nil {
		// The external charge exists but nothing was persisted; flag it for
		// operational reconciliation instead of auto-reversing.
		var ce *domain.ConflictError
		if errors.As(err, &ce) {
			log.Warn().
				Str("payment_id", charge.Reference).
				Str("bookable", ce.Ref.String()).
				Msg("availability race lost after charge; reconciliation required")
			return PaymentIntent{}, ce
		}
		log.Error().Err(err).
			Str("payment_id", charge.Reference).
			Msg("invoice persistence failed after charge; reconciliation required")
		return PaymentIntent{}, &domain.GatewayError{Cause: err}
	}

	refs := make([]domain.BookableRef, 0, len(items))
	for _, it := range items {
		refs = append(refs, it.Bookable)
	}
	s.avail.InvalidateBlocked(ctx, refs...)

	log.Info().
		Int64("invoice_id", invoiceID).
		Str("payment_id", charge.Reference).
		Str("total", inv.TotalCost.StringFixed(2)).
		Msg("pending invoice created")

	return PaymentIntent{
		Reference:    charge.Reference,
		ClientSecret: charge.ClientSecret,
		TotalCost:    q.TotalCost,
	}, nil
}

// buildLines turns a quote into booking line items (room + each non-free
// service, with price snapshots) and the commit-time availability guards
// (room exclusive, each limited service within its unit pool).
func (s *PaymentService) buildLines(q Quote) ([]domain.Booking, []domain.AvailabilityGuard) {
	items := []domain.Booking{{
		Bookable:             q.Room.Ref(),
		OriginalMonthlyPrice: q.Room.MonthlyPrice,
		OriginalDailyPrice:   q.Room.DailyPrice,
		BookingCost:          q.RoomCost.Round(2),
	}}
	guards := []domain.AvailabilityGuard{{
		Ref:            q.Room.Ref(),
		Name:           q.Room.Number,
		MaxOverlapping: 0,
	}}

	for _, svc := range q.Services {
		if svc.IsLimited {
			guards = append(guards, domain.AvailabilityGuard{
				Ref:            svc.Ref(),
				Name:           svc.Name,
				MaxOverlapping: svc.TotalUnits - 1,
			})
		}
		if svc.IsFree {
			continue
		}
		items = append(items, domain.Booking{
			Bookable:             svc.Ref(),
			OriginalMonthlyPrice: svc.MonthlyPrice,
			OriginalDailyPrice:   svc.DailyPrice,
			BookingCost:          q.ServiceCost(svc.ID).Round(2),
		})
	}
	return items, guards
}

// ConfirmPayment consumes a gateway callback exactly once: pending invoices
// transition to paid or cancelled, anything else is ErrInvalidState. Safe
// under webhook retries.
func (s *PaymentService) ConfirmPayment(ctx context.Context, reference string, outcome Outcome) (ConfirmResult, error) {
	inv, err := s.bookings.GetInvoiceByPaymentID(ctx, reference)
	if err != nil {
		return ConfirmResult{}, err
	}
	if inv.Status != domain.InvoicePending {
		return ConfirmResult{}, domain.ErrInvalidState
	}

	to := domain.InvoicePaid
	if outcome != OutcomeSucceeded {
		to = domain.InvoiceCancelled
	}
	// The repo guards the transition on status='pending', so a concurrent
	// duplicate callback loses here even after the read above.
	if err := s.bookings.SettleInvoice(ctx, inv.ID, to); err != nil {
		return ConfirmResult{}, err
	}

	if to == domain.InvoicePaid {
		if err := s.notify.Emit(ctx, "booking.paid", map[string]any{
			"invoiceId": inv.ID,
			"userId":    inv.UserID,
			"totalCost": inv.TotalCost.StringFixed(2),
			"startDate": inv.StartDate.Format("2006-01-02"),
			"endDate":   inv.EndDate.Format("2006-01-02"),
		}); err != nil {
			log.Warn().Err(err).Int64("invoice_id", inv.ID).Msg("paid notification emit failed")
		}
		log.Info().Int64("invoice_id", inv.ID).Msg("invoice paid")
		return ConfirmResult{Status: domain.InvoicePaid, Message: "payment confirmed"}, nil
	}

	log.Info().Int64("invoice_id", inv.ID).Msg("invoice cancelled")
	return ConfirmResult{Status: domain.InvoiceCancelled, Message: "payment failed, booking cancelled"}, nil
}

// ReconcilePending settles a stale pending invoice from the gateway's view
// of its charge: settled charges get the normal confirmation transition,
// anything in-flight is left for the operator.
func (s *PaymentService) ReconcilePending(ctx context.Context, inv domain.Invoice) error {
	status, err := s.gateway.ChargeStatus(ctx, inv.PaymentID)
	if err != nil {
		return err
	}
	switch status {
	case "succeeded":
		_, err = s.ConfirmPayment(ctx, inv.PaymentID, OutcomeSucceeded)
		return err
	case "canceled":
		_, err = s.ConfirmPayment(ctx, inv.PaymentID, OutcomeFailed)
		return err
	default:
		log.Warn().
			Int64("invoice_id", inv.ID).
			Str("payment_id", inv.PaymentID).
			Str("gateway_status", status).
			Msg("pending invoice needs operator attention")
		return nil
	}
}

func minorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
