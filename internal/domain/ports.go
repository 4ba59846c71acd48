package domain

import (
	"context"
	"time"
)

type CatalogRepository interface {
	GetRoom(ctx context.Context, id int64) (Room, error)
	// GetServices resolves the given ids; an id with no row yields ErrNotFound.
	GetServices(ctx context.Context, ids []int64) ([]Service, error)
	ListRoomTypeServices(ctx context.Context, roomTypeID int64) ([]Service, error)
}

type BookingRepository interface {
	// CountActiveOverlapping counts bookings of ref whose parent invoice is
	// not cancelled and whose date range overlaps r.
	CountActiveOverlapping(ctx context.Context, ref BookableRef, r Range) (int, error)

	// ActiveRanges lists the date ranges of not-yet-ended active bookings of
	// ref, for blocked-date display.
	ActiveRanges(ctx context.Context, ref BookableRef) ([]Range, error)

	// CreateInvoiceWithBookings inserts the invoice plus all its line items
	// in one transaction, re-checking every guard with row locks inside that
	// same transaction. A lost race returns ConflictError and persists
	// nothing; any other failure rolls back completely.
	CreateInvoiceWithBookings(ctx context.Context, inv Invoice, items []Booking, guards []AvailabilityGuard) (int64, error)

	GetInvoiceByPaymentID(ctx context.Context, paymentID string) (Invoice, error)

	// SettleInvoice transitions a pending invoice to paid or cancelled.
	// Returns ErrInvalidState when the invoice is no longer pending.
	SettleInvoice(ctx context.Context, invoiceID int64, to InvoiceStatus) error

	// ListPendingOlderThan returns pending invoices created before now-age,
	// oldest first. Reconciliation input.
	ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]Invoice, error)
}

// Charge is the gateway-side handle of a payment attempt.
type Charge struct {
	Reference    string
	ClientSecret string
}

type PaymentGateway interface {
	// Charge initiates an external payment of amountMinor (minor currency
	// units) against the given payment method token.
	Charge(ctx context.Context, amountMinor int64, currency, paymentMethodToken string) (Charge, error)

	// ChargeStatus reports the gateway-side state of a previously created
	// charge. Used by reconciliation, not by the request path.
	ChargeStatus(ctx context.Context, reference string) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// NotificationSink receives domain events. Fire-and-forget from the core's
// perspective; delivery and rendering are surrounding infrastructure.
type NotificationSink interface {
	Emit(ctx context.Context, eventType string, payload map[string]any) error
}
