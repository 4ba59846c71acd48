package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

type BookableType string

const (
	BookableRoom    BookableType = "room"
	BookableService BookableType = "service"
)

// ParseBookableType maps the wire form ("room"/"service") to the enum.
func ParseBookableType(s string) (BookableType, error) {
	switch BookableType(s) {
	case BookableRoom:
		return BookableRoom, nil
	case BookableService:
		return BookableService, nil
	}
	return "", fmt.Errorf("unknown bookable type %q: %w", s, ErrNotFound)
}

// BookableRef identifies a reservable entity without owning it.
type BookableRef struct {
	Type BookableType
	ID   int64
}

func (r BookableRef) String() string { return fmt.Sprintf("%s/%d", r.Type, r.ID) }

// Invoice is one payment transaction for a stay. CountMonth/CountDay carry
// the canonical span decomposition of [StartDate, EndDate]. Status moves
// pending -> paid|cancelled exactly once.
type Invoice struct {
	ID         int64
	UserID     int64
	StartDate  time.Time
	EndDate    time.Time
	CountMonth int
	CountDay   int
	TotalCost  decimal.Decimal
	Status     InvoiceStatus
	PaymentID  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (i Invoice) Range() Range { return Range{Start: i.StartDate, End: i.EndDate} }

// Booking is one billed line item of an invoice. The price fields snapshot
// the catalog rates at booking time; later catalog changes never touch them.
// Immutable after creation.
type Booking struct {
	ID                   int64
	InvoiceID            int64
	Bookable             BookableRef
	OriginalMonthlyPrice decimal.Decimal
	OriginalDailyPrice   decimal.Decimal
	BookingCost          decimal.Decimal
	CreatedAt            time.Time
}

// AvailabilityGuard is the commit-time re-check for one booked entity:
// inside the booking transaction the count of existing overlapping active
// bookings must not exceed MaxOverlapping (0 for rooms, totalUnits-1 for
// limited services).
type AvailabilityGuard struct {
	Ref            BookableRef
	Name           string
	MaxOverlapping int
}
