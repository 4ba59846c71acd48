package app

import (
	"context"
	"fmt"
	"time"

	"staybook/internal/domain"
)

// AvailabilityService answers date-range availability questions over active
// bookings (parent invoice not cancelled). The queries here are the
// preview-path reads; the commit-time re-check runs inside the booking
// transaction with row locks.
type AvailabilityService struct {
	bookings domain.BookingRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewAvailabilityService(b domain.BookingRepository, c domain.Cache, ttl time.Duration) *AvailabilityService {
	return &AvailabilityService{bookings: b, cache: c, cacheTTL: ttl}
}

// IsAvailable reports whether no active booking of ref overlaps rng.
// Touching endpoints conflict.
func (s *AvailabilityService) IsAvailable(ctx context.Context, ref domain.BookableRef, rng domain.Range) (bool, error) {
	n, err := s.bookings.CountActiveOverlapping(ctx, ref, rng)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// AvailableUnits returns how many units of a limited service remain free in
// rng. Every overlapping active booking consumes one unit for the whole
// range regardless of its own sub-range; partially-overlapping bookings are
// not integrated into a max-concurrent-usage figure.
func (s *AvailabilityService) AvailableUnits(ctx context.Context, svc domain.Service, rng domain.Range) (int, error) {
	n, err := s.bookings.CountActiveOverlapping(ctx, svc.Ref(), rng)
	if err != nil {
		return 0, err
	}
	units := svc.TotalUnits - n
	if units < 0 {
		units = 0
	}
	return units, nil
}

// UnavailableDates lists the blocked date ranges of ref's current active
// bookings (end date not yet passed), for calendar display.
func (s *AvailabilityService) UnavailableDates(ctx context.Context, ref domain.BookableRef) ([]domain.Range, error) {
	key := blockedKey(ref)
	var out []domain.Range
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	out, err := s.bookings.ActiveRanges(ctx, ref)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

// InvalidateBlocked evicts the blocked-dates cache after new bookings land.
func (s *AvailabilityService) InvalidateBlocked(ctx context.Context, refs ...domain.BookableRef) {
	for _, ref := range refs {
		_ = s.cache.Del(ctx, blockedKey(ref))
	}
}

func blockedKey(ref domain.BookableRef) string {
	return fmt.Sprintf("blocked:%s:%d", ref.Type, ref.ID)
}
