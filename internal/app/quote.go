package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"staybook/internal/domain"
)

// Quote is the cost breakdown for a room plus selected services over a date
// range. Monetary fields stay at full precision; callers round at their
// boundary. The same Quote method backs both the preview endpoint and the
// charge path, so the two always agree.
type Quote struct {
	Span         domain.Span
	Room         domain.Room
	Services     []domain.Service
	RoomCost     decimal.Decimal
	ServicesCost decimal.Decimal
	TotalCost    decimal.Decimal

	serviceCosts map[int64]decimal.Decimal
}

// ServiceCost returns the line cost computed for a selected service; zero
// for free services.
func (q Quote) ServiceCost(serviceID int64) decimal.Decimal {
	if c, ok := q.serviceCosts[serviceID]; ok {
		return c
	}
	return decimal.Zero
}

type QuoteService struct {
	catalog domain.CatalogRepository
}

func NewQuoteService(c domain.CatalogRepository) *QuoteService {
	return &QuoteService{catalog: c}
}

// Quote resolves the room and services from the catalog and aggregates the
// stay cost. Unknown ids and services not offered for the room's type are
// ErrNotFound. Prices are never taken from the caller.
func (s *QuoteService) Quote(ctx context.Context, roomID int64, serviceIDs []int64, rng domain.Range) (Quote, error) {
	room, err := s.catalog.GetRoom(ctx, roomID)
	if err != nil {
		return Quote{}, err
	}
	svcs, err := s.catalog.GetServices(ctx, serviceIDs)
	if err != nil {
		return Quote{}, err
	}
	for _, svc := range svcs {
		if !svc.OfferedFor(room.RoomTypeID) {
			return Quote{}, fmt.Errorf("service %d is not offered for room %d: %w", svc.ID, room.ID, domain.ErrNotFound)
		}
	}

	span := domain.SpanBetween(rng.Start, rng.End)
	roomCost := span.Price(room.MonthlyPrice, room.DailyPrice)

	servicesCost := decimal.Zero
	serviceCosts := make(map[int64]decimal.Decimal, len(svcs))
	for _, svc := range svcs {
		if svc.IsFree {
			// free services contribute nothing regardless of stored rates
			serviceCosts[svc.ID] = decimal.Zero
			continue
		}
		c := span.Price(svc.MonthlyPrice, svc.DailyPrice)
		serviceCosts[svc.ID] = c
		servicesCost = servicesCost.Add(c)
	}

	return Quote{
		Span:         span,
		Room:         room,
		Services:     svcs,
		RoomCost:     roomCost,
		ServicesCost: servicesCost,
		TotalCost:    roomCost.Add(servicesCost),
		serviceCosts: serviceCosts,
	}, nil
}
