package domain

import "github.com/shopspring/decimal"

// Room is a bookable room joined with its type's rates. Read-only to the
// booking core; catalog CRUD lives elsewhere.
type Room struct {
	ID           int64
	RoomTypeID   int64
	Number       string
	MonthlyPrice decimal.Decimal
	DailyPrice   decimal.Decimal
}

func (r Room) Ref() BookableRef { return BookableRef{Type: BookableRoom, ID: r.ID} }

// Service is an add-on bookable per stay. Free services never contribute to
// cost; limited services carry a finite pool of concurrently usable units.
type Service struct {
	ID           int64
	Name         string
	MonthlyPrice decimal.Decimal
	DailyPrice   decimal.Decimal
	IsFree       bool
	IsLimited    bool
	TotalUnits   int
	RoomTypeIDs  []int64
}

func (s Service) Ref() BookableRef { return BookableRef{Type: BookableService, ID: s.ID} }

// OfferedFor reports whether the service is assigned to the given room type.
func (s Service) OfferedFor(roomTypeID int64) bool {
	for _, id := range s.RoomTypeIDs {
		if id == roomTypeID {
			return true
		}
	}
	return false
}
