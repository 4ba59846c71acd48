package app

import (
	"context"
	"fmt"
	"time"

	"staybook/internal/domain"
)

// CatalogService serves read models of the bookable catalog with a Redis
// read-through cache in front of the repository.
type CatalogService struct {
	repo     domain.CatalogRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewCatalogService(r domain.CatalogRepository, c domain.Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{repo: r, cache: c, cacheTTL: ttl}
}

// RoomView is a room with the services offered for its type.
type RoomView struct {
	Room     domain.Room
	Services []domain.Service
}

func (s *CatalogService) RoomDetail(ctx context.Context, id int64) (RoomView, error) {
	key := fmt.Sprintf("room:%d", id)
	var rv RoomView
	if ok, _ := s.cache.Get(ctx, key, &rv); ok {
		return rv, nil
	}

	room, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return RoomView{}, err
	}
	svcs, err := s.repo.ListRoomTypeServices(ctx, room.RoomTypeID)
	if err != nil {
		return RoomView{}, err
	}
	rv = RoomView{Room: room, Services: svcs}
	_ = s.cache.Set(ctx, key, rv, int(s.cacheTTL.Seconds()))
	return rv, nil
}
