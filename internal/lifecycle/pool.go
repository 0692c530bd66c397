package lifecycle

import (
	"fmt"

	"dormpool/backend/internal/models"
	"dormpool/backend/internal/storage"
)

// PoolService is the read surface for pool aggregates.
type PoolService struct {
	Store storage.Storage
}

func NewPoolService(st storage.Storage) *PoolService {
	return &PoolService{Store: st}
}

// PoolDetail is a pool with its contributing baskets.
type PoolDetail struct {
	Pool    models.Pool     `json:"pool"`
	Baskets []models.Basket `json:"baskets"`
}

func (s *PoolService) Get(poolID string) (*PoolDetail, error) {
	pool, err := s.Store.GetPoolByID(poolID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, fmt.Errorf("%w: pool %s", ErrNotFound, poolID)
	}
	baskets, err := s.Store.GetPoolBaskets(poolID)
	if err != nil {
		return nil, err
	}
	return &PoolDetail{Pool: *pool, Baskets: baskets}, nil
}
