package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// ProtocolService serves protocol reads.
type ProtocolService struct {
	protocols domain.ProtocolStore
}

// NewProtocolService creates a ProtocolService.
func NewProtocolService(protocols domain.ProtocolStore) *ProtocolService {
	return &ProtocolService{protocols: protocols}
}

// List returns every protocol ordered by name.
func (s *ProtocolService) List(ctx context.Context) ([]domain.Protocol, error) {
	ps, err := s.protocols.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("protocol_service: list: %w", err)
	}
	if ps == nil {
		ps = []domain.Protocol{}
	}
	return ps, nil
}

// Get returns a single protocol.
func (s *ProtocolService) Get(ctx context.Context, id string) (domain.Protocol, error) {
	p, err := s.protocols.GetByID(ctx, id)
	if err != nil {
		return domain.Protocol{}, fmt.Errorf("protocol_service: get %q: %w", id, err)
	}
	return p, nil
}
