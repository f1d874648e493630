package repositories

import (
	"context"
	"fmt"
	"time"

	"safety-inspection/pkg/constants"
)

type TokenRevocationRepositoryInterface interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenRevocationRepository keeps revoked jti values until the token would have expired anyway.
type TokenRevocationRepository struct {
	cache CacheRepositoryInterface
}

func NewTokenRevocationRepository(cache CacheRepositoryInterface) TokenRevocationRepositoryInterface {
	return &TokenRevocationRepository{cache: cache}
}

func (r *TokenRevocationRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.cache.Set(ctx, fmt.Sprintf(constants.CacheKeyRevokedToken, tokenID), "1", ttl)
}

func (r *TokenRevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return r.cache.Exists(ctx, fmt.Sprintf(constants.CacheKeyRevokedToken, tokenID))
}
