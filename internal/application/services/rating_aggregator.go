package services

import (
	"context"
	"encoding/json"
	"math"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
	"github.com/agrilink/marketplace-backend/internal/domain/providers"
	"github.com/agrilink/marketplace-backend/internal/domain/repositories"
	"github.com/agrilink/marketplace-backend/internal/infrastructure/observability"
)

const (
	dealerRatingKeyPrefix = "dealer:rating:"

	// The cache is a read-through of the last recompute, refreshed on every
	// rating mutation. The TTL only bounds staleness if a refresh is missed,
	// so it is kept short; a failed recompute drops the key outright.
	dealerRatingTTLSeconds = 5 * 60
)

// RatingAggregator derives the per-seller rating summary. Every recompute
// scans the live set of non-flagged ratings and fully replaces the cached
// value; nothing is merged or incremented, so concurrent recomputes converge.
type RatingAggregator struct {
	repo  repositories.RatingRepository
	cache providers.CacheProvider
}

// NewRatingAggregator creates a new aggregator. cache may be nil; summaries
// are then recomputed on every read.
func NewRatingAggregator(repo repositories.RatingRepository, cache providers.CacheProvider) *RatingAggregator {
	return &RatingAggregator{
		repo:  repo,
		cache: cache,
	}
}

// Recompute rebuilds the seller's aggregate from the live non-flagged rating
// set and replaces the cached copy.
func (a *RatingAggregator) Recompute(ctx context.Context, sellerID string) (*entities.DealerRatingAggregate, error) {
	ratings, err := readWithRetry(ctx, "rating scan", func() ([]*entities.Rating, error) {
		return a.repo.ListBySeller(ctx, sellerID, false)
	})
	if err != nil {
		a.dropCached(ctx, sellerID)
		return nil, err
	}

	aggregate := entities.EmptyDealerRatingAggregate(sellerID)
	if len(ratings) > 0 {
		sum := 0
		for _, rating := range ratings {
			sum += rating.Stars
			aggregate.Distribution[rating.Stars]++
		}
		aggregate.TotalCount = len(ratings)
		aggregate.Average = roundHalfUp1(float64(sum) / float64(len(ratings)))
	}

	a.storeCached(ctx, aggregate)

	return aggregate, nil
}

// Summary returns the seller's aggregate: the cached value when present,
// otherwise a fresh recompute.
func (a *RatingAggregator) Summary(ctx context.Context, sellerID string) (*entities.DealerRatingAggregate, error) {
	if cached := a.loadCached(ctx, sellerID); cached != nil {
		return cached, nil
	}
	return a.Recompute(ctx, sellerID)
}

func (a *RatingAggregator) loadCached(ctx context.Context, sellerID string) *entities.DealerRatingAggregate {
	if a.cache == nil {
		return nil
	}

	data, err := a.cache.Get(ctx, dealerRatingKeyPrefix+sellerID)
	if err != nil {
		return nil
	}

	aggregate := &entities.DealerRatingAggregate{}
	if err := json.Unmarshal(data, aggregate); err != nil {
		return nil
	}
	return aggregate
}

func (a *RatingAggregator) storeCached(ctx context.Context, aggregate *entities.DealerRatingAggregate) {
	if a.cache == nil {
		return
	}

	data, err := json.Marshal(aggregate)
	if err != nil {
		return
	}

	if err := a.cache.Set(ctx, dealerRatingKeyPrefix+aggregate.SellerID, data, dealerRatingTTLSeconds); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("seller_id", aggregate.SellerID).
			Msg("failed to cache dealer rating aggregate")
	}
}

// dropCached removes the seller's cached aggregate so a stale value is not
// served past a failed recompute.
func (a *RatingAggregator) dropCached(ctx context.Context, sellerID string) {
	if a.cache == nil {
		return
	}

	if err := a.cache.Delete(ctx, dealerRatingKeyPrefix+sellerID); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("seller_id", sellerID).
			Msg("failed to drop dealer rating aggregate cache")
	}
}

// roundHalfUp1 rounds to one decimal place, half away from zero upward.
func roundHalfUp1(value float64) float64 {
	return math.Floor(value*10+0.5) / 10
}
