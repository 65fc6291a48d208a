package app

import (
	"context"
	"fmt"
	"time"

	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/domain"
)

// reviewPageSizes are the only list limits served through the cache. Writes
// invalidate exactly these keys, so any other limit must bypass the cache or
// it would serve stale lists until TTL.
var reviewPageSizes = []int{50, 100, 200}

func cacheableReviewLimit(limit int) bool {
	for _, l := range reviewPageSizes {
		if limit == l {
			return true
		}
	}
	return false
}

type QueryService struct {
	repo           domain.Repository
	cache          domain.Cache
	cacheTTL       time.Duration
	minBathroomAvg float64
}

func NewQueryService(r domain.Repository, c domain.Cache, ttl time.Duration, minBathroomAvg float64) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, minBathroomAvg: minBathroomAvg}
}

// GetAmenityStats is cache-aside: counter plus live average, invalidated by
// every write touching the amenity.
func (s *QueryService) GetAmenityStats(ctx context.Context, amenityID int64) (domain.AmenityStats, error) {
	key := fmt.Sprintf("stats:%d", amenityID)
	var st domain.AmenityStats
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &st); ok {
			return st, nil
		}
	}
	st, err := s.repo.GetAmenityStats(ctx, amenityID)
	if err != nil {
		return domain.AmenityStats{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, st, int(s.cacheTTL.Seconds()))
	}
	return st, nil
}

func (s *QueryService) ListReviews(ctx context.Context, amenityID int64, limit int) ([]domain.Review, error) {
	if limit <= 0 {
		limit = 50
	}
	key := fmt.Sprintf("reviews:%d:%d", amenityID, limit)
	cached := s.cache != nil && cacheableReviewLimit(limit)
	var out []domain.Review
	if cached {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}
	out, err := s.repo.ListReviews(ctx, amenityID, limit)
	if err != nil {
		return nil, err
	}
	if cached {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

func (s *QueryService) GetReview(ctx context.Context, reviewID int64) (domain.Review, error) {
	return s.repo.GetReview(ctx, reviewID)
}

// ListAmenities is served straight from the store: the filter space is too
// wide for enumerated cache invalidation, and the ordering tolerates the
// same staleness TTL would give anyway.
func (s *QueryService) ListAmenities(ctx context.Context, q domain.AmenityQuery) ([]domain.AmenityView, error) {
	return s.repo.ListAmenities(ctx, q)
}

func (s *QueryService) Leaderboard(ctx context.Context, kind domain.LeaderboardKind) (domain.Leaderboard, error) {
	key := "leaderboard:" + string(kind)
	var lb domain.Leaderboard
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &lb); ok {
			return lb, nil
		}
	}

	var (
		items []domain.LeaderboardRow
		err   error
	)
	switch kind {
	case domain.KindCleanBathroomsVending:
		items, err = s.repo.CleanBathroomsVending(ctx, s.minBathroomAvg)
	case domain.KindColdestFountains:
		items, err = s.repo.ColdestFountains(ctx)
	case domain.KindOverallAmenities:
		items, err = s.repo.OverallAmenities(ctx)
	default:
		return domain.Leaderboard{}, fmt.Errorf("leaderboard kind %q: %w", kind, domain.ErrInvalidArgument)
	}
	if err != nil {
		return domain.Leaderboard{}, err
	}

	lb = domain.Leaderboard{Kind: kind, Items: items}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, lb, int(s.cacheTTL.Seconds()))
	}
	return lb, nil
}
