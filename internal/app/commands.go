package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/adapters/observability"
	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/domain"
)

// ReviewService is the sole entry point that mutates review state. Every
// successful write invalidates the read-side caches for the amenities it
// touched.
type ReviewService struct {
	repo  domain.Repository
	cache domain.Cache
}

func NewReviewService(r domain.Repository, cache domain.Cache) *ReviewService {
	return &ReviewService{repo: r, cache: cache}
}

// SubmitRating creates the caller's review for an amenity, or replaces it in
// place when one already exists. The replace branch is the defined happy
// path, not an error.
func (s *ReviewService) SubmitRating(ctx context.Context, userID, amenityID int64, rating float64, details json.RawMessage) (domain.UpsertResult, error) {
	norm, err := domain.NormalizeRating(rating)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	if len(details) > 0 && !json.Valid(details) {
		return domain.UpsertResult{}, fmt.Errorf("rating_details is not valid JSON: %w", domain.ErrInvalidArgument)
	}

	res, err := s.repo.UpsertReview(ctx, userID, amenityID, norm, details)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	if res.Inserted {
		observability.ObserveReview("insert")
	} else {
		observability.ObserveReview("update")
	}
	s.invalidateAmenity(ctx, amenityID)
	return res, nil
}

// UpdateReview patches an existing review by id. Reassigning the review to a
// different amenity moves one unit of review_count from the old amenity to
// the new one within the repository transaction.
func (s *ReviewService) UpdateReview(ctx context.Context, reviewID int64, patch domain.ReviewPatch) (domain.Review, error) {
	if patch.Empty() {
		return domain.Review{}, fmt.Errorf("no fields to update: %w", domain.ErrInvalidArgument)
	}
	if patch.OverallRating != nil {
		norm, err := domain.NormalizeRating(*patch.OverallRating)
		if err != nil {
			return domain.Review{}, err
		}
		patch.OverallRating = &norm
	}
	if patch.Details != nil && !json.Valid(patch.Details) {
		return domain.Review{}, fmt.Errorf("rating_details is not valid JSON: %w", domain.ErrInvalidArgument)
	}

	rv, prevAmenity, err := s.repo.UpdateReview(ctx, reviewID, patch)
	if err != nil {
		return domain.Review{}, err
	}
	observability.ObserveReview("update")
	s.invalidateAmenity(ctx, rv.AmenityID)
	if prevAmenity != rv.AmenityID {
		s.invalidateAmenity(ctx, prevAmenity)
	}
	return rv, nil
}

func (s *ReviewService) DeleteReview(ctx context.Context, reviewID int64) error {
	amenityID, err := s.repo.DeleteReview(ctx, reviewID)
	if err != nil {
		return err
	}
	observability.ObserveReview("delete")
	s.invalidateAmenity(ctx, amenityID)
	return nil
}

// AuditCounts surfaces amenities whose stored review_count disagrees with
// the actual count. Operational verification only; nothing self-heals.
func (s *ReviewService) AuditCounts(ctx context.Context) ([]domain.DriftRecord, error) {
	return s.repo.CountDrift(ctx)
}

func (s *ReviewService) invalidateAmenity(ctx context.Context, amenityID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, fmt.Sprintf("stats:%d", amenityID))
	for _, lim := range reviewPageSizes {
		_ = s.cache.Del(ctx, fmt.Sprintf("reviews:%d:%d", amenityID, lim))
	}
	for _, k := range []domain.LeaderboardKind{
		domain.KindCleanBathroomsVending,
		domain.KindColdestFountains,
		domain.KindOverallAmenities,
	} {
		_ = s.cache.Del(ctx, "leaderboard:"+string(k))
	}
}

// UserService handles the thin user CRUD surface.
type UserService struct {
	repo domain.Repository
}

func NewUserService(r domain.Repository) *UserService { return &UserService{repo: r} }

// CreateUser rejects duplicate emails (case-insensitively) with ErrConflict.
func (s *UserService) CreateUser(ctx context.Context, username, email string) (domain.User, error) {
	if username == "" || email == "" {
		return domain.User{}, fmt.Errorf("username and email are required: %w", domain.ErrInvalidArgument)
	}
	return s.repo.CreateUser(ctx, username, email)
}
