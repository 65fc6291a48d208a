// Seeder populates the database from the campus building directory, then
// generates users, tags, and reviews through the same service paths the API
// uses, so the counter invariant holds for seeded data too.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/adapters/directory"
	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/adapters/observability"
	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/app"
	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/domain"
	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/shared"
	mysqlrepo "github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/storage/mysql"
)

var seedTags = []string{
	"Clean", "Dirty", "HighPressure", "LowPressure", "OutOfOrder",
	"Modern", "Spacious", domain.ColdWaterTag, "WarmWater",
}

var floors = []string{"B", "1", "2", "3", "4", "5"}

var usernameStems = []string{
	"alex", "jordan", "sam", "casey", "riley", "morgan", "taylor", "quinn",
	"avery", "reese", "drew", "jamie", "devon", "kai", "rowan", "sage",
}

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)
	log.Info().
		Str("directory", cfg.DirectoryBase).
		Int("workers", cfg.SeedWorkers).
		Int("users", cfg.SeedUsers).
		Int("reviews", cfg.SeedReviews).
		Msg("seeder starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	reviews := app.NewReviewService(repo, nil) // no cache to invalidate during seeding

	client, err := directory.New(cfg.DirectoryBase, cfg.DirectoryRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize directory client")
	}
	buildings, err := client.ListBuildings(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("directory fetch failed")
	}
	log.Info().Int("count", len(buildings)).Msg("buildings fetched")

	amenities := seedBuildings(ctx, cfg, repo, buildings)
	if len(amenities) == 0 {
		log.Fatal().Msg("no amenities seeded; aborting")
	}

	tagIDs := seedTagSet(ctx, repo)
	userIDs := seedUsers(ctx, cfg, repo)
	seedReviews(ctx, cfg, reviews, userIDs, amenities)
	seedTagLinks(ctx, repo, amenities, tagIDs)

	if drift, err := reviews.AuditCounts(ctx); err != nil {
		log.Warn().Err(err).Msg("count audit failed")
	} else if len(drift) > 0 {
		log.Error().Int("amenities", len(drift)).Msg("review_count drift detected after seeding")
	} else {
		log.Info().Msg("review counts consistent")
	}

	log.Info().Msg("seeding completed")
}

type seededAmenity struct {
	id  int64
	typ domain.AmenityType
}

func seedBuildings(ctx context.Context, cfg shared.Config, repo *mysqlrepo.Repo, buildings []domain.DirectoryBuilding) []seededAmenity {
	sem := semaphore.NewWeighted(int64(cfg.SeedWorkers))
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out []seededAmenity
	)

	for _, b := range buildings {
		b := b
		if b.Name == "" || b.Address == "" {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			addrID, err := repo.GetOrCreateAddress(ctx, b.Address, b.Lat, b.Lon)
			if err != nil {
				log.Warn().Str("building", b.Name).Err(err).Msg("address insert failed")
				return
			}
			bID, err := repo.GetOrCreateBuilding(ctx, b.Name, addrID)
			if err != nil {
				log.Warn().Str("building", b.Name).Err(err).Msg("building insert failed")
				return
			}

			var created []seededAmenity
			for _, typ := range domain.AmenityTypes {
				n := 1 + rand.Intn(4)
				for i := 0; i < n; i++ {
					floor := floors[rand.Intn(len(floors))]
					id, err := repo.CreateAmenity(ctx, domain.Amenity{
						BuildingID: bID,
						Type:       typ,
						Floor:      floor,
						Notes:      fmt.Sprintf("Located on floor %s, near entrance %d.", floor, i+1),
					})
					if err != nil {
						log.Warn().Str("building", b.Name).Err(err).Msg("amenity insert failed")
						continue
					}
					created = append(created, seededAmenity{id: id, typ: typ})
				}
			}
			mu.Lock()
			out = append(out, created...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	log.Info().Int("amenities", len(out)).Msg("buildings and amenities seeded")
	return out
}

func seedTagSet(ctx context.Context, repo *mysqlrepo.Repo) map[string]int64 {
	ids := make(map[string]int64, len(seedTags))
	for _, label := range seedTags {
		id, err := repo.GetOrCreateTag(ctx, label)
		if err != nil {
			log.Warn().Str("tag", label).Err(err).Msg("tag insert failed")
			continue
		}
		ids[label] = id
	}
	log.Info().Int("tags", len(ids)).Msg("tags seeded")
	return ids
}

func seedUsers(ctx context.Context, cfg shared.Config, repo *mysqlrepo.Repo) []int64 {
	out := make([]int64, 0, cfg.SeedUsers)
	for i := 0; i < cfg.SeedUsers; i++ {
		stem := usernameStems[rand.Intn(len(usernameStems))]
		username := fmt.Sprintf("%s%03d", stem, i)
		email := fmt.Sprintf("%s%03d@students.example.edu", stem, i)
		u, err := repo.CreateUser(ctx, username, email)
		if err != nil {
			log.Warn().Str("email", email).Err(err).Msg("user insert failed")
			continue
		}
		out = append(out, u.ID)
	}
	log.Info().Int("users", len(out)).Msg("users seeded")
	return out
}

func seedReviews(ctx context.Context, cfg shared.Config, reviews *app.ReviewService, userIDs []int64, amenities []seededAmenity) {
	if len(userIDs) == 0 {
		log.Warn().Msg("no users; skipping reviews")
		return
	}
	sem := semaphore.NewWeighted(int64(cfg.SeedWorkers))
	var wg sync.WaitGroup

	for i := 0; i < cfg.SeedReviews; i++ {
		userID := userIDs[rand.Intn(len(userIDs))]
		a := amenities[rand.Intn(len(amenities))]
		rating := 1.0 + rand.Float64()*4.0

		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			// Repeat picks of the same (user, amenity) pair exercise the
			// replace branch of the upsert.
			if _, err := reviews.SubmitRating(ctx, userID, a.id, rating, details(a.typ)); err != nil {
				log.Warn().Int64("user", userID).Int64("amenity", a.id).Err(err).Msg("review failed")
			}
		}()
	}
	wg.Wait()
	log.Info().Int("submitted", cfg.SeedReviews).Msg("reviews seeded")
}

func seedTagLinks(ctx context.Context, repo *mysqlrepo.Repo, amenities []seededAmenity, tagIDs map[string]int64) {
	labels := make([]string, 0, len(tagIDs))
	for l := range tagIDs {
		labels = append(labels, l)
	}
	if len(labels) == 0 {
		return
	}
	linked := 0
	for _, a := range amenities {
		if rand.Float64() >= 0.6 {
			continue
		}
		n := 1 + rand.Intn(3)
		for i := 0; i < n; i++ {
			label := labels[rand.Intn(len(labels))]
			if err := repo.TagAmenity(ctx, a.id, tagIDs[label]); err != nil {
				log.Warn().Int64("amenity", a.id).Str("tag", label).Err(err).Msg("tag link failed")
				continue
			}
			linked++
		}
	}
	log.Info().Int("links", linked).Msg("amenity tags linked")
}

func details(t domain.AmenityType) json.RawMessage {
	var m map[string]any
	switch t {
	case domain.TypeBathroom:
		m = map[string]any{
			"cleanliness": 1 + rand.Intn(5),
			"privacy":     1 + rand.Intn(5),
			"stock":       1 + rand.Intn(5),
		}
	case domain.TypeWaterFountain:
		m = map[string]any{
			"flow":          1 + rand.Intn(5),
			"temperature":   1 + rand.Intn(5),
			"filter_status": pick("Good", "Needs Replacement"),
		}
	default: // VendingMachine
		m = map[string]any{
			"selection":       1 + rand.Intn(5),
			"working_status":  pick("Working", "Error", "OutOfOrder"),
			"payment_options": pick("Cash Only", "Card Only", "Both"),
		}
	}
	b, _ := json.Marshal(m)
	return b
}

func pick(opts ...string) string { return opts[rand.Intn(len(opts))] }
