//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/domain"
	mysqlrepo "github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/storage/mysql"
)

// ---------- helpers ----------

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/migrations)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=amenities",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "amenities")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

type fixture struct {
	repo *mysqlrepo.Repo
	db   *sql.DB

	userU, userV int64
	buildingID   int64

	bathroomA int64
	bathroomB int64
	fountain  int64
	vending   int64
}

func seed(t *testing.T, db *sql.DB) *fixture {
	t.Helper()
	repo := mysqlrepo.New(db)
	ctx := context.Background()
	f := &fixture{repo: repo, db: db}

	addrID, err := repo.GetOrCreateAddress(ctx, "1301 W Springfield Ave", 40.11, -88.22)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	f.buildingID, err = repo.GetOrCreateBuilding(ctx, "Grainger", addrID)
	if err != nil {
		t.Fatalf("building: %v", err)
	}

	mk := func(typ domain.AmenityType, floor string) int64 {
		id, err := repo.CreateAmenity(ctx, domain.Amenity{BuildingID: f.buildingID, Type: typ, Floor: floor})
		if err != nil {
			t.Fatalf("amenity %s: %v", typ, err)
		}
		return id
	}
	f.bathroomA = mk(domain.TypeBathroom, "1")
	f.bathroomB = mk(domain.TypeBathroom, "2")
	f.fountain = mk(domain.TypeWaterFountain, "1")
	f.vending = mk(domain.TypeVendingMachine, "B")

	u, err := repo.CreateUser(ctx, "usr_u", "u@students.example.edu")
	if err != nil {
		t.Fatalf("user u: %v", err)
	}
	f.userU = u.ID
	v, err := repo.CreateUser(ctx, "usr_v", "v@students.example.edu")
	if err != nil {
		t.Fatalf("user v: %v", err)
	}
	f.userV = v.ID
	return f
}

func stats(t *testing.T, f *fixture, amenityID int64) domain.AmenityStats {
	t.Helper()
	st, err := f.repo.GetAmenityStats(context.Background(), amenityID)
	if err != nil {
		t.Fatalf("GetAmenityStats(%d): %v", amenityID, err)
	}
	return st
}

func mustConsistent(t *testing.T, f *fixture) {
	t.Helper()
	drift, err := f.repo.CountDrift(context.Background())
	if err != nil {
		t.Fatalf("CountDrift: %v", err)
	}
	if len(drift) != 0 {
		t.Fatalf("review_count drift: %+v", drift)
	}
}

// ---------- the tests ----------

func TestRepo_MySQL_ReviewConsistency(t *testing.T) {
	db := startMySQL(t)
	f := seed(t, db)
	ctx := context.Background()

	var firstID int64

	t.Run("first submission inserts and counts", func(t *testing.T) {
		res, err := f.repo.UpsertReview(ctx, f.userU, f.bathroomA, 4.0, json.RawMessage(`{"cleanliness":4}`))
		if err != nil {
			t.Fatalf("UpsertReview: %v", err)
		}
		if !res.Inserted || res.ReviewID == 0 || res.Timestamp.IsZero() {
			t.Fatalf("unexpected result: %+v", res)
		}
		firstID = res.ReviewID

		st := stats(t, f, f.bathroomA)
		if st.ReviewCount != 1 || st.AvgRating != 4.0 {
			t.Fatalf("stats after insert: %+v", st)
		}
		mustConsistent(t, f)
	})

	t.Run("resubmission replaces in place", func(t *testing.T) {
		res, err := f.repo.UpsertReview(ctx, f.userU, f.bathroomA, 2.0, json.RawMessage(`{"cleanliness":2}`))
		if err != nil {
			t.Fatalf("UpsertReview: %v", err)
		}
		if res.Inserted {
			t.Fatalf("expected update, got insert: %+v", res)
		}
		if res.ReviewID != firstID {
			t.Fatalf("review identity changed: %d != %d", res.ReviewID, firstID)
		}

		st := stats(t, f, f.bathroomA)
		if st.ReviewCount != 1 || st.AvgRating != 2.0 {
			t.Fatalf("stats after replace: %+v", st)
		}

		rv, err := f.repo.GetReview(ctx, firstID)
		if err != nil {
			t.Fatalf("GetReview: %v", err)
		}
		if rv.OverallRating != 2.0 {
			t.Fatalf("rating not replaced: %+v", rv)
		}
		mustConsistent(t, f)
	})

	t.Run("second user raises count and average", func(t *testing.T) {
		if _, err := f.repo.UpsertReview(ctx, f.userV, f.bathroomA, 5.0, nil); err != nil {
			t.Fatalf("UpsertReview: %v", err)
		}
		st := stats(t, f, f.bathroomA)
		if st.ReviewCount != 2 || st.AvgRating != 3.5 {
			t.Fatalf("stats: %+v (want count 2, avg 3.5)", st)
		}
		if st.LatestReview == nil {
			t.Fatalf("expected latest review timestamp")
		}
		mustConsistent(t, f)
	})

	t.Run("reassignment moves one counter unit", func(t *testing.T) {
		rv, prev, err := f.repo.UpdateReview(ctx, firstID, domain.ReviewPatch{AmenityID: &f.bathroomB})
		if err != nil {
			t.Fatalf("UpdateReview: %v", err)
		}
		if prev != f.bathroomA || rv.AmenityID != f.bathroomB {
			t.Fatalf("unexpected reassignment: prev=%d rv=%+v", prev, rv)
		}
		if a, b := stats(t, f, f.bathroomA), stats(t, f, f.bathroomB); a.ReviewCount != 1 || b.ReviewCount != 1 {
			t.Fatalf("counts after reassignment: A=%d B=%d", a.ReviewCount, b.ReviewCount)
		}
		mustConsistent(t, f)
	})

	t.Run("reassignment onto an existing pair conflicts", func(t *testing.T) {
		// V already reviews bathroomA; moving V's bathroomB review onto
		// bathroomA would duplicate the (user, amenity) pair.
		res, err := f.repo.UpsertReview(ctx, f.userV, f.bathroomB, 3.0, nil)
		if err != nil {
			t.Fatalf("UpsertReview: %v", err)
		}
		if _, _, err := f.repo.UpdateReview(ctx, res.ReviewID, domain.ReviewPatch{AmenityID: &f.bathroomA}); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("want ErrConflict, got %v", err)
		}
		mustConsistent(t, f)
	})

	t.Run("rating patch without reassignment keeps counts", func(t *testing.T) {
		before := stats(t, f, f.bathroomB).ReviewCount
		newRating := 1.5
		rv, _, err := f.repo.UpdateReview(ctx, firstID, domain.ReviewPatch{OverallRating: &newRating})
		if err != nil {
			t.Fatalf("UpdateReview: %v", err)
		}
		if rv.OverallRating != 1.5 {
			t.Fatalf("rating not patched: %+v", rv)
		}
		if after := stats(t, f, f.bathroomB).ReviewCount; after != before {
			t.Fatalf("count changed on in-place patch: %d -> %d", before, after)
		}
		mustConsistent(t, f)
	})

	t.Run("delete decrements", func(t *testing.T) {
		before := stats(t, f, f.bathroomB).ReviewCount
		amenityID, err := f.repo.DeleteReview(ctx, firstID)
		if err != nil {
			t.Fatalf("DeleteReview: %v", err)
		}
		if amenityID != f.bathroomB {
			t.Fatalf("unexpected amenity id: %d", amenityID)
		}
		if after := stats(t, f, f.bathroomB).ReviewCount; after != before-1 {
			t.Fatalf("count after delete: %d -> %d", before, after)
		}
		if _, err := f.repo.DeleteReview(ctx, firstID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("second delete: want ErrNotFound, got %v", err)
		}
		mustConsistent(t, f)
	})

	t.Run("delete clamps at zero", func(t *testing.T) {
		res, err := f.repo.UpsertReview(ctx, f.userU, f.fountain, 3.0, nil)
		if err != nil {
			t.Fatalf("UpsertReview: %v", err)
		}
		// Force inconsistent prior state; the audit must see it, and the
		// clamped decrement must not go negative.
		if _, err := db.Exec(`UPDATE amenities SET review_count = 0 WHERE id = ?`, f.fountain); err != nil {
			t.Fatalf("force counter: %v", err)
		}
		drift, err := f.repo.CountDrift(ctx)
		if err != nil {
			t.Fatalf("CountDrift: %v", err)
		}
		if len(drift) != 1 || drift[0].AmenityID != f.fountain || drift[0].StoredCount != 0 || drift[0].ActualCount != 1 {
			t.Fatalf("unexpected drift: %+v", drift)
		}
		if _, err := f.repo.DeleteReview(ctx, res.ReviewID); err != nil {
			t.Fatalf("DeleteReview: %v", err)
		}
		if st := stats(t, f, f.fountain); st.ReviewCount != 0 {
			t.Fatalf("counter went negative or stuck: %+v", st)
		}
		mustConsistent(t, f)
	})

	t.Run("missing references map to NotFound", func(t *testing.T) {
		if _, err := f.repo.UpsertReview(ctx, 999999, f.bathroomA, 3.0, nil); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("missing user: want ErrNotFound, got %v", err)
		}
		if _, err := f.repo.UpsertReview(ctx, f.userU, 999999, 3.0, nil); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("missing amenity: want ErrNotFound, got %v", err)
		}
		if _, err := f.repo.GetAmenityStats(ctx, 999999); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("missing amenity stats: want ErrNotFound, got %v", err)
		}
	})

	t.Run("zero review amenity reads as zero", func(t *testing.T) {
		st := stats(t, f, f.vending)
		if st.AvgRating != 0 || st.ReviewCount != 0 || st.LatestReview != nil {
			t.Fatalf("expected zero aggregates: %+v", st)
		}
		if st.BuildingName != "Grainger" {
			t.Fatalf("expected building name, got %+v", st)
		}
	})
}

func TestRepo_MySQL_ConcurrentUpserts(t *testing.T) {
	db := startMySQL(t)
	f := seed(t, db)
	ctx := context.Background()

	// 16 users, 4 goroutines each submitting for the same amenity. Each
	// pair must land exactly one review; the counter must equal 16.
	const users = 16
	ids := make([]int64, users)
	for i := range ids {
		u, err := f.repo.CreateUser(ctx, fmt.Sprintf("cc%02d", i), fmt.Sprintf("cc%02d@students.example.edu", i))
		if err != nil {
			t.Fatalf("user: %v", err)
		}
		ids[i] = u.ID
	}

	var wg sync.WaitGroup
	for _, uid := range ids {
		for j := 0; j < 4; j++ {
			uid, rating := uid, 1.0+float64(j)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.repo.UpsertReview(ctx, uid, f.vending, rating, nil); err != nil {
					t.Errorf("UpsertReview: %v", err)
				}
			}()
		}
	}
	wg.Wait()

	st := stats(t, f, f.vending)
	if st.ReviewCount != users {
		t.Fatalf("count after concurrent upserts: %d, want %d", st.ReviewCount, users)
	}
	mustConsistent(t, f)
}

func TestRepo_MySQL_EmailUniquenessCaseInsensitive(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, "first", "Foo@Bar.com"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := repo.CreateUser(ctx, "second", "foo@bar.com"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("want ErrConflict for case-insensitive duplicate, got %v", err)
	}
}

func TestRepo_MySQL_Leaderboards(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	addr := func(s string) int64 {
		id, err := repo.GetOrCreateAddress(ctx, s, 40.1, -88.2)
		if err != nil {
			t.Fatalf("address: %v", err)
		}
		return id
	}
	bld := func(name, a string) int64 {
		id, err := repo.GetOrCreateBuilding(ctx, name, addr(a))
		if err != nil {
			t.Fatalf("building: %v", err)
		}
		return id
	}
	amen := func(b int64, typ domain.AmenityType, floor string) int64 {
		id, err := repo.CreateAmenity(ctx, domain.Amenity{BuildingID: b, Type: typ, Floor: floor})
		if err != nil {
			t.Fatalf("amenity: %v", err)
		}
		return id
	}
	user := func(n string) int64 {
		u, err := repo.CreateUser(ctx, n, n+"@students.example.edu")
		if err != nil {
			t.Fatalf("user: %v", err)
		}
		return u.ID
	}
	rate := func(u, a int64, r float64) {
		if _, err := repo.UpsertReview(ctx, u, a, r, nil); err != nil {
			t.Fatalf("rate: %v", err)
		}
	}

	u1, u2 := user("lb1"), user("lb2")

	// Grainger: good bathroom + vending -> qualifies.
	grainger := bld("Grainger", "1301 W Springfield Ave")
	gBath := amen(grainger, domain.TypeBathroom, "1")
	amen(grainger, domain.TypeVendingMachine, "1")
	rate(u1, gBath, 4.0)
	rate(u2, gBath, 5.0) // avg 4.5

	// Altgeld: excellent bathroom, no vending -> excluded.
	altgeld := bld("Altgeld", "1409 W Green St")
	aBath := amen(altgeld, domain.TypeBathroom, "2")
	rate(u1, aBath, 5.0)

	// Noyes: bad bathroom + vending -> below threshold, excluded.
	noyes := bld("Noyes", "505 S Mathews Ave")
	nBath := amen(noyes, domain.TypeBathroom, "1")
	amen(noyes, domain.TypeVendingMachine, "B")
	rate(u1, nBath, 2.0)

	t.Run("clean bathrooms with vending", func(t *testing.T) {
		rows, err := repo.CleanBathroomsVending(ctx, 3.0)
		if err != nil {
			t.Fatalf("CleanBathroomsVending: %v", err)
		}
		if len(rows) != 1 || rows[0].BuildingName != "Grainger" || rows[0].AvgRating != 4.5 {
			t.Fatalf("unexpected ranking: %+v", rows)
		}
	})

	// Fountains: two in Grainger, one twice-cold-tagged, one once; a third
	// untagged fountain must not appear.
	cold, err := repo.GetOrCreateTag(ctx, domain.ColdWaterTag)
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	warm, err := repo.GetOrCreateTag(ctx, "WarmWater")
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	fA := amen(grainger, domain.TypeWaterFountain, "1")
	fB := amen(altgeld, domain.TypeWaterFountain, "1")
	amen(noyes, domain.TypeWaterFountain, "2") // never tagged
	if err := repo.TagAmenity(ctx, fA, cold); err != nil {
		t.Fatalf("tag link: %v", err)
	}
	if err := repo.TagAmenity(ctx, fB, cold); err != nil {
		t.Fatalf("tag link: %v", err)
	}
	if err := repo.TagAmenity(ctx, fB, warm); err != nil {
		t.Fatalf("tag link: %v", err)
	}
	rate(u1, fB, 4.5) // fA has zero reviews; must still rank, avg 0

	t.Run("coldest fountains", func(t *testing.T) {
		// Detaching a non-cold tag must not affect the ranking.
		if err := repo.UntagAmenity(ctx, fB, warm); err != nil {
			t.Fatalf("untag: %v", err)
		}
		rows, err := repo.ColdestFountains(ctx)
		if err != nil {
			t.Fatalf("ColdestFountains: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 tagged fountains, got %+v", rows)
		}
		// Equal cold-tag counts (WarmWater does not count): higher average
		// first.
		if rows[0].BuildingName != "Altgeld" || rows[0].ColdTagCount != 1 || rows[0].AvgRating != 4.5 {
			t.Fatalf("unexpected first row: %+v", rows[0])
		}
		if rows[1].ColdTagCount != 1 || rows[1].AvgRating != 0 {
			t.Fatalf("unexpected second row: %+v", rows[1])
		}
	})

	t.Run("overall amenities tie-break and determinism", func(t *testing.T) {
		// gBath avg 4.5 count 2; fB avg 4.5 count 1: count breaks the tie.
		rows, err := repo.OverallAmenities(ctx)
		if err != nil {
			t.Fatalf("OverallAmenities: %v", err)
		}
		if len(rows) < 2 {
			t.Fatalf("expected rankings, got %+v", rows)
		}
		if rows[0].AvgRating != 5.0 || rows[0].BuildingName != "Altgeld" {
			t.Fatalf("unexpected leader: %+v", rows[0])
		}
		var i45 []domain.LeaderboardRow
		for _, r := range rows {
			if r.AvgRating == 4.5 {
				i45 = append(i45, r)
			}
		}
		if len(i45) != 2 || i45[0].ReviewCount != 2 || i45[1].ReviewCount != 1 {
			t.Fatalf("tie not broken by review count: %+v", i45)
		}

		again, err := repo.OverallAmenities(ctx)
		if err != nil {
			t.Fatalf("OverallAmenities: %v", err)
		}
		if !reflect.DeepEqual(rows, again) {
			t.Fatalf("ranking not deterministic:\n%+v\n%+v", rows, again)
		}
	})

	t.Run("amenity listing with filters", func(t *testing.T) {
		typ := domain.TypeBathroom
		views, err := repo.ListAmenities(ctx, domain.AmenityQuery{Keyword: "Springfield", Type: &typ})
		if err != nil {
			t.Fatalf("ListAmenities: %v", err)
		}
		if len(views) != 1 || views[0].BuildingName != "Grainger" || views[0].ReviewCount != 2 {
			t.Fatalf("unexpected views: %+v", views)
		}
	})
}
