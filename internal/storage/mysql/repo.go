package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// mapErr translates driver constraint failures onto the domain taxonomy.
// 1062 = duplicate key, 1452 = missing foreign row, the rest are
// value/enum truncation errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062:
			return fmt.Errorf("%s: %w", me.Message, domain.ErrConflict)
		case 1452:
			return fmt.Errorf("%s: %w", me.Message, domain.ErrNotFound)
		case 1265, 1406, 3140, 3819:
			return fmt.Errorf("%s: %w", me.Message, domain.ErrInvalidArgument)
		}
	}
	return err
}

func (r *Repo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Review write paths. Counter maintenance happens here, inside the same
// transaction as the row mutation; no other code touches review_count.
// ---------------------------------------------------------------------------

func (r *Repo) UpsertReview(ctx context.Context, userID, amenityID int64, rating float64, details json.RawMessage) (domain.UpsertResult, error) {
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	var out domain.UpsertResult
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, upsertReviewSQL, userID, amenityID, rating, string(details))
		if err != nil {
			return mapErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		out.ReviewID = id
		out.Inserted = n == 1
		if out.Inserted {
			if _, err := tx.ExecContext(ctx, incReviewCountSQL, amenityID); err != nil {
				return err
			}
		}
		return tx.QueryRowContext(ctx, `SELECT updated_at FROM reviews WHERE id = ?`, id).Scan(&out.Timestamp)
	})
	if err != nil {
		return domain.UpsertResult{}, err
	}
	return out, nil
}

func (r *Repo) UpdateReview(ctx context.Context, reviewID int64, patch domain.ReviewPatch) (domain.Review, int64, error) {
	if patch.Empty() {
		return domain.Review{}, 0, fmt.Errorf("no fields to update: %w", domain.ErrInvalidArgument)
	}
	var (
		rv         domain.Review
		oldAmenity int64
	)
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var userID int64
		if err := tx.QueryRowContext(ctx, selectReviewForUpdateSQL, reviewID).Scan(&userID, &oldAmenity); err != nil {
			return mapErr(err)
		}

		sets := []string{"updated_at = CURRENT_TIMESTAMP(6)"}
		args := make([]any, 0, 4)
		if patch.OverallRating != nil {
			sets = append(sets, "overall_rating = ?")
			args = append(args, *patch.OverallRating)
		}
		if patch.Details != nil {
			sets = append(sets, "rating_details = ?")
			args = append(args, string(patch.Details))
		}
		if patch.AmenityID != nil {
			sets = append(sets, "amenity_id = ?")
			args = append(args, *patch.AmenityID)
		}
		args = append(args, reviewID)

		q := "UPDATE reviews SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			// 1062 here means the user already reviewed the target amenity.
			return mapErr(err)
		}

		if patch.AmenityID != nil && *patch.AmenityID != oldAmenity {
			if _, err := tx.ExecContext(ctx, decReviewCountSQL, oldAmenity); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, incReviewCountSQL, *patch.AmenityID); err != nil {
				return err
			}
		}

		var err error
		rv, err = scanReview(tx.QueryRowContext(ctx, getReviewSQL, reviewID))
		return err
	})
	if err != nil {
		return domain.Review{}, 0, err
	}
	return rv, oldAmenity, nil
}

func (r *Repo) DeleteReview(ctx context.Context, reviewID int64) (int64, error) {
	var amenityID int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var userID int64
		if err := tx.QueryRowContext(ctx, selectReviewForUpdateSQL, reviewID).Scan(&userID, &amenityID); err != nil {
			return mapErr(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, reviewID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, decReviewCountSQL, amenityID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return amenityID, nil
}

// ---------------------------------------------------------------------------
// Entity write paths
// ---------------------------------------------------------------------------

func (r *Repo) CreateUser(ctx context.Context, username, email string) (domain.User, error) {
	res, err := r.db.ExecContext(ctx, insertUserSQL, username, email)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{ID: id, Username: username, Email: email}
	err = r.db.QueryRowContext(ctx, `SELECT join_date FROM users WHERE id = ?`, id).Scan(&u.JoinDate)
	return u, err
}

func (r *Repo) GetOrCreateAddress(ctx context.Context, address string, lat, lon float64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO addresses (address, lat, lon) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`, address, lat, lon)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.LastInsertId()
}

func (r *Repo) GetOrCreateBuilding(ctx context.Context, name string, addressID int64) (int64, error) {
	// Re-pointing an existing building at a fresh address mirrors how the
	// seeder refreshes directory data.
	res, err := r.db.ExecContext(ctx, `
INSERT INTO buildings (name, address_id) VALUES (?, ?)
ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), address_id = VALUES(address_id)`, name, addressID)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.LastInsertId()
}

func (r *Repo) CreateAmenity(ctx context.Context, a domain.Amenity) (int64, error) {
	if !a.Type.Valid() {
		return 0, fmt.Errorf("amenity type %q: %w", a.Type, domain.ErrInvalidArgument)
	}
	res, err := r.db.ExecContext(ctx, insertAmenitySQL, a.BuildingID, string(a.Type), a.Floor, a.Notes)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.LastInsertId()
}

func (r *Repo) GetOrCreateTag(ctx context.Context, label string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO tags (label) VALUES (?)
ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`, label)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.LastInsertId()
}

func (r *Repo) TagAmenity(ctx context.Context, amenityID, tagID int64) error {
	_, err := r.db.ExecContext(ctx, tagAmenitySQL, amenityID, tagID)
	return mapErr(err)
}

func (r *Repo) UntagAmenity(ctx context.Context, amenityID, tagID int64) error {
	_, err := r.db.ExecContext(ctx, untagAmenitySQL, amenityID, tagID)
	return mapErr(err)
}

// ---------------------------------------------------------------------------
// Read paths
// ---------------------------------------------------------------------------

type rowScanner interface{ Scan(dst ...any) error }

func scanReview(row rowScanner) (domain.Review, error) {
	var (
		rv      domain.Review
		details []byte
	)
	if err := row.Scan(&rv.ID, &rv.UserID, &rv.AmenityID, &rv.OverallRating, &details, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
		return domain.Review{}, mapErr(err)
	}
	if len(details) > 0 {
		rv.Details = append(json.RawMessage(nil), details...)
	}
	return rv, nil
}

func (r *Repo) GetReview(ctx context.Context, reviewID int64) (domain.Review, error) {
	return scanReview(r.db.QueryRowContext(ctx, getReviewSQL, reviewID))
}

func (r *Repo) ListReviews(ctx context.Context, amenityID int64, limit int) ([]domain.Review, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, amenityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) GetAmenityStats(ctx context.Context, amenityID int64) (domain.AmenityStats, error) {
	var (
		st     domain.AmenityStats
		latest sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, amenityStatsSQL, amenityID).
		Scan(&st.AmenityID, &st.BuildingName, &st.AvgRating, &st.ReviewCount, &latest)
	if err != nil {
		return domain.AmenityStats{}, mapErr(err)
	}
	if latest.Valid {
		t := latest.Time
		st.LatestReview = &t
	}
	return st, nil
}

func (r *Repo) ListAmenities(ctx context.Context, q domain.AmenityQuery) ([]domain.AmenityView, error) {
	var (
		where []string
		args  []any
	)
	if q.Type != nil {
		where = append(where, "a.type = ?")
		args = append(args, string(*q.Type))
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		pat := "%" + kw + "%"
		where = append(where, "(b.name LIKE ? OR ad.address LIKE ? OR a.notes LIKE ?)")
		args = append(args, pat, pat, pat)
	}

	sqlStr := listAmenitiesPrefix
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}
	sqlStr += listAmenitiesSuffix

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 1500 {
		limit = 1500
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AmenityView
	for rows.Next() {
		var (
			v     domain.AmenityView
			typ   string
			notes sql.NullString
		)
		if err := rows.Scan(&v.ID, &typ, &v.Floor, &notes, &v.BuildingName, &v.Address, &v.Lat, &v.Lon, &v.AvgRating, &v.ReviewCount); err != nil {
			return nil, err
		}
		v.Type = domain.AmenityType(typ)
		if notes.Valid {
			v.Notes = notes.String
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repo) CleanBathroomsVending(ctx context.Context, minBathroomAvg float64) ([]domain.LeaderboardRow, error) {
	rows, err := r.db.QueryContext(ctx, cleanBathroomsVendingSQL, minBathroomAvg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LeaderboardRow
	for rows.Next() {
		row := domain.LeaderboardRow{Type: domain.TypeBathroom}
		if err := rows.Scan(&row.BuildingName, &row.Address, &row.AvgRating); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repo) ColdestFountains(ctx context.Context) ([]domain.LeaderboardRow, error) {
	rows, err := r.db.QueryContext(ctx, coldestFountainsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LeaderboardRow
	for rows.Next() {
		row := domain.LeaderboardRow{Type: domain.TypeWaterFountain}
		var notes sql.NullString
		if err := rows.Scan(&row.BuildingName, &row.Floor, &notes, &row.ColdTagCount, &row.AvgRating); err != nil {
			return nil, err
		}
		if notes.Valid {
			row.Notes = notes.String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repo) OverallAmenities(ctx context.Context) ([]domain.LeaderboardRow, error) {
	rows, err := r.db.QueryContext(ctx, overallAmenitiesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LeaderboardRow
	for rows.Next() {
		var (
			row domain.LeaderboardRow
			typ string
		)
		if err := rows.Scan(&row.BuildingName, &typ, &row.Floor, &row.AvgRating, &row.ReviewCount); err != nil {
			return nil, err
		}
		row.Type = domain.AmenityType(typ)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repo) CountDrift(ctx context.Context) ([]domain.DriftRecord, error) {
	rows, err := r.db.QueryContext(ctx, countDriftSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DriftRecord
	for rows.Next() {
		var d domain.DriftRecord
		if err := rows.Scan(&d.AmenityID, &d.StoredCount, &d.ActualCount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
