package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/app"
	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	R *app.ReviewService
	U *app.UserService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Post("/v1/reviews", h.submitReview)
	s.mux.Get("/v1/reviews/{id}", h.getReview)
	s.mux.Put("/v1/reviews/{id}", h.updateReview)
	s.mux.Delete("/v1/reviews/{id}", h.deleteReview)

	s.mux.Get("/v1/amenities", h.listAmenities)
	s.mux.Get("/v1/amenities/{id}/stats", h.amenityStats)
	s.mux.Get("/v1/amenities/{id}/reviews", h.listReviews)

	s.mux.Get("/v1/leaderboard/clean-bathrooms-vending", h.leaderboard(domain.KindCleanBathroomsVending))
	s.mux.Get("/v1/leaderboard/coldest-fountains", h.leaderboard(domain.KindColdestFountains))
	s.mux.Get("/v1/leaderboard/overall-amenities", h.leaderboard(domain.KindOverallAmenities))

	s.mux.Post("/v1/users", h.createUser)
	s.mux.Get("/v1/audit/review-counts", h.auditCounts)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeDomainErr maps the error taxonomy onto HTTP statuses.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		writeProblem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		log.Error().Err(err).Msg("internal error")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable sends v with an ETag, short-circuiting on If-None-Match.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// ---- reviews ----

type reviewRequest struct {
	UserID        int64           `json:"user_id"`
	AmenityID     int64           `json:"amenity_id"`
	OverallRating float64         `json:"overall_rating"`
	RatingDetails json.RawMessage `json:"rating_details"`
}

func (h *Handlers) submitReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	res, err := h.R.SubmitRating(r.Context(), req.UserID, req.AmenityID, req.OverallRating, req.RatingDetails)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	rv, err := h.Q.GetReview(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

type reviewPatchRequest struct {
	OverallRating *float64        `json:"overall_rating"`
	RatingDetails json.RawMessage `json:"rating_details"`
	AmenityID     *int64          `json:"amenity_id"`
}

func (h *Handlers) updateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	var req reviewPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	rv, err := h.R.UpdateReview(r.Context(), id, domain.ReviewPatch{
		OverallRating: req.OverallRating,
		Details:       req.RatingDetails,
		AmenityID:     req.AmenityID,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	if err := h.R.DeleteReview(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted_review_id": id})
}

// ---- amenities ----

func (h *Handlers) listAmenities(w http.ResponseWriter, r *http.Request) {
	q := domain.AmenityQuery{Keyword: r.URL.Query().Get("keyword")}

	if ts := r.URL.Query().Get("type"); ts != "" {
		t, err := domain.ParseAmenityType(ts)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		q.Type = &t
	}
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 1500 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 1500")
			return
		}
		q.Limit = l
	}
	if os := r.URL.Query().Get("offset"); os != "" {
		o, err := strconv.Atoi(os)
		if err != nil || o < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid offset", "offset must be a non-negative integer")
			return
		}
		q.Offset = o
	}

	out, err := h.Q.ListAmenities(r.Context(), q)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) amenityStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	st, err := h.Q.GetAmenityStats(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeCacheable(w, r, st)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}
	out, err := h.Q.ListReviews(r.Context(), id, limit)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeCacheable(w, r, out)
}

// ---- leaderboards ----

func (h *Handlers) leaderboard(kind domain.LeaderboardKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, err := h.Q.Leaderboard(r.Context(), kind)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeCacheable(w, r, lb)
	}
}

// ---- users / audit ----

type userRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	u, err := h.U.CreateUser(r.Context(), req.Username, req.Email)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handlers) auditCounts(w http.ResponseWriter, r *http.Request) {
	drift, err := h.R.AuditCounts(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drift": drift, "consistent": len(drift) == 0})
}
