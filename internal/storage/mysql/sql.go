package mysql

// The LAST_INSERT_ID(id) assignment makes LastInsertId() return the existing
// row's id on the update branch, so one statement serves both outcomes.
// RowsAffected distinguishes them: 1 = inserted, 2 = replaced in place.
const upsertReviewSQL = `
INSERT INTO reviews
  (user_id, amenity_id, overall_rating, rating_details)
VALUES
  (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id             = LAST_INSERT_ID(id),
  overall_rating = VALUES(overall_rating),
  rating_details = VALUES(rating_details),
  updated_at     = CURRENT_TIMESTAMP(6)
`

// Counter adjustments are plain atomic updates; InnoDB row locks serialize
// concurrent increments on the same amenity. The decrement clamps at zero.
const incReviewCountSQL = `
UPDATE amenities SET review_count = review_count + 1 WHERE id = ?
`

const decReviewCountSQL = `
UPDATE amenities SET review_count = GREATEST(review_count - 1, 0) WHERE id = ?
`

const selectReviewForUpdateSQL = `
SELECT user_id, amenity_id FROM reviews WHERE id = ? FOR UPDATE
`

const getReviewSQL = `
SELECT id, user_id, amenity_id, overall_rating, rating_details, created_at, updated_at
FROM reviews
WHERE id = ?
`

const listReviewsSQL = `
SELECT id, user_id, amenity_id, overall_rating, rating_details, created_at, updated_at
FROM reviews
WHERE amenity_id = ?
ORDER BY updated_at DESC, id DESC
LIMIT ?
`

const insertUserSQL = `
INSERT INTO users (username, email) VALUES (?, ?)
`

const insertAmenitySQL = `
INSERT INTO amenities (building_id, type, floor, notes) VALUES (?, ?, ?, ?)
`

const tagAmenitySQL = `
INSERT INTO amenity_tags (amenity_id, tag_id)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE amenity_id = amenity_id
`

const untagAmenitySQL = `
DELETE FROM amenity_tags WHERE amenity_id = ? AND tag_id = ?
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// review_count comes from the denormalized column; the average is always
// computed live over the current review set.
const amenityStatsSQL = `
SELECT
  a.id,
  b.name,
  COALESCE(AVG(r.overall_rating), 0),
  a.review_count,
  MAX(r.updated_at)
FROM amenities a
JOIN buildings b ON b.id = a.building_id
LEFT JOIN reviews r ON r.amenity_id = a.id
WHERE a.id = ?
GROUP BY a.id, b.name, a.review_count
`

const listAmenitiesPrefix = `
SELECT
  a.id,
  a.type,
  a.floor,
  a.notes,
  b.name,
  ad.address,
  ad.lat,
  ad.lon,
  COALESCE(AVG(r.overall_rating), 0) AS avg_rating,
  a.review_count
FROM amenities a
JOIN buildings b ON b.id = a.building_id
JOIN addresses ad ON ad.id = b.address_id
LEFT JOIN reviews r ON r.amenity_id = a.id
`

const listAmenitiesSuffix = `
GROUP BY a.id, a.type, a.floor, a.notes, b.name, ad.address, ad.lat, ad.lon, a.review_count
ORDER BY avg_rating DESC, a.review_count DESC, a.id ASC
LIMIT ? OFFSET ?
`

// Buildings with at least one bathroom averaging above the threshold and at
// least one vending machine, ranked by bathroom average. Final b.id ASC
// tie-break keeps repeated calls deterministic.
const cleanBathroomsVendingSQL = `
SELECT
  b.name,
  ad.address,
  ROUND(AVG(r.overall_rating), 2) AS avg_bathroom_rating
FROM buildings b
JOIN addresses ad ON ad.id = b.address_id
JOIN amenities a ON a.building_id = b.id AND a.type = 'Bathroom'
JOIN reviews r ON r.amenity_id = a.id
WHERE EXISTS (
  SELECT 1 FROM amenities v
  WHERE v.building_id = b.id AND v.type = 'VendingMachine'
)
GROUP BY b.id, b.name, ad.address
HAVING AVG(r.overall_rating) > ?
ORDER BY avg_bathroom_rating DESC, b.id ASC
LIMIT 15
`

const coldestFountainsSQL = `
SELECT
  b.name,
  a.floor,
  a.notes,
  ct.cold_tag_count,
  ROUND(COALESCE(AVG(r.overall_rating), 0), 2) AS avg_rating
FROM amenities a
JOIN buildings b ON b.id = a.building_id
JOIN (
  SELECT at2.amenity_id, COUNT(at2.tag_id) AS cold_tag_count
  FROM amenity_tags at2
  JOIN tags t ON t.id = at2.tag_id
  WHERE t.label = 'ColdWater'
  GROUP BY at2.amenity_id
) ct ON ct.amenity_id = a.id
LEFT JOIN reviews r ON r.amenity_id = a.id
WHERE a.type = 'WaterFountain'
GROUP BY a.id, b.name, a.floor, a.notes, ct.cold_tag_count
ORDER BY ct.cold_tag_count DESC, avg_rating DESC, a.id ASC
LIMIT 15
`

const overallAmenitiesSQL = `
SELECT
  b.name,
  a.type,
  a.floor,
  ROUND(COALESCE(AVG(r.overall_rating), 0), 2) AS avg_rating,
  a.review_count
FROM amenities a
JOIN buildings b ON b.id = a.building_id
LEFT JOIN reviews r ON r.amenity_id = a.id
GROUP BY a.id, b.name, a.type, a.floor, a.review_count
ORDER BY avg_rating DESC, a.review_count DESC, a.id ASC
LIMIT 15
`

const countDriftSQL = `
SELECT a.id, a.review_count, COUNT(r.id)
FROM amenities a
LEFT JOIN reviews r ON r.amenity_id = a.id
GROUP BY a.id, a.review_count
HAVING a.review_count <> COUNT(r.id)
`
