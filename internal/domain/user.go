package domain

import "time"

// User identity. Email is unique under case-insensitive comparison; the
// store enforces it and reports violations as ErrConflict.
type User struct {
	ID       int64     `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	JoinDate time.Time `json:"join_date"`
}
