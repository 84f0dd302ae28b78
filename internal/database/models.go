package database

import (
	"time"

	"github.com/google/uuid"
)

// Message is a row of the messages table. ID and both timestamps are
// assigned by the database at insert; only Body is ever written by callers.
type Message struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Body      string    `db:"body"       json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// UpdatedAt is set once at insert, like CreatedAt.
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// User is a row of the users table.
type User struct {
	ID uuid.UUID `db:"id" json:"id"`
}
