package users

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Data is the stored document payload.
type Data struct {
	Email string `json:"email"`
}

// Record is a persisted user. Key is the case-folded email and is unique
// across the collection; Data.Email keeps the address as first supplied.
type Record struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Data      Data      `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Outcome tells whether an upsert wrote a new record or returned an
// existing one.
type Outcome int

const (
	Created Outcome = iota + 1
	Fetched
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Fetched:
		return "fetched"
	default:
		return "unknown"
	}
}

// Result is what a successful upsert returns.
type Result struct {
	Record  Record
	Outcome Outcome
}

// Fold returns the lookup key for an email. Folding is Unicode-aware so
// "Alice@X.com" and "alice@x.COM" produce the same key.
func Fold(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}
