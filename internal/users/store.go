package users

import "context"

// Store persists user records. Upsert must evaluate the existence check and
// the create-or-fetch as one conditional operation on key: when no record
// has that key it creates one with Data.Email = email, otherwise it returns
// the existing record untouched.
//
// Errors should be *Failure values so the caller can tell transient faults
// from permanent ones; anything else is treated as permanent.
type Store interface {
	Upsert(ctx context.Context, key string, email string) (Result, error)
}
