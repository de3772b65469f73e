package users

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyEmail = errors.New("users: email is empty")
	// ErrNotVisible is returned by a store when the conditional insert lost
	// to a concurrent writer whose row is not yet visible to the fetch.
	ErrNotVisible = errors.New("users: record not visible yet")
)

// Kind separates failures worth retrying from those that are not.
type Kind int

const (
	Permanent Kind = iota
	Transient
)

func (k Kind) String() string {
	if k == Transient {
		return "transient"
	}
	return "permanent"
}

// Failure is the single upsert error type. Op names the step that failed.
type Failure struct {
	Op   string
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("users: %s (%s): %v", f.Op, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func NewTransient(op string, err error) error {
	return &Failure{Op: op, Kind: Transient, Err: err}
}

func NewPermanent(op string, err error) error {
	return &Failure{Op: op, Kind: Permanent, Err: err}
}

// IsTransient reports whether err is a Failure of kind Transient.
func IsTransient(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind == Transient
	}
	return false
}
