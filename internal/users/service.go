package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"ignews-service/internal/logger"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxRetries = 3
	defaultRetryBase  = 50 * time.Millisecond

	// defaultCallTimeout bounds a shared store call once it no longer
	// follows the cancellation of the request that started it.
	defaultCallTimeout = 10 * time.Second
)

type Option func(*Service)

// WithRetry sets how many times a transient store failure is retried and
// the base delay of the exponential backoff between attempts.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(s *Service) {
		s.maxRetries = maxRetries
		if base > 0 {
			s.retryBase = base
		}
	}
}

// WithCallTimeout caps how long one shared store call, retries included,
// may run.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// Service upserts user records on sign-in. It is safe for concurrent use.
type Service struct {
	store       Store
	maxRetries  uint64
	retryBase   time.Duration
	callTimeout time.Duration

	// inflight collapses concurrent upserts for the same key in this
	// process into one store call.
	inflight singleflight.Group
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		maxRetries:  defaultMaxRetries,
		retryBase:   defaultRetryBase,
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert makes sure exactly one record exists for the case-folded email and
// returns it. A blank email fails without touching the store.
func (s *Service) Upsert(ctx context.Context, email string) (Result, error) {
	start := time.Now()
	defer func() {
		upsertDuration.Observe(time.Since(start).Seconds())
	}()

	email = strings.TrimSpace(email)
	if email == "" {
		upsertsTotal.WithLabelValues("failed").Inc()
		return Result{}, NewPermanent("validate", ErrEmptyEmail)
	}

	key := Fold(email)

	// The shared call is detached from the caller that happens to start it,
	// so one abandoned request cannot fail the others waiting on the key.
	ch := s.inflight.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.callTimeout)
		defer cancel()
		return s.upsertWithRetry(callCtx, key, email)
	})

	var (
		v      any
		err    error
		shared bool
	)
	select {
	case <-ctx.Done():
		err = NewTransient("wait", ctx.Err())
	case r := <-ch:
		v, err, shared = r.Val, r.Err, r.Shared
	}
	if err != nil {
		upsertsTotal.WithLabelValues("failed").Inc()
		logger.Warn("user upsert failed", map[string]any{
			"key":       key,
			"transient": IsTransient(err),
			"error":     err,
		})
		return Result{}, err
	}

	res := v.(Result)
	upsertsTotal.WithLabelValues(res.Outcome.String()).Inc()
	logger.Debug("user upserted", map[string]any{
		"key":     key,
		"id":      res.Record.ID,
		"outcome": res.Outcome.String(),
		"shared":  shared,
	})

	return res, nil
}

func (s *Service) upsertWithRetry(ctx context.Context, key, email string) (Result, error) {
	var (
		res     Result
		attempt int
	)

	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			upsertRetries.Inc()
		}

		r, err := s.store.Upsert(ctx, key, email)
		if err != nil {
			if IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}

		res = r
		return nil
	})
	if err != nil {
		return Result{}, normalize(err)
	}

	return res, nil
}

// normalize makes every error leaving the service a *Failure.
func normalize(err error) error {
	var f *Failure
	if errors.As(err, &f) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransient("upsert", err)
	}
	return NewPermanent("upsert", err)
}
