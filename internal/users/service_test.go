package users_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ignews-service/internal/users"
	"ignews-service/internal/users/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Upsert(ctx context.Context, key string, email string) (users.Result, error) {
	args := m.Called(ctx, key, email)
	return args.Get(0).(users.Result), args.Error(1)
}

func TestFold(t *testing.T) {
	assert.Equal(t, users.Fold("alice@x.com"), users.Fold("Alice@X.COM"))
	assert.Equal(t, "bob@y.org", users.Fold("  Bob@Y.org "))
}

func TestUpsertCreatesOnEmptyStore(t *testing.T) {
	store := memstore.New()
	svc := users.NewService(store)

	res, err := svc.Upsert(context.Background(), "new@example.com")
	require.NoError(t, err)

	assert.Equal(t, users.Created, res.Outcome)
	assert.Equal(t, "new@example.com", res.Record.Data.Email)
	assert.Equal(t, "new@example.com", res.Record.Key)
	assert.NotEmpty(t, res.Record.ID)
	assert.Equal(t, 1, store.Len())
}

func TestUpsertFetchesExistingCaseInsensitive(t *testing.T) {
	store := memstore.New()
	svc := users.NewService(store)

	first, err := svc.Upsert(context.Background(), "new@example.com")
	require.NoError(t, err)

	second, err := svc.Upsert(context.Background(), "New@Example.com")
	require.NoError(t, err)

	assert.Equal(t, users.Fetched, second.Outcome)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, "new@example.com", second.Record.Data.Email, "stored email must not be overwritten")
	assert.Equal(t, 1, store.Len())
}

func TestUpsertKeepsOriginalCasing(t *testing.T) {
	store := memstore.New()
	svc := users.NewService(store)

	_, err := svc.Upsert(context.Background(), "A@B.com")
	require.NoError(t, err)

	res, err := svc.Upsert(context.Background(), "a@b.com")
	require.NoError(t, err)

	assert.Equal(t, users.Fetched, res.Outcome)
	assert.Equal(t, "A@B.com", res.Record.Data.Email)
}

func TestUpsertConcurrentSameEmail(t *testing.T) {
	store := memstore.New()
	svc := users.NewService(store)

	variants := []string{"race@example.com", "RACE@example.com", "Race@Example.Com"}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]struct{}{}
	)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			res, err := svc.Upsert(context.Background(), email)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[res.Record.ID] = struct{}{}
			mu.Unlock()
		}(variants[i%len(variants)])
	}
	wg.Wait()

	assert.Equal(t, 1, store.Len())
	assert.Len(t, ids, 1)
}

func TestUpsertEmptyEmailSkipsStore(t *testing.T) {
	store := &mockStore{}
	svc := users.NewService(store)

	for _, email := range []string{"", "   "} {
		_, err := svc.Upsert(context.Background(), email)
		require.ErrorIs(t, err, users.ErrEmptyEmail)
		assert.False(t, users.IsTransient(err))
	}

	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpsertRetriesTransient(t *testing.T) {
	store := &mockStore{}
	want := users.Result{
		Record:  users.Record{ID: "1", Key: "x@y.z", Data: users.Data{Email: "x@y.z"}},
		Outcome: users.Created,
	}

	store.On("Upsert", mock.Anything, "x@y.z", "X@y.z").
		Return(users.Result{}, users.NewTransient("insert", errors.New("connection reset"))).Once()
	store.On("Upsert", mock.Anything, "x@y.z", "X@y.z").
		Return(want, nil).Once()

	svc := users.NewService(store, users.WithRetry(3, time.Millisecond))

	res, err := svc.Upsert(context.Background(), "X@y.z")
	require.NoError(t, err)
	assert.Equal(t, want, res)
	store.AssertNumberOfCalls(t, "Upsert", 2)
}

func TestUpsertGivesUpAfterMaxRetries(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, mock.Anything, mock.Anything).
		Return(users.Result{}, users.NewTransient("insert", errors.New("store unavailable")))

	svc := users.NewService(store, users.WithRetry(2, time.Millisecond))

	_, err := svc.Upsert(context.Background(), "down@example.com")
	require.Error(t, err)
	assert.True(t, users.IsTransient(err))
	store.AssertNumberOfCalls(t, "Upsert", 3)
}

func TestUpsertDoesNotRetryPermanent(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, mock.Anything, mock.Anything).
		Return(users.Result{}, users.NewPermanent("insert", errors.New("index missing")))

	svc := users.NewService(store, users.WithRetry(5, time.Millisecond))

	_, err := svc.Upsert(context.Background(), "broken@example.com")
	require.Error(t, err)

	var f *users.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, users.Permanent, f.Kind)
	store.AssertNumberOfCalls(t, "Upsert", 1)
}

func TestUpsertWrapsForeignErrors(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, mock.Anything, mock.Anything).
		Return(users.Result{}, errors.New("driver exploded"))

	svc := users.NewService(store)

	_, err := svc.Upsert(context.Background(), "a@b.c")

	var f *users.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, users.Permanent, f.Kind)
	assert.EqualError(t, f.Err, "driver exploded")
}

// blockingStore holds every call until release is closed and reports
// whether the context it was given had been cancelled by then.
type blockingStore struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	inner   *memstore.Store
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		inner:   memstore.New(),
	}
}

func (b *blockingStore) Upsert(ctx context.Context, key string, email string) (users.Result, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	if err := ctx.Err(); err != nil {
		return users.Result{}, users.NewPermanent("insert", err)
	}
	return b.inner.Upsert(ctx, key, email)
}

func TestUpsertSurvivesLeaderCancellation(t *testing.T) {
	store := newBlockingStore()
	svc := users.NewService(store)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Upsert(leaderCtx, "A@B.com")
		leaderErr <- err
	}()
	<-store.entered

	type outcome struct {
		res users.Result
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := svc.Upsert(context.Background(), "a@b.com")
		follower <- outcome{res, err}
	}()

	// give the follower time to join the in-flight call
	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-leaderErr
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, users.IsTransient(err))

	close(store.release)

	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, users.Created, got.res.Outcome)
	assert.Equal(t, "A@B.com", got.res.Record.Data.Email)
	assert.Equal(t, 1, store.inner.Len())
}

type stallingStore struct{}

func (stallingStore) Upsert(ctx context.Context, key string, email string) (users.Result, error) {
	<-ctx.Done()
	return users.Result{}, users.NewPermanent("insert", ctx.Err())
}

func TestUpsertCallTimeout(t *testing.T) {
	svc := users.NewService(stallingStore{}, users.WithCallTimeout(20*time.Millisecond))

	_, err := svc.Upsert(context.Background(), "slow@example.com")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUpsertStoresTrimmedEmail(t *testing.T) {
	store := memstore.New()
	svc := users.NewService(store)

	res, err := svc.Upsert(context.Background(), "  Padded@Example.com\t")
	require.NoError(t, err)

	assert.Equal(t, "Padded@Example.com", res.Record.Data.Email)
	assert.Equal(t, "padded@example.com", res.Record.Key)
}
