package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golf-booking/internal/catalog"
	"golf-booking/internal/db"
	"golf-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *db.MemoryDB) {
	t.Helper()
	store := db.NewMemoryDB()
	cache, _ := setupTestRedis(t)
	return NewService(store, seedCatalog(t, store), cache, DefaultTTL, nil), store
}

// seedCatalog books adult programs p1 (sessions am, pm and the inactive
// closed) and p2, and the junior program j1.
func seedCatalog(t *testing.T, store *db.MemoryDB) *catalog.Service {
	t.Helper()
	programs := catalog.NewService(store, nil)
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	session := func(id string, active bool) models.ProgramSession {
		return models.ProgramSession{ID: id, Name: id, StartDate: start, EndDate: start.AddDate(0, 1, -1), Capacity: 6, IsActive: active}
	}

	_, err := programs.Seed(context.Background(), []models.Program{
		{ID: "p1", Name: "Get Golf Ready", Type: models.RegistrationAdult, PriceCents: 15000,
			Sessions: []models.ProgramSession{session("am", true), session("pm", true), session("closed", false)}},
		{ID: "p2", Name: "Short Game", Type: models.RegistrationAdult, PriceCents: 200},
		{ID: "j1", Name: "Junior Camp", Type: models.RegistrationJunior, PriceCents: 12000},
	})
	require.NoError(t, err)
	return programs
}

func adultItem(programID string, cents int64) NewItem {
	return NewItem{ProgramID: programID, RegistrationType: models.RegistrationAdult, PriceCents: cents}
}

func TestGetCart_UnknownSessionIsEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cart, err := svc.GetCart(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, cart.Exists())
	assert.Empty(t, cart.Items)

	total, err := svc.Total(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, total)

	count, err := svc.ItemCount(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.NoError(t, svc.Clear(ctx, "nobody"))
}

func TestAddItem_SameProgramIncrementsQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.AddItem(ctx, "sess-1", NewItem{ProgramID: "p1", ProgramSessionID: "am",
		RegistrationType: models.RegistrationAdult, PriceCents: 15000})
	require.NoError(t, err)

	second, err := svc.AddItem(ctx, "sess-1", NewItem{ProgramID: "p1", ProgramSessionID: "pm",
		RegistrationType: models.RegistrationAdult, PriceCents: 15000})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	cart, err := svc.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "pm", cart.Items[0].ProgramSessionID)

	count, err := svc.ItemCount(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	total, err := svc.Total(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30000), total)
}

func TestAddItem_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "s", NewItem{RegistrationType: models.RegistrationAdult})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.AddItem(ctx, "s", NewItem{ProgramID: "p", RegistrationType: "senior"})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.AddItem(ctx, "s", NewItem{ProgramID: "p", RegistrationType: models.RegistrationJunior, PriceCents: -1})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestAddItem_ChecksCatalog(t *testing.T) {
	tests := []struct {
		name string
		item NewItem
		want error
	}{
		{"unknown program", NewItem{ProgramID: "nope", RegistrationType: models.RegistrationAdult}, catalog.ErrProgramNotFound},
		{"adult program booked as junior", NewItem{ProgramID: "p1", RegistrationType: models.RegistrationJunior}, catalog.ErrTypeMismatch},
		{"junior program booked as adult", NewItem{ProgramID: "j1", RegistrationType: models.RegistrationAdult}, catalog.ErrTypeMismatch},
		{"unknown session", NewItem{ProgramID: "p1", ProgramSessionID: "midnight", RegistrationType: models.RegistrationAdult}, catalog.ErrSessionNotFound},
		{"session of another program", NewItem{ProgramID: "p2", ProgramSessionID: "am", RegistrationType: models.RegistrationAdult}, catalog.ErrSessionNotFound},
		{"inactive session", NewItem{ProgramID: "p1", ProgramSessionID: "closed", RegistrationType: models.RegistrationAdult}, catalog.ErrSessionClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			ctx := context.Background()

			_, err := svc.AddItem(ctx, "sess-1", tt.item)
			assert.ErrorIs(t, err, ErrInvalidItem)
			assert.ErrorIs(t, err, tt.want)

			_, err = store.GetCartBySessionID(ctx, "sess-1")
			assert.ErrorIs(t, err, db.ErrNotFound, "a rejected item must not create a cart")
		})
	}
}

func TestAddItem_KeepsSubmittedPrice(t *testing.T) {
	svc, _ := newTestService(t)

	item, err := svc.AddItem(context.Background(), "sess-1", adultItem("p1", 12000))
	require.NoError(t, err)
	assert.Equal(t, int64(12000), item.PriceAtAddCents)
}

func TestQuantityLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, "sess-1", adultItem("p1", 15000))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.UpdateQuantity(ctx, "sess-1", item.ID, models.MaxItemQuantity+1), ErrQuantityLimit)
	require.NoError(t, svc.UpdateQuantity(ctx, "sess-1", item.ID, models.MaxItemQuantity-1))

	item, err = svc.AddItem(ctx, "sess-1", adultItem("p1", 15000))
	require.NoError(t, err)
	assert.Equal(t, models.MaxItemQuantity, item.Quantity)

	_, err = svc.AddItem(ctx, "sess-1", adultItem("p1", 15000))
	assert.ErrorIs(t, err, ErrQuantityLimit)

	count, err := svc.ItemCount(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.MaxItemQuantity, count)
}

func TestGetOrCreateCart_SlidesExpiry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	created, err := svc.GetOrCreateCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, base.Add(DefaultTTL), created.ExpiresAt)

	svc.now = func() time.Time { return base.Add(48 * time.Hour) }
	again, err := svc.GetOrCreateCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, base.Add(48*time.Hour+DefaultTTL), again.ExpiresAt)
}

func TestUpdateQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, "sess-1", adultItem("p1", 15000))
	require.NoError(t, err)

	// Warm the cache so the update has to invalidate it.
	_, err = svc.GetCart(ctx, "sess-1")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateQuantity(ctx, "sess-1", item.ID, 4))
	count, err := svc.ItemCount(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	require.NoError(t, svc.UpdateQuantity(ctx, "sess-1", item.ID, 0))
	cart, err := svc.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, cart.Exists())
	assert.Empty(t, cart.Items)

	assert.ErrorIs(t, svc.UpdateQuantity(ctx, "sess-1", item.ID, 2), ErrItemNotFound)
	assert.ErrorIs(t, svc.UpdateQuantity(ctx, "nobody", item.ID, 2), ErrItemNotFound)
}

func TestRemoveItem_ScopedToSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	theirs, err := svc.AddItem(ctx, "sess-a", adultItem("p1", 100))
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "sess-b", adultItem("p2", 100))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RemoveItem(ctx, "sess-b", theirs.ID), ErrItemNotFound)

	count, err := svc.ItemCount(ctx, "sess-a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClearAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", adultItem("p1", 100))
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "sess-1", adultItem("p2", 200))
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "sess-1"))
	cart, err := svc.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, cart.Exists())
	assert.Empty(t, cart.Items)

	require.NoError(t, svc.Delete(ctx, cart.ID))
	cart, err = svc.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, cart.Exists())

	assert.NoError(t, svc.Delete(ctx, "already-gone"))
}

func TestDelete_InvalidatesCache(t *testing.T) {
	store := db.NewMemoryDB()
	cache, mr := setupTestRedis(t)
	svc := NewService(store, seedCatalog(t, store), cache, DefaultTTL, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", adultItem("p1", 100))
	require.NoError(t, err)
	cart, err := svc.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, mr.Exists(cacheKey("sess-1")))

	require.NoError(t, svc.Delete(ctx, cart.ID))
	assert.False(t, mr.Exists(cacheKey("sess-1")))
}

// countingStore counts cart reads to observe cache and singleflight behavior.
type countingStore struct {
	*db.MemoryDB
	reads atomic.Int32
	gate  chan struct{}
}

func (s *countingStore) GetCartBySessionID(ctx context.Context, sessionID string) (*models.Cart, error) {
	s.reads.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return s.MemoryDB.GetCartBySessionID(ctx, sessionID)
}

func TestGetCart_ServedFromCache(t *testing.T) {
	store := &countingStore{MemoryDB: db.NewMemoryDB()}
	cache, _ := setupTestRedis(t)
	svc := NewService(store, seedCatalog(t, store.MemoryDB), cache, DefaultTTL, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", adultItem("p1", 100))
	require.NoError(t, err)
	store.reads.Store(0)

	for i := 0; i < 3; i++ {
		cart, err := svc.GetCart(ctx, "sess-1")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
	}
	assert.Equal(t, int32(1), store.reads.Load())
}

func TestGetCart_ConcurrentMissesShareOneRead(t *testing.T) {
	store := &countingStore{MemoryDB: db.NewMemoryDB(), gate: make(chan struct{})}
	svc := NewService(store, nil, NoopCache{}, DefaultTTL, nil)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetCart(context.Background(), "sess-1")
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return store.reads.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(store.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Less(t, store.reads.Load(), int32(n))
}

// failingCache errors on every call; the service must fall back to the store.
type failingCache struct{}

func (failingCache) Get(context.Context, string) (*models.Cart, error) {
	return nil, errors.New("redis down")
}
func (failingCache) Version(context.Context, string) (int64, error) {
	return 0, errors.New("redis down")
}
func (failingCache) Set(context.Context, string, *models.Cart, int64) error {
	return errors.New("redis down")
}
func (failingCache) Delete(context.Context, string) error { return errors.New("redis down") }

func TestService_CacheFailuresAreNotFatal(t *testing.T) {
	store := db.NewMemoryDB()
	svc := NewService(store, seedCatalog(t, store), failingCache{}, DefaultTTL, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", adultItem("p1", 100))
	require.NoError(t, err)

	cart, err := svc.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

// pausingStore holds the next cart read, after it has hit the store, until
// release is closed.
type pausingStore struct {
	*db.MemoryDB
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (s *pausingStore) GetCartBySessionID(ctx context.Context, sessionID string) (*models.Cart, error) {
	cart, err := s.MemoryDB.GetCartBySessionID(ctx, sessionID)
	if s.armed.CompareAndSwap(true, false) {
		close(s.read)
		<-s.release
	}
	return cart, err
}

func TestGetCart_WriteDuringMissIsNotOverwritten(t *testing.T) {
	tests := []struct {
		name  string
		write func(t *testing.T, svc *Service, cart *models.Cart)
		check func(t *testing.T, fresh *models.Cart)
	}{
		{
			name: "cart deleted",
			write: func(t *testing.T, svc *Service, cart *models.Cart) {
				require.NoError(t, svc.Delete(context.Background(), cart.ID))
			},
			check: func(t *testing.T, fresh *models.Cart) {
				assert.False(t, fresh.Exists())
			},
		},
		{
			name: "item added",
			write: func(t *testing.T, svc *Service, _ *models.Cart) {
				_, err := svc.AddItem(context.Background(), "sess-1", adultItem("p2", 200))
				require.NoError(t, err)
			},
			check: func(t *testing.T, fresh *models.Cart) {
				assert.Len(t, fresh.Items, 2)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &pausingStore{
				MemoryDB: db.NewMemoryDB(),
				read:     make(chan struct{}),
				release:  make(chan struct{}),
			}
			cache, mr := setupTestRedis(t)
			svc := NewService(store, seedCatalog(t, store.MemoryDB), cache, DefaultTTL, nil)
			ctx := context.Background()

			item, err := svc.AddItem(ctx, "sess-1", adultItem("p1", 15000))
			require.NoError(t, err)

			store.armed.Store(true)
			inFlight := make(chan *models.Cart, 1)
			go func() {
				c, err := svc.GetCart(ctx, "sess-1")
				assert.NoError(t, err)
				inFlight <- c
			}()

			<-store.read
			tt.write(t, svc, &models.Cart{ID: item.CartID})
			close(store.release)

			old := <-inFlight
			require.Len(t, old.Items, 1)
			assert.False(t, mr.Exists(cacheKey("sess-1")), "the pre-write cart must not be cached")

			fresh, err := svc.GetCart(ctx, "sess-1")
			require.NoError(t, err)
			tt.check(t, fresh)
		})
	}
}

func TestLoadCart_BypassesCache(t *testing.T) {
	store := &countingStore{MemoryDB: db.NewMemoryDB()}
	cache, mr := setupTestRedis(t)
	svc := NewService(store, seedCatalog(t, store.MemoryDB), cache, DefaultTTL, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", adultItem("p1", 15000))
	require.NoError(t, err)
	_, err = svc.GetCart(ctx, "sess-1")
	require.NoError(t, err)

	// A cached copy that disagrees with the store.
	raw, err := json.Marshal(&models.Cart{ID: "stale", SessionID: "sess-1"})
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey("sess-1"), string(raw)))
	store.reads.Store(0)

	cart, err := svc.LoadCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.NotEqual(t, "stale", cart.ID)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, int32(1), store.reads.Load())

	empty, err := svc.LoadCart(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, empty.Exists())
}
