package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/tauronsensor/tauronsensor/pkg/log"
	"github.com/tauronsensor/tauronsensor/pkg/storage"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

const (
	DefaultPollInterval = 15 * time.Minute
	DefaultMinInterval  = 15 * time.Minute
)

// Fetcher produces a fresh snapshot, or nil when there is no data this cycle.
type Fetcher interface {
	GetSensorsData(ctx context.Context) *types.Snapshot
}

// Publisher receives every new snapshot.
type Publisher interface {
	PublishSnapshot(ctx context.Context, snap types.Snapshot) error
}

// Coordinator owns the last-known snapshot. It polls the Fetcher, keeps the
// previous snapshot when a poll yields nothing, persists new snapshots and
// hands them to publishers and subscribers.
type Coordinator struct {
	fetcher   Fetcher
	storage   storage.Database
	accountID string

	pollInterval time.Duration
	minInterval  time.Duration
	now          func() time.Time

	// refreshMu serializes fetches so two refreshes never overlap
	refreshMu sync.Mutex

	mu          sync.Mutex
	snapshot    types.Snapshot
	updatedAt   time.Time
	lastAttempt time.Time
	publishers  []Publisher
	subs        map[chan types.Snapshot]struct{}
}

// New returns a Coordinator. A zero poll interval or a negative minimum
// interval falls back to the default.
func New(fetcher Fetcher, db storage.Database, accountID string, pollInterval, minInterval time.Duration) *Coordinator {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if minInterval < 0 {
		minInterval = DefaultMinInterval
	}
	if db == nil {
		db = storage.Nop{}
	}
	return &Coordinator{
		fetcher:      fetcher,
		storage:      db,
		accountID:    accountID,
		pollInterval: pollInterval,
		minInterval:  minInterval,
		now:          time.Now,
		subs:         make(map[chan types.Snapshot]struct{}),
	}
}

// Configured sets up the coordinator with intervals from flags.
func Configured(fetcher Fetcher, db storage.Database, accountID func() string) *Coordinator {
	c := New(fetcher, db, "", 0, 0)
	pollInterval := lflag.Duration("poll-interval", DefaultPollInterval, "How often to poll the portal")
	minInterval := lflag.Duration("min-refresh-interval", DefaultMinInterval, "Minimum time between two portal fetches")

	lflag.Do(func() {
		if *pollInterval <= 0 {
			panic(fmt.Sprintf("poll-interval must be positive: %s", *pollInterval))
		}
		c.pollInterval = *pollInterval
		c.minInterval = *minInterval
		c.accountID = accountID()
	})

	return c
}

// AddPublisher registers p to receive every new snapshot.
func (c *Coordinator) AddPublisher(p Publisher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishers = append(c.publishers, p)
}

// Snapshot returns the last-known snapshot and when it was produced. ok is
// false until a snapshot has been loaded or fetched.
func (c *Coordinator) Snapshot() (snap types.Snapshot, updatedAt time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot, c.updatedAt, c.snapshot != nil
}

// Subscribe returns a channel that receives every new snapshot and a func to
// stop the subscription. A slow subscriber misses snapshots rather than
// blocking the coordinator.
func (c *Coordinator) Subscribe() (<-chan types.Snapshot, func()) {
	ch := make(chan types.Snapshot, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
		})
	}
}

// Load restores the last persisted snapshot, if any.
func (c *Coordinator) Load(ctx context.Context) error {
	stored, err := c.storage.GetSnapshot(ctx, c.accountID)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		log.Ctx(ctx).DebugContext(ctx, "no stored snapshot", slog.String("accountID", c.accountID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = stored.Snapshot
	c.updatedAt = stored.UpdatedAt
	log.Ctx(ctx).InfoContext(ctx, "restored stored snapshot", slog.Time("updatedAt", stored.UpdatedAt))
	return nil
}

// Refresh fetches a new snapshot unless the previous attempt was less than the
// minimum interval ago. It returns true when a new snapshot was published.
func (c *Coordinator) Refresh(ctx context.Context) bool {
	return c.refresh(ctx, false)
}

// ForceRefresh is Refresh without the minimum interval check.
func (c *Coordinator) ForceRefresh(ctx context.Context) bool {
	return c.refresh(ctx, true)
}

func (c *Coordinator) refresh(ctx context.Context, force bool) bool {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	now := c.now()
	c.mu.Lock()
	if !force && !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.minInterval {
		c.mu.Unlock()
		log.Ctx(ctx).DebugContext(ctx, "refresh throttled", slog.Time("lastAttempt", c.lastAttempt))
		return false
	}
	c.lastAttempt = now
	c.mu.Unlock()

	snap := c.fetcher.GetSensorsData(ctx)
	if snap == nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to fetch data from tauron, keeping previous snapshot")
		return false
	}

	c.mu.Lock()
	c.snapshot = *snap
	c.updatedAt = now
	publishers := append([]Publisher(nil), c.publishers...)
	for ch := range c.subs {
		select {
		case ch <- *snap:
		default:
		}
	}
	c.mu.Unlock()

	if err := c.storage.SetSnapshot(ctx, c.accountID, types.StoredSnapshot{Snapshot: *snap, UpdatedAt: now}); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to persist snapshot", slog.Any("error", err))
	}
	publish(ctx, publishers, *snap)
	return true
}

func publish(ctx context.Context, publishers []Publisher, snap types.Snapshot) {
	for _, p := range publishers {
		if err := p.PublishSnapshot(ctx, snap); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to publish snapshot", slog.Any("error", err))
		}
	}
}

// Run loads the stored snapshot and hands it to the publishers, refreshes
// immediately and then every poll interval until ctx is done. Publishers must
// be added before Run.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Load(ctx); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to load stored snapshot", slog.Any("error", err))
	}

	// publishers start empty after a restart, give them the restored snapshot
	// so they have data even when the first poll fails
	c.mu.Lock()
	restored := c.snapshot
	publishers := append([]Publisher(nil), c.publishers...)
	c.mu.Unlock()
	if restored != nil {
		publish(ctx, publishers, restored)
	}

	c.Refresh(ctx)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}
