package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/bnema/offlinectl/internal/domain"
	"github.com/bnema/offlinectl/internal/ports"
)

const (
	QueueStorageKey    = "offline_queued_actions"
	CacheStoragePrefix = "cache_"
)

func CacheStorageKey(key string) string {
	return CacheStoragePrefix + key
}

// OfflineService combines network presence and server reachability into one
// connectivity state and owns the persisted action queue and data cache.
type OfflineService struct {
	store    ports.KVStore
	prober   *Prober
	presence ports.PresenceSource
	clock    ports.Clock
	logger   *slog.Logger

	mu                  sync.Mutex
	loaded              bool
	started             bool
	networkPresent      bool
	server              domain.ServerStatus
	queue               []domain.QueuedAction
	lastID              int64
	seq                 uint64
	unsubscribePresence func()
	unsubscribeProber   func()

	updates   *broadcaster[domain.ConnectivityState]
	closeOnce sync.Once
}

func NewOfflineService(store ports.KVStore, prober *Prober, presence ports.PresenceSource, clock ports.Clock, logger *slog.Logger) *OfflineService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &OfflineService{
		store:          store,
		prober:         prober,
		presence:       presence,
		clock:          clock,
		logger:         logger.With("component", "offline"),
		networkPresent: presence.Online(),
		server:         prober.Status(),
		updates:        newBroadcaster[domain.ConnectivityState](),
	}
}

// Load hydrates the queue from the store once. Unreadable or corrupt data is logged
// and replaced by an empty queue; only context errors are returned.
func (s *OfflineService) Load(ctx context.Context) error {
	s.mu.Lock()
	changed, err := s.ensureLoadedLocked(ctx)
	seq, state := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		s.updates.deliver(seq, state)
	}

	return nil
}

// Start loads the queue, follows presence transitions and server status, and starts
// the prober. Calling Start more than once has no further effect.
func (s *OfflineService) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return fmt.Errorf("load offline queue: %w", err)
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	unsubscribePresence := s.presence.Subscribe(s.onPresence)
	unsubscribeProber := s.prober.Subscribe(s.onServerStatus)

	s.mu.Lock()
	s.unsubscribePresence = unsubscribePresence
	s.unsubscribeProber = unsubscribeProber
	s.networkPresent = s.presence.Online()
	seq, state := s.snapshotLocked()
	s.mu.Unlock()

	s.updates.deliver(seq, state)

	s.prober.Start()

	return nil
}

// Close stops the prober and drops both subscriptions. It is safe to call repeatedly.
func (s *OfflineService) Close() {
	s.closeOnce.Do(func() {
		s.prober.Stop()

		s.mu.Lock()
		unsubscribePresence := s.unsubscribePresence
		unsubscribeProber := s.unsubscribeProber
		s.unsubscribePresence = nil
		s.unsubscribeProber = nil
		s.mu.Unlock()

		if unsubscribePresence != nil {
			unsubscribePresence()
		}
		if unsubscribeProber != nil {
			unsubscribeProber()
		}
	})
}

func (s *OfflineService) State() domain.ConnectivityState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stateLocked()
}

func (s *OfflineService) IsOnline() bool {
	return s.State().Online
}

func (s *OfflineService) IsServerReachable() bool {
	return s.State().ServerReachable
}

// CheckNow asks the prober for an immediate cycle.
func (s *OfflineService) CheckNow() bool {
	return s.prober.CheckNow()
}

// Refresh runs one probe cycle to completion and returns the resulting state. Before
// Start, server status changes are relayed to subscribers only while Refresh runs.
func (s *OfflineService) Refresh(ctx context.Context) domain.ConnectivityState {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		unsubscribe := s.prober.Subscribe(s.onServerStatus)
		defer unsubscribe()
	}

	status := s.prober.CheckAndWait(ctx)
	s.onServerStatus(status)

	return s.State()
}

func (s *OfflineService) QueuedActions() []domain.QueuedAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.CloneActions(s.queue)
}

// Snapshot returns the connectivity state, the server status it was derived from,
// and the queue, all read under one lock. Endpoint is left for the caller to fill.
func (s *OfflineService) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.prober.Config()
	status := Status{
		State:      s.stateLocked(),
		Server:     s.server,
		MaxRetries: cfg.MaxRetries,
		Interval:   cfg.Interval,
		Queue:      domain.CloneActions(s.queue),
	}
	if s.server.Phase == domain.ProbePhaseRetrying && s.server.RetryCount > 0 {
		status.NextBackoff = cfg.Backoff(s.server.RetryCount)
	}

	return status
}

// Subscribe registers fn for connectivity and queue changes. fn runs on the goroutine
// that caused the change and must not call mutating methods of the service.
func (s *OfflineService) Subscribe(fn func(domain.ConnectivityState)) func() {
	return s.updates.subscribe(fn)
}

// AddToQueue appends an action and persists the whole queue before the append becomes
// visible. A failed write leaves the in-memory queue unchanged.
func (s *OfflineService) AddToQueue(ctx context.Context, action domain.NewAction) (domain.QueuedAction, error) {
	normalized, err := action.Normalize()
	if err != nil {
		return domain.QueuedAction{}, err
	}

	s.mu.Lock()
	if _, err := s.ensureLoadedLocked(ctx); err != nil {
		s.mu.Unlock()
		return domain.QueuedAction{}, fmt.Errorf("load offline queue: %w", err)
	}

	now := s.clock.Now().UnixMilli()
	id := max(now, s.lastID+1)
	entry := domain.QueuedAction{
		ID:        strconv.FormatInt(id, 10),
		Type:      normalized.Type,
		Payload:   normalized.Payload,
		Timestamp: now,
	}

	next := append(domain.CloneActions(s.queue), entry)
	if err := s.persistQueueLocked(ctx, next); err != nil {
		s.mu.Unlock()
		s.logger.Error("persist offline queue", "error", err, "type", entry.Type)
		return domain.QueuedAction{}, fmt.Errorf("persist queue: %w", err)
	}

	s.queue = next
	s.lastID = id
	seq, state := s.snapshotLocked()
	s.mu.Unlock()

	s.updates.deliver(seq, state)

	return entry, nil
}

// ClearQueue empties the queue and removes its persisted key.
func (s *OfflineService) ClearQueue(ctx context.Context) error {
	s.mu.Lock()
	if err := s.store.Remove(ctx, QueueStorageKey); err != nil {
		s.mu.Unlock()
		s.logger.Error("remove offline queue", "error", err)
		return fmt.Errorf("remove queue: %w", err)
	}

	s.loaded = true
	s.queue = nil
	seq, state := s.snapshotLocked()
	s.mu.Unlock()

	s.updates.deliver(seq, state)

	return nil
}

// GetCachedData returns the cache entry for key. Missing, unreadable, and undecodable
// entries all report false; the latter two are logged.
func (s *OfflineService) GetCachedData(ctx context.Context, key string) (domain.CacheEntry, bool) {
	raw, err := s.store.Get(ctx, CacheStorageKey(key))
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("read cached data", "key", key, "error", err)
		}
		return domain.CacheEntry{}, false
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.Warn("decode cached data", "key", key, "error", err)
		return domain.CacheEntry{}, false
	}
	entry.Key = key

	return entry, true
}

// SetCachedData stores data under key stamped with the current time, replacing any
// previous entry.
func (s *OfflineService) SetCachedData(ctx context.Context, key string, data json.RawMessage) (domain.CacheEntry, error) {
	normalized, err := domain.NormalizePayload(data)
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("cache %q: %w", key, err)
	}

	entry := domain.CacheEntry{
		Key:       key,
		Data:      normalized,
		Timestamp: s.clock.Now().UnixMilli(),
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("encode cache entry %q: %w", key, err)
	}

	if err := s.store.Set(ctx, CacheStorageKey(key), string(encoded)); err != nil {
		s.logger.Error("persist cached data", "key", key, "error", err)
		return domain.CacheEntry{}, fmt.Errorf("persist cache entry %q: %w", key, err)
	}

	return entry, nil
}

// RequireOnline reports domain.ErrOffline unless both network and server are available.
func (s *OfflineService) RequireOnline() error {
	state := s.State()
	if state.Online {
		return nil
	}

	return fmt.Errorf("%w: %s", domain.ErrOffline, state.Label())
}

// DeferIfOffline queues action when the client is offline and reports whether it did.
// While online it does nothing and the caller is expected to perform the action itself.
func (s *OfflineService) DeferIfOffline(ctx context.Context, action domain.NewAction) (bool, domain.QueuedAction, error) {
	if s.IsOnline() {
		return false, domain.QueuedAction{}, nil
	}

	entry, err := s.AddToQueue(ctx, action)
	if err != nil {
		return false, domain.QueuedAction{}, err
	}

	return true, entry, nil
}

func (s *OfflineService) onPresence(online bool) {
	s.mu.Lock()
	wasOnline := s.networkPresent
	s.networkPresent = online
	seq, state := s.snapshotLocked()
	s.mu.Unlock()

	if wasOnline == online {
		return
	}

	s.logger.Info("network presence changed", "online", online)
	s.updates.deliver(seq, state)

	if online {
		s.prober.CheckNow()
	}
}

func (s *OfflineService) onServerStatus(status domain.ServerStatus) {
	s.mu.Lock()
	s.server = status
	seq, state := s.snapshotLocked()
	s.mu.Unlock()

	s.updates.deliver(seq, state)
}

func (s *OfflineService) ensureLoadedLocked(ctx context.Context) (bool, error) {
	if s.loaded {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.loaded = true
	s.queue = nil

	raw, err := s.store.Get(ctx, QueueStorageKey)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return false, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.loaded = false
			return false, ctxErr
		}
		s.logger.Warn("read offline queue", "error", err)
		return false, nil
	}

	var actions []domain.QueuedAction
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		s.logger.Warn("decode offline queue", "error", err)
		return false, nil
	}

	s.queue = actions
	for _, action := range actions {
		if id, err := strconv.ParseInt(action.ID, 10, 64); err == nil && id > s.lastID {
			s.lastID = id
		}
	}

	return len(actions) > 0, nil
}

func (s *OfflineService) persistQueueLocked(ctx context.Context, actions []domain.QueuedAction) error {
	encoded, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}

	return s.store.Set(ctx, QueueStorageKey, string(encoded))
}

func (s *OfflineService) stateLocked() domain.ConnectivityState {
	return domain.NewConnectivityState(s.networkPresent, s.server, len(s.queue))
}

func (s *OfflineService) snapshotLocked() (uint64, domain.ConnectivityState) {
	s.seq++
	return s.seq, s.stateLocked()
}
