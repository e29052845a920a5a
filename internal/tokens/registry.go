package tokens

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExists   = errors.New("token already exists")
)

// Store is the durable backing of a Registry. Load is called once at
// startup; Persist receives a full snapshot after every mutation.
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Persist(ctx context.Context, records []Record) error
}

// Registry is the in-memory source of truth for issued tokens. Every
// mutation is written through to the Store; a persistence failure is
// logged and the in-memory state stays authoritative.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
	store   Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		records: make(map[string]*Record),
		store:   store,
	}
}

// Load replaces the in-memory state with the store's contents. A store
// with no saved state yields an empty registry, and so does a store
// that fails to read: the registry keeps operating from memory rather
// than taking the control plane down with it.
func (r *Registry) Load(ctx context.Context) {
	records, err := r.store.Load(ctx)
	if err != nil {
		slog.Error("Failed to load tokens, starting with an empty registry", "error", err)
		records = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[string]*Record, len(records))
	for i := range records {
		rec := records[i]
		r.records[rec.Token] = &rec
	}
	slog.Info("Token registry loaded", "count", len(records))
}

// Issue creates a new token for the given client label. Labels are not
// required to be unique; each token is its own identity.
func (r *Registry) Issue(ctx context.Context, clientID string) (Record, error) {
	rec := Record{
		Token:    uuid.NewString(),
		ClientID: clientID,
		IssuedAt: time.Now(),
		Status:   StatusUnknown,
	}

	r.mu.Lock()
	if _, exists := r.records[rec.Token]; exists {
		r.mu.Unlock()
		return Record{}, ErrTokenExists
	}
	r.records[rec.Token] = &rec
	r.mu.Unlock()

	r.persist(ctx)
	slog.Info("Token issued", "client_id", clientID)
	return rec, nil
}

// Lookup returns a copy of the record for the given token.
func (r *Registry) Lookup(token string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[token]
	if !exists {
		return Record{}, ErrTokenNotFound
	}
	return *rec, nil
}

// MarkConnected records that a session holding the token is now open.
func (r *Registry) MarkConnected(ctx context.Context, token, remoteAddr string) error {
	err := r.update(token, func(rec *Record) {
		rec.Used = true
		rec.Status = StatusOnline
		rec.LastSeen = time.Now()
		rec.ConnectedIP = remoteAddr
	})
	if err != nil {
		return err
	}
	r.persist(ctx)
	return nil
}

// MarkDisconnected records that the token's session has closed.
func (r *Registry) MarkDisconnected(ctx context.Context, token string) error {
	err := r.update(token, func(rec *Record) {
		rec.Status = StatusOffline
		rec.LastSeen = time.Now()
	})
	if err != nil {
		return err
	}
	r.persist(ctx)
	return nil
}

// SetActualHost stores the hostname the agent reported about itself.
// Agents resend it on every reconnect, so an unchanged value skips the
// store write.
func (r *Registry) SetActualHost(ctx context.Context, token, actualHost string) error {
	changed := false
	err := r.update(token, func(rec *Record) {
		changed = rec.ActualHost != actualHost
		rec.ActualHost = actualHost
	})
	if err != nil {
		return err
	}
	if changed {
		r.persist(ctx)
	}
	return nil
}

// Touch refreshes the in-memory last-seen time without a store write.
// Traffic-driven refreshes are too frequent to persist one by one; the
// durable copy catches up on the next connect or disconnect.
func (r *Registry) Touch(token string) {
	r.mu.Lock()
	if rec, exists := r.records[token]; exists {
		rec.LastSeen = time.Now()
	}
	r.mu.Unlock()
}

// Revoke deletes a token. An open session holding it is not torn down
// here; the caller is responsible for evicting it.
func (r *Registry) Revoke(ctx context.Context, token string) error {
	r.mu.Lock()
	if _, exists := r.records[token]; !exists {
		r.mu.Unlock()
		return ErrTokenNotFound
	}
	delete(r.records, token)
	r.mu.Unlock()

	r.persist(ctx)
	slog.Info("Token revoked")
	return nil
}

// All returns a snapshot of every record, oldest issued first.
func (r *Registry) All() []Record {
	r.mu.RLock()
	result := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		result = append(result, *rec)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].IssuedAt.Before(result[j].IssuedAt)
	})
	return result
}

func (r *Registry) update(token string, fn func(*Record)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[token]
	if !exists {
		return ErrTokenNotFound
	}
	fn(rec)
	return nil
}

func (r *Registry) persist(ctx context.Context) {
	if err := r.store.Persist(ctx, r.All()); err != nil {
		slog.Error("Failed to persist tokens", "error", err)
	}
}
