// Package admin is the data side of the admin screens: editable lists and
// documents that only change their committed state after the server
// accepts a write.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
	"go.uber.org/zap"
)

// API is the dispatcher surface used by the admin screens.
type API interface {
	Get(ctx context.Context, ep resource.Endpoint) (*models.Envelope, error)
	Post(ctx context.Context, ep resource.Endpoint, body any) (*models.Envelope, error)
	Put(ctx context.Context, ep resource.Endpoint, body any) (*models.Envelope, error)
	Delete(ctx context.Context, ep resource.Endpoint) (*models.Envelope, error)
}

// Reporter receives the outcome of every write, nil on success.
type Reporter func(op string, err error)

// LogReporter reports through log.
func LogReporter(log *zap.Logger) Reporter {
	return func(op string, err error) {
		if err != nil {
			log.Error("admin write failed", zap.String("op", op), zap.Error(err))
			return
		}
		log.Info("admin write", zap.String("op", op))
	}
}

// Collection is an editable list backed by one collection resource.
type Collection[T any] struct {
	api    API
	res    resource.Resource
	idOf   func(T) string
	Report Reporter

	mu    sync.RWMutex
	items []T
}

// NewCollection returns an empty list over res. idOf extracts a record id.
func NewCollection[T any](api API, res resource.Resource, idOf func(T) string, log *zap.Logger) *Collection[T] {
	return &Collection[T]{api: api, res: res, idOf: idOf, Report: LogReporter(log)}
}

// Items returns a copy of the committed list.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Load replaces the list with the server's.
func (c *Collection[T]) Load(ctx context.Context) error {
	env, err := accepted(c.api.Get(ctx, resource.At(c.res)))
	if err != nil {
		return c.done("load", err)
	}
	var items []T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return c.done("load", fmt.Errorf("decode %s: %w", c.res, err))
		}
	}
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return nil
}

// Create posts v and appends the record the server returns. The server
// assigns the id.
func (c *Collection[T]) Create(ctx context.Context, v T) (T, error) {
	env, err := accepted(c.api.Post(ctx, resource.At(c.res), v))
	if err != nil {
		return v, c.done("create", err)
	}
	saved, err := c.record(env, v)
	if err != nil {
		return v, c.done("create", err)
	}

	c.mu.Lock()
	c.items = append(c.items, saved)
	c.mu.Unlock()
	return saved, c.done("create", nil)
}

// Update puts v to id and replaces that entry in place.
func (c *Collection[T]) Update(ctx context.Context, id string, v T) (T, error) {
	op := "update " + id
	if c.index(id) < 0 {
		return v, c.done(op, fmt.Errorf("%s %s: not loaded", c.res, id))
	}
	env, err := accepted(c.api.Put(ctx, resource.Record(c.res, id), v))
	if err != nil {
		return v, c.done(op, err)
	}
	saved, err := c.record(env, v)
	if err != nil {
		return v, c.done(op, err)
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.items[i] = saved
	}
	c.mu.Unlock()
	return saved, c.done(op, nil)
}

// Delete removes id on the server, then locally.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	op := "delete " + id
	if _, err := accepted(c.api.Delete(ctx, resource.Record(c.res, id))); err != nil {
		return c.done(op, err)
	}
	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}
	c.mu.Unlock()
	return c.done(op, nil)
}

// Reorder sends the full id sequence and, once accepted, reorders the list
// to match. ids must be a permutation of the loaded ids.
func (c *Collection[T]) Reorder(ctx context.Context, ids []string) error {
	c.mu.RLock()
	staged, err := permute(c.items, ids, c.idOf)
	c.mu.RUnlock()
	if err != nil {
		return c.done("reorder", err)
	}

	if _, err := accepted(c.api.Put(ctx, resource.Action(c.res, resource.ActionReorder), models.ReorderRequest{IDs: ids})); err != nil {
		return c.done("reorder", err)
	}
	c.mu.Lock()
	c.items = staged
	c.mu.Unlock()
	return c.done("reorder", nil)
}

func permute[T any](items []T, ids []string, idOf func(T) string) ([]T, error) {
	if len(ids) != len(items) {
		return nil, fmt.Errorf("reorder: got %d ids for %d items", len(ids), len(items))
	}
	byID := make(map[string]T, len(items))
	for _, it := range items {
		byID[idOf(it)] = it
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("reorder: unknown or repeated id %q", id)
		}
		delete(byID, id)
		out = append(out, it)
	}
	return out, nil
}

// accepted turns a success:false envelope into an error so nothing commits
// on a rejected write.
func accepted(env *models.Envelope, err error) (*models.Envelope, error) {
	if err != nil {
		return nil, err
	}
	if err := env.Err(); err != nil {
		return nil, err
	}
	return env, nil
}

// record decodes the server's copy of a written record, falling back to the
// submitted value when the response carries no data.
func (c *Collection[T]) record(env *models.Envelope, submitted T) (T, error) {
	if len(env.Data) == 0 {
		return submitted, nil
	}
	var saved T
	if err := json.Unmarshal(env.Data, &saved); err != nil {
		return submitted, fmt.Errorf("decode %s: %w", c.res, err)
	}
	return saved, nil
}

func (c *Collection[T]) index(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexLocked(id)
}

func (c *Collection[T]) indexLocked(id string) int {
	return slices.IndexFunc(c.items, func(it T) bool { return c.idOf(it) == id })
}

func (c *Collection[T]) done(op string, err error) error {
	if c.Report != nil {
		c.Report(c.res.String()+" "+op, err)
	}
	return err
}
