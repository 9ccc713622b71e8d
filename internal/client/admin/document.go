package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
	"go.uber.org/zap"
)

// Uploader sends a multipart file.
type Uploader interface {
	Upload(ctx context.Context, ep resource.Endpoint, field, filename string, content io.Reader) (*models.Envelope, error)
}

// DocumentAPI is what a Document needs from the dispatcher.
type DocumentAPI interface {
	Get(ctx context.Context, ep resource.Endpoint) (*models.Envelope, error)
	Put(ctx context.Context, ep resource.Endpoint, body any) (*models.Envelope, error)
	Uploader
}

// Document is an editable singleton such as the profile or site settings.
type Document[T any] struct {
	api    DocumentAPI
	res    resource.Resource
	Report Reporter

	mu  sync.RWMutex
	doc T
}

// NewDocument returns a zero document over res.
func NewDocument[T any](api DocumentAPI, res resource.Resource, log *zap.Logger) *Document[T] {
	return &Document[T]{api: api, res: res, Report: LogReporter(log)}
}

// Value returns the committed document.
func (d *Document[T]) Value() T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.doc
}

// Load fetches the document.
func (d *Document[T]) Load(ctx context.Context) error {
	env, err := accepted(d.api.Get(ctx, resource.At(d.res)))
	if err != nil {
		return d.done("load", err)
	}
	var doc T
	if err := env.Decode(&doc); err != nil {
		return d.done("load", fmt.Errorf("decode %s: %w", d.res, err))
	}
	d.mu.Lock()
	d.doc = doc
	d.mu.Unlock()
	return nil
}

// Save replaces the document.
func (d *Document[T]) Save(ctx context.Context, v T) (T, error) {
	env, err := accepted(d.api.Put(ctx, resource.At(d.res), v))
	if err != nil {
		return v, d.done("save", err)
	}
	saved := v
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &saved); err != nil {
			return v, d.done("save", fmt.Errorf("decode %s: %w", d.res, err))
		}
	}
	d.mu.Lock()
	d.doc = saved
	d.mu.Unlock()
	return saved, d.done("save", nil)
}

// Upload sends a file for field (e.g. "avatar", "cv_url") to the update
// action. The returned fields are merged into the committed document.
func (d *Document[T]) Upload(ctx context.Context, field, filename string, content io.Reader) (T, error) {
	op := "upload " + field
	env, err := accepted(d.api.Upload(ctx, resource.Action(d.res, resource.ActionUpdate), field, filename, content))
	if err != nil {
		return d.Value(), d.done(op, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	next, err := clone(d.doc)
	if err != nil {
		return d.doc, d.done(op, err)
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &next); err != nil {
			return d.doc, d.done(op, fmt.Errorf("decode %s: %w", d.res, err))
		}
	}
	d.doc = next
	return next, d.done(op, nil)
}

func (d *Document[T]) done(op string, err error) error {
	if d.Report != nil {
		d.Report(d.res.String()+" "+op, err)
	}
	return err
}

// clone deep-copies v so a failed merge cannot touch shared slices.
func clone[T any](v T) (T, error) {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("copy document: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("copy document: %w", err)
	}
	return out, nil
}
