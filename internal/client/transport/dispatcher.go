package transport

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
)

// Target is the transport a request is routed to.
type Target int

const (
	TargetMock Target = iota
	TargetLive
)

func (t Target) String() string {
	if t == TargetLive {
		return "live"
	}
	return "mock"
}

// Options configures routing.
type Options struct {
	// MockMode serves every non-overridden resource from fixtures.
	MockMode bool
	// Routes holds per-resource live overrides. Nil means no overrides.
	Routes resource.Table
}

// Dispatcher is the single entry point for API calls.
type Dispatcher struct {
	mock Transport
	live Transport
	opts Options
}

// NewDispatcher routes between mock and live. Either may be nil when the
// configuration never selects it.
func NewDispatcher(mock, live Transport, opts Options) *Dispatcher {
	if opts.Routes == nil {
		opts.Routes = resource.DefaultTable()
	}
	return &Dispatcher{mock: mock, live: live, opts: opts}
}

// Route selects the transport for ep. It is a pure function of the mock
// flag and the routing table.
func (d *Dispatcher) Route(ep resource.Endpoint) Target {
	if d.opts.MockMode && !d.opts.Routes.IsForcedLive(ep.Resource) {
		return TargetMock
	}
	return TargetLive
}

// Dispatch serves req through the selected transport. Errors are returned
// unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*models.Envelope, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	t := d.live
	if d.Route(req.Endpoint) == TargetMock {
		t = d.mock
	}
	if t == nil {
		return nil, errors.New("no " + d.Route(req.Endpoint).String() + " transport configured")
	}
	return t.Serve(ctx, req)
}

// Get fetches ep.
func (d *Dispatcher) Get(ctx context.Context, ep resource.Endpoint) (*models.Envelope, error) {
	return d.Dispatch(ctx, Request{Endpoint: ep, Method: http.MethodGet})
}

// Post sends body to ep.
func (d *Dispatcher) Post(ctx context.Context, ep resource.Endpoint, body any) (*models.Envelope, error) {
	return d.Dispatch(ctx, Request{Endpoint: ep, Method: http.MethodPost, Body: body})
}

// Put sends body to ep.
func (d *Dispatcher) Put(ctx context.Context, ep resource.Endpoint, body any) (*models.Envelope, error) {
	return d.Dispatch(ctx, Request{Endpoint: ep, Method: http.MethodPut, Body: body})
}

// Delete removes ep.
func (d *Dispatcher) Delete(ctx context.Context, ep resource.Endpoint) (*models.Envelope, error) {
	return d.Dispatch(ctx, Request{Endpoint: ep, Method: http.MethodDelete})
}

// Upload posts content as a multipart file under field.
func (d *Dispatcher) Upload(ctx context.Context, ep resource.Endpoint, field, filename string, content io.Reader) (*models.Envelope, error) {
	if field == "" {
		field = "file"
	}
	return d.Dispatch(ctx, Request{
		Endpoint: ep,
		Method:   http.MethodPost,
		Upload:   &Upload{Field: field, Filename: filename, Content: content},
	})
}
