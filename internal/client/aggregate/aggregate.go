// Package aggregate loads the full site content in one all-or-nothing
// bootstrap and publishes it read-only.
package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/atinyakov/folio/internal/client/resume"
	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Getter is the read side of the dispatcher.
type Getter interface {
	Get(ctx context.Context, ep resource.Endpoint) (*models.Envelope, error)
}

// Aggregate is the resolved site content.
type Aggregate struct {
	Profile      models.Profile
	Resume       []models.Section
	Portfolio    []models.PortfolioItem
	Blog         []models.BlogPost
	Testimonials []models.Testimonial
	Certificates []models.Certificate
	Clients      []models.Client
	Team         []models.TeamMember
	Services     []models.Service
	Settings     models.Settings
}

// State is the loading gate.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "idle"
}

// ErrNotReady is returned by Refresh before a successful Load.
var ErrNotReady = errors.New("aggregate not loaded")

// Aggregator owns the aggregate and its loading/error state.
type Aggregator struct {
	api Getter
	log *zap.Logger

	mu    sync.RWMutex
	state State
	agg   *Aggregate
	err   error
}

// New returns an Idle aggregator.
func New(api Getter, log *zap.Logger) *Aggregator {
	return &Aggregator{api: api, log: log}
}

// resumeParts holds the separately stored pieces of the resume.
type resumeParts struct {
	order      models.Order
	education  json.RawMessage
	experience json.RawMessage
	skills     json.RawMessage
}

func (p *resumeParts) reconcile() []models.Section {
	return resume.Reconcile(p.order, map[string]json.RawMessage{
		models.SectionEducation:  p.education,
		models.SectionExperience: p.experience,
		models.SectionSkills:     p.skills,
	})
}

func resumeTargets(p *resumeParts) map[resource.Resource]any {
	return map[resource.Resource]any{
		resource.Resume:     &p.order,
		resource.Education:  &p.education,
		resource.Experience: &p.experience,
		resource.Skills:     &p.skills,
	}
}

func contentTargets(agg *Aggregate) map[resource.Resource]any {
	return map[resource.Resource]any{
		resource.Profile:      &agg.Profile,
		resource.Portfolio:    &agg.Portfolio,
		resource.Blog:         &agg.Blog,
		resource.Testimonials: &agg.Testimonials,
		resource.Certificates: &agg.Certificates,
		resource.Clients:      &agg.Clients,
		resource.Team:         &agg.Team,
		resource.Services:     &agg.Services,
		resource.Settings:     &agg.Settings,
	}
}

// Load fetches every resource concurrently. The first failure cancels the
// remaining requests, and nothing is published unless all succeed.
func (a *Aggregator) Load(ctx context.Context) (*Aggregate, error) {
	a.setState(Loading, nil, nil)

	agg := &Aggregate{}
	var parts resumeParts
	targets := contentTargets(agg)
	for r, dst := range resumeTargets(&parts) {
		targets[r] = dst
	}

	if err := a.fetchAll(ctx, targets); err != nil {
		a.log.Error("load aggregate", zap.Error(err))
		a.setState(Failed, nil, err)
		return nil, err
	}
	agg.Resume = parts.reconcile()

	a.setState(Ready, agg, nil)
	return agg, nil
}

// Refresh re-fetches one resource of a Ready aggregate and republishes it.
// Any resume resource refreshes the whole resume. On failure the published
// aggregate is kept.
func (a *Aggregator) Refresh(ctx context.Context, r resource.Resource) (*Aggregate, error) {
	a.mu.RLock()
	cur := a.agg
	a.mu.RUnlock()
	if cur == nil {
		return nil, ErrNotReady
	}

	next := *cur
	switch r {
	case resource.Resume, resource.Education, resource.Experience, resource.Skills:
		var parts resumeParts
		if err := a.fetchAll(ctx, resumeTargets(&parts)); err != nil {
			return nil, err
		}
		next.Resume = parts.reconcile()
	default:
		// Decode into a zero aggregate so the published one's slices are
		// never written.
		var fresh Aggregate
		dst, ok := contentTargets(&fresh)[r]
		if !ok {
			return nil, fmt.Errorf("refresh: %s is not part of the aggregate", r)
		}
		if err := a.fetch(ctx, r, dst); err != nil {
			return nil, err
		}
		next.take(&fresh, r)
	}

	a.mu.Lock()
	a.agg = &next
	a.mu.Unlock()
	return &next, nil
}

// take copies the field for r from src.
func (agg *Aggregate) take(src *Aggregate, r resource.Resource) {
	switch r {
	case resource.Profile:
		agg.Profile = src.Profile
	case resource.Portfolio:
		agg.Portfolio = src.Portfolio
	case resource.Blog:
		agg.Blog = src.Blog
	case resource.Testimonials:
		agg.Testimonials = src.Testimonials
	case resource.Certificates:
		agg.Certificates = src.Certificates
	case resource.Clients:
		agg.Clients = src.Clients
	case resource.Team:
		agg.Team = src.Team
	case resource.Services:
		agg.Services = src.Services
	case resource.Settings:
		agg.Settings = src.Settings
	}
}

func (a *Aggregator) fetchAll(ctx context.Context, targets map[resource.Resource]any) error {
	g, gctx := errgroup.WithContext(ctx)
	for r, dst := range targets {
		g.Go(func() error {
			return a.fetch(gctx, r, dst)
		})
	}
	return g.Wait()
}

func (a *Aggregator) fetch(ctx context.Context, r resource.Resource, dst any) error {
	env, err := a.api.Get(ctx, resource.At(r))
	if err != nil {
		return fmt.Errorf("fetch %s: %w", r, err)
	}
	if !env.Success {
		return fmt.Errorf("fetch %s: %s", r, env.Message)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", r, err)
	}
	return nil
}

func (a *Aggregator) setState(s State, agg *Aggregate, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state, a.agg, a.err = s, agg, err
}

// State returns the loading state.
func (a *Aggregator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Aggregate returns the published aggregate, or nil unless Ready.
func (a *Aggregator) Aggregate() *Aggregate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != Ready {
		return nil
	}
	return a.agg
}

// Err returns the failure of the last Load.
func (a *Aggregator) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}
