package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atinyakov/folio/internal/client/fixtures"
	"github.com/atinyakov/folio/internal/client/storage"
	"github.com/atinyakov/folio/internal/client/transport"
	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func skillID(s models.Skill) string { return s.ID }

type reportLog struct {
	mu      sync.Mutex
	ops     []string
	errored []string
}

func (r *reportLog) report(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	if err != nil {
		r.errored = append(r.errored, op)
	}
}

// skillsServer serves /api/resume/skills with three skills, the middle one
// being id 42.
func skillsServer(t *testing.T, failWrites bool) (*httptest.Server, *[]*http.Request, *[]string) {
	t.Helper()
	var (
		mu     sync.Mutex
		reqs   []*http.Request
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, r.Clone(context.Background()))
		bodies = append(bodies, string(b))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodGet && failWrites {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"success":false,"message":"name is required"}`)
			return
		}
		switch {
		case r.Method == http.MethodGet:
			_, _ = io.WriteString(w, `{"success":true,"data":[{"id":"1","name":"HTML","percentage":95},{"id":"42","name":"Golang","percentage":60},{"id":"7","name":"SQL","percentage":70}]}`)
		case r.Method == http.MethodPut && r.URL.Path == "/api/resume/skills/42":
			var s models.Skill
			_ = json.Unmarshal(b, &s)
			s.ID = "42"
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": s})
		case r.Method == http.MethodPost:
			var s models.Skill
			_ = json.Unmarshal(b, &s)
			s.ID = "100"
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": s})
		default:
			_, _ = io.WriteString(w, `{"success":true}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs, &bodies
}

func liveSkills(t *testing.T, srv *httptest.Server) (*Collection[models.Skill], *reportLog) {
	t.Helper()
	tokens := storage.NewMemoryTokenStore()
	require.NoError(t, tokens.SetToken("secret-token"))
	live := transport.NewLive(srv.Client(), srv.URL+"/api", tokens, nil, zap.NewNop())
	d := transport.NewDispatcher(nil, live, transport.Options{})

	c := NewCollection(d, resource.Skills, skillID, zap.NewNop())
	rep := &reportLog{}
	c.Report = rep.report
	require.NoError(t, c.Load(context.Background()))
	return c, rep
}

func TestCollection_UpdateInPlaceOverLive(t *testing.T) {
	srv, reqs, bodies := skillsServer(t, false)
	c, rep := liveSkills(t, srv)

	saved, err := c.Update(context.Background(), "42", models.Skill{Name: "Go", Percentage: 90})
	require.NoError(t, err)
	assert.Equal(t, models.Skill{ID: "42", Name: "Go", Percentage: 90}, saved)

	put := (*reqs)[1]
	assert.Equal(t, http.MethodPut, put.Method)
	assert.Equal(t, "Bearer secret-token", put.Header.Get("Authorization"))
	assert.Equal(t, "application/json", put.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"id":"","name":"Go","percentage":90}`, (*bodies)[1])

	items := c.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"1", "42", "7"}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, "Go", items[1].Name)
	assert.Equal(t, 90, items[1].Percentage)
	assert.Equal(t, []string{"skills update 42"}, rep.ops)
	assert.Empty(t, rep.errored)
}

func TestCollection_FailedWritesLeaveListUnchanged(t *testing.T) {
	srv, _, _ := skillsServer(t, true)
	c, rep := liveSkills(t, srv)
	before := c.Items()
	ctx := context.Background()

	_, err := c.Update(ctx, "42", models.Skill{})
	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "name is required", apiErr.Message)

	_, err = c.Create(ctx, models.Skill{Name: "Rust"})
	assert.Error(t, err)
	assert.Error(t, c.Delete(ctx, "1"))
	assert.Error(t, c.Reorder(ctx, []string{"7", "42", "1"}))

	assert.Equal(t, before, c.Items())
	assert.Equal(t, []string{"skills update 42", "skills create", "skills delete 1", "skills reorder"}, rep.errored)
}

func TestCollection_CreateDeleteReorder(t *testing.T) {
	srv, reqs, bodies := skillsServer(t, false)
	c, _ := liveSkills(t, srv)
	ctx := context.Background()

	created, err := c.Create(ctx, models.Skill{Name: "Rust", Percentage: 40})
	require.NoError(t, err)
	assert.Equal(t, "100", created.ID)
	assert.Len(t, c.Items(), 4)

	require.NoError(t, c.Delete(ctx, "1"))
	assert.Equal(t, "/api/resume/skills/1", (*reqs)[2].URL.Path)

	require.NoError(t, c.Reorder(ctx, []string{"100", "7", "42"}))
	assert.Equal(t, "/api/resume/skills/reorder", (*reqs)[3].URL.Path)
	assert.JSONEq(t, `{"ids":["100","7","42"]}`, (*bodies)[3])

	items := c.Items()
	assert.Equal(t, []string{"100", "7", "42"}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestCollection_ReorderRejectsBadPermutation(t *testing.T) {
	srv, reqs, _ := skillsServer(t, false)
	c, rep := liveSkills(t, srv)
	ctx := context.Background()

	assert.Error(t, c.Reorder(ctx, []string{"1", "42"}))
	assert.Error(t, c.Reorder(ctx, []string{"1", "1", "42"}))
	assert.Error(t, c.Reorder(ctx, []string{"1", "42", "nope"}))
	assert.Len(t, *reqs, 1, "nothing dispatched")
	assert.Len(t, rep.errored, 3)
}

func TestCollection_UpdateUnknownID(t *testing.T) {
	srv, reqs, _ := skillsServer(t, false)
	c, _ := liveSkills(t, srv)

	_, err := c.Update(context.Background(), "999", models.Skill{Name: "x"})
	assert.Error(t, err)
	assert.Len(t, *reqs, 1)
}

func TestCollection_MockEcho(t *testing.T) {
	m := transport.NewMock(fixtures.MustLoad(), storage.NewMemoryTokenStore(), zap.NewNop(),
		transport.WithLatency(func() time.Duration { return 0 }))
	d := transport.NewDispatcher(m, nil, transport.Options{MockMode: true})

	c := NewCollection(d, resource.Certificates, func(c models.Certificate) string { return c.ID }, zap.NewNop())
	require.NoError(t, c.Load(context.Background()))
	n := len(c.Items())
	require.NotZero(t, n)

	first := c.Items()[0]
	first.Title = strings.ToUpper(first.Title)
	saved, err := c.Update(context.Background(), first.ID, first)
	require.NoError(t, err)
	assert.Equal(t, first, saved)
	assert.Equal(t, first, c.Items()[0])

	require.NoError(t, c.Delete(context.Background(), first.ID))
	assert.Len(t, c.Items(), n-1)

	require.NoError(t, c.Load(context.Background()))
	assert.Len(t, c.Items(), n, "mock writes are not persisted")
}

// rejectingAPI serves a loaded list and answers every write with a 2xx
// success:false envelope.
type rejectingAPI struct{}

func (rejectingAPI) Get(context.Context, resource.Endpoint) (*models.Envelope, error) {
	return &models.Envelope{Success: true, Data: json.RawMessage(`[{"id":"1","name":"HTML","percentage":95}]`)}, nil
}

func (rejectingAPI) Post(context.Context, resource.Endpoint, any) (*models.Envelope, error) {
	return &models.Envelope{Success: false, Message: "rejected"}, nil
}

func (rejectingAPI) Put(context.Context, resource.Endpoint, any) (*models.Envelope, error) {
	return &models.Envelope{Success: false, Message: "rejected"}, nil
}

func (rejectingAPI) Delete(context.Context, resource.Endpoint) (*models.Envelope, error) {
	return &models.Envelope{Success: false, Message: "rejected"}, nil
}

func TestCollection_UnsuccessfulEnvelopeDoesNotCommit(t *testing.T) {
	c := NewCollection[models.Skill](rejectingAPI{}, resource.Skills, skillID, zap.NewNop())
	rep := &reportLog{}
	c.Report = rep.report
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	before := c.Items()

	_, err := c.Create(ctx, models.Skill{Name: "Rust", Percentage: 10})
	assert.ErrorIs(t, err, models.ErrRejected)
	assert.Contains(t, err.Error(), "rejected")

	_, err = c.Update(ctx, "1", models.Skill{Name: "Go"})
	assert.ErrorIs(t, err, models.ErrRejected)
	assert.ErrorIs(t, c.Delete(ctx, "1"), models.ErrRejected)
	assert.ErrorIs(t, c.Reorder(ctx, []string{"1"}), models.ErrRejected)

	assert.Equal(t, before, c.Items())
	assert.Equal(t, []string{"skills create", "skills update 1", "skills delete 1", "skills reorder"}, rep.errored)
}

func TestCollection_LoadRejected(t *testing.T) {
	c := NewCollection[models.Skill](loadRejecting{rejectingAPI{}}, resource.Skills, skillID, zap.NewNop())
	assert.ErrorIs(t, c.Load(context.Background()), models.ErrRejected)
	assert.Empty(t, c.Items())
}

type loadRejecting struct{ API }

func (loadRejecting) Get(context.Context, resource.Endpoint) (*models.Envelope, error) {
	return &models.Envelope{Success: false, Message: "Unauthenticated"}, nil
}
