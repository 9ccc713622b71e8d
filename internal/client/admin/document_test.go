package admin

import (
	"context"
	"errors"
	"io"
	"strings"
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

func mockDispatcher() *transport.Dispatcher {
	m := transport.NewMock(fixtures.MustLoad(), storage.NewMemoryTokenStore(), zap.NewNop(),
		transport.WithLatency(func() time.Duration { return 0 }))
	return transport.NewDispatcher(m, nil, transport.Options{MockMode: true})
}

func TestDocument_LoadSaveUpload(t *testing.T) {
	doc := NewDocument[models.Profile](mockDispatcher(), resource.Profile, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, doc.Load(ctx))
	p := doc.Value()
	assert.Equal(t, "Richard Hanrick", p.Name)
	socials := len(p.Socials)

	p.Title = "Go Developer"
	saved, err := doc.Save(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "Go Developer", saved.Title)
	assert.Equal(t, "Go Developer", doc.Value().Title)

	got, err := doc.Upload(ctx, "cv_url", "resume.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "resume.pdf", got.CVURL)
	assert.Equal(t, "Go Developer", got.Title)
	assert.Len(t, got.Socials, socials)
}

type failingDocAPI struct{ err error }

func (f failingDocAPI) Get(context.Context, resource.Endpoint) (*models.Envelope, error) {
	return &models.Envelope{Success: true, Data: []byte(`{"site_name":"Old"}`)}, nil
}

func (f failingDocAPI) Put(context.Context, resource.Endpoint, any) (*models.Envelope, error) {
	return nil, f.err
}

func (f failingDocAPI) Upload(context.Context, resource.Endpoint, string, string, io.Reader) (*models.Envelope, error) {
	return nil, f.err
}

func TestDocument_FailureKeepsCommitted(t *testing.T) {
	boom := errors.New("boom")
	doc := NewDocument[models.Settings](failingDocAPI{err: boom}, resource.Settings, zap.NewNop())
	rep := &reportLog{}
	doc.Report = rep.report
	ctx := context.Background()

	require.NoError(t, doc.Load(ctx))
	_, err := doc.Save(ctx, models.Settings{SiteName: "New"})
	assert.ErrorIs(t, err, boom)
	_, err = doc.Upload(ctx, "logo", "logo.svg", strings.NewReader("<svg/>"))
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, "Old", doc.Value().SiteName)
	assert.Equal(t, []string{"settings save", "settings upload logo"}, rep.errored)
}

type rejectingDocAPI struct{ failingDocAPI }

func (rejectingDocAPI) Put(context.Context, resource.Endpoint, any) (*models.Envelope, error) {
	return &models.Envelope{Success: false, Message: "site_name is required"}, nil
}

func (rejectingDocAPI) Upload(context.Context, resource.Endpoint, string, string, io.Reader) (*models.Envelope, error) {
	return &models.Envelope{Success: false, Data: []byte(`{"site_name":"Half"}`)}, nil
}

func TestDocument_UnsuccessfulEnvelopeKeepsCommitted(t *testing.T) {
	doc := NewDocument[models.Settings](rejectingDocAPI{}, resource.Settings, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, doc.Load(ctx))

	_, err := doc.Save(ctx, models.Settings{SiteName: "New"})
	assert.ErrorIs(t, err, models.ErrRejected)
	assert.Contains(t, err.Error(), "site_name is required")

	_, err = doc.Upload(ctx, "logo", "logo.svg", strings.NewReader("<svg/>"))
	assert.ErrorIs(t, err, models.ErrRejected)

	assert.Equal(t, "Old", doc.Value().SiteName)
}
