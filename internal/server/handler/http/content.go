package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxJSONBody bounds a JSON request body.
const maxJSONBody = 1 << 20

// ContentService defines the content operations required by the
// ContentHandler.
type ContentService interface {
	List(ctx context.Context, name string) ([]json.RawMessage, error)
	Get(ctx context.Context, name, id string) (json.RawMessage, error)
	Create(ctx context.Context, name string, body json.RawMessage) (json.RawMessage, error)
	Update(ctx context.Context, name, id string, body json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, name, id string) error
	Reorder(ctx context.Context, name string, req models.ReorderRequest) error
	Singleton(ctx context.Context, name string) (json.RawMessage, error)
	PutSingleton(ctx context.Context, name string, body json.RawMessage) (json.RawMessage, error)
	MergeSingleton(ctx context.Context, name string, fields map[string]any) (json.RawMessage, error)
	Contact(ctx context.Context, msg models.Message) (models.Message, error)
}

// ContentHandler serves collections, singletons and the contact form.
// Handlers are built per resource name.
type ContentHandler struct {
	Content ContentService
	Uploads *Uploads
	Log     *zap.Logger
}

// body returns the request payload as JSON. A multipart form is folded
// into an object whose file fields hold the stored file URLs.
func (h *ContentHandler) body(r *http.Request) (json.RawMessage, error) {
	if isMultipart(r) {
		fields, err := h.Uploads.Form(r)
		if err != nil {
			return nil, &service.ValidationError{Message: err.Error()}
		}
		return json.Marshal(fields)
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		return nil, &service.ValidationError{Message: "invalid body"}
	}
	if !json.Valid(b) {
		return nil, &service.ValidationError{Message: "invalid body"}
	}
	return b, nil
}

// List serves GET on a collection.
func (h *ContentHandler) List(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.Content.List(r.Context(), name)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeData(w, http.StatusOK, items)
	}
}

// Messages serves GET /messages as {"messages":[...]}.
func (h *ContentHandler) Messages(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.Content.List(r.Context(), name)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeData(w, http.StatusOK, map[string][]json.RawMessage{"messages": items})
	}
}

// Get serves GET on one record.
func (h *ContentHandler) Get(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := h.Content.Get(r.Context(), name, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeData(w, http.StatusOK, item)
	}
}

// Create serves POST on a collection.
func (h *ContentHandler) Create(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := h.body(r)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		item, err := h.Content.Create(r.Context(), name, body)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeData(w, http.StatusCreated, item)
	}
}

// Update serves PUT on one record.
func (h *ContentHandler) Update(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := h.body(r)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		item, err := h.Content.Update(r.Context(), name, chi.URLParam(r, "id"), body)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeData(w, http.StatusOK, item)
	}
}

// Delete serves DELETE on one record.
func (h *ContentHandler) Delete(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.Content.Delete(r.Context(), name, chi.URLParam(r, "id")); err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeEnvelope(w, http.StatusOK, models.Envelope{Success: true, Message: "Deleted"})
	}
}

// Reorder serves PUT /{collection}/reorder.
func (h *ContentHandler) Reorder(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ReorderRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request")
			return
		}
		if err := h.Content.Reorder(r.Context(), name, req); err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeData(w, http.StatusOK, req.IDs)
	}
}

// Singleton serves GET on profile, settings or resume.
func (h *ContentHandler) Singleton(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := h.Content.Singleton(r.Context(), name)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeData(w, http.StatusOK, doc)
	}
}

// PutSingleton replaces a singleton. A multipart body is merged into the
// stored document instead.
func (h *ContentHandler) PutSingleton(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if isMultipart(r) {
			h.MergeSingleton(name)(w, r)
			return
		}
		body, err := h.body(r)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		doc, err := h.Content.PutSingleton(r.Context(), name, body)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeData(w, http.StatusOK, doc)
	}
}

// MergeSingleton serves POST /{singleton}/update: the submitted fields,
// uploaded files included, overlay the stored document.
func (h *ContentHandler) MergeSingleton(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		if isMultipart(r) {
			form, err := h.Uploads.Form(r)
			if err != nil {
				writeMessage(w, http.StatusBadRequest, "invalid request")
				return
			}
			fields = form
		} else if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&fields); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request")
			return
		}
		doc, err := h.Content.MergeSingleton(r.Context(), name, fields)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeData(w, http.StatusOK, doc)
	}
}

// Contact handles POST /api/contact from site visitors.
func (h *ContentHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var msg models.Message
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&msg); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	stored, err := h.Content.Contact(r.Context(), msg)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Log.Info("contact message stored", zap.String("id", stored.ID))
	writeEnvelope(w, http.StatusCreated, models.Envelope{Success: true, Message: "Message sent"})
}
