package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/repository"
	"github.com/atinyakov/folio/internal/resource"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrUnknownResource is returned for a name that is not a collection or
// singleton of the content API.
var ErrUnknownResource = errors.New("unknown resource")

// ValidationError wraps a rejected request body.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ContentRepository defines the persistence operations needed by the
// ContentService.
type ContentRepository interface {
	List(ctx context.Context, resource string) ([]json.RawMessage, error)
	Get(ctx context.Context, resource, id string) (json.RawMessage, error)
	Insert(ctx context.Context, resource, id string, body json.RawMessage) error
	Update(ctx context.Context, resource, id string, body json.RawMessage) error
	Delete(ctx context.Context, resource, id string) error
	Reorder(ctx context.Context, resource string, ids []string) error
	GetSingleton(ctx context.Context, resource string) (json.RawMessage, error)
	PutSingleton(ctx context.Context, resource string, body json.RawMessage) error
}

// Publisher fans a push frame out to connected admins.
type Publisher interface {
	Publish(frame models.PushFrame)
}

// ContentService implements the site content operations. The server is the
// only source of record ids.
type ContentService struct {
	repo     ContentRepository
	pub      Publisher
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// NewContentService constructs a ContentService. pub may be nil.
func NewContentService(repo ContentRepository, pub Publisher) *ContentService {
	return &ContentService{
		repo:     repo,
		pub:      pub,
		validate: NewValidator(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// NewValidator returns a validator reporting fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks v with validate and turns a failure into a
// ValidationError naming the first bad field.
func Validate(validate *validator.Validate, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := fields[0]
	switch fe.Tag() {
	case "required":
		return &ValidationError{Message: fe.Field() + " is required"}
	case "email":
		return &ValidationError{Message: fe.Field() + " must be a valid email"}
	case "gte":
		return &ValidationError{Message: fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())}
	case "lte":
		return &ValidationError{Message: fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())}
	}
	return &ValidationError{Message: fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())}
}

func collection(name string) error {
	r, ok := resource.ByName(name)
	if !ok || !r.IsCollection() {
		return fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	return nil
}

func singleton(name string) error {
	switch name {
	case resource.Profile.String(), resource.Settings.String(), resource.Resume.String():
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownResource, name)
}

// schema returns the typed form a collection's records are validated
// against, or nil when records are free-form.
func schema(name string) any {
	switch name {
	case resource.Education.String(), resource.Experience.String():
		return &models.Item{}
	case resource.Skills.String():
		return &models.Skill{}
	case resource.Messages.String():
		return &models.Message{}
	}
	return nil
}

// List returns a collection in display order.
func (s *ContentService) List(ctx context.Context, name string) ([]json.RawMessage, error) {
	if err := collection(name); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, name)
}

// Get returns one record.
func (s *ContentService) Get(ctx context.Context, name, id string) (json.RawMessage, error) {
	if err := collection(name); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, name, id)
}

// Create stores body under a new id and returns the stored record.
func (s *ContentService) Create(ctx context.Context, name string, body json.RawMessage) (json.RawMessage, error) {
	if err := collection(name); err != nil {
		return nil, err
	}
	id := s.newID()
	record, err := s.prepare(name, id, body)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, name, id, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Update replaces record id. Any id in body is ignored.
func (s *ContentService) Update(ctx context.Context, name, id string, body json.RawMessage) (json.RawMessage, error) {
	if err := collection(name); err != nil {
		return nil, err
	}
	record, err := s.prepare(name, id, body)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, name, id, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes record id.
func (s *ContentService) Delete(ctx context.Context, name, id string) error {
	if err := collection(name); err != nil {
		return err
	}
	return s.repo.Delete(ctx, name, id)
}

// Reorder stores the full id sequence of a collection.
func (s *ContentService) Reorder(ctx context.Context, name string, req models.ReorderRequest) error {
	if err := collection(name); err != nil {
		return err
	}
	if err := Validate(s.validate, req); err != nil {
		return err
	}
	seen := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		if seen[id] {
			return &ValidationError{Message: "duplicate id " + id}
		}
		seen[id] = true
	}
	return s.repo.Reorder(ctx, name, req.IDs)
}

// prepare validates body against the collection schema and stamps id into
// it.
func (s *ContentService) prepare(name, id string, body json.RawMessage) (json.RawMessage, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, &ValidationError{Message: "body must be a JSON object"}
	}
	fields["id"] = id
	record, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	if typed := schema(name); typed != nil {
		if err := json.Unmarshal(record, typed); err != nil {
			return nil, &ValidationError{Message: err.Error()}
		}
		if err := Validate(s.validate, typed); err != nil {
			return nil, err
		}
	}
	return record, nil
}

// Singleton returns profile, settings or the resume order. An unset
// document is empty.
func (s *ContentService) Singleton(ctx context.Context, name string) (json.RawMessage, error) {
	if err := singleton(name); err != nil {
		return nil, err
	}
	body, err := s.repo.GetSingleton(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		if name == resource.Resume.String() {
			return json.RawMessage(`[]`), nil
		}
		return json.RawMessage(`{}`), nil
	}
	return body, err
}

// PutSingleton replaces a singleton. The resume order is stored as a plain
// list of section types.
func (s *ContentService) PutSingleton(ctx context.Context, name string, body json.RawMessage) (json.RawMessage, error) {
	if err := singleton(name); err != nil {
		return nil, err
	}
	if name == resource.Resume.String() {
		var order models.Order
		if err := json.Unmarshal(body, &order); err != nil {
			return nil, &ValidationError{Message: "resume order must be a list of section types"}
		}
		for _, typ := range order {
			if typ == "" {
				return nil, &ValidationError{Message: "resume order contains an empty section type"}
			}
		}
		normalized, err := json.Marshal(append([]string{}, order...))
		if err != nil {
			return nil, err
		}
		body = normalized
	} else {
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
			return nil, &ValidationError{Message: "body must be a JSON object"}
		}
	}
	if err := s.repo.PutSingleton(ctx, name, body); err != nil {
		return nil, err
	}
	return body, nil
}

// MergeSingleton overlays fields on the profile or settings document, as
// the multipart update form does.
func (s *ContentService) MergeSingleton(ctx context.Context, name string, fields map[string]any) (json.RawMessage, error) {
	if name == resource.Resume.String() {
		return nil, fmt.Errorf("%w: %s cannot be merged", ErrUnknownResource, name)
	}
	cur, err := s.Singleton(ctx, name)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(cur, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return s.PutSingleton(ctx, name, b)
}

// Contact stores a visitor's message and notifies connected admins.
func (s *ContentService) Contact(ctx context.Context, msg models.Message) (models.Message, error) {
	if err := Validate(s.validate, msg); err != nil {
		return msg, err
	}
	msg.ID = s.newID()
	msg.Date = s.now().UTC().Format(time.RFC3339)
	msg.Read = false

	body, err := json.Marshal(msg)
	if err != nil {
		return msg, err
	}
	if err := s.repo.Insert(ctx, resource.Messages.String(), msg.ID, body); err != nil {
		return msg, err
	}

	if s.pub != nil {
		s.pub.Publish(models.PushFrame{
			Event: models.EventNewContactMessage,
			Data: models.NewMessageEvent{
				ID:          msg.ID,
				SenderName:  msg.Name,
				SenderEmail: msg.Email,
				Message:     msg.Message,
			},
		})
	}
	return msg, nil
}
