// Package resume rebuilds the ordered resume from a persisted section
// order and independently fetched section contents, and edits that order.
package resume

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
)

// DefaultOrder is used when no order is persisted.
var DefaultOrder = []string{models.SectionEducation, models.SectionExperience, models.SectionSkills}

// emptyList is the data of a section with no fetched collection.
var emptyList = json.RawMessage(`[]`)

// Reconcile emits one section per entry of order, in order, carrying the
// matching collection from sections unchanged. An entry with no collection
// gets an empty list. A type listed twice is emitted once, at its first
// position. Collections not named by order are dropped.
func Reconcile(order []string, sections map[string]json.RawMessage) []models.Section {
	if len(order) == 0 {
		order = DefaultOrder
	}

	seen := make(map[string]bool, len(order))
	out := make([]models.Section, 0, len(order))
	for _, typ := range order {
		if seen[typ] {
			continue
		}
		seen[typ] = true

		data, ok := sections[typ]
		if !ok || len(data) == 0 || string(data) == "null" {
			data = emptyList
		}
		out = append(out, models.Section{Type: typ, Data: data})
	}
	return out
}

// OrderOf returns the section types of sections, in order.
func OrderOf(sections []models.Section) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Type
	}
	return out
}

// Move returns a copy of order with the element at from moved to to, as a
// drag-and-drop reorder does. The input is never modified.
func Move(order []string, from, to int) ([]string, error) {
	if from < 0 || from >= len(order) || to < 0 || to >= len(order) {
		return nil, fmt.Errorf("move %d -> %d: index out of range [0,%d)", from, to, len(order))
	}
	out := make([]string, 0, len(order))
	moved := order[from]
	for i, v := range order {
		if i != from {
			out = append(out, v)
		}
	}
	out = append(out[:to], append([]string{moved}, out[to:]...)...)
	return out, nil
}

// Putter is the write side of the dispatcher.
type Putter interface {
	Put(ctx context.Context, ep resource.Endpoint, body any) (*models.Envelope, error)
}

// SaveOrder replaces the persisted order with the full sequence. There is
// no partial move endpoint.
func SaveOrder(ctx context.Context, api Putter, order []string) error {
	env, err := api.Put(ctx, resource.At(resource.Resume), order)
	if err != nil {
		return fmt.Errorf("save resume order: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("save resume order: %s", env.Message)
	}
	return nil
}
