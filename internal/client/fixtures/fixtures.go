// Package fixtures holds the static JSON documents served by the mock
// transport in place of the content API.
package fixtures

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/atinyakov/folio/internal/resource"
)

//go:embed data/*.json
var files embed.FS

// Store serves fixture documents by resource.
type Store struct {
	docs map[resource.Resource][]byte
}

// Load reads every embedded fixture. It fails if any document is missing
// or is not valid JSON.
func Load() (*Store, error) {
	s := &Store{docs: make(map[resource.Resource][]byte)}
	for _, r := range []resource.Resource{
		resource.Profile, resource.Resume, resource.Education, resource.Experience,
		resource.Skills, resource.Portfolio, resource.Blog, resource.Messages,
		resource.Services, resource.Testimonials, resource.Clients, resource.Settings,
		resource.Certificates, resource.Team,
	} {
		b, err := files.ReadFile("data/" + r.String() + ".json")
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", r, err)
		}
		if !json.Valid(b) {
			return nil, fmt.Errorf("fixture %s: invalid JSON", r)
		}
		s.docs[r] = b
	}
	return s, nil
}

// MustLoad is Load that panics on error. The fixtures are embedded, so a
// failure is a build defect.
func MustLoad() *Store {
	s, err := Load()
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns a copy of the fixture document for r.
func (s *Store) Lookup(r resource.Resource) (json.RawMessage, bool) {
	b, ok := s.docs[r]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), b...), true
}

// First returns the first element of a list fixture.
func (s *Store) First(r resource.Resource) (json.RawMessage, bool) {
	doc, ok := s.Lookup(r)
	if !ok {
		return nil, false
	}
	var list []json.RawMessage
	if err := json.Unmarshal(doc, &list); err != nil || len(list) == 0 {
		return nil, false
	}
	return list[0], true
}
