// Package resource is the typed routing table of the content API: every
// endpoint is a Resource plus an optional record id and action, and each
// Resource carries its path prefix and transport override.
package resource

import (
	"fmt"
	"strings"
)

// Resource identifies one API resource.
type Resource int

const (
	Unknown Resource = iota
	Auth
	Settings
	Profile
	Resume
	Education
	Experience
	Skills
	Portfolio
	Blog
	Testimonials
	Clients
	Certificates
	Team
	Services
	Messages
	Contact
	Uploads
)

// Actions addressed below a resource or record.
const (
	ActionLogin   = "login"
	ActionLogout  = "logout"
	ActionUpdate  = "update"
	ActionReorder = "reorder"
)

// Route describes how a Resource is addressed and served.
type Route struct {
	// Name is the stable identifier used in config and fixtures.
	Name string
	// Prefix is the path below the API base URL.
	Prefix string
	// Collection is true for id-addressed list resources.
	Collection bool
	// ForceLive routes the resource to the live API even in mock mode.
	ForceLive bool
}

// Table maps every Resource to its Route.
type Table map[Resource]Route

// DefaultTable returns a fresh copy of the routing table with no
// live overrides.
func DefaultTable() Table {
	return Table{
		Auth:         {Name: "auth", Prefix: "/auth"},
		Settings:     {Name: "settings", Prefix: "/settings"},
		Profile:      {Name: "profile", Prefix: "/profile"},
		Resume:       {Name: "resume", Prefix: "/resume"},
		Education:    {Name: "education", Prefix: "/resume/education", Collection: true},
		Experience:   {Name: "experience", Prefix: "/resume/experience", Collection: true},
		Skills:       {Name: "skills", Prefix: "/resume/skills", Collection: true},
		Portfolio:    {Name: "portfolio", Prefix: "/portfolio", Collection: true},
		Blog:         {Name: "blog", Prefix: "/blog", Collection: true},
		Testimonials: {Name: "testimonials", Prefix: "/testimonials", Collection: true},
		Clients:      {Name: "clients", Prefix: "/clients", Collection: true},
		Certificates: {Name: "certificates", Prefix: "/certificates", Collection: true},
		Team:         {Name: "team", Prefix: "/team", Collection: true},
		Services:     {Name: "services", Prefix: "/services", Collection: true},
		Messages:     {Name: "messages", Prefix: "/messages", Collection: true},
		Contact:      {Name: "contact", Prefix: "/contact"},
		Uploads:      {Name: "uploads", Prefix: "/uploads"},
	}
}

var defaults = DefaultTable()

// String returns the resource name.
func (r Resource) String() string {
	if rt, ok := defaults[r]; ok {
		return rt.Name
	}
	return "unknown"
}

// Prefix returns the resource's path prefix.
func (r Resource) Prefix() string {
	return defaults[r].Prefix
}

// IsCollection reports whether the resource is id-addressed.
func (r Resource) IsCollection() bool {
	return defaults[r].Collection
}

// ByName resolves a resource name such as "skills" or "blog".
func ByName(name string) (Resource, bool) {
	for r, rt := range defaults {
		if rt.Name == name {
			return r, true
		}
	}
	return Unknown, false
}

// ForceLive marks the named resources as live-only. Unknown names are an error.
func (t Table) ForceLive(names ...string) error {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		r, ok := ByName(n)
		if !ok {
			return fmt.Errorf("unknown resource %q", n)
		}
		rt := t[r]
		rt.ForceLive = true
		t[r] = rt
	}
	return nil
}

// IsForcedLive reports whether the resource bypasses mock mode.
func (t Table) IsForcedLive(r Resource) bool {
	return t[r].ForceLive
}

// Endpoint addresses a resource, optionally a single record and an action.
type Endpoint struct {
	Resource Resource
	ID       string
	Action   string
}

// At returns the list endpoint of r.
func At(r Resource) Endpoint { return Endpoint{Resource: r} }

// Record returns the endpoint of one record of r.
func Record(r Resource, id string) Endpoint { return Endpoint{Resource: r, ID: id} }

// Action returns an action endpoint of r.
func Action(r Resource, action string) Endpoint { return Endpoint{Resource: r, Action: action} }

// Path renders the endpoint below the API base URL.
func (e Endpoint) Path() string {
	p := e.Resource.Prefix()
	if e.ID != "" {
		p += "/" + e.ID
	}
	if e.Action != "" {
		p += "/" + e.Action
	}
	return p
}

func (e Endpoint) String() string { return e.Path() }

// Parse maps a path such as "/resume/skills/42" back to an Endpoint.
// The longest matching prefix wins, so "/resume/skills" is never read as
// the resume order with id "skills".
func Parse(path string) (Endpoint, error) {
	path = "/" + strings.Trim(path, "/")

	best, bestLen := Unknown, 0
	for r, rt := range defaults {
		if (path == rt.Prefix || strings.HasPrefix(path, rt.Prefix+"/")) && len(rt.Prefix) > bestLen {
			best, bestLen = r, len(rt.Prefix)
		}
	}
	if best == Unknown {
		return Endpoint{}, fmt.Errorf("unknown endpoint %q", path)
	}

	rest := strings.Trim(path[bestLen:], "/")
	ep := Endpoint{Resource: best}
	if rest == "" {
		return ep, nil
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && isAction(parts[0]):
		ep.Action = parts[0]
	case len(parts) == 1 && best.IsCollection():
		ep.ID = parts[0]
	case len(parts) == 2 && best.IsCollection():
		ep.ID, ep.Action = parts[0], parts[1]
	default:
		return Endpoint{}, fmt.Errorf("unknown endpoint %q", path)
	}
	return ep, nil
}

func isAction(s string) bool {
	switch s {
	case ActionLogin, ActionLogout, ActionUpdate, ActionReorder:
		return true
	}
	return false
}
