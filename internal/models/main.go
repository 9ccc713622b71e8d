// Package models defines the wire types shared by the content API server
// and the client data-access layer.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Envelope is the uniform response wrapper returned by every API call.
type Envelope struct {
	// Success reports whether the operation succeeded.
	Success bool `json:"success"`
	// Data carries the resource payload, if any.
	Data json.RawMessage `json:"data,omitempty"`
	// Message is a human-readable status or error message.
	Message string `json:"message,omitempty"`
	// Token is set by login responses.
	Token string `json:"token,omitempty"`
	// User is set by login responses.
	User *User `json:"user,omitempty"`
}

// Decode unmarshals the envelope's Data into v.
func (e *Envelope) Decode(v any) error {
	if e == nil || len(e.Data) == 0 {
		return fmt.Errorf("decode envelope: empty data")
	}
	return json.Unmarshal(e.Data, v)
}

// ErrUnauthenticated marks a missing, unknown or expired session.
var ErrUnauthenticated = errors.New("Unauthenticated")

// ErrRejected is wrapped by Envelope.Err when the server answers
// success:false.
var ErrRejected = errors.New("request rejected")

// Err returns nil for a successful envelope and an error wrapping
// ErrRejected with the server's message otherwise.
func (e *Envelope) Err() error {
	if e == nil {
		return fmt.Errorf("%w: empty response", ErrRejected)
	}
	if e.Success {
		return nil
	}
	if e.Message == "" {
		return ErrRejected
	}
	return fmt.Errorf("%w: %s", ErrRejected, e.Message)
}

// User is the authenticated account, held in memory for a session.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PeriodSeparator joins the start and end of an Item period.
const PeriodSeparator = " — "

// PeriodPresent marks an ongoing period.
const PeriodPresent = "Present"

// Item is an education or experience entry.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title" validate:"required"`
	Period      string `json:"period"`
	Description string `json:"description"`
}

// FormatPeriod renders "<start> — <end|Present>".
func FormatPeriod(start, end string, present bool) string {
	if present {
		end = PeriodPresent
	}
	return start + PeriodSeparator + end
}

// ParsePeriod splits a period produced by FormatPeriod.
func ParsePeriod(period string) (start, end string, present bool) {
	start, end, _ = strings.Cut(period, PeriodSeparator)
	return start, end, end == PeriodPresent
}

// Skill is a named proficiency in percent.
type Skill struct {
	ID         string `json:"id"`
	Name       string `json:"name" validate:"required"`
	Percentage int    `json:"percentage" validate:"gte=0,lte=100"`
}

// Resume section types.
const (
	SectionEducation  = "education"
	SectionExperience = "experience"
	SectionSkills     = "skills"
)

// Section is one ordered resume section with its raw item list.
type Section struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Items decodes Data as education/experience entries.
func (s Section) Items() ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(s.Data, &items); err != nil {
		return nil, fmt.Errorf("section %s: %w", s.Type, err)
	}
	return items, nil
}

// Skills decodes Data as skills.
func (s Section) Skills() ([]Skill, error) {
	var skills []Skill
	if err := json.Unmarshal(s.Data, &skills); err != nil {
		return nil, fmt.Errorf("section %s: %w", s.Type, err)
	}
	return skills, nil
}

// OrderEntry is the record form of a resume order element.
type OrderEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

// Order is the persisted sequence of resume section types.
type Order []string

// UnmarshalJSON accepts either ["education", ...] or
// [{"id":"education","label":"Education","order":1}, ...].
func (o *Order) UnmarshalJSON(b []byte) error {
	var plain []string
	if err := json.Unmarshal(b, &plain); err == nil {
		*o = plain
		return nil
	}

	var entries []OrderEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return fmt.Errorf("resume order: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Order < entries[j].Order })
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	*o = out
	return nil
}

// Social is a profile or settings link.
type Social struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Profile is the site owner's personal info.
type Profile struct {
	Name     string   `json:"name"`
	Title    string   `json:"title"`
	Bio      []string `json:"bio"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Birthday string   `json:"birthday"`
	Location string   `json:"location"`
	Avatar   string   `json:"avatar"`
	CVURL    string   `json:"cv_url"`
	Socials  []Social `json:"socials"`
}

// Settings holds global site settings.
type Settings struct {
	SiteName string   `json:"site_name"`
	Logo     string   `json:"logo"`
	Favicon  string   `json:"favicon"`
	Socials  []Social `json:"socials"`
}

// PortfolioItem is a showcased project.
type PortfolioItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Image    string `json:"image"`
	URL      string `json:"url"`
}

// BlogPost is a blog entry.
type BlogPost struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	Date      string `json:"date"`
	Excerpt   string `json:"excerpt"`
	Content   string `json:"content"`
	Thumbnail string `json:"thumbnail"`
}

// Testimonial is a quote from a client.
type Testimonial struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Text   string `json:"text"`
	Date   string `json:"date"`
}

// Certificate is an earned certificate.
type Certificate struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Issuer string `json:"issuer"`
	Image  string `json:"image"`
	Date   string `json:"date"`
}

// Client is a company logo shown on the about page.
type Client struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
	URL  string `json:"url"`
}

// TeamMember is a collaborator shown on the about page.
type TeamMember struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar"`
}

// Service is an offered service.
type Service struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// Message is a contact message.
type Message struct {
	ID      string `json:"id"`
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
	Date    string `json:"date"`
	Read    bool   `json:"read"`
}

// MessageList is the /messages payload.
type MessageList struct {
	Messages []Message `json:"messages"`
}

// EventNewContactMessage names the push event for a new contact message.
const EventNewContactMessage = "NewContactMessage"

// NewMessageEvent is delivered on the admin-notifications channel.
type NewMessageEvent struct {
	ID          string `json:"id,omitempty"`
	SenderName  string `json:"sender_name"`
	SenderEmail string `json:"sender_email"`
	Message     string `json:"message"`
}

// PushFrame wraps an event on the websocket channel.
type PushFrame struct {
	Event string          `json:"event"`
	Data  NewMessageEvent `json:"data"`
}

// ReorderRequest is the body of PUT /{collection}/reorder: the full id
// sequence in its new order.
type ReorderRequest struct {
	IDs []string `json:"ids" validate:"required,dive,required"`
}
