// Package transport is the client's request layer: a Dispatcher that
// routes every call either to the Mock transport (embedded fixtures, no
// network) or to the Live transport (HTTP with bearer auth).
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
)

// LoginRoute is where the UI is sent when the session ends.
const LoginRoute = "/admin/login"

var (
	// ErrInvalidCredentials is returned by a rejected login.
	ErrInvalidCredentials = errors.New("Invalid credentials")
	// ErrSessionExpired is returned for any 401 response.
	ErrSessionExpired = errors.New("Session expired. Please login again.")
	// ErrEndpointNotFound is returned by the mock transport for an endpoint
	// with no fixture.
	ErrEndpointNotFound = errors.New("Endpoint not found")
)

// genericErrorMessage is used when an error response carries no message.
const genericErrorMessage = "Something went wrong"

// APIError is a non-2xx response other than 401.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// StatusText returns "<status>: <message>", for logs.
func (e *APIError) StatusText() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Upload is a multipart payload.
type Upload struct {
	// Field is the form field the file is submitted under.
	Field string
	// Filename is the file name sent in the part header.
	Filename string
	// Content is the file body.
	Content io.Reader
	// Fields are extra plain form fields sent alongside the file.
	Fields map[string]string
}

// Request is one call through the Dispatcher.
type Request struct {
	Endpoint resource.Endpoint
	Method   string
	// Body is JSON-encoded when set. Ignored when Upload is set.
	Body   any
	Upload *Upload
}

// Transport serves requests.
type Transport interface {
	Serve(ctx context.Context, req Request) (*models.Envelope, error)
}

// Navigator performs client-side navigation.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

// Navigate calls f(route).
func (f NavigatorFunc) Navigate(route string) { f(route) }
