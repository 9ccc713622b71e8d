package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/atinyakov/folio/internal/client/storage"
	"github.com/atinyakov/folio/internal/models"
	"go.uber.org/zap"
)

// Live issues real HTTP requests against the content API.
type Live struct {
	client  *http.Client
	baseURL string
	tokens  *storage.TokenStore
	nav     Navigator
	log     *zap.Logger
}

// NewLive returns a Live transport rooted at baseURL (e.g.
// "https://example.com/api").
func NewLive(client *http.Client, baseURL string, tokens *storage.TokenStore, nav Navigator, log *zap.Logger) *Live {
	if client == nil {
		client = &http.Client{}
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Live{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		nav:     nav,
		log:     log,
	}
}

// Serve implements Transport.
func (l *Live) Serve(ctx context.Context, req Request) (*models.Envelope, error) {
	url := l.baseURL + req.Endpoint.Path()

	httpReq, err := l.newRequest(ctx, req, url)
	if err != nil {
		return nil, err
	}

	l.log.Info("api request", zap.String("method", req.Method), zap.String("url", url))
	resp, err := l.client.Do(httpReq)
	if err != nil {
		l.log.Error("api request failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", req.Method, url, err)
	}
	defer resp.Body.Close()
	l.log.Info("api response", zap.Int("status", resp.StatusCode), zap.String("url", url))

	if resp.StatusCode == http.StatusUnauthorized {
		if err := l.tokens.ClearToken(); err != nil {
			l.log.Warn("clear token", zap.Error(err))
		}
		l.nav.Navigate(LoginRoute)
		return nil, ErrSessionExpired
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		l.log.Error("api read body failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("read response: %w", err)
	}
	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(body, isJSON)}
		l.log.Error("api error", zap.String("url", url), zap.String("error", apiErr.StatusText()))
		return nil, apiErr
	}

	return parseEnvelope(body, isJSON)
}

func (l *Live) newRequest(ctx context.Context, req Request, url string) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Upload != nil:
		buf, ct, err := encodeMultipart(req.Upload)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if token := l.tokens.Token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

// encodeMultipart builds the form body. The content type, boundary
// included, comes from the multipart writer.
func encodeMultipart(up *Upload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range up.Fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	part, err := mw.CreateFormFile(up.Field, up.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if up.Content != nil {
		if _, err := io.Copy(part, up.Content); err != nil {
			return nil, "", fmt.Errorf("copy upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// errorMessage picks the JSON "message" field, then the raw text body,
// then a generic fallback.
func errorMessage(body []byte, isJSON bool) string {
	if isJSON {
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
			return payload.Message
		}
		return genericErrorMessage
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return genericErrorMessage
}

// parseEnvelope decodes a 2xx body. A JSON object with a "success" key is an
// Envelope; any other JSON value or a text body becomes its Data.
func parseEnvelope(body []byte, isJSON bool) (*models.Envelope, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return &models.Envelope{Success: true}, nil
	}
	if !isJSON {
		data, _ := json.Marshal(string(body))
		return &models.Envelope{Success: true, Data: data}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err == nil {
		if _, ok := probe["success"]; ok {
			var env models.Envelope
			if err := json.Unmarshal(body, &env); err != nil {
				return nil, fmt.Errorf("invalid response: %w", err)
			}
			return &env, nil
		}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid response: malformed JSON")
	}
	return &models.Envelope{Success: true, Data: body}, nil
}
