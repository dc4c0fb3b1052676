package access

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"designer/internal/datadef"
)

// restURL склеивает baseUrl и endpoint ровно через один "/".
func restURL(base, endpoint string) string {
	base = strings.TrimRight(base, "/")
	endpoint = strings.TrimLeft(endpoint, "/")
	if endpoint == "" {
		return base + "/"
	}
	return base + "/" + endpoint
}

// authHeaders: apikey → Bearer, basic → Basic base64(user:pass).
func authHeaders(c datadef.RESTConfig) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	switch c.Authentication {
	case "apikey":
		if c.APIKey != "" {
			h.Set("Authorization", "Bearer "+c.APIKey)
		}
	case "basic":
		if c.Username != "" && c.Password != "" {
			token := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
			h.Set("Authorization", "Basic "+token)
		}
	}
	return h
}

// StatusError — ответ REST API не 2xx.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrBackend }

func (m *Manager) doREST(ctx context.Context, cfg datadef.RESTConfig, method, endpoint string, body any) (any, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, restURL(cfg.BaseURL, endpoint), rdr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	req.Header = authHeaders(cfg)

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrBackend, method, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrBackend, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: response is not JSON: %w", ErrBackend, err)
	}
	return out, nil
}

// QueryREST делает GET baseUrl/endpoint и возвращает разобранный JSON.
func (m *Manager) QueryREST(ctx context.Context, ds datadef.DataSource, endpoint string) (any, error) {
	if ds.Type != datadef.SourceREST {
		return nil, fmt.Errorf("%w: %s is %s, not rest", ErrWrongSourceType, ds.Name, ds.Type)
	}
	cfg, err := datadef.REST(ds.Config)
	if err != nil {
		return nil, err
	}
	return m.doREST(ctx, cfg, http.MethodGet, endpoint, nil)
}
