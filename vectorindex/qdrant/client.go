package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// errNotFound marks an HTTP 404 from Qdrant.
var errNotFound = errors.New("qdrant: not found")

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// client speaks the Qdrant REST API.
type client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func (c *client) collectionURL(name string, parts ...string) string {
	u := c.baseURL + "/collections/" + url.PathEscape(name)
	if len(parts) > 0 {
		u += "/" + strings.Join(parts, "/")
	}
	return u
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (c *client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return fmt.Errorf("qdrant: encode payload: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("qdrant: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return errNotFound
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("qdrant: status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("qdrant: decode response: %w", err)
	}
	return nil
}

func (c *client) collectionExists(ctx context.Context, name string) (bool, error) {
	err := c.do(ctx, http.MethodGet, c.collectionURL(name), nil, nil)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *client) createCollection(ctx context.Context, name string, size int) error {
	payload := map[string]any{
		"vectors": map[string]any{
			"size":     size,
			"distance": "Cosine",
		},
	}
	return c.do(ctx, http.MethodPut, c.collectionURL(name), payload, nil)
}

func (c *client) deleteCollection(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, c.collectionURL(name), nil, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

func (c *client) upsertPoints(ctx context.Context, collection string, points []point) error {
	if len(points) == 0 {
		return nil
	}
	endpoint := c.collectionURL(collection, "points") + "?wait=true"
	return c.do(ctx, http.MethodPut, endpoint, map[string]any{"points": points}, nil)
}

func (c *client) deletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	endpoint := c.collectionURL(collection, "points", "delete") + "?wait=true"
	return c.do(ctx, http.MethodPost, endpoint, map[string]any{"points": ids}, nil)
}

func (c *client) deleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	endpoint := c.collectionURL(collection, "points", "delete") + "?wait=true"
	return c.do(ctx, http.MethodPost, endpoint, map[string]any{"filter": filter}, nil)
}

func (c *client) search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]any) ([]scoredPoint, error) {
	payload := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil {
		payload["filter"] = filter
	}

	var decoded struct {
		Result []scoredPoint `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, c.collectionURL(collection, "points", "search"), payload, &decoded); err != nil {
		return nil, err
	}
	return decoded.Result, nil
}

func matchFilter(key, value string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": key, "match": map[string]any{"value": value}},
		},
	}
}

func stringifyID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
