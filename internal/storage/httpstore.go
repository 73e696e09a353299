package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPStore uploads objects with a PUT per key. It fits any bucket gateway
// that accepts authenticated PUTs (R2/S3 workers, MinIO behind a proxy).
type HTTPStore struct {
	uploadURL string
	baseURL   string
	token     string
	client    *http.Client
}

type HTTPStoreOptions struct {
	UploadURL string
	BaseURL   string
	Token     string
	Client    *http.Client
}

func NewHTTPStore(opts HTTPStoreOptions) (*HTTPStore, error) {
	upload := strings.TrimRight(strings.TrimSpace(opts.UploadURL), "/")
	if upload == "" {
		return nil, errors.New("storage: upload url is required")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = upload
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPStore{uploadURL: upload, baseURL: base, token: strings.TrimSpace(opts.Token), client: client}, nil
}

func (s *HTTPStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, publicURL(s.uploadURL, cleanKey), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("storage: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Cache-Control", CacheControl)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", cleanKey, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("storage: put %s: status %d: %s", cleanKey, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return publicURL(s.baseURL, cleanKey), nil
}
