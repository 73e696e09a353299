// Package imaging moves product images from source CDNs into the object
// store as resized JPEGs.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lureingest/internal/domain"
	"lureingest/internal/retry"
)

const maxImageBytes = 15 << 20

// Options configures a Relocator.
type Options struct {
	UserAgent    string
	MaxDimension int
	Quality      int
	// Referers maps a source id to the Referer header its CDN expects.
	Referers map[string]string
	Retry    retry.Policy
	Client   *http.Client
}

// Relocator fetches, transcodes and uploads images. It holds no per-image
// state, so the same key always overwrites the same object.
type Relocator struct {
	store      domain.ObjectStore
	client     *http.Client
	userAgent  string
	referers   map[string]string
	transcoder Transcoder
	policy     retry.Policy
	logger     zerolog.Logger
}

func NewRelocator(store domain.ObjectStore, opts Options, logger zerolog.Logger) *Relocator {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "lureingest/1.0 (+catalog image relocation)"
	}
	referers := make(map[string]string, len(opts.Referers))
	for k, v := range opts.Referers {
		referers[k] = v
	}
	policy := opts.Retry
	if policy.Retryable == nil {
		policy.Retryable = retryableDownload
	}
	return &Relocator{
		store:      store,
		client:     client,
		userAgent:  ua,
		referers:   referers,
		transcoder: Transcoder{MaxDimension: opts.MaxDimension, Quality: opts.Quality},
		policy:     policy,
		logger:     logger,
	}
}

var unsafeSegment = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// KeyFor derives the destination key of a product image. index is the color
// position or "main".
func KeyFor(source, slug, index string) string {
	return path.Join("products", cleanSegment(source), cleanSegment(slug), cleanSegment(index))
}

func cleanSegment(s string) string {
	s = unsafeSegment.ReplaceAllString(strings.TrimSpace(s), "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "_"
	}
	return s
}

// Relocate copies remoteURL to key and returns the public URL. Errors are
// always *domain.ImageError.
func (r *Relocator) Relocate(ctx context.Context, source, remoteURL, key string) (string, error) {
	if !strings.HasSuffix(key, OutputExtension) {
		key += OutputExtension
	}
	raw, err := r.download(ctx, source, remoteURL)
	if err != nil {
		return "", &domain.ImageError{URL: remoteURL, Key: key, Stage: domain.ImageStageDownload, Err: err}
	}
	out, err := r.transcoder.Transcode(raw)
	if err != nil {
		return "", &domain.ImageError{URL: remoteURL, Key: key, Stage: domain.ImageStageDecode, Err: err}
	}
	publicURL, err := r.store.Put(ctx, key, out.Data, OutputContentType)
	if err != nil {
		return "", &domain.ImageError{URL: remoteURL, Key: key, Stage: domain.ImageStageUpload, Err: err}
	}
	r.logger.Debug().
		Str("source", source).
		Str("key", key).
		Int("width", out.Width).
		Int("height", out.Height).
		Int("bytes", len(out.Data)).
		Msg("imaging: relocated")
	return publicURL, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("http status %d", e.code) }

func retryableDownload(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return !errors.Is(err, context.Canceled)
}

func (r *Relocator) download(ctx context.Context, source, remoteURL string) ([]byte, error) {
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return nil, retry.Permanent(errors.New("empty image url"))
	}
	var body []byte
	err := retry.Do(ctx, r.policy, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("User-Agent", r.userAgent)
		req.Header.Set("Accept", "image/avif,image/webp,image/png,image/jpeg,*/*;q=0.8")
		if ref := r.referers[source]; ref != "" {
			req.Header.Set("Referer", ref)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &statusError{code: resp.StatusCode}
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
		if err != nil {
			return err
		}
		if len(b) > maxImageBytes {
			return retry.Permanent(fmt.Errorf("image exceeds %d bytes", maxImageBytes))
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
