package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxPageBytes = 8 << 20

// DefaultUserAgent identifies the crawler to source sites.
const DefaultUserAgent = "lureingest/1.0 (+product catalog ingestion)"

// Fetcher performs the page reads adapters are allowed to do.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	Referer   string
}

func NewFetcher(client *http.Client, userAgent, referer string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{Client: client, UserAgent: userAgent, Referer: strings.TrimSpace(referer)}
}

// Get returns the body of rawURL. Non-2xx responses are errors.
func (f *Fetcher) Get(ctx context.Context, rawURL string, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if f.Referer != "" {
		req.Header.Set("Referer", f.Referer)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: http status %d", rawURL, resp.StatusCode)
	}
	return body, nil
}

// Document fetches rawURL and parses it as HTML.
func (f *Fetcher) Document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := f.Get(ctx, rawURL, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", rawURL, err)
	}
	return doc, nil
}

// Clean collapses runs of whitespace and trims the result.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HTMLText returns the visible text of an HTML fragment.
func HTMLText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return Clean(fragment)
	}
	return Clean(doc.Text())
}

// SlugFromURL derives a stable slug from the last path segment of rawURL,
// dropping a file extension.
func SlugFromURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("slug: %w", err)
	}
	p := strings.TrimRight(u.Path, "/")
	seg := path.Base(p)
	if seg == "." || seg == "/" || seg == "" {
		return "", fmt.Errorf("slug: no path segment in %q", rawURL)
	}
	if ext := path.Ext(seg); ext != "" && len(ext) <= 5 {
		seg = strings.TrimSuffix(seg, ext)
	}
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	seg = strings.ToLower(strings.TrimSpace(seg))
	if seg == "" {
		return "", fmt.Errorf("slug: empty segment in %q", rawURL)
	}
	return seg, nil
}

// Resolve makes ref absolute against base. Protocol-relative references get
// https.
func Resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// Meta returns the content of the first <meta> matching property or name.
func Meta(doc *goquery.Document, key string) string {
	if v, ok := doc.Find(fmt.Sprintf("meta[property='%s']", key)).First().Attr("content"); ok {
		return Clean(v)
	}
	if v, ok := doc.Find(fmt.Sprintf("meta[name='%s']", key)).First().Attr("content"); ok {
		return Clean(v)
	}
	return ""
}

// Canonical returns the canonical link of doc, or fallback.
func Canonical(doc *goquery.Document, fallback string) string {
	if href, ok := doc.Find("link[rel='canonical']").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return Resolve(fallback, href)
	}
	return fallback
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
