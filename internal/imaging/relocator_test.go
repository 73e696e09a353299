package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lureingest/internal/adapter/memstore"
	"lureingest/internal/domain"
	"lureingest/internal/retry"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestTranscodeShrinksLongerSide(t *testing.T) {
	out, err := Transcoder{MaxDimension: 100, Quality: 80}.Transcode(pngBytes(t, 400, 200))
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if out.Width != 100 || out.Height != 50 {
		t.Fatalf("size = %dx%d, want 100x50", out.Width, out.Height)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("output is not jpeg: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("jpeg size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestTranscodeNeverUpscales(t *testing.T) {
	out, err := Transcoder{MaxDimension: 800}.Transcode(pngBytes(t, 60, 90))
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if out.Width != 60 || out.Height != 90 {
		t.Fatalf("size = %dx%d, want original 60x90", out.Width, out.Height)
	}
}

func TestTranscodeRejectsGarbage(t *testing.T) {
	if _, err := (Transcoder{}).Transcode([]byte("not an image")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestKeyForSanitizesSegments(t *testing.T) {
	got := KeyFor("mega bass", "vision/110+", "0")
	if got != "products/mega-bass/vision-110/0" {
		t.Fatalf("KeyFor = %q", got)
	}
}

func TestRelocateUploadsWithRefererAndUserAgent(t *testing.T) {
	img := pngBytes(t, 1200, 600)
	var gotUA, gotRef string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotRef = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	objects := memstore.NewObjects("https://cdn.test")
	r := NewRelocator(objects, Options{
		UserAgent:    "lureingest-test",
		MaxDimension: 800,
		Referers:     map[string]string{"megabass": "https://www.megabass.co.jp/"},
	}, zerolog.Nop())

	u, err := r.Relocate(context.Background(), "megabass", srv.URL+"/a.png", KeyFor("megabass", "vision", "0"))
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if u != "https://cdn.test/products/megabass/vision/0.jpg" {
		t.Fatalf("url = %q", u)
	}
	if gotUA != "lureingest-test" || gotRef != "https://www.megabass.co.jp/" {
		t.Fatalf("headers ua=%q ref=%q", gotUA, gotRef)
	}
	obj, ok := objects.Get("products/megabass/vision/0.jpg")
	if !ok || obj.ContentType != OutputContentType {
		t.Fatalf("object missing or wrong type: %#v", obj.ContentType)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(obj.Data))
	if err != nil || cfg.Width != 800 || cfg.Height != 400 {
		t.Fatalf("stored image %dx%d err=%v", cfg.Width, cfg.Height, err)
	}
}

func TestRelocateRetriesRateLimitedDownloads(t *testing.T) {
	img := pngBytes(t, 10, 10)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	r := NewRelocator(memstore.NewObjects(""), Options{
		Retry: retry.Policy{MaxAttempts: 2, Delay: time.Millisecond},
	}, zerolog.Nop())
	if _, err := r.Relocate(context.Background(), "s", srv.URL, "k"); err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRelocateReportsStage(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>blocked</html>"))
	}))
	defer garbage.Close()
	small := pngBytes(t, 4, 4)
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(small)
	}))
	defer good.Close()

	objects := memstore.NewObjects("")
	objects.PutErr = func(string) error { return errors.New("bucket gone") }
	r := NewRelocator(objects, Options{Retry: retry.Policy{MaxAttempts: 3, Delay: time.Millisecond}}, zerolog.Nop())

	cases := []struct {
		url   string
		stage domain.ImageStage
	}{
		{notFound.URL, domain.ImageStageDownload},
		{garbage.URL, domain.ImageStageDecode},
		{good.URL, domain.ImageStageUpload},
	}
	for _, tc := range cases {
		_, err := r.Relocate(context.Background(), "s", tc.url, "k")
		var ie *domain.ImageError
		if !errors.As(err, &ie) {
			t.Fatalf("%s: err = %v, want ImageError", tc.stage, err)
		}
		if ie.Stage != tc.stage {
			t.Fatalf("stage = %s, want %s", ie.Stage, tc.stage)
		}
	}
}
