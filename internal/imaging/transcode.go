package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Registered decoders for the formats source CDNs serve.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// OutputContentType is the single format every relocated image is stored in.
const (
	OutputContentType = "image/jpeg"
	OutputExtension   = ".jpg"
)

// Transcoder decodes any supported image, shrinks it so the longer side fits
// MaxDimension and re-encodes it as JPEG.
type Transcoder struct {
	MaxDimension int
	Quality      int
}

// Result is the encoded image and its final size.
type Result struct {
	Data   []byte
	Width  int
	Height int
}

// Transcode never upscales. A zero MaxDimension keeps the original size.
func (t Transcoder) Transcode(data []byte) (Result, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode: %w", err)
	}
	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), t.MaxDimension)

	// Flatten onto white so transparent PNG/WebP sources don't turn black.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	quality := t.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return Result{}, fmt.Errorf("encode: %w", err)
	}
	return Result{Data: buf.Bytes(), Width: w, Height: h}, nil
}

func fitWithin(w, h, max int) (int, int) {
	if max <= 0 || (w <= max && h <= max) {
		return w, h
	}
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}
