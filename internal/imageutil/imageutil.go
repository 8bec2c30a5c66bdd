// Package imageutil validates, resizes and re-encodes campaign images.
package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decode support
)

// Bounds is a bounding box in pixels.
type Bounds struct {
	Width  int
	Height int
}

var (
	LogoBounds   = Bounds{Width: 300, Height: 100}
	HeroBounds   = Bounds{Width: 600, Height: 400}
	VisionBounds = Bounds{Width: 512, Height: 512}
)

const (
	// TargetSize is the size optimized images aim to stay under.
	TargetSize    = 150 * 1024
	visionQuality = 85
)

// qualitySteps are tried in order until the encoded image fits TargetSize.
var qualitySteps = []int{85, 75, 65, 55}

// AllowedUploadTypes maps accepted upload content types to their file extensions.
var AllowedUploadTypes = map[string][]string{
	"image/png":  {".png"},
	"image/jpeg": {".jpg", ".jpeg"},
	"image/gif":  {".gif"},
}

var ErrUnsupportedType = errors.New("unsupported image type")

// DetectContentType sniffs the image format from magic bytes.
func DetectContentType(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}):
		return "image/png"
	case len(data) >= 6 && (string(data[:6]) == "GIF87a" || string(data[:6]) == "GIF89a"):
		return "image/gif"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	}
	return "application/octet-stream"
}

// ValidateUpload checks size, extension and sniffed content type of an uploaded image
// and returns the detected content type.
func ValidateUpload(filename string, data []byte, maxSize int64) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%s is empty", filename)
	}
	if int64(len(data)) > maxSize {
		return "", fmt.Errorf("%s exceeds the maximum size of %d bytes", filename, maxSize)
	}

	contentType := DetectContentType(data)
	exts, ok := AllowedUploadTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s must be PNG, JPEG or GIF", ErrUnsupportedType, filename)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range exts {
		if ext == allowed {
			return contentType, nil
		}
	}
	return "", fmt.Errorf("%w: extension %q does not match %s content", ErrUnsupportedType, ext, contentType)
}

// FitWithin returns the largest size no bigger than b that keeps the w:h aspect ratio.
// Images already inside the box keep their size.
func FitWithin(w, h int, b Bounds) (int, int) {
	if w <= b.Width && h <= b.Height {
		return w, h
	}
	scale := float64(b.Width) / float64(w)
	if hs := float64(b.Height) / float64(h); hs < scale {
		scale = hs
	}
	nw, nh := int(math.Round(float64(w)*scale)), int(math.Round(float64(h)*scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// Optimize scales data into b and re-encodes it as JPEG, lowering quality until the
// result fits TargetSize or the quality steps run out. The output is always image/jpeg.
func Optimize(data []byte, b Bounds) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	scaled := scale(img, b)

	var out []byte
	for _, q := range qualitySteps {
		out, err = encodeJPEG(scaled, q)
		if err != nil {
			return nil, err
		}
		if len(out) <= TargetSize {
			break
		}
	}
	return out, nil
}

// PrepareForVision downsizes an image for the vision model.
func PrepareForVision(data []byte) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(scale(img, VisionBounds), visionQuality)
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// scale draws img onto an opaque white canvas of the fitted size so transparent
// PNG/GIF areas do not turn black in JPEG.
func scale(img image.Image, b Bounds) image.Image {
	src := img.Bounds()
	w, h := FitWithin(src.Dx(), src.Dy(), b)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
