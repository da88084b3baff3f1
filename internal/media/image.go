// Package media validates uploaded recipe images, derives their blurhash
// placeholder and stores them on the local filesystem or in S3.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"path/filepath"
	"strings"

	"github.com/bbrks/go-blurhash"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// RecipeImageDir is the key prefix every recipe image is stored under.
const RecipeImageDir = "uploads/recipe"

// blurHashSize caps the thumbnail fed to the blurhash encoder.
const blurHashSize = 64

// ErrNotImage is returned when the payload is not a decodable JPEG, PNG, GIF or WebP.
var ErrNotImage = errors.New("media: not a supported image")

// Info describes a payload that decoded successfully.
type Info struct {
	Format      string // "jpeg", "png", "gif" or "webp"
	ContentType string
	Width       int
	Height      int
}

var contentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Inspect checks that data is an image in one of the supported formats.
// Only the header is parsed; BlurHash does the full decode.
func Inspect(data []byte) (*Info, error) {
	if len(data) == 0 {
		return nil, ErrNotImage
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	ct, ok := contentTypes[format]
	if !ok || cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrNotImage
	}

	return &Info{Format: format, ContentType: ct, Width: cfg.Width, Height: cfg.Height}, nil
}

// extensions lists the file extensions accepted for each detected format.
// The first one is used when the uploaded name does not match.
var extensions = map[string][]string{
	"jpeg": {".jpg", ".jpeg"},
	"png":  {".png"},
	"gif":  {".gif"},
	"webp": {".webp"},
}

// RecipeImageKey names a new stored image: uploads/recipe/<uuid><ext>.
// The uploaded file name's extension is kept only when it agrees with the
// detected format. Anything else (".html", ".svg", none) gets the format's
// own extension, so the file server never sees a non-image type.
func RecipeImageKey(filename, format string) string {
	allowed, ok := extensions[format]
	if !ok {
		allowed = []string{"." + format}
	}

	ext := allowed[0]
	given := strings.ToLower(filepath.Ext(filename))
	for _, e := range allowed {
		if given == e {
			ext = e
			break
		}
	}
	return RecipeImageDir + "/" + uuid.NewString() + ext
}

// BlurHash decodes data and returns its 4x3 component blurhash.
func BlurHash(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("media: decode image: %w", err)
	}

	hash, err := blurhash.Encode(4, 3, thumbnail(img))
	if err != nil {
		return "", fmt.Errorf("media: encode blurhash: %w", err)
	}
	return hash, nil
}

// thumbnail scales img down with nearest-neighbour sampling so its longer
// side is at most blurHashSize. Smaller images are returned as is.
func thumbnail(img image.Image) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= blurHashSize && srcH <= blurHashSize {
		return img
	}

	dstW, dstH := blurHashSize, blurHashSize
	if srcW > srcH {
		dstH = max(1, srcH*blurHashSize/srcW)
	} else {
		dstW = max(1, srcW*blurHashSize/srcH)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	for y := 0; y < dstH; y++ {
		for x := 0; x < dstW; x++ {
			srcX := x * srcW / dstW
			srcY := y * srcH / dstH
			dst.Set(x, y, img.At(bounds.Min.X+srcX, bounds.Min.Y+srcY))
		}
	}
	return dst
}
