package blob

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	maxImageEdge   = 1600
	thumbnailWidth = 300
)

var (
	unsafeChars = regexp.MustCompile(`[^a-z0-9_\-]`)
	simpleExt   = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)
)

// SafeFilename lowercases the name, replaces spaces and drops anything that
// is not a letter, digit, dash or underscore. The extension is kept.
func SafeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(name))
	if !simpleExt.MatchString(ext) {
		ext = ""
	}
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	base = strings.ReplaceAll(base, " ", "_")
	base = unsafeChars.ReplaceAllString(base, "")
	if base == "" {
		base = "file"
	}
	return base + ext
}

// ContentType sniffs data
func ContentType(data []byte) string {
	return http.DetectContentType(data)
}

// Processed holds a re-encoded image and its thumbnail, both JPEG.
type Processed struct {
	Image     []byte
	Thumbnail []byte
	Width     int
	Height    int
}

// ProcessImage decodes an upload, applies EXIF orientation, bounds it to
// 1600px on the long edge and renders a 300px wide thumbnail.
func ProcessImage(data []byte) (*Processed, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > maxImageEdge || b.Dy() > maxImageEdge {
		img = imaging.Fit(img, maxImageEdge, maxImageEdge, imaging.Lanczos)
	}

	var full bytes.Buffer
	if err := imaging.Encode(&full, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	var tb bytes.Buffer
	if err := imaging.Encode(&tb, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	return &Processed{
		Image:     full.Bytes(),
		Thumbnail: tb.Bytes(),
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
	}, nil
}

// ThumbnailPath maps an image path to its thumbnail path.
func ThumbnailPath(p string) string {
	dir, file := filepath.Split(p)
	return dir + "thumb/" + strings.TrimSuffix(file, filepath.Ext(file)) + ".jpg"
}
