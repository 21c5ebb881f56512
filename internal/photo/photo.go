// Package photo decodes check-in selfies, normalizes them to a small square PNG and stores them on disk
package photo

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	stddraw "image/draw"
	_ "image/jpeg"
	"image/png"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	// MaxBytes is the largest accepted decoded selfie
	MaxBytes = 5 << 20
	// Size is the edge of the stored square image
	Size = 256
	// MaxPixels caps the declared width × height before anything is decoded
	MaxPixels = 24_000_000
)

var allowedMimes = []string{"image/png", "image/jpeg", "image/webp"}

// ErrInvalidPhoto is returned for anything that is not a usable image
var ErrInvalidPhoto = errors.New("invalid photo")

// Store writes normalized selfies under Dir
type Store struct {
	Dir string
}

// NewStore creates the directory if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Pending is a normalized selfie that has not been written yet
type Pending struct {
	Name string
	Data []byte
}

// Prepare decodes and normalizes a data URL without touching the disk
func (s *Store) Prepare(dataURL string) (*Pending, error) {
	raw, _, err := ParseDataURL(dataURL, MaxBytes)
	if err != nil {
		return nil, err
	}
	normalized, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	return &Pending{Name: FileName(normalized), Data: normalized}, nil
}

// Commit writes a prepared selfie; created is false when the same image was already stored
func (s *Store) Commit(p *Pending) (created bool, err error) {
	path := filepath.Join(s.Dir, p.Name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to save photo: %w", err)
	}
	if _, err := f.Write(p.Data); err != nil {
		f.Close()
		os.Remove(path)
		return false, fmt.Errorf("failed to save photo: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return false, fmt.Errorf("failed to save photo: %w", err)
	}
	log.Printf("📸 Stored selfie %s (%d bytes)", p.Name, len(p.Data))
	return true, nil
}

// Remove deletes a stored selfie
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove photo: %w", err)
	}
	log.Printf("🗑️ Removed selfie %s", name)
	return nil
}

// Path returns the on-disk location of a stored file name
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: bad file name %q", ErrInvalidPhoto, name)
	}
	return filepath.Join(s.Dir, name), nil
}

// FileName derives the content-addressed name of an encoded image
func FileName(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + ".png"
}

// ParseDataURL decodes a base64 image data URL and checks its declared type against its content
func ParseDataURL(value string, maxBytes int) ([]byte, string, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return nil, "", fmt.Errorf("%w: selfie is required", ErrInvalidPhoto)
	}
	if !strings.HasPrefix(raw, "data:") {
		return nil, "", fmt.Errorf("%w: invalid data url prefix", ErrInvalidPhoto)
	}
	comma := strings.Index(raw, ",")
	if comma <= 5 {
		return nil, "", fmt.Errorf("%w: invalid data url payload", ErrInvalidPhoto)
	}
	meta := raw[5:comma]
	if !strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return nil, "", fmt.Errorf("%w: data url must be base64", ErrInvalidPhoto)
	}
	mime := strings.TrimSpace(meta[:len(meta)-len(";base64")])
	if !allowed(mime) {
		return nil, "", fmt.Errorf("%w: unsupported type %q", ErrInvalidPhoto, mime)
	}

	decoded, err := base64.StdEncoding.DecodeString(raw[comma+1:])
	if err != nil {
		return nil, "", fmt.Errorf("%w: unable to decode data url", ErrInvalidPhoto)
	}
	if len(decoded) == 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrInvalidPhoto)
	}
	if maxBytes > 0 && len(decoded) > maxBytes {
		return nil, "", fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidPhoto, maxBytes)
	}
	detected := http.DetectContentType(decoded)
	if !strings.EqualFold(detected, mime) {
		return nil, "", fmt.Errorf("%w: declared %s but content is %s", ErrInvalidPhoto, mime, detected)
	}
	return decoded, detected, nil
}

// Normalize centre-crops the image to a square, scales it to Size and encodes it as PNG
func Normalize(raw []byte) ([]byte, error) {
	if !allowed(http.DetectContentType(raw)) {
		return nil, fmt.Errorf("%w: photo must be png, jpeg, or webp", ErrInvalidPhoto)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		if cfg, err = webp.DecodeConfig(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("%w: unable to decode photo", ErrInvalidPhoto)
		}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: image is %dx%d", ErrInvalidPhoto, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		decoded, webpErr := webp.Decode(bytes.NewReader(raw))
		if webpErr != nil {
			return nil, fmt.Errorf("%w: unable to decode photo", ErrInvalidPhoto)
		}
		img = decoded
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid image dimensions", ErrInvalidPhoto)
	}

	side := min(width, height)
	cropRect := image.Rect(0, 0, side, side)
	cropped := image.NewRGBA(cropRect)
	origin := image.Point{X: bounds.Min.X + (width-side)/2, Y: bounds.Min.Y + (height-side)/2}
	stddraw.Draw(cropped, cropRect, img, origin, stddraw.Src)

	resized := image.NewRGBA(image.Rect(0, 0, Size, Size))
	xdraw.CatmullRom.Scale(resized, resized.Bounds(), cropped, cropped.Bounds(), xdraw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, resized); err != nil {
		return nil, fmt.Errorf("failed to encode photo: %w", err)
	}
	return out.Bytes(), nil
}

func allowed(mime string) bool {
	for _, m := range allowedMimes {
		if strings.EqualFold(m, strings.TrimSpace(mime)) {
			return true
		}
	}
	return false
}
