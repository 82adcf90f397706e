package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedImage is returned when the artifact is not a decodable image.
var ErrUnsupportedImage = errors.New("ocr: unsupported image")

// Observer receives the status ("ok" or "error") and duration of each OCR run.
type Observer func(status string, d time.Duration)

// Tesseract recognizes text in screenshots with the tesseract CLI.
type Tesseract struct {
	runner  Runner
	bin     string
	lang    string
	psm     int
	tmpDir  string
	observe Observer
}

type Option func(*Tesseract)

func WithBinary(bin string) Option {
	return func(t *Tesseract) {
		if bin = strings.TrimSpace(bin); bin != "" {
			t.bin = bin
		}
	}
}

func WithLanguage(lang string) Option {
	return func(t *Tesseract) {
		if lang = strings.TrimSpace(lang); lang != "" {
			t.lang = lang
		}
	}
}

// WithPageSegMode sets --psm. Mode 6 treats the image as one uniform block of text.
func WithPageSegMode(psm int) Option {
	return func(t *Tesseract) {
		if psm > 0 {
			t.psm = psm
		}
	}
}

func WithTempDir(dir string) Option {
	return func(t *Tesseract) {
		t.tmpDir = dir
	}
}

func WithObserver(o Observer) Option {
	return func(t *Tesseract) {
		t.observe = o
	}
}

func NewTesseract(runner Runner, opts ...Option) (*Tesseract, error) {
	if runner == nil {
		return nil, errors.New("ocr: runner must not be nil")
	}
	t := &Tesseract{runner: runner, bin: "tesseract", lang: "eng", psm: 6}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Text converts the image to grayscale and returns the recognized text with
// LF line endings.
func (t *Tesseract) Text(ctx context.Context, data []byte) (text string, err error) {
	start := time.Now()
	defer func() {
		if t.observe == nil {
			return
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		t.observe(status, time.Since(start))
	}()

	gray, err := grayscale(data)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(t.tmpDir, "intake-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("ocr: create temp file: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if err := png.Encode(f, gray); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("ocr: write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("ocr: close temp image: %w", err)
	}

	// tesseract <file> stdout -l <lang> --psm <n>
	args := []string{path, "stdout", "-l", t.lang, "--psm", strconv.Itoa(t.psm)}
	out, errb, err := t.runner.Run(ctx, t.bin, args...)
	if err != nil {
		return "", fmt.Errorf("ocr: tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return strings.ReplaceAll(string(out), "\r\n", "\n"), nil
}

func grayscale(data []byte) (*image.Gray, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}
	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)
	return gray, nil
}
