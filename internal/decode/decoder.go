// Package decode turns artifact handles into extractor input.
package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"analytics-intake/internal/domain"
	"analytics-intake/internal/submission"
	"analytics-intake/internal/tabular"
)

// Fetcher downloads artifact bytes. *fetch.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Recognizer extracts text from an image. *ocr.Tesseract satisfies it.
type Recognizer interface {
	Text(ctx context.Context, image []byte) (string, error)
}

type Decoder struct {
	fetcher    Fetcher
	recognizer Recognizer
}

var _ submission.Decoder = (*Decoder)(nil)

func New(fetcher Fetcher, recognizer Recognizer) (*Decoder, error) {
	if fetcher == nil {
		return nil, errors.New("decode: fetcher must not be nil")
	}
	if recognizer == nil {
		return nil, errors.New("decode: recognizer must not be nil")
	}
	return &Decoder{fetcher: fetcher, recognizer: recognizer}, nil
}

// Text downloads a screenshot and returns its OCR text.
func (d *Decoder) Text(ctx context.Context, a domain.Artifact) (string, error) {
	data, err := d.fetcher.Get(ctx, a.URL)
	if err != nil {
		return "", err
	}
	text, err := d.recognizer.Text(ctx, data)
	if err != nil {
		return "", fmt.Errorf("decode: ocr %s: %w", a.Filename, err)
	}
	return text, nil
}

// Rows downloads a CSV export and parses it into header-keyed rows.
func (d *Decoder) Rows(ctx context.Context, a domain.Artifact) ([]map[string]string, error) {
	data, err := d.fetcher.Get(ctx, a.URL)
	if err != nil {
		return nil, err
	}
	return tabular.Parse(bytes.NewReader(data))
}
