package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"loganalyzer/internal/domain"
)

var (
	// ErrNotFound is returned when the file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidEncoding is returned when the file is not valid UTF-8 text.
	ErrInvalidEncoding = errors.New("file is not valid UTF-8")
)

// Loader reads whole files as UTF-8 text.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the file at path. A missing file yields an error matching
// ErrNotFound; every other failure wraps the underlying cause.
func (l *Loader) Load(path string) (domain.TextDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.TextDocument{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return domain.TextDocument{}, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return domain.TextDocument{}, fmt.Errorf("read %s: %w", path, ErrInvalidEncoding)
	}
	return domain.TextDocument{Path: path, Content: string(data)}, nil
}
