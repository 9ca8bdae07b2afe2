package extract

import (
	"fmt"
	"io"
	"os"
)

// headerSize is how many bytes of a file each extractor gets to judge
// the format. Enough for OFX headers, QIF type lines, and CSV column
// rows.
const headerSize = 512

// Registry holds the registered extractors in priority order.
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates an empty registry. Callers register the built-in
// extractors; keeping registration at the call site avoids an import
// cycle between this package and the format subpackages.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// Register appends an extractor.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Find returns the first extractor whose CanExtract accepts the file.
func (r *Registry) Find(path string) (Extractor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, headerSize)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	// short files are fine; extractors see whatever was read
	header = header[:n]

	for _, e := range r.extractors {
		if e.CanExtract(path, header) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no extractor found for file: %s", path)
}

// ByName returns the extractor with the given identifier.
func (r *Registry) ByName(name string) (Extractor, error) {
	for _, e := range r.extractors {
		if e.Name() == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no extractor named %q", name)
}

// Names lists the registered extractor identifiers.
func (r *Registry) Names() []string {
	names := make([]string, len(r.extractors))
	for i, e := range r.extractors {
		names[i] = e.Name()
	}
	return names
}
