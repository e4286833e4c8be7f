package fonts

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pboffice01/PDFGeneral/ir/semantic"
	"github.com/pboffice01/PDFGeneral/pdferr"
)

// DefaultBaseFont is used when no font file is configured.
const DefaultBaseFont = "Helvetica"

type entry struct {
	once sync.Once
	font *semantic.Font
	err  error
}

// Registry loads each font file at most once and shares the result. Loaded
// fonts are read-only; callers must not mutate them.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	read    func(string) ([]byte, error)
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry), read: os.ReadFile}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide font for path, loading it on first use.
// An empty path selects the standard Helvetica font.
func Default(path string) (*semantic.Font, error) {
	return defaultRegistry.Load(path)
}

// Load returns the font at path. Failures are cached as well, so a broken
// path reports the same FontUnavailable error on every call.
func (r *Registry) Load(path string) (*semantic.Font, error) {
	if path == "" {
		return Standard(DefaultBaseFont), nil
	}
	r.mu.Lock()
	e, ok := r.entries[path]
	if !ok {
		e = &entry{}
		r.entries[path] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		data, err := r.read(path)
		if err != nil {
			e.err = pdferr.Wrap(pdferr.FontUnavailable, err, "read font %s", path)
			return
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		font, err := LoadTrueType(name, data)
		if err != nil {
			e.err = pdferr.Wrap(pdferr.FontUnavailable, err, "load font %s", path)
			return
		}
		e.font = font
	})
	return e.font, e.err
}
