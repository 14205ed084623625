package splitter

import (
	"github.com/dgallion1/docparse/internal/document"
)

// Config controls splitting behavior.
type Config struct {
	MaxPages int // Maximum pages per part (the remote call's page limit).
}

// DefaultConfig returns the endpoint's default page limit.
func DefaultConfig() Config {
	return Config{MaxPages: 10}
}

// clamp applies the same bounds the configuration layer enforces, so a
// zero-value or out-of-range config never produces invalid parts.
func (c Config) clamp() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
	if c.MaxPages > 100 {
		c.MaxPages = 100
	}
	return c
}

// Split produces the ordered parts covering all pages of src. Every part
// except possibly the last holds exactly MaxPages pages, so identical input
// always yields identical boundaries.
func Split(src *document.Source, cfg Config) ([]document.Part, error) {
	if src == nil || len(src.Data) == 0 {
		return nil, &document.InvalidDocumentError{Name: name(src), Reason: "empty content"}
	}
	if src.PageCount <= 0 {
		return nil, &document.InvalidDocumentError{Name: src.Name, Reason: "zero pages"}
	}

	cfg = cfg.clamp()
	parts := make([]document.Part, 0, (src.PageCount+cfg.MaxPages-1)/cfg.MaxPages)
	for start := 1; start <= src.PageCount; start += cfg.MaxPages {
		end := start + cfg.MaxPages - 1
		if end > src.PageCount {
			end = src.PageCount
		}
		parts = append(parts, document.Part{
			Index:     len(parts),
			StartPage: start,
			EndPage:   end,
		})
	}
	return parts, nil
}

func name(src *document.Source) string {
	if src == nil {
		return ""
	}
	return src.Name
}
