package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgallion1/docparse/internal/document"
	"github.com/dgallion1/docparse/internal/extract"
)

// assembly buffers part outcomes for one document until every part is
// terminal, then concatenates them in part-index order. One slot is
// preallocated per part, so out-of-order arrival needs no sorting and fast
// parts never wait on slow ones.
type assembly struct {
	mu        sync.Mutex
	src       *document.Source
	parts     []document.Part
	slots     []*PartOutcome
	remaining int
}

func newAssembly(src *document.Source, parts []document.Part) *assembly {
	return &assembly{
		src:       src,
		parts:     parts,
		slots:     make([]*PartOutcome, len(parts)),
		remaining: len(parts),
	}
}

// complete writes an outcome into its slot and reports whether the document
// is now fully terminal. Each part completes exactly once.
func (a *assembly) complete(out PartOutcome) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.slots[out.Part.Index] != nil {
		return a.remaining == 0
	}
	a.slots[out.Part.Index] = &out
	a.remaining--
	return a.remaining == 0
}

// finalize builds the document result. Chunk groundings are translated
// from part-local to document-global pages; terminally failed parts become
// gap markers plus one error chunk per missing page.
func (a *assembly) finalize() *document.Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := &document.Result{
		Name:      a.src.Name,
		DocType:   string(a.src.Kind),
		StartPage: 1,
		EndPage:   a.src.PageCount,
	}

	var mdParts []string
	succeeded := 0
	for i, out := range a.slots {
		part := a.parts[i]
		if out == nil {
			out = &PartOutcome{Part: part, Err: errNotAttempted}
		}
		res.Attempts += out.Attempts

		if !out.Succeeded() {
			reason := failReason(out.Err)
			res.Gaps = append(res.Gaps, document.Gap{
				StartPage: part.StartPage,
				EndPage:   part.EndPage,
				Reason:    reason,
			})
			res.Errors = append(res.Errors, fmt.Sprintf("pages %d-%d: %s", part.StartPage, part.EndPage, errText(out.Err)))
			for page := part.StartPage; page <= part.EndPage; page++ {
				res.Chunks = append(res.Chunks, document.Chunk{
					Type:      document.ChunkError,
					Text:      errText(out.Err),
					Grounding: []document.Grounding{{Page: page}},
				})
			}
			continue
		}

		succeeded++
		if out.Data.Markdown != "" {
			mdParts = append(mdParts, out.Data.Markdown)
		}
		for _, chunk := range out.Data.Chunks {
			shifted := chunk
			shifted.Grounding = make([]document.Grounding, len(chunk.Grounding))
			for gi, g := range chunk.Grounding {
				g.Page += part.StartPage
				shifted.Grounding[gi] = g
			}
			res.Chunks = append(res.Chunks, shifted)
		}
	}

	res.Markdown = strings.Join(mdParts, "\n\n")
	switch {
	case succeeded == len(a.parts):
		res.Status = document.StatusFull
	case succeeded > 0:
		res.Status = document.StatusPartial
	default:
		res.Status = document.StatusFailed
	}
	return res
}

func failReason(err error) string {
	if errors.Is(err, errNotAttempted) {
		return "NotAttempted"
	}
	return extract.KindOf(err)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
