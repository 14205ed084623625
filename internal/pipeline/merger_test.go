package pipeline

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/dgallion1/docparse/internal/document"
	"github.com/dgallion1/docparse/internal/extract"
)

func partData(label string, localPages int) *extract.Result {
	res := &extract.Result{Markdown: "# " + label}
	for p := 0; p < localPages; p++ {
		res.Chunks = append(res.Chunks, document.Chunk{
			Type:      document.ChunkText,
			Text:      fmt.Sprintf("%s page %d", label, p),
			Grounding: []document.Grounding{{Page: p, Box: &document.Box{L: 0.1, T: 0.1, R: 0.9, B: 0.2}}},
		})
	}
	return res
}

func evenParts(pages, size int) []document.Part {
	var parts []document.Part
	for start := 1; start <= pages; start += size {
		end := start + size - 1
		if end > pages {
			end = pages
		}
		parts = append(parts, document.Part{Index: len(parts), StartPage: start, EndPage: end})
	}
	return parts
}

func TestAssembly_OrderIndependentMerge(t *testing.T) {
	parts := evenParts(9, 3)
	outcomes := make([]PartOutcome, len(parts))
	for i, p := range parts {
		outcomes[i] = PartOutcome{Part: p, Data: partData(fmt.Sprintf("part%d", i), p.Pages()), Attempts: 1}
	}

	arrivalOrders := [][]int{
		{0, 1, 2},
		{2, 1, 0},
		{1, 2, 0},
		{2, 0, 1},
	}

	var baseline *document.Result
	for _, order := range arrivalOrders {
		asm := newAssembly(pdfSource(9), parts)
		var done bool
		for _, idx := range order {
			done = asm.complete(outcomes[idx])
		}
		if !done {
			t.Fatalf("order %v: assembly not terminal after all parts", order)
		}
		res := asm.finalize()
		if baseline == nil {
			baseline = res
			continue
		}
		if !reflect.DeepEqual(res, baseline) {
			t.Errorf("order %v: merged result differs from baseline", order)
		}
	}

	if baseline.Status != document.StatusFull {
		t.Errorf("expected full status, got %s", baseline.Status)
	}
	if baseline.Markdown != "# part0\n\n# part1\n\n# part2" {
		t.Errorf("unexpected merged markdown: %q", baseline.Markdown)
	}
}

func TestAssembly_PageRenumbering(t *testing.T) {
	parts := evenParts(6, 3)
	asm := newAssembly(pdfSource(6), parts)
	asm.complete(PartOutcome{Part: parts[1], Data: partData("b", 3), Attempts: 1})
	asm.complete(PartOutcome{Part: parts[0], Data: partData("a", 3), Attempts: 1})
	res := asm.finalize()

	// Local page 0 of part 0 is document page 1; local page 0 of part 1
	// is document page 4.
	wantPages := []int{1, 2, 3, 4, 5, 6}
	if len(res.Chunks) != len(wantPages) {
		t.Fatalf("expected %d chunks, got %d", len(wantPages), len(res.Chunks))
	}
	for i, chunk := range res.Chunks {
		if chunk.Grounding[0].Page != wantPages[i] {
			t.Errorf("chunk %d: expected page %d, got %d", i, wantPages[i], chunk.Grounding[0].Page)
		}
	}

	// Monotonic non-decreasing across the whole document.
	last := 0
	for i, chunk := range res.Chunks {
		if chunk.Grounding[0].Page < last {
			t.Errorf("chunk %d: page %d goes backwards", i, chunk.Grounding[0].Page)
		}
		last = chunk.Grounding[0].Page
	}
}

func TestAssembly_FailedPartBecomesGap(t *testing.T) {
	// Document with 10 pages, split size 5: part 2 fails permanently.
	parts := evenParts(10, 5)
	asm := newAssembly(pdfSource(10), parts)
	asm.complete(PartOutcome{Part: parts[0], Data: partData("ok", 5), Attempts: 1})
	asm.complete(PartOutcome{
		Part:     parts[1],
		Attempts: 1,
		Err:      &extract.RemoteError{Kind: extract.KindBadRequest, StatusCode: 400, Message: "malformed pages"},
	})
	res := asm.finalize()

	if res.Status != document.StatusPartial {
		t.Fatalf("expected partial status, got %s", res.Status)
	}
	if len(res.Gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(res.Gaps))
	}
	gap := res.Gaps[0]
	if gap.StartPage != 6 || gap.EndPage != 10 {
		t.Errorf("expected gap 6-10, got %d-%d", gap.StartPage, gap.EndPage)
	}
	if gap.Reason != "BadRequest" {
		t.Errorf("expected reason BadRequest, got %s", gap.Reason)
	}

	// Pages 1-5 have content, 6-10 have one error chunk each.
	errorChunks := 0
	for _, c := range res.Chunks {
		if c.Type == document.ChunkError {
			errorChunks++
			page := c.Grounding[0].Page
			if page < 6 || page > 10 {
				t.Errorf("error chunk on unexpected page %d", page)
			}
		}
	}
	if errorChunks != 5 {
		t.Errorf("expected 5 error chunks, got %d", errorChunks)
	}
}

func TestAssembly_AllPartsFailed(t *testing.T) {
	parts := evenParts(4, 2)
	asm := newAssembly(pdfSource(4), parts)
	for _, p := range parts {
		asm.complete(PartOutcome{Part: p, Attempts: 3, Err: &extract.RemoteError{Kind: extract.KindServerError, StatusCode: 500}})
	}
	res := asm.finalize()

	if res.Status != document.StatusFailed {
		t.Errorf("expected failed status, got %s", res.Status)
	}
	if res.Markdown != "" {
		t.Errorf("expected empty markdown, got %q", res.Markdown)
	}
	if res.Attempts != 6 {
		t.Errorf("expected 6 total attempts, got %d", res.Attempts)
	}
}

func TestAssembly_MissingSlotIsNotAttempted(t *testing.T) {
	parts := evenParts(4, 2)
	asm := newAssembly(pdfSource(4), parts)
	asm.complete(PartOutcome{Part: parts[0], Data: partData("a", 2), Attempts: 1})
	// Part 1 never completed (admission stopped).
	res := asm.finalize()

	if res.Status != document.StatusPartial {
		t.Fatalf("expected partial status, got %s", res.Status)
	}
	if len(res.Gaps) != 1 || res.Gaps[0].Reason != "NotAttempted" {
		t.Errorf("expected NotAttempted gap, got %+v", res.Gaps)
	}
}

func TestAssembly_DuplicateCompletionIgnored(t *testing.T) {
	parts := evenParts(2, 2)
	asm := newAssembly(pdfSource(2), parts)
	if !asm.complete(PartOutcome{Part: parts[0], Data: partData("a", 2), Attempts: 1}) {
		t.Fatal("single-part document should be terminal after one completion")
	}
	asm.complete(PartOutcome{Part: parts[0], Attempts: 9, Err: &extract.RemoteError{Kind: extract.KindServerError}})
	res := asm.finalize()

	if res.Status != document.StatusFull {
		t.Errorf("duplicate completion must not overwrite the slot, got %s", res.Status)
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
}
