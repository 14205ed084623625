package document

// SourceKind identifies the content format of an input document.
type SourceKind string

const (
	KindPDF   SourceKind = "pdf"
	KindImage SourceKind = "image"
)

// Source is one input document ready for parsing: raw bytes plus the
// metadata the splitter and extraction client need. Sources are read-only
// once built.
type Source struct {
	Name      string     // Caller-supplied or derived identifier.
	Data      []byte     // Raw file content.
	Kind      SourceKind // pdf or image.
	MIMEType  string
	PageCount int // Total pages; always 1 for images.
}

// Part is a contiguous page range of a Source, sized to fit one remote
// extraction call. Pages are 1-based and inclusive on both ends.
type Part struct {
	Index     int `json:"index"`
	StartPage int `json:"start_page"`
	EndPage   int `json:"end_page"`
}

// Pages returns the number of pages the part covers.
func (p Part) Pages() int {
	return p.EndPage - p.StartPage + 1
}

// ChunkType classifies an extracted element.
type ChunkType string

const (
	ChunkText       ChunkType = "text"
	ChunkTable      ChunkType = "table"
	ChunkFigure     ChunkType = "figure"
	ChunkMarginalia ChunkType = "marginalia"
	ChunkError      ChunkType = "error"
)

// Box is a bounding region in normalized page coordinates (0..1).
type Box struct {
	L float64 `json:"l"`
	T float64 `json:"t"`
	R float64 `json:"r"`
	B float64 `json:"b"`
}

// Grounding locates a chunk on a page. In a part-local result Page counts
// from 0 within the part; the merger translates it to the 1-based document
// page.
type Grounding struct {
	Page int  `json:"page"`
	Box  *Box `json:"box,omitempty"`
}

// Chunk is one extracted element with its groundings.
type Chunk struct {
	ID        string      `json:"chunk_id,omitempty"`
	Type      ChunkType   `json:"chunk_type"`
	Text      string      `json:"text"`
	Grounding []Grounding `json:"grounding"`
}

// Gap marks a page range that has no extracted content because its part
// failed terminally.
type Gap struct {
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
	Reason    string `json:"reason"`
}

// Status summarizes how much of a document was parsed.
type Status string

const (
	StatusFull      Status = "full"      // Every part succeeded.
	StatusPartial   Status = "partial"   // Some parts succeeded, gaps recorded.
	StatusFailed    Status = "failed"    // No content extracted.
	StatusCancelled Status = "cancelled" // Parsing never completed for this document.
)

// Result is the merged output for one document: chunks in global page
// order, markdown concatenated in part order, and explicit gaps for any
// page ranges that failed.
type Result struct {
	Name      string  `json:"doc_name"`
	DocType   string  `json:"doc_type"`
	Markdown  string  `json:"markdown"`
	Chunks    []Chunk `json:"chunks"`
	StartPage int     `json:"start_page"`
	EndPage   int     `json:"end_page"`
	Status    Status  `json:"status"`
	Gaps      []Gap   `json:"gaps,omitempty"`
	Attempts  int     `json:"attempts"` // Total remote attempts across all parts.
	Errors    []string `json:"errors,omitempty"`
}

// FailedResult builds a whole-document failure marker so the caller never
// sees a silently dropped input.
func FailedResult(name string, kind SourceKind, pages int, reason string) *Result {
	r := &Result{
		Name:    name,
		DocType: string(kind),
		Status:  StatusFailed,
		Errors:  []string{reason},
	}
	if pages > 0 {
		r.StartPage = 1
		r.EndPage = pages
		r.Gaps = []Gap{{StartPage: 1, EndPage: pages, Reason: reason}}
	}
	return r
}

// CancelledResult marks a document that was never completed before the
// operation was cancelled.
func CancelledResult(name string, kind SourceKind) *Result {
	return &Result{
		Name:    name,
		DocType: string(kind),
		Status:  StatusCancelled,
	}
}
