// Package fetch acquires input documents for parsing: local files, URLs,
// or raw uploaded bytes. It produces read-only Sources with the page count
// the splitter needs, probing PDFs for readability up front so unreadable
// documents fail before any remote call is made.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/docparse/internal/document"
)

// httpClient bounds downloads so a hung remote can't stall source loading.
var httpClient = &http.Client{
	Timeout: 60 * time.Second,
}

var imageMIMETypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// IsSupportedExtension checks if a file extension can be parsed.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" {
		return true
	}
	_, ok := imageMIMETypes[ext]
	return ok
}

// FromBytes builds a Source from raw content. PDFs are opened to count
// pages; images always count as one page.
func FromBytes(name string, data []byte) (*document.Source, error) {
	if len(data) == 0 {
		return nil, &document.InvalidDocumentError{Name: name, Reason: "empty content"}
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".pdf" || bytes.HasPrefix(data, []byte("%PDF")) {
		pages, err := pdfPageCount(data)
		if err != nil {
			return nil, &document.InvalidDocumentError{Name: name, Reason: fmt.Sprintf("unreadable pdf: %v", err)}
		}
		if pages == 0 {
			return nil, &document.InvalidDocumentError{Name: name, Reason: "zero pages"}
		}
		return &document.Source{
			Name:      name,
			Data:      data,
			Kind:      document.KindPDF,
			MIMEType:  "application/pdf",
			PageCount: pages,
		}, nil
	}

	if mime, ok := imageMIMETypes[ext]; ok {
		return &document.Source{
			Name:      name,
			Data:      data,
			Kind:      document.KindImage,
			MIMEType:  mime,
			PageCount: 1,
		}, nil
	}

	return nil, &document.InvalidDocumentError{Name: name, Reason: fmt.Sprintf("unsupported file type: %s", ext)}
}

// FromFile reads a local file into a Source.
func FromFile(filePath string) (*document.Source, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &document.SourceUnavailableError{Ref: filePath, Err: err}
	}
	return FromBytes(filepath.Base(filePath), data)
}

// FromURL downloads a document over HTTP. maxBytes caps the download size;
// 0 means no cap.
func FromURL(ctx context.Context, rawURL string, maxBytes int64) (*document.Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &document.SourceUnavailableError{Ref: rawURL, Err: err}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &document.SourceUnavailableError{Ref: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &document.SourceUnavailableError{Ref: rawURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body := resp.Body
	var reader io.Reader = body
	if maxBytes > 0 {
		reader = io.LimitReader(body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &document.SourceUnavailableError{Ref: rawURL, Err: err}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, &document.SourceUnavailableError{Ref: rawURL, Err: fmt.Errorf("exceeds max size (%d bytes)", maxBytes)}
	}

	name := path.Base(req.URL.Path)
	if name == "" || name == "/" || name == "." {
		name = "download"
	}
	return FromBytes(name, data)
}

// IsURL reports whether ref looks like an HTTP(S) URL rather than a path.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// pdfPageCount opens the PDF in memory and returns its page count. The
// library panics on some malformed files, so the probe converts panics to
// errors.
func pdfPageCount(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}
