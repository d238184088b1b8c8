// Package sources loads files offered for ingestion and checks that the
// backend can accept them.
package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Epistemic-Technology/zotero/zotero"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Kind is a sniffed file type.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindDOCX     Kind = "docx"
	KindPPTX     Kind = "pptx"
	KindXLSX     Kind = "xlsx"
	KindZip      Kind = "zip"
	KindHTML     Kind = "html"
	KindMarkdown Kind = "md"
	KindText     Kind = "txt"
	KindUnknown  Kind = "unknown"
)

// MaxFileSize bounds what FromPath and FromURL will read.
const MaxFileSize = 100 << 20

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrEmptyPDF    = errors.New("pdf has no pages")
	ErrTooLarge    = errors.New("file too large")
)

var contentTypes = map[Kind]string{
	KindPDF:  "application/pdf",
	KindDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	KindPPTX: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// File is a loaded submission candidate.
type File struct {
	Name string
	Data []byte
	Kind Kind
}

// Title is the file name without its extension.
func (f File) Title() string {
	base := filepath.Base(f.Name)
	if t := strings.TrimSuffix(base, filepath.Ext(base)); t != "" {
		return t
	}
	return base
}

func (f File) ContentType() string {
	if ct, ok := contentTypes[f.Kind]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Supported reports whether the backend ingests files of kind k.
func Supported(k Kind) bool {
	_, ok := contentTypes[k]
	return ok
}

// DetectType determines the type of a file from its magic bytes.
func DetectType(data []byte) Kind {
	if len(data) == 0 {
		return KindUnknown
	}
	if len(data) < 4 {
		if isLikelyText(data) {
			return KindText
		}
		return KindUnknown
	}

	if bytes.HasPrefix(data, []byte("%PDF")) {
		return KindPDF
	}

	trimmed := bytes.TrimSpace(data)
	lower := bytes.ToLower(trimmed[:min(len(trimmed), 16)])
	if bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html")) {
		return KindHTML
	}

	// OOXML containers are zip archives; the first entries name the part tree
	if data[0] == 'P' && data[1] == 'K' && (data[2] == 0x03 || data[2] == 0x05 || data[2] == 0x07) {
		head := data[:min(len(data), 2048)]
		switch {
		case bytes.Contains(head, []byte("word/")):
			return KindDOCX
		case bytes.Contains(head, []byte("ppt/")):
			return KindPPTX
		case bytes.Contains(head, []byte("xl/")):
			return KindXLSX
		}
		return KindZip
	}

	if isLikelyText(data) {
		head := data[:min(len(data), 1024)]
		if bytes.Contains(head, []byte("# ")) || bytes.Contains(head, []byte("```")) {
			return KindMarkdown
		}
		return KindText
	}
	return KindUnknown
}

func isLikelyText(data []byte) bool {
	sample := data[:min(len(data), 512)]
	if len(sample) == 0 || bytes.IndexByte(sample, 0) >= 0 {
		return false
	}
	printable := 0
	for _, b := range sample {
		if (b >= 32 && b <= 126) || b == '\n' || b == '\r' || b == '\t' || b >= 0x80 {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) > 0.9
}

// Validate rejects files the backend cannot ingest. PDFs must parse and have
// at least one page.
func Validate(f File) error {
	if !Supported(f.Kind) {
		return fmt.Errorf("%w: %s", ErrUnsupported, f.Kind)
	}
	if f.Kind != KindPDF {
		return nil
	}
	pages, err := api.PageCount(bytes.NewReader(f.Data), model.NewDefaultConfiguration())
	if err != nil {
		return fmt.Errorf("failed to read pdf: %w", err)
	}
	if pages < 1 {
		return ErrEmptyPDF
	}
	return nil
}

func newFile(name string, data []byte) File {
	return File{Name: name, Data: data, Kind: DetectType(data)}
}

// FromBytes wraps data already in memory.
func FromBytes(name string, data []byte) File {
	return newFile(name, data)
}

// FromPath reads a local file.
func FromPath(p string) (File, error) {
	info, err := os.Stat(p)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if info.Size() > MaxFileSize {
		return File{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, p, info.Size())
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return newFile(filepath.Base(p), data), nil
}

// FromURL downloads a file. A nil client uses http.DefaultClient.
func FromURL(ctx context.Context, client *http.Client, rawURL string) (File, error) {
	if client == nil {
		client = http.DefaultClient
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return File{}, fmt.Errorf("failed to parse url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return File{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return File{}, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return File{}, fmt.Errorf("failed to download %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileSize+1))
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	if len(data) > MaxFileSize {
		return File{}, fmt.Errorf("%w: %s", ErrTooLarge, rawURL)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = u.Host
	}
	f := newFile(name, data)
	if filepath.Ext(f.Name) == "" && Supported(f.Kind) {
		f.Name += "." + string(f.Kind)
	}
	return f, nil
}

// FetchFunc retrieves an attachment by key.
type FetchFunc func(ctx context.Context, key string) ([]byte, error)

// ZoteroFetcher fetches attachment files from a Zotero user library.
func ZoteroFetcher(libraryID, apiKey string) FetchFunc {
	client := zotero.NewClient(libraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(apiKey))
	return func(ctx context.Context, key string) ([]byte, error) {
		data, err := client.File(ctx, key)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}

// FromZotero loads a Zotero attachment. The file is named after the item
// key and the sniffed type.
func FromZotero(ctx context.Context, fetch FetchFunc, itemKey string) (File, error) {
	data, err := fetch(ctx, itemKey)
	if err != nil {
		return File{}, fmt.Errorf("failed to fetch zotero item %s: %w", itemKey, err)
	}
	if len(data) == 0 {
		return File{}, fmt.Errorf("zotero item %s has no attachment data", itemKey)
	}
	f := newFile(itemKey, data)
	f.Name = itemKey + "." + string(f.Kind)
	return f, nil
}
