package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/academic-reader/internal/content"
	"github.com/Epistemic-Technology/academic-reader/internal/reader"
	"github.com/Epistemic-Technology/academic-reader/models"
)

const scheme = "reader://"

// ReaderResourceHandler serves the content of documents opened through the
// reader tools.
type ReaderResourceHandler struct {
	readers *reader.Registry
}

func NewReaderResourceHandler(readers *reader.Registry) *ReaderResourceHandler {
	return &ReaderResourceHandler{readers: readers}
}

type windowResource struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	Language   string `json:"language"`
	Previous   string `json:"previous"`
	Current    string `json:"current"`
	Next       string `json:"next"`
}

type pageResource struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Translated string `json:"translated"`
	Original   string `json:"original"`
}

// ListResources lists the window of every open document.
func (h *ReaderResourceHandler) ListResources() []*mcp.Resource {
	var out []*mcp.Resource
	for _, id := range h.readers.IDs() {
		s, ok := h.readers.Get(id)
		if !ok {
			continue
		}
		title := id
		if doc := s.Document(); doc != nil && doc.Title != "" {
			title = doc.Title
		}
		out = append(out, &mcp.Resource{
			URI:         fmt.Sprintf("%s%s/window", scheme, id),
			Name:        fmt.Sprintf("%s (Current Window)", title),
			Description: "Current page of the document with its neighbours",
			MIMEType:    "application/json",
		})
	}
	return out
}

// ReadResource reads reader://{documentId}/window or
// reader://{documentId}/pages/{page}.
func (h *ReaderResourceHandler) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if !strings.HasPrefix(uri, scheme) {
		return nil, fmt.Errorf("invalid URI scheme, expected %s", scheme)
	}
	parts := strings.Split(strings.TrimPrefix(uri, scheme), "/")
	if len(parts) < 2 || parts[0] == "" {
		return nil, fmt.Errorf("invalid URI, expected %s{documentId}/window or %s{documentId}/pages/{page}", scheme, scheme)
	}
	docID := parts[0]

	s, err := h.readers.Open(ctx, docID)
	if err != nil {
		return nil, err
	}

	var v any
	switch {
	case parts[1] == "window" && len(parts) == 2:
		v = windowOf(s)
	case parts[1] == "pages" && len(parts) == 3:
		page, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid page: %s", parts[2])
		}
		v, err = pageOf(s, page)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown resource: %s", strings.Join(parts[1:], "/"))
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

func windowOf(s *reader.Session) windowResource {
	page, total := s.Page()
	w := s.Window()
	return windowResource{
		DocumentID: s.DocumentID(),
		Page:       page,
		TotalPages: total,
		Language:   s.Mode().String(),
		Previous:   w.Previous,
		Current:    w.Current,
		Next:       w.Next,
	}
}

// pageOf reads one page in both languages without moving the cursor.
func pageOf(s *reader.Session, page int) (pageResource, error) {
	doc := s.Document()
	total := doc.PageCount()
	if page < 1 || page > total {
		return pageResource{}, fmt.Errorf("page %d out of range (document has %d pages)", page, total)
	}
	return pageResource{
		DocumentID: s.DocumentID(),
		Page:       page,
		Translated: content.DeriveWindow(doc, page, models.ModeTranslated).Current,
		Original:   content.DeriveWindow(doc, page, models.ModeOriginal).Current,
	}, nil
}
