package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/academic-reader/models"
)

type ReaderOutlineQuery struct {
	DocumentID string `json:"document_id"`
}

// OutlineEntry is one flattened outline node; Depth 0 is top level.
type OutlineEntry struct {
	Title string `json:"title"`
	Page  int    `json:"page,omitempty"`
	Depth int    `json:"depth"`
}

type ReaderOutlineResponse struct {
	DocumentID string         `json:"document_id"`
	Title      string         `json:"title"`
	Language   string         `json:"language"`
	Entries    []OutlineEntry `json:"entries"`
}

func ReaderOutlineTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ReaderOutlineQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "reader-outline",
		Description: "Generate a structured outline (mind map) of an open document from the full text of its current language. Entries are listed depth-first.",
		InputSchema: inputschema,
	}
}

func ReaderOutlineToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ReaderOutlineQuery, env *Env) (*mcp.CallToolResult, *ReaderOutlineResponse, error) {
	s, err := env.session(ctx, query.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	outline, err := s.Outline(ctx, env.Library)
	if err != nil {
		return nil, nil, err
	}
	return nil, &ReaderOutlineResponse{
		DocumentID: s.DocumentID(),
		Title:      outline.Title,
		Language:   s.Mode().String(),
		Entries:    flattenOutline(outline.Nodes, 0, nil),
	}, nil
}

func flattenOutline(nodes []models.OutlineNode, depth int, out []OutlineEntry) []OutlineEntry {
	for _, n := range nodes {
		out = append(out, OutlineEntry{Title: n.Title, Page: n.Page, Depth: depth})
		out = flattenOutline(n.Children, depth+1, out)
	}
	return out
}
