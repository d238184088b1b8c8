package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/academic-reader/models"
)

type ReaderPageQuery struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page,omitempty"`   // 1-based page to jump to
	Action     string `json:"action,omitempty"` // next, prev, first or last; ignored when page is set
}

func ReaderPageTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ReaderPageQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "reader-page",
		Description: "Move the reading position of an open document, either to a page number or with next/prev/first/last. Out-of-range pages are clamped to the document. The new position is remembered.",
		InputSchema: inputschema,
	}
}

func ReaderPageToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ReaderPageQuery, env *Env) (*mcp.CallToolResult, *ReaderState, error) {
	s, err := env.session(ctx, query.DocumentID)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case query.Page != 0:
		s.Jump(query.Page)
	case query.Action == "next":
		s.Next()
	case query.Action == "prev":
		s.Prev()
	case query.Action == "first":
		s.First()
	case query.Action == "last":
		s.Last()
	case query.Action == "":
	default:
		return nil, nil, fmt.Errorf("unknown action %q (expected next, prev, first or last)", query.Action)
	}
	return nil, stateOf(s), nil
}

type ReaderZoomQuery struct {
	DocumentID string  `json:"document_id"`
	Zoom       float64 `json:"zoom"`
}

func ReaderZoomTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ReaderZoomQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "reader-zoom",
		Description: "Set the zoom level of an open document. Zoom must be positive; 1 is actual size. The stored page is kept.",
		InputSchema: inputschema,
	}
}

func ReaderZoomToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ReaderZoomQuery, env *Env) (*mcp.CallToolResult, *ReaderState, error) {
	s, err := env.session(ctx, query.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.SetZoom(ctx, query.Zoom); err != nil {
		return nil, nil, err
	}
	return nil, stateOf(s), nil
}

type ReaderLanguageQuery struct {
	DocumentID string `json:"document_id"`
	Language   string `json:"language,omitempty"` // translated or original; empty toggles
}

func ReaderLanguageTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ReaderLanguageQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "reader-language",
		Description: "Switch an open document between its translated and original text. Without a language the mode is toggled.",
		InputSchema: inputschema,
	}
}

func ReaderLanguageToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ReaderLanguageQuery, env *Env) (*mcp.CallToolResult, *ReaderState, error) {
	s, err := env.session(ctx, query.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	switch query.Language {
	case "":
		s.ToggleLanguage()
	case "translated", "original":
		s.SetLanguage(models.ParseLanguageMode(query.Language))
	default:
		return nil, nil, fmt.Errorf("unknown language %q (expected translated or original)", query.Language)
	}
	return nil, stateOf(s), nil
}
