package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/academic-reader/models"
)

type ReaderOpenQuery struct {
	DocumentID string `json:"document_id"`
	Language   string `json:"language,omitempty"` // "translated" (default) or "original"
}

func ReaderOpenTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ReaderOpenQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "reader-open",
		Description: "Open a processed document at the page and zoom it was last read at. Returns the current page with its neighbouring pages, in the translated text by default.",
		InputSchema: inputschema,
	}
}

func ReaderOpenToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ReaderOpenQuery, env *Env) (*mcp.CallToolResult, *ReaderState, error) {
	env.Log.Info("reader-open tool called for %s", query.DocumentID)

	s, err := env.session(ctx, query.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	if query.Language != "" {
		s.SetLanguage(models.ParseLanguageMode(query.Language))
	}
	return nil, stateOf(s), nil
}
