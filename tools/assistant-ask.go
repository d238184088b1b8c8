package tools

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/academic-reader/internal/assistant"
)

type AssistantAskQuery struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
}

type AssistantAskResponse struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Answer     string `json:"answer"`
}

func AssistantAskTool() *mcp.Tool {
	inputschema, err := jsonschema.For[AssistantAskQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "assistant-ask",
		Description: "Ask a question about the page a document is open at. The current page and its neighbours are sent as context.",
		InputSchema: inputschema,
	}
}

func AssistantAskToolHandler(ctx context.Context, req *mcp.CallToolRequest, query AssistantAskQuery, env *Env) (*mcp.CallToolResult, *AssistantAskResponse, error) {
	if env.Responder == nil {
		return nil, nil, errors.New("assistant not configured")
	}
	s, err := env.session(ctx, query.DocumentID)
	if err != nil {
		return nil, nil, err
	}

	title := ""
	if doc := s.Document(); doc != nil {
		title = doc.Title
	}
	a := assistant.New(env.Responder, title, env.Log)
	unsub := s.SubscribeWindow(a.Observe)
	defer unsub()

	answer, err := a.Ask(ctx, query.Question)
	if err != nil {
		return nil, nil, err
	}
	return nil, &AssistantAskResponse{DocumentID: s.DocumentID(), Page: a.Window().Page, Answer: answer}, nil
}
