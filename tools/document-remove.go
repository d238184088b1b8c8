package tools

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type DocumentRemoveQuery struct {
	DocumentID string `json:"document_id,omitempty"` // a processed document
	JobID      string `json:"job_id,omitempty"`      // a job that has not produced a document
}

type DocumentRemoveResponse struct {
	DocumentID string `json:"document_id,omitempty"`
	JobID      string `json:"job_id,omitempty"`
	Removed    bool   `json:"removed"`
}

func DocumentRemoveTool() *mcp.Tool {
	inputschema, err := jsonschema.For[DocumentRemoveQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "document-remove",
		Description: "Delete a processed document (document_id) or an unfinished processing job (job_id) from the server. Removing a document also forgets its saved reading position.",
		InputSchema: inputschema,
	}
}

func DocumentRemoveToolHandler(ctx context.Context, req *mcp.CallToolRequest, query DocumentRemoveQuery, env *Env) (*mcp.CallToolResult, *DocumentRemoveResponse, error) {
	if (query.DocumentID == "") == (query.JobID == "") {
		return nil, nil, errors.New("provide exactly one of document_id or job_id")
	}

	if query.JobID != "" {
		env.Log.Info("document-remove tool called for job %s", query.JobID)
		if err := env.Library.RemoveJob(ctx, query.JobID); err != nil {
			return nil, nil, err
		}
		env.Uploads.Cancel(query.JobID)
		return nil, &DocumentRemoveResponse{JobID: query.JobID, Removed: true}, nil
	}

	env.Log.Info("document-remove tool called for document %s", query.DocumentID)
	if err := env.Library.RemoveDocument(ctx, query.DocumentID); err != nil {
		return nil, nil, err
	}
	env.Readers.Close(query.DocumentID)
	if err := env.Views.Forget(ctx, query.DocumentID); err != nil {
		env.Log.Warn("%v", err)
	}
	return nil, &DocumentRemoveResponse{DocumentID: query.DocumentID, Removed: true}, nil
}
