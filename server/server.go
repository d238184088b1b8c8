package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/academic-reader/internal/app"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/resources"
	"github.com/Epistemic-Technology/academic-reader/tools"
)

const (
	serverName    = "academic-reader"
	serverVersion = "v0.1.0"
)

// NewEnv exposes the application services to the tool handlers.
func NewEnv(a *app.App, log logger.Logger) *tools.Env {
	return &tools.Env{
		Library:    a.Backend,
		Readers:    a.Readers,
		Views:      a.Views,
		Uploads:    a.Uploads,
		Navigation: a.Navigation,
		Responder:  a.Responder,
		Zotero:     a.Zotero,
		Log:        log.With("tools"),
	}
}

func CreateServer(env *tools.Env, log logger.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	readerResourceHandler := resources.NewReaderResourceHandler(env.Readers)
	readResource := func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return readerResourceHandler.ReadResource(ctx, req.Params.URI)
	}
	// open documents are listed as concrete resources next to the templates
	publishOpen := func() {
		for _, r := range readerResourceHandler.ListResources() {
			server.AddResource(r, readResource)
		}
	}

	mcp.AddTool(server, tools.ReaderOpenTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ReaderOpenQuery) (*mcp.CallToolResult, *tools.ReaderState, error) {
		res, out, err := tools.ReaderOpenToolHandler(ctx, req, query, env)
		if err == nil {
			publishOpen()
		}
		return res, out, err
	})

	mcp.AddTool(server, tools.ReaderPageTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ReaderPageQuery) (*mcp.CallToolResult, *tools.ReaderState, error) {
		return tools.ReaderPageToolHandler(ctx, req, query, env)
	})

	mcp.AddTool(server, tools.ReaderZoomTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ReaderZoomQuery) (*mcp.CallToolResult, *tools.ReaderState, error) {
		return tools.ReaderZoomToolHandler(ctx, req, query, env)
	})

	mcp.AddTool(server, tools.ReaderLanguageTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ReaderLanguageQuery) (*mcp.CallToolResult, *tools.ReaderState, error) {
		return tools.ReaderLanguageToolHandler(ctx, req, query, env)
	})

	mcp.AddTool(server, tools.ReaderOutlineTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ReaderOutlineQuery) (*mcp.CallToolResult, *tools.ReaderOutlineResponse, error) {
		return tools.ReaderOutlineToolHandler(ctx, req, query, env)
	})

	mcp.AddTool(server, tools.AssistantAskTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.AssistantAskQuery) (*mcp.CallToolResult, *tools.AssistantAskResponse, error) {
		return tools.AssistantAskToolHandler(ctx, req, query, env)
	})

	mcp.AddTool(server, tools.UploadSubmitTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.UploadSubmitQuery) (*mcp.CallToolResult, *tools.UploadSubmitResponse, error) {
		return tools.UploadSubmitToolHandler(ctx, req, query, env)
	})

	mcp.AddTool(server, tools.UploadStatusTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.UploadStatusQuery) (*mcp.CallToolResult, *tools.UploadStatusResponse, error) {
		return tools.UploadStatusToolHandler(ctx, req, query, env)
	})

	mcp.AddTool(server, tools.JobCancelTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.JobCancelQuery) (*mcp.CallToolResult, *tools.JobCancelResponse, error) {
		return tools.JobCancelToolHandler(ctx, req, query, env)
	})

	mcp.AddTool(server, tools.DocumentRemoveTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.DocumentRemoveQuery) (*mcp.CallToolResult, *tools.DocumentRemoveResponse, error) {
		res, out, err := tools.DocumentRemoveToolHandler(ctx, req, query, env)
		if err == nil && query.DocumentID != "" {
			server.RemoveResources("reader://" + query.DocumentID + "/window")
		}
		return res, out, err
	})

	mcp.AddTool(server, tools.CollectionListTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.CollectionListQuery) (*mcp.CallToolResult, *tools.CollectionListResponse, error) {
		return tools.CollectionListToolHandler(ctx, req, query, env)
	})

	// Template for the current reading window
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "reader://{documentId}/window",
		Name:        "reader-window",
		Description: "Current page of a document with the previous and next pages, in the active language",
		MIMEType:    "application/json",
	}, readResource)

	// Template for individual page
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "reader://{documentId}/pages/{page}",
		Name:        "reader-page",
		Description: "A specific page (1-indexed) in both translated and original text",
		MIMEType:    "application/json",
	}, readResource)

	log.Info("Registered %s %s", serverName, serverVersion)
	return server
}
