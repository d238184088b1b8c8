package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/academic-reader/internal/app"
	"github.com/Epistemic-Technology/academic-reader/internal/config"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
)

const documentJSON = `{"document": {"id": 7, "title": "Paper",
	"chinese_sections": {"pages": [{"content": "t1"}, {"content": "t2"}, {"content": "t3"}]},
	"english_sections": {"pages": [{"content": "o1"}, {"content": "o2"}, {"content": "o3"}]}}}`

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/documents/7/" {
			w.Write([]byte(documentJSON))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(backend.Close)

	cfg := config.Config{
		Backend: config.BackendConfig{BaseURL: backend.URL, Timeout: 5 * time.Second},
		Storage: config.StorageConfig{Path: ":memory:"},
		Poll:    config.PollConfig{Interval: 10 * time.Millisecond},
	}
	log := logger.NewNoOpLogger()
	ctx := context.Background()

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	srv := CreateServer(NewEnv(a, log), log)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server Connect() error = %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect() error = %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestServerRegistersTools(t *testing.T) {
	cs := connect(t)
	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	got := make(map[string]bool)
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	want := []string{
		"reader-open", "reader-page", "reader-zoom", "reader-language", "reader-outline",
		"assistant-ask", "upload-submit", "upload-status", "job-cancel",
		"document-remove", "collection-list",
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("tool %q not registered", name)
		}
	}
	if len(res.Tools) != len(want) {
		t.Errorf("registered %d tools, want %d", len(res.Tools), len(want))
	}
}

func TestReaderOpenAndPageResource(t *testing.T) {
	cs := connect(t)
	ctx := context.Background()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "reader-open",
		Arguments: map[string]any{"document_id": "7"},
	})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("reader-open returned an error result: %+v", res.Content)
	}
	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var state struct {
		Page       int    `json:"page"`
		TotalPages int    `json:"total_pages"`
		Current    string `json:"current"`
		Next       string `json:"next"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.Page != 1 || state.TotalPages != 3 || state.Current != "t1" || state.Next != "t2" {
		t.Errorf("reader-open state = %+v", state)
	}

	page, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "reader://7/pages/2"})
	if err != nil {
		t.Fatalf("ReadResource() error = %v", err)
	}
	if len(page.Contents) != 1 || !strings.Contains(page.Contents[0].Text, `"original":"o2"`) {
		t.Errorf("page resource = %+v", page.Contents)
	}

	resources, err := cs.ListResources(ctx, &mcp.ListResourcesParams{})
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if len(resources.Resources) != 1 || resources.Resources[0].URI != "reader://7/window" {
		t.Errorf("ListResources() = %+v", resources.Resources)
	}
}

func TestReaderOpenUnknownDocument(t *testing.T) {
	cs := connect(t)
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "reader-open",
		Arguments: map[string]any{"document_id": "404"},
	})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if !res.IsError {
		t.Fatal("expected an error result for an unknown document")
	}
}
