package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Epistemic-Technology/academic-reader/internal/assistant"
	"github.com/Epistemic-Technology/academic-reader/internal/config"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/internal/upload"
	"github.com/Epistemic-Technology/academic-reader/models"
)

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	return config.Config{
		Backend: config.BackendConfig{BaseURL: baseURL, Timeout: 5 * time.Second},
		Storage: config.StorageConfig{Path: filepath.Join(t.TempDir(), "nested", "reader.db")},
		Poll:    config.PollConfig{Interval: 10 * time.Millisecond},
		Assistant: config.AssistantConfig{
			APIKeyEnv: "ACADEMIC_READER_TEST_NO_SUCH_KEY",
		},
	}
}

func TestNewWiresServices(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	a, err := New(context.Background(), testConfig(t, srv.URL), logger.NewNoOpLogger(), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if _, ok := a.Responder.(*assistant.BackendResponder); !ok {
		t.Errorf("Responder = %T, want backend fallback without an OpenAI key", a.Responder)
	}
	if a.Zotero != nil {
		t.Error("Zotero fetcher set without credentials")
	}
	if a.Navigation.Project() != "" {
		t.Errorf("fresh store has project %q", a.Navigation.Project())
	}
}

func TestNewRejectsBadBackendURL(t *testing.T) {
	if _, err := New(context.Background(), testConfig(t, "ftp://example.com"), logger.NewNoOpLogger(), Options{}); err == nil {
		t.Fatal("New() accepted a non-http backend")
	}
}

func TestNavigationSurvivesRestart(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	cfg := testConfig(t, srv.URL)
	ctx := context.Background()

	a, err := New(ctx, cfg, logger.NewNoOpLogger(), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Navigation.SelectCollection(ctx, "p1", "c1"); err != nil {
		t.Fatalf("SelectCollection() error = %v", err)
	}
	a.Close()

	b, err := New(ctx, cfg, logger.NewNoOpLogger(), Options{})
	if err != nil {
		t.Fatalf("New() after restart error = %v", err)
	}
	defer b.Close()
	if got := b.Navigation.Current(); got != (models.SessionContext{LastProjectID: "p1", LastCollectionID: "c1"}) {
		t.Errorf("Current() = %+v", got)
	}
}

func TestResumePendingFollowsCollectionJobs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects/p1/collections/c1/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"collection":{"id":"c1","name":"Sources","processing_tasks":[`+
			`{"id":"t1","title":"running.pdf","status":"PROCESSING","progress":20},`+
			`{"id":"t2","title":"done.pdf","status":"COMPLETED"}]}}`)
	})
	mux.HandleFunc("/api/documents/status/t1/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"COMPLETED"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var notes []models.Notification
	ctx := context.Background()
	a, err := New(ctx, testConfig(t, srv.URL), logger.NewNoOpLogger(), Options{
		Notifier: upload.NotifierFunc(func(n models.Notification) { notes = append(notes, n) }),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if err := a.ResumePending(ctx); err != nil {
		t.Fatalf("ResumePending() without a collection error = %v", err)
	}
	if len(a.Uploads.Progress()) != 0 {
		t.Fatal("resumed jobs without a remembered collection")
	}

	if err := a.Navigation.SelectCollection(ctx, "p1", "c1"); err != nil {
		t.Fatalf("SelectCollection() error = %v", err)
	}
	if err := a.ResumePending(ctx); err != nil {
		t.Fatalf("ResumePending() error = %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Uploads.Wait(waitCtx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	prog := a.Uploads.Progress()
	if len(prog) != 1 || prog[0].JobID != "t1" || prog[0].Stage != models.StageCompleted {
		t.Errorf("Progress() = %+v", prog)
	}
	if len(notes) != 1 || notes[0].Kind != models.NotifySuccess || notes[0].FileName != "running.pdf" {
		t.Errorf("notifications = %+v", notes)
	}
}
