package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/academic-reader/internal/jobs"
	"github.com/Epistemic-Technology/academic-reader/internal/sources"
	"github.com/Epistemic-Technology/academic-reader/internal/upload"
	"github.com/Epistemic-Technology/academic-reader/models"
)

type UploadSubmitQuery struct {
	Path         string `json:"path,omitempty"`          // local file path
	URL          string `json:"url,omitempty"`           // download URL
	ZoteroID     string `json:"zotero_id,omitempty"`     // Zotero attachment key
	RawData      []byte `json:"raw_data,omitempty"`      // file bytes; requires file_name
	FileName     string `json:"file_name,omitempty"`     // name for raw_data, or to override the detected name
	Title        string `json:"title,omitempty"`         // defaults to the file name without extension
	CollectionID string `json:"collection_id,omitempty"` // defaults to the current collection
}

type UploadSubmitResponse struct {
	FileName string `json:"file_name"`
	JobID    string `json:"job_id"`
	Stage    string `json:"stage"`
}

func UploadSubmitTool() *mcp.Tool {
	inputschema, err := jsonschema.For[UploadSubmitQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "upload-submit",
		Description: "Upload a PDF, DOCX or PPTX for translation and processing. Provide exactly one of path, url, zotero_id or raw_data. Returns the job id; use upload-status to follow progress.",
		InputSchema: inputschema,
	}
}

func UploadSubmitToolHandler(ctx context.Context, req *mcp.CallToolRequest, query UploadSubmitQuery, env *Env) (*mcp.CallToolResult, *UploadSubmitResponse, error) {
	f, err := loadSource(ctx, query, env)
	if err != nil {
		return nil, nil, err
	}
	if query.FileName != "" {
		f.Name = query.FileName
	}
	env.Log.Info("upload-submit tool called for %s (%s)", f.Name, f.Kind)

	collectionID := query.CollectionID
	if collectionID == "" && env.Navigation != nil {
		collectionID = env.Navigation.Collection()
	}

	handle, err := env.Uploads.Submit(ctx, f, upload.SubmitOptions{Title: query.Title, CollectionID: collectionID})
	if err != nil {
		return nil, nil, err
	}
	return nil, &UploadSubmitResponse{
		FileName: f.Name,
		JobID:    handle.JobID.String(),
		Stage:    string(models.StageProcessing),
	}, nil
}

func loadSource(ctx context.Context, q UploadSubmitQuery, env *Env) (sources.File, error) {
	given := 0
	for _, set := range []bool{q.Path != "", q.URL != "", q.ZoteroID != "", len(q.RawData) > 0} {
		if set {
			given++
		}
	}
	if given != 1 {
		return sources.File{}, errors.New("provide exactly one of path, url, zotero_id or raw_data")
	}

	switch {
	case q.Path != "":
		return sources.FromPath(q.Path)
	case q.URL != "":
		return sources.FromURL(ctx, nil, q.URL)
	case q.ZoteroID != "":
		if env.Zotero == nil {
			return sources.File{}, fmt.Errorf("ZOTERO_API_KEY and ZOTERO_LIBRARY_ID must be set to upload from Zotero")
		}
		return sources.FromZotero(ctx, env.Zotero, q.ZoteroID)
	default:
		if q.FileName == "" {
			return sources.File{}, errors.New("file_name is required with raw_data")
		}
		return sources.FromBytes(q.FileName, q.RawData), nil
	}
}

type UploadStatusQuery struct {
	JobID string `json:"job_id,omitempty"` // omit to list every tracked upload
}

type UploadStatusResponse struct {
	Files   []models.FileProgress `json:"files"`
	Count   int                   `json:"count"`
	Polling jobs.Stats            `json:"polling"`
}

func UploadStatusTool() *mcp.Tool {
	inputschema, err := jsonschema.For[UploadStatusQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "upload-status",
		Description: "Report the progress of uploads in this session: uploading, processing (with percent), completed, failed (with the server's message) or upload-failed.",
		InputSchema: inputschema,
	}
}

func UploadStatusToolHandler(ctx context.Context, req *mcp.CallToolRequest, query UploadStatusQuery, env *Env) (*mcp.CallToolResult, *UploadStatusResponse, error) {
	var files []models.FileProgress
	if query.JobID != "" {
		p, ok := env.Uploads.JobProgress(query.JobID)
		if !ok {
			return nil, nil, fmt.Errorf("no upload with job id %s", query.JobID)
		}
		files = []models.FileProgress{p}
	} else {
		files = env.Uploads.Progress()
	}
	return nil, &UploadStatusResponse{Files: files, Count: len(files), Polling: env.Uploads.Stats()}, nil
}

type JobCancelQuery struct {
	JobID string `json:"job_id"`
}

type JobCancelResponse struct {
	JobID     string `json:"job_id"`
	Cancelled bool   `json:"cancelled"`
}

func JobCancelTool() *mcp.Tool {
	inputschema, err := jsonschema.For[JobCancelQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "job-cancel",
		Description: "Stop following a processing job. The job keeps running on the server; use document-remove with job_id to delete it.",
		InputSchema: inputschema,
	}
}

func JobCancelToolHandler(ctx context.Context, req *mcp.CallToolRequest, query JobCancelQuery, env *Env) (*mcp.CallToolResult, *JobCancelResponse, error) {
	if query.JobID == "" {
		return nil, nil, errors.New("job_id is required")
	}
	return nil, &JobCancelResponse{JobID: query.JobID, Cancelled: env.Uploads.Cancel(query.JobID)}, nil
}
