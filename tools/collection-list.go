package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type CollectionListQuery struct {
	ProjectID    string `json:"project_id,omitempty"`    // defaults to the last opened project
	CollectionID string `json:"collection_id,omitempty"` // defaults to the last opened collection of that project
}

type ProjectResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type DocumentResult struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
	Pages  int    `json:"pages,omitempty"`
}

type JobResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Progress int    `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CollectionListResponse fills the level that was listed: projects when no
// project is known, collections for a project, or the documents and jobs of
// one collection.
type CollectionListResponse struct {
	ProjectID    string           `json:"project_id,omitempty"`
	CollectionID string           `json:"collection_id,omitempty"`
	Projects     []ProjectResult  `json:"projects,omitempty"`
	Collections  []ProjectResult  `json:"collections,omitempty"`
	Documents    []DocumentResult `json:"documents,omitempty"`
	Jobs         []JobResult      `json:"jobs,omitempty"`
}

func CollectionListTool() *mcp.Tool {
	inputschema, err := jsonschema.For[CollectionListQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "collection-list",
		Description: "Browse the library. Without arguments it resumes the last opened project and collection. Lists projects, a project's collections, or a collection's documents and in-flight processing jobs, which are then followed by upload-status.",
		InputSchema: inputschema,
	}
}

func CollectionListToolHandler(ctx context.Context, req *mcp.CallToolRequest, query CollectionListQuery, env *Env) (*mcp.CallToolResult, *CollectionListResponse, error) {
	projectID, collectionID := query.ProjectID, query.CollectionID
	if env.Navigation != nil {
		projectID, collectionID = env.Navigation.Resolve(query.ProjectID, query.CollectionID)
	}
	env.Log.Info("collection-list tool called (project %q, collection %q)", projectID, collectionID)

	if projectID == "" {
		projects, err := env.Library.ListProjects(ctx)
		if err != nil {
			return nil, nil, err
		}
		resp := &CollectionListResponse{}
		for _, p := range projects {
			resp.Projects = append(resp.Projects, ProjectResult{ID: p.ID.String(), Name: p.Name})
		}
		return nil, resp, nil
	}

	if collectionID == "" {
		collections, err := env.Library.ListCollections(ctx, projectID)
		if err != nil {
			return nil, nil, err
		}
		remember(ctx, env, func(ctx context.Context) error { return env.Navigation.SelectProject(ctx, projectID) })
		resp := &CollectionListResponse{ProjectID: projectID}
		for _, c := range collections {
			resp.Collections = append(resp.Collections, ProjectResult{ID: c.ID.String(), Name: c.Name})
		}
		return nil, resp, nil
	}

	coll, err := env.Library.GetCollection(ctx, projectID, collectionID)
	if err != nil {
		return nil, nil, err
	}
	remember(ctx, env, func(ctx context.Context) error {
		return env.Navigation.SelectCollection(ctx, projectID, collectionID)
	})
	if env.Uploads != nil {
		env.Uploads.Resume(coll.ProcessingTasks)
	}

	resp := &CollectionListResponse{ProjectID: projectID, CollectionID: collectionID}
	for _, d := range coll.Documents {
		resp.Documents = append(resp.Documents, DocumentResult{
			ID: d.ID.String(), Title: d.Title, Status: string(d.Status), Pages: d.PageCount(),
		})
	}
	for _, j := range coll.ProcessingTasks {
		jr := JobResult{ID: j.ID.String(), Title: j.Title, Status: string(j.Status), Error: j.ErrorMessage}
		if j.Progress != nil {
			jr.Progress = *j.Progress
		}
		resp.Jobs = append(resp.Jobs, jr)
	}
	return nil, resp, nil
}

func remember(ctx context.Context, env *Env, save func(context.Context) error) {
	if env.Navigation == nil {
		return
	}
	if err := save(ctx); err != nil {
		env.Log.Warn("%v", err)
	}
}
