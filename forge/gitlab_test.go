package forge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ehrlich-b/cinch/blobstore"
	"github.com/ehrlich-b/cinch/entity"
	"github.com/ehrlich-b/cinch/objstore"
)

func newTestGitlab(t *testing.T, handler http.Handler) (*Gitlab, *objstore.VectorStore) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := objstore.NewVectorStore()
	instance, err := entity.NewInstanceBuilder().UniqueID(1).Forge("gitlab").URL(server.URL).Build()
	if err != nil {
		t.Fatalf("build instance: %v", err)
	}

	blobDir := t.TempDir()
	blobs, err := blobstore.CreateFilesystemStore(blobDir, entity.ContentHashSHA256, blobstore.DefaultSharding(), slog.Default())
	if err != nil {
		t.Fatalf("create blob store: %v", err)
	}

	return NewGitlab(store, blobs, instance, server.URL, "test-token"), store
}

func jsonHandler(t *testing.T, routes map[string]any) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("PRIVATE-TOKEN") != "test-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(body); err != nil {
				t.Errorf("encode response: %v", err)
			}
		})
	}
	return mux
}

func TestUpdateUserResolvesEmail(t *testing.T) {
	routes := map[string]any{
		"/api/v4/users/7": map[string]any{
			"id":           7,
			"name":         "Ada Lovelace",
			"username":     "ada",
			"email":        "",
			"public_email": "ada@example.com",
		},
	}
	g, store := newTestGitlab(t, jsonHandler(t, routes))

	outcome, err := g.RunTask(context.Background(), UpdateUser{User: 7})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if len(outcome.AdditionalTasks) != 0 {
		t.Errorf("expected no follow-up tasks, got %v", outcome.AdditionalTasks)
	}

	idx, ok := store.Users.Find(func(u entity.User) bool { return u.ForgeID == 7 })
	if !ok {
		t.Fatal("user was not stored")
	}
	user, _ := store.Users.Get(idx)
	if user.Handle != "ada" || user.Email == nil || *user.Email != "ada@example.com" {
		t.Errorf("unexpected user record: %+v", user)
	}
}

func TestUpdateProjectGatesDiscoveryOnAccessLevel(t *testing.T) {
	routes := map[string]any{
		"/api/v4/projects/100": map[string]any{
			"id":                          100,
			"name":                        "widgets",
			"web_url":                     "https://gitlab.example.com/group/widgets",
			"path_with_namespace":         "group/widgets",
			"merge_requests_access_level": "enabled",
			"builds_access_level":         "disabled",
			"environments_access_level":   "private",
			"forked_from_project":         nil,
			"updated_at":                  "2026-01-01T00:00:00Z",
		},
	}
	g, store := newTestGitlab(t, jsonHandler(t, routes))

	outcome, err := g.RunTask(context.Background(), UpdateProject{Project: 100})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	var hasMR, hasBuilds, hasEnv bool
	for _, task := range outcome.AdditionalTasks {
		switch task.(type) {
		case DiscoverMergeRequests:
			hasMR = true
		case DiscoverPipelineSchedules, DiscoverPipelines:
			hasBuilds = true
		case DiscoverEnvironments, DiscoverDeployments:
			hasEnv = true
		}
	}
	if !hasMR {
		t.Error("expected DiscoverMergeRequests: merge_requests_access_level is enabled")
	}
	if hasBuilds {
		t.Error("did not expect build discovery: builds_access_level is disabled")
	}
	if !hasEnv {
		t.Error("expected environment discovery: environments_access_level is private (still enabled)")
	}

	idx, ok := store.Projects.Find(func(p entity.Project) bool { return p.ForgeID == 100 })
	if !ok {
		t.Fatal("project was not stored")
	}
	project, _ := store.Projects.Get(idx)
	if project.Name != "widgets" || project.InstancePath != "group/widgets" {
		t.Errorf("unexpected project record: %+v", project)
	}
}

func TestUpdateProjectSkipsRediscoveryWhenFresh(t *testing.T) {
	routes := map[string]any{
		"/api/v4/projects/200": map[string]any{
			"id":                          200,
			"name":                        "widgets",
			"web_url":                     "https://gitlab.example.com/group/widgets",
			"path_with_namespace":         "group/widgets",
			"merge_requests_access_level": "enabled",
			"builds_access_level":         "enabled",
			"environments_access_level":   "enabled",
			"forked_from_project":         nil,
			"updated_at":                  "2020-01-01T00:00:00Z",
		},
	}
	g, store := newTestGitlab(t, jsonHandler(t, routes))

	if _, err := g.RunTask(context.Background(), UpdateProject{Project: 200}); err != nil {
		t.Fatalf("first RunTask: %v", err)
	}

	outcome, err := g.RunTask(context.Background(), UpdateProject{Project: 200})
	if err != nil {
		t.Fatalf("second RunTask: %v", err)
	}
	if len(outcome.AdditionalTasks) != 0 {
		t.Errorf("expected no re-discovery on a still-fresh project, got %v", outcome.AdditionalTasks)
	}
	if store.Projects.Len() != 1 {
		t.Errorf("expected the project to be upserted in place, got %d rows", store.Projects.Len())
	}
}

func TestUpdateMergeRequestDefersOnMissingReferences(t *testing.T) {
	routes := map[string]any{
		"/api/v4/projects/5/merge_requests/3": map[string]any{
			"id":                1001,
			"iid":               3,
			"author":            map[string]any{"id": 9},
			"web_url":           "https://gitlab.example.com/group/p/-/merge_requests/3",
			"title":             "Add feature",
			"description":       "",
			"state":             "opened",
			"source_project_id": nil,
			"source_branch":     "feature",
			"sha":               "abc123",
			"target_project_id": 5,
			"target_branch":     "main",
		},
	}
	g, store := newTestGitlab(t, jsonHandler(t, routes))

	task := UpdateMergeRequest{Project: 5, MergeRequest: 3}
	outcome, err := g.RunTask(context.Background(), task)
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if store.MergeRequests.Len() != 0 {
		t.Error("expected no merge request stored while author/project are unresolved")
	}

	var hasUpdateUser, hasUpdateProject, hasSelf bool
	for _, at := range outcome.AdditionalTasks {
		switch v := at.(type) {
		case UpdateUser:
			hasUpdateUser = v.User == 9
		case UpdateProject:
			hasUpdateProject = v.Project == 5
		case UpdateMergeRequest:
			hasSelf = v == task
		}
	}
	if !hasUpdateUser || !hasUpdateProject || !hasSelf {
		t.Errorf("expected deferred UpdateUser, UpdateProject, and a reschedule of the merge request task; got %v", outcome.AdditionalTasks)
	}

	// Once the author and target project exist locally, the same fetch
	// (served again by the stub) should resolve and store the record.
	seedProjectAndUser(t, g, store, 5, 9)
	outcome2, err := g.RunTask(context.Background(), task)
	if err != nil {
		t.Fatalf("second RunTask: %v", err)
	}
	if store.MergeRequests.Len() != 1 {
		t.Fatalf("expected the merge request to be stored once references resolve, got %d rows", store.MergeRequests.Len())
	}
	foundPipelineDiscovery := false
	for _, at := range outcome2.AdditionalTasks {
		if dp, ok := at.(DiscoverMergeRequestPipelines); ok && dp.MergeRequest == 3 {
			foundPipelineDiscovery = true
		}
	}
	if !foundPipelineDiscovery {
		t.Error("expected DiscoverMergeRequestPipelines once the merge request is stored")
	}
}

func seedProjectAndUser(t *testing.T, g *Gitlab, store *objstore.VectorStore, projectForgeID, userForgeID uint64) {
	t.Helper()
	project, err := entity.NewProjectBuilder().ForgeID(projectForgeID).Instance(g.instanceRef()).Build()
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	store.StoreProject(project)
	user, err := entity.NewUserBuilder().ForgeID(userForgeID).Instance(g.instanceRef()).Build()
	if err != nil {
		t.Fatalf("build user: %v", err)
	}
	store.StoreUser(user)
}

func TestUpdateJobDefersOnMissingPipelineAndUser(t *testing.T) {
	routes := map[string]any{
		"/api/v4/projects/1/jobs/2": map[string]any{
			"id":     2,
			"user":   map[string]any{"id": 9},
			"name":   "test",
			"stage":  "test",
			"status": "success",
			"pipeline": map[string]any{
				"id":         50,
				"project_id": 1,
			},
			"runner":      nil,
			"created_at":  "2026-01-01T00:00:00Z",
			"archived":    false,
			"tag_list":    []string{},
			"coverage":    nil,
			"web_url":     "https://gitlab.example.com/group/p/-/jobs/2",
			"artifacts":   []any{},
		},
	}
	g, store := newTestGitlab(t, jsonHandler(t, routes))

	task := UpdateJob{Project: 1, Job: 2}
	outcome, err := g.RunTask(context.Background(), task)
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if store.Jobs.Len() != 0 {
		t.Error("expected no job stored while pipeline/user are unresolved")
	}

	var hasUpdatePipeline, hasUpdateUser, hasSelf bool
	for _, at := range outcome.AdditionalTasks {
		switch v := at.(type) {
		case UpdatePipeline:
			hasUpdatePipeline = v.Pipeline == 50 && v.Project == 1
		case UpdateUser:
			hasUpdateUser = v.User == 9
		case UpdateJob:
			hasSelf = v == task
		}
	}
	if !hasUpdatePipeline || !hasUpdateUser || !hasSelf {
		t.Errorf("expected deferred UpdatePipeline, UpdateUser, and a reschedule; got %v", outcome.AdditionalTasks)
	}
}

func TestFetchJobArtifactStoresBlob(t *testing.T) {
	const payload = "junit xml contents"
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/1/jobs/2/artifacts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	})
	g, store := newTestGitlab(t, mux)

	user, err := entity.NewUserBuilder().ForgeID(9).Instance(g.instanceRef()).Build()
	if err != nil {
		t.Fatalf("build user: %v", err)
	}
	userRef := store.StoreUser(user)

	project, err := entity.NewProjectBuilder().ForgeID(1).Instance(g.instanceRef()).Build()
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	projectRef := store.StoreProject(project)

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pipeline, err := entity.NewPipelineBuilder().
		ForgeID(50).
		Project(projectRef).
		SHA("abc").
		Source(entity.PipelineSourcePush).
		Status(entity.PipelineStatusSuccess).
		URL("https://gitlab.example.com/group/p/-/pipelines/50").
		CreatedAt(fixed).
		UpdatedAt(fixed).
		Build()
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	pipelineRef := store.StorePipeline(pipeline)

	job, err := entity.NewJobBuilder().
		User(userRef).
		State(entity.JobStateSuccess).
		CreatedAt(fixed).
		ForgeID(2).
		Pipeline(pipelineRef).
		Build()
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	jobRef := store.StoreJob(job)

	artifact, err := entity.NewJobArtifactBuilder().
		Kind(entity.ArtifactKindJUnit).
		Name("report.xml").
		Size(0).
		UniqueID(555).
		Job(jobRef).
		Build()
	if err != nil {
		t.Fatalf("build artifact: %v", err)
	}
	store.StoreJobArtifact(artifact)

	_, err = g.RunTask(context.Background(), FetchJobArtifact{Project: 1, Job: 2, Artifact: 555})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	idx, ok := store.JobArtifacts.Find(func(a entity.JobArtifact) bool { return a.UniqueID == 555 })
	if !ok {
		t.Fatal("artifact missing after fetch")
	}
	stored, _ := store.JobArtifacts.Get(idx)
	if stored.Blob == nil {
		t.Fatal("expected a blob reference to be set")
	}
	if stored.Size != uint64(len(payload)) {
		t.Errorf("Size = %d, want %d", stored.Size, len(payload))
	}
	if stored.State != entity.ArtifactStateStored {
		t.Errorf("State = %v, want Stored", stored.State)
	}
}
