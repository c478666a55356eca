package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ehrlich-b/cinch/blobstore"
	"github.com/ehrlich-b/cinch/entity"
	"github.com/ehrlich-b/cinch/objstore"
	"github.com/ehrlich-b/cinch/ref"
)

// accessLevel mirrors GitLab's project feature visibility. Only Enabled
// and Private projects are worth discovering sub-collections for;
// Disabled means the feature is off for the project entirely.
type accessLevel string

const (
	accessDisabled accessLevel = "disabled"
	accessPrivate  accessLevel = "private"
	accessEnabled  accessLevel = "enabled"
)

func (a accessLevel) isEnabled() bool {
	return a == accessEnabled || a == accessPrivate
}

// Gitlab implements Forge against the GitLab REST API (v4).
type Gitlab struct {
	instance entity.Instance
	baseURL  string
	token    string
	client   *http.Client
	blobs    blobstore.Store
	store    *objstore.VectorStore
}

// NewGitlab constructs an adapter bound to one GitLab instance. token is
// a personal or project access token sent as PRIVATE-TOKEN.
func NewGitlab(store *objstore.VectorStore, blobs blobstore.Store, instance entity.Instance, baseURL, token string) *Gitlab {
	return &Gitlab{
		instance: instance,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		token:    token,
		client:   http.DefaultClient,
		blobs:    blobs,
		store:    store,
	}
}

func (g *Gitlab) Instance() entity.Instance { return g.instance }

func (g *Gitlab) Name() string { return "gitlab" }

// RunTask dispatches a single task to its handler.
func (g *Gitlab) RunTask(ctx context.Context, task Task) (Outcome, error) {
	switch t := task.(type) {
	case DiscoverStaleData:
		return g.discoverStaleData(ctx, t)
	case UpdateRunnerHost:
		return g.updateRunnerHost(ctx, t)
	case AssignRunnerToHost:
		return g.assignRunnerToHost(ctx, t)
	case UpdateProjectByName:
		return g.updateProjectByName(ctx, t)
	case UpdateProject:
		return g.updateProject(ctx, t)
	case UpdateUserByName:
		return g.updateUserByName(ctx, t)
	case UpdateUser:
		return g.updateUser(ctx, t)
	case DiscoverRunners:
		return g.discoverRunners(ctx, t)
	case UpdateRunner:
		return g.updateRunner(ctx, t)
	case DiscoverPipelineSchedules:
		return g.discoverPipelineSchedules(ctx, t)
	case UpdatePipelineSchedule:
		return g.updatePipelineSchedule(ctx, t)
	case DiscoverMergeRequests:
		return g.discoverMergeRequests(ctx, t)
	case UpdateMergeRequest:
		return g.updateMergeRequest(ctx, t)
	case DiscoverPipelines:
		return g.discoverPipelines(ctx, t)
	case DiscoverMergeRequestPipelines:
		return g.discoverMergeRequestPipelines(ctx, t)
	case UpdatePipeline:
		return g.updatePipeline(ctx, t)
	case DiscoverEnvironments:
		return g.discoverEnvironments(ctx, t)
	case UpdateEnvironment:
		return g.updateEnvironment(ctx, t)
	case DiscoverDeployments:
		return g.discoverDeployments(ctx, t)
	case UpdateDeployment:
		return g.updateDeployment(ctx, t)
	case DiscoverJobs:
		return g.discoverJobs(ctx, t)
	case UpdateJob:
		return g.updateJob(ctx, t)
	case UpdateJobArtifacts:
		return g.updateJobArtifacts(ctx, t)
	case FetchJobArtifact:
		return g.fetchJobArtifact(ctx, t)
	default:
		return Outcome{}, unhandledErr(task)
	}
}

// --- transport ---

// apiError carries the classified failure of a single request, so
// callers can fold it into a forge.Error with the triggering task.
type apiError struct {
	kind ErrorKind
	err  error
}

func (e *apiError) Error() string { return e.err.Error() }
func (e *apiError) Unwrap() error { return e.err }

func (g *Gitlab) get(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	u := g.baseURL + "/api/v4" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &apiError{kind: Connection, err: err}
	}
	req.Header.Set("PRIVATE-TOKEN", g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &apiError{kind: Connection, err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &apiError{kind: NotFound, err: fmt.Errorf("gitlab: %s: not found", path)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &apiError{kind: Auth, err: fmt.Errorf("gitlab: %s: status %d", path, resp.StatusCode)}
	case resp.StatusCode >= 500:
		return nil, &apiError{kind: Connection, err: fmt.Errorf("gitlab: %s: status %d", path, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &apiError{kind: Auth, err: fmt.Errorf("gitlab: %s: status %d", path, resp.StatusCode)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, &apiError{kind: Connection, err: fmt.Errorf("decode %s: %w", path, err)}
		}
	}
	return resp.Header, nil
}

// getBytes downloads a raw response body, for artifact archives that
// aren't JSON.
func (g *Gitlab) getBytes(ctx context.Context, path string) ([]byte, error) {
	u := g.baseURL + "/api/v4" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &apiError{kind: Connection, err: err}
	}
	req.Header.Set("PRIVATE-TOKEN", g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &apiError{kind: Connection, err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &apiError{kind: NotFound, err: fmt.Errorf("gitlab: %s: not found", path)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &apiError{kind: Auth, err: fmt.Errorf("gitlab: %s: status %d", path, resp.StatusCode)}
	case resp.StatusCode >= 500:
		return nil, &apiError{kind: Connection, err: fmt.Errorf("gitlab: %s: status %d", path, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &apiError{kind: Auth, err: fmt.Errorf("gitlab: %s: status %d", path, resp.StatusCode)}
	}
	return io.ReadAll(resp.Body)
}

// getPaged walks every page of a listing endpoint, decoding each page
// into a fresh []T and handing it to collect.
func getPaged[T any](ctx context.Context, g *Gitlab, path string, query url.Values, collect func([]T)) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", "100")
	page := 1
	for {
		query.Set("page", strconv.Itoa(page))
		var items []T
		hdr, err := g.get(ctx, path, query, &items)
		if err != nil {
			return err
		}
		collect(items)
		next := hdr.Get("X-Next-Page")
		if next == "" {
			return nil
		}
		page, err = strconv.Atoi(next)
		if err != nil {
			return nil
		}
	}
}

func wrapErr(task Task, err error) error {
	var ae *apiError
	if e, ok := err.(*apiError); ok {
		ae = e
	}
	if ae == nil {
		return connectionErr(task, err)
	}
	switch ae.kind {
	case Auth:
		return authErr(task, ae.err)
	case NotFound:
		return notFoundErr(task, ae.err)
	default:
		return connectionErr(task, ae.err)
	}
}

// --- maintenance tasks ---

// discoverStaleData has no forge-specific meaning: staleness is a
// property of the local store, not of anything GitLab reports. The
// scheduler hands it over like any other task, and the adapter treats
// it as a no-op: an empty Outcome and no error.
func (g *Gitlab) discoverStaleData(_ context.Context, _ DiscoverStaleData) (Outcome, error) {
	return Outcome{}, nil
}

func (g *Gitlab) updateRunnerHost(_ context.Context, t UpdateRunnerHost) (Outcome, error) {
	idx, ok := g.store.RunnerHosts.Find(func(h entity.RunnerHost) bool { return h.Name == t.Name })
	var host entity.RunnerHost
	if ok {
		existing, _ := g.store.RunnerHosts.Get(idx)
		host = existing
	} else {
		var err error
		host, err = entity.NewRunnerHostBuilder().Name(t.Name).UniqueID(fnvHash(t.Name)).Build()
		if err != nil {
			return Outcome{}, connectionErr(t, err)
		}
	}
	host.OS = t.Data.OS
	host.OSVersion = t.Data.OSVersion
	host.Management = t.Data.Management
	host.Location = t.Data.Location
	host.EstimatedCostPerHour = t.Data.EstimatedCostPerHour
	host.LastRefreshedAt = time.Now().UTC()
	g.store.StoreRunnerHost(host)
	return Outcome{}, nil
}

func (g *Gitlab) assignRunnerToHost(_ context.Context, t AssignRunnerToHost) (Outcome, error) {
	runnerIdx, ok := g.store.Runners.Find(func(r entity.Runner) bool { return r.ForgeID == t.Runner })
	if !ok {
		return Outcome{AdditionalTasks: []Task{UpdateRunner{ID: t.Runner}, t}}, nil
	}
	hostIdx, ok := g.store.RunnerHosts.Find(func(h entity.RunnerHost) bool { return h.Name == t.Host })
	if !ok {
		return Outcome{AdditionalTasks: []Task{t}}, nil
	}
	runner, _ := g.store.Runners.Get(runnerIdx)
	runner.RunnerHost = ref.Vector[entity.RunnerHost](hostIdx)
	g.store.Runners.Replace(runnerIdx, runner)
	return Outcome{}, nil
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// --- project ---

type gitlabForkedFromProject struct {
	ID uint64 `json:"id"`
}

type gitlabProject struct {
	ID                       uint64                   `json:"id"`
	Name                     string                   `json:"name"`
	WebURL                   string                   `json:"web_url"`
	PathWithNamespace        string                   `json:"path_with_namespace"`
	MergeRequestsAccessLevel accessLevel              `json:"merge_requests_access_level"`
	BuildsAccessLevel        accessLevel              `json:"builds_access_level"`
	EnvironmentsAccessLevel  accessLevel              `json:"environments_access_level"`
	ForkedFromProject        *gitlabForkedFromProject `json:"forked_from_project"`
	UpdatedAt                time.Time                `json:"updated_at"`
}

func (g *Gitlab) fetchProjectByPath(ctx context.Context, path string) (gitlabProject, error) {
	var gp gitlabProject
	_, err := g.get(ctx, "/projects/"+url.PathEscape(path), nil, &gp)
	return gp, err
}

func (g *Gitlab) fetchProjectByID(ctx context.Context, id uint64) (gitlabProject, error) {
	var gp gitlabProject
	_, err := g.get(ctx, "/projects/"+strconv.FormatUint(id, 10), nil, &gp)
	return gp, err
}

func (g *Gitlab) updateProjectByName(ctx context.Context, t UpdateProjectByName) (Outcome, error) {
	gp, err := g.fetchProjectByPath(ctx, t.Project)
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}
	return g.applyProject(gp, UpdateProject{Project: gp.ID})
}

func (g *Gitlab) updateProject(ctx context.Context, t UpdateProject) (Outcome, error) {
	gp, err := g.fetchProjectByID(ctx, t.Project)
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}
	return g.applyProject(gp, t)
}

// applyProject stores gp and, when it is newly seen or has changed
// upstream since the last refresh, enqueues discovery of its
// access-level-gated sub-collections. merge_requests_access_level,
// builds_access_level, environments_access_level, and
// forked_from_project only ever exist on this wire shape: they are
// never persisted on the entity.Project record.
func (g *Gitlab) applyProject(gp gitlabProject, self Task) (Outcome, error) {
	var outcome Outcome

	idx, existed := g.store.Projects.Find(func(p entity.Project) bool { return p.ForgeID == gp.ID })
	var fresh bool
	var project entity.Project
	if existed {
		existing, _ := g.store.Projects.Get(idx)
		fresh = !existing.LastRefreshedAt.Before(gp.UpdatedAt)
		project = existing
	} else {
		var err error
		project, err = entity.NewProjectBuilder().
			ForgeID(gp.ID).
			Instance(g.instanceRef()).
			Build()
		if err != nil {
			return Outcome{}, connectionErr(self, err)
		}
	}
	project.Name = gp.Name
	project.URL = gp.WebURL
	project.InstancePath = gp.PathWithNamespace
	project.LastRefreshedAt = time.Now().UTC()
	g.store.StoreProject(project)

	if existed && fresh {
		return outcome, nil
	}

	if gp.MergeRequestsAccessLevel.isEnabled() {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, DiscoverMergeRequests{Project: gp.ID})
	}
	if gp.BuildsAccessLevel.isEnabled() {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks,
			DiscoverPipelineSchedules{Project: gp.ID},
			DiscoverPipelines{Project: gp.ID},
		)
	}
	if gp.EnvironmentsAccessLevel.isEnabled() {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks,
			DiscoverEnvironments{Project: gp.ID},
			DiscoverDeployments{Project: gp.ID},
		)
	}
	if gp.ForkedFromProject != nil {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateProject{Project: gp.ForkedFromProject.ID})
	}
	return outcome, nil
}

func (g *Gitlab) instanceRef() ref.Ref[entity.Instance] {
	idx, ok := g.store.Instances.Find(func(i entity.Instance) bool { return i.UniqueID == g.instance.UniqueID })
	if !ok {
		idx = g.store.Instances.Append(g.instance)
	}
	return ref.Vector[entity.Instance](idx)
}

// --- user ---

type gitlabUserSearchResult struct {
	ID uint64 `json:"id"`
}

type gitlabUser struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PublicEmail string `json:"public_email"`
}

func (g *Gitlab) updateUserByName(ctx context.Context, t UpdateUserByName) (Outcome, error) {
	var results []gitlabUserSearchResult
	if _, err := g.get(ctx, "/users", url.Values{"username": {t.User}}, &results); err != nil {
		return Outcome{}, wrapErr(t, err)
	}
	if len(results) == 0 {
		return Outcome{}, notFoundErr(t, fmt.Errorf("gitlab: no user named %q", t.User))
	}
	return g.updateUser(ctx, UpdateUser{User: results[0].ID})
}

func (g *Gitlab) updateUser(ctx context.Context, t UpdateUser) (Outcome, error) {
	var gu gitlabUser
	if _, err := g.get(ctx, "/users/"+strconv.FormatUint(t.User, 10), nil, &gu); err != nil {
		return Outcome{}, wrapErr(t, err)
	}

	var email *string
	switch {
	case gu.Email != "":
		email = &gu.Email
	case gu.PublicEmail != "":
		email = &gu.PublicEmail
	}

	idx, ok := g.store.Users.Find(func(u entity.User) bool { return u.ForgeID == gu.ID })
	var user entity.User
	if ok {
		user, _ = g.store.Users.Get(idx)
	} else {
		var err error
		user, err = entity.NewUserBuilder().ForgeID(gu.ID).Instance(g.instanceRef()).Build()
		if err != nil {
			return Outcome{}, connectionErr(t, err)
		}
	}
	user.Handle = gu.Username
	user.Name = gu.Name
	user.Email = email
	user.LastRefreshedAt = time.Now().UTC()
	g.store.StoreUser(user)
	return Outcome{}, nil
}

// findUser resolves a forge user ID to a local ref, deferring via
// UpdateUser when it isn't known yet.
func (g *Gitlab) findUser(forgeID uint64) (ref.Ref[entity.User], bool) {
	idx, ok := g.store.Users.Find(func(u entity.User) bool { return u.ForgeID == forgeID })
	if !ok {
		return ref.Ref[entity.User]{}, false
	}
	return ref.Vector[entity.User](idx), true
}

func (g *Gitlab) findProject(forgeID uint64) (ref.Ref[entity.Project], bool) {
	idx, ok := g.store.Projects.Find(func(p entity.Project) bool { return p.ForgeID == forgeID })
	if !ok {
		return ref.Ref[entity.Project]{}, false
	}
	return ref.Vector[entity.Project](idx), true
}

// --- runner ---

type gitlabRunnerListItem struct {
	ID uint64 `json:"id"`
}

type gitlabRunnerDetails struct {
	ID              uint64   `json:"id"`
	Description     string   `json:"description"`
	RunnerType      string   `json:"runner_type"`
	Version         string   `json:"version"`
	Revision        string   `json:"revision"`
	Platform        string   `json:"platform"`
	Architecture    string   `json:"architecture"`
	TagList         []string `json:"tag_list"`
	RunUntagged     bool     `json:"run_untagged"`
	AccessLevel     string   `json:"access_level"`
	MaintenanceNote *string  `json:"maintenance_note"`
	ContactedAt     *time.Time `json:"contacted_at"`
	Paused          bool     `json:"paused"`
	IsShared        bool     `json:"is_shared"`
	Online          bool     `json:"online"`
	Locked          bool     `json:"locked"`
	MaximumTimeout  *uint64  `json:"maximum_timeout"`
	Projects        []gitlabForkedFromProject `json:"projects"`
}

func (g *Gitlab) discoverRunners(ctx context.Context, t DiscoverRunners) (Outcome, error) {
	var outcome Outcome
	err := getPaged[gitlabRunnerListItem](ctx, g, "/runners/all", nil, func(items []gitlabRunnerListItem) {
		for _, it := range items {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateRunner{ID: it.ID})
		}
	})
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}
	return outcome, nil
}

func (g *Gitlab) updateRunner(ctx context.Context, t UpdateRunner) (Outcome, error) {
	var gr gitlabRunnerDetails
	if _, err := g.get(ctx, "/runners/"+strconv.FormatUint(t.ID, 10), nil, &gr); err != nil {
		return Outcome{}, wrapErr(t, err)
	}

	runnerType, err := MapRunnerType(gr.RunnerType)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}
	protection, err := MapRunnerProtectionLevel(gr.AccessLevel)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}

	var outcome Outcome
	var projects []ref.Ref[entity.Project]
	for _, p := range gr.Projects {
		if pr, ok := g.findProject(p.ID); ok {
			projects = append(projects, pr)
		} else {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateProject{Project: p.ID}, t)
		}
	}

	idx, ok := g.store.Runners.Find(func(r entity.Runner) bool { return r.ForgeID == gr.ID })
	var runner entity.Runner
	if ok {
		runner, _ = g.store.Runners.Get(idx)
	} else {
		runner, err = entity.NewRunnerBuilder().
			ForgeID(gr.ID).
			Instance(g.instanceRef()).
			Type(runnerType).
			ProtectionLevel(protection).
			Build()
		if err != nil {
			return Outcome{}, connectionErr(t, err)
		}
	}
	runner.Description = gr.Description
	runner.Type = runnerType
	runner.ProtectionLevel = protection
	runner.Version = gr.Version
	runner.Revision = gr.Revision
	runner.Platform = gr.Platform
	runner.Architecture = gr.Architecture
	runner.Tags = gr.TagList
	runner.RunUntagged = gr.RunUntagged
	runner.MaintenanceNote = gr.MaintenanceNote
	runner.ContactedAt = gr.ContactedAt
	runner.Paused = gr.Paused
	runner.Shared = gr.IsShared
	runner.Online = gr.Online
	runner.Locked = gr.Locked
	runner.MaximumTimeout = gr.MaximumTimeout
	if len(projects) > 0 {
		runner.Projects = projects
	}
	runner.LastRefreshedAt = time.Now().UTC()
	g.store.StoreRunner(runner)
	return outcome, nil
}

// --- pipeline schedule ---

type gitlabPipelineScheduleListItem struct {
	ID uint64 `json:"id"`
}

type gitlabPipelineVariable struct {
	Key          string `json:"key"`
	Value        string `json:"value"`
	VariableType string `json:"variable_type"`
}

type gitlabPipelineScheduleDetails struct {
	ID          uint64                    `json:"id"`
	Description string                    `json:"description"`
	Ref         string                    `json:"ref"`
	Variables   []gitlabPipelineVariable  `json:"variables"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
	Owner       gitlabUserSearchResult    `json:"owner"`
	Active      bool                      `json:"active"`
	NextRunAt   *time.Time                `json:"next_run_at"`
}

func gitlabVariables(vars []gitlabPipelineVariable) (entity.PipelineVariables, error) {
	out := entity.NewPipelineVariables()
	for _, v := range vars {
		typ, err := MapPipelineVariableType(v.VariableType)
		if err != nil {
			return out, err
		}
		built, err := entity.NewPipelineVariableBuilder().Value(v.Value).Type(typ).Build()
		if err != nil {
			return out, err
		}
		out.Set(v.Key, built)
	}
	return out, nil
}

func (g *Gitlab) discoverPipelineSchedules(ctx context.Context, t DiscoverPipelineSchedules) (Outcome, error) {
	var outcome Outcome
	path := fmt.Sprintf("/projects/%d/pipeline_schedules", t.Project)
	err := getPaged[gitlabPipelineScheduleListItem](ctx, g, path, nil, func(items []gitlabPipelineScheduleListItem) {
		for _, it := range items {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdatePipelineSchedule{Project: t.Project, Schedule: it.ID})
		}
	})
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}
	return outcome, nil
}

func (g *Gitlab) updatePipelineSchedule(ctx context.Context, t UpdatePipelineSchedule) (Outcome, error) {
	var gs gitlabPipelineScheduleDetails
	path := fmt.Sprintf("/projects/%d/pipeline_schedules/%d", t.Project, t.Schedule)
	if _, err := g.get(ctx, path, nil, &gs); err != nil {
		return Outcome{}, wrapErr(t, err)
	}

	var outcome Outcome
	userRef, ok := g.findUser(gs.Owner.ID)
	if !ok {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateUser{User: gs.Owner.ID}, t)
	}
	projectRef, ok2 := g.findProject(t.Project)
	if !ok2 {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateProject{Project: t.Project}, t)
	}
	if !ok || !ok2 {
		return outcome, nil
	}

	variables, err := gitlabVariables(gs.Variables)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}

	idx, existing := g.store.PipelineSchedules.Find(func(s entity.PipelineSchedule) bool { return s.ForgeID == gs.ID })
	var schedule entity.PipelineSchedule
	if existing {
		schedule, _ = g.store.PipelineSchedules.Get(idx)
	} else {
		schedule, err = entity.NewPipelineScheduleBuilder().
			ForgeID(gs.ID).
			Project(projectRef).
			Ref(gs.Ref).
			CreatedAt(gs.CreatedAt).
			UpdatedAt(gs.UpdatedAt).
			Owner(userRef).
			Build()
		if err != nil {
			return Outcome{}, connectionErr(t, err)
		}
	}
	schedule.Name = gs.Description
	schedule.Ref = gs.Ref
	schedule.UpdatedAt = gs.UpdatedAt
	schedule.Active = gs.Active
	schedule.NextRun = gs.NextRunAt
	schedule.Owner = userRef
	schedule.Variables = variables
	schedule.LastRefreshedAt = time.Now().UTC()
	g.store.StorePipelineSchedule(schedule)
	return outcome, nil
}

// --- merge request ---

type gitlabMergeRequestListItem struct {
	IID uint64 `json:"iid"`
}

type gitlabMergeRequestDetails struct {
	ID              uint64                 `json:"id"`
	IID             uint64                 `json:"iid"`
	Author          gitlabUserSearchResult `json:"author"`
	WebURL          string                 `json:"web_url"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	State           string                 `json:"state"`
	SourceProjectID *uint64                `json:"source_project_id"`
	SourceBranch    string                 `json:"source_branch"`
	SHA             *string                `json:"sha"`
	TargetProjectID uint64                 `json:"target_project_id"`
	TargetBranch    string                 `json:"target_branch"`
}

func (g *Gitlab) discoverMergeRequests(ctx context.Context, t DiscoverMergeRequests) (Outcome, error) {
	var outcome Outcome
	path := fmt.Sprintf("/projects/%d/merge_requests", t.Project)
	err := getPaged[gitlabMergeRequestListItem](ctx, g, path, nil, func(items []gitlabMergeRequestListItem) {
		for _, it := range items {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateMergeRequest{Project: t.Project, MergeRequest: it.IID})
		}
	})
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}
	return outcome, nil
}

func (g *Gitlab) updateMergeRequest(ctx context.Context, t UpdateMergeRequest) (Outcome, error) {
	var gm gitlabMergeRequestDetails
	path := fmt.Sprintf("/projects/%d/merge_requests/%d", t.Project, t.MergeRequest)
	if _, err := g.get(ctx, path, nil, &gm); err != nil {
		return Outcome{}, wrapErr(t, err)
	}

	var outcome Outcome
	authorRef, okAuthor := g.findUser(gm.Author.ID)
	if !okAuthor {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateUser{User: gm.Author.ID})
	}
	targetRef, okTarget := g.findProject(gm.TargetProjectID)
	if !okTarget {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateProject{Project: gm.TargetProjectID})
	}

	var sourceRef ref.Ref[entity.Project]
	okSource := true
	switch {
	case gm.SourceProjectID == nil:
		sourceRef, okSource = targetRef, okTarget
	case *gm.SourceProjectID == gm.TargetProjectID:
		sourceRef, okSource = targetRef, okTarget
	default:
		sourceRef, okSource = g.findProject(*gm.SourceProjectID)
		if !okSource {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateProject{Project: *gm.SourceProjectID})
		}
	}

	if !okAuthor || !okTarget || !okSource {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, t)
		return outcome, nil
	}

	outcome.AdditionalTasks = append(outcome.AdditionalTasks, DiscoverMergeRequestPipelines{Project: t.Project, MergeRequest: gm.IID})

	status, err := MapMergeRequestStatus(gm.State)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}
	sha := ""
	if gm.SHA != nil {
		sha = *gm.SHA
	}

	idx, existing := g.store.MergeRequests.Find(func(m entity.MergeRequest) bool { return m.ForgeID == gm.ID })
	var mr entity.MergeRequest
	if existing {
		mr, _ = g.store.MergeRequests.Get(idx)
	} else {
		mr, err = entity.NewMergeRequestBuilder().
			ID(gm.IID).
			SourceProject(sourceRef).
			TargetProject(targetRef).
			ForgeID(gm.ID).
			State(status).
			Author(authorRef).
			URL(gm.WebURL).
			Build()
		if err != nil {
			return Outcome{}, connectionErr(t, err)
		}
	}
	mr.SourceBranch = gm.SourceBranch
	mr.SHA = sha
	mr.TargetBranch = gm.TargetBranch
	mr.Title = gm.Title
	mr.Description = gm.Description
	mr.State = status
	mr.LastRefreshedAt = time.Now().UTC()
	g.store.StoreMergeRequest(mr)
	return outcome, nil
}

// --- pipeline ---

type gitlabPipelineListItem struct {
	ID        uint64 `json:"id"`
	ProjectID uint64 `json:"project_id"`
}

type gitlabPipelineDetails struct {
	ID          uint64                  `json:"id"`
	ProjectID   uint64                  `json:"project_id"`
	Name        *string                 `json:"name"`
	SHA         string                  `json:"sha"`
	PreviousSHA *string                 `json:"previous_sha"`
	Ref         *string                 `json:"ref"`
	Source      string                  `json:"source"`
	User        *gitlabUserSearchResult `json:"user"`
	Status      string                  `json:"status"`
	Coverage    any                     `json:"coverage"`
	WebURL      string                  `json:"web_url"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	StartedAt   *time.Time              `json:"started_at"`
	FinishedAt  *time.Time              `json:"finished_at"`
}

func (g *Gitlab) discoverPipelines(ctx context.Context, t DiscoverPipelines) (Outcome, error) {
	var outcome Outcome
	path := fmt.Sprintf("/projects/%d/pipelines", t.Project)
	err := getPaged[gitlabPipelineListItem](ctx, g, path, nil, func(items []gitlabPipelineListItem) {
		for _, it := range items {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdatePipeline{Project: it.ProjectID, Pipeline: it.ID})
		}
	})
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}
	return outcome, nil
}

func (g *Gitlab) discoverMergeRequestPipelines(ctx context.Context, t DiscoverMergeRequestPipelines) (Outcome, error) {
	var outcome Outcome
	path := fmt.Sprintf("/projects/%d/merge_requests/%d/pipelines", t.Project, t.MergeRequest)
	err := getPaged[gitlabPipelineListItem](ctx, g, path, nil, func(items []gitlabPipelineListItem) {
		for _, it := range items {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdatePipeline{Project: it.ProjectID, Pipeline: it.ID})
		}
	})
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}
	return outcome, nil
}

func (g *Gitlab) updatePipeline(ctx context.Context, t UpdatePipeline) (Outcome, error) {
	var gp gitlabPipelineDetails
	path := fmt.Sprintf("/projects/%d/pipelines/%d", t.Project, t.Pipeline)
	if _, err := g.get(ctx, path, nil, &gp); err != nil {
		return Outcome{}, wrapErr(t, err)
	}

	var outcome Outcome
	var userRef ref.Ref[entity.User]
	var hasUser bool
	if gp.User != nil {
		var ok bool
		userRef, ok = g.findUser(gp.User.ID)
		if !ok {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateUser{User: gp.User.ID})
		} else {
			hasUser = true
		}
	}
	projectRef, okProject := g.findProject(gp.ProjectID)
	if !okProject {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateProject{Project: gp.ProjectID})
	}
	if !okProject || (gp.User != nil && !hasUser) {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, t)
		return outcome, nil
	}

	outcome.AdditionalTasks = append(outcome.AdditionalTasks, DiscoverJobs{Project: gp.ProjectID, Pipeline: gp.ID})

	status, err := MapPipelineStatus(gp.Status)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}
	source, err := MapPipelineSource(gp.Source)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}
	coverage, err := ParseCoverage(gp.Coverage)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}
	refname := "refs/UNKNOWN"
	if gp.Ref != nil {
		refname = *gp.Ref
	}
	stable := fmt.Sprintf("refs/pipelines/%d", gp.ID)

	idx, existing := g.store.Pipelines.Find(func(p entity.Pipeline) bool { return p.ForgeID == gp.ID })
	var pipeline entity.Pipeline
	if existing {
		pipeline, _ = g.store.Pipelines.Get(idx)
	} else {
		b := entity.NewPipelineBuilder().
			ForgeID(gp.ID).
			Project(projectRef).
			SHA(gp.SHA).
			PreviousSHA(gp.PreviousSHA).
			Refname(&refname).
			StableRefname(&stable).
			Source(source).
			Status(status).
			URL(gp.WebURL).
			CreatedAt(gp.CreatedAt).
			UpdatedAt(gp.UpdatedAt).
			Name(gp.Name)
		pipeline, err = b.Build()
		if err != nil {
			return Outcome{}, connectionErr(t, err)
		}
	}
	pipeline.Status = status
	pipeline.Coverage = coverage
	if hasUser {
		pipeline.User = userRef
	}
	pipeline.StartedAt = gp.StartedAt
	pipeline.FinishedAt = gp.FinishedAt
	pipeline.LastRefreshedAt = time.Now().UTC()
	g.store.StorePipeline(pipeline)
	return outcome, nil
}

// --- environment ---

type gitlabEnvironmentListItem struct {
	ID uint64 `json:"id"`
}

type gitlabEnvironmentDetails struct {
	ID          uint64     `json:"id"`
	Name        string     `json:"name"`
	ExternalURL string     `json:"external_url"`
	State       string     `json:"state"`
	Tier        string     `json:"tier"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	AutoStopAt  *time.Time `json:"auto_stop_at"`
}

func (g *Gitlab) discoverEnvironments(ctx context.Context, t DiscoverEnvironments) (Outcome, error) {
	var outcome Outcome
	path := fmt.Sprintf("/projects/%d/environments", t.Project)
	err := getPaged[gitlabEnvironmentListItem](ctx, g, path, nil, func(items []gitlabEnvironmentListItem) {
		for _, it := range items {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateEnvironment{Project: t.Project, Environment: it.ID})
		}
	})
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}
	return outcome, nil
}

func (g *Gitlab) updateEnvironment(ctx context.Context, t UpdateEnvironment) (Outcome, error) {
	var ge gitlabEnvironmentDetails
	path := fmt.Sprintf("/projects/%d/environments/%d", t.Project, t.Environment)
	if _, err := g.get(ctx, path, nil, &ge); err != nil {
		return Outcome{}, wrapErr(t, err)
	}

	projectRef, ok := g.findProject(t.Project)
	if !ok {
		return Outcome{AdditionalTasks: []Task{UpdateProject{Project: t.Project}, t}}, nil
	}

	state, err := MapEnvironmentState(ge.State)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}
	tier, mapErr := MapEnvironmentTier(ge.Tier)
	if mapErr != nil {
		tier = entity.EnvironmentTierOther
	}

	idx, existing := g.store.Environments.Find(func(e entity.Environment) bool { return e.ForgeID == ge.ID })
	var environment entity.Environment
	if existing {
		environment, _ = g.store.Environments.Get(idx)
	} else {
		environment, err = entity.NewEnvironmentBuilder().
			Name(ge.Name).
			ExternalURL(ge.ExternalURL).
			State(state).
			Tier(tier).
			ForgeID(ge.ID).
			Project(projectRef).
			CreatedAt(ge.CreatedAt).
			UpdatedAt(ge.UpdatedAt).
			Build()
		if err != nil {
			return Outcome{}, connectionErr(t, err)
		}
	}
	environment.Name = ge.Name
	environment.ExternalURL = ge.ExternalURL
	environment.State = state
	environment.Tier = tier
	environment.UpdatedAt = ge.UpdatedAt
	environment.AutoStopAt = ge.AutoStopAt
	environment.LastRefreshedAt = time.Now().UTC()
	g.store.StoreEnvironment(environment)
	return Outcome{}, nil
}

// --- deployment ---

type gitlabDeploymentListItem struct {
	ID uint64 `json:"id"`
}

type gitlabDeploymentEnvironment struct {
	ID uint64 `json:"id"`
}

type gitlabDeploymentPipeline struct {
	ID        uint64 `json:"id"`
	ProjectID uint64 `json:"project_id"`
}

type gitlabDeploymentDetails struct {
	ID          uint64                      `json:"id"`
	Status      string                      `json:"status"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
	FinishedAt  *time.Time                  `json:"finished_at"`
	Environment gitlabDeploymentEnvironment `json:"environment"`
	Pipeline    gitlabDeploymentPipeline    `json:"pipeline"`
}

func (g *Gitlab) discoverDeployments(ctx context.Context, t DiscoverDeployments) (Outcome, error) {
	var outcome Outcome
	path := fmt.Sprintf("/projects/%d/deployments", t.Project)
	err := getPaged[gitlabDeploymentListItem](ctx, g, path, nil, func(items []gitlabDeploymentListItem) {
		for _, it := range items {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateDeployment{Project: t.Project, Deployment: it.ID})
		}
	})
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}
	return outcome, nil
}

func (g *Gitlab) updateDeployment(ctx context.Context, t UpdateDeployment) (Outcome, error) {
	var gd gitlabDeploymentDetails
	path := fmt.Sprintf("/projects/%d/deployments/%d", t.Project, t.Deployment)
	if _, err := g.get(ctx, path, nil, &gd); err != nil {
		return Outcome{}, wrapErr(t, err)
	}

	var outcome Outcome
	envIdx, okEnv := g.store.Environments.Find(func(e entity.Environment) bool { return e.ForgeID == gd.Environment.ID })
	if !okEnv {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateEnvironment{Project: t.Project, Environment: gd.Environment.ID})
	}
	pipelineIdx, okPipeline := g.store.Pipelines.Find(func(p entity.Pipeline) bool { return p.ForgeID == gd.Pipeline.ID })
	if !okPipeline {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdatePipeline{Project: gd.Pipeline.ProjectID, Pipeline: gd.Pipeline.ID})
	}
	if !okEnv || !okPipeline {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, t)
		return outcome, nil
	}

	status, err := MapDeploymentStatus(gd.Status)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}

	idx, existing := g.store.Deployments.Find(func(d entity.Deployment) bool { return d.ForgeID == gd.ID })
	var deployment entity.Deployment
	if existing {
		deployment, _ = g.store.Deployments.Get(idx)
	} else {
		deployment, err = entity.NewDeploymentBuilder().
			Pipeline(ref.Vector[entity.Pipeline](pipelineIdx)).
			Environment(ref.Vector[entity.Environment](envIdx)).
			ForgeID(gd.ID).
			CreatedAt(gd.CreatedAt).
			UpdatedAt(gd.UpdatedAt).
			Status(status).
			Build()
		if err != nil {
			return Outcome{}, connectionErr(t, err)
		}
	}
	deployment.Status = status
	deployment.UpdatedAt = gd.UpdatedAt
	deployment.FinishedAt = gd.FinishedAt
	deployment.LastRefreshedAt = time.Now().UTC()
	g.store.StoreDeployment(deployment)
	return outcome, nil
}

// --- job ---

type gitlabJobListItem struct {
	ID uint64 `json:"id"`
}

type gitlabJobArtifactItem struct {
	FileType   string `json:"file_type"`
	Size       uint64 `json:"size"`
	Filename   string `json:"filename"`
	FileFormat string `json:"file_format"`
}

type gitlabJobDetails struct {
	ID              uint64                  `json:"id"`
	User            gitlabUserSearchResult  `json:"user"`
	Name            string                  `json:"name"`
	Stage           string                  `json:"stage"`
	Status          string                  `json:"status"`
	AllowFailure    bool                    `json:"allow_failure"`
	TagList         []string                `json:"tag_list"`
	WebURL          string                  `json:"web_url"`
	Pipeline        gitlabDeploymentPipeline `json:"pipeline"`
	Runner          *gitlabRunnerListItem   `json:"runner"`
	CreatedAt       time.Time               `json:"created_at"`
	StartedAt       *time.Time              `json:"started_at"`
	FinishedAt      *time.Time              `json:"finished_at"`
	ErasedAt        *time.Time              `json:"erased_at"`
	QueuedDuration  *float64                `json:"queued_duration"`
	Archived        bool                    `json:"archived"`
	Coverage        any                     `json:"coverage"`
	Artifacts       []gitlabJobArtifactItem `json:"artifacts"`
	ArtifactsExpireAt *time.Time            `json:"artifacts_expire_at"`
}

func (g *Gitlab) discoverJobs(ctx context.Context, t DiscoverJobs) (Outcome, error) {
	var outcome Outcome
	path := fmt.Sprintf("/projects/%d/pipelines/%d/jobs", t.Project, t.Pipeline)
	query := url.Values{"include_retried": {"true"}}
	err := getPaged[gitlabJobListItem](ctx, g, path, query, func(items []gitlabJobListItem) {
		for _, it := range items {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateJob{Project: t.Project, Job: it.ID})
		}
	})
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}
	return outcome, nil
}

func (g *Gitlab) fetchJobDetails(ctx context.Context, project, job uint64) (gitlabJobDetails, error) {
	var gj gitlabJobDetails
	path := fmt.Sprintf("/projects/%d/jobs/%d", project, job)
	_, err := g.get(ctx, path, nil, &gj)
	return gj, err
}

func (g *Gitlab) updateJob(ctx context.Context, t UpdateJob) (Outcome, error) {
	gj, err := g.fetchJobDetails(ctx, t.Project, t.Job)
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}

	var outcome Outcome
	userRef, okUser := g.findUser(gj.User.ID)
	if !okUser {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateUser{User: gj.User.ID})
	}
	pipelineIdx, okPipeline := g.store.Pipelines.Find(func(p entity.Pipeline) bool { return p.ForgeID == gj.Pipeline.ID })
	if !okPipeline {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdatePipeline{Project: gj.Pipeline.ProjectID, Pipeline: gj.Pipeline.ID})
	}
	var runnerRef ref.Ref[entity.Runner]
	if gj.Runner != nil {
		var ok bool
		runnerRef, ok = g.findRunner(gj.Runner.ID)
		if !ok {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateRunner{ID: gj.Runner.ID})
		}
	}

	if !okUser || !okPipeline {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, t)
		return outcome, nil
	}

	state, err := MapJobState(gj.Status)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}
	coverage, err := ParseCoverage(gj.Coverage)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}

	idx, existing := g.store.Jobs.Find(func(j entity.Job) bool { return j.ForgeID == gj.ID })
	var job entity.Job
	if existing {
		job, _ = g.store.Jobs.Get(idx)
	} else {
		job, err = entity.NewJobBuilder().
			User(userRef).
			State(state).
			CreatedAt(gj.CreatedAt).
			RunnerRef(runnerRef).
			ForgeID(gj.ID).
			Pipeline(ref.Vector[entity.Pipeline](pipelineIdx)).
			Name(gj.Name).
			Stage(gj.Stage).
			AllowFailure(gj.AllowFailure).
			Tags(gj.TagList).
			URL(gj.WebURL).
			Build()
		if err != nil {
			return Outcome{}, connectionErr(t, err)
		}
	}
	job.State = state
	job.StartedAt = gj.StartedAt
	job.FinishedAt = gj.FinishedAt
	job.ErasedAt = gj.ErasedAt
	job.QueuedDuration = gj.QueuedDuration
	job.Archived = gj.Archived
	job.Coverage = coverage
	job.LastRefreshedAt = time.Now().UTC()
	g.store.StoreJob(job)

	if len(gj.Artifacts) > 0 {
		outcome.AdditionalTasks = append(outcome.AdditionalTasks, UpdateJobArtifacts{Project: t.Project, Job: gj.ID})
	}
	return outcome, nil
}

func (g *Gitlab) findRunner(forgeID uint64) (ref.Ref[entity.Runner], bool) {
	idx, ok := g.store.Runners.Find(func(r entity.Runner) bool { return r.ForgeID == forgeID })
	if !ok {
		return ref.Ref[entity.Runner]{}, false
	}
	return ref.Vector[entity.Runner](idx), true
}

// artifactKindFromFileType maps GitLab's artifact file_type to the
// model's ArtifactKind, treating anything unrecognized as a custom
// artifact named after the file type.
func artifactKindFromFileType(fileType string) entity.ArtifactKind {
	switch fileType {
	case "trace":
		return entity.ArtifactKindJobLog
	case "archive":
		return entity.ArtifactKindArchive
	case "junit":
		return entity.ArtifactKindJUnit
	case "annotations":
		return entity.ArtifactKindAnnotations
	default:
		return entity.CustomArtifact(fileType)
	}
}

// updateJobArtifacts re-reads the job's artifact listing (GitLab
// exposes it only as a field of the job resource, not a nested
// collection) and upserts one JobArtifact record per entry. Each
// artifact's UniqueID is derived from the job, file type and filename, since
// GitLab never assigns artifacts an ID of their own.
func (g *Gitlab) updateJobArtifacts(ctx context.Context, t UpdateJobArtifacts) (Outcome, error) {
	gj, err := g.fetchJobDetails(ctx, t.Project, t.Job)
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}

	jobIdx, ok := g.store.Jobs.Find(func(j entity.Job) bool { return j.ForgeID == gj.ID })
	if !ok {
		return Outcome{AdditionalTasks: []Task{UpdateJob{Project: t.Project, Job: t.Job}, t}}, nil
	}
	jobRef := ref.Vector[entity.Job](jobIdx)

	expiry := entity.ArtifactExpirationUnknown
	if gj.ArtifactsExpireAt != nil {
		expiry = entity.ArtifactExpiresAt(*gj.ArtifactsExpireAt)
	}

	var outcome Outcome
	for _, art := range gj.Artifacts {
		uniqueID := fnvHash(fmt.Sprintf("%d:%s:%s", gj.ID, art.FileType, art.Filename))
		kind := artifactKindFromFileType(art.FileType)

		idx, existing := g.store.JobArtifacts.Find(func(a entity.JobArtifact) bool { return a.UniqueID == uniqueID })
		var artifact entity.JobArtifact
		if existing {
			artifact, _ = g.store.JobArtifacts.Get(idx)
		} else {
			artifact, err = entity.NewJobArtifactBuilder().
				Kind(kind).
				Name(art.Filename).
				Size(art.Size).
				UniqueID(uniqueID).
				Job(jobRef).
				Build()
			if err != nil {
				return Outcome{}, connectionErr(t, err)
			}
		}
		artifact.State = entity.ArtifactStatePresent
		artifact.ExpireAt = expiry
		artifact.Size = art.Size
		g.store.StoreJobArtifact(artifact)

		if artifact.Blob == nil {
			outcome.AdditionalTasks = append(outcome.AdditionalTasks, FetchJobArtifact{
				Project:  t.Project,
				Job:      t.Job,
				Artifact: uniqueID,
			})
		}
	}
	return outcome, nil
}

// fetchJobArtifact downloads either the whole archive or, when
// SubArtifact names one, a single file out of it, and stores the
// result as a content-addressed blob.
func (g *Gitlab) fetchJobArtifact(ctx context.Context, t FetchJobArtifact) (Outcome, error) {
	idx, ok := g.store.JobArtifacts.Find(func(a entity.JobArtifact) bool { return a.UniqueID == t.Artifact })
	if !ok {
		return Outcome{}, notFoundErr(t, fmt.Errorf("gitlab: unknown artifact %d", t.Artifact))
	}
	artifact, _ := g.store.JobArtifacts.Get(idx)

	path := fmt.Sprintf("/projects/%d/jobs/%d/artifacts", t.Project, t.Job)
	if t.SubArtifact != nil {
		path = fmt.Sprintf("/projects/%d/jobs/%d/artifacts/%s", t.Project, t.Job, *t.SubArtifact)
	}
	data, err := g.getBytes(ctx, path)
	if err != nil {
		return Outcome{}, wrapErr(t, err)
	}

	blobRef, err := g.blobs.Put(ctx, data, entity.ContentHashSHA256)
	if err != nil {
		return Outcome{}, connectionErr(t, err)
	}
	artifact.Blob = &blobRef
	artifact.State = entity.ArtifactStateStored
	artifact.Size = uint64(len(data))
	g.store.StoreJobArtifact(artifact)
	return Outcome{}, nil
}
