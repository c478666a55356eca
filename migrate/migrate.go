// Package migrate copies every record in a source object store into a
// sink object store, translating each record's references from
// source indices to the indices the sink assigned when storing their
// referents. Blob content is never touched here; callers that also
// need blob payloads in the new store copy the blob store separately.
package migrate

import (
	"fmt"

	"github.com/ehrlich-b/cinch/entity"
	"github.com/ehrlich-b/cinch/objstore"
	"github.com/ehrlich-b/cinch/ref"
)

// DuplicateSourceIndexError means the same source index was recorded
// twice while migrating a type, which would silently point later
// translations at the wrong sink record.
type DuplicateSourceIndexError struct {
	Type  string
	Index int
}

func (e *DuplicateSourceIndexError) Error() string {
	return fmt.Sprintf("migrate: %s: duplicate source index %d", e.Type, e.Index)
}

// MissingDataError means a source index was recorded but the backing
// table has no row for it, which should only happen against a
// corrupted or hand-edited store.
type MissingDataError struct {
	Type  string
	Index int
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("migrate: %s: missing data for source index %d", e.Type, e.Index)
}

// DanglingSourceIndexError means a record references a source index
// of another type that was never translated, so the new store would
// have a reference that resolves to nothing.
type DanglingSourceIndexError struct {
	Type  string
	Field string
	Index int
}

func (e *DanglingSourceIndexError) Error() string {
	return fmt.Sprintf("migrate: %s.%s: dangling source index %d", e.Type, e.Field, e.Index)
}

// PipelineCycleError means a set of pipelines reference each other as
// parents in a cycle, so no pass could ever translate them all. A
// correctly formed store never produces this; ParentPipeline must
// form a DAG.
type PipelineCycleError struct {
	RemainingSourceIndices []int
}

func (e *PipelineCycleError) Error() string {
	return fmt.Sprintf("migrate: %d pipelines form a parent-pipeline cycle: %v", len(e.RemainingSourceIndices), e.RemainingSourceIndices)
}

// indexMap remembers, for one entity type, which sink index a source
// index was translated to.
type indexMap map[int]int

// Maps exposes the per-type source-to-sink index translation recorded
// by a completed Migrate, in case a caller needs to translate
// something outside the entity graph (e.g. a blob store keyed by the
// same job or artifact indices).
type Maps struct {
	Instances         indexMap
	RunnerHosts       indexMap
	Users             indexMap
	Projects          indexMap
	Runners           indexMap
	MergeRequests     indexMap
	PipelineSchedules indexMap
	Pipelines         indexMap
	Environments      indexMap
	Deployments       indexMap
	Jobs              indexMap
	JobArtifacts      indexMap
}

func newMaps() *Maps {
	return &Maps{
		Instances:         indexMap{},
		RunnerHosts:       indexMap{},
		Users:             indexMap{},
		Projects:          indexMap{},
		Runners:           indexMap{},
		MergeRequests:     indexMap{},
		PipelineSchedules: indexMap{},
		Pipelines:         indexMap{},
		Environments:      indexMap{},
		Deployments:       indexMap{},
		Jobs:              indexMap{},
		JobArtifacts:      indexMap{},
	}
}

// Migrate copies every record in src into sink in topological order
// (Instance, RunnerHost, User, Project, Runner, MergeRequest,
// PipelineSchedule, Pipeline, Environment, Deployment, Job,
// JobArtifact), translating every reference field along the way, and
// returns the index maps the translation produced. sink does not need
// to be empty; existing sink records keep their indices and newly
// migrated records are appended after them.
func Migrate(src, sink *objstore.VectorStore) (*Maps, error) {
	m := newMaps()

	if err := migrateInstances(src, sink, m); err != nil {
		return nil, err
	}
	if err := migrateRunnerHosts(src, sink, m); err != nil {
		return nil, err
	}
	if err := migrateUsers(src, sink, m); err != nil {
		return nil, err
	}
	if err := migrateProjects(src, sink, m); err != nil {
		return nil, err
	}
	if err := migrateRunners(src, sink, m); err != nil {
		return nil, err
	}
	if err := migrateMergeRequests(src, sink, m); err != nil {
		return nil, err
	}
	if err := migratePipelineSchedules(src, sink, m); err != nil {
		return nil, err
	}
	if err := migratePipelines(src, sink, m); err != nil {
		return nil, err
	}
	if err := migrateEnvironments(src, sink, m); err != nil {
		return nil, err
	}
	if err := migrateDeployments(src, sink, m); err != nil {
		return nil, err
	}
	if err := migrateJobs(src, sink, m); err != nil {
		return nil, err
	}
	if err := migrateJobArtifacts(src, sink, m); err != nil {
		return nil, err
	}

	return m, nil
}

// recordSourceIndex is the first step of migrating any one record:
// note which source index is being processed, rejecting a repeat.
func recordSourceIndex(typ string, seen map[int]bool, idx int) error {
	if seen[idx] {
		return &DuplicateSourceIndexError{Type: typ, Index: idx}
	}
	seen[idx] = true
	return nil
}

// translateRequired maps a reference field that must be set. An
// unset source ref, or one whose source index was never translated,
// is a dangling reference.
func translateRequired[T any](m indexMap, r ref.Ref[T], typ, field string) (ref.Ref[T], error) {
	if !r.Valid() || r.Kind() != ref.KindVector {
		return ref.Ref[T]{}, &DanglingSourceIndexError{Type: typ, Field: field, Index: -1}
	}
	sinkIdx, ok := m[r.VectorIndex()]
	if !ok {
		return ref.Ref[T]{}, &DanglingSourceIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
	}
	return ref.Vector[T](sinkIdx), nil
}

// translateOptional maps a reference field that may be unset. An
// unset ref passes through as unset; a set ref whose source index was
// never translated is still a dangling reference.
func translateOptional[T any](m indexMap, r ref.Ref[T], typ, field string) (ref.Ref[T], error) {
	if !r.Valid() {
		return ref.Ref[T]{}, nil
	}
	if r.Kind() != ref.KindVector {
		return ref.Ref[T]{}, &DanglingSourceIndexError{Type: typ, Field: field, Index: -1}
	}
	sinkIdx, ok := m[r.VectorIndex()]
	if !ok {
		return ref.Ref[T]{}, &DanglingSourceIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
	}
	return ref.Vector[T](sinkIdx), nil
}

func migrateInstances(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	for _, r := range src.AllInstanceRefs() {
		idx := r.VectorIndex()
		if err := recordSourceIndex("Instance", seen, idx); err != nil {
			return err
		}
		v, ok := src.LookupInstance(r)
		if !ok {
			return &MissingDataError{Type: "Instance", Index: idx}
		}
		nv, err := entity.NewInstanceBuilder().
			UniqueID(v.UniqueID).
			Forge(v.Forge).
			URL(v.URL).
			Build()
		if err != nil {
			return err
		}
		m.Instances[idx] = sink.StoreInstance(nv).VectorIndex()
	}
	return nil
}

func migrateRunnerHosts(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	for _, r := range src.AllRunnerHostRefs() {
		idx := r.VectorIndex()
		if err := recordSourceIndex("RunnerHost", seen, idx); err != nil {
			return err
		}
		v, ok := src.LookupRunnerHost(r)
		if !ok {
			return &MissingDataError{Type: "RunnerHost", Index: idx}
		}
		nv, err := entity.NewRunnerHostBuilder().
			Name(v.Name).
			UniqueID(v.UniqueID).
			OS(v.OS).
			OSVersion(v.OSVersion).
			Management(v.Management).
			Location(v.Location).
			EstimatedCostPerHour(v.EstimatedCostPerHour).
			Build()
		if err != nil {
			return err
		}
		m.RunnerHosts[idx] = sink.StoreRunnerHost(nv).VectorIndex()
	}
	return nil
}

func migrateUsers(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	for _, r := range src.AllUserRefs() {
		idx := r.VectorIndex()
		if err := recordSourceIndex("User", seen, idx); err != nil {
			return err
		}
		v, ok := src.LookupUser(r)
		if !ok {
			return &MissingDataError{Type: "User", Index: idx}
		}
		instance, err := translateRequired(m.Instances, v.Instance, "User", "instance")
		if err != nil {
			return err
		}
		nv, err := entity.NewUserBuilder().
			Handle(v.Handle).
			Name(v.Name).
			Email(v.Email).
			Avatar(v.Avatar).
			ForgeID(v.ForgeID).
			Instance(instance).
			Build()
		if err != nil {
			return err
		}
		m.Users[idx] = sink.StoreUser(nv).VectorIndex()
	}
	return nil
}

func migrateProjects(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	for _, r := range src.AllProjectRefs() {
		idx := r.VectorIndex()
		if err := recordSourceIndex("Project", seen, idx); err != nil {
			return err
		}
		v, ok := src.LookupProject(r)
		if !ok {
			return &MissingDataError{Type: "Project", Index: idx}
		}
		instance, err := translateRequired(m.Instances, v.Instance, "Project", "instance")
		if err != nil {
			return err
		}
		nv, err := entity.NewProjectBuilder().
			Name(v.Name).
			ForgeID(v.ForgeID).
			URL(v.URL).
			Instance(instance).
			InstancePath(v.InstancePath).
			Build()
		if err != nil {
			return err
		}
		m.Projects[idx] = sink.StoreProject(nv).VectorIndex()
	}
	return nil
}

func migrateRunners(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	for _, r := range src.AllRunnerRefs() {
		idx := r.VectorIndex()
		if err := recordSourceIndex("Runner", seen, idx); err != nil {
			return err
		}
		v, ok := src.LookupRunner(r)
		if !ok {
			return &MissingDataError{Type: "Runner", Index: idx}
		}
		instance, err := translateRequired(m.Instances, v.Instance, "Runner", "instance")
		if err != nil {
			return err
		}
		host, err := translateOptional(m.RunnerHosts, v.RunnerHost, "Runner", "runner_host")
		if err != nil {
			return err
		}
		projects := make([]ref.Ref[entity.Project], len(v.Projects))
		for i, p := range v.Projects {
			tp, err := translateOptional(m.Projects, p, "Runner", "projects")
			if err != nil {
				return err
			}
			projects[i] = tp
		}
		nv, err := entity.NewRunnerBuilder().
			Description(v.Description).
			Type(v.Type).
			MaximumTimeout(v.MaximumTimeout).
			ProtectionLevel(v.ProtectionLevel).
			Implementation(v.Implementation).
			Version(v.Version).
			Revision(v.Revision).
			Platform(v.Platform).
			Architecture(v.Architecture).
			Tags(v.Tags).
			RunUntagged(v.RunUntagged).
			Projects(projects).
			ForgeID(v.ForgeID).
			Paused(v.Paused).
			Shared(v.Shared).
			Online(v.Online).
			Locked(v.Locked).
			ContactedAt(v.ContactedAt).
			MaintenanceNote(v.MaintenanceNote).
			Instance(instance).
			RunnerHostRef(host).
			Build()
		if err != nil {
			return err
		}
		m.Runners[idx] = sink.StoreRunner(nv).VectorIndex()
	}
	return nil
}

func migrateMergeRequests(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	for _, r := range src.AllMergeRequestRefs() {
		idx := r.VectorIndex()
		if err := recordSourceIndex("MergeRequest", seen, idx); err != nil {
			return err
		}
		v, ok := src.LookupMergeRequest(r)
		if !ok {
			return &MissingDataError{Type: "MergeRequest", Index: idx}
		}
		sourceProject, err := translateRequired(m.Projects, v.SourceProject, "MergeRequest", "source_project")
		if err != nil {
			return err
		}
		targetProject, err := translateRequired(m.Projects, v.TargetProject, "MergeRequest", "target_project")
		if err != nil {
			return err
		}
		author, err := translateRequired(m.Users, v.Author, "MergeRequest", "author")
		if err != nil {
			return err
		}
		nv, err := entity.NewMergeRequestBuilder().
			ID(v.ID).
			SourceProject(sourceProject).
			SourceBranch(v.SourceBranch).
			SHA(v.SHA).
			TargetProject(targetProject).
			TargetBranch(v.TargetBranch).
			ForgeID(v.ForgeID).
			Title(v.Title).
			Description(v.Description).
			State(v.State).
			Author(author).
			URL(v.URL).
			Build()
		if err != nil {
			return err
		}
		m.MergeRequests[idx] = sink.StoreMergeRequest(nv).VectorIndex()
	}
	return nil
}

func migratePipelineSchedules(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	for _, r := range src.AllPipelineScheduleRefs() {
		idx := r.VectorIndex()
		if err := recordSourceIndex("PipelineSchedule", seen, idx); err != nil {
			return err
		}
		v, ok := src.LookupPipelineSchedule(r)
		if !ok {
			return &MissingDataError{Type: "PipelineSchedule", Index: idx}
		}
		project, err := translateRequired(m.Projects, v.Project, "PipelineSchedule", "project")
		if err != nil {
			return err
		}
		owner, err := translateRequired(m.Users, v.Owner, "PipelineSchedule", "owner")
		if err != nil {
			return err
		}
		nv, err := entity.NewPipelineScheduleBuilder().
			Name(v.Name).
			Project(project).
			Ref(v.Ref).
			Variables(v.Variables).
			ForgeID(v.ForgeID).
			CreatedAt(v.CreatedAt).
			UpdatedAt(v.UpdatedAt).
			Owner(owner).
			Active(v.Active).
			NextRun(v.NextRun).
			Build()
		if err != nil {
			return err
		}
		m.PipelineSchedules[idx] = sink.StorePipelineSchedule(nv).VectorIndex()
	}
	return nil
}

// migratePipelines handles ParentPipeline, the one self-referential
// field in the entity graph: a pipeline may name another pipeline not
// yet translated as its parent. Pending pipelines are retried in
// further passes until every one translates or a pass makes no
// progress, which means the remaining set forms a cycle.
func migratePipelines(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	allRefs := src.AllPipelineRefs()
	for _, r := range allRefs {
		if err := recordSourceIndex("Pipeline", seen, r.VectorIndex()); err != nil {
			return err
		}
	}

	pending := make([]int, len(allRefs))
	for i, r := range allRefs {
		pending[i] = r.VectorIndex()
	}

	for len(pending) > 0 {
		var next []int
		for _, idx := range pending {
			v, ok := src.LookupPipeline(ref.Vector[entity.Pipeline](idx))
			if !ok {
				return &MissingDataError{Type: "Pipeline", Index: idx}
			}

			var parent ref.Ref[entity.Pipeline]
			if v.ParentPipeline.Valid() {
				sinkIdx, ok := m.Pipelines[v.ParentPipeline.VectorIndex()]
				if !ok {
					next = append(next, idx)
					continue
				}
				parent = ref.Vector[entity.Pipeline](sinkIdx)
			}

			project, err := translateRequired(m.Projects, v.Project, "Pipeline", "project")
			if err != nil {
				return err
			}
			schedule, err := translateOptional(m.PipelineSchedules, v.Schedule, "Pipeline", "schedule")
			if err != nil {
				return err
			}
			mergeRequest, err := translateOptional(m.MergeRequests, v.MergeRequest, "Pipeline", "merge_request")
			if err != nil {
				return err
			}
			user, err := translateOptional(m.Users, v.User, "Pipeline", "user")
			if err != nil {
				return err
			}

			nv, err := entity.NewPipelineBuilder().
				Name(v.Name).
				Project(project).
				SHA(v.SHA).
				PreviousSHA(v.PreviousSHA).
				Refname(v.Refname).
				StableRefname(v.StableRefname).
				Source(v.Source).
				ScheduleRef(schedule).
				ParentPipelineRef(parent).
				MergeRequestRef(mergeRequest).
				Variables(v.Variables).
				UserRef(user).
				Status(v.Status).
				Coverage(v.Coverage).
				ForgeID(v.ForgeID).
				URL(v.URL).
				Archived(v.Archived).
				CreatedAt(v.CreatedAt).
				UpdatedAt(v.UpdatedAt).
				StartedAt(v.StartedAt).
				FinishedAt(v.FinishedAt).
				Build()
			if err != nil {
				return err
			}
			m.Pipelines[idx] = sink.StorePipeline(nv).VectorIndex()
		}

		if len(next) == len(pending) {
			return &PipelineCycleError{RemainingSourceIndices: next}
		}
		pending = next
	}
	return nil
}

func migrateEnvironments(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	for _, r := range src.AllEnvironmentRefs() {
		idx := r.VectorIndex()
		if err := recordSourceIndex("Environment", seen, idx); err != nil {
			return err
		}
		v, ok := src.LookupEnvironment(r)
		if !ok {
			return &MissingDataError{Type: "Environment", Index: idx}
		}
		project, err := translateRequired(m.Projects, v.Project, "Environment", "project")
		if err != nil {
			return err
		}
		nv, err := entity.NewEnvironmentBuilder().
			Name(v.Name).
			ExternalURL(v.ExternalURL).
			State(v.State).
			Tier(v.Tier).
			ForgeID(v.ForgeID).
			Project(project).
			CreatedAt(v.CreatedAt).
			UpdatedAt(v.UpdatedAt).
			AutoStopAt(v.AutoStopAt).
			Build()
		if err != nil {
			return err
		}
		m.Environments[idx] = sink.StoreEnvironment(nv).VectorIndex()
	}
	return nil
}

func migrateDeployments(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	for _, r := range src.AllDeploymentRefs() {
		idx := r.VectorIndex()
		if err := recordSourceIndex("Deployment", seen, idx); err != nil {
			return err
		}
		v, ok := src.LookupDeployment(r)
		if !ok {
			return &MissingDataError{Type: "Deployment", Index: idx}
		}
		pipeline, err := translateRequired(m.Pipelines, v.Pipeline, "Deployment", "pipeline")
		if err != nil {
			return err
		}
		environment, err := translateRequired(m.Environments, v.Environment, "Deployment", "environment")
		if err != nil {
			return err
		}
		nv, err := entity.NewDeploymentBuilder().
			Pipeline(pipeline).
			Environment(environment).
			ForgeID(v.ForgeID).
			CreatedAt(v.CreatedAt).
			UpdatedAt(v.UpdatedAt).
			FinishedAt(v.FinishedAt).
			Status(v.Status).
			Build()
		if err != nil {
			return err
		}
		m.Deployments[idx] = sink.StoreDeployment(nv).VectorIndex()
	}
	return nil
}

func migrateJobs(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	for _, r := range src.AllJobRefs() {
		idx := r.VectorIndex()
		if err := recordSourceIndex("Job", seen, idx); err != nil {
			return err
		}
		v, ok := src.LookupJob(r)
		if !ok {
			return &MissingDataError{Type: "Job", Index: idx}
		}
		user, err := translateRequired(m.Users, v.User, "Job", "user")
		if err != nil {
			return err
		}
		pipeline, err := translateRequired(m.Pipelines, v.Pipeline, "Job", "pipeline")
		if err != nil {
			return err
		}
		runner, err := translateOptional(m.Runners, v.Runner, "Job", "runner")
		if err != nil {
			return err
		}
		deployment, err := translateOptional(m.Deployments, v.Deployment, "Job", "deployment")
		if err != nil {
			return err
		}
		nv, err := entity.NewJobBuilder().
			Name(v.Name).
			Stage(v.Stage).
			AllowFailure(v.AllowFailure).
			User(user).
			Tags(v.Tags).
			Variables(v.Variables).
			State(v.State).
			CreatedAt(v.CreatedAt).
			StartedAt(v.StartedAt).
			FinishedAt(v.FinishedAt).
			ErasedAt(v.ErasedAt).
			QueuedDuration(v.QueuedDuration).
			RunnerRef(runner).
			DeploymentRef(deployment).
			ForgeID(v.ForgeID).
			Archived(v.Archived).
			URL(v.URL).
			Pipeline(pipeline).
			Coverage(v.Coverage).
			Build()
		if err != nil {
			return err
		}
		m.Jobs[idx] = sink.StoreJob(nv).VectorIndex()
	}
	return nil
}

func migrateJobArtifacts(src, sink *objstore.VectorStore, m *Maps) error {
	seen := map[int]bool{}
	for _, r := range src.AllJobArtifactRefs() {
		idx := r.VectorIndex()
		if err := recordSourceIndex("JobArtifact", seen, idx); err != nil {
			return err
		}
		v, ok := src.LookupJobArtifact(r)
		if !ok {
			return &MissingDataError{Type: "JobArtifact", Index: idx}
		}
		job, err := translateRequired(m.Jobs, v.Job, "JobArtifact", "job")
		if err != nil {
			return err
		}
		nv, err := entity.NewJobArtifactBuilder().
			State(v.State).
			Kind(v.Kind).
			ExpireAt(v.ExpireAt).
			Name(v.Name).
			Blob(v.Blob).
			Size(v.Size).
			UniqueID(v.UniqueID).
			Job(job).
			Build()
		if err != nil {
			return err
		}
		m.JobArtifacts[idx] = sink.StoreJobArtifact(nv).VectorIndex()
	}
	return nil
}
