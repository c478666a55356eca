package objstore

import (
	"github.com/ehrlich-b/cinch/entity"
	"github.com/ehrlich-b/cinch/ref"
)

// internTable holds records behind stable pointers: Store on an existing
// record mutates the backing allocation in place, so every Ref obtained
// earlier observes the update. This is the Go analogue of the upstream
// Arc<T>-based backend.
type internTable[T any] struct {
	rows []*T
}

func (t *internTable[T]) find(identity func(T) bool) (*T, bool) {
	for _, p := range t.rows {
		if identity(*p) {
			return p, true
		}
	}
	return nil, false
}

func (t *internTable[T]) upsert(v T, identity func(T) bool) *T {
	if p, ok := t.find(identity); ok {
		*p = v
		return p
	}
	cp := v
	t.rows = append(t.rows, &cp)
	return &cp
}

func (t *internTable[T]) all() []*T {
	return t.rows
}

// InternStore is the non-discoverable Object Store backend: records are
// addressed by shared pointer rather than index, so it has no stable
// on-disk representation and exists for in-process callers that need
// mutate-through-reference semantics (e.g. updating a Project's
// last_refreshed_at while other goroutines hold a Ref to it).
type InternStore struct {
	instances         internTable[entity.Instance]
	projects          internTable[entity.Project]
	users             internTable[entity.User]
	runnerHosts       internTable[entity.RunnerHost]
	runners           internTable[entity.Runner]
	mergeRequests     internTable[entity.MergeRequest]
	pipelineSchedules internTable[entity.PipelineSchedule]
	pipelines         internTable[entity.Pipeline]
	environments      internTable[entity.Environment]
	deployments       internTable[entity.Deployment]
	jobs              internTable[entity.Job]
	jobArtifacts      internTable[entity.JobArtifact]
}

// NewInternStore returns an empty store.
func NewInternStore() *InternStore {
	return &InternStore{}
}

func (s *InternStore) StoreInstance(v entity.Instance) ref.Ref[entity.Instance] {
	p := s.instances.upsert(v, func(e entity.Instance) bool { return e.UniqueID == v.UniqueID })
	return ref.Intern(p)
}

func (s *InternStore) LookupInstance(r ref.Ref[entity.Instance]) (entity.Instance, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.Instance
		return zero, false
	}
	return *r.InternPtr(), true
}

func (s *InternStore) StoreProject(v entity.Project) ref.Ref[entity.Project] {
	p := s.projects.upsert(v, func(e entity.Project) bool { return e.ForgeID == v.ForgeID })
	return ref.Intern(p)
}

func (s *InternStore) LookupProject(r ref.Ref[entity.Project]) (entity.Project, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.Project
		return zero, false
	}
	return *r.InternPtr(), true
}

func (s *InternStore) StoreUser(v entity.User) ref.Ref[entity.User] {
	p := s.users.upsert(v, func(e entity.User) bool { return e.ForgeID == v.ForgeID })
	return ref.Intern(p)
}

func (s *InternStore) LookupUser(r ref.Ref[entity.User]) (entity.User, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.User
		return zero, false
	}
	return *r.InternPtr(), true
}

func (s *InternStore) StoreRunnerHost(v entity.RunnerHost) ref.Ref[entity.RunnerHost] {
	p := s.runnerHosts.upsert(v, func(e entity.RunnerHost) bool { return e.UniqueID == v.UniqueID })
	return ref.Intern(p)
}

func (s *InternStore) LookupRunnerHost(r ref.Ref[entity.RunnerHost]) (entity.RunnerHost, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.RunnerHost
		return zero, false
	}
	return *r.InternPtr(), true
}

func (s *InternStore) StoreRunner(v entity.Runner) ref.Ref[entity.Runner] {
	p := s.runners.upsert(v, func(e entity.Runner) bool { return e.ForgeID == v.ForgeID })
	return ref.Intern(p)
}

func (s *InternStore) LookupRunner(r ref.Ref[entity.Runner]) (entity.Runner, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.Runner
		return zero, false
	}
	return *r.InternPtr(), true
}

func (s *InternStore) StoreMergeRequest(v entity.MergeRequest) ref.Ref[entity.MergeRequest] {
	p := s.mergeRequests.upsert(v, func(e entity.MergeRequest) bool { return e.ForgeID == v.ForgeID })
	return ref.Intern(p)
}

func (s *InternStore) LookupMergeRequest(r ref.Ref[entity.MergeRequest]) (entity.MergeRequest, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.MergeRequest
		return zero, false
	}
	return *r.InternPtr(), true
}

func (s *InternStore) StorePipelineSchedule(v entity.PipelineSchedule) ref.Ref[entity.PipelineSchedule] {
	p := s.pipelineSchedules.upsert(v, func(e entity.PipelineSchedule) bool { return e.ForgeID == v.ForgeID })
	return ref.Intern(p)
}

func (s *InternStore) LookupPipelineSchedule(r ref.Ref[entity.PipelineSchedule]) (entity.PipelineSchedule, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.PipelineSchedule
		return zero, false
	}
	return *r.InternPtr(), true
}

func (s *InternStore) StorePipeline(v entity.Pipeline) ref.Ref[entity.Pipeline] {
	p := s.pipelines.upsert(v, func(e entity.Pipeline) bool { return e.ForgeID == v.ForgeID })
	return ref.Intern(p)
}

func (s *InternStore) LookupPipeline(r ref.Ref[entity.Pipeline]) (entity.Pipeline, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.Pipeline
		return zero, false
	}
	return *r.InternPtr(), true
}

func (s *InternStore) StoreEnvironment(v entity.Environment) ref.Ref[entity.Environment] {
	p := s.environments.upsert(v, func(e entity.Environment) bool { return e.ForgeID == v.ForgeID })
	return ref.Intern(p)
}

func (s *InternStore) LookupEnvironment(r ref.Ref[entity.Environment]) (entity.Environment, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.Environment
		return zero, false
	}
	return *r.InternPtr(), true
}

func (s *InternStore) StoreDeployment(v entity.Deployment) ref.Ref[entity.Deployment] {
	p := s.deployments.upsert(v, func(e entity.Deployment) bool { return e.ForgeID == v.ForgeID })
	return ref.Intern(p)
}

func (s *InternStore) LookupDeployment(r ref.Ref[entity.Deployment]) (entity.Deployment, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.Deployment
		return zero, false
	}
	return *r.InternPtr(), true
}

func (s *InternStore) StoreJob(v entity.Job) ref.Ref[entity.Job] {
	p := s.jobs.upsert(v, func(e entity.Job) bool { return e.ForgeID == v.ForgeID })
	return ref.Intern(p)
}

func (s *InternStore) LookupJob(r ref.Ref[entity.Job]) (entity.Job, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.Job
		return zero, false
	}
	return *r.InternPtr(), true
}

func (s *InternStore) StoreJobArtifact(v entity.JobArtifact) ref.Ref[entity.JobArtifact] {
	p := s.jobArtifacts.upsert(v, func(e entity.JobArtifact) bool { return e.UniqueID == v.UniqueID })
	return ref.Intern(p)
}

func (s *InternStore) LookupJobArtifact(r ref.Ref[entity.JobArtifact]) (entity.JobArtifact, bool) {
	if r.Kind() != ref.KindIntern || r.InternPtr() == nil {
		var zero entity.JobArtifact
		return zero, false
	}
	return *r.InternPtr(), true
}
