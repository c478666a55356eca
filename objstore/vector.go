package objstore

import (
	"github.com/ehrlich-b/cinch/entity"
	"github.com/ehrlich-b/cinch/ref"
)

// VectorStore is the discoverable Object Store backend: every record
// type is a dense Table, and its Ref is a stable integer index that
// survives across process runs once persisted.
type VectorStore struct {
	Instances         *Table[entity.Instance]
	Projects          *Table[entity.Project]
	Users             *Table[entity.User]
	RunnerHosts       *Table[entity.RunnerHost]
	Runners           *Table[entity.Runner]
	MergeRequests     *Table[entity.MergeRequest]
	PipelineSchedules *Table[entity.PipelineSchedule]
	Pipelines         *Table[entity.Pipeline]
	Environments      *Table[entity.Environment]
	Deployments       *Table[entity.Deployment]
	Jobs              *Table[entity.Job]
	JobArtifacts      *Table[entity.JobArtifact]
}

// NewVectorStore returns an empty store with every type's table
// allocated.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		Instances:         NewTable[entity.Instance](),
		Projects:          NewTable[entity.Project](),
		Users:             NewTable[entity.User](),
		RunnerHosts:       NewTable[entity.RunnerHost](),
		Runners:           NewTable[entity.Runner](),
		MergeRequests:     NewTable[entity.MergeRequest](),
		PipelineSchedules: NewTable[entity.PipelineSchedule](),
		Pipelines:         NewTable[entity.Pipeline](),
		Environments:      NewTable[entity.Environment](),
		Deployments:       NewTable[entity.Deployment](),
		Jobs:              NewTable[entity.Job](),
		JobArtifacts:      NewTable[entity.JobArtifact](),
	}
}

// StoreInstance inserts or, if one with the same UniqueID already
// exists, replaces an instance.
func (s *VectorStore) StoreInstance(v entity.Instance) ref.Ref[entity.Instance] {
	idx := upsert(s.Instances, v, func(e entity.Instance) bool { return e.UniqueID == v.UniqueID })
	return ref.Vector[entity.Instance](idx)
}

func (s *VectorStore) LookupInstance(r ref.Ref[entity.Instance]) (entity.Instance, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.Instance
		return zero, false
	}
	return s.Instances.Get(r.VectorIndex())
}

func (s *VectorStore) AllInstanceRefs() []ref.Ref[entity.Instance] {
	refs := make([]ref.Ref[entity.Instance], s.Instances.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.Instance](i)
	}
	return refs
}

// StoreProject inserts or replaces a project keyed by ForgeID.
func (s *VectorStore) StoreProject(v entity.Project) ref.Ref[entity.Project] {
	idx := upsert(s.Projects, v, func(e entity.Project) bool { return e.ForgeID == v.ForgeID })
	return ref.Vector[entity.Project](idx)
}

func (s *VectorStore) LookupProject(r ref.Ref[entity.Project]) (entity.Project, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.Project
		return zero, false
	}
	return s.Projects.Get(r.VectorIndex())
}

func (s *VectorStore) AllProjectRefs() []ref.Ref[entity.Project] {
	refs := make([]ref.Ref[entity.Project], s.Projects.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.Project](i)
	}
	return refs
}

// StoreUser inserts or replaces a user keyed by ForgeID.
func (s *VectorStore) StoreUser(v entity.User) ref.Ref[entity.User] {
	idx := upsert(s.Users, v, func(e entity.User) bool { return e.ForgeID == v.ForgeID })
	return ref.Vector[entity.User](idx)
}

func (s *VectorStore) LookupUser(r ref.Ref[entity.User]) (entity.User, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.User
		return zero, false
	}
	return s.Users.Get(r.VectorIndex())
}

func (s *VectorStore) AllUserRefs() []ref.Ref[entity.User] {
	refs := make([]ref.Ref[entity.User], s.Users.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.User](i)
	}
	return refs
}

// StoreRunnerHost inserts or replaces a runner host keyed by UniqueID.
func (s *VectorStore) StoreRunnerHost(v entity.RunnerHost) ref.Ref[entity.RunnerHost] {
	idx := upsert(s.RunnerHosts, v, func(e entity.RunnerHost) bool { return e.UniqueID == v.UniqueID })
	return ref.Vector[entity.RunnerHost](idx)
}

func (s *VectorStore) LookupRunnerHost(r ref.Ref[entity.RunnerHost]) (entity.RunnerHost, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.RunnerHost
		return zero, false
	}
	return s.RunnerHosts.Get(r.VectorIndex())
}

func (s *VectorStore) AllRunnerHostRefs() []ref.Ref[entity.RunnerHost] {
	refs := make([]ref.Ref[entity.RunnerHost], s.RunnerHosts.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.RunnerHost](i)
	}
	return refs
}

// StoreRunner inserts or replaces a runner keyed by ForgeID.
func (s *VectorStore) StoreRunner(v entity.Runner) ref.Ref[entity.Runner] {
	idx := upsert(s.Runners, v, func(e entity.Runner) bool { return e.ForgeID == v.ForgeID })
	return ref.Vector[entity.Runner](idx)
}

func (s *VectorStore) LookupRunner(r ref.Ref[entity.Runner]) (entity.Runner, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.Runner
		return zero, false
	}
	return s.Runners.Get(r.VectorIndex())
}

func (s *VectorStore) AllRunnerRefs() []ref.Ref[entity.Runner] {
	refs := make([]ref.Ref[entity.Runner], s.Runners.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.Runner](i)
	}
	return refs
}

// StoreMergeRequest inserts or replaces a merge request keyed by ForgeID.
func (s *VectorStore) StoreMergeRequest(v entity.MergeRequest) ref.Ref[entity.MergeRequest] {
	idx := upsert(s.MergeRequests, v, func(e entity.MergeRequest) bool { return e.ForgeID == v.ForgeID })
	return ref.Vector[entity.MergeRequest](idx)
}

func (s *VectorStore) LookupMergeRequest(r ref.Ref[entity.MergeRequest]) (entity.MergeRequest, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.MergeRequest
		return zero, false
	}
	return s.MergeRequests.Get(r.VectorIndex())
}

func (s *VectorStore) AllMergeRequestRefs() []ref.Ref[entity.MergeRequest] {
	refs := make([]ref.Ref[entity.MergeRequest], s.MergeRequests.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.MergeRequest](i)
	}
	return refs
}

// StorePipelineSchedule inserts or replaces a schedule keyed by ForgeID.
func (s *VectorStore) StorePipelineSchedule(v entity.PipelineSchedule) ref.Ref[entity.PipelineSchedule] {
	idx := upsert(s.PipelineSchedules, v, func(e entity.PipelineSchedule) bool { return e.ForgeID == v.ForgeID })
	return ref.Vector[entity.PipelineSchedule](idx)
}

func (s *VectorStore) LookupPipelineSchedule(r ref.Ref[entity.PipelineSchedule]) (entity.PipelineSchedule, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.PipelineSchedule
		return zero, false
	}
	return s.PipelineSchedules.Get(r.VectorIndex())
}

func (s *VectorStore) AllPipelineScheduleRefs() []ref.Ref[entity.PipelineSchedule] {
	refs := make([]ref.Ref[entity.PipelineSchedule], s.PipelineSchedules.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.PipelineSchedule](i)
	}
	return refs
}

// StorePipeline inserts or replaces a pipeline keyed by ForgeID.
func (s *VectorStore) StorePipeline(v entity.Pipeline) ref.Ref[entity.Pipeline] {
	idx := upsert(s.Pipelines, v, func(e entity.Pipeline) bool { return e.ForgeID == v.ForgeID })
	return ref.Vector[entity.Pipeline](idx)
}

func (s *VectorStore) LookupPipeline(r ref.Ref[entity.Pipeline]) (entity.Pipeline, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.Pipeline
		return zero, false
	}
	return s.Pipelines.Get(r.VectorIndex())
}

func (s *VectorStore) AllPipelineRefs() []ref.Ref[entity.Pipeline] {
	refs := make([]ref.Ref[entity.Pipeline], s.Pipelines.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.Pipeline](i)
	}
	return refs
}

// StoreEnvironment inserts or replaces an environment keyed by ForgeID.
func (s *VectorStore) StoreEnvironment(v entity.Environment) ref.Ref[entity.Environment] {
	idx := upsert(s.Environments, v, func(e entity.Environment) bool { return e.ForgeID == v.ForgeID })
	return ref.Vector[entity.Environment](idx)
}

func (s *VectorStore) LookupEnvironment(r ref.Ref[entity.Environment]) (entity.Environment, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.Environment
		return zero, false
	}
	return s.Environments.Get(r.VectorIndex())
}

func (s *VectorStore) AllEnvironmentRefs() []ref.Ref[entity.Environment] {
	refs := make([]ref.Ref[entity.Environment], s.Environments.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.Environment](i)
	}
	return refs
}

// StoreDeployment inserts or replaces a deployment keyed by ForgeID.
func (s *VectorStore) StoreDeployment(v entity.Deployment) ref.Ref[entity.Deployment] {
	idx := upsert(s.Deployments, v, func(e entity.Deployment) bool { return e.ForgeID == v.ForgeID })
	return ref.Vector[entity.Deployment](idx)
}

func (s *VectorStore) LookupDeployment(r ref.Ref[entity.Deployment]) (entity.Deployment, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.Deployment
		return zero, false
	}
	return s.Deployments.Get(r.VectorIndex())
}

func (s *VectorStore) AllDeploymentRefs() []ref.Ref[entity.Deployment] {
	refs := make([]ref.Ref[entity.Deployment], s.Deployments.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.Deployment](i)
	}
	return refs
}

// StoreJob inserts or replaces a job keyed by ForgeID.
func (s *VectorStore) StoreJob(v entity.Job) ref.Ref[entity.Job] {
	idx := upsert(s.Jobs, v, func(e entity.Job) bool { return e.ForgeID == v.ForgeID })
	return ref.Vector[entity.Job](idx)
}

func (s *VectorStore) LookupJob(r ref.Ref[entity.Job]) (entity.Job, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.Job
		return zero, false
	}
	return s.Jobs.Get(r.VectorIndex())
}

func (s *VectorStore) AllJobRefs() []ref.Ref[entity.Job] {
	refs := make([]ref.Ref[entity.Job], s.Jobs.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.Job](i)
	}
	return refs
}

// StoreJobArtifact inserts or replaces an artifact keyed by UniqueID.
func (s *VectorStore) StoreJobArtifact(v entity.JobArtifact) ref.Ref[entity.JobArtifact] {
	idx := upsert(s.JobArtifacts, v, func(e entity.JobArtifact) bool { return e.UniqueID == v.UniqueID })
	return ref.Vector[entity.JobArtifact](idx)
}

func (s *VectorStore) LookupJobArtifact(r ref.Ref[entity.JobArtifact]) (entity.JobArtifact, bool) {
	if r.Kind() != ref.KindVector {
		var zero entity.JobArtifact
		return zero, false
	}
	return s.JobArtifacts.Get(r.VectorIndex())
}

func (s *VectorStore) AllJobArtifactRefs() []ref.Ref[entity.JobArtifact] {
	refs := make([]ref.Ref[entity.JobArtifact], s.JobArtifacts.Len())
	for i := range refs {
		refs[i] = ref.Vector[entity.JobArtifact](i)
	}
	return refs
}
