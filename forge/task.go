// Package forge adapts one polling cycle of forge-specific REST calls to
// the task-shaped interface the scheduler drives. Every task names the
// forge instance it targets implicitly: a Forge value is already bound
// to one instance, and RunTask never crosses instances.
package forge

// Kind identifies a task's concrete type for logging and ledger
// entries, mirroring the tagged envelope style used for worker
// protocol messages.
type Kind string

const (
	KindDiscoverStaleData             Kind = "discover_stale_data"
	KindUpdateRunnerHost              Kind = "update_runner_host"
	KindAssignRunnerToHost            Kind = "assign_runner_to_host"
	KindUpdateProjectByName           Kind = "update_project_by_name"
	KindUpdateProject                Kind = "update_project"
	KindUpdateUserByName              Kind = "update_user_by_name"
	KindUpdateUser                    Kind = "update_user"
	KindDiscoverRunners               Kind = "discover_runners"
	KindUpdateRunner                  Kind = "update_runner"
	KindDiscoverPipelineSchedules     Kind = "discover_pipeline_schedules"
	KindUpdatePipelineSchedule        Kind = "update_pipeline_schedule"
	KindDiscoverMergeRequests         Kind = "discover_merge_requests"
	KindUpdateMergeRequest            Kind = "update_merge_request"
	KindDiscoverPipelines             Kind = "discover_pipelines"
	KindDiscoverMergeRequestPipelines Kind = "discover_merge_request_pipelines"
	KindUpdatePipeline                Kind = "update_pipeline"
	KindDiscoverEnvironments          Kind = "discover_environments"
	KindUpdateEnvironment             Kind = "update_environment"
	KindDiscoverDeployments           Kind = "discover_deployments"
	KindUpdateDeployment              Kind = "update_deployment"
	KindDiscoverJobs                  Kind = "discover_jobs"
	KindUpdateJob                     Kind = "update_job"
	KindUpdateJobArtifacts            Kind = "update_job_artifacts"
	KindFetchJobArtifact              Kind = "fetch_job_artifact"
)

// Task is any unit of work the scheduler can enqueue and hand to a
// Forge's RunTask. Every concrete task type below implements it.
type Task interface {
	TaskKind() Kind
}

// RunnerHostData is what an adapter gathers about a machine that
// executes jobs, prior to it being merged into a stored RunnerHost.
type RunnerHostData struct {
	OS                   string
	OSVersion            string
	Management           string
	Location             string
	EstimatedCostPerHour *float64
}

// DiscoverStaleData asks the adapter to look for local records whose
// LastRefreshedAt has fallen far enough behind to warrant a refresh,
// independent of any specific project. The GitLab adapter accepts it
// and does nothing: no stale-record search is implemented.
type DiscoverStaleData struct{}

func (DiscoverStaleData) TaskKind() Kind { return KindDiscoverStaleData }

// UpdateRunnerHost merges freshly observed host data into the host
// named name, creating it if it doesn't exist yet.
type UpdateRunnerHost struct {
	Name string
	Data RunnerHostData
}

func (UpdateRunnerHost) TaskKind() Kind { return KindUpdateRunnerHost }

// AssignRunnerToHost records that a runner executes on a particular
// host, once both sides are known locally.
type AssignRunnerToHost struct {
	Runner uint64
	Host   string
}

func (AssignRunnerToHost) TaskKind() Kind { return KindAssignRunnerToHost }

// UpdateProjectByName resolves a project by its forge path (e.g.
// "group/subgroup/project") and refreshes it.
type UpdateProjectByName struct {
	Project string
}

func (UpdateProjectByName) TaskKind() Kind { return KindUpdateProjectByName }

// UpdateProject refreshes a project already known by forge ID.
type UpdateProject struct {
	Project uint64
}

func (UpdateProject) TaskKind() Kind { return KindUpdateProject }

// UpdateUserByName resolves a user by forge handle and refreshes it.
type UpdateUserByName struct {
	User string
}

func (UpdateUserByName) TaskKind() Kind { return KindUpdateUserByName }

// UpdateUser refreshes a user already known by forge ID.
type UpdateUser struct {
	User uint64
}

func (UpdateUser) TaskKind() Kind { return KindUpdateUser }

// DiscoverRunners lists every runner visible to the adapter's
// credentials and enqueues an UpdateRunner per forge ID found.
type DiscoverRunners struct{}

func (DiscoverRunners) TaskKind() Kind { return KindDiscoverRunners }

// UpdateRunner refreshes a single runner by forge ID.
type UpdateRunner struct {
	ID uint64
}

func (UpdateRunner) TaskKind() Kind { return KindUpdateRunner }

// DiscoverPipelineSchedules lists a project's schedules.
type DiscoverPipelineSchedules struct {
	Project uint64
}

func (DiscoverPipelineSchedules) TaskKind() Kind { return KindDiscoverPipelineSchedules }

// UpdatePipelineSchedule refreshes one schedule of a project.
type UpdatePipelineSchedule struct {
	Project  uint64
	Schedule uint64
}

func (UpdatePipelineSchedule) TaskKind() Kind { return KindUpdatePipelineSchedule }

// DiscoverMergeRequests lists a project's merge requests; the listing
// request sends no state filter.
type DiscoverMergeRequests struct {
	Project uint64
}

func (DiscoverMergeRequests) TaskKind() Kind { return KindDiscoverMergeRequests }

// UpdateMergeRequest refreshes one merge request of a project.
type UpdateMergeRequest struct {
	Project      uint64
	MergeRequest uint64
}

func (UpdateMergeRequest) TaskKind() Kind { return KindUpdateMergeRequest }

// DiscoverPipelines lists a project's recent pipelines.
type DiscoverPipelines struct {
	Project uint64
}

func (DiscoverPipelines) TaskKind() Kind { return KindDiscoverPipelines }

// DiscoverMergeRequestPipelines lists the pipelines run against one
// merge request, which a project-wide pipeline listing can miss for
// forks.
type DiscoverMergeRequestPipelines struct {
	Project      uint64
	MergeRequest uint64
}

func (DiscoverMergeRequestPipelines) TaskKind() Kind { return KindDiscoverMergeRequestPipelines }

// UpdatePipeline refreshes one pipeline of a project.
type UpdatePipeline struct {
	Project  uint64
	Pipeline uint64
}

func (UpdatePipeline) TaskKind() Kind { return KindUpdatePipeline }

// DiscoverEnvironments lists a project's deployment environments.
type DiscoverEnvironments struct {
	Project uint64
}

func (DiscoverEnvironments) TaskKind() Kind { return KindDiscoverEnvironments }

// UpdateEnvironment refreshes one environment of a project.
type UpdateEnvironment struct {
	Project     uint64
	Environment uint64
}

func (UpdateEnvironment) TaskKind() Kind { return KindUpdateEnvironment }

// DiscoverDeployments lists a project's deployments.
type DiscoverDeployments struct {
	Project uint64
}

func (DiscoverDeployments) TaskKind() Kind { return KindDiscoverDeployments }

// UpdateDeployment refreshes one deployment of a project.
type UpdateDeployment struct {
	Project    uint64
	Deployment uint64
}

func (UpdateDeployment) TaskKind() Kind { return KindUpdateDeployment }

// DiscoverJobs lists the jobs of one pipeline.
type DiscoverJobs struct {
	Project  uint64
	Pipeline uint64
}

func (DiscoverJobs) TaskKind() Kind { return KindDiscoverJobs }

// UpdateJob refreshes one job of a project.
type UpdateJob struct {
	Project uint64
	Job     uint64
}

func (UpdateJob) TaskKind() Kind { return KindUpdateJob }

// UpdateJobArtifacts lists the artifacts attached to a job and
// enqueues a FetchJobArtifact for each one not already stored.
type UpdateJobArtifacts struct {
	Project uint64
	Job     uint64
}

func (UpdateJobArtifacts) TaskKind() Kind { return KindUpdateJobArtifacts }

// FetchJobArtifact downloads one artifact's bytes into the blob store.
// SubArtifact names a file within an archive artifact, when only part
// of it is wanted (e.g. a single file out of a zipped report bundle).
type FetchJobArtifact struct {
	Project     uint64
	Job         uint64
	Artifact    uint64
	SubArtifact *string
}

func (FetchJobArtifact) TaskKind() Kind { return KindFetchJobArtifact }
