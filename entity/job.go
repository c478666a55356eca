package entity

import (
	"time"

	"github.com/ehrlich-b/cinch/ref"
)

// JobState is the lifecycle state of a job.
type JobState uint8

const (
	JobStateCreated JobState = iota
	JobStatePending
	JobStateRunning
	JobStateFailed
	JobStateSuccess
	JobStateCanceled
	JobStateSkipped
	JobStateWaitingForResource
	JobStateManual
	JobStateScheduled
)

var jobStateNames = map[JobState]string{
	JobStateCreated:            "created",
	JobStatePending:            "pending",
	JobStateRunning:            "running",
	JobStateFailed:             "failed",
	JobStateSuccess:            "success",
	JobStateCanceled:           "canceled",
	JobStateSkipped:            "skipped",
	JobStateWaitingForResource: "waiting_for_resource",
	JobStateManual:             "manual",
	JobStateScheduled:          "scheduled",
}

func (s JobState) String() string {
	if name, ok := jobStateNames[s]; ok {
		return name
	}
	return "unknown"
}

func ParseJobState(s string) (JobState, bool) {
	for k, v := range jobStateNames {
		if v == s {
			return k, true
		}
	}
	return 0, false
}

func (s JobState) MarshalJSON() ([]byte, error) { return marshalEnumJSON(s.String()) }

func (s *JobState) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "JobState", func(str string) (int, bool) {
		js, ok := ParseJobState(str)
		return int(js), ok
	})
	if err != nil {
		return err
	}
	*s = JobState(v)
	return nil
}

// Job is a single unit of work within a pipeline.
type Job struct {
	Name          string
	Stage         string
	AllowFailure  bool
	User          ref.Ref[User]
	Tags          []string
	Variables     PipelineVariables

	State           JobState
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
	ErasedAt        *time.Time
	QueuedDuration  *float64
	Runner          ref.Ref[Runner]
	Deployment      ref.Ref[Deployment]

	ForgeID  uint64
	Archived bool
	URL      string
	Pipeline ref.Ref[Pipeline]

	Coverage *float64

	FirstFetchedAt  time.Time
	LastRefreshedAt time.Time
}

type JobBuilder struct {
	v            Job
	hasUser      bool
	hasState     bool
	hasCreatedAt bool
	hasForgeID   bool
	hasPipeline  bool
}

func NewJobBuilder() *JobBuilder {
	return &JobBuilder{v: Job{Variables: NewPipelineVariables()}}
}

func (b *JobBuilder) Name(name string) *JobBuilder {
	b.v.Name = name
	return b
}

func (b *JobBuilder) Stage(stage string) *JobBuilder {
	b.v.Stage = stage
	return b
}

func (b *JobBuilder) AllowFailure(allow bool) *JobBuilder {
	b.v.AllowFailure = allow
	return b
}

func (b *JobBuilder) User(user ref.Ref[User]) *JobBuilder {
	b.v.User = user
	b.hasUser = true
	return b
}

func (b *JobBuilder) Tags(tags []string) *JobBuilder {
	b.v.Tags = tags
	return b
}

func (b *JobBuilder) Variables(vars PipelineVariables) *JobBuilder {
	b.v.Variables = vars
	return b
}

func (b *JobBuilder) State(s JobState) *JobBuilder {
	b.v.State = s
	b.hasState = true
	return b
}

func (b *JobBuilder) CreatedAt(t time.Time) *JobBuilder {
	b.v.CreatedAt = t
	b.hasCreatedAt = true
	return b
}

func (b *JobBuilder) StartedAt(t *time.Time) *JobBuilder {
	b.v.StartedAt = t
	return b
}

func (b *JobBuilder) FinishedAt(t *time.Time) *JobBuilder {
	b.v.FinishedAt = t
	return b
}

func (b *JobBuilder) ErasedAt(t *time.Time) *JobBuilder {
	b.v.ErasedAt = t
	return b
}

func (b *JobBuilder) QueuedDuration(d *float64) *JobBuilder {
	b.v.QueuedDuration = d
	return b
}

func (b *JobBuilder) RunnerRef(r ref.Ref[Runner]) *JobBuilder {
	b.v.Runner = r
	return b
}

func (b *JobBuilder) DeploymentRef(d ref.Ref[Deployment]) *JobBuilder {
	b.v.Deployment = d
	return b
}

func (b *JobBuilder) ForgeID(id uint64) *JobBuilder {
	b.v.ForgeID = id
	b.hasForgeID = true
	return b
}

func (b *JobBuilder) Archived(a bool) *JobBuilder {
	b.v.Archived = a
	return b
}

func (b *JobBuilder) URL(url string) *JobBuilder {
	b.v.URL = url
	return b
}

func (b *JobBuilder) Pipeline(p ref.Ref[Pipeline]) *JobBuilder {
	b.v.Pipeline = p
	b.hasPipeline = true
	return b
}

func (b *JobBuilder) Coverage(c *float64) *JobBuilder {
	b.v.Coverage = c
	return b
}

func (b *JobBuilder) Build() (Job, error) {
	if !b.hasUser {
		return Job{}, uninitialized("Job", "user")
	}
	if !b.hasState {
		return Job{}, uninitialized("Job", "state")
	}
	if !b.hasCreatedAt {
		return Job{}, uninitialized("Job", "created_at")
	}
	if !b.hasForgeID {
		return Job{}, uninitialized("Job", "forge_id")
	}
	if !b.hasPipeline {
		return Job{}, uninitialized("Job", "pipeline")
	}
	now := time.Now().UTC()
	b.v.FirstFetchedAt = now
	b.v.LastRefreshedAt = now
	return b.v, nil
}
