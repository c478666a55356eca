package entity

import (
	"time"

	"github.com/ehrlich-b/cinch/ref"
)

// PipelineSource is the reason a pipeline was created.
type PipelineSource uint8

const (
	PipelineSourceAPI PipelineSource = iota
	PipelineSourceChat
	PipelineSourceExternal
	PipelineSourceExternalPullRequestEvent
	PipelineSourceMergeRequestEvent
	PipelineSourceOnDemandDastScan
	PipelineSourceOnDemandDastValidation
	PipelineSourceParentPipeline
	PipelineSourcePipeline
	PipelineSourcePush
	PipelineSourceSchedule
	PipelineSourceSecurityOrchestrationPolicy
	PipelineSourceTrigger
	PipelineSourceWeb
	PipelineSourceWebIde
)

var pipelineSourceNames = map[PipelineSource]string{
	PipelineSourceAPI:                         "api",
	PipelineSourceChat:                        "chat",
	PipelineSourceExternal:                    "external",
	PipelineSourceExternalPullRequestEvent:    "external_pull_request_event",
	PipelineSourceMergeRequestEvent:           "merge_request_event",
	PipelineSourceOnDemandDastScan:            "on_demand_dast_scan",
	PipelineSourceOnDemandDastValidation:      "on_demand_dast_validation",
	PipelineSourceParentPipeline:              "parent_pipeline",
	PipelineSourcePipeline:                    "pipeline",
	PipelineSourcePush:                        "push",
	PipelineSourceSchedule:                    "schedule",
	PipelineSourceSecurityOrchestrationPolicy: "security_orchestration_policy",
	PipelineSourceTrigger:                     "trigger",
	PipelineSourceWeb:                         "web",
	PipelineSourceWebIde:                      "web_ide",
}

func (s PipelineSource) String() string {
	if name, ok := pipelineSourceNames[s]; ok {
		return name
	}
	return "unknown"
}

func ParsePipelineSource(s string) (PipelineSource, bool) {
	for k, v := range pipelineSourceNames {
		if v == s {
			return k, true
		}
	}
	return 0, false
}

func (s PipelineSource) MarshalJSON() ([]byte, error) { return marshalEnumJSON(s.String()) }

func (s *PipelineSource) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "PipelineSource", func(str string) (int, bool) {
		ps, ok := ParsePipelineSource(str)
		return int(ps), ok
	})
	if err != nil {
		return err
	}
	*s = PipelineSource(v)
	return nil
}

// PipelineStatus is the overall status of a pipeline.
type PipelineStatus uint8

const (
	PipelineStatusCreated PipelineStatus = iota
	PipelineStatusWaitingForResource
	PipelineStatusPreparing
	PipelineStatusPending
	PipelineStatusRunning
	PipelineStatusSuccess
	PipelineStatusFailed
	PipelineStatusCanceled
	PipelineStatusSkipped
	PipelineStatusManual
	PipelineStatusScheduled
	PipelineStatusCompleted
	PipelineStatusNeutral
	PipelineStatusStale
	PipelineStatusStartupFailure
	PipelineStatusTimedOut
)

var pipelineStatusNames = map[PipelineStatus]string{
	PipelineStatusCreated:           "created",
	PipelineStatusWaitingForResource: "waiting_for_resource",
	PipelineStatusPreparing:         "preparing",
	PipelineStatusPending:           "pending",
	PipelineStatusRunning:           "running",
	PipelineStatusSuccess:           "success",
	PipelineStatusFailed:            "failed",
	PipelineStatusCanceled:          "canceled",
	PipelineStatusSkipped:           "skipped",
	PipelineStatusManual:            "manual",
	PipelineStatusScheduled:         "scheduled",
	PipelineStatusCompleted:         "completed",
	PipelineStatusNeutral:           "neutral",
	PipelineStatusStale:             "stale",
	PipelineStatusStartupFailure:    "startup_failure",
	PipelineStatusTimedOut:          "timed_out",
}

func (s PipelineStatus) String() string {
	if name, ok := pipelineStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

func ParsePipelineStatus(s string) (PipelineStatus, bool) {
	for k, v := range pipelineStatusNames {
		if v == s {
			return k, true
		}
	}
	return 0, false
}

func (s PipelineStatus) MarshalJSON() ([]byte, error) { return marshalEnumJSON(s.String()) }

func (s *PipelineStatus) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "PipelineStatus", func(str string) (int, bool) {
		ps, ok := ParsePipelineStatus(str)
		return int(ps), ok
	})
	if err != nil {
		return err
	}
	*s = PipelineStatus(v)
	return nil
}

// Pipeline is a single execution of CI tasks against a project ref.
type Pipeline struct {
	Name *string

	Project       ref.Ref[Project]
	SHA           string
	PreviousSHA   *string
	Refname       *string
	StableRefname *string

	Source        PipelineSource
	Schedule      ref.Ref[PipelineSchedule]
	ParentPipeline ref.Ref[Pipeline]
	MergeRequest  ref.Ref[MergeRequest]
	Variables     PipelineVariables
	User          ref.Ref[User]

	Status   PipelineStatus
	Coverage *float64

	ForgeID    uint64
	URL        string
	Archived   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	FirstFetchedAt  time.Time
	LastRefreshedAt time.Time
}

type PipelineBuilder struct {
	v            Pipeline
	hasProject   bool
	hasSHA       bool
	hasSource    bool
	hasStatus    bool
	hasForgeID   bool
	hasURL       bool
	hasCreatedAt bool
	hasUpdatedAt bool
}

func NewPipelineBuilder() *PipelineBuilder {
	return &PipelineBuilder{v: Pipeline{Variables: NewPipelineVariables()}}
}

func (b *PipelineBuilder) Name(name *string) *PipelineBuilder {
	b.v.Name = name
	return b
}

func (b *PipelineBuilder) Project(p ref.Ref[Project]) *PipelineBuilder {
	b.v.Project = p
	b.hasProject = true
	return b
}

func (b *PipelineBuilder) SHA(sha string) *PipelineBuilder {
	b.v.SHA = sha
	b.hasSHA = true
	return b
}

func (b *PipelineBuilder) PreviousSHA(sha *string) *PipelineBuilder {
	b.v.PreviousSHA = sha
	return b
}

func (b *PipelineBuilder) Refname(name *string) *PipelineBuilder {
	b.v.Refname = name
	return b
}

func (b *PipelineBuilder) StableRefname(name *string) *PipelineBuilder {
	b.v.StableRefname = name
	return b
}

func (b *PipelineBuilder) Source(s PipelineSource) *PipelineBuilder {
	b.v.Source = s
	b.hasSource = true
	return b
}

func (b *PipelineBuilder) ScheduleRef(sched ref.Ref[PipelineSchedule]) *PipelineBuilder {
	b.v.Schedule = sched
	return b
}

func (b *PipelineBuilder) ParentPipelineRef(parent ref.Ref[Pipeline]) *PipelineBuilder {
	b.v.ParentPipeline = parent
	return b
}

func (b *PipelineBuilder) MergeRequestRef(mr ref.Ref[MergeRequest]) *PipelineBuilder {
	b.v.MergeRequest = mr
	return b
}

func (b *PipelineBuilder) Variables(vars PipelineVariables) *PipelineBuilder {
	b.v.Variables = vars
	return b
}

func (b *PipelineBuilder) UserRef(user ref.Ref[User]) *PipelineBuilder {
	b.v.User = user
	return b
}

func (b *PipelineBuilder) Status(s PipelineStatus) *PipelineBuilder {
	b.v.Status = s
	b.hasStatus = true
	return b
}

func (b *PipelineBuilder) Coverage(c *float64) *PipelineBuilder {
	b.v.Coverage = c
	return b
}

func (b *PipelineBuilder) ForgeID(id uint64) *PipelineBuilder {
	b.v.ForgeID = id
	b.hasForgeID = true
	return b
}

func (b *PipelineBuilder) URL(url string) *PipelineBuilder {
	b.v.URL = url
	b.hasURL = true
	return b
}

func (b *PipelineBuilder) Archived(a bool) *PipelineBuilder {
	b.v.Archived = a
	return b
}

func (b *PipelineBuilder) CreatedAt(t time.Time) *PipelineBuilder {
	b.v.CreatedAt = t
	b.hasCreatedAt = true
	return b
}

func (b *PipelineBuilder) UpdatedAt(t time.Time) *PipelineBuilder {
	b.v.UpdatedAt = t
	b.hasUpdatedAt = true
	return b
}

func (b *PipelineBuilder) StartedAt(t *time.Time) *PipelineBuilder {
	b.v.StartedAt = t
	return b
}

func (b *PipelineBuilder) FinishedAt(t *time.Time) *PipelineBuilder {
	b.v.FinishedAt = t
	return b
}

func (b *PipelineBuilder) Build() (Pipeline, error) {
	if !b.hasProject {
		return Pipeline{}, uninitialized("Pipeline", "project")
	}
	if !b.hasSHA {
		return Pipeline{}, uninitialized("Pipeline", "sha")
	}
	if !b.hasSource {
		return Pipeline{}, uninitialized("Pipeline", "source")
	}
	if !b.hasStatus {
		return Pipeline{}, uninitialized("Pipeline", "status")
	}
	if !b.hasForgeID {
		return Pipeline{}, uninitialized("Pipeline", "forge_id")
	}
	if !b.hasURL {
		return Pipeline{}, uninitialized("Pipeline", "url")
	}
	if !b.hasCreatedAt {
		return Pipeline{}, uninitialized("Pipeline", "created_at")
	}
	if !b.hasUpdatedAt {
		return Pipeline{}, uninitialized("Pipeline", "updated_at")
	}
	now := time.Now().UTC()
	b.v.FirstFetchedAt = now
	b.v.LastRefreshedAt = now
	return b.v, nil
}
