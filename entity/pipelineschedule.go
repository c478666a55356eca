package entity

import (
	"time"

	"github.com/ehrlich-b/cinch/ref"
)

// PipelineSchedule periodically triggers pipelines on a ref.
type PipelineSchedule struct {
	Name string

	Project ref.Ref[Project]
	Ref     string

	Variables PipelineVariables

	ForgeID   uint64
	CreatedAt time.Time
	UpdatedAt time.Time
	Owner     ref.Ref[User]
	Active    bool
	NextRun   *time.Time

	FirstFetchedAt  time.Time
	LastRefreshedAt time.Time
}

type PipelineScheduleBuilder struct {
	v             PipelineSchedule
	hasProject    bool
	hasRef        bool
	hasForgeID    bool
	hasCreatedAt  bool
	hasUpdatedAt  bool
	hasOwner      bool
}

func NewPipelineScheduleBuilder() *PipelineScheduleBuilder {
	return &PipelineScheduleBuilder{v: PipelineSchedule{Variables: NewPipelineVariables()}}
}

func (b *PipelineScheduleBuilder) Name(name string) *PipelineScheduleBuilder {
	b.v.Name = name
	return b
}

func (b *PipelineScheduleBuilder) Project(p ref.Ref[Project]) *PipelineScheduleBuilder {
	b.v.Project = p
	b.hasProject = true
	return b
}

func (b *PipelineScheduleBuilder) Ref(r string) *PipelineScheduleBuilder {
	b.v.Ref = r
	b.hasRef = true
	return b
}

func (b *PipelineScheduleBuilder) Variables(vars PipelineVariables) *PipelineScheduleBuilder {
	b.v.Variables = vars
	return b
}

func (b *PipelineScheduleBuilder) ForgeID(id uint64) *PipelineScheduleBuilder {
	b.v.ForgeID = id
	b.hasForgeID = true
	return b
}

func (b *PipelineScheduleBuilder) CreatedAt(t time.Time) *PipelineScheduleBuilder {
	b.v.CreatedAt = t
	b.hasCreatedAt = true
	return b
}

func (b *PipelineScheduleBuilder) UpdatedAt(t time.Time) *PipelineScheduleBuilder {
	b.v.UpdatedAt = t
	b.hasUpdatedAt = true
	return b
}

func (b *PipelineScheduleBuilder) Owner(owner ref.Ref[User]) *PipelineScheduleBuilder {
	b.v.Owner = owner
	b.hasOwner = true
	return b
}

func (b *PipelineScheduleBuilder) Active(active bool) *PipelineScheduleBuilder {
	b.v.Active = active
	return b
}

func (b *PipelineScheduleBuilder) NextRun(t *time.Time) *PipelineScheduleBuilder {
	b.v.NextRun = t
	return b
}

func (b *PipelineScheduleBuilder) Build() (PipelineSchedule, error) {
	if !b.hasProject {
		return PipelineSchedule{}, uninitialized("PipelineSchedule", "project")
	}
	if !b.hasRef {
		return PipelineSchedule{}, uninitialized("PipelineSchedule", "ref_")
	}
	if !b.hasForgeID {
		return PipelineSchedule{}, uninitialized("PipelineSchedule", "forge_id")
	}
	if !b.hasCreatedAt {
		return PipelineSchedule{}, uninitialized("PipelineSchedule", "created_at")
	}
	if !b.hasUpdatedAt {
		return PipelineSchedule{}, uninitialized("PipelineSchedule", "updated_at")
	}
	if !b.hasOwner {
		return PipelineSchedule{}, uninitialized("PipelineSchedule", "owner")
	}
	now := time.Now().UTC()
	b.v.FirstFetchedAt = now
	b.v.LastRefreshedAt = now
	return b.v, nil
}
