package entity

import (
	"time"

	"github.com/ehrlich-b/cinch/ref"
)

// DeploymentStatus is the lifecycle state of a deployment.
type DeploymentStatus uint8

const (
	DeploymentStatusCreated DeploymentStatus = iota
	DeploymentStatusRunning
	DeploymentStatusSuccess
	DeploymentStatusFailed
	DeploymentStatusCanceled
	DeploymentStatusBlocked
)

var deploymentStatusNames = map[DeploymentStatus]string{
	DeploymentStatusCreated:  "created",
	DeploymentStatusRunning:  "running",
	DeploymentStatusSuccess:  "success",
	DeploymentStatusFailed:   "failed",
	DeploymentStatusCanceled: "canceled",
	DeploymentStatusBlocked:  "blocked",
}

func (s DeploymentStatus) String() string {
	if name, ok := deploymentStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

func ParseDeploymentStatus(s string) (DeploymentStatus, bool) {
	for k, v := range deploymentStatusNames {
		if v == s {
			return k, true
		}
	}
	return 0, false
}

func (s DeploymentStatus) MarshalJSON() ([]byte, error) { return marshalEnumJSON(s.String()) }

func (s *DeploymentStatus) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "DeploymentStatus", func(str string) (int, bool) {
		ds, ok := ParseDeploymentStatus(str)
		return int(ds), ok
	})
	if err != nil {
		return err
	}
	*s = DeploymentStatus(v)
	return nil
}

// Deployment is a single attempt to deploy a pipeline into an environment.
type Deployment struct {
	Pipeline    ref.Ref[Pipeline]
	Environment ref.Ref[Environment]

	ForgeID    uint64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
	Status     DeploymentStatus

	FirstFetchedAt  time.Time
	LastRefreshedAt time.Time
}

type DeploymentBuilder struct {
	v              Deployment
	hasPipeline    bool
	hasEnvironment bool
	hasForgeID     bool
	hasCreatedAt   bool
	hasUpdatedAt   bool
	hasStatus      bool
}

func NewDeploymentBuilder() *DeploymentBuilder {
	return &DeploymentBuilder{}
}

func (b *DeploymentBuilder) Pipeline(p ref.Ref[Pipeline]) *DeploymentBuilder {
	b.v.Pipeline = p
	b.hasPipeline = true
	return b
}

func (b *DeploymentBuilder) Environment(e ref.Ref[Environment]) *DeploymentBuilder {
	b.v.Environment = e
	b.hasEnvironment = true
	return b
}

func (b *DeploymentBuilder) ForgeID(id uint64) *DeploymentBuilder {
	b.v.ForgeID = id
	b.hasForgeID = true
	return b
}

func (b *DeploymentBuilder) CreatedAt(t time.Time) *DeploymentBuilder {
	b.v.CreatedAt = t
	b.hasCreatedAt = true
	return b
}

func (b *DeploymentBuilder) UpdatedAt(t time.Time) *DeploymentBuilder {
	b.v.UpdatedAt = t
	b.hasUpdatedAt = true
	return b
}

func (b *DeploymentBuilder) FinishedAt(t *time.Time) *DeploymentBuilder {
	b.v.FinishedAt = t
	return b
}

func (b *DeploymentBuilder) Status(s DeploymentStatus) *DeploymentBuilder {
	b.v.Status = s
	b.hasStatus = true
	return b
}

func (b *DeploymentBuilder) Build() (Deployment, error) {
	if !b.hasPipeline {
		return Deployment{}, uninitialized("Deployment", "pipeline")
	}
	if !b.hasEnvironment {
		return Deployment{}, uninitialized("Deployment", "environment")
	}
	if !b.hasForgeID {
		return Deployment{}, uninitialized("Deployment", "forge_id")
	}
	if !b.hasCreatedAt {
		return Deployment{}, uninitialized("Deployment", "created_at")
	}
	if !b.hasUpdatedAt {
		return Deployment{}, uninitialized("Deployment", "updated_at")
	}
	if !b.hasStatus {
		return Deployment{}, uninitialized("Deployment", "status")
	}
	now := time.Now().UTC()
	b.v.FirstFetchedAt = now
	b.v.LastRefreshedAt = now
	return b.v, nil
}
