package entity

import (
	"time"

	"github.com/ehrlich-b/cinch/ref"
)

// EnvironmentState is the availability state of an environment.
type EnvironmentState uint8

const (
	EnvironmentStateAvailable EnvironmentState = iota
	EnvironmentStateStopping
	EnvironmentStateStopped
)

func (s EnvironmentState) String() string {
	switch s {
	case EnvironmentStateAvailable:
		return "available"
	case EnvironmentStateStopping:
		return "stopping"
	case EnvironmentStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func ParseEnvironmentState(s string) (EnvironmentState, bool) {
	switch s {
	case "available":
		return EnvironmentStateAvailable, true
	case "stopping":
		return EnvironmentStateStopping, true
	case "stopped":
		return EnvironmentStateStopped, true
	default:
		return 0, false
	}
}

func (s EnvironmentState) MarshalJSON() ([]byte, error) { return marshalEnumJSON(s.String()) }

func (s *EnvironmentState) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "EnvironmentState", func(str string) (int, bool) {
		es, ok := ParseEnvironmentState(str)
		return int(es), ok
	})
	if err != nil {
		return err
	}
	*s = EnvironmentState(v)
	return nil
}

// EnvironmentTier classifies the purpose of an environment.
type EnvironmentTier uint8

const (
	EnvironmentTierProduction EnvironmentTier = iota
	EnvironmentTierStaging
	EnvironmentTierTesting
	EnvironmentTierDevelopment
	EnvironmentTierOther
)

func (t EnvironmentTier) String() string {
	switch t {
	case EnvironmentTierProduction:
		return "production"
	case EnvironmentTierStaging:
		return "staging"
	case EnvironmentTierTesting:
		return "testing"
	case EnvironmentTierDevelopment:
		return "development"
	case EnvironmentTierOther:
		return "other"
	default:
		return "unknown"
	}
}

func ParseEnvironmentTier(s string) (EnvironmentTier, bool) {
	switch s {
	case "production":
		return EnvironmentTierProduction, true
	case "staging":
		return EnvironmentTierStaging, true
	case "testing":
		return EnvironmentTierTesting, true
	case "development":
		return EnvironmentTierDevelopment, true
	case "other":
		return EnvironmentTierOther, true
	default:
		return 0, false
	}
}

func (t EnvironmentTier) MarshalJSON() ([]byte, error) { return marshalEnumJSON(t.String()) }

func (t *EnvironmentTier) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "EnvironmentTier", func(str string) (int, bool) {
		et, ok := ParseEnvironmentTier(str)
		return int(et), ok
	})
	if err != nil {
		return err
	}
	*t = EnvironmentTier(v)
	return nil
}

// Environment is a named deployment target within a project.
type Environment struct {
	Name        string
	ExternalURL string
	State       EnvironmentState
	Tier        EnvironmentTier

	ForgeID    uint64
	Project    ref.Ref[Project]
	CreatedAt  time.Time
	UpdatedAt  time.Time
	AutoStopAt *time.Time

	FirstFetchedAt  time.Time
	LastRefreshedAt time.Time
}

type EnvironmentBuilder struct {
	v            Environment
	hasName      bool
	hasURL       bool
	hasState     bool
	hasTier      bool
	hasForgeID   bool
	hasProject   bool
	hasCreatedAt bool
	hasUpdatedAt bool
}

func NewEnvironmentBuilder() *EnvironmentBuilder {
	return &EnvironmentBuilder{}
}

func (b *EnvironmentBuilder) Name(name string) *EnvironmentBuilder {
	b.v.Name = name
	b.hasName = true
	return b
}

func (b *EnvironmentBuilder) ExternalURL(url string) *EnvironmentBuilder {
	b.v.ExternalURL = url
	b.hasURL = true
	return b
}

func (b *EnvironmentBuilder) State(s EnvironmentState) *EnvironmentBuilder {
	b.v.State = s
	b.hasState = true
	return b
}

func (b *EnvironmentBuilder) Tier(t EnvironmentTier) *EnvironmentBuilder {
	b.v.Tier = t
	b.hasTier = true
	return b
}

func (b *EnvironmentBuilder) ForgeID(id uint64) *EnvironmentBuilder {
	b.v.ForgeID = id
	b.hasForgeID = true
	return b
}

func (b *EnvironmentBuilder) Project(p ref.Ref[Project]) *EnvironmentBuilder {
	b.v.Project = p
	b.hasProject = true
	return b
}

func (b *EnvironmentBuilder) CreatedAt(t time.Time) *EnvironmentBuilder {
	b.v.CreatedAt = t
	b.hasCreatedAt = true
	return b
}

func (b *EnvironmentBuilder) UpdatedAt(t time.Time) *EnvironmentBuilder {
	b.v.UpdatedAt = t
	b.hasUpdatedAt = true
	return b
}

func (b *EnvironmentBuilder) AutoStopAt(t *time.Time) *EnvironmentBuilder {
	b.v.AutoStopAt = t
	return b
}

func (b *EnvironmentBuilder) Build() (Environment, error) {
	if !b.hasName {
		return Environment{}, uninitialized("Environment", "name")
	}
	if !b.hasURL {
		return Environment{}, uninitialized("Environment", "external_url")
	}
	if !b.hasState {
		return Environment{}, uninitialized("Environment", "state")
	}
	if !b.hasTier {
		return Environment{}, uninitialized("Environment", "tier")
	}
	if !b.hasForgeID {
		return Environment{}, uninitialized("Environment", "forge_id")
	}
	if !b.hasProject {
		return Environment{}, uninitialized("Environment", "project")
	}
	if !b.hasCreatedAt {
		return Environment{}, uninitialized("Environment", "created_at")
	}
	if !b.hasUpdatedAt {
		return Environment{}, uninitialized("Environment", "updated_at")
	}
	now := time.Now().UTC()
	b.v.FirstFetchedAt = now
	b.v.LastRefreshedAt = now
	return b.v, nil
}
