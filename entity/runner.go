package entity

import (
	"time"

	"github.com/ehrlich-b/cinch/ref"
)

// RunnerType is the scope at which a runner is registered.
type RunnerType uint8

const (
	RunnerTypeInstance RunnerType = iota
	RunnerTypeGroup
	RunnerTypeProject
)

func (t RunnerType) String() string {
	switch t {
	case RunnerTypeInstance:
		return "instance"
	case RunnerTypeGroup:
		return "group"
	case RunnerTypeProject:
		return "project"
	default:
		return "unknown"
	}
}

func ParseRunnerType(s string) (RunnerType, bool) {
	switch s {
	case "instance":
		return RunnerTypeInstance, true
	case "group":
		return RunnerTypeGroup, true
	case "project":
		return RunnerTypeProject, true
	default:
		return 0, false
	}
}

func (t RunnerType) MarshalJSON() ([]byte, error) { return marshalEnumJSON(t.String()) }

func (t *RunnerType) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "RunnerType", func(s string) (int, bool) {
		rt, ok := ParseRunnerType(s)
		return int(rt), ok
	})
	if err != nil {
		return err
	}
	*t = RunnerType(v)
	return nil
}

// RunnerProtectionLevel restricts which refs may use a runner.
type RunnerProtectionLevel uint8

const (
	RunnerProtectionLevelProtected RunnerProtectionLevel = iota
	RunnerProtectionLevelAny
)

func (p RunnerProtectionLevel) String() string {
	switch p {
	case RunnerProtectionLevelProtected:
		return "protected"
	case RunnerProtectionLevelAny:
		return "any"
	default:
		return "unknown"
	}
}

func ParseRunnerProtectionLevel(s string) (RunnerProtectionLevel, bool) {
	switch s {
	case "protected":
		return RunnerProtectionLevelProtected, true
	case "any":
		return RunnerProtectionLevelAny, true
	default:
		return 0, false
	}
}

func (p RunnerProtectionLevel) MarshalJSON() ([]byte, error) { return marshalEnumJSON(p.String()) }

func (p *RunnerProtectionLevel) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "RunnerProtectionLevel", func(s string) (int, bool) {
		rp, ok := ParseRunnerProtectionLevel(s)
		return int(rp), ok
	})
	if err != nil {
		return err
	}
	*p = RunnerProtectionLevel(v)
	return nil
}

// Runner performs jobs on behalf of an instance, optionally scoped to
// specific projects.
type Runner struct {
	Description      string
	Type             RunnerType
	MaximumTimeout   *uint64
	ProtectionLevel  RunnerProtectionLevel

	Implementation string
	Version        string
	Revision       string
	Platform       string
	Architecture   string

	Tags        []string
	RunUntagged bool
	Projects    []ref.Ref[Project]

	ForgeID          uint64
	Paused           bool
	Shared           bool
	Online           bool
	Locked           bool
	ContactedAt      *time.Time
	MaintenanceNote  *string
	Instance         ref.Ref[Instance]

	RunnerHost ref.Ref[RunnerHost]

	FirstFetchedAt  time.Time
	LastRefreshedAt time.Time
}

type RunnerBuilder struct {
	v                  Runner
	hasForgeID         bool
	hasInstance        bool
	hasType            bool
	hasProtectionLevel bool
}

func NewRunnerBuilder() *RunnerBuilder {
	return &RunnerBuilder{}
}

func (b *RunnerBuilder) Description(d string) *RunnerBuilder {
	b.v.Description = d
	return b
}

func (b *RunnerBuilder) Type(t RunnerType) *RunnerBuilder {
	b.v.Type = t
	b.hasType = true
	return b
}

func (b *RunnerBuilder) MaximumTimeout(seconds *uint64) *RunnerBuilder {
	b.v.MaximumTimeout = seconds
	return b
}

func (b *RunnerBuilder) ProtectionLevel(p RunnerProtectionLevel) *RunnerBuilder {
	b.v.ProtectionLevel = p
	b.hasProtectionLevel = true
	return b
}

func (b *RunnerBuilder) Implementation(v string) *RunnerBuilder {
	b.v.Implementation = v
	return b
}

func (b *RunnerBuilder) Version(v string) *RunnerBuilder {
	b.v.Version = v
	return b
}

func (b *RunnerBuilder) Revision(v string) *RunnerBuilder {
	b.v.Revision = v
	return b
}

func (b *RunnerBuilder) Platform(v string) *RunnerBuilder {
	b.v.Platform = v
	return b
}

func (b *RunnerBuilder) Architecture(v string) *RunnerBuilder {
	b.v.Architecture = v
	return b
}

func (b *RunnerBuilder) Tags(tags []string) *RunnerBuilder {
	b.v.Tags = tags
	return b
}

func (b *RunnerBuilder) RunUntagged(v bool) *RunnerBuilder {
	b.v.RunUntagged = v
	return b
}

func (b *RunnerBuilder) Projects(projects []ref.Ref[Project]) *RunnerBuilder {
	b.v.Projects = projects
	return b
}

func (b *RunnerBuilder) ForgeID(id uint64) *RunnerBuilder {
	b.v.ForgeID = id
	b.hasForgeID = true
	return b
}

func (b *RunnerBuilder) Paused(v bool) *RunnerBuilder {
	b.v.Paused = v
	return b
}

func (b *RunnerBuilder) Shared(v bool) *RunnerBuilder {
	b.v.Shared = v
	return b
}

func (b *RunnerBuilder) Online(v bool) *RunnerBuilder {
	b.v.Online = v
	return b
}

func (b *RunnerBuilder) Locked(v bool) *RunnerBuilder {
	b.v.Locked = v
	return b
}

func (b *RunnerBuilder) ContactedAt(t *time.Time) *RunnerBuilder {
	b.v.ContactedAt = t
	return b
}

func (b *RunnerBuilder) MaintenanceNote(note *string) *RunnerBuilder {
	b.v.MaintenanceNote = note
	return b
}

func (b *RunnerBuilder) Instance(instance ref.Ref[Instance]) *RunnerBuilder {
	b.v.Instance = instance
	b.hasInstance = true
	return b
}

func (b *RunnerBuilder) RunnerHostRef(host ref.Ref[RunnerHost]) *RunnerBuilder {
	b.v.RunnerHost = host
	return b
}

func (b *RunnerBuilder) Build() (Runner, error) {
	if !b.hasType {
		return Runner{}, uninitialized("Runner", "runner_type")
	}
	if !b.hasProtectionLevel {
		return Runner{}, uninitialized("Runner", "protection_level")
	}
	if !b.hasForgeID {
		return Runner{}, uninitialized("Runner", "forge_id")
	}
	if !b.hasInstance {
		return Runner{}, uninitialized("Runner", "instance")
	}
	now := time.Now().UTC()
	b.v.FirstFetchedAt = now
	b.v.LastRefreshedAt = now
	return b.v, nil
}
