package entity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ehrlich-b/cinch/ref"
)

// ArtifactState tracks where an artifact stands relative to the forge and
// local persistence.
type ArtifactState uint8

const (
	ArtifactStateUnknown ArtifactState = iota
	ArtifactStatePending
	ArtifactStateExpired
	ArtifactStatePresent
	ArtifactStateStored
)

func (s ArtifactState) String() string {
	switch s {
	case ArtifactStateUnknown:
		return "unknown"
	case ArtifactStatePending:
		return "pending"
	case ArtifactStateExpired:
		return "expired"
	case ArtifactStatePresent:
		return "present"
	case ArtifactStateStored:
		return "stored"
	default:
		return "unknown"
	}
}

func ParseArtifactState(s string) (ArtifactState, bool) {
	switch s {
	case "unknown":
		return ArtifactStateUnknown, true
	case "pending":
		return ArtifactStatePending, true
	case "expired":
		return ArtifactStateExpired, true
	case "present":
		return ArtifactStatePresent, true
	case "stored":
		return ArtifactStateStored, true
	default:
		return 0, false
	}
}

func (s ArtifactState) MarshalJSON() ([]byte, error) { return marshalEnumJSON(s.String()) }

func (s *ArtifactState) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "ArtifactState", func(str string) (int, bool) {
		as, ok := ParseArtifactState(str)
		return int(as), ok
	})
	if err != nil {
		return err
	}
	*s = ArtifactState(v)
	return nil
}

// ArtifactKind classifies an artifact produced by a job. ArchiveFile and
// Custom carry an associated value, so this is a tagged struct rather than
// a plain enum.
type ArtifactKind struct {
	tag  artifactKindTag
	path string
	name string
}

type artifactKindTag uint8

const (
	artifactKindJobLog artifactKindTag = iota
	artifactKindArchive
	artifactKindArchiveFile
	artifactKindJUnit
	artifactKindAnnotations
	artifactKindCustom
)

var (
	ArtifactKindJobLog      = ArtifactKind{tag: artifactKindJobLog}
	ArtifactKindArchive     = ArtifactKind{tag: artifactKindArchive}
	ArtifactKindJUnit       = ArtifactKind{tag: artifactKindJUnit}
	ArtifactKindAnnotations = ArtifactKind{tag: artifactKindAnnotations}
)

// ArchiveFile builds the ArchiveFile variant naming path within the
// archive.
func ArchiveFile(path string) ArtifactKind {
	return ArtifactKind{tag: artifactKindArchiveFile, path: path}
}

// CustomArtifact builds the Custom variant naming the artifact.
func CustomArtifact(name string) ArtifactKind {
	return ArtifactKind{tag: artifactKindCustom, name: name}
}

// String renders the canonical wire form of the kind. Unlike the
// upstream implementation this closes the parenthesis on the Custom
// variant, so String and ParseArtifactKind round-trip.
func (k ArtifactKind) String() string {
	switch k.tag {
	case artifactKindJobLog:
		return "job_log"
	case artifactKindArchive:
		return "archive"
	case artifactKindArchiveFile:
		return fmt.Sprintf("archive_file(%s)", k.path)
	case artifactKindJUnit:
		return "junit"
	case artifactKindAnnotations:
		return "annotations"
	case artifactKindCustom:
		return fmt.Sprintf("custom(%s)", k.name)
	default:
		return "unknown"
	}
}

// ParseArtifactKind parses the canonical wire form produced by String.
func ParseArtifactKind(s string) (ArtifactKind, bool) {
	switch s {
	case "job_log":
		return ArtifactKindJobLog, true
	case "archive":
		return ArtifactKindArchive, true
	case "junit":
		return ArtifactKindJUnit, true
	case "annotations":
		return ArtifactKindAnnotations, true
	}
	if !strings.HasSuffix(s, ")") {
		return ArtifactKind{}, false
	}
	prefix := strings.TrimSuffix(s, ")")
	if path, ok := strings.CutPrefix(prefix, "archive_file("); ok {
		return ArchiveFile(path), true
	}
	if name, ok := strings.CutPrefix(prefix, "custom("); ok {
		return CustomArtifact(name), true
	}
	return ArtifactKind{}, false
}

func (k ArtifactKind) MarshalJSON() ([]byte, error) {
	return marshalEnumJSON(k.String())
}

func (k *ArtifactKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseArtifactKind(s)
	if !ok {
		return fmt.Errorf("ArtifactKind: unknown value %q", s)
	}
	*k = parsed
	return nil
}

// ArtifactExpiration describes when an artifact expires from the forge.
type ArtifactExpiration struct {
	known bool
	never bool
	at    time.Time
}

var (
	ArtifactExpirationUnknown = ArtifactExpiration{}
	ArtifactExpirationNever   = ArtifactExpiration{known: true, never: true}
)

// ArtifactExpiresAt builds an expiration at a fixed point in time.
func ArtifactExpiresAt(t time.Time) ArtifactExpiration {
	return ArtifactExpiration{known: true, at: t}
}

// IsKnown reports whether the expiration has been established.
func (e ArtifactExpiration) IsKnown() bool { return e.known }

// IsNever reports whether the artifact never expires.
func (e ArtifactExpiration) IsNever() bool { return e.known && e.never }

// At returns the expiration time and whether one is set.
func (e ArtifactExpiration) At() (time.Time, bool) {
	if e.known && !e.never {
		return e.at, true
	}
	return time.Time{}, false
}

// MarshalJSON encodes the expiration as "unknown", "never", or an
// RFC 3339 timestamp.
func (e ArtifactExpiration) MarshalJSON() ([]byte, error) {
	if !e.known {
		return marshalEnumJSON("unknown")
	}
	if e.never {
		return marshalEnumJSON("never")
	}
	return json.Marshal(e.at)
}

// UnmarshalJSON decodes the expiration from "unknown", "never", or an
// RFC 3339 timestamp.
func (e *ArtifactExpiration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "unknown":
			*e = ArtifactExpirationUnknown
			return nil
		case "never":
			*e = ArtifactExpirationNever
			return nil
		}
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("ArtifactExpiration: %w", err)
	}
	*e = ArtifactExpiresAt(t)
	return nil
}

// JobArtifact is a file produced by a job, possibly stored locally as a
// blob.
type JobArtifact struct {
	State    ArtifactState
	Kind     ArtifactKind
	ExpireAt ArtifactExpiration
	Name     string
	Blob     *BlobReference
	Size     uint64

	UniqueID uint64

	Job ref.Ref[Job]
}

type JobArtifactBuilder struct {
	v          JobArtifact
	hasKind    bool
	hasName    bool
	hasSize    bool
	hasUnique  bool
	hasJob     bool
}

func NewJobArtifactBuilder() *JobArtifactBuilder {
	return &JobArtifactBuilder{
		v: JobArtifact{
			State:    ArtifactStateUnknown,
			ExpireAt: ArtifactExpirationUnknown,
		},
	}
}

func (b *JobArtifactBuilder) State(s ArtifactState) *JobArtifactBuilder {
	b.v.State = s
	return b
}

func (b *JobArtifactBuilder) Kind(k ArtifactKind) *JobArtifactBuilder {
	b.v.Kind = k
	b.hasKind = true
	return b
}

func (b *JobArtifactBuilder) ExpireAt(e ArtifactExpiration) *JobArtifactBuilder {
	b.v.ExpireAt = e
	return b
}

func (b *JobArtifactBuilder) Name(name string) *JobArtifactBuilder {
	b.v.Name = name
	b.hasName = true
	return b
}

func (b *JobArtifactBuilder) Blob(blob *BlobReference) *JobArtifactBuilder {
	b.v.Blob = blob
	return b
}

func (b *JobArtifactBuilder) Size(size uint64) *JobArtifactBuilder {
	b.v.Size = size
	b.hasSize = true
	return b
}

func (b *JobArtifactBuilder) UniqueID(id uint64) *JobArtifactBuilder {
	b.v.UniqueID = id
	b.hasUnique = true
	return b
}

func (b *JobArtifactBuilder) Job(job ref.Ref[Job]) *JobArtifactBuilder {
	b.v.Job = job
	b.hasJob = true
	return b
}

func (b *JobArtifactBuilder) Build() (JobArtifact, error) {
	if !b.hasKind {
		return JobArtifact{}, uninitialized("JobArtifact", "kind")
	}
	if !b.hasName {
		return JobArtifact{}, uninitialized("JobArtifact", "name")
	}
	if !b.hasSize {
		return JobArtifact{}, uninitialized("JobArtifact", "size")
	}
	if !b.hasUnique {
		return JobArtifact{}, uninitialized("JobArtifact", "unique_id")
	}
	if !b.hasJob {
		return JobArtifact{}, uninitialized("JobArtifact", "job")
	}
	return b.v, nil
}
