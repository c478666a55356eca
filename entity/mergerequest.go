package entity

import (
	"time"

	"github.com/ehrlich-b/cinch/ref"
)

// MergeRequestStatus is the lifecycle state of a merge request.
type MergeRequestStatus uint8

const (
	MergeRequestStatusOpen MergeRequestStatus = iota
	MergeRequestStatusClosed
	MergeRequestStatusMerged
)

func (s MergeRequestStatus) String() string {
	switch s {
	case MergeRequestStatusOpen:
		return "open"
	case MergeRequestStatusClosed:
		return "closed"
	case MergeRequestStatusMerged:
		return "merged"
	default:
		return "unknown"
	}
}

func ParseMergeRequestStatus(s string) (MergeRequestStatus, bool) {
	switch s {
	case "open":
		return MergeRequestStatusOpen, true
	case "closed":
		return MergeRequestStatusClosed, true
	case "merged":
		return MergeRequestStatusMerged, true
	default:
		return 0, false
	}
}

func (s MergeRequestStatus) MarshalJSON() ([]byte, error) { return marshalEnumJSON(s.String()) }

func (s *MergeRequestStatus) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "MergeRequestStatus", func(str string) (int, bool) {
		st, ok := ParseMergeRequestStatus(str)
		return int(st), ok
	})
	if err != nil {
		return err
	}
	*s = MergeRequestStatus(v)
	return nil
}

// MergeRequest is a proposed change from a source branch into a target
// branch, possibly across projects (a fork).
type MergeRequest struct {
	ID            uint64
	SourceProject ref.Ref[Project]
	SourceBranch  string
	SHA           string
	TargetProject ref.Ref[Project]
	TargetBranch  string

	ForgeID     uint64
	Title       string
	Description string
	State       MergeRequestStatus
	Author      ref.Ref[User]
	URL         string

	FirstFetchedAt  time.Time
	LastRefreshedAt time.Time
}

type MergeRequestBuilder struct {
	v                 MergeRequest
	hasID             bool
	hasSourceProject  bool
	hasTargetProject  bool
	hasForgeID        bool
	hasState          bool
	hasAuthor         bool
	hasURL            bool
}

func NewMergeRequestBuilder() *MergeRequestBuilder {
	return &MergeRequestBuilder{}
}

func (b *MergeRequestBuilder) ID(id uint64) *MergeRequestBuilder {
	b.v.ID = id
	b.hasID = true
	return b
}

func (b *MergeRequestBuilder) SourceProject(p ref.Ref[Project]) *MergeRequestBuilder {
	b.v.SourceProject = p
	b.hasSourceProject = true
	return b
}

func (b *MergeRequestBuilder) SourceBranch(branch string) *MergeRequestBuilder {
	b.v.SourceBranch = branch
	return b
}

func (b *MergeRequestBuilder) SHA(sha string) *MergeRequestBuilder {
	b.v.SHA = sha
	return b
}

func (b *MergeRequestBuilder) TargetProject(p ref.Ref[Project]) *MergeRequestBuilder {
	b.v.TargetProject = p
	b.hasTargetProject = true
	return b
}

func (b *MergeRequestBuilder) TargetBranch(branch string) *MergeRequestBuilder {
	b.v.TargetBranch = branch
	return b
}

func (b *MergeRequestBuilder) ForgeID(id uint64) *MergeRequestBuilder {
	b.v.ForgeID = id
	b.hasForgeID = true
	return b
}

func (b *MergeRequestBuilder) Title(title string) *MergeRequestBuilder {
	b.v.Title = title
	return b
}

func (b *MergeRequestBuilder) Description(d string) *MergeRequestBuilder {
	b.v.Description = d
	return b
}

func (b *MergeRequestBuilder) State(s MergeRequestStatus) *MergeRequestBuilder {
	b.v.State = s
	b.hasState = true
	return b
}

func (b *MergeRequestBuilder) Author(author ref.Ref[User]) *MergeRequestBuilder {
	b.v.Author = author
	b.hasAuthor = true
	return b
}

func (b *MergeRequestBuilder) URL(url string) *MergeRequestBuilder {
	b.v.URL = url
	b.hasURL = true
	return b
}

func (b *MergeRequestBuilder) Build() (MergeRequest, error) {
	if !b.hasID {
		return MergeRequest{}, uninitialized("MergeRequest", "id")
	}
	if !b.hasSourceProject {
		return MergeRequest{}, uninitialized("MergeRequest", "source_project")
	}
	if !b.hasTargetProject {
		return MergeRequest{}, uninitialized("MergeRequest", "target_project")
	}
	if !b.hasForgeID {
		return MergeRequest{}, uninitialized("MergeRequest", "forge_id")
	}
	if !b.hasState {
		return MergeRequest{}, uninitialized("MergeRequest", "state")
	}
	if !b.hasAuthor {
		return MergeRequest{}, uninitialized("MergeRequest", "author")
	}
	if !b.hasURL {
		return MergeRequest{}, uninitialized("MergeRequest", "url")
	}
	now := time.Now().UTC()
	b.v.FirstFetchedAt = now
	b.v.LastRefreshedAt = now
	return b.v, nil
}
