package entity

import (
	"time"

	"github.com/ehrlich-b/cinch/ref"
)

// Project is a repository tracked on a forge instance. The same logical
// project may have several Project records if it lives at more than one
// location.
type Project struct {
	Name         string
	ForgeID      uint64
	URL          string
	Instance     ref.Ref[Instance]
	InstancePath string

	FirstFetchedAt  time.Time
	LastRefreshedAt time.Time
}

type ProjectBuilder struct {
	v           Project
	hasForgeID  bool
	hasInstance bool
}

func NewProjectBuilder() *ProjectBuilder {
	return &ProjectBuilder{}
}

func (b *ProjectBuilder) Name(name string) *ProjectBuilder {
	b.v.Name = name
	return b
}

func (b *ProjectBuilder) ForgeID(id uint64) *ProjectBuilder {
	b.v.ForgeID = id
	b.hasForgeID = true
	return b
}

func (b *ProjectBuilder) URL(url string) *ProjectBuilder {
	b.v.URL = url
	return b
}

func (b *ProjectBuilder) Instance(instance ref.Ref[Instance]) *ProjectBuilder {
	b.v.Instance = instance
	b.hasInstance = true
	return b
}

func (b *ProjectBuilder) InstancePath(path string) *ProjectBuilder {
	b.v.InstancePath = path
	return b
}

func (b *ProjectBuilder) Build() (Project, error) {
	if !b.hasForgeID {
		return Project{}, uninitialized("Project", "forge_id")
	}
	if !b.hasInstance {
		return Project{}, uninitialized("Project", "instance")
	}
	now := time.Now().UTC()
	b.v.FirstFetchedAt = now
	b.v.LastRefreshedAt = now
	return b.v, nil
}
