package entity

import (
	"time"

	"github.com/ehrlich-b/cinch/ref"
)

// User is an account on a forge instance.
type User struct {
	Handle string
	Name   string
	Email  *string
	Avatar *BlobReference

	ForgeID  uint64
	Instance ref.Ref[Instance]

	FirstFetchedAt  time.Time
	LastRefreshedAt time.Time
}

type UserBuilder struct {
	v           User
	hasForgeID  bool
	hasInstance bool
}

func NewUserBuilder() *UserBuilder {
	return &UserBuilder{}
}

func (b *UserBuilder) Handle(handle string) *UserBuilder {
	b.v.Handle = handle
	return b
}

func (b *UserBuilder) Name(name string) *UserBuilder {
	b.v.Name = name
	return b
}

func (b *UserBuilder) Email(email *string) *UserBuilder {
	b.v.Email = email
	return b
}

func (b *UserBuilder) Avatar(avatar *BlobReference) *UserBuilder {
	b.v.Avatar = avatar
	return b
}

func (b *UserBuilder) ForgeID(id uint64) *UserBuilder {
	b.v.ForgeID = id
	b.hasForgeID = true
	return b
}

func (b *UserBuilder) Instance(instance ref.Ref[Instance]) *UserBuilder {
	b.v.Instance = instance
	b.hasInstance = true
	return b
}

func (b *UserBuilder) Build() (User, error) {
	if !b.hasForgeID {
		return User{}, uninitialized("User", "forge_id")
	}
	if !b.hasInstance {
		return User{}, uninitialized("User", "instance")
	}
	now := time.Now().UTC()
	b.v.FirstFetchedAt = now
	b.v.LastRefreshedAt = now
	return b.v, nil
}
