package objstore_test

import (
	"testing"

	"github.com/ehrlich-b/cinch/entity"
	"github.com/ehrlich-b/cinch/objstore"
	"github.com/ehrlich-b/cinch/ref"
)

func TestVectorStore_StoreUpsertsByIdentity(t *testing.T) {
	store := objstore.NewVectorStore()

	instance, err := entity.NewInstanceBuilder().
		UniqueID(1).
		Forge("gitlab").
		URL("https://gitlab.example.com").
		Build()
	if err != nil {
		t.Fatalf("build instance: %v", err)
	}
	instRef := store.StoreInstance(instance)

	project1, err := entity.NewProjectBuilder().
		ForgeID(42).
		Name("widgets").
		URL("https://gitlab.example.com/widgets").
		Instance(instRef).
		InstancePath("group/widgets").
		Build()
	if err != nil {
		t.Fatalf("build project: %v", err)
	}

	ref1 := store.StoreProject(project1)
	if store.Projects.Len() != 1 {
		t.Fatalf("expected 1 project, got %d", store.Projects.Len())
	}

	project2 := project1
	project2.Name = "widgets-renamed"
	ref2 := store.StoreProject(project2)

	if ref1 != ref2 {
		t.Errorf("re-storing the same ForgeID should return the same ref, got %+v vs %+v", ref1, ref2)
	}
	if store.Projects.Len() != 1 {
		t.Fatalf("expected upsert to replace in place, got %d projects", store.Projects.Len())
	}

	got, ok := store.LookupProject(ref2)
	if !ok {
		t.Fatal("LookupProject failed")
	}
	if got.Name != "widgets-renamed" {
		t.Errorf("got name %q, want %q", got.Name, "widgets-renamed")
	}
}

func TestVectorStore_LookupWrongKind(t *testing.T) {
	store := objstore.NewVectorStore()
	internRef := ref.Intern(&entity.Project{})
	if _, ok := store.LookupProject(internRef); ok {
		t.Error("LookupProject should reject a non-vector ref")
	}
}

func TestVectorStore_AllRefsCoverEveryRecord(t *testing.T) {
	store := objstore.NewVectorStore()
	inst, _ := entity.NewInstanceBuilder().UniqueID(1).Forge("gitlab").URL("https://gitlab.example.com").Build()
	instRef := store.StoreInstance(inst)

	for i := uint64(1); i <= 3; i++ {
		p, err := entity.NewProjectBuilder().ForgeID(i).Name("p").URL("u").Instance(instRef).InstancePath("g/p").Build()
		if err != nil {
			t.Fatalf("build project %d: %v", i, err)
		}
		store.StoreProject(p)
	}

	refs := store.AllProjectRefs()
	if len(refs) != 3 {
		t.Fatalf("got %d refs, want 3", len(refs))
	}
	for i, r := range refs {
		if r.VectorIndex() != i {
			t.Errorf("refs[%d].VectorIndex() = %d, want %d", i, r.VectorIndex(), i)
		}
	}
}
