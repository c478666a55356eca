package objstore_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ehrlich-b/cinch/entity"
	"github.com/ehrlich-b/cinch/objstore"
	"github.com/ehrlich-b/cinch/ref"
)

func buildSampleStore(t *testing.T) *objstore.VectorStore {
	t.Helper()
	store := objstore.NewVectorStore()

	inst, err := entity.NewInstanceBuilder().UniqueID(1).Forge("gitlab").URL("https://gitlab.example.com").Build()
	if err != nil {
		t.Fatalf("build instance: %v", err)
	}
	instRef := store.StoreInstance(inst)

	project, err := entity.NewProjectBuilder().
		ForgeID(7).
		Name("widgets").
		URL("https://gitlab.example.com/widgets").
		Instance(instRef).
		InstancePath("group/widgets").
		Build()
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	projRef := store.StoreProject(project)

	user, err := entity.NewUserBuilder().ForgeID(3).Handle("alice").Name("Alice").Instance(instRef).Build()
	if err != nil {
		t.Fatalf("build user: %v", err)
	}
	userRef := store.StoreUser(user)

	schedule, err := entity.NewPipelineScheduleBuilder().
		Project(projRef).
		Ref("main").
		ForgeID(9).
		CreatedAt(time.Now().UTC()).
		UpdatedAt(time.Now().UTC()).
		Owner(userRef).
		Build()
	if err != nil {
		t.Fatalf("build schedule: %v", err)
	}
	store.StorePipelineSchedule(schedule)

	return store
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := buildSampleStore(t)

	tmpDir, err := os.MkdirTemp("", "objstore-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := objstore.Save(store, tmpDir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The layout is one directory per type, one file per record.
	if _, err := os.Stat(filepath.Join(tmpDir, "vecindex.json")); err != nil {
		t.Errorf("vecindex.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "projects", "0.json")); err != nil {
		t.Errorf("projects/0.json missing: %v", err)
	}

	loaded, err := objstore.Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Projects.Len() != store.Projects.Len() {
		t.Errorf("got %d projects, want %d", loaded.Projects.Len(), store.Projects.Len())
	}
	if loaded.PipelineSchedules.Len() != 1 {
		t.Fatalf("expected 1 schedule, got %d", loaded.PipelineSchedules.Len())
	}

	gotProject, ok := loaded.LookupProject(ref.Vector[entity.Project](0))
	if !ok {
		t.Fatal("LookupProject(0) failed after reload")
	}
	if gotProject.Name != "widgets" {
		t.Errorf("got name %q, want %q", gotProject.Name, "widgets")
	}
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "objstore-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "vecindex.json"), []byte(`{"version": 99, "counts": {}}`), 0o644); err != nil {
		t.Fatalf("write vecindex: %v", err)
	}

	_, err = objstore.Load(tmpDir)
	var unsupported *objstore.UnsupportedVersionError
	if err == nil {
		t.Fatal("expected an error for an unsupported version")
	}
	if !errors.As(err, &unsupported) {
		t.Errorf("expected *UnsupportedVersionError, got %T: %v", err, err)
	}
}

func TestLoad_MissingReferenceRejected(t *testing.T) {
	store := objstore.NewVectorStore()

	// A project referencing an instance index that will never exist.
	project, err := entity.NewProjectBuilder().
		ForgeID(1).
		Instance(ref.Vector[entity.Instance](5)).
		Build()
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	store.Projects.Append(project)

	tmpDir, err := os.MkdirTemp("", "objstore-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := objstore.Save(store, tmpDir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err = objstore.Load(tmpDir)
	var missing *objstore.MissingIndexError
	if err == nil {
		t.Fatal("expected a dangling-reference error")
	}
	if !errors.As(err, &missing) {
		t.Errorf("expected *MissingIndexError, got %T: %v", err, err)
	}
}

func TestLoad_TruncatedTypeDirectory(t *testing.T) {
	store := buildSampleStore(t)

	tmpDir, err := os.MkdirTemp("", "objstore-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := objstore.Save(store, tmpDir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := os.Remove(filepath.Join(tmpDir, "projects", "0.json")); err != nil {
		t.Fatalf("remove record: %v", err)
	}

	if _, err := objstore.Load(tmpDir); err == nil {
		t.Fatal("expected an error for a truncated type directory")
	}
}
