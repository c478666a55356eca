package migrate

import (
	"testing"
	"time"

	"github.com/ehrlich-b/cinch/entity"
	"github.com/ehrlich-b/cinch/objstore"
	"github.com/ehrlich-b/cinch/ref"
)

func mustInstance(t *testing.T, uniqueID uint64) entity.Instance {
	t.Helper()
	v, err := entity.NewInstanceBuilder().UniqueID(uniqueID).Forge("gitlab").URL("https://gitlab.example.com").Build()
	if err != nil {
		t.Fatalf("build instance: %v", err)
	}
	return v
}

func mustRunnerHost(t *testing.T) entity.RunnerHost {
	t.Helper()
	v, err := entity.NewRunnerHostBuilder().Name("host-1").UniqueID(5).Build()
	if err != nil {
		t.Fatalf("build runner host: %v", err)
	}
	return v
}

func TestMigrateTranslatesSimpleChain(t *testing.T) {
	src := objstore.NewVectorStore()
	instRef := src.StoreInstance(mustInstance(t, 1))

	project, err := entity.NewProjectBuilder().ForgeID(42).URL("https://gitlab.example.com/g/p").Instance(instRef).Build()
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	projectRef := src.StoreProject(project)

	user, err := entity.NewUserBuilder().ForgeID(7).Instance(instRef).Handle("alice").Build()
	if err != nil {
		t.Fatalf("build user: %v", err)
	}
	userRef := src.StoreUser(user)

	mr, err := entity.NewMergeRequestBuilder().
		ID(1).
		SourceProject(projectRef).
		TargetProject(projectRef).
		ForgeID(100).
		State(entity.MergeRequestStatusOpen).
		Author(userRef).
		URL("https://gitlab.example.com/g/p/-/merge_requests/1").
		Build()
	if err != nil {
		t.Fatalf("build merge request: %v", err)
	}
	src.StoreMergeRequest(mr)

	sink := objstore.NewVectorStore()
	maps, err := Migrate(src, sink)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	sinkMRs := sink.AllMergeRequestRefs()
	if len(sinkMRs) != 1 {
		t.Fatalf("sink has %d merge requests, want 1", len(sinkMRs))
	}
	got, ok := sink.LookupMergeRequest(sinkMRs[0])
	if !ok {
		t.Fatal("sink merge request not found")
	}
	wantProject, ok := maps.Projects[projectRef.VectorIndex()]
	if !ok {
		t.Fatal("project index was not translated")
	}
	if got.SourceProject.VectorIndex() != wantProject {
		t.Errorf("SourceProject index = %d, want %d", got.SourceProject.VectorIndex(), wantProject)
	}
	if got.TargetProject.VectorIndex() != wantProject {
		t.Errorf("TargetProject index = %d, want %d", got.TargetProject.VectorIndex(), wantProject)
	}
}

func TestMigratePreservesExistingSinkRecords(t *testing.T) {
	src := objstore.NewVectorStore()
	src.StoreInstance(mustInstance(t, 1))

	sink := objstore.NewVectorStore()
	existing, err := entity.NewInstanceBuilder().UniqueID(99).Forge("gitea").URL("https://gitea.example.com").Build()
	if err != nil {
		t.Fatalf("build instance: %v", err)
	}
	sink.StoreInstance(existing)

	if _, err := Migrate(src, sink); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	all := sink.AllInstanceRefs()
	if len(all) != 2 {
		t.Fatalf("sink has %d instances, want 2 (1 pre-existing + 1 migrated)", len(all))
	}
	first, ok := sink.LookupInstance(all[0])
	if !ok || first.UniqueID != 99 {
		t.Errorf("pre-existing instance was disturbed: %+v", first)
	}
}

func TestMigrateResolvesSelfReferentialPipelineParents(t *testing.T) {
	src := objstore.NewVectorStore()
	instRef := src.StoreInstance(mustInstance(t, 1))
	project, err := entity.NewProjectBuilder().ForgeID(1).URL("https://gitlab.example.com/g/p").Instance(instRef).Build()
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	projectRef := src.StoreProject(project)

	now := time.Now()

	// Store the child (with its parent link already known) before the
	// parent exists in the store, so a naive single pass would see an
	// untranslated ParentPipeline and must defer instead of failing.
	child, err := entity.NewPipelineBuilder().
		Project(projectRef).SHA("child-sha").Source(entity.PipelineSourceParentPipeline).
		Status(entity.PipelineStatusRunning).ForgeID(2).URL("https://gitlab.example.com/g/p/-/pipelines/2").
		CreatedAt(now).UpdatedAt(now).
		ParentPipelineRef(ref.Vector[entity.Pipeline](1)).
		Build()
	if err != nil {
		t.Fatalf("build child pipeline: %v", err)
	}
	childRef := src.StorePipeline(child)

	parent, err := entity.NewPipelineBuilder().
		Project(projectRef).SHA("parent-sha").Source(entity.PipelineSourcePush).
		Status(entity.PipelineStatusSuccess).ForgeID(1).URL("https://gitlab.example.com/g/p/-/pipelines/1").
		CreatedAt(now).UpdatedAt(now).
		Build()
	if err != nil {
		t.Fatalf("build parent pipeline: %v", err)
	}
	parentRef := src.StorePipeline(parent)
	if parentRef.VectorIndex() != 1 {
		t.Fatalf("test setup assumption broken: parent stored at index %d, want 1", parentRef.VectorIndex())
	}

	sink := objstore.NewVectorStore()
	maps, err := Migrate(src, sink)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	sinkChildIdx, ok := maps.Pipelines[childRef.VectorIndex()]
	if !ok {
		t.Fatal("child pipeline index was not translated")
	}
	sinkChild, ok := sink.LookupPipeline(ref.Vector[entity.Pipeline](sinkChildIdx))
	if !ok {
		t.Fatal("migrated child pipeline not found in sink")
	}
	if !sinkChild.ParentPipeline.Valid() {
		t.Fatal("migrated child pipeline lost its parent reference")
	}
	sinkParentIdx, ok := maps.Pipelines[parentRef.VectorIndex()]
	if !ok {
		t.Fatal("parent pipeline index was not translated")
	}
	if sinkChild.ParentPipeline.VectorIndex() != sinkParentIdx {
		t.Errorf("child's translated parent index = %d, want %d", sinkChild.ParentPipeline.VectorIndex(), sinkParentIdx)
	}
}

func TestMigrateReportsDanglingReference(t *testing.T) {
	src := objstore.NewVectorStore()
	instRef := src.StoreInstance(mustInstance(t, 1))

	// A Runner naming a RunnerHost index that was never stored must
	// surface as a dangling reference, not silently drop the field.
	runner, err := entity.NewRunnerBuilder().
		ForgeID(1).Instance(instRef).Type(entity.RunnerTypeInstance).
		ProtectionLevel(entity.RunnerProtectionLevelAny).
		RunnerHostRef(ref.Vector[entity.RunnerHost](0)).
		Build()
	if err != nil {
		t.Fatalf("build runner: %v", err)
	}
	src.StoreRunner(runner)

	sink := objstore.NewVectorStore()
	_, err = Migrate(src, sink)
	if err == nil {
		t.Fatal("expected Migrate to fail on a dangling runner-host reference")
	}
	if _, ok := err.(*DanglingSourceIndexError); !ok {
		t.Errorf("err = %T (%v), want *DanglingSourceIndexError", err, err)
	}
}

func TestMigrateDetectsPipelineCycle(t *testing.T) {
	src := objstore.NewVectorStore()
	instRef := src.StoreInstance(mustInstance(t, 1))
	project, err := entity.NewProjectBuilder().ForgeID(1).URL("https://gitlab.example.com/g/p").Instance(instRef).Build()
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	projectRef := src.StoreProject(project)
	now := time.Now()

	// index 0 will claim index 1 as its parent, and index 1 will
	// claim index 0: a cycle with no valid topological order.
	a, err := entity.NewPipelineBuilder().
		Project(projectRef).SHA("a").Source(entity.PipelineSourcePush).Status(entity.PipelineStatusRunning).
		ForgeID(1).URL("https://gitlab.example.com/g/p/-/pipelines/1").CreatedAt(now).UpdatedAt(now).
		ParentPipelineRef(ref.Vector[entity.Pipeline](1)).
		Build()
	if err != nil {
		t.Fatalf("build pipeline a: %v", err)
	}
	src.StorePipeline(a)

	b, err := entity.NewPipelineBuilder().
		Project(projectRef).SHA("b").Source(entity.PipelineSourcePush).Status(entity.PipelineStatusRunning).
		ForgeID(2).URL("https://gitlab.example.com/g/p/-/pipelines/2").CreatedAt(now).UpdatedAt(now).
		ParentPipelineRef(ref.Vector[entity.Pipeline](0)).
		Build()
	if err != nil {
		t.Fatalf("build pipeline b: %v", err)
	}
	src.StorePipeline(b)

	sink := objstore.NewVectorStore()
	_, err = Migrate(src, sink)
	if err == nil {
		t.Fatal("expected Migrate to fail on a parent-pipeline cycle")
	}
	if _, ok := err.(*PipelineCycleError); !ok {
		t.Errorf("err = %T (%v), want *PipelineCycleError", err, err)
	}
}
