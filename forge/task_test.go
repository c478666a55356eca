package forge

import "testing"

// TestTaskKindsAreUnique guards against a copy-pasted TaskKind method
// accidentally returning the wrong constant.
func TestTaskKindsAreUnique(t *testing.T) {
	tasks := []Task{
		DiscoverStaleData{},
		UpdateRunnerHost{},
		AssignRunnerToHost{},
		UpdateProjectByName{},
		UpdateProject{},
		UpdateUserByName{},
		UpdateUser{},
		DiscoverRunners{},
		UpdateRunner{},
		DiscoverPipelineSchedules{},
		UpdatePipelineSchedule{},
		DiscoverMergeRequests{},
		UpdateMergeRequest{},
		DiscoverPipelines{},
		DiscoverMergeRequestPipelines{},
		UpdatePipeline{},
		DiscoverEnvironments{},
		UpdateEnvironment{},
		DiscoverDeployments{},
		UpdateDeployment{},
		DiscoverJobs{},
		UpdateJob{},
		UpdateJobArtifacts{},
		FetchJobArtifact{},
	}
	seen := make(map[Kind]bool, len(tasks))
	for _, task := range tasks {
		kind := task.TaskKind()
		if seen[kind] {
			t.Errorf("duplicate TaskKind %q", kind)
		}
		seen[kind] = true
	}
	if len(seen) != len(tasks) {
		t.Errorf("expected %d distinct kinds, got %d", len(tasks), len(seen))
	}
}
