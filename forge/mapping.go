package forge

import (
	"fmt"
	"strconv"

	"github.com/ehrlich-b/cinch/entity"
)

// mappingError reports a wire value with no entry in a fixed
// translation table.
type mappingError struct {
	enum string
	wire string
}

func (e *mappingError) Error() string {
	return fmt.Sprintf("forge: unmapped %s wire value %q", e.enum, e.wire)
}

// MapMergeRequestStatus translates a GitLab merge request state into
// the model's MergeRequestStatus. `locked` collapses into Open: GitLab
// uses it to mean "open, but rebase/merge is temporarily disallowed,"
// which is not a distinct status this model tracks.
func MapMergeRequestStatus(wire string) (entity.MergeRequestStatus, error) {
	switch wire {
	case "opened", "reopened", "locked":
		return entity.MergeRequestStatusOpen, nil
	case "closed":
		return entity.MergeRequestStatusClosed, nil
	case "merged":
		return entity.MergeRequestStatusMerged, nil
	default:
		return 0, &mappingError{enum: "MergeRequestStatus", wire: wire}
	}
}

// MapRunnerType translates a GitLab runner_type into the model's
// RunnerType.
func MapRunnerType(wire string) (entity.RunnerType, error) {
	switch wire {
	case "instance_type":
		return entity.RunnerTypeInstance, nil
	case "group_type":
		return entity.RunnerTypeGroup, nil
	case "project_type":
		return entity.RunnerTypeProject, nil
	default:
		return 0, &mappingError{enum: "RunnerType", wire: wire}
	}
}

// MapRunnerProtectionLevel translates GitLab's access_level into the
// model's RunnerProtectionLevel.
func MapRunnerProtectionLevel(wire string) (entity.RunnerProtectionLevel, error) {
	switch wire {
	case "ref_protected":
		return entity.RunnerProtectionLevelProtected, nil
	case "not_protected":
		return entity.RunnerProtectionLevelAny, nil
	default:
		return 0, &mappingError{enum: "RunnerProtectionLevel", wire: wire}
	}
}

// MapPipelineVariableType translates GitLab's variable_type into the
// model's PipelineVariableType.
func MapPipelineVariableType(wire string) (entity.PipelineVariableType, error) {
	switch wire {
	case "env_var":
		return entity.PipelineVariableTypeString, nil
	case "file":
		return entity.PipelineVariableTypeFile, nil
	default:
		return 0, &mappingError{enum: "PipelineVariableType", wire: wire}
	}
}

// MapPipelineStatus translates GitLab's pipeline status into the
// model's PipelineStatus. GitLab's wire names are already the
// canonical persisted names, so this is a direct lookup rather than a
// renaming table.
func MapPipelineStatus(wire string) (entity.PipelineStatus, error) {
	s, ok := entity.ParsePipelineStatus(wire)
	if !ok {
		return 0, &mappingError{enum: "PipelineStatus", wire: wire}
	}
	return s, nil
}

// MapPipelineSource translates GitLab's pipeline source into the
// model's PipelineSource, a direct lookup for the same reason as
// MapPipelineStatus.
func MapPipelineSource(wire string) (entity.PipelineSource, error) {
	s, ok := entity.ParsePipelineSource(wire)
	if !ok {
		return 0, &mappingError{enum: "PipelineSource", wire: wire}
	}
	return s, nil
}

// MapJobState translates GitLab's job status into the model's
// JobState, a direct lookup.
func MapJobState(wire string) (entity.JobState, error) {
	s, ok := entity.ParseJobState(wire)
	if !ok {
		return 0, &mappingError{enum: "JobState", wire: wire}
	}
	return s, nil
}

// MapDeploymentStatus translates GitLab's deployment status into the
// model's DeploymentStatus, a direct lookup.
func MapDeploymentStatus(wire string) (entity.DeploymentStatus, error) {
	s, ok := entity.ParseDeploymentStatus(wire)
	if !ok {
		return 0, &mappingError{enum: "DeploymentStatus", wire: wire}
	}
	return s, nil
}

// MapEnvironmentState translates GitLab's environment state into the
// model's EnvironmentState, a direct lookup.
func MapEnvironmentState(wire string) (entity.EnvironmentState, error) {
	s, ok := entity.ParseEnvironmentState(wire)
	if !ok {
		return 0, &mappingError{enum: "EnvironmentState", wire: wire}
	}
	return s, nil
}

// MapEnvironmentTier translates GitLab's environment tier into the
// model's EnvironmentTier, a direct lookup.
func MapEnvironmentTier(wire string) (entity.EnvironmentTier, error) {
	t, ok := entity.ParseEnvironmentTier(wire)
	if !ok {
		return 0, &mappingError{enum: "EnvironmentTier", wire: wire}
	}
	return t, nil
}

// ParseCoverage accepts a coverage value arriving as either a JSON
// number or a numeric string, the two forms GitLab's API is known to
// emit depending on endpoint. An unparseable string yields (nil, nil)
// rather than an error: an unreadable coverage value is treated as
// absent, not as a fetch failure.
func ParseCoverage(raw any) (*float64, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, nil
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("forge: unsupported coverage value type %T", raw)
	}
}
