package forge

import "testing"

func TestMapMergeRequestStatus(t *testing.T) {
	cases := map[string]string{
		"opened":   "open",
		"reopened": "open",
		"locked":   "open",
		"closed":   "closed",
		"merged":   "merged",
	}
	for wire, want := range cases {
		got, err := MapMergeRequestStatus(wire)
		if err != nil {
			t.Fatalf("MapMergeRequestStatus(%q): %v", wire, err)
		}
		if got.String() != want {
			t.Errorf("MapMergeRequestStatus(%q) = %v, want %v", wire, got, want)
		}
	}
	if _, err := MapMergeRequestStatus("bogus"); err == nil {
		t.Error("expected error for unmapped merge request status")
	}
}

func TestMapRunnerType(t *testing.T) {
	cases := map[string]string{
		"instance_type": "instance",
		"group_type":    "group",
		"project_type":  "project",
	}
	for wire, want := range cases {
		got, err := MapRunnerType(wire)
		if err != nil {
			t.Fatalf("MapRunnerType(%q): %v", wire, err)
		}
		if got.String() != want {
			t.Errorf("MapRunnerType(%q) = %v, want %v", wire, got, want)
		}
	}
	if _, err := MapRunnerType("weird"); err == nil {
		t.Error("expected error for unmapped runner type")
	}
}

func TestMapRunnerProtectionLevel(t *testing.T) {
	if got, err := MapRunnerProtectionLevel("ref_protected"); err != nil || got.String() != "protected" {
		t.Errorf("ref_protected -> %v, %v", got, err)
	}
	if got, err := MapRunnerProtectionLevel("not_protected"); err != nil || got.String() != "any" {
		t.Errorf("not_protected -> %v, %v", got, err)
	}
	if _, err := MapRunnerProtectionLevel("????"); err == nil {
		t.Error("expected error for unmapped protection level")
	}
}

func TestMapPipelineVariableType(t *testing.T) {
	if got, err := MapPipelineVariableType("env_var"); err != nil || got.String() != "string" {
		t.Errorf("env_var -> %v, %v", got, err)
	}
	if got, err := MapPipelineVariableType("file"); err != nil || got.String() != "file" {
		t.Errorf("file -> %v, %v", got, err)
	}
	if _, err := MapPipelineVariableType("nope"); err == nil {
		t.Error("expected error for unmapped variable type")
	}
}

func TestDirectLookupMappings(t *testing.T) {
	if _, err := MapPipelineStatus("success"); err != nil {
		t.Errorf("MapPipelineStatus(success): %v", err)
	}
	if _, err := MapPipelineStatus("???"); err == nil {
		t.Error("expected error for unmapped pipeline status")
	}
	if _, err := MapPipelineSource("push"); err != nil {
		t.Errorf("MapPipelineSource(push): %v", err)
	}
	if _, err := MapPipelineSource("ondemand_dast_scan"); err == nil {
		t.Error("expected the underscored canonical form, not GitLab's non-underscored quirk")
	}
	if _, err := MapJobState("running"); err != nil {
		t.Errorf("MapJobState(running): %v", err)
	}
	if _, err := MapDeploymentStatus("blocked"); err != nil {
		t.Errorf("MapDeploymentStatus(blocked): %v", err)
	}
	if _, err := MapEnvironmentState("stopped"); err != nil {
		t.Errorf("MapEnvironmentState(stopped): %v", err)
	}
	if _, err := MapEnvironmentTier("production"); err != nil {
		t.Errorf("MapEnvironmentTier(production): %v", err)
	}
}

func TestParseCoverage(t *testing.T) {
	if v, err := ParseCoverage(nil); err != nil || v != nil {
		t.Errorf("ParseCoverage(nil) = %v, %v; want nil, nil", v, err)
	}
	if v, err := ParseCoverage(float64(87.5)); err != nil || v == nil || *v != 87.5 {
		t.Errorf("ParseCoverage(87.5) = %v, %v; want 87.5, nil", v, err)
	}
	if v, err := ParseCoverage("42.0"); err != nil || v == nil || *v != 42.0 {
		t.Errorf("ParseCoverage(\"42.0\") = %v, %v; want 42.0, nil", v, err)
	}
	if v, err := ParseCoverage("not a number"); err != nil || v != nil {
		t.Errorf("ParseCoverage(garbage) = %v, %v; want nil, nil", v, err)
	}
	if _, err := ParseCoverage(42); err == nil {
		t.Error("expected error for unsupported coverage value type")
	}
}
