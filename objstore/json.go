package objstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ehrlich-b/cinch/entity"
	"github.com/ehrlich-b/cinch/ref"
)

// CurrentVersion is the on-disk schema version this build writes and
// reads. There is no schema evolution beyond this single number: a
// store written by a newer version is rejected rather than guessed at.
const CurrentVersion = 1

// vecIndex is the commit marker for a vector store directory. Its
// presence (written last, after every per-type record file) is what
// makes a directory a complete, loadable store: a crash between
// writing records and writing this one leaves an incomplete directory
// that Load correctly refuses rather than silently accepting partial
// data. Counts double as the expected record count per type, so Load
// can detect a truncated type directory before it ever dereferences a
// missing reference.
type vecIndex struct {
	Version int            `json:"version"`
	Counts  map[string]int `json:"counts"`
}

// UnsupportedVersionError is returned by Load when a store directory
// was written by a version of this schema that this build doesn't know
// how to read.
type UnsupportedVersionError struct {
	Got, Want int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("objstore: unsupported schema version %d (want %d)", e.Got, e.Want)
}

// MissingIndexError is returned when a loaded record's reference does
// not resolve to any record of the referenced type.
type MissingIndexError struct {
	Type  string
	Field string
	Index int
}

func (e *MissingIndexError) Error() string {
	return fmt.Sprintf("objstore: %s.%s references missing index %d", e.Type, e.Field, e.Index)
}

// TruncatedTypeError is returned when a type directory holds fewer
// record files than vecindex.json's counts promised.
type TruncatedTypeError struct {
	Type string
	Want int
	Got  int
}

func (e *TruncatedTypeError) Error() string {
	return fmt.Sprintf("objstore: %s: vecindex.json counts %d records, found %d", e.Type, e.Want, e.Got)
}

// typeDir names the on-disk directory for each persisted entity type,
// in dependency order: each type comes after the types its records
// reference (Pipeline's parent reference to itself aside). This is not
// the order migrate.Migrate walks.
const (
	dirInstances         = "instances"
	dirProjects          = "projects"
	dirUsers             = "users"
	dirRunnerHosts       = "runner_hosts"
	dirRunners           = "runners"
	dirMergeRequests     = "merge_requests"
	dirPipelineSchedules = "pipeline_schedules"
	dirPipelines         = "pipelines"
	dirEnvironments      = "environments"
	dirDeployments       = "deployments"
	dirJobs              = "jobs"
	dirJobArtifacts      = "job_artifacts"
)

// Save persists store to dir, creating it if necessary. Every record of
// every type is written, one file per record, before vecindex.json, so
// a reader never observes a directory whose index claims a version but
// whose record files are still being written.
func Save(store *VectorStore, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("objstore: creating store directory: %w", err)
	}

	counts := map[string]int{}

	writers := []struct {
		name string
		fn   func() (int, error)
	}{
		{dirInstances, func() (int, error) { return saveRecords(dir, dirInstances, store.Instances.All()) }},
		{dirProjects, func() (int, error) { return saveRecords(dir, dirProjects, store.Projects.All()) }},
		{dirUsers, func() (int, error) { return saveRecords(dir, dirUsers, store.Users.All()) }},
		{dirRunnerHosts, func() (int, error) { return saveRecords(dir, dirRunnerHosts, store.RunnerHosts.All()) }},
		{dirRunners, func() (int, error) { return saveRecords(dir, dirRunners, store.Runners.All()) }},
		{dirMergeRequests, func() (int, error) { return saveRecords(dir, dirMergeRequests, store.MergeRequests.All()) }},
		{dirPipelineSchedules, func() (int, error) { return saveRecords(dir, dirPipelineSchedules, store.PipelineSchedules.All()) }},
		{dirPipelines, func() (int, error) { return saveRecords(dir, dirPipelines, store.Pipelines.All()) }},
		{dirEnvironments, func() (int, error) { return saveRecords(dir, dirEnvironments, store.Environments.All()) }},
		{dirDeployments, func() (int, error) { return saveRecords(dir, dirDeployments, store.Deployments.All()) }},
		{dirJobs, func() (int, error) { return saveRecords(dir, dirJobs, store.Jobs.All()) }},
		{dirJobArtifacts, func() (int, error) { return saveRecords(dir, dirJobArtifacts, store.JobArtifacts.All()) }},
	}
	for _, w := range writers {
		n, err := w.fn()
		if err != nil {
			return err
		}
		counts[w.name] = n
	}

	return writeJSON(dir, "vecindex.json", vecIndex{Version: CurrentVersion, Counts: counts})
}

// saveRecords writes rows as typeDir/0.json … typeDir/(len(rows)-1).json.
func saveRecords[T any](dir, typeDir string, rows []T) (int, error) {
	recDir := filepath.Join(dir, typeDir)
	if err := os.MkdirAll(recDir, 0o755); err != nil {
		return 0, fmt.Errorf("objstore: creating %s directory: %w", typeDir, err)
	}
	for i, row := range rows {
		data, err := json.MarshalIndent(row, "", "  ")
		if err != nil {
			return 0, fmt.Errorf("objstore: encoding %s/%d.json: %w", typeDir, i, err)
		}
		name := filepath.Join(recDir, strconv.Itoa(i)+".json")
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return 0, fmt.Errorf("objstore: writing %s/%d.json: %w", typeDir, i, err)
		}
	}
	return len(rows), nil
}

// loadRecords reads typeDir/0.json … typeDir/(count-1).json in order.
func loadRecords[T any](dir, typeDir string, count int) ([]T, error) {
	// A directory with more files than vecindex.json promised still
	// loads correctly (extra files are simply never read); a directory
	// with fewer is a truncated store and must be rejected.
	if entries, err := os.ReadDir(filepath.Join(dir, typeDir)); err == nil && len(entries) < count {
		return nil, &TruncatedTypeError{Type: typeDir, Want: count, Got: len(entries)}
	}
	rows := make([]T, 0, count)
	for i := 0; i < count; i++ {
		name := filepath.Join(dir, typeDir, strconv.Itoa(i)+".json")
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("objstore: reading %s/%d.json: %w", typeDir, i, err)
		}
		var row T
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, fmt.Errorf("objstore: decoding %s/%d.json: %w", typeDir, i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeJSON(dir, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("objstore: encoding %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("objstore: writing %s: %w", name, err)
	}
	return nil
}

func readJSON(dir, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("objstore: reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("objstore: decoding %s: %w", name, err)
	}
	return nil
}

// Load reads a store directory written by Save, validates its schema
// version, and runs the reference-validation pass described by
// validateReferences before returning.
func Load(dir string) (*VectorStore, error) {
	var idx vecIndex
	if err := readJSON(dir, "vecindex.json", &idx); err != nil {
		return nil, err
	}
	if idx.Version != CurrentVersion {
		return nil, &UnsupportedVersionError{Got: idx.Version, Want: CurrentVersion}
	}

	store := NewVectorStore()

	instances, err := loadRecords[entity.Instance](dir, dirInstances, idx.Counts[dirInstances])
	if err != nil {
		return nil, err
	}
	for _, v := range instances {
		store.Instances.Append(v)
	}

	projects, err := loadRecords[entity.Project](dir, dirProjects, idx.Counts[dirProjects])
	if err != nil {
		return nil, err
	}
	for _, v := range projects {
		store.Projects.Append(v)
	}

	users, err := loadRecords[entity.User](dir, dirUsers, idx.Counts[dirUsers])
	if err != nil {
		return nil, err
	}
	for _, v := range users {
		store.Users.Append(v)
	}

	runnerHosts, err := loadRecords[entity.RunnerHost](dir, dirRunnerHosts, idx.Counts[dirRunnerHosts])
	if err != nil {
		return nil, err
	}
	for _, v := range runnerHosts {
		store.RunnerHosts.Append(v)
	}

	runners, err := loadRecords[entity.Runner](dir, dirRunners, idx.Counts[dirRunners])
	if err != nil {
		return nil, err
	}
	for _, v := range runners {
		store.Runners.Append(v)
	}

	mrs, err := loadRecords[entity.MergeRequest](dir, dirMergeRequests, idx.Counts[dirMergeRequests])
	if err != nil {
		return nil, err
	}
	for _, v := range mrs {
		store.MergeRequests.Append(v)
	}

	schedules, err := loadRecords[entity.PipelineSchedule](dir, dirPipelineSchedules, idx.Counts[dirPipelineSchedules])
	if err != nil {
		return nil, err
	}
	for _, v := range schedules {
		store.PipelineSchedules.Append(v)
	}

	pipelines, err := loadRecords[entity.Pipeline](dir, dirPipelines, idx.Counts[dirPipelines])
	if err != nil {
		return nil, err
	}
	for _, v := range pipelines {
		store.Pipelines.Append(v)
	}

	environments, err := loadRecords[entity.Environment](dir, dirEnvironments, idx.Counts[dirEnvironments])
	if err != nil {
		return nil, err
	}
	for _, v := range environments {
		store.Environments.Append(v)
	}

	deployments, err := loadRecords[entity.Deployment](dir, dirDeployments, idx.Counts[dirDeployments])
	if err != nil {
		return nil, err
	}
	for _, v := range deployments {
		store.Deployments.Append(v)
	}

	jobs, err := loadRecords[entity.Job](dir, dirJobs, idx.Counts[dirJobs])
	if err != nil {
		return nil, err
	}
	for _, v := range jobs {
		store.Jobs.Append(v)
	}

	artifacts, err := loadRecords[entity.JobArtifact](dir, dirJobArtifacts, idx.Counts[dirJobArtifacts])
	if err != nil {
		return nil, err
	}
	for _, v := range artifacts {
		store.JobArtifacts.Append(v)
	}

	if err := validateReferences(store); err != nil {
		return nil, err
	}
	return store, nil
}

// validateReferences walks every loaded record and confirms each set
// Ref field resolves within its target type's table. An unset reference
// is accepted for every field, required or optional; only a set
// reference whose index falls outside its target table is rejected.
func validateReferences(store *VectorStore) error {
	checkProject := func(typ, field string, r ref.Ref[entity.Project]) error {
		if !r.Valid() {
			return nil
		}
		if r.VectorIndex() < 0 || r.VectorIndex() >= store.Projects.Len() {
			return &MissingIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
		}
		return nil
	}
	checkInstance := func(typ, field string, r ref.Ref[entity.Instance]) error {
		if !r.Valid() {
			return nil
		}
		if r.VectorIndex() < 0 || r.VectorIndex() >= store.Instances.Len() {
			return &MissingIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
		}
		return nil
	}
	checkUser := func(typ, field string, r ref.Ref[entity.User]) error {
		if !r.Valid() {
			return nil
		}
		if r.VectorIndex() < 0 || r.VectorIndex() >= store.Users.Len() {
			return &MissingIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
		}
		return nil
	}
	checkRunnerHost := func(typ, field string, r ref.Ref[entity.RunnerHost]) error {
		if !r.Valid() {
			return nil
		}
		if r.VectorIndex() < 0 || r.VectorIndex() >= store.RunnerHosts.Len() {
			return &MissingIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
		}
		return nil
	}
	checkPipelineSchedule := func(typ, field string, r ref.Ref[entity.PipelineSchedule]) error {
		if !r.Valid() {
			return nil
		}
		if r.VectorIndex() < 0 || r.VectorIndex() >= store.PipelineSchedules.Len() {
			return &MissingIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
		}
		return nil
	}
	checkPipeline := func(typ, field string, r ref.Ref[entity.Pipeline]) error {
		if !r.Valid() {
			return nil
		}
		if r.VectorIndex() < 0 || r.VectorIndex() >= store.Pipelines.Len() {
			return &MissingIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
		}
		return nil
	}
	checkMergeRequest := func(typ, field string, r ref.Ref[entity.MergeRequest]) error {
		if !r.Valid() {
			return nil
		}
		if r.VectorIndex() < 0 || r.VectorIndex() >= store.MergeRequests.Len() {
			return &MissingIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
		}
		return nil
	}
	checkRunner := func(typ, field string, r ref.Ref[entity.Runner]) error {
		if !r.Valid() {
			return nil
		}
		if r.VectorIndex() < 0 || r.VectorIndex() >= store.Runners.Len() {
			return &MissingIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
		}
		return nil
	}
	checkEnvironment := func(typ, field string, r ref.Ref[entity.Environment]) error {
		if !r.Valid() {
			return nil
		}
		if r.VectorIndex() < 0 || r.VectorIndex() >= store.Environments.Len() {
			return &MissingIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
		}
		return nil
	}
	checkDeployment := func(typ, field string, r ref.Ref[entity.Deployment]) error {
		if !r.Valid() {
			return nil
		}
		if r.VectorIndex() < 0 || r.VectorIndex() >= store.Deployments.Len() {
			return &MissingIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
		}
		return nil
	}
	checkJob := func(typ, field string, r ref.Ref[entity.Job]) error {
		if !r.Valid() {
			return nil
		}
		if r.VectorIndex() < 0 || r.VectorIndex() >= store.Jobs.Len() {
			return &MissingIndexError{Type: typ, Field: field, Index: r.VectorIndex()}
		}
		return nil
	}

	for _, p := range store.Projects.All() {
		if err := checkInstance("Project", "instance", p.Instance); err != nil {
			return err
		}
	}
	for _, u := range store.Users.All() {
		if err := checkInstance("User", "instance", u.Instance); err != nil {
			return err
		}
	}
	for _, r := range store.Runners.All() {
		if err := checkInstance("Runner", "instance", r.Instance); err != nil {
			return err
		}
		if err := checkRunnerHost("Runner", "runner_host", r.RunnerHost); err != nil {
			return err
		}
		for _, p := range r.Projects {
			if err := checkProject("Runner", "projects", p); err != nil {
				return err
			}
		}
	}
	for _, mr := range store.MergeRequests.All() {
		if err := checkProject("MergeRequest", "source_project", mr.SourceProject); err != nil {
			return err
		}
		if err := checkProject("MergeRequest", "target_project", mr.TargetProject); err != nil {
			return err
		}
		if err := checkUser("MergeRequest", "author", mr.Author); err != nil {
			return err
		}
	}
	for _, s := range store.PipelineSchedules.All() {
		if err := checkProject("PipelineSchedule", "project", s.Project); err != nil {
			return err
		}
		if err := checkUser("PipelineSchedule", "owner", s.Owner); err != nil {
			return err
		}
	}
	for _, p := range store.Pipelines.All() {
		if err := checkProject("Pipeline", "project", p.Project); err != nil {
			return err
		}
		if err := checkPipelineSchedule("Pipeline", "schedule", p.Schedule); err != nil {
			return err
		}
		if err := checkPipeline("Pipeline", "parent_pipeline", p.ParentPipeline); err != nil {
			return err
		}
		if err := checkMergeRequest("Pipeline", "merge_request", p.MergeRequest); err != nil {
			return err
		}
		if err := checkUser("Pipeline", "user", p.User); err != nil {
			return err
		}
	}
	for _, e := range store.Environments.All() {
		if err := checkProject("Environment", "project", e.Project); err != nil {
			return err
		}
	}
	for _, d := range store.Deployments.All() {
		if err := checkPipeline("Deployment", "pipeline", d.Pipeline); err != nil {
			return err
		}
		if err := checkEnvironment("Deployment", "environment", d.Environment); err != nil {
			return err
		}
	}
	for _, j := range store.Jobs.All() {
		if err := checkUser("Job", "user", j.User); err != nil {
			return err
		}
		if err := checkPipeline("Job", "pipeline", j.Pipeline); err != nil {
			return err
		}
		if err := checkRunner("Job", "runner", j.Runner); err != nil {
			return err
		}
		if err := checkDeployment("Job", "deployment", j.Deployment); err != nil {
			return err
		}
	}
	for _, a := range store.JobArtifacts.All() {
		if err := checkJob("JobArtifact", "job", a.Job); err != nil {
			return err
		}
	}

	return nil
}
