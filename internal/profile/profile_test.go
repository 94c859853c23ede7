package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	criteria := writeFile(t, dir, "criteria.txt", "Remote Go roles only.\n")
	resume := writeFile(t, dir, "resume.yaml", `
name: Jane Doe
summary: Backend engineer
skills:
  - Go
  - PostgreSQL
experience:
  - company: Acme
    title: Engineer
    period: 2020-2024
    highlights:
      - Built the billing pipeline
`)

	samplesDir := filepath.Join(dir, "samples")
	if err := os.Mkdir(samplesDir, 0o755); err != nil {
		t.Fatalf("creating samples dir: %v", err)
	}
	writeFile(t, samplesDir, "post.md", "I like reliable systems.")
	writeFile(t, samplesDir, "empty.md", "   ")

	prof, err := Load(criteria, resume, samplesDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if prof.Criteria != "Remote Go roles only." {
		t.Fatalf("unexpected criteria: %q", prof.Criteria)
	}
	if prof.Resume.Name != "Jane Doe" || len(prof.Resume.Skills) != 2 {
		t.Fatalf("unexpected resume: %+v", prof.Resume)
	}
	if len(prof.Resume.Experience) != 1 || prof.Resume.Experience[0].Company != "Acme" {
		t.Fatalf("unexpected experience: %+v", prof.Resume.Experience)
	}
	if len(prof.WritingSamples) != 1 {
		t.Fatalf("blank samples must be dropped, got %d", len(prof.WritingSamples))
	}

	resumeJSON, err := prof.ResumeJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resumeJSON, `"Jane Doe"`) {
		t.Fatalf("unexpected resume json: %s", resumeJSON)
	}
}

func TestLoadEmptyCriteriaFails(t *testing.T) {
	dir := t.TempDir()
	criteria := writeFile(t, dir, "criteria.txt", "  \n")
	resume := writeFile(t, dir, "resume.yaml", "name: Jane")

	if _, err := Load(criteria, resume, ""); err == nil {
		t.Fatal("expected an error for empty criteria")
	}
}

func TestLoadMissingResumeFails(t *testing.T) {
	dir := t.TempDir()
	criteria := writeFile(t, dir, "criteria.txt", "Go roles.")

	if _, err := Load(criteria, filepath.Join(dir, "missing.yaml"), ""); err == nil {
		t.Fatal("expected an error for a missing resume")
	}
}
