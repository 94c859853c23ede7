// Package profile loads the user's acceptance criteria and resume. Loaded once
// per run and read-only afterwards.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Experience is one structured resume entry.
type Experience struct {
	Company    string   `yaml:"company" json:"company"`
	Title      string   `yaml:"title" json:"title"`
	Period     string   `yaml:"period" json:"period"`
	Highlights []string `yaml:"highlights" json:"highlights"`
}

// Resume is the user's experience structure.
type Resume struct {
	Name       string       `yaml:"name" json:"name"`
	Summary    string       `yaml:"summary" json:"summary"`
	Experience []Experience `yaml:"experience" json:"experience"`
	Skills     []string     `yaml:"skills" json:"skills"`
}

// Profile bundles everything the pipeline knows about the user.
type Profile struct {
	// Criteria is the free-text description of what a good fit looks like.
	Criteria string
	Resume   *Resume
	// WritingSamples are optional texts whose style generated content should
	// emulate.
	WritingSamples []string
}

// Load reads the criteria text file, the YAML resume and, when samplesDir is
// set, every regular file in it as a writing sample.
func Load(criteriaFile, resumeFile, samplesDir string) (*Profile, error) {
	criteria, err := os.ReadFile(criteriaFile)
	if err != nil {
		return nil, fmt.Errorf("reading fit criteria: %w", err)
	}

	resumeData, err := os.ReadFile(resumeFile)
	if err != nil {
		return nil, fmt.Errorf("reading resume: %w", err)
	}

	var resume Resume
	if err := yaml.Unmarshal(resumeData, &resume); err != nil {
		return nil, fmt.Errorf("parsing resume %q: %w", resumeFile, err)
	}

	prof := &Profile{
		Criteria: strings.TrimSpace(string(criteria)),
		Resume:   &resume,
	}

	if prof.Criteria == "" {
		return nil, fmt.Errorf("fit criteria file %q is empty", criteriaFile)
	}

	if samplesDir != "" {
		samples, err := loadSamples(samplesDir)
		if err != nil {
			return nil, err
		}
		prof.WritingSamples = samples
	}

	return prof, nil
}

// ResumeJSON renders the resume for prompt embedding.
func (p *Profile) ResumeJSON() (string, error) {
	data, err := json.MarshalIndent(p.Resume, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal resume: %w", err)
	}
	return string(data), nil
}

func loadSamples(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading writing samples dir: %w", err)
	}

	var samples []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading writing sample %q: %w", entry.Name(), err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			samples = append(samples, text)
		}
	}
	return samples, nil
}
