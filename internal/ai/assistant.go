// Package ai defines the text-generation capability contracts the pipeline
// depends on. The three capabilities are stateless request/response calls;
// retries and circuit breaking belong to the reliability wrapper around them.
package ai

import (
	"context"

	"github.com/jobscout-dev/jobscout/internal/profile"
	"github.com/jobscout-dev/jobscout/internal/source"
)

// FitAssessment is the verdict of comparing a posting against the profile.
type FitAssessment struct {
	Fit    bool
	Score  float64
	Reason string
	Raw    string
}

// EditSuggestion proposes one change to a resume experience entry.
type EditSuggestion struct {
	Original  string `json:"original"`
	Proposed  string `json:"proposed"`
	Rationale string `json:"rationale"`
}

// Draft is one generation attempt for a posting. Superseded drafts are
// discarded, not merged.
type Draft struct {
	PostingID   string
	Attempt     int
	Edits       []EditSuggestion
	CoverLetter string
	Raw         string
}

// Verdict is the review outcome for a draft. Feedback is only meaningful when
// the draft is rejected.
type Verdict struct {
	Approved bool
	Score    float64
	Feedback string
	Raw      string
}

// Matcher decides whether a posting fits the profile.
type Matcher interface {
	Evaluate(ctx context.Context, prof *profile.Profile, posting *source.Posting) (*FitAssessment, error)
}

// Writer produces application content for an accepted posting. feedback
// carries the reviewer's rejection reason from the previous attempt, empty on
// the first one. lastChance marks the final attempt.
type Writer interface {
	Generate(ctx context.Context, posting *source.Posting, prof *profile.Profile, feedback string, lastChance bool) (*Draft, error)
}

// Reviewer judges a draft against the posting it was written for.
type Reviewer interface {
	Review(ctx context.Context, draft *Draft, posting *source.Posting) (*Verdict, error)
}
