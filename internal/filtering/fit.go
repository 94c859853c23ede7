// Package filtering decides which postings are worth generating content for.
package filtering

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/ai"
	"github.com/jobscout-dev/jobscout/internal/profile"
	"github.com/jobscout-dev/jobscout/internal/reliability"
	"github.com/jobscout-dev/jobscout/internal/source"
)

// ErrValidationUnavailable means the comparison backend could not be reached.
// The affected posting is skipped, never defaulted to accepted or rejected.
var ErrValidationUnavailable = errors.New("fit validation backend unavailable")

// FitDecision is the outcome of comparing one posting against the profile.
// Produced once per posting, never mutated.
type FitDecision struct {
	PostingID string
	Accepted  bool
	Score     float64
	Rationale string
}

// FitFilter scores postings against the user profile through the matcher
// capability.
type FitFilter struct {
	matcher ai.Matcher
	backend *reliability.Wrapper
	logger  *zap.Logger
}

func NewFit(matcher ai.Matcher, backend *reliability.Wrapper, logger *zap.Logger) *FitFilter {
	return &FitFilter{
		matcher: matcher,
		backend: backend,
		logger:  logger,
	}
}

// Decide produces the FitDecision for one posting. A backend failure is
// reported as ErrValidationUnavailable so callers can keep it out of the
// accepted/rejected bookkeeping.
func (f *FitFilter) Decide(ctx context.Context, posting *source.Posting, prof *profile.Profile) (*FitDecision, error) {
	assessment, err := reliability.Call(ctx, f.backend, func(ctx context.Context) (*ai.FitAssessment, error) {
		return f.matcher.Evaluate(ctx, prof, posting)
	})
	if err != nil {
		// A cancelled run is not a backend outage.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: posting %s: %v", ErrValidationUnavailable, posting.ID, err)
	}

	decision := &FitDecision{
		PostingID: posting.ID,
		Accepted:  assessment.Fit,
		Score:     assessment.Score,
		Rationale: assessment.Reason,
	}

	if decision.Accepted {
		f.logger.Info("posting accepted by fit filter",
			zap.String("posting_id", posting.ID),
			zap.Float64("score", assessment.Score),
		)
	} else {
		f.logger.Info("posting rejected by fit filter",
			zap.String("posting_id", posting.ID),
			zap.Float64("score", assessment.Score),
			zap.String("reason", assessment.Reason),
		)
	}

	return decision, nil
}
