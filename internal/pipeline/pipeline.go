// Package pipeline drives the per-posting content state machine.
//
// Valid state graph:
//
//	PENDING_GENERATION ──► UNDER_REVIEW ──► APPROVED
//	        ▲    │               │
//	        │    │               ├──► RETRY_GENERATION ─┐
//	        │    └──► ABANDONED ◄┘                      │
//	        └───────────────────────────────────────────┘
//
// APPROVED and ABANDONED are terminal. Each posting's machine runs
// independently and synchronously to completion.
package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/ai"
	"github.com/jobscout-dev/jobscout/internal/notify"
	"github.com/jobscout-dev/jobscout/internal/profile"
	"github.com/jobscout-dev/jobscout/internal/reliability"
	"github.com/jobscout-dev/jobscout/internal/source"
)

// State of one posting's content machine.
type State string

const (
	StatePendingGeneration State = "PENDING_GENERATION"
	StateUnderReview       State = "UNDER_REVIEW"
	StateApproved          State = "APPROVED"
	StateRetryGeneration   State = "RETRY_GENERATION"
	StateAbandoned         State = "ABANDONED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[State][]State{
	StatePendingGeneration: {StateUnderReview, StateAbandoned},
	StateUnderReview:       {StateApproved, StateRetryGeneration, StateAbandoned},
	StateRetryGeneration:   {StatePendingGeneration},
	// APPROVED and ABANDONED are terminal
}

// Allowed returns true when moving from → to is permitted by the state
// machine.
func Allowed(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AbandonReason explains why a posting produced no payload.
type AbandonReason string

const (
	ReasonGenerationUnavailable AbandonReason = "generation_unavailable"
	ReasonGenerationFailed      AbandonReason = "generation_failed"
	ReasonReviewUnavailable     AbandonReason = "review_unavailable"
	ReasonReviewExhausted       AbandonReason = "review_exhausted"
)

// Outcome is the terminal result for one posting.
type Outcome struct {
	PostingID string
	State     State
	Reason    AbandonReason
	Attempts  int
	Draft     *ai.Draft
	Verdict   *ai.Verdict
	Payload   *notify.Payload
}

// Config holds the pipeline policy.
type Config struct {
	// MaxAttempts bounds generation attempts per posting (default 3).
	MaxAttempts int
	// ApproveScore approves a draft whose review score reaches it even when
	// the reviewer said no. Zero disables the shortcut.
	ApproveScore float64
}

// Pipeline turns an accepted posting into finished notification content, or
// abandons it.
type Pipeline struct {
	writer   ai.Writer
	reviewer ai.Reviewer
	generate *reliability.Wrapper
	review   *reliability.Wrapper
	cfg      Config
	logger   *zap.Logger
}

func New(writer ai.Writer, reviewer ai.Reviewer, generate, review *reliability.Wrapper, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Pipeline{
		writer:   writer,
		reviewer: reviewer,
		generate: generate,
		review:   review,
		cfg:      cfg,
		logger:   logger,
	}
}

// Process runs the state machine for one posting to completion. It never
// returns an error: every failure becomes an ABANDONED outcome so one
// posting's trouble cannot abort the run.
func (p *Pipeline) Process(ctx context.Context, posting *source.Posting, prof *profile.Profile) *Outcome {
	state := StatePendingGeneration
	feedback := ""

	var draft *ai.Draft
	var verdict *ai.Verdict

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		lastChance := attempt == p.cfg.MaxAttempts

		d, err := reliability.Call(ctx, p.generate, func(ctx context.Context) (*ai.Draft, error) {
			return p.writer.Generate(ctx, posting, prof, feedback, lastChance)
		})
		if err != nil {
			reason := ReasonGenerationFailed
			attempts := attempt
			if errors.Is(err, reliability.ErrCircuitOpen) {
				// The backend was never invoked; this attempt slot is not
				// consumed.
				reason = ReasonGenerationUnavailable
				attempts = attempt - 1
			}
			p.logger.Warn("abandoning posting: generation failed",
				zap.String("posting_id", posting.ID),
				zap.String("reason", string(reason)),
				zap.Error(err),
			)
			p.transition(&state, StateAbandoned, posting.ID)
			return &Outcome{PostingID: posting.ID, State: state, Reason: reason, Attempts: attempts, Draft: draft}
		}

		d.Attempt = attempt
		draft = d
		p.transition(&state, StateUnderReview, posting.ID)

		v, err := reliability.Call(ctx, p.review, func(ctx context.Context) (*ai.Verdict, error) {
			return p.reviewer.Review(ctx, draft, posting)
		})
		if err != nil {
			p.logger.Warn("abandoning posting: review failed",
				zap.String("posting_id", posting.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			p.transition(&state, StateAbandoned, posting.ID)
			return &Outcome{PostingID: posting.ID, State: state, Reason: ReasonReviewUnavailable, Attempts: attempt, Draft: draft}
		}

		verdict = v

		if v.Approved || (p.cfg.ApproveScore > 0 && v.Score >= p.cfg.ApproveScore) {
			p.logger.Info("draft approved",
				zap.String("posting_id", posting.ID),
				zap.Int("attempt", attempt),
				zap.Float64("score", v.Score),
			)
			p.transition(&state, StateApproved, posting.ID)
			return &Outcome{
				PostingID: posting.ID,
				State:     state,
				Attempts:  attempt,
				Draft:     draft,
				Verdict:   verdict,
				Payload:   renderSuccess(posting, draft),
			}
		}

		p.logger.Info("draft rejected by reviewer",
			zap.String("posting_id", posting.ID),
			zap.Int("attempt", attempt),
			zap.Float64("score", v.Score),
			zap.String("feedback", v.Feedback),
		)

		if attempt < p.cfg.MaxAttempts {
			p.transition(&state, StateRetryGeneration, posting.ID)
			p.transition(&state, StatePendingGeneration, posting.ID)
			// The rejected draft is discarded; only its feedback survives.
			feedback = v.Feedback
		}
	}

	p.transition(&state, StateAbandoned, posting.ID)
	return &Outcome{
		PostingID: posting.ID,
		State:     state,
		Reason:    ReasonReviewExhausted,
		Attempts:  p.cfg.MaxAttempts,
		Draft:     draft,
		Verdict:   verdict,
	}
}

func (p *Pipeline) transition(state *State, to State, postingID string) {
	if !Allowed(*state, to) {
		p.logger.Error("invalid pipeline transition",
			zap.String("posting_id", postingID),
			zap.String("from", string(*state)),
			zap.String("to", string(to)),
		)
	}
	*state = to
}
