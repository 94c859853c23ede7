package pipeline

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/ai"
	"github.com/jobscout-dev/jobscout/internal/profile"
	"github.com/jobscout-dev/jobscout/internal/reliability"
	"github.com/jobscout-dev/jobscout/internal/source"
)

type stubWriter struct {
	feedbacks   []string
	lastChances []bool
	err         error
}

func (w *stubWriter) Generate(_ context.Context, posting *source.Posting, _ *profile.Profile, feedback string, lastChance bool) (*ai.Draft, error) {
	w.feedbacks = append(w.feedbacks, feedback)
	w.lastChances = append(w.lastChances, lastChance)
	if w.err != nil {
		return nil, w.err
	}
	return &ai.Draft{PostingID: posting.ID, CoverLetter: "Dear team."}, nil
}

type stubReviewer struct {
	verdicts []*ai.Verdict
	err      error
	calls    int
}

func (r *stubReviewer) Review(_ context.Context, _ *ai.Draft, _ *source.Posting) (*ai.Verdict, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	v := r.verdicts[0]
	if len(r.verdicts) > 1 {
		r.verdicts = r.verdicts[1:]
	}
	return v, nil
}

func testPosting() *source.Posting {
	return &source.Posting{
		ID:      "p1",
		Title:   "Go Developer",
		Company: "Acme",
		URL:     "https://hh.ru/vacancy/1",
		Source:  "headhunter",
	}
}

// singleShot builds a wrapper with no retries so tests never sleep.
func singleShot(name string, retryable reliability.Classifier) *reliability.Wrapper {
	return reliability.New(name, reliability.Config{MaxRetries: 1}, retryable, nil, zap.NewNop())
}

func newTestPipeline(w ai.Writer, r ai.Reviewer, cfg Config) (*Pipeline, *reliability.Wrapper) {
	generate := singleShot("generate", nil)
	review := singleShot("review", nil)
	return New(w, r, generate, review, cfg, zap.NewNop()), generate
}

func TestProcessApprovesOnFirstAttempt(t *testing.T) {
	writer := &stubWriter{}
	reviewer := &stubReviewer{verdicts: []*ai.Verdict{{Approved: true, Score: 0.9}}}
	pipe, _ := newTestPipeline(writer, reviewer, Config{})

	outcome := pipe.Process(context.Background(), testPosting(), &profile.Profile{})

	if outcome.State != StateApproved {
		t.Fatalf("expected approved, got %s (%s)", outcome.State, outcome.Reason)
	}
	if outcome.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", outcome.Attempts)
	}
	if outcome.Payload == nil {
		t.Fatal("expected a rendered payload")
	}
	if outcome.Payload.Subject != "Go Developer at Acme" {
		t.Fatalf("unexpected subject: %q", outcome.Payload.Subject)
	}
}

func TestProcessFeedsRejectionFeedbackIntoRetry(t *testing.T) {
	writer := &stubWriter{}
	reviewer := &stubReviewer{verdicts: []*ai.Verdict{
		{Approved: false, Score: 0.3, Feedback: "too generic"},
		{Approved: true, Score: 0.8},
	}}
	pipe, _ := newTestPipeline(writer, reviewer, Config{})

	outcome := pipe.Process(context.Background(), testPosting(), &profile.Profile{})

	if outcome.State != StateApproved {
		t.Fatalf("expected approved, got %s", outcome.State)
	}
	if outcome.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", outcome.Attempts)
	}
	if len(writer.feedbacks) != 2 || writer.feedbacks[0] != "" || writer.feedbacks[1] != "too generic" {
		t.Fatalf("expected feedback to reach the second generation, got %v", writer.feedbacks)
	}
}

func TestProcessAbandonsAfterMaxAttempts(t *testing.T) {
	writer := &stubWriter{}
	reviewer := &stubReviewer{verdicts: []*ai.Verdict{{Approved: false, Score: 0.2, Feedback: "no"}}}
	pipe, _ := newTestPipeline(writer, reviewer, Config{MaxAttempts: 3})

	outcome := pipe.Process(context.Background(), testPosting(), &profile.Profile{})

	if outcome.State != StateAbandoned {
		t.Fatalf("expected abandoned, got %s", outcome.State)
	}
	if outcome.Reason != ReasonReviewExhausted {
		t.Fatalf("expected review_exhausted, got %s", outcome.Reason)
	}
	if outcome.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", outcome.Attempts)
	}
	if outcome.Payload != nil {
		t.Fatal("an abandoned posting must not carry a payload")
	}
	if !writer.lastChances[2] || writer.lastChances[0] || writer.lastChances[1] {
		t.Fatalf("expected only the final attempt to be last-chance, got %v", writer.lastChances)
	}
}

func TestProcessApprovesByScoreThreshold(t *testing.T) {
	writer := &stubWriter{}
	reviewer := &stubReviewer{verdicts: []*ai.Verdict{{Approved: false, Score: 0.92, Feedback: "minor nits"}}}
	pipe, _ := newTestPipeline(writer, reviewer, Config{ApproveScore: 0.9})

	outcome := pipe.Process(context.Background(), testPosting(), &profile.Profile{})

	if outcome.State != StateApproved {
		t.Fatalf("expected score-threshold approval, got %s", outcome.State)
	}
}

func TestProcessCircuitOpenDoesNotConsumeAttempt(t *testing.T) {
	writer := &stubWriter{}
	reviewer := &stubReviewer{verdicts: []*ai.Verdict{{Approved: true}}}

	// Trip the generation circuit before the pipeline runs.
	fatal := func(error) bool { return false }
	generate := reliability.New("generate", reliability.Config{MaxRetries: 1}, fatal, nil, zap.NewNop())
	_ = generate.Do(context.Background(), func(context.Context) error { return errors.New("quota exceeded") })
	if generate.State() != reliability.StateOpen {
		t.Fatalf("expected an open circuit, got %s", generate.State())
	}

	pipe := New(writer, reviewer, generate, singleShot("review", nil), Config{}, zap.NewNop())
	outcome := pipe.Process(context.Background(), testPosting(), &profile.Profile{})

	if outcome.State != StateAbandoned || outcome.Reason != ReasonGenerationUnavailable {
		t.Fatalf("expected generation_unavailable abandonment, got %s (%s)", outcome.State, outcome.Reason)
	}
	if outcome.Attempts != 0 {
		t.Fatalf("a circuit-open abandonment must not consume attempts, got %d", outcome.Attempts)
	}
	if len(writer.feedbacks) != 0 {
		t.Fatal("the writer must not be invoked while the circuit is open")
	}
}

func TestProcessGenerationFailureAbandons(t *testing.T) {
	writer := &stubWriter{err: errors.New("malformed response")}
	reviewer := &stubReviewer{}
	fatal := func(error) bool { return false }
	pipe := New(writer, reviewer, singleShot("generate", fatal), singleShot("review", nil), Config{}, zap.NewNop())

	outcome := pipe.Process(context.Background(), testPosting(), &profile.Profile{})

	if outcome.State != StateAbandoned || outcome.Reason != ReasonGenerationFailed {
		t.Fatalf("expected generation_failed abandonment, got %s (%s)", outcome.State, outcome.Reason)
	}
	if reviewer.calls != 0 {
		t.Fatal("review must not run without a draft")
	}
}

func TestProcessReviewFailureAbandons(t *testing.T) {
	writer := &stubWriter{}
	reviewer := &stubReviewer{err: errors.New("review backend down")}
	fatal := func(error) bool { return false }
	pipe := New(writer, reviewer, singleShot("generate", nil), singleShot("review", fatal), Config{}, zap.NewNop())

	outcome := pipe.Process(context.Background(), testPosting(), &profile.Profile{})

	if outcome.State != StateAbandoned || outcome.Reason != ReasonReviewUnavailable {
		t.Fatalf("expected review_unavailable abandonment, got %s (%s)", outcome.State, outcome.Reason)
	}
}

func TestAllowedTransitions(t *testing.T) {
	valid := [][2]State{
		{StatePendingGeneration, StateUnderReview},
		{StatePendingGeneration, StateAbandoned},
		{StateUnderReview, StateApproved},
		{StateUnderReview, StateRetryGeneration},
		{StateUnderReview, StateAbandoned},
		{StateRetryGeneration, StatePendingGeneration},
	}
	for _, pair := range valid {
		if !Allowed(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}

	invalid := [][2]State{
		{StateApproved, StatePendingGeneration},
		{StateAbandoned, StateUnderReview},
		{StatePendingGeneration, StateApproved},
		{StateRetryGeneration, StateUnderReview},
	}
	for _, pair := range invalid {
		if Allowed(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be rejected", pair[0], pair[1])
		}
	}
}
