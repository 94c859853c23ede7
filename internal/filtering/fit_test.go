package filtering

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

type stubMatcher struct {
	assessment *ai.FitAssessment
	err        error
	calls      int
}

func (s *stubMatcher) Evaluate(_ context.Context, _ *profile.Profile, _ *source.Posting) (*ai.FitAssessment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.assessment, nil
}

func testPosting() *source.Posting {
	return &source.Posting{ID: "p1", Title: "Go Developer", Company: "Acme"}
}

func newTestFilter(matcher ai.Matcher) *FitFilter {
	fatal := func(error) bool { return false }
	backend := reliability.New("validate", reliability.Config{MaxRetries: 1}, fatal, nil, zap.NewNop())
	return NewFit(matcher, backend, zap.NewNop())
}

func TestDecideAccepted(t *testing.T) {
	matcher := &stubMatcher{assessment: &ai.FitAssessment{Fit: true, Score: 0.85, Reason: "Strong match"}}
	filter := newTestFilter(matcher)

	decision, err := filter.Decide(context.Background(), testPosting(), &profile.Profile{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !decision.Accepted {
		t.Fatal("expected acceptance")
	}
	if decision.PostingID != "p1" || decision.Score != 0.85 {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestDecideRejectedKeepsRationale(t *testing.T) {
	matcher := &stubMatcher{assessment: &ai.FitAssessment{Fit: false, Score: 0.2, Reason: "Wrong stack"}}
	filter := newTestFilter(matcher)

	decision, err := filter.Decide(context.Background(), testPosting(), &profile.Profile{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decision.Accepted {
		t.Fatal("expected rejection")
	}
	if decision.Rationale != "Wrong stack" {
		t.Fatalf("unexpected rationale: %q", decision.Rationale)
	}
}

func TestDecideBackendFailureIsValidationUnavailable(t *testing.T) {
	matcher := &stubMatcher{err: errors.New("backend down")}
	filter := newTestFilter(matcher)

	decision, err := filter.Decide(context.Background(), testPosting(), &profile.Profile{})
	if decision != nil {
		t.Fatal("an unavailable backend must not produce a decision")
	}
	if !errors.Is(err, ErrValidationUnavailable) {
		t.Fatalf("expected ErrValidationUnavailable, got %v", err)
	}
}

func TestDecideCancellationIsNotAnOutage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	matcher := &cancellingMatcher{cancel: cancel}
	filter := newTestFilter(matcher)

	_, err := filter.Decide(ctx, testPosting(), &profile.Profile{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancellation to pass through, got %v", err)
	}
	if errors.Is(err, ErrValidationUnavailable) {
		t.Fatal("a cancelled run must not look like a backend outage")
	}
}

// cancellingMatcher simulates a healthy backend interrupted by the run
// deadline: it cancels the run mid-call and reports the context error.
type cancellingMatcher struct {
	cancel context.CancelFunc
}

func (m *cancellingMatcher) Evaluate(ctx context.Context, _ *profile.Profile, _ *source.Posting) (*ai.FitAssessment, error) {
	m.cancel()
	return nil, ctx.Err()
}

func TestDecideIsIdempotentForFixedBackendOutput(t *testing.T) {
	matcher := &stubMatcher{assessment: &ai.FitAssessment{Fit: true, Score: 0.7, Reason: "ok"}}
	filter := newTestFilter(matcher)

	first, err := filter.Decide(context.Background(), testPosting(), &profile.Profile{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := filter.Decide(context.Background(), testPosting(), &profile.Profile{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *first != *second {
		t.Fatalf("expected identical decisions, got %+v and %+v", first, second)
	}
	if matcher.calls != 2 {
		t.Fatalf("expected one backend call per decision, got %d", matcher.calls)
	}
}
