// Package orchestrator runs one full cycle: resolve queries, enumerate
// postings, dedup, fetch, filter, generate content and deliver notifications.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/filtering"
	"github.com/jobscout-dev/jobscout/internal/notify"
	"github.com/jobscout-dev/jobscout/internal/pipeline"
	"github.com/jobscout-dev/jobscout/internal/profile"
	"github.com/jobscout-dev/jobscout/internal/reliability"
	"github.com/jobscout-dev/jobscout/internal/source"
)

// History is the seen-posting boundary. A nil History means every posting is
// new.
type History interface {
	Seen(ctx context.Context, postingID string) (bool, error)
	Mark(ctx context.Context, postingID string) error
}

// Abandonment records one posting that produced no notification.
type Abandonment struct {
	PostingID string
	Reason    pipeline.AbandonReason
	Attempts  int
}

// Summary is the aggregate result of one run. RunOnce never returns a nil
// Summary.
type Summary struct {
	Seen     int
	Accepted int
	Rejected int
	Skipped  int

	Approved  []string
	Abandoned []Abandonment

	NotificationsSent   int
	NotificationsFailed int

	Alerts []string
}

// Config holds the run policy.
type Config struct {
	// Parallelism bounds concurrent posting processing (default 1). Calls to
	// any single dependency still serialize through its wrapper.
	Parallelism int
	// SilenceValidationOutage suppresses the alert raised when the fit
	// validation backend is unreachable. Off by default: outages alert.
	SilenceValidationOutage bool
}

// TripLog collects circuit trip events from reliability wrappers so the run
// can report them once processing settles.
type TripLog struct {
	mu     sync.Mutex
	events []reliability.Event
}

// Record is safe to pass as the OnTrip callback of any wrapper.
func (t *TripLog) Record(ev reliability.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

// Drain returns the recorded events and clears the log.
func (t *TripLog) Drain() []reliability.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	events := t.events
	t.events = nil
	return events
}

// Orchestrator wires the registry, filter, pipeline and notifier into a run
// loop.
type Orchestrator struct {
	registry *source.Registry
	fit      *filtering.FitFilter
	pipe     *pipeline.Pipeline
	notifier notify.Notifier

	sendWrapper *reliability.Wrapper
	sources     map[string]*reliability.Wrapper
	history     History
	trips       *TripLog
	cfg         Config
	logger      *zap.Logger
}

// New builds an orchestrator. sources maps adapter names to their reliability
// wrappers; history and trips may be nil.
func New(
	registry *source.Registry,
	sources map[string]*reliability.Wrapper,
	fit *filtering.FitFilter,
	pipe *pipeline.Pipeline,
	notifier notify.Notifier,
	sendWrapper *reliability.Wrapper,
	history History,
	trips *TripLog,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if sources == nil {
		sources = map[string]*reliability.Wrapper{}
	}
	return &Orchestrator{
		registry:    registry,
		sources:     sources,
		fit:         fit,
		pipe:        pipe,
		notifier:    notifier,
		sendWrapper: sendWrapper,
		history:     history,
		trips:       trips,
		cfg:         cfg,
		logger:      logger,
	}
}

// workItem is one deduped posting ref, carrying its enumeration position so
// notifications keep enumeration order regardless of processing order.
type workItem struct {
	index     int
	postingID string
	ref       *source.PostingRef
	adapter   source.Adapter
}

// result is the processed outcome of one work item.
type result struct {
	accepted bool
	rejected bool
	skipped  bool

	approvedID  string
	abandonment *Abandonment
	payload     *notify.Payload
}

// runState is the mutable bookkeeping shared across workers.
type runState struct {
	mu               sync.Mutex
	halted           map[string]bool
	authAlerts       []string
	validationOutage bool
}

func (s *runState) haltSource(name, alert string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halted[name] {
		return false
	}
	s.halted[name] = true
	s.authAlerts = append(s.authAlerts, alert)
	return true
}

func (s *runState) isHalted(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted[name]
}

func (s *runState) noteValidationOutage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validationOutage = true
}

// RunOnce executes one cycle over the given query locators.
func (o *Orchestrator) RunOnce(ctx context.Context, queries []string, prof *profile.Profile) (*Summary, error) {
	summary := &Summary{}
	state := &runState{halted: map[string]bool{}}

	items := o.enumerate(ctx, queries, state)
	summary.Seen = len(items)

	if len(items) == 0 {
		o.logger.Info("no new postings found")
		o.finish(context.WithoutCancel(ctx), summary, state, false)
		return summary, nil
	}

	results := make([]*result, len(items))
	sem := make(chan struct{}, o.cfg.Parallelism)
	var wg sync.WaitGroup

	partial := false
	for i, item := range items {
		stop := ctx.Err() != nil
		if !stop {
			sem <- struct{}{}
			// The deadline may have expired while waiting for a slot.
			if ctx.Err() != nil {
				<-sem
				stop = true
			}
		}
		if stop {
			// Deadline reached: in-flight postings finish, no new ones start.
			partial = true
			o.logger.Warn("run deadline reached, stopping dispatch",
				zap.Int("dispatched", i),
				zap.Int("total", len(items)),
			)
			break
		}

		wg.Add(1)
		go func(i int, item *workItem) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = o.processPosting(ctx, item, prof, state)
		}(i, item)
	}
	wg.Wait()

	// Aggregate serially, in enumeration order.
	var payloads []*notify.Payload
	for _, r := range results {
		if r == nil {
			continue
		}
		switch {
		case r.accepted:
			summary.Accepted++
		case r.rejected:
			summary.Rejected++
		case r.skipped:
			summary.Skipped++
		}
		if r.approvedID != "" {
			summary.Approved = append(summary.Approved, r.approvedID)
		}
		if r.abandonment != nil {
			summary.Abandoned = append(summary.Abandoned, *r.abandonment)
		}
		if r.payload != nil {
			payloads = append(payloads, r.payload)
		}
	}

	// Deliveries and alerts still go out when the run deadline has expired.
	sendCtx := context.WithoutCancel(ctx)
	for _, payload := range payloads {
		o.send(sendCtx, payload, summary)
	}

	o.finish(sendCtx, summary, state, partial)
	return summary, nil
}

// enumerate resolves and enumerates every query, returning deduped work items
// in enumeration order.
func (o *Orchestrator) enumerate(ctx context.Context, queries []string, state *runState) []*workItem {
	var items []*workItem
	seenThisRun := map[string]bool{}

	for _, query := range queries {
		adapter, err := o.registry.Resolve(query)
		if err != nil {
			o.logger.Warn("skipping unroutable query", zap.String("query", query), zap.Error(err))
			continue
		}

		name := adapter.Name()
		if state.isHalted(name) {
			o.logger.Warn("skipping query for halted source",
				zap.String("query", query),
				zap.String("source", name),
			)
			continue
		}

		refs, err := reliability.Call(ctx, o.sourceWrapper(name), func(ctx context.Context) ([]*source.PostingRef, error) {
			return adapter.Enumerate(ctx, query)
		})
		if err != nil {
			o.handleSourceFailure(name, query, err, state)
			continue
		}

		for _, ref := range refs {
			postingID := source.PostingID(name, ref.URL)
			if seenThisRun[postingID] {
				continue
			}
			seenThisRun[postingID] = true

			if o.history != nil {
				known, err := o.history.Seen(ctx, postingID)
				if err != nil {
					o.logger.Warn("history lookup failed, treating posting as new",
						zap.String("posting_id", postingID),
						zap.Error(err),
					)
				} else if known {
					o.logger.Debug("skipping already-seen posting", zap.String("posting_id", postingID))
					continue
				}
			}

			items = append(items, &workItem{
				index:     len(items),
				postingID: postingID,
				ref:       ref,
				adapter:   adapter,
			})
		}

		o.logger.Info("query enumerated",
			zap.String("query", query),
			zap.String("source", name),
			zap.Int("postings", len(refs)),
		)
	}

	return items
}

// processPosting takes one posting from ref to terminal outcome. It never
// fails the run: every error collapses into a skip or an abandonment.
func (o *Orchestrator) processPosting(ctx context.Context, item *workItem, prof *profile.Profile, state *runState) *result {
	name := item.adapter.Name()
	if state.isHalted(name) {
		return &result{skipped: true}
	}

	posting, err := reliability.Call(ctx, o.sourceWrapper(name), func(ctx context.Context) (*source.Posting, error) {
		return item.adapter.FetchFullText(ctx, item.ref)
	})
	if err != nil {
		o.handleSourceFailure(name, item.ref.URL, err, state)
		return &result{skipped: true}
	}

	// Detail URLs sometimes differ from the listing ones; keep the identity
	// derived at enumeration time so dedup and history agree.
	posting.ID = item.postingID

	decision, err := o.fit.Decide(ctx, posting, prof)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("skipping posting: run deadline reached",
				zap.String("posting_id", posting.ID),
			)
			return &result{skipped: true}
		}
		if errors.Is(err, filtering.ErrValidationUnavailable) {
			state.noteValidationOutage()
		}
		o.logger.Warn("skipping posting: fit validation unavailable",
			zap.String("posting_id", posting.ID),
			zap.Error(err),
		)
		return &result{skipped: true}
	}

	// A decision was made; never resurface this posting in later runs.
	o.markSeen(ctx, posting.ID)

	if !decision.Accepted {
		return &result{rejected: true}
	}

	outcome := o.pipe.Process(ctx, posting, prof)

	r := &result{accepted: true}
	switch outcome.State {
	case pipeline.StateApproved:
		r.approvedID = outcome.PostingID
		r.payload = outcome.Payload
	case pipeline.StateAbandoned:
		r.abandonment = &Abandonment{
			PostingID: outcome.PostingID,
			Reason:    outcome.Reason,
			Attempts:  outcome.Attempts,
		}
	}
	return r
}

// handleSourceFailure classifies an enumeration or fetch failure. An auth
// failure halts the source for the rest of the run with exactly one alert.
func (o *Orchestrator) handleSourceFailure(name, location string, err error, state *runState) {
	if source.IsAuthFailure(err) {
		alert := fmt.Sprintf("source %s: authentication failed, source halted for this run: %v", name, err)
		if state.haltSource(name, alert) {
			o.logger.Error("halting source after auth failure",
				zap.String("source", name),
				zap.Error(err),
			)
		}
		return
	}

	o.logger.Warn("source call failed",
		zap.String("source", name),
		zap.String("location", location),
		zap.Error(err),
	)
}

func (o *Orchestrator) markSeen(ctx context.Context, postingID string) {
	if o.history == nil {
		return
	}
	if err := o.history.Mark(ctx, postingID); err != nil {
		o.logger.Warn("recording posting in history failed",
			zap.String("posting_id", postingID),
			zap.Error(err),
		)
	}
}

// sourceWrapper returns the reliability wrapper for a source, creating one
// with default policy when the source was not pre-wired.
func (o *Orchestrator) sourceWrapper(name string) *reliability.Wrapper {
	if w, ok := o.sources[name]; ok {
		return w
	}
	onTrip := func(reliability.Event) {}
	if o.trips != nil {
		onTrip = o.trips.Record
	}
	w := reliability.New(name, reliability.Config{}, source.Retryable, onTrip, o.logger)
	o.sources[name] = w
	return w
}

// finish collects run-level alerts and delivers them as alert payloads.
func (o *Orchestrator) finish(ctx context.Context, summary *Summary, state *runState, partial bool) {
	state.mu.Lock()
	alerts := append([]string(nil), state.authAlerts...)
	validationOutage := state.validationOutage
	state.mu.Unlock()

	if o.trips != nil {
		for _, ev := range o.trips.Drain() {
			if source.IsStructural(ev.Reason) {
				alerts = append(alerts, fmt.Sprintf(
					"source %s appears broken (layout or API change), circuit opened for %s: %v",
					ev.Dependency, ev.Cooldown, ev.Reason,
				))
				continue
			}
			o.logger.Warn("dependency circuit opened during run",
				zap.String("dependency", ev.Dependency),
				zap.Duration("cooldown", ev.Cooldown),
				zap.Error(ev.Reason),
			)
		}
	}

	if validationOutage && !o.cfg.SilenceValidationOutage {
		alerts = append(alerts, "fit validation backend unavailable, affected postings were skipped")
	}

	if partial {
		alerts = append(alerts, "run deadline reached before all postings were processed, results are partial")
	}

	summary.Alerts = alerts
	for _, alert := range alerts {
		o.send(ctx, &notify.Payload{
			Kind:    notify.KindAlert,
			Subject: "jobscout alert",
			Body:    alert,
		}, summary)
	}
}

// send delivers one payload through the notification wrapper. A failed send
// is logged and counted, never fatal.
func (o *Orchestrator) send(ctx context.Context, payload *notify.Payload, summary *Summary) {
	err := o.sendWrapper.Do(ctx, func(ctx context.Context) error {
		return o.notifier.Send(ctx, payload)
	})
	if err != nil {
		summary.NotificationsFailed++
		o.logger.Error("notification send failed",
			zap.String("subject", payload.Subject),
			zap.Error(err),
		)
		return
	}
	summary.NotificationsSent++
}
