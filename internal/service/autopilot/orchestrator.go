package autopilot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/engine"
	"github.com/eventnexus/autopilot/internal/pkg/logger"
)

// CycleLockKey is the lock name that keeps cycles from overlapping.
const CycleLockKey = "autopilot:cycle"

// Failure stages reported in CampaignFailure.Stage.
const (
	StageAggregate = "aggregate"
	StageExecute   = "execute"
	StageDetect    = "detect"
	StageEvaluate  = "evaluate"
)

// Options tunes a cycle.
type Options struct {
	Concurrency int
	RunTimeout  time.Duration
	LockTTL     time.Duration
	TrendWindow int
	Thresholds  engine.Thresholds
	Platforms   []string
}

func (o *Options) applyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 10 * time.Minute
	}
	if o.TrendWindow <= 0 {
		o.TrendWindow = 5
	}
	if o.Thresholds == (engine.Thresholds{}) {
		o.Thresholds = engine.DefaultThresholds()
	}
}

// Orchestrator runs one evaluation cycle over every active campaign.
type Orchestrator struct {
	repos     Repositories
	source    SnapshotSource
	exec      *Executor
	opps      *OpportunityService
	rules     *RuleService
	locks     Locker
	opts      Options
	publisher Publisher
	archiver  Archiver
	notifier  Notifier
	rec       Recorder
	now       func() time.Time
	log       *logger.Logger
}

// NewOrchestrator wires a cycle runner.
func NewOrchestrator(repos Repositories, source SnapshotSource, exec *Executor, opps *OpportunityService, rules *RuleService, locks Locker, opts Options) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{
		repos:  repos,
		source: source,
		exec:   exec,
		opps:   opps,
		rules:  rules,
		locks:  locks,
		opts:   opts,
		rec:    nopRecorder{},
		now:    time.Now,
		log:    logger.With("component", "orchestrator"),
	}
}

// WithPublisher sets the social adapter cross-post effects go to. Without
// one, or with no platforms configured, the optimization_applied action is
// still recorded as executed but nothing is published.
func (o *Orchestrator) WithPublisher(p Publisher) *Orchestrator {
	o.publisher = p
	return o
}

// WithArchiver sets where finished summaries are archived.
func (o *Orchestrator) WithArchiver(a Archiver) *Orchestrator {
	o.archiver = a
	return o
}

// WithNotifier sets who hears about runs with failures.
func (o *Orchestrator) WithNotifier(n Notifier) *Orchestrator {
	o.notifier = n
	return o
}

// WithRecorder sets the telemetry sink.
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	if r != nil {
		o.rec = r
	}
	return o
}

// WithClock overrides the time source used for evaluation.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// campaignResult is what one campaign contributes to the summary.
type campaignResult struct {
	outcome       engine.Outcome
	paused        int
	scaled        int
	posted        int
	skipped       int
	opportunities int
	failure       *domain.CampaignFailure
}

// Run executes one cycle. It returns ErrCycleInProgress when another cycle
// holds the cycle lock. Per-campaign errors never abort the cycle; they
// are counted in the summary's Failed and Failures fields.
func (o *Orchestrator) Run(ctx context.Context, trigger domain.RunTrigger) (domain.RunSummary, error) {
	lock := o.locks.Lock(CycleLockKey, o.opts.LockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("acquire cycle lock: %w", err)
	}
	if !acquired {
		return domain.RunSummary{}, ErrCycleInProgress
	}
	defer lock.Release(context.WithoutCancel(ctx))

	summary := domain.RunSummary{
		RunID:     uuid.New().String(),
		Trigger:   trigger,
		StartedAt: o.now().UTC(),
	}
	log := o.log.With("run_id", summary.RunID, "trigger", trigger)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.opts.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.opts.RunTimeout)
	}
	defer cancel()

	rs, err := o.rules.RuleSet(runCtx, o.opts.Thresholds, o.opts.Platforms)
	if err != nil {
		return summary, err
	}
	campaigns, err := o.repos.Campaigns.ListActive(runCtx)
	if err != nil {
		return summary, fmt.Errorf("list active campaigns: %w", err)
	}
	evaluator := engine.NewEvaluator(rs)
	detector := engine.NewDetector(rs)

	log.Info("autopilot: cycle started", "campaigns", len(campaigns))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(o.opts.Concurrency)
	for _, c := range campaigns {
		if runCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if runCtx.Err() != nil {
				return nil
			}
			res := o.guardedProcess(runCtx, summary.RunID, c, evaluator, detector)
			mu.Lock()
			merge(&summary, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		summary.TimedOut = true
		log.Warn("autopilot: cycle hit its time budget",
			"evaluated", summary.CampaignsEvaluated, "campaigns", len(campaigns))
	}
	summary.FinishedAt = o.now().UTC()

	o.finish(context.WithoutCancel(ctx), summary, log)
	return summary, nil
}

// guardedProcess turns a panic while handling one campaign into a failure
// of that campaign so the rest of the cycle still runs.
func (o *Orchestrator) guardedProcess(ctx context.Context, runID string, c domain.Campaign, ev *engine.Evaluator, det *engine.Detector) (res campaignResult) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("autopilot: campaign evaluation panicked",
				"run_id", runID, "campaign_id", c.ID, "panic", fmt.Sprint(r))
			res = campaignResult{failure: &domain.CampaignFailure{
				CampaignID: c.ID,
				Stage:      StageEvaluate,
				Error:      fmt.Sprintf("panic: %v", r),
			}}
		}
	}()
	return o.processCampaign(ctx, runID, c, ev, det)
}

func (o *Orchestrator) processCampaign(ctx context.Context, runID string, c domain.Campaign, ev *engine.Evaluator, det *engine.Detector) campaignResult {
	log := o.log.With("run_id", runID, "campaign_id", c.ID)
	var res campaignResult

	snap, err := o.source.Aggregate(ctx, c.ID)
	if err != nil {
		log.Warn("autopilot: aggregate failed", "error", err.Error())
		res.failure = &domain.CampaignFailure{CampaignID: c.ID, Stage: StageAggregate, Error: err.Error()}
		return res
	}

	// History is read before the current snapshot is stored so the
	// detector never sees it twice.
	history, err := o.repos.Snapshots.Recent(ctx, c.ID, o.opts.TrendWindow)
	if err != nil {
		log.Warn("autopilot: snapshot history unavailable", "error", err.Error())
		history = nil
	}
	if snap.Complete() {
		if err := o.repos.Snapshots.Save(ctx, snap); err != nil {
			log.Warn("autopilot: snapshot not stored", "error", err.Error())
		}
	}

	now := o.now().UTC()
	d := ev.Evaluate(snap, c, now)
	res.outcome = d.Outcome
	switch d.Outcome {
	case engine.OutcomeNoData:
		log.Info("autopilot: no data", "reason", d.Reason)
	case engine.OutcomeNoAction:
		log.Info("autopilot: no action", "reason", d.Reason)
	}

	for _, rec := range d.Recommendations() {
		r, err := o.exec.Execute(ctx, runID, c, snap, rec)
		if err != nil {
			res.failure = &domain.CampaignFailure{
				CampaignID: c.ID,
				Stage:      StageExecute + ":" + string(rec.Type),
				Error:      err.Error(),
			}
			break
		}
		if r.Skipped {
			res.skipped++
			continue
		}
		switch rec.Type {
		case domain.ActionAutoPause:
			res.paused++
		case domain.ActionAutoScaleUp, domain.ActionAutoScaleDown:
			res.scaled++
		case domain.ActionOptimizationApplied:
			res.posted++
		}
		o.applyEffects(ctx, r.Effects, log)
	}

	for _, opp := range det.Detect(snap, history, c, now) {
		inserted, err := o.opps.Record(ctx, opp)
		if err != nil {
			log.Warn("autopilot: opportunity not recorded", "type", opp.Type, "error", err.Error())
			if res.failure == nil {
				res.failure = &domain.CampaignFailure{CampaignID: c.ID, Stage: StageDetect, Error: err.Error()}
			}
			continue
		}
		if inserted {
			res.opportunities++
		}
	}

	if err := o.repos.Campaigns.MarkEvaluated(ctx, c.ID, now); err != nil {
		log.Warn("autopilot: last_evaluated_at not updated", "error", err.Error())
	}
	return res
}

// applyEffects runs committed side effects. Their failures are stored on
// the action and never change its status.
func (o *Orchestrator) applyEffects(ctx context.Context, effects []Effect, log *logger.Logger) {
	for _, eff := range effects {
		pub, ok := eff.(PublishEffect)
		if !ok {
			continue
		}
		if o.publisher == nil || len(pub.Platforms) == 0 {
			log.Debug("autopilot: no publisher or platforms configured, cross-post not sent", "action_id", pub.ActionID)
			continue
		}
		results := o.publisher.Publish(ctx, pub.Campaign, pub.Snapshot, pub.Platforms)
		payload := domain.ActionPayload{Kind: domain.PayloadCrossPost, CrossPost: &domain.CrossPostPayload{
			Platforms: pub.Platforms,
			CTR:       pub.Snapshot.CTR,
			Results:   results,
		}}
		if err := o.repos.Actions.UpdatePayload(context.WithoutCancel(ctx), pub.ActionID, payload); err != nil {
			log.Warn("autopilot: publish results not stored", "action_id", pub.ActionID, "error", err.Error())
		}
		for _, r := range results {
			if !r.Success {
				log.Warn("autopilot: cross-post failed", "action_id", pub.ActionID, "platform", r.Platform, "error", r.Error)
			}
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context, s domain.RunSummary, log *logger.Logger) {
	if err := o.repos.Runs.Save(ctx, s); err != nil {
		log.Error("autopilot: run summary not stored", "error", err.Error())
	}
	if o.archiver != nil {
		if err := o.archiver.Archive(ctx, s); err != nil {
			log.Warn("autopilot: run summary not archived", "error", err.Error())
		}
	}
	if o.notifier != nil && (s.Failed > 0 || s.TimedOut) {
		if err := o.notifier.NotifyRun(ctx, s); err != nil {
			log.Warn("autopilot: failure notification not sent", "error", err.Error())
		}
	}
	o.rec.CycleFinished(s)

	log.Info("autopilot: cycle finished",
		"evaluated", s.CampaignsEvaluated,
		"paused", s.CampaignsPaused,
		"scaled", s.CampaignsScaled,
		"posted", s.CampaignsPosted,
		"opportunities", s.OpportunitiesDetected,
		"no_data", s.NoData,
		"no_action", s.NoAction,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"timed_out", s.TimedOut,
		"duration_ms", s.Duration().Milliseconds())
}

func merge(s *domain.RunSummary, r campaignResult) {
	s.CampaignsEvaluated++
	s.CampaignsPaused += r.paused
	s.CampaignsScaled += r.scaled
	s.CampaignsPosted += r.posted
	s.OpportunitiesDetected += r.opportunities
	s.Skipped += r.skipped
	switch r.outcome {
	case engine.OutcomeNoData:
		s.NoData++
	case engine.OutcomeNoAction:
		s.NoAction++
	}
	if r.failure != nil {
		s.Failed++
		s.Failures = append(s.Failures, *r.failure)
	}
}
