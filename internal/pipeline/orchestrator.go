package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"planextract/internal/config"
	"planextract/internal/domain"
	"planextract/internal/extraction"
	"planextract/internal/listing"
	"planextract/internal/metrics"
	"planextract/internal/port"
)

// Stages runs the individual chat stages of the pipeline.
type Stages interface {
	Matcher
	Classify(ctx context.Context, doc string, cache bool) (string, error)
	KeyParams(ctx context.Context, doc string, loc domain.LOC, planNames []string, cache bool) (string, error)
	IdentifyPlans(ctx context.Context, doc string, in extraction.PlanIdentificationInput, cache bool) (string, error)
	ExtractPlan(ctx context.Context, doc string, loc domain.LOC, planName string, cache bool) (string, error)
}

// Config tunes the orchestrator.
type Config struct {
	FanoutConcurrency int
	AutoReadLimit     int
	PlanFailureMode   string
}

// ConfigFrom maps the pipeline config section.
func ConfigFrom(cfg *config.PipelineConfig) Config {
	return Config{
		FanoutConcurrency: cfg.FanoutConcurrency,
		AutoReadLimit:     cfg.AutoReadLimit,
		PlanFailureMode:   cfg.PlanFailureMode,
	}
}

// Orchestrator drives a document through every stage and aggregates the
// result. It implements port.PipelineRunner.
type Orchestrator struct {
	normalizer port.DocumentNormalizer
	guard      *TokenGuard
	stages     Stages
	cfg        Config
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(normalizer port.DocumentNormalizer, guard *TokenGuard, stages Stages, cfg Config) *Orchestrator {
	if cfg.FanoutConcurrency <= 0 {
		cfg.FanoutConcurrency = 8
	}
	if cfg.AutoReadLimit <= 0 {
		cfg.AutoReadLimit = 4
	}
	if cfg.PlanFailureMode == "" {
		cfg.PlanFailureMode = config.PlanFailureAbort
	}
	return &Orchestrator{normalizer: normalizer, guard: guard, stages: stages, cfg: cfg}
}

// Run normalizes the document at path and runs the pipeline on it.
func (o *Orchestrator) Run(ctx context.Context, job *domain.Job, path string) (*domain.Result, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	log := jobLogger(job)
	log.Info("pipeline.Orchestrator.Run: start", zap.String("option", string(job.Option)), zap.Bool("prompt_cache", job.EnableCache))

	doc, err := o.normalizer.Normalize(ctx, path)
	if err != nil {
		o.record(job, "error")
		return nil, err
	}
	log.Info("pipeline.Orchestrator.Run: document normalized", zap.Int("bytes", len(doc)))

	res, err := o.process(ctx, job, doc, log)
	if err != nil {
		o.record(job, "error")
		return nil, err
	}
	log.Info("pipeline.Orchestrator.Run: finished", zap.String("message", res.Message), zap.Int("plans", len(res.Plans)))
	return res, nil
}

func (o *Orchestrator) process(ctx context.Context, job *domain.Job, doc string, log *zap.Logger) (*domain.Result, error) {
	if doc == "" {
		log.Info("pipeline.Orchestrator.process: empty document")
		o.record(job, "ok")
		return domain.NewResult(job, MessageOK), nil
	}

	count, ok, err := o.guard.Check(ctx, doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn("pipeline.Orchestrator.process: token limit exceeded", zap.Int("tokens", count), zap.Int("limit", o.guard.Limit()))
		o.record(job, "token_overflow")
		return domain.NewResult(job, TokenOverflowMessage(o.guard.Limit())), nil
	}

	classification, err := o.stages.Classify(ctx, doc, job.EnableCache)
	if err != nil {
		return nil, err
	}
	res := domain.NewResult(job, MessageOK)
	res.ClassificationOutput = classification

	if extraction.IsSBC(classification) {
		log.Info("pipeline.Orchestrator.process: SBC document detected")
		res.Message = MessageSBC
		o.record(job, "sbc")
		return res, nil
	}

	locs := listing.ParseLineOfCoverage(classification)
	log.Info("pipeline.Orchestrator.process: LOCs parsed", zap.Strings("locs", locs))
	if len(locs) == 0 {
		o.record(job, "ok")
		return res, nil
	}
	classifier := restrict(listing.ParsePlanListing(classification), locs)

	sel := newSelector(job, o.stages, o.cfg.AutoReadLimit)
	prelim, err := sel.initial(ctx, classifier)
	if err != nil {
		return nil, err
	}

	keyParams, err := o.runKeyParams(ctx, job, doc, locs, classifier)
	if err != nil {
		return nil, err
	}
	res.KPExtractOutput = joinNonEmpty(locs, keyParams)

	identified, err := o.identifyPlans(ctx, job, doc, sel.perLOC(), classification, locs, keyParams, res)
	if err != nil {
		return nil, err
	}

	selection, err := sel.final(ctx, prelim, classifier, identified)
	if err == nil && selection.Count() == 0 && identified.Count() > 0 {
		log.Info("pipeline.Orchestrator.process: rebuilding selection from plan identification",
			zap.Int("identified", identified.Count()))
		selection, err = sel.rebuild(ctx, identified)
	}
	if errors.Is(err, errPlanNotFound) {
		res.Message = PlanNotFoundMessage(strings.TrimSpace(job.PlanName))
		o.record(job, "not_found")
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	plans, err := o.fanOut(ctx, job, doc, selection, log)
	if err != nil {
		return nil, err
	}
	res.Plans = plans
	o.record(job, "ok")
	return res, nil
}

func (o *Orchestrator) runKeyParams(ctx context.Context, job *domain.Job, doc string, locs []domain.LOC, classifier *domain.Listing) (map[domain.LOC]string, error) {
	out := make(map[domain.LOC]string, len(locs))
	for _, loc := range locs {
		var names []string
		for _, e := range classifier.Plans(loc) {
			names = append(names, e.Name)
		}
		kp, err := o.stages.KeyParams(ctx, doc, loc, names, job.EnableCache)
		if err != nil {
			return nil, err
		}
		out[loc] = kp
	}
	return out, nil
}

func (o *Orchestrator) identifyPlans(ctx context.Context, job *domain.Job, doc string, perLOC bool, classification string, locs []domain.LOC, keyParams map[domain.LOC]string, res *domain.Result) (*domain.Listing, error) {
	if !perLOC {
		out, err := o.stages.IdentifyPlans(ctx, doc, extraction.PlanIdentificationInput{
			Classification: classification,
			KeyParams:      res.KPExtractOutput,
			LOCs:           locs,
		}, job.EnableCache)
		if err != nil {
			return nil, err
		}
		res.PlanNameIdentificationOutput = out
		return listing.ParsePlanListing(out), nil
	}

	identified := domain.NewListing()
	sections := make([]string, 0, len(locs))
	for _, loc := range locs {
		out, err := o.stages.IdentifyPlans(ctx, doc, extraction.PlanIdentificationInput{
			Classification: classification,
			KeyParams:      keyParams[loc],
			LOCs:           []domain.LOC{loc},
		}, job.EnableCache)
		if err != nil {
			return nil, err
		}
		sections = append(sections, "### "+loc+"\n"+out)
		identified.Merge(listing.ParsePlanListing(out))
	}
	res.PlanNameIdentificationOutput = strings.Join(sections, "\n\n")
	return identified, nil
}

type planTask struct {
	loc  domain.LOC
	name string
}

// fanOut extracts every selected plan with bounded concurrency. A failing
// extraction never cancels its siblings.
func (o *Orchestrator) fanOut(ctx context.Context, job *domain.Job, doc string, selection *domain.Listing, log *zap.Logger) ([]domain.PlanResult, error) {
	var tasks []planTask
	for _, loc := range selection.LOCs() {
		for _, e := range selection.Plans(loc) {
			tasks = append(tasks, planTask{loc: loc, name: e.Name})
		}
	}
	log.Info("pipeline.Orchestrator.fanOut: extracting plans", zap.Int("plans", len(tasks)), zap.Int("concurrency", o.cfg.FanoutConcurrency))

	start := time.Now()
	defer metrics.ObserveStage("fan_out", start)

	results := make([]domain.PlanResult, len(tasks))
	var g errgroup.Group
	g.SetLimit(o.cfg.FanoutConcurrency)
	for i, t := range tasks {
		g.Go(func() error {
			out, err := o.stages.ExtractPlan(ctx, doc, t.loc, t.name, job.EnableCache)
			results[i] = domain.PlanResult{LOC: t.loc, PlanName: t.name, Output: out}
			if err != nil {
				metrics.PlansExtracted.WithLabelValues("error").Inc()
				log.Error("pipeline.Orchestrator.fanOut: plan extraction failed",
					zap.String("loc", t.loc), zap.String("plan_name", t.name), zap.Error(err))
				if o.cfg.PlanFailureMode == config.PlanFailureMark {
					results[i].Output = ""
					results[i].Error = err.Error()
					return nil
				}
				return fmt.Errorf("extracting %s / %s: %w", t.loc, t.name, err)
			}
			metrics.PlansExtracted.WithLabelValues("ok").Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) record(job *domain.Job, outcome string) {
	metrics.PipelineRuns.WithLabelValues(string(job.Option), outcome).Inc()
}

// joinNonEmpty joins the outputs of locs, in order, skipping empty ones.
func joinNonEmpty(locs []domain.LOC, outputs map[domain.LOC]string) string {
	var parts []string
	for _, loc := range locs {
		if v := outputs[loc]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n\n")
}

func jobLogger(job *domain.Job) *zap.Logger {
	return zap.L().With(
		zap.String("job_id", job.JobID),
		zap.String("broker_id", job.BrokerID),
		zap.String("employer_id", job.EmployerID),
	)
}
