package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"planextract/internal/domain"
	"planextract/internal/llm"
	"planextract/internal/metrics"
	"planextract/internal/port"
	"planextract/internal/template"
)

// sbcMarker flags a Summary of Benefits and Coverage in classifier output.
const sbcMarker = "Basic Info::Document Type::SBC"

// IsSBC reports whether classification output marks the document as an SBC.
func IsSBC(classification string) bool {
	return strings.Contains(classification, sbcMarker)
}

// Runner binds stage templates to the chat client. Each stage fetches its
// template, fills its slots and sends the canonical document alongside.
type Runner struct {
	templates port.TemplateStore
	chat      port.ChatClient
	catalog   *template.CatalogSource
}

// NewRunner creates a stage runner.
func NewRunner(templates port.TemplateStore, chat port.ChatClient, catalog *template.CatalogSource) *Runner {
	return &Runner{templates: templates, chat: chat, catalog: catalog}
}

// Classify runs the classification stage.
func (r *Runner) Classify(ctx context.Context, doc string, cache bool) (string, error) {
	tmpl, err := r.templates.Get(ctx, r.catalog.Current().Classification, "")
	if err != nil {
		return "", fmt.Errorf("classification template: %w", err)
	}
	out, err := r.complete(ctx, "classification", llm.Composition{
		Template:    tmpl,
		Document:    doc,
		EnableCache: cache,
		SystemText:  SystemExtraction,
	})
	if err != nil {
		return "", fmt.Errorf("classification: %w", err)
	}
	zap.L().Info("extraction.Runner.Classify: classification finished", zap.Bool("sbc", IsSBC(out)))
	return out, nil
}

// KeyParams runs key-parameter extraction for loc. An LOC without a
// template yields an empty output.
func (r *Runner) KeyParams(ctx context.Context, doc string, loc domain.LOC, planNames []string, cache bool) (string, error) {
	key, ok := r.catalog.Current().KeyParamsKey(loc)
	if !ok {
		zap.L().Warn("extraction.Runner.KeyParams: no template for LOC, skipping", zap.String("loc", loc))
		return "", nil
	}
	tmpl, err := r.templates.Get(ctx, key, "")
	if err != nil {
		return "", fmt.Errorf("key params template for %s: %w", loc, err)
	}
	tmpl = InjectPlanNameList(tmpl, planNames)

	out, err := r.complete(ctx, "key_params::"+loc, llm.Composition{
		Template:    tmpl,
		Document:    doc,
		EnableCache: cache,
		SystemText:  SystemExtraction,
	})
	if err != nil {
		return "", fmt.Errorf("key params for %s: %w", loc, err)
	}
	zap.L().Info("extraction.Runner.KeyParams: finished", zap.String("loc", loc), zap.String("template", key))
	return out, nil
}

// PlanIdentificationInput carries the upstream outputs inlined into the
// plan identification template.
type PlanIdentificationInput struct {
	Classification string
	KeyParams      string
	LOCs           []domain.LOC
}

// IdentifyPlans runs plan identification for the given LOCs.
func (r *Runner) IdentifyPlans(ctx context.Context, doc string, in PlanIdentificationInput, cache bool) (string, error) {
	tmpl, err := r.templates.Get(ctx, r.catalog.Current().PlanIdentification, "")
	if err != nil {
		return "", fmt.Errorf("plan identification template: %w", err)
	}
	tmpl = InjectPlanIdentification(tmpl, in.Classification, in.KeyParams, in.LOCs)

	out, err := r.complete(ctx, "plan_identification", llm.Composition{
		Template:    tmpl,
		Document:    doc,
		EnableCache: cache,
		SystemText:  SystemPlanIdentifier,
	})
	if err != nil {
		return "", fmt.Errorf("plan identification: %w", err)
	}
	zap.L().Info("extraction.Runner.IdentifyPlans: finished", zap.Strings("locs", in.LOCs))
	return out, nil
}

// ExtractPlan runs per-plan extraction. An LOC without a template uses the
// Medical template.
func (r *Runner) ExtractPlan(ctx context.Context, doc string, loc domain.LOC, planName string, cache bool) (string, error) {
	cat := r.catalog.Current()
	key, ok := cat.PerPlanKey(loc)
	if !ok {
		key, _ = cat.PerPlanKey(domain.LOCMedical)
		zap.L().Warn("extraction.Runner.ExtractPlan: no template for LOC, using Medical",
			zap.String("loc", loc), zap.String("template", key))
	}
	tmpl, err := r.templates.Get(ctx, key, "")
	if err != nil {
		return "", fmt.Errorf("per plan template for %s: %w", loc, err)
	}
	tmpl = InjectPlanName(tmpl, planName)

	out, err := r.complete(ctx, "per_plan::"+loc+"::"+planName, llm.Composition{
		Template:    tmpl,
		Document:    doc,
		EnableCache: cache,
		SystemText:  SystemPerPlan,
	})
	if err != nil {
		return "", fmt.Errorf("per plan %s / %s: %w", loc, planName, err)
	}
	zap.L().Info("extraction.Runner.ExtractPlan: finished", zap.String("loc", loc), zap.String("plan_name", planName))
	return out, nil
}

func (r *Runner) complete(ctx context.Context, label string, c llm.Composition) (string, error) {
	start := time.Now()
	defer metrics.ObserveStage(stageOf(label), start)

	resp, err := r.chat.Chat(ctx, port.ChatRequest{
		Messages: llm.Compose(c),
		Label:    label,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// stageOf strips the LOC and plan qualifiers from a call label.
func stageOf(label string) string {
	if i := strings.Index(label, "::"); i >= 0 {
		return label[:i]
	}
	return label
}
