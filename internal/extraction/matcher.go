package extraction

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"planextract/internal/domain"
	"planextract/internal/llm"
)

// NoMatch is the matcher answer when the query names no candidate.
const NoMatch = "NA"

// MatchPlan asks the model which candidate, if any, query refers to. Both
// sides are dash-normalized and trimmed first. The answer is either one of
// the normalized candidates or NoMatch.
func (r *Runner) MatchPlan(ctx context.Context, candidates []string, query string, cache bool) (string, error) {
	normalized := make([]string, len(candidates))
	for i, c := range candidates {
		normalized[i] = domain.NormalizeDashes(c)
	}
	q := domain.NormalizeDashes(query)

	out, err := r.complete(ctx, "semantic_match", llm.Composition{
		Template:    BuildMatchPrompt(normalized, q),
		Document:    strings.Join(normalized, "\n"),
		EnableCache: cache,
		SystemText:  SystemExtraction,
	})
	if err != nil {
		return "", fmt.Errorf("semantic match: %w", err)
	}

	answer := strings.Trim(strings.TrimSpace(out), `"'`)
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = NoMatch
	}
	zap.L().Info("extraction.Runner.MatchPlan: matched",
		zap.String("query", q),
		zap.String("answer", answer),
		zap.Int("candidates", len(candidates)),
	)
	return answer, nil
}
