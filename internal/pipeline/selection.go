package pipeline

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"planextract/internal/domain"
	"planextract/internal/extraction"
)

// errPlanNotFound ends a Search run with the not-found message.
var errPlanNotFound = errors.New("plan not found")

// Matcher resolves a free-text plan name against candidate names.
type Matcher interface {
	MatchPlan(ctx context.Context, candidates []string, query string, cache bool) (string, error)
}

// selector narrows listings into the plans that get extracted. Each option
// has its own selector; all share the same merge and dedupe primitives.
type selector interface {
	// initial narrows the classifier listing. A nil selection defers the choice.
	initial(ctx context.Context, classifier *domain.Listing) (*domain.Listing, error)
	// perLOC reports whether plan identification runs once per LOC.
	perLOC() bool
	// final combines the preliminary selection with the plan identification listing.
	final(ctx context.Context, prelim, classifier, identified *domain.Listing) (*domain.Listing, error)
	// rebuild builds a selection from the plan identification listing alone.
	rebuild(ctx context.Context, identified *domain.Listing) (*domain.Listing, error)
}

func newSelector(job *domain.Job, matcher Matcher, autoReadLimit int) selector {
	switch job.Option {
	case domain.OptionAutoRead:
		return autoReadSelector{limit: autoReadLimit}
	case domain.OptionSearch:
		return &searchSelector{query: strings.TrimSpace(job.PlanName), matcher: matcher, cache: job.EnableCache}
	default:
		return allPlansSelector{}
	}
}

// restrict keeps only locs of l, in locs order. Every loc is present in the
// result even without entries.
func restrict(l *domain.Listing, locs []domain.LOC) *domain.Listing {
	out := domain.NewListing()
	for _, loc := range locs {
		out.Touch(loc)
		for _, e := range l.Plans(loc) {
			out.Add(loc, e)
		}
	}
	return out
}

// firstN copies at most n unique entries per LOC from each listing in turn.
func firstN(n int, locs []domain.LOC, listings ...*domain.Listing) *domain.Listing {
	out := domain.NewListing()
	for _, loc := range locs {
		out.Touch(loc)
		for _, l := range listings {
			for _, e := range l.Plans(loc) {
				if len(out.Plans(loc)) >= n {
					break
				}
				out.Add(loc, e)
			}
		}
	}
	return out
}

// unionLOCs returns the LOCs of every listing, first occurrence order.
func unionLOCs(listings ...*domain.Listing) []domain.LOC {
	seen := make(map[domain.LOC]bool)
	var out []domain.LOC
	for _, l := range listings {
		for _, loc := range l.LOCs() {
			if !seen[loc] {
				seen[loc] = true
				out = append(out, loc)
			}
		}
	}
	return out
}

// single returns a selection holding only the entry of l named name. The
// entry carries the matcher's normalized name.
func single(l *domain.Listing, name string) *domain.Listing {
	out := domain.NewListing()
	if loc, entry, ok := l.Find(name); ok {
		entry.Name = domain.NormalizeDashes(name)
		out.Add(loc, entry)
	}
	return out
}

type autoReadSelector struct {
	limit int
}

func (s autoReadSelector) initial(_ context.Context, classifier *domain.Listing) (*domain.Listing, error) {
	return firstN(s.limit, classifier.LOCs(), classifier), nil
}

func (autoReadSelector) perLOC() bool { return true }

func (s autoReadSelector) final(_ context.Context, _, classifier, identified *domain.Listing) (*domain.Listing, error) {
	return firstN(s.limit, unionLOCs(classifier, identified), classifier, identified), nil
}

func (s autoReadSelector) rebuild(_ context.Context, identified *domain.Listing) (*domain.Listing, error) {
	return firstN(s.limit, identified.LOCs(), identified), nil
}

type searchSelector struct {
	query   string
	matcher Matcher
	cache   bool
}

func (s *searchSelector) match(ctx context.Context, l *domain.Listing) (string, error) {
	names := l.Names()
	if len(names) == 0 {
		return extraction.NoMatch, nil
	}
	return s.matcher.MatchPlan(ctx, names, s.query, s.cache)
}

func (s *searchSelector) initial(ctx context.Context, classifier *domain.Listing) (*domain.Listing, error) {
	m, err := s.match(ctx, classifier)
	if err != nil {
		return nil, err
	}
	zap.L().Info("pipeline.searchSelector.initial: classifier list match", zap.String("match", m))
	if m == extraction.NoMatch {
		return nil, nil
	}
	return single(classifier, m), nil
}

func (*searchSelector) perLOC() bool { return false }

func (s *searchSelector) final(ctx context.Context, prelim, _, identified *domain.Listing) (*domain.Listing, error) {
	if prelim != nil {
		return prelim, nil
	}
	m, err := s.match(ctx, identified)
	if err != nil {
		return nil, err
	}
	zap.L().Info("pipeline.searchSelector.final: plan identification list match", zap.String("match", m))
	if m == extraction.NoMatch {
		return nil, errPlanNotFound
	}
	return single(identified, m), nil
}

func (s *searchSelector) rebuild(ctx context.Context, identified *domain.Listing) (*domain.Listing, error) {
	m, err := s.match(ctx, identified)
	if err != nil {
		return nil, err
	}
	zap.L().Info("pipeline.searchSelector.rebuild: plan identification list match", zap.String("match", m))
	if m == extraction.NoMatch {
		return nil, errPlanNotFound
	}
	return single(identified, m), nil
}

type allPlansSelector struct{}

func (allPlansSelector) initial(_ context.Context, classifier *domain.Listing) (*domain.Listing, error) {
	return classifier, nil
}

func (allPlansSelector) perLOC() bool { return false }

func (allPlansSelector) final(_ context.Context, prelim, _, _ *domain.Listing) (*domain.Listing, error) {
	return prelim, nil
}

func (allPlansSelector) rebuild(_ context.Context, identified *domain.Listing) (*domain.Listing, error) {
	return identified, nil
}
