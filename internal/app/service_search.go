package app

import (
	"context"

	"soulfra/api/internal/search"
)

func (s *Service) SearchContent(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// ReindexSearch pushes every post, brand, and domain to Meilisearch.
func (s *Service) ReindexSearch(ctx context.Context) {
	if s.search == nil {
		return
	}
	s.search.ReindexAllFromDB(ctx)
}

// Ready reports per-dependency health for the readiness endpoint.
func (s *Service) Ready(ctx context.Context) (map[string]any, bool) {
	checks := map[string]any{}
	healthy := true

	if err := s.store.Ping(ctx); err != nil {
		checks["database"] = "error: " + err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	for name, check := range s.extraChecks {
		if err := check(ctx); err != nil {
			checks[name] = "error: " + err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	return checks, healthy
}
