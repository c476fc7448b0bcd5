// Package search provides full-text search over posts, brands, and
// domains via Meilisearch with a SQLite FTS5 fallback.
package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// SQLite FTS5.
type Service struct {
	meili *Meili
	fts   *SqliteFTS
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, fts *SqliteFTS) *Service {
	return &Service{meili: meili, fts: fts}
}

// Search tries Meilisearch if healthy, otherwise falls back to FTS5.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to fts: %v", err)
	}

	results, total, err := s.fts.Search(q)
	if err != nil {
		log.Printf("search: fts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexPost indexes a post (fire-and-forget to Meilisearch).
func (s *Service) IndexPost(p PostRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPost(p); err != nil {
			log.Printf("search: index post %s: %v", p.ID, err)
		}
	}()
}

// IndexBrand indexes a brand (fire-and-forget to Meilisearch).
func (s *Service) IndexBrand(b BrandRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexBrand(b); err != nil {
			log.Printf("search: index brand %s: %v", b.ID, err)
		}
	}()
}

// IndexDomain indexes a domain (fire-and-forget to Meilisearch).
func (s *Service) IndexDomain(d DomainRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDomain(d); err != nil {
			log.Printf("search: index domain %s: %v", d.ID, err)
		}
	}()
}

// DeletePost removes a post from the search index (fire-and-forget).
func (s *Service) DeletePost(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePost(id); err != nil {
			log.Printf("search: delete post %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the given records to Meilisearch in bulk.
func (s *Service) ReindexAll(posts []PostRecord, brands []BrandRecord, domains []DomainRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(posts) > 0 {
		if err := s.meili.IndexPosts(posts); err != nil {
			log.Printf("search: reindex posts: %v", err)
		}
	}
	if len(brands) > 0 {
		if err := s.meili.IndexBrands(brands); err != nil {
			log.Printf("search: reindex brands: %v", err)
		}
	}
	if len(domains) > 0 {
		if err := s.meili.IndexDomains(domains); err != nil {
			log.Printf("search: reindex domains: %v", err)
		}
	}
}

// ReindexAllFromDB reads every searchable entity from SQLite and
// pushes them to Meilisearch.
func (s *Service) ReindexAllFromDB(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.fts == nil {
		return
	}
	posts, brands, domains, err := s.fts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(posts, brands, domains)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
