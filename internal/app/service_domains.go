package app

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"soulfra/api/internal/llm"
	"soulfra/api/internal/search"
	"soulfra/api/internal/store"
	"soulfra/api/internal/util"
	"soulfra/api/internal/wordmap"
)

var allowedDomainStatuses = map[string]struct{}{
	"parked":  {},
	"active":  {},
	"retired": {},
}

type CreateDomainInput struct {
	Name      string `json:"name"`
	BrandID   string `json:"brandId"`
	Status    string `json:"status"`
	Registrar string `json:"registrar"`
}

type ContributeInput struct {
	Keywords map[string]int `json:"keywords"`
	Text     string         `json:"text"`
}

func (s *Service) ListDomains(ctx context.Context, status string) ([]map[string]any, error) {
	if status != "" {
		if _, ok := allowedDomainStatuses[status]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be parked, active, or retired", nil)
		}
	}
	domains, err := s.store.ListDomains(ctx, status)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(domains))
	for _, domain := range domains {
		items = append(items, domainPayload(domain))
	}
	return items, nil
}

func (s *Service) GetDomain(ctx context.Context, name string) (map[string]any, error) {
	domain, err := s.store.GetDomainByName(ctx, strings.ToLower(name))
	if err != nil {
		return nil, err
	}
	return domainPayload(domain), nil
}

func (s *Service) CreateDomain(ctx context.Context, input CreateDomainInput) (map[string]any, error) {
	name := strings.ToLower(strings.TrimSpace(input.Name))
	if name == "" || !strings.Contains(name, ".") {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a valid domain name is required", nil)
	}
	status := firstNonBlank(input.Status, "parked")
	if _, ok := allowedDomainStatuses[status]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be parked, active, or retired", nil)
	}
	if input.BrandID != "" {
		if _, err := s.store.GetBrandByID(ctx, input.BrandID); err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown brand", nil)
		}
	}

	domain := store.Domain{
		ID:        util.NewID("dom"),
		Name:      name,
		BrandID:   input.BrandID,
		Status:    status,
		Registrar: strings.TrimSpace(input.Registrar),
	}
	if err := s.store.InsertDomain(ctx, domain); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexDomain(search.DomainRecord{ID: domain.ID, Name: domain.Name, Status: domain.Status})
	}
	return s.GetDomain(ctx, name)
}

// DomainWordmap returns the merged keyword counts for a domain.
func (s *Service) DomainWordmap(ctx context.Context, name string) (map[string]any, error) {
	domain, err := s.store.GetDomainByName(ctx, strings.ToLower(name))
	if err != nil {
		return nil, err
	}
	counts, err := s.store.GetWordmap(ctx, domain.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"domain":   domain.Name,
		"keywords": counts,
	}, nil
}

// ContributeWordmap merges keyword counts into a domain's wordmap and
// recomputes ownership percentages from the contribution log.
func (s *Service) ContributeWordmap(ctx context.Context, session Session, name string, input ContributeInput) (map[string]any, error) {
	domain, err := s.store.GetDomainByName(ctx, strings.ToLower(name))
	if err != nil {
		return nil, err
	}

	counts := wordmap.Normalize(input.Keywords)
	if strings.TrimSpace(input.Text) != "" {
		for keyword, n := range wordmap.Extract(input.Text) {
			counts[keyword] += n
		}
	}
	if len(counts) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "keywords or text required", nil)
	}

	if err := s.store.ApplyWordmapContribution(ctx, domain.ID, session.UserID, counts); err != nil {
		return nil, err
	}
	if err := s.recomputeOwnership(ctx, domain.ID); err != nil {
		return nil, err
	}

	merged, err := s.store.GetWordmap(ctx, domain.ID)
	if err != nil {
		return nil, err
	}
	owners, err := s.store.ListDomainOwnership(ctx, domain.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"domain":      domain.Name,
		"contributed": counts,
		"keywords":    merged,
		"ownership":   ownershipPayload(owners),
	}, nil
}

func (s *Service) DomainOwnership(ctx context.Context, name string) (map[string]any, error) {
	domain, err := s.store.GetDomainByName(ctx, strings.ToLower(name))
	if err != nil {
		return nil, err
	}
	owners, err := s.store.ListDomainOwnership(ctx, domain.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"domain":    domain.Name,
		"ownership": ownershipPayload(owners),
	}, nil
}

// RecomputeOwnership rebuilds the ownership table for one domain from the
// contribution log. Used by contributions and the CLI.
func (s *Service) RecomputeOwnership(ctx context.Context, name string) error {
	domain, err := s.store.GetDomainByName(ctx, strings.ToLower(name))
	if err != nil {
		return err
	}
	return s.recomputeOwnership(ctx, domain.ID)
}

func (s *Service) recomputeOwnership(ctx context.Context, domainID string) error {
	totals, err := s.store.ContributionTotals(ctx, domainID)
	if err != nil {
		return err
	}
	return s.store.ReplaceDomainOwnership(ctx, domainID, wordmap.ComputeOwnership(totals))
}

// ClassifyDomain matches free text against the domain's wordmap. When the
// local model is reachable it refines the keyword pick; the matched counts
// are merged back like a contribution.
func (s *Service) ClassifyDomain(ctx context.Context, session Session, name, text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	domain, err := s.store.GetDomainByName(ctx, strings.ToLower(name))
	if err != nil {
		return nil, err
	}
	wm, err := s.store.GetWordmap(ctx, domain.ID)
	if err != nil {
		return nil, err
	}

	extracted := wordmap.Extract(text)
	matched := make(map[string]int)
	for keyword, n := range extracted {
		if _, ok := wm[keyword]; ok {
			matched[keyword] = n
		}
	}

	usedModel := false
	if s.llm != nil && len(wm) > 0 {
		if picks := s.classifyWithModel(ctx, text, wm); len(picks) > 0 {
			usedModel = true
			for _, keyword := range picks {
				if matched[keyword] == 0 {
					matched[keyword] = 1
				}
			}
		}
	}

	score := wordmap.Score(wm, extracted)
	payload := map[string]any{
		"domain":    domain.Name,
		"score":     score,
		"keywords":  matched,
		"usedModel": usedModel,
	}
	if len(matched) == 0 {
		return payload, nil
	}

	if err := s.store.ApplyWordmapContribution(ctx, domain.ID, session.UserID, matched); err != nil {
		return nil, err
	}
	if err := s.recomputeOwnership(ctx, domain.ID); err != nil {
		return nil, err
	}
	return payload, nil
}

// classifyWithModel asks the model which of the domain's top keywords the
// text matches. Errors degrade to the plain lexical match.
func (s *Service) classifyWithModel(ctx context.Context, text string, wm map[string]int) []string {
	// Offer the model the strongest keywords, not a random map sample.
	keywords := make([]string, 0, len(wm))
	for keyword := range wm {
		keywords = append(keywords, keyword)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if wm[keywords[i]] != wm[keywords[j]] {
			return wm[keywords[i]] > wm[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > 30 {
		keywords = keywords[:30]
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "You classify text against a fixed keyword list. Reply with a comma-separated subset of the list, nothing else. Reply with 'none' if nothing matches."},
			{Role: "user", Content: "Keywords: " + strings.Join(keywords, ", ") + "\n\nText:\n" + text},
		},
		MaxTokens: 120,
	})
	if err != nil {
		return nil
	}

	allowed := make(map[string]struct{}, len(wm))
	for keyword := range wm {
		allowed[keyword] = struct{}{}
	}
	var picks []string
	for _, part := range strings.Split(resp.Content, ",") {
		keyword := strings.ToLower(strings.TrimSpace(part))
		if _, ok := allowed[keyword]; ok {
			picks = append(picks, keyword)
		}
	}
	return picks
}

func domainPayload(domain store.Domain) map[string]any {
	return map[string]any{
		"id":        domain.ID,
		"name":      domain.Name,
		"brandId":   domain.BrandID,
		"status":    domain.Status,
		"registrar": domain.Registrar,
		"createdAt": domain.CreatedAt,
	}
}

func ownershipPayload(owners []store.Ownership) []map[string]any {
	items := make([]map[string]any, 0, len(owners))
	for _, owner := range owners {
		items = append(items, map[string]any{
			"userId":     owner.UserID,
			"username":   owner.Username,
			"score":      owner.Score,
			"percent":    owner.Percent,
			"computedAt": owner.ComputedAt,
		})
	}
	return items
}
