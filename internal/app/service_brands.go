package app

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"soulfra/api/internal/search"
	"soulfra/api/internal/store"
	"soulfra/api/internal/tier"
	"soulfra/api/internal/util"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

type CreateBrandInput struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Tagline     string `json:"tagline"`
	ColorScheme string `json:"colorScheme"`
	Personality string `json:"personality"`
	Tier        int    `json:"tier"`
}

type UpdateBrandInput struct {
	Name        *string `json:"name"`
	Tagline     *string `json:"tagline"`
	ColorScheme *string `json:"colorScheme"`
	Personality *string `json:"personality"`
	Tier        *int    `json:"tier"`
}

func (s *Service) ListBrands(ctx context.Context) ([]map[string]any, error) {
	brands, err := s.store.ListBrands(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(brands))
	for _, brand := range brands {
		items = append(items, brandPayload(brand))
	}
	return items, nil
}

func (s *Service) GetBrand(ctx context.Context, slug string) (map[string]any, error) {
	brand, err := s.store.GetBrandBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return brandPayload(brand), nil
}

func (s *Service) CreateBrand(ctx context.Context, input CreateBrandInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	slug := firstNonBlank(strings.TrimSpace(input.Slug), slugify(name))
	if !slugPattern.MatchString(slug) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "slug must be 2-64 lowercase letters, digits, or '-'", nil)
	}
	brandTier := input.Tier
	if brandTier < 1 {
		brandTier = 1
	}
	if brandTier > tier.MaxTier {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "tier out of range", nil)
	}

	brand := store.Brand{
		ID:          util.NewID("brd"),
		Slug:        slug,
		Name:        name,
		Tagline:     strings.TrimSpace(input.Tagline),
		ColorScheme: input.ColorScheme,
		Personality: input.Personality,
		Tier:        brandTier,
	}
	if err := s.store.InsertBrand(ctx, brand); err != nil {
		return nil, err
	}
	s.indexBrand(brand)
	return s.GetBrand(ctx, slug)
}

func (s *Service) UpdateBrand(ctx context.Context, slug string, input UpdateBrandInput) (map[string]any, error) {
	brand, err := s.store.GetBrandBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	name := brand.Name
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name cannot be empty", nil)
		}
	}
	tagline := brand.Tagline
	if input.Tagline != nil {
		tagline = strings.TrimSpace(*input.Tagline)
	}
	colorScheme := brand.ColorScheme
	if input.ColorScheme != nil {
		colorScheme = *input.ColorScheme
	}
	personality := brand.Personality
	if input.Personality != nil {
		personality = *input.Personality
	}
	brandTier := brand.Tier
	if input.Tier != nil {
		brandTier = *input.Tier
		if brandTier < 1 || brandTier > tier.MaxTier {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "tier out of range", nil)
		}
	}

	if err := s.store.UpdateBrand(ctx, slug, name, tagline, colorScheme, personality, brandTier); err != nil {
		return nil, err
	}

	updated, err := s.store.GetBrandBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	s.indexBrand(updated)
	return brandPayload(updated), nil
}

// TierProgress reports the caller's activity counts, current tier, and
// the gap to the next tier.
func (s *Service) TierProgress(ctx context.Context, userID string) (map[string]any, error) {
	counts, err := s.store.ActivityCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	progress := tier.Compute(counts)
	unlocked, err := s.store.ListUnlockedBrandIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"counts": map[string]any{
			"posts":         counts.Posts,
			"comments":      counts.Comments,
			"contributions": counts.Contributions,
			"scans":         counts.Scans,
		},
		"score":            progress.Score,
		"tier":             progress.Tier,
		"nextTier":         progress.NextTier,
		"nextThreshold":    progress.NextThreshold,
		"remaining":        progress.Remaining,
		"unlockedBrandIds": unlocked,
	}, nil
}

// UnlockBrand records a tier unlock. Unlocking requires the caller's
// progression to reach the brand's tier; repeating an unlock is a no-op.
func (s *Service) UnlockBrand(ctx context.Context, session Session, slug string) (map[string]any, error) {
	brand, err := s.store.GetBrandBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.ActivityCounts(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	progress := tier.Compute(counts)
	if !tier.CanUnlock(progress, brand.Tier) {
		return nil, domainError(http.StatusForbidden, "TIER_LOCKED", "Brand requires a higher tier", map[string]any{
			"brandTier": brand.Tier,
			"yourTier":  progress.Tier,
		})
	}
	if err := s.store.UnlockBrand(ctx, session.UserID, brand.ID); err != nil {
		return nil, err
	}
	return map[string]any{
		"brandId":  brand.ID,
		"slug":     brand.Slug,
		"unlocked": true,
		"tier":     progress.Tier,
	}, nil
}

func (s *Service) indexBrand(brand store.Brand) {
	if s.search == nil {
		return
	}
	s.search.IndexBrand(search.BrandRecord{
		ID:          brand.ID,
		Slug:        brand.Slug,
		Name:        brand.Name,
		Tagline:     brand.Tagline,
		Personality: brand.Personality,
		Tier:        brand.Tier,
	})
}

func brandPayload(brand store.Brand) map[string]any {
	return map[string]any{
		"id":          brand.ID,
		"slug":        brand.Slug,
		"name":        brand.Name,
		"tagline":     brand.Tagline,
		"colorScheme": brand.ColorScheme,
		"personality": brand.Personality,
		"tier":        brand.Tier,
		"createdAt":   brand.CreatedAt,
		"updatedAt":   brand.UpdatedAt,
	}
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
