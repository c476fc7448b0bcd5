package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"soulfra/api/internal/store"
	"soulfra/api/internal/util"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed idempotent demo data (brands, domains, persona users)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.close()
			return runSeed(ctx, env)
		},
	}
}

func runSeed(ctx context.Context, env *env) error {
	created := 0
	skipped := 0

	brandSeeds := []store.Brand{
		{Slug: "soulfra", Name: "Soulfra", Tagline: "Own the words you live by", ColorScheme: `{"primary":"#6c3cc9","secondary":"#1a1a2e","accent":"#e9d8fd"}`, Personality: "Earnest, a little mystical, always encouraging.", Tier: 1},
		{Slug: "deathtodata", Name: "Death to Data", Tagline: "Privacy-first search", ColorScheme: `{"primary":"#111111","secondary":"#ff3b30","accent":"#f5f5f5"}`, Personality: "Blunt, anti-surveillance, dry humor.", Tier: 2},
		{Slug: "calcompare", Name: "CalCompare", Tagline: "Side-by-side model answers", ColorScheme: `{"primary":"#0a84ff","secondary":"#f2f2f7","accent":"#ffd60a"}`, Personality: "Analytical and even-handed, cites tradeoffs.", Tier: 3},
	}
	brandIDs := map[string]string{}
	for _, seed := range brandSeeds {
		seed.ID = util.NewID("brd")
		err := env.store.InsertBrand(ctx, seed)
		switch {
		case errors.Is(err, store.ErrDuplicate):
			existing, err := env.store.GetBrandBySlug(ctx, seed.Slug)
			if err != nil {
				return err
			}
			brandIDs[seed.Slug] = existing.ID
			skipped++
		case err != nil:
			return err
		default:
			brandIDs[seed.Slug] = seed.ID
			created++
		}
	}

	domainSeeds := []store.Domain{
		{Name: "soulfra.com", BrandID: brandIDs["soulfra"], Status: "active", Registrar: "porkbun"},
		{Name: "deathtodata.com", BrandID: brandIDs["deathtodata"], Status: "active", Registrar: "porkbun"},
		{Name: "calcompare.ai", BrandID: brandIDs["calcompare"], Status: "parked", Registrar: "namecheap"},
	}
	for _, seed := range domainSeeds {
		seed.ID = util.NewID("dom")
		err := env.store.InsertDomain(ctx, seed)
		switch {
		case errors.Is(err, store.ErrDuplicate):
			skipped++
		case err != nil:
			return err
		default:
			created++
		}
	}

	// Persona accounts never sign in; the password hash is a throwaway.
	hash, err := bcrypt.GenerateFromPassword([]byte(util.NewID("seed")), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	personaSeeds := []store.User{
		{
			Username:      "cal-riven",
			Email:         "cal-riven@personas.soulfra.dev",
			Role:          "member",
			IsAIPersona:   true,
			PersonaPrompt: "You are Cal Riven, Soulfra's resident archivist. You reply to posts with curious, slightly formal observations and always find one detail worth praising.",
		},
		{
			Username:      "the-auditor",
			Email:         "the-auditor@personas.soulfra.dev",
			Role:          "member",
			IsAIPersona:   true,
			PersonaPrompt: "You are The Auditor. You reply tersely, questioning one assumption per post, never rude but never satisfied.",
		},
	}
	for _, seed := range personaSeeds {
		if _, err := env.store.GetUserByUsername(ctx, seed.Username); err == nil {
			skipped++
			continue
		}
		seed.ID = util.NewID("usr")
		seed.PasswordHash = string(hash)
		seed.IsEmailVerified = true
		if err := env.store.CreateUser(ctx, seed); err != nil {
			return err
		}
		created++
	}

	fmt.Printf("seed complete: %d created, %d already present\n", created, skipped)
	return nil
}
