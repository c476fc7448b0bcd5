package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"soulfra/api/internal/store"
	"soulfra/api/internal/wordmap"
)

func ownershipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ownership",
		Short: "Domain ownership commands",
	}
	cmd.AddCommand(ownershipRecomputeCmd())
	return cmd
}

func ownershipRecomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute [domain]",
		Short: "Recompute ownership percentages from the contribution log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			var domains []store.Domain
			if len(args) == 1 {
				domain, err := env.store.GetDomainByName(ctx, strings.ToLower(args[0]))
				if err != nil {
					return fmt.Errorf("domain %q not found", args[0])
				}
				domains = []store.Domain{domain}
			} else {
				domains, err = env.store.ListDomains(ctx, "")
				if err != nil {
					return err
				}
			}

			for _, domain := range domains {
				totals, err := env.store.ContributionTotals(ctx, domain.ID)
				if err != nil {
					return err
				}
				owners := wordmap.ComputeOwnership(totals)
				if err := env.store.ReplaceDomainOwnership(ctx, domain.ID, owners); err != nil {
					return err
				}
				fmt.Printf("%s: %d owners\n", domain.Name, len(owners))
			}
			return nil
		},
	}
}
