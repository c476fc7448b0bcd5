package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"soulfra/api/internal/store"
	"soulfra/api/internal/util"
)

func domainsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "Domain portfolio commands",
	}
	cmd.AddCommand(domainsImportCmd())
	return cmd
}

func domainsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import file.csv",
		Short: "Import domains from a CSV (name,brand_slug,status,registrar)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.close()
			return runDomainsImport(ctx, env, args[0])
		},
	}
}

func runDomainsImport(ctx context.Context, env *env, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	imported := 0
	duplicates := 0
	bad := 0
	line := 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}
		line++

		if line == 1 && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "name") {
			continue // header row
		}

		name := ""
		if len(record) > 0 {
			name = strings.ToLower(strings.TrimSpace(record[0]))
		}
		if name == "" || !strings.Contains(name, ".") {
			fmt.Printf("line %d: skipping bad row %q\n", line, strings.Join(record, ","))
			bad++
			continue
		}

		brandID := ""
		if len(record) > 1 && strings.TrimSpace(record[1]) != "" {
			brand, err := env.store.GetBrandBySlug(ctx, strings.TrimSpace(record[1]))
			if err != nil {
				fmt.Printf("line %d: unknown brand %q, importing without brand\n", line, record[1])
			} else {
				brandID = brand.ID
			}
		}
		status := "parked"
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			status = strings.ToLower(strings.TrimSpace(record[2]))
		}
		if status != "parked" && status != "active" && status != "retired" {
			fmt.Printf("line %d: skipping bad status %q\n", line, status)
			bad++
			continue
		}
		registrar := ""
		if len(record) > 3 {
			registrar = strings.TrimSpace(record[3])
		}

		err = env.store.InsertDomain(ctx, store.Domain{
			ID:        util.NewID("dom"),
			Name:      name,
			BrandID:   brandID,
			Status:    status,
			Registrar: registrar,
		})
		switch {
		case errors.Is(err, store.ErrDuplicate):
			duplicates++
		case err != nil:
			return err
		default:
			imported++
		}
	}

	fmt.Printf("import complete: %d imported, %d duplicates skipped, %d bad rows\n", imported, duplicates, bad)
	return nil
}
