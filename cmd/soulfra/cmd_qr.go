package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"soulfra/api/internal/genimg"
	"soulfra/api/internal/objstore"
	"soulfra/api/internal/store"
	"soulfra/api/internal/util"
)

func qrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "QR code commands",
	}
	cmd.AddCommand(qrGenerateCmd())
	return cmd
}

func qrGenerateCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create QR codes for active domains that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.close()
			return runQRGenerate(ctx, env, baseURL)
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "https://", "URL scheme prefix for domain targets")
	return cmd
}

func runQRGenerate(ctx context.Context, env *env, baseURL string) error {
	domains, err := env.store.ActiveDomainsWithoutQR(ctx)
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		fmt.Println("all active domains already have QR codes")
		return nil
	}

	var objects *objstore.Store
	if strings.TrimSpace(env.cfg.MinioEndpoint) != "" {
		objects, err = objstore.New(ctx, env.cfg.MinioEndpoint, env.cfg.MinioAccessKey, env.cfg.MinioSecretKey, env.cfg.MinioBucket, env.cfg.MinioUseSSL)
		if err != nil {
			return fmt.Errorf("minio connection failed: %w", err)
		}
	}

	created := 0
	for _, domain := range domains {
		targetURL := baseURL + domain.Name
		if !strings.HasPrefix(targetURL, "http://") && !strings.HasPrefix(targetURL, "https://") {
			targetURL = "https://" + domain.Name
		}

		slug := util.NewSlug()
		imageKey := ""
		if objects != nil {
			png, err := genimg.QRPNG(targetURL, 0)
			if err != nil {
				return fmt.Errorf("render qr for %s: %w", domain.Name, err)
			}
			imageKey = "qr/" + slug + ".png"
			if err := objects.Put(ctx, imageKey, png, "image/png"); err != nil {
				return fmt.Errorf("store qr for %s: %w", domain.Name, err)
			}
		}

		if err := env.store.InsertQRCode(ctx, store.QRCode{
			ID:        util.NewID("qrc"),
			Slug:      slug,
			TargetURL: targetURL,
			ImageKey:  imageKey,
			CreatedBy: "cli",
		}); err != nil {
			return err
		}
		fmt.Printf("%s -> /api/qr/%s\n", domain.Name, slug)
		created++
	}

	fmt.Printf("qr generate complete: %d codes created\n", created)
	return nil
}
