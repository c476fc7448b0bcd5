package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"soulfra/api/internal/email"
)

func digestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Newsletter digest commands",
	}
	cmd.AddCommand(digestSendCmd())
	return cmd
}

func digestSendCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the digest of recent published posts to confirmed subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.close()
			return runDigestSend(ctx, env, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of posts in the digest")
	return cmd
}

func runDigestSend(ctx context.Context, env *env, limit int) error {
	mailer := email.NewService(email.Config{
		Host:     env.cfg.SMTPHost,
		Port:     env.cfg.SMTPPort,
		Username: env.cfg.SMTPUsername,
		Password: env.cfg.SMTPPassword,
		From:     env.cfg.SMTPFrom,
		FromName: env.cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		return errors.New("SMTP is not configured")
	}

	posts, err := env.store.ListPosts(ctx, "", "published", limit)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Println("no published posts; nothing to send")
		return nil
	}

	digest := make([]email.DigestPost, 0, len(posts))
	for _, post := range posts {
		brandName := ""
		if post.BrandID != "" {
			if brand, err := env.store.GetBrandByID(ctx, post.BrandID); err == nil {
				brandName = brand.Name
			}
		}
		digest = append(digest, email.DigestPost{
			Title:   post.Title,
			Author:  post.AuthorName,
			Brand:   brandName,
			URL:     env.cfg.PublicBaseURL + "/posts/" + post.ID,
			Excerpt: excerpt(post.BodyMarkdown, 200),
		})
	}

	subscribers, err := env.store.ListConfirmedSubscribers(ctx)
	if err != nil {
		return err
	}
	if len(subscribers) == 0 {
		fmt.Println("no confirmed subscribers")
		return nil
	}

	sent := 0
	failed := 0
	for _, subscriber := range subscribers {
		unsubscribe := env.cfg.PublicBaseURL + "/unsubscribe?email=" + url.QueryEscape(subscriber.Email)
		if err := mailer.SendDigestEmail(subscriber.Email, unsubscribe, digest); err != nil {
			fmt.Printf("send to %s failed: %v\n", subscriber.Email, err)
			failed++
			continue
		}
		sent++
	}

	fmt.Printf("digest sent: %d delivered, %d failed, %d posts\n", sent, failed, len(digest))
	return nil
}

// excerpt trims markdown to a plain-ish preview.
func excerpt(markdown string, max int) string {
	text := strings.Join(strings.Fields(strings.NewReplacer("#", "", "*", "", "`", "", ">", "").Replace(markdown)), " ")
	if len(text) <= max {
		return text
	}
	cut := strings.LastIndex(text[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return text[:cut] + "…"
}
