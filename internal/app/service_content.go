package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"soulfra/api/internal/export"
	"soulfra/api/internal/gitrepo"
	"soulfra/api/internal/llm"
	"soulfra/api/internal/markdown"
	"soulfra/api/internal/search"
	"soulfra/api/internal/store"
	"soulfra/api/internal/util"
)

var allowedPostStatuses = map[string]struct{}{
	"draft":     {},
	"published": {},
	"archived":  {},
}

type CreatePostInput struct {
	BrandID      string `json:"brandId"`
	Title        string `json:"title"`
	BodyMarkdown string `json:"bodyMarkdown"`
	Status       string `json:"status"`
}

type UpdatePostInput struct {
	Title        *string `json:"title"`
	BodyMarkdown *string `json:"bodyMarkdown"`
	Status       *string `json:"status"`
}

func (s *Service) ListPosts(ctx context.Context, brandID, status string, limit int) ([]map[string]any, error) {
	posts, err := s.store.ListPosts(ctx, brandID, status, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		items = append(items, postSummary(post))
	}
	return items, nil
}

func (s *Service) GetPost(ctx context.Context, postID string) (map[string]any, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return postPayload(post), nil
}

func (s *Service) CreatePost(ctx context.Context, session Session, input CreatePostInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	status := firstNonBlank(input.Status, "draft")
	if _, ok := allowedPostStatuses[status]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be draft, published, or archived", nil)
	}
	if input.BrandID != "" {
		if _, err := s.store.GetBrandByID(ctx, input.BrandID); err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown brand", nil)
		}
	}

	bodyHTML, err := markdown.Render(input.BodyMarkdown)
	if err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	post := store.Post{
		ID:           util.NewID("pst"),
		BrandID:      input.BrandID,
		AuthorID:     session.UserID,
		AuthorName:   session.UserName,
		Title:        title,
		BodyMarkdown: input.BodyMarkdown,
		BodyHTML:     bodyHTML,
		Status:       status,
	}
	if err := s.store.InsertPost(ctx, post); err != nil {
		return nil, err
	}

	if s.git != nil {
		if err := s.git.EnsurePostRepo(post.ID, gitrepo.Content{
			Title:        post.Title,
			BodyMarkdown: post.BodyMarkdown,
		}, session.UserName); err != nil {
			return nil, fmt.Errorf("init post repo: %w", err)
		}
	}

	s.indexPost(post)
	return s.GetPost(ctx, post.ID)
}

func (s *Service) UpdatePost(ctx context.Context, session Session, postID string, input UpdatePostInput) (map[string]any, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	title := post.Title
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title cannot be empty", nil)
		}
	}
	body := post.BodyMarkdown
	if input.BodyMarkdown != nil {
		body = *input.BodyMarkdown
	}
	status := post.Status
	if input.Status != nil {
		status = *input.Status
		if _, ok := allowedPostStatuses[status]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be draft, published, or archived", nil)
		}
	}

	bodyHTML := post.BodyHTML
	if body != post.BodyMarkdown {
		bodyHTML, err = markdown.Render(body)
		if err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
	}

	if err := s.store.UpdatePost(ctx, postID, title, body, bodyHTML, status); err != nil {
		return nil, err
	}

	if s.git != nil && (title != post.Title || body != post.BodyMarkdown) {
		content := gitrepo.Content{Title: title, BodyMarkdown: body}
		if err := s.git.EnsurePostRepo(postID, content, session.UserName); err != nil {
			return nil, fmt.Errorf("init post repo: %w", err)
		}
		if _, err := s.git.CommitRevision(postID, content, session.UserName, ""); err != nil {
			return nil, fmt.Errorf("commit revision: %w", err)
		}
	}

	updated, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.indexPost(updated)
	return postPayload(updated), nil
}

func (s *Service) DeletePost(ctx context.Context, postID string) error {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeletePost(postID)
	}
	return nil
}

func (s *Service) PostHistory(ctx context.Context, postID string, limit int) ([]map[string]any, error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	if s.git == nil {
		return []map[string]any{}, nil
	}
	revisions, err := s.git.History(postID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(revisions))
	for _, rev := range revisions {
		items = append(items, map[string]any{
			"hash":      rev.Hash,
			"message":   rev.Message,
			"author":    rev.Author,
			"createdAt": rev.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) PostRevision(ctx context.Context, postID, hash string) (map[string]any, error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	if s.git == nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	content, err := s.git.GetContentByHash(postID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	return map[string]any{
		"hash":         hash,
		"title":        content.Title,
		"bodyMarkdown": content.BodyMarkdown,
	}, nil
}

func (s *Service) ExportPost(ctx context.Context, postID string, includeComments bool) (*export.Result, error) {
	return s.exporter.Export(ctx, export.Request{
		PostID:          postID,
		Format:          export.FormatPDF,
		IncludeComments: includeComments,
	})
}

func (s *Service) ListComments(ctx context.Context, postID string) ([]map[string]any, error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		items = append(items, commentPayload(comment))
	}
	return items, nil
}

func (s *Service) CreateComment(ctx context.Context, session Session, postID, body string) (map[string]any, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	comment := store.Comment{
		ID:         util.NewID("cmt"),
		PostID:     postID,
		AuthorID:   session.UserID,
		AuthorName: session.UserName,
		Body:       body,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}
	return commentPayload(comment), nil
}

// PersonaReply asks the local model for a comment written in a brand
// persona's voice and stores it as an AI-generated comment.
func (s *Service) PersonaReply(ctx context.Context, postID string) (map[string]any, error) {
	if s.llm == nil {
		return nil, domainError(http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "Persona replies are not available", nil)
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	personas, err := s.store.ListPersonaUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(personas) == 0 {
		return nil, domainError(http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "No persona accounts configured", nil)
	}
	persona := personas[0]

	systemPrompt := persona.PersonaPrompt
	if post.BrandID != "" {
		if brand, err := s.store.GetBrandByID(ctx, post.BrandID); err == nil && brand.Personality != "" {
			systemPrompt = firstNonBlank(systemPrompt, "You are a thoughtful commenter.") +
				"\nWrite in the voice of the brand \"" + brand.Name + "\": " + brand.Personality
		}
	}
	if systemPrompt == "" {
		systemPrompt = "You are a thoughtful commenter. Reply in two or three sentences."
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Write a short comment replying to this post.\n\nTitle: " + post.Title + "\n\n" + post.BodyMarkdown},
		},
		MaxTokens: 300,
	})
	if err != nil {
		return nil, domainError(http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "Persona reply failed", err.Error())
	}

	comment := store.Comment{
		ID:            util.NewID("cmt"),
		PostID:        postID,
		AuthorID:      persona.ID,
		AuthorName:    persona.Username,
		Body:          strings.TrimSpace(resp.Content),
		IsAIGenerated: true,
	}
	if comment.Body == "" {
		return nil, domainError(http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "Persona reply was empty", nil)
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}
	return commentPayload(comment), nil
}

// Subscribe adds a newsletter subscriber. A duplicate email is reported,
// not rejected.
func (s *Service) Subscribe(ctx context.Context, email string) (map[string]any, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a valid email is required", nil)
	}
	added, err := s.store.AddSubscriber(ctx, email)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"subscribed":        true,
		"alreadySubscribed": !added,
	}, nil
}

func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a valid email is required", nil)
	}
	return s.store.RemoveSubscriber(ctx, email)
}

func (s *Service) indexPost(post store.Post) {
	if s.search == nil {
		return
	}
	s.search.IndexPost(search.PostRecord{
		ID:      post.ID,
		Title:   post.Title,
		Body:    post.BodyMarkdown,
		BrandID: post.BrandID,
		Status:  post.Status,
	})
}

func postSummary(post store.Post) map[string]any {
	return map[string]any{
		"id":        post.ID,
		"brandId":   post.BrandID,
		"authorId":  post.AuthorID,
		"author":    post.AuthorName,
		"title":     post.Title,
		"status":    post.Status,
		"createdAt": post.CreatedAt,
		"updatedAt": post.UpdatedAt,
	}
}

func postPayload(post store.Post) map[string]any {
	payload := postSummary(post)
	payload["bodyMarkdown"] = post.BodyMarkdown
	payload["bodyHtml"] = post.BodyHTML
	return payload
}

func commentPayload(comment store.Comment) map[string]any {
	return map[string]any{
		"id":            comment.ID,
		"postId":        comment.PostID,
		"authorId":      comment.AuthorID,
		"author":        comment.AuthorName,
		"body":          comment.Body,
		"isAiGenerated": comment.IsAIGenerated,
		"createdAt":     comment.CreatedAt,
	}
}
