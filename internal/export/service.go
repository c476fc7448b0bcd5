package export

import (
	"context"
	"fmt"
	"html/template"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetPostInfo(ctx context.Context, postID string) (PostInfo, error)
	GetBrandName(ctx context.Context, brandID string) (string, error)
	GetUsername(ctx context.Context, userID string) (string, error)
	ListPostComments(ctx context.Context, postID string) ([]CommentInfo, error)
}

// Service provides post export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	post, err := s.store.GetPostInfo(ctx, req.PostID)
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	author, err := s.store.GetUsername(ctx, post.AuthorID)
	if err != nil {
		author = "unknown"
	}

	var brandName string
	if post.BrandID != "" {
		if name, err := s.store.GetBrandName(ctx, post.BrandID); err == nil {
			brandName = name
		}
	}

	data := TemplateData{
		Title:       post.Title,
		ContentHTML: template.HTML(post.BodyHTML),
		Author:      author,
		BrandName:   brandName,
		UpdatedAt:   post.UpdatedAt,
		Comments:    []TemplateComment{},
	}

	if req.IncludeComments {
		comments, err := s.store.ListPostComments(ctx, req.PostID)
		if err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
		for _, c := range comments {
			data.Comments = append(data.Comments, TemplateComment{
				Author:        c.Author,
				Body:          c.Body,
				IsAIGenerated: c.IsAIGenerated,
			})
		}
	}

	html, err := RenderPostHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, post.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
