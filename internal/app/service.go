package app

import (
	"context"
	"log"
	"strings"
	"time"

	"soulfra/api/internal/auth"
	"soulfra/api/internal/authpw"
	"soulfra/api/internal/config"
	"soulfra/api/internal/export"
	"soulfra/api/internal/gitrepo"
	"soulfra/api/internal/llm"
	"soulfra/api/internal/rbac"
	"soulfra/api/internal/search"
	"soulfra/api/internal/store"
	"soulfra/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	Persona      bool
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	// users & token lifecycle
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	ListPersonaUsers(ctx context.Context) ([]store.User, error)
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	ActivityCounts(ctx context.Context, userID string) (store.ActivityCounts, error)

	// brands & tiers
	ListBrands(ctx context.Context) ([]store.Brand, error)
	GetBrandBySlug(ctx context.Context, slug string) (store.Brand, error)
	GetBrandByID(ctx context.Context, brandID string) (store.Brand, error)
	InsertBrand(ctx context.Context, item store.Brand) error
	UpdateBrand(ctx context.Context, slug, name, tagline, colorScheme, personality string, tier int) error
	UnlockBrand(ctx context.Context, userID, brandID string) error
	ListUnlockedBrandIDs(ctx context.Context, userID string) ([]string, error)

	// posts & comments & subscribers
	ListPosts(ctx context.Context, brandID, status string, limit int) ([]store.Post, error)
	GetPost(ctx context.Context, postID string) (store.Post, error)
	InsertPost(ctx context.Context, item store.Post) error
	UpdatePost(ctx context.Context, postID, title, bodyMarkdown, bodyHTML, status string) error
	DeletePost(ctx context.Context, postID string) error
	InsertComment(ctx context.Context, item store.Comment) error
	ListComments(ctx context.Context, postID string) ([]store.Comment, error)
	AddSubscriber(ctx context.Context, email string) (bool, error)
	RemoveSubscriber(ctx context.Context, email string) error

	// domains, wordmaps, ownership
	ListDomains(ctx context.Context, status string) ([]store.Domain, error)
	GetDomainByName(ctx context.Context, name string) (store.Domain, error)
	InsertDomain(ctx context.Context, item store.Domain) error
	ApplyWordmapContribution(ctx context.Context, domainID, userID string, counts map[string]int) error
	GetWordmap(ctx context.Context, domainID string) (map[string]int, error)
	ContributionTotals(ctx context.Context, domainID string) (map[string]int, error)
	ReplaceDomainOwnership(ctx context.Context, domainID string, owners []store.Ownership) error
	ListDomainOwnership(ctx context.Context, domainID string) ([]store.Ownership, error)

	// qr
	InsertQRCode(ctx context.Context, item store.QRCode) error
	GetQRCodeBySlug(ctx context.Context, slug string) (store.QRCode, error)
	ListQRCodes(ctx context.Context) ([]store.QRCode, error)
	AppendScan(ctx context.Context, scan store.QRScan) (store.QRScan, int, error)
	ListScans(ctx context.Context, qrID string) ([]store.QRScan, error)

	// professionals & loyalty
	InsertProfessional(ctx context.Context, item store.Professional) error
	GetProfessional(ctx context.Context, professionalID string) (store.Professional, error)
	ListProfessionals(ctx context.Context, trade, city string) ([]store.Professional, error)
	SetProfessionalVerified(ctx context.Context, professionalID string, verified bool) error
	InsertCertification(ctx context.Context, item store.SkillCertification) error
	ListCertifications(ctx context.Context, professionalID string) ([]store.SkillCertification, error)
	AwardLoyalty(ctx context.Context, userID string, delta int, reason, reference string) (int, error)
	GetLoyaltyAccount(ctx context.Context, userID string) (store.LoyaltyAccount, error)
	ListLoyaltyLedger(ctx context.Context, userID string, limit int) ([]store.LoyaltyEntry, error)

	Ping(ctx context.Context) error
}

// sessionStore holds refresh tokens. Redis when configured, the SQLite
// store otherwise; both satisfy this interface.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type gitService interface {
	EnsurePostRepo(postID string, initial gitrepo.Content, author string) error
	CommitRevision(postID string, content gitrepo.Content, author, message string) (gitrepo.RevisionInfo, error)
	GetHeadContent(postID string) (gitrepo.Content, gitrepo.RevisionInfo, error)
	GetContentByHash(postID, hash string) (gitrepo.Content, error)
	History(postID string, limit int) ([]gitrepo.RevisionInfo, error)
}

type llmClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// objectStore persists generated PNGs. Nil when MinIO is not configured;
// images are then rendered on the fly.
type objectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

type emailService interface {
	IsConfigured() bool
	SendVerificationEmail(to, userName, verificationURL string) error
	SendPasswordResetEmail(to, userName, resetURL string) error
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	authSvc  *authpw.Service
	email    emailService
	search   *search.Service
	git      gitService
	llm      llmClient
	objects  objectStore
	exporter exporter

	// extraChecks feed the readiness endpoint (redis, meilisearch).
	extraChecks map[string]func(context.Context) error
}

type Deps struct {
	Store    *store.SQLiteStore
	Sessions sessionStore
	Email    emailService
	Search   *search.Service
	Git      *gitrepo.Service
	LLM      llmClient
	Objects  objectStore
	Checks   map[string]func(context.Context) error
}

func New(cfg config.Config, deps Deps) *Service {
	svc := &Service{
		cfg:      cfg,
		store:    deps.Store,
		sessions: deps.Sessions,
		authSvc:  authpw.NewService(deps.Store),
		email:    deps.Email,
		search:   deps.Search,
		llm:      deps.LLM,
		objects:  deps.Objects,

		extraChecks: deps.Checks,
	}
	if deps.Sessions == nil {
		svc.sessions = deps.Store
	}
	if deps.Git != nil {
		svc.git = deps.Git
	}
	svc.exporter = export.NewService(&exportStore{store: svc.store})
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authSvc
}

// DeliverVerificationEmail sends the signup verification mail in the
// background so a slow SMTP server never blocks the signup response.
func (s *Service) DeliverVerificationEmail(to, username, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := s.cfg.PublicBaseURL + "/verify-email?token=" + token
	go func() {
		if err := s.email.SendVerificationEmail(to, username, url); err != nil {
			log.Printf("email: send verification to %s: %v", to, err)
		}
	}()
}

func (s *Service) DeliverPasswordResetEmail(to, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := s.cfg.PublicBaseURL + "/reset-password?token=" + token
	go func() {
		if err := s.email.SendPasswordResetEmail(to, "", url); err != nil {
			log.Printf("email: send reset to %s: %v", to, err)
		}
	}()
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// CreateSession issues a fresh access/refresh token pair for a user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	cached, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Redis only stores the user ID; re-load for authoritative role.
	user, err := s.store.GetUserByID(ctx, cached.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:      user.ID,
		Username: user.Username,
		Role:     user.Role,
		Persona:  user.IsAIPersona,
		JTI:      jti,
		Exp:      expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Username,
		Role:         user.Role,
		Persona:      user.IsAIPersona,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Username,
		Role:      user.Role,
		Persona:   user.IsAIPersona,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// exportStore adapts the data store to the export package's interface.
type exportStore struct {
	store dataStore
}

func (e *exportStore) GetPostInfo(ctx context.Context, postID string) (export.PostInfo, error) {
	post, err := e.store.GetPost(ctx, postID)
	if err != nil {
		return export.PostInfo{}, err
	}
	return export.PostInfo{
		ID:        post.ID,
		Title:     post.Title,
		BodyHTML:  post.BodyHTML,
		BrandID:   post.BrandID,
		AuthorID:  post.AuthorID,
		Status:    post.Status,
		UpdatedAt: post.UpdatedAt,
	}, nil
}

func (e *exportStore) GetBrandName(ctx context.Context, brandID string) (string, error) {
	brand, err := e.store.GetBrandByID(ctx, brandID)
	if err != nil {
		return "", err
	}
	return brand.Name, nil
}

func (e *exportStore) GetUsername(ctx context.Context, userID string) (string, error) {
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

func (e *exportStore) ListPostComments(ctx context.Context, postID string) ([]export.CommentInfo, error) {
	comments, err := e.store.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	items := make([]export.CommentInfo, 0, len(comments))
	for _, c := range comments {
		items = append(items, export.CommentInfo{
			Author:        c.AuthorName,
			Body:          c.Body,
			IsAIGenerated: c.IsAIGenerated,
			CreatedAt:     c.CreatedAt,
		})
	}
	return items, nil
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
