package app

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"soulfra/api/internal/gitrepo"
	"soulfra/api/internal/llm"
	"soulfra/api/internal/store"
)

// postStore keeps a single post in memory so create/update/read flows work
// end to end against the fake.
type postStore struct {
	*fakeStore
	post store.Post
	has  bool
}

func newPostStore(user store.User) *postStore {
	ps := &postStore{fakeStore: storeWithUser(user)}
	ps.insertPostFn = func(_ context.Context, item store.Post) error {
		ps.post = item
		ps.has = true
		return nil
	}
	ps.getPostFn = func(_ context.Context, postID string) (store.Post, error) {
		if ps.has && postID == ps.post.ID {
			return ps.post, nil
		}
		return store.Post{}, sql.ErrNoRows
	}
	ps.updatePostFn = func(_ context.Context, postID, title, bodyMarkdown, bodyHTML, status string) error {
		ps.post.Title = title
		ps.post.BodyMarkdown = bodyMarkdown
		ps.post.BodyHTML = bodyHTML
		ps.post.Status = status
		return nil
	}
	return ps
}

func TestCreatePostRendersMarkdownAndInitsRepo(t *testing.T) {
	user := userFixture("usr_c", "carl", "creator")
	ps := newPostStore(user)

	var ensured []string
	git := &fakeGit{
		ensureFn: func(postID string, initial gitrepo.Content, author string) error {
			ensured = append(ensured, postID)
			if author != "carl" {
				t.Fatalf("repo authored by %q, want carl", author)
			}
			if initial.Title != "Hello" {
				t.Fatalf("unexpected initial title %q", initial.Title)
			}
			return nil
		},
	}
	svc := newTestService(ps.fakeStore, git)
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodPost, "/api/posts", `{"title":"Hello","bodyMarkdown":"# Welcome\n\nFirst post."}`)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodePayload(t, rr)
	body, _ := payload["bodyHtml"].(string)
	if !strings.Contains(body, "<h1") {
		t.Fatalf("expected rendered markdown, got %q", body)
	}
	if payload["status"] != "draft" {
		t.Fatalf("posts default to draft, got %v", payload["status"])
	}
	if payload["author"] != "carl" {
		t.Fatalf("expected author carl on the read-back, got %v", payload["author"])
	}
	if ps.post.AuthorName != "carl" {
		t.Fatalf("stored post must carry the author name, got %q", ps.post.AuthorName)
	}
	if len(ensured) != 1 {
		t.Fatalf("expected one repo init, got %d", len(ensured))
	}
}

func TestCommentAuthorSurvivesStorage(t *testing.T) {
	user := userFixture("usr_m", "mia", "member")
	ps := newPostStore(user)
	ps.post = store.Post{ID: "pst_1", Title: "Hello"}
	ps.has = true

	// The fake persists inserted comments and serves reads from what was
	// stored, so an author name set only after the insert would come back
	// empty here.
	var stored []store.Comment
	ps.insertCommentFn = func(_ context.Context, item store.Comment) error {
		stored = append(stored, item)
		return nil
	}
	ps.listCommentsFn = func(_ context.Context, postID string) ([]store.Comment, error) {
		return append([]store.Comment(nil), stored...), nil
	}

	svc := newTestService(ps.fakeStore, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodPost, "/api/posts/pst_1/comments", `{"body":"nice one"}`)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(stored) != 1 || stored[0].AuthorName != "mia" {
		t.Fatalf("insert must carry the author name: %+v", stored)
	}

	req = authedRequest(t, svc, user, http.MethodGet, "/api/posts/pst_1/comments", "")
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodePayload(t, rr)
	items := payload["comments"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(items))
	}
	if author := items[0].(map[string]any)["author"]; author != "mia" {
		t.Fatalf("listed comment lost its author, got %v", author)
	}
}

func TestUpdatePostCommitsRevisionOnBodyChange(t *testing.T) {
	user := userFixture("usr_c", "carl", "creator")
	ps := newPostStore(user)
	ps.post = store.Post{ID: "pst_1", AuthorID: user.ID, Title: "Hello", BodyMarkdown: "old", BodyHTML: "<p>old</p>", Status: "draft"}
	ps.has = true

	commits := 0
	git := &fakeGit{
		commitFn: func(postID string, content gitrepo.Content, author, message string) (gitrepo.RevisionInfo, error) {
			commits++
			if content.BodyMarkdown != "new body" {
				t.Fatalf("committed wrong body %q", content.BodyMarkdown)
			}
			return gitrepo.RevisionInfo{Hash: "abc123"}, nil
		},
	}
	svc := newTestService(ps.fakeStore, git)
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodPatch, "/api/posts/pst_1", `{"bodyMarkdown":"new body"}`)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if commits != 1 {
		t.Fatalf("expected 1 revision commit, got %d", commits)
	}

	// Status-only changes skip the repo entirely.
	req = authedRequest(t, svc, user, http.MethodPatch, "/api/posts/pst_1", `{"status":"published"}`)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if commits != 1 {
		t.Fatalf("status change must not commit, got %d commits", commits)
	}
}

func TestPostHistoryListsRevisions(t *testing.T) {
	user := userFixture("usr_m", "mia", "member")
	ps := newPostStore(user)
	ps.post = store.Post{ID: "pst_1", Title: "Hello"}
	ps.has = true

	git := &fakeGit{
		historyFn: func(postID string, limit int) ([]gitrepo.RevisionInfo, error) {
			return []gitrepo.RevisionInfo{
				{Hash: "bbb", Message: "Update content", Author: "carl"},
				{Hash: "aaa", Message: "Initial content", Author: "carl"},
			}, nil
		},
	}
	svc := newTestService(ps.fakeStore, git)
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodGet, "/api/posts/pst_1/history", "")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodePayload(t, rr)
	revisions := payload["revisions"].([]any)
	if len(revisions) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(revisions))
	}
	if revisions[0].(map[string]any)["hash"] != "bbb" {
		t.Fatalf("expected newest revision first: %v", revisions[0])
	}
}

func TestCommentOnMissingPostReturns404(t *testing.T) {
	user := userFixture("usr_m", "mia", "member")
	svc := newTestService(storeWithUser(user), &fakeGit{})
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodPost, "/api/posts/pst_missing/comments", `{"body":"hi"}`)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPersonaReplyStoresAIComment(t *testing.T) {
	user := userFixture("usr_m", "mia", "member")
	ps := newPostStore(user)
	ps.post = store.Post{ID: "pst_1", Title: "Hello", BodyMarkdown: "body"}
	ps.has = true

	persona := store.User{ID: "usr_cal", Username: "cal-riven", Role: "member", IsAIPersona: true, PersonaPrompt: "You are Cal."}
	ps.listPersonaUsersFn = func(_ context.Context) ([]store.User, error) {
		return []store.User{persona}, nil
	}
	var inserted store.Comment
	ps.insertCommentFn = func(_ context.Context, item store.Comment) error {
		inserted = item
		return nil
	}

	svc := newTestService(ps.fakeStore, &fakeGit{})
	svc.llm = &fakeLLM{
		completeFn: func(_ context.Context, req llm.Request) (*llm.Response, error) {
			if req.Messages[0].Role != "system" {
				t.Fatal("persona prompt must be the system message")
			}
			return &llm.Response{Content: "Great post, Mia."}, nil
		},
	}
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodPost, "/api/posts/pst_1/persona-reply", "")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	payload := decodePayload(t, rr)
	if payload["isAiGenerated"] != true {
		t.Fatalf("persona replies must be marked AI generated: %v", payload)
	}
	if payload["author"] != "cal-riven" {
		t.Fatalf("expected persona author, got %v", payload["author"])
	}
	if !inserted.IsAIGenerated || inserted.AuthorID != persona.ID || inserted.AuthorName != "cal-riven" {
		t.Fatalf("stored comment not attributed to the persona: %+v", inserted)
	}
}

func TestPersonaReplyWithoutModelReturns503(t *testing.T) {
	user := userFixture("usr_m", "mia", "member")
	ps := newPostStore(user)
	ps.post = store.Post{ID: "pst_1", Title: "Hello"}
	ps.has = true

	svc := newTestService(ps.fakeStore, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, user, http.MethodPost, "/api/posts/pst_1/persona-reply", "")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if payload := decodePayload(t, rr); payload["code"] != "LLM_UNAVAILABLE" {
		t.Fatalf("expected LLM_UNAVAILABLE, got %v", payload["code"])
	}
}

func TestSubscribeIsPublicAndReportsDuplicates(t *testing.T) {
	fs := &fakeStore{}
	fs.addSubscriberFn = func(_ context.Context, email string) (bool, error) {
		return false, nil // already on the list
	}
	svc := newTestService(fs, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	rr := postJSON(t, server, "/api/subscribe", `{"email":"Reader@Example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodePayload(t, rr)
	if payload["subscribed"] != true || payload["alreadySubscribed"] != true {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestSubscribeRejectsBadEmail(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeGit{})
	server := NewHTTPServer(svc, "*")

	rr := postJSON(t, server, "/api/subscribe", `{"email":"not-an-email"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}
