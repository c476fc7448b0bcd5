package authpw

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"soulfra/api/internal/store"
)

// fakeUserStore implements UserStore in memory.
type fakeUserStore struct {
	usersByID    map[string]store.User
	resetsByTok  map[string]string
	usedResets   map[string]bool
	verifyCalled string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		usersByID:   make(map[string]store.User),
		resetsByTok: make(map[string]string),
		usedResets:  make(map[string]bool),
	}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, u := range f.usersByID {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) GetUserByUsername(_ context.Context, username string) (store.User, error) {
	for _, u := range f.usersByID {
		if u.Username == username {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	u, ok := f.usersByID[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.usersByID[user.ID] = user
	return nil
}

func (f *fakeUserStore) UpdateUserVerificationToken(_ context.Context, userID, token string, _ time.Time) error {
	u := f.usersByID[userID]
	u.VerificationToken = token
	f.usersByID[userID] = u
	return nil
}

func (f *fakeUserStore) VerifyUserEmail(_ context.Context, token string) error {
	f.verifyCalled = token
	for id, u := range f.usersByID {
		if u.VerificationToken == token && token != "" {
			u.IsEmailVerified = true
			u.VerificationToken = ""
			f.usersByID[id] = u
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeUserStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	u := f.usersByID[userID]
	u.PasswordHash = passwordHash
	f.usersByID[userID] = u
	return nil
}

func (f *fakeUserStore) CreatePasswordReset(_ context.Context, userID, token string, _ time.Time) error {
	f.resetsByTok[token] = userID
	return nil
}

func (f *fakeUserStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	if f.usedResets[token] {
		return "", sql.ErrNoRows
	}
	userID, ok := f.resetsByTok[token]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeUserStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	f.usedResets[token] = true
	return nil
}

func TestSignUp(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	resp, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:    "avery@example.com",
		Password: "password123",
		Username: "avery",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if !resp.RequiresEmailVerify {
		t.Error("expected RequiresEmailVerify")
	}
	if resp.VerificationToken == "" {
		t.Error("expected a verification token")
	}

	user, err := fs.GetUserByEmail(context.Background(), "avery@example.com")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if user.Role != "member" {
		t.Errorf("expected default role member, got %s", user.Role)
	}
	if user.PasswordHash == "password123" {
		t.Error("password must be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestSignUp_Validation(t *testing.T) {
	svc := NewService(newFakeUserStore())

	tests := []struct {
		name string
		req  SignUpRequest
	}{
		{"missing email", SignUpRequest{Password: "password123", Username: "avery"}},
		{"missing password", SignUpRequest{Email: "a@example.com", Username: "avery"}},
		{"short password", SignUpRequest{Email: "a@example.com", Password: "short", Username: "avery"}},
		{"bad username", SignUpRequest{Email: "a@example.com", Password: "password123", Username: "A!"}},
		{"uppercase username", SignUpRequest{Email: "a@example.com", Password: "password123", Username: "Avery"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SignUp(context.Background(), tt.req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	req := SignUpRequest{Email: "avery@example.com", Password: "password123", Username: "avery"}
	if _, err := svc.SignUp(context.Background(), req); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}

	req.Username = "avery2"
	if _, err := svc.SignUp(context.Background(), req); err == nil {
		t.Error("expected duplicate email error")
	}
}

func TestSignUp_DuplicateUsername(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	if _, err := svc.SignUp(context.Background(), SignUpRequest{Email: "a@example.com", Password: "password123", Username: "avery"}); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}
	if _, err := svc.SignUp(context.Background(), SignUpRequest{Email: "b@example.com", Password: "password123", Username: "avery"}); err == nil {
		t.Error("expected duplicate username error")
	}
}

func TestSignIn(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	resp, err := svc.SignUp(context.Background(), SignUpRequest{Email: "avery@example.com", Password: "password123", Username: "avery"})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	// Unverified account is gated.
	signIn, err := svc.SignIn(context.Background(), SignInRequest{Email: "avery@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if !signIn.RequiresVerify {
		t.Error("expected RequiresVerify before verification")
	}

	if err := svc.VerifyEmail(context.Background(), resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	signIn, err = svc.SignIn(context.Background(), SignInRequest{Email: "avery@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignIn after verify failed: %v", err)
	}
	if signIn.RequiresVerify {
		t.Error("did not expect RequiresVerify after verification")
	}

	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "avery@example.com", Password: "wrong"}); err == nil {
		t.Error("expected error for wrong password")
	}
}

func TestSignIn_PersonaAccountRejected(t *testing.T) {
	fs := newFakeUserStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	fs.usersByID["usr_ai"] = store.User{
		ID:              "usr_ai",
		Username:        "cal-riven",
		Email:           "cal@soulfra.ai",
		PasswordHash:    string(hash),
		IsAIPersona:     true,
		IsEmailVerified: true,
	}
	svc := NewService(fs)

	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "cal@soulfra.ai", Password: "password123"}); err == nil {
		t.Error("persona accounts must not sign in interactively")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	resp, err := svc.SignUp(context.Background(), SignUpRequest{Email: "avery@example.com", Password: "password123", Username: "avery"})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := svc.VerifyEmail(context.Background(), resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	token, err := svc.RequestPasswordReset(context.Background(), "avery@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token")
	}

	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: token, NewPassword: "newpassword456"}); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "avery@example.com", Password: "newpassword456"}); err != nil {
		t.Errorf("SignIn with new password failed: %v", err)
	}
	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "avery@example.com", Password: "password123"}); err == nil {
		t.Error("old password should no longer work")
	}

	// Reset token is single-use.
	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: token, NewPassword: "another789"}); err == nil {
		t.Error("expected error for reused reset token")
	}
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())

	// Unknown emails are not revealed: no token, no error.
	token, err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if token != "" {
		t.Error("expected empty token for unknown email")
	}
}
