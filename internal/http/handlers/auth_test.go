package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/jobs"
	"github.com/geocoder89/taskhub/internal/repo/postgres"
	"github.com/geocoder89/taskhub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

type fakeUserReader struct {
	getByEmail func(ctx context.Context, email string) (user.User, error)
	getByID    func(ctx context.Context, id string) (user.User, error)
}

func (f *fakeUserReader) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return f.getByEmail(ctx, email)
}

func (f *fakeUserReader) GetByID(ctx context.Context, id string) (user.User, error) {
	return f.getByID(ctx, id)
}

type fakeUserWriter struct {
	create func(ctx context.Context, email, passwordHash, name string, role user.Role, approved bool) (user.User, error)
}

func (f *fakeUserWriter) Create(ctx context.Context, email, passwordHash, name string, role user.Role, approved bool) (user.User, error) {
	return f.create(ctx, email, passwordHash, name, role, approved)
}

type fakeQueue struct {
	enqueued []jobs.Job
	err      error
}

func (f *fakeQueue) Enqueue(ctx context.Context, j jobs.Job) error {
	f.enqueued = append(f.enqueued, j)
	return f.err
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testConfig() config.Config {
	return config.Config{
		Env:        "test",
		AdminEmail: "admin@admin.com",
	}
}

func testJWT() *auth.Manager {
	return auth.NewManager("test-secret", time.Minute, time.Hour)
}

func newAuthRouter(h *handlers.AuthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.GET("/check-approval", h.CheckApproval)

	return r
}

// fakeTx satisfies pgx.Tx for the handler's commit/rollback calls; any
// other method panics through the embedded nil interface.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeRefreshStore struct {
	rows    map[string]postgres.RefreshTokenRow
	created []postgres.RefreshTokenRow
	revoked []string
	lastTx  *fakeTx
}

func (f *fakeRefreshStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	f.lastTx = &fakeTx{}
	return f.lastTx, nil
}

func (f *fakeRefreshStore) Create(ctx context.Context, tx pgx.Tx, row postgres.RefreshTokenRow) error {
	f.created = append(f.created, row)
	return nil
}

func (f *fakeRefreshStore) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (postgres.RefreshTokenRow, error) {
	row, ok := f.rows[id]

	if !ok {
		return postgres.RefreshTokenRow{}, postgres.ErrRefreshTokenNotFound
	}

	return row, nil
}

func (f *fakeRefreshStore) Revoke(ctx context.Context, tx pgx.Tx, id string, replacedBy *string) error {
	f.revoked = append(f.revoked, id)
	return nil
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range w.Result().Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}

	t.Fatalf("no refresh_token cookie in response")
	return nil
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestRegister_CreatesPendingUser(t *testing.T) {
	var gotApproved *bool
	var gotRole user.Role

	writer := &fakeUserWriter{
		create: func(ctx context.Context, email, passwordHash, name string, role user.Role, approved bool) (user.User, error) {
			gotApproved = &approved
			gotRole = role

			if passwordHash == "hunter22" {
				t.Fatalf("password stored without hashing")
			}

			return user.User{ID: "u-1", Email: email, Name: name, Role: role, Approved: approved}, nil
		},
	}
	queue := &fakeQueue{}

	h := handlers.NewAuthHandler(nil, writer, testJWT(), nil, queue, nil, testConfig())
	r := newAuthRouter(h)

	w := postJSON(r, "/register", `{"email":"new@example.com","password":"hunter22","name":"New"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	if gotApproved == nil || *gotApproved {
		t.Fatalf("self-registered users must start unapproved")
	}

	if gotRole != user.RoleUser {
		t.Fatalf("self-registered users must get the user role, got %s", gotRole)
	}

	var resp struct {
		Message string `json:"message"`
		User    struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response json: %v", err)
	}

	if resp.Message != "User created successfully. Please wait for admin approval." {
		t.Fatalf("unexpected message: %q", resp.Message)
	}

	if resp.User.ID != "u-1" || resp.User.Email != "new@example.com" {
		t.Fatalf("unexpected user echo: %+v", resp.User)
	}

	if len(queue.enqueued) != 1 || queue.enqueued[0].Type != jobs.JobSendRegistrationReceipt {
		t.Fatalf("expected one registration receipt job, got %+v", queue.enqueued)
	}
}

func TestRegister_RejectsAdminEmail(t *testing.T) {
	writer := &fakeUserWriter{
		create: func(ctx context.Context, email, passwordHash, name string, role user.Role, approved bool) (user.User, error) {
			t.Fatalf("create must not be reached for the admin email")
			return user.User{}, nil
		},
	}

	h := handlers.NewAuthHandler(nil, writer, testJWT(), nil, nil, nil, testConfig())
	r := newAuthRouter(h)

	w := postJSON(r, "/register", `{"email":"admin@admin.com","password":"hunter22"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var env errorEnvelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)

	if env.Error.Message != "Registration with the admin email is not allowed." {
		t.Fatalf("unexpected message: %q", env.Error.Message)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	writer := &fakeUserWriter{
		create: func(ctx context.Context, email, passwordHash, name string, role user.Role, approved bool) (user.User, error) {
			return user.User{}, postgres.ErrEmailAlreadyUsed
		},
	}

	h := handlers.NewAuthHandler(nil, writer, testJWT(), nil, nil, nil, testConfig())
	r := newAuthRouter(h)

	w := postJSON(r, "/register", `{"email":"taken@example.com","password":"hunter22"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var env errorEnvelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)

	if env.Error.Message != "User already exists" {
		t.Fatalf("unexpected message: %q", env.Error.Message)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	h := handlers.NewAuthHandler(nil, nil, testJWT(), nil, nil, nil, testConfig())
	r := newAuthRouter(h)

	w := postJSON(r, "/register", `{"email":"new@example.com","password":"12345"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var env errorEnvelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)

	if env.Error.Code != "invalid_request" {
		t.Fatalf("expected invalid_request, got %q", env.Error.Code)
	}
}

func TestLogin_UnknownEmailAndWrongPasswordReadTheSame(t *testing.T) {
	hash, err := security.HashPassword("correct-password")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	reader := &fakeUserReader{
		getByEmail: func(ctx context.Context, email string) (user.User, error) {
			if email == "known@example.com" {
				return user.User{ID: "u-1", Email: email, PasswordHash: hash, Role: user.RoleUser, Approved: true}, nil
			}
			return user.User{}, postgres.ErrUserNotFound
		},
	}

	h := handlers.NewAuthHandler(reader, nil, testJWT(), nil, nil, nil, testConfig())
	r := newAuthRouter(h)

	unknown := postJSON(r, "/auth/login", `{"email":"ghost@example.com","password":"whatever-1"}`)
	wrongPw := postJSON(r, "/auth/login", `{"email":"known@example.com","password":"not-the-password"}`)

	if unknown.Code != http.StatusUnauthorized || wrongPw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", unknown.Code, wrongPw.Code)
	}

	var a, b errorEnvelope
	_ = json.Unmarshal(unknown.Body.Bytes(), &a)
	_ = json.Unmarshal(wrongPw.Body.Bytes(), &b)

	// neither message may reveal whether the account exists
	if a.Error.Message != b.Error.Message {
		t.Fatalf("login failures must be indistinguishable: %q vs %q", a.Error.Message, b.Error.Message)
	}

	if a.Error.Message != "Email or password is incorrect." {
		t.Fatalf("unexpected message: %q", a.Error.Message)
	}
}

func TestCheckApproval_MissingEmail(t *testing.T) {
	h := handlers.NewAuthHandler(nil, nil, testJWT(), nil, nil, nil, testConfig())
	r := newAuthRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/check-approval", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCheckApproval_AdminFastPath(t *testing.T) {
	reader := &fakeUserReader{
		getByEmail: func(ctx context.Context, email string) (user.User, error) {
			t.Fatalf("the seeded admin must not hit the DB")
			return user.User{}, nil
		},
	}

	h := handlers.NewAuthHandler(reader, nil, testJWT(), nil, nil, nil, testConfig())
	r := newAuthRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/check-approval?email=admin@admin.com", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Approved bool   `json:"approved"`
		Role     string `json:"role"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)

	if !resp.Approved || resp.Role != "admin" {
		t.Fatalf("unexpected admin answer: %+v", resp)
	}
}

func TestCheckApproval_UnknownAndPending(t *testing.T) {
	reader := &fakeUserReader{
		getByEmail: func(ctx context.Context, email string) (user.User, error) {
			if email == "pending@example.com" {
				return user.User{ID: "u-2", Email: email, Role: user.RoleUser, Approved: false}, nil
			}
			return user.User{}, postgres.ErrUserNotFound
		},
	}

	h := handlers.NewAuthHandler(reader, nil, testJWT(), nil, nil, nil, testConfig())
	r := newAuthRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/check-approval?email=ghost@example.com", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown email, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/check-approval?email=pending@example.com", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for pending user, got %d", w.Code)
	}

	var resp struct {
		Approved bool `json:"approved"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Approved {
		t.Fatalf("pending user reported as approved")
	}
}

func TestLogin_IssuesTokensAndStoresHashedSession(t *testing.T) {
	hash, err := security.HashPassword("correct-password")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	reader := &fakeUserReader{
		getByEmail: func(ctx context.Context, email string) (user.User, error) {
			return user.User{ID: "u-1", Email: email, PasswordHash: hash, Role: user.RoleUser, Approved: true}, nil
		},
	}
	store := &fakeRefreshStore{}
	m := testJWT()

	h := handlers.NewAuthHandler(reader, nil, m, store, nil, nil, testConfig())
	r := newAuthRouter(h)

	w := postJSON(r, "/auth/login", `{"email":"known@example.com","password":"correct-password"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response json: %v", err)
	}

	claims, err := m.VerifyAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("issued access token does not verify: %v", err)
	}

	if claims.UserID != "u-1" || !claims.Approved {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	cookie := refreshCookie(t, w)

	if cookie.Path != "/auth" || !cookie.HttpOnly {
		t.Fatalf("refresh cookie misconfigured: path=%q httpOnly=%v", cookie.Path, cookie.HttpOnly)
	}

	// only the HMAC of the raw token may land in the store
	if len(store.created) != 1 {
		t.Fatalf("expected one session row, got %d", len(store.created))
	}

	row := store.created[0]

	if row.UserID != "u-1" {
		t.Fatalf("session stored for wrong user: %s", row.UserID)
	}

	if row.TokenHash == cookie.Value {
		t.Fatalf("raw refresh token stored instead of its hash")
	}

	if row.TokenHash != m.HashRefreshToken(cookie.Value) {
		t.Fatalf("stored hash does not match the issued token")
	}

	if store.lastTx == nil || !store.lastTx.committed {
		t.Fatalf("session insert was not committed")
	}
}

func TestRefresh_RotatesAndPicksUpCurrentApproval(t *testing.T) {
	m := testJWT()

	// token minted while the user was still pending
	pending := user.User{ID: "u-1", Email: "dana@example.com", Role: user.RoleUser, Approved: false}

	raw, jti, expiresAt, err := m.GenerateRefreshToken(pending)
	if err != nil {
		t.Fatalf("mint refresh token: %v", err)
	}

	store := &fakeRefreshStore{
		rows: map[string]postgres.RefreshTokenRow{
			jti: {
				ID:        jti,
				UserID:    "u-1",
				TokenHash: m.HashRefreshToken(raw),
				ExpiresAt: expiresAt,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	// the admin approved them since
	reader := &fakeUserReader{
		getByID: func(ctx context.Context, id string) (user.User, error) {
			approved := pending
			approved.Approved = true
			return approved, nil
		},
	}

	h := handlers.NewAuthHandler(reader, nil, m, store, nil, nil, testConfig())
	r := newAuthRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: raw})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response json: %v", err)
	}

	claims, err := m.VerifyAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("rotated access token does not verify: %v", err)
	}

	// rotation re-reads the user row, the new token carries the flip
	if !claims.Approved {
		t.Fatalf("rotated token kept the stale pending flag")
	}

	if len(store.revoked) != 1 || store.revoked[0] != jti {
		t.Fatalf("old session not revoked: %v", store.revoked)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected one replacement row, got %d", len(store.created))
	}

	newCookie := refreshCookie(t, w)

	if newCookie.Value == raw {
		t.Fatalf("refresh token was not rotated")
	}

	newClaims, err := m.VerifyRefreshToken(newCookie.Value)
	if err != nil {
		t.Fatalf("rotated refresh token does not verify: %v", err)
	}

	if newClaims.JTI != store.created[0].ID {
		t.Fatalf("replacement row id %s does not match rotated jti %s", store.created[0].ID, newClaims.JTI)
	}
}

func TestRefresh_RejectsRevokedSession(t *testing.T) {
	m := testJWT()

	u := user.User{ID: "u-1", Email: "dana@example.com", Role: user.RoleUser, Approved: true}

	raw, jti, expiresAt, err := m.GenerateRefreshToken(u)
	if err != nil {
		t.Fatalf("mint refresh token: %v", err)
	}

	revokedAt := time.Now().UTC()

	store := &fakeRefreshStore{
		rows: map[string]postgres.RefreshTokenRow{
			jti: {
				ID:        jti,
				UserID:    "u-1",
				TokenHash: m.HashRefreshToken(raw),
				ExpiresAt: expiresAt,
				RevokedAt: &revokedAt,
				CreatedAt: revokedAt,
			},
		},
	}

	h := handlers.NewAuthHandler(nil, nil, m, store, nil, nil, testConfig())
	r := newAuthRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: raw})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a revoked session, got %d", w.Code)
	}

	if len(store.created) != 0 {
		t.Fatalf("revoked session must not rotate, created %d rows", len(store.created))
	}
}
