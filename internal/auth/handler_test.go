package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/civica-console/civica/internal/shared"
	_ "github.com/civica-console/civica/testing"
)

type commitWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.committed {
		w.committed = true
		w.commit()
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

func newLoginRouter(t *testing.T) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sm := shared.NewSessionManager(client, "civica_session", "test-secret", time.Hour, false)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse-battery"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newMemoryAuthRepo(&User{ID: 1, Username: "ana", PasswordHash: string(hash), Status: "ACTIVE"})
	handler := NewHandler(nil, NewService(repo), sm)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sm.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			// Commit before the handler writes so cookie headers land.
			next.ServeHTTP(&commitWriter{ResponseWriter: w, commit: func() {
				require.NoError(t, sm.Commit(context.Background(), w, req, sess))
			}}, req.WithContext(ctx))
		})
	})
	r.Route("/auth", handler.MountRoutes)
	return r, sm
}

func TestLoginEstablishesSession(t *testing.T) {
	router, _ := newLoginRouter(t)

	body := `{"username":"ana","password":"correct-horse-battery"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"username":"ana"`)

	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, "civica_session", cookies[0].Name)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	router, _ := newLoginRouter(t)

	body := `{"username":"ana","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	router, _ := newLoginRouter(t)

	// Password below the minimum length never reaches the service.
	body := `{"username":"ana","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{broken"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	router, _ := newLoginRouter(t)

	body := `{"username":"ana","password":"correct-horse-battery"}`
	login := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	loginRR := httptest.NewRecorder()
	router.ServeHTTP(loginRR, login)
	require.Equal(t, http.StatusOK, loginRR.Code)
	cookie := loginRR.Result().Cookies()[0]

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.AddCookie(cookie)
	logoutRR := httptest.NewRecorder()
	router.ServeHTTP(logoutRR, logout)
	require.Equal(t, http.StatusNoContent, logoutRR.Code)

	cleared := logoutRR.Result().Cookies()
	require.NotEmpty(t, cleared)
	require.Equal(t, -1, cleared[0].MaxAge)
}
