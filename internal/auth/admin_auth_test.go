package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newGoogleStub(t *testing.T, email string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "g-1", "email": email, "verified_email": true, "name": "Ops", "picture": "https://img",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOauth(srv *httptest.Server) *AdminGoogleOauth {
	store := sessions.NewCookieStore(securecookie.GenerateRandomKey(32))
	g := NewAdminGoogleOauth(zerolog.Nop(), store, AdminOAuthConfig{
		ClientID:    "client",
		BackendURL:  "http://api.test",
		FrontendURL: "http://admin.test",
		AdminEmails: []string{"ops@example.com"},
	})
	g.Config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	g.UserInfoURL = srv.URL + "/userinfo"
	return g
}

// login runs Login and returns the state it issued plus the session cookie.
func login(t *testing.T, g *AdminGoogleOauth) (string, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	g.Login(rec, httptest.NewRequest(http.MethodGet, "/api/auth/admin/google/login", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/api/auth/admin/google/callback", loc.Query().Get("redirect_uri"))
	return loc.Query().Get("state"), rec.Result().Cookies()[0]
}

func TestCallback_AllowListedAdmin(t *testing.T) {
	g := newTestOauth(newGoogleStub(t, "Ops@example.com"))
	state, cookie := login(t, g)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/admin/google/callback?code=abc&state="+state, nil)
	r.AddCookie(cookie)
	rec := httptest.NewRecorder()
	g.Callback(rec, r)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "http://admin.test/dashboard", rec.Header().Get("Location"))

	r = httptest.NewRequest(http.MethodGet, "/api/auth/admin", nil)
	r.AddCookie(rec.Result().Cookies()[0])
	rec = httptest.NewRecorder()
	g.AuthAdmin(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email": "Ops@example.com"`)
}

func TestCallback_RejectsUnknownEmail(t *testing.T) {
	g := newTestOauth(newGoogleStub(t, "intruder@example.com"))
	state, cookie := login(t, g)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/admin/google/callback?code=abc&state="+state, nil)
	r.AddCookie(cookie)
	rec := httptest.NewRecorder()
	g.Callback(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallback_RejectsBadState(t *testing.T) {
	g := newTestOauth(newGoogleStub(t, "ops@example.com"))
	_, cookie := login(t, g)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/admin/google/callback?code=abc&state=forged", nil)
	r.AddCookie(cookie)
	rec := httptest.NewRecorder()
	g.Callback(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthAdmin_NoSession(t *testing.T) {
	g := newTestOauth(newGoogleStub(t, "ops@example.com"))
	rec := httptest.NewRecorder()
	g.AuthAdmin(rec, httptest.NewRequest(http.MethodGet, "/api/auth/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
