package auth

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/grvbrk/toptube_server/internal/middlewares"
	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type AdminOAuth interface {
	Login(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Callback(w http.ResponseWriter, r *http.Request)
	AuthAdmin(w http.ResponseWriter, r *http.Request)
}

type AdminOAuthConfig struct {
	ClientID     string
	ClientSecret string
	BackendURL   string
	FrontendURL  string
	AdminEmails  []string
}

type AdminGoogleOauth struct {
	Logger      zerolog.Logger
	Config      *oauth2.Config
	Store       sessions.Store
	AdminEmails []string
	FrontendURL string
	UserInfoURL string
}

func NewAdminGoogleOauth(logger zerolog.Logger, adminStore sessions.Store, cfg AdminOAuthConfig) *AdminGoogleOauth {
	return &AdminGoogleOauth{
		Logger: logger.With().Str("component", "admin_auth").Logger(),
		Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/auth/admin/google/callback", cfg.BackendURL),
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.profile", "https://www.googleapis.com/auth/userinfo.email"},
			Endpoint:     google.Endpoint,
		},
		Store:       adminStore,
		AdminEmails: cfg.AdminEmails,
		FrontendURL: cfg.FrontendURL,
		UserInfoURL: googleUserInfoURL,
	}
}

func (g *AdminGoogleOauth) Login(w http.ResponseWriter, r *http.Request) {
	session, _ := g.Store.Get(r, middlewares.AdminSessionName)

	state := hex.EncodeToString(securecookie.GenerateRandomKey(16))
	session.Values["oauth_state"] = state
	if err := session.Save(r, w); err != nil {
		g.Logger.Error().Err(err).Msg("failed to save oauth state")
		utils.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	url := g.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	GoogleID      string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Image         string `json:"picture"`
}

func (g *AdminGoogleOauth) Callback(w http.ResponseWriter, r *http.Request) {
	session, _ := g.Store.Get(r, middlewares.AdminSessionName)

	want, _ := session.Values["oauth_state"].(string)
	if want == "" || r.URL.Query().Get("state") != want {
		g.Logger.Warn().Msg("oauth state mismatch")
		utils.WriteError(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	delete(session.Values, "oauth_state")

	token, err := g.Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		g.Logger.Error().Err(err).Msg("error exchanging admin token")
		utils.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	client := g.Config.Client(r.Context(), token)
	resp, err := client.Get(g.UserInfoURL)
	if err != nil {
		g.Logger.Error().Err(err).Msg("error getting admin info")
		utils.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	defer resp.Body.Close()

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		g.Logger.Error().Err(err).Msg("error decoding admin info")
		utils.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if !info.VerifiedEmail || !slices.Contains(g.AdminEmails, strings.ToLower(info.Email)) {
		g.Logger.Warn().Msg("login attempt from an email outside the admin allow-list")
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	session.Values["admin_email"] = info.Email
	session.Values["admin_id"] = info.GoogleID
	session.Values["admin_name"] = info.Name
	session.Values["admin_image"] = info.Image

	if err := session.Save(r, w); err != nil {
		g.Logger.Error().Err(err).Msg("error saving admin session")
		utils.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	g.Logger.Info().Msg("admin signed in")
	http.Redirect(w, r, g.FrontendURL+"/dashboard", http.StatusSeeOther)
}

func (g *AdminGoogleOauth) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := g.Store.Get(r, middlewares.AdminSessionName)

	for key := range session.Values {
		delete(session.Values, key)
	}
	session.Options.MaxAge = -1

	if err := session.Save(r, w); err != nil {
		g.Logger.Error().Err(err).Msg("error clearing admin session")
	}

	http.Redirect(w, r, g.FrontendURL, http.StatusSeeOther)
}

// AuthAdmin reports the signed-in admin, or 401.
func (g *AdminGoogleOauth) AuthAdmin(w http.ResponseWriter, r *http.Request) {
	session, err := g.Store.Get(r, middlewares.AdminSessionName)
	if err != nil {
		g.Logger.Warn().Err(err).Msg("failed to decode admin session")
		utils.WriteError(w, http.StatusUnauthorized, "Not Authenticated")
		return
	}

	email, _ := session.Values["admin_email"].(string)
	id, _ := session.Values["admin_id"].(string)
	if email == "" || id == "" || !slices.Contains(g.AdminEmails, strings.ToLower(email)) {
		utils.WriteError(w, http.StatusUnauthorized, "Not Authenticated")
		return
	}

	name, _ := session.Values["admin_name"].(string)
	image, _ := session.Values["admin_image"].(string)

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"data": map[string]any{
		"id":    id,
		"email": email,
		"name":  name,
		"image": image,
		"role":  "ADMIN",
	}})
}
