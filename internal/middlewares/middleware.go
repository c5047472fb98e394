package middlewares

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	AdminContextKey   contextKey = "admin"
	VisitorContextKey contextKey = "visitor"
)

const (
	AdminSessionName   = "toptube_admin_session"
	VisitorSessionName = "toptube_visitor"
	visitorIDKey       = "visitor_id"
)

type MiddlewareHandler struct {
	Logger              zerolog.Logger
	AdminSessionStore   sessions.Store
	VisitorSessionStore sessions.Store
	AllowedOrigins      []string
	AdminEmails         []string
}

func NewMiddlewareHandler(logger zerolog.Logger, adminStore, visitorStore sessions.Store, allowedOrigins, adminEmails []string) *MiddlewareHandler {
	return &MiddlewareHandler{
		Logger:              logger.With().Str("component", "http").Logger(),
		AdminSessionStore:   adminStore,
		VisitorSessionStore: visitorStore,
		AllowedOrigins:      allowedOrigins,
		AdminEmails:         adminEmails,
	}
}

func (mh *MiddlewareHandler) AuthenticateAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := mh.AdminSessionStore.Get(r, AdminSessionName)
		if err != nil {
			mh.Logger.Warn().Err(err).Msg("failed to decode admin session")
			utils.WriteError(w, http.StatusUnauthorized, "Admin access required")
			return
		}

		if session.IsNew {
			utils.WriteError(w, http.StatusUnauthorized, "Admin access required")
			return
		}

		email, _ := session.Values["admin_email"].(string)
		googleID, _ := session.Values["admin_id"].(string)
		if email == "" || googleID == "" {
			mh.Logger.Warn().Msg("invalid or missing admin data in session")
			utils.WriteError(w, http.StatusUnauthorized, "Admin access required")
			return
		}

		if !slices.Contains(mh.AdminEmails, strings.ToLower(email)) {
			mh.Logger.Warn().Msg("admin session for an email outside the allow-list")
			utils.WriteError(w, http.StatusForbidden, "Admin access required")
			return
		}

		name, _ := session.Values["admin_name"].(string)
		image, _ := session.Values["admin_image"].(string)
		admin := &models.Admin{GoogleID: googleID, Email: email, Name: name, ImageSrc: image}

		ctx := context.WithValue(r.Context(), AdminContextKey, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Visitor gives every client a stable anonymous id kept in a signed
// cookie. Preferences are stored against it.
func (mh *MiddlewareHandler) Visitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := mh.VisitorSessionStore.Get(r, VisitorSessionName)
		if err != nil {
			// A cookie signed with an old key decodes to a fresh session.
			mh.Logger.Debug().Err(err).Msg("resetting visitor session")
		}

		id, _ := session.Values[visitorIDKey].(string)
		if _, perr := uuid.Parse(id); perr != nil {
			id = uuid.NewString()
			session.Values[visitorIDKey] = id
			if err := session.Save(r, w); err != nil {
				mh.Logger.Error().Err(err).Msg("failed to save visitor session")
				utils.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
		}

		ctx := context.WithValue(r.Context(), VisitorContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (mh *MiddlewareHandler) Cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && !mh.isOriginAllowed(origin) {
			mh.Logger.Warn().Str("origin", origin).Msg("origin not allowed")
			utils.WriteError(w, http.StatusForbidden, "Origin not allowed")
			return
		}

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (mh *MiddlewareHandler) isOriginAllowed(origin string) bool {
	return slices.Contains(mh.AllowedOrigins, "*") || slices.Contains(mh.AllowedOrigins, origin)
}

// RequestLogger logs one structured line per request. Raw client IPs are
// hashed and channel or country ids are replaced by placeholders.
func (mh *MiddlewareHandler) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		evt := mh.Logger.Info()
		if status >= 500 {
			evt = mh.Logger.Error()
		} else if status >= 400 {
			evt = mh.Logger.Warn()
		}

		evt.
			Str("method", r.Method).
			Str("path", sanitizePath(r.URL.Path)).
			Int("status", status).
			Dur("duration_ms", time.Since(start)).
			Str("ip_hash", hashIPForLog(clientIP(r))).
			Int("bytes_sent", ww.BytesWritten()).
			Msg("request")
	})
}

func (mh *MiddlewareHandler) Security(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func hashIPForLog(ip string) string {
	h := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(h[:])[:12]
}

func sanitizePath(path string) string {
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "channels", "channel", "refresh-channel", "history", "overtake", "favorites":
			parts[i] = ":channelId"
		case "countries", "country":
			parts[i] = ":code"
		}
	}
	return strings.Join(parts, "/")
}

func GetAdminFromContext(r *http.Request) (*models.Admin, bool) {
	admin, ok := r.Context().Value(AdminContextKey).(*models.Admin)
	return admin, ok
}

func GetVisitorID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(VisitorContextKey).(string)
	return id, ok && id != ""
}
