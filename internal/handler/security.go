package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xenking/furniture-store/internal/domain/auth"
)

// Session cookie names.
const (
	AdminCookie = "admin_token"
	UserCookie  = "auth_token"
)

const claimsKey = "claims"

// RequireAdmin authenticates the request with the admin_token cookie or an
// Authorization: Bearer header and rejects anything but an admin session.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(AdminCookie)
		}
		if token == "" {
			fail(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims, err := h.Sessions.Admin(token)
		if err != nil {
			respondError(c, err, "")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// setSessionCookie stores a session token in an httpOnly, SameSite=Strict
// cookie scoped to the whole site.
func (h *Handler) setSessionCookie(c *gin.Context, name string, s *auth.Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    s.Token,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookie(c *gin.Context, name string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
