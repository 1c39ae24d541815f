package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminLogin checks the admin credentials and sets the admin session cookie.
// The token is also returned for clients that send it as a bearer token.
func (h *Handler) AdminLogin(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.Admin.Login(c, req.Email, req.Password)
	if err != nil {
		respondError(c, err, "")
		return
	}
	h.setSessionCookie(c, AdminCookie, s)
	respond(c, http.StatusOK, gin.H{
		"message":   "Logged in successfully",
		"token":     s.Token,
		"expiresAt": s.ExpiresAt,
	})
}

func (h *Handler) AdminLogout(c *gin.Context) {
	h.clearSessionCookie(c, AdminCookie)
	respond(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) SendOTP(c *gin.Context) {
	if err := h.Admin.SendOTP(c); err != nil {
		respondError(c, err, "Failed to send OTP")
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "OTP sent successfully"})
}

type verifyOTPRequest struct {
	OTP         string `json:"otp"`
	NewEmail    string `json:"newEmail"`
	NewPassword string `json:"newPassword"`
}

// VerifyOTP rotates the admin credentials. The current session stays valid
// until it expires.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Admin.VerifyOTP(c, req.OTP, req.NewEmail, req.NewPassword); err != nil {
		respondError(c, err, "Failed to update credentials")
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Admin credentials updated successfully"})
}

type googleLoginRequest struct {
	AccessToken string `json:"accessToken"`
	// Token is an older name for AccessToken.
	Token string `json:"token"`
}

func (h *Handler) GoogleLogin(c *gin.Context) {
	var req googleLoginRequest
	if !bindJSON(c, &req) {
		return
	}
	token := req.AccessToken
	if token == "" {
		token = req.Token
	}
	login, err := h.Social.GoogleLogin(c, token)
	if err != nil {
		respondError(c, err, "Google Authentication Error")
		return
	}
	h.setSessionCookie(c, UserCookie, login.Session)
	respond(c, http.StatusOK, gin.H{
		"message": "Google Login successful!",
		"user": gin.H{
			"id":      login.User.ID,
			"name":    login.User.Name,
			"email":   login.User.Email,
			"role":    login.User.Role,
			"picture": login.Picture,
		},
	})
}
