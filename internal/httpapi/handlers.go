package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"negotiation-platform/internal/auth"
	"negotiation-platform/internal/negotiation"
	"negotiation-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Negotiations *negotiation.Service
	Reports      *reporting.Service
	Auth         *auth.Manager
	Users        *auth.UserStore

	// UploadDir is where screenshot attachments are written.
	UploadDir string

	Log *slog.Logger
}

func (h Handlers) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

/* ===================== NEGOTIATIONS ===================== */

// Start accepts a multipart negotiation submission and kicks off the call.
// Responds before the call is placed; clients poll /status/:id.
func (h Handlers) Start(c *gin.Context) {
	if h.Negotiations == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "negotiation service not configured"})
		return
	}

	req := negotiation.SubmitRequest{
		UserMessage: c.PostForm("userMessage"),
		OrderNumber: c.PostForm("orderNumber"),
		Customer: negotiation.Customer{
			FullName:          c.PostForm("fullName"),
			PhoneNumber:       c.PostForm("phoneNumber"),
			Email:             c.PostForm("email"),
			AppointmentTime:   c.PostForm("appointmentTime"),
			AppointmentAction: c.PostForm("appointmentAction"),
		},
	}

	if file, err := c.FormFile("screenshot"); err == nil && file != nil {
		name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(file.Filename))
		dst := filepath.Join(h.UploadDir, name)
		if err := c.SaveUploadedFile(file, dst); err != nil {
			h.logger().Error("screenshot save failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to store screenshot"})
			return
		}
		req.AttachmentRef = name
	}

	n, err := h.Negotiations.Submit(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, negotiation.ErrValidation) || errors.Is(err, negotiation.ErrInvalidPhoneNumber) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		h.logger().Error("negotiation submit failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to start negotiation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"negotiationId": n.ID,
		"status":        n.Status,
		"phase":         n.Phase,
		"category":      n.Category,
	})
}

// Status returns the full negotiation snapshot including the event timeline.
func (h Handlers) Status(c *gin.Context) {
	if h.Negotiations == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "negotiation service not configured"})
		return
	}
	n, err := h.Negotiations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, negotiation.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Negotiation not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status lookup failed"})
		return
	}
	c.JSON(http.StatusOK, n)
}

type logWebhookRequest struct {
	CallID string `json:"callId"`
	Refund string `json:"refund"`
	Code   string `json:"code"`
}

// LogWebhook receives end-of-call results pushed by the provider. It always
// acknowledges; the provider retries on non-2xx and the result is advisory.
func (h Handlers) LogWebhook(c *gin.Context) {
	var req logWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	if h.Negotiations != nil && req.CallID != "" {
		matched := h.Negotiations.CompleteFromWebhook(c.Request.Context(), req.CallID, req.Refund, req.Code)
		if !matched {
			h.logger().Warn("webhook for unknown call", "call_id", req.CallID)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Stats serves aggregate negotiation metrics.
func (h Handlers) Stats(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	out, err := h.Reports.Stats(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

/* ===================== AUTH ===================== */

type signupRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

func (h Handlers) Signup(c *gin.Context) {
	if h.Auth == nil || h.Users == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	u, err := h.Users.Register(req.Email, req.FullName, req.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrEmailTaken) {
			status = http.StatusConflict
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}
	tok, err := h.Auth.Issue(time.Now(), u.ID, u.Email)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": tok, "user": u})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.Users == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	u, err := h.Users.Authenticate(req.Email, req.Password)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	tok, err := h.Auth.Issue(time.Now(), u.ID, u.Email)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok, "user": u})
}

// VerifyToken echoes the authenticated account. Mount behind
// auth.RequireAccessToken.
func (h Handlers) VerifyToken(c *gin.Context) {
	if h.Users == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	u, ok := h.Users.ByID(userID)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
