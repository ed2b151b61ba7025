package session

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seatwatch/internal/credentials"
	"seatwatch/internal/portal"
	"seatwatch/internal/shared/middleware"
	"seatwatch/internal/shared/utils/response"
)

// LoginBody is the login payload. User and password may be omitted once
// they are stored; the captcha solution never may.
type LoginBody struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Captcha  string `json:"captcha" binding:"required"`
}

type Controller struct {
	service Service
	store   *credentials.Store
}

func NewController(service Service, store *credentials.Store) *Controller {
	return &Controller{service: service, store: store}
}

// Captcha handles GET /api/v1/session/captcha
func (c *Controller) Captcha(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	image, session, err := c.service.Captcha(ctx.Request.Context())
	if err != nil {
		response.RespondError(ctx, portal.StatusFor(err), "Failed to fetch captcha", err)
		return
	}
	if image == nil {
		response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "The portal offered no captcha", nil, nil)
		return
	}

	// The solution is only valid together with the cookies the image was served to.
	session.UserID = userID
	if err := c.store.SaveCaptchaSession(ctx.Request.Context(), session); err != nil {
		response.RespondError(ctx, http.StatusInternalServerError, "Failed to keep captcha session", err)
		return
	}

	ctx.Header("Cache-Control", "no-store")
	ctx.Data(http.StatusOK, http.DetectContentType(image), image)
}

// Login handles POST /api/v1/session/login
func (c *Controller) Login(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var body LoginBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		response.RespondError(ctx, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	captcha, err := c.store.TakeCaptchaSession(ctx.Request.Context(), userID)
	if err != nil {
		response.RespondError(ctx, http.StatusInternalServerError, "Failed to load captcha session", err)
		return
	}
	if captcha == nil {
		response.RespondJSON(ctx, "error", http.StatusConflict, "No pending captcha, request a new one", nil, nil)
		return
	}

	session, err := c.service.Login(ctx.Request.Context(), &LoginRequest{
		UserID:        userID,
		User:          body.User,
		Password:      body.Password,
		Captcha:       body.Captcha,
		Cookies:       captcha.Cookies,
		LoginRequired: true,
	})
	if err != nil {
		response.RespondError(ctx, portal.StatusFor(err), "Login failed", err)
		return
	}
	if session == nil {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "The portal declined the login", nil, nil)
		return
	}

	response.RespondSuccess(ctx, http.StatusOK, "Logged in", gin.H{"user_id": userID})
}

// Logout handles DELETE /api/v1/session
func (c *Controller) Logout(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	if err := c.service.Logout(ctx.Request.Context(), userID); err != nil {
		response.RespondError(ctx, http.StatusInternalServerError, "Failed to delete credentials", err)
		return
	}
	response.RespondSuccess(ctx, http.StatusOK, "Stored session and credentials deleted", nil)
}
