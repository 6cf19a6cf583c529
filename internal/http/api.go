package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"account-graph/internal/auth"
	"account-graph/internal/domain"
	"account-graph/internal/service"
)

const maxEchoBody = 1 << 20

// Handler wires HTTP routes to domain services.
type Handler struct {
	accounts service.AccountService
	follows  service.FollowService
	tokens   *auth.Tokens
	logger   *logrus.Logger
}

func NewHandler(accounts service.AccountService, follows service.FollowService, tokens *auth.Tokens, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	setupValidator()
	return &Handler{
		accounts: accounts,
		follows:  follows,
		tokens:   tokens,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine, corsOrigins []string) {
	router.Use(requestIDMiddleware(), accessLogMiddleware(h.logger), corsMiddleware(corsOrigins))

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		api.POST("/accounts", h.register)
		api.GET("/accounts", h.listAccounts)
		api.GET("/accounts/:id", h.getAccount)
		api.GET("/accounts/:id/following", h.listFollowing)
		api.GET("/accounts/:id/followers", h.listFollowers)

		authed := api.Group("", actorMiddleware(h.tokens))
		authed.PATCH("/accounts/:id", h.updateAccount)
		authed.DELETE("/accounts/:id", h.deleteAccount)
		authed.PUT("/following/:id", h.follow)
		authed.DELETE("/following/:id", h.unfollow)
	}
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation failed", validationDetails(err))
		return
	}

	email, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	respondOK(c, "account registered", gin.H{"email": email})
}

func (h *Handler) listAccounts(c *gin.Context) {
	accounts, err := h.accounts.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, "accounts listed", gin.H{"accounts": accountsToResponse(accounts)})
}

func (h *Handler) getAccount(c *gin.Context) {
	proj := domain.ParseFieldSpec(c.Query("field"))
	account, err := h.accounts.GetByID(c.Request.Context(), c.Param("id"), proj)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, "account found", gin.H{"account": accountToResponse(*account)})
}

func (h *Handler) updateAccount(c *gin.Context) {
	id, ok := h.authorizeSelf(c)
	if !ok {
		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation failed", validationDetails(err))
		return
	}

	applied, err := h.accounts.Update(c.Request.Context(), id, req.patch())
	if err != nil {
		h.fail(c, err)
		return
	}

	respondOK(c, "account updated", gin.H{"account": PatchResponse{
		Email:    applied.Email,
		Name:     applied.Name,
		Password: applied.Password,
	}})
}

// deleteAccount echoes a JSON request body back, or the removed id when
// the body is empty or not JSON.
func (h *Handler) deleteAccount(c *gin.Context) {
	id, ok := h.authorizeSelf(c)
	if !ok {
		return
	}

	var body []byte
	if c.Request.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEchoBody))
		if err == nil {
			body = bytes.TrimSpace(raw)
		}
	}

	removed, err := h.accounts.Delete(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	if len(body) > 0 && json.Valid(body) {
		respondOK(c, "account deleted", json.RawMessage(body))
		return
	}
	respondOK(c, "account deleted", gin.H{"id": removed})
}

func (h *Handler) listFollowing(c *gin.Context) {
	ctx := c.Request.Context()
	subject, err := h.accounts.GetByID(ctx, c.Param("id"), domain.ProjectDefault)
	if err != nil {
		h.fail(c, err)
		return
	}

	following, err := h.follows.ListFollowing(ctx, subject.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	respondOK(c, "following listed", followingToResponse(*subject, following))
}

func (h *Handler) listFollowers(c *gin.Context) {
	followers, err := h.follows.ListFollowers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, "followers listed", gin.H{"followers": accountsToResponse(followers)})
}

func (h *Handler) follow(c *gin.Context) {
	account, err := h.follows.Follow(c.Request.Context(), c.GetString(actorKey), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, "account followed", accountToResponse(*account))
}

func (h *Handler) unfollow(c *gin.Context) {
	removed, err := h.follows.Unfollow(c.Request.Context(), c.GetString(actorKey), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, "account unfollowed", gin.H{"id": removed})
}

// authorizeSelf returns the path id when it names the acting account.
func (h *Handler) authorizeSelf(c *gin.Context) (string, bool) {
	id, err := domain.ParseID(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return "", false
	}
	if id != c.GetString(actorKey) {
		respondError(c, http.StatusForbidden, "cannot modify another account", nil)
		return "", false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrAlreadyFollowing),
		errors.Is(err, service.ErrNotFollowing):
		respondError(c, http.StatusBadRequest, err.Error(), nil)
	default:
		h.logger.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"path":       c.FullPath(),
		}).WithError(err).Error("request failed")
		respondError(c, http.StatusInternalServerError, "internal server error", nil)
	}
}
