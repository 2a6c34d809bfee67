package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/techtrack/internal/config"
	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/repository"
	"github.com/iliyamo/techtrack/internal/utils"
)

// AuthMetrics counts failed logins.
type AuthMetrics interface {
	AuthFailed(reason string)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg         config.Config
	Technicians *repository.TechnicianRepo
	Tokens      *repository.TokenRepo
	Log         *zap.Logger
	Metrics     AuthMetrics // optional
	Now         func() time.Time
}

func NewAuthHandler(cfg config.Config, t *repository.TechnicianRepo, tokens *repository.TokenRepo, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Technicians: t, Tokens: tokens, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type meResp struct {
	Technician *model.Technician `json:"technician"`
	Roles      []string          `json:"roles"`
}
type authResp struct {
	meResp
	Session tokenPart `json:"session"`
}

func (h *AuthHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// Register creates an active technician and logs them in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = utils.NormalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return errJSON(c, http.StatusBadRequest, "name/email/password required")
	}
	if !utils.ValidEmail(req.Email) {
		return errJSON(c, http.StatusBadRequest, "invalid email")
	}
	if err := utils.CheckPassword(req.Password); err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t := &model.Technician{Name: req.Name, Email: req.Email, IsActive: true}
	if err := h.Technicians.Create(ctx, t, req.Password, h.Cfg.BcryptCost); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return errJSON(c, http.StatusConflict, "email already exists")
		}
		return fail(c, h.Log, err, "create technician failed")
	}
	return h.issue(c, http.StatusCreated, t)
}

// Login verifies the password and issues a new session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return errJSON(c, http.StatusBadRequest, "email/password required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Technicians.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.failed("unknown_email")
			return errJSON(c, http.StatusUnauthorized, "invalid credentials")
		}
		return fail(c, h.Log, err, "query failed")
	}
	if !utils.VerifyPassword(t.PasswordHash, req.Password) {
		h.failed("bad_password")
		return errJSON(c, http.StatusUnauthorized, "invalid credentials")
	}
	if !t.IsActive {
		h.failed("inactive")
		return errJSON(c, http.StatusForbidden, "technician is inactive")
	}
	return h.issue(c, http.StatusOK, t)
}

func (h *AuthHandler) issue(c echo.Context, status int, t *model.Technician) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	now := h.now()
	tok, err := utils.NewSessionToken(now, h.Cfg.TokenTTL)
	if err != nil {
		return fail(c, h.Log, err, "issue token failed")
	}
	if err := h.Tokens.Save(ctx, utils.HashToken(tok.Raw), t.ID, tok.Exp, now); err != nil {
		return fail(c, h.Log, err, "save token failed")
	}
	return c.JSON(status, authResp{
		meResp:  meResp{Technician: t, Roles: t.Roles()},
		Session: tokenPart{Token: tok.Raw, Expires: tok.Exp},
	})
}

func (h *AuthHandler) failed(reason string) {
	if h.Metrics != nil {
		h.Metrics.AuthFailed(reason)
	}
}

// Logout deletes every token of the current technician.
func (h *AuthHandler) Logout(c echo.Context) error {
	t, err := current(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Tokens.DeleteAllForUser(ctx, t.ID)
	if err != nil {
		return fail(c, h.Log, err, "logout failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}

// Me returns the current technician and their roles.
func (h *AuthHandler) Me(c echo.Context) error {
	t, err := current(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResp{Technician: t, Roles: t.Roles()})
}
