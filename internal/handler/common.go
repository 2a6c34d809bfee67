package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/techtrack/internal/middleware"
	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/repository"
	"github.com/iliyamo/techtrack/internal/tracking"
)

// dbTimeout bounds every store call made while serving a request.
const dbTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

func errJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

// statusOf maps domain and store errors to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, tracking.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, tracking.ErrNotTeamLead), errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err as JSON. Server errors are logged and replaced with
// msg so store details stay out of responses.
func fail(c echo.Context, log *zap.Logger, err error, msg string) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error(msg, zap.String("route", c.Path()), zap.Error(err))
		}
		return errJSON(c, status, msg)
	}
	return errJSON(c, status, err.Error())
}

// rowError renders a per-row failure of a batch request.
func rowError(log *zap.Logger, err error) string {
	if statusOf(err) == http.StatusInternalServerError {
		if log != nil {
			log.Error("batch row failed", zap.Error(err))
		}
		return "internal error"
	}
	return err.Error()
}

func current(c echo.Context) (*model.Technician, error) {
	t, ok := middleware.CurrentTechnician(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return t, nil
}

func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// queryIDs reads repeated or comma separated ids: ?technician=1,2&technician=3.
func queryIDs(c echo.Context, name string) ([]uint64, error) {
	var ids []uint64
	for _, v := range c.QueryParams()[name] {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func queryBool(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(c.QueryParam(name))
	return v
}

// rowResult is the outcome of one row of a batch save.
type rowResult struct {
	Index   int    `json:"index"`
	OK      bool   `json:"ok"`
	ID      uint64 `json:"id,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// batchStatus is 200 when every row succeeded and 207 otherwise.
func batchStatus(results []rowResult) int {
	for _, r := range results {
		if !r.OK && !r.Skipped {
			return http.StatusMultiStatus
		}
	}
	return http.StatusOK
}
