package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/techtrack/internal/config"
	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/repository"
	"github.com/iliyamo/techtrack/internal/tracking"
	"github.com/iliyamo/techtrack/internal/utils"
)

// TeamHandler serves the team lead board.
type TeamHandler struct {
	Cfg         config.Config
	Board       *tracking.Board
	Technicians *repository.TechnicianRepo
	Metrics     TaskMetrics // optional
	Log         *zap.Logger
	Now         func() time.Time
}

func (h *TeamHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *TeamHandler) day(s string) (time.Time, error) {
	return tracking.ParseDay(s, h.now(), h.Cfg.Timezone)
}

// Roster lists the lead's crew (or everyone with all=true) with each
// technician's current task on date.
func (h *TeamHandler) Roster(c echo.Context) error {
	lead, err := current(c)
	if err != nil {
		return err
	}
	day, err := h.day(c.QueryParam("date"))
	if err != nil {
		return fail(c, h.Log, err, "")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	roster, err := h.Board.Roster(ctx, *lead, queryBool(c, "all"), day)
	if err != nil {
		return fail(c, h.Log, err, "load roster failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"date": day.Format(tracking.DayLayout), "roster": roster})
}

type assignRow struct {
	TechnicianID uint64  `json:"technician_id"`
	LocationID   uint64  `json:"location_id"`
	ActivityID   *uint64 `json:"activity_id"`
	CableTypeID  *uint64 `json:"cable_type_id"`
	RackID       *uint64 `json:"rack_id"`
	Position     string  `json:"position"`
}

type assignReq struct {
	Date string      `json:"date"`
	Rows []assignRow `json:"rows"`
}

// Assign records the grid rows that changed. Rows equal to the
// technician's current task are reported as skipped.
func (h *TeamHandler) Assign(c echo.Context) error {
	lead, err := current(c)
	if err != nil {
		return err
	}
	var req assignReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	day, err := h.day(req.Date)
	if err != nil {
		return fail(c, h.Log, err, "")
	}
	rows := make([]tracking.Assignment, 0, len(req.Rows))
	for _, r := range req.Rows {
		pos, err := model.ParsePosition(r.Position)
		if err != nil {
			return errJSON(c, http.StatusBadRequest, err.Error())
		}
		rows = append(rows, tracking.Assignment{
			TechnicianID: r.TechnicianID,
			LocationID:   r.LocationID,
			ActivityID:   r.ActivityID,
			CableTypeID:  r.CableTypeID,
			RackID:       r.RackID,
			Position:     pos,
		})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Board.Assign(ctx, *lead, rows, day)
	if err != nil {
		return fail(c, h.Log, err, "assign tasks failed")
	}
	if h.Metrics != nil {
		h.Metrics.TasksRecorded("team", len(res.Recorded))
	}
	return c.JSON(http.StatusOK, res)
}

type rackCloseReq struct {
	RackID      uint64           `json:"rack_id"`
	ActivityID  uint64           `json:"activity_id"`
	CableTypeID uint64           `json:"cable_type_id"`
	StatusID    uint64           `json:"status_id"`
	Position    string           `json:"position"`
	Quantity    int64            `json:"quantity"`
	Percent     *decimal.Decimal `json:"percent"`
}

// CloseRackTask appends a rack state from the "close task" form.
func (h *TeamHandler) CloseRackTask(c echo.Context) error {
	lead, err := current(c)
	if err != nil {
		return err
	}
	var req rackCloseReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	state, err := h.Board.CloseRackTask(ctx, *lead, tracking.RackClose{
		RackID:      req.RackID,
		ActivityID:  req.ActivityID,
		CableTypeID: req.CableTypeID,
		StatusID:    req.StatusID,
		Position:    model.Position(req.Position),
		Quantity:    req.Quantity,
		Percent:     req.Percent,
	})
	if err != nil {
		return fail(c, h.Log, err, "save rack state failed")
	}
	return c.JSON(http.StatusCreated, state)
}

type surveyLinkReq struct {
	TechnicianID uint64 `json:"technician_id"`
}

// SurveyLink mints a signed link that opens the survey for one active
// technician without a login.
func (h *TeamHandler) SurveyLink(c echo.Context) error {
	lead, err := current(c)
	if err != nil {
		return err
	}
	var req surveyLinkReq
	if err := c.Bind(&req); err != nil || req.TechnicianID == 0 {
		return errJSON(c, http.StatusBadRequest, "technician_id required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Technicians.GetByID(ctx, req.TechnicianID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, "technician not found")
		}
		return fail(c, h.Log, err, "load technician failed")
	}
	if !t.IsActive {
		return errJSON(c, http.StatusBadRequest, "technician is inactive")
	}
	link, err := utils.NewSurveyLink(h.Cfg.SurveySecret, t.ID, lead.ID, h.now(), h.Cfg.SurveyTTL)
	if err != nil {
		return fail(c, h.Log, err, "sign link failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"technician_id": t.ID,
		"token":         link.Token,
		"expires":       link.Exp,
	})
}
