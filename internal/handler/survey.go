package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/repository"
	"github.com/iliyamo/techtrack/internal/tracking"
)

// TaskMetrics counts stored task rows per channel.
type TaskMetrics interface {
	TasksRecorded(via string, n int)
}

// SurveyHandler serves the technician self-service form.
type SurveyHandler struct {
	References *repository.ReferenceRepo
	Racks      *repository.RackRepo
	Recorder   *tracking.Recorder
	Resolver   *tracking.Resolver
	Metrics    TaskMetrics // optional
	Log        *zap.Logger
	Now        func() time.Time
}

type surveyOptions struct {
	Technician *model.Technician `json:"technician"`
	Current    *model.TaskRecord `json:"current"`
	Locations  []model.Reference `json:"locations"`
	Activities []model.Reference `json:"activities"`
	CableTypes []model.Reference `json:"cable_types"`
	Racks      []*model.Rack     `json:"racks"`
	Datahalls  []string          `json:"datahalls"`
	Positions  []model.Position  `json:"positions"`
}

// Options returns the choices for the survey form together with the
// technician's current task for today.
func (h *SurveyHandler) Options(c echo.Context) error {
	t, err := current(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out := surveyOptions{
		Technician: t,
		Positions:  []model.Position{model.PositionLeft, model.PositionRight, model.PositionVaries},
	}
	for kind, dst := range map[model.ReferenceKind]*[]model.Reference{
		model.KindLocation:  &out.Locations,
		model.KindActivity:  &out.Activities,
		model.KindCableType: &out.CableTypes,
	} {
		if *dst, err = h.References.List(ctx, kind); err != nil {
			return fail(c, h.Log, err, "load options failed")
		}
	}
	if out.Racks, err = h.Racks.List(ctx, c.QueryParam("dh")); err != nil {
		return fail(c, h.Log, err, "load racks failed")
	}
	if out.Datahalls, err = h.Racks.Datahalls(ctx); err != nil {
		return fail(c, h.Log, err, "load datahalls failed")
	}
	latest, err := h.Resolver.LatestPerTechnician(ctx, []uint64{t.ID}, tracking.Today(h.now(), h.Resolver.Location))
	if err != nil {
		return fail(c, h.Log, err, "load current task failed")
	}
	out.Current = latest[t.ID]
	return c.JSON(http.StatusOK, out)
}

type surveyReq struct {
	LocationID   uint64   `json:"location_id"`
	ActivityIDs  []uint64 `json:"activity_ids"`
	CableTypeIDs []uint64 `json:"cable_type_ids"`
	RackID       *uint64  `json:"rack_id"`
	Position     string   `json:"position"`
	Quantity     *int64   `json:"quantity"`
}

// Submit records the form for the current technician. One row is
// stored per activity and cable type combination.
func (h *SurveyHandler) Submit(c echo.Context) error {
	t, err := current(c)
	if err != nil {
		return err
	}
	var req surveyReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	pos, err := model.ParsePosition(req.Position)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	rows, err := h.Recorder.Record(ctx, tracking.Submission{
		TechnicianID: t.ID,
		AuthoredBy:   t.ID,
		LocationID:   req.LocationID,
		ActivityIDs:  req.ActivityIDs,
		CableTypeIDs: req.CableTypeIDs,
		RackID:       req.RackID,
		Position:     pos,
		Quantity:     req.Quantity,
		Via:          "survey",
	})
	if err != nil {
		return fail(c, h.Log, err, "record tasks failed")
	}
	if h.Metrics != nil {
		h.Metrics.TasksRecorded("survey", len(rows))
	}
	return c.JSON(http.StatusCreated, echo.Map{"recorded": rows})
}

func (h *SurveyHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
