package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/techtrack/internal/config"
	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/repository"
	"github.com/iliyamo/techtrack/internal/tracking"
	"github.com/iliyamo/techtrack/internal/utils"
)

// AdminHandler serves reference data administration and reports.
type AdminHandler struct {
	Cfg         config.Config
	References  *repository.ReferenceRepo
	Technicians *repository.TechnicianRepo
	Racks       *repository.RackRepo
	Results     *repository.RackResultRepo
	Reporter    *tracking.Reporter
	Resolver    *tracking.Resolver
	Progress    *tracking.Progress
	Log         *zap.Logger
	Now         func() time.Time
}

func (h *AdminHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *AdminHandler) day(c echo.Context) (time.Time, error) {
	return tracking.ParseDay(c.QueryParam("date"), h.now(), h.Cfg.Timezone)
}

func referenceKind(c echo.Context) (model.ReferenceKind, error) {
	kind := model.ReferenceKind(c.Param("kind"))
	if !kind.Valid() {
		return "", echo.NewHTTPError(http.StatusNotFound, "unknown reference kind")
	}
	return kind, nil
}

// seenNames rejects names repeated inside one batch, ignoring case and
// surrounding whitespace.
type seenNames map[string]bool

func (s seenNames) add(name string) bool {
	key := strings.ToLower(strings.TrimSpace(name))
	if s[key] {
		return false
	}
	s[key] = true
	return true
}

// ----- reference data -----

func (h *AdminHandler) ListReferences(c echo.Context) error {
	kind, err := referenceKind(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	refs, err := h.References.List(ctx, kind)
	if err != nil {
		return fail(c, h.Log, err, "list failed")
	}
	return c.JSON(http.StatusOK, refs)
}

type referenceRow struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// SaveReferences creates rows without an id and renames rows with one.
// Each row succeeds or fails on its own; blank names are skipped.
func (h *AdminHandler) SaveReferences(c echo.Context) error {
	kind, err := referenceKind(c)
	if err != nil {
		return err
	}
	var req struct {
		Rows []referenceRow `json:"rows"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	seen := seenNames{}
	results := make([]rowResult, len(req.Rows))
	for i, row := range req.Rows {
		res := rowResult{Index: i, ID: row.ID}
		name := strings.TrimSpace(row.Name)
		switch {
		case name == "":
			res.Skipped = true
		case !seen.add(name):
			res.Error = "duplicate name in request"
		case row.ID == 0:
			ref, err := h.References.Create(ctx, kind, name)
			if err != nil {
				res.Error = rowError(h.Log, err)
				break
			}
			res.ID, res.OK = ref.ID, true
		default:
			if err := h.References.Rename(ctx, kind, row.ID, name); err != nil {
				res.Error = rowError(h.Log, err)
				break
			}
			res.OK = true
		}
		results[i] = res
	}
	return c.JSON(batchStatus(results), echo.Map{"results": results})
}

// DeleteReference removes a row and every task, rack state and planned
// quantity that uses it.
func (h *AdminHandler) DeleteReference(c echo.Context) error {
	kind, err := referenceKind(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	removed, err := h.References.Delete(ctx, kind, id)
	if err != nil {
		return fail(c, h.Log, err, "delete failed")
	}
	h.Log.Info("reference deleted", zap.String("kind", string(kind)), zap.Uint64("id", id), zap.Int64("dependents", removed))
	return c.JSON(http.StatusOK, echo.Map{"deleted": id, "dependents_removed": removed})
}

// ----- technicians -----

func (h *AdminHandler) ListTechnicians(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	techs, err := h.Technicians.List(ctx)
	if err != nil {
		return fail(c, h.Log, err, "list failed")
	}
	return c.JSON(http.StatusOK, techs)
}

type technicianRow struct {
	ID         uint64  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	TeamLeadID *uint64 `json:"team_lead_id"`
	IsTeamLead bool    `json:"is_team_lead"`
	IsAdmin    bool    `json:"is_admin"`
	IsActive   *bool   `json:"is_active"` // defaults to true
}

// SaveTechnicians creates or updates technicians row by row.
func (h *AdminHandler) SaveTechnicians(c echo.Context) error {
	var req struct {
		Rows []technicianRow `json:"rows"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	seen := seenNames{}
	results := make([]rowResult, len(req.Rows))
	for i, row := range req.Rows {
		res := rowResult{Index: i, ID: row.ID}
		id, err := h.saveTechnician(ctx, row, seen)
		if err != nil {
			res.Error = rowError(h.Log, err)
		} else {
			res.ID, res.OK = id, true
		}
		results[i] = res
	}
	return c.JSON(batchStatus(results), echo.Map{"results": results})
}

func (h *AdminHandler) saveTechnician(ctx context.Context, row technicianRow, seen seenNames) (uint64, error) {
	t := &model.Technician{
		ID:         row.ID,
		Name:       strings.TrimSpace(row.Name),
		Email:      utils.NormalizeEmail(row.Email),
		TeamLeadID: row.TeamLeadID,
		IsTeamLead: row.IsTeamLead,
		IsAdmin:    row.IsAdmin,
		IsActive:   row.IsActive == nil || *row.IsActive,
	}
	if t.Name == "" || t.Email == "" {
		return 0, fmt.Errorf("%w: name and email are required", tracking.ErrInvalidInput)
	}
	if !utils.ValidEmail(t.Email) {
		return 0, fmt.Errorf("%w: invalid email %q", tracking.ErrInvalidInput, t.Email)
	}
	if !seen.add(t.Email) {
		return 0, fmt.Errorf("%w: duplicate email in request", tracking.ErrInvalidInput)
	}
	if t.TeamLeadID != nil {
		if t.ID != 0 && *t.TeamLeadID == t.ID {
			return 0, fmt.Errorf("%w: technician cannot lead themselves", tracking.ErrInvalidInput)
		}
		if _, err := h.Technicians.GetByID(ctx, *t.TeamLeadID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return 0, fmt.Errorf("%w: unknown team lead %d", tracking.ErrInvalidInput, *t.TeamLeadID)
			}
			return 0, err
		}
	}
	if t.ID == 0 {
		if err := h.Technicians.Create(ctx, t, row.Password, h.Cfg.BcryptCost); err != nil {
			return 0, err
		}
		return t.ID, nil
	}
	if err := h.Technicians.Update(ctx, t); err != nil {
		return 0, err
	}
	if row.Password != "" {
		if err := h.Technicians.SetPassword(ctx, t.ID, row.Password, h.Cfg.BcryptCost); err != nil {
			return 0, err
		}
	}
	return t.ID, nil
}

// DeleteTechnician removes a technician without history. Technicians
// with tasks are rejected with 409; deactivate them instead.
func (h *AdminHandler) DeleteTechnician(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if me, ok := currentID(c); ok && me == id {
		return errJSON(c, http.StatusBadRequest, "cannot delete yourself")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Technicians.Delete(ctx, id); err != nil {
		return fail(c, h.Log, err, "delete failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": id})
}

func currentID(c echo.Context) (uint64, bool) {
	t, err := current(c)
	if err != nil {
		return 0, false
	}
	return t.ID, true
}

// ----- racks -----

func (h *AdminHandler) ListRacks(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	racks, err := h.Racks.List(ctx, c.QueryParam("dh"))
	if err != nil {
		return fail(c, h.Log, err, "list failed")
	}
	halls, err := h.Racks.Datahalls(ctx)
	if err != nil {
		return fail(c, h.Log, err, "list failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"racks": racks, "datahalls": halls})
}

type rackRow struct {
	Name         string  `json:"name"`
	Datahall     string  `json:"datahall"`
	SU           *string `json:"su"`
	LU           *string `json:"lu"`
	Row          *string `json:"row"`
	ActivityID   *uint64 `json:"activity_id"`
	CableTypeID  *uint64 `json:"cable_type_id"`
	Position     string  `json:"position"`
	Quantity     *int64  `json:"quantity"`
	QuantityUnit *string `json:"quantity_unit"`
}

// SaveRacks upserts racks by name and datahall. A planned quantity is
// saved with the rack when activity, cable type, position and a
// positive quantity are all given.
func (h *AdminHandler) SaveRacks(c echo.Context) error {
	var req struct {
		Rows []rackRow `json:"rows"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	seen := seenNames{}
	results := make([]rowResult, len(req.Rows))
	for i, row := range req.Rows {
		res := rowResult{Index: i}
		rk, planned, err := rackFromRow(row)
		switch {
		case err != nil:
			res.Error = err.Error()
		case rk == nil:
			res.Skipped = true
		case !seen.add(rk.Name + "\x00" + rk.Datahall):
			res.Error = "duplicate rack in request"
		default:
			if err := h.Racks.Upsert(ctx, rk, planned); err != nil {
				res.Error = rowError(h.Log, err)
				break
			}
			res.ID, res.OK = rk.ID, true
		}
		results[i] = res
	}
	return c.JSON(batchStatus(results), echo.Map{"results": results})
}

// rackFromRow returns a nil rack for a blank row.
func rackFromRow(row rackRow) (*model.Rack, *model.RackResult, error) {
	rk := &model.Rack{
		Name:     strings.TrimSpace(row.Name),
		Datahall: strings.TrimSpace(row.Datahall),
		SU:       row.SU,
		LU:       row.LU,
		Row:      row.Row,
	}
	if rk.Name == "" && rk.Datahall == "" {
		return nil, nil, nil
	}
	if rk.Name == "" || rk.Datahall == "" {
		return nil, nil, errors.New("name and datahall are required")
	}
	pos, err := model.ParsePosition(row.Position)
	if err != nil {
		return nil, nil, err
	}
	if row.ActivityID == nil || row.CableTypeID == nil || pos == nil || row.Quantity == nil || *row.Quantity <= 0 {
		return rk, nil, nil
	}
	return rk, &model.RackResult{
		ResultKey: model.ResultKey{
			ActivityID:  *row.ActivityID,
			CableTypeID: *row.CableTypeID,
			Position:    *pos,
		},
		Quantity:     *row.Quantity,
		QuantityUnit: row.QuantityUnit,
	}, nil
}

// RackResults lists the planned quantities of one rack.
func (h *AdminHandler) RackResults(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rk, err := h.Racks.GetByID(ctx, id)
	if err != nil {
		return fail(c, h.Log, err, "load rack failed")
	}
	results, err := h.Results.ListForRack(ctx, id)
	if err != nil {
		return fail(c, h.Log, err, "list failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"rack": rk, "results": results})
}

// ----- reports -----

// TaskReport lists the day's task rows, newest first, optionally
// reduced to each technician's current task and filtered.
func (h *AdminHandler) TaskReport(c echo.Context) error {
	day, err := h.day(c)
	if err != nil {
		return fail(c, h.Log, err, "")
	}
	f := tracking.ReportFilter{LatestOnly: queryBool(c, "latest")}
	for name, dst := range map[string]*[]uint64{
		"technician": &f.TechnicianIDs,
		"team_lead":  &f.TeamLeadIDs,
		"location":   &f.LocationIDs,
		"activity":   &f.ActivityIDs,
		"rack":       &f.RackIDs,
	} {
		if *dst, err = queryIDs(c, name); err != nil {
			return err
		}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Reporter.TasksForDay(ctx, day, f)
	if err != nil {
		return fail(c, h.Log, err, "report failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"date": day.Format(tracking.DayLayout), "rows": rows})
}

// RackSnapshots returns the current task per rack combination.
func (h *AdminHandler) RackSnapshots(c echo.Context) error {
	day, err := h.day(c)
	if err != nil {
		return fail(c, h.Log, err, "")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	snaps, err := h.Resolver.LatestPerRack(ctx, c.QueryParam("dh"), day)
	if err != nil {
		return fail(c, h.Log, err, "snapshot failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"date": day.Format(tracking.DayLayout), "snapshots": snaps})
}

// RackStates returns the current closed-task state per rack combination.
func (h *AdminHandler) RackStates(c echo.Context) error {
	day, err := h.day(c)
	if err != nil {
		return fail(c, h.Log, err, "")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	states, err := h.Resolver.CurrentRackStates(ctx, c.QueryParam("dh"), day)
	if err != nil {
		return fail(c, h.Log, err, "rack states failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"date": day.Format(tracking.DayLayout), "states": states})
}

// ProgressReport computes percent complete of a reported quantity against
// the planned quantity of a rack combination.
func (h *AdminHandler) ProgressReport(c echo.Context) error {
	var key model.ResultKey
	for name, dst := range map[string]*uint64{
		"rack_id":       &key.RackID,
		"activity_id":   &key.ActivityID,
		"cable_type_id": &key.CableTypeID,
	} {
		v, err := strconv.ParseUint(c.QueryParam(name), 10, 64)
		if err != nil || v == 0 {
			return errJSON(c, http.StatusBadRequest, "invalid "+name)
		}
		*dst = v
	}
	pos, err := model.ParsePosition(c.QueryParam("position"))
	if err != nil || pos == nil {
		return errJSON(c, http.StatusBadRequest, "invalid position")
	}
	key.Position = *pos
	qty, err := strconv.ParseInt(c.QueryParam("quantity"), 10, 64)
	if err != nil || qty < 0 {
		return errJSON(c, http.StatusBadRequest, "invalid quantity")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	planned, _, err := h.Results.PlannedQuantity(ctx, key)
	if err != nil {
		return fail(c, h.Log, err, "load plan failed")
	}
	pct, err := h.Progress.PercentComplete(ctx, key, qty)
	if err != nil {
		return fail(c, h.Log, err, "progress failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"key": key, "reported": qty, "planned": planned, "percent": pct})
}
