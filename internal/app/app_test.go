package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/techtrack/internal/app"
	"github.com/iliyamo/techtrack/internal/config"
	"github.com/iliyamo/techtrack/internal/database/dbtest"
	"github.com/iliyamo/techtrack/internal/metrics"
	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/repository"
	"github.com/iliyamo/techtrack/internal/tracking"
)

// 2026-03-10 12:00 in Chicago (CDT).
var now = time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)

type env struct {
	t     *testing.T
	e     *echo.Echo
	techs *repository.TechnicianRepo
	admin string // session token of a seeded admin
}

func newEnv(t *testing.T) *env {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	cfg := config.Config{
		Timezone:     loc,
		TokenTTL:     24 * time.Hour,
		BcryptCost:   4,
		SurveySecret: "survey-secret",
		SurveyTTL:    time.Hour,
	}
	db := dbtest.Open(t)
	techs := repository.NewTechnicianRepo(db)
	admin := &model.Technician{Name: "Ada Admin", Email: "admin@example.com", IsAdmin: true, IsActive: true}
	require.NoError(t, techs.Create(context.Background(), admin, "adminpass", 4))

	v := &env{
		t:     t,
		e:     app.New(cfg, db, nil, app.Options{Metrics: metrics.New("test"), Now: func() time.Time { return now }}),
		techs: techs,
	}
	v.admin = v.login("admin@example.com", "adminpass")
	return v
}

func (v *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	v.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(v.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type session struct {
	Technician model.Technician `json:"technician"`
	Roles      []string         `json:"roles"`
	Session    struct {
		Token string `json:"token"`
	} `json:"session"`
}

func (v *env) login(email, password string) string {
	v.t.Helper()
	rec := v.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"email": email, "password": password})
	require.Equal(v.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[session](v.t, rec).Session.Token
}

type batch struct {
	Results []struct {
		Index   int    `json:"index"`
		OK      bool   `json:"ok"`
		ID      uint64 `json:"id"`
		Skipped bool   `json:"skipped"`
		Error   string `json:"error"`
	} `json:"results"`
}

// save posts rows to an admin batch endpoint and returns the new ids.
func (v *env) save(path string, rows ...any) []uint64 {
	v.t.Helper()
	rec := v.do(http.MethodPost, path, v.admin, echo.Map{"rows": rows})
	require.Equal(v.t, http.StatusOK, rec.Code, rec.Body.String())
	var ids []uint64
	for _, r := range decode[batch](v.t, rec).Results {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestAuthFlow(t *testing.T) {
	v := newEnv(t)

	rec := v.do(http.MethodPost, "/v1/auth/register", "", echo.Map{"name": "Tess", "email": "Tess@Example.com", "password": "longenough"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[session](t, rec)
	assert.Equal(t, "tess@example.com", reg.Technician.Email)
	assert.Equal(t, []string{model.RoleTechnician}, reg.Roles)
	assert.Len(t, reg.Session.Token, 96)

	rec = v.do(http.MethodPost, "/v1/auth/register", "", echo.Map{"name": "Tess 2", "email": "TESS@example.com", "password": "longenough"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = v.do(http.MethodPost, "/v1/auth/register", "", echo.Map{"name": "X", "email": "not-an-email", "password": "longenough"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = v.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"email": "tess@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := v.login("tess@example.com", "longenough")
	rec = v.do(http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reg.Technician.ID, decode[session](t, rec).Technician.ID)

	// both tokens are valid until logout revokes them all
	assert.Equal(t, http.StatusOK, v.do(http.MethodGet, "/v1/me", reg.Session.Token, nil).Code)
	rec = v.do(http.MethodPost, "/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revoked":2}`, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, v.do(http.MethodGet, "/v1/me", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, v.do(http.MethodGet, "/v1/me", reg.Session.Token, nil).Code)

	// technicians may not reach admin or team routes
	other := v.login("tess@example.com", "longenough")
	assert.Equal(t, http.StatusForbidden, v.do(http.MethodGet, "/v1/admin/locations", other, nil).Code)
	assert.Equal(t, http.StatusForbidden, v.do(http.MethodGet, "/v1/team/tasks", other, nil).Code)
}

func TestReferenceBatchIsRowIndependent(t *testing.T) {
	v := newEnv(t)

	rec := v.do(http.MethodPost, "/v1/admin/locations", v.admin, echo.Map{"rows": []echo.Map{
		{"name": "DH1"}, {"name": " dh1 "}, {"name": ""}, {"name": "DH2"},
	}})
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	res := decode[batch](t, rec).Results
	require.Len(t, res, 4)
	assert.True(t, res[0].OK)
	assert.Equal(t, "duplicate name in request", res[1].Error)
	assert.True(t, res[2].Skipped)
	assert.True(t, res[3].OK)

	rec = v.do(http.MethodPost, "/v1/admin/locations", v.admin, echo.Map{"rows": []echo.Map{
		{"name": "dh2"}, {"id": res[0].ID, "name": "Hall 1"},
	}})
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	res2 := decode[batch](t, rec).Results
	assert.False(t, res2[0].OK)
	assert.NotEmpty(t, res2[0].Error)
	assert.True(t, res2[1].OK)

	rec = v.do(http.MethodGet, "/v1/admin/locations", v.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	names := map[string]bool{}
	for _, r := range decode[[]model.Reference](t, rec) {
		names[r.Name] = true
	}
	assert.Equal(t, map[string]bool{"Hall 1": true, "DH2": true}, names)

	assert.Equal(t, http.StatusNotFound, v.do(http.MethodGet, "/v1/admin/widgets", v.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, v.do(http.MethodDelete, "/v1/admin/locations/999", v.admin, nil).Code)
}

// world seeds reference data, a rack with a plan of 16 and a crew.
type world struct {
	location, pulling, testing, fiber, done uint64
	rack                                    uint64
	lead, tech                              uint64
	leadToken, techToken                    string
}

func seed(t *testing.T, v *env) world {
	var w world
	w.location = v.save("/v1/admin/locations", echo.Map{"name": "DH1 floor"})[0]
	acts := v.save("/v1/admin/activities", echo.Map{"name": "Pulling"}, echo.Map{"name": "Testing"})
	w.pulling, w.testing = acts[0], acts[1]
	w.fiber = v.save("/v1/admin/cable-types", echo.Map{"name": "Fiber"})[0]
	w.done = v.save("/v1/admin/statuses", echo.Map{"name": "Done"})[0]
	w.rack = v.save("/v1/admin/racks", echo.Map{
		"name": "R01", "datahall": "DH1", "activity_id": w.pulling, "cable_type_id": w.fiber,
		"position": "left", "quantity": 16, "quantity_unit": "cables",
	})[0]

	w.lead = v.save("/v1/admin/technicians", echo.Map{"name": "Lee", "email": "lee@example.com", "password": "leepass12", "is_team_lead": true})[0]
	w.tech = v.save("/v1/admin/technicians", echo.Map{"name": "Tia", "email": "tia@example.com", "password": "tiapass12", "team_lead_id": w.lead})[0]
	w.leadToken = v.login("lee@example.com", "leepass12")
	w.techToken = v.login("tia@example.com", "tiapass12")
	return w
}

func TestSurveySubmitAndReports(t *testing.T) {
	v := newEnv(t)
	w := seed(t, v)

	rec := v.do(http.MethodPost, "/v1/survey/tasks", w.techToken, echo.Map{
		"location_id": w.location, "activity_ids": []uint64{w.pulling, w.testing}, "cable_type_ids": []uint64{w.fiber},
		"rack_id": w.rack, "position": "LEFT", "quantity": 4,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	recorded := decode[struct {
		Recorded []model.TaskRecord `json:"recorded"`
	}](t, rec).Recorded
	require.Len(t, recorded, 2)
	assert.True(t, recorded[0].Percent.Valid)
	assert.True(t, decimal.NewFromInt(25).Equal(recorded[0].Percent.Decimal))
	assert.True(t, recorded[1].Percent.Valid)
	assert.True(t, recorded[1].Percent.Decimal.IsZero(), "no plan for testing")

	rec = v.do(http.MethodPost, "/v1/survey/tasks", w.techToken, echo.Map{"location_id": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = v.do(http.MethodPost, "/v1/survey/tasks", w.techToken, echo.Map{"location_id": w.location, "rack_id": 999})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = v.do(http.MethodGet, "/v1/survey/options", w.techToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	opts := decode[struct {
		Current    *model.TaskRecord `json:"current"`
		Activities []model.Reference `json:"activities"`
		Datahalls  []string          `json:"datahalls"`
	}](t, rec)
	require.NotNil(t, opts.Current)
	assert.Equal(t, recorded[1].ID, opts.Current.ID)
	assert.Len(t, opts.Activities, 2)
	assert.Equal(t, []string{"DH1"}, opts.Datahalls)

	type report struct {
		Date string                `json:"date"`
		Rows []model.TaskReportRow `json:"rows"`
	}
	rec = v.do(http.MethodGet, "/v1/admin/reports/tasks?date=2026-03-10", v.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[report](t, rec)
	require.Len(t, all.Rows, 2)
	assert.Equal(t, "Tia", all.Rows[0].Technician)
	require.NotNil(t, all.Rows[0].TeamLead)
	assert.Equal(t, "Lee", *all.Rows[0].TeamLead)
	require.NotNil(t, all.Rows[0].Rack)
	assert.Equal(t, "R01 (DH1)", *all.Rows[0].Rack)

	rec = v.do(http.MethodGet, fmt.Sprintf("/v1/admin/reports/tasks?latest=true&activity=%d", w.testing), v.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[report](t, rec).Rows, 1)

	rec = v.do(http.MethodGet, "/v1/admin/reports/tasks?date=2026-03-09", v.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[report](t, rec).Rows)

	assert.Equal(t, http.StatusBadRequest, v.do(http.MethodGet, "/v1/admin/reports/tasks?date=03/10/2026", v.admin, nil).Code)

	rec = v.do(http.MethodGet, "/v1/admin/racks/snapshots?dh=DH1", v.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snaps := decode[struct {
		Snapshots []tracking.RackSnapshot `json:"snapshots"`
	}](t, rec).Snapshots
	require.Len(t, snaps, 2)
	assert.Equal(t, "R01 (DH1)", snaps[0].Rack)

	rec = v.do(http.MethodGet, fmt.Sprintf("/v1/admin/progress?rack_id=%d&activity_id=%d&cable_type_id=%d&position=left&quantity=3", w.rack, w.pulling, w.fiber), v.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prog := decode[struct {
		Planned int64           `json:"planned"`
		Percent decimal.Decimal `json:"percent"`
	}](t, rec)
	assert.Equal(t, int64(16), prog.Planned)
	assert.Equal(t, "18.8", prog.Percent.String())

	rec = v.do(http.MethodGet, fmt.Sprintf("/v1/admin/racks/%d/results", w.rack), v.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"quantity":16`)
}

func TestTeamBoard(t *testing.T) {
	v := newEnv(t)
	w := seed(t, v)

	assign := echo.Map{"rows": []echo.Map{{
		"technician_id": w.tech, "location_id": w.location, "activity_id": w.pulling,
		"cable_type_id": w.fiber, "rack_id": w.rack, "position": "left",
	}}}
	rec := v.do(http.MethodPost, "/v1/team/tasks", w.leadToken, assign)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[tracking.AssignResult](t, rec)
	require.Len(t, first.Recorded, 1)
	assert.Equal(t, w.lead, first.Recorded[0].SourceID)

	rec = v.do(http.MethodPost, "/v1/team/tasks", w.leadToken, assign)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[tracking.AssignResult](t, rec)
	assert.Empty(t, second.Recorded)
	assert.Equal(t, []uint64{w.tech}, second.Skipped)

	rec = v.do(http.MethodGet, "/v1/team/tasks", w.leadToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roster := decode[struct {
		Date   string                 `json:"date"`
		Roster []tracking.RosterEntry `json:"roster"`
	}](t, rec)
	assert.Equal(t, "2026-03-10", roster.Date)
	require.Len(t, roster.Roster, 1)
	require.NotNil(t, roster.Roster[0].Current)
	assert.Equal(t, first.Recorded[0].ID, roster.Roster[0].Current.ID)

	rec = v.do(http.MethodPost, "/v1/team/rack-states", w.leadToken, echo.Map{
		"rack_id": w.rack, "activity_id": w.pulling, "cable_type_id": w.fiber,
		"status_id": w.done, "position": "left", "quantity": 8,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	state := decode[model.RackState](t, rec)
	assert.Equal(t, "50", state.Percent.String())

	rec = v.do(http.MethodPost, "/v1/team/rack-states", w.leadToken, echo.Map{
		"rack_id": w.rack, "activity_id": w.pulling, "cable_type_id": w.fiber,
		"status_id": w.done, "position": "left", "quantity": 8, "percent": 120,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = v.do(http.MethodGet, "/v1/admin/racks/states?dh=DH1", v.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		States []model.RackState `json:"states"`
	}](t, rec).States, 1)

	// a survey link opens the survey without a session
	rec = v.do(http.MethodPost, "/v1/team/survey-links", w.leadToken, echo.Map{"technician_id": w.tech})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	link := decode[struct {
		Token string `json:"token"`
	}](t, rec).Token
	rec = v.do(http.MethodGet, "/v1/survey/options?link="+link, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, v.do(http.MethodGet, "/v1/me?link="+link, "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, v.do(http.MethodGet, "/v1/survey/options?link=garbage", "", nil).Code)
}

func TestDeletes(t *testing.T) {
	v := newEnv(t)
	w := seed(t, v)

	rec := v.do(http.MethodPost, "/v1/survey/tasks", w.techToken, echo.Map{
		"location_id": w.location, "activity_ids": []uint64{w.pulling}, "rack_id": w.rack, "position": "left",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = v.do(http.MethodDelete, fmt.Sprintf("/v1/admin/technicians/%d", w.tech), v.admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = v.do(http.MethodDelete, fmt.Sprintf("/v1/admin/activities/%d", w.pulling), v.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// one task row and one planned quantity
	assert.JSONEq(t, fmt.Sprintf(`{"deleted":%d,"dependents_removed":2}`, w.pulling), rec.Body.String())

	rec = v.do(http.MethodGet, "/v1/admin/reports/tasks", v.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":[]`)

	spare := v.save("/v1/admin/technicians", echo.Map{"name": "Sam", "email": "sam@example.com"})[0]
	rec = v.do(http.MethodDelete, fmt.Sprintf("/v1/admin/technicians/%d", spare), v.admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	v := newEnv(t)
	rec := v.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = v.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}
