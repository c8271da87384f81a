package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/prof-roster-api/internal/middleware"
	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/internal/repository"
	"github.com/noah-isme/prof-roster-api/internal/service"
	"github.com/noah-isme/prof-roster-api/pkg/export"
)

const (
	testPrefix   = "/api/v1"
	testYear     = "2025-2026"
	adminEmail   = "admin@example.org"
	adminSecret  = "password123"
	tokenSecret  = "test-secret"
	defaultLogin = "changeme"
)

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
	Meta map[string]interface{} `json:"meta"`
}

type testAPI struct {
	router *gin.Engine
	store  *repository.MemoryDocumentStore
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	store := repository.NewMemoryDocumentStore()
	require.NoError(t, store.Put(repository.CollectionAcademicYears, repository.Document{ID: testYear, Data: map[string]interface{}{"label": testYear, "active": true}}))
	require.NoError(t, store.Put(repository.CollectionAcademicYears, repository.Document{ID: "2024-2025", Data: map[string]interface{}{"label": "2024-2025"}}))

	metrics := service.NewMetricsService()
	professorRepo := repository.NewProfessorRepository(store)
	yearRepo := repository.NewAcademicYearRepository(store)
	assignmentRepo := repository.NewAssignmentRepository(store)
	referenceRepo := repository.NewReferenceRepository(store)
	accountRepo := repository.NewAccountRepository(store)
	cache := service.NewMemoryRosterCache()

	validate := service.NewValidator()
	provisioner := service.NewAccountProvisioner(accountRepo, logger)
	auth := service.NewAuthService(accountRepo, provisioner, validate, logger, service.AuthConfig{
		AccessTokenSecret: tokenSecret,
		AccessTokenExpiry: time.Hour,
		Issuer:            "test",
	})
	require.NoError(t, auth.EnsureBootstrapAdmin(ctx, adminEmail, adminSecret))

	loader := service.NewRosterLoader(professorRepo, assignmentRepo, cache, service.NewYearResolver(time.UTC), metrics, logger)
	sessions := service.NewRosterSessions(loader, time.Hour, metrics, logger)
	professors := service.NewProfessorService(professorRepo, yearRepo, provisioner, cache, service.ProfessorDefaults{
		RoleID:          "prof",
		RoleLabel:       "Professeur",
		DefaultPassword: defaultLogin,
	}, validate, logger)
	assignments := service.NewAssignmentService(assignmentRepo, referenceRepo, professorRepo, yearRepo, cache, validate, logger)
	schedules := service.NewScheduleService(assignmentRepo, professorRepo, repository.NewTimetableRepository(store), logger)
	exports := service.NewExportService(loader, schedules, professorRepo, export.NewCSVExporter(';'), export.NewPDFExporter(), logger)

	r := gin.New()
	r.Use(middleware.Metrics(metrics))
	Routes{
		Auth:         NewAuthHandler(auth),
		Years:        NewAcademicYearHandler(service.NewAcademicYearService(yearRepo, referenceRepo, logger)),
		Professors:   NewProfessorHandler(professors, sessions, exports),
		Assignments:  NewAssignmentHandler(assignments, schedules, exports),
		Metrics:      NewMetricsHandler(metrics, map[string]ReadinessCheck{"store": func(context.Context) error { return nil }}),
		TokenChecker: auth,
	}.Register(r, testPrefix)

	api := &testAPI{router: r, store: store}
	api.token = api.login(t, adminEmail, adminSecret)
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return a.doAs(t, a.token, method, path, body)
}

func (a *testAPI) doAs(t *testing.T, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, testPrefix+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := a.doAs(t, "", http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.LoginResponse
	decodeData(t, rec, &resp)
	return resp.AccessToken
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if dest != nil {
		require.NoError(t, json.Unmarshal(env.Data, dest))
	}
	return env
}

func (a *testAPI) createProfessor(t *testing.T, nom, login string) models.Professor {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/professors", map[string]interface{}{
		"nom":              nom,
		"prenom":           "Jean",
		"email":            login + "@example.org",
		"login":            login,
		"academic_year_id": testYear,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p models.Professor
	decodeData(t, rec, &p)
	return p
}

func TestRoutesRequireAdminToken(t *testing.T) {
	api := newTestAPI(t)

	rec := api.doAs(t, "", http.MethodGet, "/professors", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.doAs(t, "garbage", http.MethodGet, "/professors", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	api.createProfessor(t, "Dupont", "jdupont")
	profToken := api.loginAsProfessor(t, "jdupont@example.org")
	rec = api.doAs(t, profToken, http.MethodGet, "/professors", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func (a *testAPI) loginAsProfessor(t *testing.T, email string) string {
	t.Helper()
	rec := a.doAs(t, "", http.MethodPost, "/auth/login", map[string]string{"email": email, "password": defaultLogin})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Professor accounts are refused at login; sign a token for the role check.
	claims := &models.JWTClaims{UserID: "prof", Role: models.RoleProfessor, Email: email}
	claims.Subject = "prof"
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(tokenSecret))
	require.NoError(t, err)
	return token
}

func TestProfessorLifecycle(t *testing.T) {
	api := newTestAPI(t)

	created := api.createProfessor(t, "Dupont", "jdupont")
	assert.Equal(t, 1, created.Numero)
	api.createProfessor(t, "Bernard", "lbernard")

	rec := api.do(t, http.MethodGet, "/professors?year_id="+testYear+"&year_label="+testYear, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(StaleHeader))
	var rows []models.Professor
	env := decodeData(t, rec, &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bernard", rows[0].Nom)
	assert.Equal(t, float64(2), env.Meta["count"])
	assert.Equal(t, false, env.Meta["stale"])

	rec = api.do(t, http.MethodGet, "/professors/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current service.RosterSnapshot
	decodeData(t, rec, &current)
	assert.Equal(t, testYear, current.Selection.YearID)
	assert.Len(t, current.Rows, 2)

	rec = api.do(t, http.MethodPost, "/professors", map[string]interface{}{
		"nom": "Autre", "prenom": "Jean", "email": "jdupont@example.org", "login": "jdupont",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	env = decodeData(t, rec, nil)
	assert.Equal(t, "already used", env.Error.Fields["login"])

	rec = api.do(t, http.MethodPut, "/professors/"+created.ID, map[string]interface{}{
		"nom": "Dupont", "prenom": "Jeanne", "email": "jdupont@example.org", "login": "jdupont",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/professors/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched models.Professor
	decodeData(t, rec, &fetched)
	assert.Equal(t, "Jeanne", fetched.Prenom)

	rec = api.do(t, http.MethodDelete, "/professors/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/professors/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/professors?year_id="+testYear, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &rows)
	assert.Len(t, rows, 1)
}

func TestCreateProfessorValidationErrors(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/professors", map[string]interface{}{"nom": "Dupont", "email": "nope", "login": "jd"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeData(t, rec, nil)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "prenom")
	assert.Contains(t, env.Error.Fields, "email")
	assert.Contains(t, env.Error.Fields, "login")
}

func TestAvailabilityEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.createProfessor(t, "Dupont", "jdupont")

	rec := api.do(t, http.MethodGet, "/professors/availability?login=jdupont&email=free@example.org", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.ProfessorAvailability
	decodeData(t, rec, &result)
	assert.Equal(t, models.ProfessorAvailability{LoginAvailable: false, EmailAvailable: true, Checked: true}, result)
}

func TestAssignmentAndScheduleEndpoints(t *testing.T) {
	api := newTestAPI(t)
	for collection, docs := range map[string]map[string]map[string]interface{}{
		repository.CollectionFilieres: {"F1": {"libelle": "BTS Gestion", "section": "Gestion", "academic_year_id": testYear}},
		repository.CollectionClasses:  {"C1": {"libelle": "G1", "filiere_id": "F1", "academic_year_id": testYear}},
		repository.CollectionMatieres: {"M1": {"libelle": "Droit", "academic_year_id": testYear}},
		repository.CollectionTimetables: {"T1": {"annee": testYear, "class_id": "C1", "class_libelle": "G1", "slots": []interface{}{
			map[string]interface{}{"day": 1, "start": "08:00", "end": "10:00", "matiere_id": "M1", "enseignant": "Autre"},
			map[string]interface{}{"day": 1, "start": "10:00", "end": "12:00", "matiere_id": "M9", "enseignant": "Autre"},
		}}},
	} {
		for id, data := range docs {
			require.NoError(t, api.store.Put(collection, repository.Document{ID: id, Data: data}))
		}
	}
	prof := api.createProfessor(t, "Dupont", "jdupont")
	base := "/professors/" + prof.ID + "/years/" + testYear

	entry := map[string]interface{}{"section": "Gestion", "filiere_id": "F1", "classe_id": "C1", "matieres_ids": []string{"M1"}}
	rec := api.do(t, http.MethodPost, base+"/assignment/entries", map[string]interface{}{
		"draft": []interface{}{entry},
		"entry": entry,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, base+"/assignment", map[string]interface{}{"entries": []interface{}{entry}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved models.Assignment
	decodeData(t, rec, &saved)
	require.Len(t, saved.Classes, 1)
	assert.Equal(t, []string{"Droit"}, saved.Classes[0].MatieresLibelles)

	rec = api.do(t, http.MethodGet, base+"/assignment", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var draft []models.DraftEntry
	decodeData(t, rec, &draft)
	require.Len(t, draft, 1)

	rec = api.do(t, http.MethodGet, base+"/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var slots []models.ProfessorSlot
	decodeData(t, rec, &slots)
	require.Len(t, slots, 1)
	assert.Equal(t, models.SlotMatchSubject, slots[0].MatchedBy)

	rec = api.do(t, http.MethodGet, base+"/schedule.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "edt_Dupont_2025-2026.pdf")

	rec = api.do(t, http.MethodDelete, "/professors/"+prof.ID+"/years/"+testYear, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/professors?year_id="+testYear, nil)
	var rows []models.Professor
	decodeData(t, rec, &rows)
	assert.Empty(t, rows)

	rec = api.do(t, http.MethodPost, "/academic-years/"+testYear+"/professors", map[string]interface{}{"prof_ids": []string{prof.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/professors?year_id="+testYear, nil)
	decodeData(t, rec, &rows)
	assert.Len(t, rows, 1)

	rec = api.do(t, http.MethodPost, "/professors/"+prof.ID+"/transfer", map[string]interface{}{"dest_year_id": "2024-2025"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/professors?year_label=2024-2025&year_id=2024-2025", nil)
	decodeData(t, rec, &rows)
	assert.Len(t, rows, 1)
}

func TestExportCSVEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.createProfessor(t, "Dupont", "jdupont")

	rec := api.do(t, http.MethodGet, "/professors/export.csv?year_id="+testYear, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "professeurs_2025-2026.csv")
	assert.True(t, strings.Contains(rec.Body.String(), ";Dupont;Jean;"))
}

func TestAcademicYearEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/academic-years/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var year models.AcademicYear
	decodeData(t, rec, &year)
	assert.Equal(t, testYear, year.ID)

	rec = api.do(t, http.MethodGet, "/academic-years", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var years []models.AcademicYear
	decodeData(t, rec, &years)
	assert.Len(t, years, 2)

	rec = api.do(t, http.MethodGet, "/academic-years/unknown/reference", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
