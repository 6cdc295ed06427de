package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/friendsincode/volund_planner/internal/audit"
	"github.com/friendsincode/volund_planner/internal/auth"
	"github.com/friendsincode/volund_planner/internal/events"
	"github.com/friendsincode/volund_planner/internal/models"
	"github.com/friendsincode/volund_planner/internal/planner"
	"github.com/friendsincode/volund_planner/internal/qc"
	"github.com/friendsincode/volund_planner/internal/store"
	"github.com/friendsincode/volund_planner/internal/timeline"
)

var testSecret = []byte("test-secret")

type testEnv struct {
	router  chi.Router
	store   *store.Store
	planner *planner.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(&models.User{}, &models.AuditLog{}, &models.Lane{}, &models.Job{}, &models.QCRecord{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.New(db, zerolog.Nop())
	lanes := []models.Lane{
		{ID: "press-1", Name: "Press 1", Position: 1},
		{ID: "finishing", Name: "Finishing", Position: 2},
	}
	if err := st.SeedLanes(context.Background(), lanes); err != nil {
		t.Fatalf("seed lanes: %v", err)
	}

	bus := events.NewBus()
	opts := []timeline.Option{
		timeline.WithKindRestriction(models.KindCleaning, "press-1"),
	}
	engine := timeline.NewEngine(lanes, zerolog.Nop(), opts...)
	plannerSvc := planner.New(engine, st, bus, "node-test", zerolog.Nop(), opts...)
	auditSvc := audit.NewService(db, bus, zerolog.Nop())

	// Unreachable Redis: the QC service degrades to direct DB lookups.
	qcCfg := qc.DefaultConfig()
	qcCfg.RedisAddr = "127.0.0.1:1"
	qcSvc := qc.New(st, qcCfg, zerolog.Nop())
	t.Cleanup(func() { _ = qcSvc.Close() })

	handler := New(db, testSecret, plannerSvc, qcSvc, auditSvc, bus, zerolog.Nop())
	router := chi.NewRouter()
	handler.Routes(router)

	return &testEnv{router: router, store: st, planner: plannerSvc}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func issueToken(t *testing.T, role models.RoleName) string {
	t.Helper()
	token, err := auth.Issue(testSecret, auth.Claims{
		UserID: "u-" + string(role),
		Role:   string(role),
	}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestRoutes_RequireAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.request(t, http.MethodGet, "/api/v1/jobs", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRoutes_ViewerCannotMutate(t *testing.T) {
	env := newTestEnv(t)
	viewer := issueToken(t, models.RoleViewer)

	rr := env.request(t, http.MethodPost, "/api/v1/jobs", viewer, map[string]any{"name": "x"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer create, got %d", rr.Code)
	}

	rr = env.request(t, http.MethodGet, "/api/v1/jobs", viewer, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for viewer list, got %d", rr.Code)
	}
}

func TestJobs_CreatePlaceAndDayView(t *testing.T) {
	env := newTestEnv(t)
	token := issueToken(t, models.RolePlanner)

	rr := env.request(t, http.MethodPost, "/api/v1/jobs", token, map[string]any{
		"name":        "granulate",
		"quantity":    200,
		"output_rate": 50,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var created models.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created job: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated job ID")
	}

	rr = env.request(t, http.MethodPost, "/api/v1/jobs/"+created.ID+"/place", token, map[string]any{
		"lane_id": "press-1",
		"date":    "2024-03-04",
		"hour":    6.0,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for place, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.request(t, http.MethodGet, "/api/v1/lanes/press-1/day?date=2024-03-04", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for day view, got %d", rr.Code)
	}
	var view struct {
		Segments []segmentResponse `json:"segments"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode day view: %v", err)
	}
	if len(view.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(view.Segments))
	}
	seg := view.Segments[0]
	if seg.DisplayStartHour != 6 || seg.DisplayDuration != 4 {
		t.Fatalf("expected segment 6+4h, got %v+%vh", seg.DisplayStartHour, seg.DisplayDuration)
	}
}

func TestJobs_PlaceRejectsRestrictedLane(t *testing.T) {
	env := newTestEnv(t)
	token := issueToken(t, models.RolePlanner)

	rr := env.request(t, http.MethodPost, "/api/v1/jobs", token, map[string]any{
		"name":             "CIP",
		"kind":             "cleaning",
		"cleaning_variant": "B",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var created models.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created job: %v", err)
	}

	rr = env.request(t, http.MethodPost, "/api/v1/jobs/"+created.ID+"/place", token, map[string]any{
		"lane_id": "finishing",
		"date":    "2024-03-04",
		"hour":    0.0,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for restricted lane, got %d body=%s", rr.Code, rr.Body.String())
	}

	job, _ := env.planner.Job(created.ID)
	if job.Assigned() {
		t.Fatalf("rejected placement must not assign the job")
	}
}

func TestSchedule_ImportAndExport(t *testing.T) {
	env := newTestEnv(t)
	token := issueToken(t, models.RoleAdmin)

	doc := `jobs:
  - name: granulate red
    quantity: 100
    output_rate: 50
    lane_id: press-1
    schedule_date: "2024-03-04"
    start_hour: 0
  - name: legacy press
    quantity: 100
    output_rate: 50
    press_double: true
    press_triple: true
`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/import", strings.NewReader(doc))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for import, got %d body=%s", rr.Code, rr.Body.String())
	}
	var result struct {
		Accepted int `json:"accepted"`
		Rejected int `json:"rejected"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode import result: %v", err)
	}
	if result.Accepted != 2 || result.Rejected != 0 {
		t.Fatalf("expected 2 accepted, got %+v", result)
	}

	rr = env.request(t, http.MethodGet, "/api/v1/schedule/export", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for export, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "press_mode: triple") {
		t.Fatalf("expected triple-wins press mode in export, got:\n%s", rr.Body.String())
	}
}

func TestJobs_UpdatePushesNeighbour(t *testing.T) {
	env := newTestEnv(t)
	token := issueToken(t, models.RolePlanner)
	ctx := context.Background()
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	// 2h job at 0, follower at 3.
	first, err := env.planner.CreateJob(ctx, models.Job{Name: "a", Kind: models.KindStandard, Quantity: 100, OutputRate: 50})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	second, err := env.planner.CreateJob(ctx, models.Job{Name: "b", Kind: models.KindStandard, Quantity: 100, OutputRate: 50})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	if _, err := env.planner.Place(ctx, first.ID, "press-1", date, 0); err != nil {
		t.Fatalf("place a: %v", err)
	}
	if _, err := env.planner.Place(ctx, second.ID, "press-1", date, 3); err != nil {
		t.Fatalf("place b: %v", err)
	}

	// Double the first job: 4h from hour 0 now overlaps hour 3.
	rr := env.request(t, http.MethodPatch, fmt.Sprintf("/api/v1/jobs/%s", first.ID), token, map[string]any{
		"quantity": 200,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for update, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Displaced int `json:"displaced"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode update response: %v", err)
	}
	if resp.Displaced != 1 {
		t.Fatalf("expected 1 displaced job, got %d", resp.Displaced)
	}

	moved, _ := env.planner.Job(second.ID)
	if moved.StartHour == nil || *moved.StartHour != 4 {
		t.Fatalf("expected follower pushed to hour 4, got %v", moved.StartHour)
	}
}

func TestQC_StatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := issueToken(t, models.RoleViewer)

	if err := env.store.UpsertQCRecord(context.Background(), models.QCRecord{
		Batch:     "B-1",
		Status:    models.QCReleased,
		CheckedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("upsert qc record: %v", err)
	}

	rr := env.request(t, http.MethodGet, "/api/v1/qc/B-1", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode qc response: %v", err)
	}
	if resp["status"] != string(models.QCReleased) {
		t.Fatalf("expected released, got %q", resp["status"])
	}

	rr = env.request(t, http.MethodGet, "/api/v1/qc/NO-SUCH", token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown batch, got %d", rr.Code)
	}
}
