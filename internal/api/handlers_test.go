package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/tri/internal/aggregate"
	"example.com/tri/internal/auth"
	"example.com/tri/internal/domain"
	"example.com/tri/internal/persistence/memory"
)

func newTestHandler(repo *memory.Repository, sync SyncController, provider domain.AccountProvider) *Handler {
	workouts := domain.NewWorkoutService(repo)
	profiles := domain.NewProfileService(repo.Profiles(), nil)
	account := domain.NewAccountService(provider, workouts, repo, repo.Profiles())
	return NewHandler(workouts, profiles, account, sync, aggregate.NewEngine())
}

func authed(req *http.Request, scopes ...string) *http.Request {
	set := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		set[scope] = struct{}{}
	}
	claims := &auth.Claims{
		Subject:   "owner-1",
		Scopes:    set,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestCreateAndListWorkouts(t *testing.T) {
	handler := newTestHandler(memory.NewRepository(), nil, nil)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	body := `{"kind":"run","distance":3.1,"duration_seconds":1500,"calories":320,"occurred_at":"2026-08-30T07:00:00Z"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/workouts", strings.NewReader(body)), auth.ScopeWorkoutsWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var created CreateWorkoutResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Buffered {
		t.Fatal("expected a durable write, got buffered")
	}
	if created.Workout.Unit != "mi" {
		t.Fatalf("expected mi unit got %s", created.Workout.Unit)
	}

	req = authed(httptest.NewRequest(http.MethodGet, "/v1/workouts", nil), auth.ScopeWorkoutsRead)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var list ListWorkoutsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].WorkoutID != created.Workout.WorkoutID {
		t.Fatalf("unexpected list: %+v", list.Items)
	}
}

func TestCreateWorkoutRejectsUnknownKind(t *testing.T) {
	handler := newTestHandler(memory.NewRepository(), nil, nil)

	body := `{"kind":"rowing","distance":2,"duration_seconds":600,"calories":100,"occurred_at":"2026-08-30T07:00:00Z"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/workouts", strings.NewReader(body)), auth.ScopeWorkoutsWrite)
	rr := httptest.NewRecorder()
	handler.createWorkout(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestCreateWorkoutRequiresWriteScope(t *testing.T) {
	handler := newTestHandler(memory.NewRepository(), nil, nil)

	body := `{"kind":"run","distance":2,"duration_seconds":600,"calories":100,"occurred_at":"2026-08-30T07:00:00Z"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/workouts", strings.NewReader(body)), auth.ScopeWorkoutsRead)
	rr := httptest.NewRecorder()
	handler.createWorkout(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestListWorkoutsRequiresAuth(t *testing.T) {
	handler := newTestHandler(memory.NewRepository(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/workouts", nil)
	rr := httptest.NewRecorder()
	handler.listWorkouts(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestHideWorkoutNotFound(t *testing.T) {
	handler := newTestHandler(memory.NewRepository(), nil, nil)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	req := authed(httptest.NewRequest(http.MethodDelete, "/v1/workouts/no-such-id", nil), auth.ScopeWorkoutsWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSummaryReportsTodayAndWeek(t *testing.T) {
	repo := memory.NewRepository()
	now := time.Now().UTC()
	seed := []domain.WorkoutRecord{
		{ID: "w-1", OwnerID: "owner-1", Source: domain.SourceManual, Kind: domain.KindRun, Distance: 6, Calories: 500, DurationSeconds: 3000, OccurredAt: now, CreatedAt: now},
		{ID: "w-2", OwnerID: "owner-1", Source: domain.SourceManual, Kind: domain.KindRun, Distance: 6, Calories: 400, DurationSeconds: 2800, OccurredAt: now, CreatedAt: now},
	}
	for _, record := range seed {
		if err := repo.InsertManual(context.Background(), record); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	handler := newTestHandler(repo, nil, nil)
	req := authed(httptest.NewRequest(http.MethodGet, "/v1/summary", nil), auth.ScopeWorkoutsRead)
	rr := httptest.NewRecorder()
	handler.summary(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp SummaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Calories != 900 {
		t.Fatalf("expected 900 calories got %f", resp.Calories)
	}
	// Default run goal is 12 mi; two 6 mi runs complete it.
	for _, d := range resp.Disciplines {
		if d.Kind == "run" {
			if d.WeekDistance != 12 || d.Progress != 1 {
				t.Fatalf("unexpected run summary: %+v", d)
			}
		}
	}
	if len(resp.Rings) != 7 {
		t.Fatalf("expected 7 day rings got %d", len(resp.Rings))
	}
}

func TestTimelineRejectsUnknownPeriod(t *testing.T) {
	handler := newTestHandler(memory.NewRepository(), nil, nil)

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/timeline?period=2w", nil), auth.ScopeWorkoutsRead)
	rr := httptest.NewRecorder()
	handler.timeline(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestUpdateGoalsPersistsInOneWrite(t *testing.T) {
	repo := memory.NewRepository()
	handler := newTestHandler(repo, nil, nil)

	body := `{"daily_calories_goal":800,"weekly_swim_goal":4000,"weekly_bike_goal":80,"weekly_run_goal":20,"favorite_kind":"bike"}`
	req := authed(httptest.NewRequest(http.MethodPut, "/v1/profile/goals", strings.NewReader(body)), auth.ScopeProfileWrite)
	rr := httptest.NewRecorder()
	handler.profileGoals(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var view ProfileView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if view.WeeklyBikeGoal != 80 || view.FavoriteKind != "bike" {
		t.Fatalf("unexpected profile: %+v", view)
	}
}

type stubSync struct {
	enableErr error
	triggered int
}

func (s *stubSync) EnableSync(context.Context, string) error  { return s.enableErr }
func (s *stubSync) DisableSync(context.Context, string) error { return nil }
func (s *stubSync) Trigger(context.Context, string) error {
	s.triggered++
	return nil
}

func TestSyncEnableAuthorizationDenied(t *testing.T) {
	sync := &stubSync{enableErr: domain.ErrAuthorizationDenied}
	handler := newTestHandler(memory.NewRepository(), sync, nil)

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/sync/enable", nil), auth.ScopeWorkoutsWrite)
	rr := httptest.NewRecorder()
	handler.syncEnable(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", rr.Code, rr.Body.String())
	}
	var payload map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["type"] != "authorization_denied" {
		t.Fatalf("unexpected error type %q", payload["type"])
	}
}

func TestSyncRunTriggersPass(t *testing.T) {
	sync := &stubSync{}
	handler := newTestHandler(memory.NewRepository(), sync, nil)

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/sync/run", nil), auth.ScopeWorkoutsWrite)
	rr := httptest.NewRecorder()
	handler.syncRun(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d: %s", rr.Code, rr.Body.String())
	}
	if sync.triggered != 1 {
		t.Fatalf("expected 1 trigger got %d", sync.triggered)
	}
}

type stubAccountProvider struct {
	err     error
	deleted []string
}

func (s *stubAccountProvider) DeleteAccount(_ context.Context, ownerID string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, ownerID)
	return nil
}

func TestAccountDeleteRequiresReauthentication(t *testing.T) {
	provider := &stubAccountProvider{err: domain.ErrReauthenticationRequired}
	handler := newTestHandler(memory.NewRepository(), nil, provider)

	req := authed(httptest.NewRequest(http.MethodDelete, "/v1/account", nil), auth.ScopeAccountDelete)
	rr := httptest.NewRecorder()
	handler.accountDelete(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d: %s", rr.Code, rr.Body.String())
	}
	var payload map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["type"] != "reauthentication_required" {
		t.Fatalf("unexpected error type %q", payload["type"])
	}
}

func TestAccountDeleteClearsState(t *testing.T) {
	repo := memory.NewRepository()
	now := time.Now().UTC()
	record := domain.WorkoutRecord{ID: "w-1", OwnerID: "owner-1", Source: domain.SourceManual, Kind: domain.KindSwim, Distance: 1000, OccurredAt: now, CreatedAt: now}
	if err := repo.InsertManual(context.Background(), record); err != nil {
		t.Fatalf("seed: %v", err)
	}

	provider := &stubAccountProvider{}
	handler := newTestHandler(repo, nil, provider)

	req := authed(httptest.NewRequest(http.MethodDelete, "/v1/account", nil), auth.ScopeAccountDelete)
	rr := httptest.NewRecorder()
	handler.accountDelete(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d: %s", rr.Code, rr.Body.String())
	}
	if len(provider.deleted) != 1 {
		t.Fatalf("expected provider delete, got %v", provider.deleted)
	}

	records, err := repo.ListAll(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records after delete, got %d", len(records))
	}
}
