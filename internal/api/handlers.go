// Package api exposes the HTTP surface of the Tri service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/tri/internal/aggregate"
	"example.com/tri/internal/auth"
	"example.com/tri/internal/domain"
)

// SyncController drives the health-feed sync lifecycle. Implemented by the
// reconciler; stubbed in tests.
type SyncController interface {
	EnableSync(ctx context.Context, ownerID string) error
	DisableSync(ctx context.Context, ownerID string) error
	Trigger(ctx context.Context, ownerID string) error
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	workouts *domain.WorkoutService
	profiles *domain.ProfileService
	account  *domain.AccountService
	sync     SyncController
	engine   aggregate.Engine
}

// NewHandler builds a Handler. sync and account may be nil in deployments
// without a health feed or identity provider; their endpoints then 404.
func NewHandler(workouts *domain.WorkoutService, profiles *domain.ProfileService, account *domain.AccountService, sync SyncController, engine aggregate.Engine) *Handler {
	return &Handler{
		workouts: workouts,
		profiles: profiles,
		account:  account,
		sync:     sync,
		engine:   engine,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/workouts", h.workoutCollection)
	mux.HandleFunc("/v1/workouts/", h.workoutByID)
	mux.HandleFunc("/v1/summary", h.summary)
	mux.HandleFunc("/v1/streak", h.streak)
	mux.HandleFunc("/v1/timeline", h.timeline)
	mux.HandleFunc("/v1/profile", h.profile)
	mux.HandleFunc("/v1/profile/goals", h.profileGoals)
	mux.HandleFunc("/v1/profile/streak", h.profileStreak)
	mux.HandleFunc("/v1/profile/onboarded", h.profileOnboarded)
	mux.HandleFunc("/v1/profile/entitlement/refresh", h.entitlementRefresh)
	mux.HandleFunc("/v1/sync/enable", h.syncEnable)
	mux.HandleFunc("/v1/sync/disable", h.syncDisable)
	mux.HandleFunc("/v1/sync/run", h.syncRun)
	mux.HandleFunc("/v1/account", h.accountDelete)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// owner resolves the authenticated owner and checks the required scope.
// workouts:write implies workouts:read.
func owner(w http.ResponseWriter, r *http.Request, scope string) (string, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return "", false
	}
	allowed := claims.HasScope(scope)
	if !allowed && scope == auth.ScopeWorkoutsRead {
		allowed = claims.HasScope(auth.ScopeWorkoutsWrite)
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return "", false
	}
	return claims.Subject, true
}

func (h *Handler) workoutCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createWorkout(w, r)
	case http.MethodGet:
		h.listWorkouts(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createWorkout(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	var req CreateWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	record, buffered, err := h.workouts.AddManual(r.Context(), domain.ManualWorkoutInput{
		OwnerID:         ownerID,
		Kind:            domain.ActivityKind(req.Kind),
		Distance:        req.Distance,
		DurationSeconds: req.DurationSeconds,
		Calories:        req.Calories,
		OccurredAt:      req.OccurredAt,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	status := http.StatusCreated
	if buffered {
		// Accepted but not yet durable; it will be flushed on the next write.
		status = http.StatusAccepted
	}
	writeJSON(w, status, CreateWorkoutResponse{
		Workout:  toWorkoutView(*record),
		Buffered: buffered,
	})
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r, auth.ScopeWorkoutsRead)
	if !ok {
		return
	}

	records, err := h.workouts.ListVisible(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]WorkoutView, 0, len(records))
	for _, record := range records {
		items = append(items, toWorkoutView(record))
	}
	writeJSON(w, http.StatusOK, ListWorkoutsResponse{Items: items})
}

func (h *Handler) workoutByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/workouts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing workout id")
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	ownerID, ok := owner(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	if err := h.workouts.Hide(r.Context(), id, ownerID); err != nil {
		if errors.Is(err, domain.ErrWorkoutNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "workout not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	ownerID, ok := owner(w, r, auth.ScopeWorkoutsRead)
	if !ok {
		return
	}

	records, profile, err := h.loadOwnerData(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	now := time.Now().UTC()
	calories := h.engine.TotalCalories(records, now)
	caloriesProgress := 0.0
	if profile.DailyCaloriesGoal > 0 {
		caloriesProgress = calories / profile.DailyCaloriesGoal
	}

	disciplines := make([]DisciplineSummary, 0, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		disciplines = append(disciplines, DisciplineSummary{
			Kind:         string(kind),
			Unit:         kind.UnitLabel(),
			WeekDistance: h.engine.TotalDistance(records, kind, now),
			WeekGoal:     profile.WeeklyGoal(kind),
			Progress:     h.engine.Progress(records, profile, kind, now),
		})
	}

	writeJSON(w, http.StatusOK, SummaryResponse{
		Date:             now,
		Calories:         calories,
		CaloriesGoal:     profile.DailyCaloriesGoal,
		CaloriesProgress: caloriesProgress,
		WeekCompleted:    h.engine.WeekCompleted(records, profile, h.engine.WeekStartOf(now)),
		Disciplines:      disciplines,
		Rings:            h.engine.DayRings(records, profile, now),
	})
}

func (h *Handler) streak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	ownerID, ok := owner(w, r, auth.ScopeWorkoutsRead)
	if !ok {
		return
	}

	records, profile, err := h.loadOwnerData(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	current, longest := h.engine.Streak(records, profile, time.Now().UTC())
	writeJSON(w, http.StatusOK, StreakResponse{Current: current, Longest: longest})
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	ownerID, ok := owner(w, r, auth.ScopeWorkoutsRead)
	if !ok {
		return
	}

	period := aggregate.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = aggregate.PeriodMonth
	}
	if !aggregate.ValidPeriod(period) {
		writeError(w, http.StatusBadRequest, "validation_failed", "unknown period")
		return
	}

	records, err := h.workouts.ListVisible(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind := domain.ActivityKind(raw)
		if !kind.Valid() {
			writeError(w, http.StatusBadRequest, "validation_failed", "unknown kind")
			return
		}
		filtered := records[:0]
		for _, record := range records {
			if record.Kind == kind {
				filtered = append(filtered, record)
			}
		}
		records = filtered
	}

	points := h.engine.Timeline(records, period, time.Now().UTC())
	if points == nil {
		points = []aggregate.StatPoint{}
	}
	writeJSON(w, http.StatusOK, TimelineResponse{Period: string(period), Points: points})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	ownerID, ok := owner(w, r, auth.ScopeWorkoutsRead)
	if !ok {
		return
	}

	profile, err := h.profiles.Load(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(profile))
}

func (h *Handler) profileGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.profile(w, r)
	case http.MethodPut:
		ownerID, ok := owner(w, r, auth.ScopeProfileWrite)
		if !ok {
			return
		}

		var req UpdateGoalsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		profile, err := h.profiles.UpdateGoals(r.Context(), ownerID, domain.GoalsInput{
			DailyCaloriesGoal: req.DailyCaloriesGoal,
			WeeklySwimGoal:    req.WeeklySwimGoal,
			WeeklyBikeGoal:    req.WeeklyBikeGoal,
			WeeklyRunGoal:     req.WeeklyRunGoal,
			FavoriteKind:      domain.ActivityKind(req.FavoriteKind),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toProfileView(profile))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) profileStreak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	ownerID, ok := owner(w, r, auth.ScopeProfileWrite)
	if !ok {
		return
	}

	var req UpdateStreakSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	profile, err := h.profiles.UpdateStreakSettings(r.Context(), ownerID, domain.StreakSettingsInput{
		IncludeSwim: req.IncludeSwim,
		IncludeBike: req.IncludeBike,
		IncludeRun:  req.IncludeRun,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(profile))
}

func (h *Handler) profileOnboarded(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	ownerID, ok := owner(w, r, auth.ScopeProfileWrite)
	if !ok {
		return
	}

	if err := h.profiles.SetOnboarded(r.Context(), ownerID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) entitlementRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	ownerID, ok := owner(w, r, auth.ScopeProfileWrite)
	if !ok {
		return
	}

	profile, err := h.profiles.RefreshEntitlement(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "entitlement_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(profile))
}

func (h *Handler) syncEnable(w http.ResponseWriter, r *http.Request) {
	h.syncOp(w, r, func(ctx context.Context, ownerID string) error {
		return h.sync.EnableSync(ctx, ownerID)
	})
}

func (h *Handler) syncDisable(w http.ResponseWriter, r *http.Request) {
	h.syncOp(w, r, func(ctx context.Context, ownerID string) error {
		return h.sync.DisableSync(ctx, ownerID)
	})
}

func (h *Handler) syncRun(w http.ResponseWriter, r *http.Request) {
	h.syncOp(w, r, func(ctx context.Context, ownerID string) error {
		return h.sync.Trigger(ctx, ownerID)
	})
}

func (h *Handler) syncOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.sync == nil {
		writeError(w, http.StatusNotFound, "not_found", "sync is not configured")
		return
	}
	ownerID, ok := owner(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	if err := op(r.Context(), ownerID); err != nil {
		if errors.Is(err, domain.ErrAuthorizationDenied) {
			writeError(w, http.StatusForbidden, "authorization_denied", "health feed authorization denied")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) accountDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.account == nil {
		writeError(w, http.StatusNotFound, "not_found", "account deletion is not configured")
		return
	}
	ownerID, ok := owner(w, r, auth.ScopeAccountDelete)
	if !ok {
		return
	}

	if err := h.account.Delete(r.Context(), ownerID); err != nil {
		if errors.Is(err, domain.ErrReauthenticationRequired) {
			writeError(w, http.StatusUnauthorized, "reauthentication_required", "a fresh credential is required to delete the account")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) loadOwnerData(ctx context.Context, ownerID string) ([]domain.WorkoutRecord, domain.UserProfile, error) {
	records, err := h.workouts.ListVisible(ctx, ownerID)
	if err != nil {
		return nil, domain.UserProfile{}, err
	}
	profile, err := h.profiles.Load(ctx, ownerID)
	if err != nil {
		return nil, domain.UserProfile{}, err
	}
	return records, profile, nil
}

// CreateWorkoutRequest is the payload for POST /v1/workouts.
type CreateWorkoutRequest struct {
	Kind            string    `json:"kind"`
	Distance        float64   `json:"distance"`
	DurationSeconds float64   `json:"duration_seconds"`
	Calories        float64   `json:"calories"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Validate ensures request correctness.
func (r CreateWorkoutRequest) Validate() error {
	if !domain.ActivityKind(r.Kind).Valid() {
		return errors.New("kind must be one of swim, bike, run")
	}
	if r.Distance < 0 {
		return errors.New("distance must be >= 0")
	}
	if r.DurationSeconds <= 0 {
		return errors.New("duration_seconds must be > 0")
	}
	if r.Calories < 0 {
		return errors.New("calories must be >= 0")
	}
	if r.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	return nil
}

// CreateWorkoutResponse describes the response body for create.
type CreateWorkoutResponse struct {
	Workout  WorkoutView `json:"workout"`
	Buffered bool        `json:"buffered"`
}

// WorkoutView exposes a workout record.
type WorkoutView struct {
	WorkoutID       string    `json:"workout_id"`
	Source          string    `json:"source"`
	Kind            string    `json:"kind"`
	Unit            string    `json:"unit"`
	Distance        float64   `json:"distance"`
	DurationSeconds float64   `json:"duration_seconds"`
	Calories        float64   `json:"calories"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// ListWorkoutsResponse packages list results.
type ListWorkoutsResponse struct {
	Items []WorkoutView `json:"items"`
}

// DisciplineSummary reports one discipline's week against its goal.
type DisciplineSummary struct {
	Kind         string  `json:"kind"`
	Unit         string  `json:"unit"`
	WeekDistance float64 `json:"week_distance"`
	WeekGoal     float64 `json:"week_goal"`
	Progress     float64 `json:"progress"`
}

// SummaryResponse is the dashboard payload: today's calories, the week per
// discipline, and the last seven days of calorie rings.
type SummaryResponse struct {
	Date             time.Time           `json:"date"`
	Calories         float64             `json:"calories"`
	CaloriesGoal     float64             `json:"calories_goal"`
	CaloriesProgress float64             `json:"calories_progress"`
	WeekCompleted    bool                `json:"week_completed"`
	Disciplines      []DisciplineSummary `json:"disciplines"`
	Rings            []aggregate.DayRing `json:"rings"`
}

// StreakResponse reports consecutive completed weeks.
type StreakResponse struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// TimelineResponse packages bucketed distance totals.
type TimelineResponse struct {
	Period string                `json:"period"`
	Points []aggregate.StatPoint `json:"points"`
}

// UpdateGoalsRequest is the payload for PUT /v1/profile/goals.
type UpdateGoalsRequest struct {
	DailyCaloriesGoal float64 `json:"daily_calories_goal"`
	WeeklySwimGoal    float64 `json:"weekly_swim_goal"`
	WeeklyBikeGoal    float64 `json:"weekly_bike_goal"`
	WeeklyRunGoal     float64 `json:"weekly_run_goal"`
	FavoriteKind      string  `json:"favorite_kind,omitempty"`
}

// Validate ensures request correctness. Zero goals are allowed; they mean the
// discipline is satisfied without any distance.
func (r UpdateGoalsRequest) Validate() error {
	if r.DailyCaloriesGoal < 0 || r.WeeklySwimGoal < 0 || r.WeeklyBikeGoal < 0 || r.WeeklyRunGoal < 0 {
		return errors.New("goals must be >= 0")
	}
	if r.FavoriteKind != "" && !domain.ActivityKind(r.FavoriteKind).Valid() {
		return errors.New("favorite_kind must be one of swim, bike, run")
	}
	return nil
}

// UpdateStreakSettingsRequest is the payload for PUT /v1/profile/streak.
type UpdateStreakSettingsRequest struct {
	IncludeSwim bool `json:"include_swim"`
	IncludeBike bool `json:"include_bike"`
	IncludeRun  bool `json:"include_run"`
}

// ProfileView exposes per-owner settings.
type ProfileView struct {
	OwnerID               string  `json:"owner_id"`
	HasOnboarded          bool    `json:"has_onboarded"`
	FavoriteKind          string  `json:"favorite_kind"`
	DailyCaloriesGoal     float64 `json:"daily_calories_goal"`
	WeeklySwimGoal        float64 `json:"weekly_swim_goal"`
	WeeklyBikeGoal        float64 `json:"weekly_bike_goal"`
	WeeklyRunGoal         float64 `json:"weekly_run_goal"`
	StreakIncludeSwim     bool    `json:"streak_include_swim"`
	StreakIncludeBike     bool    `json:"streak_include_bike"`
	StreakIncludeRun      bool    `json:"streak_include_run"`
	HealthSyncEnabled     bool    `json:"health_sync_enabled"`
	HasActiveSubscription bool    `json:"has_active_subscription"`
	SubscriptionProductID string  `json:"subscription_product_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toWorkoutView(record domain.WorkoutRecord) WorkoutView {
	return WorkoutView{
		WorkoutID:       record.ID,
		Source:          string(record.Source),
		Kind:            string(record.Kind),
		Unit:            record.Kind.UnitLabel(),
		Distance:        record.Distance,
		DurationSeconds: record.DurationSeconds,
		Calories:        record.Calories,
		OccurredAt:      record.OccurredAt,
	}
}

func toProfileView(profile domain.UserProfile) ProfileView {
	return ProfileView{
		OwnerID:               profile.OwnerID,
		HasOnboarded:          profile.HasOnboarded,
		FavoriteKind:          string(profile.FavoriteKind),
		DailyCaloriesGoal:     profile.DailyCaloriesGoal,
		WeeklySwimGoal:        profile.WeeklySwimGoal,
		WeeklyBikeGoal:        profile.WeeklyBikeGoal,
		WeeklyRunGoal:         profile.WeeklyRunGoal,
		StreakIncludeSwim:     profile.StreakIncludeSwim,
		StreakIncludeBike:     profile.StreakIncludeBike,
		StreakIncludeRun:      profile.StreakIncludeRun,
		HealthSyncEnabled:     profile.HealthSyncEnabled,
		HasActiveSubscription: profile.HasActiveSubscription,
		SubscriptionProductID: profile.SubscriptionProductID,
	}
}
