package activities

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mvasic/vitalog/internal/telemetry/metrics"
	"github.com/mvasic/vitalog/internal/telemetry/tracing"
	"github.com/mvasic/vitalog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=activities_mocks_test.go -package=activities_test

type activitiesRepo interface {
	Add(ctx context.Context, activity Activity) (*Activity, error)
	Get(ctx context.Context, id int) (*Activity, error)
	List(ctx context.Context, params ListParams) (_ []Activity, total int, err error)
	ListAll(ctx context.Context, params ActivityParams) (_ []Activity, err error)
	Update(ctx context.Context, activity *Activity) error
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context, params ActivityParams) (int, error)
}

// reportsInvalidator drops cached health reports for a profile after
// its activity log changes
type reportsInvalidator interface {
	InvalidateProfile(profileID int)
}

type DeleteActivityResponse struct {
	DeletedID int `json:"deletedId"`
}

type UpdateActivityResponse struct {
	UpdatedID int `json:"updatedId"`
}

type ListResponse struct {
	Activities []Activity `json:"activities"`
	Total      int        `json:"total"`
}

type CalendarDay struct {
	Date           string `json:"date"`
	Day            int    `json:"day"`
	IsCurrentMonth bool   `json:"isCurrentMonth"`
	IsToday        bool   `json:"isToday"`
	HasActivities  bool   `json:"hasActivities"`
	ActivityCount  int    `json:"activityCount"`
}

type CalendarResponse struct {
	Year  int           `json:"year"`
	Month int           `json:"month"`
	Days  []CalendarDay `json:"days"`
}

type Handler struct {
	repo        activitiesRepo
	invalidator reportsInvalidator
	metrics     *metrics.Manager
	now         func() time.Time
}

func NewHandler(repo activitiesRepo, invalidator reportsInvalidator, metrics *metrics.Manager) *Handler {
	return &Handler{
		repo:        repo,
		invalidator: invalidator,
		metrics:     metrics,
		now:         time.Now,
	}
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.new")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var activity Activity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		log.Tracef("new activity, unmarshal json params: %s", err)
		http.Error(w, "add activity failed", http.StatusBadRequest)
		return
	}

	if activity.Title == "" || activity.ProfileID <= 0 {
		http.Error(w, "error, title or profile id empty", http.StatusBadRequest)
		return
	}
	if activity.DurationMinutes < 0 {
		http.Error(w, "error, negative duration", http.StatusBadRequest)
		return
	}

	if activity.Date.IsZero() {
		activity.Date = handler.now()
	}

	addedActivity, err := handler.repo.Add(ctx, activity)
	if err != nil {
		log.Errorf("failed to add new activity [%s] for profile %d: %s", activity.Title, activity.ProfileID, err)
		http.Error(w, "error, failed to add new activity", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterActivities.Inc()
	handler.invalidator.InvalidateProfile(addedActivity.ProfileID)

	addedJson, err := json.Marshal(addedActivity)
	if err != nil {
		log.Errorf("failed to marshal new activity: %s", err)
		http.Error(w, "error, failed to add new activity", http.StatusInternalServerError)
		return
	}

	log.Debugf("new activity added: %d [%s]", addedActivity.ID, addedActivity.Title)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.get")
	defer span.End()

	id, err := idFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	activity, err := handler.repo.Get(ctx, id)
	if err != nil {
		log.Errorf("failed to get activity %d: %s", id, err)
		http.Error(w, "activity not found", http.StatusNotFound)
		return
	}

	activityJson, err := json.Marshal(activity)
	if err != nil {
		log.Errorf("failed to marshal activity: %s", err)
		http.Error(w, "failed to marshal activity", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, activityJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.update")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var activity Activity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		log.Tracef("update activity, unmarshal json params: %s", err)
		http.Error(w, "update activity failed", http.StatusBadRequest)
		return
	}

	if activity.ID <= 0 {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Update(ctx, &activity); err != nil {
		if errors.Is(err, ErrActivityNotFound) {
			http.Error(w, "activity not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update activity %d: %s", activity.ID, err)
		http.Error(w, "activity not updated", http.StatusInternalServerError)
		return
	}

	handler.invalidator.InvalidateProfile(activity.ProfileID)

	updateRespJson, err := json.Marshal(UpdateActivityResponse{
		UpdatedID: activity.ID,
	})
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, updateRespJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.delete")
	defer span.End()

	id, err := idFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	activity, err := handler.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrActivityNotFound) {
		log.Errorf("failed to get activity %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	} else if errors.Is(err, ErrActivityNotFound) {
		log.Debugf("activity %d not found", id)
		http.Error(w, "activity not found", http.StatusNotFound)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		log.Errorf("failed to delete activity %d: %s", id, err)
		http.Error(w, "activity not deleted", http.StatusInternalServerError)
		return
	}

	handler.invalidator.InvalidateProfile(activity.ProfileID)

	deleteRespJson, err := json.Marshal(DeleteActivityResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.list")
	defer span.End()

	vars := mux.Vars(r)
	page, err := strconv.Atoi(vars["page"])
	if err != nil {
		log.Tracef("handle list activities, from <page> param: %s", err)
		http.Error(w, "parse form error, parameter <page>", http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(vars["size"])
	if err != nil {
		log.Tracef("handle list activities, from <size> param: %s", err)
		http.Error(w, "parse form error, parameter <size>", http.StatusBadRequest)
		return
	}

	if page < 1 {
		http.Error(w, "invalid page (has to be non-zero value)", http.StatusBadRequest)
		return
	}
	if size < 1 {
		http.Error(w, "invalid size (has to be non-zero value)", http.StatusBadRequest)
		return
	}

	activityParams, err := activityParamsFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	listParams := ListParams{
		ActivityParams: activityParams,
		Page:           page,
		Size:           size,
	}

	acts, total, err := handler.repo.List(ctx, listParams)
	if err != nil {
		log.Errorf("list activities error: %s", err)
		http.Error(w, "failed to get activities", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(ListResponse{
		Activities: acts,
		Total:      total,
	})
	if err != nil {
		log.Errorf("marshal activities error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

// HandleCalendar returns a month grid for a profile, with leading and
// trailing days so every week row is complete (weeks start on Monday)
func (handler *Handler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.calendar")
	defer span.End()

	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil || year < 1970 || year > 9999 {
		http.Error(w, "error, invalid year", http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(vars["month"])
	if err != nil || month < 1 || month > 12 {
		http.Error(w, "error, invalid month", http.StatusBadRequest)
		return
	}

	profileID, err := strconv.Atoi(r.URL.Query().Get("profile_id"))
	if err != nil || profileID <= 0 {
		http.Error(w, "error, invalid profile id", http.StatusBadRequest)
		return
	}

	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	gridStart := monthStart
	for gridStart.Weekday() != time.Monday {
		gridStart = gridStart.AddDate(0, 0, -1)
	}
	gridEnd := monthEnd
	for gridEnd.Weekday() != time.Monday {
		gridEnd = gridEnd.AddDate(0, 0, 1)
	}

	// the repo's To filter is inclusive, gridEnd itself is not rendered
	fetchEnd := gridEnd.Add(-time.Nanosecond)
	acts, err := handler.repo.ListAll(ctx, ActivityParams{
		ProfileID: profileID,
		From:      &gridStart,
		To:        &fetchEnd,
	})
	if err != nil {
		log.Errorf("calendar, list activities for profile %d: %s", profileID, err)
		http.Error(w, "failed to get activities", http.StatusInternalServerError)
		return
	}

	countPerDay := make(map[string]int)
	for _, a := range acts {
		countPerDay[a.Date.Format("2006-01-02")]++
	}

	today := handler.now().Format("2006-01-02")
	var days []CalendarDay
	for d := gridStart; d.Before(gridEnd); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		count := countPerDay[date]
		days = append(days, CalendarDay{
			Date:           date,
			Day:            d.Day(),
			IsCurrentMonth: d.Month() == time.Month(month) && d.Year() == year,
			IsToday:        date == today,
			HasActivities:  count > 0,
			ActivityCount:  count,
		})
	}

	calendarJson, err := json.Marshal(CalendarResponse{
		Year:  year,
		Month: month,
		Days:  days,
	})
	if err != nil {
		log.Errorf("marshal calendar error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, calendarJson, http.StatusOK)
}

func idFromRequest(r *http.Request) (int, error) {
	idStr := mux.Vars(r)["id"]
	if idStr == "" {
		return 0, errors.New("error, id empty")
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, errors.New("error, id NaN")
	}
	return id, nil
}

func activityParamsFromQuery(r *http.Request) (ActivityParams, error) {
	params := ActivityParams{
		Tag: r.URL.Query().Get("tag"),
	}

	if profileIDStr := r.URL.Query().Get("profile_id"); profileIDStr != "" {
		profileID, err := strconv.Atoi(profileIDStr)
		if err != nil {
			return ActivityParams{}, errors.New("failed to parse profile_id param")
		}
		params.ProfileID = profileID
	}

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		fromUnix, err := strconv.ParseInt(fromStr, 10, 64)
		if err != nil {
			return ActivityParams{}, errors.New("failed to parse from param")
		}
		from := time.Unix(fromUnix, 0)
		params.From = &from
	}

	if toStr := r.URL.Query().Get("to"); toStr != "" {
		toUnix, err := strconv.ParseInt(toStr, 10, 64)
		if err != nil {
			return ActivityParams{}, errors.New("failed to parse to param")
		}
		to := time.Unix(toUnix, 0)
		params.To = &to
	}

	return params, nil
}
