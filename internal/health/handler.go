package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mvasic/vitalog/internal/profiles"
	"github.com/mvasic/vitalog/internal/telemetry/tracing"
	"github.com/mvasic/vitalog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	analyzer *Analyzer
}

func NewHandler(analyzer *Analyzer) *Handler {
	return &Handler{
		analyzer: analyzer,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	healthRouter := mainRouter.PathPrefix("/health").Subrouter()
	healthRouter.HandleFunc("/{profileId}/distribution", handler.HandleDistribution).Methods("GET", "OPTIONS").Name("health-distribution")
	healthRouter.HandleFunc("/{profileId}/metrics", handler.HandleMetrics).Methods("GET", "OPTIONS").Name("health-metrics")
	healthRouter.HandleFunc("/{profileId}/recommendations", handler.HandleRecommendations).Methods("GET", "OPTIONS").Name("health-recommendations")
	healthRouter.HandleFunc("/{profileId}/score", handler.HandleScore).Methods("GET", "OPTIONS").Name("health-score")
	healthRouter.HandleFunc("/{profileId}/summary", handler.HandleSummary).Methods("GET", "OPTIONS").Name("health-summary")
}

func (handler *Handler) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "healthHandler.distribution")
	defer span.End()

	profileID, err := profileIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	distribution, err := handler.analyzer.Distribution(ctx, profileID)
	if err != nil {
		log.Errorf("health distribution for profile %d: %s", profileID, err)
		http.Error(w, "failed to compute tag distribution", http.StatusInternalServerError)
		return
	}

	writeReport(w, distribution)
}

func (handler *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "healthHandler.metrics")
	defer span.End()

	profileID, err := profileIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	healthMetrics, err := handler.analyzer.Metrics(ctx, profileID)
	if err != nil {
		log.Errorf("health metrics for profile %d: %s", profileID, err)
		http.Error(w, "failed to compute health metrics", http.StatusInternalServerError)
		return
	}

	writeReport(w, healthMetrics)
}

func (handler *Handler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "healthHandler.recommendations")
	defer span.End()

	profileID, err := profileIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	recommendations, err := handler.analyzer.Recommendations(ctx, profileID)
	if err != nil {
		handleReportError(w, profileID, "recommendations", err)
		return
	}

	writeReport(w, recommendations)
}

func (handler *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "healthHandler.score")
	defer span.End()

	profileID, err := profileIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	score, err := handler.analyzer.Score(ctx, profileID)
	if err != nil {
		handleReportError(w, profileID, "score", err)
		return
	}

	writeReport(w, score)
}

func (handler *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "healthHandler.summary")
	defer span.End()

	profileID, err := profileIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := handler.analyzer.Summary(ctx, profileID)
	if err != nil {
		handleReportError(w, profileID, "summary", err)
		return
	}

	writeReport(w, summary)
}

func profileIDFromRequest(r *http.Request) (int, error) {
	profileIDStr := mux.Vars(r)["profileId"]
	if profileIDStr == "" {
		return 0, errors.New("error, profile id empty")
	}
	profileID, err := strconv.Atoi(profileIDStr)
	if err != nil || profileID <= 0 {
		return 0, errors.New("error, invalid profile id")
	}
	return profileID, nil
}

func handleReportError(w http.ResponseWriter, profileID int, report string, err error) {
	switch {
	case errors.Is(err, profiles.ErrProfileNotFound):
		http.Error(w, "profile not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidAge):
		http.Error(w, "error, profile age not set", http.StatusBadRequest)
	default:
		log.Errorf("health %s for profile %d: %s", report, profileID, err)
		http.Error(w, "failed to compute health "+report, http.StatusInternalServerError)
	}
}

func writeReport(w http.ResponseWriter, report any) {
	reportJson, err := json.Marshal(report)
	if err != nil {
		log.Errorf("marshal health report: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, reportJson, http.StatusOK)
}
