package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mvasic/vitalog/internal/middleware"
	"github.com/mvasic/vitalog/internal/telemetry/metrics"
	"github.com/mvasic/vitalog/internal/telemetry/tracing"
	"github.com/mvasic/vitalog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=profiles_mocks_test.go -package=profiles_test

type profilesRepo interface {
	Create(ctx context.Context, profile Profile) (*Profile, error)
	Get(ctx context.Context, id int) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	Update(ctx context.Context, params UpdateParams) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context) ([]Profile, error)
}

// sessionService issues and revokes session tokens, backed by redis
type sessionService interface {
	Login(ctx context.Context, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type RegisterRequest struct {
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Password      string        `json:"password"`
	Age           int           `json:"age"`
	WeightKg      float64       `json:"weightKg"`
	HeightCm      float64       `json:"heightCm"`
	HealthGoal    HealthGoal    `json:"healthGoal"`
	ActivityLevel ActivityLevel `json:"activityLevel"`
}

type UpdateProfileRequest struct {
	Name          *string        `json:"name,omitempty"`
	Age           *int           `json:"age,omitempty"`
	WeightKg      *float64       `json:"weightKg,omitempty"`
	HeightCm      *float64       `json:"heightCm,omitempty"`
	HealthGoal    *HealthGoal    `json:"healthGoal,omitempty"`
	ActivityLevel *ActivityLevel `json:"activityLevel,omitempty"`
}

type DeleteProfileResponse struct {
	DeletedID int `json:"deletedId"`
}

type UpdateProfileResponse struct {
	UpdatedID int `json:"updatedId"`
}

type ListProfilesResponse struct {
	Profiles []Profile `json:"profiles"`
}

type Handler struct {
	repo        profilesRepo
	authService sessionService
	now         func() time.Time
}

func NewHandler(repo profilesRepo, authService sessionService) *Handler {
	return &Handler{
		repo:        repo,
		authService: authService,
		now:         time.Now,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	metricsManager *metrics.Manager,
	loginRateLimitAllowedPerMin int,
) {
	mainRouter.HandleFunc("/profiles", handler.HandleCreate).Methods("POST", "OPTIONS").Name("new-profile")
	mainRouter.HandleFunc("/profiles/register", handler.HandleRegister).Methods("POST", "OPTIONS").Name("register-profile")
	mainRouter.HandleFunc("/profiles", handler.HandleList).Methods("GET", "OPTIONS").Name("list-profiles")
	mainRouter.HandleFunc("/profiles/{id}", handler.HandleGet).Methods("GET", "OPTIONS").Name("get-profile")
	mainRouter.HandleFunc("/profiles/{id}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-profile")
	mainRouter.HandleFunc("/profiles/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-profile")

	loginSubrouter := mainRouter.PathPrefix("/a").Subrouter()
	loginSubrouter.
		HandleFunc("/login", handler.HandleLogin).
		Methods("POST", "OPTIONS").Name("login")
	loginSubrouter.
		HandleFunc("/logout", handler.HandleLogout).
		Methods("GET", "OPTIONS").Name("logout")

	// rate limit the /login and /logout endpoints to prevent abuse
	loginSubrouter.Use(middleware.RateLimit(rateLimiter, "login", loginRateLimitAllowedPerMin, metricsManager))
	loginSubrouter.Use(middleware.Cors())
}

// HandleCreate makes a new profile without a password, the onboarding
// flow collects name, stats and goals before any signup
func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profiles.new")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var profile Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		log.Tracef("new profile, unmarshal json params: %s", err)
		http.Error(w, "create profile failed", http.StatusBadRequest)
		return
	}

	if err := validateProfile(profile.Name, profile.Email, profile.Age); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	createdProfile, err := handler.repo.Create(ctx, profile)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			http.Error(w, "error, email already taken", http.StatusConflict)
			return
		}
		log.Errorf("failed to create profile [%s]: %s", profile.Email, err)
		http.Error(w, "error, failed to create profile", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(createdProfile)
	if err != nil {
		log.Errorf("failed to marshal new profile: %s", err)
		http.Error(w, "error, failed to create profile", http.StatusInternalServerError)
		return
	}

	log.Debugf("new profile created: %d [%s]", createdProfile.ID, createdProfile.Email)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, profileJson, http.StatusCreated)
}

func (handler *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profiles.register")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var registerReq RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&registerReq); err != nil {
		log.Tracef("register profile, unmarshal json params: %s", err)
		http.Error(w, "register failed", http.StatusBadRequest)
		return
	}

	if err := validateProfile(registerReq.Name, registerReq.Email, registerReq.Age); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(registerReq.Password) < 8 {
		http.Error(w, "error, password too short", http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(registerReq.Password)
	if err != nil {
		log.Errorf("register, hash password: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	createdProfile, err := handler.repo.Create(ctx, Profile{
		Name:          registerReq.Name,
		Email:         registerReq.Email,
		PasswordHash:  passwordHash,
		Age:           registerReq.Age,
		WeightKg:      registerReq.WeightKg,
		HeightCm:      registerReq.HeightCm,
		HealthGoal:    registerReq.HealthGoal,
		ActivityLevel: registerReq.ActivityLevel,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			http.Error(w, "error, email already taken", http.StatusConflict)
			return
		}
		log.Errorf("failed to register profile [%s]: %s", registerReq.Email, err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(createdProfile)
	if err != nil {
		log.Errorf("failed to marshal registered profile: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("new profile registered: %d [%s]", createdProfile.ID, createdProfile.Email)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, profileJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profiles.get")
	defer span.End()

	id, err := idFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get profile %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("failed to marshal profile: %s", err)
		http.Error(w, "failed to marshal profile", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, profileJson, http.StatusOK)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profiles.list")
	defer span.End()

	profilesList, err := handler.repo.List(ctx)
	if err != nil {
		log.Errorf("list profiles error: %s", err)
		http.Error(w, "failed to get profiles", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(ListProfilesResponse{
		Profiles: profilesList,
	})
	if err != nil {
		log.Errorf("marshal profiles error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profiles.update")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	id, err := idFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var updateReq UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&updateReq); err != nil {
		log.Tracef("update profile, unmarshal json params: %s", err)
		http.Error(w, "update profile failed", http.StatusBadRequest)
		return
	}

	if updateReq.Age != nil && *updateReq.Age <= 0 {
		http.Error(w, "error, invalid age", http.StatusBadRequest)
		return
	}

	err = handler.repo.Update(ctx, UpdateParams{
		ID:            id,
		Name:          updateReq.Name,
		Age:           updateReq.Age,
		WeightKg:      updateReq.WeightKg,
		HeightCm:      updateReq.HeightCm,
		HealthGoal:    updateReq.HealthGoal,
		ActivityLevel: updateReq.ActivityLevel,
	})
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update profile %d: %s", id, err)
		http.Error(w, "profile not updated", http.StatusInternalServerError)
		return
	}

	updateRespJson, err := json.Marshal(UpdateProfileResponse{
		UpdatedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, updateRespJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profiles.delete")
	defer span.End()

	id, err := idFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete profile %d: %s", id, err)
		http.Error(w, "profile not deleted", http.StatusInternalServerError)
		return
	}

	deleteRespJson, err := json.Marshal(DeleteProfileResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profiles.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	type loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	var loginReq loginRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
			log.Errorf("login, unmarshal json params: %s", err)
			http.Error(w, "login failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("login failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		loginReq = loginRequest{
			Email:    r.Form.Get("email"),
			Password: r.Form.Get("password"),
		}
	}

	if loginReq.Email == "" {
		http.Error(w, "error, email empty", http.StatusBadRequest)
		return
	}
	if loginReq.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return
	}

	profile, err := handler.repo.GetByEmail(ctx, loginReq.Email)
	if err != nil {
		logFailedLogin(r, loginReq.Email)
		http.Error(w, "error, wrong credentials", http.StatusBadRequest)
		return
	}

	if profile.PasswordHash == "" || !pkg.CheckPasswordHash(loginReq.Password, profile.PasswordHash) {
		logFailedLogin(r, loginReq.Email)
		http.Error(w, "error, wrong credentials", http.StatusBadRequest)
		return
	}

	token, err := handler.authService.Login(ctx, handler.now())
	if err != nil {
		log.Errorf("login failed, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	log.Tracef("new login success for profile %d", profile.ID)
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"token": "%s", "profileId": %d}`, token, profile.ID))
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profiles.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	authToken := middleware.BearerToken(r)
	if authToken == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	loggedOut, err := handler.authService.Logout(ctx, authToken)
	if err != nil {
		log.Tracef("[failed logout] => %s: %s", r.URL.Path, err)
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	if !loggedOut {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	log.Printf("logout for [%s] success", authToken)
	pkg.WriteTextResponseOK(w, "logged-out")
}

func validateProfile(name, email string, age int) error {
	if name == "" {
		return errors.New("error, name empty")
	}
	if email == "" {
		return errors.New("error, email empty")
	}
	if age < 0 {
		return errors.New("error, invalid age")
	}
	return nil
}

func logFailedLogin(r *http.Request, email string) {
	userIP, err := pkg.ReadUserIP(r)
	if err != nil {
		userIP = "unknown"
	}
	log.Tracef("failed login attempt for [%s] from %s", email, userIP)
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
