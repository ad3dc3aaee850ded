// Package stubserver is an in-memory stand-in for the scheduling service,
// used for local development and end-to-end tests. It speaks the same REST
// surface and returns the same rejection details, so the client workflow's
// error classification can be exercised without the real backend.
package stubserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lorenzolpandolfo/agenda/internal/availability"
	"github.com/lorenzolpandolfo/agenda/internal/timewindow"
	"github.com/lorenzolpandolfo/agenda/pkg/logging"
)

// Rejection details, kept byte-for-byte identical to the production service
// so client-side classification behaves the same against the stub.
const (
	detailConflict         = "start_time and end_time are conflicting with another availability for this user."
	detailNotAuthorized    = "You are not authorized to perform this action."
	detailNotFound         = "Availability not found"
	detailNotSchedulable   = "This availability cannot be scheduled."
	detailCannotPerform    = "This user can not perform this action."
	detailDuplicate        = "This schedule already exists"
	detailNoAvailabilities = "No availabilities found."
	detailBadCredentials   = "Could not validate credentials"
	detailBadTransition    = "This status change is not allowed."
)

var stubTracer = otel.Tracer("agenda.internal.stubserver")

type ctxKey int

const userKey ctxKey = iota

// Server implements the scheduling service REST surface over a Store.
type Server struct {
	store    *Store
	secret   []byte
	tokenTTL time.Duration
	logger   *logging.Logger
	metrics  *Metrics
}

// New constructs a stub server. metrics may be nil.
func New(store *Store, secret string, tokenTTL time.Duration, logger *logging.Logger, metrics *Metrics) *Server {
	if store == nil {
		store = NewStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Server{
		store:    store,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		logger:   logger,
		metrics:  metrics,
	}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(auth chi.Router) {
		auth.Use(s.requireUser)
		auth.Post("/availabilities", s.handleCreateAvailability)
		auth.Get("/availabilities", s.handleListAvailabilities)
		auth.Post("/availabilities/change-status", s.handleChangeStatus)
		auth.Post("/schedule", s.handleCreateSchedule)
		auth.Get("/schedule", s.handleListSchedules)
	})

	return r
}

// observe records per-route request counters and a span per request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := stubTracer.Start(r.Context(), "stubserver.request")
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
			attribute.Int("http.status_code", ww.Status()),
		)
		s.metrics.ObserveRequest(r.Method+" "+r.URL.Path, strconv.Itoa(ww.Status()))
	})
}

type loginRequest struct {
	Email  string                  `json:"email"`
	Name   string                  `json:"name"`
	Role   availability.Role       `json:"role"`
	Status availability.UserStatus `json:"status"`
}

type loginResponse struct {
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	UserData     *availability.User `json:"user_data"`
}

// handleLogin is a development convenience: it registers the email on first
// sight with the requested role and status, then issues a signed token. The
// production auth flow is out of scope here.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeDetail(w, http.StatusBadRequest, "email is required")
		return
	}
	if req.Role == "" {
		req.Role = availability.RolePatient
	}
	if req.Status == "" {
		if req.Role == availability.RoleProfessional {
			req.Status = availability.UserStatusWaitingValidation
		} else {
			req.Status = availability.UserStatusReady
		}
	}
	if req.Name == "" {
		req.Name = strings.SplitN(req.Email, "@", 2)[0]
	}

	user := s.store.FindOrCreateUser(req.Email, req.Name, req.Role, req.Status)
	token, err := s.issueToken(user.ID)
	if err != nil {
		s.logger.Error("issue token failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  token,
		RefreshToken: token,
		UserData:     user,
	})
}

func (s *Server) issueToken(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"subject": map[string]interface{}{"user_id": userID.String()},
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// requireUser validates the bearer token and loads the authenticated user
// into the request context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			writeDetail(w, http.StatusUnauthorized, detailBadCredentials)
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			writeDetail(w, http.StatusUnauthorized, detailBadCredentials)
			return
		}

		subject, _ := claims["subject"].(map[string]interface{})
		rawID, _ := subject["user_id"].(string)
		userID, err := uuid.Parse(rawID)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, detailBadCredentials)
			return
		}
		user, ok := s.store.UserByID(userID)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, detailBadCredentials)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

type createAvailabilityRequest struct {
	StartTime time.Time           `json:"start_time"`
	EndTime   time.Time           `json:"end_time"`
	Status    availability.Status `json:"status"`
}

func (s *Server) handleCreateAvailability(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if user.Role != availability.RoleProfessional {
		writeDetail(w, http.StatusForbidden, detailNotAuthorized)
		return
	}

	var req createAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	window, err := timewindow.FromInstants(req.StartTime, req.EndTime)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "end_time must be after start_time")
		return
	}

	created, err := s.store.CreateAvailability(user.ID, window)
	if err != nil {
		s.metrics.ObserveRejection("overlap")
		writeDetail(w, http.StatusConflict, detailConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"availability_id": created.ID.String()})
}

func (s *Server) handleListAvailabilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var ownerID uuid.UUID
	if raw := q.Get("professional_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid professional_id")
			return
		}
		ownerID = id
	}

	filter := timewindow.FilterAll
	if raw := q.Get("time_filter"); raw != "" {
		parsed, err := timewindow.ParseTimeFilter(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid time_filter")
			return
		}
		filter = parsed
	}

	var status availability.Status
	if raw := q.Get("status"); raw != "" {
		parsed, err := availability.ParseStatus(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid status")
			return
		}
		status = parsed
	}

	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	items := s.store.ListAvailabilities(ownerID, status, filter, skip, limit)
	if len(items) == 0 {
		writeDetail(w, http.StatusBadRequest, detailNoAvailabilities)
		return
	}

	out := make([]availabilityResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toAvailabilityResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type changeStatusRequest struct {
	AvailabilityID uuid.UUID           `json:"availability_id"`
	Status         availability.Status `json:"status"`
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if user.Role != availability.RoleProfessional {
		writeDetail(w, http.StatusForbidden, detailNotAuthorized)
		return
	}

	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.store.ChangeStatus(user.ID, req.AvailabilityID, req.Status)
	switch {
	case errors.Is(err, errAvailabilityGone):
		writeDetail(w, http.StatusNotFound, detailNotFound)
	case errors.Is(err, errNotOwner):
		writeDetail(w, http.StatusForbidden, detailNotAuthorized)
	case errors.Is(err, errOverlap):
		s.metrics.ObserveRejection("overlap")
		writeDetail(w, http.StatusConflict, detailConflict)
	case errors.Is(err, errIllegalTransition):
		s.metrics.ObserveRejection("illegal_transition")
		writeDetail(w, http.StatusBadRequest, detailBadTransition)
	case err != nil:
		writeDetail(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, toAvailabilityResponse(*updated))
	}
}

type createScheduleRequest struct {
	AvailabilityID uuid.UUID `json:"availability_id"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if user.Role != availability.RolePatient {
		writeDetail(w, http.StatusForbidden, detailCannotPerform)
		return
	}

	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sched, err := s.store.CreateSchedule(user.ID, req.AvailabilityID)
	switch {
	case errors.Is(err, errAvailabilityGone):
		writeDetail(w, http.StatusNotFound, detailNotFound)
	case errors.Is(err, errDuplicateSchedule):
		s.metrics.ObserveRejection("duplicate_schedule")
		writeDetail(w, http.StatusConflict, detailDuplicate)
	case errors.Is(err, errNotSchedulable):
		s.metrics.ObserveRejection("not_schedulable")
		writeDetail(w, http.StatusBadRequest, detailNotSchedulable)
	case err != nil:
		writeDetail(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"schedule_id": sched.ID.String()})
	}
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	filter := timewindow.FilterAll
	if raw := r.URL.Query().Get("time_filter"); raw != "" {
		parsed, err := timewindow.ParseTimeFilter(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid time_filter")
			return
		}
		filter = parsed
	}

	items := s.store.ListSchedules(user.ID, filter)
	out := make([]scheduleResponse, 0, len(items))
	for _, sched := range items {
		out = append(out, toScheduleResponse(sched))
	}
	writeJSON(w, http.StatusOK, out)
}
