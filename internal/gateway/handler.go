// Package gateway is the local HTTP surface the UI talks to. It hosts the
// map controller, session and preferences behind a chi router and proxies
// entity reads to the ParaHub backend.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"parahub/client-go/internal/api"
	"parahub/client-go/internal/config"
	"parahub/client-go/internal/forms"
	"parahub/client-go/internal/mapctl"
	"parahub/client-go/internal/metrics"
	"parahub/client-go/internal/model"
	"parahub/client-go/internal/perf"
	"parahub/client-go/internal/prefs"
	"parahub/client-go/internal/routeguard"
	"parahub/client-go/internal/session"
)

// Auth is the backend authentication surface; *api.Client satisfies it.
type Auth interface {
	Register(ctx context.Context, username, email, password string) error
	VerifyEmail(ctx context.Context, email, code string) error
	RequestTwoFactor(ctx context.Context, email, password string) error
	LoginTwoFactor(ctx context.Context, email, code string) (model.AuthResponse, error)
}

// EntityReader is the backend read surface; *api.Client satisfies it.
type EntityReader interface {
	SpotByID(ctx context.Context, id int64) (model.Spot, error)
	TerrainPointsBySpot(ctx context.Context, spotID int64) ([]model.TerrainPoint, error)
}

type Handler struct {
	log     zerolog.Logger
	auth    Auth
	backend EntityReader
	session session.Provider
	ctrl    *mapctl.Controller
	store   *prefs.Store
	elev    forms.ElevationFetcher
	metrics *metrics.Metrics
	bus     *perf.Bus
	origins []string

	formMu      sync.Mutex
	spotForm    *forms.SpotForm
	terrainForm *forms.TerrainForm
}

// Options carries the optional collaborators of a Handler.
type Options struct {
	Elevation      forms.ElevationFetcher
	Metrics        *metrics.Metrics
	Bus            *perf.Bus
	AllowedOrigins []string
}

func NewHandler(log zerolog.Logger, auth Auth, backend EntityReader, sess session.Provider, ctrl *mapctl.Controller, store *prefs.Store, opts Options) *Handler {
	return &Handler{
		log:     log,
		auth:    auth,
		backend: backend,
		session: sess,
		ctrl:    ctrl,
		store:   store,
		elev:    opts.Elevation,
		metrics: opts.Metrics,
		bus:     opts.Bus,
		origins: opts.AllowedOrigins,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", h.handleRegister)
				r.Post("/verify", h.handleVerify)
				r.Post("/request-2fa", h.handleRequestTwoFactor)
				r.Post("/login-2fa", h.handleLoginTwoFactor)
				r.Post("/logout", h.handleLogout)
				r.Get("/me", h.handleMe)
			})

			r.Group(func(r chi.Router) {
				r.Use(routeguard.Middleware(h.session, routeguard.RequireUser))

				r.Route("/map", func(r chi.Router) {
					r.Get("/state", h.handleMapState)
					r.Post("/events/click", h.handleClick)
					r.Post("/events/pointer-move", h.handlePointerMove)
					r.Post("/events/context-click", h.handleContextClick)
					r.Post("/events/drag-start", h.handleDragStart)
					r.Post("/events/zoom-start", h.handleZoomStart)
					r.Post("/events/move-end", h.handleMoveEnd)
					r.Post("/menu/add-spot", h.handleMenuAddSpot)
					r.Post("/menu/add-terrain-point", h.handleMenuAddTerrainPoint)
					r.Post("/layer", h.handleSetLayer)
					r.Post("/elevation-readout", h.handleElevationReadout)
				})

				r.Route("/spots", func(r chi.Router) {
					r.Get("/", h.handleListSpots)
					r.Post("/", h.handleCreateSpot)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", h.handleGetSpot)
						r.Get("/terrain-points", h.handleListTerrainPoints)
					})
				})

				r.Post("/terrain-points", h.handleCreateTerrainPoint)

				r.Route("/forms", func(r chi.Router) {
					r.Route("/spot", func(r chi.Router) {
						r.Post("/open", h.handleSpotFormOpen)
						r.Get("/", h.handleSpotFormDraft)
						r.Put("/", h.handleSpotFormEdit)
						r.Post("/submit", h.handleSpotFormSubmit)
					})
					r.Route("/terrain", func(r chi.Router) {
						r.Post("/open", h.handleTerrainFormOpen)
						r.Get("/", h.handleTerrainFormDraft)
						r.Put("/", h.handleTerrainFormEdit)
						r.Post("/select-spot", h.handleTerrainFormSelectSpot)
						r.Post("/submit", h.handleTerrainFormSubmit)
					})
				})

				r.Route("/preferences", func(r chi.Router) {
					r.Get("/", h.handleGetPreferences)
					r.Put("/", h.handlePutPreferences)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(routeguard.Middleware(h.session, routeguard.RequireAdmin))

				r.Route("/perf", func(r chi.Router) {
					r.Get("/entries", h.handlePerfEntries)
					r.Delete("/entries", h.handlePerfClear)
				})
			})
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("http_request")

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = r.URL.Path
		}
		h.metrics.ObserveHTTPRequest(r.Method, routePattern, ww.Status(), elapsed)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

// writeBackendError maps a backend failure to a local status: auth
// rejections keep their meaning, everything else is a bad gateway.
func (h *Handler) writeBackendError(w http.ResponseWriter, err error, msg string) {
	var se *api.StatusError
	if api.IsAuthError(err) && errors.As(err, &se) {
		h.writeError(w, se.StatusCode, "rejected", msg, map[string]any{"error": se.Body})
		return
	}
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		h.writeError(w, http.StatusNotFound, "not_found", msg, nil)
		return
	}
	h.writeError(w, http.StatusBadGateway, "backend_error", msg, map[string]any{"error": err.Error()})
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "prefs_unavailable", "preferences store not configured", nil)
		return
	}
	if _, err := h.store.Get(prefs.KeyToken); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "prefs_unavailable", "preferences store not ready", map[string]any{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "username, email and password are required", nil)
		return
	}

	if err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		h.writeBackendError(w, err, "registration failed")
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "verification_pending"})
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	if err := h.auth.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		h.writeBackendError(w, err, "verification failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "verified"})
}

type requestTwoFactorRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleRequestTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req requestTwoFactorRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	if err := h.auth.RequestTwoFactor(r.Context(), req.Email, req.Password); err != nil {
		h.writeBackendError(w, err, "credentials rejected")
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "code_sent"})
}

func (h *Handler) handleLoginTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	resp, err := h.auth.LoginTwoFactor(r.Context(), req.Email, req.Code)
	if err != nil {
		h.writeBackendError(w, err, "login failed")
		return
	}

	if err := h.session.Login(r.Context(), resp.AccessToken); err != nil {
		h.log.Error().Err(err).Msg("session establishment failed after login")
		h.writeError(w, http.StatusBadGateway, "session_failed", "could not establish session", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(); err != nil {
		h.log.Error().Err(err).Msg("logout failed")
		h.writeError(w, http.StatusInternalServerError, "logout_failed", "could not clear session", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user := h.session.CurrentUser()
	if user == nil {
		h.writeError(w, http.StatusUnauthorized, "not_authenticated", "no active session", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleMapState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

type latLngEvent struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *Handler) handleClick(w http.ResponseWriter, r *http.Request) {
	var ev latLngEvent
	if err := decodeJSONStrict(r, &ev); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	h.ctrl.Click(ev.Lat, ev.Lng)
	h.writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handlePointerMove(w http.ResponseWriter, r *http.Request) {
	var ev latLngEvent
	if err := decodeJSONStrict(r, &ev); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	h.ctrl.PointerMove(ev.Lat, ev.Lng)
	w.WriteHeader(http.StatusNoContent)
}

type contextClickEvent struct {
	ScreenX int     `json:"screenX"`
	ScreenY int     `json:"screenY"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func (h *Handler) handleContextClick(w http.ResponseWriter, r *http.Request) {
	var ev contextClickEvent
	if err := decodeJSONStrict(r, &ev); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	h.ctrl.ContextClick(ev.ScreenX, ev.ScreenY, ev.Lat, ev.Lng)
	h.writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleDragStart(w http.ResponseWriter, r *http.Request) {
	h.ctrl.DragStart()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleZoomStart(w http.ResponseWriter, r *http.Request) {
	h.ctrl.ZoomStart()
	w.WriteHeader(http.StatusNoContent)
}

type moveEndEvent struct {
	CenterLat float64 `json:"centerLat"`
	CenterLng float64 `json:"centerLng"`
	Zoom      int     `json:"zoom"`
}

func (h *Handler) handleMoveEnd(w http.ResponseWriter, r *http.Request) {
	var ev moveEndEvent
	if err := decodeJSONStrict(r, &ev); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	h.ctrl.MoveEnd(ev.CenterLat, ev.CenterLng, ev.Zoom)
	h.writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleMenuAddSpot(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.MenuAddSpot() {
		h.writeError(w, http.StatusConflict, "no_menu", "no context menu is open", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleMenuAddTerrainPoint(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.MenuAddTerrainPoint() {
		h.writeError(w, http.StatusConflict, "no_menu", "no context menu is open", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

type layerRequest struct {
	ID string `json:"id"`
}

func (h *Handler) handleSetLayer(w http.ResponseWriter, r *http.Request) {
	var req layerRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	h.ctrl.SetLayer(config.LayerID(req.ID))
	h.writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

type elevationReadoutRequest struct {
	Shown bool `json:"shown"`
}

func (h *Handler) handleElevationReadout(w http.ResponseWriter, r *http.Request) {
	var req elevationReadoutRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	h.ctrl.SetElevationShown(req.Shown)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSpots(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ctrl.Spots())
}

func (h *Handler) handleCreateSpot(w http.ResponseWriter, r *http.Request) {
	var spot model.Spot
	if err := decodeJSONStrict(r, &spot); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if spot.Name == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "name is required", nil)
		return
	}

	created, err := h.ctrl.CreateSpot(r.Context(), spot)
	if err != nil {
		h.writeBackendError(w, err, "failed to create spot")
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetSpot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "spot id must be an integer", nil)
		return
	}

	spot, err := h.backend.SpotByID(r.Context(), id)
	if err != nil {
		h.writeBackendError(w, err, "spot not found")
		return
	}
	h.writeJSON(w, http.StatusOK, spot)
}

func (h *Handler) handleListTerrainPoints(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "spot id must be an integer", nil)
		return
	}

	points, err := h.backend.TerrainPointsBySpot(r.Context(), id)
	if err != nil {
		h.writeBackendError(w, err, "failed to list terrain points")
		return
	}
	h.writeJSON(w, http.StatusOK, points)
}

func (h *Handler) handleCreateTerrainPoint(w http.ResponseWriter, r *http.Request) {
	var tp model.TerrainPoint
	if err := decodeJSONStrict(r, &tp); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if tp.Name == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "name is required", nil)
		return
	}
	if !tp.Type.Valid() {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "unknown point type", map[string]any{"type": tp.Type})
		return
	}

	created, err := h.ctrl.CreateTerrainPoint(r.Context(), tp)
	if err != nil {
		h.writeBackendError(w, err, "failed to create terrain point")
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// handleSpotFormOpen starts a spot creation flow. The draft is seeded from
// the auto-fill preference and the coordinate captured on the map, if any;
// the elevation fill runs detached from this request so a slow lookup never
// blocks the modal.
func (h *Handler) handleSpotFormOpen(w http.ResponseWriter, r *http.Request) {
	f := forms.NewSpotForm(h.store.AutoFill(), h.ctrl.DraftOrigin(), h.elev, func(s model.Spot) {
		go func() {
			if _, err := h.ctrl.CreateSpot(context.Background(), s); err != nil {
				h.log.Error().Err(err).Str("name", s.Name).Msg("spot submission failed")
			}
		}()
	})

	h.formMu.Lock()
	h.spotForm = f
	h.formMu.Unlock()

	f.Open(context.Background())
	h.writeJSON(w, http.StatusOK, f.Draft())
}

func (h *Handler) openSpotForm(w http.ResponseWriter) *forms.SpotForm {
	h.formMu.Lock()
	f := h.spotForm
	h.formMu.Unlock()
	if f == nil {
		h.writeError(w, http.StatusConflict, "no_form", "no spot form is open", nil)
	}
	return f
}

func (h *Handler) handleSpotFormDraft(w http.ResponseWriter, r *http.Request) {
	f := h.openSpotForm(w)
	if f == nil {
		return
	}
	h.writeJSON(w, http.StatusOK, f.Draft())
}

func (h *Handler) handleSpotFormEdit(w http.ResponseWriter, r *http.Request) {
	f := h.openSpotForm(w)
	if f == nil {
		return
	}

	var draft model.Spot
	if err := decodeJSONStrict(r, &draft); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	f.Edit(func(d *model.Spot) { *d = draft })
	h.writeJSON(w, http.StatusOK, f.Draft())
}

func (h *Handler) handleSpotFormSubmit(w http.ResponseWriter, r *http.Request) {
	f := h.openSpotForm(w)
	if f == nil {
		return
	}

	if err := f.Submit(); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	h.formMu.Lock()
	h.spotForm = nil
	h.formMu.Unlock()
	h.ctrl.CloseForms()

	// Submission is fire-and-forget; the outcome arrives as a map notice.
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "submitted"})
}

func (h *Handler) handleTerrainFormOpen(w http.ResponseWriter, r *http.Request) {
	f := forms.NewTerrainForm(h.store.AutoFill(), h.ctrl.DraftOrigin(), h.ctrl.Spots(), h.elev, func(tp model.TerrainPoint) {
		go func() {
			if _, err := h.ctrl.CreateTerrainPoint(context.Background(), tp); err != nil {
				h.log.Error().Err(err).Str("name", tp.Name).Msg("terrain point submission failed")
			}
		}()
	})

	h.formMu.Lock()
	h.terrainForm = f
	h.formMu.Unlock()

	f.Open(context.Background())
	h.writeJSON(w, http.StatusOK, f.Draft())
}

func (h *Handler) openTerrainForm(w http.ResponseWriter) *forms.TerrainForm {
	h.formMu.Lock()
	f := h.terrainForm
	h.formMu.Unlock()
	if f == nil {
		h.writeError(w, http.StatusConflict, "no_form", "no terrain point form is open", nil)
	}
	return f
}

func (h *Handler) handleTerrainFormDraft(w http.ResponseWriter, r *http.Request) {
	f := h.openTerrainForm(w)
	if f == nil {
		return
	}
	h.writeJSON(w, http.StatusOK, f.Draft())
}

func (h *Handler) handleTerrainFormEdit(w http.ResponseWriter, r *http.Request) {
	f := h.openTerrainForm(w)
	if f == nil {
		return
	}

	var draft model.TerrainPoint
	if err := decodeJSONStrict(r, &draft); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	f.Edit(func(d *model.TerrainPoint) { *d = draft })
	h.writeJSON(w, http.StatusOK, f.Draft())
}

type selectSpotRequest struct {
	SpotID *int64 `json:"spotId"`
}

func (h *Handler) handleTerrainFormSelectSpot(w http.ResponseWriter, r *http.Request) {
	f := h.openTerrainForm(w)
	if f == nil {
		return
	}

	var req selectSpotRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if err := f.SelectSpot(req.SpotID); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}
	h.writeJSON(w, http.StatusOK, f.Draft())
}

func (h *Handler) handleTerrainFormSubmit(w http.ResponseWriter, r *http.Request) {
	f := h.openTerrainForm(w)
	if f == nil {
		return
	}

	if err := f.Submit(); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	h.formMu.Lock()
	h.terrainForm = nil
	h.formMu.Unlock()
	h.ctrl.CloseForms()

	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "submitted"})
}

type preferences struct {
	AutoFill    string `json:"autoFill"`
	PerfOverlay bool   `json:"perfOverlay"`
}

func (h *Handler) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, preferences{
		AutoFill:    string(h.store.AutoFill()),
		PerfOverlay: h.store.PerfOverlay(),
	})
}

type preferencesUpdate struct {
	AutoFill    *string `json:"autoFill,omitempty"`
	PerfOverlay *bool   `json:"perfOverlay,omitempty"`
}

func (h *Handler) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesUpdate
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	if req.AutoFill != nil {
		if err := h.store.SetAutoFill(prefs.ParseAutoFillMode(*req.AutoFill)); err != nil {
			h.writeError(w, http.StatusInternalServerError, "prefs_error", "failed to persist auto-fill mode", nil)
			return
		}
	}
	if req.PerfOverlay != nil {
		if err := h.store.SetPerfOverlay(*req.PerfOverlay); err != nil {
			h.writeError(w, http.StatusInternalServerError, "prefs_error", "failed to persist overlay preference", nil)
			return
		}
	}
	h.handleGetPreferences(w, r)
}

func (h *Handler) handlePerfEntries(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		h.writeJSON(w, http.StatusOK, []perf.Entry{})
		return
	}
	h.writeJSON(w, http.StatusOK, h.bus.Entries())
}

func (h *Handler) handlePerfClear(w http.ResponseWriter, r *http.Request) {
	if h.bus != nil {
		h.bus.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}
