package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/profile"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/store"
)

const shutdownTimeout = 10 * time.Second

var servePort int

// runner executes one pipeline run for the API.
type runner interface {
	Run(ctx context.Context, criteria model.SearchCriteria, skipExisting bool) (*model.RunResult, error)
}

// apiHandlers serves the JSON API over the store, the profile repository
// and the pipeline. Any field may be nil for routes that don't use it.
type apiHandlers struct {
	store    store.Store
	profiles *profile.Repository
	runner   runner
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		h := &apiHandlers{store: env.Store, profiles: env.Profiles, runner: env}
		router := buildRouter(ctx, h, cfg.Server.CORSOrigins)
		return startServer(ctx, router, resolvePort(servePort, cfg.Server.Port))
	},
}

// resolvePort returns the flag port when set, else the configured one.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// buildRouter wires the API routes.
func buildRouter(ctx context.Context, h *apiHandlers, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/leads", func(r chi.Router) {
		r.Get("/", h.listLeads)
		r.Get("/lookup", h.findLead)
		r.Get("/exists", h.leadExists)
	})

	r.Get("/profile", h.getProfile)
	r.Put("/profile", h.putProfile)

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.listRuns)
		r.Post("/", h.startRun(ctx))
		r.Get("/{id}", h.getRun)
	})

	return r
}

// startServer serves handler on port until ctx is done, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
	})
	return g.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func (h *apiHandlers) listLeads(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	leads, err := h.store.List(r.Context(), store.LeadFilter{
		Province: q.Get("province"),
		Industry: q.Get("industry"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		zap.L().Error("api: list leads failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	if leads == nil {
		leads = []model.CompanyData{}
	}
	writeJSON(w, http.StatusOK, leads)
}

// leadKey reads the company and province query parameters.
func leadKey(r *http.Request) (model.LeadKey, bool) {
	q := r.URL.Query()
	key := model.LeadKey{CompanyName: q.Get("company"), Province: q.Get("province")}
	return key, key.CompanyName != "" && key.Province != ""
}

func (h *apiHandlers) findLead(w http.ResponseWriter, r *http.Request) {
	key, ok := leadKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "company and province are required")
		return
	}
	lead, err := h.store.Find(r.Context(), key)
	if err != nil {
		zap.L().Error("api: find lead failed", zap.Stringer("lead", key), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *apiHandlers) leadExists(w http.ResponseWriter, r *http.Request) {
	key, ok := leadKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "company and province are required")
		return
	}
	exists, err := h.store.Exists(r.Context(), key)
	if err != nil {
		zap.L().Error("api: lead exists failed", zap.Stringer("lead", key), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (h *apiHandlers) getProfile(w http.ResponseWriter, _ *http.Request) {
	p, err := h.profiles.Load()
	if errors.Is(err, profile.ErrNoProfile) {
		writeError(w, http.StatusNotFound, "no profile saved")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// profileRequest is the body of PUT /profile. Keywords and interests are
// comma separated, as typed in a form.
type profileRequest struct {
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	CompanyName *string `json:"company_name"`
	Website     *string `json:"website"`
	Phone       *string `json:"phone"`
	Email       string  `json:"email"`
	Keywords    string  `json:"keywords"`
	Summary     *string `json:"summary"`
	Interests   string  `json:"interests"`
}

func (h *apiHandlers) putProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	saved, err := h.profiles.Save(model.UserProfile{
		Name:           req.Name,
		Role:           req.Role,
		CompanyName:    req.CompanyName,
		Website:        req.Website,
		Phone:          req.Phone,
		Email:          req.Email,
		Keywords:       model.SplitList(req.Keywords),
		Summary:        req.Summary,
		Interests:      model.SplitList(req.Interests),
		ParsingSuccess: true,
	})
	if err != nil {
		var verr *model.Error
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		zap.L().Error("api: save profile failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save profile")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// runRequest is the body of POST /runs.
type runRequest struct {
	model.SearchCriteria
	SkipExisting bool `json:"skip_existing"`
}

// startRun runs the pipeline synchronously and returns the run result. The
// run is bound to the server context, not the request.
func (h *apiHandlers) startRun(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validateCriteria(req.SearchCriteria); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := h.runner.Run(ctx, req.SearchCriteria, req.SkipExisting)
		switch {
		case errors.Is(err, profile.ErrNoProfile):
			writeError(w, http.StatusConflict, "no profile saved; PUT /profile first")
		case errors.Is(err, resilience.ErrExhausted) && result != nil:
			zap.L().Error("api: run finished with store unavailable", zap.String("run_id", result.RunID), zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "result": result})
		case err != nil:
			zap.L().Error("api: run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, result)
		}
	}
}

func (h *apiHandlers) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := h.store.ListRuns(r.Context(), store.RunFilter{Limit: limit, Offset: offset})
	if err != nil {
		zap.L().Error("api: list runs failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	if runs == nil {
		runs = []model.RunResult{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *apiHandlers) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
