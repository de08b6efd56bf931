// Package router wires the HTTP endpoints of the migration service
package router

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelmig/internal/archive"
	"github.com/conduit-lang/modelmig/internal/batch"
	"github.com/conduit-lang/modelmig/internal/metamodel"
	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/web/auth"
	"github.com/conduit-lang/modelmig/internal/web/middleware"
	"github.com/conduit-lang/modelmig/internal/web/request"
	"github.com/conduit-lang/modelmig/internal/web/response"
)

// ArchiveFilename names the zip returned by a successful migration
const ArchiveFilename = "migrated-models.zip"

// Migrator is the engine behind the endpoints
type Migrator interface {
	Migrate(ctx context.Context, batchID string, files []batch.File) ([]byte, error)
	Catalogue() []metamodel.KindInfo
}

// Config configures the router
type Config struct {
	// APIPrefix is prepended to the migration routes, e.g. /api/v1
	APIPrefix      string
	MaxUploadBytes int64
	// Tokens enables bearer authentication on the migration routes when set
	Tokens *auth.TokenService
	Logger *zap.Logger
}

type handlers struct {
	migrator       Migrator
	maxUploadBytes int64
	logger         *zap.Logger
}

// New builds the HTTP handler of the service
func New(migrator Migrator, cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{
		migrator:       migrator,
		maxUploadBytes: cfg.MaxUploadBytes,
		logger:         logger,
	}

	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.RenderError(w, http.StatusNotFound, "Resource not found")
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	mux.Get("/healthz", h.health)
	mux.Route(cfg.APIPrefix+"/migrationservice", func(r chi.Router) {
		if cfg.Tokens != nil {
			r.Use(middleware.Auth(cfg.Tokens))
		}
		r.Post("/", h.migrate)
		r.Get("/catalogue", h.catalogue)
	})

	return middleware.NewChain(
		middleware.RequestID(),
		middleware.Logging(logger, "/healthz"),
		middleware.Recovery(logger),
	).Then(mux)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	response.RenderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) catalogue(w http.ResponseWriter, r *http.Request) {
	response.RenderJSON(w, http.StatusOK, map[string]interface{}{
		"kinds": h.migrator.Catalogue(),
	})
}

func (h *handlers) migrate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	logger := h.logger.With(zap.String("request_id", requestID))

	files, err := request.ReadModelFiles(w, r, h.maxUploadBytes)
	if err != nil {
		logger.Info("rejected upload", zap.Error(err))
		response.RenderBadRequest(w, err.Error())
		return
	}

	data, err := h.migrator.Migrate(r.Context(), requestID, files)
	if err != nil {
		var batchErr *migerr.BatchMigrationError
		if errors.As(err, &batchErr) {
			response.RenderMigrationError(w, batchErr)
			return
		}
		logger.Error("migration failed", zap.Error(err))
		response.RenderInternalError(w)
		return
	}

	w.Header().Set("Content-Type", archive.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+ArchiveFilename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Warn("failed to write archive", zap.Error(err))
	}
}
