package server

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/yurifrl/planillas/pkg/aportantes"
	"github.com/yurifrl/planillas/pkg/config"
	"github.com/yurifrl/planillas/pkg/importer"
	"github.com/yurifrl/planillas/pkg/service"
	"github.com/yurifrl/planillas/pkg/session"
)

// exposedHeaders are readable by browser clients on cross-origin responses.
const exposedHeaders = "X-Matches-Encontrados, X-Capital-Actual, X-Capital-Anterior, X-Interes-Actual, " +
	"X-Interes-Anterior, X-Total-Archivos-I, X-Errores, X-Guardado-BD, X-Fecha-Archivos, " +
	"X-Registros-Generados, X-Tiene-Cruce-Log, X-Acepto-Responsabilidad"

// Server exposes reconciliation, planilla extraction and contributor
// lookups over HTTP.
type Server struct {
	config    *config.Config
	logger    *log.Logger
	router    *gin.Engine
	importer  *importer.Importer
	processor *service.Processor
	sessions  session.Store[*aportantes.Table]
}

// New creates a new HTTP server
func New(cfg *config.Config, logger *log.Logger, processor *service.Processor, imp *importer.Importer, sessions session.Store[*aportantes.Table]) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger,
		router:    gin.New(),
		importer:  imp,
		processor: processor,
		sessions:  sessions,
	}
	s.setupRoutes()
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("listening", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) setupRoutes() {
	s.router.Use(s.withLogging(), s.withCORS(), s.withBodyLimit())

	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)

	cruce := s.router.Group("/cruce-log")
	{
		cruce.POST("/procesar", s.handleCruce)
		cruce.POST("/validar", s.handleValidate)
		cruce.GET("/historial", s.handleHistory)
		cruce.GET("/verificar/:fecha", s.handleVerify)
	}

	s.router.POST("/planillas/procesar", s.handlePlanillas)

	ap := s.router.Group("/aportantes")
	{
		ap.POST("/cargar", s.handleAportantesUpload)
		ap.GET("/:id/nits", s.handleNITs)
		ap.GET("/:id/nits/:nit", s.handleNITDetail)
		ap.GET("/:id/filtros", s.handleGeoFilters)
		ap.GET("/:id/municipios", s.handleMunicipios)
		ap.GET("/:id/filtrar", s.handleFilter)
		ap.GET("/:id/estadisticas", s.handleGeoStats)
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mensaje": "Procesador de planillas y cruce LOG bancario",
		"preset":  s.processor.Engine().Preset().Name,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
}

// --- helpers ---

// files collects the uploads of every named multipart field.
func files(c *gin.Context, fields ...string) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	var out []*multipart.FileHeader
	for _, f := range fields {
		out = append(out, form.File[f]...)
	}
	return out
}

// stageDetails copies uploads into run, expanding zip bundles.
func stageDetails(run *importer.Run, uploads []*multipart.FileHeader) error {
	for _, fh := range uploads {
		f, err := fh.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		_, err = run.AddDetail(fh.Filename, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func stageLedger(run *importer.Run, fh *multipart.FileHeader) error {
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return run.AddLedger(filepath.Base(fh.Filename), f)
}

// newRun creates a working directory for the request. Callers defer
// s.cleanup(run).
func (s *Server) newRun(c *gin.Context) (*importer.Run, bool) {
	run, err := s.importer.NewRun()
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, "failed to create working directory", err)
		return nil, false
	}
	return run, true
}

func (s *Server) cleanup(run *importer.Run) {
	if err := run.Cleanup(); err != nil {
		s.logger.Warn("failed to clean run", "run", run.ID, "err", err)
	}
}

// respondError logs the error and returns a minimal JSON error body.
func (s *Server) respondError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("request error", "status", status, "msg", message, "err", err, "method", c.Request.Method, "path", c.Request.URL.Path)
	} else {
		s.logger.Warn("request error", "status", status, "msg", message, "method", c.Request.Method, "path", c.Request.URL.Path)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"status": "error",
		"error":  message,
	})
}

// withLogging logs request start/end and recovers panics.
func (s *Server) withLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		s.logger.Debug("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "remote", c.ClientIP())
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "panic", rec, "method", c.Request.Method, "path", c.Request.URL.Path)
				s.respondError(c, http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec))
			}
		}()
		c.Next()
		s.logger.Debug("http response", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "took", time.Since(start))
	}
}

func (s *Server) withCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		h.Set("Access-Control-Expose-Headers", exposedHeaders)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) withBodyLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if max := s.config.Server.MaxUpload; max > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
