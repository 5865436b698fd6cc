package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yurifrl/planillas/pkg/history"
	"github.com/yurifrl/planillas/pkg/reconcile"
	"github.com/yurifrl/planillas/pkg/service"
)

// formBool reads a boolean form field, falling back to def when it is
// missing or unparseable.
func formBool(c *gin.Context, name string, def bool) bool {
	v, ok := c.GetPostForm(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (s *Server) handleCruce(c *gin.Context) {
	ledger, err := c.FormFile("archivo_log")
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "archivo_log requerido", err)
		return
	}
	details := files(c, "archivos_tipo_i", "archivos_txt")
	if len(details) == 0 {
		s.respondError(c, http.StatusBadRequest, "archivos_tipo_i requeridos", nil)
		return
	}
	months := s.config.Cruce.Months
	if v := c.PostForm("meses_referencia"); v != "" {
		months, err = strconv.Atoi(v)
		if err != nil || months < 0 {
			s.respondError(c, http.StatusBadRequest, "meses_referencia inválido", err)
			return
		}
	}
	persist := formBool(c, "guardar_en_bd", true)

	run, ok := s.newRun(c)
	if !ok {
		return
	}
	defer s.cleanup(run)

	if err := stageLedger(run, ledger); err != nil {
		s.respondError(c, http.StatusBadRequest, "failed to stage ledger", err)
		return
	}
	if err := stageDetails(run, details); err != nil {
		s.respondError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	opts := service.Options{Months: months, Persist: persist, Force: formBool(c, "force", false)}
	if persist {
		dir := filepath.Join(s.config.WorkDir, "resultados")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.respondError(c, http.StatusInternalServerError, "failed to create results directory", err)
			return
		}
		opts.OutputPath = filepath.Join(dir, run.ID+".zip")
	}

	out, err := s.processor.Reconcile(c.Request.Context(), service.InputFromRun(run), opts)
	switch {
	case errors.Is(err, service.ErrAlreadyProcessed):
		c.JSON(http.StatusConflict, gin.H{
			"requires_confirmation": true,
			"fecha_archivos":        out.AsOf,
			"mensaje":               fmt.Sprintf("Ya existe un cruce LOG para la fecha %s. Envíe force=true para procesarlo de nuevo.", out.AsOf),
		})
		return
	case errors.Is(err, reconcile.ErrLedgerNotFound), errors.Is(err, reconcile.ErrDetailDirNotFound):
		s.respondError(c, http.StatusBadRequest, err.Error(), err)
		return
	case err != nil:
		s.respondError(c, http.StatusInternalServerError, "error en el cruce", err)
		return
	}

	st := out.Stats
	c.Header("X-Matches-Encontrados", strconv.Itoa(st.MatchesFound))
	c.Header("X-Capital-Actual", strconv.Itoa(st.CapitalCurrent))
	c.Header("X-Capital-Anterior", strconv.Itoa(st.CapitalPrior))
	c.Header("X-Interes-Actual", strconv.Itoa(st.InterestCurrent))
	c.Header("X-Interes-Anterior", strconv.Itoa(st.InterestPrior))
	c.Header("X-Total-Archivos-I", strconv.Itoa(st.TotalDetailFiles))
	c.Header("X-Errores", strconv.Itoa(st.ErrorCount))
	c.Header("X-Guardado-BD", strconv.FormatBool(out.Saved))
	c.Header("X-Fecha-Archivos", dateOrUnknown(out.AsOf))

	name := "resultado_cruce_" + time.Now().Format("20060102_150405") + ".zip"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/zip", out.Archive)
}

func dateOrUnknown(d string) string {
	if d == "" {
		return "No identificada"
	}
	return d
}

func (s *Server) handleValidate(c *gin.Context) {
	ledger, err := c.FormFile("archivo_log")
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "archivo_log requerido", err)
		return
	}
	details := files(c, "archivos_tipo_i", "archivos_txt")

	run, ok := s.newRun(c)
	if !ok {
		return
	}
	defer s.cleanup(run)

	if err := stageLedger(run, ledger); err != nil {
		s.respondError(c, http.StatusBadRequest, "failed to stage ledger", err)
		return
	}
	if err := stageDetails(run, details); err != nil {
		s.respondError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	v, err := s.processor.Validate(c.Request.Context(), service.InputFromRun(run))
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, "error en validación", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limite", strconv.Itoa(history.DefaultLimit)))
	if err != nil || limit < 1 {
		s.respondError(c, http.StatusBadRequest, "limite inválido", err)
		return
	}
	runs, err := s.processor.History(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, "error al obtener historial", err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"total": len(runs), "cruces": runs})
}

func (s *Server) handleVerify(c *gin.Context) {
	date := c.Param("fecha")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		s.respondError(c, http.StatusBadRequest, "fecha inválida, use YYYY-MM-DD", err)
		return
	}
	run, err := s.processor.Verify(c.Request.Context(), date)
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"fecha": date, "tiene_cruce": false})
		return
	}
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, "error al verificar fecha", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fecha": date, "tiene_cruce": true, "cruce": run})
}
