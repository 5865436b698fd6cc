package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yurifrl/planillas/pkg/planilla"
	"github.com/yurifrl/planillas/pkg/service"
)

func (s *Server) handlePlanillas(c *gin.Context) {
	uploads := files(c, "archivos", "archivo")
	if len(uploads) == 0 {
		s.respondError(c, http.StatusBadRequest, "archivos requeridos", nil)
		return
	}
	confirmed := formBool(c, "confirmar", false) || formBool(c, "acepto_responsabilidad", false)
	format := c.DefaultQuery("formato", "xlsx")
	if format != "xlsx" && format != "csv" {
		s.respondError(c, http.StatusBadRequest, "formato debe ser xlsx o csv", nil)
		return
	}

	run, ok := s.newRun(c)
	if !ok {
		return
	}
	defer s.cleanup(run)

	if err := stageDetails(run, uploads); err != nil {
		s.respondError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	ctx := c.Request.Context()
	ex, err := s.processor.Extract(ctx, run.DetailDir(), run.Files, confirmed)
	if errors.Is(err, service.ErrNoCruce) {
		date := dateOrUnknown(ex.AsOf)
		c.JSON(http.StatusConflict, gin.H{
			"requires_confirmation": true,
			"fecha_archivos":        date,
			"tiene_cruce_log":       false,
			"mensaje": fmt.Sprintf("No se encontró cruce LOG bancario para la fecha %s. "+
				"Los datos de capital e interés no han sido validados con el sistema bancario. "+
				"Envíe confirmar=true para continuar bajo su responsabilidad.", date),
		})
		return
	}
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, "error al procesar planillas", err)
		return
	}

	columns := s.processor.Extractor().Columns()
	var buf bytes.Buffer
	contentType := planilla.ContentTypeXLSX
	if format == "csv" {
		contentType = "text/csv; charset=utf-8"
		err = planilla.WriteCSV(&buf, columns, ex.Records, nil)
	} else {
		err = planilla.WriteXLSX(&buf, columns, ex.Records)
	}
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, "error al generar archivo", err)
		return
	}
	s.processor.RecordExtraction(ctx, ex, len(run.Files), "")

	c.Header("X-Registros-Generados", strconv.Itoa(len(ex.Records)))
	c.Header("X-Fecha-Archivos", dateOrUnknown(ex.AsOf))
	c.Header("X-Tiene-Cruce-Log", strconv.FormatBool(ex.HasCruce))
	c.Header("X-Acepto-Responsabilidad", strconv.FormatBool(confirmed))
	c.Header("Content-Disposition", `attachment; filename="planillas_generadas.`+format+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
