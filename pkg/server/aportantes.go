package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yurifrl/planillas/pkg/aportantes"
)

func (s *Server) handleAportantesUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "file requerido", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "failed to open upload", err)
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "failed to read upload", err)
		return
	}

	table, err := aportantes.Load(data, fh.Filename)
	if errors.Is(err, aportantes.ErrMissingNIT) || errors.Is(err, aportantes.ErrUnsupported) {
		s.respondError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "no se pudo leer el archivo", err)
		return
	}

	id := s.sessions.Put(table)
	s.logger.Info("loaded aportantes", "session", id, "rows", table.Len(), "columns", len(table.Columns))
	c.JSON(http.StatusOK, gin.H{"session_id": id, "filas": table.Len(), "columnas": table.Columns})
}

func (s *Server) table(c *gin.Context) (*aportantes.Table, bool) {
	t, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, http.StatusNotFound, "sesión no encontrada", err)
		return nil, false
	}
	return t, true
}

func (s *Server) handleNITs(c *gin.Context) {
	if t, ok := s.table(c); ok {
		c.JSON(http.StatusOK, gin.H{"nits": t.NITs()})
	}
}

func (s *Server) handleNITDetail(c *gin.Context) {
	if t, ok := s.table(c); ok {
		c.JSON(http.StatusOK, gin.H{"nit": c.Param("nit"), "registros": t.DetailByNIT(c.Param("nit"))})
	}
}

func (s *Server) handleGeoFilters(c *gin.Context) {
	if t, ok := s.table(c); ok {
		c.JSON(http.StatusOK, t.GeoFilters())
	}
}

func (s *Server) handleMunicipios(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	dept := c.Query("departamento")
	if dept == "" {
		s.respondError(c, http.StatusBadRequest, "departamento requerido", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departamento": dept, "municipios": t.MunicipiosByDepartamento(dept)})
}

func (s *Server) handleFilter(c *gin.Context) {
	if t, ok := s.table(c); ok {
		nits := t.FilterNITs(c.Query("departamento"), c.Query("municipio"))
		c.JSON(http.StatusOK, gin.H{"nits": nits, "total": len(nits)})
	}
}

func (s *Server) handleGeoStats(c *gin.Context) {
	if t, ok := s.table(c); ok {
		c.JSON(http.StatusOK, t.GeoStats())
	}
}
