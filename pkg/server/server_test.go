package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yurifrl/planillas/pkg/aportantes"
	"github.com/yurifrl/planillas/pkg/archive"
	"github.com/yurifrl/planillas/pkg/config"
	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/history"
	"github.com/yurifrl/planillas/pkg/importer"
	"github.com/yurifrl/planillas/pkg/layout"
	"github.com/yurifrl/planillas/pkg/planilla"
	"github.com/yurifrl/planillas/pkg/reconcile"
	"github.com/yurifrl/planillas/pkg/service"
	"github.com/yurifrl/planillas/pkg/session"
)

const detailName = "2025-06-02_1_123_NI_9_PAESAP_86_I_2025-05.TXT"

func ledger() string {
	b := fixedwidth.NewBuffer(100)
	b.Put(fixedwidth.FieldSpec{Start: 0, End: 2}, "06")
	b.Put(fixedwidth.FieldSpec{Start: 41, End: 51}, "123")
	b.Put(fixedwidth.FieldSpec{Start: 56, End: 64}, "20250601")
	b.PutDigits(fixedwidth.FieldSpec{Start: 73, End: 88}, "1")
	return "01HEADER\n05LOTE\n" + b.String() + "\n"
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	logger := log.New(io.Discard)

	preset, _ := layout.Get(layout.RegexDigits)
	engine, err := reconcile.New(logger, preset)
	if err != nil {
		t.Fatal(err)
	}
	store, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{WorkDir: dir, Cruce: config.CruceConfig{Months: 1, MonthDays: 30}}
	processor := service.NewProcessor(logger, engine,
		archive.New(logger, fixedwidth.Latin1),
		planilla.New(logger, layout.DefaultPlanilla(), fixedwidth.DefaultRepairer),
		store, reconcile.DefaultMonthDays)
	return New(cfg, logger, processor, importer.New(filepath.Join(dir, "runs"), logger), session.New[*aportantes.Table](0))
}

type part struct {
	field, name, body string
}

func multipartRequest(t *testing.T, path string, parts []part, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.field, p.name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(w, p.body)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body %q: %v", rec.Body.String(), err)
	}
	return body
}

func cruceParts() []part {
	return []part{
		{"archivo_log", "LOG.txt", ledger()},
		{"archivos_tipo_i", detailName, "H\n0000000855\n042\nT\n"},
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestCruceFlow(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t, "/cruce-log/procesar", cruceParts(), map[string]string{"meses_referencia": "1"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("procesar = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/zip" {
		t.Errorf("content type = %s", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("X-Matches-Encontrados") != "1" || rec.Header().Get("X-Guardado-BD") != "true" {
		t.Errorf("headers = %v", rec.Header())
	}
	if rec.Header().Get("X-Fecha-Archivos") != "2025-06-02" {
		t.Errorf("fecha = %s", rec.Header().Get("X-Fecha-Archivos"))
	}

	rec = serve(s, multipartRequest(t, "/cruce-log/procesar", cruceParts(), nil))
	if rec.Code != http.StatusConflict || decode(t, rec)["requires_confirmation"] != true {
		t.Errorf("repeat = %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(s, multipartRequest(t, "/cruce-log/procesar", cruceParts(), map[string]string{"force": "true"}))
	if rec.Code != http.StatusOK {
		t.Errorf("forced = %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/cruce-log/historial?limite=10", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["total"] != float64(2) {
		t.Errorf("historial = %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/cruce-log/verificar/2025-06-02", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["tiene_cruce"] != true {
		t.Errorf("verificar = %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/cruce-log/verificar/2025-01-01", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["tiene_cruce"] != false {
		t.Errorf("verificar unknown = %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/cruce-log/verificar/junio", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("verificar bad date = %d", rec.Code)
	}
}

func TestCruceRequiresFiles(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, multipartRequest(t, "/cruce-log/procesar", cruceParts()[1:], nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing ledger = %d", rec.Code)
	}
	rec = serve(s, multipartRequest(t, "/cruce-log/procesar", cruceParts()[:1], nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing details = %d", rec.Code)
	}
	rec = serve(s, multipartRequest(t, "/cruce-log/procesar", cruceParts(), map[string]string{"meses_referencia": "-1"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative months = %d", rec.Code)
	}
}

func TestValidate(t *testing.T) {
	s := newTestServer(t)
	parts := append(cruceParts(), part{"archivos_tipo_i", "notas.txt", "x"})
	rec := serve(s, multipartRequest(t, "/cruce-log/validar", parts, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("validar = %d %s", rec.Code, rec.Body.String())
	}
	details := decode(t, rec)["archivos_txt"].(map[string]any)
	if details["total"] != float64(2) || details["archivos_tipo_i"] != float64(1) {
		t.Errorf("details = %v", details)
	}
}

func TestPlanillasNeedConfirmation(t *testing.T) {
	s := newTestServer(t)
	parts := []part{{"archivos", detailName, "H\n0000000855\n042\nT\n"}}

	rec := serve(s, multipartRequest(t, "/planillas/procesar", parts, nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("unconfirmed = %d %s", rec.Code, rec.Body.String())
	}
	if body := decode(t, rec); body["fecha_archivos"] != "2025-06-02" || body["tiene_cruce_log"] != false {
		t.Errorf("body = %v", body)
	}

	rec = serve(s, multipartRequest(t, "/planillas/procesar?formato=csv", parts, map[string]string{"confirmar": "true"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirmed = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Registros-Generados") != "1" || rec.Header().Get("X-Acepto-Responsabilidad") != "true" {
		t.Errorf("headers = %v", rec.Header())
	}
	if !strings.HasPrefix(rec.Body.String(), "Archivo,") {
		t.Errorf("csv = %q", rec.Body.String())
	}
}

func aportantesXLSX(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	rows := [][]any{
		{"NIT", "ENTIDAD", "DEPARTAMENTO", "MUNICIPIO"},
		{"890201222", "ALCALDIA BUCARAMANGA", "SANTANDER", "BUCARAMANGA"},
		{"99000123", "ALCALDIA LETICIA", "AMAZONAS", "LETICIA"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestAportantes(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, multipartRequest(t, "/aportantes/cargar", []part{{"file", "aportantes.xlsx", aportantesXLSX(t)}}, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("cargar = %d %s", rec.Code, rec.Body.String())
	}
	id, _ := decode(t, rec)["session_id"].(string)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/aportantes/"+id+"/nits", nil))
	nits, _ := decode(t, rec)["nits"].([]any)
	if len(nits) != 2 || nits[0] != "99000123" {
		t.Errorf("nits = %v", nits)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/aportantes/"+id+"/filtrar?departamento=SANTANDER", nil))
	if decode(t, rec)["total"] != float64(1) {
		t.Errorf("filtrar = %s", rec.Body.String())
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/aportantes/"+id+"/municipios", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("municipios without departamento = %d", rec.Code)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/aportantes/missing/nits", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session = %d", rec.Code)
	}

	rec = serve(s, multipartRequest(t, "/aportantes/cargar", []part{{"file", "notas.txt", "x"}}, nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported upload = %d", rec.Code)
	}
}
