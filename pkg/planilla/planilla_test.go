package planilla

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	fw "github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/layout"
	"github.com/yurifrl/planillas/pkg/models"
)

func put(b *fw.Buffer, start, end int, s string) {
	b.Put(fw.FieldSpec{Start: start, End: end}, s)
}

func headerLine(name, nit string) string {
	b := fw.NewBuffer(491)
	put(b, 0, 5, "00001")
	put(b, 5, 6, "1")
	put(b, 8, 17, "899999054")
	put(b, 25, 69, name)
	put(b, 227, 236, nit)
	put(b, 244, 246, "01")
	put(b, 294, 308, "00000006345000")
	put(b, 470, 475, "00012")
	return b.String()
}

func amountLines() []string {
	aporte := fw.NewBuffer(40)
	put(aporte, 0, 6, "000002")
	put(aporte, 6, 19, "0000001500000")
	put(aporte, 19, 33, "00000000150000")

	mora := fw.NewBuffer(30)
	put(mora, 0, 14, "00000300000000")
	put(mora, 14, 23, "000005000")

	total := fw.NewBuffer(30)
	put(total, 0, 6, "000004")
	put(total, 6, 20, "00000000155000")
	return []string{aporte.String(), mora.String(), total.String()}
}

func planillaFile(name, nit string) []byte {
	lines := append([]string{headerLine(name, nit)}, amountLines()...)
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func newExtractor() *Extractor {
	return New(log.New(os.Stderr), layout.DefaultPlanilla(), fw.DefaultRepairer)
}

func TestExtract(t *testing.T) {
	e := newExtractor()
	p, err := e.Extract(planillaFile("MUNICIPIO DE GIRON", "890204802"), "/in/2025-06-02_1_x_I_2025-05.TXT")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := map[string]string{
		models.FileColumn:              "2025-06-02_1_x_I_2025-05.TXT",
		"Numero Del Registro":          "1",
		"No. Identificación ESAP":      "899999054",
		"Nombre Aportante":             "MUNICIPIO DE GIRON",
		"No. Identificación Aportante": "890204802",
		"Tipo de Aportante":            "1",
		"Teléfono":                     "6345000",
		"Total Empleados":              "12",
		"IBC":                          "1500000",
		"Aporte Obligatorio":           "150000",
		"Mora Aportes":                 "5000",
		"Total Aportes":                "155000",
	}
	for name, v := range want {
		if got := p.Get(name); got != v {
			t.Errorf("%s = %q, want %q", name, got, v)
		}
	}
	if len(p.Values()) != len(e.Columns()) {
		t.Errorf("values %d, columns %d", len(p.Values()), len(e.Columns()))
	}
}

func TestExtractReordersLongFiles(t *testing.T) {
	amounts := amountLines()
	lines := []string{
		headerLine("CONCEJO", "800099000"),
		"detalle 1",
		amounts[0],
		"detalle 2",
		amounts[1],
		"detalle 3",
		amounts[2],
		"resto",
	}
	p, err := newExtractor().Extract([]byte(strings.Join(lines, "\n")), "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if p.Get("Total Aportes") != "155000" || p.Get("Mora Aportes") != "5000" {
		t.Errorf("amounts not taken from reordered lines: %v", p.Values())
	}
}

func TestExtractRepairsText(t *testing.T) {
	data := planillaFile("PEÃ‘A LTDA", "1")
	p, err := newExtractor().Extract(data, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Get("Nombre Aportante"); got != "PEÑA LTDA" {
		t.Errorf("name = %q", got)
	}
}

func TestExtractRepairsBeforeTrimming(t *testing.T) {
	header := fw.NewBuffer(69)
	put(header, 25, 69, "CAMPAÃ")
	lines := append([]string{header.String()}, amountLines()...)
	data := []byte(strings.Join(lines, "\n") + "\n")

	p, err := newExtractor().Extract(data, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Get("Nombre Aportante"); got != "CAMPAÑ" {
		t.Errorf("name = %q", got)
	}
}

func TestExtractTooFewLines(t *testing.T) {
	_, err := newExtractor().Extract([]byte("a\nb\nc\n"), "a.txt")
	if !errors.Is(err, ErrTooFewLines) {
		t.Errorf("err = %v", err)
	}
}

func TestExtractDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"b_I_.TXT":  planillaFile("B", "2"),
		"a_I_.TXT":  planillaFile("A", "1"),
		"c_I_.TXT":  []byte("corto\n"),
		"notes.csv": []byte("x"),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
			t.Fatal(err)
		}
	}

	records, failures, err := newExtractor().ExtractDir(dir, func(n string) bool { return strings.HasSuffix(n, ".TXT") })
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].File != "a_I_.TXT" || records[1].File != "b_I_.TXT" {
		t.Errorf("records = %v", records)
	}
	if len(failures) != 1 || failures[0].File != "c_I_.TXT" || !errors.Is(failures[0].Err, ErrTooFewLines) {
		t.Errorf("failures = %v", failures)
	}
}

func TestWriteXLSX(t *testing.T) {
	e := newExtractor()
	p, err := e.Extract(planillaFile("MUNICIPIO DE GIRON", "890204802"), "a.txt")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, e.Columns(), []models.Planilla{*p}); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][0] != models.FileColumn || rows[1][0] != "a.txt" {
		t.Errorf("first column = %q, %q", rows[0][0], rows[1][0])
	}
}

func TestWriteCSVByNIT(t *testing.T) {
	e := newExtractor()
	a, _ := e.Extract(planillaFile("A", "111"), "a.txt")
	b, _ := e.Extract(planillaFile("B", "222"), "b.txt")

	var buf bytes.Buffer
	if err := WriteCSV(&buf, e.Columns(), []models.Planilla{*a, *b}, ByNIT("222")); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "b.txt,") {
		t.Errorf("csv = %q", buf.String())
	}
}
