package reconcile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/layout"
	"github.com/yurifrl/planillas/pkg/models"
)

var (
	keyField    = fixedwidth.FieldSpec{Start: 41, End: 51}
	dateField   = fixedwidth.FieldSpec{Start: 56, End: 64}
	amountField = fixedwidth.FieldSpec{Start: 73, End: 88}
	cutoff      = time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
)

type mapIndex map[string]*models.AmountRecord

func (m mapIndex) Lookup(key string) (*models.AmountRecord, bool) {
	r, ok := m[key]
	return r, ok
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func ledgerLine(key, date string, amount string) string {
	b := fixedwidth.NewBuffer(100)
	b.Put(fixedwidth.FieldSpec{Start: 0, End: 2}, "06")
	b.Put(keyField, key)
	b.Put(dateField, date)
	b.PutDigits(amountField, amount)
	b.Put(fixedwidth.FieldSpec{Start: 95, End: 100}, "FINAL")
	return b.String()
}

func ledger(lines ...string) string {
	all := append([]string{"01HEADER", "05LOTE"}, lines...)
	return strings.Join(all, "\n") + "\n"
}

func classify(t *testing.T, text string, index Lookup) *Classification {
	t.Helper()
	preset, _ := layout.Get(layout.RegexDigits)
	c := NewClassifier(testLogger(), preset.Ledger)
	out, err := c.ClassifyReader(strings.NewReader(text), index, cutoff)
	if err != nil {
		t.Fatalf("ClassifyReader: %v", err)
	}
	return out
}

func bucketSizes(c *Classification) [4]int {
	var n [4]int
	for i, b := range c.Buckets {
		n[i] = len(b)
	}
	return n
}

func TestCutoff(t *testing.T) {
	now := time.Date(2025, 6, 14, 15, 30, 0, 0, time.Local)
	if got := Cutoff(now, 2, 30); !got.Equal(cutoff) {
		t.Errorf("Cutoff = %s, want %s", got, cutoff)
	}
	if got := Cutoff(now, 0, 0); !got.Equal(time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("zero months should give today, got %s", got)
	}
}

func TestClassifyCurrentCapital(t *testing.T) {
	index := mapIndex{"123": {Key: "123", Capital: 855}}
	out := classify(t, ledger(ledgerLine("123", "20250601", "1")), index)

	if got := bucketSizes(out); got != [4]int{1, 0, 0, 0} {
		t.Fatalf("bucket sizes = %v", got)
	}
	line := out.Lines(models.CapitalCurrent)[0]
	if got := fixedwidth.Slice(line, 73, 88); got != "000000000000855" {
		t.Errorf("amount window = %q", got)
	}
	if out.Matches != 1 || len(out.Diagnostics) != 0 {
		t.Errorf("matches %d, diagnostics %v", out.Matches, out.Diagnostics)
	}
}

func TestClassifyPriorCapital(t *testing.T) {
	index := mapIndex{"123": {Key: "123", Capital: 855}}
	out := classify(t, ledger(ledgerLine("123", "20250101", "1")), index)
	if got := bucketSizes(out); got != [4]int{0, 1, 0, 0} {
		t.Fatalf("bucket sizes = %v", got)
	}
}

func TestClassifyCutoffDayIsCurrent(t *testing.T) {
	index := mapIndex{"123": {Key: "123", Interest: 10}}
	out := classify(t, ledger(ledgerLine("123", "20250415", "1"), ledgerLine("123", "20250414", "1")), index)
	if got := bucketSizes(out); got != [4]int{0, 0, 1, 1} {
		t.Fatalf("bucket sizes = %v", got)
	}
}

func TestClassifyZeroAmounts(t *testing.T) {
	index := mapIndex{"123": {Key: "123"}}
	out := classify(t, ledger(ledgerLine("123", "20250601", "1")), index)
	if got := bucketSizes(out); got != [4]int{} {
		t.Fatalf("bucket sizes = %v", got)
	}
	if len(out.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %v", out.Diagnostics)
	}
	d := out.Diagnostics[0]
	if d.Kind != models.KindZeroAmounts || d.Line != 3 {
		t.Errorf("unexpected diagnostic %+v", d)
	}
}

func TestClassifyUnmatched(t *testing.T) {
	index := mapIndex{"123": {Key: "123", Capital: 1}}
	out := classify(t, ledger(ledgerLine("999", "20250601", "1")), index)
	if got := bucketSizes(out); got != [4]int{} {
		t.Fatalf("bucket sizes = %v", got)
	}
	if out.Matches != 0 {
		t.Errorf("matches = %d", out.Matches)
	}
	if out.Diagnostics.Count(models.KindUnmatched) != 1 || out.Diagnostics[0].Key != "999" {
		t.Errorf("diagnostics = %v", out.Diagnostics)
	}
}

func TestClassifyMalformedLines(t *testing.T) {
	index := mapIndex{"123": {Key: "123", Capital: 5}}
	short := ledgerLine("123", "20250601", "1")[:60]
	badDate := ledgerLine("123", "2025AB01", "1")
	noAmount := ledgerLine("123", "20250601", "1")[:80]
	out := classify(t, ledger(short, badDate, noAmount, ""), index)

	kinds := []models.DiagnosticKind{models.KindTooShort, models.KindBadDate, models.KindAmountFieldShort, models.KindTooShort}
	if len(out.Diagnostics) != len(kinds) {
		t.Fatalf("diagnostics = %v", out.Diagnostics)
	}
	for i, k := range kinds {
		if out.Diagnostics[i].Kind != k || out.Diagnostics[i].Line != i+3 {
			t.Errorf("diagnostic %d = %+v, want kind %s on line %d", i, out.Diagnostics[i], k, i+3)
		}
	}
	if out.Matches != 2 {
		t.Errorf("matches = %d, want 2", out.Matches)
	}
}

func TestClassifyBothKindsUseSeparateCopies(t *testing.T) {
	index := mapIndex{"123": {Key: "123", Capital: 855, Interest: 42}}
	original := ledgerLine("123", "20250601", "999")
	out := classify(t, ledger(original), index)

	if got := bucketSizes(out); got != [4]int{1, 0, 1, 0} {
		t.Fatalf("bucket sizes = %v", got)
	}
	capLine := out.Lines(models.CapitalCurrent)[0]
	intLine := out.Lines(models.InterestCurrent)[0]
	if fixedwidth.Slice(capLine, 73, 88) != "000000000000855" || fixedwidth.Slice(intLine, 73, 88) != "000000000000042" {
		t.Errorf("amounts: %q %q", capLine, intLine)
	}
	for _, l := range []string{capLine, intLine} {
		if l[:73] != original[:73] || l[88:] != original[88:] {
			t.Errorf("bytes outside the amount window changed: %q", l)
		}
	}
}

func TestClassifyKeepsLedgerOrder(t *testing.T) {
	index := mapIndex{
		"1": {Key: "1", Capital: 1},
		"2": {Key: "2", Capital: 2},
		"3": {Key: "3", Capital: 3},
	}
	out := classify(t, ledger(
		ledgerLine("3", "20250601", "0"),
		ledgerLine("1", "20250601", "0"),
		ledgerLine("2", "20250601", "0"),
	), index)
	var keys []string
	for _, l := range out.Lines(models.CapitalCurrent) {
		keys = append(keys, strings.TrimSpace(fixedwidth.Slice(l, 41, 51)))
	}
	if strings.Join(keys, ",") != "3,1,2" {
		t.Errorf("order = %v", keys)
	}
}

func TestClassifyLedgerAmountMismatchIsWarning(t *testing.T) {
	index := mapIndex{"123": {Key: "123", Capital: 800, Interest: 55, Total: 855, HasTotal: true}}
	out := classify(t, ledger(ledgerLine("123", "20250601", "900")), index)
	if out.Diagnostics.Count(models.KindLedgerMismatch) != 1 {
		t.Errorf("diagnostics = %v", out.Diagnostics)
	}
	if got := bucketSizes(out); got != [4]int{1, 0, 1, 0} {
		t.Errorf("mismatch must not block routing, sizes = %v", got)
	}
}

func TestClassifyCRLF(t *testing.T) {
	index := mapIndex{"123": {Key: "123", Capital: 1}}
	text := strings.ReplaceAll(ledger(ledgerLine("123", "20250601", "0")), "\n", "\r\n")
	out := classify(t, text, index)
	if out.EOL != "\r\n" {
		t.Errorf("EOL = %q", out.EOL)
	}
	if l := out.Lines(models.CapitalCurrent)[0]; strings.ContainsAny(l, "\r\n") {
		t.Errorf("line kept its terminator: %q", l)
	}
}

func TestControlLines(t *testing.T) {
	preset, _ := layout.Get(layout.RegexDigits)
	g := NewControlGenerator(preset.Control, preset.Ledger.Amount)

	if got := g.Generate(nil); got != nil {
		t.Errorf("empty bucket produced %v", got)
	}

	bad := ledgerLine("1", "20250601", "0")
	bad = bad[:73] + "ABCDEFGHIJKLMNO" + bad[88:]
	lines := []string{
		ledgerLine("1", "20250601", "855"),
		ledgerLine("2", "20250601", "1200"),
		bad,
	}
	trailers := g.Generate(lines)
	if len(trailers) != 1 {
		t.Fatalf("trailers = %v", trailers)
	}
	tr := trailers[0]
	if len(tr) != 162 || tr[0] != '8' {
		t.Errorf("unexpected trailer %q", tr)
	}
	if tr[4:12] != "00000003" || tr[19:34] != "000000000002055" {
		t.Errorf("trailer fields %q %q", tr[4:12], tr[19:34])
	}
	count, sum, ok := ParseControl(tr, preset.Control.Records[0])
	if !ok || count != 3 || sum.IntPart() != 2055 {
		t.Errorf("ParseControl = %d %s %v", count, sum, ok)
	}
}

func TestControlLinesTwoRecords(t *testing.T) {
	preset, _ := layout.Get(layout.RegexDigits)
	preset.Control.Records = append(preset.Control.Records, layout.FileControl())
	g := NewControlGenerator(preset.Control, preset.Ledger.Amount)
	trailers := g.Generate([]string{ledgerLine("1", "20250601", "7")})
	if len(trailers) != 2 || trailers[0][0] != '8' || trailers[1][0] != '9' {
		t.Errorf("trailers = %q", trailers)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	preset, _ := layout.Get(layout.RegexDigits)
	e, err := New(testLogger(), preset)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestBuildIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2025-05-27_1_123_NI_9_PAESAP_86_I_2025-04.TXT"), "H\n0000000855\n000\nT\n")
	writeFile(t, filepath.Join(root, "sub", "2025-05-26_1_124_NI_9_PAESAP_86_I_2025-04.txt"), "H\n0000001000\n0000500\nT\n")
	writeFile(t, filepath.Join(root, "2025-05-27_1_125_NI_9_PAESAP_86_I_2025-04.txt"), "H\n0000001000\n")
	writeFile(t, filepath.Join(root, "2025-05-27_1_126_NI_9_PAESAP_86_A_2025-04.txt"), "H\n0000001000\n000\nT\n")
	writeFile(t, filepath.Join(root, "notes_I_.txt"), "H\n1\n2\n3\n")

	ix, err := BuildIndex(testLogger(), newEngine(t).parser, root)
	if err != nil {
		t.Fatal(err)
	}
	if ix.FilesScanned != 4 {
		t.Errorf("FilesScanned = %d, want 4", ix.FilesScanned)
	}
	if ix.Len() != 2 {
		t.Errorf("indexed = %v", ix.Keys())
	}
	rec, ok := ix.Lookup("124")
	if !ok || rec.Capital != 1000 || rec.Interest != 500 || rec.SourceFile != "2025-05-26_1_124_NI_9_PAESAP_86_I_2025-04.txt" {
		t.Errorf("record 124 = %+v", rec)
	}
	if ix.Errors.Count(models.KindTooFewLines) != 1 || ix.Errors.Count(models.KindKeyNotFound) != 1 {
		t.Errorf("errors = %v", ix.Errors)
	}
	for _, r := range ix.Records() {
		if r.Capital < 0 || r.Interest < 0 {
			t.Errorf("negative amounts in %+v", r)
		}
	}
}

func TestBuildIndexDuplicateKeyLastWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a_1_500_I_x.txt"), "H\n0000000001\n000\nT\n")
	writeFile(t, filepath.Join(root, "b_1_500_I_x.txt"), "H\n0000000002\n000\nT\n")

	ix, err := BuildIndex(testLogger(), newEngine(t).parser, root)
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := ix.Lookup("500")
	if rec.Capital != 2 || rec.SourceFile != "b_1_500_I_x.txt" {
		t.Errorf("record = %+v", rec)
	}
	if ix.Errors.Count(models.KindDuplicateKey) != 1 {
		t.Errorf("errors = %v", ix.Errors)
	}
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	details := filepath.Join(dir, "tipo_i")
	writeFile(t, filepath.Join(details, "2025-05-27_1_123_NI_9_PAESAP_86_I_2025-04.TXT"), "H\n0000000855\n000\nT\n")
	writeFile(t, filepath.Join(details, "2025-05-27_1_124_NI_9_PAESAP_86_I_2025-04.TXT"), "H\n")
	ledgerPath := filepath.Join(dir, "LOG.txt")
	writeFile(t, ledgerPath, ledger(
		ledgerLine("123", "20250601", "1"),
		ledgerLine("999", "20250601", "1"),
	))

	res, err := newEngine(t).Run(ledgerPath, details, cutoff)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := models.Statistics{
		MatchesFound:     1,
		CapitalCurrent:   1,
		TotalDetailFiles: 2,
		ErrorCount:       2,
	}
	if res.Stats != want {
		t.Errorf("stats = %+v, want %+v", res.Stats, want)
	}
	if len(res.Controls[models.CapitalCurrent]) != 1 || res.Controls[models.CapitalPrior] != nil {
		t.Errorf("controls = %v", res.Controls)
	}
	if res.Diagnostics.Count(models.KindTooFewLines) != 1 {
		t.Errorf("too few lines not reported: %v", res.Diagnostics)
	}
}

func TestRunMissingInputs(t *testing.T) {
	dir := t.TempDir()
	details := filepath.Join(dir, "tipo_i")
	writeFile(t, filepath.Join(details, "x_1_1_I_.txt"), "H\n")

	res, err := newEngine(t).Run(filepath.Join(dir, "missing.log"), details, cutoff)
	if !errors.Is(err, ErrLedgerNotFound) {
		t.Fatalf("err = %v", err)
	}
	if !res.Empty() || res.Stats.TotalDetailFiles != 1 || res.Stats.ErrorCount != 2 {
		t.Errorf("unexpected result %+v", res.Stats)
	}

	res, err = newEngine(t).Run(filepath.Join(dir, "missing.log"), filepath.Join(dir, "nope"), cutoff)
	if !errors.Is(err, ErrDetailDirNotFound) {
		t.Fatalf("err = %v", err)
	}
	if !res.Empty() || res.Stats.ErrorCount != 1 {
		t.Errorf("unexpected result %+v", res.Stats)
	}
}
