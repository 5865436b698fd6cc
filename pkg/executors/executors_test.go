package executors

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/planillas/pkg/config"
	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/history"
	"github.com/yurifrl/planillas/pkg/layout"
	"github.com/yurifrl/planillas/pkg/plan"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func ledgerLine(key string) string {
	b := fixedwidth.NewBuffer(100)
	b.Put(fixedwidth.FieldSpec{Start: 41, End: 51}, key)
	b.Put(fixedwidth.FieldSpec{Start: 56, End: 64}, "20250601")
	b.PutDigits(fixedwidth.FieldSpec{Start: 73, End: 88}, "1")
	return b.String()
}

func setup(t *testing.T) (*Executor, *plan.Plan, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "junio", "2025-06-02_1_123_NI_9_PAESAP_86_I_2025-05.TXT"), "H\n0000000855\n000\nT\n")
	writeFile(t, filepath.Join(dir, "LOG.txt"), "01\n05\n"+ledgerLine("123")+"\n")
	manifest := "defaults:\n  months: 1\n  output_dir: out\nruns:\n  - name: junio\n    ledger: LOG.txt\n    details: junio\n"
	p, err := plan.Parse([]byte(manifest), dir)
	if err != nil {
		t.Fatal(err)
	}

	store, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{Cruce: config.CruceConfig{
		Months:         1,
		MonthDays:      30,
		Preset:         layout.RegexDigits,
		OutputEncoding: "latin1",
	}}
	return New(log.New(io.Discard), cfg, store), p, dir
}

func TestPlanThenApply(t *testing.T) {
	ctx := context.Background()
	exec, p, dir := setup(t)

	report, err := exec.Plan(ctx, p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if report.PendingCount() != 1 || report.Items[0].AsOf != "2025-06-02" || report.Totals().MatchesFound != 1 {
		t.Fatalf("plan report = %+v", report.Items)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Error("plan wrote output")
	}

	var buf bytes.Buffer
	Print(&buf, report)
	if !strings.Contains(buf.String(), "1 run(s) will be applied") {
		t.Errorf("preview = %q", buf.String())
	}

	applied, err := exec.Apply(ctx, p)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied.PendingCount() != 1 {
		t.Errorf("apply report = %+v", applied.Items)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "junio.zip")); err != nil {
		t.Errorf("archive not written: %v", err)
	}

	again, err := exec.Plan(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if again.RecordedCount() != 1 {
		t.Errorf("second plan = %+v", again.Items)
	}
	skipped, err := exec.Apply(ctx, p)
	if err != nil || skipped.RecordedCount() != 1 {
		t.Errorf("second apply = %+v, %v", skipped.Items, err)
	}
}

func TestPlanReportsFailures(t *testing.T) {
	exec, p, _ := setup(t)
	p.Runs[0].Preset = "nope"

	report, err := exec.Plan(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if report.FailedCount() != 1 || report.Items[0].Err == nil {
		t.Errorf("report = %+v", report.Items)
	}
}
