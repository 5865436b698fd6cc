package reconcile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/yurifrl/planillas/pkg/compare"
	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/layout"
	"github.com/yurifrl/planillas/pkg/models"
)

// Classification is the outcome of one pass over a ledger.
type Classification struct {
	Buckets     [4][]string
	Diagnostics models.Diagnostics
	Matches     int
	// EOL is the terminator used by the ledger, reused for the outputs.
	EOL string
}

// Lines returns the rewritten lines routed to b, in ledger order.
func (c *Classification) Lines(b models.Bucket) []string {
	return c.Buckets[b]
}

// Classifier routes ledger lines into the capital and interest buckets.
type Classifier struct {
	logger *log.Logger
	ledger layout.Ledger
}

func NewClassifier(logger *log.Logger, ledger layout.Ledger) *Classifier {
	return &Classifier{logger: logger, ledger: ledger}
}

// ClassifyReader streams a latin-1 ledger and classifies every data line
// against index. Lines dated on or after cutoff are current. Problems with
// individual lines become diagnostics; only read errors are returned.
func (c *Classifier) ClassifyReader(r io.Reader, index Lookup, cutoff time.Time) (*Classification, error) {
	out := &Classification{EOL: "\n"}
	br := bufio.NewReader(transform.NewReader(r, charmap.ISO8859_1.NewDecoder()))

	for n := 1; ; n++ {
		raw, err := br.ReadString('\n')
		if raw == "" && errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return out, fmt.Errorf("failed to read ledger line %d: %w", n, err)
		}
		if n == 1 && strings.HasSuffix(raw, "\r\n") {
			out.EOL = "\r\n"
		}
		if n > c.ledger.HeaderLines {
			c.classifyLine(out, n, strings.TrimRight(raw, "\r\n"), index, cutoff)
		}
		if err != nil {
			break
		}
	}

	c.logger.Debug("classified ledger", "matches", out.Matches, "diagnostics", len(out.Diagnostics))
	return out, nil
}

func (c *Classifier) classifyLine(out *Classification, n int, line string, index Lookup, cutoff time.Time) {
	if fixedwidth.Len(line) < c.ledger.MinWidth() {
		out.Diagnostics = append(out.Diagnostics, models.Diagnostic{Kind: models.KindTooShort, Line: n, Detail: strconv.Itoa(c.ledger.MinWidth())})
		return
	}

	key := c.ledger.Key.Extract(line)
	rec, ok := index.Lookup(key)
	if !ok {
		out.Diagnostics = append(out.Diagnostics, models.Diagnostic{Kind: models.KindUnmatched, Line: n, Key: key})
		return
	}
	out.Matches++

	raw := c.ledger.Date.Extract(line)
	date, err := time.Parse(c.ledger.DateFormat, raw)
	if err != nil {
		out.Diagnostics = append(out.Diagnostics, models.Diagnostic{Kind: models.KindBadDate, Line: n, Key: key, Detail: raw})
		return
	}
	current := !date.Before(cutoff)

	if rec.Empty() {
		out.Diagnostics = append(out.Diagnostics, models.Diagnostic{Kind: models.KindZeroAmounts, Line: n, Key: key})
		return
	}

	amount := c.ledger.Amount
	if fixedwidth.Len(line) < amount.End {
		out.Diagnostics = append(out.Diagnostics, models.Diagnostic{Kind: models.KindAmountFieldShort, Line: n, Key: key, Detail: strconv.Itoa(amount.End)})
		return
	}
	if existing, ok := compare.LedgerAmount(fixedwidth.Slice(line, amount.Start, amount.End), rec); !ok {
		out.Diagnostics = append(out.Diagnostics, models.Diagnostic{
			Kind:   models.KindLedgerMismatch,
			Line:   n,
			Key:    key,
			Detail: fmt.Sprintf("%d != %d", existing, rec.Total),
		})
	}

	// capital and interest each get their own copy of the line
	if rec.Capital > 0 {
		rewritten, _ := fixedwidth.RewriteAmount(line, amount, rec.Capital)
		b := models.BucketFor(false, current)
		out.Buckets[b] = append(out.Buckets[b], rewritten)
	}
	if rec.Interest > 0 {
		rewritten, _ := fixedwidth.RewriteAmount(line, amount, rec.Interest)
		b := models.BucketFor(true, current)
		out.Buckets[b] = append(out.Buckets[b], rewritten)
	}
	c.logger.Debug("classified line", "line", n, "key", key, "date", raw, "current", current, "capital", rec.Capital, "interest", rec.Interest)
}
