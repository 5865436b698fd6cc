package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/layout"
)

// ErrKeyNotFound is returned when a file name does not carry a key.
var ErrKeyNotFound = errors.New("key not found")

// KeyExtractor derives the matching key of a detail file from its name.
type KeyExtractor interface {
	Extract(filename string) (string, error)
}

// RegexPair captures two numeric groups and keeps one of them.
type RegexPair struct {
	re    *regexp.Regexp
	group int
}

func (r *RegexPair) Extract(filename string) (string, error) {
	m := r.re.FindStringSubmatch(filepath.Base(filename))
	if m == nil || r.group >= len(m) || m[r.group] == "" {
		return "", fmt.Errorf("%s: %w", filename, ErrKeyNotFound)
	}
	return m[r.group], nil
}

// TokenSplit splits the name on a delimiter and keeps a positional token.
type TokenSplit struct {
	Delimiter string
	Index     int
}

func (t *TokenSplit) Extract(filename string) (string, error) {
	tokens := strings.Split(filepath.Base(filename), t.Delimiter)
	if t.Index >= len(tokens) || !fixedwidth.IsDigits(tokens[t.Index]) {
		return "", fmt.Errorf("%s: %w", filename, ErrKeyNotFound)
	}
	return tokens[t.Index], nil
}

// NewKeyExtractor builds the extractor configured by k.
func NewKeyExtractor(k layout.Key) (KeyExtractor, error) {
	switch k.Strategy {
	case layout.KeyRegexPair:
		re, err := regexp.Compile(k.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid key pattern: %w", err)
		}
		return &RegexPair{re: re, group: k.Group}, nil
	case layout.KeyToken:
		return &TokenSplit{Delimiter: k.Delimiter, Index: k.Token}, nil
	}
	return nil, fmt.Errorf("unknown key strategy %q", k.Strategy)
}
