// Package query turns the loosely structured where/sort/select/skip/limit/count
// request parameters into a validated Descriptor that storage can execute.
package query

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidQuery = errors.New("invalid query")

// Params holds the raw, untyped list parameters. Each may be nil, a string, or
// an already structured value.
type Params struct {
	Where  any
	Sort   any
	Select any
	Skip   any
	Limit  any
	Count  any
}

type Options struct {
	Fields FieldSet
	// DefaultLimit applies when limit is absent or not numeric. 0 is unbounded.
	DefaultLimit int
	// MaxLimit caps every page when positive.
	MaxLimit int
}

type Descriptor struct {
	Filter     Filter
	Sort       []SortKey
	Projection Projection
	Skip       int
	Limit      int
	CountOnly  bool
}

// Translate validates p against opts. An unparseable where fails with
// ErrInvalidQuery; an unparseable sort or select is dropped. A document that
// parses but names an unknown field or operator, or carries a value of the
// wrong type, always fails.
func Translate(p Params, opts Options) (Descriptor, error) {
	var d Descriptor

	doc, present, err := parseDocument(p.Where)
	if err != nil {
		return Descriptor{}, invalidf("where must be an object")
	}
	if present {
		if d.Filter, err = parseFilter(doc, opts.Fields); err != nil {
			return Descriptor{}, err
		}
	}

	if d.CountOnly = parseBool(p.Count); d.CountOnly {
		return d, nil
	}

	if doc, present, err := parseDocument(p.Sort); err == nil && present {
		if d.Sort, err = parseSort(doc, opts.Fields); err != nil {
			return Descriptor{}, err
		}
	}

	if d.Projection, err = TranslateProjection(p.Select, opts.Fields); err != nil {
		return Descriptor{}, err
	}

	d.Skip = parseSkip(p.Skip)
	d.Limit = parseLimit(p.Limit, opts)
	return d, nil
}

// TranslateProjection parses a select parameter on its own, for single-record
// reads.
func TranslateProjection(raw any, fields FieldSet) (Projection, error) {
	doc, present, err := parseDocument(raw)
	if err != nil || !present {
		return Projection{}, nil
	}
	return parseProjection(doc, fields)
}

func parseSkip(raw any) int {
	n, ok := integer(raw)
	if !ok || n < 0 {
		return 0
	}
	return n
}

func parseLimit(raw any, opts Options) int {
	n, ok := integer(raw)
	if !ok {
		n = opts.DefaultLimit
	}
	if n < 0 {
		n = -n
	}
	if opts.MaxLimit > 0 && (n == 0 || n > opts.MaxLimit) {
		n = opts.MaxLimit
	}
	return n
}

func integer(raw any) (int, bool) {
	if s, ok := raw.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		raw = f
	}
	f, ok := number(raw)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	} else if f < -math.MaxInt32 {
		f = -math.MaxInt32
	}
	return int(f), true
}

func parseBool(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return false
}
