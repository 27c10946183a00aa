package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-quality/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
)

// Documents are plain nested maps with the same keys as the JSON tags on
// TableProfile and ValidationRule. Numbers in documents are int64 when
// integral and float64 otherwise; timestamps are RFC 3339 strings.

// ToMap converts the profile to a document.
func (p *TableProfile) ToMap() (map[string]any, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode profile document: %w", err)
	}
	return normalizeNumbers(doc).(map[string]any), nil
}

// ProfileFromMap converts a document to a profile and validates it.
// Unknown keys are rejected.
func ProfileFromMap(doc map[string]any) (*TableProfile, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedProfile, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var p TableProfile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedProfile, err)
	}
	p.normalizeValues()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseProfile reads a profile document encoded as YAML or JSON.
func ParseProfile(data []byte) (*TableProfile, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedProfile, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", apperrors.ErrMalformedProfile)
	}
	return ProfileFromMap(doc)
}

// Validate checks structural invariants of a profile.
func (p *TableProfile) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", apperrors.ErrMalformedProfile, fmt.Sprintf(format, args...))
	}
	if p.Table == "" {
		return fail("table is required")
	}
	if p.RowCount < 0 {
		return fail("row_count must be non-negative, got %d", p.RowCount)
	}
	if p.DuplicateCount < 0 || p.DuplicateCount > p.RowCount {
		return fail("duplicate_count %d out of range for row_count %d", p.DuplicateCount, p.RowCount)
	}

	known := make(map[string]bool, len(p.Columns))
	for _, c := range p.Columns {
		if c.Name == "" {
			return fail("column with empty name")
		}
		if known[c.Name] {
			return fail("duplicate column %q", c.Name)
		}
		known[c.Name] = true
		switch c.Kind {
		case dialect.KindNumeric, dialect.KindText, dialect.KindDate, dialect.KindOther:
		default:
			return fail("column %q has unknown kind %q", c.Name, c.Kind)
		}
	}

	for name, comp := range p.Completeness {
		if !known[name] {
			return fail("completeness for unknown column %q", name)
		}
		if comp.NullCount < 0 || comp.DistinctCount < 0 {
			return fail("column %q has negative counts", name)
		}
		if !inPercentRange(comp.NullPercentage) || !inPercentRange(comp.DistinctPercentage) {
			return fail("column %q has percentage outside [0, 100]", name)
		}
	}
	for _, names := range [][]string{keys(p.NumericStats), keys(p.TextStats), keys(p.DateStats)} {
		for _, name := range names {
			if !known[name] {
				return fail("statistics for unknown column %q", name)
			}
		}
	}

	for _, s := range p.SchemaShifts {
		switch s.Kind {
		case ShiftAdded, ShiftRemoved, ShiftTypeChanged:
		default:
			return fail("schema shift for %q has unknown kind %q", s.Column, s.Kind)
		}
	}
	for _, a := range p.Anomalies {
		switch a.Severity {
		case SeverityLow, SeverityMedium, SeverityHigh:
		default:
			return fail("anomaly %q has unknown severity %q", a.Metric, a.Severity)
		}
	}
	return nil
}

func inPercentRange(v float64) bool {
	return v >= 0 && v <= 100 && !math.IsNaN(v)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// normalizeValues replaces json.Number in untyped fields with int64 or float64.
func (p *TableProfile) normalizeValues() {
	for name, comp := range p.Completeness {
		for i := range comp.MostFrequent {
			comp.MostFrequent[i].Value = normalizeNumbers(comp.MostFrequent[i].Value)
		}
		p.Completeness[name] = comp
	}
	for i, row := range p.Samples {
		p.Samples[i] = normalizeNumbers(row).(map[string]any)
	}
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	case int:
		return int64(t)
	default:
		return v
	}
}

// DocumentValue converts a normalized query value to a document-safe value:
// decimals become int64 when integral and float64 otherwise, timestamps become
// RFC 3339 strings and non-finite floats become nil.
func DocumentValue(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		if t.IsInteger() && t.Abs().LessThan(decimal.New(1, 18)) {
			return t.IntPart()
		}
		return t.InexactFloat64()
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case []byte:
		return string(t)
	default:
		return v
	}
}

// RuleFromMap converts a rule document to a ValidationRule with defaults
// applied. expected_value defaults to 0 when the key is absent; an explicit
// null is kept.
func RuleFromMap(doc map[string]any) (ValidationRule, error) {
	var r ValidationRule
	for key, raw := range doc {
		switch key {
		case "name", "description", "query", "operator":
			s, ok := raw.(string)
			if !ok && raw != nil {
				return ValidationRule{}, fmt.Errorf("%w: field %q must be a string, got %T", apperrors.ErrMalformedRule, key, raw)
			}
			switch key {
			case "name":
				r.Name = strings.TrimSpace(s)
			case "description":
				r.Description = s
			case "query":
				r.Query = strings.TrimSpace(s)
			case "operator":
				r.Operator = strings.TrimSpace(s)
			}
		case "expected_value":
			r.ExpectedValue = normalizeNumbers(raw)
		}
	}
	if _, ok := doc["expected_value"]; !ok {
		r.ExpectedValue = int64(0)
	}
	if r.Name == "" {
		return ValidationRule{}, fmt.Errorf("%w: name is required", apperrors.ErrMalformedRule)
	}
	if r.Query == "" {
		return ValidationRule{}, fmt.Errorf("%w: rule %q has no query", apperrors.ErrMalformedRule, r.Name)
	}
	return r.WithDefaults(), nil
}

// RulesFromMaps converts rule documents and validates the batch.
func RulesFromMaps(docs []map[string]any) ([]ValidationRule, error) {
	rules := make([]ValidationRule, 0, len(docs))
	for i, doc := range docs {
		r, err := RuleFromMap(doc)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// ToMap converts the rule to a document.
func (r ValidationRule) ToMap() map[string]any {
	return map[string]any{
		"name":           r.Name,
		"description":    r.Description,
		"query":          r.Query,
		"operator":       r.Operator,
		"expected_value": r.ExpectedValue,
	}
}

// ParseRules reads rules encoded as YAML or JSON, either a list of rules
// or a mapping with a "rules" key.
func ParseRules(data []byte) ([]ValidationRule, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedRule, err)
	}
	if m, ok := doc.(map[string]any); ok {
		list, present := m["rules"]
		if !present {
			return nil, fmt.Errorf("%w: missing \"rules\" key", apperrors.ErrMalformedRule)
		}
		doc = list
	}
	if doc == nil {
		return []ValidationRule{}, nil
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of rules, got %T", apperrors.ErrMalformedRule, doc)
	}

	docs := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: rule %d is %T, not a mapping", apperrors.ErrMalformedRule, i, item)
		}
		docs = append(docs, m)
	}
	return RulesFromMaps(docs)
}

// MarshalRules encodes rules as a YAML document with a top-level "rules" key.
func MarshalRules(rules []ValidationRule) ([]byte, error) {
	docs := make([]map[string]any, len(rules))
	for i, r := range rules {
		docs[i] = r.ToMap()
	}
	out, err := yaml.Marshal(map[string]any{"rules": docs})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}
	return out, nil
}
