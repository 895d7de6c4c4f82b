package sync

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// attrs нейтральная карта атрибутов операции. Ключи принимаются
// как в camelCase, так и в snake_case
type attrs map[string]any

func (a attrs) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := a[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (a attrs) has(keys ...string) bool {
	_, ok := a.lookup(keys...)
	return ok
}

func (a attrs) requireString(field string, keys ...string) (string, error) {
	v, ok := a.lookup(keys...)
	if !ok {
		return "", missing(field)
	}
	s, err := toString(v)
	if err != nil || strings.TrimSpace(s) == "" {
		return "", opErrorf(CodeInvalidPayload, "attribute %q must be a non-empty string", field)
	}
	return s, nil
}

func (a attrs) optString(field string, def string, keys ...string) (string, error) {
	v, ok := a.lookup(keys...)
	if !ok {
		return def, nil
	}
	s, err := toString(v)
	if err != nil {
		return "", opErrorf(CodeInvalidPayload, "attribute %q: %v", field, err)
	}
	return s, nil
}

func (a attrs) requireDecimal(field string, keys ...string) (decimal.Decimal, error) {
	v, ok := a.lookup(keys...)
	if !ok {
		return decimal.Decimal{}, missing(field)
	}
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Decimal{}, opErrorf(CodeInvalidPayload, "attribute %q: %v", field, err)
	}
	return d, nil
}

func (a attrs) optDecimal(field string, def decimal.Decimal, keys ...string) (decimal.Decimal, error) {
	if !a.has(keys...) {
		return def, nil
	}
	return a.requireDecimal(field, keys...)
}

func (a attrs) optNullDecimal(field string, def decimal.NullDecimal, keys ...string) (decimal.NullDecimal, error) {
	if !a.has(keys...) {
		return def, nil
	}
	d, err := a.requireDecimal(field, keys...)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func (a attrs) requireInt(field string, keys ...string) (int64, error) {
	v, ok := a.lookup(keys...)
	if !ok {
		return 0, missing(field)
	}
	n, err := toInt(v)
	if err != nil {
		return 0, opErrorf(CodeInvalidPayload, "attribute %q: %v", field, err)
	}
	return n, nil
}

func (a attrs) optBool(field string, def bool, keys ...string) (bool, error) {
	v, ok := a.lookup(keys...)
	if !ok {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, opErrorf(CodeInvalidPayload, "attribute %q: %v", field, err)
		}
		return parsed, nil
	default:
		return false, opErrorf(CodeInvalidPayload, "attribute %q must be a boolean", field)
	}
}

func (a attrs) optTime(field string, def time.Time, keys ...string) (time.Time, error) {
	v, ok := a.lookup(keys...)
	if !ok {
		return def, nil
	}
	s, err := toString(v)
	if err != nil {
		return time.Time{}, opErrorf(CodeInvalidPayload, "attribute %q: %v", field, err)
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return time.Time{}, &OpError{Code: CodeInvalidPayload, Err: fmt.Errorf("attribute %q: %w", field, err)}
	}
	return t, nil
}

// clientUpdatedAt метка updated_at, которую клиент видел перед изменением
func clientUpdatedAt(data map[string]any) (*time.Time, error) {
	v, ok := attrs(data).lookup("updated_at", "updatedAt")
	if !ok {
		return nil, nil
	}
	s, err := toString(v)
	if err != nil {
		return nil, opErrorf(CodeInvalidPayload, "attribute %q: %v", "updated_at", err)
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return nil, &OpError{Code: CodeInvalidPayload, Err: fmt.Errorf("attribute %q: %w", "updated_at", err)}
	}
	return &t, nil
}

func missing(field string) *OpError {
	return opErrorf(CodeInvalidPayload, "missing required attribute %q", field)
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(s), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case bool:
		return strconv.FormatBool(s), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// toDecimal разбирает десятичное значение из строкового представления.
// float64 из JSON форматируется кратчайшей записью, которая совпадает с исходным литералом
func toDecimal(v any) (decimal.Decimal, error) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(d))
	case json.Number:
		return decimal.NewFromString(d.String())
	case float64:
		return decimal.NewFromString(strconv.FormatFloat(d, 'f', -1, 64))
	case int:
		return decimal.NewFromInt(int64(d)), nil
	case int64:
		return decimal.NewFromInt(d), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported decimal type %T", v)
	}
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported integer type %T", v)
	}
}

func optionalString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timeValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return FormatTimestamp(t)
}
