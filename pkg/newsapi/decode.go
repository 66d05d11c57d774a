package newsapi

import (
	"math"
	"sort"
	"strings"
)

// Dynamic decoding accepts either the caller-facing snake_case names or the wire names,
// e.g. page_size and pageSize. A nil value is the same as an absent key.

type fieldSpec struct {
	names  []string
	str    *string
	number *int
}

func (f fieldSpec) key() string { return f.names[0] }

// DecodeTopHeadlinesParams builds TopHeadlinesParams from a loosely typed map.
func DecodeTopHeadlinesParams(raw map[string]any) (TopHeadlinesParams, error) {
	var p TopHeadlinesParams
	err := decodeFields(raw, []fieldSpec{
		{names: []string{"q"}, str: &p.Q},
		{names: []string{"sources"}, str: &p.Sources},
		{names: []string{"language"}, str: &p.Language},
		{names: []string{"country"}, str: &p.Country},
		{names: []string{"category"}, str: &p.Category},
		{names: []string{"page_size", "pageSize"}, number: &p.PageSize},
	})
	return p, err
}

// DecodeEverythingParams builds EverythingParams from a loosely typed map.
func DecodeEverythingParams(raw map[string]any) (EverythingParams, error) {
	var p EverythingParams
	err := decodeFields(raw, []fieldSpec{
		{names: []string{"q"}, str: &p.Q},
		{names: []string{"sources"}, str: &p.Sources},
		{names: []string{"domains"}, str: &p.Domains},
		{names: []string{"exclude_domains", "excludeDomains"}, str: &p.ExcludeDomains},
		{names: []string{"from", "from_"}, str: &p.From},
		{names: []string{"to"}, str: &p.To},
		{names: []string{"language"}, str: &p.Language},
		{names: []string{"sort_by", "sortBy"}, str: &p.SortBy},
		{names: []string{"page_size", "pageSize"}, number: &p.PageSize},
	})
	return p, err
}

// DecodeSourcesParams builds SourcesParams from a loosely typed map.
func DecodeSourcesParams(raw map[string]any) (SourcesParams, error) {
	var p SourcesParams
	err := decodeFields(raw, []fieldSpec{
		{names: []string{"category"}, str: &p.Category},
		{names: []string{"language"}, str: &p.Language},
		{names: []string{"country"}, str: &p.Country},
	})
	return p, err
}

func decodeFields(raw map[string]any, fields []fieldSpec) error {
	known := make(map[string]fieldSpec, len(fields)*2)
	for _, f := range fields {
		for _, n := range f.names {
			known[n] = f
		}
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := raw[k]
		f, ok := known[strings.TrimSpace(k)]
		if !ok {
			return newParamError(k, v, ErrInvalidParameterValue, "unknown parameter "+k)
		}
		if v == nil {
			continue
		}
		if f.str != nil {
			s, ok := v.(string)
			if !ok {
				return newParamError(f.key(), v, ErrInvalidParameterType, f.key()+" must be a string")
			}
			*f.str = s
			continue
		}
		n, ok := asInt(v)
		if !ok {
			return newParamError(f.key(), v, ErrInvalidParameterType, f.key()+" must be an integer")
		}
		*f.number = n
	}
	return nil
}

// asInt accepts the integer kinds YAML and JSON decoders produce. Fractional floats
// and values that do not fit an int are rejected.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n < float64(math.MinInt) || n >= -float64(math.MinInt) {
			return 0, false
		}
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
