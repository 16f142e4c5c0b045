package catalog

import (
	"strconv"
	"strings"
	"time"
)

// decomposer is a decomposition strategy for one encoding.
type decomposer func(q *Queryable, cmp Comparison, value any) ([]Param, error)

// decomposers selects the strategy by encoding; the set is closed.
var decomposers = map[Encoding]decomposer{
	EncodingLiteral: decomposeLiteral,
	EncodingFlag:    decomposeFlag,
	EncodingCoded:   decomposeCoded,
	EncodingDate:    decomposeDate,
}

func decompose(q *Queryable, cmp Comparison, value any) ([]Param, error) {
	d, ok := decomposers[q.Encoding]
	if !ok {
		return nil, unsupportedComparison(q, cmp)
	}
	return d(q, cmp, value)
}

// decomposeLiteral sends the value unchanged: site=Cart_Site.
func decomposeLiteral(q *Queryable, cmp Comparison, value any) ([]Param, error) {
	if cmp != CompareEqual {
		return nil, unsupportedComparison(q, cmp)
	}
	s, err := stringValue(q, cmp, value)
	if err != nil {
		return nil, err
	}
	return []Param{{Name: q.Params[0].Name, Value: s}}, nil
}

// decomposeFlag turns the value into a parameter name set to the sentinel: AOD20=1.
func decomposeFlag(q *Queryable, cmp Comparison, value any) ([]Param, error) {
	if cmp != CompareEqual {
		return nil, unsupportedComparison(q, cmp)
	}
	s, err := stringValue(q, cmp, value)
	if err != nil {
		return nil, err
	}
	return []Param{{Name: s, Value: q.Sentinel, Ordinal: q.valueIndex(s)}}, nil
}

// decomposeCoded maps the value through the code table: format=csv -> if_no_html=1.
func decomposeCoded(q *Queryable, cmp Comparison, value any) ([]Param, error) {
	if cmp != CompareEqual {
		return nil, unsupportedComparison(q, cmp)
	}
	s, err := stringValue(q, cmp, value)
	if err != nil {
		return nil, err
	}
	return []Param{{Name: q.Params[0].Name, Value: q.Codes[s]}}, nil
}

// decomposeDate splits a timestamp into the parameter family of the bound it fills:
// t_after -> year/month/day, t_before -> year2/month2/day2.
func decomposeDate(q *Queryable, cmp Comparison, value any) ([]Param, error) {
	bound := BoundFor(cmp)
	if bound == BoundNone {
		return nil, unsupportedComparison(q, cmp)
	}

	var ts time.Time
	switch v := value.(type) {
	case time.Time:
		ts = v.UTC()
	case string:
		parsed, err := ParseTimestamp(v)
		if err != nil {
			return nil, invalidLiteral(q, cmp, value, "expected an ISO-8601 timestamp or date")
		}
		ts = parsed
	default:
		return nil, invalidLiteral(q, cmp, value, "expected an ISO-8601 timestamp or date")
	}

	params := make([]Param, 0, len(q.Params)/2)
	for i, rule := range q.Params {
		if rule.Bound != bound {
			continue
		}
		params = append(params, Param{
			Name:    rule.Name,
			Value:   datePart(ts, rule.Part),
			Bound:   bound,
			Ordinal: i,
		})
	}
	return params, nil
}

func stringValue(q *Queryable, cmp Comparison, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", invalidLiteral(q, cmp, value, "expected a string")
	}
	if strings.TrimSpace(s) == "" {
		return "", invalidLiteral(q, cmp, value, "value cannot be empty")
	}
	if !q.allows(s) {
		return "", invalidLiteral(q, cmp, value, "expected one of %v", q.Values)
	}
	return s, nil
}

func datePart(ts time.Time, part DatePart) string {
	switch part {
	case PartYear:
		return strconv.Itoa(ts.Year())
	case PartMonth:
		return strconv.Itoa(int(ts.Month()))
	case PartDay:
		return strconv.Itoa(ts.Day())
	case PartHour:
		return strconv.Itoa(ts.Hour())
	default:
		return ""
	}
}

// timestampLayouts are tried in order by ParseTimestamp.
// Layouts without a zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp or calendar date and normalizes it to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
