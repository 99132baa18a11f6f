package matching

import (
	"fmt"
	"strings"

	"github.com/gould-simon/ai-accounting-job-matching/internal/apperror"
)

// Op enumerates the closed set of filter kinds. Anything else is rejected at
// parse time, never at query time.
type Op string

const (
	OpEq    Op = "eq"
	OpIn    Op = "in"
	OpRange Op = "range"
)

// Filter is one structured predicate on job metadata. The tagged shape keeps
// the predicate language closed: a field, one of three operators, and the
// operand slot that operator uses.
type Filter struct {
	Field  string   `json:"field"`
	Op     Op       `json:"op"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
	Min    *int64   `json:"min,omitempty"`
	Max    *int64   `json:"max,omitempty"`
}

// textFields supports eq (case-insensitive substring, the catalog's ILIKE
// convention) and in (case-insensitive membership).
var textFields = map[string]string{
	"location":   "j.location",
	"service":    "j.service",
	"seniority":  "j.seniority",
	"employment": "j.employment",
	"industry":   "j.industry",
}

// Validate rejects unknown fields, unknown operators, and operand shapes that
// do not fit the operator.
func Validate(filters []Filter) error {
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			if _, ok := textFields[f.Field]; !ok {
				return fmt.Errorf("%w: field %q does not support eq", apperror.ErrInvalidFilter, f.Field)
			}
			if strings.TrimSpace(f.Value) == "" {
				return fmt.Errorf("%w: eq on %q requires a value", apperror.ErrInvalidFilter, f.Field)
			}
		case OpIn:
			if _, ok := textFields[f.Field]; !ok {
				return fmt.Errorf("%w: field %q does not support in", apperror.ErrInvalidFilter, f.Field)
			}
			if len(f.Values) == 0 {
				return fmt.Errorf("%w: in on %q requires values", apperror.ErrInvalidFilter, f.Field)
			}
		case OpRange:
			if f.Field != "salary" {
				return fmt.Errorf("%w: field %q does not support range", apperror.ErrInvalidFilter, f.Field)
			}
			if f.Min == nil && f.Max == nil {
				return fmt.Errorf("%w: salary range requires min and/or max", apperror.ErrInvalidFilter)
			}
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				return fmt.Errorf("%w: salary range min exceeds max", apperror.ErrInvalidFilter)
			}
		default:
			return fmt.Errorf("%w: unknown op %q", apperror.ErrInvalidFilter, f.Op)
		}
	}
	return nil
}

// Compile renders the filters as SQL conditions over the catalog join alias
// "j". Returns the condition fragments and their bind arguments in order.
func Compile(filters []Filter) ([]string, []any, error) {
	if err := Validate(filters); err != nil {
		return nil, nil, err
	}

	var conds []string
	var args []any
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			conds = append(conds, textFields[f.Field]+" ILIKE ?")
			args = append(args, "%"+f.Value+"%")
		case OpIn:
			lowered := make([]string, 0, len(f.Values))
			for _, v := range f.Values {
				lowered = append(lowered, strings.ToLower(v))
			}
			conds = append(conds, "LOWER("+textFields[f.Field]+") IN ?")
			args = append(args, lowered)
		case OpRange:
			// Overlap semantics: the job's advertised band must intersect
			// the requested band.
			if f.Min != nil {
				conds = append(conds, "j.salary_max >= ?")
				args = append(args, *f.Min)
			}
			if f.Max != nil {
				conds = append(conds, "j.salary_min <= ?")
				args = append(args, *f.Max)
			}
		}
	}
	return conds, args, nil
}

// Matches mirrors the SQL semantics in memory. Used by tests and anywhere a
// candidate set needs re-checking without a round trip.
func (f Filter) Matches(c Candidate) bool {
	switch f.Op {
	case OpEq:
		return strings.Contains(strings.ToLower(c.fieldValue(f.Field)), strings.ToLower(f.Value))
	case OpIn:
		got := strings.ToLower(c.fieldValue(f.Field))
		for _, v := range f.Values {
			if got == strings.ToLower(v) {
				return true
			}
		}
		return false
	case OpRange:
		if f.Min != nil && c.SalaryMax < *f.Min {
			return false
		}
		if f.Max != nil && c.SalaryMin > *f.Max {
			return false
		}
		return true
	}
	return false
}
