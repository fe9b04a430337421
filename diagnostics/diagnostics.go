// Package diagnostics holds the advisory codes reported by the oracledb
// analyzer.
package diagnostics

import "sort"

// Severity is the level at which a code is reported.
type Severity int

const (
	SeverityHint Severity = iota + 1
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityHint:
		return "hint"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Code is an immutable diagnostic definition.
type Code struct {
	Code     string
	Message  string
	Severity Severity
}

var (
	rowTypeOmitted = Code{
		Code:     "ORACLEDB_901",
		Message:  "parameter 'rowType' should be explicitly passed when the return data is ignored",
		Severity: SeverityHint,
	}
	returnTypeOmitted = Code{
		Code:     "ORACLEDB_902",
		Message:  "parameter 'returnType' should be explicitly passed when the return data is ignored",
		Severity: SeverityHint,
	}
)

var codes = map[string]Code{
	rowTypeOmitted.Code:    rowTypeOmitted,
	returnTypeOmitted.Code: returnTypeOmitted,
}

// RowTypeOmitted is reported for queries whose rows are discarded without an
// explicit row type.
func RowTypeOmitted() Code { return rowTypeOmitted }

// ReturnTypeOmitted is the equivalent of RowTypeOmitted for procedure calls.
func ReturnTypeOmitted() Code { return returnTypeOmitted }

// Lookup returns the definition registered for code.
func Lookup(code string) (Code, bool) {
	c, ok := codes[code]
	return c, ok
}

// All returns every code, ordered by code.
func All() []Code {
	all := make([]Code, 0, len(codes))
	for _, c := range codes {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return all
}
