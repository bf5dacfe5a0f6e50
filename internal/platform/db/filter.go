package db

import (
	"fmt"
	"strings"
)

// Filter accumulates AND-ed predicates for a search query. Clauses use ? as
// the argument placeholder; Add rewrites each one to the next $n.
type Filter struct {
	clauses []string
	args    []any
}

func (f *Filter) Add(clause string, args ...any) {
	var b strings.Builder
	n := 0
	for _, r := range clause {
		if r == '?' && n < len(args) {
			f.args = append(f.args, args[n])
			fmt.Fprintf(&b, "$%d", len(f.args))
			n++
			continue
		}
		b.WriteRune(r)
	}
	f.clauses = append(f.clauses, b.String())
}

// Where renders the predicates, starting with " WHERE".
func (f *Filter) Where() string {
	if len(f.clauses) == 0 {
		return " WHERE 1=1"
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

func (f *Filter) Args() []any {
	return append([]any(nil), f.args...)
}

// Page renders LIMIT/OFFSET after the filter's arguments and returns the full
// argument list for the paged query.
func (f *Filter) Page(limit, offset int) (string, []any) {
	n := len(f.args)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), append(f.Args(), limit, offset)
}

// Contains builds an ILIKE pattern matching s anywhere, with LIKE
// metacharacters in s escaped.
func Contains(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
