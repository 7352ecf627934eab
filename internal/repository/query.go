package repository

import (
	"sort"
	"strconv"
	"strings"
)

// UserColumns is the column list selected for a user row, in scan order.
const UserColumns = `"user".id, "user".uid, "user".name, "user".email, "user".active, "user".admin, "user".auth_realm`

// Dialect describes how a store spells the pieces of the list query that differ
// between databases.
type Dialect struct {
	// RegexOp is the infix operator for regular expression matching, e.g. "REGEXP" or "~".
	RegexOp string

	// Placeholder returns the bind parameter for the n-th argument (1-based).
	Placeholder func(n int) string
}

// QuestionPlaceholder returns "?" for every argument.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder returns "$n".
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// BuildListUsersQuery builds the listing statement for filter. Filter values are
// always bound as parameters.
func BuildListUsersQuery(d Dialect, filter UserFilter) (string, []any) {
	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var where []string
	var args []any
	for _, field := range fields {
		value := filter[field]
		if value == "" {
			continue
		}
		switch field {
		case FilterUID:
			args = append(args, value)
			where = append(where, `"user".uid `+d.RegexOp+` `+d.Placeholder(len(args)))
		}
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + UserColumns + ` FROM "user"`)
	if len(where) > 0 {
		b.WriteString(` WHERE (` + strings.Join(where, `) AND (`) + `)`)
	}
	b.WriteString(` GROUP BY "user".id ORDER BY "user".uid`)

	return b.String(), args
}
