package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	sqliteDialect   = Dialect{RegexOp: "REGEXP", Placeholder: QuestionPlaceholder}
	postgresDialect = Dialect{RegexOp: "~", Placeholder: DollarPlaceholder}
)

func TestBuildListUsersQuery_NoFilter(t *testing.T) {
	query, args := BuildListUsersQuery(sqliteDialect, nil)

	assert.Equal(t,
		`SELECT `+UserColumns+` FROM "user" GROUP BY "user".id ORDER BY "user".uid`,
		query)
	assert.Empty(t, args)
}

func TestBuildListUsersQuery_UIDFilter(t *testing.T) {
	query, args := BuildListUsersQuery(sqliteDialect, UserFilter{"uid": "^alice"})

	assert.Equal(t,
		`SELECT `+UserColumns+` FROM "user" WHERE ("user".uid REGEXP ?) GROUP BY "user".id ORDER BY "user".uid`,
		query)
	assert.Equal(t, []any{"^alice"}, args)
}

func TestBuildListUsersQuery_PostgresPlaceholders(t *testing.T) {
	query, args := BuildListUsersQuery(postgresDialect, UserFilter{"uid": "^b"})

	assert.Contains(t, query, `WHERE ("user".uid ~ $1)`)
	assert.Equal(t, []any{"^b"}, args)
}

func TestBuildListUsersQuery_IgnoresUnknownAndEmpty(t *testing.T) {
	query, args := BuildListUsersQuery(sqliteDialect, UserFilter{"bogus": "x", "uid": ""})

	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

func TestBuildListUsersQuery_ValueIsNeverInterpolated(t *testing.T) {
	value := `a' OR '1'='1`
	query, args := BuildListUsersQuery(sqliteDialect, UserFilter{"uid": value})

	assert.NotContains(t, query, value)
	assert.Equal(t, []any{value}, args)
}

func TestDollarPlaceholder(t *testing.T) {
	assert.Equal(t, "$1", DollarPlaceholder(1))
	assert.Equal(t, "$12", DollarPlaceholder(12))
}
