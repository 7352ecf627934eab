package sqlite

import (
	"database/sql/driver"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexpFunc(t *testing.T) {
	tests := []struct {
		name    string
		args    []driver.Value
		want    driver.Value
		wantErr bool
	}{
		{"match", []driver.Value{"^a", "alice"}, int64(1), false},
		{"no match", []driver.Value{"^a", "bob"}, int64(0), false},
		{"bytes", []driver.Value{[]byte("b$"), []byte("bob")}, int64(1), false},
		{"null value", []driver.Value{"^a", nil}, nil, false},
		{"bad pattern", []driver.Value{"(", "alice"}, nil, true},
		{"non text", []driver.Value{"^1", int64(1)}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := regexpFunc(nil, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_ReusesPattern(t *testing.T) {
	first, err := compile("^cached-[0-9]+$")
	require.NoError(t, err)
	second, err := compile("^cached-[0-9]+$")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = compile("(")
	require.Error(t, err)
}

func TestCompile_BoundedCache(t *testing.T) {
	for i := 0; i < maxPatterns*2; i++ {
		_, err := compile(fmt.Sprintf("^bounded-%d$", i))
		require.NoError(t, err)
	}

	patternsMu.Lock()
	defer patternsMu.Unlock()
	assert.LessOrEqual(t, len(patterns), maxPatterns)
}
