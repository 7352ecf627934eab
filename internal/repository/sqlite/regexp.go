package sqlite

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"

	msqlite "modernc.org/sqlite"
)

// maxPatterns caps the compiled pattern cache. The cache is dropped whole
// once full.
const maxPatterns = 64

var (
	registerOnce sync.Once
	registerErr  error

	patternsMu sync.Mutex
	patterns   = make(map[string]*regexp.Regexp)
)

// registerFunctions installs the regexp(pattern, value) function that backs the
// REGEXP operator. SQLite ships the operator but no implementation.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = msqlite.RegisterDeterministicScalarFunction("regexp", 2, regexpFunc)
	})
	return registerErr
}

func regexpFunc(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}

	pattern, ok := textValue(args[0])
	if !ok {
		return nil, fmt.Errorf("regexp: pattern must be text, got %T", args[0])
	}
	value, ok := textValue(args[1])
	if !ok {
		return nil, fmt.Errorf("regexp: value must be text, got %T", args[1])
	}

	re, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	if re.MatchString(value) {
		return int64(1), nil
	}
	return int64(0), nil
}

func textValue(v driver.Value) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

// compile returns the compiled pattern, reusing an earlier compilation so the
// per-row function does not recompile on every call.
func compile(pattern string) (*regexp.Regexp, error) {
	patternsMu.Lock()
	re, ok := patterns[pattern]
	patternsMu.Unlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regexp: %w", err)
	}

	patternsMu.Lock()
	if len(patterns) >= maxPatterns {
		patterns = make(map[string]*regexp.Regexp)
	}
	patterns[pattern] = re
	patternsMu.Unlock()
	return re, nil
}
