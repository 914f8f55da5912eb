package sqlite

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"

	"github.com/mattn/go-sqlite3"
	moderncsqlite "modernc.org/sqlite"
)

// SQLite parses "x REGEXP y" but ships no implementation; both drivers get
// one backed by Go's regexp package. Compiled patterns are cached.
var patterns sync.Map

func matchRegexp(pattern string, value any) (bool, error) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return false, nil
	}
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(s), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	patterns.Store(pattern, re)
	return re.MatchString(s), nil
}

func init() {
	moderncsqlite.MustRegisterDeterministicScalarFunction("regexp", 2,
		func(_ *moderncsqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			pattern, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("regexp: pattern must be text, got %T", args[0])
			}
			matched, err := matchRegexp(pattern, args[1])
			if err != nil {
				return nil, err
			}
			if matched {
				return int64(1), nil
			}
			return int64(0), nil
		})

	sql.Register(DriverMattn, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", matchRegexp, true)
		},
	})
}
