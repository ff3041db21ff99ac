package driver

import (
	"database/sql"
	"fmt"
	"strings"

	"dbconnect/internal/dberr"
)

// bindStyle is the placeholder dialect a driver expects on the wire.
type bindStyle int

const (
	styleDollar   bindStyle = iota // postgres: $1, $2
	styleQuestion                  // mysql: ?
	styleAt                        // sqlserver: @name + sql.Named
	styleColon                     // oracle, sqlite: :name + sql.Named
)

// bindNamed rewrites :name placeholders in query into the target style
// and produces the matching argument list. Placeholders inside string
// literals, quoted identifiers, comments and postgres ::casts are left
// untouched. Referencing a name absent from params is a query error;
// unreferenced params are ignored.
func bindNamed(style bindStyle, query string, params map[string]any) (string, []any, error) {
	var (
		out     strings.Builder
		args    []any
		ordinal = map[string]int{} // name -> $N / @name dedup
		named   = map[string]bool{}
	)
	out.Grow(len(query))

	i := 0
	n := len(query)
	for i < n {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := skipQuoted(query, i)
			out.WriteString(query[i:j])
			i = j
		case c == '-' && i+1 < n && query[i+1] == '-':
			j := strings.IndexByte(query[i:], '\n')
			if j < 0 {
				j = n - i
			}
			out.WriteString(query[i : i+j])
			i += j
		case c == '/' && i+1 < n && query[i+1] == '*':
			j := strings.Index(query[i+2:], "*/")
			if j < 0 {
				out.WriteString(query[i:])
				i = n
			} else {
				end := i + 2 + j + 2
				out.WriteString(query[i:end])
				i = end
			}
		case c == ':' && i+1 < n && query[i+1] == ':':
			// postgres cast
			out.WriteString("::")
			i += 2
		case c == ':' && i+1 < n && isIdentStart(query[i+1]):
			j := i + 1
			for j < n && isIdentPart(query[j]) {
				j++
			}
			name := query[i+1 : j]
			value, ok := params[name]
			if !ok {
				return "", nil, dberr.Newf(dberr.KindQuery, "statement references parameter %q but no value was provided", name)
			}
			switch style {
			case styleDollar:
				pos, seen := ordinal[name]
				if !seen {
					args = append(args, value)
					pos = len(args)
					ordinal[name] = pos
				}
				fmt.Fprintf(&out, "$%d", pos)
			case styleQuestion:
				args = append(args, value)
				out.WriteByte('?')
			case styleAt:
				if !named[name] {
					args = append(args, sql.Named(name, value))
					named[name] = true
				}
				out.WriteByte('@')
				out.WriteString(name)
			case styleColon:
				if !named[name] {
					args = append(args, sql.Named(name, value))
					named[name] = true
				}
				out.WriteByte(':')
				out.WriteString(name)
			}
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), args, nil
}

// skipQuoted returns the index just past the literal starting at i,
// honoring doubled-quote escapes. Unterminated literals run to the end.
func skipQuoted(query string, i int) int {
	quote := query[i]
	j := i + 1
	n := len(query)
	for j < n {
		if query[j] == quote {
			if j+1 < n && query[j+1] == quote {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return n
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
