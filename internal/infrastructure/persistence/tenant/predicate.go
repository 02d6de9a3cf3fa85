package tenant

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"gorm.io/gorm/clause"
)

// predicate is what the WHERE clause of a statement says about the tenant column.
type predicate struct {
	// mentioned is true when any condition references the tenant column
	mentioned bool
	// values are the tenant ids the conditions pin the column to
	values []string
	// unverifiable is true when a condition references the column in a form
	// whose value cannot be determined (literals, <>, LIKE, NOT, named args)
	unverifiable bool
}

var notSuffix = regexp.MustCompile(`(?i)\bnot[\s(]*$`)

// inspector walks gorm clause expressions looking for the tenant column.
type inspector struct {
	column    string
	mention   *regexp.Regexp
	eqPattern *regexp.Regexp
}

func newInspector(column string) *inspector {
	quoted := regexp.QuoteMeta(column)
	return &inspector{
		column:  column,
		mention: regexp.MustCompile(`(?i)\b` + quoted + `\b`),
		// [table.]tenant_id = ?   |   [table.]tenant_id IN ?   |   [table.]tenant_id IN (?, ?, ...)
		eqPattern: regexp.MustCompile(`(?i)(?:[\w"` + "`" + `]+\.)?["` + "`" + `]?` + quoted + `["` + "`" + `]?\s*(?:=|\bin\b)\s*(\(\s*\?(?:\s*,\s*\?)*\s*\)|\?)`),
	}
}

func (in *inspector) inspect(exprs []clause.Expression) predicate {
	var p predicate
	for _, expr := range exprs {
		in.walk(expr, &p, false)
	}
	return p
}

func (in *inspector) walk(expr clause.Expression, p *predicate, negated bool) {
	switch e := expr.(type) {
	case clause.Eq:
		in.column0(e.Column, p, func() {
			if negated {
				p.unverifiable = true
				return
			}
			in.collect(e.Value, p)
		})
	case clause.IN:
		in.column0(e.Column, p, func() {
			if negated {
				p.unverifiable = true
				return
			}
			for _, v := range e.Values {
				in.collect(v, p)
			}
		})
	case clause.Neq:
		in.column0(e.Column, p, func() { p.unverifiable = true })
	case clause.Gt:
		in.column0(e.Column, p, func() { p.unverifiable = true })
	case clause.Gte:
		in.column0(e.Column, p, func() { p.unverifiable = true })
	case clause.Lt:
		in.column0(e.Column, p, func() { p.unverifiable = true })
	case clause.Lte:
		in.column0(e.Column, p, func() { p.unverifiable = true })
	case clause.Like:
		in.column0(e.Column, p, func() { p.unverifiable = true })
	case clause.AndConditions:
		for _, sub := range e.Exprs {
			in.walk(sub, p, negated)
		}
	case clause.OrConditions:
		for _, sub := range e.Exprs {
			in.walk(sub, p, negated)
		}
	case clause.NotConditions:
		for _, sub := range e.Exprs {
			in.walk(sub, p, true)
		}
	case clause.Expr:
		in.sqlExpr(e.SQL, e.Vars, p, negated)
	case clause.NamedExpr:
		if in.mention.MatchString(e.SQL) {
			p.mentioned = true
			p.unverifiable = true
		}
	}
}

func (in *inspector) column0(col interface{}, p *predicate, onMatch func()) {
	if !in.isColumn(col) {
		return
	}
	p.mentioned = true
	onMatch()
}

// isColumn reports whether col names the tenant column, with or without a
// table qualifier or identifier quotes.
func (in *inspector) isColumn(col interface{}) bool {
	var name string
	switch c := col.(type) {
	case clause.Column:
		name = c.Name
	case string:
		name = c
	default:
		return false
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Trim(name, "\"`[] ")
	return strings.EqualFold(name, in.column)
}

func (in *inspector) sqlExpr(sql string, vars []interface{}, p *predicate, negated bool) {
	mentions := in.mention.FindAllStringIndex(sql, -1)
	if len(mentions) == 0 {
		return
	}
	p.mentioned = true
	if negated {
		p.unverifiable = true
		return
	}

	matches := in.eqPattern.FindAllStringSubmatchIndex(sql, -1)
	if len(matches) != len(mentions) {
		// e.g. tenant_id = 't2', tenant_id <> ?, tenant_id LIKE ?
		p.unverifiable = true
		return
	}
	for _, m := range matches {
		if notSuffix.MatchString(sql[:m[0]]) {
			p.unverifiable = true
			return
		}
		// every placeholder of the list binds a tenant value
		first := strings.Count(sql[:m[2]], "?")
		n := strings.Count(sql[m[2]:m[3]], "?")
		if first+n > len(vars) {
			p.unverifiable = true
			return
		}
		for _, v := range vars[first : first+n] {
			in.collect(v, p)
		}
	}
}

// collect appends the tenant ids held by v. Slices contribute every element.
func (in *inspector) collect(v interface{}, p *predicate) {
	if v == nil {
		p.unverifiable = true
		return
	}
	if _, isExpr := v.(clause.Expression); isExpr {
		p.unverifiable = true
		return
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		if _, isValuer := v.(driver.Valuer); !isValuer {
			for i := 0; i < rv.Len(); i++ {
				in.collect(rv.Index(i).Interface(), p)
			}
			return
		}
	}
	s, ok := tenantString(v)
	if !ok {
		p.unverifiable = true
		return
	}
	p.values = append(p.values, s)
}

// tenantString renders a bound tenant value as a string.
func tenantString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case *string:
		if t == nil {
			return "", false
		}
		return *t, true
	case []byte:
		return string(t), true
	case fmt.Stringer:
		return t.String(), true
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return "", false
		}
		return tenantString(dv)
	}
	return "", false
}
