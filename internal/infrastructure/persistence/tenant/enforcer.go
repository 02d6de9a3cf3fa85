// Package tenant enforces tenant isolation on every GORM statement.
//
// Register installs callbacks that run before the query, row, raw, create,
// update and delete processors. For any statement touching a table with a
// tenant_id column the callbacks:
//
//   - reject the statement when the context carries no RequestContext
//   - verify every explicit tenant predicate against the context tenant
//   - AND the context tenant predicate into the WHERE clause
//   - fill or verify tenant_id on created rows and keep it out of SET lists
//
// Trusted internal callers reach the database through Platform, whose
// sessions skip the checks and are logged.
//
// Usage:
//
//	enforcer, err := tenant.Register(db, tenant.Options{Recorder: trail})
//	scoped := tenant.NewScope(db)
//	scoped.WithContext(ctx).Find(&items) // WHERE "menu_items"."tenant_id" = <ctx tenant>
package tenant

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/shared"
	"github.com/mise/backend/internal/domain/tenancy"
	"github.com/mise/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// DefaultColumn is the tenant discriminator column
const DefaultColumn = "tenant_id"

// ViolationRecorder receives an audit entry for every rejected tenant predicate.
type ViolationRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// DenialCounter counts rejected statements by reason.
type DenialCounter interface {
	Denied(ctx context.Context, reason string)
}

// Options configures the enforcer
type Options struct {
	// Column is the tenant column name (default: "tenant_id")
	Column string
	// Tables are checked even when the statement has no parsed model,
	// e.g. db.Table("orders").Find(&rows) into a map.
	Tables   []string
	Recorder ViolationRecorder
	Denials  DenialCounter
	Logger   *zap.Logger
}

type operation string

const (
	opQuery  operation = "query"
	opRow    operation = "row"
	opRaw    operation = "raw"
	opCreate operation = "create"
	opUpdate operation = "update"
	opDelete operation = "delete"
)

// Enforcer holds the registered isolation callbacks.
type Enforcer struct {
	column    string
	tables    map[string]struct{}
	rawTables *regexp.Regexp
	inspector *inspector
	recorder  ViolationRecorder
	denials   DenialCounter
	logger    *zap.Logger
}

// Register installs the isolation callbacks on db. It must be called once,
// before the database is shared. Schema migrations issue raw DDL against
// tenant tables, so run them before Register or through a Platform session.
func Register(db *gorm.DB, opts Options) (*Enforcer, error) {
	if opts.Column == "" {
		opts.Column = DefaultColumn
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := &Enforcer{
		column:    opts.Column,
		tables:    make(map[string]struct{}, len(opts.Tables)),
		inspector: newInspector(opts.Column),
		recorder:  opts.Recorder,
		denials:   opts.Denials,
		logger:    opts.Logger.Named("tenant"),
	}
	quoted := make([]string, 0, len(opts.Tables))
	for _, t := range opts.Tables {
		e.tables[t] = struct{}{}
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	if len(quoted) > 0 {
		e.rawTables = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}

	cb := db.Callback()
	steps := []struct {
		name string
		err  error
	}{
		{"query", cb.Query().Before("gorm:query").Register("tenant:before_query", e.hook(opQuery))},
		{"row", cb.Row().Before("gorm:row").Register("tenant:before_row", e.hook(opRow))},
		{"raw", cb.Raw().Before("gorm:raw").Register("tenant:before_raw", e.hook(opRaw))},
		{"create", cb.Create().Before("gorm:create").Register("tenant:before_create", e.hook(opCreate))},
		{"update", cb.Update().Before("gorm:update").Register("tenant:before_update", e.hook(opUpdate))},
		{"delete", cb.Delete().Before("gorm:delete").Register("tenant:before_delete", e.hook(opDelete))},
	}
	for _, s := range steps {
		if s.err != nil {
			return nil, fmt.Errorf("register tenant %s callback: %w", s.name, s.err)
		}
	}
	return e, nil
}

func (e *Enforcer) hook(op operation) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Error != nil {
			return
		}
		e.guard(db, op)
	}
}

func (e *Enforcer) guard(db *gorm.DB, op operation) {
	stmt := db.Statement
	raw := stmt.SQL.Len() > 0
	if !e.scoped(stmt) && !(raw && e.rawTables != nil && e.rawTables.MatchString(stmt.SQL.String())) {
		return
	}

	ctx := stmt.Context
	if reason, ok := bypassReason(ctx); ok {
		e.logger.Debug("Tenant isolation bypassed",
			zap.String("reason", reason),
			zap.String("operation", string(op)),
			zap.String("table", tableName(stmt)),
		)
		return
	}

	rc, ok := tenancy.FromContext(ctx)
	if !ok {
		e.count(ctx, "no_active_context")
		e.logger.Warn("Tenant-scoped statement without request context",
			zap.String("operation", string(op)),
			zap.String("table", tableName(stmt)),
		)
		_ = db.AddError(fmt.Errorf("%w: %s on %s", shared.ErrNoActiveContext, op, tableName(stmt)))
		return
	}

	if raw {
		e.violation(db, rc, op, "raw SQL on tenant-scoped table")
		return
	}

	switch op {
	case opCreate:
		e.guardCreate(db, rc)
		return
	case opUpdate:
		if !e.guardAssignments(db, rc) {
			return
		}
	}
	e.guardWhere(db, rc, op)
}

// scoped reports whether the statement targets a tenant-scoped table.
func (e *Enforcer) scoped(stmt *gorm.Statement) bool {
	if stmt.Schema != nil {
		if _, ok := stmt.Schema.FieldsByDBName[e.column]; ok {
			return true
		}
	}
	_, ok := e.tables[tableName(stmt)]
	return ok
}

func (e *Enforcer) guardWhere(db *gorm.DB, rc tenancy.RequestContext, op operation) {
	stmt := db.Statement
	var exprs []clause.Expression
	c, hasWhere := stmt.Clauses["WHERE"]
	if hasWhere {
		if where, ok := c.Expression.(clause.Where); ok {
			exprs = where.Exprs
		}
	}

	p := e.inspector.inspect(exprs)
	if p.unverifiable {
		e.violation(db, rc, op, "tenant predicate cannot be verified")
		return
	}
	for _, v := range p.values {
		if v != rc.TenantID() {
			e.violation(db, rc, op, fmt.Sprintf("predicate names tenant %q", v))
			return
		}
	}

	// Injecting here would turn a model-wide update or delete into a
	// tenant-wide one, so keep gorm's missing WHERE guard.
	if (op == opUpdate || op == opDelete) && len(exprs) == 0 && !stmt.AllowGlobalUpdate && !hasPrimaryKey(stmt) {
		_ = db.AddError(gorm.ErrMissingWhereClause)
		return
	}

	e.inject(stmt, exprs, rc.TenantID())
}

// inject ANDs the tenant predicate with the existing conditions. Existing
// conditions are grouped first so an OR among them cannot escape the filter.
func (e *Enforcer) inject(stmt *gorm.Statement, exprs []clause.Expression, tenantID string) {
	cond := clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: e.column},
		Value:  tenantID,
	}

	var next []clause.Expression
	switch len(exprs) {
	case 0:
		next = []clause.Expression{cond}
	case 1:
		next = []clause.Expression{exprs[0], cond}
	default:
		next = []clause.Expression{clause.AndConditions{Exprs: exprs}, cond}
	}

	c := stmt.Clauses["WHERE"]
	c.Name = "WHERE"
	c.Expression = clause.Where{Exprs: next}
	if stmt.Clauses == nil {
		stmt.Clauses = map[string]clause.Clause{}
	}
	stmt.Clauses["WHERE"] = c
}

// guardAssignments rejects updates that would move a row to another tenant
// and removes the tenant column from the SET list.
func (e *Enforcer) guardAssignments(db *gorm.DB, rc tenancy.RequestContext) bool {
	stmt := db.Statement

	if field := e.field(stmt); field != nil {
		for _, rv := range modelValues(stmt) {
			v, zero := field.ValueOf(stmt.Context, rv)
			if zero {
				continue
			}
			if s, ok := tenantString(v); !ok || s != rc.TenantID() {
				e.violation(db, rc, opUpdate, "model value belongs to another tenant")
				return false
			}
		}
	}

	switch dest := stmt.Dest.(type) {
	case map[string]interface{}:
		if !e.checkMap(db, rc, dest) {
			return false
		}
	case *map[string]interface{}:
		if dest != nil && !e.checkMap(db, rc, *dest) {
			return false
		}
	}

	stmt.Omits = append(stmt.Omits, e.column)
	return true
}

func (e *Enforcer) checkMap(db *gorm.DB, rc tenancy.RequestContext, m map[string]interface{}) bool {
	for k, v := range m {
		if !e.isTenantKey(db.Statement, k) {
			continue
		}
		if s, ok := tenantString(v); !ok || s != rc.TenantID() {
			e.violation(db, rc, opUpdate, "assignment moves rows to another tenant")
			return false
		}
	}
	return true
}

func (e *Enforcer) guardCreate(db *gorm.DB, rc tenancy.RequestContext) {
	stmt := db.Statement

	// Save falls back to an upsert, which could overwrite another tenant's row.
	if c, ok := stmt.Clauses["ON CONFLICT"]; ok {
		if oc, ok := c.Expression.(clause.OnConflict); ok && (oc.UpdateAll || len(oc.DoUpdates) > 0) {
			e.configuration(db, rc, "upsert on tenant-scoped table")
			return
		}
	}

	switch dest := stmt.Dest.(type) {
	case map[string]interface{}:
		e.fillMap(db, rc, dest)
		return
	case *map[string]interface{}:
		if dest != nil {
			e.fillMap(db, rc, *dest)
		}
		return
	case []map[string]interface{}:
		for _, m := range dest {
			if !e.fillMap(db, rc, m) {
				return
			}
		}
		return
	}

	field := e.field(stmt)
	if field == nil {
		e.configuration(db, rc, "entity has no tenant field")
		return
	}

	rv := stmt.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if !e.fillValue(db, rc, field, reflect.Indirect(rv.Index(i))) {
				return
			}
		}
	case reflect.Struct:
		e.fillValue(db, rc, field, rv)
	default:
		e.configuration(db, rc, "unsupported create destination")
	}
}

func (e *Enforcer) fillValue(db *gorm.DB, rc tenancy.RequestContext, field *schema.Field, rv reflect.Value) bool {
	ctx := db.Statement.Context
	v, zero := field.ValueOf(ctx, rv)
	if zero {
		if err := field.Set(ctx, rv, rc.TenantID()); err != nil {
			_ = db.AddError(fmt.Errorf("set %s: %w", e.column, err))
			return false
		}
		return true
	}
	if s, ok := tenantString(v); !ok || s != rc.TenantID() {
		e.configuration(db, rc, fmt.Sprintf("entity carries tenant %v", v))
		return false
	}
	return true
}

func (e *Enforcer) fillMap(db *gorm.DB, rc tenancy.RequestContext, m map[string]interface{}) bool {
	found := false
	for k, v := range m {
		if !e.isTenantKey(db.Statement, k) {
			continue
		}
		found = true
		if s, ok := tenantString(v); !ok || s != rc.TenantID() {
			e.configuration(db, rc, fmt.Sprintf("row carries tenant %v", v))
			return false
		}
	}
	if !found {
		m[e.column] = rc.TenantID()
	}
	return true
}

func (e *Enforcer) isTenantKey(stmt *gorm.Statement, key string) bool {
	if strings.EqualFold(key, e.column) {
		return true
	}
	if f := e.field(stmt); f != nil {
		return key == f.Name
	}
	return false
}

func (e *Enforcer) field(stmt *gorm.Statement) *schema.Field {
	if stmt.Schema == nil {
		return nil
	}
	return stmt.Schema.LookUpField(e.column)
}

// violation audits and rejects a statement whose tenant predicate disagrees
// with the request context.
func (e *Enforcer) violation(db *gorm.DB, rc tenancy.RequestContext, op operation, reason string) {
	stmt := db.Statement
	detail := fmt.Sprintf("%s on %s: %s", op, tableName(stmt), reason)

	if e.recorder != nil {
		e.recorder.Record(stmt.Context, audit.Denied(
			audit.ActionPredicateMismatch, rc.TenantID(), rc.UserID(), rc.RequestID(), detail,
		))
	}
	e.count(stmt.Context, "predicate_mismatch")
	e.logger.Warn("Tenant predicate rejected",
		append(logger.RequestFields(stmt.Context), zap.String("detail", detail))...,
	)
	_ = db.AddError(fmt.Errorf("%w: %s", shared.ErrTenantPredicateMismatch, detail))
}

func (e *Enforcer) configuration(db *gorm.DB, rc tenancy.RequestContext, reason string) {
	stmt := db.Statement
	detail := fmt.Sprintf("%s: %s", tableName(stmt), reason)

	e.count(stmt.Context, "tenant_configuration")
	e.logger.Error("Tenant configuration error",
		append(logger.RequestFields(stmt.Context), zap.String("detail", detail))...,
	)
	_ = db.AddError(fmt.Errorf("%w: %s", shared.ErrTenantConfiguration, detail))
}

func (e *Enforcer) count(ctx context.Context, reason string) {
	if e.denials != nil {
		e.denials.Denied(ctx, reason)
	}
}

func tableName(stmt *gorm.Statement) string {
	table := stmt.Table
	if table == "" && stmt.Schema != nil {
		table = stmt.Schema.Table
	}
	if f := strings.Fields(table); len(f) > 0 {
		return strings.Trim(f[0], "\"`")
	}
	return table
}

// modelValues returns the struct values of Model and Dest that share the
// statement schema.
func modelValues(stmt *gorm.Statement) []reflect.Value {
	if stmt.Schema == nil {
		return nil
	}
	var out []reflect.Value
	seen := map[interface{}]bool{}
	for _, v := range []interface{}{stmt.Model, stmt.Dest} {
		if v == nil {
			continue
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr {
			if rv.IsNil() || seen[v] {
				continue
			}
			seen[v] = true
		}
		rv := reflect.Indirect(reflect.ValueOf(v))
		switch rv.Kind() {
		case reflect.Struct:
			if rv.Type() == stmt.Schema.ModelType {
				out = append(out, rv)
			}
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				elem := reflect.Indirect(rv.Index(i))
				if elem.Kind() == reflect.Struct && elem.Type() == stmt.Schema.ModelType {
					out = append(out, elem)
				}
			}
		}
	}
	return out
}

func hasPrimaryKey(stmt *gorm.Statement) bool {
	if stmt.Schema == nil || len(stmt.Schema.PrimaryFields) == 0 {
		return false
	}
	for _, rv := range modelValues(stmt) {
		for _, f := range stmt.Schema.PrimaryFields {
			if _, zero := f.ValueOf(stmt.Context, rv); !zero {
				return true
			}
		}
	}
	return false
}
