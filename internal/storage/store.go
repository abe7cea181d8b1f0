// Package storage persists the declaration graph between runs. SQLite is the
// default; PostgreSQL shares the same schema and queries through sqlx
// placeholder rebinding.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// batchSize bounds the ids bound into one IN (...) clause
const batchSize = 500

// Config selects and locates the database
type Config struct {
	Type        string // "sqlite" (default) or "postgres"
	SQLitePath  string
	PostgresDSN string
}

// NewStore opens the store described by cfg
func NewStore(cfg Config, logger *logrus.Logger) (*SQLStore, error) {
	switch cfg.Type {
	case "", "sqlite":
		if cfg.SQLitePath == "" {
			return nil, errors.ConfigErrorf("storage.sqlite_path is required for sqlite storage")
		}
		return NewSQLiteStore(cfg.SQLitePath, logger)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.ConfigErrorf("storage.postgres_dsn is required for postgres storage")
		}
		return NewPostgresStore(cfg.PostgresDSN, logger)
	}
	return nil, errors.ConfigErrorf("unknown storage type %q", cfg.Type)
}

// SQLStore implements Repository over database/sql
type SQLStore struct {
	db      *sqlx.DB
	dialect string
	logger  *logrus.Logger
}

var _ Repository = (*SQLStore)(nil)

func newSQLStore(db *sqlx.DB, dialect string, logger *logrus.Logger) *SQLStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SQLStore{db: db, dialect: dialect, logger: logger}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS types (
		id BIGINT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		namespace TEXT NOT NULL DEFAULT '',
		fqn TEXT NOT NULL UNIQUE,
		template_args TEXT,
		enum_members TEXT,
		typedef_target TEXT,
		underlying_type TEXT NOT NULL DEFAULT '',
		alignment INTEGER NOT NULL DEFAULT 0,
		pack INTEGER NOT NULL DEFAULT 0,
		is_ignored BOOLEAN NOT NULL DEFAULT FALSE,
		is_vtable BOOLEAN NOT NULL DEFAULT FALSE,
		is_bitmask BOOLEAN NOT NULL DEFAULT FALSE,
		is_volatile BOOLEAN NOT NULL DEFAULT FALSE,
		is_defined BOOLEAN NOT NULL DEFAULT FALSE,
		source_file TEXT NOT NULL DEFAULT '',
		source_line INTEGER NOT NULL DEFAULT 0,
		parent_id BIGINT NOT NULL DEFAULT 0,
		nested_ids TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		computed_align INTEGER NOT NULL DEFAULT 0,
		layout_done BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS type_bases (
		type_id BIGINT NOT NULL,
		ord INTEGER NOT NULL,
		raw TEXT NOT NULL,
		ref TEXT NOT NULL,
		base_offset INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (type_id, ord)
	)`,
	`CREATE TABLE IF NOT EXISTS type_members (
		type_id BIGINT NOT NULL,
		ord INTEGER NOT NULL,
		name TEXT NOT NULL,
		type_ref TEXT NOT NULL,
		bit_width INTEGER,
		member_offset INTEGER,
		bit_offset INTEGER NOT NULL DEFAULT 0,
		overload_index INTEGER NOT NULL DEFAULT 0,
		is_ignored BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (type_id, ord)
	)`,
	`CREATE TABLE IF NOT EXISTS functions (
		owner_id BIGINT NOT NULL,
		ord INTEGER NOT NULL,
		name TEXT NOT NULL,
		owner_fqn TEXT NOT NULL DEFAULT '',
		signature TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		is_constructor BOOLEAN NOT NULL DEFAULT FALSE,
		is_destructor BOOLEAN NOT NULL DEFAULT FALSE,
		is_operator BOOLEAN NOT NULL DEFAULT FALSE,
		is_unreliable BOOLEAN NOT NULL DEFAULT FALSE,
		source_file TEXT NOT NULL DEFAULT '',
		source_line INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (owner_id, ord)
	)`,
	`CREATE TABLE IF NOT EXISTS statics (
		owner_id BIGINT NOT NULL,
		ord INTEGER NOT NULL,
		name TEXT NOT NULL,
		owner_fqn TEXT NOT NULL DEFAULT '',
		type_ref TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		source_file TEXT NOT NULL DEFAULT '',
		source_line INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (owner_id, ord)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		kind TEXT NOT NULL,
		fqn TEXT NOT NULL,
		comment_text TEXT NOT NULL,
		updated_at TIMESTAMP,
		PRIMARY KEY (kind, fqn)
	)`,
	`CREATE TABLE IF NOT EXISTS ingest_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		files INTEGER NOT NULL DEFAULT 0,
		types INTEGER NOT NULL DEFAULT 0,
		functions INTEGER NOT NULL DEFAULT 0,
		statics INTEGER NOT NULL DEFAULT 0,
		diagnostics INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS unresolved_refs (
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		ref_count INTEGER NOT NULL,
		PRIMARY KEY (run_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_types_fqn ON types(fqn)`,
	`CREATE INDEX IF NOT EXISTS idx_unresolved_run ON unresolved_refs(run_id)`,
}

func (s *SQLStore) initSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Graph operations

// SaveGraph replaces the stored graph with g in one transaction. run, when
// not nil, is recorded in the same transaction.
func (s *SQLStore) SaveGraph(ctx context.Context, g *models.Graph, run *IngestRun) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"statics", "functions", "type_members", "type_bases", "types"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	ins, err := prepareInserts(ctx, tx)
	if err != nil {
		return err
	}
	defer ins.close()

	var members, functions, statics int
	for _, t := range g.Types() {
		if err := ins.entity(ctx, t); err != nil {
			return fmt.Errorf("save type %s: %w", t.FQN(), err)
		}
		members += len(t.Members)
		functions += len(t.Functions)
		statics += len(t.Statics)
	}
	for i, f := range g.Functions {
		if err := ins.function(ctx, 0, i, f); err != nil {
			return fmt.Errorf("save function %s: %w", f.FQN(), err)
		}
	}
	for i, v := range g.Statics {
		if err := ins.static(ctx, 0, i, v); err != nil {
			return fmt.Errorf("save static %s: %w", v.Name, err)
		}
	}

	if run != nil {
		if err := s.saveRun(ctx, tx, run); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit graph: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"dialect":   s.dialect,
		"types":     g.Len(),
		"members":   members,
		"functions": functions + len(g.Functions),
		"statics":   statics + len(g.Statics),
	}).Info("graph saved")
	return nil
}

type inserts struct {
	types, bases, members, functions, statics *sqlx.NamedStmt
}

const (
	insertType = `INSERT INTO types (id, kind, name, namespace, fqn, template_args, enum_members,
			typedef_target, underlying_type, alignment, pack, is_ignored, is_vtable, is_bitmask,
			is_volatile, is_defined, source_file, source_line, parent_id, nested_ids, size,
			computed_align, layout_done)
		VALUES (:id, :kind, :name, :namespace, :fqn, :template_args, :enum_members,
			:typedef_target, :underlying_type, :alignment, :pack, :is_ignored, :is_vtable, :is_bitmask,
			:is_volatile, :is_defined, :source_file, :source_line, :parent_id, :nested_ids, :size,
			:computed_align, :layout_done)`

	insertBase = `INSERT INTO type_bases (type_id, ord, raw, ref, base_offset)
		VALUES (:type_id, :ord, :raw, :ref, :base_offset)`

	insertMember = `INSERT INTO type_members (type_id, ord, name, type_ref, bit_width, member_offset,
			bit_offset, overload_index, is_ignored)
		VALUES (:type_id, :ord, :name, :type_ref, :bit_width, :member_offset,
			:bit_offset, :overload_index, :is_ignored)`

	insertFunction = `INSERT INTO functions (owner_id, ord, name, owner_fqn, signature, address, body,
			is_constructor, is_destructor, is_operator, is_unreliable, source_file, source_line)
		VALUES (:owner_id, :ord, :name, :owner_fqn, :signature, :address, :body,
			:is_constructor, :is_destructor, :is_operator, :is_unreliable, :source_file, :source_line)`

	insertStatic = `INSERT INTO statics (owner_id, ord, name, owner_fqn, type_ref, address, source_file, source_line)
		VALUES (:owner_id, :ord, :name, :owner_fqn, :type_ref, :address, :source_file, :source_line)`
)

func prepareInserts(ctx context.Context, tx *sqlx.Tx) (*inserts, error) {
	ins := &inserts{}
	for _, q := range []struct {
		dst   **sqlx.NamedStmt
		query string
	}{
		{&ins.types, insertType},
		{&ins.bases, insertBase},
		{&ins.members, insertMember},
		{&ins.functions, insertFunction},
		{&ins.statics, insertStatic},
	} {
		stmt, err := tx.PrepareNamedContext(ctx, q.query)
		if err != nil {
			ins.close()
			return nil, fmt.Errorf("prepare insert: %w", err)
		}
		*q.dst = stmt
	}
	return ins, nil
}

func (ins *inserts) close() {
	for _, stmt := range []*sqlx.NamedStmt{ins.types, ins.bases, ins.members, ins.functions, ins.statics} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

func (ins *inserts) entity(ctx context.Context, t *models.TypeEntity) error {
	row, err := newTypeRow(t)
	if err != nil {
		return err
	}
	if _, err := ins.types.ExecContext(ctx, row); err != nil {
		return err
	}
	for i, b := range t.Bases {
		b.Order = i
		br, err := newBaseRow(t.ID, b)
		if err != nil {
			return err
		}
		if _, err := ins.bases.ExecContext(ctx, br); err != nil {
			return err
		}
	}
	for i, m := range t.Members {
		m.Order = i
		mr, err := newMemberRow(t.ID, m)
		if err != nil {
			return err
		}
		if _, err := ins.members.ExecContext(ctx, mr); err != nil {
			return err
		}
	}
	for i, f := range t.Functions {
		if err := ins.function(ctx, t.ID, i, f); err != nil {
			return err
		}
	}
	for i, v := range t.Statics {
		if err := ins.static(ctx, t.ID, i, v); err != nil {
			return err
		}
	}
	return nil
}

func (ins *inserts) function(ctx context.Context, owner models.EntityID, ord int, f models.FunctionBody) error {
	row, err := newFunctionRow(owner, ord, f)
	if err != nil {
		return err
	}
	_, err = ins.functions.ExecContext(ctx, row)
	return err
}

func (ins *inserts) static(ctx context.Context, owner models.EntityID, ord int, v models.StaticVariable) error {
	row, err := newStaticRow(owner, ord, v)
	if err != nil {
		return err
	}
	_, err = ins.statics.ExecContext(ctx, row)
	return err
}

// LoadGraph reads the whole stored graph. Owned rows are fetched in batches
// by owner id.
func (s *SQLStore) LoadGraph(ctx context.Context) (*models.Graph, error) {
	var rows []typeRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM types ORDER BY id`); err != nil {
		return nil, fmt.Errorf("load types: %w", err)
	}
	types, err := s.hydrate(ctx, rows)
	if err != nil {
		return nil, err
	}

	g := models.NewGraph()
	for _, t := range types {
		stored := t.ID
		if id, added := g.AddType(t); !added || id != stored {
			return nil, errors.InternalErrorf("stored type %s has id %d, graph assigned %d", t.FQN(), stored, id)
		}
	}

	var fns []functionRow
	if err := s.db.SelectContext(ctx, &fns, s.db.Rebind(`SELECT * FROM functions WHERE owner_id = ? ORDER BY ord`), 0); err != nil {
		return nil, fmt.Errorf("load free functions: %w", err)
	}
	for _, r := range fns {
		f, err := r.function()
		if err != nil {
			return nil, fmt.Errorf("decode function %s: %w", r.Name, err)
		}
		g.Functions = append(g.Functions, f)
	}

	var sts []staticRow
	if err := s.db.SelectContext(ctx, &sts, s.db.Rebind(`SELECT * FROM statics WHERE owner_id = ? ORDER BY ord`), 0); err != nil {
		return nil, fmt.Errorf("load global statics: %w", err)
	}
	for _, r := range sts {
		v, err := r.static()
		if err != nil {
			return nil, fmt.Errorf("decode static %s: %w", r.Name, err)
		}
		g.Statics = append(g.Statics, v)
	}

	s.logger.WithFields(logrus.Fields{
		"types":     g.Len(),
		"functions": len(g.Functions),
		"statics":   len(g.Statics),
	}).Debug("graph loaded")
	return g, nil
}

// hydrate decodes type rows and attaches their bases, members, functions and
// statics
func (s *SQLStore) hydrate(ctx context.Context, rows []typeRow) ([]*models.TypeEntity, error) {
	types := make([]*models.TypeEntity, len(rows))
	ids := make([]models.EntityID, len(rows))
	for i, r := range rows {
		t, err := r.entity()
		if err != nil {
			return nil, err
		}
		types[i] = t
		ids[i] = t.ID
	}

	bases, err := s.GetBaseTypesForTypes(ctx, ids)
	if err != nil {
		return nil, err
	}
	members, err := s.GetMembersForTypes(ctx, ids)
	if err != nil {
		return nil, err
	}
	functions, err := s.GetFunctionBodiesForTypes(ctx, ids)
	if err != nil {
		return nil, err
	}
	statics, err := s.GetStaticsForTypes(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, t := range types {
		t.Bases = bases[t.ID]
		t.Members = members[t.ID]
		t.Functions = functions[t.ID]
		t.Statics = statics[t.ID]
	}
	return types, nil
}

// GetType returns one entity with everything it owns
func (s *SQLStore) GetType(ctx context.Context, id models.EntityID) (*models.TypeEntity, error) {
	return s.getType(ctx, `SELECT * FROM types WHERE id = ?`, int64(id))
}

// GetTypeByFQN returns one entity by its fully-qualified name
func (s *SQLStore) GetTypeByFQN(ctx context.Context, fqn string) (*models.TypeEntity, error) {
	return s.getType(ctx, `SELECT * FROM types WHERE fqn = ?`, fqn)
}

func (s *SQLStore) getType(ctx context.Context, query string, arg interface{}) (*models.TypeEntity, error) {
	var row typeRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get type: %w", err)
	}
	types, err := s.hydrate(ctx, []typeRow{row})
	if err != nil {
		return nil, err
	}
	return types[0], nil
}

// selectForIDs runs query, which has one "IN (?)" clause, for every batch of ids
func selectForIDs[T any](ctx context.Context, db *sqlx.DB, query string, ids []models.EntityID) ([]T, error) {
	var out []T
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		batch := make([]int64, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, int64(id))
		}

		q, args, err := sqlx.In(query, batch)
		if err != nil {
			return nil, err
		}
		var rows []T
		if err := db.SelectContext(ctx, &rows, db.Rebind(q), args...); err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// GetBaseTypesForTypes returns the base edges of every id, in declaration order
func (s *SQLStore) GetBaseTypesForTypes(ctx context.Context, ids []models.EntityID) (map[models.EntityID][]models.TypeInheritance, error) {
	rows, err := selectForIDs[baseRow](ctx, s.db, `SELECT * FROM type_bases WHERE type_id IN (?) ORDER BY type_id, ord`, ids)
	if err != nil {
		return nil, fmt.Errorf("get base types: %w", err)
	}
	out := make(map[models.EntityID][]models.TypeInheritance)
	for _, r := range rows {
		b, err := r.inheritance()
		if err != nil {
			return nil, fmt.Errorf("decode base of %d: %w", r.TypeID, err)
		}
		id := models.EntityID(r.TypeID)
		out[id] = append(out[id], b)
	}
	return out, nil
}

// GetMembersForTypes returns the data members of every id, in declaration order
func (s *SQLStore) GetMembersForTypes(ctx context.Context, ids []models.EntityID) (map[models.EntityID][]models.StructMember, error) {
	rows, err := selectForIDs[memberRow](ctx, s.db, `SELECT * FROM type_members WHERE type_id IN (?) ORDER BY type_id, ord`, ids)
	if err != nil {
		return nil, fmt.Errorf("get members: %w", err)
	}
	out := make(map[models.EntityID][]models.StructMember)
	for _, r := range rows {
		m, err := r.member()
		if err != nil {
			return nil, fmt.Errorf("decode member %s of %d: %w", r.Name, r.TypeID, err)
		}
		id := models.EntityID(r.TypeID)
		out[id] = append(out[id], m)
	}
	return out, nil
}

// GetFunctionBodiesForTypes returns the functions owned by every id
func (s *SQLStore) GetFunctionBodiesForTypes(ctx context.Context, ids []models.EntityID) (map[models.EntityID][]models.FunctionBody, error) {
	rows, err := selectForIDs[functionRow](ctx, s.db, `SELECT * FROM functions WHERE owner_id IN (?) ORDER BY owner_id, ord`, ids)
	if err != nil {
		return nil, fmt.Errorf("get function bodies: %w", err)
	}
	out := make(map[models.EntityID][]models.FunctionBody)
	for _, r := range rows {
		f, err := r.function()
		if err != nil {
			return nil, fmt.Errorf("decode function %s: %w", r.Name, err)
		}
		id := models.EntityID(r.OwnerID)
		out[id] = append(out[id], f)
	}
	return out, nil
}

// GetStaticsForTypes returns the static variables owned by every id
func (s *SQLStore) GetStaticsForTypes(ctx context.Context, ids []models.EntityID) (map[models.EntityID][]models.StaticVariable, error) {
	rows, err := selectForIDs[staticRow](ctx, s.db, `SELECT * FROM statics WHERE owner_id IN (?) ORDER BY owner_id, ord`, ids)
	if err != nil {
		return nil, fmt.Errorf("get statics: %w", err)
	}
	out := make(map[models.EntityID][]models.StaticVariable)
	for _, r := range rows {
		v, err := r.static()
		if err != nil {
			return nil, fmt.Errorf("decode static %s: %w", r.Name, err)
		}
		id := models.EntityID(r.OwnerID)
		out[id] = append(out[id], v)
	}
	return out, nil
}

// Comment operations

// SaveComment stores the documentation text for a declaration, replacing any
// previous text
func (s *SQLStore) SaveComment(ctx context.Context, kind, fqn, text string) error {
	query := s.db.Rebind(`
		INSERT INTO comments (kind, fqn, comment_text, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, fqn) DO UPDATE SET
			comment_text = excluded.comment_text,
			updated_at = excluded.updated_at
	`)
	if _, err := s.db.ExecContext(ctx, query, kind, fqn, text, time.Now().UTC()); err != nil {
		return fmt.Errorf("save comment: %w", err)
	}
	return nil
}

// GetComment returns the stored text for a declaration. A missing comment is
// not an error.
func (s *SQLStore) GetComment(ctx context.Context, kind, fqn string) (string, bool, error) {
	var text string
	query := s.db.Rebind(`SELECT comment_text FROM comments WHERE kind = ? AND fqn = ?`)
	if err := s.db.GetContext(ctx, &text, query, kind, fqn); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get comment: %w", err)
	}
	return text, true, nil
}

// Ingest runs

// SaveIngestRun records a run and its unresolved-reference counts. An empty
// ID is replaced with a new UUID.
func (s *SQLStore) SaveIngestRun(ctx context.Context, run *IngestRun) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.saveRun(ctx, tx, run); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) saveRun(ctx context.Context, tx *sqlx.Tx, run *IngestRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	query := `
		INSERT INTO ingest_runs (id, started_at, finished_at, files, types, functions, statics, diagnostics)
		VALUES (:id, :started_at, :finished_at, :files, :types, :functions, :statics, :diagnostics)
	`
	if _, err := tx.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("save ingest run: %w", err)
	}

	for name, count := range run.Unresolved {
		ref := UnresolvedRef{Name: name, Count: count, RunID: run.ID}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO unresolved_refs (run_id, name, ref_count)
			VALUES (:run_id, :name, :ref_count)
		`, ref)
		if err != nil {
			return fmt.Errorf("save unresolved reference %s: %w", name, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":     run.ID,
		"types":      run.Types,
		"unresolved": len(run.Unresolved),
	}).Debug("ingest run recorded")
	return nil
}

// LatestIngestRun returns the most recently started run
func (s *SQLStore) LatestIngestRun(ctx context.Context) (*IngestRun, error) {
	var run IngestRun
	query := `SELECT * FROM ingest_runs ORDER BY started_at DESC LIMIT 1`
	if err := s.db.GetContext(ctx, &run, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest ingest run: %w", err)
	}
	return &run, nil
}

// UnresolvedReferences returns the unresolved names of the latest run, most
// frequent first. limit <= 0 returns all of them.
func (s *SQLStore) UnresolvedReferences(ctx context.Context, limit int) ([]UnresolvedRef, error) {
	run, err := s.LatestIngestRun(ctx)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT run_id, name, ref_count FROM unresolved_refs WHERE run_id = ? ORDER BY ref_count DESC, name`)
	args := []interface{}{run.ID}
	if limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	var refs []UnresolvedRef
	if err := s.db.SelectContext(ctx, &refs, s.db.Rebind(sb.String()), args...); err != nil {
		return nil, fmt.Errorf("get unresolved references: %w", err)
	}
	return refs, nil
}
