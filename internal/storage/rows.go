package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// Row types mirror the tables. References, signatures and other nested
// values are stored as JSON text.

type typeRow struct {
	ID             int64          `db:"id"`
	Kind           string         `db:"kind"`
	Name           string         `db:"name"`
	Namespace      string         `db:"namespace"`
	FQN            string         `db:"fqn"`
	TemplateArgs   string         `db:"template_args"`
	EnumMembers    string         `db:"enum_members"`
	TypedefTarget  sql.NullString `db:"typedef_target"`
	UnderlyingType string         `db:"underlying_type"`
	Alignment      int            `db:"alignment"`
	Pack           int            `db:"pack"`
	IsIgnored      bool           `db:"is_ignored"`
	IsVtable       bool           `db:"is_vtable"`
	IsBitmask      bool           `db:"is_bitmask"`
	IsVolatile     bool           `db:"is_volatile"`
	IsDefined      bool           `db:"is_defined"`
	SourceFile     string         `db:"source_file"`
	SourceLine     int            `db:"source_line"`
	ParentID       int64          `db:"parent_id"`
	NestedIDs      string         `db:"nested_ids"`
	Size           int            `db:"size"`
	ComputedAlign  int            `db:"computed_align"`
	LayoutDone     bool           `db:"layout_done"`
}

type baseRow struct {
	TypeID int64  `db:"type_id"`
	Ord    int    `db:"ord"`
	Raw    string `db:"raw"`
	Ref    string `db:"ref"`
	Offset int    `db:"base_offset"`
}

type memberRow struct {
	TypeID        int64         `db:"type_id"`
	Ord           int           `db:"ord"`
	Name          string        `db:"name"`
	TypeRef       string        `db:"type_ref"`
	BitWidth      sql.NullInt64 `db:"bit_width"`
	Offset        sql.NullInt64 `db:"member_offset"`
	BitOffset     int           `db:"bit_offset"`
	OverloadIndex int           `db:"overload_index"`
	IsIgnored     bool          `db:"is_ignored"`
}

type functionRow struct {
	OwnerID       int64  `db:"owner_id"`
	Ord           int    `db:"ord"`
	Name          string `db:"name"`
	OwnerFQN      string `db:"owner_fqn"`
	Signature     string `db:"signature"`
	Address       string `db:"address"`
	Body          string `db:"body"`
	IsConstructor bool   `db:"is_constructor"`
	IsDestructor  bool   `db:"is_destructor"`
	IsOperator    bool   `db:"is_operator"`
	IsUnreliable  bool   `db:"is_unreliable"`
	SourceFile    string `db:"source_file"`
	SourceLine    int    `db:"source_line"`
}

type staticRow struct {
	OwnerID    int64  `db:"owner_id"`
	Ord        int    `db:"ord"`
	Name       string `db:"name"`
	OwnerFQN   string `db:"owner_fqn"`
	TypeRef    string `db:"type_ref"`
	Address    string `db:"address"`
	SourceFile string `db:"source_file"`
	SourceLine int    `db:"source_line"`
}

func toJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fromJSON(s string, v interface{}) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func newTypeRow(t *models.TypeEntity) (typeRow, error) {
	row := typeRow{
		ID:             int64(t.ID),
		Kind:           string(t.Kind),
		Name:           t.Name,
		Namespace:      t.Namespace,
		FQN:            t.FQN(),
		UnderlyingType: t.UnderlyingType,
		Alignment:      t.Alignment,
		Pack:           t.Pack,
		IsIgnored:      t.IsIgnored,
		IsVtable:       t.IsVtable,
		IsBitmask:      t.IsBitmask,
		IsVolatile:     t.IsVolatile,
		IsDefined:      t.IsDefined,
		SourceFile:     t.Source.File,
		SourceLine:     t.Source.Line,
		ParentID:       int64(t.ParentID),
		Size:           t.Size,
		ComputedAlign:  t.ComputedAlign,
		LayoutDone:     t.LayoutDone,
	}
	var err error
	if row.TemplateArgs, err = toJSON(t.TemplateArgs); err != nil {
		return row, err
	}
	if row.EnumMembers, err = toJSON(t.EnumMembers); err != nil {
		return row, err
	}
	if row.NestedIDs, err = toJSON(t.NestedIDs); err != nil {
		return row, err
	}
	if t.TypedefTarget != nil {
		target, err := toJSON(t.TypedefTarget)
		if err != nil {
			return row, err
		}
		row.TypedefTarget = sql.NullString{String: target, Valid: true}
	}
	return row, nil
}

func (r typeRow) entity() (*models.TypeEntity, error) {
	t := &models.TypeEntity{
		ID:             models.EntityID(r.ID),
		Kind:           models.TypeKind(r.Kind),
		Name:           r.Name,
		Namespace:      r.Namespace,
		UnderlyingType: r.UnderlyingType,
		Alignment:      r.Alignment,
		Pack:           r.Pack,
		IsIgnored:      r.IsIgnored,
		IsVtable:       r.IsVtable,
		IsBitmask:      r.IsBitmask,
		IsVolatile:     r.IsVolatile,
		IsDefined:      r.IsDefined,
		Source:         models.SourceLocation{File: r.SourceFile, Line: r.SourceLine},
		ParentID:       models.EntityID(r.ParentID),
		Size:           r.Size,
		ComputedAlign:  r.ComputedAlign,
		LayoutDone:     r.LayoutDone,
	}
	if err := fromJSON(r.TemplateArgs, &t.TemplateArgs); err != nil {
		return nil, fmt.Errorf("decode template args of %s: %w", r.FQN, err)
	}
	if err := fromJSON(r.EnumMembers, &t.EnumMembers); err != nil {
		return nil, fmt.Errorf("decode enum members of %s: %w", r.FQN, err)
	}
	if err := fromJSON(r.NestedIDs, &t.NestedIDs); err != nil {
		return nil, fmt.Errorf("decode nested ids of %s: %w", r.FQN, err)
	}
	if r.TypedefTarget.Valid {
		t.TypedefTarget = &models.TypeReference{}
		if err := fromJSON(r.TypedefTarget.String, t.TypedefTarget); err != nil {
			return nil, fmt.Errorf("decode typedef target of %s: %w", r.FQN, err)
		}
	}
	return t, nil
}

func newBaseRow(owner models.EntityID, b models.TypeInheritance) (baseRow, error) {
	ref, err := toJSON(b.Ref)
	return baseRow{TypeID: int64(owner), Ord: b.Order, Raw: b.Raw, Ref: ref, Offset: b.Offset}, err
}

func (r baseRow) inheritance() (models.TypeInheritance, error) {
	b := models.TypeInheritance{Order: r.Ord, Raw: r.Raw, Offset: r.Offset}
	return b, fromJSON(r.Ref, &b.Ref)
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func newMemberRow(owner models.EntityID, m models.StructMember) (memberRow, error) {
	ref, err := toJSON(m.Type)
	return memberRow{
		TypeID:        int64(owner),
		Ord:           m.Order,
		Name:          m.Name,
		TypeRef:       ref,
		BitWidth:      nullInt(m.BitWidth),
		Offset:        nullInt(m.Offset),
		BitOffset:     m.BitOffset,
		OverloadIndex: m.OverloadIndex,
		IsIgnored:     m.IsIgnored,
	}, err
}

func (r memberRow) member() (models.StructMember, error) {
	m := models.StructMember{
		Name:          r.Name,
		Order:         r.Ord,
		BitWidth:      intPtr(r.BitWidth),
		Offset:        intPtr(r.Offset),
		BitOffset:     r.BitOffset,
		OverloadIndex: r.OverloadIndex,
		IsIgnored:     r.IsIgnored,
	}
	return m, fromJSON(r.TypeRef, &m.Type)
}

func newFunctionRow(owner models.EntityID, ord int, f models.FunctionBody) (functionRow, error) {
	sig, err := toJSON(f.Signature)
	return functionRow{
		OwnerID:       int64(owner),
		Ord:           ord,
		Name:          f.Name,
		OwnerFQN:      f.OwnerFQN,
		Signature:     sig,
		Address:       f.Address,
		Body:          f.Body,
		IsConstructor: f.IsConstructor,
		IsDestructor:  f.IsDestructor,
		IsOperator:    f.IsOperator,
		IsUnreliable:  f.IsUnreliable,
		SourceFile:    f.Source.File,
		SourceLine:    f.Source.Line,
	}, err
}

func (r functionRow) function() (models.FunctionBody, error) {
	f := models.FunctionBody{
		Name:          r.Name,
		OwnerFQN:      r.OwnerFQN,
		Address:       r.Address,
		Body:          r.Body,
		IsConstructor: r.IsConstructor,
		IsDestructor:  r.IsDestructor,
		IsOperator:    r.IsOperator,
		IsUnreliable:  r.IsUnreliable,
		Source:        models.SourceLocation{File: r.SourceFile, Line: r.SourceLine},
	}
	return f, fromJSON(r.Signature, &f.Signature)
}

func newStaticRow(owner models.EntityID, ord int, s models.StaticVariable) (staticRow, error) {
	ref, err := toJSON(s.Type)
	return staticRow{
		OwnerID:    int64(owner),
		Ord:        ord,
		Name:       s.Name,
		OwnerFQN:   s.OwnerFQN,
		TypeRef:    ref,
		Address:    s.Address,
		SourceFile: s.Source.File,
		SourceLine: s.Source.Line,
	}, err
}

func (r staticRow) static() (models.StaticVariable, error) {
	s := models.StaticVariable{
		Name:     r.Name,
		OwnerFQN: r.OwnerFQN,
		Address:  r.Address,
		Source:   models.SourceLocation{File: r.SourceFile, Line: r.SourceLine},
	}
	return s, fromJSON(r.TypeRef, &s.Type)
}
