package storage

import (
	"context"
	"errors"
	"time"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// IngestRun records one parse of a set of declaration files
type IngestRun struct {
	ID          string         `db:"id"`
	StartedAt   time.Time      `db:"started_at"`
	FinishedAt  time.Time      `db:"finished_at"`
	Files       int            `db:"files"`
	Types       int            `db:"types"`
	Functions   int            `db:"functions"`
	Statics     int            `db:"statics"`
	Diagnostics int            `db:"diagnostics"`
	Unresolved  map[string]int `db:"-"`
}

// UnresolvedRef is a type name that no entity of the graph defines
type UnresolvedRef struct {
	Name  string `db:"name"`
	Count int    `db:"ref_count"`
	RunID string `db:"run_id"`
}

// Repository persists the type graph and the documentation comments written
// for it
type Repository interface {
	// Graph operations
	SaveGraph(ctx context.Context, g *models.Graph, run *IngestRun) error
	LoadGraph(ctx context.Context) (*models.Graph, error)
	GetType(ctx context.Context, id models.EntityID) (*models.TypeEntity, error)
	GetTypeByFQN(ctx context.Context, fqn string) (*models.TypeEntity, error)

	// Batch lookups by owner id
	GetBaseTypesForTypes(ctx context.Context, ids []models.EntityID) (map[models.EntityID][]models.TypeInheritance, error)
	GetMembersForTypes(ctx context.Context, ids []models.EntityID) (map[models.EntityID][]models.StructMember, error)
	GetFunctionBodiesForTypes(ctx context.Context, ids []models.EntityID) (map[models.EntityID][]models.FunctionBody, error)
	GetStaticsForTypes(ctx context.Context, ids []models.EntityID) (map[models.EntityID][]models.StaticVariable, error)

	// Comment operations
	SaveComment(ctx context.Context, kind, fqn, text string) error
	GetComment(ctx context.Context, kind, fqn string) (string, bool, error)

	// Ingest runs
	SaveIngestRun(ctx context.Context, run *IngestRun) error
	LatestIngestRun(ctx context.Context) (*IngestRun, error)
	UnresolvedReferences(ctx context.Context, limit int) ([]UnresolvedRef, error)

	// Close connection
	Close() error
}
