package synth

import (
	"fmt"
	"path"

	"github.com/agentic-research/dalgen/api"
	"github.com/agentic-research/dalgen/internal/syntax"
)

// Layout describes one aggregator artifact family: which declaration holds
// the members, how a member is keyed and spelled, and what a new file
// looks like.
type Layout struct {
	Name      string // builder name, e.g. "unit-of-work"
	Artifact  string // default artifact path relative to the project root
	Kind      syntax.Kind
	Container string
	Skeleton  []byte
	Eligible  func(api.Entity) bool
	Key       func(entity string) string
	Member    func(entity string) string
}

const (
	DefaultUnitOfWorkPath   = "internal/dal/unitofwork/unit_of_work.go"
	DefaultRepositoriesPath = "internal/dal/unitofwork/repositories.go"
	DefaultAbstractDir      = "internal/dal/abstract"
)

const unitOfWorkSkeleton = `package unitofwork

import (
	"context"

	"%s"
)

// UnitOfWork groups the repositories that share one transaction.
type UnitOfWork interface {
	Commit(ctx context.Context) error
	Close() error
}
`

const repositoriesSkeleton = `package unitofwork

import "%s"

// Repositories holds one repository per entity for a UnitOfWork implementation.
type Repositories struct{}
`

// RepositoryKey is the member name every built-in layout derives from an entity.
func RepositoryKey(entity string) string { return entity + "Repository" }

// WantsRepositoryMember is the eligibility rule of the built-in layouts:
// a unit-of-work entry is only useful when its repository is generated too.
func WantsRepositoryMember(e api.Entity) bool {
	return e.Options.UnitOfWork && e.Options.Repository
}

// UnitOfWork lays out the UnitOfWork interface with one repository accessor
// method per entity. abstractPkg is the import path of the package that
// declares the repository interfaces.
func UnitOfWork(abstractPkg string) Layout {
	qual := path.Base(abstractPkg)
	return Layout{
		Name:      "unit-of-work",
		Artifact:  DefaultUnitOfWorkPath,
		Kind:      syntax.Interface,
		Container: "UnitOfWork",
		Skeleton:  []byte(fmt.Sprintf(unitOfWorkSkeleton, abstractPkg)),
		Eligible:  WantsRepositoryMember,
		Key:       RepositoryKey,
		Member: func(entity string) string {
			return fmt.Sprintf("%s() %s.%s", RepositoryKey(entity), qual, RepositoryKey(entity))
		},
	}
}

// RepositorySet lays out the Repositories struct with one field per entity.
func RepositorySet(abstractPkg string) Layout {
	qual := path.Base(abstractPkg)
	return Layout{
		Name:      "repository-set",
		Artifact:  DefaultRepositoriesPath,
		Kind:      syntax.Struct,
		Container: "Repositories",
		Skeleton:  []byte(fmt.Sprintf(repositoriesSkeleton, abstractPkg)),
		Eligible:  WantsRepositoryMember,
		Key:       RepositoryKey,
		Member: func(entity string) string {
			return fmt.Sprintf("%s %s.%s", RepositoryKey(entity), qual, RepositoryKey(entity))
		},
	}
}
