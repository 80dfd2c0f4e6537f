package generate

import (
	"github.com/agentic-research/dalgen/internal/artifact"
	"github.com/agentic-research/dalgen/internal/builder"
	"github.com/agentic-research/dalgen/internal/config"
	"github.com/agentic-research/dalgen/internal/synth"
)

// Builders returns the standard builder set for cfg, all writing to store:
// the repository interfaces first, then the two aggregators and the
// mapping configurations.
func Builders(cfg *config.Config, store artifact.Store) []Builder {
	abstractPkg := cfg.Package(cfg.Paths.Abstract)
	entitiesPkg := cfg.Package(cfg.Paths.Entities)

	return []Builder{
		Stamp(builder.Repository(cfg.Paths.Abstract, entitiesPkg), store),
		Synth(synth.New(store, synth.UnitOfWork(abstractPkg)), cfg.Paths.UnitOfWork),
		Synth(synth.New(store, synth.RepositorySet(abstractPkg)), cfg.Paths.Repositories),
		Stamp(builder.Configuration(cfg.Paths.Configurations, entitiesPkg), store),
	}
}
