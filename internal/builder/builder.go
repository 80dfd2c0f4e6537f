// Package builder stamps per-entity source files from fixed templates.
// A Template is a pure function of its entity: no state, no merging, and
// the same entity always yields the same bytes.
package builder

import (
	"bytes"
	"fmt"
	"path"
	"text/template"

	"github.com/agentic-research/dalgen/api"
	"github.com/agentic-research/dalgen/internal/syntax"
)

const (
	DefaultRepositoryDir    = "internal/dal/abstract"
	DefaultConfigurationDir = "internal/dal/configurations"
	DefaultEntitiesDir      = "internal/entities"
)

// Template generates one artifact per eligible entity.
type Template struct {
	Name     string
	Dir      string // artifact directory relative to the project root; also the package name source
	Suffix   string // file name is <snake_entity><Suffix>
	Eligible func(api.Entity) bool
	// EntitiesPkg is the import path of the package declaring the entity types.
	EntitiesPkg string

	tmpl *template.Template
}

type templateData struct {
	Name        string
	Package     string
	EntitiesPkg string
}

// Build renders the artifact for e and returns its path and formatted source.
func (b *Template) Build(e api.Entity) (string, []byte, error) {
	if e.Name == "" {
		return "", nil, fmt.Errorf("%s: entity without a name", b.Name)
	}
	var buf bytes.Buffer
	err := b.tmpl.Execute(&buf, templateData{
		Name:        e.Name,
		Package:     path.Base(b.Dir),
		EntitiesPkg: b.EntitiesPkg,
	})
	if err != nil {
		return "", nil, fmt.Errorf("%s: render %s: %w", b.Name, e.Name, err)
	}
	out, err := syntax.Format(buf.Bytes())
	if err != nil {
		return "", nil, fmt.Errorf("%s: format %s: %w", b.Name, e.Name, err)
	}
	return path.Join(b.Dir, SnakeCase(e.Name)+b.Suffix), out, nil
}

var repositoryTmpl = template.Must(template.New("repository").Parse(`package {{.Package}}

import "{{.EntitiesPkg}}"

// {{.Name}}Repository is the data access contract for entities.{{.Name}}.
type {{.Name}}Repository interface {
	GenericRepository[entities.{{.Name}}]
}
`))

var configurationTmpl = template.Must(template.New("configuration").Parse(`package {{.Package}}

import (
	"gorm.io/gorm"

	"{{.EntitiesPkg}}"
)

// {{.Name}}Configuration maps entities.{{.Name}} onto its table.
type {{.Name}}Configuration struct{}

// Configure applies the mapping rules for entities.{{.Name}}.
func ({{.Name}}Configuration) Configure(db *gorm.DB) error {
	return db.AutoMigrate(&entities.{{.Name}}{})
}
`))

// Repository builds <dir>/<entity>_repository.go for entities with
// Options.Repository set.
func Repository(dir, entitiesPkg string) *Template {
	return &Template{
		Name:        "repository",
		Dir:         dir,
		Suffix:      "_repository.go",
		Eligible:    func(e api.Entity) bool { return e.Options.Repository },
		tmpl:        repositoryTmpl,
		EntitiesPkg: entitiesPkg,
	}
}

// Configuration builds <dir>/<entity>_configuration.go for entities with
// Options.Configuration set.
func Configuration(dir, entitiesPkg string) *Template {
	return &Template{
		Name:        "configuration",
		Dir:         dir,
		Suffix:      "_configuration.go",
		Eligible:    func(e api.Entity) bool { return e.Options.Configuration },
		tmpl:        configurationTmpl,
		EntitiesPkg: entitiesPkg,
	}
}
