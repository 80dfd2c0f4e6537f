package syntax

import (
	"bytes"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

type Diagnostic struct {
	Message string
	Line    uint32 // 0-indexed
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s", d.Line+1, d.Message)
}

// Top-level type names only; nested declarations live in function scope.
const typeNamesQuery = `
	(source_file
		(type_declaration
			(type_spec
				name: (type_identifier) @name
			)
		)
	)
`

// Lint reports hand edits that make a file ambiguous to the synthesizer:
// a top-level type declared twice (only the first is edited) and a member
// name repeated inside one container. Queued appends are not inspected.
func (f *File) Lint() []Diagnostic {
	var diags []Diagnostic

	q, err := sitter.NewQuery([]byte(typeNamesQuery), golang.GetLanguage())
	if err == nil {
		qc := sitter.NewQueryCursor()
		qc.Exec(q, f.tree.RootNode())
		seen := make(map[string]bool)
		for {
			m, ok := qc.NextMatch()
			if !ok {
				break
			}
			for _, c := range m.Captures {
				name := c.Node.Content(f.src)
				if seen[name] {
					diags = append(diags, Diagnostic{
						Message: fmt.Sprintf("type %s declared again; only the first declaration is updated", name),
						Line:    c.Node.StartPoint().Row,
					})
				}
				seen[name] = true
			}
		}
	}

	for _, c := range f.containers {
		seen := make(map[string]bool, len(c.Members))
		for _, m := range c.Members {
			if m.StartByte == c.closeByte && m.EndByte == c.closeByte {
				continue // queued append
			}
			if seen[m.Key] {
				diags = append(diags, Diagnostic{
					Message: fmt.Sprintf("%s %s declares %s more than once", c.Kind, c.Name, m.Key),
					Line:    f.line(m.StartByte),
				})
			}
			seen[m.Key] = true
		}
	}
	return diags
}

func (f *File) line(offset uint32) uint32 {
	return uint32(bytes.Count(f.src[:offset], []byte("\n")))
}
