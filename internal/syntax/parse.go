// Package syntax is the structural view dalgen takes of a Go source artifact.
// It parses with tree-sitter into a flat File → Container → Member tree and
// renders edits back by splicing new members into the original bytes. The
// spliced file is then normalized as a whole by gofumpt, so hand-written
// code elsewhere in the file comes back gofumpt-formatted.
package syntax

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// ErrParse marks source that is not valid Go.
var ErrParse = errors.New("parse error")

// ParseError contains structured information about a syntax error.
type ParseError struct {
	Line    uint32 // 0-indexed
	Column  uint32 // 0-indexed
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line+1, e.Column+1, e.Message)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Kind is the shape of a container type.
type Kind int

const (
	Interface Kind = iota
	Struct
)

func (k Kind) String() string {
	switch k {
	case Interface:
		return "interface"
	case Struct:
		return "struct"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Member is one named entry of a container: an interface method or a struct field.
type Member struct {
	Key       string
	StartByte uint32
	EndByte   uint32
}

// Container is a named interface or struct type declaration.
type Container struct {
	Name    string
	Kind    Kind
	Members []Member

	// closeByte is the offset of the closing brace, where new members go.
	closeByte uint32
	pending   []string
}

// Has reports whether a member with key exists, counting pending appends.
func (c *Container) Has(key string) bool {
	for _, m := range c.Members {
		if m.Key == key {
			return true
		}
	}
	return false
}

// Append queues member source (one line, no indentation) under key for
// insertion after the existing members. Appends keep their call order.
func (c *Container) Append(key, member string) {
	c.pending = append(c.pending, member)
	c.Members = append(c.Members, Member{Key: key, StartByte: c.closeByte, EndByte: c.closeByte})
}

// Pending returns the number of queued appends.
func (c *Container) Pending() int { return len(c.pending) }

// File is a parsed artifact.
type File struct {
	src        []byte
	tree       *sitter.Tree
	containers []*Container
}

// Source returns the text the file was parsed from.
func (f *File) Source() []byte { return f.src }

// Containers returns every interface and struct type declared at top level,
// in source order.
func (f *File) Containers() []*Container { return f.containers }

// Container returns the first top-level type of the given kind and name,
// or nil when the file has none.
func (f *File) Container(kind Kind, name string) *Container {
	for _, c := range f.containers {
		if c.Kind == kind && c.Name == name {
			return c
		}
	}
	return nil
}

// Parse builds a File from Go source. Syntax errors are reported as
// *ParseError with the location of the first ERROR node.
func Parse(src []byte) (*File, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, &ParseError{Message: "empty syntax tree"}
	}
	if root.HasError() {
		if n := findFirstError(root); n != nil {
			return nil, &ParseError{
				Line:    n.StartPoint().Row,
				Column:  n.StartPoint().Column,
				Message: "syntax error in AST",
			}
		}
		return nil, &ParseError{Message: "AST contains errors"}
	}

	f := &File{src: src, tree: tree}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		decl := root.NamedChild(i)
		if decl.Type() != "type_declaration" {
			continue
		}
		for j := 0; j < int(decl.NamedChildCount()); j++ {
			spec := decl.NamedChild(j)
			if spec.Type() != "type_spec" {
				continue // aliases never hold members
			}
			if c := f.container(spec); c != nil {
				f.containers = append(f.containers, c)
			}
		}
	}
	return f, nil
}

func (f *File) container(spec *sitter.Node) *Container {
	name := spec.ChildByFieldName("name")
	typ := spec.ChildByFieldName("type")
	if name == nil || typ == nil {
		return nil
	}

	c := &Container{Name: name.Content(f.src)}
	var body *sitter.Node
	switch typ.Type() {
	case "interface_type":
		c.Kind = Interface
		body = typ
		// Older grammars wrap the elements in a method_spec_list.
		for i := 0; i < int(typ.NamedChildCount()); i++ {
			if n := typ.NamedChild(i); n.Type() == "method_spec_list" {
				body = n
			}
		}
		for i := 0; i < int(body.NamedChildCount()); i++ {
			elem := body.NamedChild(i)
			switch elem.Type() {
			case "method_spec", "method_elem":
				if id := elem.ChildByFieldName("name"); id != nil {
					c.Members = append(c.Members, f.member(id, elem))
				}
			}
		}
	case "struct_type":
		c.Kind = Struct
		for i := 0; i < int(typ.NamedChildCount()); i++ {
			if n := typ.NamedChild(i); n.Type() == "field_declaration_list" {
				body = n
			}
		}
		if body == nil {
			return nil
		}
		for i := 0; i < int(body.NamedChildCount()); i++ {
			field := body.NamedChild(i)
			if field.Type() != "field_declaration" {
				continue
			}
			// Embedded fields carry no name and are not members.
			for k := 0; k < int(field.ChildCount()); k++ {
				if field.FieldNameForChild(k) == "name" {
					c.Members = append(c.Members, f.member(field.Child(k), field))
				}
			}
		}
	default:
		return nil
	}

	last := body.Child(int(body.ChildCount()) - 1)
	if last == nil || last.Type() != "}" {
		return nil
	}
	c.closeByte = last.StartByte()
	return c
}

func (f *File) member(id, decl *sitter.Node) Member {
	return Member{
		Key:       id.Content(f.src),
		StartByte: decl.StartByte(),
		EndByte:   decl.EndByte(),
	}
}

// findFirstError does a depth-first search for the first ERROR node.
func findFirstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			if found := findFirstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}
