// Package synth keeps an aggregator declaration in a generated Go file in
// step with the entity list. It only ever appends the members that are
// missing, so running it again with the same entities changes nothing.
package synth

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/agentic-research/dalgen/api"
	"github.com/agentic-research/dalgen/internal/artifact"
	"github.com/agentic-research/dalgen/internal/syntax"
)

// ErrStructuralMismatch means the artifact exists but its target declaration
// is gone or has a different shape, most likely after a manual edit.
var ErrStructuralMismatch = errors.New("structural mismatch")

// ErrUnnamedEntity rejects an entity whose name would yield a bare member.
var ErrUnnamedEntity = errors.New("entity without a name")

// MismatchError names the declaration that could not be found.
type MismatchError struct {
	Artifact  string
	Kind      syntax.Kind
	Container string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: no %s type %s", e.Artifact, e.Kind, e.Container)
}

func (e *MismatchError) Unwrap() error { return ErrStructuralMismatch }

// Result reports what one synthesis did.
type Result struct {
	Artifact string
	Created  bool // artifact did not exist and was written from the skeleton
	Written  bool
	Added    int // members appended
	Present  int // eligible entities whose member was already there
	// Warnings are lint findings on the existing artifact that did not
	// prevent the update.
	Warnings []string
}

// Synthesizer applies one Layout to artifacts in a Store.
type Synthesizer struct {
	Store  artifact.Store
	Layout Layout
}

func New(store artifact.Store, layout Layout) *Synthesizer {
	return &Synthesizer{Store: store, Layout: layout}
}

// Synthesize makes the layout's container in artifactName hold one member
// per eligible entity. Existing members are never touched or reordered; new
// ones follow them in entity order. The artifact is written at most once,
// and not at all when nothing was added to an existing file.
func (s *Synthesizer) Synthesize(entities []api.Entity, artifactName string) (Result, error) {
	res := Result{Artifact: artifactName}

	var eligible []api.Entity
	for i, e := range entities {
		if e.Name == "" {
			return res, fmt.Errorf("%s: entity %d: %w", artifactName, i, ErrUnnamedEntity)
		}
		if s.Layout.Eligible == nil || s.Layout.Eligible(e) {
			eligible = append(eligible, e)
		}
	}

	h, err := s.Store.Acquire(artifactName)
	if err != nil {
		return res, err
	}
	defer h.Release()

	exists, err := s.Store.Exists(h)
	if err != nil {
		return res, err
	}
	if !exists && len(eligible) == 0 {
		return res, nil
	}

	src := s.Layout.Skeleton
	if exists {
		if src, err = s.Store.Load(h); err != nil {
			return res, err
		}
		// An empty file carries no user content; seed it like a new one.
		if len(bytes.TrimSpace(src)) == 0 {
			src = s.Layout.Skeleton
		}
	}

	file, err := syntax.Parse(src)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", artifactName, err)
	}
	c := file.Container(s.Layout.Kind, s.Layout.Container)
	if c == nil {
		return res, &MismatchError{Artifact: artifactName, Kind: s.Layout.Kind, Container: s.Layout.Container}
	}
	for _, d := range file.Lint() {
		res.Warnings = append(res.Warnings, d.String())
	}

	for _, e := range eligible {
		key := s.Layout.Key(e.Name)
		if c.Has(key) {
			res.Present++
			continue
		}
		c.Append(key, s.Layout.Member(e.Name))
		res.Added++
	}

	if exists && res.Added == 0 {
		return res, nil
	}

	out, err := file.Render()
	if err != nil {
		return res, fmt.Errorf("render %s: %w", artifactName, err)
	}
	if exists {
		err = s.Store.Save(h, out)
	} else {
		err = s.Store.Create(h, out)
	}
	if err != nil {
		return res, err
	}
	res.Created = !exists
	res.Written = true
	return res, nil
}
