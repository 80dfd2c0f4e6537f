package generate

import (
	"bytes"
	"errors"

	"github.com/agentic-research/dalgen/api"
	"github.com/agentic-research/dalgen/internal/artifact"
	"github.com/agentic-research/dalgen/internal/builder"
	"github.com/agentic-research/dalgen/internal/synth"
)

// Builder produces or updates one family of artifacts from the entity list.
// Reports are returned even when err is non-nil.
type Builder interface {
	Name() string
	Build(entities []api.Entity) ([]Report, error)
}

// Report is the outcome of one artifact.
type Report struct {
	Builder  string
	Artifact string
	Created  bool
	Written  bool
	Added    int
	Present  int
	Warnings []string
	Err      error
}

type synthBuilder struct {
	s        *synth.Synthesizer
	artifact string
}

// Synth adapts a Synthesizer to Builder, updating the single artifact at
// path (the layout's default when empty).
func Synth(s *synth.Synthesizer, path string) Builder {
	if path == "" {
		path = s.Layout.Artifact
	}
	return &synthBuilder{s: s, artifact: path}
}

func (b *synthBuilder) Name() string { return b.s.Layout.Name }

func (b *synthBuilder) Build(entities []api.Entity) ([]Report, error) {
	res, err := b.s.Synthesize(entities, b.artifact)
	r := Report{
		Builder:  b.Name(),
		Artifact: b.artifact,
		Created:  res.Created,
		Written:  res.Written,
		Added:    res.Added,
		Present:  res.Present,
		Warnings: res.Warnings,
		Err:      err,
	}
	return []Report{r}, err
}

type templateBuilder struct {
	t     *builder.Template
	store artifact.Store
}

// Stamp adapts a Template to Builder. Each eligible entity gets its own
// artifact, rewritten only when the rendered bytes differ from disk.
func Stamp(t *builder.Template, store artifact.Store) Builder {
	return &templateBuilder{t: t, store: store}
}

func (b *templateBuilder) Name() string { return b.t.Name }

func (b *templateBuilder) Build(entities []api.Entity) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, e := range entities {
		if b.t.Eligible != nil && !b.t.Eligible(e) {
			continue
		}
		r := Report{Builder: b.Name()}
		name, src, err := b.t.Build(e)
		if err == nil {
			r.Artifact = name
			r.Created, r.Written, err = b.write(name, src)
		}
		r.Err = err
		if err != nil {
			errs = append(errs, err)
		}
		reports = append(reports, r)
	}
	return reports, errors.Join(errs...)
}

func (b *templateBuilder) write(name string, src []byte) (created, written bool, err error) {
	h, err := b.store.Acquire(name)
	if err != nil {
		return false, false, err
	}
	defer h.Release()

	exists, err := b.store.Exists(h)
	if err != nil {
		return false, false, err
	}
	if !exists {
		if err := b.store.Create(h, src); err != nil {
			return false, false, err
		}
		return true, true, nil
	}

	current, err := b.store.Load(h)
	if err != nil {
		return false, false, err
	}
	if bytes.Equal(current, src) {
		return false, false, nil
	}
	if err := b.store.Save(h, src); err != nil {
		return false, false, err
	}
	return false, true, nil
}
