package synth

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/dalgen/api"
	"github.com/agentic-research/dalgen/internal/artifact"
	"github.com/agentic-research/dalgen/internal/syntax"
)

const (
	testAbstract = "example.com/shop/internal/dal/abstract"
	uowPath      = DefaultUnitOfWorkPath
)

var errInjected = errors.New("injected")

// recordingStore counts writes and can fail them on demand.
type recordingStore struct {
	artifact.Store
	writes  int
	failing bool
}

func (s *recordingStore) Create(h *artifact.Handle, content []byte) error {
	if s.failing {
		return errors.Join(artifact.ErrUnavailable, errInjected)
	}
	s.writes++
	return s.Store.Create(h, content)
}

func (s *recordingStore) Save(h *artifact.Handle, content []byte) error {
	if s.failing {
		return errors.Join(artifact.ErrUnavailable, errInjected)
	}
	s.writes++
	return s.Store.Save(h, content)
}

type fixture struct {
	fs    *recordingStore
	read  func() string
	write func(string)
	synth *Synthesizer
}

func setup(t *testing.T, layout Layout) *fixture {
	t.Helper()
	bfs := memfs.New()
	store := &recordingStore{Store: artifact.NewFS(bfs)}
	return &fixture{
		fs: store,
		read: func() string {
			data, err := util.ReadFile(bfs, layout.Artifact)
			require.NoError(t, err)
			return string(data)
		},
		write: func(content string) {
			require.NoError(t, util.WriteFile(bfs, layout.Artifact, []byte(content), 0o644))
		},
		synth: New(store, layout),
	}
}

func entities(names ...string) []api.Entity {
	out := make([]api.Entity, len(names))
	for i, n := range names {
		out[i] = api.Entity{Name: n, Options: api.Options{Repository: true, UnitOfWork: true}}
	}
	return out
}

func memberKeys(t *testing.T, src string, kind syntax.Kind, name string) []string {
	t.Helper()
	f, err := syntax.Parse([]byte(src))
	require.NoError(t, err)
	c := f.Container(kind, name)
	require.NotNil(t, c)
	var keys []string
	for _, m := range c.Members {
		keys = append(keys, m.Key)
	}
	return keys
}

const createdUnitOfWork = `package unitofwork

import (
	"context"

	"example.com/shop/internal/dal/abstract"
)

// UnitOfWork groups the repositories that share one transaction.
type UnitOfWork interface {
	Commit(ctx context.Context) error
	Close() error
	OrderRepository() abstract.OrderRepository
	CustomerRepository() abstract.CustomerRepository
}
`

func TestSynthesize_CreatesFromSkeleton(t *testing.T) {
	fx := setup(t, UnitOfWork(testAbstract))

	res, err := fx.synth.Synthesize(entities("Order", "Customer"), uowPath)
	require.NoError(t, err)

	assert.Equal(t, Result{Artifact: uowPath, Created: true, Written: true, Added: 2}, res)
	assert.Equal(t, createdUnitOfWork, fx.read())
	assert.Equal(t, 1, fx.fs.writes)
}

func TestSynthesize_Idempotent(t *testing.T) {
	fx := setup(t, UnitOfWork(testAbstract))

	_, err := fx.synth.Synthesize(entities("Order", "Customer"), uowPath)
	require.NoError(t, err)
	first := fx.read()

	res, err := fx.synth.Synthesize(entities("Order", "Customer"), uowPath)
	require.NoError(t, err)

	assert.Equal(t, Result{Artifact: uowPath, Present: 2}, res)
	assert.Equal(t, first, fx.read())
	assert.Equal(t, 1, fx.fs.writes, "second run must not write")
}

func TestSynthesize_MonotonicMemberSet(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		first  []string
		second []string
		want   []string
	}{
		{
			name:   "unit of work",
			layout: UnitOfWork(testAbstract),
			first:  []string{"Order", "Invoice"},
			second: []string{"Order", "Customer", "Invoice", "Product"},
			want:   []string{"Commit", "Close", "OrderRepository", "InvoiceRepository", "CustomerRepository", "ProductRepository"},
		},
		{
			name:   "repository set",
			layout: RepositorySet(testAbstract),
			first:  []string{"Order"},
			second: []string{"Order", "CustomerAccount"},
			want:   []string{"OrderRepository", "CustomerAccountRepository"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := setup(t, tt.layout)
			path := tt.layout.Artifact

			_, err := fx.synth.Synthesize(entities(tt.first...), path)
			require.NoError(t, err)
			first := fx.read()

			res, err := fx.synth.Synthesize(entities(tt.second...), path)
			require.NoError(t, err)
			assert.Equal(t, len(tt.second)-len(tt.first), res.Added)
			assert.Equal(t, len(tt.first), res.Present)

			second := fx.read()
			assert.Equal(t, tt.want, memberKeys(t, second, tt.layout.Kind, tt.layout.Container))

			// Everything up to the closing brace of the first run is untouched.
			prefix := first[:strings.LastIndex(first, "}")]
			assert.True(t, strings.HasPrefix(second, prefix), "first run:\n%s\nsecond run:\n%s", first, second)
		})
	}
}

func TestSynthesize_RepositorySetKeepsFieldAlignment(t *testing.T) {
	layout := RepositorySet(testAbstract)
	fx := setup(t, layout)

	_, err := fx.synth.Synthesize(entities("Order"), layout.Artifact)
	require.NoError(t, err)
	_, err = fx.synth.Synthesize(entities("Order", "CustomerAccount"), layout.Artifact)
	require.NoError(t, err)

	assert.Contains(t, fx.read(), `type Repositories struct {
	OrderRepository abstract.OrderRepository

	CustomerAccountRepository abstract.CustomerAccountRepository
}
`)
}

func TestSynthesize_RejectsUnnamedEntity(t *testing.T) {
	fx := setup(t, UnitOfWork(testAbstract))
	in := entities("Order", "")

	_, err := fx.synth.Synthesize(in, uowPath)
	require.ErrorIs(t, err, ErrUnnamedEntity)
	assert.Equal(t, 0, fx.fs.writes)

	// Unnamed entities are rejected even when they opt out of the layout.
	in[1].Options.UnitOfWork = false
	_, err = fx.synth.Synthesize(in, uowPath)
	require.ErrorIs(t, err, ErrUnnamedEntity)
}

func TestSynthesize_EmptyInputOnAbsentArtifact(t *testing.T) {
	fx := setup(t, UnitOfWork(testAbstract))

	res, err := fx.synth.Synthesize(nil, uowPath)
	require.NoError(t, err)
	assert.Equal(t, Result{Artifact: uowPath}, res)

	// Entities that opt out count as empty too.
	optedOut := []api.Entity{{Name: "Order", Options: api.Options{Repository: true}}}
	res, err = fx.synth.Synthesize(optedOut, uowPath)
	require.NoError(t, err)
	assert.False(t, res.Created)

	assert.Equal(t, 0, fx.fs.writes)
	h, err := fx.fs.Acquire(uowPath)
	require.NoError(t, err)
	defer h.Release()
	exists, err := fx.fs.Exists(h)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSynthesize_EmptyInputOnExistingArtifact(t *testing.T) {
	fx := setup(t, UnitOfWork(testAbstract))
	fx.write(createdUnitOfWork)

	res, err := fx.synth.Synthesize(nil, uowPath)
	require.NoError(t, err)
	assert.Equal(t, Result{Artifact: uowPath}, res)
	assert.Equal(t, 0, fx.fs.writes)
	assert.Equal(t, createdUnitOfWork, fx.read())
}

func TestSynthesize_PartiallyPresent(t *testing.T) {
	existing := `package unitofwork

import "example.com/shop/internal/dal/abstract"

// UnitOfWork is hand-tuned.
type UnitOfWork interface {
	OrderRepository()   abstract.OrderRepository // keep me
	Commit() error
}

// Extra code the generator does not own.
func helper() int { return 42 }
`
	fx := setup(t, UnitOfWork(testAbstract))
	fx.write(existing)

	res, err := fx.synth.Synthesize(entities("Order", "Customer"), uowPath)
	require.NoError(t, err)
	assert.Equal(t, Result{Artifact: uowPath, Written: true, Added: 1, Present: 1}, res)

	got := fx.read()
	assert.Equal(t, []string{"OrderRepository", "Commit", "CustomerRepository"},
		memberKeys(t, got, syntax.Interface, "UnitOfWork"))
	assert.Contains(t, got, "OrderRepository() abstract.OrderRepository // keep me")
	assert.Contains(t, got, "// Extra code the generator does not own.\nfunc helper() int { return 42 }\n")
	assert.Equal(t, 1, strings.Count(got, "OrderRepository()"))
}

func TestSynthesize_TargetsNamedContainer(t *testing.T) {
	existing := `package unitofwork

type Reader interface {
	Read() error
}

type UnitOfWork interface {
	Commit() error
}
`
	fx := setup(t, UnitOfWork(testAbstract))
	fx.write(existing)

	_, err := fx.synth.Synthesize(entities("Order"), uowPath)
	require.NoError(t, err)

	got := fx.read()
	assert.Equal(t, []string{"Read"}, memberKeys(t, got, syntax.Interface, "Reader"))
	assert.Equal(t, []string{"Commit", "OrderRepository"}, memberKeys(t, got, syntax.Interface, "UnitOfWork"))
}

func TestSynthesize_StructuralMismatch(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"renamed", "package unitofwork\n\ntype Session interface {\n\tCommit() error\n}\n"},
		{"reshaped", "package unitofwork\n\ntype UnitOfWork struct {\n\tdb any\n}\n"},
		{"no types", "package unitofwork\n\nfunc New() {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := setup(t, UnitOfWork(testAbstract))
			fx.write(tt.src)

			_, err := fx.synth.Synthesize(entities("Order"), uowPath)
			require.ErrorIs(t, err, ErrStructuralMismatch)

			var me *MismatchError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, "UnitOfWork", me.Container)
			assert.Equal(t, uowPath, me.Artifact)

			assert.Equal(t, 0, fx.fs.writes)
			assert.Equal(t, tt.src, fx.read())
		})
	}
}

func TestSynthesize_ParseError(t *testing.T) {
	broken := "package unitofwork\n\ntype UnitOfWork interface {\n\tCommit( error\n"
	fx := setup(t, UnitOfWork(testAbstract))
	fx.write(broken)

	_, err := fx.synth.Synthesize(entities("Order"), uowPath)
	require.ErrorIs(t, err, syntax.ErrParse)
	assert.Equal(t, 0, fx.fs.writes)
	assert.Equal(t, broken, fx.read())
}

func TestSynthesize_StoreUnavailable(t *testing.T) {
	fx := setup(t, UnitOfWork(testAbstract))
	fx.write(createdUnitOfWork)
	fx.fs.failing = true

	_, err := fx.synth.Synthesize(entities("Order", "Customer", "Product"), uowPath)
	require.ErrorIs(t, err, artifact.ErrUnavailable)
	assert.Equal(t, createdUnitOfWork, fx.read(), "no partial write")

	// The handle was released on the failure path.
	h, err := fx.fs.Acquire(uowPath)
	require.NoError(t, err)
	h.Release()
}

func TestSynthesize_DuplicateNamesAddedOnce(t *testing.T) {
	fx := setup(t, UnitOfWork(testAbstract))

	res, err := fx.synth.Synthesize(entities("Order", "Order"), uowPath)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Present)
	assert.Equal(t, 1, strings.Count(fx.read(), "OrderRepository()"))
}

func TestSynthesize_EmptyExistingFileIsSeeded(t *testing.T) {
	fx := setup(t, UnitOfWork(testAbstract))
	fx.write("\n")

	res, err := fx.synth.Synthesize(entities("Order", "Customer"), uowPath)
	require.NoError(t, err)
	assert.Equal(t, Result{Artifact: uowPath, Written: true, Added: 2}, res)
	assert.Equal(t, createdUnitOfWork, fx.read())
}

func TestSynthesize_RepositorySet(t *testing.T) {
	layout := RepositorySet(testAbstract)
	fx := setup(t, layout)

	res, err := fx.synth.Synthesize(entities("Order", "Customer"), layout.Artifact)
	require.NoError(t, err)
	assert.True(t, res.Created)

	assert.Equal(t, `package unitofwork

import "example.com/shop/internal/dal/abstract"

// Repositories holds one repository per entity for a UnitOfWork implementation.
type Repositories struct {
	OrderRepository    abstract.OrderRepository
	CustomerRepository abstract.CustomerRepository
}
`, fx.read())

	res, err = fx.synth.Synthesize(entities("Order", "Customer"), layout.Artifact)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Present)
	assert.False(t, res.Written)
}

func TestUnitOfWork_QualifierFollowsPackage(t *testing.T) {
	layout := UnitOfWork("example.com/shop/internal/contracts")
	assert.Equal(t, "OrderRepository() contracts.OrderRepository", layout.Member("Order"))
	assert.Contains(t, string(layout.Skeleton), `"example.com/shop/internal/contracts"`)
}

func TestSynthesize_WarnsOnAmbiguousFile(t *testing.T) {
	existing := `package unitofwork

type Repositories struct {
	OrderRepository abstract.OrderRepository
}

type Repositories struct{}
`
	fx := setup(t, RepositorySet(testAbstract))
	fx.write(existing)

	res, err := fx.synth.Synthesize(entities("Order", "Customer"), DefaultRepositoriesPath)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Present)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "type Repositories declared again")
	assert.Equal(t, []string{"OrderRepository", "CustomerRepository"},
		memberKeys(t, fx.read(), syntax.Struct, "Repositories"))
}
