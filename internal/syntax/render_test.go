package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_FormatsGo(t *testing.T) {
	got, err := Format([]byte("package main\n\nfunc A()  {\nreturn\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc A() {\n\treturn\n}\n", string(got))
}

func TestFormat_InvalidGo(t *testing.T) {
	_, err := Format([]byte("func broken {{{"))
	assert.ErrorIs(t, err, ErrParse)
}

func TestRender_AppendsBeforeClosingBrace(t *testing.T) {
	src := `package unitofwork

// UnitOfWork groups repositories.
type UnitOfWork interface {
	Commit() error

	// trailing comment stays above new members
}

func keep()  {}
`
	f, err := Parse([]byte(src))
	require.NoError(t, err)

	c := f.Container(Interface, "UnitOfWork")
	c.Append("OrderRepository", "OrderRepository() abstract.OrderRepository")
	c.Append("CustomerRepository", "CustomerRepository() abstract.CustomerRepository")

	got, err := f.Render()
	require.NoError(t, err)
	assert.Equal(t, `package unitofwork

// UnitOfWork groups repositories.
type UnitOfWork interface {
	Commit() error

	// trailing comment stays above new members
	OrderRepository() abstract.OrderRepository
	CustomerRepository() abstract.CustomerRepository
}

func keep() {}
`, string(got))
}

func TestRender_EmptyInlineBody(t *testing.T) {
	f, err := Parse([]byte("package p\n\ntype Repositories struct{}\n"))
	require.NoError(t, err)

	f.Container(Struct, "Repositories").Append("OrderRepository", "OrderRepository abstract.OrderRepository")

	got, err := f.Render()
	require.NoError(t, err)
	assert.Equal(t, "package p\n\ntype Repositories struct {\n\tOrderRepository abstract.OrderRepository\n}\n", string(got))
}

func TestRender_NoPendingIsFormattedSource(t *testing.T) {
	src := "package p\n\ntype X interface {\n\tA()\n}\n"
	f, err := Parse([]byte(src))
	require.NoError(t, err)

	got, err := f.Render()
	require.NoError(t, err)
	assert.Equal(t, src, string(got))
}

func TestRender_MultipleContainers(t *testing.T) {
	src := "package p\n\ntype A interface {\n\tX()\n}\n\ntype B struct {\n\tY int\n}\n"
	f, err := Parse([]byte(src))
	require.NoError(t, err)

	f.Container(Interface, "A").Append("Z", "Z()")
	f.Container(Struct, "B").Append("W", "W string")

	got, err := f.Render()
	require.NoError(t, err)
	assert.Equal(t, "package p\n\ntype A interface {\n\tX()\n\tZ()\n}\n\ntype B struct {\n\tY int\n\n\tW string\n}\n", string(got))
}

func TestRender_StructAppendKeepsExistingAlignment(t *testing.T) {
	src := "package p\n\ntype Repositories struct {\n\tOrderRepository abstract.OrderRepository\n\tTax             int\n}\n"
	f, err := Parse([]byte(src))
	require.NoError(t, err)

	f.Container(Struct, "Repositories").Append("CustomerAccountRepository", "CustomerAccountRepository abstract.CustomerAccountRepository")

	got, err := f.Render()
	require.NoError(t, err)
	assert.Equal(t, "package p\n\ntype Repositories struct {\n"+
		"\tOrderRepository abstract.OrderRepository\n"+
		"\tTax             int\n"+
		"\n"+
		"\tCustomerAccountRepository abstract.CustomerAccountRepository\n"+
		"}\n", string(got))
}

func TestRender_NormalizesWholeFile(t *testing.T) {
	src := "package p\n\n//hand written\nfunc helper( ) int {return 42}\n\ntype S struct{}\n"
	f, err := Parse([]byte(src))
	require.NoError(t, err)

	f.Container(Struct, "S").Append("A", "A int")

	got, err := f.Render()
	require.NoError(t, err)
	assert.Equal(t, "package p\n\n// hand written\nfunc helper() int { return 42 }\n\ntype S struct {\n\tA int\n}\n", string(got))
}
