package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrapFormatsContext(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "Network", "AddEdge", "socket wiring")
	require.Error(t, err)
	assert.Equal(t, "Network.AddEdge: socket wiring failed: boom", err.Error())
	assert.ErrorIs(t, err, base)

	assert.Nil(t, Wrap(nil, "Network", "AddEdge", "socket wiring"))
}

func TestWrapClassified(t *testing.T) {
	base := stderrors.New("boom")

	transient := WrapTransient(base, "Network", "Start", "component start")
	assert.True(t, IsTransient(transient))
	assert.False(t, IsInvalid(transient))
	assert.False(t, IsFatal(transient))

	invalid := WrapInvalid(base, "Network", "AddEdge", "port lookup")
	assert.True(t, IsInvalid(invalid))
	assert.False(t, IsTransient(invalid))

	fatal := WrapFatal(base, "Network", "Connect", "loader failure")
	assert.True(t, IsFatal(fatal))

	assert.Nil(t, WrapTransient(nil, "a", "b", "c"))
	assert.Nil(t, WrapInvalid(nil, "a", "b", "c"))
	assert.Nil(t, WrapFatal(nil, "a", "b", "c"))
}

func TestClassifiedErrorUnwraps(t *testing.T) {
	err := WrapInvalid(fmt.Errorf("%w: B", ErrNodeNotFound), "Network", "GetNode", "lookup")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	var ce *ClassifiedError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, "Network", ce.Component)
	assert.Equal(t, "GetNode", ce.Operation)
	assert.Equal(t, ErrorInvalid, ce.Class)
}

func TestSentinelClassification(t *testing.T) {
	assert.True(t, IsInvalid(ErrNodeNotFound))
	assert.True(t, IsInvalid(ErrPortNotFound))
	assert.True(t, IsInvalid(ErrInvalidGraph))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsFatal(nil))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorInvalid, Classify(ErrNodeNotFound))
	assert.Equal(t, ErrorFatal, Classify(WrapFatal(stderrors.New("x"), "a", "b", "c")))
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("anything else")))
}
