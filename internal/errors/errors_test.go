package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

func TestBuilderDefaults(t *testing.T) {
	base := errors.New("boom")
	ee := pipelineerr.New(base).Build()

	assert.Equal(t, pipelineerr.ComponentUnknown, ee.Component)
	assert.Equal(t, pipelineerr.CategoryGeneric, ee.Category)
	assert.Equal(t, "boom", ee.Error())
	assert.Same(t, base, ee.Unwrap())
}

func TestBuilderWithFields(t *testing.T) {
	base := errors.New("short read")
	ee := pipelineerr.New(base).
		Component("pipeline.sampler").
		Category(pipelineerr.CategoryCapture).
		Context("want", 640).
		Context("got", 12).
		Build()

	assert.Equal(t, "pipeline.sampler", ee.Component)
	assert.Equal(t, pipelineerr.CategoryCapture, ee.Category)
	require.NotNil(t, ee.Context)
	assert.Equal(t, 640, ee.Context["want"])
}

func TestIsMatchesByCategory(t *testing.T) {
	a := pipelineerr.New(errors.New("a")).Category(pipelineerr.CategoryQueue).Build()
	b := pipelineerr.New(errors.New("b")).Category(pipelineerr.CategoryQueue).Build()

	assert.True(t, a.Is(b))
}
