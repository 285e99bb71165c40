package onnxmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	ort "github.com/yalue/onnxruntime_go"
)

func TestFlattenedSizeMultipliesDimensions(t *testing.T) {
	assert.Equal(t, 1*1*5*32, flattenedSize(ort.NewShape(1, 1, 5, 32)))
	assert.Equal(t, 96, flattenedSize(ort.NewShape(1, 96)))
	assert.Equal(t, sileroStateSize, flattenedSize(ort.NewShape(sileroStateDim0, sileroStateDim1, sileroStateDim2)))
}
