package orchestrator

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeaderFields(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1}
	data := encodeWAV(16000, samples)

	require.True(t, len(data) >= 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))

	audioFormat := binary.LittleEndian.Uint16(data[20:22])
	assert.Equal(t, uint16(3), audioFormat, "expected IEEE float format code")

	channels := binary.LittleEndian.Uint16(data[22:24])
	assert.Equal(t, uint16(1), channels)

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	assert.Equal(t, uint32(16000), sampleRate)

	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])
	assert.Equal(t, uint16(32), bitsPerSample)

	assert.Equal(t, "data", string(data[36:40]))
	dataSize := binary.LittleEndian.Uint32(data[40:44])
	assert.Equal(t, uint32(len(samples)*4), dataSize)

	firstSampleBits := binary.LittleEndian.Uint32(data[44:48])
	assert.InDelta(t, 0.0, float64(math.Float32frombits(firstSampleBits)), 0.0001)
}

func TestEncodeWAVEmptyBuffer(t *testing.T) {
	data := encodeWAV(16000, nil)
	assert.Len(t, data, 44)
}
