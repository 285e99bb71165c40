package orchestrator

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

const (
	wavFormatIEEEFloat = 3 // WAVE_FORMAT_IEEE_FLOAT, sub-chunk 1's AudioFormat field
	wavChannels        = 1
	wavBitsPerSample   = 32
)

// writeUtteranceWAV encodes samples as a 16 kHz mono 32-bit-float WAV file
// named utterance_YYYYMMDDhhmmss.wav in the system temp directory, and
// returns the path it wrote. Unlike the originating codebase's 16-bit PCM
// exporter, this writes IEEE float samples directly (format code 3): the
// pipeline's Chunk already carries float32 samples in [-1,1], and
// round-tripping them through int16 before the file write would needlessly
// throw away precision.
func writeUtteranceWAV(sampleRate int, samples []float32, now time.Time) (string, error) {
	fileName := fmt.Sprintf("utterance_%s.wav", now.Format("20060102150405"))
	path := filepath.Join(os.TempDir(), fileName)

	data := encodeWAV(sampleRate, samples)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", pipelineerr.New(err).Component("orchestrator").Category(pipelineerr.CategoryFileIO).
			Context("path", path).Build()
	}
	return path, nil
}

func encodeWAV(sampleRate int, samples []float32) []byte {
	byteRate := sampleRate * wavChannels * (wavBitsPerSample / 8)
	blockAlign := wavChannels * (wavBitsPerSample / 8)
	dataSize := uint32(len(samples) * 4)
	chunkSize := 36 + dataSize

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*4))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, chunkSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(wavFormatIEEEFloat))
	_ = binary.Write(buf, binary.LittleEndian, uint16(wavChannels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(wavBitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
	for _, s := range samples {
		_ = binary.Write(buf, binary.LittleEndian, s)
	}

	return buf.Bytes()
}
