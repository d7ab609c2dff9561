// internal/audio/wavfile.go
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

// RIFF format tags
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// pcmSubFormat is KSDATAFORMAT_SUBTYPE_PCM as stored in an extensible fmt chunk
var pcmSubFormat = [16]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// subFormatOffset is where the sub-format GUID starts in an extensible fmt chunk
const subFormatOffset = 24

// wavBitDepth is the bit depth used when writing clips
const wavBitDepth = 16

// Load decodes a PCM WAV file into a mono Clip, averaging channels when
// the file has more than one.
func Load(path string) (*Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrUnsupportedFormat, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrUnsupportedFormat, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyAudio)
	}

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s: %w: not a RIFF/WAVE file", path, ErrUnsupportedFormat)
	}
	switch decoder.WavAudioFormat {
	case wavFormatPCM:
	case wavFormatExtensible:
		// ReadAt leaves the decoder's read offset alone
		if err = checkPCMSubFormat(io.NewSectionReader(file, 0, info.Size())); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w: format tag %d is not PCM", path, ErrUnsupportedFormat, decoder.WavAudioFormat)
	}

	offset, divisor, err := pcmScale(int(decoder.BitDepth))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		return nil, fmt.Errorf("%s: %w: %d channels", path, ErrUnsupportedFormat, channels)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrUnsupportedFormat, err)
	}

	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyAudio)
	}

	samples := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for ch := range channels {
			sum += (float64(buf.Data[i*channels+ch]) - offset) / divisor
		}
		samples[i] = clampUnit(sum / float64(channels))
	}

	clip, err := NewClip(samples, int(decoder.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return clip, nil
}

// pcmScale returns the offset and divisor converting integer PCM to
// [-1, 1]. 8-bit PCM is unsigned and centred on 128.
func pcmScale(bitDepth int) (offset, divisor float64, err error) {
	switch bitDepth {
	case 8:
		return 128, 128, nil
	case 16:
		return 0, 32768.0, nil
	case 24:
		return 0, 8388608.0, nil
	case 32:
		return 0, 2147483648.0, nil
	default:
		return 0, 0, fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, bitDepth)
	}
}

// checkPCMSubFormat finds the fmt chunk of an extensible WAV and accepts
// it only when the sub-format GUID is integer PCM.
func checkPCMSubFormat(r io.Reader) error {
	parser := riff.New(r)
	if err := parser.ParseHeaders(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	for {
		chunk, err := parser.NextChunk()
		if err != nil {
			return fmt.Errorf("%w: no fmt chunk: %v", ErrUnsupportedFormat, err)
		}
		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}

		if chunk.Size < subFormatOffset+len(pcmSubFormat) {
			return fmt.Errorf("%w: extensible fmt chunk of %d bytes", ErrUnsupportedFormat, chunk.Size)
		}
		body := make([]byte, chunk.Size)
		if _, err = io.ReadFull(chunk, body); err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		guid := body[subFormatOffset : subFormatOffset+len(pcmSubFormat)]
		if !bytes.Equal(guid, pcmSubFormat[:]) {
			return fmt.Errorf("%w: extensible sub-format %#04x is not PCM",
				ErrUnsupportedFormat, binary.LittleEndian.Uint16(guid))
		}
		return nil
	}
}

// WriteWAV writes clip as 16-bit mono PCM, creating parent directories.
func WriteWAV(path string, clip *Clip) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer out.Close()

	const scale = 32767.0
	data := make([]int, clip.Len())
	for i, s := range clip.samples {
		data[i] = int(math.Round(s * scale))
	}

	enc := wav.NewEncoder(out, clip.sampleRate, wavBitDepth, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: clip.sampleRate, NumChannels: 1},
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav %s: %w", path, err)
	}
	return nil
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
