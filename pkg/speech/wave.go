package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWaveFile loads a 16 kHz 16-bit mono WAV file as raw PCM.
func ReadWaveFile(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	pcm, err := DecodeWave(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return pcm, nil
}

// DecodeWave converts 16 kHz 16-bit mono WAV content to raw PCM.
func DecodeWave(data []byte) ([]byte, error) {
	mtype := mimetype.Detect(data)
	if !mtype.Is("audio/wav") {
		return nil, fmt.Errorf("content is %s, expected audio/wav", mtype.String())
	}

	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, errors.New("not a valid wave file")
	}
	if d.SampleRate != SampleRate || d.BitDepth != BitsPerSample || d.NumChans != Channels {
		return nil, fmt.Errorf("unsupported wave format %dHz/%dbit/%dch, need %dHz/%dbit/%dch",
			d.SampleRate, d.BitDepth, d.NumChans, SampleRate, BitsPerSample, Channels)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wave: %w", err)
	}

	return bufferToPCM(buf), nil
}

// WriteWaveFile stores raw PCM as a WAV file.
func WriteWaveFile(filename string, pcm []byte) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, SampleRate, BitsPerSample, Channels, 1)
	if err = enc.Write(pcmToBuffer(pcm)); err != nil {
		return err
	}
	return enc.Close()
}

func bufferToPCM(buf *audio.IntBuffer) []byte {
	pcm := make([]byte, len(buf.Data)*2)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}
	return pcm
}

func pcmToBuffer(pcm []byte) *audio.IntBuffer {
	data := make([]int, len(pcm)/2)
	for i := range data {
		data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: Channels,
			SampleRate:  SampleRate,
		},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}
}
