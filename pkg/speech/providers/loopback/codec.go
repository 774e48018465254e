package loopback

import (
	"encoding/binary"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// every text byte becomes one millisecond of a constant tone
	samplesPerByte = 16
	sampleShift    = 6
	// 10ms of silence around each utterance
	silenceSamples = 160
)

// encodeText renders text as PCM the recognizer can read back.
func encodeText(text string) []byte {
	samples := 2*silenceSamples + len(text)*samplesPerByte
	pcm := make([]byte, samples*2)

	pos := silenceSamples * 2
	for i := 0; i < len(text); i++ {
		v := uint16(int16(text[i]) << sampleShift)
		for j := 0; j < samplesPerByte; j++ {
			binary.LittleEndian.PutUint16(pcm[pos:], v)
			pos += 2
		}
	}
	return pcm
}

// decodeText reads back what encodeText produced. Silence and other noise
// yield an empty string.
func decodeText(pcm []byte) string {
	var sb strings.Builder
	run := 0
	var current int16

	flush := func() {
		for ; run >= samplesPerByte; run -= samplesPerByte {
			sb.WriteByte(byte(current >> sampleShift))
		}
		run = 0
	}

	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		if s == 0 || s&(1<<sampleShift-1) != 0 || s < 0 {
			flush()
			continue
		}
		if s != current {
			flush()
			current = s
		}
		run++
	}
	flush()

	out := sb.String()
	if !utf8.ValidString(out) {
		return ""
	}
	return out
}

// normalize formats raw text the way the speech service displays it.
func normalize(text string, lexicon map[string]string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	for i, w := range words {
		core := strings.TrimRightFunc(w, unicode.IsPunct)
		if r, ok := lexicon[strings.ToLower(core)]; ok {
			words[i] = r + w[len(core):]
		}
	}

	out := strings.Join(words, " ")
	first, size := utf8.DecodeRuneInString(out)
	out = string(unicode.ToUpper(first)) + out[size:]

	last, _ := utf8.DecodeLastRuneInString(out)
	if !strings.ContainsRune(".?!", last) {
		out += "."
	}
	return out
}
