package deepgram

import (
	"fmt"

	"github.com/voxa-labs/voxa-core/core/audio"
)

type streamEncoding struct {
	sampleRate int
	name       string
}

var supportedSampleRates = map[int]bool{
	8000: true, 16000: true, 24000: true, 32000: true, 48000: true,
}

func resolveEncoding(encoding audio.EncodingInfo) (*streamEncoding, error) {
	if !supportedSampleRates[encoding.SampleRate] {
		return nil, fmt.Errorf("unsupported sample rate: %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		return &streamEncoding{sampleRate: encoding.SampleRate, name: "linear16"}, nil
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return nil, fmt.Errorf("unsupported sample rate for %s encoding: %d", encoding.Format.Name(), encoding.SampleRate)
		}
		return &streamEncoding{sampleRate: encoding.SampleRate, name: encoding.Format.Name()}, nil
	}

	return nil, fmt.Errorf("unsupported encoding: %q", encoding.Format.Name())
}
