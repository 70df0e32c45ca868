// Package deepgram streams text to Deepgram's realtime speak API and
// reports the synthesized audio as it arrives.
package deepgram

import (
	"fmt"
	"slices"
)

type deepgramVoice string

const (
	VoiceAsteriaEn deepgramVoice = "aura-2-asteria-en"
	VoiceThaliaEn  deepgramVoice = "aura-2-thalia-en"
	VoiceOrionEn   deepgramVoice = "aura-2-orion-en"
	VoiceArcasEn   deepgramVoice = "aura-2-arcas-en"
	VoiceLunaEn    deepgramVoice = "aura-2-luna-en"

	defaultVoice = VoiceThaliaEn
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{
		VoiceAsteriaEn, VoiceThaliaEn, VoiceOrionEn, VoiceArcasEn, VoiceLunaEn,
	}
}

type TextToSpeechClient struct {
	voice deepgramVoice
}

func NewTextToSpeechClient(voice deepgramVoice) (*TextToSpeechClient, error) {
	if voice == "" {
		voice = defaultVoice
	}
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice: %q", voice)
	}

	return &TextToSpeechClient{voice: voice}, nil
}

func (c *TextToSpeechClient) SetVoice(voice deepgramVoice) error {
	if !slices.Contains(GetAvailableVoices(), voice) {
		return fmt.Errorf("invalid voice: %q", voice)
	}
	c.voice = voice
	return nil
}
