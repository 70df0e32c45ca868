//go:build cgo

// Command voxa-demo runs a terminal voice conversation against the engine,
// with microphone capture and playback on the default audio devices.
//
// Required environment: DEEPGRAM_API_KEY and GROQ_API_KEY.
package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	engine "github.com/voxa-labs/voxa-core/core"
	"github.com/voxa-labs/voxa-core/core/audio/miniaudio"
	"github.com/voxa-labs/voxa-core/core/echo/llm"
	"github.com/voxa-labs/voxa-core/core/events"
	"github.com/voxa-labs/voxa-core/core/llms"
	"github.com/voxa-labs/voxa-core/core/llms/groq"
	sttdeepgram "github.com/voxa-labs/voxa-core/core/speechtotext/deepgram"
	ttsdeepgram "github.com/voxa-labs/voxa-core/core/texttospeech/deepgram"
)

const systemPrompt = "You are a friendly voice assistant. Keep responses short " +
	"and conversational, a sentence or two at most. You are heard, not read, " +
	"so avoid lists, markdown, and anything that only works on a screen."

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	device, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to initialize audio device: %w", err)
	}
	defer device.Close()

	llmClient := groq.NewClient()

	speech, err := ttsdeepgram.NewTextToSpeechClient("")
	if err != nil {
		return fmt.Errorf("failed to initialize speech synthesis: %w", err)
	}

	updates := make(chan tea.Msg, 64)

	voice, err := engine.NewEngine(
		engine.WithSpeechToTextClient(sttdeepgram.NewTranscriptionClient()),
		engine.WithTextToSpeechClient(speech),
		engine.WithLLMClient(llmClient),
		engine.WithAudioInputClient(device),
		engine.WithAudioOutputClient(device),
		engine.WithEngineSystemPrompt(systemPrompt),
		engine.WithValidator(llm.NewValidator(llmClient)),
		engine.WithMessageCallback(func(role llms.Role, content string, interim bool, speaker *int) {
			updates <- messageMsg{role: role, content: content, interim: interim, speaker: speaker}
		}),
		engine.WithEngineErrorCallback(func(err error) {
			updates <- errorMsg{err: err}
		}),
		engine.WithEventCallback(func(event events.Event) {
			updates <- eventMsg{event: event}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to assemble engine: %w", err)
	}
	defer voice.Close()

	if err := voice.Connect(context.Background()); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	program := tea.NewProgram(newModel(voice, updates), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal session ended abnormally: %w", err)
	}
	return nil
}
