// Package deepgram streams microphone audio to Deepgram's realtime listen
// API over a websocket and reports transcribed segments with word timings
// and speaker labels.
package deepgram

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type TranscriptionClient struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	lastAudioTs time.Time

	accumulatedTranscript string
	unendedUtterance      bool
}

func NewTranscriptionClient() *TranscriptionClient {
	return &TranscriptionClient{}
}

func (s *TranscriptionClient) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil {
		conn := s.conn
		s.conn = nil
		return conn.Close()
	}
	return nil
}
