package gateway

import (
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// Stream is a finite, non-restartable sequence of incremental text
// fragments. Empty deltas and chunks without choices are skipped. The usual
// loop:
//
//	for stream.Next() {
//		consume(stream.Current())
//	}
//	if err := stream.Err(); err != nil { ... }
type Stream struct {
	inner   *ssestream.Stream[openaisdk.ChatCompletionChunk]
	current string
}

func (s *Stream) Next() bool {
	for s.inner.Next() {
		chunk := s.inner.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			s.current = delta
			return true
		}
	}
	return false
}

func (s *Stream) Current() string {
	return s.current
}

func (s *Stream) Err() error {
	return s.inner.Err()
}

func (s *Stream) Close() error {
	return s.inner.Close()
}
