package session

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-go-golems/turnweaver/pkg/events"
)

// ChunkSource yields the chunks of one turn. Next returns io.EOF once the source is
// exhausted; any other error fails the turn.
type ChunkSource interface {
	Next(ctx context.Context) (events.Event, error)
}

// SliceSource replays a fixed list of chunks.
type SliceSource struct {
	mu     sync.Mutex
	events []events.Event
	pos    int
}

func NewSliceSource(evs ...events.Event) *SliceSource {
	return &SliceSource{events: evs}
}

func (s *SliceSource) Next(ctx context.Context) (events.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	e := s.events[s.pos]
	s.pos++
	return e, nil
}

// ChannelSource reads chunks from a channel until it is closed.
type ChannelSource struct {
	ch <-chan events.Event
}

func NewChannelSource(ch <-chan events.Event) *ChannelSource {
	return &ChannelSource{ch: ch}
}

func (s *ChannelSource) Next(ctx context.Context) (events.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case e, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return e, nil
	}
}

const maxChunkLine = 1024 * 1024

// JSONLSource decodes one JSON chunk per line. Blank lines are skipped.
type JSONLSource struct {
	scanner   *bufio.Scanner
	validator *events.Validator
	line      int
}

type JSONLOption func(*JSONLSource)

// WithValidator checks every line against the chunk schema before decoding it.
func WithValidator(v *events.Validator) JSONLOption {
	return func(s *JSONLSource) {
		s.validator = v
	}
}

func NewJSONLSource(r io.Reader, options ...JSONLOption) *JSONLSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxChunkLine)
	ret := &JSONLSource{scanner: scanner}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (s *JSONLSource) Next(ctx context.Context) (events.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, errors.Wrapf(err, "could not read chunk after line %d", s.line)
			}
			return nil, io.EOF
		}
		s.line++
		b := bytes.TrimSpace(s.scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if s.validator != nil {
			if err := s.validator.Validate(b); err != nil {
				return nil, errors.Wrapf(err, "line %d", s.line)
			}
		}
		e, err := events.NewEventFromJson(b)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", s.line)
		}
		return e, nil
	}
}
