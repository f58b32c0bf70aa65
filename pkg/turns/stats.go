package turns

import (
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is the tokenizer used for token estimates.
const DefaultEncoding = tokenizer.Cl100kBase

// Stats summarizes a message for reporting.
type Stats struct {
	Blocks         map[BlockKind]int      `yaml:"blocks" json:"blocks"`
	ToolCalls      map[ToolCallStatus]int `yaml:"tool_calls" json:"toolCalls"`
	Subagents      map[SubagentStatus]int `yaml:"subagents" json:"subagents"`
	NestedTools    int                    `yaml:"nested_tool_calls" json:"nestedToolCalls"`
	ContentTokens  int                    `yaml:"content_tokens" json:"contentTokens"`
	ThinkingTokens int                    `yaml:"thinking_tokens" json:"thinkingTokens"`
}

// ComputeStats counts blocks, statuses and estimated tokens of m using the given
// tokenizer encoding (DefaultEncoding when empty).
func ComputeStats(m *Message, encoding tokenizer.Encoding) (*Stats, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load tokenizer %s", encoding)
	}

	s := &Stats{
		Blocks:    map[BlockKind]int{},
		ToolCalls: map[ToolCallStatus]int{},
		Subagents: map[SubagentStatus]int{},
	}
	if m == nil {
		return s, nil
	}

	count := func(text string) (int, error) {
		if text == "" {
			return 0, nil
		}
		ids, _, err := codec.Encode(text)
		if err != nil {
			return 0, errors.Wrap(err, "could not encode text")
		}
		return len(ids), nil
	}

	for _, b := range m.Blocks {
		s.Blocks[b.Kind]++
		if b.Kind == BlockKindThinking {
			n, err := count(b.Content)
			if err != nil {
				return nil, err
			}
			s.ThinkingTokens += n
		}
	}
	for _, c := range m.ToolCalls {
		s.ToolCalls[c.Status]++
	}
	for _, r := range m.Subagents {
		s.Subagents[r.Status]++
		s.NestedTools += len(r.ToolCalls)
	}
	s.ContentTokens, err = count(m.Content)
	if err != nil {
		return nil, err
	}
	return s, nil
}
