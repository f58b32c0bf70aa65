package events

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// ChunkTypes lists the chunk types that may appear in a turn stream, in protocol order.
var ChunkTypes = []EventType{
	EventTypeText,
	EventTypeThinking,
	EventTypeToolUse,
	EventTypeToolResult,
	EventTypeUsage,
	EventTypeError,
	EventTypeBlocked,
	EventTypeDone,
}

// ChunkSchema builds a JSON schema (draft-07) accepting exactly one of the given chunk
// types. Without arguments it covers ChunkTypes.
func ChunkSchema(types ...EventType) (map[string]interface{}, error) {
	if len(types) == 0 {
		types = ChunkTypes
	}
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
		Anonymous:                 true,
	}

	variants := make([]interface{}, 0, len(types))
	for _, t := range types {
		ev := zeroEvent(t)
		if ev == nil {
			return nil, errors.Errorf("no schema for chunk type %q", t)
		}
		s := reflector.Reflect(ev)
		b, err := json.Marshal(s)
		if err != nil {
			return nil, errors.Wrapf(err, "could not marshal schema for %s", t)
		}
		var m map[string]interface{}
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, errors.Wrapf(err, "could not decode schema for %s", t)
		}
		delete(m, "$schema")
		delete(m, "$id")
		props, _ := m["properties"].(map[string]interface{})
		if props == nil {
			props = map[string]interface{}{}
			m["properties"] = props
		}
		props["type"] = map[string]interface{}{"const": string(t)}
		m["title"] = string(t)
		variants = append(variants, m)
	}

	return map[string]interface{}{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title":   "turn chunk",
		"oneOf":   variants,
	}, nil
}

// Validator checks raw chunks against ChunkSchema before they are decoded.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator(types ...EventType) (*Validator, error) {
	s, err := ChunkSchema(types...)
	if err != nil {
		return nil, err
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s))
	if err != nil {
		return nil, errors.Wrap(err, "could not compile chunk schema")
	}
	return &Validator{schema: compiled}, nil
}

func (v *Validator) Validate(b []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return errors.Wrap(err, "could not validate chunk")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.Errorf("invalid chunk: %s", strings.Join(msgs, "; "))
}
