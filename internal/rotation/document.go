package rotation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

const (
	gameField     = "game"
	scenarioField = "scenarioId"
)

var errNotObject = errors.New("not a JSON object")

// Document is a server config document. Only game.scenarioId is
// interpreted; every other value is kept as raw JSON and written back as is,
// in its original key order.
type Document struct {
	fields object
}

// ParseDocument decodes a JSON object into a Document.
func ParseDocument(data []byte) (Document, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return Document{}, fmt.Errorf("parse config document: %w", err)
	}
	return Document{fields: obj}, nil
}

// Marshal encodes the document as indented JSON with a trailing newline.
func (d Document) Marshal() ([]byte, error) {
	compact, err := d.fields.encode()
	if err != nil {
		return nil, fmt.Errorf("encode config document: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("encode config document: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Field returns the raw value of a top-level key.
func (d Document) Field(key string) (json.RawMessage, bool) {
	v, ok := d.fields.values[key]
	return v, ok
}

// Keys returns the top-level keys in document order.
func (d Document) Keys() []string {
	return slices.Clone(d.fields.keys)
}

// Clone returns a copy that shares no state with d.
func (d Document) Clone() Document {
	return Document{fields: d.fields.clone()}
}

func (d Document) game() (object, error) {
	raw, ok := d.fields.values[gameField]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return object{}, ErrMissingConfigField
	}
	game, err := decodeObject(raw)
	if err != nil {
		return object{}, fmt.Errorf("%w: game: %v", ErrMissingConfigField, err)
	}
	return game, nil
}

// ScenarioID returns game.scenarioId, or "" when the game section has none.
func (d Document) ScenarioID() (string, error) {
	game, err := d.game()
	if err != nil {
		return "", err
	}
	raw, ok := game.values[scenarioField]
	if !ok {
		return "", nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("decode game.scenarioId: %w", err)
	}
	return id, nil
}

// WithScenarioID returns a copy of the document with game.scenarioId set.
func (d Document) WithScenarioID(id string) (Document, error) {
	game, err := d.game()
	if err != nil {
		return Document{}, err
	}
	encodedID, err := json.Marshal(id)
	if err != nil {
		return Document{}, fmt.Errorf("encode scenario id: %w", err)
	}
	game.set(scenarioField, encodedID)

	encodedGame, err := game.encode()
	if err != nil {
		return Document{}, fmt.Errorf("encode game section: %w", err)
	}
	out := d.Clone()
	out.fields.set(gameField, encodedGame)
	return out, nil
}

// object is a JSON object that remembers its key order.
type object struct {
	keys   []string
	values map[string]json.RawMessage
}

func decodeObject(data []byte) (object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return object{}, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return object{}, errNotObject
	}

	obj := object{values: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return object{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return object{}, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return object{}, fmt.Errorf("value of %q: %w", key, err)
		}
		// Duplicate keys keep their first position and last value.
		obj.set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return object{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return object{}, errors.New("trailing data after object")
	}
	return obj, nil
}

func (o *object) set(key string, raw json.RawMessage) {
	if o.values == nil {
		o.values = make(map[string]json.RawMessage)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = raw
}

func (o object) clone() object {
	return object{keys: slices.Clone(o.keys), values: maps.Clone(o.values)}
}

func (o object) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		if err := json.Compact(&buf, o.values[key]); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
