package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Content is the body of a document: either a structured value decoded from
// JSON or plain text.
type Content struct {
	value      any
	text       string
	structured bool
}

// Text wraps a plain-text body.
func Text(s string) Content {
	return Content{text: s}
}

// Structured wraps a structured body.
func Structured(v any) Content {
	return Content{value: v, structured: true}
}

// Decode applies the parse-or-fallback policy: a payload holding exactly one
// JSON value becomes structured content, anything else stays text. It never
// fails.
func Decode(raw string) Content {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Text(raw)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Text(raw)
	}
	return Structured(v)
}

// IsStructured reports whether c holds decoded JSON.
func (c Content) IsStructured() bool {
	return c.structured
}

// Value returns the structured value, or the text when c is plain text.
func (c Content) Value() any {
	if c.structured {
		return c.value
	}
	return c.text
}

// Encode serializes c for the remote store.
func (c Content) Encode() (string, error) {
	if !c.structured {
		return c.text, nil
	}
	data, err := json.Marshal(c.value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Display renders c for humans: indented JSON or the raw text.
func (c Content) Display() string {
	if !c.structured {
		return c.text
	}
	data, err := json.MarshalIndent(c.value, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
