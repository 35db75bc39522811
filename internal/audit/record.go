package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Level tags a record for routing by the log sink. Levels are not ordered.
type Level string

const (
	// LevelInfo marks a successful call.
	LevelInfo Level = "INFO"
	// LevelError marks a known service-level failure or a violated precondition.
	LevelError Level = "ERROR"
	// LevelFatal marks anything unexpected.
	LevelFatal Level = "FATAL"
)

// Category identifies the façade a record came from.
type Category string

const (
	CategoryStorage Category = "AWSS3"
	CategoryQueue   Category = "AWSSQS"
	CategoryMailer  Category = "AWSSES"
)

// Field is one entry of a Request, in declaration order.
type Field struct {
	Name  string
	Value any
}

// Request maps parameter names to logged values. It encodes as a JSON object
// whose keys keep the order in which the parameters were declared.
type Request []Field

// Get returns the logged value of a parameter.
func (r Request) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes the fields as an ordered JSON object.
func (r Request) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode parameter %s: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object back into fields, preserving key order.
func (r *Request) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("request must be a JSON object, got %v", tok)
	}

	fields := Request{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected request key %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode parameter %s: %w", name, err)
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = fields
	return nil
}

// Record is the structured entry sent to a Sink for one façade call.
// The JSON keys are the field names the Graylog streams index.
type Record struct {
	Category  Category `json:"class"`
	Message   string   `json:"message"`
	Operation string   `json:"method"`
	Level     Level    `json:"level"`
	Request   Request  `json:"request"`
	Response  string   `json:"response"`
}
