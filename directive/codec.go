package directive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Parse decodes a raw planner reply into a Directive. Surrounding whitespace
// is ignored; anything else outside the single JSON object is rejected.
func Parse(raw string) (Directive, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, notJSON(raw)
	}

	fields, err := decodeObject([]byte(trimmed))
	if err != nil {
		return nil, malformed(raw, "invalid JSON object", err)
	}
	if len(fields) != 1 {
		return nil, malformed(raw, fmt.Sprintf("expected exactly one top-level key, got %d", len(fields)), nil)
	}

	for key, value := range fields {
		switch Tag(key) {
		case TagExec:
			cmd, err := decodeString(value)
			if err != nil {
				return nil, malformed(raw, string(TagExec)+" requires a command string", err)
			}
			return Exec{Command: cmd}, nil

		case TagInteractive:
			cmd, err := decodeString(value)
			if err != nil {
				return nil, malformed(raw, string(TagInteractive)+" requires a command string", err)
			}
			return InteractiveExec{Command: cmd}, nil

		case TagSuccess:
			summary, err := decodeString(value)
			if err != nil {
				return nil, malformed(raw, string(TagSuccess)+" requires a summary string", err)
			}
			return Success{Summary: summary}, nil

		case TagFailure:
			f, err := decodeFailure(value)
			if err != nil {
				return nil, malformed(raw, string(TagFailure)+" requires an object with "+
					keyExecutedCommand+", "+keyObservedOutput+" and "+keyExpectedBehavior, err)
			}
			return f, nil

		default:
			return nil, malformed(raw, fmt.Sprintf("unknown directive %q", key), nil)
		}
	}

	// unreachable: len(fields) == 1
	return nil, malformed(raw, "empty directive", nil)
}

// Marshal renders d in its canonical wire form. Parse(Marshal(d)) yields d.
func Marshal(d Directive) (string, error) {
	var payload any
	switch v := d.(type) {
	case Exec:
		payload = map[string]string{string(TagExec): v.Command}
	case InteractiveExec:
		payload = map[string]string{string(TagInteractive): v.Command}
	case Success:
		payload = map[string]string{string(TagSuccess): v.Summary}
	case Failure:
		payload = map[string]failureWire{string(TagFailure): {
			ExecutedCommand:  v.ExecutedCommand,
			ObservedOutput:   v.ObservedOutput,
			ExpectedBehavior: v.ExpectedBehavior,
		}}
	case nil:
		return "", errors.New("marshal nil directive")
	default:
		return "", fmt.Errorf("marshal unsupported directive %T", d)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("marshal directive: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

type failureWire struct {
	ExecutedCommand  string `json:"ExecutedCommand"`
	ObservedOutput   string `json:"RaspberryPiOutput"`
	ExpectedBehavior string `json:"ExpectedBehavior"`
}

func decodeFailure(raw json.RawMessage) (Failure, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return Failure{}, err
	}
	if len(fields) != 3 {
		return Failure{}, fmt.Errorf("expected 3 keys, got %d", len(fields))
	}

	var f Failure
	targets := map[string]*string{
		keyExecutedCommand:  &f.ExecutedCommand,
		keyObservedOutput:   &f.ObservedOutput,
		keyExpectedBehavior: &f.ExpectedBehavior,
	}
	for key, value := range fields {
		dst, ok := targets[key]
		if !ok {
			return Failure{}, fmt.Errorf("unexpected key %q", key)
		}
		s, err := decodeString(value)
		if err != nil {
			return Failure{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = s
	}
	return f, nil
}

// decodeString accepts only a JSON string. json.Unmarshal would silently
// accept null into a string, which is not a valid directive value.
func decodeString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", errors.New("value is not a string")
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", err
	}
	return s, nil
}

// decodeObject reads exactly one JSON object, rejecting duplicate keys and
// trailing content.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("not an object")
	}

	fields := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("object key is not a string")
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("duplicate key %q", key)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields[key] = value
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after object")
	}

	return fields, nil
}
