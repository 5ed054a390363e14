// ABOUTME: Line-oriented JSON encoding and append-only log files
// ABOUTME: Files are opened per record in append mode and never truncated
package record

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Line encodes one tagged record as a newline-terminated JSON object
func Line(tag string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(map[string]interface{}{tag: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", tag, err)
	}
	return append(data, '\n'), nil
}

// Encode writes one tagged record to w
func Encode(w io.Writer, tag string, payload interface{}) error {
	line, err := Line(tag, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("failed to write %s record: %w", tag, err)
	}
	return nil
}

// Append adds one tagged record to the log at path, creating it if needed
func Append(path, tag string, payload interface{}) error {
	return AppendAll(path, Entry{Tag: tag, Payload: payload})
}

// Entry is one record for AppendAll
type Entry struct {
	Tag     string
	Payload interface{}
}

// AppendAll adds several records with a single open of the log
func AppendAll(path string, entries ...Entry) error {
	var buf []byte
	for _, e := range entries {
		line, err := Line(e.Tag, e.Payload)
		if err != nil {
			return err
		}
		buf = append(buf, line...)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", path, err)
	}

	_, werr := f.Write(buf)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("failed to append to %s: %w", path, werr)
	}
	return cerr
}

// Decode splits one line into its tag and raw payload
func Decode(line []byte) (string, jsoniter.RawMessage, error) {
	var m map[string]jsoniter.RawMessage
	if err := json.Unmarshal(line, &m); err != nil {
		return "", nil, fmt.Errorf("invalid record: %w", err)
	}
	if len(m) != 1 {
		return "", nil, fmt.Errorf("invalid record: expected 1 tag, got %d", len(m))
	}
	for tag, raw := range m {
		return tag, raw, nil
	}
	return "", nil, nil
}
