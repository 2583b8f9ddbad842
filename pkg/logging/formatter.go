package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Header fields are rendered before the message by TextFormatter and are
// not repeated in the key=value tail.
var headerFields = map[string]bool{
	"request_id": true,
	"component":  true,
	"operation":  true,
}

var levelColors = map[Level]string{
	DebugLevel: "\033[90m",
	InfoLevel:  "\033[34m",
	WarnLevel:  "\033[33m",
	ErrorLevel: "\033[31m",
}

// TextFormatter writes one human-readable line per entry:
//
//	2025-01-02 15:04:05.000 [WARN] [1a2b3c4d] catalog/refresh: list failed | kind=tools
type TextFormatter struct {
	TimestampFormat  string
	DisableColors    bool
	DisableTimestamp bool
}

func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimestampFormat: "2006-01-02 15:04:05.000"}
}

func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer

	if !f.DisableTimestamp {
		buf.WriteString(entry.Timestamp.Format(f.TimestampFormat))
		buf.WriteByte(' ')
	}

	level := "[" + entry.Level.String() + "]"
	if color, ok := levelColors[entry.Level]; ok && !f.DisableColors {
		level = color + level + "\033[0m"
	}
	buf.WriteString(level)
	buf.WriteByte(' ')

	if entry.RequestID != "" {
		fmt.Fprintf(&buf, "[%s] ", shortID(entry.RequestID))
	}

	// operation alone stays in the tail
	shown := map[string]bool{"request_id": true}
	if entry.Component != "" {
		buf.WriteString(entry.Component)
		shown["component"] = true
		if entry.Operation != "" {
			buf.WriteByte('/')
			buf.WriteString(entry.Operation)
			shown["operation"] = true
		}
		buf.WriteString(": ")
	}
	buf.WriteString(entry.Message)

	tail := make([]string, 0, len(entry.Fields))
	for k, v := range entry.Fields {
		if headerFields[k] && shown[k] {
			continue
		}
		tail = append(tail, k+"="+textValue(v))
	}
	if len(tail) > 0 {
		sort.Strings(tail)
		buf.WriteString(" | ")
		buf.WriteString(strings.Join(tail, " "))
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func textValue(v interface{}) string {
	switch val := v.(type) {
	case error:
		return strconv.Quote(val.Error())
	case time.Duration:
		return val.String()
	case string:
		if strings.ContainsAny(val, " \t\n") {
			return strconv.Quote(val)
		}
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// JSONFormatter writes one JSON object per line. Durations are rendered in
// milliseconds so log pipelines can aggregate request latencies.
type JSONFormatter struct {
	TimestampFormat  string
	DisableTimestamp bool
}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{TimestampFormat: time.RFC3339Nano}
}

func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Fields)+3)
	for k, v := range entry.Fields {
		switch val := v.(type) {
		case error:
			data[k] = val.Error()
		case time.Duration:
			data[k] = val.Milliseconds()
		default:
			data[k] = v
		}
	}

	data["level"] = entry.Level.String()
	data["message"] = entry.Message
	if !f.DisableTimestamp {
		data["timestamp"] = entry.Timestamp.Format(f.TimestampFormat)
	}

	out, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log entry: %w", err)
	}
	return append(out, '\n'), nil
}

// shortID keeps text lines readable when request ids are uuids
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
