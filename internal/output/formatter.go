// Package output encodes detection reports as JSON or MessagePack.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format names an encoding.
type Format string

const (
	JSON    Format = "json"
	MsgPack Format = "msgpack"
)

// ParseFormat maps a name to a Format. The empty string is JSON.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case JSON, "":
		return JSON, nil
	case MsgPack:
		return MsgPack, nil
	default:
		return "", fmt.Errorf("unknown output format %q", name)
	}
}

// Formatter writes values in the configured format
type Formatter struct {
	format Format
	pretty bool
}

// NewFormatter creates a formatter. pretty indents JSON and is ignored for
// MessagePack.
func NewFormatter(format Format, pretty bool) *Formatter {
	return &Formatter{format: format, pretty: pretty}
}

// Format returns the formatter's encoding.
func (f *Formatter) Format() Format {
	return f.format
}

// Write encodes data to w.
func (f *Formatter) Write(w io.Writer, data any) error {
	if f.format == MsgPack {
		return f.writeMsgPack(w, data)
	}
	return f.writeJSON(w, data)
}

func (f *Formatter) writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if f.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

func (f *Formatter) writeMsgPack(w io.Writer, data any) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc.Encode(data)
}
