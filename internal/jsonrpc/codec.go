package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/elnormous/contenttype"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultMaxBytes bounds request bodies when no explicit limit is configured.
const DefaultMaxBytes int64 = 4 << 20

// Codec decodes inbound payloads into validated envelopes and encodes
// outbound messages. The zero value applies DefaultMaxBytes.
type Codec struct {
	MaxBytes int64
}

// Limit returns the effective body size limit.
func (c Codec) Limit() int64 {
	if c.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return c.MaxBytes
}

// ReadBody reads r fully, failing with *TooLargeError as soon as more than
// Limit bytes have been seen.
func (c Codec) ReadBody(r io.Reader) ([]byte, error) {
	limit := c.Limit()
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, &TooLargeError{Limit: limit}
	}
	return b, nil
}

// CheckLength rejects a declared Content-Length above the limit before any
// bytes are read. Unknown lengths (-1) pass.
func (c Codec) CheckLength(n int64) error {
	if limit := c.Limit(); n > limit {
		return &TooLargeError{Limit: limit}
	}
	return nil
}

// Decode parses raw into a validated message. contentType is the value of the
// Content-Type header, if any; its charset parameter selects the text
// encoding, defaulting to UTF-8.
func (c Codec) Decode(raw []byte, contentType string) (*AnyMessage, error) {
	if int64(len(raw)) > c.Limit() {
		return nil, &TooLargeError{Limit: c.Limit()}
	}

	data, err := transcode(raw, charsetOf(contentType))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	if !json.Valid(data) {
		return nil, &ParseError{Err: describeSyntaxError(data)}
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, &SchemaError{Err: errors.New("batch arrays are not supported")}
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &SchemaError{Err: errors.New("message must be a JSON object")}
	}

	var msg AnyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &SchemaError{Err: err}
	}
	return &msg, nil
}

// Encode serializes msg as compact JSON.
func (c Codec) Encode(msg *AnyMessage) ([]byte, error) {
	return Encode(msg)
}

// Encode serializes msg as compact JSON.
func Encode(msg *AnyMessage) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return b, nil
}

func charsetOf(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return ""
	}
	mt := contenttype.NewMediaType(contentType)
	return strings.ToLower(strings.TrimSpace(mt.Parameters["charset"]))
}

func transcode(raw []byte, charset string) ([]byte, error) {
	switch charset {
	case "", "utf-8", "utf8", "us-ascii":
		if !utf8.Valid(raw) {
			return nil, errors.New("body is not valid UTF-8")
		}
		return raw, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s body: %w", charset, err)
	}
	return out, nil
}

func describeSyntaxError(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return errors.New("malformed JSON")
}
