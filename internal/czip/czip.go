// Package czip implements the CZIP archive format: a single-file bundle
// of a gateway's TOML configuration plus its compiled WebAssembly plugin
// payloads, keyed by plugin name. Ported from
// original_source/src/crates/czip (CZip/CZipV1).
//
// Wire layout (little-endian), after a one-byte magic identifier:
//
//	[config_len:u32][config_toml][plugin_count:u32]
//	  repeated { [name_len:u32][name][payload_len:u32][payload] }
//
// Only magic 1 (V1) exists today; Decode rejects any other value.
package czip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

// MagicV1 identifies a V1 archive.
const MagicV1 byte = 1

// ErrorKind classifies a decode failure, mirroring CZipError's variants.
type ErrorKind int

const (
	ErrUnexpectedEOF ErrorKind = iota
	ErrInvalidMagic
	ErrInvalidUTF8
	ErrInvalidTOML
	ErrTrailingData
)

// Error is the error type returned by Decode.
type Error struct {
	Kind          ErrorKind
	Label         string // for ErrUnexpectedEOF / ErrInvalidUTF8
	Magic         byte   // for ErrInvalidMagic
	TrailingBytes int    // for ErrTrailingData
	Err           error  // wrapped cause, for ErrInvalidTOML
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUnexpectedEOF:
		return fmt.Sprintf("unexpected end of data while reading %s", e.Label)
	case ErrInvalidMagic:
		return fmt.Sprintf("unknown CZip magic identifier: %d", e.Magic)
	case ErrInvalidUTF8:
		return fmt.Sprintf("%s contains invalid UTF-8", e.Label)
	case ErrInvalidTOML:
		return "configuration TOML is invalid"
	case ErrTrailingData:
		return fmt.Sprintf("trailing data detected after parsing archive (%d bytes)", e.TrailingBytes)
	default:
		return "czip: unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

func eofErr(label string) error           { return &Error{Kind: ErrUnexpectedEOF, Label: label} }
func magicErr(magic byte) error           { return &Error{Kind: ErrInvalidMagic, Magic: magic} }
func utf8Err(label string) error          { return &Error{Kind: ErrInvalidUTF8, Label: label} }
func tomlErr(err error) error             { return &Error{Kind: ErrInvalidTOML, Err: err} }
func trailingErr(remaining int) error     { return &Error{Kind: ErrTrailingData, TrailingBytes: remaining} }

// Archive is a decoded CZIP bundle: the gateway configuration (as a
// generic TOML document) plus zero or more named plugin payloads.
type Archive struct {
	Config  map[string]interface{}
	Plugins map[string][]byte
}

// New builds an Archive with no plugins.
func New(config map[string]interface{}) *Archive {
	return &Archive{Config: config, Plugins: map[string][]byte{}}
}

// AddPlugin adds or replaces a plugin payload by name.
func (a *Archive) AddPlugin(name string, payload []byte) {
	if a.Plugins == nil {
		a.Plugins = map[string][]byte{}
	}
	a.Plugins[name] = payload
}

// Encode serializes the archive to its binary wire format, magic byte
// included. Plugin entries are written in lexicographic name order so
// encoding is deterministic.
func Encode(a *Archive) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(MagicV1)

	var configStr bytes.Buffer
	if err := toml.NewEncoder(&configStr).Encode(a.Config); err != nil {
		return nil, tomlErr(err)
	}
	writeU32(&buf, uint32(configStr.Len()))
	buf.Write(configStr.Bytes())

	names := make([]string, 0, len(a.Plugins))
	for name := range a.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)

	writeU32(&buf, uint32(len(names)))
	for _, name := range names {
		payload := a.Plugins[name]
		writeU32(&buf, uint32(len(name)))
		buf.WriteString(name)
		writeU32(&buf, uint32(len(payload)))
		buf.Write(payload)
	}

	return buf.Bytes(), nil
}

// Decode parses a binary CZIP archive, validating the magic byte, every
// length prefix, UTF-8 validity of names, and the embedded TOML. It
// rejects any trailing bytes left over once every field has been read.
func Decode(data []byte) (*Archive, error) {
	if len(data) == 0 {
		return nil, eofErr("magic identifier")
	}
	magic := data[0]
	if magic != MagicV1 {
		return nil, magicErr(magic)
	}

	rest := data[1:]
	cursor := 0

	configLen, err := readU32(rest, &cursor, "config length")
	if err != nil {
		return nil, err
	}
	configBytes, err := readExact(rest, &cursor, int(configLen), "config bytes")
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(configBytes) {
		return nil, utf8Err("config")
	}
	var config map[string]interface{}
	if _, err := toml.Decode(string(configBytes), &config); err != nil {
		return nil, tomlErr(err)
	}

	pluginCount, err := readU32(rest, &cursor, "plugin count")
	if err != nil {
		return nil, err
	}
	plugins := make(map[string][]byte, pluginCount)

	for i := uint32(0); i < pluginCount; i++ {
		nameLen, err := readU32(rest, &cursor, "plugin name length")
		if err != nil {
			return nil, err
		}
		nameBytes, err := readExact(rest, &cursor, int(nameLen), "plugin name")
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(nameBytes) {
			return nil, utf8Err("plugin name")
		}

		payloadLen, err := readU32(rest, &cursor, "plugin payload length")
		if err != nil {
			return nil, err
		}
		payload, err := readExact(rest, &cursor, int(payloadLen), "plugin payload")
		if err != nil {
			return nil, err
		}

		payloadCopy := make([]byte, len(payload))
		copy(payloadCopy, payload)
		plugins[string(nameBytes)] = payloadCopy
	}

	if cursor != len(rest) {
		return nil, trailingErr(len(rest) - cursor)
	}

	return &Archive{Config: config, Plugins: plugins}, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readU32(data []byte, cursor *int, label string) (uint32, error) {
	raw, err := readExact(data, cursor, 4, label)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

func readExact(data []byte, cursor *int, n int, label string) ([]byte, error) {
	if n < 0 {
		return nil, eofErr(label)
	}
	end := *cursor + n
	if end < *cursor || end > len(data) {
		return nil, eofErr(label)
	}
	slice := data[*cursor:end]
	*cursor = end
	return slice, nil
}
