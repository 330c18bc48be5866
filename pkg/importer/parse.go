// Package importer loads the static dynasty and event dataset, and legacy
// cache dumps, into the store.
package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Array names exported by the TypeScript data module.
const (
	DynastiesArray = "DYNASTIES"
	EventsArray    = "KEY_EVENTS"
)

// DynastyRecord is one element of the DYNASTIES array.
type DynastyRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ChineseName string `json:"chineseName"`
	StartYear   int    `json:"startYear"`
	EndYear     int    `json:"endYear"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// EventRecord is one element of the KEY_EVENTS array.
type EventRecord struct {
	Year       int    `json:"year"`
	Title      string `json:"title"`
	TitleEn    string `json:"titleEn"`
	Type       string `json:"type"`
	Importance int    `json:"importance"`
}

// Dataset is the parsed content of the data module.
type Dataset struct {
	Dynasties []DynastyRecord
	Events    []EventRecord
}

// ParseError reports a failure to extract or decode one exported array.
type ParseError struct {
	Array string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Array, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrArrayNotFound is wrapped by ParseError when an export is missing.
var ErrArrayNotFound = errors.New("array export not found")

// Parse extracts the DYNASTIES and KEY_EVENTS arrays from the source of a
// TypeScript data module. It reads object literals only; code around the
// arrays is ignored.
func Parse(src []byte) (*Dataset, error) {
	text := string(src)
	ds := &Dataset{}

	if err := decodeArray(text, DynastiesArray, &ds.Dynasties); err != nil {
		return nil, err
	}
	if err := decodeArray(text, EventsArray, &ds.Events); err != nil {
		return nil, err
	}
	return ds, nil
}

func decodeArray(text, name string, v any) error {
	raw, err := extractArray(text, name)
	if err != nil {
		return &ParseError{Array: name, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return &ParseError{Array: name, Err: err}
	}
	return nil
}

// extractArray finds `export const NAME ... = [` and returns the array
// literal converted to JSON.
func extractArray(text, name string) (string, error) {
	decl := "export const " + name
	var rest string
	for offset := 0; ; {
		start := strings.Index(text[offset:], decl)
		if start < 0 {
			return "", ErrArrayNotFound
		}
		rest = text[offset+start+len(decl):]
		// Skip longer names such as DYNASTIES_EXTRA.
		if r, _ := utf8.DecodeRuneInString(rest); r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		offset += start + len(decl)
	}
	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return "", fmt.Errorf("no initializer after %s", decl)
	}
	open := strings.IndexByte(rest[eq:], '[')
	if open < 0 {
		return "", fmt.Errorf("initializer of %s is not an array", name)
	}
	return toJSON(rest[eq+open:])
}

// toJSON converts the JavaScript literal starting at src[0] into JSON. It
// stops after the bracket that closes the first one and handles comments,
// single-quoted strings, bare keys and trailing commas.
func toJSON(src string) (string, error) {
	var (
		out   strings.Builder
		depth int
		i     int
	)

	// trimComma drops a trailing comma before a closing bracket.
	trimComma := func() {
		s := strings.TrimRightFunc(out.String(), unicode.IsSpace)
		if strings.HasSuffix(s, ",") {
			out.Reset()
			out.WriteString(s[:len(s)-1])
		}
	}

	for i < len(src) {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				return "", errors.New("unterminated literal")
			}
			i += end
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return "", errors.New("unterminated block comment")
			}
			i += end + 4
		case c == '\'' || c == '"' || c == '`':
			s, n, err := readString(src[i:])
			if err != nil {
				return "", err
			}
			quoted, _ := json.Marshal(s)
			out.Write(quoted)
			i += n
		case c == '[' || c == '{':
			depth++
			out.WriteByte(c)
			i++
		case c == ']' || c == '}':
			trimComma()
			depth--
			out.WriteByte(c)
			i++
			if depth == 0 {
				return out.String(), nil
			}
		case c == ',' || c == ':':
			out.WriteByte(c)
			i++
		case c == '-' || c == '+' || (c >= '0' && c <= '9'):
			n := scanNumber(src[i:])
			num := strings.TrimPrefix(src[i:i+n], "+")
			if _, err := strconv.ParseFloat(num, 64); err != nil {
				return "", fmt.Errorf("invalid number %q", src[i:i+n])
			}
			out.WriteString(num)
			i += n
		case c == '_' || c == '$' || isLetter(src[i:]):
			n := scanIdent(src[i:])
			ident := src[i : i+n]
			i += n
			switch ident {
			case "true", "false", "null":
				out.WriteString(ident)
			case "undefined":
				out.WriteString("null")
			default:
				// Bare object key.
				quoted, _ := json.Marshal(ident)
				out.Write(quoted)
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		default:
			return "", fmt.Errorf("unexpected character %q", c)
		}
	}
	return "", errors.New("unterminated array")
}

// readString decodes a quoted JavaScript string and returns it with the
// number of bytes consumed.
func readString(src string) (string, int, error) {
	quote := src[0]
	var b strings.Builder
	for i := 1; i < len(src); {
		c := src[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(src):
			next := src[i+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'u':
				if i+6 > len(src) {
					return "", 0, errors.New("truncated unicode escape")
				}
				r, err := strconv.ParseUint(src[i+2:i+6], 16, 32)
				if err != nil {
					return "", 0, fmt.Errorf("invalid unicode escape: %w", err)
				}
				b.WriteRune(rune(r))
				i += 6
				continue
			case '\n':
				// Line continuation.
			default:
				b.WriteByte(next)
			}
			i += 2
		case c == '\n' && quote != '`':
			return "", 0, errors.New("newline in string literal")
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, errors.New("unterminated string")
}

func scanNumber(src string) int {
	i := 0
	if src[0] == '-' || src[0] == '+' {
		i++
	}
	for i < len(src) {
		c := src[i]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' ||
			((c == '-' || c == '+') && (src[i-1] == 'e' || src[i-1] == 'E')) {
			i++
			continue
		}
		break
	}
	return i
}

func scanIdent(src string) int {
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		if r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			i += size
			continue
		}
		break
	}
	return i
}

func isLetter(src string) bool {
	r, _ := utf8.DecodeRuneInString(src)
	return unicode.IsLetter(r)
}
