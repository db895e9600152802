// Package cookie decodes the compact serialization used by the Convert.com
// tracking cookie (_conv_v).
//
// A cookie value is a list of fields separated by "*". Each field starts with
// a short lowercase key followed by ":" and a value written in a JSON-like
// notation where "-" separates items, "." separates keys from values and
// keys are never quoted:
//
//	vi:1*pv:12*exp:{100123456.{v.100234567-g.{}}}*ps:1699990000
//
// Decoding repairs that notation into JSON with a fixed list of textual
// steps (see Steps) and parses the result. The repair is heuristic: values
// containing "-" or "." of their own (negative numbers, decimals, dotted
// strings) do not survive it.
package cookie

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	// Separator splits a cookie value into fields.
	Separator = "*"

	// DefaultField is the field holding experience bucketing data.
	DefaultField = "exp"

	// ExperiencesKey is the key of the experiences container once decoded.
	ExperiencesKey = "exp"
)

var (
	// ErrFieldNotFound is returned when no field starts with the requested key.
	ErrFieldNotFound = errors.New("cookie: field not found")

	// ErrMalformedCookie is returned when repaired text is not a JSON object.
	ErrMalformedCookie = errors.New("cookie: malformed value")
)

// Step is one textual transform of the repair pipeline.
type Step struct {
	Name  string
	Apply func(string) string
}

var bareKey = regexp.MustCompile(`(?m)([a-z0-9]+):`)

// Steps is the repair pipeline, applied in order. Later steps rely on the
// separators already having been rewritten by earlier ones.
var Steps = []Step{
	{Name: "item separators", Apply: func(s string) string { return strings.ReplaceAll(s, "-", ",") }},
	{Name: "key separators", Apply: func(s string) string { return strings.ReplaceAll(s, ".", ":") }},
	{Name: "quote keys", Apply: func(s string) string { return bareKey.ReplaceAllString(s, `"$1":`) }},
}

// Repair rewrites cookie notation into the body of a JSON object.
func Repair(s string) string {
	for _, step := range Steps {
		s = step.Apply(s)
	}
	return s
}

// Data is a decoded cookie field or a whole decoded cookie. Numbers are kept
// as json.Number so ids round-trip exactly.
type Data map[string]any

// Segment returns the first field of raw that starts with key.
func Segment(raw, key string) (string, bool) {
	for _, part := range strings.Split(raw, Separator) {
		if strings.HasPrefix(part, key) {
			return part, part != ""
		}
	}
	return "", false
}

// DecodeField locates the first field of raw starting with key, repairs it
// and parses it. The result holds a single entry named after the field, e.g.
// {"exp": {...}} for key "exp".
func DecodeField(raw, key string) (Data, error) {
	segment, ok := Segment(raw, key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, key)
	}
	return parse(Repair(segment))
}

// Decode repairs and parses an entire cookie value into one object keyed by
// field name.
func Decode(raw string) (Data, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty cookie", ErrMalformedCookie)
	}
	whole := strings.ReplaceAll(raw, Separator, ",")
	return parse(Repair(whole))
}

func parse(body string) (Data, error) {
	dec := json.NewDecoder(strings.NewReader("{" + body + "}"))
	dec.UseNumber()

	var d Data
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCookie, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedCookie)
	}
	return d, nil
}

// Experiences returns the experiences container of a decoded cookie.
func (d Data) Experiences() (map[string]any, error) {
	v, ok := d[ExperiencesKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, ExperiencesKey)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an object", ErrMalformedCookie, ExperiencesKey)
	}
	return m, nil
}

// Field returns the value stored under key.
func (d Data) Field(key string) (any, bool) {
	v, ok := d[key]
	return v, ok
}

// JSON renders d with two-space indentation.
func (d Data) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
