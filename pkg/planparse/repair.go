package planparse

import "strings"

// Fields are the keys whose string values Repair is allowed to touch.
var Fields = []string{"title", "summary", "content"}

type scanState int

const (
	outside scanState = iota // structural JSON between tokens
	inKey                    // inside an object key
	inValue                  // inside the string value of a known field
	inString                 // inside any other string
)

// Repair escapes literal line feeds and carriage returns found inside the string
// values of the known fields. Everything else, including line breaks between
// structural tokens, is copied through unchanged.
//
// It is a single pass over the bytes: the scanner only needs to know whether it
// is inside a string, whether that string is a key or the value of a known
// field, and whether the previous byte was an unconsumed backslash.
func Repair(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + 16)

	state := outside
	escaped := false
	expectValue := false
	keyStart := 0
	lastKey := ""

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		switch state {
		case outside:
			switch c {
			case '"':
				if expectValue {
					expectValue = false
					if isField(lastKey) {
						state = inValue
					} else {
						state = inString
					}
				} else {
					state = inKey
					keyStart = i + 1
				}
			case ':':
				expectValue = true
			case ' ', '\t', '\n', '\r':
			default:
				// Braces, commas and bare literals all end any pending value.
				expectValue = false
			}
			b.WriteByte(c)

		case inKey, inString:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				if state == inKey {
					lastKey = raw[keyStart:i]
				}
				state = outside
			}
			b.WriteByte(c)

		case inValue:
			switch {
			case escaped:
				escaped = false
				b.WriteByte(c)
			case c == '\\':
				escaped = true
				b.WriteByte(c)
			case c == '"':
				state = outside
				b.WriteByte(c)
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			default:
				b.WriteByte(c)
			}
		}
	}

	return b.String()
}

func isField(key string) bool {
	for _, f := range Fields {
		if key == f {
			return true
		}
	}
	return false
}
