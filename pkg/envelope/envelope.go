// Package envelope pulls the raw answer text out of the backend's response envelope.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
)

// ErrNotFound is returned when the envelope does not carry a text payload.
var ErrNotFound = errors.New("envelope text not found")

// Path is the fixed route from the envelope root to the reply text:
// result -> llm (generation engine) -> first reply -> first content block -> text.
var Path = []string{"result", "llm", "replies", "[0]", "_content", "[0]", "text"}

// Extract returns the reply text carried by body.
// The text is returned exactly as the backend produced it, malformations
// included; only the JSON string escaping of the envelope itself is decoded.
func Extract(body []byte) (string, error) {
	return ExtractPath(body, Path...)
}

// ExtractPath walks keys one level at a time and returns the string at the end.
// An index step such as "[0]" only applies to an array and a name step only to
// an object. Invalid JSON, any missing level, or a non-string leaf yields ErrNotFound.
func ExtractPath(body []byte, keys ...string) (string, error) {
	if !json.Valid(body) {
		return "", fmt.Errorf("%w: body is not valid JSON", ErrNotFound)
	}
	cur, curType, _, err := jsonparser.Get(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	for i, key := range keys {
		want := jsonparser.Object
		if strings.HasPrefix(key, "[") {
			want = jsonparser.Array
		}
		if curType != want {
			return "", fmt.Errorf("%w: %q applied to %s at depth %d", ErrNotFound, key, curType, i)
		}
		value, dataType, _, err := jsonparser.Get(cur, key)
		if err != nil || dataType == jsonparser.NotExist || dataType == jsonparser.Null {
			return "", fmt.Errorf("%w: missing %q at depth %d", ErrNotFound, key, i)
		}
		if i == len(keys)-1 {
			if dataType != jsonparser.String {
				return "", fmt.Errorf("%w: %q is %s, not a string", ErrNotFound, key, dataType)
			}
			text, err := jsonparser.ParseString(value)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrNotFound, err)
			}
			return text, nil
		}
		if dataType != jsonparser.Object && dataType != jsonparser.Array {
			return "", fmt.Errorf("%w: %q is %s, not a container", ErrNotFound, key, dataType)
		}
		cur, curType = value, dataType
	}
	return "", ErrNotFound
}
