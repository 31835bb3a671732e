// Package planparse recovers an ActionPlan from the raw text of a backend reply.
//
// Parsing is strict first. Only when strict decoding fails is the text passed
// through Repair, which escapes literal line breaks inside the three known string
// values, and strict decoding is attempted one more time.
package planparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
)

// ErrInvalidPlan is returned when the text cannot be turned into a complete plan.
var ErrInvalidPlan = errors.New("invalid action plan payload")

var (
	errTrailingData = errors.New("unexpected data after plan object")
	errNotObject    = errors.New("plan is not a JSON object")
)

// Parse returns the plan encoded in raw, repairing unescaped line breaks if needed.
func Parse(raw string) (domain.ActionPlan, error) {
	plan, _, err := ParseDetailed(raw)
	return plan, err
}

// ParseDetailed is Parse but also reports whether the repair pass was needed.
func ParseDetailed(raw string) (domain.ActionPlan, bool, error) {
	plan, strictErr := DecodeStrict(raw)
	if strictErr == nil {
		return plan, false, nil
	}

	repaired := Repair(raw)
	if repaired == raw {
		return domain.ActionPlan{}, false, fmt.Errorf("%w: %v", ErrInvalidPlan, strictErr)
	}

	plan, err := DecodeStrict(repaired)
	if err != nil {
		return domain.ActionPlan{}, false, fmt.Errorf("%w: %v (after repair: %v)", ErrInvalidPlan, strictErr, err)
	}
	return plan, true, nil
}

// DecodeStrict decodes raw as a JSON object with exactly the keys title, summary
// and content, each a non-empty string. Keys are matched case-sensitively and may
// appear once. Nothing but whitespace may follow the object.
func DecodeStrict(raw string) (domain.ActionPlan, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return domain.ActionPlan{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return domain.ActionPlan{}, errNotObject
	}

	var plan domain.ActionPlan
	seen := make(map[string]bool, 3)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return domain.ActionPlan{}, err
		}
		key, _ := tok.(string)

		var dst *string
		switch key {
		case "title":
			dst = &plan.Title
		case "summary":
			dst = &plan.Summary
		case "content":
			dst = &plan.Content
		default:
			return domain.ActionPlan{}, fmt.Errorf("unknown field %q", key)
		}
		if seen[key] {
			return domain.ActionPlan{}, fmt.Errorf("duplicate field %q", key)
		}
		seen[key] = true

		// null decodes to a nil pointer and is left for Validate to reject.
		var v *string
		if err := dec.Decode(&v); err != nil {
			return domain.ActionPlan{}, fmt.Errorf("field %q: %w", key, err)
		}
		*dst = deref(v)
	}
	if _, err := dec.Token(); err != nil {
		return domain.ActionPlan{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return domain.ActionPlan{}, errTrailingData
	}

	if err := plan.Validate(); err != nil {
		return domain.ActionPlan{}, err
	}
	return plan, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
