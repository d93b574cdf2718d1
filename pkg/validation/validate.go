// Package validation applies configurable rules to inbound message
// payloads before they reach the event log.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adambraimbridge/webchat/pkg/models"
)

// Rules describes validation constraints keyed by payload field path.
type Rules struct {
	Required []string
	MaxLen   map[string]int
	Enums    map[string][]string
}

var rules = Rules{
	Required: []string{"html"},
	MaxLen:   map[string]int{"html": 8192, "keytext": 512, "author": 128},
}

// SetRules replaces the active rule set.
func SetRules(r Rules) { rules = r }

// ValidateMessage checks a message payload against the active rules.
func ValidateMessage(m models.MessagePayload) error {
	var errs []string
	root := map[string]interface{}{
		"mid":          m.MessageID,
		"html":         m.HTML,
		"author":       m.Author,
		"keytext":      m.KeyText,
		"datemodified": m.DateModified,
	}

	for _, p := range rules.Required {
		v, ok := valueAt(root, p)
		if !ok {
			errs = append(errs, fmt.Sprintf("required field missing: %s", p))
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Sprintf("required field empty: %s", p))
		}
	}
	for p, max := range rules.MaxLen {
		if v, ok := valueAt(root, p); ok {
			if s, isStr := v.(string); isStr && len(s) > max {
				errs = append(errs, fmt.Sprintf("max length exceeded at %s: %d > %d", p, len(s), max))
			}
		}
	}
	for p, vals := range rules.Enums {
		if v, ok := valueAt(root, p); ok {
			if s, isStr := v.(string); isStr && s != "" && !contains(vals, s) {
				errs = append(errs, fmt.Sprintf("invalid value at %s", p))
			}
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func valueAt(root map[string]interface{}, path string) (interface{}, bool) {
	cur := interface{}(root)
	for _, seg := range strings.Split(path, ".") {
		node, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := node[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
