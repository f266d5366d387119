package middleware

import (
	"encoding/json"
	"regexp"

	"github.com/finlayer/onboard/pkg/ports"
)

// Mask replaces the value of any field whose name matches a PII pattern.
const Mask = "***"

type piiMiddleware struct {
	next     ports.LocalStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of JSON object
// keys matching the patterns before records hit the underlying store. Reads
// return the masked record as stored, so a later restore surfaces the mask
// and the user is asked for those fields again.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.LocalStore) ports.LocalStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Set(key, value string) error {
	var record map[string]any
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		// Not a JSON object; nothing to mask.
		return m.next.Set(key, value)
	}

	maskMap(record, m.patterns)

	masked, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return m.next.Set(key, string(masked))
}

func (m *piiMiddleware) Get(key string) (string, error) {
	return m.next.Get(key)
}

func (m *piiMiddleware) Delete(key string) error {
	return m.next.Delete(key)
}

func maskMap(record map[string]any, patterns []*regexp.Regexp) {
	for k, v := range record {
		for _, p := range patterns {
			if p.MatchString(k) {
				record[k] = Mask
				break
			}
		}

		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}
