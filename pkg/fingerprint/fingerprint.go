// Package fingerprint produces deterministic content hashes. The graph store
// uses them to detect no-op upserts from the extraction pipeline, and the
// snapshot engine uses them to decide whether a re-capture at an existing
// as-of date is an idempotent no-op or a conflict.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Generate creates a SHA256 fingerprint of the canonicalized value.
func Generate(data map[string]any) string {
	return GenerateWithExclusions(data, nil)
}

// GenerateWithExclusions fingerprints data while ignoring the given
// dot-notation field paths. Timestamps like computed_at and updated_at are
// the usual exclusions: they change on every write without representing a
// content change.
func GenerateWithExclusions(data map[string]any, excludeFields map[string]bool) string {
	canonical := canonicalize(data, excludeFields, "")
	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:])
}

// GenerateFromJSON fingerprints raw JSON.
func GenerateFromJSON(data json.RawMessage) (string, error) {
	return GenerateFromJSONWithExclusions(data, nil)
}

// GenerateFromJSONWithExclusions fingerprints raw JSON with exclusions.
func GenerateFromJSONWithExclusions(data json.RawMessage, excludeFields map[string]bool) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}
	canonical := canonicalize(v, excludeFields, "")
	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:]), nil
}

// GenerateValue fingerprints any Go value via its JSON form, so struct field
// order and map iteration order never affect the result.
func GenerateValue(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return GenerateFromJSON(b)
}

// canonicalize renders a deterministic string: map keys sorted, arrays in
// order, primitives via JSON encoding.
func canonicalize(data any, excludeFields map[string]bool, currentPath string) string {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString("{")
		first := true
		for _, k := range keys {
			fieldPath := k
			if currentPath != "" {
				fieldPath = currentPath + "." + k
			}
			if excluded(fieldPath, excludeFields) {
				continue
			}
			if !first {
				b.WriteString(",")
			}
			first = false
			keyJSON, _ := json.Marshal(k)
			b.Write(keyJSON)
			b.WriteString(":")
			b.WriteString(canonicalize(v[k], excludeFields, fieldPath))
		}
		b.WriteString("}")
		return b.String()
	case []any:
		var b strings.Builder
		b.WriteString("[")
		for i, item := range v {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(canonicalize(item, excludeFields, currentPath))
		}
		b.WriteString("]")
		return b.String()
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func excluded(fieldPath string, excludeFields map[string]bool) bool {
	if excludeFields == nil {
		return false
	}
	if excludeFields[fieldPath] {
		return true
	}
	for e := range excludeFields {
		if strings.HasPrefix(fieldPath, e+".") {
			return true
		}
	}
	return false
}

// HasChanged compares two fingerprints.
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}
