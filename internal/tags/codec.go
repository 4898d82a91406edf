// Package tags encodes a flat string-to-string map into the reserved "tags"
// attachment as a JSON array of "key:value" strings, and back.
//
// Decoding is deliberately lenient: missing or malformed legacy tag data
// yields an empty map, never an error. Encoding is strict and always
// round-trips cleanly.
package tags

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/openvcon/vconstore/internal/model"
)

// Encode serializes m into the reserved tags attachment. Map iteration order
// is not significant; Decode keeps the last occurrence per key.
func Encode(m map[string]string) model.Attachment {
	pairs := make([]string, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, k+":"+v)
	}
	body, _ := json.Marshal(pairs)
	b := string(body)
	enc := model.EncodingJSON
	return model.Attachment{
		Type:     model.TagsAttachmentType,
		Body:     &b,
		Encoding: &enc,
	}
}

// EncodeValue coerces a scalar to its tag string form.
func EncodeValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Decode parses the tags attachment into a map. A nil attachment, a non-tags
// attachment, or a body that fails to parse all decode to an empty map. The
// first colon splits key from value, so values may contain colons; duplicate
// keys keep the last occurrence.
func Decode(att *model.Attachment) map[string]string {
	if att == nil || att.Type != model.TagsAttachmentType || att.Body == nil {
		return map[string]string{}
	}
	return DecodeBody(*att.Body)
}

// DecodeBody parses a raw tags attachment body with the same lenient
// semantics as Decode.
func DecodeBody(body string) map[string]string {
	out := map[string]string{}
	var pairs []string
	if err := json.Unmarshal([]byte(body), &pairs); err != nil {
		return out
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, ":")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Find returns the reserved tags attachment and its index within atts, or
// (nil, -1) when absent.
func Find(atts []model.Attachment) (*model.Attachment, int) {
	for i := range atts {
		if atts[i].Type == model.TagsAttachmentType {
			return &atts[i], i
		}
	}
	return nil, -1
}

// Merge combines updates into existing. When overwrite is false existing keys
// win; when true updates win. Neither input map is mutated.
func Merge(existing, updates map[string]string, overwrite bool) map[string]string {
	out := make(map[string]string, len(existing)+len(updates))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range updates {
		if _, ok := out[k]; ok && !overwrite {
			continue
		}
		out[k] = v
	}
	return out
}

// Matches reports whether the decoded tag map got satisfies every requested
// key with an exactly equal value (conjunctive semantics).
func Matches(got, want map[string]string) bool {
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
