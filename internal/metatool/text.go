// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metatool

import (
	"encoding/json"
	"strings"
)

const (
	toolBriefMaxLen     = 200
	resourceBriefMaxLen = 120
)

// firstSentence extracts the first sentence of desc for brief output,
// searching in order for ". ", ".\n", a trailing ".", else truncating to
// maxLen characters with an ellipsis.
func firstSentence(desc string, maxLen int) string {
	if i := strings.Index(desc, ". "); i >= 0 {
		return desc[:i+1]
	}
	if i := strings.Index(desc, ".\n"); i >= 0 {
		return desc[:i+1]
	}
	if strings.HasSuffix(desc, ".") {
		return desc
	}

	runes := []rune(desc)
	if len(runes) <= maxLen {
		return desc
	}
	return string(runes[:maxLen]) + "..."
}

// toolBrief extracts the first sentence of a tool description at the
// meta-tool response length budget.
func toolBrief(desc string) string {
	return firstSentence(desc, toolBriefMaxLen)
}

// resourceBrief extracts the first sentence of a description at the
// resource response length budget.
func resourceBrief(desc string) string {
	return firstSentence(desc, resourceBriefMaxLen)
}

// parameterNames returns the object.properties keys of a JSON Schema
// input schema, in declaration order.
func parameterNames(schema json.RawMessage) []string {
	if len(schema) == 0 {
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(string(schema)))
	var root map[string]json.RawMessage
	if err := dec.Decode(&root); err != nil {
		return nil
	}
	propsRaw, ok := root["properties"]
	if !ok {
		return nil
	}

	return orderedObjectKeys(propsRaw)
}

// orderedObjectKeys walks a JSON object's raw tokens to recover key order,
// which encoding/json's map decoding does not preserve.
func orderedObjectKeys(raw json.RawMessage) []string {
	dec := json.NewDecoder(strings.NewReader(string(raw)))

	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)

		// Skip the value, which may itself be a nested object or array.
		if err := skipJSONValue(dec); err != nil {
			return keys
		}
	}
	return keys
}

func skipJSONValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil // scalar value, already consumed
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	_ = delim
	return nil
}
