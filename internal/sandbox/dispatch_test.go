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

package sandbox

import "testing"

func TestParseDirectJSON_MatchesToolAndArguments(t *testing.T) {
	call, ok := parseDirectJSON(`{"tool":"time.get_current_time","arguments":{"timezone":"UTC"}}`)
	if !ok {
		t.Fatal("parseDirectJSON did not match a well-formed direct call")
	}
	if call.backend != "time" || call.tool != "get_current_time" {
		t.Errorf("parseDirectJSON() = %+v", call)
	}
	if call.arguments["timezone"] != "UTC" {
		t.Errorf("parseDirectJSON() arguments = %v", call.arguments)
	}
}

func TestParseDirectJSON_RejectsNonObjectToolName(t *testing.T) {
	if _, ok := parseDirectJSON(`{"tool":"no_dot_here","arguments":{}}`); ok {
		t.Error("parseDirectJSON should reject a tool name without a backend.tool dot")
	}
}

func TestParseDirectJSON_RejectsArbitraryCode(t *testing.T) {
	if _, ok := parseDirectJSON(`time.get_current_time({"timezone":"UTC"})`); ok {
		t.Error("parseDirectJSON should reject non-JSON code, leaving it to tier 2 or 3")
	}
}

func TestParseFastPath_MatchesSingleCallExpression(t *testing.T) {
	call, ok := parseFastPath(`time.get_current_time({"timezone":"UTC"})`)
	if !ok {
		t.Fatal("parseFastPath did not match a single-call expression")
	}
	if call.backend != "time" || call.tool != "get_current_time" {
		t.Errorf("parseFastPath() = %+v", call)
	}
}

func TestParseFastPath_StripsBoilerplate(t *testing.T) {
	call, ok := parseFastPath("const result = await time.get_current_time({\"timezone\":\"UTC\"});\nreturn result;")
	if !ok {
		t.Fatal("parseFastPath did not match after stripping boilerplate")
	}
	if call.backend != "time" || call.tool != "get_current_time" {
		t.Errorf("parseFastPath() = %+v", call)
	}
}

func TestParseFastPath_RejectsMultiStatementCode(t *testing.T) {
	if _, ok := parseFastPath("const a = 1; docs.search({})"); ok {
		t.Error("parseFastPath should reject code that isn't a single call expression")
	}
}

func TestSplitFQN(t *testing.T) {
	backendName, toolName, ok := splitFQN("docs.search_docs")
	if !ok || backendName != "docs" || toolName != "search_docs" {
		t.Errorf("splitFQN() = %q, %q, %v", backendName, toolName, ok)
	}

	if _, _, ok := splitFQN("no_dot"); ok {
		t.Error("splitFQN should reject a name with no dot")
	}
	if _, _, ok := splitFQN(".tool"); ok {
		t.Error("splitFQN should reject a name with an empty backend")
	}
	if _, _, ok := splitFQN("backend."); ok {
		t.Error("splitFQN should reject a name with an empty tool")
	}
}

func TestFormatSandboxValue_StringPassesThrough(t *testing.T) {
	got, err := formatSandboxValue("plain text")
	if err != nil || got != "plain text" {
		t.Errorf("formatSandboxValue() = %q, %v", got, err)
	}
}

func TestFormatSandboxValue_EncodesStructuredValues(t *testing.T) {
	got, err := formatSandboxValue(map[string]interface{}{"ok": true})
	if err != nil {
		t.Fatalf("formatSandboxValue() error: %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("formatSandboxValue() = %q", got)
	}
}
