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
	"strings"
	"testing"
)

func TestFirstSentence_PeriodSpace(t *testing.T) {
	got := firstSentence("Reads a file. Returns its contents as text.", 200)
	if got != "Reads a file." {
		t.Errorf("firstSentence() = %q", got)
	}
}

func TestFirstSentence_PeriodNewline(t *testing.T) {
	got := firstSentence("Reads a file.\nReturns its contents.", 200)
	if got != "Reads a file." {
		t.Errorf("firstSentence() = %q", got)
	}
}

func TestFirstSentence_TrailingPeriodOnly(t *testing.T) {
	got := firstSentence("Reads a file and returns its contents.", 200)
	if got != "Reads a file and returns its contents." {
		t.Errorf("firstSentence() = %q", got)
	}
}

func TestFirstSentence_TruncatesWithEllipsis(t *testing.T) {
	long := strings.Repeat("a", 250)
	got := firstSentence(long, 200)
	if len(got) != 203 {
		t.Fatalf("firstSentence() length = %d, want 203 (200 + \"...\")", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("firstSentence() = %q, want \"...\" suffix", got)
	}
}

func TestFirstSentence_ShortTextUnchanged(t *testing.T) {
	got := firstSentence("no terminal punctuation here", 200)
	if got != "no terminal punctuation here" {
		t.Errorf("firstSentence() = %q", got)
	}
}

func TestParameterNames_PreservesDeclarationOrder(t *testing.T) {
	schema := []byte(`{"type":"object","properties":{"zeta":{"type":"string"},"alpha":{"type":"number"},"mid":{"type":"object","properties":{"nested":{"type":"string"}}}},"required":["zeta"]}`)
	got := parameterNames(schema)
	want := []string{"zeta", "alpha", "mid"}

	if len(got) != len(want) {
		t.Fatalf("parameterNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("parameterNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParameterNames_EmptySchema(t *testing.T) {
	if got := parameterNames(nil); got != nil {
		t.Errorf("parameterNames(nil) = %v, want nil", got)
	}
}
