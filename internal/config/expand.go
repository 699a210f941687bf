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

package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
)

// varPattern matches $VAR, ${VAR}, and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Expand walks every string field of cfg in place, expanding
// $VAR/${VAR}/${VAR:-default} references and a leading ~ against the
// process environment and home directory. In strict mode a reference to
// an unset variable with no default is an error; otherwise it expands to
// the empty string.
func Expand(cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	return expandValue(v, cfg.Expand.Strict)
}

func expandValue(v reflect.Value, strict bool) error {
	switch v.Kind() {
	case reflect.String:
		expanded, err := expandString(v.String(), strict)
		if err != nil {
			return err
		}
		if v.CanSet() {
			v.SetString(expanded)
		}
		return nil
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return expandValue(v.Elem(), strict)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := expandValue(v.Field(i), strict); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := expandValue(v.Index(i), strict); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		for _, key := range v.MapKeys() {
			val := v.MapIndex(key)
			if val.Kind() == reflect.String {
				expanded, err := expandString(val.String(), strict)
				if err != nil {
					return err
				}
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
		return nil
	default:
		return nil
	}
}

func expandString(s string, strict bool) (string, error) {
	if strings.HasPrefix(s, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			s = home + strings.TrimPrefix(s, "~")
		}
	}

	var expandErr error
	out := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := varPattern.FindStringSubmatch(match)
		name := m[1]
		hasDefault := m[2] != ""
		def := m[3]
		if name == "" {
			name = m[4]
		}

		val, ok := os.LookupEnv(name)
		if ok {
			return val
		}
		if hasDefault {
			return def
		}
		if strict {
			expandErr = fmt.Errorf("undefined variable %q with no default", name)
			return match
		}
		return ""
	})

	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}
