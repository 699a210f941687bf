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
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// validateCommandPath checks a register_manual command for directory
// traversal when it names a path rather than a bare executable looked up
// on PATH. Bare names (no separator) are left to exec.LookPath.
func validateCommandPath(command string) error {
	if command == "" {
		return fmt.Errorf("command is empty")
	}
	if !strings.ContainsRune(command, filepath.Separator) {
		return nil
	}
	if strings.Contains(command, "..") {
		return fmt.Errorf("command path contains directory traversal sequence (..)")
	}

	cleanPath := filepath.Clean(command)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to resolve symlinks: %w", err)
		}
		resolvedPath = absPath
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	if isPathWithinDir(resolvedPath, cwd) {
		return nil
	}

	allowedPaths := os.Getenv("GATEMINI_ALLOWED_PATHS")
	if allowedPaths == "" {
		return fmt.Errorf("command path is outside the current directory and GATEMINI_ALLOWED_PATHS is not set")
	}

	for _, allowedDir := range filepath.SplitList(allowedPaths) {
		absAllowedDir, err := filepath.Abs(allowedDir)
		if err != nil {
			continue
		}
		if isPathWithinDir(resolvedPath, absAllowedDir) {
			return nil
		}
	}

	return fmt.Errorf("command path is not within the current directory or GATEMINI_ALLOWED_PATHS")
}

// isPathWithinDir checks if path is within or equal to dir.
func isPathWithinDir(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return false
		}
		path = absPath
	}
	if !filepath.IsAbs(dir) {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return false
		}
		dir = absDir
	}

	dirWithSep := dir + string(filepath.Separator)
	pathWithSep := path + string(filepath.Separator)

	return path == dir || strings.HasPrefix(pathWithSep, dirWithSep)
}
