package catalog

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const (
	// maxNameLength bounds manufacturer, device, collection and preset
	// names before normalisation.
	maxNameLength = 100
)

// unsafeCharPattern matches every character normalisation strips.
// The allowed set is letters, digits, underscore, dot and hyphen.
var unsafeCharPattern = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeName normalises a user-supplied name for use as a directory,
// file or document key.
//
// Traversal attempts are rejected outright rather than silently cleaned,
// so "../../etc" fails instead of quietly becoming "etc". Plain
// separators are not an error: "My Synth/1" normalises to "My_Synth1".
// Surviving names have spaces replaced with underscores and any
// character outside the allowed set stripped.
//
// Parameters:
//   - name: raw name as supplied by the caller
//
// Returns:
//   - string: the normalised name
//   - error: ErrUnsafeName for traversal attempts, ErrInvalidName when
//     the input is empty, too long, or nothing survives normalisation
func SanitizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}

	for _, part := range strings.FieldsFunc(trimmed, isPathSeparator) {
		if part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q contains a traversal element", ErrUnsafeName, name)
		}
	}

	normalised := strings.ReplaceAll(trimmed, " ", "_")
	normalised = unsafeCharPattern.ReplaceAllString(normalised, "")
	normalised = strings.Trim(normalised, ".")
	if normalised == "" {
		return "", fmt.Errorf("%w: %q has no usable characters", ErrInvalidName, name)
	}

	return normalised, nil
}

func isPathSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// joinUnder joins parts beneath root and verifies the result stays inside
// it. Defence in depth behind SanitizeName: even a part that slipped
// through normalisation cannot escape the catalog root.
func joinUnder(root string, parts ...string) (string, error) {
	joined := filepath.Join(append([]string{root}, parts...)...)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absJoined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes catalog root", ErrUnsafeName)
	}

	return absJoined, nil
}

// GeneratePresetID derives a stable preset identifier from the preset
// name and its position in the collection at creation time. The ID is
// derived exactly once; renames keep the original ID so external
// references stay valid.
func GeneratePresetID(name string, ordinal int) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.ReplaceAll(id, " ", "_")
	id = unsafeCharPattern.ReplaceAllString(id, "")
	id = strings.Trim(id, "._")
	if id == "" {
		id = "preset"
	}
	return id + "_" + strconv.Itoa(ordinal)
}

// documentFileName builds the canonical device document file name,
// "<manufacturer>_<device>.json" in lower case.
func documentFileName(manufacturer, device string) string {
	return strings.ToLower(manufacturer) + "_" + strings.ToLower(device) + ".json"
}
