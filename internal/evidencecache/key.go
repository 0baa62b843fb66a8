package evidencecache

import (
	"sort"

	"github.com/outsystems-tools/ddl-tightener/internal/fingerprint"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// absentSentinel is the stable placeholder contributed to the key by any
// input that was not supplied, so supplying a previously absent input
// always changes the key.
const absentSentinel = "\x00absent\x00"

// InputFile is one named content input to the cache key: a path to a file
// whose bytes are hashed, plus the artifact kind it will be recorded and
// copied under. Path == "" means the input was not supplied.
type InputFile struct {
	Kind string
	Path string
}

// Inputs is everything a cache consult is driven by: the key inputs
// (command name, file contents) plus the module selection and metadata
// compared against the persisted manifest.
type Inputs struct {
	CommandName     string
	Files           []InputFile
	ModuleSelection types.ModuleSelection
	Metadata        map[string]string
}

// contentHashOr returns the sentinel for files with no path, else the
// caller-supplied content hash.
func contentHashOr(hash string, path string) string {
	if path == "" {
		return absentSentinel
	}
	return hash
}

// ComputeKey derives the cache key: SHA-256 hex of the canonical
// concatenation of the command name and the content hash of every input
// file, sorted by kind (absent files contribute the sentinel). Module
// selection and metadata deliberately stay out of the key: they are
// persisted in the manifest and compared there, so a change to either
// lands on the existing entry and surfaces as a Refreshed decision with
// its reason, instead of silently creating a sibling entry.
func ComputeKey(in Inputs, fileContentHashes map[string]string) string {
	parts := [][]byte{[]byte(in.CommandName)}

	kinds := make([]string, 0, len(in.Files))
	byKind := make(map[string]InputFile, len(in.Files))
	for _, f := range in.Files {
		kinds = append(kinds, f.Kind)
		byKind[f.Kind] = f
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		f := byKind[k]
		hash := contentHashOr(fileContentHashes[k], f.Path)
		parts = append(parts, []byte(k), []byte(hash))
	}

	return fingerprint.HexMulti(parts...)
}

// NormalizeModuleSelection sorts and dedupes module names
// case-insensitively and computes the selection hash.
func NormalizeModuleSelection(modules []string) types.ModuleSelection {
	seen := make(map[string]string, len(modules))
	for _, m := range modules {
		key := lowerASCII(m)
		if existing, ok := seen[key]; !ok || m < existing {
			seen[key] = m
		}
	}
	normalized := make([]string, 0, len(seen))
	for _, v := range seen {
		normalized = append(normalized, v)
	}
	sort.Slice(normalized, func(i, j int) bool {
		return lowerASCII(normalized[i]) < lowerASCII(normalized[j])
	})

	hashInput := make([]string, len(normalized))
	copy(hashInput, normalized)
	return types.ModuleSelection{
		Modules: normalized,
		Count:   len(normalized),
		Hash:    fingerprint.Hex([]byte(joinWithSep(hashInput))),
	}
}

func joinWithSep(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += "\x1f"
		}
		out += it
	}
	return out
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
