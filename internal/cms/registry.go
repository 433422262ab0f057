package cms

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/titanous/json5"

	domerrors "github.com/openct/openct-cms/internal/errors"
)

//go:embed institutions.json5
var builtinInstitutions []byte

// UsernamePlaceholder is replaced by the URL-escaped username in page paths.
const UsernamePlaceholder = "{username}"

// Institution is one registry entry: the portal configuration plus the
// pages holding the schedule and the grades.
type Institution struct {
	Name   string            `json:"name"`
	Title  string            `json:"title,omitempty"`
	Config InstitutionConfig `json:"config"`

	// ClassPage and GradePage are resolved against the session's login URL
	// and may contain UsernamePlaceholder.
	ClassPage string `json:"class_page"`
	GradePage string `json:"grade_page"`
}

// PageURL resolves page against loginURL for username.
func (i Institution) PageURL(loginURL, page, username string) (string, error) {
	base, err := url.Parse(loginURL)
	if err != nil {
		return "", fmt.Errorf("parse login url: %w", err)
	}
	page = strings.ReplaceAll(page, UsernamePlaceholder, url.QueryEscape(username))
	target, err := base.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parse page %q: %w", page, err)
	}
	return target.String(), nil
}

type registryFile struct {
	Institutions []Institution `json:"institutions"`
}

// ParseInstitutions decodes a JSON5 registry document.
func ParseInstitutions(data []byte) ([]Institution, error) {
	var file registryFile
	if err := json5.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	for i, inst := range file.Institutions {
		if strings.TrimSpace(inst.Name) == "" {
			return nil, fmt.Errorf("registry entry %d has no name", i)
		}
	}
	return file.Institutions, nil
}

// OverlayInstitutions decodes a JSON5 registry document over entries. An
// entry whose name matches an existing one (case-insensitively) is decoded
// onto a copy of it, so every field present in the document wins, zero
// values included, and absent fields keep their earlier value. Other
// entries are appended.
func OverlayInstitutions(entries []Institution, data []byte) ([]Institution, error) {
	var file struct {
		Institutions []map[string]any `json:"institutions"`
	}
	if err := json5.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	out := slices.Clone(entries)
	index := make(map[string]int, len(out))
	for i, inst := range out {
		index[strings.ToLower(inst.Name)] = i
	}

	for i, raw := range file.Institutions {
		name, _ := raw["name"].(string)
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("registry entry %d has no name", i)
		}
		// json5 decodes to plain JSON values, so re-encoding is lossless.
		patch, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("registry entry %q: %w", name, err)
		}

		pos, ok := index[strings.ToLower(name)]
		var inst Institution
		if ok {
			inst = out[pos]
		}
		if err := json.Unmarshal(patch, &inst); err != nil {
			return nil, fmt.Errorf("registry entry %q: %w", name, err)
		}

		if ok {
			out[pos] = inst
			continue
		}
		index[strings.ToLower(name)] = len(out)
		out = append(out, inst)
	}
	return out, nil
}

// Registry maps institution names (case-insensitive) to their entries.
// It is built once and read-only afterwards, so it is safe to share.
type Registry struct {
	byName map[string]Institution
}

// NewRegistry builds a registry from entries. A later entry replaces an
// earlier one with the same name.
func NewRegistry(entries ...Institution) *Registry {
	r := &Registry{byName: make(map[string]Institution, len(entries))}
	for _, inst := range entries {
		r.byName[strings.ToLower(inst.Name)] = inst
	}
	return r
}

// LoadRegistry builds the registry from the embedded defaults, then the
// optional JSON5 file at userFile laid over them field by field, then
// extra (e.g. a stored custom institution), which replace same-named
// entries whole.
func LoadRegistry(userFile string, extra ...Institution) (*Registry, error) {
	entries, err := ParseInstitutions(builtinInstitutions)
	if err != nil {
		return nil, fmt.Errorf("builtin registry: %w", err)
	}

	if userFile != "" {
		data, err := os.ReadFile(userFile)
		if err != nil {
			return nil, fmt.Errorf("read registry file: %w", err)
		}
		if entries, err = OverlayInstitutions(entries, data); err != nil {
			return nil, fmt.Errorf("%s: %w", userFile, err)
		}
	}

	entries = append(entries, extra...)
	return NewRegistry(entries...), nil
}

// Lookup returns the institution registered under name.
func (r *Registry) Lookup(name string) (Institution, error) {
	inst, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return Institution{}, fmt.Errorf("%w: %s", domerrors.ErrUnknownInstitution, name)
	}
	return inst, nil
}

// List returns all institutions sorted by name.
func (r *Registry) List() []Institution {
	out := make([]Institution, 0, len(r.byName))
	for _, inst := range r.byName {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of institutions.
func (r *Registry) Len() int {
	return len(r.byName)
}
