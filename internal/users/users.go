// Package users loads the user/team directory that user-typed fields
// resolve against.
package users

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/apperr"
)

// User is one directory entry keyed by handle.
type User struct {
	Name  string
	Email string
	Teams []string
	Extra map[string]string
}

// Team groups users and may nest other teams.
type Team struct {
	Name  string
	Teams []string
	Extra map[string]string
}

// Directory maps user handles and team IDs to their records.
type Directory struct {
	Users map[string]User
	Teams map[string]Team
}

type rawEntry map[string]any

type rawFile struct {
	Users map[string]rawEntry `yaml:"users"`
	Teams map[string]rawEntry `yaml:"teams"`
}

// FromString parses a directory from YAML text.
func FromString(src string) (*Directory, error) {
	var raw rawFile
	if err := yaml.Unmarshal([]byte(src), &raw); err != nil {
		return nil, fmt.Errorf("parse users: %w", err)
	}

	d := &Directory{
		Users: make(map[string]User, len(raw.Users)),
		Teams: make(map[string]Team, len(raw.Teams)),
	}
	for handle, entry := range raw.Users {
		u := User{Extra: map[string]string{}}
		for k, v := range entry {
			switch k {
			case "name":
				u.Name = toString(v)
			case "email":
				u.Email = toString(v)
			case "teams":
				u.Teams = toStrings(v)
			default:
				u.Extra[k] = toString(v)
			}
		}
		d.Users[handle] = u
	}
	for id, entry := range raw.Teams {
		t := Team{Extra: map[string]string{}}
		for k, v := range entry {
			switch k {
			case "name":
				t.Name = toString(v)
			case "teams":
				t.Teams = toStrings(v)
			default:
				t.Extra[k] = toString(v)
			}
		}
		d.Teams[id] = t
	}
	return d, nil
}

// FromFile loads a directory from a YAML file.
func FromFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	d, err := FromString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toStrings(v any) []string {
	seq, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(seq))
	for _, item := range seq {
		out = append(out, toString(item))
	}
	return out
}

// IsValidRef reports whether ref resolves: "@handle" against users,
// "@team/id" against teams.
func (d *Directory) IsValidRef(ref string) bool {
	if !strings.HasPrefix(ref, "@") {
		return false
	}
	name := ref[1:]
	if teamID, ok := strings.CutPrefix(name, "team/"); ok {
		_, found := d.Teams[teamID]
		return found
	}
	_, found := d.Users[name]
	return found
}

// KnownHandles returns all user handles, sorted.
func (d *Directory) KnownHandles() []string {
	out := make([]string, 0, len(d.Users))
	for h := range d.Users {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// KnownTeams returns all team IDs, sorted.
func (d *Directory) KnownTeams() []string {
	out := make([]string, 0, len(d.Teams))
	for id := range d.Teams {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ExpandTeamMembers returns the sorted handles of every user in teamID,
// including members of nested teams. A visited set tolerates team cycles.
func (d *Directory) ExpandTeamMembers(teamID string) []string {
	members := make(map[string]struct{})
	d.expand(teamID, members, make(map[string]struct{}))
	out := make([]string, 0, len(members))
	for h := range members {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func (d *Directory) expand(teamID string, members, visited map[string]struct{}) {
	if _, seen := visited[teamID]; seen {
		return
	}
	visited[teamID] = struct{}{}

	for handle, u := range d.Users {
		for _, t := range u.Teams {
			if t == teamID {
				members[handle] = struct{}{}
			}
		}
	}
	team, ok := d.Teams[teamID]
	if !ok {
		return
	}
	for _, nested := range team.Teams {
		d.expand(nested, members, visited)
	}
}
