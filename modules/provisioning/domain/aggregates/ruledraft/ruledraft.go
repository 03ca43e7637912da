package ruledraft

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownField = errors.New("unknown rule draft field")

type Field string

const (
	FieldJobTitle    Field = "jobTitle"
	FieldDepartment  Field = "department"
	FieldProfileName Field = "profileName"
	FieldRoleName    Field = "roleName"
)

var Fields = []Field{FieldJobTitle, FieldDepartment, FieldProfileName, FieldRoleName}

// ParseField is the checked entry point for field names coming from a transport.
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

func (f Field) Valid() bool {
	_, err := ParseField(string(f))
	return err == nil
}

// Draft is the rule being edited. It is a value type: every With* method
// returns a modified copy and leaves the receiver untouched.
type Draft struct {
	JobTitle              string
	Department            string
	ProfileName           string
	RoleName              string
	PermissionSetIDs      []string
	PermissionSetGroupIDs []string
	IsActive              bool
}

// Value returns the text stored under field. Unknown fields panic.
func (d Draft) Value(field Field) string {
	switch field {
	case FieldJobTitle:
		return d.JobTitle
	case FieldDepartment:
		return d.Department
	case FieldProfileName:
		return d.ProfileName
	case FieldRoleName:
		return d.RoleName
	default:
		panic(fmt.Sprintf("ruledraft: %v: %q", ErrUnknownField, field))
	}
}

// With replaces one text field. Surrounding whitespace is dropped so a blank
// value never counts as filled in. Unknown fields panic.
func (d Draft) With(field Field, value string) Draft {
	value = strings.TrimSpace(value)
	out := d.Clone()
	switch field {
	case FieldJobTitle:
		out.JobTitle = value
	case FieldDepartment:
		out.Department = value
	case FieldProfileName:
		out.ProfileName = value
	case FieldRoleName:
		out.RoleName = value
	default:
		panic(fmt.Sprintf("ruledraft: %v: %q", ErrUnknownField, field))
	}
	return out
}

func (d Draft) WithPermissionSets(ids []string) Draft {
	out := d.Clone()
	out.PermissionSetIDs = NormalizeIDs(ids)
	return out
}

func (d Draft) WithPermissionSetGroups(ids []string) Draft {
	out := d.Clone()
	out.PermissionSetGroupIDs = NormalizeIDs(ids)
	return out
}

func (d Draft) WithActive(active bool) Draft {
	out := d.Clone()
	out.IsActive = active
	return out
}

func (d Draft) Clone() Draft {
	out := d
	out.PermissionSetIDs = append([]string{}, d.PermissionSetIDs...)
	out.PermissionSetGroupIDs = append([]string{}, d.PermissionSetGroupIDs...)
	return out
}

func (d Draft) IsZero() bool {
	return d.JobTitle == "" && d.Department == "" && d.ProfileName == "" && d.RoleName == "" &&
		len(d.PermissionSetIDs) == 0 && len(d.PermissionSetGroupIDs) == 0 && !d.IsActive
}

// NormalizeIDs gives a selection set semantics: blanks and repeats are
// dropped, first occurrence order is kept. The result is never nil.
func NormalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
