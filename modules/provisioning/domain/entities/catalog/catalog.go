package catalog

type Dataset string

const (
	DatasetLookups             Dataset = "lookups"
	DatasetPermissionSets      Dataset = "permission_sets"
	DatasetPermissionSetGroups Dataset = "permission_set_groups"
)

// LookupOptions holds the picklists offered for the criteria fields.
type LookupOptions struct {
	JobTitles   []string `json:"jobTitles"`
	Departments []string `json:"departments"`
	Profiles    []string `json:"profiles"`
	Roles       []string `json:"roles"`
}

// Clone returns a deep copy whose slices are never nil.
func (o LookupOptions) Clone() LookupOptions {
	return LookupOptions{
		JobTitles:   append([]string{}, o.JobTitles...),
		Departments: append([]string{}, o.Departments...),
		Profiles:    append([]string{}, o.Profiles...),
		Roles:       append([]string{}, o.Roles...),
	}
}

type PermissionEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func CloneEntries(entries []PermissionEntry) []PermissionEntry {
	return append([]PermissionEntry{}, entries...)
}
