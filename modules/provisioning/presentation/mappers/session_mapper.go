package mappers

import (
	"github.com/google/uuid"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/aggregates/ruledraft"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/entities/catalog"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/services"
)

type DraftView struct {
	JobTitle              string   `json:"jobTitle"`
	Department            string   `json:"department"`
	ProfileName           string   `json:"profileName"`
	RoleName              string   `json:"roleName"`
	PermissionSetIDs      []string `json:"permissionSetIds"`
	PermissionSetGroupIDs []string `json:"permissionSetGroupIds"`
	IsActive              bool     `json:"isActive"`
}

type SessionView struct {
	ID                  string                     `json:"id"`
	Version             uint64                     `json:"version"`
	Step                ruledraft.ProgressStep     `json:"step"`
	StepPosition        int                        `json:"stepPosition"`
	Draft               DraftView                  `json:"draft"`
	Summary             string                     `json:"summary"`
	SaveDisabled        bool                       `json:"saveDisabled"`
	Lookups             catalog.LookupOptions      `json:"lookups"`
	PermissionSets      []catalog.PermissionEntry  `json:"permissionSets"`
	PermissionSetGroups []catalog.PermissionEntry  `json:"permissionSetGroups"`
	GroupsEnabled       bool                       `json:"groupsEnabled"`
	LoadErrors          map[catalog.Dataset]string `json:"loadErrors"`
	Loading             bool                       `json:"loading"`
	Saving              bool                       `json:"saving"`
}

func DraftToView(d ruledraft.Draft) DraftView {
	d = d.Clone()
	return DraftView{
		JobTitle:              d.JobTitle,
		Department:            d.Department,
		ProfileName:           d.ProfileName,
		RoleName:              d.RoleName,
		PermissionSetIDs:      d.PermissionSetIDs,
		PermissionSetGroupIDs: d.PermissionSetGroupIDs,
		IsActive:              d.IsActive,
	}
}

func SnapshotToView(id uuid.UUID, s services.Snapshot) SessionView {
	return SessionView{
		ID:                  id.String(),
		Version:             s.Version,
		Step:                s.Step,
		StepPosition:        int(s.Step),
		Draft:               DraftToView(s.Draft),
		Summary:             s.Summary(),
		SaveDisabled:        s.IsSaveDisabled(),
		Lookups:             s.Lookups,
		PermissionSets:      s.PermissionSets,
		PermissionSetGroups: s.PermissionSetGroups,
		GroupsEnabled:       s.GroupsEnabled,
		LoadErrors:          s.LoadErrors,
		Loading:             s.Loading,
		Saving:              s.Saving,
	}
}
