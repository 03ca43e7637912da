package collaborators

import (
	"context"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/aggregates/ruledraft"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/entities/catalog"
)

type LookupSource interface {
	GetLookupValues(ctx context.Context) (catalog.LookupOptions, error)
}

type PermissionSetSource interface {
	GetPermissionSets(ctx context.Context) ([]catalog.PermissionEntry, error)
}

// PermissionSetGroupSource is optional. Builders configured without one
// work on permission sets only.
type PermissionSetGroupSource interface {
	GetPermissionSetGroups(ctx context.Context) ([]catalog.PermissionEntry, error)
}

type RuleSaver interface {
	SaveDynamicRule(ctx context.Context, req SaveRuleRequest) error
}

// SaveRuleRequest is the payload of the single write issued per save.
type SaveRuleRequest struct {
	JobTitle              string   `json:"jobTitle"`
	Department            string   `json:"department"`
	ProfileName           string   `json:"profileName"`
	RoleName              string   `json:"roleName"`
	PermissionSetIDs      []string `json:"permissionSetIds"`
	PermissionSetGroupIDs []string `json:"permissionSetGroupIds"`
	IsActive              bool     `json:"isActive"`
}

func NewSaveRuleRequest(d ruledraft.Draft) SaveRuleRequest {
	return SaveRuleRequest{
		JobTitle:              d.JobTitle,
		Department:            d.Department,
		ProfileName:           d.ProfileName,
		RoleName:              d.RoleName,
		PermissionSetIDs:      append([]string{}, d.PermissionSetIDs...),
		PermissionSetGroupIDs: append([]string{}, d.PermissionSetGroupIDs...),
		IsActive:              d.IsActive,
	}
}

// RemoteMessenger is implemented by errors that carry a message produced by
// the remote system.
type RemoteMessenger interface {
	RemoteMessage() string
}
