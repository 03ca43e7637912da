package services

import "github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/aggregates/ruledraft"

type HelpStep struct {
	Step        ruledraft.ProgressStep `json:"step"`
	Position    int                    `json:"position"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
}

type Help struct {
	Title string     `json:"title"`
	Intro string     `json:"intro"`
	Steps []HelpStep `json:"steps"`
}

var help = Help{
	Title: "User Provisioning Rules",
	Intro: "A provisioning rule assigns permission sets and permission set groups " +
		"to every user whose job title and department match its criteria.",
	Steps: []HelpStep{
		{
			Step:  ruledraft.StepDefineCriteria,
			Title: "Define Criteria",
			Description: "Pick the job title and department the rule applies to. " +
				"Profile and role narrow the match further and are optional.",
		},
		{
			Step:  ruledraft.StepAssignPermissions,
			Title: "Assign Permissions",
			Description: "Select at least one permission set or permission set group " +
				"to grant to matching users.",
		},
		{
			Step:  ruledraft.StepReviewAndSave,
			Title: "Review & Save",
			Description: "Check the summary, decide whether the rule starts active, then save. " +
				"Inactive rules are stored but not applied until activated.",
		},
	},
}

// HelpContent describes the three authoring steps.
func HelpContent(groupsEnabled bool) Help {
	out := help
	out.Steps = make([]HelpStep, len(help.Steps))
	for i, s := range help.Steps {
		s.Position = int(s.Step)
		if !groupsEnabled && s.Step == ruledraft.StepAssignPermissions {
			s.Description = "Select at least one permission set to grant to matching users."
		}
		out.Steps[i] = s
	}
	return out
}
