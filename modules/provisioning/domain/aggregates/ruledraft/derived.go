package ruledraft

import (
	"fmt"
	"strings"
)

type ProgressStep int

const (
	StepDefineCriteria ProgressStep = iota + 1
	StepAssignPermissions
	StepReviewAndSave
)

func (s ProgressStep) String() string {
	switch s {
	case StepDefineCriteria:
		return "define_criteria"
	case StepAssignPermissions:
		return "assign_permissions"
	case StepReviewAndSave:
		return "review_and_save"
	default:
		return fmt.Sprintf("ProgressStep(%d)", int(s))
	}
}

func (s ProgressStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (d Draft) hasCriteria() bool {
	return d.JobTitle != "" && d.Department != ""
}

func (d Draft) hasPermissions() bool {
	return len(d.PermissionSetIDs) > 0 || len(d.PermissionSetGroupIDs) > 0
}

// ProgressStepOf derives the progress indicator from the draft contents alone.
func ProgressStepOf(d Draft) ProgressStep {
	switch {
	case d.hasCriteria() && d.hasPermissions():
		return StepReviewAndSave
	case d.hasCriteria():
		return StepAssignPermissions
	default:
		return StepDefineCriteria
	}
}

func HasSufficientSelections(d Draft) bool {
	return d.hasCriteria() && d.hasPermissions()
}

// IsSaveDisabled is the single gate for both the save control and the save
// operation itself.
func IsSaveDisabled(d Draft) bool {
	return !HasSufficientSelections(d)
}

// Summary renders the human readable sentence shown before saving, or "" while
// the draft is incomplete.
func Summary(d Draft) string {
	if !HasSufficientSelections(d) {
		return ""
	}

	var b strings.Builder
	b.WriteString("This rule will assign ")

	sets, groups := len(d.PermissionSetIDs), len(d.PermissionSetGroupIDs)
	switch {
	case sets > 0 && groups > 0:
		fmt.Fprintf(&b, "%s and %s", countNoun(sets, "permission set"), countNoun(groups, "permission set group"))
	case sets > 0:
		b.WriteString(countNoun(sets, "permission set"))
	default:
		b.WriteString(countNoun(groups, "permission set group"))
	}

	fmt.Fprintf(&b, ` to users with job title "%s" in the "%s" department`, d.JobTitle, d.Department)
	if d.ProfileName != "" {
		fmt.Fprintf(&b, ` with profile "%s"`, d.ProfileName)
	}
	if d.RoleName != "" {
		fmt.Fprintf(&b, ` and role "%s"`, d.RoleName)
	}
	b.WriteString(".")
	return b.String()
}

func countNoun(n int, noun string) string {
	if n > 1 {
		return fmt.Sprintf("%d %ss", n, noun)
	}
	return fmt.Sprintf("%d %s", n, noun)
}
