package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/collaborators"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/entities/catalog"
	"github.com/iota-uz/provisioning-sdk/pkg/notify"
	"github.com/iota-uz/provisioning-sdk/pkg/serrors"
)

var (
	ErrSaveInProgress     = serrors.NewError("SAVE_IN_PROGRESS", "a save is already in progress", "Provisioning.Errors.SaveInProgress")
	ErrMissingInformation = serrors.NewError("MISSING_INFORMATION", "required fields or selections are missing", "Provisioning.Errors.MissingInformation")
)

const (
	loadErrorTitle    = "Data Loading Error"
	loadErrorSuffix   = " Please refresh the page or contact your administrator."
	unknownSaveFailed = "Unknown error occurred"
)

var loadFailureMessages = map[catalog.Dataset]string{
	catalog.DatasetLookups:             "Unable to load field values." + loadErrorSuffix,
	catalog.DatasetPermissionSets:      "Unable to load permission sets." + loadErrorSuffix,
	catalog.DatasetPermissionSetGroups: "Unable to load permission set groups." + loadErrorSuffix,
}

func loadFailureNotification(dataset catalog.Dataset) notify.Notification {
	return notify.Error(loadErrorTitle, loadFailureMessages[dataset])
}

func missingInformationNotification() notify.Notification {
	return notify.Error(
		"Missing Information",
		"Please complete all required fields and select at least one permission set or group.",
	)
}

func savedNotification(active bool) notify.Notification {
	if active {
		return notify.Success("Success", "User provisioning rule has been created and activated")
	}
	return notify.Success("Success", "User provisioning rule has been created and saved as inactive")
}

type SaveFailureKind string

const (
	SaveFailureDuplicate       SaveFailureKind = "duplicate"
	SaveFailureAccessDenied    SaveFailureKind = "access_denied"
	SaveFailureFieldValidation SaveFailureKind = "field_validation"
	SaveFailureUnknown         SaveFailureKind = "unknown"
)

// SaveError is returned when the remote system rejected the rule.
type SaveError struct {
	Kind    SaveFailureKind
	Message string
	Err     error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save dynamic rule (%s): %s", e.Kind, e.Message)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Notification renders the user facing text for the failure.
func (e *SaveError) Notification() notify.Notification {
	switch e.Kind {
	case SaveFailureDuplicate:
		return notify.Error("Duplicate Rule", "A rule with these criteria already exists. Please modify your criteria.")
	case SaveFailureAccessDenied:
		return notify.Error("Access Denied", "You don't have permission to create this rule. Please contact your administrator.")
	case SaveFailureFieldValidation:
		return notify.Error("Validation Error", e.Message)
	default:
		return notify.Error("Error", "Failed to save: "+e.Message)
	}
}

func newSaveError(err error) *SaveError {
	msg := FailureMessage(err)
	return &SaveError{Kind: ClassifySaveFailure(msg), Message: msg, Err: err}
}

// FailureMessage prefers the message reported by the remote system, then the
// error text.
func FailureMessage(err error) string {
	var remote collaborators.RemoteMessenger
	if errors.As(err, &remote) {
		if msg := remote.RemoteMessage(); msg != "" {
			return msg
		}
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return unknownSaveFailed
}

// ClassifySaveFailure inspects the message only; the first matching rule wins.
func ClassifySaveFailure(message string) SaveFailureKind {
	switch {
	case strings.Contains(message, "DUPLICATE_VALUE"), strings.Contains(message, "duplicate"):
		return SaveFailureDuplicate
	case strings.Contains(message, "ACCESS_DENIED"), strings.Contains(message, "insufficient access"):
		return SaveFailureAccessDenied
	case strings.Contains(message, "FIELD_CUSTOM_VALIDATION_EXCEPTION"):
		return SaveFailureFieldValidation
	default:
		return SaveFailureUnknown
	}
}
