package dtos

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/provisioning-sdk/pkg/constants"
	"github.com/iota-uz/provisioning-sdk/pkg/serrors"
)

type SetFieldDTO struct {
	Field string `json:"field" validate:"required,oneof=jobTitle department profileName roleName"`
	Value string `json:"value" validate:"max=255"`
}

type SelectionDTO struct {
	IDs []string `json:"ids" validate:"max=500,dive,max=64"`
}

type SetActiveDTO struct {
	Active *bool `json:"active" validate:"required"`
}

func validate(dto any) (serrors.ValidationErrors, bool) {
	err := constants.Validate.Struct(dto)
	if err == nil {
		return serrors.ValidationErrors{}, true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return serrors.ValidationErrors{"": err.Error()}, false
	}
	return serrors.ProcessValidatorErrors(verrs), false
}

func (d *SetFieldDTO) Ok() (serrors.ValidationErrors, bool) {
	d.Field = strings.TrimSpace(d.Field)
	return validate(d)
}

func (d *SelectionDTO) Ok() (serrors.ValidationErrors, bool) {
	if d.IDs == nil {
		d.IDs = []string{}
	}
	return validate(d)
}

func (d *SetActiveDTO) Ok() (serrors.ValidationErrors, bool) {
	return validate(d)
}
