package dtos

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/provisioning-sdk/pkg/constants"
	"github.com/iota-uz/provisioning-sdk/pkg/serrors"
)

// SendMessageDTO leaves blank detection to the chat service, which trims.
type SendMessageDTO struct {
	Message string `json:"message" validate:"max=4096"`
}

func (d *SendMessageDTO) Ok() (serrors.ValidationErrors, bool) {
	err := constants.Validate.Struct(d)
	if err == nil {
		return serrors.ValidationErrors{}, true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return serrors.ValidationErrors{"": err.Error()}, false
	}
	return serrors.ProcessValidatorErrors(verrs), false
}
