package modules

import (
	"github.com/iota-uz/provisioning-sdk/modules/assistant"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning"
	"github.com/iota-uz/provisioning-sdk/pkg/application"
)

var BuiltInModules = []application.Module{
	provisioning.NewModule(nil),
	assistant.NewModule(nil),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
		app.Logger().WithField("module", module.Name()).Debug("module registered")
	}
	return nil
}
