package provisioning

import (
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/infrastructure/backend"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/presentation/controllers"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/services"
	"github.com/iota-uz/provisioning-sdk/pkg/application"
)

type ModuleOptions struct {
	// Sources overrides the HTTP backend built from configuration.
	Sources *services.Sources
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	conf := app.Configuration()

	sources := m.options.Sources
	if sources == nil {
		client, err := backend.NewFromConfiguration(conf)
		if err != nil {
			return err
		}
		sources = &services.Sources{
			Lookups:             client,
			PermissionSets:      client,
			PermissionSetGroups: client,
			Saver:               client,
		}
	}

	app.RegisterServices(
		services.NewRuleBuilderService(
			*sources,
			conf.Provisioning.GroupsEnabled,
			conf.Provisioning.SessionTTL,
			app.EventPublisher(),
		),
	)
	app.RegisterControllers(
		controllers.NewRuleBuilderController(app),
	)

	log := app.Logger()
	app.EventPublisher().Subscribe(func(e *services.RuleSaved) {
		log.WithFields(logrus.Fields{
			"job_title":             e.Request.JobTitle,
			"department":            e.Request.Department,
			"permission_sets":       len(e.Request.PermissionSetIDs),
			"permission_set_groups": len(e.Request.PermissionSetGroupIDs),
			"active":                e.Request.IsActive,
		}).Info("provisioning rule saved")
	})
	return nil
}

func (m *Module) Name() string {
	return "provisioning"
}
