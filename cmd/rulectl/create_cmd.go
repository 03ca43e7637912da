package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/aggregates/ruledraft"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/collaborators"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/entities/catalog"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/services"
)

type createOptions struct {
	jobTitle    string
	department  string
	profileName string
	roleName    string
	sets        []string
	groups      []string
	active      bool
	noGroups    bool
}

func newCreateCmd(g *globalOptions) *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create one dynamic provisioning rule",
		Args:  cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.noGroups && len(opts.groups) > 0 {
				return withCode(exitUsage, errors.New("--group cannot be combined with --no-groups"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreate(cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.jobTitle, "job-title", "", "Job title the rule matches (required)")
	cmd.Flags().StringVar(&opts.department, "department", "", "Department the rule matches (required)")
	cmd.Flags().StringVar(&opts.profileName, "profile", "", "Profile name")
	cmd.Flags().StringVar(&opts.roleName, "role", "", "Role name")
	cmd.Flags().StringArrayVar(&opts.sets, "permission-set", nil, "Permission set id (repeatable)")
	cmd.Flags().StringArrayVar(&opts.groups, "group", nil, "Permission set group id (repeatable)")
	cmd.Flags().BoolVar(&opts.active, "active", false, "Activate the rule immediately")
	cmd.Flags().BoolVar(&opts.noGroups, "no-groups", false, "Author without the permission set group dimension")

	_ = cmd.MarkFlagRequired("job-title")
	_ = cmd.MarkFlagRequired("department")
	return cmd
}

// runCreate drives a headless rule builder: load catalogs, fill the draft,
// save once. The saved request is printed as one JSON line on success.
func runCreate(cmd *cobra.Command, g *globalOptions, opts createOptions) error {
	client, err := g.client()
	if err != nil {
		return err
	}

	cfg := services.RuleBuilderConfig{
		Lookups:        client,
		PermissionSets: client,
		Saver:          client,
		Notifier:       stderrNotifier(cmd.ErrOrStderr()),
		Logger:         logrus.NewEntry(g.logger).WithField("command", "create"),
	}
	if !opts.noGroups {
		cfg.PermissionSetGroups = client
	}
	builder := services.NewRuleBuilder(cfg)

	ctx := cmd.Context()
	builder.Init(ctx)
	if err := builder.Wait(); err != nil {
		g.logger.WithError(err).Warn("catalogs did not load completely")
	}
	warnUnknownIDs(g.logger, "permission set", opts.sets, builder.Snapshot().PermissionSets)
	warnUnknownIDs(g.logger, "permission set group", opts.groups, builder.Snapshot().PermissionSetGroups)

	builder.SetField(ruledraft.FieldJobTitle, opts.jobTitle)
	builder.SetField(ruledraft.FieldDepartment, opts.department)
	builder.SetField(ruledraft.FieldProfileName, opts.profileName)
	builder.SetField(ruledraft.FieldRoleName, opts.roleName)
	builder.SetPermissionSetSelection(opts.sets)
	if !opts.noGroups {
		builder.SetPermissionSetGroupSelection(opts.groups)
	}
	snap := builder.SetActive(opts.active)
	req := collaborators.NewSaveRuleRequest(snap.Draft)

	if summary := snap.Summary(); summary != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), summary)
	}

	if _, err := builder.Save(ctx); err != nil {
		var saveErr *services.SaveError
		switch {
		case errors.Is(err, services.ErrMissingInformation):
			return withCode(exitValidation, err)
		case errors.As(err, &saveErr):
			return withCode(exitRemote, err)
		default:
			return err
		}
	}
	return writeJSONLine(cmd.OutOrStdout(), req)
}

func warnUnknownIDs(logger *logrus.Logger, kind string, ids []string, known []catalog.PermissionEntry) {
	if len(ids) == 0 || len(known) == 0 {
		return
	}
	index := make(map[string]struct{}, len(known))
	for _, e := range known {
		index[e.ID] = struct{}{}
	}
	var unknown []string
	for _, id := range ruledraft.NormalizeIDs(ids) {
		if _, ok := index[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		logger.WithField("ids", strings.Join(unknown, ",")).Warnf("unknown %s ids", kind)
	}
}
