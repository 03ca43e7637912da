package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/entities/catalog"
)

type catalogLine struct {
	Dataset catalog.Dataset `json:"dataset"`
	Data    any             `json:"data"`
}

func newCatalogsCmd(g *globalOptions) *cobra.Command {
	var noGroups bool

	cmd := &cobra.Command{
		Use:   "catalogs",
		Short: "Print the lookup values and permission catalogs as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}

			var (
				lookups catalog.LookupOptions
				sets    []catalog.PermissionEntry
				groups  []catalog.PermissionEntry
			)
			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() (err error) {
				lookups, err = client.GetLookupValues(ctx)
				return err
			})
			eg.Go(func() (err error) {
				sets, err = client.GetPermissionSets(ctx)
				return err
			})
			if !noGroups {
				eg.Go(func() (err error) {
					groups, err = client.GetPermissionSetGroups(ctx)
					return err
				})
			}
			if err := eg.Wait(); err != nil {
				return withCode(exitRemote, err)
			}

			lines := []catalogLine{
				{Dataset: catalog.DatasetLookups, Data: lookups},
				{Dataset: catalog.DatasetPermissionSets, Data: catalog.CloneEntries(sets)},
			}
			if !noGroups {
				lines = append(lines, catalogLine{Dataset: catalog.DatasetPermissionSetGroups, Data: catalog.CloneEntries(groups)})
			}
			for _, line := range lines {
				if err := writeJSONLine(cmd.OutOrStdout(), line); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noGroups, "no-groups", false, "Skip the permission set group catalog")
	return cmd
}
