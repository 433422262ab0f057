package main

import (
	"github.com/spf13/cobra"

	"github.com/openct/openct-cms/internal/buildinfo"
	"github.com/openct/openct-cms/internal/storage"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "openct",
		Short: "openct scrapes class schedules and grades from campus management systems.",
		Long: `openct logs in to a campus management system portal, extracts the class
schedule and grade tables and keeps the latest results in a local SQLite
database. Portals are described by the institution registry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.AddCommand(
		newVersionCmd(a),
		newInstitutionsCmd(a),
		newStatusCmd(a),
		newCaptchaCmd(a),
		newLoginCmd(a),
		newClassesCmd(a),
		newGradesCmd(a),
		newSyncCmd(a),
		newCustomCmd(a),
		newAdvancedCmd(a),
		newBackupCmd(a),
		newRestoreCmd(a),
		newSnapshotsCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.printJSON(buildinfo.Get())
		},
	}
}

// institutionEntry is the listing form of a registry entry.
type institutionEntry struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	BaseURL string `json:"base_url"`
	Dynamic bool   `json:"dynamic_login_url"`
	Captcha bool   `json:"captcha"`
}

func newInstitutionsCmd(a *app) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "institutions [name]",
		Short: "List the institution registry or show one entry.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				inst, err := a.lookup(ctx, args[0])
				if err != nil {
					return err
				}
				return a.printJSON(inst)
			}

			reg, err := a.institutions(ctx)
			if err != nil {
				return err
			}
			if verbose {
				return a.printJSON(reg.List())
			}
			entries := make([]institutionEntry, 0, reg.Len())
			for _, inst := range reg.List() {
				entries = append(entries, institutionEntry{
					Name:    inst.Name,
					Title:   inst.Title,
					BaseURL: inst.Config.BaseURL,
					Dynamic: inst.Config.DynamicLoginURL,
					Captcha: inst.Config.LoginFields.Captcha != "",
				})
			}
			return a.printJSON(entries)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print full entries including table schemas")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what is stored locally for each institution.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			summaries, err := db.Summaries(cmd.Context())
			if err != nil {
				return err
			}
			if summaries == nil {
				summaries = []storage.InstitutionSummary{}
			}
			return a.printJSON(summaries)
		},
	}
}
