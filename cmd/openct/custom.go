package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/titanous/json5"

	"github.com/openct/openct-cms/internal/cms"
	domerrors "github.com/openct/openct-cms/internal/errors"
)

// readInput reads path, or stdin when path is "-".
func (a *app) readInput(path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// readJSON5 decodes a JSON5 document from path, or stdin when path is "-".
func (a *app) readJSON5(path string, v any) error {
	data, err := a.readInput(path)
	if err != nil {
		return err
	}
	if err := json5.Unmarshal(data, v); err != nil {
		return invalidJSON5(path, err)
	}
	return nil
}

func invalidJSON5(path string, err error) error {
	return domerrors.At(domerrors.StageInput).Wrapf(err, "%s is not valid JSON5: %v", path, err)
}

func newCustomCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "custom",
		Short: "Manage the user-defined institution stored in the database.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <file|->",
			Short: "Store a JSON5 institution entry, replacing the previous one.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var inst cms.Institution
				if err := a.readJSON5(args[0], &inst); err != nil {
					return err
				}
				if err := inst.Validate(); err != nil {
					return domerrors.At(domerrors.StageValidate).Wrapf(err, "invalid institution: %v", err)
				}
				db, err := a.store(cmd.Context())
				if err != nil {
					return err
				}
				if err := db.SetCustomInstitution(cmd.Context(), inst); err != nil {
					return err
				}
				return a.printJSON(inst)
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored institution entry.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := a.store(cmd.Context())
				if err != nil {
					return err
				}
				inst, err := db.GetCustomInstitution(cmd.Context())
				if err != nil {
					return notFoundMessage(err, "no custom institution is stored")
				}
				return a.printJSON(inst)
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the stored institution entry.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := a.store(cmd.Context())
				if err != nil {
					return err
				}
				return db.DeleteCustomInstitution(cmd.Context())
			},
		},
	)
	return cmd
}

func newAdvancedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advanced",
		Short: "Manage per-school class table schemas that override the registry.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <file|->",
			Short: "Store a JSON5 {school_name, class_table} document.",
			Long: "Store a JSON5 {school_name, class_table} document. For a school in the registry,\n" +
				"class_table only needs the fields that differ from the registry schema; the\n" +
				"stored schema is complete and replaces the registry's.",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				data, err := a.readInput(args[0])
				if err != nil {
					return err
				}
				info, err := cms.DecodeAdvancedCustom(data, func(school string) (cms.ClassTableSchema, bool) {
					inst, err := a.lookup(ctx, school)
					if err != nil {
						return cms.ClassTableSchema{}, false
					}
					return inst.Config.ClassTable, true
				})
				if err != nil {
					return invalidJSON5(args[0], err)
				}
				if err := info.ClassTable.Validate(); err != nil {
					return domerrors.At(domerrors.StageValidate).Wrapf(err, "invalid class table: %v", err)
				}
				db, err := a.store(ctx)
				if err != nil {
					return err
				}
				if err := db.SetAdvancedCustom(ctx, info); err != nil {
					return err
				}
				return a.printJSON(info)
			},
		},
		&cobra.Command{
			Use:   "show <school>",
			Short: "Print the stored schema and the effective one for a school.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				db, err := a.store(ctx)
				if err != nil {
					return err
				}
				info, err := db.GetAdvancedCustom(ctx, args[0])
				if err != nil {
					return notFoundMessage(err, "no advanced schema is stored for "+args[0])
				}

				out := map[string]any{"stored": info}
				if inst, err := a.lookup(ctx, args[0]); err == nil {
					adapter, err := a.adapter(ctx)
					if err != nil {
						return err
					}
					effective, err := adapter.ClassSchema(ctx, inst)
					if err != nil {
						return err
					}
					out["effective"] = effective
				}
				return a.printJSON(out)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List every stored schema.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := a.store(cmd.Context())
				if err != nil {
					return err
				}
				infos, err := db.ListAdvancedCustom(cmd.Context())
				if err != nil {
					return err
				}
				if infos == nil {
					infos = []cms.AdvancedCustomInfo{}
				}
				return a.printJSON(infos)
			},
		},
		&cobra.Command{
			Use:   "delete <school>",
			Short: "Remove the stored schema for a school.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := a.store(cmd.Context())
				if err != nil {
					return err
				}
				if err := db.DeleteAdvancedCustom(cmd.Context(), args[0]); err != nil {
					return notFoundMessage(err, "no advanced schema is stored for "+args[0])
				}
				return nil
			},
		},
	)
	return cmd
}

func notFoundMessage(err error, msg string) error {
	if domerrors.IsNotFound(err) {
		return domerrors.At(domerrors.StageLookup).Wrap(err, msg)
	}
	return err
}
