package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openct/openct-cms/internal/config"
	domerrors "github.com/openct/openct-cms/internal/errors"
	"github.com/openct/openct-cms/internal/snapshot"
)

func newBackupCmd(a *app) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload a compressed snapshot of the local database to R2.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), config.SnapshotUpload)
			defer cancel()

			mgr, err := a.snapshots(ctx)
			if err != nil {
				return err
			}
			db, err := a.store(ctx)
			if err != nil {
				return err
			}

			wrap := domerrors.At(domerrors.StageSnapshot)
			res, err := mgr.Backup(ctx, db)
			if err != nil {
				return wrap.Wrapf(err, "backup failed: %v", err)
			}

			out := struct {
				snapshot.Result
				Pruned []string `json:"pruned,omitempty"`
			}{Result: res}
			if keep > 0 {
				if out.Pruned, err = mgr.Prune(ctx, keep); err != nil {
					return wrap.Wrapf(err, "snapshot uploaded as %s but pruning failed: %v", res.Key, err)
				}
			}
			return a.printJSON(out)
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "delete all but the newest N snapshots after uploading (0 keeps all)")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Replace the local database with the newest snapshot in R2.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), config.SnapshotUpload)
			defer cancel()

			mgr, err := a.snapshots(ctx)
			if err != nil {
				return err
			}
			// The database must be closed before its file is replaced
			if a.db != nil {
				_ = a.db.Close()
				a.db = nil
			}

			key, err := mgr.Restore(ctx, a.cfg.SQLitePath())
			if err != nil {
				if domerrors.IsNotFound(err) {
					return domerrors.At(domerrors.StageSnapshot).Wrap(err, "no snapshot found in R2")
				}
				return domerrors.At(domerrors.StageSnapshot).Wrapf(err, "restore failed: %v", err)
			}
			return a.printJSON(map[string]string{"key": key, "path": a.cfg.SQLitePath()})
		},
	}
}

func newSnapshotsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List snapshots in R2, oldest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.snapshots(cmd.Context())
			if err != nil {
				return err
			}
			keys, err := mgr.List(cmd.Context())
			if err != nil {
				return err
			}
			if keys == nil {
				keys = []string{}
			}
			return a.printJSON(keys)
		},
	}
}
