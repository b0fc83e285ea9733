package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edly-io/forum-sub001/internal/config"
	"github.com/edly-io/forum-sub001/internal/logging"
	"github.com/edly-io/forum-sub001/internal/services"
)

var reconcileCourseID string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recount denormalized counters and course stats for one course",
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileCourseID, "course", "", "Course id to reconcile")
	_ = reconcileCmd.MarkFlagRequired("course")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	rec := services.NewReconciler(st, cfg.Reconciler.Interval, cfg.Reconciler.BatchSize)
	return rec.RunOnce(ctx, reconcileCourseID)
}
