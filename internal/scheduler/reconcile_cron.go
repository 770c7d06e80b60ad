package cron

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/damir-m/splitmate/internal/jobs"
)

// StartReconcileCronJobs schedules the periodic friend-graph repair sweep.
func StartReconcileCronJobs(reconciler *jobs.FriendReconciler) *cron.Cron {
	c := cron.New()

	c.AddFunc("@hourly", func() {
		if err := reconciler.RunSweep(context.Background()); err != nil {
			logrus.WithError(err).Error("Friend graph sweep failed")
		}
	})

	c.Start()
	return c
}
