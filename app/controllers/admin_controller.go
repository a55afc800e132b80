package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/tiberius19/canvas-core/internal/pkg/jobqueue"
	"github.com/tiberius19/canvas-core/internal/pkg/statistics"
)

// HandleAdminStats reports platform totals and job queue health.
func HandleAdminStats(c *fiber.Ctx) error {
	statistics.UpdateCacheIfNeeded()

	queue := jobqueue.GetManager().GetQueue()
	jobStats, err := queue.GetJobStats(c.UserContext())
	if err != nil {
		log.Warnf("[Admin] loading job stats failed: %v", err)
		jobStats = nil
	}
	queueSize, err := queue.GetQueueSize(c.UserContext())
	if err != nil {
		log.Warnf("[Admin] loading queue size failed: %v", err)
	}

	return c.JSON(fiber.Map{
		"users_total": statistics.GetTotalUsers(),
		"files_total": statistics.GetTotalFiles(),
		"files_today": statistics.GetTodayFiles(),
		"queue": fiber.Map{
			"size": queueSize,
			"jobs": jobStats,
		},
	})
}
