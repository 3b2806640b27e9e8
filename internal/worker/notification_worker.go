package worker

import (
	"context"

	"github.com/spec-kit/support-desk/internal/service"
)

// StartNotificationWorker registers notification handlers and starts the
// delivery queue that carries their webhook posts.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, queue *Queue) {
	if queue != nil {
		queue.Start(ctx)
	}
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
