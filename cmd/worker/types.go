package main

import (
	"context"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
)

// NotificationRecorder is implemented by notifications.Store.
type NotificationRecorder interface {
	Record(ctx context.Context, n notifications.Notification) (bool, error)
}
