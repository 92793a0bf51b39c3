package providers

import (
	"context"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
)

// Notifier is the outbound notification collaborator. The core decides when
// and what to emit; the collaborator owns every delivery concern (in-app,
// email, push). Emission failures are best-effort and must never roll back
// the state change that produced them.
type Notifier interface {
	Notify(ctx context.Context, event *entities.NotificationEvent) error
}
