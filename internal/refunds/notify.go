package refunds

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/eventdesk-backend/internal/notifications"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
)

// NoticeContext is the event detail shared by every cancellation email of one operation.
type NoticeContext struct {
	Event     *models.Event
	EventDate *time.Time
	Reason    string
	Currency  enums.Currency
}

// SendCancellationNotices sends one email per attendee. Delivery failures are
// logged and never returned; the cancellation has already committed.
func SendCancellationNotices(ctx context.Context, notifier notifications.Notifier, logg *logger.Logger, nc NoticeContext, notices []AttendeeNotice) int {
	if notifier == nil || nc.Event == nil {
		return 0
	}
	sent := 0
	for _, notice := range notices {
		if strings.TrimSpace(notice.Email) == "" {
			continue
		}
		err := notifier.SendCancellation(ctx, notifications.CancellationEmail{
			EventID:      nc.Event.ID,
			To:           notice.Email,
			AttendeeName: notice.Name,
			EventTitle:   nc.Event.Title,
			EventDate:    nc.EventDate,
			VenueName:    deref(nc.Event.VenueName),
			City:         deref(nc.Event.City),
			TierNames:    notice.JoinedTierNames(),
			Reason:       nc.Reason,
			RefundAmount: notice.Refund,
			Currency:     nc.Currency,
		})
		if err != nil {
			if logg != nil {
				logg.Error(logg.WithField(ctx, "attendee_email", notice.Email), "failed to send cancellation email", err)
			}
			continue
		}
		sent++
	}
	return sent
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
