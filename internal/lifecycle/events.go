package lifecycle

import (
	"dormpool/backend/internal/models"
	"dormpool/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

// eventLog accumulates change events produced inside a transaction. They are
// published only after the transaction commits; a rollback discards them, so
// subscribers never see phantom changes.
type eventLog struct {
	events []models.ChangeEvent
}

func (l *eventLog) add(ev models.ChangeEvent) {
	l.events = append(l.events, ev)
}

// publish sends the collected events. Delivery failures are logged, not
// surfaced: subscribers fall back to a full re-fetch on their own.
func (l *eventLog) publish(st storage.Storage) {
	for _, ev := range l.events {
		if err := st.PublishEvent(ev); err != nil {
			logrus.WithError(err).WithField("topic", ev.Topic).Warn("failed to publish change event")
		}
	}
}
