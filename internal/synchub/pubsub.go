package synchub

import (
	"encoding/json"

	"dormpool/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// StartEventListener subscribes to the store's change-event channels and
// feeds decoded events into the hub's dispatcher. Malformed payloads are
// logged and skipped; affected clients recover by re-fetching.
func (m *ManagerService) StartEventListener() {
	go func() {
		pubsub := m.Storage.SubscribeEvents()
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var ev models.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logrus.WithError(err).Warn("dropping malformed change event")
				continue
			}
			m.EventCh <- ev
		}
	}()
}
