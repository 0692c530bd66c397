package synchub

import (
	"dormpool/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// EventSource is the slice of the storage layer the hub needs: a pattern
// subscription over every change-event channel.
type EventSource interface {
	SubscribeEvents() *redis.PubSub
}

// ManagerService fans change events out to connected clients by topic.
// All state is owned by the Run goroutine; the channels are the only way in.
type ManagerService struct {
	Clients map[string]Client
	// topics maps topic -> userID -> client.
	topics map[string]map[string]Client

	RegisterCh    chan Client
	UnregisterCh  chan Client
	SubscribeCh   chan Subscription
	UnsubscribeCh chan Subscription
	EventCh       chan models.ChangeEvent

	Storage EventSource
}

// NewManagerService Constructor
func NewManagerService(s EventSource) *ManagerService {
	return &ManagerService{
		Clients:       make(map[string]Client),
		topics:        make(map[string]map[string]Client),
		RegisterCh:    make(chan Client),
		UnregisterCh:  make(chan Client),
		SubscribeCh:   make(chan Subscription),
		UnsubscribeCh: make(chan Subscription),
		EventCh:       make(chan models.ChangeEvent, 64),
		Storage:       s,
	}
}

// Run is the hub's dispatcher loop. Start it once, as a goroutine.
func (m *ManagerService) Run() {
	for {
		select {
		case client := <-m.RegisterCh:
			m.Clients[client.GetUserID()] = client
			for _, topic := range client.Topics() {
				m.subscribe(client, topic)
			}
			logrus.WithField("user", client.GetUserID()).Debug("sync client registered")

		case client := <-m.UnregisterCh:
			m.drop(client)

		case sub := <-m.SubscribeCh:
			m.subscribe(sub.Client, sub.Topic)

		case sub := <-m.UnsubscribeCh:
			m.unsubscribe(sub.Client, sub.Topic)

		case ev := <-m.EventCh:
			m.dispatch(ev)
		}
	}
}

func (m *ManagerService) subscribe(client Client, topic string) {
	if topic == "" {
		return
	}
	if m.topics[topic] == nil {
		m.topics[topic] = make(map[string]Client)
	}
	m.topics[topic][client.GetUserID()] = client
}

func (m *ManagerService) unsubscribe(client Client, topic string) {
	if subs, ok := m.topics[topic]; ok {
		delete(subs, client.GetUserID())
		if len(subs) == 0 {
			delete(m.topics, topic)
		}
	}
}

// dispatch delivers an event to every subscriber of its topic. A client
// whose send buffer is full is dropped rather than allowed to stall the
// loop; it will reconnect and re-fetch.
func (m *ManagerService) dispatch(ev models.ChangeEvent) {
	for _, client := range m.topics[ev.Topic] {
		select {
		case client.GetSendChannel() <- ev:
		default:
			logrus.WithField("user", client.GetUserID()).Warn("slow sync client dropped")
			m.drop(client)
		}
	}
}

// drop removes a client from the hub and closes it. Topic entries are
// cleaned even when a newer connection already took over the user id, so a
// replaced client cannot leave subscriptions behind. Safe to call twice:
// a client that holds no entries anywhere is not closed again.
func (m *ManagerService) drop(client Client) {
	id := client.GetUserID()
	removed := false
	for topic, subs := range m.topics {
		if subs[id] == client {
			delete(subs, id)
			if len(subs) == 0 {
				delete(m.topics, topic)
			}
			removed = true
		}
	}
	if m.Clients[id] == client {
		delete(m.Clients, id)
		removed = true
	}
	if removed {
		client.Close()
	}
}
