package synchub

import "dormpool/backend/internal/models"

// Client is one connected subscriber. It abstracts the transport so the hub
// can manage websocket connections and test doubles uniformly.
type Client interface {
	// GetUserID returns the identifier of the user behind the connection.
	GetUserID() string
	// Topics returns the topics requested at connect time. Further
	// subscriptions arrive through the hub's SubscribeCh.
	Topics() []string

	// GetSendChannel returns the channel the hub pushes matching change
	// events into. It is a send-only channel.
	GetSendChannel() chan<- models.ChangeEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the client's send channel down, stopping its write pump.
	Close()
}

// Subscription binds a client to a topic, for the hub's subscribe and
// unsubscribe channels.
type Subscription struct {
	Client Client
	Topic  string
}
