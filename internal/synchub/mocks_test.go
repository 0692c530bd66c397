package synchub_test

import (
	"dormpool/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// mockClient is a test double for the synchub.Client interface.
type mockClient struct {
	userID string
	topics []string
	send   chan models.ChangeEvent
	closed bool
}

func newMockClient(id string, topics ...string) *mockClient {
	return &mockClient{
		userID: id,
		topics: topics,
		send:   make(chan models.ChangeEvent, 10), // buffered to prevent blocking in tests
	}
}

func (c *mockClient) GetUserID() string                         { return c.userID }
func (c *mockClient) Topics() []string                          { return c.topics }
func (c *mockClient) GetSendChannel() chan<- models.ChangeEvent { return c.send }
func (c *mockClient) Run()                                      {}

func (c *mockClient) Close() {
	c.closed = true
	close(c.send)
}

// drain collects whatever is sitting in the send channel.
func (c *mockClient) drain() []models.ChangeEvent {
	var events []models.ChangeEvent
	for {
		select {
		case ev := <-c.send:
			events = append(events, ev)
		default:
			return events
		}
	}
}

// mockFetcher is a testify mock of the view reconciler's read interface.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) GetPoolByID(id string) (*models.Pool, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pool), args.Error(1)
}

func (m *mockFetcher) GetPoolBaskets(poolID string) ([]models.Basket, error) {
	args := m.Called(poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Basket), args.Error(1)
}

func (m *mockFetcher) GetChatroomByID(id string) (*models.Chatroom, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chatroom), args.Error(1)
}

func (m *mockFetcher) GetChatroomBaskets(chatroomID string) ([]models.Basket, error) {
	args := m.Called(chatroomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Basket), args.Error(1)
}

func (m *mockFetcher) GetActiveMemberships(chatroomID string) ([]models.ChatMembership, error) {
	args := m.Called(chatroomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMembership), args.Error(1)
}
