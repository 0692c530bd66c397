package lifecycle_test

import (
	"dormpool/backend/internal/models"
	"dormpool/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of the storage.Storage interface. Atomic runs
// the closure against the mock itself, so service-level tests see the same
// expectations inside and outside the transaction.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Atomic(fn func(storage.Storage) error) error {
	return fn(m)
}

// User and shop operations

func (m *MockStore) GetUserByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStore) GetShopByID(id string) (*models.Shop, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shop), args.Error(1)
}

func (m *MockStore) SaveShop(shop *models.Shop) error {
	args := m.Called(shop)
	return args.Error(0)
}

// Basket operations

func (m *MockStore) CreateBasket(b *models.Basket) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockStore) SaveBasket(b *models.Basket) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockStore) DeleteBasket(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockStore) GetBasketByID(id string) (*models.Basket, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Basket), args.Error(1)
}

func (m *MockStore) GetBasketForUpdate(id string) (*models.Basket, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Basket), args.Error(1)
}

func (m *MockStore) FindActiveBasket(ownerID, shopID string) (*models.Basket, error) {
	args := m.Called(ownerID, shopID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Basket), args.Error(1)
}

func (m *MockStore) GetOwnerBaskets(ownerID string) ([]models.Basket, error) {
	args := m.Called(ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Basket), args.Error(1)
}

func (m *MockStore) GetPoolBaskets(poolID string) ([]models.Basket, error) {
	args := m.Called(poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Basket), args.Error(1)
}

func (m *MockStore) GetChatroomBaskets(chatroomID string) ([]models.Basket, error) {
	args := m.Called(chatroomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Basket), args.Error(1)
}

func (m *MockStore) MigratePoolBaskets(poolID, chatroomID string) error {
	args := m.Called(poolID, chatroomID)
	return args.Error(0)
}

func (m *MockStore) ResolveChatroomBaskets(chatroomID string) error {
	args := m.Called(chatroomID)
	return args.Error(0)
}

// Pool operations

func (m *MockStore) CreatePool(p *models.Pool) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockStore) GetPoolByID(id string) (*models.Pool, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pool), args.Error(1)
}

func (m *MockStore) FindOpenPool(shopID, location string) (*models.Pool, error) {
	args := m.Called(shopID, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pool), args.Error(1)
}

func (m *MockStore) FindLatestPool(shopID, location string) (*models.Pool, error) {
	args := m.Called(shopID, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pool), args.Error(1)
}

func (m *MockStore) ListOpenPools() ([]models.Pool, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Pool), args.Error(1)
}

func (m *MockStore) AdjustPoolAmount(poolID string, delta int64) (*models.Pool, error) {
	args := m.Called(poolID, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pool), args.Error(1)
}

func (m *MockStore) MarkPoolConverted(poolID string) (bool, error) {
	args := m.Called(poolID)
	return args.Bool(0), args.Error(1)
}

// Chatroom operations

func (m *MockStore) CreateChatroom(c *models.Chatroom) error {
	args := m.Called(c)
	return args.Error(0)
}

func (m *MockStore) SaveChatroom(c *models.Chatroom) error {
	args := m.Called(c)
	return args.Error(0)
}

func (m *MockStore) GetChatroomByID(id string) (*models.Chatroom, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chatroom), args.Error(1)
}

func (m *MockStore) GetChatroomForUpdate(id string) (*models.Chatroom, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chatroom), args.Error(1)
}

func (m *MockStore) GetChatroomByPool(poolID string) (*models.Chatroom, error) {
	args := m.Called(poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chatroom), args.Error(1)
}

func (m *MockStore) ListUnresolvedChatrooms() ([]models.Chatroom, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Chatroom), args.Error(1)
}

// Membership operations

func (m *MockStore) CreateMembership(mem *models.ChatMembership) error {
	args := m.Called(mem)
	return args.Error(0)
}

func (m *MockStore) GetActiveMembership(chatroomID, userID string) (*models.ChatMembership, error) {
	args := m.Called(chatroomID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatMembership), args.Error(1)
}

func (m *MockStore) GetActiveMemberships(chatroomID string) ([]models.ChatMembership, error) {
	args := m.Called(chatroomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMembership), args.Error(1)
}

func (m *MockStore) CountActiveMembers(chatroomID string) (int64, error) {
	args := m.Called(chatroomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) CloseMembership(chatroomID, userID string) (bool, error) {
	args := m.Called(chatroomID, userID)
	return args.Bool(0), args.Error(1)
}

// Message operations

func (m *MockStore) CreateMessage(msg *models.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStore) GetChatroomMessages(chatroomID string) ([]models.Message, error) {
	args := m.Called(chatroomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStore) GetMessageByID(id uint) (*models.Message, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStore) MarkMessageRead(id uint) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

// Event operations

func (m *MockStore) PublishEvent(ev models.ChangeEvent) error {
	args := m.Called(ev)
	return args.Error(0)
}

func (m *MockStore) SubscribeEvents() *redis.PubSub {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*redis.PubSub)
}
