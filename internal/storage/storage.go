package storage

import (
	"context"
	"errors"
	"time"

	"dormpool/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is the persistence boundary of the lifecycle core. Finders return
// (nil, nil) when the row does not exist; callers decide whether that is an
// error. Atomic runs fn inside one database transaction against a
// transaction-scoped Storage; the store's transaction isolation is the only
// concurrency-correctness mechanism, there is no application-level locking.
type Storage interface {
	Atomic(fn func(Storage) error) error

	GetUserByID(id string) (*models.User, error)
	SaveUser(user *models.User) error
	GetShopByID(id string) (*models.Shop, error)
	SaveShop(shop *models.Shop) error

	CreateBasket(b *models.Basket) error
	SaveBasket(b *models.Basket) error
	DeleteBasket(id string) error
	GetBasketByID(id string) (*models.Basket, error)
	GetBasketForUpdate(id string) (*models.Basket, error)
	FindActiveBasket(ownerID, shopID string) (*models.Basket, error)
	GetOwnerBaskets(ownerID string) ([]models.Basket, error)
	GetPoolBaskets(poolID string) ([]models.Basket, error)
	GetChatroomBaskets(chatroomID string) ([]models.Basket, error)
	MigratePoolBaskets(poolID, chatroomID string) error
	ResolveChatroomBaskets(chatroomID string) error

	CreatePool(p *models.Pool) error
	GetPoolByID(id string) (*models.Pool, error)
	FindOpenPool(shopID, location string) (*models.Pool, error)
	FindLatestPool(shopID, location string) (*models.Pool, error)
	ListOpenPools() ([]models.Pool, error)
	AdjustPoolAmount(poolID string, delta int64) (*models.Pool, error)
	MarkPoolConverted(poolID string) (bool, error)

	CreateChatroom(c *models.Chatroom) error
	SaveChatroom(c *models.Chatroom) error
	GetChatroomByID(id string) (*models.Chatroom, error)
	GetChatroomForUpdate(id string) (*models.Chatroom, error)
	GetChatroomByPool(poolID string) (*models.Chatroom, error)
	ListUnresolvedChatrooms() ([]models.Chatroom, error)

	CreateMembership(m *models.ChatMembership) error
	GetActiveMembership(chatroomID, userID string) (*models.ChatMembership, error)
	GetActiveMemberships(chatroomID string) ([]models.ChatMembership, error)
	CountActiveMembers(chatroomID string) (int64, error)
	CloseMembership(chatroomID, userID string) (bool, error)

	CreateMessage(m *models.Message) error
	GetChatroomMessages(chatroomID string) ([]models.Message, error)
	GetMessageByID(id uint) (*models.Message, error)
	MarkMessageRead(id uint) (bool, error)

	PublishEvent(ev models.ChangeEvent) error
	SubscribeEvents() *redis.PubSub
}

// Service implements Storage over PostgreSQL (GORM) and Redis pub/sub.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// Atomic runs fn in one transaction. The callback receives a Service bound
// to the transaction handle; returning an error rolls everything back.
func (s *Service) Atomic(fn func(Storage) error) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx, Redis: s.Redis, Ctx: s.Ctx})
	})
}

// --- Users / shops ---

func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

func (s *Service) GetShopByID(id string) (*models.Shop, error) {
	var shop models.Shop
	err := s.DB.First(&shop, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

func (s *Service) SaveShop(shop *models.Shop) error {
	return s.DB.Save(shop).Error
}

// --- Baskets ---

func (s *Service) CreateBasket(b *models.Basket) error {
	return s.DB.Create(b).Error
}

func (s *Service) SaveBasket(b *models.Basket) error {
	return s.DB.Save(b).Error
}

func (s *Service) DeleteBasket(id string) error {
	return s.DB.Delete(&models.Basket{}, "id = ?", id).Error
}

func (s *Service) GetBasketByID(id string) (*models.Basket, error) {
	var basket models.Basket
	err := s.DB.First(&basket, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &basket, nil
}

// GetBasketForUpdate locks the row so an edit cannot overwrite a concurrent
// migration: a spawn moving the basket into a chatroom either waits for the
// edit or commits first, in which case the edit sees in_chat and is rejected.
func (s *Service) GetBasketForUpdate(id string) (*models.Basket, error) {
	var basket models.Basket
	err := s.DB.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&basket, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &basket, nil
}

// FindActiveBasket returns the owner's basket for the shop that is still in
// flight (in_pool, in_chat or ordered), if any. One active basket per user
// per shop at a time.
func (s *Service) FindActiveBasket(ownerID, shopID string) (*models.Basket, error) {
	var basket models.Basket
	err := s.DB.
		Where("owner_id = ? AND shop_id = ?", ownerID, shopID).
		Where("status IN ?", []models.BasketStatus{models.BasketInPool, models.BasketInChat, models.BasketOrdered}).
		First(&basket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &basket, nil
}

func (s *Service) GetOwnerBaskets(ownerID string) ([]models.Basket, error) {
	var baskets []models.Basket
	err := s.DB.Where("owner_id = ?", ownerID).Order("created_at desc").Find(&baskets).Error
	return baskets, err
}

func (s *Service) GetPoolBaskets(poolID string) ([]models.Basket, error) {
	var baskets []models.Basket
	err := s.DB.
		Where("pool_id = ? AND status = ?", poolID, models.BasketInPool).
		Order("created_at asc").
		Find(&baskets).Error
	return baskets, err
}

func (s *Service) GetChatroomBaskets(chatroomID string) ([]models.Basket, error) {
	var baskets []models.Basket
	err := s.DB.
		Where("chatroom_id = ?", chatroomID).
		Order("created_at asc").
		Find(&baskets).Error
	return baskets, err
}

// MigratePoolBaskets moves every in_pool basket of the pool into the
// chatroom in one statement. The pool reference is cleared: a basket never
// points at a pool and a chatroom at the same time.
func (s *Service) MigratePoolBaskets(poolID, chatroomID string) error {
	return s.DB.Model(&models.Basket{}).
		Where("pool_id = ? AND status = ?", poolID, models.BasketInPool).
		Updates(map[string]interface{}{
			"status":      models.BasketInChat,
			"chatroom_id": chatroomID,
			"pool_id":     nil,
		}).Error
}

// ResolveChatroomBaskets cascades chatroom resolution onto its baskets.
func (s *Service) ResolveChatroomBaskets(chatroomID string) error {
	return s.DB.Model(&models.Basket{}).
		Where("chatroom_id = ? AND status IN ?", chatroomID,
			[]models.BasketStatus{models.BasketInChat, models.BasketOrdered}).
		Update("status", models.BasketResolved).Error
}

// --- Pools ---

func (s *Service) CreatePool(p *models.Pool) error {
	return s.DB.Create(p).Error
}

func (s *Service) GetPoolByID(id string) (*models.Pool, error) {
	var pool models.Pool
	err := s.DB.First(&pool, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

// FindOpenPool returns the still-accepting pool for (shop, location), locked
// FOR UPDATE so concurrent basket mutations on the same pool serialize.
func (s *Service) FindOpenPool(shopID, location string) (*models.Pool, error) {
	var pool models.Pool
	err := s.DB.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shop_id = ? AND location = ? AND converted = ?", shopID, location, false).
		First(&pool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

// FindLatestPool returns the most recent pool for (shop, location),
// converted or not. Used to route late baskets into the current cycle's
// chatroom.
func (s *Service) FindLatestPool(shopID, location string) (*models.Pool, error) {
	var pool models.Pool
	err := s.DB.
		Where("shop_id = ? AND location = ?", shopID, location).
		Order("created_at desc").
		First(&pool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *Service) ListOpenPools() ([]models.Pool, error) {
	var pools []models.Pool
	err := s.DB.Where("converted = ?", false).Order("created_at asc").Find(&pools).Error
	return pools, err
}

// AdjustPoolAmount applies the delta as a single UPDATE expression and
// returns the pool as it stands afterwards. Must run in the same transaction
// as the basket mutation that caused it.
func (s *Service) AdjustPoolAmount(poolID string, delta int64) (*models.Pool, error) {
	err := s.DB.Model(&models.Pool{}).
		Where("id = ?", poolID).
		Update("current_amount", gorm.Expr("current_amount + ?", delta)).Error
	if err != nil {
		return nil, err
	}
	return s.GetPoolByID(poolID)
}

// MarkPoolConverted flips the converted flag and reports whether this caller
// won. The WHERE converted = false guard makes the check-and-set atomic, so
// two transactions both observing a funded pool spawn at most one chatroom.
func (s *Service) MarkPoolConverted(poolID string) (bool, error) {
	res := s.DB.Model(&models.Pool{}).
		Where("id = ? AND converted = ?", poolID, false).
		Update("converted", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// --- Chatrooms ---

func (s *Service) CreateChatroom(c *models.Chatroom) error {
	return s.DB.Create(c).Error
}

func (s *Service) SaveChatroom(c *models.Chatroom) error {
	return s.DB.Save(c).Error
}

func (s *Service) GetChatroomByID(id string) (*models.Chatroom, error) {
	var room models.Chatroom
	err := s.DB.First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetChatroomForUpdate locks the row so the admin and state checks of a
// gated action hold until its transaction commits. A stale admin whose role
// was reassigned concurrently fails the in-transaction re-check.
func (s *Service) GetChatroomForUpdate(id string) (*models.Chatroom, error) {
	var room models.Chatroom
	err := s.DB.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Service) GetChatroomByPool(poolID string) (*models.Chatroom, error) {
	var room models.Chatroom
	err := s.DB.First(&room, "pool_id = ?", poolID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Service) ListUnresolvedChatrooms() ([]models.Chatroom, error) {
	var rooms []models.Chatroom
	err := s.DB.
		Where("state NOT IN ?", []models.ChatroomState{models.ChatroomResolved, models.ChatroomCanceled}).
		Order("created_at asc").
		Find(&rooms).Error
	return rooms, err
}

// --- Memberships ---

func (s *Service) CreateMembership(m *models.ChatMembership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	return s.DB.Create(m).Error
}

func (s *Service) GetActiveMembership(chatroomID, userID string) (*models.ChatMembership, error) {
	var member models.ChatMembership
	err := s.DB.
		Where("chatroom_id = ? AND user_id = ? AND left_at IS NULL", chatroomID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *Service) GetActiveMemberships(chatroomID string) ([]models.ChatMembership, error) {
	var members []models.ChatMembership
	err := s.DB.
		Where("chatroom_id = ? AND left_at IS NULL", chatroomID).
		Order("joined_at asc").
		Find(&members).Error
	return members, err
}

func (s *Service) CountActiveMembers(chatroomID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.ChatMembership{}).
		Where("chatroom_id = ? AND left_at IS NULL", chatroomID).
		Count(&count).Error
	return count, err
}

// CloseMembership soft-deletes the active membership row. Returns false when
// the user was not an active member.
func (s *Service) CloseMembership(chatroomID, userID string) (bool, error) {
	res := s.DB.Model(&models.ChatMembership{}).
		Where("chatroom_id = ? AND user_id = ? AND left_at IS NULL", chatroomID, userID).
		Update("left_at", time.Now())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// --- Messages ---

func (s *Service) CreateMessage(m *models.Message) error {
	if err := s.DB.Create(m).Error; err != nil {
		logrus.WithError(err).WithField("chatroom", m.ChatroomID).Error("failed to save message")
		return err
	}
	return nil
}

func (s *Service) GetChatroomMessages(chatroomID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.
		Where("chatroom_id = ?", chatroomID).
		Order("created_at asc").
		Find(&msgs).Error
	return msgs, err
}

func (s *Service) GetMessageByID(id uint) (*models.Message, error) {
	var msg models.Message
	err := s.DB.First(&msg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkMessageRead sets read_at once; re-reads do not touch the row.
func (s *Service) MarkMessageRead(id uint) (bool, error) {
	res := s.DB.Model(&models.Message{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", time.Now())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
