package lifecycle_test

import (
	"testing"
	"time"

	"dormpool/backend/internal/lifecycle"
	"dormpool/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func poolFixture(current int64) *models.Pool {
	return &models.Pool{
		ID:            "pool1",
		ShopID:        "shop1",
		Location:      "dorm-a",
		MinAmount:     10000,
		CurrentAmount: current,
	}
}

func TestBasketCreate_JoinsOpenPool(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	store.On("GetUserByID", "u2").Return(&models.User{ID: "u2"}, nil)
	store.On("GetShopByID", "shop1").Return(&models.Shop{ID: "shop1", MinAmount: 10000}, nil)
	store.On("FindActiveBasket", "u2", "shop1").Return(nil, nil)
	store.On("FindLatestPool", "shop1", "dorm-a").Return(poolFixture(4000), nil)
	store.On("FindOpenPool", "shop1", "dorm-a").Return(poolFixture(4000), nil)
	store.On("CreateBasket", mock.AnythingOfType("*models.Basket")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Basket).ID = "b2"
	}).Return(nil)
	store.On("AdjustPoolAmount", "pool1", int64(3000)).Return(poolFixture(7000), nil)
	store.On("PublishEvent", mock.AnythingOfType("models.ChangeEvent")).Return(nil)

	result, err := svc.Create(lifecycle.CreateBasketInput{
		OwnerID:  "u2",
		ShopID:   "shop1",
		Location: "dorm-a",
		Amount:   3000,
		Note:     "two packs of noodles",
	})

	assert.NoError(t, err)
	assert.Equal(t, "b2", result.Basket.ID)
	assert.Equal(t, models.BasketInPool, result.Basket.Status)
	assert.Equal(t, int64(7000), result.Pool.CurrentAmount)
	assert.Empty(t, result.ChatroomID)
	store.AssertNotCalled(t, "MarkPoolConverted", mock.Anything)
}

func TestBasketCreate_FundsPoolAndSpawnsChatroom(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	earlier := time.Now().Add(-time.Hour)
	existing := models.Basket{ID: "b1", OwnerID: "u1", Amount: 6000, Status: models.BasketInPool, CreatedAt: earlier}

	store.On("GetUserByID", "u2").Return(&models.User{ID: "u2"}, nil)
	store.On("GetShopByID", "shop1").Return(&models.Shop{ID: "shop1", MinAmount: 10000}, nil)
	store.On("FindActiveBasket", "u2", "shop1").Return(nil, nil)
	store.On("FindLatestPool", "shop1", "dorm-a").Return(poolFixture(6000), nil)
	store.On("FindOpenPool", "shop1", "dorm-a").Return(poolFixture(6000), nil)
	store.On("CreateBasket", mock.AnythingOfType("*models.Basket")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Basket).ID = "b2"
	}).Return(nil)
	store.On("AdjustPoolAmount", "pool1", int64(5000)).Return(poolFixture(11000), nil)

	store.On("MarkPoolConverted", "pool1").Return(true, nil)
	created := models.Basket{ID: "b2", OwnerID: "u2", Amount: 5000, Status: models.BasketInPool}
	store.On("GetPoolBaskets", "pool1").Return([]models.Basket{existing, created}, nil)

	var spawned *models.Chatroom
	store.On("CreateChatroom", mock.AnythingOfType("*models.Chatroom")).Run(func(args mock.Arguments) {
		spawned = args.Get(0).(*models.Chatroom)
		spawned.ID = "room1"
	}).Return(nil)
	store.On("MigratePoolBaskets", "pool1", "room1").Return(nil)
	store.On("CreateMembership", mock.AnythingOfType("*models.ChatMembership")).Return(nil)
	store.On("SaveChatroom", mock.AnythingOfType("*models.Chatroom")).Return(nil)
	store.On("GetChatroomBaskets", "room1").Return([]models.Basket{existing, created}, nil)

	roomID := "room1"
	migrated := created
	migrated.Status = models.BasketInChat
	migrated.ChatroomID = &roomID
	store.On("GetBasketByID", "b2").Return(&migrated, nil)
	store.On("PublishEvent", mock.AnythingOfType("models.ChangeEvent")).Return(nil)

	result, err := svc.Create(lifecycle.CreateBasketInput{
		OwnerID:  "u2",
		ShopID:   "shop1",
		Location: "dorm-a",
		Amount:   5000,
		Note:     "detergent",
	})

	assert.NoError(t, err)
	assert.Equal(t, "room1", result.ChatroomID)
	assert.Equal(t, models.BasketInChat, result.Basket.Status)

	// the earliest basket's owner runs the room, not the member whose
	// basket crossed the threshold
	assert.Equal(t, "u1", spawned.AdminID)
	// two distinct members joined, so the room opens active
	assert.Equal(t, models.ChatroomActive, spawned.State)
	store.AssertNumberOfCalls(t, "CreateMembership", 2)
}

func TestBasketCreate_SpawnRaceLoserJoinsWinnersRoom(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	store.On("GetUserByID", "u2").Return(&models.User{ID: "u2"}, nil)
	store.On("GetShopByID", "shop1").Return(&models.Shop{ID: "shop1", MinAmount: 10000}, nil)
	store.On("FindActiveBasket", "u2", "shop1").Return(nil, nil)
	store.On("FindLatestPool", "shop1", "dorm-a").Return(poolFixture(6000), nil)
	store.On("FindOpenPool", "shop1", "dorm-a").Return(poolFixture(6000), nil)
	store.On("CreateBasket", mock.AnythingOfType("*models.Basket")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Basket).ID = "b2"
	}).Return(nil)
	store.On("AdjustPoolAmount", "pool1", int64(5000)).Return(poolFixture(11000), nil)

	// another transaction already converted the pool
	store.On("MarkPoolConverted", "pool1").Return(false, nil)
	store.On("GetChatroomByPool", "pool1").Return(&models.Chatroom{ID: "room1", State: models.ChatroomActive}, nil)
	store.On("GetBasketByID", "b2").Return(&models.Basket{ID: "b2", Status: models.BasketInChat}, nil)
	store.On("PublishEvent", mock.AnythingOfType("models.ChangeEvent")).Return(nil)

	result, err := svc.Create(lifecycle.CreateBasketInput{
		OwnerID:  "u2",
		ShopID:   "shop1",
		Location: "dorm-a",
		Amount:   5000,
		Note:     "detergent",
	})

	assert.NoError(t, err)
	assert.Equal(t, "room1", result.ChatroomID)
	store.AssertNotCalled(t, "CreateChatroom", mock.Anything)
	store.AssertNotCalled(t, "MigratePoolBaskets", mock.Anything, mock.Anything)
}

func TestBasketCreate_DuplicateActiveBasketRejected(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	store.On("GetUserByID", "u1").Return(&models.User{ID: "u1"}, nil)
	store.On("GetShopByID", "shop1").Return(&models.Shop{ID: "shop1"}, nil)
	store.On("FindActiveBasket", "u1", "shop1").Return(&models.Basket{ID: "b1"}, nil)

	_, err := svc.Create(lifecycle.CreateBasketInput{
		OwnerID:  "u1",
		ShopID:   "shop1",
		Location: "dorm-a",
		Amount:   1000,
		Note:     "snacks",
	})

	assert.ErrorIs(t, err, lifecycle.ErrValidation)
	store.AssertNotCalled(t, "CreateBasket", mock.Anything)
}

func TestBasketCreate_RequiresLinkOrNote(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	_, err := svc.Create(lifecycle.CreateBasketInput{
		OwnerID:  "u1",
		ShopID:   "shop1",
		Location: "dorm-a",
		Amount:   1000,
	})

	assert.ErrorIs(t, err, lifecycle.ErrValidation)
}

func TestBasketCreate_LateBasketRoutesIntoLiveChatroom(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	converted := poolFixture(12000)
	converted.Converted = true
	room := &models.Chatroom{ID: "room1", PoolID: "pool1", State: models.ChatroomActive}

	store.On("GetUserByID", "u3").Return(&models.User{ID: "u3"}, nil)
	store.On("GetShopByID", "shop1").Return(&models.Shop{ID: "shop1", MinAmount: 10000}, nil)
	store.On("FindActiveBasket", "u3", "shop1").Return(nil, nil)
	store.On("FindLatestPool", "shop1", "dorm-a").Return(converted, nil)
	store.On("GetChatroomByPool", "pool1").Return(room, nil)
	store.On("CreateBasket", mock.AnythingOfType("*models.Basket")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Basket).ID = "b3"
	}).Return(nil)
	store.On("GetActiveMembership", "room1", "u3").Return(nil, nil)
	store.On("CreateMembership", mock.AnythingOfType("*models.ChatMembership")).Return(nil)
	store.On("CountActiveMembers", "room1").Return(int64(3), nil)
	store.On("PublishEvent", mock.AnythingOfType("models.ChangeEvent")).Return(nil)

	result, err := svc.Create(lifecycle.CreateBasketInput{
		OwnerID:  "u3",
		ShopID:   "shop1",
		Location: "dorm-a",
		Amount:   2000,
		Note:     "late add",
	})

	assert.NoError(t, err)
	assert.Equal(t, "room1", result.ChatroomID)
	assert.Equal(t, models.BasketInChat, result.Basket.Status)
	// no new pool gets opened while the cycle's chatroom is still live
	store.AssertNotCalled(t, "FindOpenPool", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "AdjustPoolAmount", mock.Anything, mock.Anything)
}

func TestBasketCreate_ConversionDuringCreateRoutesIntoChatroom(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	// first snapshot: the cycle's pool is still open
	unconverted := poolFixture(9000)
	// after blocking on the spawner's row lock the open-pool lookup finds
	// nothing; the re-read sees the pool converted and its chatroom live
	converted := poolFixture(12000)
	converted.Converted = true
	room := &models.Chatroom{ID: "room1", PoolID: "pool1", State: models.ChatroomActive}

	store.On("GetUserByID", "u3").Return(&models.User{ID: "u3"}, nil)
	store.On("GetShopByID", "shop1").Return(&models.Shop{ID: "shop1", MinAmount: 10000}, nil)
	store.On("FindActiveBasket", "u3", "shop1").Return(nil, nil)
	store.On("FindLatestPool", "shop1", "dorm-a").Return(unconverted, nil).Once()
	store.On("FindOpenPool", "shop1", "dorm-a").Return(nil, nil)
	store.On("FindLatestPool", "shop1", "dorm-a").Return(converted, nil)
	store.On("GetChatroomByPool", "pool1").Return(room, nil)
	store.On("CreateBasket", mock.AnythingOfType("*models.Basket")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Basket).ID = "b3"
	}).Return(nil)
	store.On("GetActiveMembership", "room1", "u3").Return(nil, nil)
	store.On("CreateMembership", mock.AnythingOfType("*models.ChatMembership")).Return(nil)
	store.On("CountActiveMembers", "room1").Return(int64(3), nil)
	store.On("PublishEvent", mock.AnythingOfType("models.ChangeEvent")).Return(nil)

	result, err := svc.Create(lifecycle.CreateBasketInput{
		OwnerID:  "u3",
		ShopID:   "shop1",
		Location: "dorm-a",
		Amount:   2000,
		Note:     "caught mid-conversion",
	})

	assert.NoError(t, err)
	assert.Equal(t, "room1", result.ChatroomID)
	assert.Equal(t, models.BasketInChat, result.Basket.Status)
	// no duplicate cycle: the basket joined the winner's chatroom instead
	// of seeding a second pool for the same (shop, location)
	store.AssertNotCalled(t, "CreatePool", mock.Anything)
	store.AssertNotCalled(t, "AdjustPoolAmount", mock.Anything, mock.Anything)
}

func TestBasketCreate_FirstBasketOpensPool(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	store.On("GetUserByID", "u1").Return(&models.User{ID: "u1"}, nil)
	store.On("GetShopByID", "shop1").Return(&models.Shop{ID: "shop1", MinAmount: 10000}, nil)
	store.On("FindActiveBasket", "u1", "shop1").Return(nil, nil)
	store.On("FindLatestPool", "shop1", "dorm-a").Return(nil, nil)
	store.On("FindOpenPool", "shop1", "dorm-a").Return(nil, nil)
	var created *models.Pool
	store.On("CreatePool", mock.AnythingOfType("*models.Pool")).Run(func(args mock.Arguments) {
		created = args.Get(0).(*models.Pool)
		created.ID = "pool1"
	}).Return(nil)
	store.On("CreateBasket", mock.AnythingOfType("*models.Basket")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Basket).ID = "b1"
	}).Return(nil)
	store.On("AdjustPoolAmount", "pool1", int64(3000)).Return(poolFixture(3000), nil)
	store.On("PublishEvent", mock.AnythingOfType("models.ChangeEvent")).Return(nil)

	result, err := svc.Create(lifecycle.CreateBasketInput{
		OwnerID:  "u1",
		ShopID:   "shop1",
		Location: "dorm-a",
		Amount:   3000,
		Note:     "first order of the cycle",
	})

	assert.NoError(t, err)
	assert.Equal(t, "pool1", *result.Basket.PoolID)
	// the new pool inherits the shop's minimum spend
	assert.Equal(t, int64(10000), created.MinAmount)
}

func TestBasketUpdate_IncreaseFundsPool(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	poolID := "pool1"
	basket := &models.Basket{ID: "b1", OwnerID: "u1", Amount: 6000, Status: models.BasketInPool, PoolID: &poolID}

	store.On("GetBasketForUpdate", "b1").Return(basket, nil)
	store.On("SaveBasket", basket).Return(nil)
	store.On("AdjustPoolAmount", "pool1", int64(5000)).Return(poolFixture(11000), nil)

	store.On("MarkPoolConverted", "pool1").Return(true, nil)
	store.On("GetPoolBaskets", "pool1").Return([]models.Basket{*basket}, nil)
	store.On("CreateChatroom", mock.AnythingOfType("*models.Chatroom")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Chatroom).ID = "room1"
	}).Return(nil)
	store.On("MigratePoolBaskets", "pool1", "room1").Return(nil)
	store.On("CreateMembership", mock.AnythingOfType("*models.ChatMembership")).Return(nil)
	store.On("SaveChatroom", mock.AnythingOfType("*models.Chatroom")).Return(nil)
	store.On("GetChatroomBaskets", "room1").Return([]models.Basket{}, nil)
	store.On("PublishEvent", mock.AnythingOfType("models.ChangeEvent")).Return(nil)
	roomID := "room1"
	store.On("GetBasketByID", "b1").Return(&models.Basket{
		ID: "b1", OwnerID: "u1", Amount: 11000,
		Status: models.BasketInChat, ChatroomID: &roomID,
	}, nil)

	amount := int64(11000)
	note := "bulk order"
	result, err := svc.Update("b1", "u1", lifecycle.UpdateBasketInput{Amount: &amount, Note: &note})

	assert.NoError(t, err)
	assert.Equal(t, "room1", result.ChatroomID)
	store.AssertCalled(t, "AdjustPoolAmount", "pool1", int64(5000))
}

func TestBasketUpdate_OnlyInPool(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	store.On("GetBasketForUpdate", "b1").Return(&models.Basket{ID: "b1", OwnerID: "u1", Status: models.BasketInChat}, nil)

	amount := int64(500)
	_, err := svc.Update("b1", "u1", lifecycle.UpdateBasketInput{Amount: &amount})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidState)
}

func TestBasketUpdate_MigratedBasketNotReverted(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	// the spawn that migrated the basket committed first; the locked read
	// sees the migrated row and the edit must not write it back to the pool
	roomID := "room1"
	store.On("GetBasketForUpdate", "b1").Return(&models.Basket{
		ID: "b1", OwnerID: "u1", Amount: 6000,
		Status: models.BasketInChat, ChatroomID: &roomID,
	}, nil)

	amount := int64(7000)
	_, err := svc.Update("b1", "u1", lifecycle.UpdateBasketInput{Amount: &amount})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidState)
	store.AssertNotCalled(t, "SaveBasket", mock.Anything)
	store.AssertNotCalled(t, "AdjustPoolAmount", mock.Anything, mock.Anything)
}

func TestBasketUpdate_ForeignBasketForbidden(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	store.On("GetBasketForUpdate", "b1").Return(&models.Basket{ID: "b1", OwnerID: "u1", Status: models.BasketInPool}, nil)

	amount := int64(500)
	_, err := svc.Update("b1", "u2", lifecycle.UpdateBasketInput{Amount: &amount})
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)
}

func TestBasketDelete_ReturnsAmountToPool(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	poolID := "pool1"
	basket := &models.Basket{ID: "b1", OwnerID: "u1", Amount: 3000, Status: models.BasketInPool, PoolID: &poolID}

	store.On("GetBasketForUpdate", "b1").Return(basket, nil)
	store.On("DeleteBasket", "b1").Return(nil)
	store.On("AdjustPoolAmount", "pool1", int64(-3000)).Return(poolFixture(3000), nil)
	store.On("PublishEvent", mock.AnythingOfType("models.ChangeEvent")).Return(nil)

	err := svc.Delete("b1", "u1")
	assert.NoError(t, err)
	store.AssertCalled(t, "AdjustPoolAmount", "pool1", int64(-3000))
}

func TestBasketToggleReady_NeverFeedsFunding(t *testing.T) {
	store := new(MockStore)
	svc := lifecycle.NewBasketService(store)

	poolID := "pool1"
	basket := &models.Basket{ID: "b1", OwnerID: "u1", Amount: 3000, Status: models.BasketInPool, PoolID: &poolID}

	store.On("GetBasketForUpdate", "b1").Return(basket, nil)
	store.On("SaveBasket", basket).Return(nil)
	store.On("PublishEvent", mock.AnythingOfType("models.ChangeEvent")).Return(nil)

	got, err := svc.ToggleReady("b1", "u1")
	assert.NoError(t, err)
	assert.True(t, got.IsReady)
	store.AssertNotCalled(t, "AdjustPoolAmount", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkPoolConverted", mock.Anything)
}
