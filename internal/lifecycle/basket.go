package lifecycle

import (
	"fmt"
	"strings"

	"dormpool/backend/internal/config"
	"dormpool/backend/internal/models"
	"dormpool/backend/internal/storage"

	"github.com/go-playground/validator/v10"
)

// BasketService drives the basket lifecycle: create, edit, delete, toggle
// readiness. Every operation is one Atomic transaction; the pool amount
// adjustment, the funded check and a possible chatroom spawn all commit or
// roll back together with the basket mutation that caused them.
type BasketService struct {
	Store    storage.Storage
	validate *validator.Validate
}

func NewBasketService(st storage.Storage) *BasketService {
	return &BasketService{Store: st, validate: validator.New()}
}

// CreateBasketInput carries the fields of a new basket. Amount is in minor
// currency units. At least one of OrderLink/Note is required.
type CreateBasketInput struct {
	OwnerID   string `json:"owner_id" validate:"required"`
	ShopID    string `json:"shop_id" validate:"required"`
	Location  string `json:"location" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	OrderLink string `json:"order_link" validate:"omitempty,url"`
	Note      string `json:"note"`
}

// UpdateBasketInput carries the editable fields; nil means "leave as is".
type UpdateBasketInput struct {
	Amount    *int64  `json:"amount" validate:"omitempty,gt=0"`
	OrderLink *string `json:"order_link" validate:"omitempty,url"`
	Note      *string `json:"note"`
}

// BasketResult reports where a basket mutation left things. Pool is set
// while the basket sits in a pool; ChatroomID is set when the operation
// landed the basket in a chatroom, either by routing it into an existing
// one or because the mutation funded the pool and spawned one.
type BasketResult struct {
	Basket     *models.Basket `json:"basket"`
	Pool       *models.Pool   `json:"pool,omitempty"`
	ChatroomID string         `json:"chatroom_id,omitempty"`
}

func (s *BasketService) validateCreate(in CreateBasketInput) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.OrderLink == "" && strings.TrimSpace(in.Note) == "" {
		return fmt.Errorf("%w: an order link or a note is required", ErrValidation)
	}
	return nil
}

// Create validates the input, resolves (or creates) the target pool, inserts
// the basket and adjusts the pool total. When the adjusted pool reaches its
// threshold the chatroom spawns synchronously in the same transaction. When
// the current cycle already converted and its chatroom is still open, the
// basket routes straight into that chatroom instead of opening a new pool.
// The conversion check runs again after the locked pool lookup: a create
// that waited on a concurrent spawn's row lock must not miss the chatroom
// that spawn just committed.
func (s *BasketService) Create(in CreateBasketInput) (*BasketResult, error) {
	if err := s.validateCreate(in); err != nil {
		return nil, err
	}

	var result BasketResult
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		result = BasketResult{}
		events = eventLog{}

		owner, err := st.GetUserByID(in.OwnerID)
		if err != nil {
			return err
		}
		if owner == nil {
			return fmt.Errorf("%w: user %s", ErrNotFound, in.OwnerID)
		}
		shop, err := st.GetShopByID(in.ShopID)
		if err != nil {
			return err
		}
		if shop == nil {
			return fmt.Errorf("%w: shop %s", ErrNotFound, in.ShopID)
		}

		existing, err := st.FindActiveBasket(in.OwnerID, in.ShopID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: you already have an active basket for this shop", ErrValidation)
		}

		basket := &models.Basket{
			OwnerID:   in.OwnerID,
			ShopID:    in.ShopID,
			Location:  in.Location,
			Amount:    in.Amount,
			OrderLink: in.OrderLink,
			Note:      in.Note,
			Status:    models.BasketInPool,
		}

		room, err := s.liveChatroom(st, in.ShopID, in.Location)
		if err != nil {
			return err
		}

		var pool *models.Pool
		if room == nil {
			pool, err = st.FindOpenPool(in.ShopID, in.Location)
			if err != nil {
				return err
			}
			if pool == nil {
				// The locked read can come back empty because a concurrent
				// spawn converted the pool after the snapshot read above.
				// Check for the cycle's chatroom again before opening a new
				// pool, otherwise this basket would start a duplicate cycle.
				room, err = s.liveChatroom(st, in.ShopID, in.Location)
				if err != nil {
					return err
				}
			}
		}

		if room != nil {
			// Late basket: the cycle already converted, join its chatroom.
			basket.Status = models.BasketInChat
			basket.ChatroomID = &room.ID
			if err := st.CreateBasket(basket); err != nil {
				return err
			}
			if err := joinChatroom(st, room, in.OwnerID, &events); err != nil {
				return err
			}
			events.add(models.NewChangeEvent(models.EventInsert, "baskets",
				models.ChatroomTopic(room.ID), basket.ID, basket))
			result.Basket = basket
			result.ChatroomID = room.ID
			return nil
		}

		if pool == nil {
			pool = &models.Pool{
				ShopID:    shop.ID,
				Location:  in.Location,
				MinAmount: shop.MinAmount,
			}
			if err := st.CreatePool(pool); err != nil {
				return err
			}
		}
		basket.PoolID = &pool.ID
		if err := st.CreateBasket(basket); err != nil {
			return err
		}
		pool, err = st.AdjustPoolAmount(pool.ID, basket.Amount)
		if err != nil {
			return err
		}
		events.add(models.NewChangeEvent(models.EventInsert, "baskets",
			models.PoolTopic(pool.ID), basket.ID, basket))
		events.add(models.NewChangeEvent(models.EventUpdate, "pools",
			models.PoolTopic(pool.ID), pool.ID, pool))
		result.Basket = basket
		result.Pool = pool

		if pool.Funded() {
			room, err := spawnFromPool(st, pool, &events)
			if err != nil {
				return err
			}
			if room != nil {
				result.ChatroomID = room.ID
				migrated, err := st.GetBasketByID(basket.ID)
				if err != nil {
					return err
				}
				if migrated != nil {
					result.Basket = migrated
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.publish(s.Store)
	return &result, nil
}

// Update edits an in_pool basket. An amount change adjusts the pool by the
// delta; an increase that funds the pool spawns the chatroom right here.
func (s *BasketService) Update(basketID, ownerID string, in UpdateBasketInput) (*BasketResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var result BasketResult
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		result = BasketResult{}
		events = eventLog{}

		basket, err := s.ownedBasket(st, basketID, ownerID)
		if err != nil {
			return err
		}
		if basket.Status != models.BasketInPool {
			return fmt.Errorf("%w: basket is %s, only in_pool baskets can be edited", ErrInvalidState, basket.Status)
		}

		delta := int64(0)
		if in.Amount != nil {
			delta = *in.Amount - basket.Amount
			basket.Amount = *in.Amount
		}
		if in.OrderLink != nil {
			basket.OrderLink = *in.OrderLink
		}
		if in.Note != nil {
			basket.Note = *in.Note
		}
		if basket.OrderLink == "" && strings.TrimSpace(basket.Note) == "" {
			return fmt.Errorf("%w: an order link or a note is required", ErrValidation)
		}

		if err := st.SaveBasket(basket); err != nil {
			return err
		}
		result.Basket = basket

		if basket.PoolID == nil {
			return nil
		}
		poolID := *basket.PoolID
		events.add(models.NewChangeEvent(models.EventUpdate, "baskets",
			models.PoolTopic(poolID), basket.ID, basket))
		if delta == 0 {
			return nil
		}
		pool, err := st.AdjustPoolAmount(poolID, delta)
		if err != nil {
			return err
		}
		events.add(models.NewChangeEvent(models.EventUpdate, "pools",
			models.PoolTopic(pool.ID), pool.ID, pool))
		result.Pool = pool

		if delta > 0 && pool.Funded() {
			room, err := spawnFromPool(st, pool, &events)
			if err != nil {
				return err
			}
			if room != nil {
				result.ChatroomID = room.ID
				migrated, err := st.GetBasketByID(basket.ID)
				if err != nil {
					return err
				}
				if migrated != nil {
					result.Basket = migrated
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.publish(s.Store)
	return &result, nil
}

// Delete removes an in_pool basket and gives its amount back to the pool.
func (s *BasketService) Delete(basketID, ownerID string) error {
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		events = eventLog{}

		basket, err := s.ownedBasket(st, basketID, ownerID)
		if err != nil {
			return err
		}
		if basket.Status != models.BasketInPool {
			return fmt.Errorf("%w: basket is %s, only in_pool baskets can be deleted", ErrInvalidState, basket.Status)
		}
		if err := st.DeleteBasket(basket.ID); err != nil {
			return err
		}
		if basket.PoolID != nil {
			pool, err := st.AdjustPoolAmount(*basket.PoolID, -basket.Amount)
			if err != nil {
				return err
			}
			events.add(models.NewChangeEvent(models.EventDelete, "baskets",
				models.PoolTopic(pool.ID), basket.ID, nil))
			events.add(models.NewChangeEvent(models.EventUpdate, "pools",
				models.PoolTopic(pool.ID), pool.ID, pool))
		}
		return nil
	})
	if err != nil {
		return err
	}
	events.publish(s.Store)
	return nil
}

// ToggleReady flips the readiness flag. Readiness is a signal to the other
// pool members that the owner considers the order final; it never feeds the
// funding arithmetic.
func (s *BasketService) ToggleReady(basketID, ownerID string) (*models.Basket, error) {
	var basket *models.Basket
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		events = eventLog{}

		b, err := s.ownedBasket(st, basketID, ownerID)
		if err != nil {
			return err
		}
		if b.Status != models.BasketInPool {
			return fmt.Errorf("%w: basket is %s, readiness only applies in the pool", ErrInvalidState, b.Status)
		}
		b.IsReady = !b.IsReady
		if err := st.SaveBasket(b); err != nil {
			return err
		}
		if b.PoolID != nil {
			events.add(models.NewChangeEvent(models.EventUpdate, "baskets",
				models.PoolTopic(*b.PoolID), b.ID, b))
		}
		basket = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.publish(s.Store)
	return basket, nil
}

// Get returns a basket by id.
func (s *BasketService) Get(basketID string) (*models.Basket, error) {
	basket, err := s.Store.GetBasketByID(basketID)
	if err != nil {
		return nil, err
	}
	if basket == nil {
		return nil, fmt.Errorf("%w: basket %s", ErrNotFound, basketID)
	}
	return basket, nil
}

// ListMine returns all of the owner's baskets, newest first.
func (s *BasketService) ListMine(ownerID string) ([]models.Basket, error) {
	return s.Store.GetOwnerBaskets(ownerID)
}

// ownedBasket loads the basket under a row lock for mutation. The lock keeps
// a concurrent pool conversion from migrating the basket between this read
// and the caller's save.
func (s *BasketService) ownedBasket(st storage.Storage, basketID, ownerID string) (*models.Basket, error) {
	basket, err := st.GetBasketForUpdate(basketID)
	if err != nil {
		return nil, err
	}
	if basket == nil {
		return nil, fmt.Errorf("%w: basket %s", ErrNotFound, basketID)
	}
	if basket.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: basket belongs to another user", ErrForbidden)
	}
	return basket, nil
}

// liveChatroom returns the open chatroom of the latest converted cycle for
// (shop, location), or nil when a fresh pool should take the basket.
func (s *BasketService) liveChatroom(st storage.Storage, shopID, location string) (*models.Chatroom, error) {
	latest, err := st.FindLatestPool(shopID, location)
	if err != nil {
		return nil, err
	}
	if latest == nil || !latest.Converted {
		return nil, nil
	}
	room, err := st.GetChatroomByPool(latest.ID)
	if err != nil {
		return nil, err
	}
	if room == nil || room.State.Terminal() {
		return nil, nil
	}
	return room, nil
}

// joinChatroom makes the user an active member, tolerating an existing
// membership, and promotes a waiting room once enough members are present.
func joinChatroom(st storage.Storage, room *models.Chatroom, userID string, events *eventLog) error {
	member, err := st.GetActiveMembership(room.ID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		member = &models.ChatMembership{ChatroomID: room.ID, UserID: userID}
		if err := st.CreateMembership(member); err != nil {
			return err
		}
		events.add(models.NewChangeEvent(models.EventInsert, "chat_memberships",
			models.MembershipTopic(room.ID), userID, member))
	}
	count, err := st.CountActiveMembers(room.ID)
	if err != nil {
		return err
	}
	if room.State == models.ChatroomWaiting && count >= config.ActiveMemberThreshold {
		room.State = models.ChatroomActive
		if err := st.SaveChatroom(room); err != nil {
			return err
		}
		events.add(models.NewChangeEvent(models.EventUpdate, "chatrooms",
			models.ChatroomTopic(room.ID), room.ID, room))
	}
	return nil
}
