package synchub

import (
	"encoding/json"

	"dormpool/backend/internal/models"
)

// Fetcher is the read-only slice of the storage layer the view reconciler
// needs to rebuild an aggregate from scratch.
type Fetcher interface {
	GetPoolByID(id string) (*models.Pool, error)
	GetPoolBaskets(poolID string) ([]models.Basket, error)
	GetChatroomByID(id string) (*models.Chatroom, error)
	GetChatroomBaskets(chatroomID string) ([]models.Basket, error)
	GetActiveMemberships(chatroomID string) ([]models.ChatMembership, error)
}

// PoolView is a client-side materialization of one pool and its baskets.
// Incoming change events either patch it in place or mark it stale; a stale
// view answers nothing until Refresh rebuilds it. There is exactly one way
// back to a consistent state, and that is Refresh.
type PoolView struct {
	PoolID string

	Pool    *models.Pool
	Baskets []models.Basket

	// RedirectChatroomID is set when a basket in this pool migrates into a
	// chatroom: the pool converted and the viewer should follow.
	RedirectChatroomID string

	stale bool
}

func NewPoolView(poolID string) *PoolView {
	return &PoolView{PoolID: poolID, stale: true}
}

func (v *PoolView) Stale() bool { return v.stale }

// Apply folds one change event into the view. Events it cannot patch
// precisely mark the view stale instead of guessing.
func (v *PoolView) Apply(ev models.ChangeEvent) {
	if ev.Topic != models.PoolTopic(v.PoolID) {
		return
	}
	if v.stale {
		return
	}

	switch ev.Table {
	case "pools":
		var pool models.Pool
		if err := json.Unmarshal(ev.Payload, &pool); err != nil {
			v.stale = true
			return
		}
		v.Pool = &pool

	case "baskets":
		var basket models.Basket
		if err := json.Unmarshal(ev.Payload, &basket); err != nil {
			v.stale = true
			return
		}
		if basket.Status == models.BasketInChat && basket.ChatroomID != nil {
			v.RedirectChatroomID = *basket.ChatroomID
		}
		v.upsertBasket(ev.Kind, basket)

	default:
		v.stale = true
	}
}

func (v *PoolView) upsertBasket(kind models.EventKind, basket models.Basket) {
	for i := range v.Baskets {
		if v.Baskets[i].ID == basket.ID {
			if kind == models.EventDelete || !basket.Status.Active() || basket.PoolID == nil {
				v.Baskets = append(v.Baskets[:i], v.Baskets[i+1:]...)
			} else {
				v.Baskets[i] = basket
			}
			return
		}
	}
	if kind != models.EventDelete && basket.Status == models.BasketInPool {
		v.Baskets = append(v.Baskets, basket)
	}
}

// Refresh rebuilds the view from the store. If the pool is gone the view
// stays stale; the caller re-fetches on the next event rather than erroring.
func (v *PoolView) Refresh(f Fetcher) error {
	pool, err := f.GetPoolByID(v.PoolID)
	if err != nil {
		return err
	}
	if pool == nil {
		v.stale = true
		return nil
	}
	baskets, err := f.GetPoolBaskets(v.PoolID)
	if err != nil {
		return err
	}
	v.Pool = pool
	v.Baskets = baskets
	v.stale = false
	return nil
}

// ChatroomView is the chatroom counterpart: the room row, its active
// members and its baskets, patched by events on the chatroom's topics.
type ChatroomView struct {
	ChatroomID string

	Chatroom *models.Chatroom
	Members  []models.ChatMembership
	Baskets  []models.Basket

	stale bool
}

func NewChatroomView(chatroomID string) *ChatroomView {
	return &ChatroomView{ChatroomID: chatroomID, stale: true}
}

func (v *ChatroomView) Stale() bool { return v.stale }

func (v *ChatroomView) Apply(ev models.ChangeEvent) {
	if ev.Topic != models.ChatroomTopic(v.ChatroomID) && ev.Topic != models.MembershipTopic(v.ChatroomID) {
		return
	}
	if v.stale {
		return
	}

	switch ev.Table {
	case "chatrooms":
		var room models.Chatroom
		if err := json.Unmarshal(ev.Payload, &room); err != nil {
			v.stale = true
			return
		}
		v.Chatroom = &room

	case "baskets":
		var basket models.Basket
		if err := json.Unmarshal(ev.Payload, &basket); err != nil {
			v.stale = true
			return
		}
		v.upsertBasket(ev.Kind, basket)

	case "chat_memberships":
		// membership events carry no payload, the roster has to be re-read
		v.stale = true

	default:
		v.stale = true
	}
}

func (v *ChatroomView) upsertBasket(kind models.EventKind, basket models.Basket) {
	for i := range v.Baskets {
		if v.Baskets[i].ID == basket.ID {
			if kind == models.EventDelete {
				v.Baskets = append(v.Baskets[:i], v.Baskets[i+1:]...)
			} else {
				v.Baskets[i] = basket
			}
			return
		}
	}
	if kind != models.EventDelete {
		v.Baskets = append(v.Baskets, basket)
	}
}

// Refresh rebuilds the view from the store, same contract as PoolView.
func (v *ChatroomView) Refresh(f Fetcher) error {
	room, err := f.GetChatroomByID(v.ChatroomID)
	if err != nil {
		return err
	}
	if room == nil {
		v.stale = true
		return nil
	}
	members, err := f.GetActiveMemberships(v.ChatroomID)
	if err != nil {
		return err
	}
	baskets, err := f.GetChatroomBaskets(v.ChatroomID)
	if err != nil {
		return err
	}
	v.Chatroom = room
	v.Members = members
	v.Baskets = baskets
	v.stale = false
	return nil
}
