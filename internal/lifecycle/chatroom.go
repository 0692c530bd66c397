package lifecycle

import (
	"fmt"
	"time"

	"dormpool/backend/internal/config"
	"dormpool/backend/internal/models"
	"dormpool/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

// ChatroomService governs the chatroom lifecycle: order/delivery
// progression, admin authority, deadline extension and membership changes.
// Every admin-gated action re-reads the chatroom row under a lock inside its
// own transaction, so a stale admin whose role was handed over concurrently
// is rejected rather than applied.
type ChatroomService struct {
	Store storage.Storage
}

func NewChatroomService(st storage.Storage) *ChatroomService {
	return &ChatroomService{Store: st}
}

// ChatroomDetail is the full chatroom aggregate for the query surface.
type ChatroomDetail struct {
	Chatroom models.Chatroom         `json:"chatroom"`
	Members  []models.ChatMembership `json:"members"`
	Baskets  []models.Basket         `json:"baskets"`
}

func (s *ChatroomService) Get(chatroomID string) (*ChatroomDetail, error) {
	room, err := s.Store.GetChatroomByID(chatroomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, fmt.Errorf("%w: chatroom %s", ErrNotFound, chatroomID)
	}
	members, err := s.Store.GetActiveMemberships(chatroomID)
	if err != nil {
		return nil, err
	}
	baskets, err := s.Store.GetChatroomBaskets(chatroomID)
	if err != nil {
		return nil, err
	}
	return &ChatroomDetail{Chatroom: *room, Members: members, Baskets: baskets}, nil
}

// MarkOrdered records that the admin placed the consolidated order.
func (s *ChatroomService) MarkOrdered(chatroomID, userID string) error {
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		events = eventLog{}
		room, err := adminRoom(st, chatroomID, userID)
		if err != nil {
			return err
		}
		if err := checkTransition(room.State, models.ChatroomOrdered); err != nil {
			return err
		}
		now := time.Now()
		room.State = models.ChatroomOrdered
		room.OrderedAt = &now
		if err := st.SaveChatroom(room); err != nil {
			return err
		}
		events.add(models.NewChangeEvent(models.EventUpdate, "chatrooms",
			models.ChatroomTopic(room.ID), room.ID, room))
		return nil
	})
	if err != nil {
		return err
	}
	events.publish(s.Store)
	return nil
}

// MarkDelivered confirms delivery: the chatroom resolves terminally and
// every basket referencing it cascades to resolved in the same transaction.
func (s *ChatroomService) MarkDelivered(chatroomID, userID string) error {
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		events = eventLog{}
		room, err := adminRoom(st, chatroomID, userID)
		if err != nil {
			return err
		}
		if err := checkTransition(room.State, models.ChatroomResolved); err != nil {
			return err
		}
		now := time.Now()
		room.State = models.ChatroomResolved
		room.ResolvedAt = &now
		if err := st.SaveChatroom(room); err != nil {
			return err
		}
		if err := st.ResolveChatroomBaskets(room.ID); err != nil {
			return err
		}
		events.add(models.NewChangeEvent(models.EventUpdate, "chatrooms",
			models.ChatroomTopic(room.ID), room.ID, room))
		baskets, err := st.GetChatroomBaskets(room.ID)
		if err != nil {
			return err
		}
		for i := range baskets {
			events.add(models.NewChangeEvent(models.EventUpdate, "baskets",
				models.ChatroomTopic(room.ID), baskets[i].ID, &baskets[i]))
		}
		logrus.WithField("chatroom", room.ID).Info("chatroom resolved, baskets cascaded")
		return nil
	})
	if err != nil {
		return err
	}
	events.publish(s.Store)
	return nil
}

// Leave closes the caller's membership. A departing admin hands the role to
// the earliest-joined remaining member; when nobody remains the room stays
// adminless until an operator reassigns it.
func (s *ChatroomService) Leave(chatroomID, userID string) error {
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		events = eventLog{}
		room, err := lockedRoom(st, chatroomID)
		if err != nil {
			return err
		}
		closed, err := st.CloseMembership(room.ID, userID)
		if err != nil {
			return err
		}
		if !closed {
			return fmt.Errorf("%w: not an active member of this chatroom", ErrInvalidState)
		}
		events.add(models.NewChangeEvent(models.EventUpdate, "chat_memberships",
			models.MembershipTopic(room.ID), userID, nil))

		if room.AdminID == userID {
			members, err := st.GetActiveMemberships(room.ID)
			if err != nil {
				return err
			}
			room.AdminID = NextAdmin(members, userID)
			if err := st.SaveChatroom(room); err != nil {
				return err
			}
			if room.AdminID == "" {
				logrus.WithField("chatroom", room.ID).Warn("chatroom left adminless")
			}
			events.add(models.NewChangeEvent(models.EventUpdate, "chatrooms",
				models.ChatroomTopic(room.ID), room.ID, room))
		}
		return nil
	})
	if err != nil {
		return err
	}
	events.publish(s.Store)
	return nil
}

// MakeAdmin hands admin authority to another active member.
func (s *ChatroomService) MakeAdmin(chatroomID, actingID, targetID string) error {
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		events = eventLog{}
		room, err := adminRoom(st, chatroomID, actingID)
		if err != nil {
			return err
		}
		member, err := st.GetActiveMembership(room.ID, targetID)
		if err != nil {
			return err
		}
		if member == nil {
			return fmt.Errorf("%w: target is not an active member", ErrInvalidState)
		}
		room.AdminID = targetID
		if err := st.SaveChatroom(room); err != nil {
			return err
		}
		events.add(models.NewChangeEvent(models.EventUpdate, "chatrooms",
			models.ChatroomTopic(room.ID), room.ID, room))
		return nil
	})
	if err != nil {
		return err
	}
	events.publish(s.Store)
	return nil
}

// RemoveMember is the admin kicking a member. The admin cannot remove
// themself; that path is Leave, which also handles the succession.
func (s *ChatroomService) RemoveMember(chatroomID, actingID, targetID string) error {
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		events = eventLog{}
		room, err := adminRoom(st, chatroomID, actingID)
		if err != nil {
			return err
		}
		if targetID == room.AdminID {
			return fmt.Errorf("%w: the admin cannot be removed, leave instead", ErrInvalidState)
		}
		closed, err := st.CloseMembership(room.ID, targetID)
		if err != nil {
			return err
		}
		if !closed {
			return fmt.Errorf("%w: target is not an active member", ErrInvalidState)
		}
		events.add(models.NewChangeEvent(models.EventUpdate, "chat_memberships",
			models.MembershipTopic(room.ID), targetID, nil))
		return nil
	})
	if err != nil {
		return err
	}
	events.publish(s.Store)
	return nil
}

// ExtendDeadline pushes expire_at out by the configured increment, at most
// once per phase. The expiry only ever grows.
func (s *ChatroomService) ExtendDeadline(chatroomID, userID string) error {
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		events = eventLog{}
		room, err := adminRoom(st, chatroomID, userID)
		if err != nil {
			return err
		}
		if err := CheckExtend(room); err != nil {
			return err
		}
		used, err := ExtensionBudget(room)
		if err != nil {
			return err
		}
		*used++
		room.ExpireAt = room.ExpireAt.Add(config.DeadlineExtension)
		if err := st.SaveChatroom(room); err != nil {
			return err
		}
		events.add(models.NewChangeEvent(models.EventUpdate, "chatrooms",
			models.ChatroomTopic(room.ID), room.ID, room))
		return nil
	})
	if err != nil {
		return err
	}
	events.publish(s.Store)
	return nil
}

// AssignAdmin is the operator path for an adminless room: no acting-admin
// check, only membership and liveness. Exposed through the admin CLI.
func (s *ChatroomService) AssignAdmin(chatroomID, targetID string) error {
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		events = eventLog{}
		room, err := lockedRoom(st, chatroomID)
		if err != nil {
			return err
		}
		member, err := st.GetActiveMembership(room.ID, targetID)
		if err != nil {
			return err
		}
		if member == nil {
			return fmt.Errorf("%w: target is not an active member", ErrInvalidState)
		}
		room.AdminID = targetID
		if err := st.SaveChatroom(room); err != nil {
			return err
		}
		events.add(models.NewChangeEvent(models.EventUpdate, "chatrooms",
			models.ChatroomTopic(room.ID), room.ID, room))
		return nil
	})
	if err != nil {
		return err
	}
	events.publish(s.Store)
	return nil
}

// lockedRoom loads the chatroom under a row lock and rejects terminal rooms.
func lockedRoom(st storage.Storage, chatroomID string) (*models.Chatroom, error) {
	room, err := st.GetChatroomForUpdate(chatroomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, fmt.Errorf("%w: chatroom %s", ErrNotFound, chatroomID)
	}
	if room.State.Terminal() {
		return nil, fmt.Errorf("%w: chatroom is %s", ErrInvalidState, room.State)
	}
	return room, nil
}

// adminRoom is lockedRoom plus the admin re-check that makes gated actions
// safe against concurrent reassignment.
func adminRoom(st storage.Storage, chatroomID, userID string) (*models.Chatroom, error) {
	room, err := lockedRoom(st, chatroomID)
	if err != nil {
		return nil, err
	}
	if room.AdminID == "" || room.AdminID != userID {
		return nil, fmt.Errorf("%w: only the chatroom admin may do this", ErrForbidden)
	}
	return room, nil
}
