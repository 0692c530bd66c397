package lifecycle

import (
	"time"

	"dormpool/backend/internal/config"
	"dormpool/backend/internal/models"
	"dormpool/backend/internal/storage"
)

// spawnFromPool converts a funded pool into a chatroom. It must run inside
// the same transaction as the amount mutation that crossed the threshold:
// either every basket migrates and the chatroom exists, or nothing happened.
//
// The converted-flag check-and-set decides spawn races: the loser does not
// fail, it returns the winner's chatroom so the caller's basket still ends
// up in it.
func spawnFromPool(st storage.Storage, pool *models.Pool, events *eventLog) (*models.Chatroom, error) {
	won, err := st.MarkPoolConverted(pool.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		return st.GetChatroomByPool(pool.ID)
	}

	baskets, err := st.GetPoolBaskets(pool.ID)
	if err != nil {
		return nil, err
	}

	// Earliest basket's owner becomes admin. Deterministic, so reprocessing
	// the same pool always elects the same member.
	admin := ""
	if len(baskets) > 0 {
		admin = baskets[0].OwnerID
	}

	room := &models.Chatroom{
		PoolID:         pool.ID,
		ShopID:         pool.ShopID,
		Location:       pool.Location,
		State:          models.ChatroomWaiting,
		AdminID:        admin,
		AmountSnapshot: pool.CurrentAmount,
		ExpireAt:       time.Now().Add(config.ChatroomWaitWindow),
	}
	if err := st.CreateChatroom(room); err != nil {
		return nil, err
	}

	if err := st.MigratePoolBaskets(pool.ID, room.ID); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, b := range baskets {
		if seen[b.OwnerID] {
			continue
		}
		seen[b.OwnerID] = true
		member := &models.ChatMembership{
			ChatroomID: room.ID,
			UserID:     b.OwnerID,
			JoinedAt:   time.Now(),
		}
		if err := st.CreateMembership(member); err != nil {
			return nil, err
		}
		events.add(models.NewChangeEvent(models.EventInsert, "chat_memberships",
			models.MembershipTopic(room.ID), b.OwnerID, member))
	}

	if len(seen) >= config.ActiveMemberThreshold {
		room.State = models.ChatroomActive
	}
	if err := st.SaveChatroom(room); err != nil {
		return nil, err
	}

	events.add(models.NewChangeEvent(models.EventInsert, "chatrooms",
		models.ChatroomTopic(room.ID), room.ID, room))
	// Pool watchers learn about the conversion from the pool topic: the pool
	// update plus each migrated basket flipping to in_chat is their cue to
	// redirect into the chatroom.
	pool.Converted = true
	events.add(models.NewChangeEvent(models.EventUpdate, "pools",
		models.PoolTopic(pool.ID), pool.ID, pool))
	migrated, err := st.GetChatroomBaskets(room.ID)
	if err != nil {
		return nil, err
	}
	for i := range migrated {
		events.add(models.NewChangeEvent(models.EventUpdate, "baskets",
			models.PoolTopic(pool.ID), migrated[i].ID, &migrated[i]))
	}
	return room, nil
}
