package lifecycle

import (
	"fmt"

	"dormpool/backend/internal/config"
	"dormpool/backend/internal/models"
)

// Pure chatroom state-machine rules. Nothing here touches storage, so the
// legality of every transition can be tested without a live database.

// legalTransitions maps each state to the states an admin action may move
// the room into. waiting -> active is not listed: it is not an admin action,
// it happens when active membership reaches the threshold.
var legalTransitions = map[models.ChatroomState][]models.ChatroomState{
	models.ChatroomWaiting: {models.ChatroomOrdered},
	models.ChatroomActive:  {models.ChatroomOrdered},
	models.ChatroomOrdered: {models.ChatroomResolved},
}

// CanTransition reports whether an admin action may move a room from one
// state to another.
func CanTransition(from, to models.ChatroomState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns the error a service operation surfaces for an
// out-of-order call, e.g. markDelivered before markOrdered.
func checkTransition(from, to models.ChatroomState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: cannot move chatroom from %q to %q", ErrInvalidState, from, to)
	}
	return nil
}

// ExtensionBudget returns a pointer to the extension counter for the room's
// current phase, or an error when the phase allows no extension at all.
// The pre-order phase (waiting/active) and the ordered phase each allow
// config.ExtensionsPerPhase extensions.
func ExtensionBudget(room *models.Chatroom) (*int, error) {
	switch room.State {
	case models.ChatroomWaiting, models.ChatroomActive:
		return &room.WaitExtensions, nil
	case models.ChatroomOrdered:
		return &room.OrderExtensions, nil
	default:
		return nil, fmt.Errorf("%w: chatroom is %s, deadline can no longer be extended", ErrInvalidState, room.State)
	}
}

// CheckExtend verifies the room may extend its deadline in its current phase.
func CheckExtend(room *models.Chatroom) error {
	used, err := ExtensionBudget(room)
	if err != nil {
		return err
	}
	if *used >= config.ExtensionsPerPhase {
		return fmt.Errorf("%w: deadline already extended in this phase", ErrInvalidState)
	}
	return nil
}

// NextAdmin picks the replacement admin when the current one leaves:
// the earliest-joined remaining active member. Empty when nobody is left.
func NextAdmin(members []models.ChatMembership, leavingUserID string) string {
	var next *models.ChatMembership
	for i := range members {
		m := &members[i]
		if !m.ActiveMember() || m.UserID == leavingUserID {
			continue
		}
		if next == nil || m.JoinedAt.Before(next.JoinedAt) {
			next = m
		}
	}
	if next == nil {
		return ""
	}
	return next.UserID
}
