package config

import "time"

const (
	// Chatroom deadlines
	ChatroomWaitWindow = 24 * time.Hour
	DeadlineExtension  = 2 * time.Hour
	// One extension per phase: once before the order is placed, once while
	// waiting for delivery confirmation.
	ExtensionsPerPhase = 1

	// Membership
	ActiveMemberThreshold = 2

	// Messages
	MaxMessageLength = 2000

	// Attachments
	SignedURLTTL        = 5 * time.Minute
	AttachmentKeyPrefix = "attachments/"
)
