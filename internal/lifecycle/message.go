package lifecycle

import (
	"fmt"
	"strings"

	"dormpool/backend/internal/config"
	"dormpool/backend/internal/models"
	"dormpool/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

// URLSigner resolves an opaque attachment key to a time-limited read URL.
// Implemented by the object store; nil disables attachment resolution.
type URLSigner interface {
	ReadURL(key string) (string, error)
}

// MessageService appends and reads chatroom messages. Messages are
// append-only; the single permitted mutation is setting the read timestamp.
type MessageService struct {
	Store  storage.Storage
	Signer URLSigner
}

func NewMessageService(st storage.Storage, signer URLSigner) *MessageService {
	return &MessageService{Store: st, Signer: signer}
}

// MessageView is a message with its attachment key resolved to a signed URL.
type MessageView struct {
	models.Message
	AttachmentURL string `json:"attachment_url,omitempty"`
}

// Send appends a message. Only active members may post, and a terminal
// chatroom is archival: readable, never written to again.
func (s *MessageService) Send(chatroomID, senderID string, mtype models.MessageType, content string) (*models.Message, error) {
	switch mtype {
	case "":
		mtype = models.MessageText
	case models.MessageText, models.MessageImage, models.MessageAudio:
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrValidation, mtype)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrValidation)
	}
	if mtype == models.MessageText && len(content) > config.MaxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, config.MaxMessageLength)
	}

	var msg *models.Message
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		events = eventLog{}
		room, err := st.GetChatroomByID(chatroomID)
		if err != nil {
			return err
		}
		if room == nil {
			return fmt.Errorf("%w: chatroom %s", ErrNotFound, chatroomID)
		}
		if room.State.Terminal() {
			return fmt.Errorf("%w: chatroom is %s", ErrInvalidState, room.State)
		}
		member, err := st.GetActiveMembership(chatroomID, senderID)
		if err != nil {
			return err
		}
		if member == nil {
			return fmt.Errorf("%w: only active members may post", ErrForbidden)
		}
		msg = &models.Message{
			ChatroomID: chatroomID,
			SenderID:   senderID,
			Content:    content,
			Type:       mtype,
		}
		if err := st.CreateMessage(msg); err != nil {
			return err
		}
		events.add(models.NewChangeEvent(models.EventInsert, "messages",
			models.MessageTopic(chatroomID), fmt.Sprint(msg.ID), msg))
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.publish(s.Store)
	return msg, nil
}

// List returns the chatroom's messages in sent order. Attachment keys are
// resolved to signed URLs on the way out; resolution failures degrade to a
// bare key rather than failing the read.
func (s *MessageService) List(chatroomID string) ([]MessageView, error) {
	room, err := s.Store.GetChatroomByID(chatroomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, fmt.Errorf("%w: chatroom %s", ErrNotFound, chatroomID)
	}
	msgs, err := s.Store.GetChatroomMessages(chatroomID)
	if err != nil {
		return nil, err
	}
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := MessageView{Message: m}
		if s.Signer != nil && (m.Type == models.MessageImage || m.Type == models.MessageAudio) {
			url, err := s.Signer.ReadURL(m.Content)
			if err != nil {
				logrus.WithError(err).WithField("key", m.Content).Warn("failed to sign attachment URL")
			} else {
				view.AttachmentURL = url
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// MarkRead sets the read timestamp once; marking an already-read message is
// a no-op.
func (s *MessageService) MarkRead(messageID uint, userID string) error {
	var events eventLog
	err := s.Store.Atomic(func(st storage.Storage) error {
		events = eventLog{}
		msg, err := st.GetMessageByID(messageID)
		if err != nil {
			return err
		}
		if msg == nil {
			return fmt.Errorf("%w: message %d", ErrNotFound, messageID)
		}
		member, err := st.GetActiveMembership(msg.ChatroomID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return fmt.Errorf("%w: only active members may mark messages read", ErrForbidden)
		}
		updated, err := st.MarkMessageRead(messageID)
		if err != nil {
			return err
		}
		if updated {
			events.add(models.NewChangeEvent(models.EventUpdate, "messages",
				models.MessageTopic(msg.ChatroomID), fmt.Sprint(msg.ID), nil))
		}
		return nil
	})
	if err != nil {
		return err
	}
	events.publish(s.Store)
	return nil
}
