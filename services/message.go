package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"listing-chat/apperrors"
	"listing-chat/crypto"
	"listing-chat/models"
	"listing-chat/workers"
)

// UndecryptablePlaceholder replaces the content of a message whose stored
// ciphertext, nonce or channel key fails verification.
const UndecryptablePlaceholder = "[message could not be decrypted]"

// DefaultMaxMessageLength is the content cap in characters.
const DefaultMaxMessageLength = 2000

// Decrypter decrypts a batch of records; results may arrive in any order.
type Decrypter interface {
	DecryptAll(ctx context.Context, records []workers.Record, key crypto.Key) ([]workers.Result, error)
}

// Publisher receives an event for every stored message.
type Publisher interface {
	Publish(event Event)
}

// DecryptedMessage is a history entry as returned to a participant.
type DecryptedMessage struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      time.Time
	ReadAt         *time.Time
	Undecryptable  bool
}

type MessageService struct {
	db        *gorm.DB
	directory *ConversationDirectory
	keys      *crypto.KeyManager
	decrypter Decrypter
	publisher Publisher
	maxLength int
	log       zerolog.Logger
	now       func() time.Time
}

func NewMessageService(
	db *gorm.DB,
	directory *ConversationDirectory,
	keys *crypto.KeyManager,
	decrypter Decrypter,
	publisher Publisher,
	maxLength int,
	log zerolog.Logger,
) *MessageService {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	return &MessageService{
		db:        db,
		directory: directory,
		keys:      keys,
		decrypter: decrypter,
		publisher: publisher,
		maxLength: maxLength,
		log:       log.With().Str("component", "message_service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Send encrypts plaintext under the conversation's channel key and stores it.
func (s *MessageService) Send(ctx context.Context, conversationID, senderID, plaintext string) (*models.Message, error) {
	conv, err := s.directory.GetForParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if err := s.validateContent(plaintext); err != nil {
		return nil, err
	}

	key, err := s.keys.ImportKey(conv.ChannelKey)
	if err != nil {
		s.log.Error().Err(err).Str("conversation_id", conv.ID).Msg("stored channel key is corrupt")
		return nil, apperrors.Internal("load channel key", err)
	}
	defer key.Destroy()

	ciphertext, nonce, err := crypto.Encrypt(plaintext, key)
	if err != nil {
		return nil, apperrors.Internal("encrypt message", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Internal("generate message id", err)
	}
	msg := &models.Message{
		ID:             id.String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Ciphertext:     ciphertext,
		Nonce:          nonce,
		CreatedAt:      s.now(),
	}
	// The foreign key on conversation_id rejects the insert if the
	// conversation was deleted after the lookup above.
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) || !s.conversationExists(ctx, conv.ID) {
			return nil, apperrors.ErrConversationNotFound
		}
		return nil, apperrors.Internal("store message", errors.Wrap(err, "messageService.Send.Insert"))
	}

	if s.publisher != nil {
		s.publisher.Publish(Event{
			Type:           EventMessageCreated,
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			SenderID:       senderID,
			CreatedAt:      msg.CreatedAt,
		})
	}
	return msg, nil
}

// FetchHistory returns the conversation's messages oldest first. A message
// that fails to decrypt is returned with UndecryptablePlaceholder instead of
// failing the whole call.
func (s *MessageService) FetchHistory(ctx context.Context, conversationID, requesterID string) ([]DecryptedMessage, error) {
	conv, err := s.directory.GetForParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}

	var rows []models.Message
	err = s.db.WithContext(ctx).
		Where("conversation_id = ?", conv.ID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Internal("load messages", errors.Wrap(err, "messageService.FetchHistory.Find"))
	}

	out := make([]DecryptedMessage, len(rows))
	for i, row := range rows {
		out[i] = DecryptedMessage{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			SenderID:       row.SenderID,
			CreatedAt:      row.CreatedAt,
			ReadAt:         row.ReadAt,
		}
	}
	if len(rows) == 0 {
		return out, nil
	}

	key, err := s.keys.ImportKey(conv.ChannelKey)
	if err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("stored channel key is corrupt, history undecryptable")
		for i := range out {
			markUndecryptable(&out[i])
		}
		return out, nil
	}
	defer key.Destroy()

	records := make([]workers.Record, len(rows))
	for i, row := range rows {
		records[i] = workers.Record{Index: i, Ciphertext: row.Ciphertext, Nonce: row.Nonce}
	}
	results, err := s.decrypter.DecryptAll(ctx, records, key)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.log.Debug().Err(err).Str("conversation_id", conv.ID).Msg("history request abandoned")
			return nil, apperrors.Wrap(apperrors.CodeCanceled, "request canceled", err)
		}
		return nil, apperrors.Internal("decrypt history", errors.Wrap(err, "messageService.FetchHistory.DecryptAll"))
	}

	filled := make([]bool, len(out))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(out) || filled[r.Index] {
			continue
		}
		filled[r.Index] = true
		if r.Err != nil {
			s.log.Warn().
				Err(r.Err).
				Str("conversation_id", conv.ID).
				Str("message_id", out[r.Index].ID).
				Msg("message undecryptable")
			markUndecryptable(&out[r.Index])
			continue
		}
		out[r.Index].Content = r.Plaintext
	}
	for i, ok := range filled {
		if !ok {
			markUndecryptable(&out[i])
		}
	}
	return out, nil
}

// MarkRead stamps read_at on the counterparty's unread messages and returns
// how many were updated.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	conv, err := s.directory.GetForParticipant(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id = ? AND read_at IS NULL", conv.ID, conv.Counterparty(readerID)).
		Update("read_at", s.now())
	if res.Error != nil {
		return 0, apperrors.Internal("mark messages read", errors.Wrap(res.Error, "messageService.MarkRead.Update"))
	}
	return res.RowsAffected, nil
}

func (s *MessageService) conversationExists(ctx context.Context, conversationID string) bool {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", conversationID).Count(&n).Error
	return err != nil || n > 0
}

func (s *MessageService) validateContent(plaintext string) error {
	if !utf8.ValidString(plaintext) {
		return apperrors.Validation("content must be valid UTF-8")
	}
	if strings.TrimSpace(plaintext) == "" {
		return apperrors.Validation("content must not be empty")
	}
	if utf8.RuneCountInString(plaintext) > s.maxLength {
		return apperrors.Validation("content exceeds maximum length")
	}
	return nil
}

func markUndecryptable(m *DecryptedMessage) {
	m.Content = UndecryptablePlaceholder
	m.Undecryptable = true
}
