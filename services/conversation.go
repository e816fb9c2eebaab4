package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"listing-chat/apperrors"
	"listing-chat/crypto"
	"listing-chat/models"
)

// ConversationDirectory owns conversation rows: one per (listing, buyer,
// seller) triple, each with its own channel key.
type ConversationDirectory struct {
	db       *gorm.DB
	keys     *crypto.KeyManager
	listings ListingCatalog
	log      zerolog.Logger
	now      func() time.Time
}

func NewConversationDirectory(db *gorm.DB, keys *crypto.KeyManager, listings ListingCatalog, log zerolog.Logger) *ConversationDirectory {
	return &ConversationDirectory{
		db:       db,
		keys:     keys,
		listings: listings,
		log:      log.With().Str("component", "conversation_directory").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate returns the conversation for the triple, creating it with a
// fresh channel key if none exists. Concurrent first calls all receive the
// same row: the insert is a no-op on the unique triple and the loser reads
// the winner's row back.
func (d *ConversationDirectory) GetOrCreate(ctx context.Context, listingID, buyerID, sellerID string) (*models.Conversation, error) {
	if listingID == "" || buyerID == "" || sellerID == "" {
		return nil, apperrors.Validation("listing, buyer and seller are required")
	}
	if buyerID == sellerID {
		return nil, apperrors.ErrInvalidParticipants
	}

	existing, err := d.findByTriple(ctx, listingID, buyerID, sellerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Internal("lookup conversation", errors.Wrap(err, "conversationDirectory.GetOrCreate.Find"))
	}

	key, err := d.keys.GenerateKey()
	if err != nil {
		d.log.Error().Err(err).Msg("channel key generation failed")
		return nil, apperrors.Internal("generate channel key", err)
	}
	defer key.Destroy()

	exported, err := d.keys.ExportKey(key)
	if err != nil {
		return nil, apperrors.Internal("export channel key", err)
	}

	conv := &models.Conversation{
		ID:         uuid.NewString(),
		ListingID:  listingID,
		BuyerID:    buyerID,
		SellerID:   sellerID,
		ChannelKey: exported,
		CreatedAt:  d.now(),
	}
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "listing_id"}, {Name: "buyer_id"}, {Name: "seller_id"}},
			DoNothing: true,
		}).
		Create(conv)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return nil, apperrors.Internal("create conversation", errors.Wrap(res.Error, "conversationDirectory.GetOrCreate.Insert"))
	}
	if res.Error == nil && res.RowsAffected == 1 {
		d.log.Info().
			Str("conversation_id", conv.ID).
			Str("listing_id", listingID).
			Msg("conversation created")
		return conv, nil
	}

	// Another caller inserted the triple between our lookup and insert.
	winner, err := d.findByTriple(ctx, listingID, buyerID, sellerID)
	if err != nil {
		return nil, apperrors.Internal("reload conversation", errors.Wrap(err, "conversationDirectory.GetOrCreate.Refetch"))
	}
	d.log.Debug().Str("conversation_id", winner.ID).Msg("conversation creation race resolved")
	return winner, nil
}

// Authorize reports whether userID may read and write conv.
func (d *ConversationDirectory) Authorize(conv *models.Conversation, userID string) bool {
	return conv != nil && conv.HasParticipant(userID)
}

// OpenChannel is GetOrCreate for an HTTP caller who only names the listing
// and the other party. Roles come from the listing's seller.
func (d *ConversationDirectory) OpenChannel(ctx context.Context, listingID, callerID, counterpartyID string) (*models.Conversation, error) {
	if callerID == "" {
		return nil, apperrors.ErrAuthenticationRequired
	}
	if listingID == "" || counterpartyID == "" {
		return nil, apperrors.Validation("listingId and counterpartyId are required")
	}
	if callerID == counterpartyID {
		return nil, apperrors.ErrInvalidParticipants
	}

	sellerID, err := d.listings.SellerOf(ctx, listingID)
	if err != nil {
		return nil, err
	}
	switch sellerID {
	case callerID:
		return d.GetOrCreate(ctx, listingID, counterpartyID, callerID)
	case counterpartyID:
		return d.GetOrCreate(ctx, listingID, callerID, counterpartyID)
	default:
		return nil, apperrors.Validation("neither party sells this listing")
	}
}

// Get loads a conversation by id.
func (d *ConversationDirectory) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, apperrors.Validation("invalid conversation id")
	}
	var conv models.Conversation
	err := d.db.WithContext(ctx).Where("id = ?", conversationID).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrConversationNotFound
		}
		return nil, apperrors.Internal("load conversation", errors.Wrap(err, "conversationDirectory.Get.First"))
	}
	return &conv, nil
}

// GetForParticipant loads a conversation and checks that userID belongs to it.
func (d *ConversationDirectory) GetForParticipant(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthenticationRequired
	}
	conv, err := d.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !d.Authorize(conv, userID) {
		return nil, apperrors.ErrForbidden
	}
	return conv, nil
}

// ListForUser returns the user's conversations, newest first.
func (d *ConversationDirectory) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthenticationRequired
	}
	var conversations []models.Conversation
	err := d.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, apperrors.Internal("list conversations", errors.Wrap(err, "conversationDirectory.ListForUser.Find"))
	}
	return conversations, nil
}

// Delete removes a conversation and all of its messages.
func (d *ConversationDirectory) Delete(ctx context.Context, conversationID, userID string) error {
	conv, err := d.GetForParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conv.ID).Delete(&models.Message{}).Error; err != nil {
			return errors.Wrap(err, "conversationDirectory.Delete.Messages")
		}
		if err := tx.Delete(&models.Conversation{}, "id = ?", conv.ID).Error; err != nil {
			return errors.Wrap(err, "conversationDirectory.Delete.Conversation")
		}
		return nil
	})
	if err != nil {
		return apperrors.Internal("delete conversation", err)
	}
	d.log.Info().Str("conversation_id", conv.ID).Str("user_id", userID).Msg("conversation deleted")
	return nil
}

func (d *ConversationDirectory) findByTriple(ctx context.Context, listingID, buyerID, sellerID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := d.db.WithContext(ctx).
		Where("listing_id = ? AND buyer_id = ? AND seller_id = ?", listingID, buyerID, sellerID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
