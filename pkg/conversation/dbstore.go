package conversation

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	v1 "github.com/redclouds/erp-assistant/pkg/apis/chat/v1"
	"github.com/redclouds/erp-assistant/pkg/db"
	"github.com/redclouds/erp-assistant/pkg/db/models"
)

// DBStore is the postgres-backed Store. Sequence assignment is serialized by
// a row lock on the conversation, and the composite unique index on
// (conversation_id, sequence_no) catches appends racing from other processes.
type DBStore struct {
	dbc *db.DB
}

func NewDBStore(dbc *db.DB) *DBStore {
	return &DBStore{dbc: dbc}
}

func (s *DBStore) CreateConversation(ctx context.Context, userID, firstQuestion string) (uuid.UUID, error) {
	conv := models.Conversation{
		ID:            uuid.New(),
		UserID:        userID,
		FirstQuestion: firstQuestion,
	}
	if err := s.dbc.DB.WithContext(ctx).Create(&conv).Error; err != nil {
		return uuid.Nil, errors.Wrap(err, "creating conversation")
	}
	log.WithFields(log.Fields{
		"user":           userID,
		"conversationID": conv.ID,
	}).Info("conversation created")
	return conv.ID, nil
}

func (s *DBStore) GetConversation(ctx context.Context, id uuid.UUID) (*v1.ConversationSummary, error) {
	var conv models.Conversation
	if err := s.dbc.DB.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "reading conversation")
	}
	summary := summarize(&conv)
	return &summary, nil
}

func (s *DBStore) ListConversations(ctx context.Context, userID string) ([]v1.ConversationSummary, error) {
	var convs []models.Conversation
	err := s.dbc.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing conversations")
	}

	summaries := make([]v1.ConversationSummary, 0, len(convs))
	for i := range convs {
		summaries = append(summaries, summarize(&convs[i]))
	}
	return summaries, nil
}

func (s *DBStore) Append(ctx context.Context, conversationID uuid.UUID, turn *Turn) (int, error) {
	var assigned int
	err := s.dbc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&conv, "id = ?", conversationID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return errors.Wrap(err, "locking conversation")
		}

		var maxSeq int
		err = tx.Model(&models.Turn{}).
			Where("conversation_id = ?", conversationID).
			Select("COALESCE(MAX(sequence_no), 0)").
			Scan(&maxSeq).Error
		if err != nil {
			return errors.Wrap(err, "reading last sequence number")
		}
		assigned = maxSeq + 1

		row := models.Turn{
			ConversationID: conversationID,
			SequenceNo:     assigned,
			Question:       turn.Question,
			Response:       turn.Response,
		}
		if err := setJSONB(&row.Sources, emptyIfNilSources(turn.Sources)); err != nil {
			return errors.Wrap(err, "encoding sources")
		}
		if err := setJSONB(&row.SuggestedQuestions, emptyIfNil(turn.SuggestedQuestions)); err != nil {
			return errors.Wrap(err, "encoding suggested questions")
		}

		if err := tx.Create(&row).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrConflict
			}
			return errors.Wrap(err, "inserting turn")
		}

		turn.ConversationID = conversationID
		turn.SequenceNo = assigned
		turn.Timestamp = row.CreatedAt

		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return 0, err
	}
	return assigned, nil
}

func (s *DBStore) ReadTurns(ctx context.Context, conversationID uuid.UUID) ([]Turn, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	var rows []models.Turn
	err := s.dbc.DB.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sequence_no ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "reading turns")
	}

	turns := make([]Turn, 0, len(rows))
	for i := range rows {
		turn, err := fromModel(&rows[i])
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func summarize(conv *models.Conversation) v1.ConversationSummary {
	return v1.ConversationSummary{
		ConversationID: conv.ID,
		FirstQuestion:  conv.FirstQuestion,
		UpdatedAt:      conv.UpdatedAt,
	}
}

func fromModel(row *models.Turn) (Turn, error) {
	turn := Turn{
		ConversationID: row.ConversationID,
		SequenceNo:     row.SequenceNo,
		Question:       row.Question,
		Response:       row.Response,
		Timestamp:      row.CreatedAt,
	}
	if err := jsonbInto(row.Sources, &turn.Sources); err != nil {
		return Turn{}, errors.Wrap(err, "decoding sources")
	}
	if err := jsonbInto(row.SuggestedQuestions, &turn.SuggestedQuestions); err != nil {
		return Turn{}, errors.Wrap(err, "decoding suggested questions")
	}
	return turn, nil
}

func setJSONB(col *pgtype.JSONB, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return col.Set(raw)
}

func jsonbInto(col pgtype.JSONB, out interface{}) error {
	if col.Status != pgtype.Present || len(col.Bytes) == 0 {
		return nil
	}
	return json.Unmarshal(col.Bytes, out)
}

func emptyIfNilSources(sources []v1.SourceDocument) []v1.SourceDocument {
	if sources == nil {
		return []v1.SourceDocument{}
	}
	return sources
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
