package chatserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	v1 "github.com/redclouds/erp-assistant/pkg/apis/chat/v1"
	"github.com/redclouds/erp-assistant/pkg/chatserver/metrics"
	"github.com/redclouds/erp-assistant/pkg/conversation"
	"github.com/redclouds/erp-assistant/pkg/rag"
)

func (s *Server) jsonChat(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	var request v1.ChatRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		failureResponse(w, http.StatusBadRequest, "Question is required")
		return
	}
	if strings.TrimSpace(request.UserID) == "" {
		failureResponse(w, http.StatusBadRequest, "User ID is required")
		return
	}

	response, stats, err := s.orchestrator.ProcessTurn(req.Context(), request.UserID, request.Question, request.ConversationID)
	if err != nil {
		metrics.RecordTurn(metrics.OutcomeError, time.Since(start), stats.Retrieved)
		switch {
		case errors.Is(err, conversation.ErrNotFound):
			failureResponse(w, http.StatusNotFound, "Conversation not found")
		case errors.Is(err, conversation.ErrConflict):
			failureResponse(w, http.StatusConflict, "Another turn for this conversation is in flight")
		default:
			log.WithError(err).WithField("user", request.UserID).Error("chat turn failed")
			failureResponse(w, http.StatusInternalServerError,
				"I apologize, an unexpected error occurred. Please try again shortly.")
		}
		return
	}

	metrics.RecordTurn(outcome(response, stats), time.Since(start), stats.Retrieved)
	RespondWithJSON(http.StatusOK, w, response)
}

func (s *Server) jsonUserConversations(w http.ResponseWriter, req *http.Request) {
	userID := mux.Vars(req)["user_id"]

	summaries, err := s.store.ListConversations(req.Context(), userID)
	if err != nil {
		log.WithError(err).WithField("user", userID).Error("could not list conversations")
		failureResponse(w, http.StatusInternalServerError, "Failed to retrieve conversation list")
		return
	}

	RespondWithJSON(http.StatusOK, w, v1.ConversationListResponse{Conversations: summaries})
}

func (s *Server) jsonConversationHistory(w http.ResponseWriter, req *http.Request) {
	idStr := mux.Vars(req)["id"]
	conversationID, err := uuid.Parse(idStr)
	if err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid conversation ID format")
		return
	}

	turns, err := s.store.ReadTurns(req.Context(), conversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			failureResponse(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.WithError(err).WithField("conversation", conversationID).Error("could not read turns")
		failureResponse(w, http.StatusInternalServerError, "Failed to retrieve conversation history")
		return
	}

	RespondWithJSON(http.StatusOK, w, v1.ConversationHistoryResponse{
		Messages: conversation.TurnRecords(turns),
	})
}

func (s *Server) jsonHealth(w http.ResponseWriter, _ *http.Request) {
	RespondWithJSON(http.StatusOK, w, map[string]string{"status": "ok"})
}

func outcome(response *v1.ChatResponse, stats rag.TurnStats) string {
	switch {
	case stats.Greeting:
		return metrics.OutcomeGreeting
	case stats.Degraded:
		return metrics.OutcomeDegraded
	case stats.Retrieved == 0:
		return metrics.OutcomeNoContext
	case response != nil:
		return metrics.OutcomeAnswered
	default:
		return metrics.OutcomeError
	}
}
