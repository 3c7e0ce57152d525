// Package chatserver exposes the orchestrator over HTTP: POST /chat for
// turns, plus read-only conversation listing and history endpoints.
package chatserver

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/redclouds/erp-assistant/pkg/conversation"
	"github.com/redclouds/erp-assistant/pkg/rag"
)

type Server struct {
	listenAddr   string
	orchestrator *rag.Orchestrator
	store        conversation.Store
	httpServer   *http.Server
}

func NewServer(listenAddr string, orchestrator *rag.Orchestrator, store conversation.Store) *Server {
	return &Server{
		listenAddr:   listenAddr,
		orchestrator: orchestrator,
		store:        store,
	}
}

// Router builds the route table. Separate from Serve so tests can drive the
// handlers through httptest.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/chat", s.jsonChat).Methods(http.MethodPost)
	router.HandleFunc("/user_conversations/{user_id}", s.jsonUserConversations).Methods(http.MethodGet)
	router.HandleFunc("/conversation/{id}", s.jsonConversationHistory).Methods(http.MethodGet)
	router.HandleFunc("/health", s.jsonHealth).Methods(http.MethodGet)
	return router
}

func (s *Server) Serve() {
	s.httpServer = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("serving chat API on %s", s.listenAddr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("server exited")
	}
}

func (s *Server) GetHTTPServer() *http.Server {
	return s.httpServer
}
