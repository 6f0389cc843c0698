package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/kevinxiao27/yata-text/internal/config"
	"github.com/kevinxiao27/yata-text/ol"
	"github.com/kevinxiao27/yata-text/yt"
)

// rootText is the name of the text every hosted document edits.
const rootText = "content"

type client struct {
	session string
	conn    *websocket.Conn
}

type Server struct {
	cfg       *config.Config
	mu        sync.Mutex
	documents map[string]*yt.Doc
	clients   map[string][]*client
	upgrader  websocket.Upgrader
}

type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type DocumentRequest struct {
	Pos  int    `json:"pos"`
	Text string `json:"text,omitempty"`
	Len  int    `json:"len,omitempty"`
}

type DocumentResponse struct {
	Content string          `json:"content"`
	State   ol.StateVector  `json:"state"`
	Delta   []yt.Delta      `json:"delta,omitempty"`
	Session string          `json:"session,omitempty"`
	Update  json.RawMessage `json:"update,omitempty"`
}

func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:       cfg,
		documents: make(map[string]*yt.Doc),
		clients:   make(map[string][]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/docs/{doc}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/docs/{doc}/insert", s.handleInsert).Methods(http.MethodPost)
	r.HandleFunc("/docs/{doc}/delete", s.handleDelete).Methods(http.MethodPost)
	r.HandleFunc("/docs/{doc}/sync", s.handleSync).Methods(http.MethodPost)
	r.HandleFunc("/docs/{doc}/merge", s.handleMerge).Methods(http.MethodPost)
	return r
}

// getDocument returns the document called id, creating it on first use.
// Callers hold s.mu.
func (s *Server) getDocument(id string) *yt.Doc {
	if doc, exists := s.documents[id]; exists {
		return doc
	}
	opts := []yt.Option{yt.WithLogger(log.Default())}
	if s.cfg.PeerID != 0 {
		opts = append(opts, yt.WithPeerID(ol.PeerID(s.cfg.PeerID)))
	}
	if !s.cfg.Squash {
		opts = append(opts, yt.WithoutSquash())
	}
	doc := yt.NewDoc(opts...)
	doc.OnUpdate(func(u *ol.Update) {
		s.broadcastToDocument(id, "update", u)
	})
	s.documents[id] = doc
	return doc
}

func (s *Server) snapshot(doc *yt.Doc) DocumentResponse {
	return DocumentResponse{
		Content: doc.GetText(rootText).String(),
		State:   doc.StateVector(),
	}
}

// edit runs fn in a transaction on the document's root text and reports the
// resulting content together with the delta the edit produced.
func (s *Server) edit(docID string, fn func(txn *yt.Transaction, text *yt.Text) error) (DocumentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.getDocument(docID)
	text := doc.GetText(rootText)
	var delta []yt.Delta
	sub, err := text.Observe(func(e *yt.TextEvent) { delta = e.Delta() })
	if err != nil {
		return DocumentResponse{}, err
	}
	defer sub.Unsubscribe()

	if err := doc.Transact(func(txn *yt.Transaction) error { return fn(txn, text) }); err != nil {
		return DocumentResponse{}, err
	}
	resp := s.snapshot(doc)
	resp.Delta = delta
	return resp, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, yt.ErrOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, yt.ErrMergeInconsistency):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	docID := mux.Vars(r)["doc"]

	log.Printf("INSERT: pos=%d text=%q doc=%s", req.Pos, req.Text, docID)

	resp, err := s.edit(docID, func(txn *yt.Transaction, text *yt.Text) error {
		return text.Insert(txn, req.Pos, req.Text)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	docID := mux.Vars(r)["doc"]

	log.Printf("DELETE: pos=%d len=%d doc=%s", req.Pos, req.Len, docID)

	resp, err := s.edit(docID, func(txn *yt.Transaction, text *yt.Text) error {
		return text.Delete(txn, req.Pos, req.Len)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["doc"]

	s.mu.Lock()
	resp := s.snapshot(s.getDocument(docID))
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// handleSync answers a peer's state vector with the update it is missing.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var sv ol.StateVector
	if err := json.NewDecoder(r.Body).Decode(&sv); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	docID := mux.Vars(r)["doc"]

	s.mu.Lock()
	u := s.getDocument(docID).EncodeStateAsUpdate(sv)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, u)
}

// handleMerge integrates an update produced by another replica.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var u ol.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	docID := mux.Vars(r)["doc"]

	log.Printf("MERGE: inserts=%d deletes=%d doc=%s", len(u.Inserts), len(u.Deletes), docID)

	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.getDocument(docID)
	if err := doc.ApplyUpdate(&u); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot(doc))
}

// broadcastToDocument sends a message to every client of the document.
// Callers hold s.mu, which also serialises writes to each connection.
func (s *Server) broadcastToDocument(docID, kind string, v any) {
	clients := s.clients[docID]
	if len(clients) == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: encode %s: %v", kind, err)
		return
	}
	log.Printf("BROADCAST: sending %s to %d clients", kind, len(clients))
	for _, c := range clients {
		if err := c.conn.WriteJSON(WSMessage{Type: kind, Data: data}); err != nil {
			log.Printf("ERROR: write to %s: %v", c.session, err)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ERROR: upgrade: %v", err)
		return
	}
	defer conn.Close()

	docID := r.URL.Query().Get("doc")
	c := &client{session: uuid.NewString(), conn: conn}

	s.mu.Lock()
	s.clients[docID] = append(s.clients[docID], c)
	doc := s.getDocument(docID)
	hello := s.snapshot(doc)
	hello.Session = c.session
	if u, err := json.Marshal(doc.EncodeStateAsUpdate(nil)); err != nil {
		log.Printf("ERROR: encode snapshot: %v", err)
	} else {
		hello.Update = u
	}
	data, err := json.Marshal(hello)
	if err != nil {
		log.Printf("ERROR: encode init: %v", err)
	} else {
		err = conn.WriteJSON(WSMessage{Type: "init", Data: data})
	}
	log.Printf("CLIENT CONNECTED: doc=%s session=%s total=%d", docID, c.session, len(s.clients[docID]))
	s.mu.Unlock()
	if err != nil {
		log.Printf("ERROR: send init: %v", err)
	}

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}

		log.Printf("MESSAGE: type=%s session=%s", msg.Type, c.session)

		switch msg.Type {
		case "update":
			var u ol.Update
			if err := json.Unmarshal(msg.Data, &u); err != nil {
				log.Printf("ERROR: decode update: %v", err)
				continue
			}
			s.mu.Lock()
			if err := s.getDocument(docID).ApplyUpdate(&u); err != nil {
				log.Printf("ERROR: apply update from %s: %v", c.session, err)
			}
			s.mu.Unlock()

		case "sync":
			var sv ol.StateVector
			if err := json.Unmarshal(msg.Data, &sv); err != nil {
				log.Printf("ERROR: decode state vector: %v", err)
				continue
			}
			s.mu.Lock()
			u := s.getDocument(docID).EncodeStateAsUpdate(sv)
			data, err := json.Marshal(u)
			if err == nil {
				err = conn.WriteJSON(WSMessage{Type: "update", Data: data})
			}
			s.mu.Unlock()
			if err != nil {
				log.Printf("ERROR: send sync reply: %v", err)
			}
		}
	}

	s.mu.Lock()
	for i, cl := range s.clients[docID] {
		if cl == c {
			s.clients[docID] = append(s.clients[docID][:i], s.clients[docID][i+1:]...)
			break
		}
	}
	log.Printf("CLIENT DISCONNECTED: doc=%s session=%s remaining=%d", docID, c.session, len(s.clients[docID]))
	s.mu.Unlock()
}
