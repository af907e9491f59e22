// relaysim is a development stand-in for the backend: it implements the
// REST collaborator contract (messages, reactions) plus the websocket push
// channel with fan-out to both participants, including the echo to the
// sender's own socket. It exists so the engine can be exercised end to end
// without the production platform; it is not that platform.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"heartlink/pkg/logger"
	"heartlink/pkg/models"
)

type relay struct {
	// dropEcho suppresses the push echo to the sender, to exercise the
	// client's confirm fallback timer.
	dropEcho bool

	mu        sync.Mutex
	messages  []models.Message
	reactions []models.Reaction
	clients   map[string][]*websocket.Conn
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	dropEcho := flag.Bool("drop-echo", false, "do not echo pushed messages back to the sender")
	flag.Parse()
	logger.Init()

	r := &relay{dropEcho: *dropEcho, clients: make(map[string][]*websocket.Conn)}

	m := mux.NewRouter()
	m.HandleFunc("/v1/messages", r.listMessages).Methods(http.MethodGet)
	m.HandleFunc("/v1/messages", r.postMessage).Methods(http.MethodPost)
	m.HandleFunc("/v1/reactions", r.listReactions).Methods(http.MethodGet)
	m.HandleFunc("/v1/reactions", r.postReaction).Methods(http.MethodPost)
	m.HandleFunc("/ws", r.serveWS)

	logger.Info("relaysim_listening", "addr", *addr, "drop_echo", *dropEcho)
	if err := http.ListenAndServe(*addr, m); err != nil {
		fmt.Fprintf(os.Stderr, "relaysim: %v\n", err)
		os.Exit(1)
	}
}

func (r *relay) listMessages(w http.ResponseWriter, req *http.Request) {
	user := req.URL.Query().Get("user")
	peer := req.URL.Query().Get("peer")
	key := models.KeyOf(user, peer)

	r.mu.Lock()
	var out []models.Message
	for _, m := range r.messages {
		if key.Matches(m.SenderID, m.ReceiverID) {
			out = append(out, m)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	// wrapped shape on purpose: the real backend is not contractually
	// fixed, and the client must tolerate wrappers
	writeJSON(w, map[string]any{"messages": out})
}

func (r *relay) postMessage(w http.ResponseWriter, req *http.Request) {
	var in struct {
		SenderID      string `json:"senderId"`
		ReceiverID    string `json:"receiverId"`
		Content       string `json:"content"`
		AttachmentURL string `json:"attachmentUrl"`
		TempID        string `json:"tempId"`
	}
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if in.SenderID == "" || in.ReceiverID == "" || (in.Content == "" && in.AttachmentURL == "") {
		http.Error(w, "missing fields", http.StatusBadRequest)
		return
	}
	msg := models.Message{
		ID:            uuid.NewString(),
		SenderID:      in.SenderID,
		ReceiverID:    in.ReceiverID,
		Content:       in.Content,
		AttachmentURL: in.AttachmentURL,
		CreatedAt:     time.Now().UTC(),
		TempID:        in.TempID,
	}

	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()

	r.push(msg)
	writeJSON(w, msg)
}

func (r *relay) listReactions(w http.ResponseWriter, req *http.Request) {
	a := req.URL.Query().Get("a")
	b := req.URL.Query().Get("b")
	key := models.KeyOf(a, b)

	r.mu.Lock()
	byID := make(map[string]models.ConversationKey)
	for _, m := range r.messages {
		byID[m.ID] = m.Key()
	}
	out := []models.Reaction{}
	for _, rx := range r.reactions {
		if byID[rx.MessageID] == key {
			out = append(out, rx)
		}
	}
	r.mu.Unlock()
	writeJSON(w, out)
}

func (r *relay) postReaction(w http.ResponseWriter, req *http.Request) {
	var rx models.Reaction
	if err := json.NewDecoder(req.Body).Decode(&rx); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if rx.MessageID == "" || rx.UserID == "" || rx.Emoji == "" {
		http.Error(w, "missing fields", http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	r.reactions = append(r.reactions, rx)
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (r *relay) serveWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	var join struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	}
	if err := conn.ReadJSON(&join); err != nil || join.Type != "join" || join.UserID == "" {
		_ = conn.Close()
		return
	}
	logger.Info("relaysim_joined", "user", join.UserID)

	r.mu.Lock()
	r.clients[join.UserID] = append(r.clients[join.UserID], conn)
	r.mu.Unlock()

	// drain until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	r.mu.Lock()
	conns := r.clients[join.UserID]
	for i, c := range conns {
		if c == conn {
			r.clients[join.UserID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	_ = conn.Close()
}

// push fans the message out to both participants' sockets.
func (r *relay) push(msg models.Message) {
	frame := map[string]any{"type": "new_message", "message": msg}
	targets := []string{msg.ReceiverID}
	if !r.dropEcho {
		targets = append(targets, msg.SenderID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range targets {
		for _, conn := range r.clients[user] {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(frame); err != nil {
				logger.Warn("relaysim_push_failed", "user", user, "error", err)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
