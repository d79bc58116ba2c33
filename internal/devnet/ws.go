package devnet

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

// wsSession is one upgraded connection. Writes are serialized through
// writeMu because head pushes and RPC replies come from different
// goroutines.
type wsSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	// cancel funcs for active subscriptions, by subscription ID
	subs   map[string]func()
	subsMu sync.Mutex

	seq  uint64
	done chan struct{}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	sess := &wsSession{
		conn: conn,
		subs: make(map[string]func()),
		done: make(chan struct{}),
	}
	defer sess.close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req rpcRequest
		if err := json.Unmarshal(message, &req); err != nil {
			sess.write(rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParse, Message: "parse error"}})
			continue
		}

		switch req.Method {
		case "eth_subscribe":
			s.handleSubscribe(sess, &req)
		case "eth_unsubscribe":
			s.handleUnsubscribe(sess, &req)
		default:
			sess.write(s.dispatch(&req))
		}
	}
}

func (s *Server) handleSubscribe(sess *wsSession, req *rpcRequest) {
	var kind string
	if err := unmarshalFirst(req.Params, &kind); err != nil || kind != "newHeads" {
		sess.write(rpcResponse{
			JSONRPC: "2.0", ID: req.ID,
			Error: &rpcError{Code: codeInvalidParams, Message: "unsupported subscription type"},
		})
		return
	}

	heads, cancel := s.chain.SubscribeHeads()

	sess.subsMu.Lock()
	sess.seq++
	subID := fmt.Sprintf("0x%x", sess.seq)
	sess.subs[subID] = cancel
	sess.subsMu.Unlock()

	sess.write(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: subID})

	go func() {
		for {
			select {
			case <-sess.done:
				return
			case head, ok := <-heads:
				if !ok {
					return
				}
				notif := map[string]interface{}{
					"jsonrpc": "2.0",
					"method":  "eth_subscription",
					"params": map[string]interface{}{
						"subscription": subID,
						"result":       headJSON(head),
					},
				}
				if err := sess.write(notif); err != nil {
					return
				}
			}
		}
	}()
}

func (s *Server) handleUnsubscribe(sess *wsSession, req *rpcRequest) {
	var subID string
	if err := unmarshalFirst(req.Params, &subID); err != nil {
		sess.write(rpcResponse{
			JSONRPC: "2.0", ID: req.ID,
			Error: &rpcError{Code: codeInvalidParams, Message: "missing subscription id"},
		})
		return
	}

	sess.subsMu.Lock()
	cancel, ok := sess.subs[subID]
	if ok {
		delete(sess.subs, subID)
	}
	sess.subsMu.Unlock()

	if ok {
		cancel()
	}
	sess.write(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: ok})
}

func (sess *wsSession) write(v interface{}) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	sess.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return sess.conn.WriteJSON(v)
}

func (sess *wsSession) close() {
	close(sess.done)
	sess.subsMu.Lock()
	for id, cancel := range sess.subs {
		cancel()
		delete(sess.subs, id)
	}
	sess.subsMu.Unlock()
	sess.conn.Close()
}
