package devnet

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"evm-token-lab/internal/domain"
)

// Server exposes a Chain over JSON-RPC 2.0: plain HTTP POST for calls,
// WebSocket upgrade on the same path for newHeads subscriptions.
type Server struct {
	chain    *Chain
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer wraps chain in the JSON-RPC transport.
func NewServer(chain *Chain, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		chain: chain,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// JSON-RPC error codes.
const (
	codeParse          = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServer         = -32000
	codeRevert         = 3
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.serveWS(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST or WebSocket upgrade required", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParse, Message: "parse error"}})
		return
	}

	resp := s.dispatch(&req)
	s.writeResponse(w, resp)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

func (s *Server) dispatch(req *rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	result, rpcErr := s.handle(req.Method, req.Params)
	if rpcErr != nil {
		resp.Error = rpcErr
		return resp
	}
	resp.Result = result
	return resp
}

func (s *Server) handle(method string, params []json.RawMessage) (interface{}, *rpcError) {
	switch method {
	case "eth_chainId":
		return hexUint(s.chain.ChainID()), nil

	case "eth_blockNumber":
		return hexUint(s.chain.BlockNumber()), nil

	case "eth_gasPrice":
		return hexUint(GasPriceSuggestion), nil

	case "eth_getBalance":
		addr, _, errResp := addressAndTagParams(params)
		if errResp != nil {
			return nil, errResp
		}
		return s.chain.BalanceAt(addr).Hex(), nil

	case "eth_getTransactionCount":
		addr, tag, errResp := addressAndTagParams(params)
		if errResp != nil {
			return nil, errResp
		}
		return hexUint(s.chain.NonceAt(addr, tag == "pending")), nil

	case "eth_call":
		return s.handleCall(params)

	case "eth_sendRawTransaction":
		return s.handleSendRaw(params)

	case "eth_getTransactionReceipt":
		return s.handleReceipt(params)

	case "eth_getBlockByNumber":
		return s.handleBlock(params)

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("the method %s does not exist", method)}
	}
}

type callParam struct {
	From *string `json:"from"`
	To   string  `json:"to"`
	Data string  `json:"data"`
}

func (s *Server) handleCall(params []json.RawMessage) (interface{}, *rpcError) {
	if len(params) < 1 {
		return nil, &rpcError{Code: codeInvalidParams, Message: "missing call object"}
	}
	var call callParam
	if err := json.Unmarshal(params[0], &call); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	to, err := domain.ParseAddress(call.To)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	var from *domain.Address
	if call.From != nil {
		parsed, err := domain.ParseAddress(*call.From)
		if err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
		from = &parsed
	}
	data, err := decodeHexBlob(call.Data)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}

	out, err := s.chain.StaticCall(from, to, data)
	if err != nil {
		var revert *RevertError
		if errors.As(err, &revert) {
			return nil, &rpcError{
				Code:    codeRevert,
				Message: revert.Error(),
				Data:    "0x" + hex.EncodeToString(revert.ReturnData()),
			}
		}
		return nil, &rpcError{Code: codeServer, Message: err.Error()}
	}
	return "0x" + hex.EncodeToString(out), nil
}

func (s *Server) handleSendRaw(params []json.RawMessage) (interface{}, *rpcError) {
	var rawHex string
	if err := unmarshalFirst(params, &rawHex); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	raw, err := decodeHexBlob(rawHex)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}

	hash, err := s.chain.SubmitRaw(raw)
	if err != nil {
		return nil, &rpcError{Code: codeServer, Message: err.Error()}
	}
	return hash.String(), nil
}

func (s *Server) handleReceipt(params []json.RawMessage) (interface{}, *rpcError) {
	var hashHex string
	if err := unmarshalFirst(params, &hashHex); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	hash, err := domain.ParseHash(hashHex)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}

	result := s.chain.Receipt(hash)
	if result == nil {
		// Unmined transactions have a null receipt, not an error.
		return nil, nil
	}
	return receiptJSON(result), nil
}

func (s *Server) handleBlock(params []json.RawMessage) (interface{}, *rpcError) {
	var numberHex string
	if err := unmarshalFirst(params, &numberHex); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	var number uint64
	switch numberHex {
	case "latest", "pending":
		number = s.chain.BlockNumber()
	default:
		parsed, err := parseHexUint(numberHex)
		if err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
		number = parsed
	}

	block := s.chain.Block(number)
	if block == nil {
		return nil, nil
	}
	return blockJSON(block), nil
}

// Wire shapes, matching the field layout every JSON-RPC client expects.

func receiptJSON(r *TxResult) map[string]interface{} {
	to := r.Tx.To.String()
	return map[string]interface{}{
		"transactionHash":  r.Hash.String(),
		"transactionIndex": hexUint(uint64(r.Index)),
		"blockNumber":      hexUint(r.BlockNumber),
		"blockHash":        r.BlockHash.String(),
		"from":             r.From.String(),
		"to":               to,
		"status":           hexUint(uint64(r.Status)),
		"gasUsed":          hexUint(r.GasUsed),
		"contractAddress":  nil,
	}
}

func blockJSON(b *BlockResult) map[string]interface{} {
	txs := make([]map[string]interface{}, 0, len(b.Txs))
	for _, r := range b.Txs {
		txs = append(txs, map[string]interface{}{
			"hash":             r.Hash.String(),
			"transactionIndex": hexUint(uint64(r.Index)),
			"nonce":            hexUint(r.Tx.Nonce),
			"from":             r.From.String(),
			"to":               r.Tx.To.String(),
			"value":            r.Tx.Value.Hex(),
			"gas":              hexUint(r.Tx.GasLimit),
			"gasPrice":         r.Tx.GasPrice.Hex(),
			"input":            "0x" + hex.EncodeToString(r.Tx.Data),
		})
	}
	return map[string]interface{}{
		"number":       hexUint(b.Number),
		"hash":         b.Hash.String(),
		"parentHash":   b.ParentHash.String(),
		"timestamp":    hexUint(b.Time),
		"transactions": txs,
	}
}

func headJSON(h HeadEvent) map[string]interface{} {
	return map[string]interface{}{
		"number":     hexUint(h.Number),
		"hash":       h.Hash.String(),
		"parentHash": h.ParentHash.String(),
		"timestamp":  hexUint(h.Time),
	}
}

// Param helpers.

func unmarshalFirst(params []json.RawMessage, out interface{}) error {
	if len(params) < 1 {
		return fmt.Errorf("missing parameter")
	}
	return json.Unmarshal(params[0], out)
}

func addressAndTagParams(params []json.RawMessage) (domain.Address, string, *rpcError) {
	var addrHex string
	if err := unmarshalFirst(params, &addrHex); err != nil {
		return domain.Address{}, "", &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	addr, err := domain.ParseAddress(addrHex)
	if err != nil {
		return domain.Address{}, "", &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	tag := "latest"
	if len(params) > 1 {
		if err := json.Unmarshal(params[1], &tag); err != nil {
			return domain.Address{}, "", &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
	}
	return addr, tag, nil
}

func hexUint(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

func parseHexUint(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") {
		return 0, fmt.Errorf("quantity %q: missing 0x prefix", s)
	}
	return strconv.ParseUint(s[2:], 16, 64)
}

func decodeHexBlob(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("data %q: missing 0x prefix", s)
	}
	return hex.DecodeString(s[2:])
}
