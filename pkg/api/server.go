// Package api exposes the venue over REST and WebSocket. Session control is
// authenticated by operator signature, sealed orders by an EIP-712 envelope,
// reveals by a caller signature; everything else is public projection.
package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	core "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/handle"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/venue"
	vcrypto "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/crypto"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/util"
)

// maxActionSkew bounds how stale a signed control request may be.
const maxActionSkew = 60

type Server struct {
	app         *venue.App
	instruments []string
	router      *mux.Router
	hub         *Hub
	typed       *vcrypto.TypedSigner
	clock       util.Clock
	log         *zap.SugaredLogger
}

func NewServer(app *venue.App, instruments []string, clock util.Clock, log *zap.SugaredLogger) *Server {
	if clock == nil {
		clock = util.RealClock{}
	}
	s := &Server{
		app:         app,
		instruments: instruments,
		router:      mux.NewRouter(),
		hub:         NewHub(log),
		typed:       vcrypto.NewTypedSigner(vcrypto.DefaultDomain()),
		clock:       clock,
		log:         log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	api.HandleFunc("/traders", s.handleRegister).Methods("POST")
	api.HandleFunc("/traders/{address}", s.handleGetTrader).Methods("GET")
	api.HandleFunc("/traders/{address}/balance", s.handleUpdateBalance).Methods("POST")
	api.HandleFunc("/traders/{address}/trade-count", s.handleTradeCount).Methods("GET")

	api.HandleFunc("/sessions", s.handleStartSession).Methods("POST")
	api.HandleFunc("/sessions/current", s.handleCurrentSession).Methods("GET")
	api.HandleFunc("/sessions/current/settle", s.handleSettle).Methods("POST")
	api.HandleFunc("/sessions/current/end", s.handleEmergencyEnd).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.handleSessionHistory).Methods("GET")
	api.HandleFunc("/sessions/{id}/rates/{pair}", s.handleHasRate).Methods("GET")
	api.HandleFunc("/sessions/{id}/orders/{address}/count", s.handleOrderCount).Methods("GET")

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/reveal", s.handleReveal).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and blocks serving HTTP.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	if s.log != nil {
		s.log.Infow("api_listening", "addr", addr)
	}
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// PublishEvent fans a committed venue event out to WebSocket subscribers.
// Wired as the app's OnEvent sink.
func (s *Server) PublishEvent(e venue.Event) {
	s.hub.BroadcastToChannel("events", e)
	if e.Kind == venue.EvOrderExecuted || e.Kind == venue.EvSessionEnded {
		s.hub.BroadcastToChannel("settlements", e)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, VenueStatus{
		Operator:    s.app.Operator().Hex(),
		Instruments: s.instruments,
		Traders:     s.app.TraderCount(),
		Live:        s.app.IsLive(),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	if err := s.app.Register(common.HexToAddress(req.Address), req.InitialBalance); err != nil {
		respondVenueError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "registered"})
}

func (s *Server) handleGetTrader(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	registered, last := s.app.TraderProfile(addr)
	respondJSON(w, TraderResponse{Address: addr.Hex(), Registered: registered, LastActivity: last})
}

func (s *Server) handleUpdateBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req UpdateBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.app.UpdateBalance(addr, req.NewBalance); err != nil {
		respondVenueError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "updated"})
}

func (s *Server) handleTradeCount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	h, err := s.app.MyEncryptedTradeCount(addr)
	if err != nil {
		respondVenueError(w, err)
		return
	}
	respondJSON(w, TradeCountResponse{Address: addr.Hex(), Handle: uint64(h)})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, err := s.recoverAction("start_session", req.OperatorAction)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "bad action signature", err.Error())
		return
	}
	id, err := s.app.StartSession(caller, req.Rates)
	if err != nil {
		respondVenueError(w, err)
		return
	}
	respondJSON(w, map[string]uint32{"session": id})
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req OperatorAction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, err := s.recoverAction("settle_session", req)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "bad action signature", err.Error())
		return
	}
	report, err := s.app.SettleSession(caller)
	if err != nil {
		respondVenueError(w, err)
		return
	}
	respondJSON(w, SettleResponse{
		Session:        report.SessionID,
		OrdersExecuted: report.OrdersExecuted,
		Participants:   report.Participants,
	})
}

func (s *Server) handleEmergencyEnd(w http.ResponseWriter, r *http.Request) {
	var req OperatorAction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, err := s.recoverAction("emergency_end", req)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "bad action signature", err.Error())
		return
	}
	if err := s.app.EmergencyEnd(caller); err != nil {
		respondVenueError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ended"})
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	info, ok := s.app.SessionInfo()
	if !ok {
		respondError(w, http.StatusNotFound, "no current session", "")
		return
	}
	respondJSON(w, info)
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r)
	if !ok {
		return
	}
	info, found := s.app.SessionHistory(id)
	if !found {
		respondError(w, http.StatusNotFound, "unknown session", "")
		return
	}
	respondJSON(w, info)
}

func (s *Server) handleHasRate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r)
	if !ok {
		return
	}
	pair, err := strconv.ParseUint(mux.Vars(r)["pair"], 10, 8)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair", err.Error())
		return
	}
	respondJSON(w, map[string]bool{"hasRate": s.app.HasInstrumentRate(id, core.Instrument(pair))})
}

func (s *Server) handleOrderCount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r)
	if !ok {
		return
	}
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	respondJSON(w, map[string]int{"count": s.app.OrderCount(id, addr)})
}

// handleSubmitOrder applies a sealed order: EIP-712 envelope first, then the
// venue's own proof and precondition checks.
func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Trader) {
		respondError(w, http.StatusBadRequest, "invalid trader address", "")
		return
	}
	trader := common.HexToAddress(req.Trader)

	order, sub, err := decodeSealedOrder(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed sealed order", err.Error())
		return
	}
	if sub.Deadline.Sign() > 0 && s.clock.Now().Unix() > sub.Deadline.Int64() {
		respondError(w, http.StatusBadRequest, "envelope expired", "")
		return
	}
	sig, err := hexField(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature encoding", err.Error())
		return
	}
	ok, err := s.typed.VerifySubmission(sub, sig)
	if err != nil || !ok {
		respondError(w, http.StatusUnauthorized, "bad envelope signature", "")
		return
	}

	idx, err := s.app.PlaceOrderSealed(trader, order)
	if err != nil {
		respondVenueError(w, err)
		return
	}
	info, _ := s.app.SessionInfo()
	if s.log != nil {
		s.log.Infow("sealed_order_accepted", "trader", trader.Hex(), "session", info.ID, "index", idx)
	}
	respondJSON(w, SubmitOrderResponse{Status: "accepted", Session: info.ID, Index: idx})
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	var req RevealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if skew := s.clock.Now().Unix() - req.Timestamp; skew > maxActionSkew || skew < -maxActionSkew {
		respondError(w, http.StatusUnauthorized, "stale request", "")
		return
	}
	sig, err := hexField(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature encoding", err.Error())
		return
	}
	digest := ethcrypto.Keccak256([]byte(fmt.Sprintf("reveal|%d|%d", req.Handle, req.Timestamp)))
	caller, err := vcrypto.RecoverAddress(digest, sig)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "bad signature", err.Error())
		return
	}
	value, err := s.app.Reveal(caller, handle.Handle(req.Handle))
	if err != nil {
		respondVenueError(w, err)
		return
	}
	respondJSON(w, RevealResponse{Handle: req.Handle, Value: value})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// recoverAction authenticates an operator control request.
func (s *Server) recoverAction(op string, a OperatorAction) (common.Address, error) {
	if skew := s.clock.Now().Unix() - a.Timestamp; skew > maxActionSkew || skew < -maxActionSkew {
		return common.Address{}, errors.New("stale timestamp")
	}
	sig, err := hexField(a.Signature)
	if err != nil {
		return common.Address{}, err
	}
	digest := ethcrypto.Keccak256([]byte(fmt.Sprintf("%s|%d", op, a.Timestamp)))
	return vcrypto.RecoverAddress(digest, sig)
}

// ActionDigest is what an operator signs to authorize a control request.
// Exported for clients and tests.
func ActionDigest(op string, timestamp int64) []byte {
	return ethcrypto.Keccak256([]byte(fmt.Sprintf("%s|%d", op, timestamp)))
}

func decodeSealedOrder(req *SubmitOrderRequest) (*venue.SealedOrder, *vcrypto.OrderSubmission, error) {
	fields := [3]SealedField{req.Amount, req.TargetPrice, req.Instrument}
	var cts [3]fhe.Ciphertext
	var proofs [3][]byte
	for i, f := range fields {
		blob, err := hexField(f.Blob)
		if err != nil {
			return nil, nil, fmt.Errorf("field %d blob: %w", i, err)
		}
		proof, err := hexField(f.Proof)
		if err != nil {
			return nil, nil, fmt.Errorf("field %d proof: %w", i, err)
		}
		cts[i] = fhe.Ciphertext{Width: fhe.Width(f.Width), Blob: blob}
		proofs[i] = proof
	}

	order := &venue.SealedOrder{
		Amount:          cts[0],
		TargetPrice:     cts[1],
		Instrument:      cts[2],
		AmountProof:     proofs[0],
		PriceProof:      proofs[1],
		InstrumentProof: proofs[2],
	}
	sub := &vcrypto.OrderSubmission{
		Trader:   common.HexToAddress(req.Trader),
		Nonce:    new(big.Int).SetUint64(req.Nonce),
		Deadline: big.NewInt(req.Deadline),
	}
	copy(sub.AmountHash[:], ethcrypto.Keccak256(cts[0].Blob))
	copy(sub.PriceHash[:], ethcrypto.Keccak256(cts[1].Blob))
	copy(sub.InstrumentHash[:], ethcrypto.Keccak256(cts[2].Blob))
	return order, sub, nil
}

func pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := mux.Vars(r)["address"]
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func pathSessionID(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id", err.Error())
		return 0, false
	}
	return uint32(id), true
}

func hexField(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// respondVenueError maps the venue error taxonomy onto HTTP statuses. The
// wrapped sentinel decides; messages pass through unchanged since they never
// contain plaintext.
func respondVenueError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrAlreadyRegistered),
		errors.Is(err, core.ErrSessionActive),
		errors.Is(err, core.ErrSessionNotLive),
		errors.Is(err, core.ErrTooEarly):
		status = http.StatusConflict
	case errors.Is(err, core.ErrNotRegistered),
		errors.Is(err, core.ErrNoActiveSession):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidInstrument):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotOperator),
		errors.Is(err, core.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrProofInvalid):
		status = http.StatusUnauthorized
	}
	respondError(w, status, "operation rejected", err.Error())
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
