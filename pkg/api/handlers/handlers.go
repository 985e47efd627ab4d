// Package handlers implements the table's HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cbodonnell/roulette/pkg/chips"
	"github.com/cbodonnell/roulette/pkg/game"
	"github.com/cbodonnell/roulette/pkg/ledger"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/state"
	"github.com/cbodonnell/roulette/pkg/table"
	"github.com/gorilla/mux"
)

// Commander runs commands on the game loop.
type Commander interface {
	Submit(ctx context.Context, cmd game.Command) (game.CommandResult, error)
}

type PlaceBetRequest struct {
	SpotID       string             `json:"spotID"`
	Denomination chips.Denomination `json:"denomination"`
	// X and Y place the bet on the spot under the point when SpotID is empty.
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

type MoveChipRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type SelectChipRequest struct {
	Denomination chips.Denomination `json:"denomination"`
}

type AddFundsRequest struct {
	Amount int `json:"amount"`
}

type BalanceResponse struct {
	Balance    int  `json:"balance"`
	TotalWager int  `json:"totalWager"`
	Locked     bool `json:"locked"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// rejections caused by the request itself rather than the table state
var badRequestReasons = map[string]bool{
	string(ledger.ReasonUnknownSpot):         true,
	string(ledger.ReasonInvalidDenomination): true,
	string(ledger.ReasonInvalidAmount):       true,
}

func HandleGetState(stateManager state.StateManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := stateManager.Get(r.Context())
		if err != nil {
			log.Error("failed to get table state: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to get table state")
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func HandleGetBalance(stateManager state.StateManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := stateManager.Get(r.Context())
		if err != nil {
			log.Error("failed to get table state: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to get table state")
			return
		}
		writeJSON(w, http.StatusOK, BalanceResponse{Balance: s.Balance, TotalWager: s.TotalWager, Locked: s.Locked})
	}
}

func HandleAddFunds(commander Commander) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[AddFundsRequest](r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		submit(w, r, commander, game.Command{Type: game.CommandAddFunds, Amount: req.Amount})
	}
}

func HandlePlaceBet(commander Commander, layout *table.Layout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[PlaceBetRequest](r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		spotID := req.SpotID
		if spotID == "" {
			if req.X == nil || req.Y == nil {
				writeError(w, http.StatusBadRequest, "spotID or x and y are required")
				return
			}
			spot := layout.SpotAt(*req.X, *req.Y)
			if spot == nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("no spot at (%v, %v)", *req.X, *req.Y))
				return
			}
			spotID = spot.ID
		}
		submit(w, r, commander, game.Command{Type: game.CommandPlaceBet, SpotID: spotID, Denomination: req.Denomination})
	}
}

func HandleRemoveBet(commander Commander) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spotID := mux.Vars(r)["spotID"]
		submit(w, r, commander, game.Command{Type: game.CommandRemoveBet, SpotID: spotID})
	}
}

func HandleCancelBets(commander Commander) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		submit(w, r, commander, game.Command{Type: game.CommandCancelBets})
	}
}

func HandleMoveChip(commander Commander) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[MoveChipRequest](r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.From == "" || req.To == "" {
			writeError(w, http.StatusBadRequest, "from and to are required")
			return
		}
		submit(w, r, commander, game.Command{Type: game.CommandMoveChip, SpotID: req.From, ToSpotID: req.To})
	}
}

func HandleSelectChip(commander Commander) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[SelectChipRequest](r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		submit(w, r, commander, game.Command{Type: game.CommandSelectChip, Denomination: req.Denomination})
	}
}

func HandleSpin(commander Commander) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		submit(w, r, commander, game.Command{Type: game.CommandSpin})
	}
}

func HandleGetHistory(commander Commander) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := run(w, r, commander, game.Command{Type: game.CommandHistory})
		if !ok {
			return
		}
		history := result.History
		if limit := r.URL.Query().Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			if n < len(history) {
				history = history[len(history)-n:]
			}
		}
		writeJSON(w, http.StatusOK, history)
	}
}

func HandleGetStats(commander Commander) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := run(w, r, commander, game.Command{Type: game.CommandStats})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, result.Stats)
	}
}

func HandleGetLayout(layout *table.Layout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Has("x") || q.Has("y") {
			x, errX := strconv.ParseFloat(q.Get("x"), 64)
			y, errY := strconv.ParseFloat(q.Get("y"), 64)
			if errX != nil || errY != nil {
				writeError(w, http.StatusBadRequest, "x and y must be numbers")
				return
			}
			spot := layout.SpotAt(x, y)
			if spot == nil {
				writeError(w, http.StatusNotFound, "no spot at point")
				return
			}
			writeJSON(w, http.StatusOK, spot)
			return
		}
		writeJSON(w, http.StatusOK, layout.Spots())
	}
}

// submit runs cmd and writes its result.
func submit(w http.ResponseWriter, r *http.Request, commander Commander, cmd game.Command) {
	result, ok := run(w, r, commander, cmd)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// run submits cmd and writes the error response when it fails or is rejected.
func run(w http.ResponseWriter, r *http.Request, commander Commander, cmd game.Command) (game.CommandResult, bool) {
	result, err := commander.Submit(r.Context(), cmd)
	if err != nil {
		if errors.Is(err, game.ErrStopped) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return result, false
		}
		log.Error("failed to submit %s command: %v", cmd.Type, err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to submit %s command", cmd.Type))
		return result, false
	}
	if !result.Accepted {
		status := http.StatusConflict
		if badRequestReasons[result.Reason] {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, result)
		return result, false
	}
	return result, true
}

func decode[T any](body io.Reader) (T, error) {
	var payload T
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return payload, fmt.Errorf("failed to decode request body: %v", err)
	}
	return payload, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
