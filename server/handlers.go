package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	contractx "github.com/openvend/vendsim/sim/contract"
	gatewayx "github.com/openvend/vendsim/sim/gateway"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	raw, err := s.models.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("model listing failed")
		respondError(w, http.StatusBadGateway, "failed to retrieve models")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	sim, err := s.orch.StartSimulation(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("start simulation failed")
		respondError(w, http.StatusInternalServerError, "failed to start simulation")
		return
	}
	respondJSON(w, http.StatusCreated, sim)
}

func (s *Server) handleStepSimulation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.orch.Advance(r.Context(), id)
	switch {
	case errors.Is(err, contractx.ErrSimulationNotFound):
		respondError(w, http.StatusNotFound, "simulation not found")
		return
	case errors.Is(err, contractx.ErrValidation):
		respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Str("simulation_id", id).Msg("simulation step failed")
		respondError(w, http.StatusInternalServerError, "simulation step failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSimulationLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entries, err := s.store.SimulationLogs(r.Context(), id, 0)
	if err != nil {
		log.Error().Err(err).Str("simulation_id", id).Msg("simulation log read failed")
		respondError(w, http.StatusInternalServerError, "failed to read simulation logs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Inventory(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("inventory read failed")
		respondError(w, http.StatusInternalServerError, "failed to read inventory")
		return
	}
	if len(items) == 0 {
		respondError(w, http.StatusNotFound, "No items found in inventory")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"inventory": items})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.store.CashBalance(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("balance read failed")
		respondError(w, http.StatusInternalServerError, "failed to read balance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	logs, err := s.store.TransactionLogs(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("transaction read failed")
		respondError(w, http.StatusInternalServerError, "failed to read transactions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"transactions": logs})
}

type purchaseRequest struct {
	Item string `json:"item"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Item) == "" {
		respondError(w, http.StatusBadRequest, "item is required")
		return
	}

	sale, err := s.executor.PurchaseItem(r.Context(), req.Item)
	switch {
	case errors.Is(err, contractx.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "Item not found")
		return
	case errors.Is(err, contractx.ErrOutOfStock):
		respondError(w, http.StatusBadRequest, "Item out of stock")
		return
	case err != nil:
		log.Error().Err(err).Str("item", req.Item).Msg("purchase failed")
		respondError(w, http.StatusInternalServerError, "purchase failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Purchase successful",
		"item":    sale.ProductName,
		"price":   sale.Price,
	})
}

// handleChat forwards the assistant reply as Server-Sent Events, one data
// line per fragment, terminated by a [DONE] sentinel.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req gatewayx.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid chat request")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	streamed := false
	_, err := s.chat.Send(r.Context(), req, func(fragment string) error {
		if !streamed {
			w.WriteHeader(http.StatusOK)
			streamed = true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", fragment); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// Headers may already be gone; all we can do mid-stream is stop.
		if !streamed {
			switch {
			case errors.Is(err, contractx.ErrValidation):
				respondError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, contractx.ErrNoAPIKey):
				respondError(w, http.StatusUnauthorized, "no api key available")
			default:
				log.Error().Err(err).Str("chat_id", req.ChatID).Msg("chat stream failed")
				respondError(w, http.StatusBadGateway, "chat completion failed")
			}
		} else {
			log.Warn().Err(err).Str("chat_id", req.ChatID).Msg("chat stream interrupted")
		}
		return
	}

	if !streamed {
		w.WriteHeader(http.StatusOK)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
