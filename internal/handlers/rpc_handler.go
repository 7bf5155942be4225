package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"route-recon/internal/metrics"
	"route-recon/internal/models"
	"route-recon/internal/services"
	"route-recon/pkg/utils"
)

const maxRequestBody = 5 << 20

// RPCHandler serves the single action-multiplexed endpoint used by data-entry clients.
type RPCHandler struct {
	presence  *services.PresenceService
	locks     *services.LockService
	inventory *services.InventoryService
	cash      *services.CashService
	realtime  *services.RealtimeService
}

func NewRPCHandler(
	presence *services.PresenceService,
	locks *services.LockService,
	inventory *services.InventoryService,
	cash *services.CashService,
	realtime *services.RealtimeService,
) *RPCHandler {
	return &RPCHandler{
		presence:  presence,
		locks:     locks,
		inventory: inventory,
		cash:      cash,
		realtime:  realtime,
	}
}

// call decodes the body into Req and runs fn with it.
func call[Req any, Resp any](ctx context.Context, body []byte, fn func(context.Context, *Req) (Resp, error)) (interface{}, error) {
	var req Req
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	return fn(ctx, &req)
}

// Exec handles POST /api/exec
func (h *RPCHandler) Exec(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		utils.JSON(w, http.StatusBadRequest, models.Envelope{Status: models.StatusError, Message: "Invalid request body"})
		return
	}

	var header models.ActionHeader
	if err := json.Unmarshal(body, &header); err != nil {
		metrics.RPCActionsTotal.WithLabelValues("invalid", models.StatusError).Inc()
		utils.JSON(w, http.StatusBadRequest, models.Envelope{Status: models.StatusError, Message: "Invalid JSON"})
		return
	}

	ctx := r.Context()
	var data interface{}
	switch header.Action {
	case models.ActionHeartbeat:
		data, err = call(ctx, body, h.presence.Heartbeat)
	case models.ActionGetActiveUsers:
		data, err = call(ctx, body, func(ctx context.Context, _ *struct{}) (*models.ActiveUsersResponse, error) {
			return h.presence.ActiveUsers(ctx)
		})
	case models.ActionLockItem:
		data, err = call(ctx, body, h.locks.Acquire)
	case models.ActionUnlockItem:
		data, err = call(ctx, body, h.locks.Release)
	case models.ActionGetRealTimeData:
		data, err = call(ctx, body, h.realtime.GetRealTimeData)
	case models.ActionSaveInventory:
		data, err = call(ctx, body, h.inventory.Save)
	case models.ActionGetInventory:
		data, err = call(ctx, body, h.inventory.Get)
	case models.ActionCalculateSales:
		data, err = call(ctx, body, h.inventory.CalculateSales)
	case models.ActionSaveCash:
		data, err = call(ctx, body, h.cash.Save)
	case models.ActionGetCash:
		data, err = call(ctx, body, h.cash.Get)
	default:
		metrics.RPCActionsTotal.WithLabelValues("unknown", models.StatusError).Inc()
		utils.JSON(w, http.StatusOK, models.Envelope{
			Status:  models.StatusError,
			Message: fmt.Sprintf("Unknown action: %q", header.Action),
		})
		return
	}

	if err != nil {
		if !errors.Is(err, services.ErrValidation) {
			log.Printf("[RPC] %s failed: %v", header.Action, err)
		}
		metrics.RPCActionsTotal.WithLabelValues(header.Action, models.StatusError).Inc()
		utils.JSON(w, http.StatusOK, models.Envelope{Status: models.StatusError, Message: err.Error()})
		return
	}

	// A denied lock is reported as an error envelope that still carries the holder.
	if lock, ok := data.(*models.LockResponse); ok && !lock.Success {
		metrics.RPCActionsTotal.WithLabelValues(header.Action, models.StatusError).Inc()
		msg := "Item is locked by another user"
		if lock.HeldBy != nil && lock.HeldBy.UserName != "" {
			msg = "Item is locked by " + lock.HeldBy.UserName
		}
		utils.JSON(w, http.StatusOK, models.Envelope{Status: models.StatusError, Data: lock, Message: msg})
		return
	}

	metrics.RPCActionsTotal.WithLabelValues(header.Action, models.StatusSuccess).Inc()
	utils.JSON(w, http.StatusOK, models.Envelope{Status: models.StatusSuccess, Data: data})
}
