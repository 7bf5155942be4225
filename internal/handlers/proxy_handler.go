package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"route-recon/internal/cache"
	"route-recon/internal/metrics"
	"route-recon/internal/models"
	"route-recon/pkg/utils"
)

// ProxyHandler forwards RPC bodies to an upstream endpoint for clients that
// cannot reach it directly. Record reads are cached in Redis and dropped
// whenever a save for the same route/date passes through.
type ProxyHandler struct {
	upstream string
	client   *http.Client
	ttl      time.Duration
}

func NewProxyHandler(upstream string, ttl time.Duration) *ProxyHandler {
	return &ProxyHandler{
		upstream: upstream,
		client:   &http.Client{Timeout: 30 * time.Second},
		ttl:      ttl,
	}
}

type proxyRequest struct {
	Action string `json:"action"`
	Route  string `json:"route"`
	Date   string `json:"date"`
}

func proxyCacheKey(action, route, date string) string {
	return fmt.Sprintf("proxy:%s:%s:%s", action, route, date)
}

func cacheableAction(action string) bool {
	return action == models.ActionGetInventory || action == models.ActionGetCash
}

func savingAction(action string) bool {
	return action == models.ActionSaveInventory || action == models.ActionSaveCash
}

// Forward handles POST /api/exec in proxy mode
func (h *ProxyHandler) Forward(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		utils.JSON(w, http.StatusBadRequest, models.Envelope{Status: models.StatusError, Message: "Invalid request body"})
		return
	}

	var req proxyRequest
	json.Unmarshal(body, &req)

	ctx := r.Context()
	key := proxyCacheKey(req.Action, req.Route, req.Date)
	if cacheableAction(req.Action) {
		if cached, ok := cache.GetCached(ctx, key); ok {
			metrics.ProxyCacheTotal.WithLabelValues("hit").Inc()
			writeRaw(w, cached)
			return
		}
		metrics.ProxyCacheTotal.WithLabelValues("miss").Inc()
	}

	upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.upstream, bytes.NewReader(body))
	if err != nil {
		utils.JSON(w, http.StatusInternalServerError, models.Envelope{Status: models.StatusError, Message: err.Error()})
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(upstreamReq)
	if err != nil {
		log.Printf("[Proxy] Upstream %s failed: %v", req.Action, err)
		utils.JSON(w, http.StatusInternalServerError, models.Envelope{Status: models.StatusError, Message: err.Error()})
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		utils.JSON(w, http.StatusInternalServerError, models.Envelope{Status: models.StatusError, Message: err.Error()})
		return
	}

	if resp.StatusCode < 300 {
		var env models.RawEnvelope
		succeeded := json.Unmarshal(data, &env) == nil && env.Status == models.StatusSuccess
		switch {
		case succeeded && cacheableAction(req.Action):
			cache.SetCached(ctx, key, data, h.ttl)
		case succeeded && savingAction(req.Action):
			cache.InvalidatePattern(ctx, proxyCacheKey("*", req.Route, req.Date))
		}
	}

	// The upstream answers errors inside the envelope, so pass its body through as 200.
	writeRaw(w, data)
}

func writeRaw(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
