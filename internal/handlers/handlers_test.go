package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"route-recon/internal/catalog"
	"route-recon/internal/models"
	"route-recon/internal/repositories"
	"route-recon/internal/services"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New("SAR", nil, []catalog.Category{
		{Name: "sunflower", Products: []catalog.Product{
			{Code: "4402", Name: "200g Pack", Units: []string{"Bag", "Bundle"}, Conversions: map[string]float64{"Bag": 1, "Bundle": 5}, Price: 58},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func newRPCHandler(t *testing.T, notifier services.Notifier) *RPCHandler {
	t.Helper()
	store := repositories.NewMemoryStore()
	lockReg := services.NewMemoryLockRegistry()
	locks := services.NewLockService(lockReg, time.Minute, notifier)
	presence := services.NewPresenceService(services.NewMemoryPresenceRegistry(), lockReg, time.Minute)
	inventory := services.NewInventoryService(store, testCatalog(t), nil, notifier)
	cash := services.NewCashService(store, nil, notifier)
	realtime := services.NewRealtimeService(store, locks)
	return NewRPCHandler(presence, locks, inventory, cash, realtime)
}

func exec(t *testing.T, h *RPCHandler, body string) (int, models.RawEnvelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Exec(rec, httptest.NewRequest(http.MethodPost, "/api/exec", strings.NewReader(body)))

	var env models.RawEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("bad envelope %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestExecMalformedJSON(t *testing.T) {
	code, env := exec(t, newRPCHandler(t, nil), `{"action":`)
	if code != http.StatusBadRequest || env.Status != models.StatusError {
		t.Fatalf("expected 400 error envelope, got %d %+v", code, env)
	}
}

func TestExecUnknownAction(t *testing.T) {
	code, env := exec(t, newRPCHandler(t, nil), `{"action":"dropTables"}`)
	if code != http.StatusOK || env.Status != models.StatusError {
		t.Fatalf("expected 200 error envelope, got %d %+v", code, env)
	}
	if !strings.Contains(env.Message, "dropTables") {
		t.Fatalf("message should name the action: %q", env.Message)
	}
}

func TestExecValidationError(t *testing.T) {
	code, env := exec(t, newRPCHandler(t, nil), `{"action":"saveInventoryData","route":"","date":"2024-06-15"}`)
	if code != http.StatusOK || env.Status != models.StatusError {
		t.Fatalf("expected 200 error envelope, got %d %+v", code, env)
	}
}

func TestExecLockConflict(t *testing.T) {
	h := newRPCHandler(t, nil)

	_, env := exec(t, h, `{"action":"lockItem","route":"R1","itemCode":"4402","userId":"a","userName":"Ali"}`)
	if env.Status != models.StatusSuccess {
		t.Fatalf("first lock should succeed: %+v", env)
	}

	code, env := exec(t, h, `{"action":"lockItem","route":"R1","itemCode":"4402","userId":"b","userName":"Badr"}`)
	if code != http.StatusOK || env.Status != models.StatusError {
		t.Fatalf("second lock should be denied, got %d %+v", code, env)
	}
	var denied models.LockResponse
	if err := json.Unmarshal(env.Data, &denied); err != nil {
		t.Fatal(err)
	}
	if denied.Success || denied.HeldBy == nil || denied.HeldBy.UserID != "a" {
		t.Fatalf("expected holder a, got %+v", denied)
	}

	_, env = exec(t, h, `{"action":"getActiveUsers"}`)
	if env.Status != models.StatusSuccess {
		t.Fatalf("getActiveUsers failed: %+v", env)
	}

	_, env = exec(t, h, `{"action":"unlockItem","route":"R1","itemCode":"4402","userId":"a"}`)
	if env.Status != models.StatusSuccess {
		t.Fatalf("unlock failed: %+v", env)
	}
	_, env = exec(t, h, `{"action":"lockItem","route":"R1","itemCode":"4402","userId":"b","userName":"Badr"}`)
	if env.Status != models.StatusSuccess {
		t.Fatalf("lock after release should succeed: %+v", env)
	}
}

func TestExecSaveAndPoll(t *testing.T) {
	h := newRPCHandler(t, nil)

	_, env := exec(t, h, `{"action":"heartbeat","userId":"a","userName":"Ali","route":"R1","module":"inventory"}`)
	var hb models.HeartbeatResponse
	json.Unmarshal(env.Data, &hb)
	if env.Status != models.StatusSuccess || hb.ActiveUsers != 1 {
		t.Fatalf("heartbeat: %+v", env)
	}

	_, env = exec(t, h, `{"action":"saveInventoryData","route":"R1","date":"2024-06-15","userId":"a",
		"items":[{"code":"4402","physical":2,"physUnit":"Bundle","system":12,"sysUnit":"Bag"}]}`)
	var saved models.SaveResult
	json.Unmarshal(env.Data, &saved)
	if env.Status != models.StatusSuccess || !saved.Saved || saved.ServerTimestamp != 1 {
		t.Fatalf("save: %+v", env)
	}

	_, env = exec(t, h, `{"action":"getInventoryData","route":"R1","date":"2024-06-15"}`)
	var rec models.InventoryRecord
	json.Unmarshal(env.Data, &rec)
	if len(rec.Items) != 1 || rec.Items[0].Difference != -2 || rec.Items[0].Name != "200g Pack" {
		t.Fatalf("unexpected record %+v", rec)
	}

	_, env = exec(t, h, `{"action":"getRealTimeData","route":"R1","date":"2024-06-15","timestamp":0}`)
	var rt models.RealTimeData
	json.Unmarshal(env.Data, &rt)
	if len(rt.Updates) != 1 || rt.ServerTimestamp != 1 || rt.Updates[0].Type != models.UpdateRoute {
		t.Fatalf("unexpected poll %+v", rt)
	}

	_, env = exec(t, h, `{"action":"getCashReconciliationData","route":"R1","date":"2024-06-15"}`)
	if env.Status != models.StatusSuccess || string(env.Data) != "null" {
		t.Fatalf("expected null cash record, got %+v", env)
	}
}

func TestLiveHandlerBroadcastsActivity(t *testing.T) {
	live := NewLiveHandler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go live.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(live.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for live.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h := newRPCHandler(t, live)
	exec(t, h, `{"action":"lockItem","route":"R1","itemCode":"4402","userId":"a","userName":"Ali"}`)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Activity
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Type != models.ActivityLocked || got.ItemCode != "4402" || got.UserName != "Ali" {
		t.Fatalf("unexpected activity %+v", got)
	}
}

func TestProxyForwardsBody(t *testing.T) {
	var seen string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		seen = buf.String()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"activeUsers":3}}`))
	}))
	defer upstream.Close()

	p := NewProxyHandler(upstream.URL, time.Minute)
	rec := httptest.NewRecorder()
	body := `{"action":"heartbeat","userId":"a"}`
	p.Forward(rec, httptest.NewRequest(http.MethodPost, "/api/exec", strings.NewReader(body)))

	if seen != body {
		t.Fatalf("upstream saw %q", seen)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"activeUsers":3`) {
		t.Fatalf("unexpected proxy response %d %s", rec.Code, rec.Body.String())
	}
}

func TestProxyUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	p := NewProxyHandler(url, time.Minute)
	rec := httptest.NewRecorder()
	p.Forward(rec, httptest.NewRequest(http.MethodPost, "/api/exec", strings.NewReader(`{"action":"heartbeat"}`)))

	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), `"status":"error"`) {
		t.Fatalf("expected 500 error envelope, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestReportDailyFormats(t *testing.T) {
	store := repositories.NewMemoryStore()
	cat := testCatalog(t)
	inv := services.NewInventoryService(store, cat, nil, nil)
	inv.Save(context.Background(), &models.SaveInventoryRequest{
		Route: "R1", Date: "2024-06-15", UserID: "a", UserName: "Ali",
		Items: []models.InventoryItem{{Code: "4402", Physical: 3, PhysUnit: "Bag", System: 3, SysUnit: "Bag"}},
	})
	h := NewReportHandler(services.NewReportService(store, store, store, cat), nil)

	cases := []struct {
		format string
		prefix string
	}{
		{"pdf", "%PDF"},
		{"xlsx", "PK"},
		{"json", "{"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.Daily(rec, httptest.NewRequest(http.MethodGet, "/api/reports/daily?route=R1&date=2024-06-15&format="+tc.format, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d %s", tc.format, rec.Code, rec.Body.String())
		}
		if !strings.HasPrefix(rec.Body.String(), tc.prefix) {
			t.Fatalf("%s: body does not start with %q", tc.format, tc.prefix)
		}
	}

	rec := httptest.NewRecorder()
	h.Daily(rec, httptest.NewRequest(http.MethodGet, "/api/reports/daily?route=R1&date=2024-06-15&format=csv", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for csv, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/archive?route=R1&date=2024-06-15", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with archive disabled, got %d", rec.Code)
	}
}
