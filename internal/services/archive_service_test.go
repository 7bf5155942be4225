package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"route-recon/internal/config"
	"route-recon/internal/models"
)

// fakeS3 accepts PutObject and answers ListObjectsV2 with what it stored.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		prefix := "/archive/" + r.URL.Query().Get("prefix")
		var sb strings.Builder
		sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><Name>archive</Name>`)
		for path, body := range f.objects {
			if strings.HasPrefix(path, prefix) {
				sb.WriteString("<Contents><Key>" + strings.TrimPrefix(path, "/archive/") + "</Key>")
				sb.WriteString("<Size>" + strconv.Itoa(len(body)) + "</Size></Contents>")
			}
		}
		sb.WriteString(`<IsTruncated>false</IsTruncated></ListBucketResult>`)
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, sb.String())
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestArchiveServiceUploadsSnapshots(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	svc, err := NewArchiveService(context.Background(), config.ArchiveConfig{
		Enabled:   true,
		Endpoint:  srv.URL,
		Region:    "auto",
		Bucket:    "archive",
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return time.UnixMilli(1718438400000) }
	svc.Start(2)

	svc.Archive("inventory", "R1", "2024-06-15", &models.SaveInventoryRequest{Route: "R1", UserID: "a"})
	svc.Stop()

	fake.mu.Lock()
	body, ok := fake.objects["/archive/inventory/R1/2024-06-15/1718438400000.json"]
	fake.mu.Unlock()
	if !ok {
		t.Fatalf("snapshot not uploaded, have %v", fake.objects)
	}

	var got models.SaveInventoryRequest
	if err := json.Unmarshal(body, &got); err != nil || got.UserID != "a" {
		t.Fatalf("bad snapshot body %s: %v", body, err)
	}

	snaps, err := svc.Snapshots(context.Background(), "inventory", "R1", "2024-06-15")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].Key != "inventory/R1/2024-06-15/1718438400000.json" || snaps[0].Size != int64(len(body)) {
		t.Fatalf("unexpected snapshots %+v", snaps)
	}
}
