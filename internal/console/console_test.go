package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"route-recon/internal/models"
	"route-recon/internal/realtime"
)

type fakeEngine struct {
	calls   []string
	focused string
	outcome realtime.LockOutcome
	err     error
}

func (f *fakeEngine) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeEngine) SelectRoute(ctx context.Context, route string) error {
	return f.record("route " + route)
}

func (f *fakeEngine) SelectDate(ctx context.Context, date string) error {
	return f.record("date " + date)
}

func (f *fakeEngine) Focus(ctx context.Context, code string) realtime.LockOutcome {
	f.record("focus " + code)
	f.focused = code
	return f.outcome
}

func (f *fakeEngine) Blur(ctx context.Context, code string) {
	f.record("blur " + code)
	f.focused = ""
}

func (f *fakeEngine) Set(ctx context.Context, code, field, value string) error {
	return f.record("set " + code + " " + field + "=" + value)
}

func (f *fakeEngine) Save(ctx context.Context) error { return f.record("save") }
func (f *fakeEngine) Load(ctx context.Context) error { return f.record("load") }

func (f *fakeEngine) LoadPrevious(ctx context.Context) (int, error) {
	return 3, f.record("prev")
}

func (f *fakeEngine) FetchFromInventory(ctx context.Context) (int, error) {
	return 2, f.record("fetch")
}

func (f *fakeEngine) Summary() string { return "items 2, matched 2, shortage 0, excess 0" }

func (f *fakeEngine) Info() realtime.Info {
	return realtime.Info{
		Session: realtime.Session{Module: "inventory", Route: "R1", Date: "2024-06-15"},
		Status:  realtime.StatusOfflinePending,
		Pending: 1,
		Focused: f.focused,
	}
}

func (f *fakeEngine) Users() []models.ActiveUser {
	return []models.ActiveUser{{UserID: "u1", UserName: "Alice", Module: "inventory", Route: "R1"}}
}

func TestExecDispatchesCommands(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	var out bytes.Buffer
	c := New(eng, nil, &out)

	for _, line := range []string{
		"route Al Hasa",
		"date 2024-06-15",
		"focus 4402",
		"set 4402 physical 12",
		"unit 4402 system Bundle",
		"blur",
		"set 4402 transfer",
		"save",
		"load",
		"",
	} {
		if err := c.Exec(ctx, line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}

	want := []string{
		"route Al Hasa",
		"date 2024-06-15",
		"focus 4402",
		"set 4402 physical=12",
		"set 4402 sysUnit=Bundle",
		"blur 4402",
		"set 4402 transfer=",
		"save",
		"load",
	}
	if strings.Join(eng.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected calls:\n got %q\nwant %q", eng.calls, want)
	}
	if !strings.Contains(out.String(), "editing 4402") {
		t.Fatalf("missing focus output: %q", out.String())
	}
}

func TestExecReportsUsageAndEngineErrors(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	c := New(eng, nil, &bytes.Buffer{})

	for _, line := range []string{"route", "date", "focus", "set 4402", "unit 4402 quantity Bag", "blur", "bogus"} {
		if err := c.Exec(ctx, line); err == nil {
			t.Fatalf("%q: expected an error", line)
		}
	}

	eng.err = errors.New("Please select a route first!")
	if err := c.Exec(ctx, "save"); err == nil || err.Error() != "Please select a route first!" {
		t.Fatalf("engine error not returned: %v", err)
	}
}

func TestExecPrintsViews(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{outcome: realtime.LockOutcome{Result: realtime.LockDenied, HeldBy: &models.LockHolder{UserName: "Bob"}}}
	var out bytes.Buffer
	c := New(eng, nil, &out)

	for _, line := range []string{"focus 1116", "prev", "fetch", "summary", "status", "users"} {
		if err := c.Exec(ctx, line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}

	for _, want := range []string{
		"1116 is being edited by Bob",
		"copied 3 item(s)",
		"filled 2 item(s)",
		"items 2, matched 2",
		"Offline - Changes pending [offline] inventory R1 2024-06-15, pending 1",
		"Alice (u1) inventory R1",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunStopsOnQuit(t *testing.T) {
	eng := &fakeEngine{}
	var out bytes.Buffer
	c := New(eng, strings.NewReader("route R1\nnope\nquit\nsave\n"), &out)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop on quit")
	}

	if len(eng.calls) != 1 || eng.calls[0] != "route R1" {
		t.Fatalf("commands after quit must not run: %q", eng.calls)
	}
	if !strings.Contains(out.String(), `unknown command "nope"`) {
		t.Fatalf("unknown command not reported: %q", out.String())
	}
}

func TestWatchPrintsEvents(t *testing.T) {
	var out bytes.Buffer
	c := New(&fakeEngine{}, nil, &out)

	events := make(chan realtime.Event, 4)
	events <- realtime.Event{Kind: realtime.EventStatus, Status: realtime.StatusSaved}
	events <- realtime.Event{Kind: realtime.EventNotification, Level: realtime.LevelInfo, Message: "Data updated by another user"}
	events <- realtime.Event{Kind: realtime.EventActiveUsers, Count: 2}
	events <- realtime.Event{Kind: realtime.EventActiveUsers, Count: 2}
	close(events)
	c.Watch(context.Background(), events)

	got := out.String()
	for _, want := range []string{"[status] Saved", "[info] Data updated by another user", "[users] 2 active"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if strings.Count(got, "[users]") != 1 {
		t.Fatalf("unchanged user count printed twice: %q", got)
	}
}
