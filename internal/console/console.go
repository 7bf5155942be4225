package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"route-recon/internal/models"
	"route-recon/internal/realtime"
)

// Engine is what the console drives.
type Engine interface {
	SelectRoute(ctx context.Context, route string) error
	SelectDate(ctx context.Context, date string) error
	Focus(ctx context.Context, code string) realtime.LockOutcome
	Blur(ctx context.Context, code string)
	Set(ctx context.Context, code, field, value string) error
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	LoadPrevious(ctx context.Context) (int, error)
	FetchFromInventory(ctx context.Context) (int, error)
	Summary() string
	Info() realtime.Info
	Users() []models.ActiveUser
}

var errQuit = errors.New("quit")

// unitColumns maps a quantity column to the field holding its unit.
var unitColumns = map[string]string{
	realtime.FieldPhysical:  realtime.FieldPhysUnit,
	realtime.FieldTransfer:  realtime.FieldTransUnit,
	realtime.FieldSystem:    realtime.FieldSysUnit,
	realtime.FieldReimburse: realtime.FieldReimbUnit,
}

const help = `commands:
  route <name>                  select route
  date <YYYY-MM-DD>             select date
  focus <code>                  start editing an item (takes its lock)
  blur [code]                   stop editing (releases the lock)
  set <code> <field> <value>    edit a field; code "cash" for cash totals and notes
  unit <code> <column> <unit>   set the unit of physical, transfer, system or reimburse
  save | load                   save to or load from the server
  prev                          copy yesterday's physical counts into system (inventory)
  fetch                         derive sales from inventory (sales)
  summary | status | users      show the form, sync state or active users
  quit`

// Console is a line based front end for the engine.
type Console struct {
	engine Engine
	in     io.Reader

	mu  sync.Mutex
	out io.Writer
}

func New(engine Engine, in io.Reader, out io.Writer) *Console {
	return &Console{engine: engine, in: in, out: out}
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Run reads commands until quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.printf("type help for commands")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.Exec(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				c.printf("error: %v", err)
			}
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		c.printf("%s", help)
	case "quit", "exit":
		return errQuit
	case "route":
		if len(args) == 0 {
			return errors.New("usage: route <name>")
		}
		return c.engine.SelectRoute(ctx, strings.Join(args, " "))
	case "date":
		if len(args) != 1 {
			return errors.New("usage: date <YYYY-MM-DD>")
		}
		return c.engine.SelectDate(ctx, args[0])
	case "focus":
		if len(args) != 1 {
			return errors.New("usage: focus <code>")
		}
		c.printLock(args[0], c.engine.Focus(ctx, args[0]))
	case "blur":
		code := c.engine.Info().Focused
		if len(args) == 1 {
			code = args[0]
		}
		if code == "" {
			return errors.New("nothing is focused")
		}
		c.engine.Blur(ctx, code)
	case "set":
		if len(args) < 2 || len(args) > 3 {
			return errors.New("usage: set <code> <field> <value>")
		}
		value := ""
		if len(args) == 3 {
			value = args[2]
		}
		return c.engine.Set(ctx, args[0], args[1], value)
	case "unit":
		if len(args) != 3 {
			return errors.New("usage: unit <code> <column> <unit>")
		}
		field, ok := unitColumns[args[1]]
		if !ok {
			return fmt.Errorf("no unit for column %q", args[1])
		}
		return c.engine.Set(ctx, args[0], field, args[2])
	case "save":
		return c.engine.Save(ctx)
	case "load":
		return c.engine.Load(ctx)
	case "prev":
		n, err := c.engine.LoadPrevious(ctx)
		if err != nil {
			return err
		}
		c.printf("copied %d item(s)", n)
	case "fetch":
		n, err := c.engine.FetchFromInventory(ctx)
		if err != nil {
			return err
		}
		c.printf("filled %d item(s)", n)
	case "summary":
		c.printf("%s", c.engine.Summary())
	case "status":
		info := c.engine.Info()
		online := "offline"
		if info.Online {
			online = "online"
		}
		c.printf("%s [%s] %s %s %s, pending %d, cursor %d",
			info.Status, online, info.Session.Module, info.Session.Route, info.Session.Date, info.Pending, info.Cursor)
	case "users":
		users := c.engine.Users()
		if len(users) == 0 {
			c.printf("no active users")
		}
		for _, u := range users {
			c.printf("%s (%s) %s %s", u.UserName, u.UserID, u.Module, u.Route)
		}
	default:
		return fmt.Errorf("unknown command %q, type help", cmd)
	}
	return nil
}

func (c *Console) printLock(code string, out realtime.LockOutcome) {
	switch out.Result {
	case realtime.LockGranted:
		c.printf("editing %s", code)
	case realtime.LockDenied:
		name := "another user"
		if out.HeldBy != nil && out.HeldBy.UserName != "" {
			name = out.HeldBy.UserName
		}
		c.printf("%s is being edited by %s", code, name)
	default:
		c.printf("editing %s without a lock: %v", code, out.Err)
	}
}

// Watch prints status changes and notifications until events is closed
// or ctx is done.
func (c *Console) Watch(ctx context.Context, events <-chan realtime.Event) {
	lastUsers := -1
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Kind {
			case realtime.EventStatus:
				c.printf("[status] %s", e.Status)
			case realtime.EventNotification:
				c.printf("[%s] %s", e.Level, e.Message)
			case realtime.EventActiveUsers:
				if e.Count != lastUsers {
					lastUsers = e.Count
					c.printf("[users] %d active", e.Count)
				}
			}
		}
	}
}
