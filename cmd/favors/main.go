// Command favors is a terminal client for the favors marketplace.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"favorsweb/internal/auth"
	"favorsweb/internal/backend"
	"favorsweb/internal/config"
	"favorsweb/internal/domain"
	"favorsweb/internal/logging"
	"favorsweb/internal/session"
	"favorsweb/internal/store/postgres"
	"favorsweb/internal/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err == nil {
		err = run(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	session *session.Manager
	client  *backend.Client
	closers []func()

	stdinLines *bufio.Reader
	outMu      sync.Mutex
}

type command struct {
	usage string
	// public commands skip restoring the stored session.
	public bool
	run    func(ctx context.Context, a *app, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"login":         {usage: "login [-user name] [-password pw]", public: true, run: cmdLogin},
		"register":      {usage: "register -email e -user name [-display name] [-password pw]", public: true, run: cmdRegister},
		"logout":        {usage: "logout", public: true, run: cmdLogout},
		"health":        {usage: "health", public: true, run: cmdHealth},
		"me":            {usage: "me", run: cmdMe},
		"feed":          {usage: "feed [-type OFFER|REQUEST] [-category C] [-page n] [-size n] [-sort s]", run: cmdFeed},
		"post":          {usage: "post create|get|update|mine|accepted ...", run: cmdPost},
		"task":          {usage: "task accept POST_ID | start TASK_ID | complete TASK_ID", run: cmdTask},
		"friends":       {usage: "friends list|requests|send|accept|decline|remove|search ...", run: cmdFriends},
		"messages":      {usage: "messages open USER_ID | send CONV_ID text... | watch CONV_ID", run: cmdMessages},
		"notifications": {usage: "notifications list | read ID | watch", run: cmdNotifications},
		"pay":           {usage: "pay -post ID -payee ID -amount N [-status SUCCEEDED|FAILED] | pay status PAYMENT_ID STATUS", run: cmdPay},
		"review":        {usage: "review -task ID -rating 1-5 [-comment text]", run: cmdReview},
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: favors <command> [args]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

func run(ctx context.Context, cfg config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stdout)
		if len(args) == 0 {
			return errors.New("missing command")
		}
		return flag.ErrHelp
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	a := &app{
		cfg:    cfg,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		logger: logging.New(stderr, cfg.LogLevel, cfg.IsProd()),
	}
	defer a.close()

	if err := a.open(ctx); err != nil {
		return err
	}
	if !cmd.public {
		if err := a.session.Init(ctx); err != nil {
			return err
		}
		if !a.session.IsAuthenticated() {
			return errors.New("not logged in; run: favors login")
		}
	}
	return cmd.run(ctx, a, args[1:])
}

// open wires the token store, session manager and backend client.
func (a *app) open(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	sealer, err := auth.NewTokenSealer([]byte(a.cfg.TokenKey))
	if err != nil {
		return err
	}

	a.session = session.NewManager(store, sealer, a.logger)
	a.client = backend.New(backend.Options{
		BaseURL:        a.cfg.BackendURL,
		HTTPClient:     &http.Client{Timeout: a.cfg.BackendTimeout},
		Tokens:         a.session,
		OnUnauthorized: a.session.HandleUnauthorized,
		Logger:         a.logger,
	})
	a.session.SetAuthAPI(a.client.Auth)
	return nil
}

func (a *app) openStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.TokenStore {
	case config.TokenStoreMemory:
		return session.NewMemoryStore(), nil
	case config.TokenStoreSQLite:
		s, err := sqlite.Open(ctx, a.cfg.TokenPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		return s, nil
	case config.TokenStorePostgres:
		pool, err := postgres.Open(ctx, a.cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		return postgres.NewSessionsStore(pool, profileName()), nil
	default:
		return session.NewFileStore(a.cfg.TokenPath)
	}
}

// profileName namespaces postgres-stored sessions per OS user.
func profileName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) currentUser() domain.User {
	u, _ := a.session.User()
	return u
}

func newFlags(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func idArg(args []string, i int, what string) (int64, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing %s", what)
	}
	return parseID(args[i])
}
