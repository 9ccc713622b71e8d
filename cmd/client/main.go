package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/atinyakov/folio/internal/client/aggregate"
	"github.com/atinyakov/folio/internal/client/fixtures"
	"github.com/atinyakov/folio/internal/client/notify"
	"github.com/atinyakov/folio/internal/client/session"
	"github.com/atinyakov/folio/internal/client/storage"
	"github.com/atinyakov/folio/internal/client/transport"
	"github.com/atinyakov/folio/internal/logger"
	"github.com/atinyakov/folio/internal/resource"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	version   string
	buildDate string
)

// app is the wired client data-access layer.
type app struct {
	api       *transport.Dispatcher
	tokens    *storage.TokenStore
	session   *session.Session
	aggregate *aggregate.Aggregator
	feed      *notify.Feed
	channel   notify.Channel
	// local is set in mock mode so contact messages reach the feed.
	local *notify.LocalChannel
	log   *zap.Logger
}

// main parses command-line flags and dispatches to the requested command.
func main() {
	var (
		cmd       string
		baseURL   string
		caFile    string
		tokenFile string
		forceLive string
		logLevel  string
		mockMode  bool
		showVer   bool
	)

	flag.StringVar(&cmd, "cmd", "shell", "command: shell | show | login")
	flag.StringVar(&baseURL, "url", "http://localhost:8080/api", "API base URL")
	flag.StringVar(&caFile, "ca", "", "path to a CA cert for a self-signed server")
	flag.StringVar(&tokenFile, "token-file", ".folio_token", "where the session token is kept")
	flag.StringVar(&forceLive, "force-live", "", "comma-separated resources served live in mock mode")
	flag.StringVar(&logLevel, "log-level", "error", "log level")
	flag.BoolVar(&mockMode, "mock", true, "serve content from embedded fixtures")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Folio Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	lg := logger.New()
	if err := lg.Init(logLevel); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Log.Sync() }()

	a, err := newApp(baseURL, caFile, tokenFile, forceLive, mockMode, lg.Log)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case "shell":
		a.repl(ctx, os.Stdin, os.Stdout)
	case "show":
		if err := a.show(ctx, os.Stdout); err != nil {
			log.Fatal(err)
		}
	case "login":
		creds := storage.PromptCredentials(os.Stdin, os.Stdout)
		res := a.session.Login(ctx, creds.Email, creds.Password)
		fmt.Println(res.Message)
		if !res.Success {
			os.Exit(1)
		}
	default:
		log.Fatalf("unknown command: %s", cmd)
	}
}

func newApp(baseURL, caFile, tokenFile, forceLive string, mockMode bool, log *zap.Logger) (*app, error) {
	tokens, err := storage.NewTokenStore(tokenFile)
	if err != nil {
		return nil, err
	}
	routes := resource.DefaultTable()
	if err := routes.ForceLive(strings.Split(forceLive, ",")...); err != nil {
		return nil, err
	}

	client, err := storage.NewHTTPClient(caFile)
	if err != nil {
		return nil, err
	}
	nav := transport.NavigatorFunc(func(route string) {
		fmt.Printf("-> %s\n", route)
	})
	live := transport.NewLive(client, baseURL, tokens, nav, log)

	var mock transport.Transport
	if mockMode {
		fx, err := fixtures.Load()
		if err != nil {
			return nil, err
		}
		mock = transport.NewMock(fx, tokens, log)
	}
	api := transport.NewDispatcher(mock, live, transport.Options{MockMode: mockMode, Routes: routes})

	a := &app{
		api:       api,
		tokens:    tokens,
		session:   session.New(api, tokens, nav, log, transport.MockUser),
		aggregate: aggregate.New(api, log),
		feed:      notify.NewFeed(api, log),
		log:       log,
	}
	if mockMode && !routes.IsForcedLive(resource.Messages) {
		a.local = notify.NewLocalChannel(16)
		a.channel = a.local
	} else {
		socket, err := notify.SocketURL(baseURL)
		if err != nil {
			return nil, err
		}
		dialer := *websocket.DefaultDialer
		if t, ok := client.Transport.(*http.Transport); ok {
			dialer.TLSClientConfig = t.TLSClientConfig
		}
		a.channel = notify.NewWSChannel(socket, tokens, &dialer, log)
	}
	return a, nil
}
