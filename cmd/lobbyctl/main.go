// cmd/lobbyctl/main.go
//
// lobbyctl runs one lobby context per invocation against the configured
// storage, so several shells behave like several tabs on the same profile.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/jason-s-yu/wordhex/internal/app"
	"github.com/jason-s-yu/wordhex/internal/config"
	"github.com/jason-s-yu/wordhex/internal/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

const usage = `usage: lobbyctl <command> [args]

commands:
  profile [name]             show or rename the local player profile
  create                     create a lobby hosted by the local player
  ensure <code>              get or create a lobby
  join <code> [name]         join a lobby as the local player
  ready <code> [true|false]  toggle or force the local player's ready flag
  score <code> <delta>       adjust the local player's score
  rename <code> <name>       rename the local player in a lobby
  status <code> <status>     set a lobby's status
  get <code>                 print one lobby
  list                       print every lobby
  defaults                   print the settings new lobbies start with
  code                       draw a suggested lobby code
  watch [code]               stream lobby (or listing) snapshots until interrupted
`

func main() {
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		logger.Fatalf("failed to open lobby context: %v", err)
	}
	defer a.Close()

	if err := run(ctx, a, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		a.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, args []string) error {
	cmd, args := args[0], args[1:]
	lobbies := a.Lobbies
	actor := a.Actor(ctx)

	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected %d argument(s)\n\n%s", cmd, n, usage)
		}
		return nil
	}

	switch cmd {
	case "profile":
		if len(args) > 0 {
			return printJSON(a.Profiles.Update(ctx, models.ProfilePatch{Name: &args[0]}))
		}
		return printJSON(a.Profiles.Ensure(ctx))

	case "create":
		l, err := lobbies.CreateLobby(ctx, models.LobbySeed{HostID: actor.ID, HostName: actor.Name})
		if err != nil {
			return err
		}
		return printJSON(l)

	case "ensure":
		if err := need(1); err != nil {
			return err
		}
		l, _ := lobbies.EnsureLobby(ctx, args[0], models.LobbySeed{})
		return printJSON(l)

	case "join":
		if err := need(1); err != nil {
			return err
		}
		name := actor.Name
		if len(args) > 1 {
			name = args[1]
		}
		return printResult(lobbies.JoinLobby(ctx, args[0], models.NewPlayerPatch(actor.ID, name), models.LobbySeed{}))

	case "ready":
		if err := need(1); err != nil {
			return err
		}
		if len(args) > 1 {
			ready, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("ready: %w", err)
			}
			return printResult(lobbies.SetPlayerReady(ctx, args[0], actor.ID, ready))
		}
		return printResult(lobbies.TogglePlayerReady(ctx, args[0], actor.ID))

	case "score":
		if err := need(2); err != nil {
			return err
		}
		delta, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("score: %w", err)
		}
		return printResult(lobbies.IncrementPlayerScore(ctx, args[0], actor.ID, delta))

	case "rename":
		if err := need(2); err != nil {
			return err
		}
		return printResult(lobbies.UpdatePlayerName(ctx, args[0], actor.ID, args[1]))

	case "status":
		if err := need(2); err != nil {
			return err
		}
		return printResult(lobbies.SetLobbyStatus(ctx, args[0], models.LobbyStatus(args[1])))

	case "get":
		if err := need(1); err != nil {
			return err
		}
		l, ok := lobbies.GetLobby(ctx, args[0])
		if !ok {
			return fmt.Errorf("lobby %s not found", args[0])
		}
		return printJSON(l)

	case "list":
		return printJSON(lobbies.ListLobbies(ctx))

	case "defaults":
		return printJSON(lobbies.Defaults())

	case "code":
		fmt.Println(lobbies.GenerateLobbyCode())
		return nil

	case "watch":
		var unsubscribe func()
		if len(args) > 0 {
			unsubscribe = lobbies.SubscribeToLobby(ctx, args[0], func(l models.Lobby) { printJSON(l) })
		} else {
			unsubscribe = lobbies.SubscribeToLobbyList(ctx, func(l []models.Lobby) { printJSON(l) })
		}
		defer unsubscribe()
		<-ctx.Done()
		return nil
	}
	return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
}

func printResult(l *models.Lobby, changed bool) error {
	if !changed {
		fmt.Fprintln(os.Stderr, "no change")
		return nil
	}
	return printJSON(l)
}

// outMu keeps watch snapshots from interleaving.
var outMu sync.Mutex

func printJSON(v any) error {
	outMu.Lock()
	defer outMu.Unlock()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
