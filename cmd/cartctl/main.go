// Command cartctl drives a shopper's cart from the terminal: a guest cart kept
// in local storage until sign-in, then the remote cart of the signed-in user.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/aquavo/fishweb-cart/internal/cartstore"
	"github.com/aquavo/fishweb-cart/internal/config"
	"github.com/aquavo/fishweb-cart/internal/localstore"
	"github.com/aquavo/fishweb-cart/internal/logger"
	"github.com/aquavo/fishweb-cart/internal/notify"
	"github.com/aquavo/fishweb-cart/internal/remote"
	"github.com/aquavo/fishweb-cart/internal/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// sessionKey holds the signed-in session token in the same backend as the guest cart.
const sessionKey = "session"

const usage = `usage: cartctl [-config file] <command>

commands:
  show                     print the cart
  add <productId> [qty]    add a product (default qty 1)
  remove <id>              remove a line
  update <id> <qty>        set a line's quantity (0 removes it)
  clear                    empty the cart
  login <token>            sign in and merge the guest cart
  logout                   sign out and return to the guest cart
`

func main() {
	configPath := flag.String("config", "", "YAML config file (overrides CART_CONFIG)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if *configPath != "" {
		_ = os.Setenv("CART_CONFIG", *configPath)
	}
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, "cartctl")

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeBackend()

	client, err := remote.NewClient(remote.Config{BaseURL: cfg.BaseURL, Timeout: cfg.RequestTimeout}, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, backend: backend, client: client, out: os.Stdout, logger: log}
	if err := a.run(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "cartctl:", err)
		stop()
		closeBackend()
		os.Exit(1)
	}
}

func openBackend(cfg *config.ClientConfig) (localstore.Backend, func(), error) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return localstore.NewRedisBackend(client, cfg.RedisNamespace), func() { _ = client.Close() }, nil
	}
	backend, err := localstore.NewFileBackend(cfg.StoreDir)
	if err != nil {
		return nil, nil, err
	}
	return backend, func() {}, nil
}

type app struct {
	cfg     *config.ClientConfig
	backend localstore.Backend
	client  *remote.Client
	out     io.Writer
	logger  *slog.Logger
}

var errUsage = errors.New("invalid arguments, run cartctl -h")

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "login":
		if len(args) != 1 {
			return errUsage
		}
		if _, err := actorFromToken(args[0]); err != nil {
			return err
		}
		if err := a.backend.Set(ctx, sessionKey, []byte(args[0])); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	case "logout":
		if err := a.backend.Remove(ctx, sessionKey); err != nil && !errors.Is(err, localstore.ErrNotFound) {
			return fmt.Errorf("remove session: %w", err)
		}
		a.client.ClearSession()
	}

	actor, err := a.currentActor(ctx)
	if err != nil {
		return err
	}
	if actor != nil {
		a.client.SetSessionToken(actor.Token)
	}

	notices := &notify.Recorder{}
	store := cartstore.New(cartstore.Config{
		StorageKey:       a.cfg.StorageKey,
		MergeConcurrency: a.cfg.MergeConcurrency,
	}, a.backend, a.client, session.NewHolder(actor), notify.Fanout{notices, notify.NewLogNotifier(a.logger)}, a.logger)

	err = store.Init(ctx)
	if err == nil {
		err = a.apply(ctx, store, cmd, args)
	}

	a.printNotices(notices)
	if errors.Is(err, errUsage) {
		return err
	}
	a.printCart(store.Snapshot())
	return err
}

func (a *app) apply(ctx context.Context, store *cartstore.Store, cmd string, args []string) error {
	switch cmd {
	case "show", "login", "logout":
		if len(args) != 0 && cmd == "show" {
			return errUsage
		}
		return nil
	case "add":
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		qty := 1
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return errUsage
			}
			qty = n
		}
		p, err := a.client.Product(ctx, args[0])
		if err != nil {
			return fmt.Errorf("look up product %s: %w", args[0], err)
		}
		return store.AddItem(ctx, p, qty)
	case "remove":
		if len(args) != 1 {
			return errUsage
		}
		return store.RemoveItem(ctx, args[0])
	case "update":
		if len(args) != 2 {
			return errUsage
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return errUsage
		}
		return store.UpdateQuantity(ctx, args[0], qty)
	case "clear":
		if len(args) != 0 {
			return errUsage
		}
		return store.ClearCart(ctx)
	default:
		return errUsage
	}
}

func (a *app) currentActor(ctx context.Context) (*session.Actor, error) {
	token, err := a.backend.Get(ctx, sessionKey)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return actorFromToken(string(token))
}

// actorFromToken reads the user id from the token payload. The server verifies
// the signature on every request.
func actorFromToken(token string) (*session.Actor, error) {
	var claims struct {
		UserID string `json:"user_id"`
		jwt.RegisteredClaims
	}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if claims.UserID == "" {
		return nil, errors.New("invalid session token: no user_id claim")
	}
	return &session.Actor{UserID: claims.UserID, Token: token}, nil
}

func (a *app) printNotices(r *notify.Recorder) {
	for _, n := range r.Notices() {
		fmt.Fprintf(a.out, "[%s] %s: %s\n", n.Level, n.Title, n.Message)
	}
}

func (a *app) printCart(v cartstore.View) {
	fmt.Fprintf(a.out, "cart (%s)\n", v.State)
	if len(v.Items) == 0 {
		fmt.Fprintln(a.out, "  empty")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, item := range v.Items {
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%.0f\t%.0f\n", item.ID, item.Name, item.Quantity, item.Price, item.Price*float64(item.Quantity))
	}
	_ = tw.Flush()
	fmt.Fprintf(a.out, "total: %d items, %.0f\n", v.TotalItems, v.TotalPrice)
}
