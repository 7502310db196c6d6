// Package main provides acdmctl, a command-line client for the ACDM platform API.
//
// Usage:
//
//	acdmctl [-server URL] [-caller ADDRESS] <command> [flags]
//
// Coin amounts are given in ether, token amounts in whole tokens.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"acdm-platform/internal/api"
	"acdm-platform/internal/config"
	"acdm-platform/internal/domain"
)

type command struct {
	usage string
	run   func(ctx context.Context, c *api.Client, args []string) (any, error)
}

var (
	serverURL string
	commands  map[string]command
)

func init() {
	commands = map[string]command{
		"register":     {"register -referrer ADDRESS", runRegister},
		"referrer":     {"referrer [ADDRESS]", runReferrer},
		"start-sale":   {"start-sale", runStartSale},
		"start-trade":  {"start-trade", runStartTrade},
		"buy":          {"buy -amount TOKENS -pay ETHER", runBuy},
		"approve":      {"approve -amount TOKENS", runApprove},
		"add-order":    {"add-order -amount TOKENS -price ETHER", runAddOrder},
		"remove-order": {"remove-order ID", runRemoveOrder},
		"redeem":       {"redeem -id ID -amount TOKENS -pay ETHER", runRedeem},
		"status-round": {"status-round NUMBER", runStatusRound},
		"rounds":       {"rounds", runRounds},
		"orders":       {"orders [-open]", runOrders},
		"state":        {"state", runState},
		"account":      {"account [ADDRESS]", runAccount},
		"verify":       {"verify", runVerify},
		"watch":        {"watch", nil},
	}
}

func main() {
	// Load .env file if exists
	if err := config.LoadEnv(); err != nil {
		fatalf("load .env: %v", err)
	}

	server := flag.String("server", envOr("ACDM_SERVER", "http://localhost:8080"), "API base URL")
	callerFlag := flag.String("caller", os.Getenv("ACDM_CALLER"), "Caller address sent as "+api.CallerHeader)
	timeout := flag.Duration("timeout", 30*time.Second, "Request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}
	serverURL = *server

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if name == "watch" {
		if err := watch(ctx); err != nil {
			fatalf("%v", err)
		}
		return
	}

	var caller domain.Address
	if *callerFlag != "" {
		var err error
		if caller, err = domain.ParseAddress(*callerFlag); err != nil {
			fatalf("-caller: %v", err)
		}
	}

	reqCtx, reqCancel := context.WithTimeout(ctx, *timeout)
	defer reqCancel()

	out, err := cmd.run(reqCtx, api.NewClient(serverURL, caller), flag.Args()[1:])
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			fatalf("%s: %s (%s)", name, apiErr.Msg, apiErr.Kind)
		}
		fatalf("%s: %v", name, err)
	}
	printJSON(out)
}

func runRegister(ctx context.Context, c *api.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	referrer := fs.String("referrer", "", "Referrer address")
	fs.Parse(args)

	ref, err := domain.ParseAddress(*referrer)
	if err != nil {
		return nil, fmt.Errorf("-referrer: %w", err)
	}
	return c.Register(ctx, ref)
}

func runReferrer(ctx context.Context, c *api.Client, args []string) (any, error) {
	addr, err := optionalAddress(c, args)
	if err != nil {
		return nil, err
	}
	ref, err := c.Referrer(ctx, addr)
	if err != nil {
		return nil, err
	}
	return map[string]domain.Address{"participant": addr, "referrer": ref}, nil
}

func runStartSale(ctx context.Context, c *api.Client, _ []string) (any, error) {
	return c.StartSaleRound(ctx)
}

func runStartTrade(ctx context.Context, c *api.Client, _ []string) (any, error) {
	return c.StartTradeRound(ctx)
}

func runBuy(ctx context.Context, c *api.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("buy", flag.ExitOnError)
	amount := fs.Int64("amount", 0, "Tokens to buy")
	pay := fs.String("pay", "", "Payment in ether")
	fs.Parse(args)

	payment, err := domain.ParseEther(*pay)
	if err != nil {
		return nil, fmt.Errorf("-pay: %w", err)
	}
	return c.BuyACDM(ctx, big.NewInt(*amount), payment)
}

func runApprove(ctx context.Context, c *api.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	amount := fs.Int64("amount", 0, "Tokens the platform may escrow")
	fs.Parse(args)
	return c.Approve(ctx, big.NewInt(*amount))
}

func runAddOrder(ctx context.Context, c *api.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("add-order", flag.ExitOnError)
	amount := fs.Int64("amount", 0, "Tokens to sell")
	price := fs.String("price", "", "Price per token in ether")
	fs.Parse(args)

	p, err := domain.ParseEther(*price)
	if err != nil {
		return nil, fmt.Errorf("-price: %w", err)
	}
	return c.AddOrder(ctx, big.NewInt(*amount), p)
}

func runRemoveOrder(ctx context.Context, c *api.Client, args []string) (any, error) {
	if len(args) != 1 {
		return nil, errors.New("usage: remove-order ID")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("order id: %w", err)
	}
	return c.RemoveOrder(ctx, id)
}

func runRedeem(ctx context.Context, c *api.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("redeem", flag.ExitOnError)
	id := fs.Uint64("id", 0, "Order id")
	amount := fs.Int64("amount", 0, "Tokens to buy from the order")
	pay := fs.String("pay", "", "Payment in ether")
	fs.Parse(args)

	payment, err := domain.ParseEther(*pay)
	if err != nil {
		return nil, fmt.Errorf("-pay: %w", err)
	}
	return c.RedeemOrder(ctx, *id, big.NewInt(*amount), payment)
}

func runStatusRound(ctx context.Context, c *api.Client, args []string) (any, error) {
	if len(args) != 1 {
		return nil, errors.New("usage: status-round NUMBER")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("round number: %w", err)
	}
	kind, err := c.StatusRound(ctx, n)
	if err != nil {
		return nil, err
	}
	return api.StatusRoundResponse{Number: n, Kind: kind}, nil
}

func runRounds(ctx context.Context, c *api.Client, _ []string) (any, error) {
	return c.Rounds(ctx)
}

func runOrders(ctx context.Context, c *api.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("orders", flag.ExitOnError)
	open := fs.Bool("open", false, "Only open orders")
	fs.Parse(args)
	return c.Orders(ctx, *open)
}

func runState(ctx context.Context, c *api.Client, _ []string) (any, error) {
	return c.State(ctx)
}

func runAccount(ctx context.Context, c *api.Client, args []string) (any, error) {
	addr, err := optionalAddress(c, args)
	if err != nil {
		return nil, err
	}
	return c.Account(ctx, addr)
}

func runVerify(ctx context.Context, c *api.Client, _ []string) (any, error) {
	return c.Verify(ctx)
}

// watch prints stream events as JSON lines until interrupted.
func watch(ctx context.Context) error {
	stream, err := api.DialStream(ctx, serverURL, nil)
	if err != nil {
		return err
	}
	defer stream.Close()

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-stream.Events():
			if !ok {
				return nil
			}
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
	}
}

// optionalAddress returns the single positional address or the client's caller.
func optionalAddress(c *api.Client, args []string) (domain.Address, error) {
	if len(args) == 0 {
		if c.Caller().IsZero() {
			return "", errors.New("an address argument or -caller is required")
		}
		return c.Caller(), nil
	}
	return domain.ParseAddress(args[0])
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("encode output: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: acdmctl [global flags] <command> [flags]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(os.Stderr, "\nGlobal flags:")
	flag.PrintDefaults()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
