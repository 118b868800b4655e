package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"brokerdesk/pkg/brokerdesk"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: brokerdesk-cli <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                   Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  account                   Show account information\n")
		fmt.Fprintf(os.Stderr, "  positions                 List open positions\n")
		fmt.Fprintf(os.Stderr, "  portfolio                 Show the portfolio summary\n")
		fmt.Fprintf(os.Stderr, "  read <uri>                Print a resource, e.g. market://AAPL/quote\n")
		fmt.Fprintf(os.Stderr, "  buy|sell <symbol> <qty>   Place a day market order\n")
		fmt.Fprintf(os.Stderr, "  cancel <order-id>         Cancel an open order\n")
		fmt.Fprintf(os.Stderr, "  close <symbol>            Close a whole position\n")
		fmt.Fprintf(os.Stderr, "\nThe server address is read from $BROKERDESK_URL (default http://127.0.0.1:8080).\n")
	}

	os.Exit(realMain(os.Args[1:]))
}

// realMain runs one command and returns the process exit code.
func realMain(argv []string) int {
	if len(argv) < 1 {
		flag.Usage()
		return 1
	}

	cmd, args := argv[0], argv[1:]
	if cmd == "version" {
		fmt.Printf("brokerdesk-cli %s\n", version)
		return 0
	}

	baseURL := "http://127.0.0.1:8080"
	if u := os.Getenv("BROKERDESK_URL"); u != "" {
		baseURL = u
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := brokerdesk.NewClient(baseURL)
	if err := c.Connect(ctx); err != nil {
		return fail(err)
	}
	defer c.Close()

	out, err := run(ctx, c, cmd, args)
	if err != nil {
		return fail(err)
	}
	fmt.Println(strings.TrimRight(out, "\n"))
	return 0
}

func run(ctx context.Context, c *brokerdesk.Client, cmd string, args []string) (string, error) {
	switch cmd {
	case "account":
		return c.CallTool(ctx, "get_account_info", nil)

	case "positions":
		return c.CallTool(ctx, "get_positions", nil)

	case "portfolio":
		return c.PortfolioSummary(ctx)

	case "read":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: read <uri>")
		}
		body, err := c.ReadRaw(ctx, args[0])
		return string(body), err

	case "buy", "sell":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: %s <symbol> <qty>", cmd)
		}
		qty, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return "", fmt.Errorf("invalid quantity %q", args[1])
		}
		return c.SubmitMarketOrder(ctx, args[0], qty, cmd)

	case "cancel":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: cancel <order-id>")
		}
		return c.CancelOrder(ctx, args[0])

	case "close":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: close <symbol>")
		}
		return c.ClosePosition(ctx, args[0])

	default:
		flag.Usage()
		return "", fmt.Errorf("unknown command: %s", cmd)
	}
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "brokerdesk-cli: %v\n", err)
	return 1
}
