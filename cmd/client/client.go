package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bourse/internal/common"
	bourseNet "bourse/internal/net"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// CLI parameter parsing.
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	action := flag.String("action", "place", "Action to perform: ['place', 'trades', 'prices', 'orders']")

	// Order parameters.
	ticker := flag.String("ticker", "AAPL", "Ticker symbol (max 9 chars)")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	price := flag.Uint64("price", 100, "Limit price")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	flag.Parse()

	side, err := common.ParseSide(*sideStr)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -side")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := bourseNet.Dial(ctx, *serverAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer client.Close()
	fmt.Printf("Connected to %s\n", *serverAddr)

	switch strings.ToLower(*action) {
	case "place":
		for _, q := range parseQuantities(*qtyStr) {
			reports, err := client.PlaceOrder(side, *ticker, *price, q)
			if err != nil {
				log.Error().Err(err).Uint64("quantity", q).Msg("failed to place order")
				continue
			}
			fmt.Printf("-> %s %s %d @ %d\n", strings.ToUpper(side.String()), *ticker, q, *price)
			printReports(reports)
		}

	case "trades":
		printReply(client.TradeHistory())

	case "prices":
		printReply(client.Prices())

	case "orders":
		printReply(client.PendingOrders(side))

	default:
		log.Fatal().Str("action", *action).Msg("unknown action")
	}
}

// parseQuantities splits a comma-separated string into a slice of uint64.
func parseQuantities(input string) []uint64 {
	var result []uint64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil && val > 0 {
			result = append(result, val)
		} else {
			log.Warn().Str("quantity", p).Msg("invalid quantity, skipping")
		}
	}
	return result
}

func printReply(reports []bourseNet.Report, err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("request failed")
	}
	printReports(reports)
}

func printReports(reports []bourseNet.Report) {
	for _, r := range reports {
		side := strings.ToUpper(r.Side.String())
		switch r.Type {
		case bourseNet.ExecutionReport:
			fmt.Printf("[EXECUTION] %s %s | Qty: %d | Price: %d | ID: %s\n", side, r.Symbol, r.Quantity, r.Price, r.ID)
		case bourseNet.RestingReport:
			fmt.Printf("[RESTING] %s %s | Qty: %d | Price: %d | ID: %s\n", side, r.Symbol, r.Quantity, r.Price, r.ID)
		case bourseNet.TradeReport:
			fmt.Printf("[TRADE] %s %s | Qty: %d | Price: %d | %s\n", side, r.Symbol, r.Quantity, r.Price, r.Time().Format(time.DateTime))
		case bourseNet.PriceReport:
			fmt.Printf("[PRICE] %s | Price: %d\n", r.Symbol, r.Price)
		case bourseNet.OrderReport:
			fmt.Printf("[ORDER] %s %s | Qty: %d | Price: %d | %s\n", side, r.Symbol, r.Quantity, r.Price, r.Time().Format(time.DateTime))
		case bourseNet.ErrorReport:
			fmt.Printf("[SERVER ERROR] %s\n", r.Err)
		case bourseNet.EndReport:
		}
	}
}
