// Package console is the interactive menu front end of the simulator. It reads
// whitespace separated tokens, validates them and drives an engine.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"bourse/internal/common"
	"bourse/internal/engine"

	"github.com/rs/zerolog/log"
)

const menu = `
1. Buy
2. Sell
3. Trade History
4. View Current Prices
5. View Pending Orders
6. Exit
Enter choice: `

type Console struct {
	engine *engine.Engine
	in     *bufio.Scanner
	out    io.Writer

	tokens  chan string   // words read from in, closed when input ends
	done    chan struct{} // closed when Run returns
	readErr error         // valid once tokens is closed
}

func New(eng *engine.Engine, in io.Reader, out io.Writer) *Console {
	scanner := bufio.NewScanner(in)
	scanner.Split(bufio.ScanWords)
	return &Console{engine: eng, in: scanner, out: out}
}

// Run serves the menu until the user exits, input ends or ctx is cancelled.
// Cancellation is honoured while waiting on input.
func (c *Console) Run(ctx context.Context) error {
	c.tokens = make(chan string)
	c.done = make(chan struct{})
	defer close(c.done)
	go c.scan()

	c.printf("\t\t\t\tStock Market Simulator!!\n")
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		c.printf("%s", menu)
		token, ok := c.next(ctx)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			return c.readErr
		}

		choice, err := strconv.Atoi(token)
		if err != nil {
			c.printf("Invalid choice.\n")
			continue
		}

		switch choice {
		case 1:
			c.placeOrder(ctx, common.Buy)
		case 2:
			c.placeOrder(ctx, common.Sell)
		case 3:
			c.printTradeHistory()
		case 4:
			c.printPrices()
		case 5:
			c.printPendingOrders()
		case 6:
			return nil
		default:
			c.printf("Invalid choice.\n")
		}
	}
}

// scan feeds tokens to Run. A read blocked in the scanner outlives a
// cancelled Run until the reader returns.
func (c *Console) scan() {
	defer close(c.tokens)
	for c.in.Scan() {
		select {
		case c.tokens <- c.in.Text():
		case <-c.done:
			return
		}
	}
	c.readErr = c.in.Err()
}

func (c *Console) placeOrder(ctx context.Context, side common.Side) {
	c.printf("Enter Stock Symbol: ")
	symbol, ok := c.next(ctx)
	if !ok {
		return
	}

	c.printf("Enter Price: ")
	token, ok := c.next(ctx)
	if !ok {
		return
	}
	price, err := parsePositive(token)
	if err != nil {
		c.printf("Invalid input. %s.\n", capitalize(common.ErrInvalidPrice.Error()))
		return
	}

	c.printf("Enter Quantity: ")
	token, ok = c.next(ctx)
	if !ok {
		return
	}
	quantity, err := parsePositive(token)
	if err != nil {
		c.printf("Invalid input. %s.\n", capitalize(common.ErrInvalidQuantity.Error()))
		return
	}

	if err := common.ValidateOrder(side, symbol, price, quantity); err != nil {
		c.printf("Invalid input. %s.\n", capitalize(err.Error()))
		return
	}

	result := c.engine.Submit(side, symbol, price, quantity)
	log.Debug().
		Str("side", side.String()).
		Str("symbol", symbol).
		Int("trades", len(result.Trades)).
		Bool("rested", result.Rested).
		Msg("order submitted")

	for _, trade := range result.Trades {
		c.printf("Trade executed: %s\n", trade)
	}
	if result.Rested {
		c.printf("Order resting: %s %s\n", side, result.Residual)
	}
}

func (c *Console) printTradeHistory() {
	trades := c.engine.TradeHistory()
	if len(trades) == 0 {
		c.printf("No trades have occurred yet.\n")
		return
	}
	for _, trade := range trades {
		c.printf("%s\n", trade)
	}
}

func (c *Console) printPrices() {
	prices := c.engine.PriceSnapshot()
	if len(prices) == 0 {
		c.printf("No stock prices available.\n")
		return
	}
	c.printf("\nCurrent Stock Prices:\n")
	for _, entry := range prices {
		c.printf("%s\n", entry)
	}
}

func (c *Console) printPendingOrders() {
	for _, side := range []common.Side{common.Buy, common.Sell} {
		title := "Buy"
		if side == common.Sell {
			title = "Sell"
		}
		c.printf("\n\t\t\t\tPending %s Orders\n", title)

		orders := c.engine.PendingOrders(side)
		if len(orders) == 0 {
			c.printf("No pending %s orders.\n", side)
			continue
		}
		for _, order := range orders {
			c.printf("%s\n", order)
		}
	}
}

var errNotPositive = errors.New("not a positive number")

func parsePositive(token string) (uint64, error) {
	n, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errNotPositive
	}
	return n, nil
}

// next returns the next input word. It reports false when input has ended or
// ctx is cancelled.
func (c *Console) next(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case token, ok := <-c.tokens:
		return token, ok
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
