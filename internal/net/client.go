package net

import (
	"bufio"
	"context"
	"fmt"
	"net"

	. "bourse/internal/common"
)

// Client speaks the exchange protocol over a single TCP connection. It is not
// safe for concurrent use.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

func Dial(ctx context.Context, address string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", address, err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// PlaceOrder submits a limit order and returns its execution and resting
// reports.
func (c *Client) PlaceOrder(side Side, symbol string, price, quantity uint64) ([]Report, error) {
	return c.roundTrip(NewOrderRequest(side, symbol, price, quantity))
}

func (c *Client) TradeHistory() ([]Report, error) {
	return c.roundTrip(BaseMessage{TypeOf: QueryTrades})
}

func (c *Client) Prices() ([]Report, error) {
	return c.roundTrip(BaseMessage{TypeOf: QueryPrices})
}

func (c *Client) PendingOrders(side Side) ([]Report, error) {
	return c.roundTrip(QueryOrdersRequest(side))
}

func (c *Client) Heartbeat() error {
	buf, err := BaseMessage{TypeOf: Heartbeat}.Serialize()
	if err != nil {
		return err
	}
	_, err = c.conn.Write(buf)
	return err
}

func (c *Client) roundTrip(message Message) ([]Report, error) {
	buf, err := message.Serialize()
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(buf); err != nil {
		return nil, fmt.Errorf("unable to send %s: %w", message.GetType(), err)
	}
	return ReadReply(c.reader)
}

// ReadReply collects the reports of one reply. The closing EndReport is not
// returned; an ErrorReport becomes an error wrapping ErrServer.
func ReadReply(r *bufio.Reader) ([]Report, error) {
	var reports []Report
	for {
		report, err := ReadReport(r)
		if err != nil {
			return reports, err
		}
		switch report.Type {
		case EndReport:
			return reports, nil
		case ErrorReport:
			return reports, fmt.Errorf("%w: %s", ErrServer, report.Err)
		}
		reports = append(reports, report)
	}
}
