package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	. "bourse/internal/common"

	"github.com/google/uuid"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrInvalidReportType  = errors.New("invalid report type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrReportTooLong      = errors.New("report error string too long")
	ErrServer             = errors.New("server error")
)

type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	QueryTrades
	QueryPrices
	QueryOrders
)

func (m MessageType) String() string {
	switch m {
	case Heartbeat:
		return "heartbeat"
	case NewOrder:
		return "new_order"
	case QueryTrades:
		return "query_trades"
	case QueryPrices:
		return "query_prices"
	case QueryOrders:
		return "query_orders"
	}
	return fmt.Sprintf("message(%d)", int(m))
}

type Message interface {
	GetType() MessageType
	Serialize() ([]byte, error)
}

// Message format constants
const (
	BaseMessageHeaderLen      = 2
	SymbolFieldLen            = MaxSymbolLen
	NewOrderMessageBodyLen    = 1 + SymbolFieldLen + 8 + 8
	QueryOrdersMessageBodyLen = 1
	ReportFixedHeaderLen      = 1 + 1 + 8 + 8 + 8 + 4 + SymbolFieldLen + 16
	maxReportErrLen           = 4 * 1024
)

// Generic message type. Heartbeat, QueryTrades and QueryPrices carry no body.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func (m BaseMessage) Serialize() ([]byte, error) {
	buf := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(m.TypeOf))
	return buf, nil
}

// ReadMessage reads the next request off r. A clean close between messages
// is reported as io.EOF.
func ReadMessage(r io.Reader) (Message, error) {
	header := make([]byte, BaseMessageHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrMessageTooShort
		}
		return nil, err
	}

	typeOf := MessageType(binary.BigEndian.Uint16(header))
	switch typeOf {
	case Heartbeat, QueryTrades, QueryPrices:
		return BaseMessage{TypeOf: typeOf}, nil
	case NewOrder:
		body, err := readBody(r, NewOrderMessageBodyLen)
		if err != nil {
			return nil, err
		}
		return parseNewOrder(body)
	case QueryOrders:
		body, err := readBody(r, QueryOrdersMessageBodyLen)
		if err != nil {
			return nil, err
		}
		return parseQueryOrders(body)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidMessageType, typeOf)
	}
}

func readBody(r io.Reader, n int) ([]byte, error) {
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrMessageTooShort
		}
		return nil, err
	}
	return body, nil
}

type NewOrderMessage struct {
	BaseMessage
	Side       Side   // 1 byte
	Symbol     string // 9 bytes, NUL padded
	LimitPrice uint64 // 8 bytes
	Quantity   uint64 // 8 bytes
}

func NewOrderRequest(side Side, symbol string, price, quantity uint64) NewOrderMessage {
	return NewOrderMessage{
		BaseMessage: BaseMessage{TypeOf: NewOrder},
		Side:        side,
		Symbol:      symbol,
		LimitPrice:  price,
		Quantity:    quantity,
	}
}

func (m NewOrderMessage) Serialize() ([]byte, error) {
	buf := make([]byte, BaseMessageHeaderLen+NewOrderMessageBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))

	body := buf[BaseMessageHeaderLen:]
	body[0] = byte(m.Side)
	if err := putSymbol(body[1:10], m.Symbol); err != nil {
		return nil, err
	}
	binary.BigEndian.PutUint64(body[10:18], m.LimitPrice)
	binary.BigEndian.PutUint64(body[18:26], m.Quantity)
	return buf, nil
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	m.Side = Side(msg[0])
	if !m.Side.Valid() {
		return NewOrderMessage{}, fmt.Errorf("%w: %d", ErrInvalidSide, msg[0])
	}
	m.Symbol = getSymbol(msg[1:10])
	m.LimitPrice = binary.BigEndian.Uint64(msg[10:18])
	m.Quantity = binary.BigEndian.Uint64(msg[18:26])
	return m, nil
}

type QueryOrdersMessage struct {
	BaseMessage
	Side Side // 1 byte
}

func QueryOrdersRequest(side Side) QueryOrdersMessage {
	return QueryOrdersMessage{BaseMessage: BaseMessage{TypeOf: QueryOrders}, Side: side}
}

func (m QueryOrdersMessage) Serialize() ([]byte, error) {
	buf := make([]byte, BaseMessageHeaderLen+QueryOrdersMessageBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(QueryOrders))
	buf[2] = byte(m.Side)
	return buf, nil
}

func parseQueryOrders(msg []byte) (QueryOrdersMessage, error) {
	side := Side(msg[0])
	if !side.Valid() {
		return QueryOrdersMessage{}, fmt.Errorf("%w: %d", ErrInvalidSide, msg[0])
	}
	return QueryOrdersRequest(side), nil
}

func putSymbol(dst []byte, symbol string) error {
	if len(symbol) > SymbolFieldLen {
		return fmt.Errorf("%w: %q", ErrSymbolTooLong, symbol)
	}
	copy(dst, symbol)
	return nil
}

func getSymbol(src []byte) string {
	return strings.TrimRight(string(src), "\x00")
}

type ReportType uint8

const (
	ExecutionReport ReportType = iota // a trade caused by the request
	RestingReport                     // the request's residual now rests in the book
	TradeReport                       // one entry of the trade history
	PriceReport                       // one entry of the price snapshot
	OrderReport                       // one pending order
	EndReport                         // end of a successful reply
	ErrorReport                       // request failed, ends the reply
)

// Report is one frame of a reply. Every reply is a run of reports closed by
// an EndReport or an ErrorReport.
type Report struct {
	Type      ReportType // 1 byte
	Side      Side       // 1 byte
	Timestamp int64      // 8 bytes, unix nanos
	Quantity  uint64     // 8 bytes
	Price     uint64     // 8 bytes
	Symbol    string     // 9 bytes
	ID        uuid.UUID  // 16 bytes
	Err       string     // 4 byte length + n bytes
}

func (r Report) Terminal() bool {
	return r.Type == EndReport || r.Type == ErrorReport
}

func (r Report) Time() time.Time {
	return time.Unix(0, r.Timestamp)
}

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() ([]byte, error) {
	if len(r.Err) > maxReportErrLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrReportTooLong, len(r.Err))
	}
	buf := make([]byte, ReportFixedHeaderLen+len(r.Err))
	buf[0] = byte(r.Type)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], uint64(r.Timestamp))
	binary.BigEndian.PutUint64(buf[10:18], r.Quantity)
	binary.BigEndian.PutUint64(buf[18:26], r.Price)
	binary.BigEndian.PutUint32(buf[26:30], uint32(len(r.Err)))
	if err := putSymbol(buf[30:39], r.Symbol); err != nil {
		return nil, err
	}
	copy(buf[39:55], r.ID[:])
	copy(buf[ReportFixedHeaderLen:], r.Err)
	return buf, nil
}

// ReadReport reads the next report frame off r.
func ReadReport(r io.Reader) (Report, error) {
	header := make([]byte, ReportFixedHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return Report{}, err
	}

	report := Report{
		Type:      ReportType(header[0]),
		Side:      Side(header[1]),
		Timestamp: int64(binary.BigEndian.Uint64(header[2:10])),
		Quantity:  binary.BigEndian.Uint64(header[10:18]),
		Price:     binary.BigEndian.Uint64(header[18:26]),
		Symbol:    getSymbol(header[30:39]),
	}
	if report.Type > ErrorReport {
		return Report{}, fmt.Errorf("%w: %d", ErrInvalidReportType, header[0])
	}
	copy(report.ID[:], header[39:55])

	errLen := binary.BigEndian.Uint32(header[26:30])
	if errLen > maxReportErrLen {
		return Report{}, fmt.Errorf("%w: %d bytes", ErrReportTooLong, errLen)
	}
	if errLen > 0 {
		errBuf := make([]byte, errLen)
		if _, err := io.ReadFull(r, errBuf); err != nil {
			return Report{}, fmt.Errorf("reading report error string: %w", err)
		}
		report.Err = string(errBuf)
	}
	return report, nil
}

func tradeReport(kind ReportType, trade Trade) Report {
	return Report{
		Type:      kind,
		Side:      trade.Side,
		Timestamp: trade.Timestamp.UnixNano(),
		Quantity:  trade.Quantity,
		Price:     trade.Price,
		Symbol:    trade.Symbol,
		ID:        trade.ID,
	}
}

func orderReport(kind ReportType, order Order) Report {
	return Report{
		Type:      kind,
		Side:      order.Side,
		Timestamp: order.Timestamp.UnixNano(),
		Quantity:  order.Quantity,
		Price:     order.LimitPrice,
		Symbol:    order.Symbol,
		ID:        order.ID,
	}
}

func priceReport(entry PriceEntry) Report {
	return Report{Type: PriceReport, Price: entry.Price, Symbol: entry.Symbol}
}

func endReport() Report {
	return Report{Type: EndReport, Timestamp: time.Now().UnixNano()}
}

func errorReport(err error) Report {
	return Report{
		Type:      ErrorReport,
		Timestamp: time.Now().UnixNano(),
		Err:       err.Error(),
	}
}
