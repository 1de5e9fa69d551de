// Package wire implements the binary order-entry protocol spoken between the
// router and the venue: logon, new-order-single and execution-report frames
// over a long-lived TCP session.
//
// Frame layout: a 4-byte big-endian payload length, a 2-byte message type,
// then the payload. Strings are length-prefixed (uint16); prices travel as
// decimal strings so no precision is lost on the wire.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"gungnir/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrFrameTooLarge      = errors.New("frame exceeds maximum size")
)

const (
	frameHeaderLen = 4 + 2
	maxFrameSize   = 4 * 1024
)

type MsgType uint16

const (
	MsgHeartbeat MsgType = iota
	MsgLogon
	MsgNewOrderSingle
	MsgExecutionReport
	MsgSessionReject
)

// OrdStatus mirrors the venue's order status vocabulary on execution reports.
type OrdStatus uint8

const (
	OrdStatusNew OrdStatus = iota
	OrdStatusFilled
	OrdStatusRejected
	OrdStatusCanceled
	OrdStatusDoneForDay
)

type ExecType uint8

const (
	ExecTypeFill ExecType = iota
	ExecTypeRejected
)

type Message interface {
	Type() MsgType
}

type Heartbeat struct{}

func (Heartbeat) Type() MsgType { return MsgHeartbeat }

// Logon opens a session. Credentials are injected by the owning process from
// its configuration; the venue checks them before the session goes live.
type Logon struct {
	Username string
	Password string
}

func (Logon) Type() MsgType { return MsgLogon }

type SessionReject struct {
	Reason string
}

func (SessionReject) Type() MsgType { return MsgSessionReject }

// NewOrderSingle carries one order submission to the venue.
type NewOrderSingle struct {
	ClOrdID      string
	Symbol       string
	Side         common.Side
	OrdType      common.OrderType
	TimeInForce  common.TimeInForce
	HandlInst    byte
	Quantity     int64
	LimitPrice   decimal.Decimal
	StopPrice    decimal.Decimal
	TransactTime time.Time
}

func (NewOrderSingle) Type() MsgType { return MsgNewOrderSingle }

// ExecutionReport is the venue's asynchronous answer to an order: the
// acceptance, then exactly one terminal report. CreditCheckFailed is the
// account annotation distinguishing a credit rejection from a no-liquidity
// one.
type ExecutionReport struct {
	OrderID           string
	ExecID            string
	ClOrdID           string
	Symbol            string
	ExecType          ExecType
	OrdStatus         OrdStatus
	Side              common.Side
	LeavesQty         int64
	CumQty            int64
	LastQty           int64
	AvgPx             decimal.Decimal
	LastPx            decimal.Decimal
	Text              string
	CreditCheckFailed bool
}

func (ExecutionReport) Type() MsgType { return MsgExecutionReport }

// WriteFrame serializes a message and writes one frame.
func WriteFrame(w io.Writer, m Message) error {
	payload, err := encodePayload(m)
	if err != nil {
		return err
	}
	if len(payload) > maxFrameSize {
		return ErrFrameTooLarge
	}

	buf := make([]byte, frameHeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(2+len(payload)))
	binary.BigEndian.PutUint16(buf[4:6], uint16(m.Type()))
	copy(buf[6:], payload)

	_, err = w.Write(buf)
	return err
}

// ReadFrame reads and decodes the next frame off the stream.
func ReadFrame(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	frameLen := binary.BigEndian.Uint32(lenBuf[:])
	if frameLen < 2 {
		return nil, ErrMessageTooShort
	}
	if frameLen > maxFrameSize {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, frameLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	typeOf := MsgType(binary.BigEndian.Uint16(body[0:2]))
	dec := decoder{buf: body[2:]}

	var msg Message
	var err error
	switch typeOf {
	case MsgHeartbeat:
		msg = Heartbeat{}
	case MsgLogon:
		msg, err = decodeLogon(&dec)
	case MsgNewOrderSingle:
		msg, err = decodeNewOrderSingle(&dec)
	case MsgExecutionReport:
		msg, err = decodeExecutionReport(&dec)
	case MsgSessionReject:
		msg, err = decodeSessionReject(&dec)
	default:
		return nil, ErrInvalidMessageType
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func encodePayload(m Message) ([]byte, error) {
	var enc encoder
	switch msg := m.(type) {
	case Heartbeat:
	case Logon:
		enc.putString(msg.Username)
		enc.putString(msg.Password)
	case SessionReject:
		enc.putString(msg.Reason)
	case NewOrderSingle:
		enc.putString(msg.ClOrdID)
		enc.putString(msg.Symbol)
		enc.putUint8(uint8(msg.Side))
		enc.putUint8(uint8(msg.OrdType))
		enc.putUint8(uint8(msg.TimeInForce))
		enc.putUint8(msg.HandlInst)
		enc.putInt64(msg.Quantity)
		enc.putDecimal(msg.LimitPrice)
		enc.putDecimal(msg.StopPrice)
		enc.putInt64(msg.TransactTime.UnixNano())
	case ExecutionReport:
		enc.putString(msg.OrderID)
		enc.putString(msg.ExecID)
		enc.putString(msg.ClOrdID)
		enc.putString(msg.Symbol)
		enc.putUint8(uint8(msg.ExecType))
		enc.putUint8(uint8(msg.OrdStatus))
		enc.putUint8(uint8(msg.Side))
		enc.putInt64(msg.LeavesQty)
		enc.putInt64(msg.CumQty)
		enc.putInt64(msg.LastQty)
		enc.putDecimal(msg.AvgPx)
		enc.putDecimal(msg.LastPx)
		enc.putString(msg.Text)
		enc.putBool(msg.CreditCheckFailed)
	default:
		return nil, ErrInvalidMessageType
	}
	return enc.bytes(), nil
}

func decodeLogon(dec *decoder) (Logon, error) {
	var m Logon
	m.Username = dec.getString()
	m.Password = dec.getString()
	return m, dec.err
}

func decodeSessionReject(dec *decoder) (SessionReject, error) {
	var m SessionReject
	m.Reason = dec.getString()
	return m, dec.err
}

func decodeNewOrderSingle(dec *decoder) (NewOrderSingle, error) {
	var m NewOrderSingle
	m.ClOrdID = dec.getString()
	m.Symbol = dec.getString()
	m.Side = common.Side(dec.getUint8())
	m.OrdType = common.OrderType(dec.getUint8())
	m.TimeInForce = common.TimeInForce(dec.getUint8())
	m.HandlInst = dec.getUint8()
	m.Quantity = dec.getInt64()
	m.LimitPrice = dec.getDecimal()
	m.StopPrice = dec.getDecimal()
	m.TransactTime = time.Unix(0, dec.getInt64())
	return m, dec.err
}

func decodeExecutionReport(dec *decoder) (ExecutionReport, error) {
	var m ExecutionReport
	m.OrderID = dec.getString()
	m.ExecID = dec.getString()
	m.ClOrdID = dec.getString()
	m.Symbol = dec.getString()
	m.ExecType = ExecType(dec.getUint8())
	m.OrdStatus = OrdStatus(dec.getUint8())
	m.Side = common.Side(dec.getUint8())
	m.LeavesQty = dec.getInt64()
	m.CumQty = dec.getInt64()
	m.LastQty = dec.getInt64()
	m.AvgPx = dec.getDecimal()
	m.LastPx = dec.getDecimal()
	m.Text = dec.getString()
	m.CreditCheckFailed = dec.getBool()
	return m, dec.err
}

// Order converts a submission message into a fresh tracked order record.
func (m NewOrderSingle) Order() (common.Order, error) {
	order := common.NewOrder(m.ClOrdID, m.Symbol, m.Quantity, m.Side, m.OrdType, m.TimeInForce)
	order.LimitPrice = m.LimitPrice
	order.StopPrice = m.StopPrice
	if err := order.Validate(); err != nil {
		return common.Order{}, fmt.Errorf("invalid order %s: %w", m.ClOrdID, err)
	}
	return order, nil
}

// --- codec helpers ----------------------------------------------------------

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) bytes() []byte { return e.buf.Bytes() }

func (e *encoder) putUint8(v uint8) {
	e.buf.WriteByte(v)
}

func (e *encoder) putBool(v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *encoder) putInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	e.buf.Write(b[:])
}

func (e *encoder) putString(s string) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(len(s)))
	e.buf.Write(b[:])
	e.buf.WriteString(s)
}

func (e *encoder) putDecimal(d decimal.Decimal) {
	e.putString(d.String())
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) getUint8() uint8 {
	if d.err != nil {
		return 0
	}
	if len(d.buf) < 1 {
		d.err = ErrMessageTooShort
		return 0
	}
	v := d.buf[0]
	d.buf = d.buf[1:]
	return v
}

func (d *decoder) getBool() bool {
	return d.getUint8() == 1
}

func (d *decoder) getInt64() int64 {
	if d.err != nil {
		return 0
	}
	if len(d.buf) < 8 {
		d.err = ErrMessageTooShort
		return 0
	}
	v := int64(binary.BigEndian.Uint64(d.buf[:8]))
	d.buf = d.buf[8:]
	return v
}

func (d *decoder) getString() string {
	if d.err != nil {
		return ""
	}
	if len(d.buf) < 2 {
		d.err = ErrMessageTooShort
		return ""
	}
	n := int(binary.BigEndian.Uint16(d.buf[:2]))
	d.buf = d.buf[2:]
	if len(d.buf) < n {
		d.err = ErrMessageTooShort
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}

func (d *decoder) getDecimal() decimal.Decimal {
	s := d.getString()
	if d.err != nil {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		d.err = fmt.Errorf("invalid decimal %q: %w", s, err)
		return decimal.Zero
	}
	return v
}
