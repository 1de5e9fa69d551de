package wire

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gungnir/internal/common"
)

func TestFrame_NewOrderSingleRoundTrip(t *testing.T) {
	sent := NewOrderSingle{
		ClOrdID:      "order-42",
		Symbol:       "ABC",
		Side:         common.Buy,
		OrdType:      common.LimitOrder,
		TimeInForce:  common.FillOrKill,
		HandlInst:    '1',
		Quantity:     200,
		LimitPrice:   decimal.RequireFromString("10.05"),
		StopPrice:    decimal.Zero,
		TransactTime: time.Unix(0, 1700000000000000000),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, sent))

	msg, err := ReadFrame(&buf)
	require.NoError(t, err)
	got, ok := msg.(NewOrderSingle)
	require.True(t, ok)

	assert.Equal(t, sent.ClOrdID, got.ClOrdID)
	assert.Equal(t, sent.Symbol, got.Symbol)
	assert.Equal(t, sent.Side, got.Side)
	assert.Equal(t, sent.OrdType, got.OrdType)
	assert.Equal(t, sent.TimeInForce, got.TimeInForce)
	assert.Equal(t, sent.HandlInst, got.HandlInst)
	assert.Equal(t, sent.Quantity, got.Quantity)
	assert.True(t, sent.LimitPrice.Equal(got.LimitPrice))
	assert.True(t, sent.TransactTime.Equal(got.TransactTime))
}

func TestFrame_ExecutionReportRoundTrip(t *testing.T) {
	sent := ExecutionReport{
		OrderID:           "1",
		ExecID:            "exec-7",
		ClOrdID:           "order-42",
		Symbol:            "ABC",
		ExecType:          ExecTypeRejected,
		OrdStatus:         OrdStatusRejected,
		Side:              common.Sell,
		LeavesQty:         200,
		CumQty:            0,
		AvgPx:             decimal.Zero,
		LastPx:            decimal.Zero,
		Text:              "000000000000",
		CreditCheckFailed: true,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, sent))

	msg, err := ReadFrame(&buf)
	require.NoError(t, err)
	got, ok := msg.(ExecutionReport)
	require.True(t, ok)

	assert.Equal(t, sent.ClOrdID, got.ClOrdID)
	assert.Equal(t, sent.OrdStatus, got.OrdStatus)
	assert.Equal(t, sent.LeavesQty, got.LeavesQty)
	assert.Equal(t, sent.Text, got.Text)
	assert.True(t, got.CreditCheckFailed)
}

func TestFrame_LogonAndRejectRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Logon{Username: "router", Password: "secret"}))
	require.NoError(t, WriteFrame(&buf, SessionReject{Reason: "logon credentials rejected"}))

	msg, err := ReadFrame(&buf)
	require.NoError(t, err)
	logon, ok := msg.(Logon)
	require.True(t, ok)
	assert.Equal(t, "router", logon.Username)
	assert.Equal(t, "secret", logon.Password)

	msg, err = ReadFrame(&buf)
	require.NoError(t, err)
	reject, ok := msg.(SessionReject)
	require.True(t, ok)
	assert.Equal(t, "logon credentials rejected", reject.Reason)
}

func TestReadFrame_RejectsUnknownType(t *testing.T) {
	// Frame declaring a type no decoder knows.
	frame := []byte{0, 0, 0, 2, 0xff, 0xff}
	_, err := ReadFrame(bytes.NewReader(frame))
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestReadFrame_RejectsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Logon{Username: "router", Password: "secret"}))

	// Chop the declared string short inside the payload.
	raw := buf.Bytes()
	truncated := append([]byte{}, raw[:len(raw)-3]...)
	truncated[3] -= 3 // shrink the frame length to match

	_, err := ReadFrame(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestReadFrame_RejectsOversizedFrame(t *testing.T) {
	frame := []byte{0, 1, 0, 0}
	_, err := ReadFrame(bytes.NewReader(frame))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestNewOrderSingle_OrderValidates(t *testing.T) {
	msg := NewOrderSingle{
		ClOrdID:     "order-42",
		Symbol:      "ABC",
		Side:        common.Buy,
		OrdType:     common.LimitOrder,
		TimeInForce: common.Day,
		Quantity:    200,
		LimitPrice:  decimal.RequireFromString("10.05"),
	}

	order, err := msg.Order()
	require.NoError(t, err)
	assert.Equal(t, "order-42", order.ID)
	assert.Equal(t, int64(200), order.Open)
	assert.True(t, order.IsNew())

	msg.LimitPrice = decimal.Zero
	_, err = msg.Order()
	assert.ErrorIs(t, err, common.ErrMissingLimit)
}

func TestSession_ConcurrentSends(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sess := &Session{conn: server}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			assert.NoError(t, sess.Send(Heartbeat{}))
		}
	}()

	for i := 0; i < 10; i++ {
		msg, err := ReadFrame(client)
		require.NoError(t, err)
		assert.Equal(t, MsgHeartbeat, msg.Type())
	}
	<-done
}
