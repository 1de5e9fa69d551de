package common

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}

type OrderType int

const (
	// Market orders are instructions to buy or sell immediately at the
	// best available price. They always fill unless they are FOK and the
	// displayed size cannot cover them.
	MarketOrder OrderType = iota
	// Limit orders execute at the specified price or better.
	LimitOrder
	// Stop orders trigger once the market trades through the stop price.
	StopOrder
)

func (t OrderType) String() string {
	switch t {
	case MarketOrder:
		return "MARKET"
	case LimitOrder:
		return "LIMIT"
	case StopOrder:
		return "STOP"
	}
	return "UNKNOWN"
}

func OrderTypeFromString(s string) OrderType {
	switch s {
	case "LIMIT":
		return LimitOrder
	case "STOP":
		return StopOrder
	default:
		return MarketOrder
	}
}

type TimeInForce int

const (
	Day TimeInForce = iota
	GoodTillCancel
	ImmediateOrCancel
	FillOrKill
)

func (tif TimeInForce) String() string {
	switch tif {
	case Day:
		return "DAY"
	case GoodTillCancel:
		return "GTC"
	case ImmediateOrCancel:
		return "IOC"
	case FillOrKill:
		return "FOK"
	}
	return "UNKNOWN"
}
