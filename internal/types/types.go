package types

type Side string

type EntryType string

type OrderStatus string

// Transition is the position transition an order causes. Every executed
// order is classified into exactly one of these before any state changes.
type Transition int

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

const (
	EntryBuy    EntryType = "BUY"
	EntrySell   EntryType = "SELL"
	EntryShort  EntryType = "SHORT"
	EntryCover  EntryType = "COVER"
	EntryReward EntryType = "REWARD"
)

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

const (
	// Buy side.
	TransitionLongIncrease   Transition = iota // flat or long, buying more
	TransitionShortCover                       // short, buying back at most the shorted quantity
	TransitionShortCoverFlip                   // short, buying past zero into a long

	// Sell side.
	TransitionLongDecrease     // long, selling at most the held quantity
	TransitionLongDecreaseFlip // long, selling past zero into a short
	TransitionShortIncrease    // flat or short, selling with nothing held long
)

func (t Transition) String() string {
	switch t {
	case TransitionLongIncrease:
		return "long_increase"
	case TransitionShortCover:
		return "short_cover"
	case TransitionShortCoverFlip:
		return "short_cover_flip"
	case TransitionLongDecrease:
		return "long_decrease"
	case TransitionLongDecreaseFlip:
		return "long_decrease_flip"
	case TransitionShortIncrease:
		return "short_increase"
	default:
		return "unknown"
	}
}
