package protocol

import "encoding/json"

// Outbound is the flat client->server envelope. Every message carries a
// "type" discriminant; the remaining fields are populated per constructor.
type Outbound struct {
	Type   string `json:"type"`
	GameID string `json:"game_id,omitempty"`
	Value  int    `json:"value,omitempty"`
	Price  int    `json:"price,omitempty"`
}

const (
	TypeJoinQueue  = "join_queue"
	TypeLeaveQueue = "leave_queue"
	TypePlaceBid   = "place_bid"
	TypePlaceAsk   = "place_ask"
	TypeCancelBid  = "cancel_bid"
	TypeCancelAsk  = "cancel_ask"
)

func JoinQueue() Outbound  { return Outbound{Type: TypeJoinQueue} }
func LeaveQueue() Outbound { return Outbound{Type: TypeLeaveQueue} }

func PlaceBid(gameID string, value int) Outbound {
	return Outbound{Type: TypePlaceBid, GameID: gameID, Value: value}
}

func PlaceAsk(gameID string, value int) Outbound {
	return Outbound{Type: TypePlaceAsk, GameID: gameID, Value: value}
}

func CancelBid(gameID string, price int) Outbound {
	return Outbound{Type: TypeCancelBid, GameID: gameID, Price: price}
}

func CancelAsk(gameID string, price int) Outbound {
	return Outbound{Type: TypeCancelAsk, GameID: gameID, Price: price}
}

func (o Outbound) Encode() ([]byte, error) {
	return json.Marshal(o)
}
