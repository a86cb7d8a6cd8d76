package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnroutableFrame = errors.New("frame matches no known message shape")

// Event is the closed set of server->client messages. Game events carry a
// "type" tag on the wire; matchmaking events are untagged objects with
// exactly one discriminating key.
type Event interface{ isEvent() }

type Countdown struct {
	GameID    string
	Remaining int
}

type GameStarted struct {
	GameID          string
	StartingPrice   int
	StartingBalance int
	Players         []string
}

// PriceChanged carries the owning player's id in versus mode; PlayerID is
// empty in single-shared-price modes.
type PriceChanged struct {
	PlayerID string
	Price    int
}

type BidPlaced struct {
	PlayerID string
	Value    int
}

type AskPlaced struct {
	PlayerID string
	Value    int
}

type BidFilled struct {
	PlayerID string
	Value    int
}

type AskFilled struct {
	PlayerID string
	Value    int
}

type BidCanceled struct {
	PlayerID string
	Price    int
}

type AskCanceled struct {
	PlayerID string
	Price    int
}

type GameEnded struct {
	FinalBalances []PlayerBalance
}

// Unknown is a tagged game event this client does not recognize. Routed as a
// no-op so newer servers stay compatible.
type Unknown struct {
	Tag string
}

type Enqueued struct{ PlayerID string }

type Matched struct{ Players []string }

type Dequeued struct{ PlayerID string }

type AlreadyQueued struct{}

type PlayerNotFound struct{}

func (Countdown) isEvent()      {}
func (GameStarted) isEvent()    {}
func (PriceChanged) isEvent()   {}
func (BidPlaced) isEvent()      {}
func (AskPlaced) isEvent()      {}
func (BidFilled) isEvent()      {}
func (AskFilled) isEvent()      {}
func (BidCanceled) isEvent()    {}
func (AskCanceled) isEvent()    {}
func (GameEnded) isEvent()      {}
func (Unknown) isEvent()        {}
func (Enqueued) isEvent()       {}
func (Matched) isEvent()        {}
func (Dequeued) isEvent()       {}
func (AlreadyQueued) isEvent()  {}
func (PlayerNotFound) isEvent() {}

// PlayerBalance is one entry of game_ended's final_balances, encoded on the
// wire as a [playerId, balance] pair.
type PlayerBalance struct {
	PlayerID string
	Balance  int
}

func (pb *PlayerBalance) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("final balance pair has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &pb.PlayerID); err != nil {
		// Some servers send numeric player ids.
		var n json.Number
		if err2 := json.Unmarshal(pair[0], &n); err2 != nil {
			return err
		}
		pb.PlayerID = n.String()
	}
	return json.Unmarshal(pair[1], &pb.Balance)
}

// gameFrame is the superset of fields any tagged game event can carry.
type gameFrame struct {
	Type            string          `json:"type"`
	GameID          string          `json:"game_id"`
	Remaining       int             `json:"remaining"`
	StartingPrice   int             `json:"starting_price"`
	StartingBalance int             `json:"starting_balance"`
	Players         []string        `json:"players"`
	PlayerID        string          `json:"player_id"`
	Price           int             `json:"price"`
	BidValue        int             `json:"bid_value"`
	AskValue        int             `json:"ask_value"`
	FinalBalances   []PlayerBalance `json:"final_balances"`
}

// Decode parses one raw inbound frame into an Event. A frame with a "type"
// field is a game event (unrecognized tags decode to Unknown); anything else
// must carry exactly one matchmaking key, or be a bare unit-variant string,
// or the frame is unroutable.
func Decode(raw []byte) (Event, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		// Payload-free matchmaking variants arrive as bare strings.
		var unit string
		if err2 := json.Unmarshal(raw, &unit); err2 == nil {
			switch unit {
			case "AlreadyQueued":
				return AlreadyQueued{}, nil
			case "PlayerNotFound":
				return PlayerNotFound{}, nil
			case "Dequeued":
				return Dequeued{}, nil
			}
			return nil, ErrUnroutableFrame
		}
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	if _, tagged := probe["type"]; tagged {
		return decodeGame(raw)
	}
	return decodeMatchmaking(probe)
}

func decodeGame(raw []byte) (Event, error) {
	var f gameFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode game event: %w", err)
	}

	switch f.Type {
	case "countdown":
		return Countdown{GameID: f.GameID, Remaining: f.Remaining}, nil
	case "game_started":
		return GameStarted{
			GameID:          f.GameID,
			StartingPrice:   f.StartingPrice,
			StartingBalance: f.StartingBalance,
			Players:         f.Players,
		}, nil
	case "price_changed":
		return PriceChanged{PlayerID: f.PlayerID, Price: f.Price}, nil
	case "bid_placed":
		return BidPlaced{PlayerID: f.PlayerID, Value: f.BidValue}, nil
	case "ask_placed":
		return AskPlaced{PlayerID: f.PlayerID, Value: f.AskValue}, nil
	case "bid_filled":
		return BidFilled{PlayerID: f.PlayerID, Value: f.BidValue}, nil
	case "ask_filled":
		return AskFilled{PlayerID: f.PlayerID, Value: f.AskValue}, nil
	case "bid_canceled":
		return BidCanceled{PlayerID: f.PlayerID, Price: f.Price}, nil
	case "ask_canceled":
		return AskCanceled{PlayerID: f.PlayerID, Price: f.Price}, nil
	case "game_ended":
		return GameEnded{FinalBalances: f.FinalBalances}, nil
	default:
		return Unknown{Tag: f.Type}, nil
	}
}

func decodeMatchmaking(probe map[string]json.RawMessage) (Event, error) {
	if v, ok := probe["Enqueued"]; ok {
		var id string
		if err := json.Unmarshal(v, &id); err != nil {
			return nil, fmt.Errorf("decode Enqueued payload: %w", err)
		}
		return Enqueued{PlayerID: id}, nil
	}
	if v, ok := probe["Matched"]; ok {
		var players []string
		if err := json.Unmarshal(v, &players); err != nil {
			return nil, fmt.Errorf("decode Matched payload: %w", err)
		}
		return Matched{Players: players}, nil
	}
	if v, ok := probe["Dequeued"]; ok {
		// The payload is the dequeued player's id; some servers send null.
		var id string
		_ = json.Unmarshal(v, &id)
		return Dequeued{PlayerID: id}, nil
	}
	if _, ok := probe["AlreadyQueued"]; ok {
		return AlreadyQueued{}, nil
	}
	if _, ok := probe["PlayerNotFound"]; ok {
		return PlayerNotFound{}, nil
	}
	return nil, ErrUnroutableFrame
}
