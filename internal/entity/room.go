package entity

import (
	"slices"
	"time"
)

const (
	MarkX     Mark = "X"
	MarkO     Mark = "O"
	EmptyCell Mark = ""
)

// MaxMessages is how much chat history a room keeps.
const MaxMessages = 30

const (
	StatusInProgress = "in_progress"
	StatusWin        = "win"
	StatusTie        = "tie"
)

// Mark is a player's symbol on the board.
type Mark string

func (that Mark) IsValid() bool {
	return that == MarkX || that == MarkO
}

// Opponent returns the other mark. EmptyCell has no opponent.
func (that Mark) Opponent() Mark {
	switch that {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return EmptyCell
	}
}

// Board is a 3x3 grid in row-major order.
type Board [9]Mark

func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

func (that Board) MarksPlaced() int {
	count := 0
	for _, cell := range that {
		if cell != EmptyCell {
			count++
		}
	}

	return count
}

type Outcome struct {
	Status string `json:"status"`
	Mark   Mark   `json:"mark,omitempty"`
	Line   []int  `json:"line,omitempty"`
}

func InProgress() Outcome {
	return Outcome{Status: StatusInProgress}
}

func Win(mark Mark, line [3]int) Outcome {
	return Outcome{Status: StatusWin, Mark: mark, Line: line[:]}
}

func Tie() Outcome {
	return Outcome{Status: StatusTie}
}

func (that Outcome) IsInProgress() bool {
	return that.Status == StatusInProgress
}

func (that Outcome) IsWin() bool {
	return that.Status == StatusWin
}

func (that Outcome) IsTie() bool {
	return that.Status == StatusTie
}

type Message struct {
	ID     string    `json:"id"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Room is the single document shared by every participant of a game.
// Version counts accepted writes; a store rejects writes carrying a stale version.
type Room struct {
	ID         string    `json:"id"`
	Board      Board     `json:"board"`
	Turn       Mark      `json:"turn"`
	PlayerX    string    `json:"player_x"`
	PlayerO    string    `json:"player_o,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	WinnerName string    `json:"winner_name,omitempty"`
	Messages   []Message `json:"messages,omitempty"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewRoom(id, playerX string) Room {
	return Room{
		ID:      id,
		Board:   Board{},
		Turn:    MarkX,
		PlayerX: playerX,
		Outcome: InProgress(),
	}
}

// Clone returns a copy that shares no memory with the receiver.
func (that Room) Clone() Room {
	clone := that
	clone.Outcome.Line = slices.Clone(that.Outcome.Line)
	clone.Messages = slices.Clone(that.Messages)

	return clone
}

// Restart clears the board and outcome. Players, chat and version are kept.
func (that Room) Restart() Room {
	room := that.Clone()
	room.Board = Board{}
	room.Turn = MarkX
	room.Outcome = InProgress()
	room.WinnerName = ""

	return room
}

func (that Room) WithPlayerO(name string) Room {
	room := that.Clone()
	room.PlayerO = name

	return room
}

// WithMessage appends message and drops the oldest lines beyond MaxMessages.
func (that Room) WithMessage(message Message) Room {
	room := that.Clone()
	room.Messages = append(room.Messages, message)
	if len(room.Messages) > MaxMessages {
		room.Messages = slices.Clone(room.Messages[len(room.Messages)-MaxMessages:])
	}

	return room
}

func (that Room) IsTerminal() bool {
	return !that.Outcome.IsInProgress()
}

func (that Room) HasOpponent() bool {
	return that.PlayerO != ""
}

func (that Room) PlayerName(mark Mark) string {
	switch mark {
	case MarkX:
		return that.PlayerX
	case MarkO:
		return that.PlayerO
	default:
		return ""
	}
}
