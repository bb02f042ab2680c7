package entity

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMark_Opponent(t *testing.T) {
	assert.Equal(t, MarkO, MarkX.Opponent())
	assert.Equal(t, MarkX, MarkO.Opponent())
	assert.Equal(t, EmptyCell, EmptyCell.Opponent())
}

func TestNewRoom(t *testing.T) {
	// Given: a new room created by Alice
	room := NewRoom("AB12", "Alice")

	// Then: the room is empty, X moves first and nobody has joined as O
	expected := Room{
		ID:      "AB12",
		Board:   Board{},
		Turn:    MarkX,
		PlayerX: "Alice",
		Outcome: Outcome{Status: StatusInProgress},
	}

	require.Equal(t, expected, room)
	assert.False(t, room.HasOpponent())
	assert.False(t, room.IsTerminal())
}

func TestRoom_Restart(t *testing.T) {
	t.Run("Restart resets board, turn and outcome", func(t *testing.T) {
		// Given: a finished room won by X
		room := NewRoom("AB12", "Alice").WithPlayerO("Bob")
		room.Board = Board{MarkX, MarkO, MarkO, MarkX, EmptyCell, EmptyCell, MarkX, EmptyCell, EmptyCell}
		room.Turn = MarkO
		room.Outcome = Win(MarkX, [3]int{0, 3, 6})
		room.WinnerName = "Alice"
		room.Version = 7

		// When: restarting the room
		restarted := room.Restart()

		// Then: only the game state is reset
		assert.Equal(t, Board{}, restarted.Board)
		assert.Equal(t, MarkX, restarted.Turn)
		assert.Equal(t, InProgress(), restarted.Outcome)
		assert.Empty(t, restarted.WinnerName)
		assert.Equal(t, "Alice", restarted.PlayerX)
		assert.Equal(t, "Bob", restarted.PlayerO)
		assert.Equal(t, int64(7), restarted.Version)
	})

	t.Run("Restart does not touch the original value", func(t *testing.T) {
		// Given: a room with a placed mark
		room := NewRoom("AB12", "Alice")
		room.Board[4] = MarkX

		// When: restarting
		_ = room.Restart()

		// Then: the original is unchanged
		assert.Equal(t, MarkX, room.Board[4])
	})
}

func TestRoom_Clone(t *testing.T) {
	// Given: a room with a win line and a chat message
	room := NewRoom("AB12", "Alice")
	room.Outcome = Win(MarkX, [3]int{0, 1, 2})
	room = room.WithMessage(Message{ID: "1", Author: "Alice", Text: "hi", SentAt: time.Unix(0, 0)})

	// When: mutating the clone
	clone := room.Clone()
	clone.Outcome.Line[0] = 8
	clone.Messages[0].Text = "changed"

	// Then: the original keeps its values
	assert.Equal(t, []int{0, 1, 2}, room.Outcome.Line)
	assert.Equal(t, "hi", room.Messages[0].Text)
}

func TestRoom_WithMessage_KeepsRecentHistory(t *testing.T) {
	// Given: a room whose chat is already at the limit
	room := NewRoom("AB12", "Alice")
	for n := 0; n < MaxMessages; n++ {
		room = room.WithMessage(Message{ID: fmt.Sprint(n), Text: fmt.Sprint(n)})
	}
	require.Len(t, room.Messages, MaxMessages)

	// When: one more line arrives
	next := room.WithMessage(Message{ID: "new", Text: "new"})

	// Then: the oldest line is dropped and the original is untouched
	require.Len(t, next.Messages, MaxMessages)
	assert.Equal(t, "1", next.Messages[0].ID)
	assert.Equal(t, "new", next.Messages[MaxMessages-1].ID)
	assert.Equal(t, "0", room.Messages[0].ID)
}

func TestBoard_IsFull(t *testing.T) {
	full := Board{MarkX, MarkO, MarkX, MarkX, MarkO, MarkO, MarkO, MarkX, MarkX}
	partial := Board{MarkX, EmptyCell, MarkO}

	assert.True(t, full.IsFull())
	assert.Equal(t, 9, full.MarksPlaced())
	assert.False(t, partial.IsFull())
	assert.Equal(t, 2, partial.MarksPlaced())
}
