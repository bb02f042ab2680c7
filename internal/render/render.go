package render

import (
	"fmt"
	"strings"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const maxMessagesShown = 5

// Render draws the session as plain text. The output depends only on session.
func Render(session entity.Session) string {
	if !session.IsJoined() {
		return "Not in a room. Use \"create NAME\", \"join CODE NAME\" or \"watch CODE\".\n"
	}

	room := session.View

	var builder strings.Builder

	fmt.Fprintf(&builder, "Room %s\n", room.ID)
	fmt.Fprintf(&builder, "X: %s   O: %s\n", orWaiting(room.PlayerX), orWaiting(room.PlayerO))

	if mark, ok := session.Identity.Mark(); ok {
		fmt.Fprintf(&builder, "You are %s (%s)\n", session.Name, mark)
	} else {
		builder.WriteString("You are watching\n")
	}

	builder.WriteString("\n")
	writeBoard(&builder, room)
	builder.WriteString("\n")
	builder.WriteString(status(session))
	builder.WriteString("\n")

	messages := room.Messages
	if len(messages) > maxMessagesShown {
		messages = messages[len(messages)-maxMessagesShown:]
	}

	for _, message := range messages {
		fmt.Fprintf(&builder, "  <%s> %s\n", message.Author, message.Text)
	}

	return builder.String()
}

// writeBoard prints empty cells as their index so players know what to type.
func writeBoard(builder *strings.Builder, room entity.Room) {
	for row := 0; row < 3; row++ {
		if row > 0 {
			builder.WriteString("---+---+---\n")
		}

		cells := make([]string, 3)
		for col := 0; col < 3; col++ {
			cell := row*3 + col
			cells[col] = fmt.Sprintf(" %s ", cellLabel(room, cell))
		}

		builder.WriteString(strings.Join(cells, "|"))
		builder.WriteString("\n")
	}
}

func cellLabel(room entity.Room, cell int) string {
	mark := room.Board[cell]
	if mark == entity.EmptyCell {
		return fmt.Sprint(cell)
	}

	for _, winning := range room.Outcome.Line {
		if winning == cell {
			return strings.ToLower(string(mark))
		}
	}

	return string(mark)
}

func status(session entity.Session) string {
	room := session.View

	switch {
	case room.Outcome.IsWin():
		name := room.WinnerName
		if name == "" {
			name = room.PlayerName(room.Outcome.Mark)
		}
		return fmt.Sprintf("%s wins as %s", orWaiting(name), room.Outcome.Mark)
	case room.Outcome.IsTie():
		return "It's a tie"
	case !room.HasOpponent():
		return "Waiting for an opponent to join"
	}

	if mark, ok := session.Identity.Mark(); ok && mark == room.Turn {
		return "Your move"
	}

	return fmt.Sprintf("%s to move (%s)", room.PlayerName(room.Turn), room.Turn)
}

func orWaiting(name string) string {
	if name == "" {
		return "-"
	}

	return name
}
