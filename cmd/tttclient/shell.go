package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/render"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/session"
)

const helpText = `commands:
  create NAME          open a new room and play X
  join CODE NAME       take the O seat, or your old seat back
  watch CODE           follow a room without playing
  move CELL | CELL     place your mark on cell 0-8
  restart              start a new game in the same room
  say TEXT             send a chat message
  show                 print the board again
  leave                leave the room
  quit                 exit
`

var errUnknownCommand = errors.New("unknown command")

type shell struct {
	controller *session.Controller

	mu  sync.Mutex
	out io.Writer
}

func newShell(controller *session.Controller, out io.Writer) *shell {
	return &shell{
		controller: controller,
		out:        out,
	}
}

// run reads commands until quit, EOF or ctx is done.
func (that *shell) run(ctx context.Context, in io.Reader) error {
	go that.follow(ctx)

	that.print(render.Render(that.controller.Session()))

	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}

			quit, err := that.execute(ctx, line)
			if err != nil {
				that.print(describe(err) + "\n")
			}

			if quit {
				return nil
			}
		}
	}
}

// execute runs one command line. The board is printed by follow.
func (that *shell) execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	command, args := strings.ToLower(fields[0]), fields[1:]

	if _, err := strconv.Atoi(command); err == nil {
		command, args = "move", fields
	}

	var err error

	switch command {
	case "create":
		_, err = that.controller.CreateRoom(ctx, strings.Join(args, " "))
	case "join":
		if len(args) < 2 {
			return false, fmt.Errorf("%w: usage: join CODE NAME", errUnknownCommand)
		}
		_, err = that.controller.JoinRoom(ctx, args[0], strings.Join(args[1:], " "))
	case "watch":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: usage: watch CODE", errUnknownCommand)
		}
		_, err = that.controller.Spectate(ctx, args[0])
	case "move":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: usage: move CELL", errUnknownCommand)
		}

		cell, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return false, fmt.Errorf("%w: cell must be a number from 0 to 8", errUnknownCommand)
		}
		_, err = that.controller.AttemptMove(ctx, cell)
	case "restart":
		_, err = that.controller.Restart(ctx)
	case "say":
		_, err = that.controller.SendMessage(ctx, strings.Join(args, " "))
	case "show", "refresh":
		if that.controller.Session().IsJoined() {
			_, err = that.controller.Refresh(ctx)
		}
		that.print(render.Render(that.controller.Session()))
	case "leave":
		that.controller.LeaveRoom()
	case "help":
		that.print(helpText)
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q, type help", errUnknownCommand, command)
	}

	return false, err
}

// follow prints the board whenever the session changes.
func (that *shell) follow(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case current := <-that.controller.Updates():
			that.print(render.Render(current))
		}
	}
}

func (that *shell) print(text string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, _ = io.WriteString(that.out, text)
}

func describe(err error) string {
	switch {
	case errors.Is(err, apperror.ErrNotYourTurn):
		return "Not your turn."
	case errors.Is(err, apperror.ErrGameFinished):
		return "The game is over, type restart to play again."
	case errors.Is(err, apperror.ErrIllegalMove):
		return "That cell can't be played."
	case errors.Is(err, apperror.ErrRoomFull):
		return "That room already has two players, try watch CODE."
	case errors.Is(err, apperror.ErrRoomNotFound):
		return "No room with that code."
	case errors.Is(err, apperror.ErrConflict):
		return "The room changed in the meantime, the board is up to date now. Try again."
	case errors.Is(err, apperror.ErrStoreUnavailable):
		return "The room store is unreachable, try again later."
	default:
		return "Error: " + err.Error()
	}
}
