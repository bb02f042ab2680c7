package tictactoe

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

var (
	ErrCellOccupied = errors.New("cell is already occupied")
	ErrInvalidCell  = errors.New("invalid cell index")
	ErrInvalidMark  = errors.New("invalid mark")

	// WinCombos is checked in order: rows, columns, diagonals.
	WinCombos = [8][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

// Evaluate classifies a board. The first completed line in WinCombos order is reported.
func Evaluate(board entity.Board) entity.Outcome {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return entity.Win(a, combo)
		}
	}

	// the game will continue until all the squares are full
	if !board.IsFull() {
		return entity.InProgress()
	}

	return entity.Tie()
}

// ValidateMove - checks if acting may place a mark on cell.
func ValidateMove(board entity.Board, cell int, acting, turn entity.Mark) error {
	if !Evaluate(board).IsInProgress() {
		return apperror.ErrGameFinished
	}

	if cell < 0 || cell >= len(board) {
		return fmt.Errorf("%w: cell %d", ErrInvalidCell, cell)
	}

	if !acting.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMark, acting)
	}

	if acting != turn {
		return apperror.ErrNotYourTurn
	}

	if board[cell] != entity.EmptyCell {
		return ErrCellOccupied
	}

	return nil
}

func IsLegalMove(board entity.Board, cell int, acting, turn entity.Mark) bool {
	return ValidateMove(board, cell, acting, turn) == nil
}

// ApplyMove returns the room after mark is placed on cell. The input is never modified.
func ApplyMove(room entity.Room, cell int, mark entity.Mark) (entity.Room, error) {
	if err := ValidateMove(room.Board, cell, mark, room.Turn); err != nil {
		return room, fmt.Errorf("invalid turn: %w", err)
	}

	next := room.Clone()
	next.Board[cell] = mark
	next.Turn = mark.Opponent()
	next.Outcome = Evaluate(next.Board)

	if next.Outcome.IsWin() {
		next.WinnerName = next.PlayerName(next.Outcome.Mark)
	}

	return next, nil
}
