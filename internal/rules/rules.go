// Package rules wraps the chess rules library behind the small contract the
// sanitizer needs: build a position from FEN, replay UCI moves with legality
// checking, and re-serialize both in canonical form.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// Variant is the native rule-variant space. Several wire variants collapse
// into VariantChess because they differ only in starting position, not in
// movement rules.
type Variant uint8

const (
	VariantChess Variant = iota
	VariantKingOfTheHill
	VariantThreeCheck
	VariantAntichess
	VariantAtomic
	VariantCrazyhouse
	VariantHorde
	VariantRacingKings
)

var variantNames = map[Variant]string{
	VariantChess:         "chess",
	VariantKingOfTheHill: "kingOfTheHill",
	VariantThreeCheck:    "threeCheck",
	VariantAntichess:     "antichess",
	VariantAtomic:        "atomic",
	VariantCrazyhouse:    "crazyhouse",
	VariantHorde:         "horde",
	VariantRacingKings:   "racingKings",
}

func (v Variant) String() string {
	if s, ok := variantNames[v]; ok {
		return s
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

// Supported reports whether move legality can be fully validated for v.
// Variants that share standard piece movement are supported; variants with
// divergent movement rules (drops, exploding captures, inverted objectives)
// are not expressible with the underlying library.
func (v Variant) Supported() bool {
	switch v {
	case VariantChess, VariantKingOfTheHill, VariantThreeCheck:
		return true
	}
	return false
}

var (
	ErrUnsupportedVariant = errors.New("rules: unsupported variant")
	ErrIllegalPosition    = errors.New("rules: illegal position")
	ErrIllegalMove        = errors.New("rules: illegal move")
)

var uciNotation = chess.UCINotation{}

// Position is a mutable replay cursor over a variant position.
type Position struct {
	variant Variant
	pos     *chess.Position
}

// NewPosition parses fen into a position under variant v. The parse is
// tolerant of surrounding whitespace; everything else must be a complete
// six-field FEN.
func NewPosition(v Variant, fen string) (*Position, error) {
	if !v.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVariant, v)
	}
	opt, err := chess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalPosition, err)
	}
	game := chess.NewGame(opt)
	return &Position{variant: v, pos: game.Position()}, nil
}

// Variant returns the native variant the position was constructed under.
func (p *Position) Variant() Variant {
	return p.variant
}

// FEN returns the canonical serialization of the current position.
func (p *Position) FEN() string {
	return p.pos.String()
}

// Play applies one move given in UCI notation, mutating the position.
// It returns the canonical encoding of the move, or ErrIllegalMove if the
// move is not legal in the current position. King-takes-own-rook castling
// input is accepted and normalized to the standard king-move encoding.
func (p *Position) Play(uci string) (string, error) {
	uci = p.normalizeCastling(strings.TrimSpace(uci))
	for _, m := range p.pos.ValidMoves() {
		enc := uciNotation.Encode(p.pos, m)
		if enc == uci {
			p.pos = p.pos.Update(m)
			return enc, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrIllegalMove, uci)
}

// normalizeCastling rewrites a king-takes-own-rook UCI move to the standard
// two-square king move. Anything that is not such a move passes through.
func (p *Position) normalizeCastling(uci string) string {
	if len(uci) != 4 {
		return uci
	}
	from, ok1 := squareFromUCI(uci[0:2])
	to, ok2 := squareFromUCI(uci[2:4])
	if !ok1 || !ok2 {
		return uci
	}
	board := p.pos.Board()
	king := board.Piece(from)
	rook := board.Piece(to)
	if king.Type() != chess.King || rook.Type() != chess.Rook || king.Color() != rook.Color() {
		return uci
	}
	// Same-rank king onto own rook: kingside if the rook is to the right.
	if uci[1] != uci[3] {
		return uci
	}
	if uci[2] > uci[0] {
		return uci[0:2] + "g" + uci[1:2]
	}
	return uci[0:2] + "c" + uci[1:2]
}

func squareFromUCI(s string) (chess.Square, bool) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return chess.NoSquare, false
	}
	file := int(s[0] - 'a')
	rank := int(s[1] - '1')
	return chess.Square(rank*8 + file), true
}
