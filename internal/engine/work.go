package engine

import (
	"errors"
	"fmt"

	"github.com/castlab/enginerelay/internal/rules"
)

// MaxMoves bounds the replay cost of a single job.
const MaxMoves = 600

var (
	ErrUnsupportedVariant = errors.New("unsupported variant")
	ErrTooManyMoves       = errors.New("too many moves")
	ErrInvalidMultiPv     = fmt.Errorf("multiPv must be between %d and %d", MinMultiPv, MaxMultiPv)
	ErrInvalidThreads     = errors.New("threads must be at least 1")
	ErrInvalidHash        = errors.New("hash must be at least 1")
)

// PositionError reports an illegal or malformed initial position.
type PositionError struct {
	Err error
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("illegal initial position: %v", e.Err)
}

func (e *PositionError) Unwrap() error { return e.Err }

// MoveError reports the first move in the sequence that is not legal in its
// position.
type MoveError struct {
	Index int
	UCI   string
	Err   error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("illegal move %q at index %d: %v", e.UCI, e.Index, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

// Work is an analysis job payload. A Work that came out of Sanitize is in
// canonical form: variant normalized, FEN and moves re-serialized, resources
// clamped to the owning engine's maxima.
type Work struct {
	SessionID  string   `json:"sessionId"`
	Threads    int      `json:"threads"`
	Hash       int      `json:"hash"`
	Deep       bool     `json:"deep"`
	MultiPv    MultiPv  `json:"multiPv"`
	Variant    Variant  `json:"variant"`
	InitialFen string   `json:"initialFen"`
	Moves      []string `json:"moves"`
}

// Sanitize validates w against the engine's declared capabilities and fixed
// system limits, returning the canonical work plus the fully-replayed end
// position. The checks run in order and the first failure short-circuits;
// no partial result is ever produced.
func (w Work) Sanitize(eng Engine) (Work, *rules.Position, error) {
	if !eng.SupportsVariant(w.Variant) {
		return Work{}, nil, ErrUnsupportedVariant
	}
	if w.MultiPv < MinMultiPv || w.MultiPv > MaxMultiPv {
		return Work{}, nil, ErrInvalidMultiPv
	}
	if w.Threads < 1 {
		return Work{}, nil, ErrInvalidThreads
	}
	if w.Hash < 1 {
		return Work{}, nil, ErrInvalidHash
	}

	native := w.Variant.Native()
	pos, err := rules.NewPosition(native, w.InitialFen)
	if err != nil {
		if errors.Is(err, rules.ErrUnsupportedVariant) {
			return Work{}, nil, ErrUnsupportedVariant
		}
		return Work{}, nil, &PositionError{Err: err}
	}
	initialFen := pos.FEN()

	if len(w.Moves) > MaxMoves {
		return Work{}, nil, ErrTooManyMoves
	}

	moves := make([]string, 0, len(w.Moves))
	for i, uci := range w.Moves {
		canonical, err := pos.Play(uci)
		if err != nil {
			return Work{}, nil, &MoveError{Index: i, UCI: uci, Err: err}
		}
		moves = append(moves, canonical)
	}

	return Work{
		SessionID:  w.SessionID,
		Threads:    min(w.Threads, eng.MaxThreads),
		Hash:       min(w.Hash, eng.MaxHash),
		Deep:       w.Deep,
		MultiPv:    w.MultiPv,
		Variant:    variantFromNative(native),
		InitialFen: initialFen,
		Moves:      moves,
	}, pos, nil
}
