package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func testEngine() Engine {
	return Engine{
		ID:         "eng1",
		Name:       "stockfish",
		MaxThreads: 4,
		MaxHash:    256,
		Variants:   []Variant{VariantStandard},
	}
}

func testWork() Work {
	return Work{
		SessionID:  "sess",
		Threads:    2,
		Hash:       128,
		MultiPv:    1,
		Variant:    VariantStandard,
		InitialFen: startFEN,
		Moves:      []string{"e2e4"},
	}
}

func TestSanitizeClampsResourcesDownwardOnly(t *testing.T) {
	t.Parallel()

	eng := testEngine()

	over := testWork()
	over.Threads = 8
	over.Hash = 1024
	got, _, err := over.Sanitize(eng)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Threads)
	assert.Equal(t, 256, got.Hash)

	under := testWork()
	under.Threads = 2
	under.Hash = 64
	got, _, err = under.Sanitize(eng)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Threads)
	assert.Equal(t, 64, got.Hash)
}

func TestSanitizeCanonicalizes(t *testing.T) {
	t.Parallel()

	w := testWork()
	w.Threads = 8
	got, end, err := w.Sanitize(testEngine())
	require.NoError(t, err)

	assert.Equal(t, 4, got.Threads)
	assert.Equal(t, startFEN, got.InitialFen)
	assert.Equal(t, []string{"e2e4"}, got.Moves)
	assert.Equal(t, VariantStandard, got.Variant)
	require.NotNil(t, end)
	assert.NotEqual(t, startFEN, end.FEN())
}

func TestSanitizeIsIdempotent(t *testing.T) {
	t.Parallel()

	w := testWork()
	w.Threads = 8
	w.Variant = VariantChess960

	first, _, err := w.Sanitize(testEngine())
	require.NoError(t, err)
	second, _, err := first.Sanitize(testEngine())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSanitizeNormalizesVariantToCanonicalSpelling(t *testing.T) {
	t.Parallel()

	for _, v := range []Variant{VariantChess960, VariantFromPosition} {
		w := testWork()
		w.Variant = v
		got, _, err := w.Sanitize(testEngine())
		require.NoError(t, err)
		assert.Equal(t, VariantStandard, got.Variant)
	}
}

func TestSanitizeRejectsUndeclaredVariant(t *testing.T) {
	t.Parallel()

	w := testWork()
	w.Variant = VariantThreeCheck
	_, _, err := w.Sanitize(testEngine())
	assert.ErrorIs(t, err, ErrUnsupportedVariant)
}

func TestSanitizeRejectsTooManyMoves(t *testing.T) {
	t.Parallel()

	w := testWork()
	w.Moves = make([]string, MaxMoves+1)
	for i := range w.Moves {
		w.Moves[i] = "e2e4"
	}
	_, _, err := w.Sanitize(testEngine())
	assert.ErrorIs(t, err, ErrTooManyMoves)

	// Exactly at the bound the length check passes (the replay then fails
	// on the first repeated move, proving no off-by-one).
	w.Moves = w.Moves[:MaxMoves]
	_, _, err = w.Sanitize(testEngine())
	assert.NotErrorIs(t, err, ErrTooManyMoves)
}

func TestSanitizeRejectsMultiPvOutOfRange(t *testing.T) {
	t.Parallel()

	for _, pv := range []MultiPv{0, 6} {
		w := testWork()
		w.MultiPv = pv
		_, _, err := w.Sanitize(testEngine())
		assert.ErrorIs(t, err, ErrInvalidMultiPv, "multiPv=%d", pv)
	}
	for pv := MinMultiPv; pv <= MaxMultiPv; pv++ {
		w := testWork()
		w.MultiPv = pv
		_, _, err := w.Sanitize(testEngine())
		assert.NoError(t, err, "multiPv=%d", pv)
	}
}

func TestSanitizeRejectsZeroResources(t *testing.T) {
	t.Parallel()

	w := testWork()
	w.Threads = 0
	_, _, err := w.Sanitize(testEngine())
	assert.ErrorIs(t, err, ErrInvalidThreads)

	w = testWork()
	w.Hash = 0
	_, _, err = w.Sanitize(testEngine())
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestSanitizeRejectsMalformedPosition(t *testing.T) {
	t.Parallel()

	w := testWork()
	w.InitialFen = "not a position"
	_, _, err := w.Sanitize(testEngine())

	var posErr *PositionError
	require.ErrorAs(t, err, &posErr)
}

func TestSanitizeRejectsIllegalMoveWithIndex(t *testing.T) {
	t.Parallel()

	w := testWork()
	w.Moves = []string{"e2e4", "e7e5", "e4e6"}
	_, _, err := w.Sanitize(testEngine())

	var moveErr *MoveError
	require.ErrorAs(t, err, &moveErr)
	assert.Equal(t, 2, moveErr.Index)
	assert.Equal(t, "e4e6", moveErr.UCI)
}

func TestSanitizeProducesNoPartialOutput(t *testing.T) {
	t.Parallel()

	w := testWork()
	w.Moves = []string{"e2e4", "bogus"}
	got, end, err := w.Sanitize(testEngine())
	require.Error(t, err)
	assert.Equal(t, Work{}, got)
	assert.Nil(t, end)
}

func TestSanitizeScenario(t *testing.T) {
	t.Parallel()

	// Provider declares maxThreads=4; client asks for 8 with one legal
	// opening move.
	w := Work{
		SessionID:  "sess",
		Threads:    8,
		Hash:       16,
		MultiPv:    1,
		Variant:    VariantStandard,
		InitialFen: startFEN,
		Moves:      []string{"e2e4"},
	}
	got, _, err := w.Sanitize(testEngine())
	require.NoError(t, err)
	assert.Equal(t, 4, got.Threads)
	assert.Equal(t, []string{"e2e4"}, got.Moves)
	assert.Equal(t, startFEN, got.InitialFen)
}

func TestSanitizeErrorKindsAreDistinct(t *testing.T) {
	t.Parallel()

	assert.False(t, errors.Is(ErrTooManyMoves, ErrUnsupportedVariant))
	assert.False(t, errors.Is(ErrInvalidMultiPv, ErrTooManyMoves))
}
