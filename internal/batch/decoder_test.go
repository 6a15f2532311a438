package batch_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/UnknownOlympus/cartograph/internal/batch"
	"github.com/UnknownOlympus/cartograph/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, table string) ([]batch.Row, error) {
	t.Helper()
	decoder := batch.NewResultDecoder(strings.NewReader(table), ',')

	var rows []batch.Row
	for {
		row, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

func TestResultDecoder(t *testing.T) {
	const header = "recId,SeqNumber,seqLength,latitude,longitude\n"

	t.Run("well-formed rows", func(t *testing.T) {
		rows, err := decodeAll(t, header+"a,1,1,42.0,-71.0\nb,1,1,43.65,-79.38\n")

		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, models.RequestID("a"), rows[0].ID)
		assert.True(t, rows[0].Resolved)
		assert.InDelta(t, 42.0, rows[0].Coordinates.Latitude, 1e-9)
		assert.InDelta(t, -71.0, rows[0].Coordinates.Longitude, 1e-9)
		assert.Equal(t, 2, rows[0].Line)
		assert.Equal(t, models.RequestID("b"), rows[1].ID)
		assert.Equal(t, 3, rows[1].Line)
	})

	t.Run("header only", func(t *testing.T) {
		rows, err := decodeAll(t, header)

		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("empty input", func(t *testing.T) {
		rows, err := decodeAll(t, "")

		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("non-numeric coordinates yield an unresolved row", func(t *testing.T) {
		rows, err := decodeAll(t, header+"a,1,1,abc,-71.0\nb,1,1,42.0,\nc,1,1,42.0,-71.0\n")

		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.False(t, rows[0].Resolved)
		assert.Equal(t, models.RequestID("a"), rows[0].ID)
		assert.False(t, rows[1].Resolved)
		assert.True(t, rows[2].Resolved)
	})

	t.Run("zero coordinates are not a result", func(t *testing.T) {
		rows, err := decodeAll(t, header+"a,1,1,0,0\n")

		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.False(t, rows[0].Resolved)
	})

	t.Run("non-finite coordinates yield an unresolved row", func(t *testing.T) {
		rows, err := decodeAll(t, header+"a,1,1,NaN,Inf\nb,1,1,42.0,-Inf\nc,1,1,+Inf,-71.0\n")

		require.NoError(t, err)
		require.Len(t, rows, 3)
		for _, row := range rows {
			assert.False(t, row.Resolved, "row %s", row.ID)
			assert.True(t, row.Coordinates.IsEmpty(), "row %s", row.ID)
		}
	})

	t.Run("wrong field count aborts after earlier rows", func(t *testing.T) {
		rows, err := decodeAll(t, header+"a,1,1,42.0,-71.0\nb,1,42.0\nc,1,1,43.0,-70.0\n")

		require.Error(t, err)
		require.ErrorIs(t, err, batch.ErrMalformedResult)
		var malformed *batch.MalformedResultError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, 3, malformed.Line)
		assert.Equal(t, 3, malformed.Fields)
		assert.Equal(t, "b,1,42.0", malformed.Content)
		require.Len(t, rows, 1, "rows before the malformed line are still yielded")
		assert.Equal(t, models.RequestID("a"), rows[0].ID)
	})

	t.Run("too many fields abort as well", func(t *testing.T) {
		_, err := decodeAll(t, header+"a,1,1,42.0,-71.0,extra\n")

		require.ErrorIs(t, err, batch.ErrMalformedResult)
	})

	t.Run("windows line endings and blank lines", func(t *testing.T) {
		rows, err := decodeAll(t, "recId,SeqNumber,seqLength,latitude,longitude\r\na,1,1,42.0,-71.0\r\n\r\n")

		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.InDelta(t, -71.0, rows[0].Coordinates.Longitude, 1e-9)
	})
}
