package postgres

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

const pgxmockExpectationsNotMetMsg = "there were unfulfilled expectations"

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newMockPool(t *testing.T) (context.Context, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}
	t.Cleanup(mockPool.Close)
	return context.Background(), mockPool
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
