package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func counterTokens() TokenGenerator { return &CounterTokens{} }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scanned builds a run from in-memory entries, the way Import does.
func scanned(t *testing.T, entries ...Entry) *Run {
	t.Helper()
	run := NewRun(seqIDs(), counterTokens())
	pending, err := Scan(context.Background(), run, entries, ScanOptions{})
	require.NoError(t, err)
	ResolveAssets(run, pending)
	return run
}

func paths(ps ...string) []Entry {
	out := make([]Entry, 0, len(ps))
	for _, p := range ps {
		out = append(out, NewEntry(p, nil))
	}
	return out
}
