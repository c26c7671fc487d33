package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlobArchiver struct {
	cutoffs []time.Time
	count   int64
	err     error
}

func (f *fakeBlobArchiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	return f.count, f.err
}

func TestArchiverRunUsesRetentionCutoff(t *testing.T) {
	blob := &fakeBlobArchiver{count: 7}
	a := NewArchiver(blob, 90, slog.Default())

	require.NoError(t, a.Run(context.Background()))
	require.Len(t, blob.cutoffs, 1)

	want := time.Now().UTC().Add(-90 * 24 * time.Hour)
	assert.WithinDuration(t, want, blob.cutoffs[0], time.Minute)
}

func TestArchiverRunPropagatesError(t *testing.T) {
	blob := &fakeBlobArchiver{err: errors.New("bucket gone")}
	a := NewArchiver(blob, 30, slog.Default())

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2025, time.January, 15, 12, 30, 45, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{
			name: "every minute",
			expr: "* * * * *",
			want: time.Date(2025, time.January, 15, 12, 31, 0, 0, time.UTC),
		},
		{
			name: "daily at 3am",
			expr: "0 3 * * *",
			want: time.Date(2025, time.January, 16, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly on the 1st",
			expr: "0 3 1 * *",
			want: time.Date(2025, time.February, 1, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "value list",
			expr: "0,30 * * * *",
			want: time.Date(2025, time.January, 15, 13, 0, 0, 0, time.UTC),
		},
		{
			name: "minute step",
			expr: "*/15 * * * *",
			want: time.Date(2025, time.January, 15, 12, 45, 0, 0, time.UTC),
		},
		{
			name: "day-of-month step anchors at one",
			expr: "0 0 */10 * *",
			want: time.Date(2025, time.January, 21, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextCronTime(tt.expr, after)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextCronTimeRejectsMalformedExpressions(t *testing.T) {
	for _, expr := range []string{"", "* * *", "x * * * *", "0 3 1 * * *", "*/0 * * * *"} {
		_, err := nextCronTime(expr, time.Now())
		assert.Error(t, err, "expr %q", expr)
	}
}

func TestRunCronStopsOnCancel(t *testing.T) {
	blob := &fakeBlobArchiver{}
	a := NewArchiver(blob, 30, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunCron(ctx, "0 3 1 * *") }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("RunCron did not stop after cancel")
	}
}
