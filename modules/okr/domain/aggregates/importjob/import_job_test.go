package importjob

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestJob() *ImportJob {
	return New(uuid.New(), uuid.New(), "imports/okr.csv", "okr.csv", "abc123", "text/csv", 512)
}

func TestImportJob_Lifecycle(t *testing.T) {
	t.Parallel()

	j := newTestJob()
	require.Equal(t, StatusPending, j.Status())

	require.NoError(t, j.Start(3))
	require.Equal(t, StatusProcessing, j.Status())
	require.Equal(t, 3, j.TotalRows())
	require.NotNil(t, j.StartedAt())

	require.NoError(t, j.RecordBatch(3, 0))
	require.NoError(t, j.Finalize())
	require.Equal(t, StatusCompleted, j.Status())
	require.NotNil(t, j.CompletedAt())

	// terminal states are never revisited
	require.Error(t, j.Start(3))
	require.Error(t, j.Finalize())
	require.Error(t, j.RecordBatch(1, 0))
}

func TestImportJob_FinalStatusFromCounters(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		succeeded int
		failed    int
		want      Status
	}{
		{"all rows succeed", 5, 0, StatusCompleted},
		{"some rows fail", 4, 1, StatusPartial},
		{"all rows fail", 0, 5, StatusFailed},
		{"empty file", 0, 0, StatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j := newTestJob()
			require.NoError(t, j.Start(tc.succeeded+tc.failed))
			if tc.succeeded+tc.failed > 0 {
				require.NoError(t, j.RecordBatch(tc.succeeded, tc.failed))
			}
			require.NoError(t, j.Finalize())
			require.Equal(t, tc.want, j.Status())
		})
	}
}

func TestImportJob_CountersAreMonotonic(t *testing.T) {
	t.Parallel()

	j := newTestJob()
	require.NoError(t, j.Start(40))

	prev := 0
	for i := 0; i < 4; i++ {
		require.NoError(t, j.RecordBatch(8, 2))
		require.Greater(t, j.ProcessedRows(), prev)
		prev = j.ProcessedRows()
	}
	require.Equal(t, 40, j.ProcessedRows())
	require.Equal(t, j.ProcessedRows(), j.SuccessRows()+j.ErrorRows())

	require.Error(t, j.RecordBatch(-1, 0))
}

func TestImportJob_FailRecordsSummary(t *testing.T) {
	t.Parallel()

	j := newTestJob()
	require.NoError(t, j.Start(10))
	require.NoError(t, j.Fail("storage unreachable"))
	require.Equal(t, StatusFailed, j.Status())
	require.Equal(t, "storage unreachable", j.ErrorSummary())
}
