package zipkit

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipkit/internal/testutil"
)

func TestRunBatch_PackAndExtract(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	const n = 4
	trees := make([]map[string]string, n)
	packJobs := make([]Job, n)
	packStats := make([]PackStats, n)
	for i := range n {
		id := strconv.Itoa(i)
		trees[i] = map[string]string{
			"file-" + id + ".txt": "content " + id,
			"sub/nested.txt":      "nested " + id,
			"empty/":              "",
		}
		src := filepath.Join(base, "src"+id)
		testutil.WriteTree(t, src, trees[i])
		packJobs[i] = PackDirectoryJob(filepath.Join(base, id+".zip"), src, &packStats[i],
			PackWithPassword("pw-"+id))
	}
	require.NoError(t, RunBatch(context.Background(), packJobs, 2))
	for i := range n {
		assert.Equal(t, 2, packStats[i].Files)
		assert.Equal(t, 1, packStats[i].Dirs)
	}

	extractJobs := make([]Job, n)
	extractStats := make([]ExtractStats, n)
	for i := range n {
		id := strconv.Itoa(i)
		extractJobs[i] = ExtractJob(filepath.Join(base, id+".zip"), filepath.Join(base, "out"+id), &extractStats[i],
			ExtractWithPassword("pw-"+id))
	}
	require.NoError(t, RunBatch(context.Background(), extractJobs, 0))
	for i := range n {
		assert.Equal(t, 2, extractStats[i].Files)
		assert.Equal(t, trees[i], testutil.ReadTree(t, filepath.Join(base, "out"+strconv.Itoa(i))))
	}
}

func TestRunBatch_Error(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	var ran atomic.Int32
	jobs := []Job{
		func(context.Context) error {
			ran.Add(1)
			return nil
		},
		func(context.Context) error {
			ran.Add(1)
			return errBoom
		},
	}
	err := RunBatch(context.Background(), jobs, 1)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(2), ran.Load())
}

func TestRunBatch_CancelsRemaining(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	src := filepath.Join(base, "src")
	testutil.WriteTree(t, src, map[string]string{"a.txt": "a"})
	archive := filepath.Join(base, "a.zip")
	_, err := CreateFromDirectory(context.Background(), archive, src)
	require.NoError(t, err)

	errBoom := errors.New("boom")
	jobs := []Job{
		func(context.Context) error { return errBoom },
		ExtractJob(archive, filepath.Join(base, "out"), nil),
	}
	// With one worker the failing job finishes before the extract starts,
	// so the extract either never runs or sees a cancelled context.
	err = RunBatch(context.Background(), jobs, 1)
	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, ErrCancelled)
}

func TestRunBatch_Empty(t *testing.T) {
	t.Parallel()

	require.NoError(t, RunBatch(context.Background(), nil, 3))
}
