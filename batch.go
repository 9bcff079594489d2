package zipkit

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Job is one unit of work for RunBatch. A job owns every Archive it opens;
// sessions must not be shared between jobs.
type Job func(ctx context.Context) error

// RunBatch runs jobs concurrently with at most workers running at once.
// If workers is zero or negative, runtime.GOMAXPROCS(0) is used.
//
// The first job error cancels the context passed to the remaining jobs and
// is returned once all started jobs finish.
func RunBatch(ctx context.Context, jobs []Job, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return job(gctx)
		})
	}
	return g.Wait()
}

// ExtractJob returns a job that extracts the archive at archivePath beneath dest.
// If stats is non-nil it receives the result.
func ExtractJob(archivePath, dest string, stats *ExtractStats, opts ...ExtractOption) Job {
	return func(ctx context.Context) error {
		s, err := ExtractFile(ctx, archivePath, dest, opts...)
		if stats != nil && s != nil {
			*stats = *s
		}
		return err
	}
}

// PackDirectoryJob returns a job that creates the archive at archivePath from
// the tree beneath root. If stats is non-nil it receives the result.
func PackDirectoryJob(archivePath, root string, stats *PackStats, opts ...PackOption) Job {
	return func(ctx context.Context) error {
		s, err := CreateFromDirectory(ctx, archivePath, root, opts...)
		if stats != nil && s != nil {
			*stats = *s
		}
		return err
	}
}
