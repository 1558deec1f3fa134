package pdfrender

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/cheggaaa/pb/v3"
)

// documentJob represents a single task for a worker to convert one document.
type documentJob struct {
	sourcePath string
	outputPath string
}

// documentPool manages the concurrent conversion of a batch of documents.
type documentPool struct {
	parent      *Processor // A reference back to the main processor for config and logging.
	progressBar *pb.ProgressBar
	outputDir   string

	mu      sync.Mutex
	summary Summary
}

// newDocumentPool creates a pool writing into outputDir.
func newDocumentPool(parent *Processor, outputDir string, progressBar *pb.ProgressBar) *documentPool {
	return &documentPool{
		parent:      parent,
		progressBar: progressBar,
		outputDir:   outputDir,
		mu:          sync.Mutex{},
		summary:     Summary{Converted: 0, Failed: 0},
	}
}

// run starts the workers, distributes jobs and waits for completion.
func (pool *documentPool) run(ctx context.Context, sourcePaths []string) Summary {
	jobs := make(chan documentJob, len(sourcePaths))

	var waitGroup sync.WaitGroup

	for range pool.parent.config.Workers {
		waitGroup.Add(1)

		go pool.worker(ctx, &waitGroup, jobs)
	}

	for _, sourcePath := range sourcePaths {
		jobs <- documentJob{
			sourcePath: sourcePath,
			outputPath: outputPathFor(pool.outputDir, sourcePath),
		}
	}

	close(jobs)

	waitGroup.Wait()

	pool.mu.Lock()
	defer pool.mu.Unlock()

	return pool.summary
}

// worker pulls jobs from the channel until it is closed and empty.
func (pool *documentPool) worker(
	ctx context.Context,
	waitGroup *sync.WaitGroup,
	jobs <-chan documentJob,
) {
	defer waitGroup.Done()

	for job := range jobs {
		// Check if the context has been canceled (e.g., by Ctrl+C).
		if ctx.Err() != nil {
			pool.parent.log.Warn(
				"Context canceled, skipping %s",
				filepath.Base(job.sourcePath),
			)
			pool.record(false)

			continue
		}

		pool.parent.log.Info("Starting conversion for: %s", filepath.Base(job.sourcePath))

		processErr := pool.parent.processOneDocument(job.sourcePath, job.outputPath)
		if processErr != nil {
			pool.parent.log.Error(
				"Failed to convert %s: %v",
				filepath.Base(job.sourcePath),
				processErr,
			)
		} else {
			pool.parent.log.Success("Successfully converted %s", filepath.Base(job.sourcePath))
		}

		pool.record(processErr == nil)
	}
}

func (pool *documentPool) record(converted bool) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if converted {
		pool.summary.Converted++
	} else {
		pool.summary.Failed++
	}

	pool.progressBar.Increment()
}
