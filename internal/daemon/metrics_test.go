package daemon

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailMetrics_BasicOperations(t *testing.T) {
	metrics := &TailMetrics{}

	metrics.IncFilesDiscovered()
	metrics.IncFilesProcessed()
	metrics.IncFilesFailed()
	metrics.IncWorkersBusy()
	metrics.IncLinesRead()
	metrics.IncLinesRead()

	result := metrics.GetMetricsStamp()

	assert.Equal(t, 1, result.FilesDiscovered)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.FilesFailed)
	assert.Equal(t, 1, result.WorkersBusy)
	assert.Equal(t, 2, result.LinesRead)
}

func TestTailMetrics_QueueUsage(t *testing.T) {
	metrics := &TailMetrics{}
	assert.Equal(t, 0.0, metrics.GetQueueUsage())

	metrics.FilesQueueCapacity = 10
	for i := 0; i < 5; i++ {
		metrics.IncAmountQueueFiles()
	}
	assert.InDelta(t, 0.5, metrics.GetQueueUsage(), 1e-9)

	metrics.DecAmountQueueFiles()
	assert.InDelta(t, 0.4, metrics.GetQueueUsage(), 1e-9)
}

func TestTailMetrics_ConcurrentIncrements(t *testing.T) {
	metrics := &TailMetrics{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				metrics.IncLinesRead()
				metrics.IncWorkersBusy()
				metrics.DecWorkersBusy()
			}
		}()
	}
	wg.Wait()

	result := metrics.GetMetricsStamp()
	assert.Equal(t, 1000, result.LinesRead)
	assert.Equal(t, 0, result.WorkersBusy)
}
