package daemon

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hpcloud/tail"

	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging"
)

// TailService discovers *.log files under a root directory, follows them,
// and turns every new line into an event for a logging.Logger.
type TailService struct {
	config        Config
	logger        logging.Logger
	log           *slog.Logger
	fileQueue     chan string
	workersWg     sync.WaitGroup
	subServicesWg sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	metrics       *TailMetrics

	// tailing holds files a worker currently follows, so rescans do not
	// queue them twice.
	tailing      map[string]struct{}
	tailingMutex sync.Mutex
	seenFiles    map[string]struct{}
}

type Config struct {
	LogRootPath    string
	ScanInterval   time.Duration
	Workers        int
	FileQueueSize  int
	ReportInterval time.Duration
	// Tags are added to every event, ahead of the detected level tag.
	Tags []string
	// FromStart reads existing file content instead of only new lines.
	FromStart bool
	// Poll uses stat polling instead of inotify.
	Poll bool
	// If > 0, stop tailing a file after this period without new lines
	FileIdleTimeout time.Duration
}

// NewTailService always creates 2 + config.Workers go routines on Start()
func NewTailService(ctx context.Context, config Config, logger logging.Logger, log *slog.Logger) *TailService {
	nCtx, cancel := context.WithCancel(ctx)
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.FileQueueSize < 1 {
		config.FileQueueSize = config.Workers
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = 30 * time.Second
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &TailService{
		config:    config,
		logger:    logger,
		log:       log,
		fileQueue: make(chan string, config.FileQueueSize),
		ctx:       nCtx,
		cancel:    cancel,
		metrics: &TailMetrics{
			FilesQueueCapacity: config.FileQueueSize,
		},
		tailing:   make(map[string]struct{}),
		seenFiles: make(map[string]struct{}),
	}
}

func (s *TailService) Start() {
	s.log.Info("daemon: starting tail service",
		"root", s.config.LogRootPath, "workers", s.config.Workers, "queueSize", s.config.FileQueueSize)

	for i := 0; i < s.config.Workers; i++ {
		s.workersWg.Add(1)
		go s.worker(i)
	}

	s.scanFiles()

	s.subServicesWg.Add(1)
	go s.scanner()

	s.subServicesWg.Add(1)
	go s.metricsReporter()
}

func (s *TailService) Stop() {
	s.log.Info("daemon: stopping tail service")
	s.cancel()

	s.subServicesWg.Wait()

	close(s.fileQueue)
	s.workersWg.Wait()

	s.log.Info("daemon: tail service stopped")
}

func (s *TailService) Metrics() TailMetrics {
	return s.metrics.GetMetricsStamp()
}

func (s *TailService) worker(id int) {
	defer s.workersWg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("daemon: worker panicked", "worker", id, "panic", r)
		}
	}()

	for {
		select {
		case filePath, ok := <-s.fileQueue:
			if !ok {
				return
			}
			s.metrics.DecAmountQueueFiles()
			s.metrics.IncWorkersBusy()
			s.processFile(s.ctx, filePath)
			s.metrics.DecWorkersBusy()
			s.release(filePath)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *TailService) processFile(ctx context.Context, filePath string) {
	defer s.metrics.IncFilesProcessed()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("daemon: file processing panicked", "file", filePath, "panic", r)
			s.metrics.IncFilesFailed()
		}
	}()

	whence := io.SeekEnd
	if s.config.FromStart {
		whence = io.SeekStart
	}

	t, err := tail.TailFile(filePath, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     s.config.Poll,
		Location: &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		s.log.Warn("daemon: failed to tail file", "file", filePath, "error", err)
		s.metrics.IncFilesFailed()
		return
	}
	defer t.Cleanup()
	defer func() { _ = t.Stop() }()

	checkTicker := time.NewTicker(1 * time.Second)
	defer checkTicker.Stop()

	lastActivity := time.Now()
	source := s.sourceOf(filePath)

	for {
		select {
		case line, ok := <-t.Lines:
			if !ok {
				return
			}
			if line == nil {
				continue
			}
			if line.Err != nil {
				s.log.Warn("daemon: error reading file", "file", filePath, "error", line.Err)
				continue
			}

			s.logger.Log(s.eventFor(source, line.Text, line.Time))
			s.metrics.IncLinesRead()
			lastActivity = time.Now()

		case <-checkTicker.C:
			// waking up from blocking line reading to check context status and idle timeout
			if s.config.FileIdleTimeout > 0 && time.Since(lastActivity) > s.config.FileIdleTimeout {
				s.log.Debug("daemon: file idle, releasing", "file", filePath)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *TailService) scanner() {
	defer s.subServicesWg.Done()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scanFiles()

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *TailService) scanFiles() {
	files, err := s.discoverLogFiles()
	if err != nil {
		s.log.Warn("daemon: error discovering log files", "error", err)
		return
	}

	for _, file := range files {
		if _, ok := s.seenFiles[file]; !ok {
			s.metrics.IncFilesDiscovered()
			s.seenFiles[file] = struct{}{}
		}
		if !s.claim(file) {
			continue
		}
		select {
		case s.fileQueue <- file:
			s.metrics.IncAmountQueueFiles()
		case <-s.ctx.Done():
			s.release(file)
			return

		default:
			s.release(file)
			s.log.Warn("daemon: file queue full, skipping",
				"queued", len(s.fileQueue), "capacity", cap(s.fileQueue), "file", file)
		}
	}
}

func (s *TailService) claim(file string) bool {
	s.tailingMutex.Lock()
	defer s.tailingMutex.Unlock()
	if _, ok := s.tailing[file]; ok {
		return false
	}
	s.tailing[file] = struct{}{}
	return true
}

func (s *TailService) release(file string) {
	s.tailingMutex.Lock()
	defer s.tailingMutex.Unlock()
	delete(s.tailing, file)
}

func (s *TailService) metricsReporter() {
	defer s.subServicesWg.Done()

	ticker := time.NewTicker(s.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics := s.metrics.GetMetricsStamp()
			s.log.Info("daemon: metrics",
				"workersBusy", metrics.WorkersBusy,
				"workers", s.config.Workers,
				"queued", metrics.QueuedFiles,
				"queueUsage", s.metrics.GetQueueUsage(),
				"filesProcessed", metrics.FilesProcessed,
				"filesDiscovered", metrics.FilesDiscovered,
				"filesFailed", metrics.FilesFailed,
				"lines", metrics.LinesRead,
			)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *TailService) discoverLogFiles() ([]string, error) {
	var logFiles []string

	err := filepath.Walk(s.config.LogRootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			s.log.Debug("daemon: error accessing path", "path", path, "error", err)
			return nil
		}

		if !info.IsDir() && strings.HasSuffix(info.Name(), ".log") {
			logFiles = append(logFiles, path)
		}
		return nil
	})

	return logFiles, err
}

func (s *TailService) sourceOf(filePath string) string {
	rel, err := filepath.Rel(s.config.LogRootPath, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(filePath)
	}
	return filepath.ToSlash(rel)
}

// eventFor builds the event for one line. A line that is itself a JSON
// event with tags is passed through with the configured tags prepended.
func (s *TailService) eventFor(source, text string, at time.Time) logging.Event {
	tags := make([]string, 0, len(s.config.Tags)+2)
	tags = append(tags, s.config.Tags...)

	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		if event, err := logging.ParseEvent([]byte(text)); err == nil {
			event.Tags = append(tags, event.Tags...)
			return event
		}
	}

	if at.IsZero() {
		at = time.Now()
	}
	return logging.Event{
		Tags: append(tags, detectLevel(text), "file"),
		Data: map[string]any{
			"source": source,
			"line":   text,
			"time":   at.UTC().Format(time.RFC3339Nano),
		},
	}
}

var levelWords = []struct {
	tag   string
	words []string
}{
	{"error", []string{"ERROR", "FATAL", "PANIC", "CRITICAL"}},
	{"warn", []string{"WARN", "WARNING"}},
	{"debug", []string{"DEBUG", "TRACE"}},
}

// detectLevel maps the first level keyword in a line to a tag, defaulting
// to "info".
func detectLevel(text string) string {
	fields := strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return !(r >= 'A' && r <= 'Z')
	})
	for _, field := range fields {
		for _, level := range levelWords {
			for _, word := range level.words {
				if field == word {
					return level.tag
				}
			}
		}
	}
	return "info"
}
