// Package log holds the periodic observability tasks: the version
// heartbeat and the metrics writer that snapshots queue depth and
// experiment throughput into a daily JSON log.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oqtopus-team/localsim/common"
	"github.com/oqtopus-team/localsim/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const MetricsLogTaskName = "metrics_log"
const queueLengthKeyInMetrics = "queue_length"

const meterName = "github.com/oqtopus-team/localsim"

var (
	counterMu         sync.Mutex
	experimentCounter metric.Int64Counter
	shotCounter       metric.Int64Counter
)

// CountExperiment records one finished experiment on the meter. Safe
// to call before the metrics task is set up.
func CountExperiment(status core.Status) {
	counterMu.Lock()
	defer counterMu.Unlock()
	if experimentCounter == nil {
		return
	}
	experimentCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", status.String())))
}

// CountShots records shots run on behalf of an experiment.
func CountShots(n int) {
	counterMu.Lock()
	defer counterMu.Unlock()
	if shotCounter == nil {
		return
	}
	shotCounter.Add(context.Background(), int64(n))
}

type MetricsLogTaskImpl struct {
	FileDir string `toml:"file_dir"`

	dl *dailyLogger
	sc *core.SystemComponents

	core.DefaultTaskImpl
}

func setupMetricsLogTask(fileDir string) (*dailyLogger, error) {
	if err := common.IsDirWritable(fileDir); err != nil {
		return nil, fmt.Errorf("failed to write to %s: %w", fileDir, err)
	}
	newDailyLogger := newDailyLogger(fileDir)
	slog.SetDefault(slog.New(slog.NewJSONHandler(newDailyLogger, nil)))
	return newDailyLogger, nil
}

func (m *MetricsLogTaskImpl) Setup() error {
	dl, err := setupMetricsLogTask(m.FileDir)
	if err != nil {
		zap.L().Error("failed to set up metrics log task", zap.Error(err))
		return err
	}
	sc := core.GetSystemComponents()
	meter := otel.Meter(meterName)
	counterMu.Lock()
	experimentCounter, err = meter.Int64Counter("localsim.experiments",
		metric.WithDescription("finished experiments by status"))
	if err == nil {
		shotCounter, err = meter.Int64Counter("localsim.shots",
			metric.WithDescription("executed shots"))
	}
	counterMu.Unlock()
	if err != nil {
		zap.L().Error("failed to create meter instruments", zap.Error(err))
		return err
	}
	_, err = meter.Int64ObservableGauge("localsim.queue.length",
		metric.WithDescription("experiments waiting in the scheduler queue"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(sc.GetCurrentQueueSize()))
			return nil
		}))
	if err != nil {
		zap.L().Error("failed to register queue length gauge", zap.Error(err))
		return err
	}
	m.dl = dl
	m.sc = sc
	return nil
}

func (m *MetricsLogTaskImpl) GetEmptyParams() interface{} {
	return m
}

func (m *MetricsLogTaskImpl) SetParams(p interface{}) error {
	if p == nil {
		msg := "no params for metrics log task"
		zap.L().Debug(msg)
		return nil
	}
	mp, ok := p.(map[string]interface{})
	if !ok {
		msg := fmt.Errorf("failed to set params for metrics log task/params: %s", p)
		zap.L().Error(msg.Error())
		return msg
	}
	if fileDir, ok := mp["file_dir"].(string); ok {
		m.FileDir = fileDir
	}
	return nil
}

func (m *MetricsLogTaskImpl) Task() {
	slog.Info(
		"Metrics",
		slog.Int(
			queueLengthKeyInMetrics,
			m.sc.GetCurrentQueueSize()),
	)
}

func (m *MetricsLogTaskImpl) Cleanup() {
	m.dl.Close()
}

type dailyLogger struct {
	mu              sync.Mutex
	fileDir         string
	currentFileName string
	file            *os.File
}

func newDailyLogger(fileDir string) *dailyLogger {
	return &dailyLogger{
		fileDir: fileDir,
	}
}

func (dl *dailyLogger) Write(p []byte) (n int, err error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	fileName := fmt.Sprintf("metrics-%s.log", time.Now().Format("2006-01-02"))
	filePath := filepath.Join(dl.fileDir, fileName)
	currentFilePath := filepath.Join(dl.fileDir, dl.currentFileName)

	if dl.file == nil || currentFilePath != filePath {
		if dl.file != nil {
			dl.file.Close()
		}
		var err error
		dl.file, err = os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, err
		}
		dl.currentFileName = fileName
	}

	return dl.file.Write(p)
}

func (dl *dailyLogger) Close() error {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file != nil {
		return dl.file.Close()
	}
	return nil
}
