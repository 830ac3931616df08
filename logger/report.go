package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type flowStat struct {
	messages int64
	bytes    int64
}

var (
	errorsDetail      int64
	errorsPoll        int64
	warnsDetail       int64
	warnsPoll         int64
	leaderboardPolls  int64
	tickerPolls       int64
	detailRounds      int64
	refreshMisses     int64
	recorderWrites    int64
	flows             sync.Map // map[string]*flowStat
)

func recordWarn(component string) {
	if strings.Contains(component, "detail") {
		atomic.AddInt64(&warnsDetail, 1)
	} else if strings.Contains(component, "leaderboard") || strings.Contains(component, "feed") {
		atomic.AddInt64(&warnsPoll, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "detail") {
		atomic.AddInt64(&errorsDetail, 1)
	} else if strings.Contains(component, "leaderboard") || strings.Contains(component, "feed") {
		atomic.AddInt64(&errorsPoll, 1)
	}
}

// IncrementLeaderboardPoll records one completed leaderboard fetch of the
// given payload size.
func IncrementLeaderboardPoll(size int) {
	atomic.AddInt64(&leaderboardPolls, 1)
	recordFlow("leaderboard_poll", size)
}

// IncrementTickerPoll records one completed market-feed poll.
func IncrementTickerPoll(size int) {
	atomic.AddInt64(&tickerPolls, 1)
	recordFlow("ticker_poll", size)
}

// IncrementDetailRound records one completed detail aggregation round.
func IncrementDetailRound(size int) {
	atomic.AddInt64(&detailRounds, 1)
	recordFlow("detail_round", size)
}

// IncrementRefreshMiss records a swallowed fast-path refresh failure.
func IncrementRefreshMiss() {
	atomic.AddInt64(&refreshMisses, 1)
}

// IncrementRecorderWrite records one archived batch of the given size.
func IncrementRecorderWrite(size int64) {
	atomic.AddInt64(&recorderWrites, 1)
	recordFlow("recorder_write", int(size))
}

func recordFlow(name string, size int) {
	v, _ := flows.LoadOrStore(name, &flowStat{})
	fs := v.(*flowStat)
	atomic.AddInt64(&fs.messages, 1)
	atomic.AddInt64(&fs.bytes, int64(size))
}

// StartReport begins periodic logging of system and flow statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")

	flowData := map[string]map[string]int64{}
	flows.Range(func(k, v any) bool {
		name := k.(string)
		fs := v.(*flowStat)
		flowData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&fs.messages),
			"bytes":    atomic.LoadInt64(&fs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"errors_detail":     atomic.LoadInt64(&errorsDetail),
		"errors_poll":       atomic.LoadInt64(&errorsPoll),
		"warns_detail":      atomic.LoadInt64(&warnsDetail),
		"warns_poll":        atomic.LoadInt64(&warnsPoll),
		"leaderboard_polls": atomic.LoadInt64(&leaderboardPolls),
		"ticker_polls":      atomic.LoadInt64(&tickerPolls),
		"detail_rounds":     atomic.LoadInt64(&detailRounds),
		"refresh_misses":    atomic.LoadInt64(&refreshMisses),
		"recorder_writes":   atomic.LoadInt64(&recorderWrites),
		"goroutines":        runtime.NumGoroutine(),
		"cpu_percent":       cpuPct,
		"memory_mb":         int64(memStats.Used) / 1024 / 1024,
		"disk_mb":           int64(diskStats.Used) / 1024 / 1024,
		"flows":             flowData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsDetail"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_detail"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsPoll"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_poll"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsDetail"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_detail"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsPoll"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_poll"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("LeaderboardPolls"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["leaderboard_polls"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("TickerPolls"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["ticker_polls"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("DetailRounds"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["detail_rounds"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("RefreshMisses"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["refresh_misses"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("RecorderWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["recorder_writes"].(int64)))},
	)

	for name, stats := range flowData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("FlowMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Flow"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("FlowBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Flow"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
