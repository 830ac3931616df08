package recorder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "github.com/wurong98/feature-hft-exchange/config"
	"github.com/wurong98/feature-hft-exchange/logger"
	"github.com/wurong98/feature-hft-exchange/models"
	"github.com/wurong98/feature-hft-exchange/session"
)

// Source is the slice of the session the recorder reads. *session.Session
// satisfies it.
type Source interface {
	Detail() session.Detail
	Ticks() []models.TradeTick
}

// Recorder archives the session's presentation state to parquet on a fixed
// cadence: the selected strategy's PnL series and the live ticker buffer.
// Files always land in the local directory; uploading to S3 is optional.
type Recorder struct {
	config   *appconfig.Config
	session  Source
	s3Client *s3.Client

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log

	lastSnapshotRound time.Time
	lastTickTime      time.Time
}

// New creates a Recorder bound to the given session. The S3 client is only
// constructed when uploads are enabled.
func New(cfg *appconfig.Config, sess Source) (*Recorder, error) {
	log := logger.GetLogger()

	if err := os.MkdirAll(cfg.Recorder.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recorder directory: %w", err)
	}

	r := &Recorder{
		config:  cfg,
		session: sess,
		log:     log,
	}

	if cfg.Recorder.S3.Enabled {
		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Recorder.S3.Region),
		}
		if cfg.Recorder.S3.AccessKeyID != "" && cfg.Recorder.S3.SecretAccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.Recorder.S3.AccessKeyID,
					cfg.Recorder.S3.SecretAccessKey,
					"",
				),
			))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		r.s3Client = s3.NewFromConfig(awsCfg)
	}

	log.WithComponent("recorder").WithFields(logger.Fields{
		"directory":      cfg.Recorder.Directory,
		"flush_interval": cfg.Recorder.FlushInterval,
		"s3_enabled":     cfg.Recorder.S3.Enabled,
	}).Info("recorder initialized")

	return r, nil
}

// Start launches the flush worker.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("recorder already running")
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.wg.Add(1)
	go r.flushWorker()

	r.log.WithComponent("recorder").Info("recorder started successfully")
	return nil
}

// Stop performs a final flush and waits for the worker to exit.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	r.flush()
	r.log.WithComponent("recorder").Info("recorder stopped")
}

func (r *Recorder) flushWorker() {
	defer r.wg.Done()

	log := r.log.WithComponent("recorder").WithFields(logger.Fields{"worker": "flush"})
	log.Info("starting flush worker")

	interval := r.config.Recorder.FlushInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-ticker.C:
			r.flush()
		}
	}
}

// flush archives whatever changed since the previous flush. Unchanged state
// is skipped so idle sessions don't produce duplicate files.
func (r *Recorder) flush() {
	detail := r.session.Detail()
	if (detail.State == session.StateReady || detail.State == session.StateRefreshing) &&
		len(detail.View.Snapshots) > 0 {
		r.mu.Lock()
		changed := detail.View.FetchedAt.After(r.lastSnapshotRound)
		if changed {
			r.lastSnapshotRound = detail.View.FetchedAt
		}
		r.mu.Unlock()

		if changed {
			r.archiveSnapshots(detail.APIKey, detail.View.Snapshots)
		}
	}

	ticks := r.session.Ticks()
	if len(ticks) > 0 {
		newest := ticks[0].EventTime()
		r.mu.Lock()
		changed := newest.After(r.lastTickTime)
		if changed {
			r.lastTickTime = newest
		}
		r.mu.Unlock()

		if changed {
			r.archiveTicks(ticks)
		}
	}
}

func (r *Recorder) archiveSnapshots(apiKey string, snapshots []models.PnLSnapshot) {
	log := r.log.WithComponent("recorder").WithFields(logger.Fields{
		"api_key": apiKey,
		"rows":    len(snapshots),
	})

	rows := make([]SnapshotRecord, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap.SnapshotAt.IsZero() {
			continue
		}
		rows = append(rows, SnapshotRecord{
			APIKey:     apiKey,
			SnapshotAt: snap.SnapshotAt.UnixMilli(),
			TotalPnl:   snap.TotalPnl.Float(),
		})
	}
	if len(rows) == 0 {
		return
	}

	data, err := buildParquet(new(SnapshotRecord), rows)
	if err != nil {
		log.WithError(err).Error("failed to build snapshot parquet file")
		return
	}

	key := r.generateKey("snapshots", fmt.Sprintf("api_key=%s", apiKey))
	r.store(key, data, log)
}

func (r *Recorder) archiveTicks(ticks []models.TradeTick) {
	log := r.log.WithComponent("recorder").WithFields(logger.Fields{"rows": len(ticks)})

	rows := make([]TickRecord, 0, len(ticks))
	for _, tick := range ticks {
		rows = append(rows, TickRecord{
			Symbol:    tick.Symbol,
			Side:      string(tick.Side()),
			Price:     tick.Price.Float(),
			Quantity:  tick.Quantity.Float(),
			TradeTime: tick.EventTime().UnixMilli(),
		})
	}

	data, err := buildParquet(new(TickRecord), rows)
	if err != nil {
		log.WithError(err).Error("failed to build tick parquet file")
		return
	}

	r.store(r.generateKey("ticks", ""), data, log)
}

// generateKey builds a date-partitioned object key ending in a unique
// batch-stamped filename.
func (r *Recorder) generateKey(kind, partition string) string {
	now := time.Now().UTC()

	parts := []string{kind}
	if partition != "" {
		parts = append(parts, partition)
	}
	parts = append(parts,
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()),
	)

	batchID := strings.Split(uuid.New().String(), "-")[0]
	filename := fmt.Sprintf("tradedeck_%s_%s_%s.parquet", kind, now.Format("20060102150405"), batchID)

	return filepath.ToSlash(filepath.Join(append(parts, filename)...))
}

// store writes the file locally and, when configured, uploads it to S3.
func (r *Recorder) store(key string, data []byte, log *logger.Entry) {
	localPath := filepath.Join(r.config.Recorder.Directory, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		log.WithError(err).Error("failed to create archive directory")
		return
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		log.WithError(err).Error("failed to write archive file")
		return
	}

	logger.IncrementRecorderWrite(int64(len(data)))
	log.WithFields(logger.Fields{"path": localPath, "file_size": len(data)}).Info("archive file written")

	if r.s3Client == nil {
		return
	}

	s3Key := key
	if prefix := strings.Trim(r.config.Recorder.S3.Prefix, "/"); prefix != "" {
		s3Key = prefix + "/" + key
	}

	ctx := context.WithoutCancel(r.ctx)
	_, err := r.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.config.Recorder.S3.Bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":      "parquet",
			"tradedeck-version": r.config.Tradedeck.Version,
		},
	})
	if err != nil {
		log.WithError(err).
			WithFields(logger.Fields{"bucket": r.config.Recorder.S3.Bucket, "s3_key": s3Key}).
			Error("failed to upload to S3")
		return
	}

	log.WithFields(logger.Fields{"s3_key": s3Key}).Info("archive file uploaded")
}
