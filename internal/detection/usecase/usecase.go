package usecase

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ademnea/beehive-pipeline/internal/config"
	"github.com/ademnea/beehive-pipeline/internal/detection"
	"github.com/ademnea/beehive-pipeline/internal/models"
	"github.com/ademnea/beehive-pipeline/pkg/logger"
	"github.com/ademnea/beehive-pipeline/pkg/utils"
	"github.com/google/uuid"
)

const resultsFileName = "results.json"

type detectionUC struct {
	cfg     *config.Config
	remote  detection.RemoteRepository
	tracker detection.Tracker
	results detection.ResultRepository
	state   detection.StateRepository
	mirrors []detection.ResultMirror
	logger  logger.Logger
	now     func() time.Time
}

func NewDetectionUseCase(
	cfg *config.Config,
	remote detection.RemoteRepository,
	tracker detection.Tracker,
	results detection.ResultRepository,
	state detection.StateRepository,
	mirrors []detection.ResultMirror,
	log logger.Logger,
) detection.UseCase {
	return &detectionUC{
		cfg:     cfg,
		remote:  remote,
		tracker: tracker,
		results: results,
		state:   state,
		mirrors: mirrors,
		logger:  log,
		now:     time.Now,
	}
}

// ProcessBatch handles videos strictly in order. A failed video is logged and recorded;
// it never stops the batch. Cancellation stops before the next video.
func (d *detectionUC) ProcessBatch(ctx context.Context, videos []string) *models.BatchReport {
	report := &models.BatchReport{
		RunID:     uuid.NewString(),
		StartedAt: d.now(),
		Outcomes:  make([]models.VideoOutcome, 0, len(videos)),
	}

	for i, video := range videos {
		if err := ctx.Err(); err != nil {
			d.logger.Warnf("Batch %s interrupted, %d of %d videos not processed: %v", report.RunID, len(videos)-i, len(videos), err)
			break
		}
		d.logger.Infof("Processing video %d/%d: %s", i+1, len(videos), video)

		outcome := models.VideoOutcome{Video: video, RemotePath: d.remoteVideoPath(video)}
		result, err := d.ProcessVideo(ctx, video)
		if err != nil {
			d.logger.Errorf("Error processing %s: %v", video, err)
			outcome.Status = models.VideoStatusFailed
			outcome.Err = err
		} else {
			outcome.Status = models.VideoStatusProcessed
			outcome.Result = result
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.CompletedAt = d.now()
	d.logger.Infof("Batch %s finished: %d processed, %d failed", report.RunID, report.Succeeded(), report.Failed())
	return report
}

func (d *detectionUC) ProcessVideo(ctx context.Context, video string) (*models.DetectionResult, error) {
	if err := validateVideoName(video); err != nil {
		return nil, &detection.VideoError{Video: video, Step: "validate", Err: err}
	}

	localPath := filepath.Join(d.cfg.Paths.LocalVideoDir, filepath.FromSlash(video))
	remotePath := d.remoteVideoPath(video)
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			d.logger.Warnf("failed to remove local copy %s: %v", localPath, err)
		}
	}()

	if err := d.remote.Download(ctx, remotePath, localPath); err != nil {
		return nil, &detection.VideoError{Video: video, Step: "download", Err: err}
	}

	ids, err := d.tracker.TrackObjects(ctx, localPath)
	if err != nil {
		return nil, &detection.VideoError{Video: video, Step: "inference", Err: err}
	}
	result := models.NewDetectionResult(video, ids, d.now())

	if err := d.results.Append(ctx, result); err != nil {
		return nil, &detection.VideoError{Video: video, Step: "record", Err: err}
	}

	document, err := json.Marshal(result.Document())
	if err != nil {
		return nil, &detection.VideoError{Video: video, Step: "encode", Err: err}
	}
	if err := d.remote.EnsureDir(ctx, d.cfg.Remote.OutputPath); err != nil {
		return nil, &detection.VideoError{Video: video, Step: "upload", Err: err}
	}
	if err := d.remote.Upload(ctx, document, d.remoteResultPath(video)); err != nil {
		return nil, &detection.VideoError{Video: video, Step: "upload", Err: err}
	}

	for _, mirror := range d.mirrors {
		if err := mirror.Mirror(ctx, result, document); err != nil {
			d.logger.Warnf("%s mirror failed for %s: %v", mirror.Name(), video, err)
		}
	}

	if err := d.state.MarkProcessed(ctx, remotePath); err != nil {
		return nil, &detection.VideoError{Video: video, Step: "mark processed", Err: err}
	}

	d.logger.Infof("Processed %s: %d bees %v", video, result.BeeCount, result.BeeIDs)
	return result, nil
}

func (d *detectionUC) remoteVideoPath(video string) string {
	return path.Join(d.cfg.Remote.VideoPath, video)
}

func (d *detectionUC) remoteResultPath(video string) string {
	name := resultsFileName
	if d.cfg.Remote.ResultPerVideo {
		name = utils.BaseName(video) + ".json"
	}
	return path.Join(d.cfg.Remote.OutputPath, name)
}

// validateVideoName keeps names relative to the remote video directory.
func validateVideoName(video string) error {
	if strings.TrimSpace(video) == "" {
		return detection.Wrap(detection.ErrPayload, nil, "empty video name")
	}
	if path.IsAbs(video) || filepath.IsAbs(video) {
		return detection.Wrap(detection.ErrPayload, nil, "video name %q must be relative", video)
	}
	for _, part := range strings.Split(filepath.ToSlash(video), "/") {
		if part == ".." {
			return detection.Wrap(detection.ErrPayload, nil, "video name %q escapes the video directory", video)
		}
	}
	return nil
}
