// Package archive writes a JSON snapshot of each draw result to S3.
// Archival is best-effort: a failed upload is logged and forgotten, never
// surfaced to the organizer.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/ignite/gift-exchange/internal/config"
	"github.com/ignite/gift-exchange/internal/domain"
	"github.com/ignite/gift-exchange/internal/pkg/logger"
)

// S3Archiver uploads draw snapshots to a bucket.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver builds the archiver, or returns nil when archival is
// disabled in config. A nil *S3Archiver is safe to skip at the wiring site.
func NewS3Archiver(ctx context.Context, cfg appconfig.ArchiveConfig) (*S3Archiver, error) {
	if !cfg.Enabled || cfg.S3Bucket == "" {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Archiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
	}, nil
}

type drawSnapshot struct {
	Event       *domain.Event       `json:"event"`
	Assignments []domain.Assignment `json:"assignments"`
	ArchivedAt  time.Time           `json:"archivedAt"`
}

// ArchiveDraw uploads the snapshot under draws/<eventID>/<timestamp>.json.
func (a *S3Archiver) ArchiveDraw(ctx context.Context, ev *domain.Event, assignments []domain.Assignment) {
	now := time.Now().UTC()
	body, err := json.MarshalIndent(drawSnapshot{
		Event:       ev,
		Assignments: assignments,
		ArchivedAt:  now,
	}, "", "  ")
	if err != nil {
		logger.Warn("marshaling draw snapshot failed", "eventId", ev.ID, "error", err.Error())
		return
	}

	key := fmt.Sprintf("draws/%s/%s.json", ev.ID, now.Format("2006-01-02T15-04-05Z"))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logger.Warn("archiving draw snapshot failed",
			"eventId", ev.ID,
			"bucket", a.bucket,
			"error", err.Error(),
		)
		return
	}

	logger.Info("draw snapshot archived", "eventId", ev.ID, "key", key)
}
