package repository

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/ademnea/beehive-pipeline/internal/detection"
	"github.com/ademnea/beehive-pipeline/internal/models"
	"github.com/ademnea/beehive-pipeline/pkg/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type awsRepository struct {
	client objectPutter
	bucket string
	prefix string
}

func NewAwsRepository(awsClient *s3.Client, bucket, prefix string) detection.ResultMirror {
	return &awsRepository{
		client: awsClient,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (a *awsRepository) Name() string {
	return "s3"
}

// objectKey is <prefix>/<video-base>/<timestamp>.json so reruns never overwrite each other.
func (a *awsRepository) objectKey(result *models.DetectionResult) string {
	stamp := result.Timestamp.UTC().Format("20060102T150405.000000000Z")
	return path.Join(a.prefix, utils.BaseName(result.Video), stamp+".json")
}

func (a *awsRepository) Mirror(ctx context.Context, result *models.DetectionResult, document []byte) error {
	key := a.objectKey(result)
	_, err := a.client.PutObject(
		ctx,
		&s3.PutObjectInput{
			Bucket:        aws.String(a.bucket),
			Key:           aws.String(key),
			ContentType:   aws.String("application/json"),
			ContentLength: aws.Int64(int64(len(document))),
			Body:          bytes.NewReader(document),
		},
	)
	if err != nil {
		return detection.Wrap(detection.ErrPersistence, err, "put s3://%s/%s", a.bucket, key)
	}
	return nil
}
