package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-kb/models"
)

type SpacesConfig struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
	Prefix    string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SpacesPublisher copies extracted artifacts to an S3-compatible bucket.
type SpacesPublisher struct {
	client objectPutter
	bucket string
	prefix string
	logger *logrus.Logger
}

func NewSpacesPublisher(ctx context.Context, cfg SpacesConfig, logger *logrus.Logger) (*SpacesPublisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newSpacesPublisher(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newSpacesPublisher(client objectPutter, bucket, prefix string, logger *logrus.Logger) *SpacesPublisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SpacesPublisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Publish uploads every local artifact and returns the same kinds mapped to
// s3:// URIs. Any failed upload fails the whole call.
func (p *SpacesPublisher) Publish(ctx context.Context, videoID string, paths models.OutputPaths) (models.OutputPaths, error) {
	kinds := make([]string, 0, len(paths))
	for kind := range paths {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	published := make(models.OutputPaths, len(paths))
	for _, kind := range kinds {
		local := paths[kind]
		key := p.objectKey(videoID, kind, local)

		if err := p.upload(ctx, local, key); err != nil {
			return nil, errors.Wrapf(err, "failed to publish %s", kind)
		}

		published[kind] = fmt.Sprintf("s3://%s/%s", p.bucket, key)
		p.logger.WithFields(logrus.Fields{
			"video_id": videoID,
			"kind":     kind,
			"key":      key,
		}).Debug("Published artifact")
	}

	return published, nil
}

func (p *SpacesPublisher) upload(ctx context.Context, local, key string) error {
	f, err := os.Open(local)
	if err != nil {
		return errors.Wrap(err, "failed to open artifact")
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(local)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return errors.Wrap(err, "failed to save to Spaces")
	}
	return nil
}

// objectKey namespaces each artifact by kind so two kinds sharing a file
// name never overwrite each other.
func (p *SpacesPublisher) objectKey(videoID, kind, local string) string {
	return path.Join(p.prefix, videoID, kind, filepath.Base(local))
}
