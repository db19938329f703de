package artifact

import (
	"context"
	"fmt"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// Mirror pushes written .flams files to an S3-compatible bucket, standing
// in for the downstream object-storage layer the original's router modules
// assume exists. It is entirely optional: a nil *Mirror (the zero value
// returned when FLAMS_MIRROR_BUCKET is unset) makes Upload a no-op.
type Mirror struct {
	client *minio.Client
	bucket string
}

// NewMirrorFromEnv builds a Mirror from FLAMS_MIRROR_BUCKET,
// FLAMS_MIRROR_ENDPOINT, FLAMS_MIRROR_ACCESS_KEY and
// FLAMS_MIRROR_SECRET_KEY. It returns (nil, nil) when FLAMS_MIRROR_BUCKET
// is unset, so callers can unconditionally hold a *Mirror and call Upload.
func NewMirrorFromEnv() (*Mirror, error) {
	bucket := os.Getenv("FLAMS_MIRROR_BUCKET")
	if bucket == "" {
		return nil, nil
	}
	endpoint := os.Getenv("FLAMS_MIRROR_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(
			os.Getenv("FLAMS_MIRROR_ACCESS_KEY"),
			os.Getenv("FLAMS_MIRROR_SECRET_KEY"),
			"",
		),
		Secure: os.Getenv("FLAMS_MIRROR_SECURE") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: constructing minio client for %s: %w", endpoint, err)
	}
	return &Mirror{client: client, bucket: bucket}, nil
}

// Upload pushes the .flams file at localPath to object under the mirror's
// bucket. Called after a successful Store.Write; a nil Mirror makes this a
// no-op so callers never need a feature-flag check of their own.
func (m *Mirror) Upload(ctx context.Context, object, localPath string, log *logrus.Entry) error {
	if m == nil {
		return nil
	}
	info, err := m.client.FPutObject(ctx, m.bucket, object, localPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("artifact: mirroring %s to %s/%s: %w", localPath, m.bucket, object, err)
	}
	log.WithFields(logrus.Fields{"bucket": m.bucket, "object": object, "size": info.Size}).Info("mirrored artifact")
	return nil
}
