package store

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/fluxgen/fluxgen/internal/log"
)

// S3Mirror copies stored files into a bucket so generations survive the
// machine they were made on. Enabled only when a bucket is configured.
type S3Mirror struct {
	Client *s3.Client
	Bucket string
}

func (m *S3Mirror) Upload(ctx context.Context, name string, data []byte, contentType string, meta map[string]string) error {
	logger := log.FromContextOrDiscard(ctx).WithGroup("mirror").With("bucket", m.Bucket, "key", name)
	logger.Info("uploading to s3", "content-type", contentType)

	_, err := m.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(m.Bucket),
		Key:          aws.String(name),
		ContentType:  aws.String(contentType),
		Body:         bytes.NewReader(data),
		Metadata:     meta,
		StorageClass: s3types.StorageClassIntelligentTiering,
	})
	return err
}
