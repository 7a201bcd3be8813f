// Package filesvc stores user uploads.
package filesvc

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
)

type s3Store struct {
	bucket   string
	uploader *s3manager.Uploader
	client   *s3.S3
}

var _ core.FileStorage = (*s3Store)(nil)

func NewS3Store(conf *core.Config) (*s3Store, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(conf.AWS.Region)})
	if err != nil {
		return nil, errors.Wrap(err, "opening AWS session")
	}
	return &s3Store{
		bucket:   conf.AWS.Bucket,
		uploader: s3manager.NewUploader(sess),
		client:   s3.New(sess),
	}, nil
}

func (st *s3Store) Store(ctx context.Context, file core.UploadedFile, folder string) (string, error) {
	key := folder + "/" + uuid.New().String() + strings.ToLower(path.Ext(file.Name))
	out, err := st.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(st.bucket),
		Key:         aws.String(key),
		Body:        file.Content,
		ContentType: aws.String(file.ContentType),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return "", errors.Wrap(err, "uploading file")
	}
	return out.Location, nil
}

func (st *s3Store) Delete(ctx context.Context, fileURL string) error {
	u, err := url.Parse(fileURL)
	if err != nil {
		return errors.Wrap(err, "parsing file URL")
	}
	key := strings.TrimPrefix(u.Path, "/")
	_, err = st.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrap(err, "deleting file")
}
