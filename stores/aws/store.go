package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"snapnotes/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
	prefix   string
}

// NewStore creates an S3-backed store using the default AWS credential chain.
// Every key becomes the object <prefix><key> in bucketName.
func NewStore(ctx context.Context, bucketName, prefix string) (*s3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewStoreWithClient(s3.NewFromConfig(cfg), bucketName, prefix), nil
}

// NewStoreWithClient wraps an existing S3 client.
func NewStoreWithClient(client *s3.Client, bucketName, prefix string) *s3Store {
	return &s3Store{
		s3Client: client,
		bucket:   bucketName,
		prefix:   prefix,
	}
}

func (s *s3Store) objectKey(key string) (string, error) {
	// Keys must be plain names so they cannot climb out of the prefix.
	if key == "" || key == "." || key == ".." || path.Base(key) != key {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidKey, key)
	}
	return s.prefix + key, nil
}

func (s *s3Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, false, err
	}
	log := logrus.WithFields(logrus.Fields{"bucket": s.bucket, "object_key": objectKey})

	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			log.Debug("Object not found")
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get object %s: %w", objectKey, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read object %s: %w", objectKey, err)
	}
	return data, true, nil
}

func (s *s3Store) Set(ctx context.Context, key string, value []byte) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", objectKey, err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket":      s.bucket,
		"object_key":  objectKey,
		"data_length": len(value),
	}).Debug("Object stored successfully")
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
