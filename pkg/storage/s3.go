package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/colstream/qpipe/pkg/qerrors"
	"github.com/colstream/qpipe/pkg/segment"
)

const defaultUploadPartSize = 5 * 1024 * 1024

// S3Collaborator stores segments as objects in a single bucket, encoded
// with the same gzip'd gob codec as FilesystemCollaborator: a region-scoped
// config load, a plain s3.Client for metadata operations, and a
// manager.Uploader for multi-part writes.
type S3Collaborator struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Collaborator loads the default AWS config for region and wires an
// s3.Client plus manager.Uploader against bucket, with the given part
// size and upload concurrency.
func NewS3Collaborator(ctx context.Context, bucket, prefix, region string, maxConcurrency int) (*S3Collaborator, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "load aws config")
	}
	client := s3.NewFromConfig(cfg)
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = defaultUploadPartSize
		u.Concurrency = maxConcurrency
	})
	return &S3Collaborator{client: client, uploader: uploader, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Collaborator) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + key
}

func (s *S3Collaborator) Fetch(ctx context.Context, key string) (*segment.Segment, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "get object")
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "read object body")
	}
	return decodeSegment(data)
}

func (s *S3Collaborator) Write(ctx context.Context, key string, seg *segment.Segment) error {
	data, err := encodeSegment(seg)
	if err != nil {
		return err
	}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return qerrors.Wrap(err, qerrors.TypeStorageError, "upload object")
	}
	return nil
}

// List enumerates every object under prefix and decodes each one to
// report its row/column ranges. A production-scale backend would keep a
// separate lightweight manifest instead of fetching every object just to
// read its range, but that manifest format has no grounding in the pack
// beyond the segment codec itself, so this mirrors FilesystemCollaborator's
// listing strategy at the cost of an extra round trip per key.
func (s *S3Collaborator) List(ctx context.Context) ([]segment.RangesAndKey, error) {
	var out []segment.RangesAndKey
	var continuationToken *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "list objects")
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			key = strings.TrimPrefix(key, "/")
			seg, err := s.Fetch(ctx, key)
			if err != nil {
				return nil, err
			}
			rak := segment.RangesAndKey{
				StorageKey: key,
				Rows:       seg.RowRange,
				Cols:       segment.ColRange{Start: 0, End: len(seg.Descriptor.Names)},
			}
			rak.TimeStart, rak.TimeEnd, rak.HasTimeRange = seg.TimeBounds()
			out = append(out, rak)
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		continuationToken = page.NextContinuationToken
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StorageKey < out[j].StorageKey })
	return out, nil
}

func (s *S3Collaborator) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return qerrors.Wrap(err, qerrors.TypeStorageError, "delete object")
	}
	return nil
}

func (s *S3Collaborator) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, qerrors.Wrap(err, qerrors.TypeStorageError, "head object")
	}
	return true, nil
}
