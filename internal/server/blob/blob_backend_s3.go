package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/openmined/photobox/internal/utils"
)

const (
	// S3 rejects non-final multipart parts below 5 MiB
	s3MinPartSize  = int64(5 * 1024 * 1024)
	s3MaxPartCount = 10000

	// album markers live next to album prefixes in the same bucket
	containerMarkerPrefix = ".albums/"

	containerCacheSize = 1024
	containerCacheTTL  = time.Minute
)

// S3Backend stores every container as a key prefix `<container>/` in a single bucket.
// A zero byte marker object `.albums/<container>` records that the container exists;
// its LastModified is the container's last modified time.
type S3Backend struct {
	s3Client   *s3.Client
	config     *Config
	containers *expirable.LRU[string, bool]
}

func NewS3Backend(s3Client *s3.Client, config *Config) *S3Backend {
	return &S3Backend{
		s3Client:   s3Client,
		config:     config,
		containers: expirable.NewLRU[string, bool](containerCacheSize, nil, containerCacheTTL),
	}
}

func NewS3BackendWithConfig(cfg *Config) (*S3Backend, error) {
	// Create optimized HTTP client with HTTP/2 support
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	// Configure S3 client with additional options
	awsClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	return NewS3Backend(awsClient, cfg), nil
}

func (s *S3Backend) Check(ctx context.Context) error {
	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: &s.config.BucketName,
	})
	return err
}

// ===================================================================================================

func (s *S3Backend) CreateContainer(ctx context.Context, name string) error {
	ok, err := s.ContainerExists(ctx, name)
	if err != nil {
		return err
	} else if ok {
		return nil
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.config.BucketName,
		Key:           aws.String(containerMarkerKey(name)),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return err
	}

	s.containers.Add(name, true)
	return nil
}

func (s *S3Backend) ContainerExists(ctx context.Context, name string) (bool, error) {
	if _, ok := s.containers.Get(name); ok {
		return true, nil
	}

	ok, err := s.objectExists(ctx, containerMarkerKey(name))
	if err != nil {
		return false, err
	}
	if ok {
		s.containers.Add(name, true)
	}
	return ok, nil
}

func (s *S3Backend) ListContainers(ctx context.Context) iter.Seq2[*ContainerItem, error] {
	return func(yield func(*ContainerItem, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
			Bucket: &s.config.BucketName,
			Prefix: aws.String(containerMarkerPrefix),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, obj := range page.Contents {
				name := strings.TrimPrefix(aws.ToString(obj.Key), containerMarkerPrefix)
				if name == "" {
					continue
				}
				item := &ContainerItem{
					Name: name,
					Properties: ContainerProperties{
						LastModified: aws.ToTime(obj.LastModified),
					},
				}
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

func (s *S3Backend) ListBlobs(ctx context.Context, container string) iter.Seq2[*BlobItem, error] {
	return func(yield func(*BlobItem, error) bool) {
		ok, err := s.ContainerExists(ctx, container)
		if err != nil {
			yield(nil, err)
			return
		} else if !ok {
			yield(nil, fmt.Errorf("%w: %s", ErrContainerNotFound, container))
			return
		}

		prefix := container + "/"
		paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
			Bucket: &s.config.BucketName,
			Prefix: &prefix,
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, obj := range page.Contents {
				name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
				if name == "" {
					continue
				}
				item := &BlobItem{
					Name:          name,
					ETag:          trimETag(obj.ETag),
					ContentLength: aws.ToInt64(obj.Size),
					LastModified:  aws.ToTime(obj.LastModified),
				}
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// ===================================================================================================

func (s *S3Backend) BlobExists(ctx context.Context, container, name string) (bool, error) {
	return s.objectExists(ctx, blobKey(container, name))
}

func (s *S3Backend) PutBlob(ctx context.Context, params *PutBlobParams) (*CommitInfo, error) {
	key := blobKey(params.Container, params.Name)
	if !ValidateKey(key) {
		return nil, ErrInvalidKey
	}

	resp, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.config.BucketName,
		Key:           &key,
		Body:          bytes.NewReader(params.Data),
		ContentLength: aws.Int64(int64(len(params.Data))),
		ContentType:   aws.String(utils.DetectContentType(params.Name)),
	})
	if err != nil {
		return nil, err
	}

	// s3.PutObjectOutput does not have LastModified
	return &CommitInfo{
		Container:    params.Container,
		Name:         params.Name,
		Version:      aws.ToString(resp.VersionId),
		ETag:         trimETag(resp.ETag),
		Size:         int64(len(params.Data)),
		Blocks:       1,
		LastModified: time.Now().UTC(),
	}, nil
}

func (s *S3Backend) BeginBlocks(ctx context.Context, container, name string) (BlockSession, error) {
	key := blobKey(container, name)
	if !ValidateKey(key) {
		return nil, ErrInvalidKey
	}

	result, err := s.s3Client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      &s.config.BucketName,
		Key:         &key,
		ContentType: aws.String(utils.DetectContentType(name)),
	})
	if err != nil {
		return nil, err
	}

	return &s3BlockSession{
		backend:   s,
		container: container,
		name:      name,
		key:       key,
		uploadID:  aws.ToString(result.UploadId),
	}, nil
}

func (s *S3Backend) MinBlockSize() int64 {
	return s3MinPartSize
}

func (s *S3Backend) Delegate() any {
	return s.s3Client
}

func (s *S3Backend) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	})
	if err == nil {
		return true, nil
	} else if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// ===================================================================================================

// s3BlockSession maps blocks onto an S3 multipart upload, block i is part i+1
type s3BlockSession struct {
	backend   *S3Backend
	container string
	name      string
	key       string
	uploadID  string
}

func (u *s3BlockSession) StageBlock(ctx context.Context, index int, data []byte) (*StagedBlock, error) {
	if index >= s3MaxPartCount {
		return nil, fmt.Errorf("block %d exceeds the %d part limit", index, s3MaxPartCount)
	}

	resp, err := u.backend.s3Client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        &u.backend.config.BucketName,
		Key:           &u.key,
		UploadId:      &u.uploadID,
		PartNumber:    aws.Int32(int32(index + 1)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, err
	}

	return &StagedBlock{
		Index: index,
		ID:    trimETag(resp.ETag),
		Size:  int64(len(data)),
	}, nil
}

func (u *s3BlockSession) Commit(ctx context.Context, blocks []*StagedBlock) (*CommitInfo, error) {
	completedParts := make([]types.CompletedPart, len(blocks))
	var size int64
	for i, block := range blocks {
		completedParts[i] = types.CompletedPart{
			ETag:       aws.String(block.ID),
			PartNumber: aws.Int32(int32(block.Index + 1)),
		}
		size += block.Size
	}

	res, err := u.backend.s3Client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   &u.backend.config.BucketName,
		Key:      &u.key,
		UploadId: &u.uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		return nil, err
	}

	return &CommitInfo{
		Container:    u.container,
		Name:         u.name,
		Version:      aws.ToString(res.VersionId),
		ETag:         trimETag(res.ETag),
		Size:         size,
		Blocks:       len(blocks),
		LastModified: time.Now().UTC(),
	}, nil
}

func (u *s3BlockSession) Abort(ctx context.Context) error {
	_, err := u.backend.s3Client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   &u.backend.config.BucketName,
		Key:      &u.key,
		UploadId: &u.uploadID,
	})
	return err
}

// ===================================================================================================

func containerMarkerKey(container string) string {
	return containerMarkerPrefix + container
}

func blobKey(container, name string) string {
	return container + "/" + name
}

func trimETag(etag *string) string {
	return strings.ReplaceAll(aws.ToString(etag), "\"", "")
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}

	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

// check if S3Backend implements Backend interface
var _ Backend = (*S3Backend)(nil)
