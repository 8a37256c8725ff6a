package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/medra-health/medirag/internal/domain"
)

// Metadata keys stored alongside each blob.
const (
	metaFilename    = "filename"
	metaContentHash = "content-hash"
	metaUploadedAt  = "upload-timestamp"
)

// S3ClientConfig holds configuration for S3Store
type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// S3Store provides content-addressed blob storage on S3-compatible backends
// (AWS S3, MinIO, RustFS). Uploads are idempotent: the key is derived from
// the document's content id, so re-uploading the same content is a no-op.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates a new S3Store with the given configuration
func NewS3Store(ctx context.Context, cfg S3ClientConfig) (*S3Store, error) {
	// Custom resolver for S3-compatible endpoints
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Exists reports whether any blob for the given content id is already
// stored, regardless of the filename it was uploaded under.
func (s *S3Store) Exists(ctx context.Context, contentID string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(domain.DedupPrefix(contentID)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, mapStorageError(err)
	}
	return len(out.Contents) > 0, nil
}

// Put uploads a blob with its metadata. Re-uploading the same key with the
// same bytes is a no-op from the caller's perspective.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, filename, contentHash string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
		Metadata: map[string]string{
			metaFilename:    filename,
			metaContentHash: contentHash,
			metaUploadedAt:  strconv.FormatInt(time.Now().Unix(), 10),
		},
	})
	if err != nil {
		return mapStorageError(err)
	}
	return nil
}

// Get downloads a blob by key. Returns a NOT_FOUND domain error if the key
// is absent.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, *domain.StoredBlob, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, nil, mapStorageError(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeBackendUnavailable, "failed to read object body", err)
	}

	blob := &domain.StoredBlob{
		Key:         key,
		Filename:    out.Metadata[metaFilename],
		ContentHash: out.Metadata[metaContentHash],
		Size:        int64(len(data)),
	}
	if out.LastModified != nil {
		blob.LastModified = *out.LastModified
	}
	return data, blob, nil
}

// List returns metadata for every blob under the prefix. Metadata lookups
// that fail for a single object are logged and skipped so bulk operations
// can continue.
func (s *S3Store) List(ctx context.Context, prefix string) ([]domain.StoredBlob, error) {
	var blobs []domain.StoredBlob
	var continuation *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, mapStorageError(err)
		}

		for _, obj := range out.Contents {
			blob := domain.StoredBlob{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				blob.LastModified = *obj.LastModified
			}

			head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				log.Printf("failed to read metadata for %s, continuing: %v", blob.Key, err)
			} else {
				blob.Filename = head.Metadata[metaFilename]
				blob.ContentHash = head.Metadata[metaContentHash]
			}
			blobs = append(blobs, blob)
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuation = out.NextContinuationToken
	}

	return blobs, nil
}

// Delete removes a blob from storage.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapStorageError(err)
	}
	return nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil // Bucket exists
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return mapStorageError(err)
	}

	return nil
}

// mapStorageError converts backend errors into typed domain failures,
// preserving the not-found vs access-denied distinction.
func mapStorageError(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "object not found", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "object not found", err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return domain.NewDomainErrorWithCause(domain.ErrCodeAccessDenied, "storage access denied", err)
		}
	}

	return domain.NewDomainErrorWithCause(domain.ErrCodeBackendUnavailable, "storage operation failed", err)
}
