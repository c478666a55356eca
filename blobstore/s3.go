package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ehrlich-b/cinch/entity"
)

// S3Config configures an S3-compatible blob store. AccountID, when
// set, builds an R2-style endpoint (https://{account}.r2.cloudflarestorage.com)
// instead of using the default AWS endpoint resolution.
type S3Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	Region          string
}

// S3Store stores blobs as objects in an S3-compatible bucket, keyed by
// content hash.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	log    *slog.Logger
}

// NewS3Store creates a new S3-backed blob store.
func NewS3Store(ctx context.Context, cfg S3Config, log *slog.Logger) (*S3Store, error) {
	if log == nil {
		log = slog.Default()
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
		config.WithRegion(region),
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: load aws config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.AccountID != "" {
		endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log,
	}, nil
}

func (s *S3Store) key(ref entity.BlobReference) string {
	if s.prefix == "" {
		return fmt.Sprintf("%s/%s", ref.Algo.Name(), ref.Hash)
	}
	return fmt.Sprintf("%s/%s/%s", s.prefix, ref.Algo.Name(), ref.Hash)
}

// Put stores data, content-addressed under algo. Blobs are immutable
// once written, so a Put for a key that already exists is a no-op.
func (s *S3Store) Put(ctx context.Context, data []byte, algo entity.ContentHash) (entity.BlobReference, error) {
	ref := entity.ForBlob(data, algo)
	key := s.key(ref)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return ref, nil
	}
	if !isNotFound(err) {
		return entity.BlobReference{}, classify("put", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return entity.BlobReference{}, classify("put", err)
	}

	s.log.Debug("stored blob", "algo", ref.Algo.Name(), "hash", ref.Hash, "bytes", len(data))
	return ref, nil
}

// Fetch returns the bytes named by ref.
func (s *S3Store) Fetch(ctx context.Context, ref entity.BlobReference) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err != nil {
		return nil, classify("fetch", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Connection("fetch", fmt.Errorf("read object body: %w", err))
	}
	return data, nil
}

// Verify confirms the object named by ref is present. S3-compatible
// object stores do not expose a cheap server-side digest comparable to
// our content hashes, so this still reads the whole blob back.
func (s *S3Store) Verify(ctx context.Context, ref entity.BlobReference) error {
	return VerifyByFetch(ctx, s, ref)
}

func isNotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

func classify(op string, err error) error {
	if isNotFound(err) {
		return NotFound(op, err)
	}
	return Connection(op, err)
}
