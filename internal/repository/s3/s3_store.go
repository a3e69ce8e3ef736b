// Package s3 keeps the remote copy of the inventory workbook in an S3 bucket.
// File ids are object keys.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/config"
	"github.com/mamadbah2/toolstock/internal/repository/remote"
)

// objectAPI is the subset of the S3 client used by the store.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	PutObjectAcl(ctx context.Context, in *s3.PutObjectAclInput, optFns ...func(*s3.Options)) (*s3.PutObjectAclOutput, error)
	s3.ListObjectsV2APIClient
}

// Store implements remote.Store on an S3 bucket.
type Store struct {
	client objectAPI
	bucket string
	region string
	prefix string
	logger *zap.Logger
}

var _ remote.Store = (*Store)(nil)

// NewStore loads the default AWS credential chain and builds a bucket store.
func NewStore(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket must be provided")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newStore(client, cfg, logger), nil
}

func newStore(client objectAPI, cfg config.S3Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}
}

// Download fetches the object stored under key.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("get %s: %w", key, remote.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Upload overwrites the object stored under key.
func (s *Store) Upload(ctx context.Context, key string, data []byte, mimeType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	s.logger.Debug("object uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// List returns the objects whose base name equals name under the prefix.
func (s *Store) List(ctx context.Context, name string) ([]remote.FileInfo, error) {
	want := s.key("", name)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(want),
	})

	var out []remote.FileInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", want, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || *obj.Key != want {
				continue
			}
			out = append(out, remote.FileInfo{ID: *obj.Key, Name: path.Base(*obj.Key)})
		}
	}
	return out, nil
}

// Create stores a new object at prefix/parent/name.
func (s *Store) Create(ctx context.Context, parent, name string, data []byte, mimeType string) (remote.FileInfo, error) {
	key := s.key(parent, name)
	if err := s.Upload(ctx, key, data, mimeType); err != nil {
		return remote.FileInfo{}, err
	}

	s.logger.Info("object created", zap.String("key", key))
	return remote.FileInfo{ID: key, Name: name}, nil
}

// SetPublic applies the public-read canned ACL.
func (s *Store) SetPublic(ctx context.Context, key string) error {
	_, err := s.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		ACL:    types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("acl %s: %w", key, err)
	}
	return nil
}

// Link returns the virtual-hosted URL of the object.
func (s *Store) Link(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *Store) key(parent, name string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.prefix, strings.Trim(parent, "/"), name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}
