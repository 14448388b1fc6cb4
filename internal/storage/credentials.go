// Package storage loads push provider credentials from local files or a Cloudflare R2 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// RemotePrefix marks a credential reference that lives in the bucket, e.g. "r2://apns/AuthKey.p8".
const RemotePrefix = "r2://"

// maxCredentialBytes bounds what is read for a single key file.
const maxCredentialBytes = 1 << 20

var ErrNoBucket = errors.New("credential is stored in R2 but no bucket is configured")

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// CredentialLoader reads credential blobs by reference: a local path, or RemotePrefix plus an object key.
type CredentialLoader struct {
	client objectGetter
	bucket string
}

// NewCredentialLoader builds an S3 client for the R2 endpoint when a bucket is configured.
// Without a bucket only local paths can be read.
func NewCredentialLoader(ctx context.Context, cfg R2Config) (*CredentialLoader, error) {
	if cfg.Bucket == "" {
		return &CredentialLoader{}, nil
	}
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("missing Cloudflare R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &CredentialLoader{client: client, bucket: cfg.Bucket}, nil
}

func newCredentialLoader(client objectGetter, bucket string) *CredentialLoader {
	return &CredentialLoader{client: client, bucket: bucket}
}

// Load returns the bytes behind ref. An empty ref yields nil without error.
func (l *CredentialLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if key, ok := strings.CutPrefix(ref, RemotePrefix); ok {
		return l.fetch(ctx, key)
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	return data, nil
}

func (l *CredentialLoader) fetch(ctx context.Context, key string) ([]byte, error) {
	if l.client == nil || l.bucket == "" {
		return nil, ErrNoBucket
	}

	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from R2: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxCredentialBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from R2: %w", key, err)
	}
	if len(data) > maxCredentialBytes {
		return nil, fmt.Errorf("credential %s exceeds %d bytes", key, maxCredentialBytes)
	}

	log.Debug().Str("component", "storage").Str("key", key).Int("bytes", len(data)).Msg("credential fetched from R2")
	return data, nil
}
