// Package mediaurl turns stored video file references into URLs a client can
// fetch. Plain http(s) URLs pass through; s3://bucket/key references are
// signed when S3 is enabled.
package mediaurl

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ManuelReschke/ClipPass/internal/pkg/config"
)

const scheme = "s3"

// Resolver maps a stored file reference to a fetchable URL.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Passthrough returns every reference unchanged.
type Passthrough struct{}

func (Passthrough) Resolve(_ context.Context, ref string) (string, error) {
	return ref, nil
}

// ParseS3Ref splits an s3://bucket/key reference. ok is false for anything
// else.
func ParseS3Ref(ref string) (bucket, key string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || u.Scheme != scheme || u.Host == "" {
		return "", "", false
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", false
	}
	return u.Host, key, true
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Presigner signs GET requests for s3:// references.
type S3Presigner struct {
	client presignAPI
	ttl    time.Duration
}

// NewS3Presigner builds a presigner from static credentials. EndpointURL
// switches to path-style addressing for S3 compatible stores.
func NewS3Presigner(ctx context.Context, cfg config.S3Config) (*S3Presigner, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})
	return newS3Presigner(s3.NewPresignClient(client), cfg.PresignTTL), nil
}

func newS3Presigner(client presignAPI, ttl time.Duration) *S3Presigner {
	return &S3Presigner{client: client, ttl: ttl}
}

func (p *S3Presigner) Resolve(ctx context.Context, ref string) (string, error) {
	bucket, key, ok := ParseS3Ref(ref)
	if !ok {
		return ref, nil
	}
	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", ref, err)
	}
	return req.URL, nil
}

// New returns the resolver matching cfg.
func New(ctx context.Context, cfg config.S3Config) (Resolver, error) {
	if !cfg.Enabled {
		return Passthrough{}, nil
	}
	return NewS3Presigner(ctx, cfg)
}
