package export

import (
	"context"
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/goalboard/internal/netx"
)

// LinkExpiry bounds the lifetime of presigned links.
const LinkExpiry = 15 * time.Minute

var ErrBucketRequired = errors.New("s3 bucket is required")

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	uploadPresigned = netx.UploadPresigned
)

type S3Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	Bucket    string
	Prefix    string
}

// S3Sink uploads exports through a presigned PUT and returns a presigned GET
// link to the object.
type S3Sink struct {
	cfg  S3Config
	http *http.Client
}

func NewS3Sink(cfg S3Config, client *http.Client) *S3Sink {
	return &S3Sink{cfg: cfg, http: client}
}

func (s *S3Sink) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(s.cfg.Region)}
	if s.cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.AccessKey, s.cfg.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3PresignClient(client), nil
}

func (s *S3Sink) Write(ctx context.Context, name string, body []byte, digest string) (Result, error) {
	if s.cfg.Bucket == "" {
		return Result{}, ErrBucketRequired
	}

	pc, err := s.presignClient(ctx)
	if err != nil {
		return Result{}, err
	}

	bucket := s.cfg.Bucket
	key := path.Join(s.cfg.Prefix, name)

	put, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"blake2b": digest},
	}, s3.WithPresignExpires(LinkExpiry))
	if err != nil {
		return Result{}, err
	}

	if err := uploadPresigned(ctx, s.http, put.Method, put.URL, put.SignedHeader, body); err != nil {
		return Result{}, err
	}

	get, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(LinkExpiry))
	if err != nil {
		return Result{}, err
	}

	return Result{Location: "s3://" + bucket + "/" + key, URL: get.URL}, nil
}
