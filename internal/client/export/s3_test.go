package export

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubS3(t *testing.T, putURL string) (*s3.PutObjectInput, *s3.Options) {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origPut := presignPutObject
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})

	var put s3.PutObjectInput
	var opts s3.Options

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "eu-west-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		if lo.Credentials == nil {
			t.Fatalf("static credentials not applied")
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return &s3.PresignClient{}
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		put = *in
		h := http.Header{}
		h.Set("Content-Type", aws.ToString(in.ContentType))
		h.Set("X-Amz-Meta-Blake2b", in.Metadata["blake2b"])
		return &v4.PresignedHTTPRequest{URL: putURL, Method: http.MethodPut, SignedHeader: h}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "https://get.example/" + aws.ToString(in.Key), Method: http.MethodGet}, nil
	}

	return &put, &opts
}

func testS3Config() S3Config {
	return S3Config{
		Region:    "eu-west-1",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Endpoint:  "http://127.0.0.1:9000",
		Bucket:    "exports",
		Prefix:    "boards/team-a",
	}
}

func TestS3Sink_UploadsAndLinks(t *testing.T) {
	var gotBody, gotMeta string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotMeta = r.Header.Get("X-Amz-Meta-Blake2b")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	put, opts := stubS3(t, ts.URL+"/exports/obj")

	res, err := NewS3Sink(testS3Config(), ts.Client()).Write(context.Background(), "goalboard-export-2026-03-02.json", []byte(`{"a":1}`), "d1g")
	require.NoError(t, err)

	assert.Equal(t, "s3://exports/boards/team-a/goalboard-export-2026-03-02.json", res.Location)
	assert.Equal(t, "https://get.example/boards/team-a/goalboard-export-2026-03-02.json", res.URL)
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.Equal(t, "d1g", gotMeta)

	assert.Equal(t, "exports", aws.ToString(put.Bucket))
	assert.Equal(t, "application/json", aws.ToString(put.ContentType))
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestS3Sink_UploadRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	stubS3(t, ts.URL)

	_, err := NewS3Sink(testS3Config(), ts.Client()).Write(context.Background(), "x.json", []byte("{}"), "d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload failed: 403")
}

func TestS3Sink_PresignError(t *testing.T) {
	stubS3(t, "http://unused")
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign boom")
	}

	_, err := NewS3Sink(testS3Config(), nil).Write(context.Background(), "x.json", []byte("{}"), "d")
	require.EqualError(t, err, "presign boom")
}

func TestS3Sink_ConfigError(t *testing.T) {
	stubS3(t, "http://unused")
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewS3Sink(testS3Config(), nil).Write(context.Background(), "x.json", []byte("{}"), "d")
	require.EqualError(t, err, "no config")
}

func TestS3Sink_BucketRequired(t *testing.T) {
	cfg := testS3Config()
	cfg.Bucket = ""
	_, err := NewS3Sink(cfg, nil).Write(context.Background(), "x.json", []byte("{}"), "d")
	require.ErrorIs(t, err, ErrBucketRequired)
}
