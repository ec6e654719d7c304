package specdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures the S3-compatible client used for s3:// sources.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// parseS3Source splits s3://bucket/key into bucket and key.
func parseS3Source(source string) (bucket, key string, err error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 source %q: %w", source, err)
	}
	bucket = strings.TrimSpace(u.Host)
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 source %q has no bucket", source)
	}
	if key == "" {
		return "", "", fmt.Errorf("s3 source %q has no object key", source)
	}
	return bucket, key, nil
}

func newS3Client(opts S3Options) (*minio.Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}

	var creds *credentials.Credentials
	if opts.AccessKey != "" && opts.SecretKey != "" {
		creds = credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return client, nil
}

func openS3(ctx context.Context, source string, opts S3Options) (*Snapshot, error) {
	bucket, key, err := parseS3Source(source)
	if err != nil {
		return nil, unreadable(err)
	}

	client, err := newS3Client(opts)
	if err != nil {
		return nil, unreadable(err)
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, unreadable(fmt.Errorf("get %s: %w", source, err))
	}
	defer obj.Close()

	snap, err := Decode(obj)
	if err != nil {
		// GetObject is lazy; request failures surface on the first read.
		errResp := minio.ToErrorResponse(err)
		switch {
		case errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket":
			return nil, unreadable(fmt.Errorf("%s not found: %w", source, err))
		case errResp.Code != "":
			return nil, unreadable(fmt.Errorf("get %s: %w", source, err))
		}
		return nil, err
	}
	return snap, nil
}
