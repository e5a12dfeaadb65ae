package repo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
)

// Downloader fetches repository resources. Plain https URLs go through
// the http client; bucket-style S3 URLs go through the S3 API so large
// datasets stream directly from storage.
type Downloader struct {
	client *http.Client
	s3     *s3.Client
	logger *slog.Logger
}

// NewDownloader builds a downloader. The AWS configuration is resolved
// from the environment; anonymous access is enough for public buckets.
func NewDownloader(ctx context.Context, logger *slog.Logger) (*Downloader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &Downloader{
		client: http.DefaultClient,
		s3:     s3.NewFromConfig(cfg),
		logger: logger,
	}, nil
}

// s3Bucket extracts the bucket name from a host of the form
// bucket.s3.region.amazonaws.com. Returns ok=false for other hosts.
func s3Bucket(host string) (string, bool) {
	parts := strings.Split(host, ".")
	if len(parts) < 3 || parts[0] == "" || parts[1] != "s3" {
		return "", false
	}
	if !strings.HasSuffix(host, ".amazonaws.com") {
		return "", false
	}
	return parts[0], true
}

// Open returns the raw byte stream of a resource and its size when
// known (-1 otherwise). Bodies marked application/zstd on the wire are
// decompressed transparently; resources that are themselves .zst
// archives keep their published bytes so checksums stay meaningful.
func (d *Downloader) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing url %s: %w", rawURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, 0, fmt.Errorf("unsupported url scheme %q in %s", u.Scheme, rawURL)
	}

	if bucket, ok := s3Bucket(u.Host); ok {
		return d.openS3(ctx, u, bucket)
	}
	return d.openHTTP(ctx, rawURL)
}

func (d *Downloader) openS3(ctx context.Context, u *url.URL, bucket string) (io.ReadCloser, int64, error) {
	key := strings.TrimPrefix(u.Path, "/")
	d.logger.Debug("downloading from s3", "bucket", bucket, "key", key)

	obj, err := d.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("s3 download %s: %w (bucket: %s, key: %s)", u, err, bucket, key)
	}

	size := int64(-1)
	if obj.ContentLength != nil {
		size = *obj.ContentLength
	}
	contentType := ""
	if obj.ContentType != nil {
		contentType = *obj.ContentType
	}
	return wireDecoded(obj.Body, contentType, u.Path), size, nil
}

func (d *Downloader) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	d.logger.Debug("downloading", "url", rawURL)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("download %s: %s", rawURL, resp.Status)
	}
	return wireDecoded(resp.Body, resp.Header.Get("Content-Type"), rawURL), resp.ContentLength, nil
}

// wireDecoded wraps body in a zstd reader when the server compressed a
// plain resource for transfer. A resource whose own name ends in .zst
// is an archive and is passed through untouched.
func wireDecoded(body io.ReadCloser, contentType, name string) io.ReadCloser {
	if contentType != "application/zstd" || strings.HasSuffix(name, ".zst") {
		return body
	}
	dec, err := zstd.NewReader(body)
	if err != nil {
		return body
	}
	return &zstdReadCloser{dec: dec, body: body}
}

type zstdReadCloser struct {
	dec  *zstd.Decoder
	body io.ReadCloser
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.body.Close()
}
