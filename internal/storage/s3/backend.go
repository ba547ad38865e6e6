// Package s3 implements the object-tree ObjectStore contract on top of AWS
// S3 (or any S3-compatible endpoint), mapping each (namespace path, file
// path) pair onto a single S3 key.
package s3

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/shelfcloud/core/internal/circuit"
	shelferrors "github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/types"
)

// Backend implements types.ObjectStore against one S3 bucket.
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	config   *Config
	logger   *slog.Logger
	pool     *ConnectionPool
	breaker  *circuit.CircuitBreaker

	mu      sync.Mutex
	metrics *MetricsCollector
}

// NewBackend creates an S3-backed ObjectStore for bucket.
func NewBackend(ctx context.Context, bucket string, cfg *Config) (*Backend, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(cfg.MaxRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	pool, err := NewConnectionPool(cfg.PoolSize, bucket, func() (*s3.Client, error) {
		return s3.NewFromConfig(awsCfg), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = cfg.MultipartChunkSize
		u.Concurrency = cfg.MultipartConcurrency
	})

	breaker := circuit.NewCircuitBreaker("s3-"+bucket, circuit.Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c circuit.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})

	return &Backend{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		config:   cfg,
		logger:   slog.Default().With("component", "s3-objectstore", "bucket", bucket),
		pool:     pool,
		breaker:  breaker,
		metrics:  NewMetricsCollector(),
	}, nil
}

// key maps a (namespace path, item path) pair onto a flat S3 key.
func key(nsPath, itemPath string) string {
	ns := strings.Trim(nsPath, "/")
	p := strings.TrimPrefix(itemPath, "/")
	if p == "" {
		return ns
	}
	if ns == "" {
		return p
	}
	return ns + "/" + p
}

func (b *Backend) withMetrics(isErr bool, start time.Time) {
	b.metrics.RecordMetrics(time.Since(start), isErr)
}

// Save uploads content to the key addressed by nsPath/filePath, using the
// SDK's multipart manager so large files don't need to be buffered whole.
func (b *Backend) Save(ctx context.Context, nsPath, filePath string, content io.Reader) (types.SaveResult, error) {
	start := time.Now()
	k := key(nsPath, filePath)

	counter := &countingReader{r: content}
	err := b.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		_, uerr := b.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(k),
			Body:   counter,
		})
		return uerr
	})
	b.withMetrics(err != nil, start)
	if err != nil {
		b.metrics.RecordError(err)
		return types.SaveResult{}, translateErr(err, "Save", k)
	}
	b.metrics.RecordBytesUploaded(counter.n)
	return types.SaveResult{Size: counter.n}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Download returns the content at nsPath/filePath.
func (b *Backend) Download(ctx context.Context, nsPath, filePath string) (io.ReadCloser, error) {
	start := time.Now()
	k := key(nsPath, filePath)

	client := b.pool.Get()
	defer b.pool.Put(client)

	var out *s3.GetObjectOutput
	err := b.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var gerr error
		out, gerr = client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(k),
		})
		return gerr
	})
	b.withMetrics(err != nil, start)
	if err != nil {
		b.metrics.RecordError(err)
		return nil, translateErr(err, "Download", k)
	}
	return out.Body, nil
}

// DownloadDir streams a zip archive of everything under nsPath/dirPath.
//
// No third-party archive library appears anywhere in the retrieved corpus
// (cargoship optimizes large single-object transport, not tree packaging),
// so this uses the standard library's archive/zip.
func (b *Backend) DownloadDir(ctx context.Context, nsPath, dirPath string) (io.ReadCloser, error) {
	prefix := key(nsPath, dirPath)
	pr, pw := io.Pipe()

	go func() {
		zw := zip.NewWriter(pw)
		err := b.walkPrefix(ctx, prefix, func(relKey string, size int64) error {
			body, derr := b.Download(ctx, "", relKey)
			if derr != nil {
				return derr
			}
			defer body.Close()

			w, werr := zw.Create(strings.TrimPrefix(relKey, prefix+"/"))
			if werr != nil {
				return werr
			}
			_, werr = io.Copy(w, body)
			return werr
		})
		if err == nil {
			err = zw.Close()
		} else {
			zw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, nil
}

func (b *Backend) walkPrefix(ctx context.Context, prefix string, fn func(key string, size int64) error) error {
	client := b.pool.Get()
	defer b.pool.Put(client)

	var token *string
	for {
		out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix + "/"),
			ContinuationToken: token,
		})
		if err != nil {
			return translateErr(err, "ListObjectsV2", prefix)
		}
		for _, obj := range out.Contents {
			if err := fn(aws.ToString(obj.Key), aws.ToInt64(obj.Size)); err != nil {
				return err
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			return nil
		}
		token = out.NextContinuationToken
	}
}

// Move renames a single object, implemented as S3 has no native rename.
func (b *Backend) Move(ctx context.Context, fromNS, fromPath, toNS, toPath string) error {
	client := b.pool.Get()
	defer b.pool.Put(client)

	src := key(fromNS, fromPath)
	dst := key(toNS, toPath)

	_, err := client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(b.bucket + "/" + src),
	})
	if err != nil {
		return translateErr(err, "Move", src)
	}
	return b.Delete(ctx, fromNS, fromPath)
}

// MoveDir copies every object under the source prefix to the destination
// prefix, then deletes the source objects.
func (b *Backend) MoveDir(ctx context.Context, fromNS, fromPath, toNS, toPath string) error {
	src := key(fromNS, fromPath)
	dst := key(toNS, toPath)

	var moved []string
	err := b.walkPrefix(ctx, src, func(k string, _ int64) error {
		rel := strings.TrimPrefix(k, src+"/")
		client := b.pool.Get()
		defer b.pool.Put(client)

		_, cerr := client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(b.bucket),
			Key:        aws.String(dst + "/" + rel),
			CopySource: aws.String(b.bucket + "/" + k),
		})
		if cerr != nil {
			return translateErr(cerr, "MoveDir", k)
		}
		moved = append(moved, k)
		return nil
	})
	if err != nil {
		return err
	}
	return b.deleteKeys(ctx, moved)
}

// Delete removes a single object.
func (b *Backend) Delete(ctx context.Context, nsPath, filePath string) error {
	client := b.pool.Get()
	defer b.pool.Put(client)

	k := key(nsPath, filePath)
	_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return translateErr(err, "Delete", k)
	}
	return nil
}

// DeleteDir removes every object under nsPath/dirPath.
func (b *Backend) DeleteDir(ctx context.Context, nsPath, dirPath string) error {
	prefix := key(nsPath, dirPath)
	var keys []string
	err := b.walkPrefix(ctx, prefix, func(k string, _ int64) error {
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		return err
	}
	return b.deleteKeys(ctx, keys)
}

// EmptyDir removes the contents of a directory without removing the
// directory marker itself.
func (b *Backend) EmptyDir(ctx context.Context, nsPath, dirPath string) error {
	prefix := key(nsPath, dirPath)
	marker := prefix + "/.keep"
	var keys []string
	err := b.walkPrefix(ctx, prefix, func(k string, _ int64) error {
		if k != marker {
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return b.deleteKeys(ctx, keys)
}

func (b *Backend) deleteKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	client := b.pool.Get()
	defer b.pool.Put(client)

	const batchSize = 1000
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		objs := make([]s3types.ObjectIdentifier, 0, end-i)
		for _, k := range keys[i:end] {
			objs = append(objs, s3types.ObjectIdentifier{Key: aws.String(k)})
		}
		_, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &s3types.Delete{Objects: objs},
		})
		if err != nil {
			return translateErr(err, "DeleteObjects", "")
		}
	}
	return nil
}

// MakeDirs writes a zero-byte marker object so an otherwise-empty directory
// is still visible to IterDir/Exists.
func (b *Backend) MakeDirs(ctx context.Context, nsPath, dirPath string) error {
	client := b.pool.Get()
	defer b.pool.Put(client)

	k := key(nsPath, dirPath) + "/.keep"
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(k),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return translateErr(err, "MakeDirs", k)
	}
	return nil
}

// Exists reports whether an object, or a non-empty directory prefix,
// exists at nsPath/filePath.
func (b *Backend) Exists(ctx context.Context, nsPath, filePath string) (bool, error) {
	client := b.pool.Get()
	defer b.pool.Put(client)

	k := key(nsPath, filePath)
	_, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(k),
	})
	if err == nil {
		return true, nil
	}
	if !isErrorType[*s3types.NotFound](err) {
		return false, translateErr(err, "Exists", k)
	}

	out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(k + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, translateErr(err, "Exists", k)
	}
	return len(out.Contents) > 0, nil
}

type dirIterator struct {
	ctx     context.Context
	client  *s3.Client
	bucket  string
	prefix  string
	token   *string
	pending []types.DirEntry
	current types.DirEntry
	err     error
	done    bool
}

func (it *dirIterator) fetch() {
	if it.done {
		return
	}
	out, err := it.client.ListObjectsV2(it.ctx, &s3.ListObjectsV2Input{
		Bucket:            aws.String(it.bucket),
		Prefix:            aws.String(it.prefix),
		Delimiter:         aws.String("/"),
		ContinuationToken: it.token,
	})
	if err != nil {
		it.err = translateErr(err, "IterDir", it.prefix)
		it.done = true
		return
	}
	for _, p := range out.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), it.prefix), "/")
		it.pending = append(it.pending, types.DirEntry{Name: name, Path: aws.ToString(p.Prefix), IsDir: true})
	}
	for _, obj := range out.Contents {
		name := strings.TrimPrefix(aws.ToString(obj.Key), it.prefix)
		if name == ".keep" || name == "" {
			continue
		}
		it.pending = append(it.pending, types.DirEntry{
			Name:    name,
			Path:    aws.ToString(obj.Key),
			Size:    aws.ToInt64(obj.Size),
			ModTime: aws.ToTime(obj.LastModified),
		})
	}
	if aws.ToBool(out.IsTruncated) {
		it.token = out.NextContinuationToken
	} else {
		it.done = true
	}
}

func (it *dirIterator) Next() bool {
	for len(it.pending) == 0 && !it.done {
		it.fetch()
	}
	if len(it.pending) == 0 {
		return false
	}
	it.current = it.pending[0]
	it.pending = it.pending[1:]
	return true
}

func (it *dirIterator) Entry() types.DirEntry { return it.current }
func (it *dirIterator) Err() error             { return it.err }
func (it *dirIterator) Close() error           { return nil }

// IterDir lists the immediate children of nsPath/dirPath.
func (b *Backend) IterDir(ctx context.Context, nsPath, dirPath string) (types.DirIterator, error) {
	return &dirIterator{
		ctx:    ctx,
		client: b.client,
		bucket: b.bucket,
		prefix: key(nsPath, dirPath) + "/",
	}, nil
}

// HealthCheck verifies the bucket is reachable.
func (b *Backend) HealthCheck(ctx context.Context) error {
	client := b.pool.Get()
	defer b.pool.Put(client)

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

// Metrics returns a snapshot of backend performance counters.
func (b *Backend) Metrics() BackendMetrics { return b.metrics.Snapshot() }

// Close releases pooled client connections.
func (b *Backend) Close() error { return b.pool.Close() }

func translateErr(err error, operation, key string) error {
	var derr *shelferrors.Error
	if errors.As(err, &derr) {
		return derr
	}
	switch {
	case isErrorType[*s3types.NoSuchKey](err), isErrorType[*s3types.NotFound](err):
		return shelferrors.New(shelferrors.CodeNotFound, fmt.Sprintf("object not found: %s", key)).
			WithOperation(operation).WithCause(err)
	case isErrorType[*s3types.NoSuchBucket](err):
		return shelferrors.New(shelferrors.CodeNotFound, "bucket not found").
			WithOperation(operation).WithCause(err)
	default:
		return shelferrors.New(shelferrors.CodeConnectionFailed, fmt.Sprintf("%s failed for %s", operation, key)).
			WithOperation(operation).WithCause(err)
	}
}

func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
