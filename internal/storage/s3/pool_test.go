package s3

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionPool_NilFactory(t *testing.T) {
	_, err := NewConnectionPool(4, "my-bucket", nil)
	assert.Error(t, err)
}

func TestNewConnectionPool_DefaultsSizeAndBucket(t *testing.T) {
	pool, err := NewConnectionPool(0, "my-bucket", func() (*s3.Client, error) {
		return &s3.Client{}, nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	assert.Equal(t, 8, pool.maxSize)
	assert.Equal(t, "my-bucket", pool.healthCheck.bucket)
}

func TestConnectionPool_GetPutRoundTrip(t *testing.T) {
	pool, err := NewConnectionPool(2, "my-bucket", func() (*s3.Client, error) {
		return &s3.Client{}, nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	conn := pool.Get()
	require.NotNil(t, conn)
	pool.Put(conn)

	stats := pool.Stats()
	assert.Equal(t, 2, stats.MaxSize)
	assert.Equal(t, int64(1), stats.Created)
}

func TestConnectionPool_Resize(t *testing.T) {
	pool, err := NewConnectionPool(4, "my-bucket", func() (*s3.Client, error) {
		return &s3.Client{}, nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, pool.Resize(2))
	assert.Equal(t, 2, pool.Stats().MaxSize)

	assert.Error(t, pool.Resize(0))
}

func TestConnectionPool_CloseIsIdempotent(t *testing.T) {
	pool, err := NewConnectionPool(2, "my-bucket", func() (*s3.Client, error) {
		return &s3.Client{}, nil
	})
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	assert.Nil(t, pool.Get())
}
