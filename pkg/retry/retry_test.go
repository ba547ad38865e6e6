package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfcloud/core/pkg/errors"
)

func TestRetryer_Success(t *testing.T) {
	t.Parallel()

	retryer := New(Config{MaxAttempts: 3})
	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryer_RetriesOnSerializationConflict(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.InitialDelay = time.Millisecond
	config.Jitter = false
	retryer := New(config)

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New(errors.CodeSerializationConflict, "conflicting write")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryer_DomainErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	retryer := New(Config{MaxAttempts: 5})
	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New(errors.CodeAlreadyExists, "f.txt already exists")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryer_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.MaxAttempts = 3
	config.InitialDelay = time.Millisecond
	config.Jitter = false
	retryer := New(config)

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New(errors.CodeSerializationConflict, "still conflicting")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestCreateFileConfigUsesTenAttempts(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10, CreateFileConfig().MaxAttempts)
}

func TestWithMaxAttempts(t *testing.T) {
	t.Parallel()

	retryer := New(DefaultConfig()).WithMaxAttempts(7)
	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New(errors.CodeWorkerBusy, "worker pool saturated")
	})

	require.Error(t, err)
	assert.Equal(t, 7, attempts)
}
