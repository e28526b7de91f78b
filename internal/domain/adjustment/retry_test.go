package adjustment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"stockpost/internal/core/apperror"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(5))
	assert.Equal(t, time.Second, p.Delay(50))
}

func TestRetryPolicy_Do(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond}
	timeout := apperror.NewConcurrencyTimeout(errors.New("lock wait"))

	t.Run("retries lock timeouts until success", func(t *testing.T) {
		calls := 0
		err := p.Do(context.Background(), func(context.Context, int) error {
			calls++
			if calls < 3 {
				return timeout
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on other errors", func(t *testing.T) {
		calls := 0
		err := p.Do(context.Background(), func(context.Context, int) error {
			calls++
			return apperror.NewInsufficientStock("p", "s", decimal.NewFromInt(1), decimal.NewFromInt(1))
		})
		assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
		assert.Equal(t, 1, calls)
	})

	t.Run("returns last timeout", func(t *testing.T) {
		calls := 0
		err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
			calls++
			assert.Equal(t, calls, attempt)
			return timeout
		})
		assert.True(t, apperror.IsRetryable(err))
		assert.Equal(t, 4, calls)
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}
		calls := 0
		err := slow.Do(ctx, func(context.Context, int) error {
			calls++
			return timeout
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
