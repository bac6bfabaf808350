package backend

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/danielolaszy/bz2gl/internal/logging"
)

type retrying struct {
	next       Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// Retry returns a Client that retries temporary failures of next with
// exponential backoff, up to maxRetries extra attempts. Other errors, and
// unanswered requests of non-idempotent kinds, are returned immediately.
func Retry(next Client, maxRetries uint64) Client {
	return &retrying{
		next:       next,
		maxRetries: maxRetries,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute
	return bo
}

func (r *retrying) Submit(ctx context.Context, req Request) (Result, error) {
	var result Result
	attempt := 0

	op := func() error {
		attempt++
		res, err := r.next.Submit(ctx, req)
		if err != nil {
			if !Retryable(req.Kind, err) {
				return backoff.Permanent(err)
			}
			logging.Warn("temporary destination failure",
				"kind", req.Kind,
				"attempt", attempt,
				"error", err)
			return err
		}
		result = res
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return Result{}, err
	}
	return result, nil
}
