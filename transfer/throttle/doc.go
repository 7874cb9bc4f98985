// Package throttle rate-limits outbound transfer requests using a
// token-bucket algorithm from [golang.org/x/time/rate].
//
// # Usage
//
// A scheduler configured with transfer.WithThrottle builds one [Throttle]
// and wraps every transport its transfers use:
//
//	t, err := throttle.New(
//		10, // requests per second
//		5,  // burst capacity
//		func() *slog.Logger { return slog.Default() },
//	)
//	httpClient := &http.Client{Transport: t.Wrap(http.DefaultTransport)}
//
// When the rate limit is exceeded, outbound requests block until a
// token becomes available or the request context is cancelled.
package throttle
