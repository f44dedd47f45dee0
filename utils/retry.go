package utils

import "time"

// Connect calls connector up to attempts times, sleeping between failures, and
// returns the first success or the last error.
func Connect[T any](attempts uint8, sleep time.Duration, connector func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	if attempts == 0 {
		attempts = 1
	}

	for i := range attempts {
		out, err = connector()
		if err == nil {
			return out, nil
		}
		if i+1 < attempts {
			time.Sleep(sleep)
		}
	}
	return out, err
}
