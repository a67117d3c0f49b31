package safe

import "pulsehr/logger"

// Go starts a goroutine that recovers from panics, so a bad frame from one
// client cannot take down the gateway.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
