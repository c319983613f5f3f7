package utilities

import "go.uber.org/zap"

// BestEffort runs fn and returns its value. When fn fails the error is logged
// at warn level under op and fallback is returned instead.
func BestEffort[T any](logger *zap.SugaredLogger, op string, fallback T, fn func() (T, error)) T {
	v, err := fn()
	if err != nil {
		if logger != nil {
			logger.Warnw("best-effort call failed", "op", op, "err", err)
		}
		return fallback
	}
	return v
}
