package utils

import (
	"context"
	"fmt"
	"golang-autotrader/pkg/logger"
	"log"
	"runtime"
	"strings"
)

// ContainsString checks if a slice of strings contains a specific string.
func ContainsString(slice []string, str string) bool {
	for _, item := range slice {
		if item == str {
			return true
		}
	}
	return false
}

// GoSafe runs the given function in a new goroutine and recovers from any panic.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Panic Recovered] %v", r)
			}
		}()
		fn()
	}()
}

// RunSafe runs fn in the current goroutine and turns a panic into an error.
func RunSafe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	return fn()
}

func ToPointer[T any](value T) *T {
	return &value
}

func ShouldContinue(ctx context.Context, log *logger.Logger) bool {
	select {
	case <-ctx.Done():
		pc, _, _, ok := runtime.Caller(1)
		funcName := "unknown"
		if ok {
			fn := runtime.FuncForPC(pc)
			if fn != nil {
				parts := strings.Split(fn.Name(), "/")
				funcName = parts[len(parts)-1]
			}
		}

		log.Warn("Context cancelled",
			logger.StringField("caller", funcName),
		)
		return false
	default:
		return true
	}
}

func FormatPercentage(value float64) string {
	return fmt.Sprintf("%+.2f%%", value)
}
