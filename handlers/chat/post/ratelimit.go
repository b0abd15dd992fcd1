package post

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// RateLimiter is implemented by errors that know whether they were caused
// by an upstream rate limit.
type RateLimiter interface {
	RateLimited() bool
}

// IsRateLimited reports whether err was caused by the completion API
// rejecting the request for exceeding its rate limit. Errors that don't
// implement RateLimiter are matched on their text, since the OpenAI
// provider reports the status code only in the message.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rl RateLimiter
	if errors.As(err, &rl) {
		return rl.RateLimited()
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "too many requests") {
		return true
	}
	status := strconv.Itoa(http.StatusTooManyRequests)
	numbers := strings.FieldsFunc(msg, func(r rune) bool { return r < '0' || r > '9' })
	for _, n := range numbers {
		if n == status {
			return true
		}
	}
	return false
}
