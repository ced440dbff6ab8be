package providers

import "regexp"

// Transformer reshapes a CompletionRequest before it is sent upstream. The
// pipeline is a free monoid on Request -> Request: Combine composes two
// transformers in sequence, When guards a transformer by an arbitrary
// predicate, and WhenModel/ExceptWhenModel guard by a model-id regex.
type Transformer func(CompletionRequest) CompletionRequest

// Combine runs a then b.
func Combine(a, b Transformer) Transformer {
	return func(req CompletionRequest) CompletionRequest {
		return b(a(req))
	}
}

// CombineAll folds Combine over a slice of transformers, left to right.
func CombineAll(ts ...Transformer) Transformer {
	return func(req CompletionRequest) CompletionRequest {
		for _, t := range ts {
			req = t(req)
		}
		return req
	}
}

// When applies t only when pred(req) holds.
func When(pred func(CompletionRequest) bool, t Transformer) Transformer {
	return func(req CompletionRequest) CompletionRequest {
		if pred(req) {
			return t(req)
		}
		return req
	}
}

// WhenModel applies t only when the request's model id matches re.
func WhenModel(re *regexp.Regexp, t Transformer) Transformer {
	return When(func(req CompletionRequest) bool { return re.MatchString(req.Model) }, t)
}

// ExceptWhenModel applies t unless the request's model id matches re.
func ExceptWhenModel(re *regexp.Regexp, t Transformer) Transformer {
	return When(func(req CompletionRequest) bool { return !re.MatchString(req.Model) }, t)
}

// Identity is the pipeline's identity element.
func Identity(req CompletionRequest) CompletionRequest { return req }

// WithMaxTokens forces Sampling.MaxTokens to n when it is unset (0).
func WithMaxTokens(n int) Transformer {
	return func(req CompletionRequest) CompletionRequest {
		if req.Context.Sampling.MaxTokens == 0 {
			req.Context.Sampling.MaxTokens = n
		}
		return req
	}
}

// DropToolChoice clears ToolChoice for models that reject it.
func DropToolChoice(req CompletionRequest) CompletionRequest {
	req.Context.ToolChoice = nil
	return req
}

// StripImages removes image messages for vision-less models.
func StripImages(req CompletionRequest) CompletionRequest {
	filtered := req.Context.Messages[:0:0]
	for _, m := range req.Context.Messages {
		if m.IsImage {
			continue
		}
		filtered = append(filtered, m)
	}
	req.Context.Messages = filtered
	return req
}

// CacheControlLastN marks the content-bearing messages among the last n for
// Anthropic prompt-caching. The marker is carried as a synthetic prefix on
// Content so the anthropic adapter's message conversion can recognize it
// without widening the neutral Message type; adapters for other vendors
// ignore it (they never see this transformer wired into their pipeline).
const cacheControlMarker = "\x00cache_control\x00"

// CacheControlLastN tags the last n messages for prompt-cache breadcrumbs.
func CacheControlLastN(n int) Transformer {
	return func(req CompletionRequest) CompletionRequest {
		msgs := req.Context.Messages
		start := len(msgs) - n
		if start < 0 {
			start = 0
		}
		for i := start; i < len(msgs); i++ {
			if msgs[i].IsToolResult || msgs[i].IsImage {
				continue
			}
			msgs[i].Content = cacheControlMarker + msgs[i].Content
		}
		return req
	}
}

// hasCacheControl reports and strips the CacheControlLastN marker.
func hasCacheControl(content string) (string, bool) {
	if len(content) >= len(cacheControlMarker) && content[:len(cacheControlMarker)] == cacheControlMarker {
		return content[len(cacheControlMarker):], true
	}
	return content, false
}
