// Package verify runs the advisory photo/category relevance check. The check
// never blocks submission: upstream failures and rate limits degrade to an
// automatic pass with a caution flag.
package verify

import (
	"errors"
	"fmt"

	"civic-reports-service/cache"
	"civic-reports-service/metrics"
	"civic-reports-service/openai"

	"github.com/apex/log"
)

// Service caches verification verdicts so repeated submissions of the same
// media don't burn upstream quota.
type Service struct {
	client *openai.Client
	cache  *cache.TTLCache
}

func NewService(client *openai.Client, cache *cache.TTLCache) *Service {
	return &Service{client: client, cache: cache}
}

// VerifyImageCategory checks whether the media plausibly matches the category.
// Never returns an error: a failed upstream call passes with Cautioned set.
func (s *Service) VerifyImageCategory(mediaURL, category string) *openai.VerificationResult {
	if mediaURL == "" {
		return &openai.VerificationResult{Matches: true, Cautioned: true, Reason: "no media to verify"}
	}

	key := fmt.Sprintf("%s|%s", mediaURL, category)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*openai.VerificationResult)
	}

	result, err := s.client.VerifyImageCategory(mediaURL, category)
	if err != nil {
		if errors.Is(err, openai.ErrRateLimited) {
			log.Warnf("Image verification rate limited; passing with caution")
		} else {
			log.Warnf("Image verification failed, passing with caution: %v", err)
		}
		metrics.UpstreamRequestsTotal.WithLabelValues("openai_verify", "error").Inc()
		return &openai.VerificationResult{Matches: true, Cautioned: true, Reason: "verification unavailable"}
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("openai_verify", "ok").Inc()

	s.cache.Put(key, result)
	return result
}
