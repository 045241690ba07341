package registry

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Resolver picks the endpoint that serves a named service for one call.
type Resolver interface {
	Pick(service string) (string, error)
}

// StaticResolver chooses uniformly at random among a fixed candidate set per
// service. It is safe for concurrent use.
type StaticResolver struct {
	candidates map[string][]string
}

// NewStaticResolver copies candidates, dropping blank endpoints.
func NewStaticResolver(candidates map[string][]string) *StaticResolver {
	out := make(map[string][]string, len(candidates))
	for service, endpoints := range candidates {
		kept := make([]string, 0, len(endpoints))
		for _, ep := range endpoints {
			if ep = strings.TrimSpace(ep); ep != "" {
				kept = append(kept, ep)
			}
		}
		if len(kept) > 0 {
			out[service] = kept
		}
	}
	return &StaticResolver{candidates: out}
}

// Pick returns one candidate endpoint for service.
func (r *StaticResolver) Pick(service string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%w: %s", ErrNoEndpoint, service)
	}
	endpoints := r.candidates[service]
	switch len(endpoints) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNoEndpoint, service)
	case 1:
		return endpoints[0], nil
	default:
		return endpoints[rand.IntN(len(endpoints))], nil
	}
}

// Candidates returns a copy of the endpoints configured for service.
func (r *StaticResolver) Candidates(service string) []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.candidates[service]...)
}
