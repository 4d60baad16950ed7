// Package probe gathers environment attributes from the running host.
package probe

import "context"

// Prober returns values for the requested attribute keys. Keys it does not
// know are left out of the result rather than reported as errors.
type Prober interface {
	Probe(ctx context.Context, keys []string) (map[string]string, error)
}

// Static answers from a fixed map.
type Static map[string]string

func (s Static) Probe(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Chain asks each prober in turn. The first prober to report a key wins.
type Chain []Prober

func (c Chain) Probe(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	remaining := keys
	for _, p := range c {
		if len(remaining) == 0 {
			break
		}
		got, err := p.Probe(ctx, remaining)
		if err != nil {
			return nil, err
		}
		for k, v := range got {
			if _, seen := out[k]; !seen {
				out[k] = v
			}
		}
		remaining = missing(remaining, out)
	}
	return out, nil
}

func missing(keys []string, have map[string]string) []string {
	var rest []string
	for _, k := range keys {
		if _, ok := have[k]; !ok {
			rest = append(rest, k)
		}
	}
	return rest
}
