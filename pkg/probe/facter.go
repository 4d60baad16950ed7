package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// Facter queries facts through the facter binary.
type Facter struct {
	Binary string // defaults to "facter"
}

func (f Facter) binary() string {
	if f.Binary == "" {
		return "facter"
	}
	return f.Binary
}

// Available reports whether the facter binary can be found.
func (f Facter) Available() bool {
	_, err := exec.LookPath(f.binary())
	return err == nil
}

func (f Facter) Probe(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	args := append([]string{"--json"}, keys...)
	cmd := exec.CommandContext(ctx, f.binary(), args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("facter failed: %w\nstderr: %s", err, stderr.String())
	}
	return parseFacts(stdout.Bytes())
}

// parseFacts flattens facter's JSON output to strings. Missing facts come
// back as null and are dropped.
func parseFacts(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing facter output: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encoding fact %q: %w", k, err)
			}
			out[k] = string(b)
		}
	}
	return out, nil
}
