package probe

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Physical is the value of the virtual fact on bare metal, as facter
// reports it.
const Physical = "physical"

// Host answers a small set of facts without external tooling: virtual,
// kernel, architecture and hostname.
type Host struct {
	// CPUInfo is read to detect a hypervisor when systemd-detect-virt is
	// unavailable. Defaults to /proc/cpuinfo.
	CPUInfo string
}

func (h Host) Probe(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		switch k {
		case "virtual":
			out[k] = h.virtual(ctx)
		case "kernel":
			out[k] = kernelName()
		case "architecture":
			out[k] = runtime.GOARCH
		case "hostname":
			if name, err := os.Hostname(); err == nil {
				out[k] = name
			}
		}
	}
	return out, nil
}

func (h Host) virtual(ctx context.Context) string {
	if _, err := exec.LookPath("systemd-detect-virt"); err == nil {
		var stdout bytes.Buffer
		cmd := exec.CommandContext(ctx, "systemd-detect-virt")
		cmd.Stdout = &stdout
		// Exits non-zero and prints "none" on bare metal.
		_ = cmd.Run()
		if v := strings.TrimSpace(stdout.String()); v != "" {
			if v == "none" {
				return Physical
			}
			return v
		}
	}

	path := h.CPUInfo
	if path == "" {
		path = "/proc/cpuinfo"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Physical
	}
	return virtualFromCPUInfo(data)
}

func virtualFromCPUInfo(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) != "flags" {
			continue
		}
		for _, flag := range strings.Fields(value) {
			if flag == "hypervisor" {
				return "virtual"
			}
		}
	}
	return Physical
}

func kernelName() string {
	switch runtime.GOOS {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "windows"
	case "freebsd":
		return "FreeBSD"
	default:
		return runtime.GOOS
	}
}
