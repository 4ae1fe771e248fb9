// Package device resolves which compute device a run was asked to use.
package device

import (
	"fmt"
	"os"
	"strings"
)

// Device names a compute device.
type Device string

const (
	CPU  Device = "cpu"
	CUDA Device = "cuda"
)

// nvidiaNode is checked by Probe; tests point it elsewhere.
var nvidiaNode = "/dev/nvidia0"

// Parse accepts "cuda" or "cpu", case-insensitively.
func Parse(s string) (Device, error) {
	switch d := Device(strings.ToLower(strings.TrimSpace(s))); d {
	case CPU, CUDA:
		return d, nil
	}
	return "", fmt.Errorf("unknown device %q (want cuda or cpu)", s)
}

// Probe returns CUDA when an NVIDIA GPU looks present and CPU otherwise.
func Probe() Device {
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		if v == "" || v == "-1" {
			return CPU
		}
		return CUDA
	}
	if _, err := os.Stat(nvidiaNode); err == nil {
		return CUDA
	}
	return CPU
}

func (d Device) String() string {
	return string(d)
}
