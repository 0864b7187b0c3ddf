package radio

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DeviceArgs holds a parsed "type=sim,rx_channels=2" device string.
type DeviceArgs map[string]string

func ParseDeviceArgs(s string) (DeviceArgs, error) {
	da := make(DeviceArgs)
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("bad device arg %q", kv)
		}
		da[k] = strings.TrimSpace(v)
	}
	return da, nil
}

func (da DeviceArgs) Type() string { return da["type"] }

func (da DeviceArgs) Get(k, def string) string {
	if v, ok := da[k]; ok {
		return v
	}
	return def
}

func (da DeviceArgs) Int(k string, def int) (int, error) {
	v, ok := da[k]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("device arg %s: %w", k, err)
	}
	return n, nil
}

func (da DeviceArgs) Float(k string, def float64) (float64, error) {
	v, ok := da[k]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("device arg %s: %w", k, err)
	}
	return f, nil
}

func (da DeviceArgs) String() string {
	keys := make([]string, 0, len(da))
	for k := range da {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kvs := make([]string, len(keys))
	for i, k := range keys {
		kvs[i] = k + "=" + da[k]
	}
	return strings.Join(kvs, ",")
}
