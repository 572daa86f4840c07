package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

const (
	defaultTarget = "qemu-virt-rv32"
	defaultTicks  = 100
)

type Env map[string]string

// Environment resolves the RVK_* variables, falling back to defaults.
func Environment() Env {
	return map[string]string{
		"RVK_TARGET":    getenv("RVK_TARGET", defaultTarget),
		"RVK_LOG_LEVEL": getenv("RVK_LOG_LEVEL", "INFO"),
		"RVK_TICKS":     getenv("RVK_TICKS", strconv.Itoa(defaultTicks)),
	}
}

func (e Env) Print(w io.Writer) {
	for _, kv := range e.List() {
		fmt.Fprintf(w, "set %s\n", kv)
	}
}

func (e Env) Value(key string) string {
	if v, ok := e[key]; ok {
		return v
	}
	return ""
}

// Ticks parses RVK_TICKS. A malformed value yields the default and an error.
func (e Env) Ticks() (uint64, error) {
	v, err := strconv.ParseUint(e.Value("RVK_TICKS"), 10, 64)
	if err != nil {
		return defaultTicks, fmt.Errorf("RVK_TICKS: %w", err)
	}
	return v, nil
}

// List returns KEY=value pairs sorted by key.
func (e Env) List() []string {
	var result []string
	for key, value := range e {
		result = append(result, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(result)
	return result
}

func getenv(key, _default string) (value string) {
	value = os.Getenv(key)
	if len(value) == 0 {
		value = _default
	}
	return value
}
