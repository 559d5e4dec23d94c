package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
)

const (
	// Port range for store containers, one per namespace.
	startPort = 6379
	endPort   = 6478
)

// portBindable reports whether a port can be bound on localhost. Replaced in tests.
var portBindable = func(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// FindAvailablePort returns preferred if it is free, otherwise the first free
// port in 6379-6478. A port is free when no compass container claims it by
// label and it can be bound on the host.
func FindAvailablePort(ctx context.Context, cli API, preferred int) (int, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", fmt.Sprintf("%s=true", LabelProject)),
			filters.Arg("label", fmt.Sprintf("%s=%s", LabelComponent, ComponentRedis)),
		),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query Docker containers: %w", err)
	}

	used := make(map[int]bool)
	for _, c := range containers {
		if port, err := strconv.Atoi(c.Labels[LabelRedisPort]); err == nil {
			used[port] = true
		}
	}

	if preferred > 0 {
		if used[preferred] || !portBindable(preferred) {
			return 0, fmt.Errorf("port %d is already in use", preferred)
		}
		return preferred, nil
	}

	for port := startPort; port <= endPort; port++ {
		if !used[port] && portBindable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available Redis ports (range %d-%d exhausted)", startPort, endPort)
}

// RedisHost returns the hostname that reaches ports published by the daemon.
// Inside a container that is host.docker.internal, otherwise localhost.
func RedisHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// RedisURL constructs the store URL for a published port.
func RedisURL(port int) string {
	return fmt.Sprintf("redis://%s:%d/0", RedisHost(), port)
}
