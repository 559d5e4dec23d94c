package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/go-connections/nat"
)

// Status represents the state of a namespace's store container
type Status string

const (
	// StatusRunning indicates the container is running
	StatusRunning Status = "Running"

	// StatusStopped indicates the container exists but is not running
	StatusStopped Status = "Stopped"

	// StatusMissing indicates no container exists for the namespace
	StatusMissing Status = "Missing"
)

// StoreInfo describes a namespace's store container.
type StoreInfo struct {
	Namespace   string `json:"namespace"`
	Container   string `json:"container"`
	ContainerID string `json:"containerId,omitempty"`
	Image       string `json:"image,omitempty"`
	Status      Status `json:"status"`
	Port        int    `json:"port,omitempty"`
	URL         string `json:"url,omitempty"`
	Uptime      string `json:"uptime,omitempty"`
}

// UpOptions configures RedisStore.Up.
type UpOptions struct {
	Image string // Defaults to DefaultRedisImage
	Port  int    // 0 picks the first free port from 6379
}

// RedisStore manages one labelled Redis container per store namespace.
type RedisStore struct {
	cli API
	log *slog.Logger
	now func() time.Time
}

// NewRedisStore creates a manager over cli. A nil logger means slog.Default().
func NewRedisStore(cli API, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{cli: cli, log: log, now: time.Now}
}

// Status reports the store container of namespace.
func (r *RedisStore) Status(ctx context.Context, namespace string) (StoreInfo, error) {
	c, found, err := r.find(ctx, namespace)
	if err != nil {
		return StoreInfo{}, err
	}
	if !found {
		return StoreInfo{Namespace: namespace, Container: RedisContainerName(namespace), Status: StatusMissing}, nil
	}
	return r.describe(namespace, c), nil
}

// Up ensures the store container of namespace is running, creating it if needed.
// An existing stopped container is restarted with its original port.
func (r *RedisStore) Up(ctx context.Context, namespace string, opts UpOptions) (StoreInfo, error) {
	c, found, err := r.find(ctx, namespace)
	if err != nil {
		return StoreInfo{}, err
	}
	if found {
		if c.State != "running" {
			r.log.Info("starting existing store container", "container", RedisContainerName(namespace))
			if err := r.cli.ContainerStart(ctx, c.ID, container.StartOptions{}); err != nil {
				return StoreInfo{}, fmt.Errorf("failed to start Redis container: %w", err)
			}
			c.State = "running"
			c.Created = r.now().Unix()
		}
		return r.describe(namespace, c), nil
	}

	image := opts.Image
	if image == "" {
		image = DefaultRedisImage
	}
	port, err := FindAvailablePort(ctx, r.cli, opts.Port)
	if err != nil {
		return StoreInfo{}, fmt.Errorf("failed to allocate Redis port: %w", err)
	}

	if err := r.pull(ctx, image); err != nil {
		return StoreInfo{}, err
	}

	name := RedisContainerName(namespace)
	labels := BuildLabels(namespace, GenerateRunID(), ComponentRedis)
	labels[LabelRedisPort] = strconv.Itoa(port)

	resp, err := r.cli.ContainerCreate(ctx, &container.Config{
		Image:  image,
		Labels: labels,
		Cmd:    []string{"redis-server", "--appendonly", "yes"},
		ExposedPorts: nat.PortSet{
			"6379/tcp": struct{}{},
		},
	}, &container.HostConfig{
		RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
		PortBindings: nat.PortMap{
			"6379/tcp": []nat.PortBinding{
				{HostIP: "127.0.0.1", HostPort: strconv.Itoa(port)},
			},
		},
	}, nil, nil, name)
	if err != nil {
		return StoreInfo{}, fmt.Errorf("failed to create Redis container: %w", err)
	}

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Roll back so the next attempt does not find a half-made container.
		if rmErr := r.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			r.log.Warn("rollback failed", "container", name, "error", rmErr)
		}
		return StoreInfo{}, fmt.Errorf("failed to start Redis container: %w", err)
	}

	r.log.Info("started store container", "container", name, "port", port)
	return StoreInfo{
		Namespace:   namespace,
		Container:   name,
		ContainerID: resp.ID,
		Image:       image,
		Status:      StatusRunning,
		Port:        port,
		URL:         RedisURL(port),
		Uptime:      "0s",
	}, nil
}

// Down stops the store container of namespace. With remove set, the container
// and the data it holds are deleted. A missing container is not an error.
func (r *RedisStore) Down(ctx context.Context, namespace string, remove bool) (StoreInfo, error) {
	c, found, err := r.find(ctx, namespace)
	if err != nil {
		return StoreInfo{}, err
	}
	if !found {
		return StoreInfo{Namespace: namespace, Container: RedisContainerName(namespace), Status: StatusMissing}, nil
	}

	timeout := 10
	if c.State == "running" {
		if err := r.cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			return StoreInfo{}, fmt.Errorf("failed to stop Redis container: %w", err)
		}
	}
	info := r.describe(namespace, c)
	info.Status = StatusStopped
	info.Uptime = ""

	if remove {
		if err := r.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			return StoreInfo{}, fmt.Errorf("failed to remove Redis container: %w", err)
		}
		info.Status = StatusMissing
	}
	return info, nil
}

func (r *RedisStore) find(ctx context.Context, namespace string) (types.Container, bool, error) {
	containers, err := r.cli.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", fmt.Sprintf("%s=%s", LabelNamespace, namespace)),
			filters.Arg("label", fmt.Sprintf("%s=%s", LabelComponent, ComponentRedis)),
		),
	})
	if err != nil {
		return types.Container{}, false, fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return types.Container{}, false, nil
	}
	if len(containers) > 1 {
		r.log.Warn("multiple store containers for namespace, using the first", "namespace", namespace, "count", len(containers))
	}
	return containers[0], true, nil
}

func (r *RedisStore) describe(namespace string, c types.Container) StoreInfo {
	info := StoreInfo{
		Namespace:   namespace,
		Container:   RedisContainerName(namespace),
		ContainerID: c.ID,
		Image:       c.Image,
		Status:      StatusStopped,
	}
	if len(c.Names) > 0 {
		info.Container = strings.TrimPrefix(c.Names[0], "/")
	}
	if port, err := strconv.Atoi(c.Labels[LabelRedisPort]); err == nil {
		info.Port = port
		info.URL = RedisURL(port)
	}
	if c.State == "running" {
		info.Status = StatusRunning
		if c.Created > 0 {
			info.Uptime = r.now().Sub(time.Unix(c.Created, 0)).Truncate(time.Second).String()
		}
	}
	return info
}

func (r *RedisStore) pull(ctx context.Context, image string) error {
	r.log.Info("pulling image", "image", image)
	rc, err := r.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull %s: %w", image, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull %s: %w", image, err)
	}
	return nil
}
