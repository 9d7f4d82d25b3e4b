// Package dockerhost executes scaling actions against a local Docker
// daemon: scale-up starts another replica of the configured service
// image, scale-down stops the newest one. Metrics are read from the
// daemon's per-container stats.
package dockerhost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const replicaLabel = "trafficctl.replica"

// Config describes the service the host scales.
type Config struct {
	Image         string `json:"image"`
	ContainerPort int    `json:"container_port"`
	MinReplicas   int    `json:"min_replicas"`
	MaxReplicas   int    `json:"max_replicas"`
}

// Host talks to the Docker daemon.
type Host struct {
	cli *client.Client
	cfg Config
}

func NewHost(cfg Config) (*Host, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("dockerhost: image is required")
	}
	if cfg.MinReplicas <= 0 {
		cfg.MinReplicas = 1
	}
	if cfg.MaxReplicas <= 0 {
		cfg.MaxReplicas = 10
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("dockerhost: failed to create docker client: %w", err)
	}
	return &Host{cli: cli, cfg: cfg}, nil
}

// TriggerScalingAction adds a replica when the comparator is "above"
// and removes one when it is "below", within the configured bounds.
func (h *Host) TriggerScalingAction(ctx context.Context, metric, comparator string, threshold float64) error {
	replicas, err := h.replicas(ctx)
	if err != nil {
		return err
	}

	switch comparator {
	case "above":
		if len(replicas) >= h.cfg.MaxReplicas {
			log.Printf("[CLOUD] Docker: already at max replicas (%d), not scaling up", h.cfg.MaxReplicas)
			return nil
		}
		return h.startReplica(ctx)
	case "below":
		if len(replicas) <= h.cfg.MinReplicas {
			log.Printf("[CLOUD] Docker: already at min replicas (%d), not scaling down", h.cfg.MinReplicas)
			return nil
		}
		return h.stopReplica(ctx, replicas[0].ID)
	default:
		return fmt.Errorf("dockerhost: unknown comparator %q", comparator)
	}
}

// ReadMetric supports "replicas" plus "cpu" and "memory" percentages
// averaged across the running replicas.
func (h *Host) ReadMetric(ctx context.Context, name, target string) (float64, error) {
	replicas, err := h.replicas(ctx)
	if err != nil {
		return 0, err
	}

	if name == "replicas" {
		return float64(len(replicas)), nil
	}
	if name != "cpu" && name != "memory" {
		return 0, fmt.Errorf("dockerhost: unsupported metric %q", name)
	}
	if len(replicas) == 0 {
		return 0, nil
	}

	var total float64
	for _, c := range replicas {
		v, err := h.containerMetric(ctx, c.ID, name)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total / float64(len(replicas)), nil
}

func (h *Host) replicas(ctx context.Context) ([]container.Summary, error) {
	list, err := h.cli.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", replicaLabel+"=true")),
	})
	if err != nil {
		return nil, fmt.Errorf("dockerhost: failed to list replicas: %w", err)
	}
	return list, nil
}

func (h *Host) startReplica(ctx context.Context) error {
	reader, err := h.cli.ImagePull(ctx, h.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("dockerhost: failed to pull image %s: %w", h.cfg.Image, err)
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		log.Printf("[CLOUD] Docker: failed to drain image pull output: %v", err)
	}
	reader.Close()

	portStr := fmt.Sprintf("%d/tcp", h.cfg.ContainerPort)
	resp, err := h.cli.ContainerCreate(
		ctx,
		&container.Config{
			Image:        h.cfg.Image,
			Labels:       map[string]string{replicaLabel: "true"},
			ExposedPorts: nat.PortSet{nat.Port(portStr): struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				nat.Port(portStr): []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: ""}},
			},
		},
		nil, nil, "",
	)
	if err != nil {
		return fmt.Errorf("dockerhost: failed to create replica: %w", err)
	}

	if err := h.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if rmErr := h.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			log.Printf("[CLOUD] Docker: failed to remove replica %s after failed start: %v", resp.ID, rmErr)
		}
		return fmt.Errorf("dockerhost: failed to start replica %s: %w", resp.ID, err)
	}

	log.Printf("[CLOUD] Docker: started replica %s of %s", resp.ID, h.cfg.Image)
	return nil
}

func (h *Host) stopReplica(ctx context.Context, id string) error {
	if err := h.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		if !client.IsErrNotFound(err) {
			return fmt.Errorf("dockerhost: failed to stop replica %s: %w", id, err)
		}
	}
	if err := h.cli.ContainerRemove(ctx, id, container.RemoveOptions{RemoveVolumes: true}); err != nil {
		if !client.IsErrNotFound(err) {
			return fmt.Errorf("dockerhost: failed to remove replica %s: %w", id, err)
		}
	}
	log.Printf("[CLOUD] Docker: stopped replica %s", id)
	return nil
}

// statsPayload is the slice of the daemon's stats JSON we need.
type statsPayload struct {
	CPUStats struct {
		CPUUsage struct {
			TotalUsage uint64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemUsage uint64 `json:"system_cpu_usage"`
		OnlineCPUs  uint64 `json:"online_cpus"`
	} `json:"cpu_stats"`
	PreCPUStats struct {
		CPUUsage struct {
			TotalUsage uint64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemUsage uint64 `json:"system_cpu_usage"`
	} `json:"precpu_stats"`
	MemoryStats struct {
		Usage uint64 `json:"usage"`
		Limit uint64 `json:"limit"`
	} `json:"memory_stats"`
}

func (h *Host) containerMetric(ctx context.Context, id, name string) (float64, error) {
	stats, err := h.cli.ContainerStats(ctx, id, false)
	if err != nil {
		return 0, fmt.Errorf("dockerhost: failed to read stats for %s: %w", id, err)
	}
	defer stats.Body.Close()

	var payload statsPayload
	if err := json.NewDecoder(stats.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("dockerhost: failed to decode stats for %s: %w", id, err)
	}

	switch name {
	case "cpu":
		cpuDelta := float64(payload.CPUStats.CPUUsage.TotalUsage) - float64(payload.PreCPUStats.CPUUsage.TotalUsage)
		sysDelta := float64(payload.CPUStats.SystemUsage) - float64(payload.PreCPUStats.SystemUsage)
		if sysDelta <= 0 || cpuDelta < 0 {
			return 0, nil
		}
		cpus := float64(payload.CPUStats.OnlineCPUs)
		if cpus == 0 {
			cpus = 1
		}
		return cpuDelta / sysDelta * cpus * 100, nil
	case "memory":
		if payload.MemoryStats.Limit == 0 {
			return 0, nil
		}
		return float64(payload.MemoryStats.Usage) / float64(payload.MemoryStats.Limit) * 100, nil
	default:
		return 0, fmt.Errorf("dockerhost: unsupported metric %q", name)
	}
}
