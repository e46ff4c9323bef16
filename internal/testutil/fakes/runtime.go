// Package fakes provides in-memory collaborators for exercising the
// orchestrator without a container engine or a running chain.
package fakes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/ports"
)

type Container struct {
	ID      string
	Spec    ports.ContainerSpec
	Running bool
}

// Runtime is a ports.ContainerRuntime backed by maps. Failures are injected
// per container name through the Fail* fields before use.
type Runtime struct {
	mu sync.Mutex

	PingErr    error
	VersionStr string
	Memory     uint64
	ImageErr   error

	FailCreate        map[string]error
	FailStart         map[string]error
	FailStop          map[string]error
	FailRemove        map[string]error
	FailRemoveNetwork error

	networks   map[string]ports.NetworkInfo
	containers map[string]*Container
	pulled     []string
	seq        int
	Logs       map[string]string
}

func NewRuntime() *Runtime {
	return &Runtime{
		VersionStr: "27.3.1",
		Memory:     16 << 30,
		FailCreate: map[string]error{},
		FailStart:  map[string]error{},
		FailStop:   map[string]error{},
		FailRemove: map[string]error{},
		networks:   map[string]ports.NetworkInfo{},
		containers: map[string]*Container{},
		Logs:       map[string]string{},
	}
}

// AddNetwork registers a pre-existing network as if created by another process.
func (r *Runtime) AddNetwork(name, subnet, gateway string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.networks[name] = ports.NetworkInfo{
		ID:      fmt.Sprintf("net-%d", r.seq),
		Name:    name,
		Subnets: []string{subnet},
		Gateway: gateway,
	}
}

func (r *Runtime) HasNetwork(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.networks[name]
	return ok
}

func (r *Runtime) Containers() []Container {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Container, 0, len(r.containers))
	for _, c := range r.containers {
		out = append(out, *c)
	}
	return out
}

func (r *Runtime) ContainerByName(name string) (Container, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.containers {
		if c.Spec.Name == name {
			return *c, true
		}
	}
	return Container{}, false
}

func (r *Runtime) Pulled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.pulled...)
}

func (r *Runtime) Ping(ctx context.Context) error {
	return r.PingErr
}

func (r *Runtime) Version(ctx context.Context) (ports.RuntimeVersion, error) {
	return ports.RuntimeVersion{Version: r.VersionStr, APIVersion: "1.47"}, nil
}

func (r *Runtime) Resources(ctx context.Context) (ports.RuntimeResources, error) {
	return ports.RuntimeResources{MemoryBytes: r.Memory, CPUs: 4}, nil
}

func (r *Runtime) CreateNetwork(ctx context.Context, spec ports.NetworkSpec) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.networks[spec.Name]; ok {
		return "", domain.NewRuntimeError("create network "+spec.Name, fmt.Errorf("network already exists"))
	}
	r.seq++
	info := ports.NetworkInfo{
		ID:      fmt.Sprintf("net-%d", r.seq),
		Name:    spec.Name,
		Subnets: []string{spec.Subnet},
		Gateway: spec.Gateway,
		Labels:  spec.Labels,
	}
	r.networks[spec.Name] = info
	return info.ID, nil
}

func (r *Runtime) RemoveNetwork(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailRemoveNetwork != nil {
		return r.FailRemoveNetwork
	}
	delete(r.networks, name)
	return nil
}

func (r *Runtime) NetworkExists(ctx context.Context, name string) (bool, error) {
	return r.HasNetwork(name), nil
}

func (r *Runtime) InspectNetwork(ctx context.Context, name string) (ports.NetworkInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.networks[name]
	if !ok {
		return ports.NetworkInfo{}, &domain.NotFoundError{Kind: domain.NotFoundNetwork, Name: name}
	}
	return info, nil
}

func (r *Runtime) ListNetworks(ctx context.Context) ([]ports.NetworkInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ports.NetworkInfo
	for _, n := range r.networks {
		out = append(out, n)
	}
	return out, nil
}

func (r *Runtime) EnsureImage(ctx context.Context, image string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ImageErr != nil {
		return r.ImageErr
	}
	r.pulled = append(r.pulled, image)
	return nil
}

func (r *Runtime) CreateContainer(ctx context.Context, spec ports.ContainerSpec) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailCreate[spec.Name]; err != nil {
		return "", err
	}
	for _, c := range r.containers {
		if c.Spec.Name == spec.Name {
			return "", domain.NewRuntimeError("create container "+spec.Name, fmt.Errorf("name already in use"))
		}
	}
	r.seq++
	id := fmt.Sprintf("ctr-%04d", r.seq)
	r.containers[id] = &Container{ID: id, Spec: spec}
	return id, nil
}

func (r *Runtime) StartContainer(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if !ok {
		return domain.NewRuntimeError("start container "+id, fmt.Errorf("no such container"))
	}
	if err := r.FailStart[c.Spec.Name]; err != nil {
		return err
	}
	c.Running = true
	return nil
}

func (r *Runtime) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if !ok {
		return nil
	}
	if err := r.FailStop[c.Spec.Name]; err != nil {
		return err
	}
	c.Running = false
	return nil
}

func (r *Runtime) RemoveContainer(ctx context.Context, id string, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if !ok {
		return nil
	}
	if err := r.FailRemove[c.Spec.Name]; err != nil {
		return err
	}
	if c.Running && !force {
		return domain.NewRuntimeError("remove container "+id, fmt.Errorf("container is running"))
	}
	delete(r.containers, id)
	return nil
}

func (r *Runtime) InspectContainer(ctx context.Context, id string) (ports.ContainerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if !ok {
		return ports.ContainerState{}, domain.NewRuntimeError("inspect container "+id, fmt.Errorf("no such container"))
	}
	status := "exited"
	if c.Running {
		status = "running"
	}
	return ports.ContainerState{ID: id, Name: c.Spec.Name, Running: c.Running, Status: status}, nil
}

func (r *Runtime) ListContainers(ctx context.Context, labels map[string]string) ([]ports.ContainerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ports.ContainerInfo
	for _, c := range r.containers {
		if !matches(c.Spec.Labels, labels) {
			continue
		}
		state := "exited"
		if c.Running {
			state = "running"
		}
		out = append(out, ports.ContainerInfo{ID: c.ID, Name: c.Spec.Name, Image: c.Spec.Image, State: state, Labels: c.Spec.Labels})
	}
	return out, nil
}

func (r *Runtime) ContainerLogs(ctx context.Context, id string, tail int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Logs[id], nil
}

// Exec supports "cat <path>" by reading the host side of the bind mount that
// covers path.
func (r *Runtime) Exec(ctx context.Context, id string, cmd []string) (string, error) {
	r.mu.Lock()
	c, ok := r.containers[id]
	r.mu.Unlock()
	if !ok {
		return "", domain.NewRuntimeError("exec", fmt.Errorf("no such container"))
	}
	if len(cmd) != 2 || cmd[0] != "cat" {
		return "", domain.NewRuntimeError("exec", fmt.Errorf("unsupported command %v", cmd))
	}
	for _, v := range c.Spec.Volumes {
		if rel, err := filepath.Rel(v.ContainerPath, cmd[1]); err == nil && !strings.HasPrefix(rel, "..") {
			host := v.HostPath
			if rel != "." {
				host = filepath.Join(v.HostPath, rel)
			}
			data, err := os.ReadFile(host)
			if err != nil {
				return "", domain.NewRuntimeError("exec", err)
			}
			return string(data), nil
		}
	}
	return "", domain.NewRuntimeError("exec", fmt.Errorf("%s: no such file", cmd[1]))
}

func matches(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}
