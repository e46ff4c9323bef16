// Package docker implements ports.ContainerRuntime on the Docker Engine API.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/ports"
)

type Runtime struct {
	api    dockerclient.APIClient
	logger hclog.Logger
}

var _ ports.ContainerRuntime = (*Runtime)(nil)

// New connects using the DOCKER_* environment with API version negotiation.
func New(logger hclog.Logger) (*Runtime, error) {
	api, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, domain.NewRuntimeError("connect", err)
	}
	return NewWithClient(api, logger), nil
}

func NewWithClient(api dockerclient.APIClient, logger hclog.Logger) *Runtime {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Runtime{api: api, logger: logger.Named("docker")}
}

func (r *Runtime) Close() error {
	return r.api.Close()
}

func (r *Runtime) Ping(ctx context.Context) error {
	if _, err := r.api.Ping(ctx); err != nil {
		return domain.NewRuntimeError("ping", err)
	}
	return nil
}

func (r *Runtime) Version(ctx context.Context) (ports.RuntimeVersion, error) {
	v, err := r.api.ServerVersion(ctx)
	if err != nil {
		return ports.RuntimeVersion{}, domain.NewRuntimeError("version", err)
	}
	return ports.RuntimeVersion{Version: v.Version, APIVersion: v.APIVersion}, nil
}

func (r *Runtime) Resources(ctx context.Context) (ports.RuntimeResources, error) {
	info, err := r.api.Info(ctx)
	if err != nil {
		return ports.RuntimeResources{}, domain.NewRuntimeError("info", err)
	}
	var mem uint64
	if info.MemTotal > 0 {
		mem = uint64(info.MemTotal)
	}
	return ports.RuntimeResources{MemoryBytes: mem, CPUs: info.NCPU}, nil
}

func (r *Runtime) CreateNetwork(ctx context.Context, spec ports.NetworkSpec) (string, error) {
	ipam := &network.IPAM{Driver: "default"}
	if spec.Subnet != "" {
		ipam.Config = []network.IPAMConfig{{Subnet: spec.Subnet, Gateway: spec.Gateway}}
	}
	resp, err := r.api.NetworkCreate(ctx, spec.Name, network.CreateOptions{
		Driver: "bridge",
		IPAM:   ipam,
		Labels: spec.Labels,
	})
	if err != nil {
		return "", domain.NewRuntimeError("create network "+spec.Name, err)
	}
	if resp.Warning != "" {
		r.logger.Warn("network created with warning", "network", spec.Name, "warning", resp.Warning)
	}
	r.logger.Debug("created network", "network", spec.Name, "id", resp.ID, "subnet", spec.Subnet)
	return resp.ID, nil
}

func (r *Runtime) RemoveNetwork(ctx context.Context, name string) error {
	if err := r.api.NetworkRemove(ctx, name); err != nil {
		if errdefs.IsNotFound(err) {
			r.logger.Debug("network already removed", "network", name)
			return nil
		}
		return domain.NewRuntimeError("remove network "+name, err)
	}
	return nil
}

func (r *Runtime) NetworkExists(ctx context.Context, name string) (bool, error) {
	_, err := r.api.NetworkInspect(ctx, name, network.InspectOptions{})
	if err == nil {
		return true, nil
	}
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	return false, domain.NewRuntimeError("inspect network "+name, err)
}

func (r *Runtime) InspectNetwork(ctx context.Context, name string) (ports.NetworkInfo, error) {
	res, err := r.api.NetworkInspect(ctx, name, network.InspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ports.NetworkInfo{}, &domain.NotFoundError{Kind: domain.NotFoundNetwork, Name: name}
		}
		return ports.NetworkInfo{}, domain.NewRuntimeError("inspect network "+name, err)
	}
	return networkInfo(res.ID, res.Name, res.IPAM.Config, res.Labels), nil
}

func (r *Runtime) ListNetworks(ctx context.Context) ([]ports.NetworkInfo, error) {
	list, err := r.api.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, domain.NewRuntimeError("list networks", err)
	}
	out := make([]ports.NetworkInfo, 0, len(list))
	for _, n := range list {
		out = append(out, networkInfo(n.ID, n.Name, n.IPAM.Config, n.Labels))
	}
	return out, nil
}

func networkInfo(id, name string, configs []network.IPAMConfig, labels map[string]string) ports.NetworkInfo {
	info := ports.NetworkInfo{ID: id, Name: name, Labels: labels}
	for _, c := range configs {
		if c.Subnet != "" {
			info.Subnets = append(info.Subnets, c.Subnet)
		}
		if info.Gateway == "" && c.Gateway != "" {
			info.Gateway = c.Gateway
		}
	}
	return info
}

// EnsureImage pulls ref unless it is already present locally.
func (r *Runtime) EnsureImage(ctx context.Context, ref string) error {
	_, _, err := r.api.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return domain.NewRuntimeError("inspect image "+ref, err)
	}

	r.logger.Info("pulling image", "image", ref)
	rc, err := r.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return domain.NewRuntimeError("pull image "+ref, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return domain.NewRuntimeError("pull image "+ref, err)
	}
	return nil
}

func (r *Runtime) CreateContainer(ctx context.Context, spec ports.ContainerSpec) (string, error) {
	cfg, hostCfg, netCfg, err := containerConfigs(spec)
	if err != nil {
		return "", err
	}
	resp, err := r.api.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, spec.Name)
	if err != nil {
		return "", domain.NewRuntimeError("create container "+spec.Name, err)
	}
	for _, w := range resp.Warnings {
		r.logger.Warn("container created with warning", "container", spec.Name, "warning", w)
	}
	r.logger.Debug("created container", "container", spec.Name, "id", shortID(resp.ID), "ip", spec.IP)
	return resp.ID, nil
}

func (r *Runtime) StartContainer(ctx context.Context, id string) error {
	if err := r.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return domain.NewRuntimeError("start container "+shortID(id), err)
	}
	return nil
}

func (r *Runtime) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	secs := int(math.Ceil(timeout.Seconds()))
	if err := r.api.ContainerStop(ctx, id, container.StopOptions{Timeout: &secs}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return domain.NewRuntimeError("stop container "+shortID(id), err)
	}
	return nil
}

func (r *Runtime) RemoveContainer(ctx context.Context, id string, force bool) error {
	err := r.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: force, RemoveVolumes: true})
	if err != nil {
		if errdefs.IsNotFound(err) {
			r.logger.Debug("container already removed", "id", shortID(id))
			return nil
		}
		return domain.NewRuntimeError("remove container "+shortID(id), err)
	}
	return nil
}

func (r *Runtime) InspectContainer(ctx context.Context, id string) (ports.ContainerState, error) {
	res, err := r.api.ContainerInspect(ctx, id)
	if err != nil {
		return ports.ContainerState{}, domain.NewRuntimeError("inspect container "+shortID(id), err)
	}
	state := ports.ContainerState{ID: res.ID, Name: strings.TrimPrefix(res.Name, "/")}
	if res.State != nil {
		state.Running = res.State.Running
		state.Paused = res.State.Paused
		state.Restarting = res.State.Restarting
		state.Dead = res.State.Dead
		state.Status = res.State.Status
		state.ExitCode = res.State.ExitCode
	}
	return state, nil
}

func (r *Runtime) ListContainers(ctx context.Context, labels map[string]string) ([]ports.ContainerInfo, error) {
	list, err := r.api.ContainerList(ctx, container.ListOptions{All: true, Filters: labelFilter(labels)})
	if err != nil {
		return nil, domain.NewRuntimeError("list containers", err)
	}
	out := make([]ports.ContainerInfo, 0, len(list))
	for _, c := range list {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		out = append(out, ports.ContainerInfo{
			ID:     c.ID,
			Name:   name,
			Image:  c.Image,
			State:  c.State,
			Labels: c.Labels,
		})
	}
	return out, nil
}

func (r *Runtime) ContainerLogs(ctx context.Context, id string, tail int) (string, error) {
	opts := container.LogsOptions{ShowStdout: true, ShowStderr: true, Tail: "all"}
	if tail > 0 {
		opts.Tail = fmt.Sprint(tail)
	}
	rc, err := r.api.ContainerLogs(ctx, id, opts)
	if err != nil {
		return "", domain.NewRuntimeError("logs "+shortID(id), err)
	}
	defer rc.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, rc); err != nil {
		return "", domain.NewRuntimeError("logs "+shortID(id), err)
	}
	return out.String(), nil
}

// Exec runs cmd in the container and returns its combined output. A non-zero
// exit code is an error.
func (r *Runtime) Exec(ctx context.Context, id string, cmd []string) (string, error) {
	op := "exec " + strings.Join(cmd, " ")
	created, err := r.api.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", domain.NewRuntimeError(op, err)
	}

	attached, err := r.api.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", domain.NewRuntimeError(op, err)
	}
	defer attached.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attached.Reader); err != nil {
		return "", domain.NewRuntimeError(op, err)
	}

	inspect, err := r.api.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return "", domain.NewRuntimeError(op, err)
	}
	if inspect.ExitCode != 0 {
		return "", domain.NewRuntimeError(op,
			fmt.Errorf("exit code %d: %s", inspect.ExitCode, strings.TrimSpace(stderr.String())))
	}
	return stdout.String(), nil
}

func labelFilter(labels map[string]string) filters.Args {
	args := filters.NewArgs()
	for k, v := range labels {
		args.Add("label", k+"="+v)
	}
	return args
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
