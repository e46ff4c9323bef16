package ports

import (
	"context"
	"time"
)

type NetworkSpec struct {
	Name    string
	Subnet  string
	Gateway string
	Labels  map[string]string
}

type NetworkInfo struct {
	ID      string
	Name    string
	Subnets []string
	Gateway string
	Labels  map[string]string
}

type VolumeBinding struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

type PortBinding struct {
	ContainerPort int
	HostPort      int
}

// ContainerSpec is the declarative description of a node container.
type ContainerSpec struct {
	Name    string
	Image   string
	Cmd     []string
	Env     []string
	Volumes []VolumeBinding
	Network string
	IP      string
	Ports   []PortBinding
	Labels  map[string]string
	// User is "uid:gid" inside the container; empty keeps the image default.
	User    string
}

type ContainerState struct {
	ID         string
	Name       string
	Running    bool
	Paused     bool
	Restarting bool
	Dead       bool
	Status     string
	ExitCode   int
}

type ContainerInfo struct {
	ID     string
	Name   string
	Image  string
	State  string
	Labels map[string]string
}

type RuntimeVersion struct {
	Version    string
	APIVersion string
}

type RuntimeResources struct {
	MemoryBytes uint64
	CPUs        int
}

// ContainerRuntime abstracts the container engine. Removal of resources that
// no longer exist is reported as success.
type ContainerRuntime interface {
	Ping(ctx context.Context) error
	Version(ctx context.Context) (RuntimeVersion, error)
	Resources(ctx context.Context) (RuntimeResources, error)

	CreateNetwork(ctx context.Context, spec NetworkSpec) (string, error)
	RemoveNetwork(ctx context.Context, name string) error
	NetworkExists(ctx context.Context, name string) (bool, error)
	InspectNetwork(ctx context.Context, name string) (NetworkInfo, error)
	ListNetworks(ctx context.Context) ([]NetworkInfo, error)

	EnsureImage(ctx context.Context, image string) error

	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, timeout time.Duration) error
	RemoveContainer(ctx context.Context, id string, force bool) error
	InspectContainer(ctx context.Context, id string) (ContainerState, error)
	ListContainers(ctx context.Context, labels map[string]string) ([]ContainerInfo, error)
	ContainerLogs(ctx context.Context, id string, tail int) (string, error)
	Exec(ctx context.Context, id string, cmd []string) (string, error)
}
