package docker

import (
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/ports"
)

// containerConfigs translates a ContainerSpec into the three engine
// configuration objects accepted by ContainerCreate.
func containerConfigs(spec ports.ContainerSpec) (*container.Config, *container.HostConfig, *network.NetworkingConfig, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range spec.Ports {
		port, err := nat.NewPort("tcp", strconv.Itoa(p.ContainerPort))
		if err != nil {
			return nil, nil, nil, domain.NewValidationError("container port", err.Error(), fmt.Sprint(p.ContainerPort))
		}
		exposed[port] = struct{}{}
		if p.HostPort > 0 {
			bindings[port] = append(bindings[port], nat.PortBinding{
				HostIP:   "0.0.0.0",
				HostPort: strconv.Itoa(p.HostPort),
			})
		}
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		Env:          spec.Env,
		Labels:       spec.Labels,
		ExposedPorts: exposed,
		User:         spec.User,
	}

	hostCfg := &container.HostConfig{
		Binds:        binds(spec.Volumes),
		PortBindings: bindings,
	}

	var netCfg *network.NetworkingConfig
	if spec.Network != "" {
		endpoint := &network.EndpointSettings{}
		if spec.IP != "" {
			endpoint.IPAMConfig = &network.EndpointIPAMConfig{IPv4Address: spec.IP}
		}
		netCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{spec.Network: endpoint},
		}
		hostCfg.NetworkMode = container.NetworkMode(spec.Network)
	}

	return cfg, hostCfg, netCfg, nil
}

func binds(volumes []ports.VolumeBinding) []string {
	out := make([]string, 0, len(volumes))
	for _, v := range volumes {
		b := v.HostPath + ":" + v.ContainerPath
		if v.ReadOnly {
			b += ":ro"
		}
		out = append(out, b)
	}
	return out
}
