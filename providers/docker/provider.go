// Package docker implements a provider for local container workloads:
// images, networks, volumes, and containers against the Docker daemon.
// It is mainly useful for exercising a stack locally before pointing it
// at a cloud account.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/go-connections/nat"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/stratus-iac/stratus/pkg/provider"
)

type ContainerConfig struct {
	Image    string            `json:"image"`
	Name     string            `json:"name"`
	Command  []string          `json:"command"`
	Ports    map[string]int    `json:"ports"`
	Env      map[string]string `json:"env"`
	Networks []string          `json:"networks"`
	Volumes  []string          `json:"volumes"`
	Labels   map[string]string `json:"labels"`
	Restart  string            `json:"restart"`
}

type ContainerState struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ImageName string `json:"image"`
}

type NetworkConfig struct {
	Name     string            `json:"name"`
	Driver   string            `json:"driver"`
	Internal bool              `json:"internal"`
	Labels   map[string]string `json:"labels"`
}

type NetworkState struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Driver string `json:"driver"`
}

type VolumeConfig struct {
	Name   string `json:"name"`
	Driver string `json:"driver"`
}

type VolumeState struct {
	Name   string `json:"name"`
	Driver string `json:"driver"`
}

type ImageConfig struct {
	Name         string `json:"name"`
	BuildContext string `json:"buildContext"`
	Dockerfile   string `json:"dockerfile"`
}

type ImageState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Provider struct {
	client *client.Client
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) ensureClient() error {
	if p.client != nil {
		return nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	p.client = cli
	return nil
}

func (p *Provider) Configure(ctx context.Context, req *provider.ConfigureRequest) error {
	return p.ensureClient()
}

// Plan is a pure diff over declared inputs; no daemon connection is needed.
func (p *Provider) Plan(ctx context.Context, req *provider.PlanRequest) (*provider.PlanResponse, error) {
	if req.DesiredJSON == nil && req.PriorJSON != nil {
		return &provider.PlanResponse{Action: provider.ActionDelete}, nil
	}
	if req.PriorJSON == nil {
		return &provider.PlanResponse{Action: provider.ActionCreate}, nil
	}

	switch req.Type {
	case "docker:Container":
		var desired ContainerConfig
		if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
			return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
		}
		var prior ContainerState
		if err := json.Unmarshal(req.PriorJSON, &prior); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prior state: %w", err)
		}
		if desired.Image != prior.ImageName {
			return &provider.PlanResponse{
				Action:            provider.ActionReplace,
				ChangedAttributes: []string{"image"},
			}, nil
		}
	}

	if string(req.DesiredJSON) != string(req.PriorInputsJSON) {
		return &provider.PlanResponse{Action: provider.ActionReplace}, nil
	}
	return &provider.PlanResponse{Action: provider.ActionNoop}, nil
}

func (p *Provider) Apply(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	if err := p.ensureClient(); err != nil {
		return nil, err
	}

	switch req.Type {
	case "docker:Container":
		return p.applyContainer(ctx, req)
	case "docker:Network":
		return p.applyNetwork(ctx, req)
	case "docker:Volume":
		return p.applyVolume(ctx, req)
	case "docker:Image":
		return p.applyImage(ctx, req)
	}
	return nil, fmt.Errorf("unknown resource type: %s", req.Type)
}

func (p *Provider) Delete(ctx context.Context, req *provider.DeleteRequest) error {
	if err := p.ensureClient(); err != nil {
		return err
	}

	switch req.Type {
	case "docker:Container":
		var prior ContainerState
		if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
			return fmt.Errorf("failed to unmarshal prior state: %w", err)
		}
		if prior.ID == "" {
			return nil
		}
		timeout := 10 // seconds
		_ = p.client.ContainerStop(ctx, prior.ID, container.StopOptions{Timeout: &timeout})
		if err := p.client.ContainerRemove(ctx, prior.ID, container.RemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove container %s: %w", prior.ID, err)
		}
		return nil

	case "docker:Network":
		var prior NetworkState
		if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
			return fmt.Errorf("failed to unmarshal prior state: %w", err)
		}
		if prior.ID == "" {
			return nil
		}
		if err := p.client.NetworkRemove(ctx, prior.ID); err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove network %s: %w", prior.ID, err)
		}
		return nil

	case "docker:Volume":
		var prior VolumeState
		if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
			return fmt.Errorf("failed to unmarshal prior state: %w", err)
		}
		if prior.Name == "" {
			return nil
		}
		if err := p.client.VolumeRemove(ctx, prior.Name, true); err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove volume %s: %w", prior.Name, err)
		}
		return nil

	case "docker:Image":
		var prior ImageState
		if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
			return fmt.Errorf("failed to unmarshal prior state: %w", err)
		}
		if prior.ID == "" {
			return nil
		}
		if _, err := p.client.ImageRemove(ctx, prior.ID, image.RemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove image %s: %w", prior.ID, err)
		}
		return nil
	}
	return fmt.Errorf("unknown resource type: %s", req.Type)
}

func (p *Provider) Read(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	if err := p.ensureClient(); err != nil {
		return nil, err
	}

	if req.Type == "docker:Container" {
		var prior ContainerState
		if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}
		if prior.ID == "" {
			return &provider.ReadResponse{Exists: false}, nil
		}
		if _, err := p.client.ContainerInspect(ctx, prior.ID); err != nil {
			if client.IsErrNotFound(err) {
				return &provider.ReadResponse{Exists: false}, nil
			}
			return nil, fmt.Errorf("failed to inspect container %s: %w", prior.ID, err)
		}
	}
	return &provider.ReadResponse{Exists: true, StateJSON: req.StateJSON}, nil
}

func (p *Provider) applyContainer(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired ContainerConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	reader, err := p.client.ImagePull(ctx, desired.Image, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image %s: %w", desired.Image, err)
	}
	io.Copy(io.Discard, reader)
	reader.Close()

	portBindings := nat.PortMap{}
	for hostPort, containerPort := range desired.Ports {
		port := nat.Port(fmt.Sprintf("%d/tcp", containerPort))
		portBindings[port] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}}
	}

	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
		Binds:        desired.Volumes,
	}
	if len(desired.Networks) > 0 {
		hostConfig.NetworkMode = container.NetworkMode(desired.Networks[0])
	}
	if desired.Restart != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(desired.Restart),
		}
	}

	var env []string
	for k, v := range desired.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	resp, err := p.client.ContainerCreate(ctx,
		&container.Config{
			Image:  desired.Image,
			Cmd:    desired.Command,
			Env:    env,
			Labels: desired.Labels,
		},
		hostConfig,
		&network.NetworkingConfig{},
		&v1.Platform{},
		desired.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create container %s: %w", desired.Name, err)
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container %s: %w", desired.Name, err)
	}

	newState := ContainerState{ID: resp.ID, Name: desired.Name, ImageName: desired.Image}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) applyNetwork(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired NetworkConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	resp, err := p.client.NetworkCreate(ctx, desired.Name, dockertypes.NetworkCreate{
		Driver:   desired.Driver,
		Internal: desired.Internal,
		Labels:   desired.Labels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create network %s: %w", desired.Name, err)
	}

	newState := NetworkState{ID: resp.ID, Name: desired.Name, Driver: desired.Driver}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) applyVolume(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired VolumeConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	vol, err := p.client.VolumeCreate(ctx, volume.CreateOptions{
		Name:   desired.Name,
		Driver: desired.Driver,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create volume %s: %w", desired.Name, err)
	}

	newState := VolumeState{Name: vol.Name, Driver: vol.Driver}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) applyImage(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired ImageConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	if desired.BuildContext != "" {
		tar, err := archive.TarWithOptions(desired.BuildContext, &archive.TarOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create build context tar: %w", err)
		}

		dockerfile := desired.Dockerfile
		if dockerfile == "" {
			dockerfile = "Dockerfile"
		}
		resp, err := p.client.ImageBuild(ctx, tar, dockertypes.ImageBuildOptions{
			Tags:       []string{desired.Name},
			Dockerfile: dockerfile,
			Remove:     true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build image %s: %w", desired.Name, err)
		}
		io.Copy(os.Stdout, resp.Body)
		resp.Body.Close()
	} else {
		reader, err := p.client.ImagePull(ctx, desired.Name, image.PullOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to pull image %s: %w", desired.Name, err)
		}
		io.Copy(io.Discard, reader)
		reader.Close()
	}

	inspect, _, err := p.client.ImageInspectWithRaw(ctx, desired.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect image %s: %w", desired.Name, err)
	}

	newState := ImageState{ID: inspect.ID, Name: desired.Name}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}
