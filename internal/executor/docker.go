package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/deskagent/internal/domain"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerExecutor runs commands by exec-ing into the VNC container on the
// local daemon. This is the single-host deployment shape, where the backend
// and the desktop container share a Docker daemon and no executor service
// sits between them.
type DockerExecutor struct {
	cli           *client.Client
	containerName string
	display       string
	logger        *slog.Logger
}

// NewDockerExecutor creates an executor targeting the named VNC container.
func NewDockerExecutor(containerName, display string, logger *slog.Logger) (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DockerExecutor{
		cli:           cli,
		containerName: containerName,
		display:       display,
		logger:        logger,
	}, nil
}

// Close releases the underlying Docker client.
func (e *DockerExecutor) Close() error {
	return e.cli.Close()
}

// Execute runs one command inside the VNC container with the session
// display exported, capturing stdout, stderr, and the exit code.
func (e *DockerExecutor) Execute(ctx context.Context, command string) domain.CommandOutcome {
	outcome := domain.CommandOutcome{Command: command}

	execConfig := container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          []string{"bash", "-lc", fmt.Sprintf("DISPLAY=%s; %s", e.display, command)},
	}

	resp, err := e.cli.ContainerExecCreate(ctx, e.containerName, execConfig)
	if err != nil {
		if errdefs.IsNotFound(err) {
			outcome.Error = fmt.Sprintf("VNC container %s not found", e.containerName)
		} else {
			outcome.Error = fmt.Sprintf("create exec: %v", err)
		}
		return outcome
	}

	attach, err := e.cli.ContainerExecAttach(ctx, resp.ID, container.ExecStartOptions{})
	if err != nil {
		outcome.Error = fmt.Sprintf("attach exec: %v", err)
		return outcome
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil && ctx.Err() == nil {
		e.logger.Warn("exec stream read failed", "command", command, "error", err)
		outcome.Error = fmt.Sprintf("read exec output: %v", err)
		return outcome
	}
	if ctx.Err() != nil {
		outcome.Error = fmt.Sprintf("command timed out: %v", ctx.Err())
		return outcome
	}

	inspect, err := e.cli.ContainerExecInspect(ctx, resp.ID)
	if err != nil {
		outcome.Error = fmt.Sprintf("inspect exec: %v", err)
		return outcome
	}

	exitCode := inspect.ExitCode
	outcome.Succeeded = true
	outcome.ExitStatus = &exitCode
	outcome.Output = stdout.String()
	outcome.Error = stderr.String()
	return outcome
}
