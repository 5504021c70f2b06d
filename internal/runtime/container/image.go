package container

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// imageEnsurer inspects the local image store and pulls an image if it is
// absent. It prefers the Docker Engine API client and falls back to the
// plain CLI when the API socket is unreachable (e.g. a rootless or remote
// Docker context that only exposes the `docker` binary on PATH).
type imageEnsurer struct {
	binary string
}

func newImageEnsurer(binary string) *imageEnsurer {
	return &imageEnsurer{binary: binary}
}

// ensure guarantees image is present in the local store, pulling it if
// necessary. Pull failures are always reported as transient: a registry
// hiccup or rate limit should not poison the skill's config.
func (e *imageEnsurer) ensure(ctx context.Context, imageRef string) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return e.ensureViaCLI(ctx, imageRef)
	}
	defer cli.Close()

	if _, _, err := cli.ImageInspectWithRaw(ctx, imageRef); err == nil {
		return nil
	}

	reader, err := cli.ImagePull(ctx, imageRef, image.PullOptions{})
	if err != nil {
		return e.ensureViaCLI(ctx, imageRef)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pull image %q: %w", imageRef, err)
	}
	return nil
}

// ensureViaCLI falls back to `docker inspect`/`docker pull` when the Engine
// API client cannot be constructed or used.
func (e *imageEnsurer) ensureViaCLI(ctx context.Context, imageRef string) error {
	inspect := exec.CommandContext(ctx, e.binary, "image", "inspect", imageRef)
	if err := inspect.Run(); err == nil {
		return nil
	}

	pull := exec.CommandContext(ctx, e.binary, "pull", imageRef)
	if out, err := pull.CombinedOutput(); err != nil {
		return fmt.Errorf("pull image %q: %w: %s", imageRef, err, string(out))
	}
	return nil
}
