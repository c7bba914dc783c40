package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/datawire/dlib/dexec"
	"github.com/google/go-containerregistry/pkg/name"
	ociv1 "github.com/google/go-containerregistry/pkg/v1"
	ociv1tarball "github.com/google/go-containerregistry/pkg/v1/tarball"
)

// Docker is an Executor that gives each job its own container, mimicking the
// isolation a hosted CI platform provides.  Exactly one of Image or ImageFile
// must be set: Image names a tag already present in the local Docker daemon,
// while ImageFile is an image tarball that gets loaded in (and removed again
// when the session closes).
type Docker struct {
	Image     string
	ImageFile string

	// Dir, when set, is bind-mounted at /build and used as the working
	// directory of every command.
	Dir string
}

func (d Docker) Open(ctx context.Context, env []string) (Session, error) {
	sess := &dockerSession{
		env: env,
	}

	tag := d.Image
	if d.ImageFile != "" {
		img, err := openImage(d.ImageFile)
		if err != nil {
			return nil, err
		}
		loadedTag, err := loadImage(ctx, img)
		if err != nil {
			return nil, err
		}
		sess.loadedTag = loadedTag.String()
		tag = sess.loadedTag
	}
	if tag == "" {
		return nil, fmt.Errorf("sandbox.Docker: neither Image nor ImageFile is set")
	}

	sess.container = fmt.Sprintf("civet-job-%d-%d", os.Getpid(), time.Now().UnixNano())
	runArgs := []string{
		"run", "--detach", "--name", sess.container,
	}
	if d.Dir != "" {
		runArgs = append(runArgs, "--volume", d.Dir+":/build", "--workdir", "/build")
	}
	runArgs = append(runArgs, "--entrypoint", "sh", tag, "-c", "while true; do sleep 3600; done")
	if err := dexec.CommandContext(ctx, "docker", runArgs...).Run(); err != nil {
		_ = sess.removeImage(ctx)
		return nil, fmt.Errorf("sandbox.Docker: starting job container: %w", err)
	}

	return sess, nil
}

type dockerSession struct {
	container string
	loadedTag string
	env       []string
}

func (s *dockerSession) Run(ctx context.Context, command string) error {
	args := []string{"exec"}
	for _, binding := range s.env {
		args = append(args, "--env", binding)
	}
	args = append(args, s.container, "sh", "-c", command)
	return dexec.CommandContext(ctx, "docker", args...).Run()
}

func (s *dockerSession) Close(ctx context.Context) (err error) {
	maybeSetErr := func(_err error) {
		if _err != nil && err == nil {
			err = _err
		}
	}
	maybeSetErr(dexec.CommandContext(ctx, "docker", "rm", "--force", s.container).Run())
	maybeSetErr(s.removeImage(ctx))
	return err
}

func (s *dockerSession) removeImage(ctx context.Context) error {
	if s.loadedTag == "" {
		return nil
	}
	return dexec.CommandContext(ctx, "docker", "image", "rm", s.loadedTag).Run()
}

// loadImage feeds an image to `docker image load` under a unique throwaway
// tag.
func loadImage(ctx context.Context, img ociv1.Image) (name.Tag, error) {
	tag, err := name.NewTag(fmt.Sprintf("civet.local/job:%d.%d",
		os.Getpid(), time.Now().UnixNano()))
	if err != nil {
		return name.Tag{}, err
	}

	cmd := dexec.CommandContext(ctx, "docker", "image", "load")
	pipe, err := cmd.StdinPipe()
	if err != nil {
		return name.Tag{}, err
	}
	if err := cmd.Start(); err != nil {
		return name.Tag{}, err
	}
	defer func() {
		_ = pipe.Close()
		_ = cmd.Wait()
	}()
	if err := ociv1tarball.Write(tag, img, pipe); err != nil {
		return name.Tag{}, err
	}
	if err := pipe.Close(); err != nil {
		return name.Tag{}, err
	}
	if err := cmd.Wait(); err != nil {
		return name.Tag{}, err
	}
	return tag, nil
}

func pathOpener(filename string) ociv1tarball.Opener {
	fi, err := os.Stat(filename)
	if err != nil {
		return func() (io.ReadCloser, error) {
			return nil, err
		}
	}
	if fi.Mode().IsRegular() {
		// Open the file for each access.  This does not work on pipes.
		return func() (io.ReadCloser, error) {
			return os.Open(filename)
		}
	}
	// Read the file in to memory once, and then work on that.
	bs, err := os.ReadFile(filename)
	return func() (io.ReadCloser, error) {
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(bs)), nil
	}
}

func openImage(filename string) (ociv1.Image, error) {
	img, err := ociv1tarball.Image(pathOpener(filename), nil)
	if err != nil {
		return nil, &fs.PathError{
			Op:   "open imagefile",
			Path: filename,
			Err:  err,
		}
	}
	return img, nil
}
