package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"osupp/config"
)

const (
	runtimeConfig = "PerformanceCalculator.runtimeconfig.json"
	hostAssembly  = "osupp-host.dll"

	protocolVersion = 1
)

// Runtime is the process-wide engine bootstrap. It is created once by Init
// and spawns one host per engine user.
type Runtime struct {
	buildDir string
	command  []string
	timeout  time.Duration
	log      zerolog.Logger
}

var (
	initMu  sync.Mutex
	current *Runtime
)

// Init locates the engine build and prepares the host command. Later calls
// return the same Runtime; asking for a different build directory is an
// error.
func Init(cfg config.Bridge, log zerolog.Logger) (*Runtime, error) {
	initMu.Lock()
	defer initMu.Unlock()

	dir, err := filepath.Abs(cfg.BuildDir)
	if err != nil {
		return nil, fmt.Errorf("bridge: build dir: %w", err)
	}
	if current != nil {
		if current.buildDir != dir {
			return nil, fmt.Errorf("bridge: already initialized from %s", current.buildDir)
		}
		return current, nil
	}

	if _, err := os.Stat(filepath.Join(dir, runtimeConfig)); err != nil {
		return nil, fmt.Errorf("bridge: engine build not found in %s: %w", dir, err)
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	command := cfg.Command
	if len(command) == 0 {
		command = []string{"dotnet", filepath.Join(dir, hostAssembly)}
	}

	current = &Runtime{
		buildDir: dir,
		command:  command,
		timeout:  timeout,
		log:      log.With().Str("component", "bridge").Logger(),
	}
	current.log.Info().Str("build_dir", dir).Strs("command", command).Msg("engine runtime ready")
	return current, nil
}

// Spawn starts a host process and checks it speaks the protocol. The
// process lives until the returned client is closed.
func (rt *Runtime) Spawn(ctx context.Context) (*Client, error) {
	cmd := exec.Command(rt.command[0], rt.command[1:]...)
	cmd.Dir = rt.buildDir
	cmd.Stderr = rt.log.With().Str("stream", "host").Logger()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("bridge: stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("bridge: stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("bridge: start host: %w", err)
	}

	c := NewClient(stdout, stdin, WithLogger(rt.log), WithTimeout(rt.timeout))
	c.wait = cmd.Wait

	if err := c.hello(ctx); err != nil {
		_ = cmd.Process.Kill()
		_ = c.Close()
		return nil, err
	}
	rt.log.Debug().Int("pid", cmd.Process.Pid).Msg("host started")
	return c, nil
}

func (c *Client) hello(ctx context.Context) error {
	res, err := c.call(ctx, "hello", struct {
		Protocol int `json:"protocol"`
	}{protocolVersion})
	if err != nil {
		return fmt.Errorf("bridge: handshake: %w", err)
	}
	if v := res.Get("protocol").Int(); v != protocolVersion {
		return fmt.Errorf("bridge: host speaks protocol %d, want %d", v, protocolVersion)
	}
	return nil
}
