package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"printlapse/internal/config"
	"printlapse/internal/ipc"
)

type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) socketPath() string {
	if c.socketFlag == nil {
		return c.defaultSocketPath()
	}
	if strings.TrimSpace(*c.socketFlag) == "" {
		*c.socketFlag = c.defaultSocketPath()
	}
	return *c.socketFlag
}

// defaultSocketPath prefers the loaded config, then an unvalidated parse of
// the config file, then the built-in defaults, so `status` still finds the
// socket when the config has errors.
func (c *commandContext) defaultSocketPath() string {
	if c.config != nil {
		return c.config.SocketPath()
	}
	if cfg, _, _, err := config.LoadUnvalidated(c.configPath()); err == nil {
		return cfg.SocketPath()
	}
	cfg := config.Default()
	if logDir, err := config.ExpandPath(cfg.Paths.LogDir); err == nil {
		cfg.Paths.LogDir = logDir
	}
	return cfg.SocketPath()
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

// errDaemonUnavailable marks dial failures so callers can fall back to
// offline output.
var errDaemonUnavailable = errors.New("daemon unavailable")

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("%w: socket %s not found; start it with `printlapse daemon`", errDaemonUnavailable, socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: socket %s refused the connection; verify the daemon is running", errDaemonUnavailable, socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
