package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"reelforge/internal/apiclient"
	"reelforge/internal/config"
	"reelforge/internal/queue"
	"reelforge/internal/queueaccess"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// apiClient builds a client for the daemon API. The --api flag wins over the
// configured bind address. Returns nil when no address can be resolved.
func (c *commandContext) apiClient() *apiclient.Client {
	var address, token string
	if c.apiFlag != nil {
		address = strings.TrimSpace(*c.apiFlag)
	}
	if cfg := c.configValue(); cfg != nil {
		if address == "" {
			address = strings.TrimSpace(cfg.Paths.APIBind)
		}
		token = cfg.Paths.APIToken
	}
	if address == "" {
		return nil
	}
	return apiclient.New(address, token)
}

// requireClient returns a client or an error explaining how to get one.
func (c *commandContext) requireClient() (*apiclient.Client, error) {
	client := c.apiClient()
	if client == nil {
		return nil, errors.New("daemon API address is not configured; set paths.api_bind or pass --api")
	}
	return client, nil
}

// withQueue opens queue access through the daemon when it is reachable,
// otherwise through the store directly for read-only operations.
func (c *commandContext) withQueue(cmd *cobra.Command, fn func(access queueaccess.Access, viaDaemon bool) error) error {
	session, err := queueaccess.OpenWithFallback(cmd.Context(), c.apiClient(), c.storeOpener())
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session.Access, session.ViaDaemon)
}

func (c *commandContext) storeOpener() func() (*queue.Store, error) {
	return func() (*queue.Store, error) {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		return queue.Open(cfg)
	}
}

// wrapAPIError attaches a start hint to connection failures so users are not
// left staring at a bare dial error.
func wrapAPIError(err error, address string) error {
	if err == nil {
		return nil
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		switch {
		case errors.Is(err, syscall.ECONNREFUSED):
			return fmt.Errorf("daemon API at %s refused the connection; start it with 'reelforge daemon'", address)
		default:
			var opErr *net.OpError
			if errors.As(err, &opErr) {
				return fmt.Errorf("daemon API at %s is unreachable (%v); start it with 'reelforge daemon'", address, opErr.Err)
			}
		}
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
