package factory

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"chefmate/internal/config"
	"chefmate/internal/provider"
	openaiProvider "chefmate/internal/provider/openai"
)

const (
	defaultHTTPTimeout     = 60 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// RegisterConfiguredProviders constructs providers from configuration, stores
// them in the registry and selects the default provider.
func RegisterConfiguredProviders(cfg config.Config, registry *provider.Registry) error {
	if registry == nil {
		return errors.New("registry must not be nil")
	}

	for _, name := range []string{config.ProviderGoogle, config.ProviderGroq} {
		providerCfg := cfg.Providers.ByName()[name]
		if strings.TrimSpace(providerCfg.APIKey) == "" {
			slog.Warn("provider has no api key; requests will be rejected upstream", "provider", name)
		}

		p, err := openaiProvider.New(name, providerCfg, NewHTTPClient(defaultHTTPTimeout))
		if err != nil {
			return fmt.Errorf("initialise %s provider: %w", name, err)
		}
		if err := registry.RegisterProvider(p, p.Models()); err != nil {
			return fmt.Errorf("register %s provider: %w", name, err)
		}
	}

	if err := registry.SetDefault(cfg.Providers.Default); err != nil {
		return fmt.Errorf("select default provider: %w", err)
	}
	return nil
}

// NewHTTPClient returns a client with a tuned transport for outbound calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
