// internal/discovery/scanner.go
package discovery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"aac-io/internal/config"
	"aac-io/internal/driver/aac"
	"aac-io/internal/protocol/serial"
)

var errEmptyIdentity = errors.New("empty identity")

// DiscoveredModule is a serial port that answered like an AAC module
type DiscoveredModule struct {
	Port     serial.PortInfo `json:"port"`
	Identity string          `json:"identity"`
	Version  string          `json:"version,omitempty"`
}

// Config for the scanner
type Config struct {
	// PortPatterns restricts the scan to matching port names, e.g. "/dev/ttyACM*".
	// Empty scans every port.
	PortPatterns []string `json:"port_patterns"`
}

// Scanner probes serial ports for AAC modules, one port at a time
type Scanner struct {
	config     *Config
	connConfig *config.Config
	logger     *zap.Logger

	listPorts   func() ([]serial.PortInfo, error)
	connOptions []aac.Option
}

// Option configures a Scanner
type Option func(*Scanner)

// WithPortLister replaces the platform port enumeration
func WithPortLister(list func() ([]serial.PortInfo, error)) Option {
	return func(s *Scanner) {
		s.listPorts = list
	}
}

// WithConnectionOptions is applied to every probe connection
func WithConnectionOptions(opts ...aac.Option) Option {
	return func(s *Scanner) {
		s.connOptions = append(s.connOptions, opts...)
	}
}

// NewScanner creates a new scanner. Probe connections use connConfig with
// tracing disabled.
func NewScanner(cfg *Config, connConfig *config.Config, logger *zap.Logger, opts ...Option) *Scanner {
	if cfg == nil {
		cfg = &Config{}
	}
	if connConfig == nil {
		connConfig = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	probeConfig := *connConfig
	probeConfig.Trace.Directory = ""

	s := &Scanner{
		config:     cfg,
		connConfig: &probeConfig,
		logger:     logger.With(zap.String("component", "discovery")),
		listPorts:  serial.ListPorts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan probes every candidate port and returns the ones with a module. A
// cancelled context stops the scan between ports.
func (s *Scanner) Scan(ctx context.Context) ([]*DiscoveredModule, error) {
	s.logger.Info("Starting serial port scan")

	ports, err := s.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	candidates := s.filterPorts(ports)
	if len(candidates) == 0 {
		s.logger.Info("No serial ports found")
		return []*DiscoveredModule{}, nil
	}

	var discovered []*DiscoveredModule
	for _, port := range candidates {
		select {
		case <-ctx.Done():
			return discovered, ctx.Err()
		default:
		}

		if module := s.probe(port); module != nil {
			discovered = append(discovered, module)
		}
	}

	s.logger.Info("Serial scan completed", zap.Int("modules_found", len(discovered)))
	return discovered, nil
}

func (s *Scanner) probe(port serial.PortInfo) *DiscoveredModule {
	logger := s.logger.With(zap.String("port", port.Name))
	conn := aac.New(s.connConfig, s.logger, s.connOptions...)

	var module *DiscoveredModule
	err := conn.Session(port.Name, func(c *aac.Connection) error {
		identity, err := c.WhoIs()
		if err != nil {
			return err
		}
		if identity == "" {
			return errEmptyIdentity
		}

		// The version is informative only, old firmware may not know VER?.
		version, err := c.GetVersion()
		if err != nil {
			logger.Debug("Version query failed", zap.Error(err))
		}

		module = &DiscoveredModule{Port: port, Identity: identity, Version: version}
		return nil
	})
	if err != nil {
		logger.Debug("Port did not answer as an AAC module", zap.Error(err))
		return nil
	}

	logger.Info("AAC module found", zap.String("identity", module.Identity))
	return module
}

func (s *Scanner) filterPorts(ports []serial.PortInfo) []serial.PortInfo {
	if len(s.config.PortPatterns) == 0 {
		return ports
	}

	var filtered []serial.PortInfo
	for _, p := range ports {
		for _, pattern := range s.config.PortPatterns {
			if ok, _ := filepath.Match(pattern, p.Name); ok || strings.EqualFold(pattern, p.Name) {
				filtered = append(filtered, p)
				break
			}
		}
	}
	return filtered
}
