package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	ddns "github.com/Travis-Britz/ddnsd"
)

// defaultWebResolvers answer over IPv4 only, since the endpoint manages A records.
var defaultWebResolvers = []string{
	"https://ipv4.icanhazip.com/",
	"https://checkip.amazonaws.com/",
	"https://api.ipify.org/",
}

type config struct {
	Endpoint     string        `yaml:"endpoint"`
	Hostname     string        `yaml:"hostname"`
	ZoneID       string        `yaml:"zone_id"`
	KeyFile      string        `yaml:"key_file"`
	Resolver     string        `yaml:"resolver"`
	WebResolvers []string      `yaml:"web_resolvers"`
	Interfaces   []string      `yaml:"interfaces"`
	DNSServer    string        `yaml:"dns_server"`
	IP           string        `yaml:"ip"`
	Interval     time.Duration `yaml:"interval"`
	Verbose      bool          `yaml:"verbose"`
}

// loadConfig parses args. Values from the -c YAML file are used unless the matching flag was set.
func loadConfig(args []string) (config, error) {
	fs := flag.NewFlagSet("ddnscf", flag.ContinueOnError)

	var (
		flags      config
		configFile string
		web        string
		ifaces     string
	)
	fs.StringVar(&configFile, "c", "", "Path to a YAML config file; flags override its values")
	fs.StringVar(&flags.Endpoint, "s", "", "Base URL of the update endpoint, e.g. https://ddns.example.com")
	fs.StringVar(&flags.Hostname, "d", "", "DNS entry to update")
	fs.StringVar(&flags.ZoneID, "z", "", "ID of the Cloudflare zone which is managing the DNS entry")
	fs.StringVar(&flags.KeyFile, "k", defaultKeyFile(), "Path to cloudflare API credentials file")
	fs.StringVar(&flags.Resolver, "r", "local", "How to find our IP: local, web or dns")
	fs.StringVar(&web, "web", "", "Comma separated IP lookup services used by -r web")
	fs.StringVar(&ifaces, "iface", "", "Comma separated interfaces used by -r local (default all)")
	fs.StringVar(&flags.DNSServer, "dns", "", "host:port of the DNS server used by -r dns (default OpenDNS)")
	fs.StringVar(&flags.IP, "ip", "", "IPv4 address to set instead of resolving one")
	fs.DurationVar(&flags.Interval, "i", 0, "Duration to wait between IP checks; 0 runs once")
	fs.BoolVar(&flags.Verbose, "v", false, "Enable verbose logging")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg := config{}
	if configFile != "" {
		var err error
		if cfg, err = readConfigFile(configFile); err != nil {
			return config{}, err
		}
	}
	if cfg.KeyFile == "" {
		cfg.KeyFile = flags.KeyFile
	}
	if cfg.Resolver == "" {
		cfg.Resolver = flags.Resolver
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "s":
			cfg.Endpoint = flags.Endpoint
		case "d":
			cfg.Hostname = flags.Hostname
		case "z":
			cfg.ZoneID = flags.ZoneID
		case "k":
			cfg.KeyFile = flags.KeyFile
		case "r":
			cfg.Resolver = flags.Resolver
		case "web":
			cfg.WebResolvers = splitList(web)
		case "iface":
			cfg.Interfaces = splitList(ifaces)
		case "dns":
			cfg.DNSServer = flags.DNSServer
		case "ip":
			cfg.IP = flags.IP
		case "i":
			cfg.Interval = flags.Interval
		case "v":
			cfg.Verbose = flags.Verbose
		}
	})

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func readConfigFile(path string) (config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

func (cfg config) validate() error {
	if cfg.Endpoint == "" {
		return errors.New("endpoint cannot be empty")
	}
	if cfg.Hostname == "" {
		return errors.New("domain cannot be empty")
	}
	if !strings.Contains(cfg.Hostname, ".") {
		return errors.New("domain must have at least one dot")
	}
	if cfg.ZoneID == "" {
		return errors.New("zone ID cannot be empty")
	}
	if cfg.Interval < 0 {
		return fmt.Errorf("interval must not be negative; got %s", cfg.Interval)
	}
	switch cfg.Resolver {
	case "local", "web", "dns":
	default:
		return fmt.Errorf("unknown resolver %q; expected local, web or dns", cfg.Resolver)
	}
	return nil
}

// resolver builds the Resolver selected by cfg. A fixed IP wins over any resolver.
func (cfg config) resolver() (ddns.Resolver, error) {
	if cfg.IP != "" {
		return ddns.FromString(cfg.IP)
	}
	switch cfg.Resolver {
	case "web":
		urls := cfg.WebResolvers
		if len(urls) == 0 {
			urls = defaultWebResolvers
		}
		return ddns.WebResolver(urls...), nil
	case "dns":
		return ddns.DNSResolver(cfg.DNSServer, ""), nil
	}
	return ddns.InterfaceResolver(cfg.Interfaces...), nil
}

func defaultKeyFile() string {
	return filepath.Join(os.Getenv("HOME"), ".cloudflare")
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
