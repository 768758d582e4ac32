package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"golang.org/x/term"

	ddns "github.com/Travis-Britz/ddnsd"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	logger.V(1).Info("config is valid", "endpoint", cfg.Endpoint, "hostname", cfg.Hostname, "resolver", cfg.Resolver)

	if err := ensureKeyFile(cfg.KeyFile, logger); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	key, err := readKey(cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("error reading key: %w", err)
	}
	logger.V(1).Info("successfully read key from key file")

	resolver, err := cfg.resolver()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	client, err := ddns.NewClient(cfg.Endpoint, cfg.Hostname, cfg.ZoneID, key,
		ddns.UsingResolver(resolver),
		ddns.WithClientLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("error creating ddns.Client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Interval == 0 {
		rep, err := client.RunDDNS(ctx)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		fmt.Printf("%s: %s (%s)\n", cfg.Hostname, rep.Message, rep.IP)
		return nil
	}

	ddns.RunDaemon(client, ctx, cfg.Interval, logger)
	<-ctx.Done()
	return nil
}

// newLogger logs only errors unless verbose is set.
func newLogger(verbose bool) (logr.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	if verbose {
		zc = zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zl, err := zc.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("error building logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// ensureKeyFile runs the interactive setup when path does not exist yet,
// then checks the file's permissions.
func ensureKeyFile(path string, logger logr.Logger) error {
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("key file does not exist", "path", path)
		if err := runSetup(path, logger); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	return verifyPermissions(path)
}

func runSetup(path string, logger logr.Logger) error {
	logger.V(1).Info("running setup")
	fmt.Fprintf(os.Stderr, "Enter Cloudflare API Token: \n")
	bytekey, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("runSetup: error reading from stdin: %w", err)
	}
	key := string(bytekey)

	api, err := cloudflare.NewWithAPIToken(key)
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.V(1).Info("verifying token")
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got \"%s\"", result.Status)
	}
	logger.V(1).Info("token verified successfully")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, key); err != nil {
		return fmt.Errorf("unable to write \"%s\": %w", path, err)
	}
	logger.Info("token written", "path", path)
	return nil
}

func readKey(path string) (key string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	keyb, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	if len(keyb) == 0 {
		return "", fmt.Errorf("key file \"%s\" is empty", path)
	}
	return string(keyb), nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking keyfile permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// 0400 for read-only mounts
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}
	return nil
}
