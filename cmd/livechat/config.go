package main

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wplc/livechat/internal/config"
)

const masked = "********"

var (
	kvPasswordRe    = regexp.MustCompile(`(password=)\S+`)
	mysqlUserPassRe = regexp.MustCompile(`^([^:@/]+):[^@]*@`)
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Prints config.yaml merged with LIVECHAT_* environment variables and defaults.
Secrets are masked, so the output is safe to paste into bug reports.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

func printConfig(out io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(redactConfig(*cfg)); err != nil {
		return err
	}
	return enc.Close()
}

// redactConfig returns a copy of cfg with credentials masked.
func redactConfig(cfg config.Config) config.Config {
	cfg.Database.DSN = maskDSN(cfg.Database.DSN)
	cfg.Redis.Password = maskSecret(cfg.Redis.Password)
	cfg.RabbitMQ.URL = maskURL(cfg.RabbitMQ.URL)
	cfg.S3.AccessKey = maskSecret(cfg.S3.AccessKey)
	cfg.S3.SecretKey = maskSecret(cfg.S3.SecretKey)
	cfg.Relay.Secret = maskSecret(cfg.Relay.Secret)
	cfg.Root.SecretPepper = maskSecret(cfg.Root.SecretPepper)
	cfg.Root.BootstrapOperatorToken = maskSecret(cfg.Root.BootstrapOperatorToken)
	return cfg
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return masked
}

func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	return u.Redacted()
}

// maskDSN handles URL, key=value and mysql user:pass@ DSNs.
func maskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		return maskURL(dsn)
	}
	dsn = kvPasswordRe.ReplaceAllString(dsn, "${1}"+masked)
	return mysqlUserPassRe.ReplaceAllString(dsn, "${1}:"+masked+"@")
}
