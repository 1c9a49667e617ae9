package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"madspark/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect configured LLM providers",
}

var providersCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Health-check every configured provider",
	RunE:  checkProviders,
}

func init() {
	providersCmd.AddCommand(providersCheckCmd)
}

func checkProviders(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if cfg.MockMode() {
		fmt.Println("mock mode: deterministic provider, always healthy")
		return nil
	}

	local := provider.NewLocalProvider(cfg.LocalHost, cfg.LocalModel, cfg.LocalTimeout)
	report("local", local, local.HealthCheck(ctx))

	if cfg.CloudAPIKey == "" {
		fmt.Println("cloud:  not configured (CLOUD_API_KEY unset)")
		return nil
	}
	cloud, err := provider.NewCloudProvider(ctx, cfg.CloudAPIKey, cfg.CloudModel)
	if err != nil {
		fmt.Printf("cloud:  UNAVAILABLE (%v)\n", err)
		return nil
	}
	report("cloud", cloud, cloud.HealthCheck(ctx))
	return nil
}

func report(name string, p provider.Provider, err error) {
	status := "OK"
	if err != nil {
		status = fmt.Sprintf("UNAVAILABLE (%v)", err)
	}
	multimodal := ""
	if p.SupportsMultimodal() {
		multimodal = ", multimodal"
	}
	fmt.Printf("%s:  %s (model %s%s)\n", name, status, p.Model(), multimodal)
}
