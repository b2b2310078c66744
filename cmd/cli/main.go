package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	tenant  string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "railledger-cli",
		Short: "RailLedger CLI tool",
		Long:  `A command line interface for interacting with the RailLedger API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the RailLedger API")
	rootCmd.PersistentFlags().StringVar(&tenant, "tenant", "", "Tenant id sent as X-Tenant-ID")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	entriesCmd := &cobra.Command{
		Use:   "entries",
		Short: "Ledger entry lookups",
	}

	entriesCmd.AddCommand(&cobra.Command{
		Use:   "link <payment-link-id>",
		Short: "List entries for a payment link",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			get("/api/v1/payment-links/" + url.PathEscape(args[0]) + "/entries")
		},
	})

	entriesCmd.AddCommand(&cobra.Command{
		Use:   "key <idempotency-key>",
		Short: "List entries by idempotency key or key prefix",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			get("/api/v1/entries?key=" + url.QueryEscape(args[0]))
		},
	})

	snapshotsCmd := &cobra.Command{
		Use:   "snapshots <payment-link-id>",
		Short: "List FX snapshots for a payment link",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			get("/api/v1/payment-links/" + url.PathEscape(args[0]) + "/snapshots")
		},
	}

	var varianceToken string
	varianceCmd := &cobra.Command{
		Use:   "variance <payment-link-id>",
		Short: "Show creation-to-settlement rate variance for a payment link",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			get("/api/v1/payment-links/" + url.PathEscape(args[0]) + "/variance?token=" + url.QueryEscape(varianceToken))
		},
	}
	varianceCmd.Flags().StringVar(&varianceToken, "token", "", "Token type (XRP, RLUSD, USDC, USDT)")

	rateCmd := &cobra.Command{
		Use:   "rate <base> <quote>",
		Short: "Resolve an exchange rate",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			get("/api/v1/rates/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1]))
		},
	}

	var provisionRail string
	provisionCmd := &cobra.Command{
		Use:   "provision <tenant-id>",
		Short: "Provision the chart of accounts for a rail",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			post("/api/v1/tenants/" + url.PathEscape(args[0]) + "/provision?rail=" + url.QueryEscape(provisionRail))
		},
	}
	provisionCmd.Flags().StringVar(&provisionRail, "rail", "card", "Rail to provision (card, token, bank)")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check service readiness",
		Run: func(cmd *cobra.Command, args []string) {
			get("/readyz")
		},
	}

	rootCmd.AddCommand(entriesCmd, snapshotsCmd, varianceCmd, rateCmd, provisionCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func get(path string) {
	do(http.MethodGet, path)
}

func post(path string) {
	do(http.MethodPost, path)
}

func do(method, path string) {
	req, err := http.NewRequest(method, baseURL+path, nil)
	if err != nil {
		fmt.Printf("Error building request: %v\n", err)
		os.Exit(1)
	}
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error reading response: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(formatResponse(resp.StatusCode, body))
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

// formatResponse pretty-prints JSON bodies and passes everything else
// through unchanged.
func formatResponse(status int, body []byte) string {
	var pretty any
	if err := json.Unmarshal(body, &pretty); err == nil {
		if out, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			return fmt.Sprintf("HTTP %d\n%s", status, out)
		}
	}
	return fmt.Sprintf("HTTP %d\n%s", status, body)
}
