package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/adcraft/internal/config"
	"github.com/kalambet/adcraft/internal/storage"
)

// --- campaign ---

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Generate an advertising campaign",
	Long: `Generate an advertising campaign from a prompt and brand pages.

Examples:
  adcraft campaign --prompt "Summer launch for our iced coffee" --url https://acme.com
  adcraft campaign --prompt "Holiday sale" --url https://acme.com --url https://acme.com/about --async`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		urls, _ := cmd.Flags().GetStringArray("url")
		async, _ := cmd.Flags().GetBool("async")

		if strings.TrimSpace(prompt) == "" {
			return fmt.Errorf("--prompt is required")
		}
		if urls == nil {
			urls = []string{}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"prompt": prompt, "brand_urls": urls}

		if async {
			resp, err := client.post(cmd.Context(), "/jobs/campaigns", req)
			if err != nil {
				return err
			}
			var result map[string]string
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			printSuccess("Queued job %s", result["id"])
			return nil
		}

		printStep("Generating campaign from %d brand page(s)...", len(urls))
		resp, err := client.post(cmd.Context(), "/campaigns", req)
		if err != nil {
			return err
		}
		var c storage.Campaign
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}
		printCampaign(os.Stdout, c)
		return nil
	},
}

func init() {
	campaignCmd.Flags().String("prompt", "", "description of the desired campaign")
	campaignCmd.Flags().StringArray("url", nil, "brand page URL (repeatable)")
	campaignCmd.Flags().Bool("async", false, "queue the campaign as a background job")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about a brand",
	Long: `Ask a question about a brand using its pages as context.

Examples:
  adcraft ask "What colors does the brand use?" --url https://acme.com
  adcraft ask "Who is the target audience?" --previous`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		urls, _ := cmd.Flags().GetStringArray("url")
		previous, _ := cmd.Flags().GetBool("previous")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/brands/answer", map[string]any{
			"questions":            []string{question},
			"brand_urls":           urls,
			"use_previous_context": previous,
		})
		if err != nil {
			return err
		}

		var result struct {
			Response string `json:"response"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Println(result.Response)
		return nil
	},
}

func init() {
	askCmd.Flags().StringArray("url", nil, "brand page URL (repeatable)")
	askCmd.Flags().Bool("previous", false, "reuse brand pages gathered by earlier questions")
}

// --- campaigns ---

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "Manage stored campaigns",
}

var campaignsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent campaigns",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/campaigns?limit=%d", limit))
		if err != nil {
			return err
		}

		var campaigns []storage.Campaign
		if err := decodeJSON(resp, &campaigns); err != nil {
			return err
		}

		if len(campaigns) == 0 {
			fmt.Println("No campaigns found.")
			return nil
		}
		for _, c := range campaigns {
			fmt.Println(campaignLine(c))
		}
		return nil
	},
}

var campaignsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/campaigns/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var c storage.Campaign
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		}
		printCampaign(os.Stdout, c)
		return nil
	},
}

var campaignsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/campaigns/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted campaign %s", args[0])
		return nil
	},
}

func init() {
	campaignsListCmd.Flags().Int("limit", 20, "maximum number of campaigns to list")
	campaignsShowCmd.Flags().Bool("json", false, "print the campaign as JSON")
	campaignsCmd.AddCommand(campaignsListCmd)
	campaignsCmd.AddCommand(campaignsShowCmd)
	campaignsCmd.AddCommand(campaignsDeleteCmd)
}

// --- jobs ---

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect background campaign jobs",
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the status of a campaign job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/jobs/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var job struct {
			ID         string `json:"id"`
			Status     string `json:"status"`
			CampaignID string `json:"campaign_id"`
			Error      string `json:"error"`
		}
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}

		printStatus("Job", "%s", job.ID)
		printStatus("Status", "%s", job.Status)
		if job.CampaignID != "" {
			printStatus("Campaign", "%s", job.CampaignID)
		}
		if job.Error != "" {
			printStatus("Error", "%s", job.Error)
		}
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(jobsShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
