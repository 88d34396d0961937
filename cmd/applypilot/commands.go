package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/applypilot/applypilot/internal/answer"
	"github.com/applypilot/applypilot/internal/classify"
	"github.com/applypilot/applypilot/internal/config"
	"github.com/applypilot/applypilot/internal/index"
	"github.com/applypilot/applypilot/internal/jobinfo"
	"github.com/applypilot/applypilot/internal/journal"
	"github.com/applypilot/applypilot/internal/profile"
	"github.com/applypilot/applypilot/internal/provider"
	"github.com/applypilot/applypilot/internal/storage"
)

// --- answer ---

var answerCmd = &cobra.Command{
	Use:   "answer <question>",
	Short: "Answer a single application question from the profile",
	Long: `Answer a single application question from the profile.

Examples:
  applypilot answer "What is your email address?"
  applypilot answer "Sind Sie rechtlich befugt, in Deutschland zu arbeiten?" --options "Ja,Nein"
  applypilot answer "Wie viele Jahre Erfahrung haben Sie mit Python?" --company ACME --job-title "Backend Engineer"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		optionsStr, _ := cmd.Flags().GetString("options")
		company, _ := cmd.Flags().GetString("company")
		jobTitle, _ := cmd.Flags().GetString("job-title")
		descFile, _ := cmd.Flags().GetString("job-description")
		remote, _ := cmd.Flags().GetBool("remote")

		var options []string
		if optionsStr != "" {
			options = strings.Split(optionsStr, ",")
			for i := range options {
				options[i] = strings.TrimSpace(options[i])
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		job, err := loadJobContext(company, jobTitle, descFile)
		if err != nil {
			return err
		}

		rt, err := buildRuntime(cmd.Context(), cfg, job, remote)
		if err != nil {
			return err
		}
		defer rt.close()

		ans := rt.engine.Answer(cmd.Context(), question, options)
		fmt.Println(ans)

		// Persist before the process exits instead of waiting out the
		// write-behind debounce.
		rt.journal.Flush(cmd.Context())
		return nil
	},
}

func init() {
	answerCmd.Flags().String("options", "", "comma-separated select options; the answer will be one of them")
	answerCmd.Flags().String("company", "", "company the application targets")
	answerCmd.Flags().String("job-title", "", "job title the application targets")
	answerCmd.Flags().String("job-description", "", "file with the job description (HTML or plain text)")
	answerCmd.Flags().Bool("remote", false, "use the hosted model instead of local Ollama")
}

// loadJobContext builds the posting context, reducing an HTML description
// file to visible text.
func loadJobContext(company, jobTitle, descFile string) (jobinfo.Context, error) {
	job := jobinfo.Context{Company: company, Title: jobTitle}
	if descFile == "" {
		return job, nil
	}
	data, err := os.ReadFile(descFile)
	if err != nil {
		return jobinfo.Context{}, fmt.Errorf("reading job description: %w", err)
	}
	return job.WithDescription(string(data)), nil
}

// runtime bundles the per-invocation answering stack.
type runtime struct {
	store   *storage.Store
	journal *journal.Journal
	engine  *answer.Engine
}

func (rt *runtime) close() {
	if err := rt.store.Close(); err != nil {
		printWarning("closing storage: %v", err)
	}
}

func buildRuntime(ctx context.Context, cfg config.Config, job jobinfo.Context, remote bool) (*runtime, error) {
	prof, err := profile.Load(cfg.Profile.Path)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	local := provider.NewLocalClient(cfg.Ollama.BaseURL)

	var chatter provider.Chatter = local
	chatModel := cfg.Ollama.ChatModel
	if remote {
		if cfg.Remote.APIKey == "" {
			store.Close()
			return nil, fmt.Errorf("remote model requested but no API key configured; %s", config.RemoteKeyHint())
		}
		chatter = provider.NewRemoteClient(cfg.Remote.APIKey, cfg.Remote.BaseURL)
		chatModel = cfg.Remote.Model
	}

	idx := index.New(local, cfg.Ollama.EmbedModel, store)
	if local.IsRunning(ctx) {
		report, err := idx.Ingest(ctx, prof, nil)
		if err != nil {
			printWarning("indexing profile: %v", err)
		} else if report.Failed > 0 {
			printWarning("indexed %d/%d profile entries", report.Indexed, report.Total)
		}
	} else {
		printWarning("Ollama is not running at %s; answering without retrieval", cfg.Ollama.BaseURL)
	}

	classifier := classify.New(local, cfg.Ollama.ClassifyModel)
	jnl := journal.New(store, job.Company, job.Title)
	eng := answer.New(prof, idx, chatter, chatModel, jnl, classifier)
	eng.SetJob(job)
	eng.SetTopK(cfg.Index.TopK)

	return &runtime{store: store, journal: jnl, engine: eng}, nil
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the profile embedding index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		prof, err := profile.Load(cfg.Profile.Path)
		if err != nil {
			return fmt.Errorf("loading profile: %w", err)
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		local := provider.NewLocalClient(cfg.Ollama.BaseURL)
		if !local.IsRunning(cmd.Context()) {
			return fmt.Errorf("Ollama is not running at %s", cfg.Ollama.BaseURL)
		}

		printStep("Indexing profile from %s...", cfg.Profile.Path)
		idx := index.New(local, cfg.Ollama.EmbedModel, store)
		report, err := idx.Ingest(cmd.Context(), prof, func(done, total int) {
			fmt.Printf("\r  %d/%d", done, total)
		})
		fmt.Println()
		if err != nil {
			return fmt.Errorf("indexing: %w", err)
		}

		printSuccess("Indexed %d/%d entries (%d failed)", report.Indexed, report.Total, report.Failed)
		if report.Spilled {
			printStatus("Spilled", "%d chunks to storage", report.Chunks)
		}
		return nil
	},
}

// --- conversations ---

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List persisted answers for one application",
	RunE: func(cmd *cobra.Command, args []string) error {
		company, _ := cmd.Flags().GetString("company")
		jobTitle, _ := cmd.Flags().GetString("job-title")
		if company == "" || jobTitle == "" {
			return fmt.Errorf("--company and --job-title are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/v1/conversations?company=%s&job_title=%s", company, jobTitle)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var convs []struct {
			QuestionID string `json:"question_id"`
			Answer     string `json:"answer"`
			CreatedAt  string `json:"created_at"`
		}
		if err := decodeJSON(resp, &convs); err != nil {
			return err
		}

		if len(convs) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}
		for _, c := range convs {
			fmt.Printf("%s  %s\n", colorize(styleCyan, c.QuestionID), c.Answer)
		}
		return nil
	},
}

func init() {
	conversationsCmd.Flags().String("company", "", "company to filter by")
	conversationsCmd.Flags().String("job-title", "", "job title to filter by")
}

// --- flush ---

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Persist pending answers on the running server immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/flush", nil)
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Journal flushed")
		return nil
	},
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
			mark := ""
			if k.FromEnv {
				mark = colorize(styleYellow, " (from "+k.EnvVar+")")
			}
			fmt.Printf("  %s = %s%s\n", colorize(styleBold, k.Key), k.Value, mark)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
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

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value, restoring the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
