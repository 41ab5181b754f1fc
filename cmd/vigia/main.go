package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vigia/internal/config"
	"vigia/internal/domain"
	"vigia/internal/engine"
	"vigia/internal/server"
	"vigia/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "vigia",
	Short: "Vigia CLI",
	Long: `Vigia monitors customer-service quality reviews as they move through
role-gated queues. State lives in the serving process: start 'vigia serve'
first, the other commands talk to it over HTTP as the selected actor
(--actor-id). Reviews carry an append-only transition and action ledger;
transition rules route them between General, Prioridad, Supervisión and
Gerencia.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("VIGIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "acting user id")
	rootCmd.PersistentFlags().String("addr", "127.0.0.1:8080", "API server address")
	rootCmd.PersistentFlags().String("base-path", "/v0", "API base path")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("base-path", rootCmd.PersistentFlags().Lookup("base-path"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(ruleCmd())
	rootCmd.AddCommand(calibrationCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- config ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage workspace config",
		Long:  "Config is the rulebook: seed users, SLA threshold, adherence weights and the default transition rules, read from vigia.yml in the workspace.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var projectID string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default vigia.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(projectID)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "id", "vigia", "project id")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if cfg == nil {
				fmt.Println("no vigia.yml in workspace; defaults apply")
				cfg = config.Default("vigia")
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				out := map[string]any{"ok": err == nil}
				if err != nil {
					out["error"] = err.Error()
				}
				return printJSON(out)
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

// --- users ---

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List selectable users",
		RunE: func(cmd *cobra.Command, args []string) error {
			var users []domain.User
			if err := apiGet("/users", &users); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(users)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name", "Role", "Team", "Center"})
			for _, u := range users {
				tw.AppendRow(table.Row{u.ID, u.Name, u.Role, u.Team, u.Center})
			}
			tw.Render()
			return nil
		},
	}
}

// --- reviews ---

func reviewCmd() *cobra.Command {
	rev := &cobra.Command{Use: "review", Short: "Manage quality reviews"}
	rev.AddCommand(reviewCreateCmd())
	rev.AddCommand(reviewListCmd())
	rev.AddCommand(reviewShowCmd())
	rev.AddCommand(reviewTagCmd())
	rev.AddCommand(reviewRequeueCmd())
	rev.AddCommand(reviewPrideCmd())
	rev.AddCommand(reviewCalibrateCmd())
	rev.AddCommand(reviewStatusCmd())
	rev.AddCommand(reviewCommentCmd())
	rev.AddCommand(reviewAuditCmd())
	rev.AddCommand(reviewEvaluateCmd())
	return rev
}

func reviewCreateCmd() *cobra.Command {
	var caseNumber, title, description, tag string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create review",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r domain.Review
			if err := apiPost("/reviews", map[string]any{
				"case_number":       caseNumber,
				"title":             title,
				"description":       description,
				"initial_tag_level": tag,
			}, &r); err != nil {
				return err
			}
			return printJSONOrTable(r)
		},
	}
	cmd.Flags().StringVar(&caseNumber, "case", "", "case number")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&tag, "tag", "", "initial overall tag level")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func reviewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reviews visible to the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var reviews []domain.Review
			if err := apiGet("/reviews", &reviews); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(reviews)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Case", "Title", "Queue", "Status", "Owner", "Tag"})
			for _, r := range reviews {
				level, _ := r.TagLevel()
				tw.AppendRow(table.Row{r.ID, r.CaseNumber, r.Title, r.Queue, r.Status, r.OwnerID, level})
			}
			tw.Render()
			return nil
		},
	}
}

func reviewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <review-id>",
		Short: "Show review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r domain.Review
			if err := apiGet("/reviews/"+args[0], &r); err != nil {
				return err
			}
			return printJSONOrTable(r)
		},
	}
	return cmd
}

func reviewTagCmd() *cobra.Command {
	var dimension, level string
	cmd := &cobra.Command{
		Use:   "tag <review-id>",
		Short: "Assign an evaluation tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r domain.Review
			if err := apiPost("/reviews/"+args[0]+"/tags", map[string]any{
				"dimension": dimension,
				"level":     level,
			}, &r); err != nil {
				return err
			}
			return printJSONOrTable(r)
		},
	}
	cmd.Flags().StringVar(&dimension, "dimension", string(domain.DimensionOverall), "evaluation dimension")
	cmd.Flags().StringVar(&level, "level", "", "tag level")
	_ = cmd.MarkFlagRequired("level")
	return cmd
}

func reviewRequeueCmd() *cobra.Command {
	var dest, reason string
	cmd := &cobra.Command{
		Use:   "requeue <review-id>",
		Short: "Move review to another queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r domain.Review
			if err := apiPost("/reviews/"+args[0]+"/requeue", map[string]any{
				"destination": dest,
				"reason":      reason,
			}, &r); err != nil {
				return err
			}
			return printJSONOrTable(r)
		},
	}
	cmd.Flags().StringVar(&dest, "to", "", "destination queue")
	cmd.Flags().StringVar(&reason, "reason", "", "reason")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func reviewPrideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pride <review-id>",
		Short: "Flag review as pride case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r domain.Review
			if err := apiPost("/reviews/"+args[0]+"/pride", nil, &r); err != nil {
				return err
			}
			return printJSONOrTable(r)
		},
	}
}

func reviewCalibrateCmd() *cobra.Command {
	var calType string
	cmd := &cobra.Command{
		Use:   "calibrate <review-id>",
		Short: "Flag review for a calibration track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r domain.Review
			if err := apiPost("/reviews/"+args[0]+"/calibration", map[string]any{
				"type": calType,
			}, &r); err != nil {
				return err
			}
			return printJSONOrTable(r)
		},
	}
	cmd.Flags().StringVar(&calType, "type", string(domain.CalibrationSupervisors), "calibration track")
	return cmd
}

func reviewStatusCmd() *cobra.Command {
	var status, reason string
	cmd := &cobra.Command{
		Use:   "status <review-id>",
		Short: "Advance review lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r domain.Review
			if err := apiPatch("/reviews/"+args[0]+"/status", map[string]any{
				"status": status,
				"reason": reason,
			}, &r); err != nil {
				return err
			}
			return printJSONOrTable(r)
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "new status")
	cmd.Flags().StringVar(&reason, "reason", "", "reason")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func reviewCommentCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "comment <review-id>",
		Short: "Comment on a review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r domain.Review
			if err := apiPost("/reviews/"+args[0]+"/comments", map[string]any{"text": text}, &r); err != nil {
				return err
			}
			return printJSONOrTable(r)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "comment text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func reviewAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <review-id>",
		Short: "Show the review's action ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []domain.AuditEntry
			if err := apiGet("/reviews/"+args[0]+"/audit", &entries); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(entries)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Timestamp", "Action", "Acting User"})
			for _, entry := range entries {
				tw.AppendRow(table.Row{entry.Timestamp.Format(time.RFC3339), entry.Action, entry.ActingUser})
			}
			tw.Render()
			return nil
		},
	}
}

func reviewEvaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <review-id>",
		Short: "Preview rule evaluation without applying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var eff json.RawMessage
			if err := apiGet("/reviews/"+args[0]+"/evaluate", &eff); err != nil {
				return err
			}
			if string(eff) == "null" {
				fmt.Println("no rule applies")
				return nil
			}
			return printJSONOrTable(eff)
		},
	}
}

// --- rules ---

func ruleCmd() *cobra.Command {
	rule := &cobra.Command{
		Use:   "rule",
		Short: "Manage transition rules",
		Long:  "Rules route reviews between queues in declaration order: first active match wins. Only the administrator can change them.",
	}
	rule.AddCommand(ruleListCmd())
	rule.AddCommand(ruleCreateCmd())
	rule.AddCommand(ruleToggleCmd())
	rule.AddCommand(ruleDeleteCmd())
	return rule
}

func ruleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []domain.TransitionRule
			if err := apiGet("/rules", &items); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name", "From", "To", "Active"})
			for _, r := range items {
				tw.AppendRow(table.Row{r.ID, r.Name, r.Conditions.SourceQueue, r.Action.DestinationQueue, r.Active})
			}
			tw.Render()
			return nil
		},
	}
}

func ruleCreateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create rule from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var rule domain.TransitionRule
			if err := json.Unmarshal(data, &rule); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			var created domain.TransitionRule
			if err := apiPost("/rules", rule, &created); err != nil {
				return err
			}
			return printJSONOrTable(created)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "rule definition file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func ruleToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <rule-id>",
		Short: "Flip a rule's active flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rule domain.TransitionRule
			if err := apiPost("/rules/"+args[0]+"/toggle", nil, &rule); err != nil {
				return err
			}
			return printJSONOrTable(rule)
		},
	}
}

func ruleDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiDo(http.MethodDelete, "/rules/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Println("deleted", args[0])
			return nil
		},
	}
}

// --- calibrations ---

func calibrationCmd() *cobra.Command {
	cal := &cobra.Command{Use: "calibration", Short: "Manage calibration sessions"}
	cal.AddCommand(calibrationCreateCmd())
	cal.AddCommand(calibrationListCmd())
	cal.AddCommand(calibrationShowCmd())
	cal.AddCommand(calibrationStatusCmd())
	cal.AddCommand(calibrationCommentCmd())
	cal.AddCommand(calibrationLinkCmd())
	cal.AddCommand(calibrationRequeueCmd())
	return cal
}

func calibrationCreateCmd() *cobra.Command {
	var calType, title, description string
	var participants, reviews []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a calibration session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var c domain.CalibrationRecord
			if err := apiPost("/calibrations", map[string]any{
				"type":            calType,
				"title":           title,
				"description":     description,
				"participant_ids": participants,
				"linked_reviews":  reviews,
			}, &c); err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	}
	cmd.Flags().StringVar(&calType, "type", string(domain.CalibrationSupervisors), "calibration track")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringSliceVar(&participants, "participant", nil, "participant user id (repeatable)")
	cmd.Flags().StringSliceVar(&reviews, "review", nil, "linked review id (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func calibrationListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List calibration sessions visible to the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []domain.CalibrationRecord
			if err := apiGet("/calibrations", &items); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Title", "Type", "Status", "Queue", "Reviews"})
			for _, c := range items {
				tw.AppendRow(table.Row{c.ID, c.Title, c.Type, c.Status, c.Queue, len(c.LinkedReviews)})
			}
			tw.Render()
			return nil
		},
	}
}

func calibrationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <calibration-id>",
		Short: "Show calibration session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c domain.CalibrationRecord
			if err := apiGet("/calibrations/"+args[0], &c); err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	}
}

func calibrationStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <calibration-id>",
		Short: "Advance calibration lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c domain.CalibrationRecord
			if err := apiPatch("/calibrations/"+args[0]+"/status", map[string]any{"status": status}, &c); err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "new status")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func calibrationCommentCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "comment <calibration-id>",
		Short: "Comment on a calibration session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c domain.CalibrationRecord
			if err := apiPost("/calibrations/"+args[0]+"/comments", map[string]any{"text": text}, &c); err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "comment text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func calibrationLinkCmd() *cobra.Command {
	var reviewID string
	cmd := &cobra.Command{
		Use:   "link <calibration-id>",
		Short: "Attach a review to the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c domain.CalibrationRecord
			if err := apiPost("/calibrations/"+args[0]+"/reviews", map[string]any{"review_id": reviewID}, &c); err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	}
	cmd.Flags().StringVar(&reviewID, "review", "", "review id")
	_ = cmd.MarkFlagRequired("review")
	return cmd
}

func calibrationRequeueCmd() *cobra.Command {
	var dest, reason string
	cmd := &cobra.Command{
		Use:   "requeue <calibration-id>",
		Short: "Move calibration session to another queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c domain.CalibrationRecord
			if err := apiPost("/calibrations/"+args[0]+"/requeue", map[string]any{
				"destination": dest,
				"reason":      reason,
			}, &c); err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	}
	cmd.Flags().StringVar(&dest, "to", "", "destination queue")
	cmd.Flags().StringVar(&reason, "reason", "", "reason")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// --- metrics ---

func metricsCmd() *cobra.Command {
	met := &cobra.Command{Use: "metrics", Short: "Quality metrics over the actor's slice"}
	met.AddCommand(&cobra.Command{
		Use:   "report",
		Short: "Role-scoped quality report",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rep json.RawMessage
			if err := apiGet("/metrics/report", &rep); err != nil {
				return err
			}
			return printJSONOrTable(rep)
		},
	})
	met.AddCommand(&cobra.Command{
		Use:   "queues",
		Short: "Queue load and wait statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats json.RawMessage
			if err := apiGet("/metrics/queues", &stats); err != nil {
				return err
			}
			return printJSONOrTable(stats)
		},
	})
	return met
}

// --- serve ---

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			slog.SetDefault(logger)
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default("vigia")
			}
			st := store.New()
			e := engine.New(st, cfg)
			if err := e.Seed(); err != nil {
				return err
			}
			basePath := viper.GetString("base-path")
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Logger: logger})
			if err != nil {
				return err
			}
			addr := viper.GetString("addr")
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Vigia API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	return cmd
}

// --- helpers ---

func apiGet(path string, out any) error {
	return apiDo(http.MethodGet, path, nil, out)
}

func apiPost(path string, body, out any) error {
	return apiDo(http.MethodPost, path, body, out)
}

func apiPatch(path string, body, out any) error {
	return apiDo(http.MethodPatch, path, body, out)
}

func apiDo(method, path string, body, out any) error {
	url := "http://" + viper.GetString("addr") + viper.GetString("base-path") + path
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if actor := viper.GetString("actor-id"); actor != "" {
		req.Header.Set("X-Actor-Id", actor)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s (is 'vigia serve' running?)", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode >= 400 {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
			return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
