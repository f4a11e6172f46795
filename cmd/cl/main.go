package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/migrate"
	"caseline/internal/repo"
	"caseline/internal/report"
	"caseline/internal/server"
	"caseline/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "cl",
	Short: "Caseline CLI",
	Long: `Caseline tracks disciplinary cases through configurable workflows.
Core concepts:
- Workspace: your .caseline directory with the database; caseline.yml beside it declares case types and stages.
- Case: one disciplinary proceeding with its number, committee, subject, and deadline.
- Stages: each case type walks an ordered stage list; advancing appends a progress entry.
- Documents: PDF sources attached to entries, merged into the consolidated report.
- Report: cover page plus every attached PDF, folio-stamped page by page.
- Agenda: free-standing reminders with optional due dates.
- Event log: diary of changes, view with 'cl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initCLIConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initCLIConfig() {
	viper.SetEnvPrefix("CASELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(caseCmd())
	rootCmd.AddCommand(agendaCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default caseline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
}

func caseCmd() *cobra.Command {
	c := &cobra.Command{Use: "case", Short: "Manage cases"}
	c.AddCommand(caseCreateCmd())
	c.AddCommand(caseListCmd())
	c.AddCommand(caseShowCmd())
	c.AddCommand(caseAdvanceCmd())
	c.AddCommand(caseEditCmd())
	c.AddCommand(caseDeleteCmd())
	return c
}

func caseCreateCmd() *cobra.Command {
	var number, caseType, summary, ordinance, openedAt string
	var subjectName, subjectRole, subjectRegistration string
	var committee []string
	var deadlineDays int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a case at its type's first stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if number == "" || caseType == "" || summary == "" {
				return fmt.Errorf("--number, --type and --summary required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.CaseCreateOptions{
					CaseNumber:          number,
					CaseType:            caseType,
					Summary:             summary,
					Ordinance:           ordinance,
					Committee:           parseCommittee(committee),
					SubjectName:         subjectName,
					SubjectRole:         subjectRole,
					SubjectRegistration: subjectRegistration,
					OpenedAt:            openedAt,
					ActorID:             viper.GetString("actor-id"),
				}
				opts.SubjectIdentified = subjectName != ""
				if deadlineDays > 0 {
					opts.InitialDeadlineDays = &deadlineDays
				}
				c, err := e.CreateCase(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&number, "number", "", "case number (unique)")
	cmd.Flags().StringVar(&caseType, "type", "", "case type")
	cmd.Flags().StringVar(&summary, "summary", "", "summary of the facts")
	cmd.Flags().StringVar(&ordinance, "ordinance", "", "instauration ordinance")
	cmd.Flags().StringArrayVar(&committee, "committee", nil, "committee member as name:role, repeatable")
	cmd.Flags().StringVar(&subjectName, "subject-name", "", "subject name")
	cmd.Flags().StringVar(&subjectRole, "subject-role", "", "subject role")
	cmd.Flags().StringVar(&subjectRegistration, "subject-registration", "", "subject registration")
	cmd.Flags().StringVar(&openedAt, "opened-at", "", "opening timestamp (RFC3339, defaults to now)")
	cmd.Flags().IntVar(&deadlineDays, "deadline-days", 0, "initial deadline in days")
	return cmd
}

func caseListCmd() *cobra.Command {
	var f repo.CaseFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cases, err := e.ListCases(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cases)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Number", "Type", "Stage", "Opened"})
				for _, c := range cases {
					tw.AppendRow(table.Row{c.ID, c.CaseNumber, c.CaseType, c.CurrentStage, c.OpenedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.CaseType, "type", "", "case type filter")
	cmd.Flags().StringVar(&f.Stage, "stage", "", "stage filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func caseShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show case detail with full history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.GetCaseDetail(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	return cmd
}

func caseAdvanceCmd() *cobra.Command {
	var stage, note, occurredAt string
	var files []string
	cmd := &cobra.Command{
		Use:   "advance <case-id>",
		Short: "Advance case to another stage, attaching PDFs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stage == "" {
				return fmt.Errorf("--stage required")
			}
			var attachments []engine.Attachment
			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				attachments = append(attachments, engine.Attachment{
					Name:    filepath.Base(path),
					Content: data,
				})
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, warnings, err := e.AdvanceStage(ctx, engine.AdvanceOptions{
					CaseID:      args[0],
					Stage:       stage,
					Note:        note,
					OccurredAt:  occurredAt,
					Attachments: attachments,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				for _, w := range warnings {
					fmt.Fprintln(os.Stderr, "warning:", w)
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "target stage name")
	cmd.Flags().StringVar(&note, "note", "", "entry note")
	cmd.Flags().StringVar(&occurredAt, "occurred-at", "", "entry timestamp (RFC3339, defaults to now)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "PDF file to attach, repeatable")
	return cmd
}

func caseEditCmd() *cobra.Command {
	var number, summary, ordinance, openedAt string
	var subjectName, subjectRole, subjectRegistration string
	var committee []string
	var deadlineDays, extensionDays int
	var clearDeadline bool
	cmd := &cobra.Command{
		Use:   "edit <case-id>",
		Short: "Edit case fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.CaseUpdateOptions{
					ClearDeadline: clearDeadline,
					ActorID:       viper.GetString("actor-id"),
				}
				flags := cmd.Flags()
				if flags.Changed("number") {
					opts.CaseNumber = &number
				}
				if flags.Changed("summary") {
					opts.Summary = &summary
				}
				if flags.Changed("ordinance") {
					opts.Ordinance = &ordinance
				}
				if flags.Changed("opened-at") {
					opts.OpenedAt = &openedAt
				}
				if flags.Changed("committee") {
					members := parseCommittee(committee)
					opts.Committee = &members
				}
				if flags.Changed("subject-name") {
					identified := subjectName != ""
					opts.SubjectIdentified = &identified
					opts.SubjectName = &subjectName
				}
				if flags.Changed("subject-role") {
					opts.SubjectRole = &subjectRole
				}
				if flags.Changed("subject-registration") {
					opts.SubjectRegistration = &subjectRegistration
				}
				if flags.Changed("deadline-days") {
					opts.InitialDeadlineDays = &deadlineDays
				}
				if flags.Changed("extension-days") {
					opts.ExtensionDays = &extensionDays
				}
				c, err := e.UpdateCase(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&number, "number", "", "case number")
	cmd.Flags().StringVar(&summary, "summary", "", "summary of the facts")
	cmd.Flags().StringVar(&ordinance, "ordinance", "", "instauration ordinance")
	cmd.Flags().StringArrayVar(&committee, "committee", nil, "committee member as name:role, repeatable")
	cmd.Flags().StringVar(&subjectName, "subject-name", "", "subject name")
	cmd.Flags().StringVar(&subjectRole, "subject-role", "", "subject role")
	cmd.Flags().StringVar(&subjectRegistration, "subject-registration", "", "subject registration")
	cmd.Flags().StringVar(&openedAt, "opened-at", "", "opening timestamp (RFC3339)")
	cmd.Flags().IntVar(&deadlineDays, "deadline-days", 0, "initial deadline in days")
	cmd.Flags().BoolVar(&clearDeadline, "clear-deadline", false, "remove the deadline")
	cmd.Flags().IntVar(&extensionDays, "extension-days", 0, "deadline extension in days")
	return cmd
}

func caseDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <case-id>",
		Short: "Delete case and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteCase(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

func agendaCmd() *cobra.Command {
	a := &cobra.Command{Use: "agenda", Short: "Agenda reminders"}
	a.AddCommand(agendaAddCmd())
	a.AddCommand(agendaListCmd())
	a.AddCommand(agendaToggleCmd())
	a.AddCommand(agendaDeleteCmd())
	return a
}

func agendaAddCmd() *cobra.Command {
	var due string
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Add agenda task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var duePtr *string
				if due != "" {
					duePtr = &due
				}
				t, err := e.CreateAgendaTask(ctx, args[0], duePtr, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	return cmd
}

func agendaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agenda tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAgendaTasks(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Description", "Due", "Done"})
				for _, t := range items {
					due := ""
					if t.DueDate != nil {
						due = *t.DueDate
					}
					tw.AppendRow(table.Row{t.ID, t.Description, due, t.Done})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func agendaToggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Toggle agenda task done flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ToggleAgendaTask(ctx, id, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func agendaDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <task-id>",
		Short: "Delete agenda task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteAgendaTask(ctx, id, viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("deleted", id)
				return nil
			})
		},
	}
	return cmd
}

func reportCmd() *cobra.Command {
	r := &cobra.Command{Use: "report", Short: "Consolidated reports"}
	r.AddCommand(reportGenerateCmd())
	r.AddCommand(reportListCmd())
	return r
}

func reportGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <case-id>",
		Short: "Generate the consolidated report for a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a appContext) error {
				// Unlike the API this runs in the foreground; the command
				// exits when the report is on disk.
				pipeline := &report.Pipeline{
					Repo:    a.Engine.Repo,
					Uploads: a.Uploads,
					Reports: a.Reports,
				}
				return pipeline.Run(ctx, args[0])
			})
		},
	}
	return cmd
}

func reportListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List generated reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a appContext) error {
				items, err := a.Reports.List()
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Filename", "Size", "Modified"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.Filename, r.SizeBytes, r.ModifiedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Dashboard: case counts and deadline warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Dashboard(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Cases: %d total, %d active\n", s.TotalCases, s.ActiveCases)
				fmt.Printf("Expiring within warning window: %d\n", s.ExpiringSoon)
				fmt.Println("By stage:")
				for stage, n := range s.ByStage {
					fmt.Printf("  %s: %d\n", stage, n)
				}
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func authCmd() *cobra.Command {
	a := &cobra.Command{Use: "auth", Short: "API key management"}
	a.AddCommand(authKeyCreateCmd())
	a.AddCommand(authKeyListCmd())
	a.AddCommand(authKeyDeleteCmd())
	return a
}

func authKeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create-key",
		Short: "Create API key for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				secret := uuid.NewString()
				key := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   viper.GetString("actor-id"),
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				// The secret is shown once and never stored.
				return printJSON(map[string]string{"id": key.ID, "api_key": secret})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func authKeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-keys",
		Short: "List API keys for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
}

func authKeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm-key <key-id>",
		Short: "Delete API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Repo.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a appContext) error {
				authCfg := server.AuthConfig{
					JWTSecret:              os.Getenv("CASELINE_JWT_SECRET"),
					AllowLegacyActorHeader: allowLegacy,
				}
				if authCfg.JWTSecret == "" && !allowLegacy {
					return fmt.Errorf("CASELINE_JWT_SECRET is required for bearer auth")
				}
				dispatcher := report.NewDispatcher(&report.Pipeline{
					Repo:    a.Engine.Repo,
					Uploads: a.Uploads,
					Reports: a.Reports,
				}, nil)
				handler, err := server.New(server.Config{
					Engine:     a.Engine,
					Dispatcher: dispatcher,
					Reports:    a.Reports,
					Uploads:    a.Uploads,
					BasePath:   basePath,
					Auth:       authCfg,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Caseline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				dispatcher.Wait()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor-header", false, "accept unauthenticated X-Actor-Id")
	return cmd
}

// appContext bundles everything a command may need beyond the engine.
type appContext struct {
	Engine  engine.Engine
	Config  *config.Config
	Uploads *storage.UploadStore
	Reports *storage.ReportStore
}

func withApp(ctx context.Context, fn func(context.Context, appContext) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	workflows, err := cfg.Workflows()
	if err != nil {
		return err
	}
	uploads, err := storage.NewUploadStore(storageDir(workspace, cfg.Storage.UploadDir))
	if err != nil {
		return err
	}
	reports, err := storage.NewReportStore(storageDir(workspace, cfg.Storage.ReportsDir))
	if err != nil {
		return err
	}
	a := appContext{
		Engine:  engine.New(conn, cfg, workflows, uploads),
		Config:  cfg,
		Uploads: uploads,
		Reports: reports,
	}
	return fn(ctx, a)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withApp(ctx, func(ctx context.Context, a appContext) error {
		return fn(ctx, a.Engine)
	})
}

func storageDir(workspace, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(workspace, dir)
}

func parseCommittee(members []string) []domain.CommitteeMember {
	var out []domain.CommitteeMember
	for _, m := range members {
		name, role, _ := strings.Cut(m, ":")
		out = append(out, domain.CommitteeMember{
			Name: strings.TrimSpace(name),
			Role: strings.TrimSpace(role),
		})
	}
	return out
}

func parseID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
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
