package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oscarka/underwritingsystem2/internal/component"
	"github.com/oscarka/underwritingsystem2/internal/config"
	"github.com/oscarka/underwritingsystem2/internal/crud"
	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// pages maps each resource to the admin page that manages it. Commands
// navigate there first so the route guard and 401 redirects behave as in
// the browser.
var pages = map[string]string{
	"rules":         "/underwriting/rules",
	"ai-parameters": "/underwriting/ai-parameter",
	"channels":      "/product/channels",
	"companies":     "/product/companies",
	"products":      "/product/config",
}

var columns = map[string][]string{
	"rules":         {"id", "name", "version", "status", "has_data", "updated_at"},
	"ai-parameters": {"id", "code", "name", "type_id", "status"},
	"channels":      {"id", "code", "name", "status"},
	"companies":     {"id", "code", "name", "status"},
	"products":      {"id", "code", "name", "status"},
}

func resourceNames() []string {
	out := make([]string, 0, len(config.Prefixes))
	for k := range config.Prefixes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func resourceArg(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("resource required: %s", strings.Join(resourceNames(), "|"))
	}
	if _, ok := config.Prefixes[args[0]]; !ok {
		return fmt.Errorf("unknown resource %q (want %s)", args[0], strings.Join(resourceNames(), "|"))
	}
	return nil
}

// enter navigates to resource's page and fails when the guard sends the
// operator to the login page instead.
func (a *App) enter(ctx context.Context, resource string) error {
	loc, err := a.Router.Navigate(ctx, pages[resource])
	if err != nil {
		return err
	}
	if loc.Path == a.Cfg.API.LoginPath {
		return errNotLoggedIn
	}
	return nil
}

func (a *App) open(ctx context.Context, resource, dir string) (*crud.Coordinator, error) {
	if err := a.enter(ctx, resource); err != nil {
		return nil, err
	}
	return a.Coordinator(resource, dir)
}

func newListCmd(app appFunc) *cobra.Command {
	var (
		page     int
		pageSize int
		keyword  string
		status   string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:     "list <resource>",
		Short:   "List one page of a resource",
		Example: "  uwctl list channels --keyword bank\n  uwctl list rules --page 2",
		Args:    cobra.MatchAll(cobra.ExactArgs(1), resourceArg),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			if err := a.enter(ctx, args[0]); err != nil {
				return err
			}
			ep, err := a.Cfg.Endpoints(args[0])
			if err != nil {
				return err
			}
			table, err := component.NewTable(component.TableConfig{
				Bus: a.Bus, Client: a.API.Client, Endpoint: ep.List,
				PageSize: pageSize, Logger: &a.Log, Context: ctx,
			})
			if err != nil {
				return err
			}
			defer table.Destroy()

			var loadErr error
			failed := events.Listen(a.Bus, func(e events.TableLoadFailed) { loadErr = e.Err })
			defer failed.Unsubscribe()

			search := component.NewSearch(a.Bus, &a.Log)
			defer search.Destroy()
			search.Set("keyword", keyword)
			search.Set("status", status)
			if len(search.Values()) > 0 {
				search.Submit()
			}
			if page > 1 || len(search.Values()) == 0 {
				if err := table.SetPage(ctx, page); err != nil {
					return err
				}
			}
			if loadErr != nil {
				return loadErr
			}
			if asJSON {
				return writeJSON(a.Out, table.Rows())
			}
			if err := writeRecords(a.Out, columns[args[0]], table.Rows()); err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "page %d, %d total\n", table.Page(), table.Total())
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&pageSize, "page-size", component.DefaultPageSize, "Rows per page")
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "Search keyword")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rows as JSON")
	return cmd
}

func newGetCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Show one entity",
		Args:  cobra.MatchAll(cobra.ExactArgs(2), resourceArg),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			c, err := a.open(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer c.Close()
			rec, err := c.View(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return writeYAML(a.Out, rec)
		},
	}
}

// recordFlags collects a payload from --from and --set; --set wins.
type recordFlags struct {
	from string
	set  []string
}

func (f *recordFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.from, "from", "f", "", "YAML or JSON file with the entity fields")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "Field assignment key=value (repeatable)")
}

func (f *recordFlags) record() (types.Record, error) {
	rec := types.Record{}
	if f.from != "" {
		b, err := os.ReadFile(f.from)
		if err != nil {
			return nil, err
		}
		// YAML is a superset of JSON
		if err := yaml.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.from, err)
		}
	}
	kv, err := parseSet(f.set)
	if err != nil {
		return nil, err
	}
	for k, v := range kv {
		rec[k] = v
	}
	if len(rec) == 0 {
		return nil, errors.New("no fields given; use --from or --set")
	}
	return rec, nil
}

func newCreateCmd(app appFunc) *cobra.Command {
	var rf recordFlags
	cmd := &cobra.Command{
		Use:     "create <resource>",
		Short:   "Create an entity",
		Example: "  uwctl create channels --set name=Agency --set code=AGENCY",
		Args:    cobra.MatchAll(cobra.ExactArgs(1), resourceArg),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			rec, err := rf.record()
			if err != nil {
				return err
			}
			c, err := a.open(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer c.Close()
			if err := a.checkRecord(args[0], rec); err != nil {
				return err
			}
			c.Add()
			env, err := c.Submit(cmd.Context(), rec)
			if err != nil {
				return err
			}
			return printEnvelopeData(a, env)
		},
	}
	rf.bind(cmd)
	return cmd
}

func newUpdateCmd(app appFunc) *cobra.Command {
	var rf recordFlags
	cmd := &cobra.Command{
		Use:     "update <resource> <id>",
		Short:   "Update an entity; unspecified fields keep their value",
		Example: "  uwctl update companies 2 --set status=disabled",
		Args:    cobra.MatchAll(cobra.ExactArgs(2), resourceArg),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			patch, err := rf.record()
			if err != nil {
				return err
			}
			c, err := a.open(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer c.Close()
			cur, err := c.Edit(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			for k, v := range patch {
				cur[k] = v
			}
			if err := a.checkRecord(args[0], cur); err != nil {
				c.Cancel()
				return err
			}
			env, err := c.Submit(cmd.Context(), cur)
			if err != nil {
				return err
			}
			return printEnvelopeData(a, env)
		},
	}
	rf.bind(cmd)
	return cmd
}

func newDeleteCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <resource> <id>...",
		Short:   "Delete one entity, or several in one batch request",
		Example: "  uwctl delete channels 3\n  uwctl delete companies 4 5 6 --yes",
		Args:    cobra.MatchAll(cobra.MinimumNArgs(2), resourceArg),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			c, err := a.open(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer c.Close()
			if ids := args[1:]; len(ids) > 1 {
				return c.BatchDelete(cmd.Context(), ids)
			}
			return c.Delete(cmd.Context(), args[1])
		},
	}
}

func newImportCmd(app appFunc) *cobra.Command {
	var ruleID string
	cmd := &cobra.Command{
		Use:     "import <resource> <file.xlsx>",
		Short:   "Upload a workbook",
		Example: "  uwctl import companies companies.xlsx\n  uwctl import rules rules.xlsx --rule 1",
		Args:    cobra.MatchAll(cobra.ExactArgs(2), resourceArg),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			content, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			name := filepath.Base(args[1])
			var res types.ImportResult
			switch {
			case ruleID != "":
				if args[0] != "rules" {
					return errors.New("--rule only applies to the rules resource")
				}
				if err := a.enter(ctx, "rules"); err != nil {
					return err
				}
				res, err = a.API.Rules.Import(ctx, ruleID, name, content)
			default:
				var c *crud.Coordinator
				if c, err = a.open(ctx, args[0], ""); err != nil {
					return err
				}
				defer c.Close()
				res, err = c.Import(ctx, &events.Upload{Name: name, Content: content})
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "%s: %d rows, %d failed\n", res.Message, res.Total, res.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&ruleID, "rule", "", "Import into the data of this rule id")
	return cmd
}

func newExportCmd(app appFunc) *cobra.Command {
	var (
		dir     string
		keyword string
		status  string
		preview int
	)
	cmd := &cobra.Command{
		Use:     "export <resource>",
		Short:   "Download a workbook of the filtered list",
		Example: "  uwctl export channels --dir ./out --status enabled",
		Args:    cobra.MatchAll(cobra.ExactArgs(1), resourceArg),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			c, err := a.open(cmd.Context(), args[0], dir)
			if err != nil {
				return err
			}
			defer c.Close()
			search := component.NewSearch(a.Bus, &a.Log)
			defer search.Destroy()
			search.Set("keyword", keyword)
			search.Set("status", status)
			name, err := c.Export(cmd.Context(), search.Values())
			if err != nil {
				return err
			}
			path := filepath.Join(dir, name)
			fmt.Fprintln(a.Out, path)
			if preview > 0 {
				return previewWorkbook(a.Out, path, preview)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Output directory")
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "Search keyword")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&preview, "preview", 0, "Print the header and first N rows of the workbook")
	return cmd
}

func printEnvelopeData(a *App, env *types.Envelope) error {
	if env == nil || len(env.Data) == 0 {
		return nil
	}
	var rec types.Record
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		fmt.Fprintln(a.Out, string(env.Data))
		return nil
	}
	return writeYAML(a.Out, rec)
}

// scalar keeps numbers and booleans typed; "007" stays a string.
func scalar(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil && strconv.FormatInt(n, 10) == v {
		return n
	}
	if v == "" || strings.IndexByte("-0123456789", v[0]) < 0 ||
		(strings.HasPrefix(v, "0") && !strings.HasPrefix(v, "0.")) {
		return v
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
