package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oscarka/underwritingsystem2/internal/questionnaire"
	"github.com/oscarka/underwritingsystem2/internal/router"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

func newRoutesCmd(app appFunc) *cobra.Command {
	var mobile bool
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs := router.AdminRoutes()
			if mobile {
				rs = router.MobileRoutes()
			}
			printRoutes(app().Out, "", rs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&mobile, "mobile", false, "Show the mobile questionnaire routes")
	return cmd
}

func printRoutes(w io.Writer, parent string, rs []router.Route) {
	for _, r := range rs {
		full := r.Path
		if parent != "" {
			full = strings.TrimRight(parent, "/") + "/" + r.Path
			full = strings.TrimRight(full, "/")
			if full == "" {
				full = "/"
			}
		}
		switch {
		case r.Redirect != "":
			fmt.Fprintf(w, "%-44s -> %s\n", full, r.Redirect)
		case r.Name != "":
			access := "auth"
			if r.Public {
				access = "public"
			}
			fmt.Fprintf(w, "%-44s %-20s %-7s %s\n", full, r.Name, access, r.Title)
		}
		printRoutes(w, full, r.Children)
	}
}

func newNavigateCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:     "navigate <path>",
		Short:   "Resolve a console path through the route guard",
		Example: "  uwctl navigate /underwriting/rules/3/edit",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			loc, err := a.Router.Navigate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "%s (%s)\n", loc.String(), loc.Title)
			for k, v := range loc.Params {
				fmt.Fprintf(a.Out, "  %s=%s\n", k, v)
			}
			return nil
		},
	}
}

func newEvaluateCmd(app appFunc) *cobra.Command {
	var (
		productID int64
		diseases  []int64
		search    string
		answers   []string
		applicant string
		order     bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the applicant questionnaire against a product",
		Example: "  uwctl evaluate --product 1 --disease 1 --answer 11=no --applicant me.yaml\n" +
			"  uwctl evaluate --product 1 --search asthma",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			flow := questionnaire.New(a.API.Underwriting, &a.Log)
			mobile, err := router.New(router.Config{
				Routes:   router.MobileRoutes(),
				Session:  a.Session,
				Home:     "/",
				Products: flow,
				Logger:   &a.Log,
				Context:  ctx,
			})
			if err != nil {
				return err
			}
			defer mobile.Close()

			loc, err := mobile.Navigate(ctx, fmt.Sprintf("/underwriting/%d", productID))
			if err != nil {
				return err
			}
			if loc.Name != "diseases" {
				return fmt.Errorf("product %d is not available", productID)
			}
			st := flow.State()
			fmt.Fprintf(a.Out, "product: %s (%s)\n", st.Product.Name, st.Product.Code)

			catalog, err := flow.LoadCatalog(ctx)
			if err != nil {
				return err
			}
			if search != "" {
				hits := flow.SearchDiseases(search)
				if len(hits) == 0 {
					return fmt.Errorf("no condition matches %q", search)
				}
				diseases = append(diseases, hits[0].ID)
			}
			if len(diseases) == 0 {
				fmt.Fprintln(a.Out, "conditions:")
				for _, d := range catalog {
					fmt.Fprintf(a.Out, "  %d  %-28s %s\n", d.ID, d.Name, d.Code)
				}
				return fmt.Errorf("select at least one condition with --disease or --search")
			}
			for _, id := range diseases {
				d, ok := findDisease(catalog, id)
				if !ok {
					return fmt.Errorf("condition %d is not offered by this product", id)
				}
				if err := flow.AddDisease(ctx, d); err != nil {
					return err
				}
			}
			if _, err := mobile.Navigate(ctx, loc.Path+"/questions"); err != nil {
				return err
			}
			qs := flow.State().Questions
			for _, raw := range answers {
				ans, err := parseAnswer(qs, raw)
				if err != nil {
					return err
				}
				flow.SetAnswer(ans)
			}
			if !flow.IsComplete() {
				printOpenQuestions(a.Out, flow.State())
				return questionnaire.ErrIncomplete
			}

			if applicant != "" {
				u, err := readApplicant(applicant)
				if err != nil {
					return err
				}
				flow.SetApplicant(u)
			}
			if _, err := mobile.Navigate(ctx, loc.Path+"/user-info"); err != nil {
				return err
			}
			if u := flow.State().Applicant; u.Complete() {
				if err := a.API.Underwriting.SaveUserInfo(ctx, u); err != nil {
					return err
				}
			}
			res, err := flow.Evaluate(ctx)
			if err != nil {
				return err
			}
			if _, err := mobile.Navigate(ctx, loc.Path+"/result"); err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(a.Out, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(a.Out, "decision: %s\n", res.Decision)
				if res.Conclusion != "" {
					fmt.Fprintf(a.Out, "conclusion: %s\n", res.Conclusion)
				}
				if !res.AdditionalFee.IsZero() {
					fmt.Fprintf(a.Out, "additional fee: %s\n", res.AdditionalFee.StringFixed(2))
				}
				if res.Reason != "" {
					fmt.Fprintf(a.Out, "reason: %s\n", res.Reason)
				}
			}
			if !order {
				return nil
			}
			o, err := flow.PlaceOrder(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "order %d created (%s)\n", o.ID, o.Status)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int64Var(&productID, "product", 0, "Product id")
	f.Int64SliceVar(&diseases, "disease", nil, "Condition id (repeatable)")
	f.StringVar(&search, "search", "", "Select the best match for this keyword")
	f.StringArrayVar(&answers, "answer", nil, "Answer questionId=value; multiple-choice values are comma separated")
	f.StringVar(&applicant, "applicant", "", "YAML or JSON file with the applicant profile")
	f.BoolVar(&order, "order", false, "Place an order when the application is not rejected")
	f.BoolVar(&asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func findDisease(ds []types.Disease, id int64) (types.Disease, bool) {
	for _, d := range ds {
		if d.ID == id {
			return d, true
		}
	}
	return types.Disease{}, false
}

func parseAnswer(qs []types.Question, raw string) (types.Answer, error) {
	k, v, ok := strings.Cut(raw, "=")
	if !ok {
		return types.Answer{}, fmt.Errorf("invalid --answer %q, expected questionId=value", raw)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
	if err != nil {
		return types.Answer{}, fmt.Errorf("invalid question id in %q", raw)
	}
	for _, q := range qs {
		if q.ID != id {
			continue
		}
		switch q.Type {
		case types.QuestionMultiple:
			return types.Answer{QuestionID: id, Value: strings.Split(v, ",")}, nil
		case types.QuestionNumber:
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return types.Answer{}, fmt.Errorf("question %d expects a number", id)
			}
			return types.Answer{QuestionID: id, Value: n}, nil
		}
		return types.Answer{QuestionID: id, Value: v}, nil
	}
	return types.Answer{}, fmt.Errorf("question %d is not part of this questionnaire", id)
}

func printOpenQuestions(w io.Writer, st questionnaire.State) {
	answered := map[int64]bool{}
	for _, a := range st.Answers {
		answered[a.QuestionID] = true
	}
	fmt.Fprintln(w, "unanswered questions:")
	for _, q := range st.Questions {
		if !q.Required || answered[q.ID] {
			continue
		}
		fmt.Fprintf(w, "  %d  [%s] %s\n", q.ID, q.Type, q.Content)
		for _, o := range q.Options {
			fmt.Fprintf(w, "       %s = %s\n", o.Value, o.Label)
		}
	}
}

// readApplicant accepts the JSON field names in either YAML or JSON.
func readApplicant(path string) (types.UserInfo, error) {
	var u types.UserInfo
	b, err := os.ReadFile(path)
	if err != nil {
		return u, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return u, fmt.Errorf("parse %s: %w", path, err)
	}
	js, err := json.Marshal(m)
	if err != nil {
		return u, err
	}
	if err := json.Unmarshal(js, &u); err != nil {
		return u, fmt.Errorf("parse %s: %w", path, err)
	}
	return u, nil
}
