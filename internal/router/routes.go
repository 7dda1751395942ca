package router

// Route is one entry of a route table. Child paths are relative to the parent.
// Path parameters use the ":name" form.
type Route struct {
	Path     string
	Name     string
	Title    string
	Redirect string
	// Public routes are reachable without a session.
	Public   bool
	Children []Route
}

// AdminRoutes is the operator console table.
func AdminRoutes() []Route {
	return []Route{
		{Path: "/login", Name: "login", Title: "Login", Public: true},
		{
			Path: "/",
			Children: []Route{
				{Path: "", Redirect: "/dashboard"},
				{Path: "dashboard", Name: "dashboard", Title: "Dashboard"},
				{Path: "product/channels", Name: "channels", Title: "Channels"},
				{Path: "product/companies", Name: "companies", Title: "Insurance companies"},
				{Path: "product/config", Name: "product-config", Title: "Product configuration"},
				{Path: "underwriting/rules", Name: "underwriting-rules", Title: "Underwriting rules"},
				{Path: "underwriting/rules/:id/detail", Name: "underwriting-rule-detail", Title: "Rule detail"},
				{Path: "underwriting/rules/:id/edit", Name: "underwriting-rule-edit", Title: "Edit rule"},
				{Path: "underwriting/ai-parameter", Name: "underwriting-ai-parameter", Title: "AI parameters"},
				{Path: "underwriting/ai-parameter/create", Name: "underwriting-ai-parameter-create", Title: "New AI parameter"},
				{Path: "underwriting/ai-parameter/:id", Name: "underwriting-ai-parameter-detail", Title: "AI parameter detail"},
				{Path: "underwriting/ai-parameter/:id/edit", Name: "underwriting-ai-parameter-edit", Title: "Edit AI parameter"},
			},
		},
	}
}

// MobileRoutes is the applicant questionnaire table. The questionnaire itself
// is public; orders need a session.
func MobileRoutes() []Route {
	return []Route{
		{Path: "/", Name: "home", Title: "Products", Public: true},
		{Path: "/login", Name: "login", Title: "Login", Public: true},
		{
			Path: "/underwriting/:productId",
			Children: []Route{
				{Path: "", Name: "diseases", Title: "Health conditions", Public: true},
				{Path: "questions", Name: "questions", Title: "Health questions", Public: true},
				{Path: "user-info", Name: "user-info", Title: "Applicant", Public: true},
				{Path: "result", Name: "result", Title: "Underwriting result", Public: true},
			},
		},
		{Path: "/orders/:orderId", Name: "order", Title: "Order"},
	}
}
