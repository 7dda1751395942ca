package mockapi

import "github.com/oscarka/underwritingsystem2/pkg/types"

func (s *Server) seed() {
	s.channels.insert(types.Record{"name": "Direct online", "code": "ONLINE", "description": "web and app sales"})
	s.channels.insert(types.Record{"name": "Bancassurance", "code": "BANK", "status": string(types.StatusDisabled)})

	s.companies.insert(types.Record{"name": "Sunrise Life", "code": "SUNLIFE"})
	s.companies.insert(types.Record{"name": "Harbor Mutual", "code": "HARBOR"})

	rule := s.rules.insert(types.Record{"name": "Standard health rules", "version": "1.0", "status": string(types.RuleEnabled)})
	param := s.aiParams.insert(types.Record{"name": "Default health underwriting", "code": "AI-HEALTH", "type_id": 1, "rule_id": rule["id"]})

	s.products.insert(types.Record{
		"name":             "Critical illness plus",
		"code":             "CI-PLUS",
		"channel":          types.Record{"id": 1, "name": "Direct online"},
		"insuranceCompany": types.Record{"id": 1, "name": "Sunrise Life"},
		"productType":      types.Record{"id": 1, "name": "Critical illness"},
		"aiParameter":      types.Record{"id": param["id"], "name": param["name"], "rule": types.Record{"id": 1, "name": rule["name"]}},
	})
	s.products.insert(types.Record{"name": "Hospital cash", "code": "HOSP-CASH"})

	s.catalog = catalog{
		diseases: []types.Disease{
			{ID: 1, Name: "Hypertension", Code: "I10", Category: "Cardiovascular"},
			{ID: 2, Name: "Type 2 diabetes", Code: "E11", Category: "Endocrine"},
			{ID: 3, Name: "Hyperthyroidism", Code: "E05", Category: "Endocrine"},
			{ID: 4, Name: "Asthma", Code: "J45", Category: "Respiratory"},
		},
		aiTypes: []types.AIParameterType{
			{ID: 1, Name: "Health", Code: "HEALTH"},
			{ID: 2, Name: "Occupation", Code: "OCCUPATION"},
		},
		prodTypes: []types.ProductType{
			{ID: 1, Name: "Critical illness", Code: "CI"},
			{ID: 2, Name: "Medical", Code: "MED"},
		},
	}
	for _, d := range s.catalog.diseases {
		s.catalog.questions = append(s.catalog.questions,
			types.Question{
				ID: d.ID*10 + 1, DiseaseID: d.ID, Type: types.QuestionSingle, Required: true,
				Content: "Was " + d.Name + " diagnosed within the last two years?",
				Options: []types.Option{{ID: 1, Value: "yes", Label: "Yes"}, {ID: 2, Value: "no", Label: "No"}},
			},
			types.Question{
				ID: d.ID*10 + 2, DiseaseID: d.ID, Type: types.QuestionText,
				Content: "Current treatment for " + d.Name,
			},
		)
	}
}
