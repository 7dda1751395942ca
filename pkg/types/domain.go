package types

// Status is the enabled/disabled switch shared by business entities.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// Ref is a lightweight reference to a related entity.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// User is the authenticated operator as returned by login.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	TenantID int64  `json:"tenant_id"`
}

// Channel is a sales channel.
type Channel struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name" validate:"required,max=64"`
	Code        string         `json:"code" validate:"required,max=32"`
	Description string         `json:"description,omitempty"`
	Status      Status         `json:"status" validate:"omitempty,oneof=enabled disabled"`
	Config      map[string]any `json:"config,omitempty"`
	CreateTime  string         `json:"createTime,omitempty"`
	UpdateTime  string         `json:"updateTime,omitempty"`
}

// Company is an insurance company.
type Company struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required,max=128"`
	Code        string `json:"code" validate:"required,max=32"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status" validate:"omitempty,oneof=enabled disabled"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// ProductType classifies products (critical illness, medical, ...).
type ProductType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// ProductAIParameter is the AI parameter embedded in a product payload.
type ProductAIParameter struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Rule *Ref   `json:"rule,omitempty"`
}

// Product is an insurance product wired to a channel, company and AI parameter.
type Product struct {
	ID               int64               `json:"id"`
	Name             string              `json:"name" validate:"required"`
	Code             string              `json:"code" validate:"required"`
	Channel          *Ref                `json:"channel,omitempty"`
	InsuranceCompany *Ref                `json:"insuranceCompany,omitempty"`
	ProductType      *Ref                `json:"productType,omitempty"`
	AIParameter      *ProductAIParameter `json:"aiParameter,omitempty"`
	Status           Status              `json:"status"`
	CreatedAt        string              `json:"createdAt,omitempty"`
	UpdatedAt        string              `json:"updatedAt,omitempty"`
}

// RuleStatus is the lifecycle status of an underwriting rule.
type RuleStatus string

const (
	RuleDraft    RuleStatus = "草稿"
	RuleEnabled  RuleStatus = "已启用"
	RuleDisabled RuleStatus = "已禁用"
	RuleDeleted  RuleStatus = "已删除"
	RuleImported RuleStatus = "已导入"
)

// Rule is an underwriting rule set header.
type Rule struct {
	ID          string     `json:"id"`
	Name        string     `json:"name" validate:"required"`
	Version     string     `json:"version"`
	Description string     `json:"description,omitempty"`
	Remark      string     `json:"remark,omitempty"`
	Status      RuleStatus `json:"status"`
	HasData     bool       `json:"has_data,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
	UpdatedAt   string     `json:"updated_at,omitempty"`
}

// AIParameterType groups AI parameters.
type AIParameterType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// AIParameter binds a rule to a product configuration.
type AIParameter struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required"`
	Code        string `json:"code,omitempty"`
	TypeID      int64  `json:"type_id,omitempty"`
	RuleID      int64  `json:"rule_id,omitempty"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status,omitempty"`
}

// DiseaseCategory groups diseases inside a rule.
type DiseaseCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Disease is a selectable health condition.
type Disease struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

// QuestionType is the input kind of a questionnaire question.
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionNumber   QuestionType = "number"
	QuestionText     QuestionType = "text"
)

// Option is a selectable answer of a choice question.
type Option struct {
	ID    int64  `json:"id"`
	Value string `json:"value"`
	Label string `json:"label"`
}

// Question is one questionnaire item, tied to a disease.
type Question struct {
	ID        int64        `json:"id"`
	DiseaseID int64        `json:"diseaseId"`
	Type      QuestionType `json:"type"`
	Content   string       `json:"content"`
	Required  bool         `json:"required"`
	Options   []Option     `json:"options,omitempty"`
}

// Answer is the applicant's answer. Value holds a string, a number or a list of strings.
type Answer struct {
	QuestionID int64 `json:"questionId"`
	Value      any   `json:"value"`
}

// UserInfo is the applicant profile collected by the mobile flow.
type UserInfo struct {
	Name         string `json:"name"`
	Age          int    `json:"age"`
	Gender       string `json:"gender"`
	Height       int    `json:"height"`
	Weight       int    `json:"weight"`
	PolicyNumber string `json:"policyNumber"`
	IDType       string `json:"idType"`
	IDNumber     string `json:"idNumber"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
}

// Complete reports whether every mandatory applicant field is filled.
func (u UserInfo) Complete() bool {
	return u.Name != "" && u.Age > 0 && u.Gender != "" && u.Height > 0 && u.Weight > 0 &&
		u.PolicyNumber != "" && u.IDType != "" && u.IDNumber != "" && u.Phone != ""
}

// Decision is the underwriting outcome.
type Decision string

const (
	DecisionAccept       Decision = "accept"
	DecisionReject       Decision = "reject"
	DecisionManualReview Decision = "manual_review"
)

// UnderwritingResult is returned by the evaluation endpoint.
type UnderwritingResult struct {
	Decision       Decision       `json:"decision"`
	Conclusion     string         `json:"conclusion,omitempty"`
	AdditionalFee  Amount         `json:"additionalFee"`
	SpecialNotice  string         `json:"specialNotice,omitempty"`
	InsuranceType  string         `json:"insuranceType,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	AdditionalInfo map[string]any `json:"additionalInfo,omitempty"`
}

// Order is a policy order created after a positive evaluation.
type Order struct {
	ID        int64    `json:"id"`
	ProductID int64    `json:"productId"`
	UserInfo  UserInfo `json:"userInfo"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"createdAt,omitempty"`
}
