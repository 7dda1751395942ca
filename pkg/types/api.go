package types

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	// example: admin
	Username string `json:"username" example:"admin"`
	// example: secret
	Password string `json:"password" example:"secret"`
}

// LoginResponse is the data of a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// PermissionResult is the data of GET /api/auth/permissions/check.
type PermissionResult struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

// StatusUpdate is the body of PATCH /business/channels/{id}/status.
type StatusUpdate struct {
	Status Status `json:"status"`
}

// BatchDeleteRequest is the body of batch delete endpoints.
type BatchDeleteRequest struct {
	IDs []string `json:"ids"`
}

// ImportResult is the body returned by import endpoints.
// Success is a pointer so callers can tell "false" from "absent"; envelope
// style responses carry Code instead.
type ImportResult struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
	Code    int    `json:"code,omitempty"`
	Total   int    `json:"total,omitempty"`
	Failed  int    `json:"failed,omitempty"`
}

// Succeeded interprets both the {success} and the {code} response styles.
func (r ImportResult) Succeeded() bool {
	if r.Success != nil {
		return *r.Success
	}
	return r.Code == CodeOK
}

// ImportRecord is one import batch.
type ImportRecord struct {
	BatchNo   string `json:"batch_no"`
	Type      string `json:"import_type"`
	FileName  string `json:"file_name"`
	Status    string `json:"status"`
	Total     int    `json:"total_count"`
	Success   int    `json:"success_count"`
	Failed    int    `json:"fail_count"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ImportDetail is one row outcome of an import batch.
type ImportDetail struct {
	Row     int    `json:"row_num"`
	Status  string `json:"status"`
	Message string `json:"error_msg,omitempty"`
}

// EvaluateRequest is the body of the underwriting evaluation endpoint.
type EvaluateRequest struct {
	ProductID int64    `json:"productId"`
	Diseases  []int64  `json:"diseases"`
	Answers   []Answer `json:"answers"`
	UserInfo  UserInfo `json:"userInfo"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	ProductID int64              `json:"productId"`
	UserInfo  UserInfo           `json:"userInfo"`
	Result    UnderwritingResult `json:"result"`
}
