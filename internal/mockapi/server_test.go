package mockapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

func newMux(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	s, err := New(Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s, s.Mux()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) types.Envelope {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var env types.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("json: %v", err)
	}
	return env
}

func login(t *testing.T, h http.Handler, user, pass string) string {
	t.Helper()
	env := envelope(t, do(t, h, http.MethodPost, "/api/auth/login", "", types.LoginRequest{Username: user, Password: pass}))
	var resp types.LoginResponse
	if err := env.Decode(&resp); err != nil || resp.Token == "" {
		t.Fatalf("login: %v %+v", err, env)
	}
	return resp.Token
}

func TestLogin(t *testing.T) {
	_, h := newMux(t)
	env := envelope(t, do(t, h, http.MethodPost, "/api/auth/login", "", types.LoginRequest{Username: "admin", Password: "nope"}))
	if env.OK() || env.Message != "invalid username or password" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	tok := login(t, h, "admin", "admin123")

	envelope(t, do(t, h, http.MethodGet, "/api/auth/logout", tok, nil))
	if w := do(t, h, http.MethodGet, "/api/v1/business/channels", tok, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("token survived logout: %d", w.Code)
	}
}

func TestResources_RequireToken(t *testing.T) {
	s, h := newMux(t)
	w := do(t, h, http.MethodGet, "/api/v1/underwriting/rules", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", w.Code)
	}
	var e types.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if e.Code != http.StatusUnauthorized || e.Message == "" {
		t.Fatalf("unexpected error body: %s", w.Body.String())
	}

	tok := login(t, h, "admin", "admin123")
	envelope(t, do(t, h, http.MethodGet, "/api/v1/underwriting/rules", tok, nil))
	s.ExpireTokens()
	if w := do(t, h, http.MethodGet, "/api/v1/underwriting/rules", tok, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expired token accepted: %d", w.Code)
	}
}

func TestCRUD(t *testing.T) {
	_, h := newMux(t)
	tok := login(t, h, "admin", "admin123")
	base := "/api/v1/business/companies"

	env := envelope(t, do(t, h, http.MethodPost, base, tok, map[string]any{"name": "Acme Re"}))
	if env.OK() || env.Message != "code is required" {
		t.Fatalf("missing code accepted: %+v", env)
	}
	env = envelope(t, do(t, h, http.MethodPost, base, tok, map[string]any{"name": "Acme Re", "code": "SUNLIFE"}))
	if env.Code != codeConflict {
		t.Fatalf("duplicate code accepted: %+v", env)
	}

	env = envelope(t, do(t, h, http.MethodPost, base, tok, map[string]any{"name": "Acme Re", "code": "ACME"}))
	var created types.Record
	if err := env.Decode(&created); err != nil || created.ID() != "3" {
		t.Fatalf("create: %v %+v", err, created)
	}

	env = envelope(t, do(t, h, http.MethodPut, base+"/3", tok, map[string]any{"description": "reinsurer", "id": 99}))
	var updated types.Record
	_ = env.Decode(&updated)
	if updated["description"] != "reinsurer" || updated.ID() != "3" {
		t.Fatalf("update: %+v", updated)
	}

	env = envelope(t, do(t, h, http.MethodGet, base+"?keyword=acme&per_page=5", tok, nil))
	var page types.Page[types.Record]
	_ = env.Decode(&page)
	if page.Total != 1 || len(page.Rows()) != 1 || page.PageSize != 5 {
		t.Fatalf("list: %+v", page)
	}

	envelope(t, do(t, h, http.MethodDelete, base+"/3", tok, nil))
	if w := do(t, h, http.MethodGet, base+"/3", tok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("deleted row still served: %d", w.Code)
	}

	env = envelope(t, do(t, h, http.MethodPost, base+"/batch-delete", tok, types.BatchDeleteRequest{IDs: []string{"1", "2", "42"}}))
	var res map[string]int
	_ = env.Decode(&res)
	if res["deleted"] != 2 {
		t.Fatalf("batch delete: %+v", res)
	}
	env = envelope(t, do(t, h, http.MethodPost, base+"/batch-delete", tok, types.BatchDeleteRequest{}))
	if env.OK() {
		t.Fatalf("empty batch accepted")
	}
}

func TestViewerCannotWrite(t *testing.T) {
	_, h := newMux(t)
	tok := login(t, h, "viewer", "viewer123")
	envelope(t, do(t, h, http.MethodGet, "/api/v1/business/channels", tok, nil))
	if w := do(t, h, http.MethodDelete, "/api/v1/business/channels/1", tok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("status=%d", w.Code)
	}

	env := envelope(t, do(t, h, http.MethodGet, "/api/auth/permissions/check?permission=channels:write", tok, nil))
	var pr types.PermissionResult
	_ = env.Decode(&pr)
	if pr.Allowed || pr.Permission != "channels:write" {
		t.Fatalf("viewer allowed to write: %+v", pr)
	}
	env = envelope(t, do(t, h, http.MethodGet, "/api/auth/permissions/check?permission=channels", tok, nil))
	_ = env.Decode(&pr)
	if !pr.Allowed {
		t.Fatalf("viewer denied read: %+v", pr)
	}
}

func TestChannels_PublicAndStatus(t *testing.T) {
	_, h := newMux(t)
	env := envelope(t, do(t, h, http.MethodGet, "/api/v1/business/channels/public", "", nil))
	var page types.Page[types.Channel]
	if err := env.Decode(&page); err != nil || page.Total != 2 {
		t.Fatalf("public list: %v %+v", err, page)
	}
	tok := login(t, h, "admin", "admin123")
	env = envelope(t, do(t, h, http.MethodPatch, "/api/v1/business/channels/2/status", tok, types.StatusUpdate{Status: types.StatusEnabled}))
	var ch types.Channel
	_ = env.Decode(&ch)
	if ch.Status != types.StatusEnabled {
		t.Fatalf("status not updated: %+v", ch)
	}
	env = envelope(t, do(t, h, http.MethodPatch, "/api/v1/business/channels/2/status", tok, types.StatusUpdate{Status: "paused"}))
	if env.OK() {
		t.Fatalf("invalid status accepted")
	}
}

func upload(t *testing.T, h http.Handler, path, token, filename string, content []byte) types.ImportResult {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(content)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status=%d body=%s", w.Code, w.Body.String())
	}
	var res types.ImportResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("json: %v", err)
	}
	return res
}

func TestImportExport(t *testing.T) {
	s, h := newMux(t)
	tok := login(t, h, "admin", "admin123")

	res := upload(t, h, "/api/v1/business/channels/import", tok, "channels.csv", []byte("a,b"))
	if res.Succeeded() || !strings.Contains(res.Message, ".xlsx") {
		t.Fatalf("csv accepted: %+v", res)
	}

	book, err := exportWorkbook([]string{"name", "code"}, []types.Record{
		{"name": "Agency", "code": "AGENCY"},
		{"code": "NONAME"},
	})
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	res = upload(t, h, "/api/v1/business/channels/import", tok, "channels.xlsx", book)
	if !res.Succeeded() || res.Total != 2 || res.Failed != 1 {
		t.Fatalf("import: %+v", res)
	}
	rows, total := s.channels.list("agency", nil, 1, 10)
	if total != 1 || rows[0]["code"] != "AGENCY" {
		t.Fatalf("imported rows: %+v", rows)
	}

	env := envelope(t, do(t, h, http.MethodGet, "/rules/import/records", tok, nil))
	var recs types.Page[types.ImportRecord]
	_ = env.Decode(&recs)
	if recs.Total != 1 || recs.List[0].Status != "partial" || recs.List[0].Failed != 1 {
		t.Fatalf("import records: %+v", recs)
	}
	env = envelope(t, do(t, h, http.MethodGet, "/rules/import/records/"+recs.List[0].BatchNo+"/details", tok, nil))
	var details []types.ImportDetail
	_ = env.Decode(&details)
	if len(details) != 2 || details[1].Status != "failed" || details[1].Row != 3 {
		t.Fatalf("details: %+v", details)
	}

	w := do(t, h, http.MethodGet, "/api/v1/business/channels/export", tok, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != xlsxType {
		t.Fatalf("export status=%d ct=%s", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), `filename="channels.xlsx"`) {
		t.Fatalf("disposition=%s", w.Header().Get("Content-Disposition"))
	}
	back, err := readWorkbook(bytes.NewReader(w.Body.Bytes()))
	if err != nil || len(back) != 3 {
		t.Fatalf("exported rows: %v %d", err, len(back))
	}

	res = upload(t, h, "/api/v1/business/channels/import", tok, "channels.xlsx", book)
	if res.Succeeded() || res.Failed != 2 {
		t.Fatalf("re-import: %+v", res)
	}
}

func TestRuleImportMarksRule(t *testing.T) {
	s, h := newMux(t)
	tok := login(t, h, "admin", "admin123")
	book, _ := exportWorkbook([]string{"disease", "question"}, []types.Record{{"disease": "I10", "question": "When?"}})
	res := upload(t, h, "/api/v1/underwriting/rules/1/import", tok, "rule.xlsx", book)
	if !res.Succeeded() {
		t.Fatalf("rule import: %+v", res)
	}
	rule, _ := s.rules.get("1")
	if rule["has_data"] != true || rule["status"] != string(types.RuleImported) {
		t.Fatalf("rule not marked: %+v", rule)
	}
	res = upload(t, h, "/api/v1/underwriting/rules/77/import", tok, "rule.xlsx", book)
	if res.Succeeded() {
		t.Fatalf("import into missing rule accepted")
	}
}

func TestMobileFlow(t *testing.T) {
	_, h := newMux(t)
	env := envelope(t, do(t, h, http.MethodGet, "/api/v1/mobile/questions?diseaseIds=1&diseaseIds=4", "", nil))
	var qs []types.Question
	_ = env.Decode(&qs)
	if len(qs) != 4 {
		t.Fatalf("questions: %+v", qs)
	}

	info := types.UserInfo{Name: "A", Age: 30, Gender: "female", Height: 160, Weight: 50,
		PolicyNumber: "P", IDType: "id_card", IDNumber: "X", Phone: "1"}
	env = envelope(t, do(t, h, http.MethodPost, "/api/v1/mobile/underwriting/evaluate", "", types.EvaluateRequest{ProductID: 1, Diseases: []int64{1}, UserInfo: info}))
	var res types.UnderwritingResult
	if err := env.Decode(&res); err != nil || res.Decision != types.DecisionManualReview {
		t.Fatalf("evaluate: %v %+v", err, res)
	}
	env = envelope(t, do(t, h, http.MethodPost, "/api/v1/mobile/underwriting/evaluate", "", types.EvaluateRequest{ProductID: 99, UserInfo: info}))
	if env.Code != codeNotFound {
		t.Fatalf("unknown product: %+v", env)
	}

	env = envelope(t, do(t, h, http.MethodPost, "/api/v1/mobile/orders", "", types.CreateOrderRequest{ProductID: 1, UserInfo: info, Result: res}))
	var o types.Order
	_ = env.Decode(&o)
	if o.ID != 1 || o.Status != "pending" {
		t.Fatalf("order: %+v", o)
	}
	envelope(t, do(t, h, http.MethodGet, "/api/v1/mobile/orders/1", "", nil))
	if w := do(t, h, http.MethodGet, "/api/v1/mobile/orders/2", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestRequestLevel(t *testing.T) {
	cases := []struct {
		query, header string
		want          zerolog.Level
	}{
		{"", "", zerolog.InfoLevel},
		{"log=1", "", zerolog.DebugLevel},
		{"", "off", zerolog.Disabled},
		{"log=warn", "debug", zerolog.WarnLevel},
		{"", "bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/x?"+tc.query, nil)
		if tc.header != "" {
			r.Header.Set("X-Log-Level", tc.header)
		}
		if got := requestLevel(r, zerolog.InfoLevel); got != tc.want {
			t.Fatalf("%q/%q: level=%v want %v", tc.query, tc.header, got, tc.want)
		}
	}
}
