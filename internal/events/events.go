package events

import (
	"net/url"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Kind names an event. Each Kind is carried by exactly one concrete type below.
type Kind string

const (
	KindTableAction      Kind = "table:action"
	KindTableRefresh     Kind = "table:refresh"
	KindTableBatchDelete Kind = "table:batchDelete"
	KindTableLoaded      Kind = "load:success"
	KindTableLoadFailed  Kind = "load:error"
	KindFormSubmit       Kind = "form:submit"
	KindSearchSubmitted  Kind = "search:submitted"
	KindSearchReset      Kind = "search:reset"
	KindImportStart      Kind = "import:start"
	KindExportStart      Kind = "export:start"
	KindModalOpen        Kind = "modal:open"
	KindModalClose       Kind = "modal:close"
	KindToast            Kind = "toast"
	KindUnauthorized     Kind = "auth:unauthorized"
	KindNavigate         Kind = "router:navigate"
	KindPermissionCheck  Kind = "permission:check"
	KindLoading          Kind = "request:loading"
	KindStateChanged     Kind = "crud:state"
)

// Event is implemented only by the types in this package.
type Event interface {
	Kind() Kind
	sealed()
}

// Action is a row action triggered from a table.
type Action string

const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Mode is the form mode carried by modal events.
type Mode string

const (
	ModeList   Mode = "list"
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
	ModeView   Mode = "view"
)

// Level is the severity of a toast notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// TableAction is emitted when a row button is pressed.
type TableAction struct {
	Action Action
	Row    types.Record
}

// TableRefresh asks tables to reload with the given query.
type TableRefresh struct {
	Params url.Values
}

// TableBatchDelete carries the selected row ids.
type TableBatchDelete struct {
	IDs []string
}

// TableLoaded reports a successful page load.
type TableLoaded struct {
	Rows  []types.Record
	Total int
}

// TableLoadFailed reports a failed page load.
type TableLoadFailed struct {
	Err error
}

// FormSubmit carries serialised form data.
type FormSubmit struct {
	Data types.Record
}

// SearchSubmitted carries the search form query.
type SearchSubmitted struct {
	Params url.Values
}

// SearchReset clears the search query.
type SearchReset struct{}

// Upload is a file selected for import.
type Upload struct {
	Name    string
	Content []byte
}

// ImportStart requests an import of File. A nil File is a no-op with a warning.
type ImportStart struct {
	File *Upload
}

// ExportStart requests an export filtered by Params.
type ExportStart struct {
	Params url.Values
}

// ModalOpen asks the form/detail view to open.
type ModalOpen struct {
	Mode Mode
	Data types.Record
}

// ModalClose asks the form/detail view to close.
type ModalClose struct{}

// Toast is a user notification.
type Toast struct {
	Level   Level
	Message string
}

// Unauthorized signals a 401 from the network layer.
// Redirect is the location the user should come back to after login.
type Unauthorized struct {
	Redirect string
}

// Navigate asks the router to move to To.
type Navigate struct {
	To string
}

// Control is the render-time view of a permission-guarded element.
type Control struct {
	Permission  string
	Interactive bool
	Disabled    bool
	Hidden      bool
	Title       string
}

// PermissionCheck asks the permission gate to evaluate Control.
type PermissionCheck struct {
	Permission string
	Control    *Control
}

// Loading toggles a loading indicator for one request.
type Loading struct {
	Op     string
	Active bool
}

// StateChanged mirrors the CRUD coordinator state after every transition.
type StateChanged struct {
	Mode        Mode
	CurrentItem types.Record
	Loading     bool
}

func (TableAction) Kind() Kind      { return KindTableAction }
func (TableRefresh) Kind() Kind     { return KindTableRefresh }
func (TableBatchDelete) Kind() Kind { return KindTableBatchDelete }
func (TableLoaded) Kind() Kind      { return KindTableLoaded }
func (TableLoadFailed) Kind() Kind  { return KindTableLoadFailed }
func (FormSubmit) Kind() Kind       { return KindFormSubmit }
func (SearchSubmitted) Kind() Kind  { return KindSearchSubmitted }
func (SearchReset) Kind() Kind      { return KindSearchReset }
func (ImportStart) Kind() Kind      { return KindImportStart }
func (ExportStart) Kind() Kind      { return KindExportStart }
func (ModalOpen) Kind() Kind        { return KindModalOpen }
func (ModalClose) Kind() Kind       { return KindModalClose }
func (Toast) Kind() Kind            { return KindToast }
func (Unauthorized) Kind() Kind     { return KindUnauthorized }
func (Navigate) Kind() Kind         { return KindNavigate }
func (PermissionCheck) Kind() Kind  { return KindPermissionCheck }
func (Loading) Kind() Kind          { return KindLoading }
func (StateChanged) Kind() Kind     { return KindStateChanged }

func (TableAction) sealed()      {}
func (TableRefresh) sealed()     {}
func (TableBatchDelete) sealed() {}
func (TableLoaded) sealed()      {}
func (TableLoadFailed) sealed()  {}
func (FormSubmit) sealed()       {}
func (SearchSubmitted) sealed()  {}
func (SearchReset) sealed()      {}
func (ImportStart) sealed()      {}
func (ExportStart) sealed()      {}
func (ModalOpen) sealed()        {}
func (ModalClose) sealed()       {}
func (Toast) sealed()            {}
func (Unauthorized) sealed()     {}
func (Navigate) sealed()         {}
func (PermissionCheck) sealed()  {}
func (Loading) sealed()          {}
func (StateChanged) sealed()     {}
