package crud

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/internal/common/fsutil"
	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Endpoints maps each operation to a URL template. "{id}" is replaced with
// the escaped entity id. An empty template disables the operation.
type Endpoints struct {
	List        string `json:"list" yaml:"list" toml:"list"`
	Create      string `json:"create" yaml:"create" toml:"create"`
	Update      string `json:"update" yaml:"update" toml:"update"`
	Delete      string `json:"delete" yaml:"delete" toml:"delete"`
	View        string `json:"view" yaml:"view" toml:"view"`
	BatchDelete string `json:"batchDelete" yaml:"batchDelete" toml:"batchDelete"`
	Import      string `json:"import" yaml:"import" toml:"import"`
	Export      string `json:"export" yaml:"export" toml:"export"`
}

// ResourceEndpoints derives the conventional REST layout under prefix.
func ResourceEndpoints(prefix string) Endpoints {
	p := strings.TrimRight(prefix, "/")
	return Endpoints{
		List:        p,
		Create:      p,
		Update:      p + "/{id}",
		Delete:      p + "/{id}",
		View:        p + "/{id}",
		BatchDelete: p + "/batch-delete",
		Import:      p + "/import",
		Export:      p + "/export",
	}
}

// Messages are the user-facing notification texts. Empty fields take the default.
type Messages struct {
	CreateSuccess      string `json:"createSuccess" yaml:"createSuccess" toml:"createSuccess"`
	UpdateSuccess      string `json:"updateSuccess" yaml:"updateSuccess" toml:"updateSuccess"`
	DeleteSuccess      string `json:"deleteSuccess" yaml:"deleteSuccess" toml:"deleteSuccess"`
	CreateError        string `json:"createError" yaml:"createError" toml:"createError"`
	UpdateError        string `json:"updateError" yaml:"updateError" toml:"updateError"`
	DeleteError        string `json:"deleteError" yaml:"deleteError" toml:"deleteError"`
	LoadError          string `json:"loadError" yaml:"loadError" toml:"loadError"`
	DeleteConfirm      string `json:"deleteConfirm" yaml:"deleteConfirm" toml:"deleteConfirm"`
	ValidationError    string `json:"validationError" yaml:"validationError" toml:"validationError"`
	NetworkError       string `json:"networkError" yaml:"networkError" toml:"networkError"`
	Unauthorized       string `json:"unauthorized" yaml:"unauthorized" toml:"unauthorized"`
	SessionExpired     string `json:"sessionExpired" yaml:"sessionExpired" toml:"sessionExpired"`
	NotFound           string `json:"notFound" yaml:"notFound" toml:"notFound"`
	ServerError        string `json:"serverError" yaml:"serverError" toml:"serverError"`
	BatchDeleteSuccess string `json:"batchDeleteSuccess" yaml:"batchDeleteSuccess" toml:"batchDeleteSuccess"`
	BatchDeleteError   string `json:"batchDeleteError" yaml:"batchDeleteError" toml:"batchDeleteError"`
	SelectItems        string `json:"selectItems" yaml:"selectItems" toml:"selectItems"`
	ExportSuccess      string `json:"exportSuccess" yaml:"exportSuccess" toml:"exportSuccess"`
	ExportError        string `json:"exportError" yaml:"exportError" toml:"exportError"`
	ImportSuccess      string `json:"importSuccess" yaml:"importSuccess" toml:"importSuccess"`
	ImportError        string `json:"importError" yaml:"importError" toml:"importError"`
	SelectFile         string `json:"selectFile" yaml:"selectFile" toml:"selectFile"`
}

// DefaultMessages returns the built-in texts.
func DefaultMessages() Messages {
	return Messages{
		CreateSuccess:      "created",
		UpdateSuccess:      "updated",
		DeleteSuccess:      "deleted",
		CreateError:        "create failed",
		UpdateError:        "update failed",
		DeleteError:        "delete failed",
		LoadError:          "failed to load data",
		DeleteConfirm:      "Delete this item?",
		ValidationError:    "please check the input",
		NetworkError:       "network error",
		Unauthorized:       "no permission",
		SessionExpired:     "session expired, please log in again",
		NotFound:           "resource not found",
		ServerError:        "internal server error",
		BatchDeleteSuccess: "batch delete succeeded",
		BatchDeleteError:   "batch delete failed",
		SelectItems:        "select the items to delete",
		ExportSuccess:      "export succeeded",
		ExportError:        "export failed",
		ImportSuccess:      "import succeeded",
		ImportError:        "import failed",
		SelectFile:         "select a file to import",
	}
}

// withDefaults fills every empty field from DefaultMessages.
func (m Messages) withDefaults() Messages {
	def := reflect.ValueOf(DefaultMessages())
	v := reflect.ValueOf(&m).Elem()
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).String() == "" {
			v.Field(i).SetString(def.Field(i).String())
		}
	}
	return m
}

// Field names a required form field. Label is used in messages when set.
type Field struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Label string `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
}

// FormRules are checked before create and update reach the network.
type FormRules struct {
	RequiredFields []Field
	// Validate returns a non-nil error to reject the payload; its text is shown.
	Validate func(types.Record) error
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, message string) bool { return f(ctx, message) }

// FileSaver receives exported files.
type FileSaver interface {
	Save(ctx context.Context, name string, content []byte) error
}

// DirSaver writes exports into Dir.
type DirSaver struct {
	Dir string
}

func (d DirSaver) Save(_ context.Context, name string, content []byte) error {
	dir, err := fsutil.ExpandHome(d.Dir)
	if err != nil {
		return err
	}
	// never let a server supplied name escape the directory
	return fsutil.WriteFileAtomic(filepath.Join(dir, filepath.Base(name)), content, 0o644)
}

// Doer is the transport surface the coordinator needs; *apiclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, opts *apiclient.Options) (*types.Envelope, error)
	Upload(ctx context.Context, path, filename string, content []byte, opts *apiclient.Options) (*apiclient.Response, error)
	Download(ctx context.Context, path string, opts *apiclient.Options) (*apiclient.Response, error)
}

// Config wires a Coordinator. Client and Bus are always required; Confirm is
// required when a delete endpoint is set and Saver when Export is set.
type Config struct {
	Endpoints    Endpoints
	Messages     Messages
	Form         FormRules
	Client       Doer
	Bus          *events.Bus
	Confirm      Confirmer
	Saver        FileSaver
	Connectivity apiclient.Connectivity
	Logger       *zerolog.Logger
	Now          func() time.Time
	// Context is the parent of operations started from bus events.
	Context context.Context
}

func (c *Config) validate() error {
	switch {
	case c.Client == nil:
		return fmt.Errorf("crud: client is required")
	case c.Bus == nil:
		return fmt.Errorf("crud: event bus is required")
	case (c.Endpoints.Delete != "" || c.Endpoints.BatchDelete != "") && c.Confirm == nil:
		return fmt.Errorf("crud: confirmer is required when delete endpoints are configured")
	case c.Endpoints.Export != "" && c.Saver == nil:
		return fmt.Errorf("crud: file saver is required when the export endpoint is configured")
	}
	return nil
}

// expand substitutes {id} and appends the query.
func expand(tmpl, id string, q url.Values) string {
	u := strings.ReplaceAll(tmpl, "{id}", url.PathEscape(id))
	if len(q) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + q.Encode()
	}
	return u
}
