// Package gdrive is a storage backend over the Google Drive v3 REST API.
//
// Package IDs are Drive file IDs. The auto-save companion lives in the
// package's parent folder under storage.CompanionName(package name).
// Token acquisition is out of scope; the client is handed a bearer token.
package gdrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage"
)

// Name is the registry name of this backend.
const Name = "gdrive"

const (
	defaultBaseURL   = "https://www.googleapis.com/drive/v3"
	defaultUploadURL = "https://www.googleapis.com/upload/drive/v3"
	fileFields       = "id,name,size,modifiedTime,parents"
)

// Config holds connection settings.
type Config struct {
	Token     string
	BaseURL   string
	UploadURL string
	Timeout   time.Duration
}

// Client implements storage.Backend.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *slog.Logger
}

var _ storage.Backend = (*Client)(nil)

// New builds a client. Empty URLs select the public Drive endpoints.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = defaultUploadURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.UploadURL = strings.TrimRight(cfg.UploadURL, "/")
	if logger == nil {
		logger = slog.Default()
	}
	c := resty.New().SetTimeout(cfg.Timeout).SetAuthToken(cfg.Token)
	return &Client{cfg: cfg, http: c, logger: logger.With("backend", Name)}
}

func (c *Client) Name() string { return Name }

func (c *Client) Capabilities() storage.Capabilities {
	return storage.Capabilities{RequiresAuth: true, CanSave: true}
}

type driveFile struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Size         string   `json:"size"`
	ModifiedTime string   `json:"modifiedTime"`
	Parents      []string `json:"parents"`
}

func (f driveFile) parent() string {
	if len(f.Parents) > 0 {
		return f.Parents[0]
	}
	return "root"
}

func (f driveFile) info() storage.FileInfo {
	size, _ := strconv.ParseInt(f.Size, 10, 64)
	ts, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	return storage.FileInfo{ID: f.ID, Name: f.Name, Size: size, UpdatedAt: ts}
}

func (c *Client) fileURL(id string) string {
	return c.cfg.BaseURL + "/files/" + url.PathEscape(id)
}

func statusError(op string, r *resty.Response) error {
	err := fmt.Errorf("gdrive %s: %s; body: %s", op, r.Status(), r.String())
	if r.StatusCode() == http.StatusNotFound {
		return apperr.New(apperr.CodeNotFound, op, err)
	}
	return err
}

func (c *Client) LoadFile(ctx context.Context, id string) ([]byte, error) {
	r, err := c.http.R().SetContext(ctx).
		SetQueryParam("alt", "media").
		Get(c.fileURL(id))
	if err != nil {
		return nil, err
	}
	if r.IsError() {
		return nil, statusError("download "+id, r)
	}
	return r.Body(), nil
}

func (c *Client) metadata(ctx context.Context, id string) (driveFile, error) {
	var f driveFile
	r, err := c.http.R().SetContext(ctx).
		SetQueryParam("fields", fileFields).
		SetResult(&f).
		Get(c.fileURL(id))
	if err != nil {
		return f, err
	}
	if r.IsError() {
		return f, statusError("metadata "+id, r)
	}
	return f, nil
}

// query runs a files.list search, following pagination.
func (c *Client) query(ctx context.Context, q string) ([]driveFile, error) {
	var out []driveFile
	token := ""
	for {
		var resp struct {
			Files         []driveFile `json:"files"`
			NextPageToken string      `json:"nextPageToken"`
		}
		req := c.http.R().SetContext(ctx).
			SetQueryParams(map[string]string{
				"q":        q,
				"fields":   "nextPageToken,files(" + fileFields + ")",
				"pageSize": "100",
				"orderBy":  "name",
			}).
			SetResult(&resp)
		if token != "" {
			req.SetQueryParam("pageToken", token)
		}
		r, err := req.Get(c.cfg.BaseURL + "/files")
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return nil, statusError("list", r)
		}
		out = append(out, resp.Files...)
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

// quote escapes a value for a Drive query string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func (c *Client) companion(ctx context.Context, id, name string) (driveFile, *driveFile, error) {
	meta, err := c.metadata(ctx, id)
	if err != nil {
		return meta, nil, err
	}
	if name == "" {
		name = meta.Name
	}
	q := fmt.Sprintf("name = %s and %s in parents and trashed = false",
		quote(storage.CompanionName(name)), quote(meta.parent()))
	files, err := c.query(ctx, q)
	if err != nil || len(files) == 0 {
		return meta, nil, err
	}
	return meta, &files[0], nil
}

func (c *Client) LoadAutoSaveData(ctx context.Context, id, name string) (*job.Job, error) {
	_, f, err := c.companion(ctx, id, name)
	if err != nil {
		return nil, apperr.New(apperr.CodeAutoSaveUnavailable, "lookup companion of "+id, err)
	}
	if f == nil {
		return nil, nil
	}
	b, err := c.LoadFile(ctx, f.ID)
	if err != nil {
		return nil, apperr.New(apperr.CodeAutoSaveUnavailable, "download companion "+f.ID, err)
	}
	j, err := job.Parse(b)
	if err != nil {
		return nil, apperr.New(apperr.CodeAutoSaveUnavailable, "parse companion "+f.ID, err)
	}
	return j, nil
}

func (c *Client) SaveFile(ctx context.Context, id string, j *job.Job) error {
	body, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode companion: %w", err)
	}
	meta, f, err := c.companion(ctx, id, "")
	if err != nil {
		return err
	}
	if f != nil {
		if err := c.upload(ctx, f.ID, body); err != nil {
			return err
		}
		c.logger.Debug("storage.saved", "id", id, "companion", f.ID, "units", len(j.TUs))
		return nil
	}
	target, err := c.create(ctx, storage.CompanionName(meta.Name), meta.parent())
	if err != nil {
		return err
	}
	if err := c.upload(ctx, target, body); err != nil {
		// An empty companion would shadow the package on the next open.
		if derr := c.remove(context.WithoutCancel(ctx), target); derr != nil {
			c.logger.Warn("storage.cleanup.failed", "id", id, "companion", target, "error", derr)
			return errors.Join(err, derr)
		}
		return err
	}
	c.logger.Debug("storage.saved", "id", id, "companion", target, "units", len(j.TUs))
	return nil
}

// upload replaces the content of file id.
func (c *Client) upload(ctx context.Context, id string, body []byte) error {
	r, err := c.http.R().SetContext(ctx).
		SetQueryParam("uploadType", "media").
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Patch(c.cfg.UploadURL + "/files/" + url.PathEscape(id))
	if err != nil {
		return err
	}
	if r.IsError() {
		return statusError("upload "+id, r)
	}
	return nil
}

// remove deletes file id.
func (c *Client) remove(ctx context.Context, id string) error {
	r, err := c.http.R().SetContext(ctx).Delete(c.cfg.BaseURL + "/files/" + url.PathEscape(id))
	if err != nil {
		return err
	}
	if r.IsError() {
		return statusError("delete "+id, r)
	}
	return nil
}

// create makes an empty JSON file and returns its ID.
func (c *Client) create(ctx context.Context, name, parent string) (string, error) {
	var created driveFile
	r, err := c.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"name":     name,
			"parents":  []string{parent},
			"mimeType": "application/json",
		}).
		SetResult(&created).
		Post(c.cfg.BaseURL + "/files")
	if err != nil {
		return "", err
	}
	if r.IsError() {
		return "", statusError("create "+name, r)
	}
	return created.ID, nil
}

// ListFiles lists the packages in folder location ("" is My Drive root).
func (c *Client) ListFiles(ctx context.Context, location string) ([]storage.FileInfo, error) {
	folder := location
	if folder == "" {
		folder = "root"
	}
	q := fmt.Sprintf("%s in parents and trashed = false and name contains %s",
		quote(folder), quote(storage.PackageExt))
	files, err := c.query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]storage.FileInfo, 0, len(files))
	for _, f := range files {
		if storage.IsPackage(f.Name) {
			out = append(out, f.info())
		}
	}
	return out, nil
}
