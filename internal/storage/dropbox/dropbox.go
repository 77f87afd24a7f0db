// Package dropbox is a storage backend over the Dropbox v2 HTTP API.
// Package IDs are Dropbox paths; companions are stored beside them.
package dropbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage"
)

// Name is the registry name of this backend.
const Name = "dropbox"

const (
	defaultAPIURL     = "https://api.dropboxapi.com"
	defaultContentURL = "https://content.dropboxapi.com"
)

// Config holds connection settings.
type Config struct {
	Token      string
	APIURL     string
	ContentURL string
	Timeout    time.Duration
}

// Client implements storage.Backend.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *slog.Logger
}

var _ storage.Backend = (*Client)(nil)

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.ContentURL == "" {
		cfg.ContentURL = defaultContentURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.ContentURL = strings.TrimRight(cfg.ContentURL, "/")
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

type apiError struct {
	Summary string `json:"error_summary"`
}

func (c *Client) fail(op string, r *resty.Response) error {
	var e apiError
	_ = json.Unmarshal(r.Body(), &e)
	detail := e.Summary
	if detail == "" {
		detail = r.String()
	}
	err := fmt.Errorf("dropbox %s: %s; %s", op, r.Status(), detail)
	if notFound(r, e) {
		return apperr.New(apperr.CodeNotFound, op, err)
	}
	return err
}

func notFound(r *resty.Response, e apiError) bool {
	return r.StatusCode() == http.StatusConflict && strings.Contains(e.Summary, "not_found")
}

// apiArg encodes v for the Dropbox-API-Arg header, which must be ASCII.
func apiArg(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, r := range string(b) {
		if r < 0x80 {
			sb.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r -= 0x10000
			fmt.Fprintf(&sb, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
			continue
		}
		fmt.Fprintf(&sb, `\u%04x`, r)
	}
	return sb.String(), nil
}

// normalize turns an ID into an absolute Dropbox path.
func normalize(id string) string {
	id = strings.ReplaceAll(id, `\`, "/")
	if !strings.HasPrefix(id, "/") {
		id = "/" + id
	}
	return path.Clean(id)
}

func (c *Client) download(ctx context.Context, p string) ([]byte, error) {
	arg, err := apiArg(map[string]string{"path": p})
	if err != nil {
		return nil, err
	}
	r, err := c.http.R().SetContext(ctx).
		SetHeader("Dropbox-API-Arg", arg).
		Post(c.cfg.ContentURL + "/2/files/download")
	if err != nil {
		return nil, err
	}
	if r.IsError() {
		return nil, c.fail("download "+p, r)
	}
	return r.Body(), nil
}

func (c *Client) LoadFile(ctx context.Context, id string) ([]byte, error) {
	return c.download(ctx, normalize(id))
}

func companionPath(id, name string) string {
	p := normalize(id)
	if name == "" {
		name = path.Base(p)
	}
	return path.Join(path.Dir(p), storage.CompanionName(name))
}

func (c *Client) LoadAutoSaveData(ctx context.Context, id, name string) (*job.Job, error) {
	p := companionPath(id, name)
	b, err := c.download(ctx, p)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return nil, nil
		}
		return nil, apperr.New(apperr.CodeAutoSaveUnavailable, "download "+p, err)
	}
	j, err := job.Parse(b)
	if err != nil {
		return nil, apperr.New(apperr.CodeAutoSaveUnavailable, "parse "+p, err)
	}
	return j, nil
}

// SaveFile uploads the companion in overwrite mode; Dropbox commits an
// upload atomically.
func (c *Client) SaveFile(ctx context.Context, id string, j *job.Job) error {
	body, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode companion: %w", err)
	}
	p := companionPath(id, "")
	arg, err := apiArg(map[string]any{"path": p, "mode": "overwrite", "mute": true})
	if err != nil {
		return err
	}
	r, err := c.http.R().SetContext(ctx).
		SetHeader("Dropbox-API-Arg", arg).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(body).
		Post(c.cfg.ContentURL + "/2/files/upload")
	if err != nil {
		return err
	}
	if r.IsError() {
		return c.fail("upload "+p, r)
	}
	c.logger.Debug("storage.saved", "id", id, "companion", p, "units", len(j.TUs))
	return nil
}

type entry struct {
	Tag            string `json:".tag"`
	Name           string `json:"name"`
	PathDisplay    string `json:"path_display"`
	Size           int64  `json:"size"`
	ServerModified string `json:"server_modified"`
}

type listResult struct {
	Entries []entry `json:"entries"`
	Cursor  string  `json:"cursor"`
	HasMore bool    `json:"has_more"`
}

// ListFiles lists packages in folder location ("" is the app root).
func (c *Client) ListFiles(ctx context.Context, location string) ([]storage.FileInfo, error) {
	folder := ""
	if location != "" && location != "/" {
		folder = normalize(location)
	}
	var out []storage.FileInfo
	endpoint := "/2/files/list_folder"
	var body any = map[string]any{"path": folder, "recursive": false}
	for {
		var res listResult
		r, err := c.http.R().SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			SetResult(&res).
			Post(c.cfg.APIURL + endpoint)
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return nil, c.fail("list "+folder, r)
		}
		for _, e := range res.Entries {
			if e.Tag != "file" || !storage.IsPackage(e.Name) {
				continue
			}
			ts, _ := time.Parse(time.RFC3339, e.ServerModified)
			out = append(out, storage.FileInfo{ID: e.PathDisplay, Name: e.Name, Size: e.Size, UpdatedAt: ts})
		}
		if !res.HasMore {
			return out, nil
		}
		endpoint = "/2/files/list_folder/continue"
		body = map[string]string{"cursor": res.Cursor}
	}
}
