package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"photark/internal/archive"
)

// TokenStore persists refreshed OAuth tokens back to the backend's
// configuration. Persistence is best-effort: a failed save must not fail the
// operation that triggered the refresh.
type TokenStore interface {
	SaveToken(backendID, accessToken, refreshToken string, expiry time.Time) error
}

// DriveConfig holds the settings for an OAuth cloud-drive backend.
type DriveConfig struct {
	APIBase      string // e.g. https://drive.example.com/api/v1
	TokenURL     string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	RootFolderID string
}

// DriveProvider stores archive files in an OAuth-protected cloud drive.
// The drive addresses folders and files by opaque ids; backend-relative
// paths form a virtual hierarchy resolved by walking parent-folder lookups
// from the configured root folder.
type DriveProvider struct {
	id     string
	cfg    DriveConfig
	client *http.Client
	tokens TokenStore
	logger archive.Logger
	clock  archive.Clock

	mu           sync.Mutex // guards token state
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time
}

// refreshSkew is how long before expiry a token is refreshed, so an
// in-flight request never races the expiry.
const refreshSkew = time.Minute

// NewDriveProvider creates a provider for the given drive. tokens may be nil
// when refreshed tokens should not be persisted (throwaway validation
// providers).
func NewDriveProvider(id string, cfg DriveConfig, tokens TokenStore, logger archive.Logger, clock archive.Clock) (*DriveProvider, error) {
	if cfg.APIBase == "" {
		return nil, fmt.Errorf("drive backend requires an api_base")
	}
	if logger == nil {
		logger = archive.NewNopLogger()
	}
	if clock == nil {
		clock = archive.RealClock{}
	}
	return &DriveProvider{
		id:           id,
		cfg:          cfg,
		client:       &http.Client{Timeout: 60 * time.Second},
		tokens:       tokens,
		logger:       logger,
		clock:        clock,
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
		tokenExpiry:  cfg.TokenExpiry,
	}, nil
}

func (p *DriveProvider) ID() string { return p.id }

func (p *DriveProvider) opErr(op string, err error) error {
	return &archive.OpError{Backend: p.id, Op: op, Err: err}
}

// token returns a valid access token, refreshing it first when it is within
// refreshSkew of expiry. The refreshed token is persisted best-effort.
func (p *DriveProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && (p.tokenExpiry.IsZero() || p.clock.Now().Add(refreshSkew).Before(p.tokenExpiry)) {
		return p.accessToken, nil
	}

	if p.refreshToken == "" || p.cfg.TokenURL == "" {
		return "", &archive.ConnectionError{
			Backend: p.id,
			Hint:    "no refresh token configured; re-authorize the drive",
			Err:     fmt.Errorf("access token expired"),
		}
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {p.refreshToken},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &archive.ConnectionError{Backend: p.id, Hint: "token endpoint unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &archive.ConnectionError{
			Backend: p.id,
			Hint:    "refresh rejected; re-authorize the drive",
			Err:     fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}

	p.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		p.refreshToken = tok.RefreshToken
	}
	p.tokenExpiry = p.clock.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)

	if p.tokens != nil {
		if err := p.tokens.SaveToken(p.id, p.accessToken, p.refreshToken, p.tokenExpiry); err != nil {
			p.logger.Warn("persisting refreshed drive token failed", "backend", p.id, "error", err)
		}
	}

	return p.accessToken, nil
}

// doJSON performs an authenticated request and decodes a JSON response into
// out (when non-nil). A nil body sends an empty request body.
func (p *DriveProvider) doJSON(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out any) error {
	resp, err := p.do(ctx, method, endpoint, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding drive response: %w", err)
	}
	return nil
}

// errDriveNotFound marks a 404 from the drive API.
var errDriveNotFound = fmt.Errorf("drive object not found")

func (p *DriveProvider) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	tok, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(p.cfg.APIBase, "/")+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("building drive request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &archive.ConnectionError{Backend: p.id, Hint: "drive endpoint unreachable", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, errDriveNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, &archive.ConnectionError{
			Backend: p.id,
			Hint:    "invalid credentials; re-authorize the drive",
			Err:     fmt.Errorf("drive returned %d", resp.StatusCode),
		}
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("drive returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// driveItem is the drive API's wire representation of a file or folder.
type driveItem struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Folder   bool      `json:"folder"`
	Size     int64     `json:"size"`
	MimeType string    `json:"mimeType"`
	Modified time.Time `json:"modified"`
}

// listChildren returns the children of a folder id, optionally restricted to
// folders or files.
func (p *DriveProvider) listChildren(ctx context.Context, folderID, kind string) ([]driveItem, error) {
	endpoint := "/folders/" + url.PathEscape(folderID) + "/children"
	if kind != "" {
		endpoint += "?type=" + kind
	}
	var out struct {
		Items []driveItem `json:"items"`
	}
	if err := p.doJSON(ctx, http.MethodGet, endpoint, nil, "", &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// resolveFolder walks the virtual path one segment at a time from the root
// folder, matching child folders by name.
func (p *DriveProvider) resolveFolder(ctx context.Context, relPath string) (string, error) {
	folderID := p.cfg.RootFolderID
	if folderID == "" {
		folderID = "root"
	}
	relPath = strings.Trim(relPath, "/")
	if relPath == "" {
		return folderID, nil
	}

	for _, segment := range strings.Split(relPath, "/") {
		items, err := p.listChildren(ctx, folderID, "folder")
		if err != nil {
			return "", err
		}
		found := ""
		for _, item := range items {
			if item.Name == segment {
				found = item.ID
				break
			}
		}
		if found == "" {
			return "", errDriveNotFound
		}
		folderID = found
	}
	return folderID, nil
}

// resolveFile resolves a backend-relative file path to its drive item.
func (p *DriveProvider) resolveFile(ctx context.Context, relPath string) (*driveItem, error) {
	dir, name := path.Split(strings.Trim(relPath, "/"))
	folderID, err := p.resolveFolder(ctx, dir)
	if err != nil {
		return nil, err
	}
	items, err := p.listChildren(ctx, folderID, "file")
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Name == name {
			return &item, nil
		}
	}
	return nil, errDriveNotFound
}

func (p *DriveProvider) ValidateConnection(ctx context.Context) bool {
	err := p.doJSON(ctx, http.MethodGet, "/about", nil, "", nil)
	return err == nil
}

func (p *DriveProvider) CreateFolder(ctx context.Context, name, parentPath string) (*FolderInfo, error) {
	relPath := joinPath(parentPath, name)
	parentID, err := p.resolveFolder(ctx, parentPath)
	if err != nil {
		return nil, p.opErr("createFolder", err)
	}

	// Idempotent: return an existing folder with that name.
	items, err := p.listChildren(ctx, parentID, "folder")
	if err != nil {
		return nil, p.opErr("createFolder", err)
	}
	for _, item := range items {
		if item.Name == name {
			return &FolderInfo{ID: item.ID, Name: name, Path: relPath}, nil
		}
	}

	body, _ := json.Marshal(map[string]string{"name": name, "parentId": parentID})
	var created driveItem
	if err := p.doJSON(ctx, http.MethodPost, "/folders", bytes.NewReader(body), "application/json", &created); err != nil {
		return nil, p.opErr("createFolder", err)
	}
	return &FolderInfo{ID: created.ID, Name: name, Path: relPath}, nil
}

func (p *DriveProvider) DeleteFolder(ctx context.Context, relPath string) error {
	folderID, err := p.resolveFolder(ctx, relPath)
	if err != nil {
		if err == errDriveNotFound {
			return nil
		}
		return p.opErr("deleteFolder", err)
	}
	if err := p.doJSON(ctx, http.MethodDelete, "/folders/"+url.PathEscape(folderID), nil, "", nil); err != nil {
		return p.opErr("deleteFolder", err)
	}
	return nil
}

func (p *DriveProvider) GetFolderInfo(ctx context.Context, relPath string) (*FolderInfo, error) {
	folderID, err := p.resolveFolder(ctx, relPath)
	if err != nil {
		return nil, p.opErr("getFolderInfo", err)
	}
	return &FolderInfo{ID: folderID, Name: path.Base(relPath), Path: relPath}, nil
}

func (p *DriveProvider) ListFolders(ctx context.Context, parentPath string) ([]FolderInfo, error) {
	folderID, err := p.resolveFolder(ctx, parentPath)
	if err != nil {
		return nil, p.opErr("listFolders", err)
	}
	items, err := p.listChildren(ctx, folderID, "folder")
	if err != nil {
		return nil, p.opErr("listFolders", err)
	}
	var folders []FolderInfo
	for _, item := range items {
		folders = append(folders, FolderInfo{
			ID:   item.ID,
			Name: item.Name,
			Path: joinPath(parentPath, item.Name),
		})
	}
	return folders, nil
}

func (p *DriveProvider) UploadFile(ctx context.Context, data []byte, filename, mimeType, folderPath string, metadata map[string]string) (*UploadResult, error) {
	folderID, err := p.resolveFolder(ctx, folderPath)
	if err != nil {
		return nil, p.opErr("uploadFile", err)
	}

	endpoint := "/files?folderId=" + url.QueryEscape(folderID) + "&name=" + url.QueryEscape(filename)
	ct := mimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	var uploaded driveItem
	if err := p.doJSON(ctx, http.MethodPost, endpoint, bytes.NewReader(data), ct, &uploaded); err != nil {
		return nil, p.opErr("uploadFile", err)
	}

	relPath := joinPath(folderPath, filename)
	if len(metadata) > 0 {
		if err := p.patchMetadata(ctx, uploaded.ID, metadata); err != nil {
			return nil, p.opErr("uploadFile", err)
		}
	}

	return &UploadResult{
		FileID: uploaded.ID,
		URL:    p.FileURL(relPath),
		Path:   relPath,
		Size:   int64(len(data)),
	}, nil
}

func (p *DriveProvider) patchMetadata(ctx context.Context, fileID string, metadata map[string]string) error {
	body, _ := json.Marshal(map[string]any{"metadata": metadata})
	return p.doJSON(ctx, http.MethodPatch, "/files/"+url.PathEscape(fileID), bytes.NewReader(body), "application/json", nil)
}

func (p *DriveProvider) DeleteFile(ctx context.Context, relPath string) error {
	item, err := p.resolveFile(ctx, relPath)
	if err != nil {
		if err == errDriveNotFound {
			return nil
		}
		return p.opErr("deleteFile", err)
	}
	if err := p.doJSON(ctx, http.MethodDelete, "/files/"+url.PathEscape(item.ID), nil, "", nil); err != nil {
		return p.opErr("deleteFile", err)
	}
	return nil
}

func (p *DriveProvider) GetFileInfo(ctx context.Context, relPath string) (*FileInfo, error) {
	item, err := p.resolveFile(ctx, relPath)
	if err != nil {
		return nil, p.opErr("getFileInfo", err)
	}
	return &FileInfo{
		ID:       item.ID,
		Name:     item.Name,
		Path:     relPath,
		Size:     item.Size,
		MimeType: item.MimeType,
		Modified: item.Modified,
	}, nil
}

func (p *DriveProvider) ListFiles(ctx context.Context, folderPath string, pageSize int) ([]FileInfo, error) {
	folderID, err := p.resolveFolder(ctx, folderPath)
	if err != nil {
		return nil, p.opErr("listFiles", err)
	}
	items, err := p.listChildren(ctx, folderID, "file")
	if err != nil {
		return nil, p.opErr("listFiles", err)
	}
	var files []FileInfo
	for _, item := range items {
		files = append(files, FileInfo{
			ID:       item.ID,
			Name:     item.Name,
			Path:     joinPath(folderPath, item.Name),
			Size:     item.Size,
			MimeType: item.MimeType,
			Modified: item.Modified,
		})
		if pageSize > 0 && len(files) >= pageSize {
			break
		}
	}
	return files, nil
}

func (p *DriveProvider) UpdateFileMetadata(ctx context.Context, relPath string, metadata map[string]string) error {
	item, err := p.resolveFile(ctx, relPath)
	if err != nil {
		return p.opErr("updateFileMetadata", err)
	}
	if err := p.patchMetadata(ctx, item.ID, metadata); err != nil {
		return p.opErr("updateFileMetadata", err)
	}
	return nil
}

func (p *DriveProvider) FileExists(ctx context.Context, relPath string) (bool, error) {
	_, err := p.resolveFile(ctx, relPath)
	if err == errDriveNotFound {
		return false, nil
	}
	if err != nil {
		return false, p.opErr("fileExists", err)
	}
	return true, nil
}

func (p *DriveProvider) FolderExists(ctx context.Context, relPath string) (bool, error) {
	_, err := p.resolveFolder(ctx, relPath)
	if err == errDriveNotFound {
		return false, nil
	}
	if err != nil {
		return false, p.opErr("folderExists", err)
	}
	return true, nil
}

func (p *DriveProvider) FileURL(relPath string) string {
	return strings.TrimSuffix(p.cfg.APIBase, "/") + "/download?path=" + url.QueryEscape(relPath)
}

func (p *DriveProvider) FileBuffer(ctx context.Context, relPath string) ([]byte, error) {
	item, err := p.resolveFile(ctx, relPath)
	if err == errDriveNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, p.opErr("getFileBuffer", err)
	}

	resp, err := p.do(ctx, http.MethodGet, "/files/"+url.PathEscape(item.ID)+"/content", nil, "")
	if err == errDriveNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, p.opErr("getFileBuffer", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.opErr("getFileBuffer", err)
	}
	return data, nil
}

// Compile-time check that DriveProvider implements the Provider interface
var _ Provider = (*DriveProvider)(nil)
