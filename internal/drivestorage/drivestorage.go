// Package drivestorage implements the storage backend on Google Drive.
// Drive addresses everything by opaque file ID, so logical paths are walked
// segment by segment; the per-instance path cache keeps repeated walks off
// the network.
package drivestorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/models"
	"fjacquet/receiptvault/internal/pathutils"
	"fjacquet/receiptvault/internal/storage"
	"fjacquet/receiptvault/internal/storageerror"
)

const (
	backendName    = "drive"
	folderMimeType = "application/vnd.google-apps.folder"
	listPageSize   = 1000
)

// DriveBackend stores files in the authenticated user's Drive under a
// configurable root folder.
type DriveBackend struct {
	service       *drive.Service
	provider      models.TokenProvider
	rootFolder    string
	rootID        string
	cache         *storage.PathCache
	authenticated bool
	logger        logging.Logger
}

var _ storage.Backend = (*DriveBackend)(nil)

// tokenSource adapts the credential collaborator to oauth2.TokenSource.
type tokenSource struct {
	ctx      context.Context
	provider models.TokenProvider
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	token, err := s.provider.GetValidAccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token}, nil
}

// New creates a Drive backend. rootFolder is the name of the top-level
// folder everything lives under, e.g. "ReceiptVault".
func New(ctx context.Context, provider models.TokenProvider, rootFolder string, logger logging.Logger) (*DriveBackend, error) {
	service, err := drive.NewService(ctx, option.WithTokenSource(&tokenSource{ctx: ctx, provider: provider}))
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: "init", Err: err}
	}
	return NewWithService(service, provider, rootFolder, logger), nil
}

// NewWithService wires a backend over an existing Drive service. Used by New
// and by tests running against a stub server.
func NewWithService(service *drive.Service, provider models.TokenProvider, rootFolder string, logger logging.Logger) *DriveBackend {
	return &DriveBackend{
		service:    service,
		provider:   provider,
		rootFolder: rootFolder,
		cache:      storage.NewPathCache(),
		logger:     logger,
	}
}

func (b *DriveBackend) Name() string {
	return backendName
}

// Authenticate verifies a token can be obtained and resolves the root
// folder, creating it on first use.
func (b *DriveBackend) Authenticate(ctx context.Context) error {
	if _, err := b.provider.GetValidAccessToken(ctx); err != nil {
		return &storageerror.AuthError{Backend: backendName, Msg: "no valid access token", Err: err}
	}

	rootID, err := b.ensureChildFolder(ctx, "root", b.rootFolder)
	if err != nil {
		return err
	}
	b.rootID = rootID
	b.authenticated = true
	b.logger.Info("drive authenticated",
		logging.F(logging.FieldBackend, backendName))
	return nil
}

func (b *DriveBackend) IsAuthenticated() bool {
	return b.authenticated
}

// Logout drops session state, including every cached path mapping.
func (b *DriveBackend) Logout() error {
	b.authenticated = false
	b.rootID = ""
	b.cache.Clear()
	return nil
}

func (b *DriveBackend) CreateFolder(ctx context.Context, logicalPath string) error {
	_, err := b.resolveFolder(ctx, logicalPath, storage.ModeEnsure)
	return err
}

func (b *DriveBackend) UploadFile(ctx context.Context, data []byte, logicalPath string) error {
	folderID, err := b.resolveFolder(ctx, pathutils.Parent(logicalPath), storage.ModeEnsure)
	if err != nil {
		return err
	}
	name := pathutils.Base(logicalPath)

	existingID, err := b.findChild(ctx, folderID, name, false)
	if err != nil && !storageerror.IsNotFound(err) {
		return err
	}

	if existingID != "" {
		_, err = b.service.Files.Update(existingID, &drive.File{}).
			Media(bytes.NewReader(data)).Context(ctx).Do()
	} else {
		_, err = b.service.Files.Create(&drive.File{Name: name, Parents: []string{folderID}}).
			Media(bytes.NewReader(data)).Context(ctx).Do()
	}
	if err != nil {
		return b.classify("uploadFile", logicalPath, err)
	}
	b.logger.Debug("file uploaded",
		logging.F(logging.FieldBackend, backendName),
		logging.F(logging.FieldPath, logicalPath))
	return nil
}

func (b *DriveBackend) DownloadFile(ctx context.Context, logicalPath string) ([]byte, error) {
	fileID, err := b.resolveFile(ctx, logicalPath)
	if err != nil {
		return nil, err
	}

	resp, err := b.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, b.classify("downloadFile", logicalPath, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: "downloadFile", Path: logicalPath, Err: err}
	}
	return data, nil
}

func (b *DriveBackend) ListFiles(ctx context.Context, logicalPath string) ([]string, error) {
	folderID, err := b.resolveFolder(ctx, logicalPath, storage.ModeResolve)
	if storageerror.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	pageToken := ""
	for {
		call := b.service.Files.List().
			Q(fmt.Sprintf("'%s' in parents and mimeType != '%s' and trashed = false", folderID, folderMimeType)).
			Fields("nextPageToken, files(id, name)").
			PageSize(listPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, b.classify("listFiles", logicalPath, err)
		}
		for _, file := range list.Files {
			names = append(names, file.Name)
		}
		if list.NextPageToken == "" {
			return names, nil
		}
		pageToken = list.NextPageToken
	}
}

func (b *DriveBackend) FileExists(ctx context.Context, logicalPath string) (bool, error) {
	_, err := b.resolveFile(ctx, logicalPath)
	if storageerror.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *DriveBackend) ReadTextFile(ctx context.Context, logicalPath string) (storage.TextFileResult, error) {
	data, err := b.DownloadFile(ctx, logicalPath)
	if storageerror.IsNotFound(err) {
		return storage.NotFoundText(), nil
	}
	if err != nil {
		return storage.TextFileResult{}, err
	}
	return storage.FoundText(string(data)), nil
}

func (b *DriveBackend) WriteTextFile(ctx context.Context, logicalPath, text string) error {
	return b.UploadFile(ctx, []byte(text), logicalPath)
}

// MoveFile reparents and renames in one update call.
func (b *DriveBackend) MoveFile(ctx context.Context, fromPath, toPath string) error {
	fileID, err := b.resolveFile(ctx, fromPath)
	if err != nil {
		return err
	}
	oldParentID, err := b.resolveFolder(ctx, pathutils.Parent(fromPath), storage.ModeResolve)
	if err != nil {
		return err
	}
	newParentID, err := b.resolveFolder(ctx, pathutils.Parent(toPath), storage.ModeEnsure)
	if err != nil {
		return err
	}

	_, err = b.service.Files.Update(fileID, &drive.File{Name: pathutils.Base(toPath)}).
		AddParents(newParentID).
		RemoveParents(oldParentID).
		Context(ctx).Do()
	if err != nil {
		return b.classify("moveFile", fromPath, err)
	}
	return nil
}

// resolveFolder walks the logical path from the root folder, consulting the
// cache per segment. ModeEnsure creates what is missing.
func (b *DriveBackend) resolveFolder(ctx context.Context, logicalPath string, mode storage.ResolveMode) (string, error) {
	parentID, err := b.root(ctx)
	if err != nil {
		return "", err
	}

	for _, segment := range pathutils.Split(logicalPath) {
		if id, ok := b.cache.Get(parentID, segment); ok {
			parentID = id
			continue
		}

		var id string
		if mode == storage.ModeEnsure {
			id, err = b.ensureChildFolder(ctx, parentID, segment)
		} else {
			id, err = b.findChild(ctx, parentID, segment, true)
			if err == nil && id == "" {
				err = &storageerror.NotFoundError{Backend: backendName, Path: logicalPath}
			}
		}
		if err != nil {
			return "", err
		}
		b.cache.Put(parentID, segment, id)
		parentID = id
	}
	return parentID, nil
}

// resolveFile resolves the containing folder then looks the file up by name.
func (b *DriveBackend) resolveFile(ctx context.Context, logicalPath string) (string, error) {
	folderID, err := b.resolveFolder(ctx, pathutils.Parent(logicalPath), storage.ModeResolve)
	if err != nil {
		return "", err
	}
	id, err := b.findChild(ctx, folderID, pathutils.Base(logicalPath), false)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &storageerror.NotFoundError{Backend: backendName, Path: logicalPath}
	}
	return id, nil
}

// findChild queries for one child by name. Returns an empty ID when nothing
// matches.
func (b *DriveBackend) findChild(ctx context.Context, parentID, name string, folder bool) (string, error) {
	mimeClause := fmt.Sprintf(" and mimeType != '%s'", folderMimeType)
	if folder {
		mimeClause = fmt.Sprintf(" and mimeType = '%s'", folderMimeType)
	}
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false%s",
		escapeQuery(name), parentID, mimeClause)

	list, err := b.service.Files.List().
		Q(query).
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).Do()
	if err != nil {
		return "", b.classify("findChild", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

// ensureChildFolder finds or creates one folder under parentID. On a create
// conflict the folder is re-queried rather than trusting the failed call.
func (b *DriveBackend) ensureChildFolder(ctx context.Context, parentID, name string) (string, error) {
	id, err := b.findChild(ctx, parentID, name, true)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	created, err := b.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", b.classify("createFolder", name, err)
	}
	return created.Id, nil
}

func (b *DriveBackend) root(ctx context.Context) (string, error) {
	if b.rootID != "" {
		return b.rootID, nil
	}
	rootID, err := b.ensureChildFolder(ctx, "root", b.rootFolder)
	if err != nil {
		return "", err
	}
	b.rootID = rootID
	return rootID, nil
}

// classify maps Drive API failures onto the shared taxonomy. Drive reports
// quota exhaustion as 403 with a dedicated reason, not 507.
func (b *DriveBackend) classify(op, logicalPath string, err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		// No HTTP status to go on: assume the transport hiccuped.
		return &storageerror.RetryableError{Backend: backendName, Err: err}
	}

	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "storageQuotaExceeded", "quotaExceeded":
			return &storageerror.QuotaError{Backend: backendName, Err: apiErr}
		case "rateLimitExceeded", "userRateLimitExceeded":
			return &storageerror.RetryableError{Backend: backendName, StatusCode: apiErr.Code, Err: apiErr}
		}
	}
	return storage.ErrorFromStatus(backendName, op, logicalPath, apiErr.Code, apiErr)
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}
