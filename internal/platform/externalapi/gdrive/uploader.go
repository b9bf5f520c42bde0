// Package gdrive mirrors partition directories to Google Drive.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	rootFolderID   = "root"
)

// ErrFolderNotFound is returned when a segment of the parent path does not exist.
var ErrFolderNotFound = errors.New("drive folder not found")

// driveFiles is the subset of the Drive files API the uploader needs.
type driveFiles interface {
	FindFolder(ctx context.Context, name, parentID string) (id string, found bool, err error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	UploadFile(ctx context.Context, name, parentID string, content io.Reader) (string, error)
}

// Uploader copies local directory trees under an existing Drive folder path.
type Uploader struct {
	files driveFiles
}

// NewUploader authenticates with a service account credentials file.
func NewUploader(ctx context.Context, credentialsFile string) (*Uploader, error) {
	svc, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsFile), option.WithScopes(drive.DriveScope))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Uploader{files: &apiFiles{svc: svc}}, nil
}

// Result describes one uploaded tree.
type Result struct {
	FolderID string
	Files    int
	Folders  int
}

// UploadDir resolves parentPath (slash separated, from My Drive root), creates
// a folder named after localDir inside it and uploads localDir recursively.
// The parent path must already exist.
func (u *Uploader) UploadDir(ctx context.Context, localDir, parentPath string) (Result, error) {
	info, err := os.Stat(localDir)
	if err != nil {
		return Result{}, fmt.Errorf("local directory: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("%s is not a directory", localDir)
	}

	parentID, err := u.ResolvePath(ctx, parentPath)
	if err != nil {
		return Result{}, err
	}

	var res Result
	res.FolderID, err = u.uploadTree(ctx, localDir, parentID, &res)
	if err != nil {
		return res, err
	}
	slog.Info("uploaded directory to drive", "dir", localDir, "parent", parentPath, "files", res.Files, "folders", res.Folders)
	return res, nil
}

// ResolvePath walks parentPath segment by segment and returns the folder ID.
func (u *Uploader) ResolvePath(ctx context.Context, parentPath string) (string, error) {
	current := rootFolderID
	for _, name := range strings.Split(parentPath, "/") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, found, err := u.files.FindFolder(ctx, name, current)
		if err != nil {
			return "", fmt.Errorf("find folder %q: %w", name, err)
		}
		if !found {
			return "", fmt.Errorf("%q in %q: %w", name, parentPath, ErrFolderNotFound)
		}
		current = id
	}
	return current, nil
}

func (u *Uploader) uploadTree(ctx context.Context, localDir, parentID string, res *Result) (string, error) {
	name := filepath.Base(localDir)
	folderID, err := u.files.CreateFolder(ctx, name, parentID)
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	res.Folders++

	entries, err := os.ReadDir(localDir)
	if err != nil {
		return folderID, err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return folderID, err
		}
		path := filepath.Join(localDir, e.Name())
		switch {
		case e.IsDir():
			if _, err := u.uploadTree(ctx, path, folderID, res); err != nil {
				return folderID, err
			}
		case e.Type().IsRegular():
			if err := u.uploadFile(ctx, path, folderID); err != nil {
				return folderID, err
			}
			res.Files++
		}
	}
	return folderID, nil
}

func (u *Uploader) uploadFile(ctx context.Context, path, parentID string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := u.files.UploadFile(ctx, filepath.Base(path), parentID, f); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	slog.Debug("uploaded file", "path", path)
	return nil
}

// apiFiles implements driveFiles with the Drive v3 API.
type apiFiles struct {
	svc *drive.Service
}

func (a *apiFiles) FindFolder(ctx context.Context, name, parentID string) (string, bool, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false and mimeType = '%s'",
		escapeQuery(name), escapeQuery(parentID), folderMimeType)
	list, err := a.svc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", false, err
	}
	if len(list.Files) == 0 {
		return "", false, nil
	}
	return list.Files[0].Id, true, nil
}

func (a *apiFiles) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	f, err := a.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}

func (a *apiFiles) UploadFile(ctx context.Context, name, parentID string, content io.Reader) (string, error) {
	f, err := a.svc.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{parentID},
	}).Media(content).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}

// escapeQuery escapes a literal for a Drive query string.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
