package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"photark/internal/archive"
)

// S3Config holds the settings for an S3-compatible object store.
// Endpoint is optional; when set (minio, wasabi, backblaze) the client uses
// path-style addressing against it.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Provider stores archive files in an S3-compatible object store.
// Folders are represented as zero-byte "<path>/" marker objects plus the
// implicit prefixes of the objects below them.
type S3Provider struct {
	id       string
	client   *s3.Client
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
	endpoint string
}

// NewS3Provider creates a provider for the given bucket. The client is built
// once and is safe for concurrent use.
func NewS3Provider(ctx context.Context, id string, cfg S3Config) (*S3Provider, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 backend requires a bucket")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Provider{
		id:       id,
		client:   client,
		uploader: s3manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		endpoint: cfg.Endpoint,
	}, nil
}

func (p *S3Provider) ID() string { return p.id }

func (p *S3Provider) opErr(op string, err error) error {
	return &archive.OpError{Backend: p.id, Op: op, Err: err}
}

// key maps a backend-relative path onto an object key under the prefix.
func (p *S3Provider) key(relPath string) string {
	return joinPath(p.prefix, relPath)
}

// folderKey is the zero-byte marker key for a folder.
func (p *S3Provider) folderKey(relPath string) string {
	return p.key(relPath) + "/"
}

func (p *S3Provider) ValidateConnection(ctx context.Context) bool {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(p.bucket),
	})
	return err == nil
}

func (p *S3Provider) CreateFolder(ctx context.Context, name, parentPath string) (*FolderInfo, error) {
	relPath := joinPath(parentPath, name)

	exists, err := p.FolderExists(ctx, relPath)
	if err != nil {
		return nil, p.opErr("createFolder", err)
	}
	if !exists {
		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(p.bucket),
			Key:           aws.String(p.folderKey(relPath)),
			Body:          bytes.NewReader(nil),
			ContentLength: aws.Int64(0),
		})
		if err != nil {
			return nil, p.opErr("createFolder", err)
		}
	}
	return &FolderInfo{ID: relPath, Name: name, Path: relPath}, nil
}

func (p *S3Provider) DeleteFolder(ctx context.Context, relPath string) error {
	prefix := p.folderKey(relPath)
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return p.opErr("deleteFolder", err)
		}
		for _, obj := range page.Contents {
			_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(p.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return p.opErr("deleteFolder", err)
			}
		}
	}
	return nil
}

func (p *S3Provider) GetFolderInfo(ctx context.Context, relPath string) (*FolderInfo, error) {
	exists, err := p.FolderExists(ctx, relPath)
	if err != nil {
		return nil, p.opErr("getFolderInfo", err)
	}
	if !exists {
		return nil, p.opErr("getFolderInfo", fmt.Errorf("folder not found: %s", relPath))
	}
	return &FolderInfo{ID: relPath, Name: path.Base(relPath), Path: relPath}, nil
}

func (p *S3Provider) ListFolders(ctx context.Context, parentPath string) ([]FolderInfo, error) {
	prefix := ""
	if parentPath != "" {
		prefix = p.folderKey(parentPath)
	} else if p.prefix != "" {
		prefix = p.prefix + "/"
	}

	out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return nil, p.opErr("listFolders", err)
	}

	var folders []FolderInfo
	for _, cp := range out.CommonPrefixes {
		key := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
		relPath := p.stripPrefix(key)
		folders = append(folders, FolderInfo{ID: relPath, Name: path.Base(relPath), Path: relPath})
	}
	return folders, nil
}

// ListTree enumerates every folder marker under root in one paginated listing.
func (p *S3Provider) ListTree(ctx context.Context, root string) ([]FolderInfo, error) {
	prefix := ""
	if root != "" {
		prefix = p.folderKey(root)
	} else if p.prefix != "" {
		prefix = p.prefix + "/"
	}

	var folders []FolderInfo
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, p.opErr("listTree", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, "/") {
				continue
			}
			relPath := p.stripPrefix(strings.TrimSuffix(key, "/"))
			folders = append(folders, FolderInfo{ID: relPath, Name: path.Base(relPath), Path: relPath})
		}
	}
	return folders, nil
}

func (p *S3Provider) UploadFile(ctx context.Context, data []byte, filename, mimeType, folderPath string, metadata map[string]string) (*UploadResult, error) {
	relPath := joinPath(folderPath, filename)
	key := p.key(relPath)

	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if mimeType != "" {
		input.ContentType = aws.String(mimeType)
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}

	if _, err := p.uploader.Upload(ctx, input); err != nil {
		return nil, p.opErr("uploadFile", err)
	}

	return &UploadResult{
		FileID: key,
		URL:    p.FileURL(relPath),
		Path:   relPath,
		Size:   int64(len(data)),
	}, nil
}

func (p *S3Provider) DeleteFile(ctx context.Context, relPath string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(relPath)),
	})
	if err != nil {
		return p.opErr("deleteFile", err)
	}
	return nil
}

func (p *S3Provider) GetFileInfo(ctx context.Context, relPath string) (*FileInfo, error) {
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(relPath)),
	})
	if err != nil {
		return nil, p.opErr("getFileInfo", err)
	}

	info := &FileInfo{
		ID:       p.key(relPath),
		Name:     path.Base(relPath),
		Path:     relPath,
		Size:     aws.ToInt64(out.ContentLength),
		MimeType: aws.ToString(out.ContentType),
	}
	if info.MimeType == "" {
		info.MimeType = mime.TypeByExtension(path.Ext(relPath))
	}
	if out.LastModified != nil {
		info.Modified = *out.LastModified
	}
	return info, nil
}

func (p *S3Provider) ListFiles(ctx context.Context, folderPath string, pageSize int) ([]FileInfo, error) {
	prefix := ""
	if folderPath != "" {
		prefix = p.folderKey(folderPath)
	} else if p.prefix != "" {
		prefix = p.prefix + "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}
	if pageSize > 0 {
		input.MaxKeys = aws.Int32(int32(pageSize))
	}

	out, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, p.opErr("listFiles", err)
	}

	var files []FileInfo
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		if strings.HasSuffix(key, "/") {
			continue // folder marker
		}
		relPath := p.stripPrefix(key)
		fi := FileInfo{
			ID:       key,
			Name:     path.Base(key),
			Path:     relPath,
			Size:     aws.ToInt64(obj.Size),
			MimeType: mime.TypeByExtension(path.Ext(key)),
		}
		if obj.LastModified != nil {
			fi.Modified = *obj.LastModified
		}
		files = append(files, fi)
	}
	return files, nil
}

// UpdateFileMetadata replaces object metadata via a self-copy.
func (p *S3Provider) UpdateFileMetadata(ctx context.Context, relPath string, metadata map[string]string) error {
	key := p.key(relPath)
	_, err := p.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(p.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(p.bucket + "/" + key),
		Metadata:          metadata,
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		return p.opErr("updateFileMetadata", err)
	}
	return nil
}

func (p *S3Provider) FileExists(ctx context.Context, relPath string) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(relPath)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, p.opErr("fileExists", err)
	}
	return true, nil
}

func (p *S3Provider) FolderExists(ctx context.Context, relPath string) (bool, error) {
	out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		Prefix:  aws.String(p.folderKey(relPath)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, p.opErr("folderExists", err)
	}
	return aws.ToInt32(out.KeyCount) > 0, nil
}

func (p *S3Provider) FileURL(relPath string) string {
	key := p.key(relPath)
	if p.endpoint != "" {
		return strings.TrimSuffix(p.endpoint, "/") + "/" + p.bucket + "/" + key
	}
	return "https://" + p.bucket + ".s3.amazonaws.com/" + key
}

func (p *S3Provider) FileBuffer(ctx context.Context, relPath string) ([]byte, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(relPath)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, p.opErr("getFileBuffer", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, p.opErr("getFileBuffer", err)
	}
	return data, nil
}

func (p *S3Provider) stripPrefix(key string) string {
	if p.prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, p.prefix), "/")
}

// isNotFound reports whether an S3 error means the object does not exist.
// HeadObject returns NotFound rather than NoSuchKey.
func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

// Compile-time checks that S3Provider implements the provider interfaces
var (
	_ Provider   = (*S3Provider)(nil)
	_ TreeLister = (*S3Provider)(nil)
)
