package mirror

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/allureops/uploadoor/pkg/config"
)

const (
	archiveObjectName  = "allure-results.zip"
	metadataObjectName = "metadata.json"
	runStampFormat     = "20060102T150405Z"
)

// s3Uploader implements Uploader for S3-compatible storage.
type s3Uploader struct {
	log    logrus.FieldLogger
	cfg    *config.MirrorConfig
	client *s3.Client
}

// Ensure interface compliance.
var _ Uploader = (*s3Uploader)(nil)

// NewS3Uploader creates a new S3 uploader from the given configuration.
func NewS3Uploader(
	log logrus.FieldLogger,
	cfg *config.MirrorConfig,
) (Uploader, error) {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	client := s3.New(s3.Options{}, opts...)

	return &s3Uploader{
		log:    log.WithField("component", "s3-mirror"),
		cfg:    cfg,
		client: client,
	}, nil
}

// Preflight verifies S3 connectivity by writing a small test object.
func (u *s3Uploader) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("uploadoor write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(".uploadoor-write-test"),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", u.cfg.Bucket, err)
	}

	return nil
}

// MirrorRun uploads the run artifacts: the archive and metadata document
// first, then every raw result file, with puts bounded by the configured
// concurrency.
func (u *s3Uploader) MirrorRun(
	ctx context.Context,
	project string,
	resultsDir string,
	archive []byte,
	metaJSON []byte,
) error {
	stamp := time.Now().UTC().Format(runStampFormat)
	prefix := u.resolvePrefix(project, stamp)

	if err := u.putBytes(ctx, prefix+"/"+archiveObjectName,
		"application/zip", archive); err != nil {
		return fmt.Errorf("uploading archive: %w", err)
	}

	if err := u.putBytes(ctx, prefix+"/"+metadataObjectName,
		"application/json", metaJSON); err != nil {
		return fmt.Errorf("uploading metadata: %w", err)
	}

	files, err := collectFiles(resultsDir)
	if err != nil {
		return fmt.Errorf("walking directory %s: %w", resultsDir, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.Concurrency)

	for _, relPath := range files {
		relPath := relPath
		g.Go(func() error {
			key := prefix + "/files/" + filepath.ToSlash(relPath)

			if err := u.uploadFile(gctx, filepath.Join(resultsDir, relPath), key); err != nil {
				return fmt.Errorf("uploading %s: %w", relPath, err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	u.log.WithFields(logrus.Fields{
		"files":  len(files),
		"bucket": u.cfg.Bucket,
		"prefix": prefix,
	}).Info("Mirror completed")

	return nil
}

// collectFiles returns the relative paths of all regular files under dir.
func collectFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		files = append(files, relPath)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// putBytes uploads an in-memory object.
func (u *s3Uploader) putBytes(
	ctx context.Context, key, contentType string, data []byte,
) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	u.applyObjectSettings(input)

	_, err := u.client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("PutObject: %w", err)
	}

	return nil
}

// uploadFile uploads a single file from disk.
func (u *s3Uploader) uploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = f.Close() }()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(detectContentType(localPath)),
	}

	u.applyObjectSettings(input)

	u.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": u.cfg.Bucket,
	}).Debug("Uploading file")

	_, err = u.client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("PutObject: %w", err)
	}

	return nil
}

// applyObjectSettings sets the optional storage class and ACL.
func (u *s3Uploader) applyObjectSettings(input *s3.PutObjectInput) {
	if u.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(u.cfg.StorageClass)
	}

	if u.cfg.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(u.cfg.ACL)
	}
}

// resolvePrefix builds the S3 key prefix for one mirrored run.
func (u *s3Uploader) resolvePrefix(project, stamp string) string {
	prefix := u.cfg.Prefix
	if prefix == "" {
		prefix = config.DefaultMirrorPrefix
	}

	return strings.TrimRight(prefix, "/") + "/" + project + "/" + stamp
}

// detectContentType returns a MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
