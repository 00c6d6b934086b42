/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package backups dumps the rtledger schema with pg_dump and optionally ships the dump
// to S3.
package backups

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/rtledger/rtledger/config"
)

const schema = "rtledger"

// DumpFunc writes a dump of dsn to file.
type DumpFunc func(ctx context.Context, dsn, file string) error

type BackupManager struct {
	Config   *config.Configuration
	S3Client s3manageriface.UploaderAPI
	Dump     DumpFunc
}

// NewBackupManager builds a manager. An S3 uploader is only created when a bucket is
// configured.
func NewBackupManager(cfg *config.Configuration) (*BackupManager, error) {
	bm := &BackupManager{Config: cfg, Dump: pgDump}
	if cfg.Backup.S3BucketName == "" {
		return bm, nil
	}

	awsCfg := &aws.Config{
		Region: aws.String(cfg.Backup.S3Region),
	}
	if cfg.Backup.AwsAccessKeyId != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.Backup.AwsAccessKeyId, cfg.Backup.AwsSecretAccessKey, "")
	}
	if cfg.Backup.S3Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Backup.S3Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	bm.S3Client = s3manager.NewUploader(sess)
	return bm, nil
}

// BackupToDisk checks the database is reachable, then dumps the schema into
// <dir>/<YYYY-MM-DD>/rtledger-<HHMMSS>-backup.sql and returns the file path.
func (bm *BackupManager) BackupToDisk(ctx context.Context) (string, error) {
	dsn := bm.Config.DataSource.Dns

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return "", err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return "", fmt.Errorf("database unreachable: %w", err)
	}

	var dbSize string
	if err := db.QueryRowContext(ctx, "SELECT pg_size_pretty(pg_database_size(current_database()))").Scan(&dbSize); err == nil {
		logrus.WithField("size", dbSize).Info("backing up database")
	}

	now := time.Now()
	dir := filepath.Join(bm.Config.Backup.Dir, now.Format("2006-01-02"))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}

	file := filepath.Join(dir, fmt.Sprintf("%s-%s-backup.sql", schema, now.Format("150405")))
	if err := bm.Dump(ctx, dsn, file); err != nil {
		return "", err
	}

	logrus.WithField("file", file).Info("backup written")
	return file, nil
}

// BackupToS3 dumps to disk, zips the dump and uploads the archive. The local zip is
// removed once uploaded; the dump itself stays in the backup dir.
func (bm *BackupManager) BackupToS3(ctx context.Context) (string, error) {
	if bm.S3Client == nil {
		return "", fmt.Errorf("s3 bucket is not configured")
	}

	file, err := bm.BackupToDisk(ctx)
	if err != nil {
		return "", err
	}
	return bm.upload(ctx, file)
}

func (bm *BackupManager) upload(ctx context.Context, file string) (string, error) {
	archive := file + ".zip"
	if err := zipFile(file, archive); err != nil {
		return "", err
	}
	defer os.Remove(archive)

	f, err := os.Open(archive)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := filepath.ToSlash(filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(archive)))
	_, err = bm.S3Client.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(bm.Config.Backup.S3BucketName),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	logrus.WithFields(logrus.Fields{"bucket": bm.Config.Backup.S3BucketName, "key": key}).Info("backup uploaded")
	return key, nil
}

func zipFile(src, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	writer := zip.NewWriter(out)

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := writer.Create(filepath.Base(src))
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		return err
	}
	return writer.Close()
}

func pgDump(ctx context.Context, dsn, file string) error {
	cmd := exec.CommandContext(ctx, "pg_dump", "--dbname", dsn, "--schema", schema, "--file", file)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pg_dump failed: %w: %s", err, stderr.String())
	}
	return nil
}
