package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/abellodlm/drewsigloo/pkg"
	"github.com/abellodlm/drewsigloo/pkg/configuration"
	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

const venueName = "talos"

// Archiver uploads finished orders to S3 and optionally submits a Glue
// job to ingest them into the data lake.
type Archiver struct {
	S3        pkg.S3Access
	Glue      pkg.GlueAccess
	Bucket    string
	Prefix    string
	Job       string
	Operation string
}

// New returns nil when no archive bucket is configured.
func New(config *configuration.AppConfig, s3Access pkg.S3Access, glueAccess pkg.GlueAccess) *Archiver {
	if config.ArchiveBucket == "" {
		return nil
	}

	return &Archiver{
		S3:        s3Access,
		Glue:      glueAccess,
		Bucket:    config.ArchiveBucket,
		Prefix:    config.ArchivePrefix,
		Job:       config.GlueArchiveJob,
		Operation: config.GlueArchiveOperation,
	}
}

// Key is the object key of an archived order.
func (a *Archiver) Key(orderID string) string {
	key := fmt.Sprintf("venue=%s/%s.json", venueName, orderID)
	if a.Prefix == "" {
		return key
	}
	return a.Prefix + "/" + key
}

// Archive writes the order and, when a job is configured, starts its ingestion.
func (a *Archiver) Archive(ctx context.Context, order orders.TrackedOrder) error {
	body, err := json.Marshal(order)
	if err != nil {
		return err
	}

	key := a.Key(order.OrderID)

	logrus.WithFields(logrus.Fields{
		"orderId":  order.OrderID,
		"s3bucket": a.Bucket,
		"s3path":   key,
	}).Info("Uploading finished order to S3")

	_, err = a.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &a.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	if a.Job == "" || a.Glue == nil {
		return nil
	}

	// The job receives the full object path, so the venue partition has to
	// be passed as an explicit column.
	additionalColumns, err := json.Marshal(map[string]string{"venue": venueName})
	if err != nil {
		return err
	}

	jobArguments := map[string]string{
		"--input_path":         fmt.Sprintf("s3a://%s/%s", a.Bucket, key),
		"--write_operation":    a.Operation,
		"--additional_columns": string(additionalColumns),
	}

	logrus.WithFields(logrus.Fields{
		"glueJobName":    a.Job,
		"inputPath":      jobArguments["--input_path"],
		"writeOperation": a.Operation,
	}).Info("Submitting Glue Job")

	submitted, err := a.Glue.StartJobRun(ctx, &glue.StartJobRunInput{
		JobName:   &a.Job,
		Arguments: jobArguments,
	})
	if err != nil {
		return fmt.Errorf("start %s: %w", a.Job, err)
	}

	if submitted.JobRunId != nil {
		logrus.WithFields(logrus.Fields{
			"orderId":   order.OrderID,
			"glueJobId": *submitted.JobRunId,
		}).Info("Glue Job Submitted")
	}

	return nil
}
