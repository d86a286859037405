package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/types/workout"
)

const s3UploadTimeout = 10 * time.Second

// S3 mirrors finalized workout records to an S3 bucket as JSON objects,
// keyed by user and start time. The AWS library configures itself from
// environment variables.
type S3 struct {
	Bucket string
	logger *slog.Logger
}

func NewS3(bucket string) *S3 {
	if bucket == "" {
		bucket = params.AWS_BUCKETNAME
	}
	return &S3{
		Bucket: bucket,
		logger: slog.With("d", "publish.s3"),
	}
}

func (p *S3) key(w *workout.Workout) string {
	return fmt.Sprintf("workouts/%s/%s-%s.json",
		w.UserID, w.Start.UTC().Format("2006-01-02T150405Z"), w.ID)
}

func (p *S3) Publish(ctx context.Context, w *workout.Workout) error {
	if p.Bucket == "" {
		return fmt.Errorf("s3: no bucket configured")
	}
	body, err := json.Marshal(w)
	if err != nil {
		return err
	}

	// All clients require a Session. The Session provides the client with
	// shared configuration such as region, endpoint, and credentials.
	sess := session.Must(session.NewSession())
	svc := s3.New(sess)

	ctx, cancel := context.WithTimeout(ctx, s3UploadTimeout)
	defer cancel()

	key := p.key(w)
	_, err = svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == request.CanceledErrorCode {
			p.logger.Error("S3 upload canceled due to timeout", "error", err)
		} else {
			p.logger.Error("Failed to upload workout", "error", err)
		}
		return err
	}

	p.logger.Info("Uploaded workout to S3", "bucket", p.Bucket, "key", key)
	return nil
}
