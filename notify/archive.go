package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Archiver stores a JSON snapshot of each published leaderboard in S3.
// Other events are ignored.
type S3Archiver struct {
	svc    s3iface.S3API
	bucket string
}

// NewS3Archiver opens an S3 session with static credentials.
func NewS3Archiver(region, accessKeyID, secretAccessKey, bucket string) (*S3Archiver, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(accessKeyID, secretAccessKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &S3Archiver{svc: s3.New(sess), bucket: bucket}, nil
}

// ArchiveKey is the object key of a competition's results snapshot.
func ArchiveKey(e Event) string {
	return fmt.Sprintf("results/%s/%d.json", e.CompetitionID, e.At.Unix())
}

func (a *S3Archiver) Notify(ctx context.Context, e Event) error {
	if e.Kind != KindResultsPublished {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	_, err = a.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(ArchiveKey(e)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload results to S3: %w", err)
	}
	return nil
}
