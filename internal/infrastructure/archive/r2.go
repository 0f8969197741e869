package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"orderdesk-backend/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archive stores consignment receipts as JSON objects in a Cloudflare R2
// bucket. A nil *R2Archive is valid and stores nothing.
type R2Archive struct {
	client        objectPutter
	bucketName    string
	uploadTimeout time.Duration
}

// NewR2Archive returns nil when the bucket is not configured.
func NewR2Archive(ctx context.Context, accountID, accessKey, secretKey, bucketName string, uploadTimeout time.Duration) (*R2Archive, error) {
	if accountID == "" || bucketName == "" {
		return nil, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID))
		o.UsePathStyle = true
	})

	return newR2Archive(client, bucketName, uploadTimeout), nil
}

func newR2Archive(client objectPutter, bucketName string, uploadTimeout time.Duration) *R2Archive {
	if uploadTimeout <= 0 {
		uploadTimeout = 10 * time.Second
	}
	return &R2Archive{
		client:        client,
		bucketName:    bucketName,
		uploadTimeout: uploadTimeout,
	}
}

// Store writes one receipt under receipts/<date>/<order>/.
func (a *R2Archive) Store(ctx context.Context, receipt domain.ConsignmentReceipt) error {
	if a == nil {
		return nil
	}

	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.uploadTimeout)
	defer cancel()

	_, err = a.client.PutObject(uploadCtx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucketName),
		Key:         aws.String(receiptKey(receipt)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload receipt to R2: %w", err)
	}
	return nil
}

func receiptKey(r domain.ConsignmentReceipt) string {
	return fmt.Sprintf("receipts/%s/%s/%s-%s-%d.json",
		r.RecordedAt.UTC().Format("2006/01/02"),
		r.OrderID,
		r.Action,
		r.TrackingCode,
		r.RecordedAt.UnixNano(),
	)
}
