package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/lox/drillboard/internal/config"
	"github.com/lox/drillboard/internal/models"
)

var _ Store = (*S3)(nil)

const recordCountMeta = "record-count"

// S3 stores each well's dataset as one JSON object. A PutObject replaces
// the object atomically, which gives the Store replace semantics.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 creates an S3 store with static credentials. A custom endpoint
// switches to path-style addressing for S3-compatible services.
func NewS3(cfg config.AWSConfig, httpClient *http.Client) *S3 {
	opts := s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if httpClient != nil {
		opts.HTTPClient = httpClient
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return &S3{
		client: s3.New(opts),
		bucket: cfg.Bucket,
		prefix: "datasets",
	}
}

func (s *S3) key(wellID string) string {
	return fmt.Sprintf("%s/well-%s.json", s.prefix, url.PathEscape(wellID))
}

func (s *S3) Put(ctx context.Context, wellID string, records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", wellID, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(wellID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{recordCountMeta: strconv.Itoa(len(records))},
	})
	if err != nil {
		return fmt.Errorf("put dataset %s: %w", wellID, err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, wellID string) ([]models.Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(wellID)),
	})
	if isNotFound(err) {
		return []models.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", wellID, err)
	}
	defer out.Body.Close()

	records := []models.Record{}
	if err := json.NewDecoder(out.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", wellID, err)
	}
	return records, nil
}

func (s *S3) Contains(ctx context.Context, wellID string) (bool, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(wellID)),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("head dataset %s: %w", wellID, err)
	}
	n, err := strconv.Atoi(out.Metadata[recordCountMeta])
	if err != nil {
		// Objects written without the metadata are treated as non-empty.
		return true, nil
	}
	return n > 0, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
