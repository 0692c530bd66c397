package objectstore

import (
	"context"
	"os"
	"time"

	appconfig "dormpool/backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Service issues presigned S3 URLs for message attachments. Clients upload
// directly to the bucket and the stored message carries only the object key.
type Service struct {
	Client *s3.Client
	Bucket string
}

func NewService(ctx context.Context) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		return nil, err
	}
	return &Service{
		Client: s3.NewFromConfig(cfg),
		Bucket: os.Getenv("S3_BUCKET_NAME"),
	}, nil
}

// UploadURL returns a presigned PUT URL and the key the object will live
// under. The timestamp prefix keeps concurrent uploads of the same file
// name from colliding.
func (s *Service) UploadURL(fileName, contentType string) (string, string, error) {
	key := appconfig.AttachmentKeyPrefix + time.Now().Format("20060102150405") + "-" + fileName
	params := &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	presigner := s3.NewPresignClient(s.Client)
	presigned, err := presigner.PresignPutObject(context.TODO(), params, s3.WithPresignExpires(appconfig.SignedURLTTL))
	if err != nil {
		return "", "", err
	}
	return presigned.URL, key, nil
}

// ReadURL returns a presigned GET URL for a stored attachment key.
func (s *Service) ReadURL(key string) (string, error) {
	params := &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}
	presigner := s3.NewPresignClient(s.Client)
	presigned, err := presigner.PresignGetObject(context.TODO(), params, s3.WithPresignExpires(appconfig.SignedURLTTL))
	if err != nil {
		return "", err
	}
	return presigned.URL, nil
}
