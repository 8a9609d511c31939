package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config - параметры бакета для хранения изображений.
type S3Config struct {
	Region   string
	Bucket   string
	Endpoint string
	// PublicURL - префикс публичных ссылок. Пустой - берется Location из ответа загрузки.
	PublicURL string
	Prefix    string
}

// S3Host загружает изображения в S3-совместимое хранилище.
type S3Host struct {
	uploader *manager.Uploader
	cfg      S3Config
}

// NewS3Host создает хост из стандартной цепочки учетных данных AWS.
func NewS3Host(ctx context.Context, cfg S3Config) (*S3Host, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	if cfg.Prefix == "" {
		cfg.Prefix = "images/"
	}
	return &S3Host{uploader: manager.NewUploader(client), cfg: cfg}, nil
}

func (h *S3Host) Upload(ctx context.Context, data []byte) (*domain.ImageRef, error) {
	contentType := http.DetectContentType(data)
	key := h.cfg.Prefix + uuid.NewString() + extensionFor(contentType)

	out, err := h.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "upload", key, err)
	}
	if h.cfg.PublicURL != "" {
		return domain.RemoteImage(strings.TrimRight(h.cfg.PublicURL, "/") + "/" + key), nil
	}
	return domain.RemoteImage(out.Location), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
