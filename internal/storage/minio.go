package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arzan03/natours/internal/config"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const (
	UserFolder = "img/users"
	TourFolder = "img/tours"
)

// ImageStore keeps processed images; callers store only the returned file name
type ImageStore interface {
	Put(ctx context.Context, folder, name string, data []byte, contentType string) error
}

type Minio struct {
	client *minio.Client
	bucket string
}

// InitMinio connects to MinIO and creates the image bucket if it does not exist
func InitMinio(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		log.Warn("Failed to check bucket existence", zap.String("bucket", cfg.Bucket), zap.Error(err))
	} else if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			log.Warn("Failed to create bucket", zap.String("bucket", cfg.Bucket), zap.Error(err))
		} else {
			log.Info("Created bucket", zap.String("bucket", cfg.Bucket))
		}
	}

	log.Info("Connected to MinIO", zap.String("endpoint", cfg.Endpoint))
	return &Minio{client: client, bucket: cfg.Bucket}, nil
}

func (m *Minio) Put(ctx context.Context, folder, name string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, folder+"/"+name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

// ImageName builds names such as user-<id>-<unique>.jpeg or tour-<id>-<unique>-cover.jpeg
func ImageName(kind, ownerID, suffix string) string {
	name := fmt.Sprintf("%s-%s-%s", kind, ownerID, uuid.NewString()[:8])
	if suffix != "" {
		name += "-" + suffix
	}
	return name + ".jpeg"
}

// Memory keeps uploads in a map
type Memory struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{Objects: map[string][]byte{}}
}

func (m *Memory) Put(_ context.Context, folder, name string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[folder+"/"+name] = data
	return nil
}
