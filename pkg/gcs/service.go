package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"go.uber.org/zap"
)

type GCSClient struct {
	client     *storage.Client
	bucketName string
}

func NewGCSClient(ctx context.Context, bucketName string) (*GCSClient, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %v", err)
	}

	return &GCSClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

func (g *GCSClient) Upload(ctx context.Context, objectPath string, content io.Reader) (string, error) {
	bucket := g.client.Bucket(g.bucketName)
	obj := bucket.Object(objectPath)

	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := io.Copy(writer, content); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to copy content: %v", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %v", err)
	}

	return fmt.Sprintf("gs://%s/%s", g.bucketName, objectPath), nil
}

// ArchiveWorkflow stores the JSON form of a submitted workflow spec under workflows/<clientID>/
func (g *GCSClient) ArchiveWorkflow(ctx context.Context, clientID string, spec interface{}) (string, error) {
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow spec: %w", err)
	}

	uri, err := g.Upload(ctx, WorkflowObjectPath(clientID, time.Now()), bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	logger.Info(ctx, "Workflow spec archived", zap.String("client_id", clientID), zap.String("uri", uri))
	return uri, nil
}

// WorkflowObjectPath returns the object name used for a workflow archived at t
func WorkflowObjectPath(clientID string, t time.Time) string {
	return fmt.Sprintf("workflows/%s/%s.json", clientID, t.UTC().Format("20060102T150405.000Z"))
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}
