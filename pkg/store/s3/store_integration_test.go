//go:build integration

package s3

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/imgloader/pkg/dataurl"
	"github.com/marmos91/imgloader/pkg/store"
	"github.com/marmos91/imgloader/pkg/store/storetest"
)

// localstackEndpoint starts a Localstack container, or reuses the one named
// by LOCALSTACK_ENDPOINT.
func localstackEndpoint(t *testing.T) string {
	t.Helper()
	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		return endpoint
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "localstack/localstack:3.0",
			ExposedPorts: []string{"4566/tcp"},
			Env: map[string]string{
				"SERVICES":              "s3",
				"DEFAULT_REGION":        "us-east-1",
				"EAGER_SERVICE_LOADING": "1",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4566/tcp"),
				wait.ForHTTP("/_localstack/health").
					WithPort("4566/tcp").
					WithStartupTimeout(60*time.Second),
			),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start localstack container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func newBucketStore(t *testing.T, endpoint string) *Store {
	t.Helper()
	ctx := context.Background()

	cfg := Config{
		Bucket:          "imgloader-" + uuid.NewString()[:8],
		Region:          "us-east-1",
		Endpoint:        endpoint,
		KeyPrefix:       "images/",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
	}
	s, err := NewFromConfig(ctx, cfg)
	require.NoError(t, err)

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)})
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestS3Conformance(t *testing.T) {
	endpoint := localstackEndpoint(t)

	storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
		return newBucketStore(t, endpoint)
	})
}

func TestS3StoresDecodedImages(t *testing.T) {
	s := newBucketStore(t, localstackEndpoint(t))
	ctx := context.Background()

	entry := dataurl.Encode("image/gif", []byte("GIF89a-fake"))
	require.NoError(t, s.Put(ctx, "https://x/a.gif", entry))

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey("https://x/a.gif")),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/gif", aws.ToString(head.ContentType))
	assert.Equal(t, int64(len("GIF89a-fake")), aws.ToInt64(head.ContentLength))

	got, err := s.Get(ctx, "https://x/a.gif")
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}
