package secrets

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

type stubClient struct {
	accessFn func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	calls    int
}

func (s *stubClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls++
	return s.accessFn(ctx, req)
}

func (s *stubClient) Close() error { return nil }

func payloadResponse(value string) *secretmanagerpb.AccessSecretVersionResponse {
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}
}

func TestResolveSecretFullReference(t *testing.T) {
	client := &stubClient{
		accessFn: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			if req.Name != "projects/p/secrets/signing/versions/3" {
				t.Fatalf("unexpected resource name %q", req.Name)
			}
			return payloadResponse("hunter2"), nil
		},
	}
	fetcher, err := NewFetcher(context.Background(), WithClient(client))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	value, err := fetcher.ResolveSecret(context.Background(), "secret://projects/p/secrets/signing/versions/3")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if value != "hunter2" {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestResolveSecretShortReferenceUsesDefaultProject(t *testing.T) {
	client := &stubClient{
		accessFn: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			if req.Name != "projects/apexflow/secrets/signing/versions/latest" {
				t.Fatalf("unexpected resource name %q", req.Name)
			}
			return payloadResponse("value"), nil
		},
	}
	fetcher, err := NewFetcher(context.Background(), WithClient(client), WithDefaultProject("apexflow"))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	if _, err := fetcher.ResolveSecret(context.Background(), "secret://signing"); err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
}

func TestResolveSecretCachesValue(t *testing.T) {
	client := &stubClient{
		accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return payloadResponse("cached"), nil
		},
	}
	fetcher, err := NewFetcher(context.Background(), WithClient(client), WithDefaultProject("apexflow"))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := fetcher.ResolveSecret(context.Background(), "secret://signing"); err != nil {
			t.Fatalf("ResolveSecret returned error: %v", err)
		}
	}
	if client.calls != 1 {
		t.Fatalf("expected a single backend call, got %d", client.calls)
	}
}

func TestResolveSecretInvalidReference(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(), WithClient(&stubClient{}))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	for _, ref := range []string{"", "vault://x", "secret://", "secret://projects/p/other/x", "secret://a/b"} {
		if _, err := fetcher.ResolveSecret(context.Background(), ref); !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("ref %q: expected ErrInvalidReference, got %v", ref, err)
		}
	}
}
