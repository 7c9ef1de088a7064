package s3store

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

type objectFake struct {
	objects map[string][]byte
	types   map[string]string
}

func newObjectFake() *objectFake {
	return &objectFake{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *objectFake) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	raw, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = raw
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *objectFake) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	raw, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(raw))}, nil
}

func (f *objectFake) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestStorageRoundTrip(t *testing.T) {
	fake := newObjectFake()
	s := &Storage{client: fake, bucket: "uploads"}
	ctx := context.Background()
	key := "acme/caso-1/uploads/peticao.pdf"

	if err := s.Save(ctx, key, strings.NewReader("%PDF")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if fake.types[key] != "application/pdf" {
		t.Fatalf("unexpected content type %q", fake.types[key])
	}
	rc, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "%PDF" {
		t.Fatalf("unexpected body %q", body)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Open(ctx, key); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
