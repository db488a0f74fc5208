package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mcmassia/nexusdrive/internal/apperr"
)

// fakeS3 keeps objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, _ := io.ReadAll(in.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	out := &s3.ListObjectsV2Output{}
	for k, v := range f.objects {
		if len(k) < len(aws.ToString(in.Prefix)) || k[:len(aws.ToString(in.Prefix))] != aws.ToString(in.Prefix) {
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(v))),
			LastModified: aws.Time(now),
		})
	}
	return out, nil
}

func TestS3_PutGetDelete(t *testing.T) {
	fake := newFakeS3()
	s := newS3WithClient(fake, "assets", "/imports/")
	ctx := context.Background()

	if err := s.Put(ctx, "pic_1.png", []byte("png")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := fake.objects["imports/pic_1.png"]; !ok {
		t.Fatalf("object key not prefixed: %v", fake.objects)
	}
	if ct := fake.types["imports/pic_1.png"]; ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}

	got, err := s.Get(ctx, "pic_1.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "png" {
		t.Errorf("content = %q", got)
	}

	if err := s.Delete(ctx, "pic_1.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "pic_1.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "pic_1.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
}

func TestS3_List(t *testing.T) {
	fake := newFakeS3()
	s := newS3WithClient(fake, "assets", "p")
	ctx := context.Background()
	_ = s.Put(ctx, "b_2.pdf", []byte("bb"))
	_ = s.Put(ctx, "a_1.pdf", []byte("a"))
	fake.objects["other/x.pdf"] = []byte("x")

	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || items[0].Name != "a_1.pdf" || items[1].Size != 2 {
		t.Errorf("items = %+v", items)
	}
}

func TestS3_PutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("boom")
	s := newS3WithClient(fake, "assets", "")
	if err := s.Put(context.Background(), "x.png", []byte("x")); err == nil {
		t.Error("expected put error")
	}
}

func TestNewS3_UsesConfigSeams(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })

	fake := newFakeS3()
	var gotEndpoint string
	var gotPathStyle bool
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		o := &s3.Options{}
		for _, fn := range optFns {
			fn(o)
		}
		gotEndpoint = aws.ToString(o.BaseEndpoint)
		gotPathStyle = o.UsePathStyle
		return fake
	}

	s, err := NewS3(context.Background(), S3Options{
		Bucket:    "assets",
		Region:    "us-east-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		PathStyle: true,
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	if gotEndpoint != "http://127.0.0.1:9000" || !gotPathStyle {
		t.Errorf("endpoint = %q, path style = %v", gotEndpoint, gotPathStyle)
	}
	if s.client != fake {
		t.Error("client seam not used")
	}
}
