package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_SaveOpenDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/api/files/")
	require.NoError(t, err)
	ctx := context.Background()

	info, err := store.Save(ctx, "complaints/5/1_leak.png", strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/api/files/complaints/5/1_leak.png", info.URL)
	assert.Equal(t, int64(9), info.FileSize)
	assert.Equal(t, "1_leak.png", info.FileName)

	f, err := store.Open(info.Key)
	require.NoError(t, err)
	body, _ := io.ReadAll(f)
	f.Close()
	assert.Equal(t, "png-bytes", string(body))

	require.NoError(t, store.Delete(ctx, info.Key))
	require.NoError(t, store.Delete(ctx, info.Key), "deleting twice is fine")

	_, err = store.Open(info.Key)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/api/files")
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "", strings.NewReader("x"), "text/plain")
	assert.ErrorIs(t, err, ErrInvalidPath)

	// Leading dot-dots are clamped to the root.
	info, err := store.Save(context.Background(), "../../etc/passwd", strings.NewReader("x"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "etc/passwd", info.Key)
}

func TestAttachmentKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Equal(t, "complaints/42/1700000000_broken_pipe_.jpg", AttachmentKey("42", "../broken pipe!.jpg", now))
	assert.Equal(t, "complaints/anonymous/1700000000_a.pdf", AttachmentKey("", "a.pdf", now))
}

type fakeObjects struct {
	puts    []string
	deletes []string
	size    int64
	putErr  error
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts = append(f.puts, aws.ToString(in.Key))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(f.size)}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestR2Store(t *testing.T) {
	objects := &fakeObjects{size: 2048}
	store := newR2Store(objects, "attachments", "https://pub.example.r2.dev/")
	ctx := context.Background()

	info, err := store.Save(ctx, "/complaints/5/1_leak.png", strings.NewReader("x"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, []string{"complaints/5/1_leak.png"}, objects.puts)
	assert.Equal(t, "https://pub.example.r2.dev/complaints/5/1_leak.png", info.URL)
	assert.Equal(t, int64(2048), info.FileSize)

	require.NoError(t, store.Delete(ctx, info.Key))
	assert.Equal(t, []string{"complaints/5/1_leak.png"}, objects.deletes)

	objects.putErr = errors.New("access denied")
	_, err = store.Save(ctx, "complaints/5/2.png", strings.NewReader("x"), "image/png")
	assert.ErrorContains(t, err, "access denied")
}
