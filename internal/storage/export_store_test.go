package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	pages   []*s3.ListObjectsV2Output
	puts    map[string][]byte
	getErr  error
	headErr error
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/csv"),
	}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	idx := 0
	if in.ContinuationToken != nil {
		idx = len(aws.ToString(in.ContinuationToken))
	}
	return f.pages[idx], nil
}

func TestExportStore_Get(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"incoming/ticks.csv": []byte("Date,Route\n")}}
	store := NewExportStoreWithClient(fake, "bucket", "incoming/", 0)

	obj, err := store.Get(context.Background(), "ticks.csv")
	require.NoError(t, err)
	assert.Equal(t, "incoming/ticks.csv", obj.Key)
	assert.Equal(t, "ticks.csv", obj.Name())
	assert.Equal(t, "text/csv", obj.ContentType)
	assert.Equal(t, "Date,Route\n", string(obj.Body))

	// already-prefixed keys are not prefixed twice
	_, err = store.Get(context.Background(), "incoming/ticks.csv")
	assert.NoError(t, err)
}

func TestExportStore_GetTooLarge(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"big.csv": []byte(strings.Repeat("x", 64))}}
	store := NewExportStoreWithClient(fake, "bucket", "", 16)

	_, err := store.Get(context.Background(), "big.csv")
	assert.ErrorIs(t, err, ErrObjectTooLarge)
}

func TestExportStore_GetInvalidKey(t *testing.T) {
	store := NewExportStoreWithClient(&fakeS3{}, "bucket", "incoming/", 0)

	for _, key := range []string{"", "  ", "../secrets.csv"} {
		_, err := store.Get(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestExportStore_GetError(t *testing.T) {
	store := NewExportStoreWithClient(&fakeS3{getErr: errors.New("access denied")}, "bucket", "", 0)

	_, err := store.Get(context.Background(), "a.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestExportStore_ListPaginates(t *testing.T) {
	fake := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			Contents: []types.Object{
				{Key: aws.String("incoming/"), Size: aws.Int64(0)},
				{Key: aws.String("incoming/a.csv"), Size: aws.Int64(10)},
			},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("x"),
		},
		{
			Contents: []types.Object{
				{Key: aws.String("incoming/_reports/job.json"), Size: aws.Int64(5)},
				{Key: aws.String("incoming/b.json"), Size: aws.Int64(20)},
			},
			IsTruncated: aws.Bool(false),
		},
	}}
	store := NewExportStoreWithClient(fake, "bucket", "incoming/", 0)

	infos, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "incoming/a.csv", infos[0].Key)
	assert.Equal(t, int64(20), infos[1].Size)
}

func TestExportStore_SaveReport(t *testing.T) {
	fake := &fakeS3{}
	store := NewExportStoreWithClient(fake, "bucket", "incoming/", 0)

	err := store.SaveReport(context.Background(), "job-1", map[string]int{"success_count": 3})
	require.NoError(t, err)

	data, ok := fake.puts["incoming/_reports/job-1.json"]
	require.True(t, ok)
	var got map[string]int
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got["success_count"])
}

func TestExportStore_PingContext(t *testing.T) {
	fake := &fakeS3{}
	store := NewExportStoreWithClient(fake, "bucket", "", 0)
	assert.NoError(t, store.PingContext(context.Background()))

	fake.headErr = errors.New("forbidden")
	err := store.PingContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}
