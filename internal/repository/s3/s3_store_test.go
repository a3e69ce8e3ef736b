package s3

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/toolstock/internal/config"
	"github.com/mamadbah2/toolstock/internal/repository/remote"
)

type fakeBucket struct {
	objects map[string][]byte
	types   map[string]string
	acls    map[string]types.ObjectCannedACL
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		acls:    make(map[string]types.ObjectCannedACL),
	}
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeBucket) PutObjectAcl(_ context.Context, in *s3.PutObjectAclInput, _ ...func(*s3.Options)) (*s3.PutObjectAclOutput, error) {
	f.acls[aws.ToString(in.Key)] = in.ACL
	return &s3.PutObjectAclOutput{}, nil
}

func (f *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestStoreRoundTrip(t *testing.T) {
	bucket := newFakeBucket()
	store := newStore(bucket, config.S3Config{Bucket: "tools", Region: "eu-west-1", Prefix: "/inventory/"}, nil)
	ctx := context.Background()

	_, err := store.Download(ctx, "inventory/tools.xlsx")
	assert.ErrorIs(t, err, remote.ErrNotFound)

	files, err := store.List(ctx, "tools.xlsx")
	require.NoError(t, err)
	assert.Empty(t, files)

	created, err := store.Create(ctx, "", "tools.xlsx", []byte("v1"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "inventory/tools.xlsx", created.ID)

	// a longer name sharing the prefix is not a match
	_, err = store.Create(ctx, "", "tools.xlsx.bak", []byte("old"), "application/octet-stream")
	require.NoError(t, err)

	files, err = store.List(ctx, "tools.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []remote.FileInfo{{ID: "inventory/tools.xlsx", Name: "tools.xlsx"}}, files)

	require.NoError(t, store.Upload(ctx, created.ID, []byte("v2"), "text/plain"))
	data, err := store.Download(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	assert.Equal(t, "text/plain", bucket.types[created.ID])
}

func TestImagesArePublished(t *testing.T) {
	bucket := newFakeBucket()
	store := newStore(bucket, config.S3Config{Bucket: "tools", Region: "eu-west-1"}, nil)
	ctx := context.Background()

	img, err := store.Create(ctx, "images", "image3.png", []byte{0x89}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "images/image3.png", img.ID)

	require.NoError(t, store.SetPublic(ctx, img.ID))
	assert.Equal(t, types.ObjectCannedACLPublicRead, bucket.acls[img.ID])
	assert.Equal(t, "https://tools.s3.eu-west-1.amazonaws.com/images/image3.png", store.Link(img.ID))
}
