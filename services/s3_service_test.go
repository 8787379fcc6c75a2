package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"chatsync_server/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeS3 struct {
	puts []*s3.PutObjectInput
	body []string
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.body = append(f.body, string(data))
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://signed.test/put/" + aws.ToString(in.Key), Method: "PUT"}, nil
}

func (fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://signed.test/get/" + aws.ToString(in.Key), Method: "GET"}, nil
}

func TestMediaUpload(t *testing.T) {
	client := &fakeS3{}
	m := metrics.New()
	media := NewMediaService(client, fakePresigner{}, "chat-bucket", "us-east-1", "", m, zap.NewNop())

	url, err := media.Upload(context.Background(), ChatFilePrefix, strings.NewReader("data"), ".PNG", "")
	require.NoError(t, err)
	require.Len(t, client.puts, 1)

	key := aws.ToString(client.puts[0].Key)
	assert.True(t, strings.HasPrefix(key, ChatFilePrefix))
	assert.True(t, strings.HasSuffix(key, ".PNG"))
	assert.Equal(t, "chat-bucket", aws.ToString(client.puts[0].Bucket))
	assert.Equal(t, "image/png", aws.ToString(client.puts[0].ContentType))
	assert.Equal(t, "https://chat-bucket.s3.us-east-1.amazonaws.com/"+key, url)
	assert.Equal(t, []string{"data"}, client.body)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Uploads.WithLabelValues(ChatFilePrefix)))
}

func TestMediaUploadCustomBaseURLAndErrors(t *testing.T) {
	client := &fakeS3{}
	media := NewMediaService(client, fakePresigner{}, "b", "eu-west-1", "https://cdn.test/", nil, zap.NewNop())

	url, err := media.Upload(context.Background(), AvatarPrefix, strings.NewReader("x"), "jpg", "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.test/"+AvatarPrefix))

	client.err = errors.New("access denied")
	_, err = media.Upload(context.Background(), AvatarPrefix, strings.NewReader("x"), "jpg", "")
	assert.ErrorContains(t, err, "access denied")

	disabled := NewMediaService(client, fakePresigner{}, "", "", "", nil, zap.NewNop())
	_, err = disabled.Upload(context.Background(), AvatarPrefix, strings.NewReader("x"), "jpg", "")
	assert.ErrorIs(t, err, ErrStorageDisabled)
	_, _, err = disabled.PresignUpload(context.Background(), "a.png", "image/png")
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestMediaPresign(t *testing.T) {
	media := NewMediaService(&fakeS3{}, fakePresigner{}, "b", "us-east-1", "", nil, zap.NewNop())

	url, key, err := media.PresignUpload(context.Background(), "me.png", "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, AvatarPrefix))
	assert.True(t, strings.HasSuffix(key, "-me.png"))
	assert.Equal(t, "https://signed.test/put/"+key, url)

	readURL, err := media.PresignRead(context.Background(), "avatars/x.png")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.test/get/avatars/x.png", readURL)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentTypeFor("pdf"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("zzz-unknown"))
}
