package util

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/nvr-ai/go-faceml/inference"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	objects map[string][]byte
	calls   []string
}

func (f *fakeDownloader) Download(w io.WriterAt, input *s3.GetObjectInput, options ...func(*s3manager.Downloader)) (int64, error) {
	return f.DownloadWithContext(context.Background(), w, input, options...)
}

func (f *fakeDownloader) DownloadWithContext(
	_ aws.Context, w io.WriterAt, input *s3.GetObjectInput, _ ...func(*s3manager.Downloader),
) (int64, error) {
	key := aws.StringValue(input.Bucket) + "/" + aws.StringValue(input.Key)
	f.calls = append(f.calls, key)

	data, ok := f.objects[key]
	if !ok {
		return 0, errors.Errorf("NoSuchKey: %s", key)
	}
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		location string
		want     Source
		wantErr  bool
	}{
		{location: "models/detector.onnx", want: Source{Path: "models/detector.onnx"}},
		{location: "/abs/embedder.onnx", want: Source{Path: "/abs/embedder.onnx"}},
		{location: "s3://faces/models/detector.onnx", want: Source{Bucket: "faces", Key: "models/detector.onnx"}},
		{location: "", wantErr: true},
		{location: "s3://faces/", wantErr: true},
		{location: "s3:///key.onnx", wantErr: true},
		{location: "https://example.com/detector.onnx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, err := ParseSource(tt.location)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.location, got.String())
		})
	}
}

func TestLoadLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "detector.onnx")
	require.NoError(t, os.WriteFile(path, []byte("graph"), 0o600))

	data, err := NewModelLoader("").Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("graph"), data)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.onnx")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	l := NewModelLoaderWithDownloader(&fakeDownloader{})

	for _, location := range []string{"", filepath.Join(dir, "missing.onnx"), empty, "s3://faces/missing.onnx"} {
		_, err := l.Load(context.Background(), location)
		require.Error(t, err, location)
		assert.ErrorIs(t, err, inference.ErrModelLoad, location)
	}
}

func TestLoadDefinitionsFromS3(t *testing.T) {
	fake := &fakeDownloader{objects: map[string][]byte{
		"faces/detector.onnx": []byte("detector"),
		"faces/embedder.onnx": []byte("embedder"),
	}}

	defs, err := NewModelLoaderWithDownloader(fake).LoadDefinitions(
		context.Background(), "s3://faces/detector.onnx", "s3://faces/embedder.onnx",
	)
	require.NoError(t, err)
	assert.Equal(t, []byte("detector"), defs.Detector)
	assert.Equal(t, []byte("embedder"), defs.Embedder)
	assert.Equal(t, []string{"faces/detector.onnx", "faces/embedder.onnx"}, fake.calls)
}

func TestLoadDefinitionsNamesFailingModel(t *testing.T) {
	fake := &fakeDownloader{objects: map[string][]byte{"faces/detector.onnx": []byte("detector")}}

	_, err := NewModelLoaderWithDownloader(fake).LoadDefinitions(
		context.Background(), "s3://faces/detector.onnx", "s3://faces/embedder.onnx",
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrModelLoad)
	assert.Contains(t, err.Error(), "embedder")
}

func TestLoadImageFiles(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"b.png":     "png",
		"a.JPG":     "jpg",
		"c.webp":    "webp",
		"notes.txt": "skip",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o700))

	files, err := LoadImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "a.JPG"), files[0].Path)
	assert.Equal(t, []byte("png"), files[1].Data)
	assert.Equal(t, filepath.Join(dir, "c.webp"), files[2].Path)

	single, err := LoadImageFiles(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, []byte("skip"), single[0].Data)

	_, err = LoadImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
