// Package util - Loading model definitions and input images from disk or object storage.
package util

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/nvr-ai/go-faceml/images"
	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models"
	"github.com/pkg/errors"
)

// SchemeS3 marks a source stored in an S3 bucket.
const SchemeS3 = "s3"

// Source locates one model definition.
type Source struct {
	// Path is the local file path. Empty for S3 sources.
	Path string
	// Bucket is the S3 bucket name.
	Bucket string
	// Key is the S3 object key.
	Key string
}

// ParseSource parses a local path or an s3://bucket/key URI.
//
// Arguments:
//   - location: The path or URI.
//
// Returns:
//   - Source: The parsed source.
//   - error: An error if the location is empty, uses another scheme or names no object.
func ParseSource(location string) (Source, error) {
	if location == "" {
		return Source{}, errors.New("empty model location")
	}

	if !strings.Contains(location, "://") {
		return Source{Path: location}, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return Source{}, errors.Wrapf(err, "invalid model location %q", location)
	}
	if u.Scheme != SchemeS3 {
		return Source{}, errors.Errorf("unsupported model location scheme %q", u.Scheme)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Source{}, errors.Errorf("s3 location %q must name a bucket and a key", location)
	}

	return Source{Bucket: u.Host, Key: key}, nil
}

// IsS3 reports whether the source is stored in S3.
func (s Source) IsS3() bool {
	return s.Bucket != ""
}

// String returns the location the source was parsed from.
func (s Source) String() string {
	if s.IsS3() {
		return SchemeS3 + "://" + s.Bucket + "/" + s.Key
	}
	return s.Path
}

// ModelLoader reads model definitions from local files or S3.
type ModelLoader struct {
	region     string
	downloader s3manageriface.DownloaderAPI
}

// NewModelLoader creates a loader. The S3 client is created on first use.
//
// Arguments:
//   - region: The AWS region for S3 sources. Empty defers to the AWS environment.
//
// Returns:
//   - *ModelLoader: The loader.
func NewModelLoader(region string) *ModelLoader {
	return &ModelLoader{region: region}
}

// NewModelLoaderWithDownloader creates a loader that fetches S3 objects with downloader.
func NewModelLoaderWithDownloader(downloader s3manageriface.DownloaderAPI) *ModelLoader {
	return &ModelLoader{downloader: downloader}
}

// Load reads one model definition.
//
// Arguments:
//   - ctx: The context bounding S3 downloads.
//   - location: A local path or an s3://bucket/key URI.
//
// Returns:
//   - []byte: The definition bytes.
//   - error: An ErrModelLoad error if the location is invalid, unreadable or empty.
func (l *ModelLoader) Load(ctx context.Context, location string) ([]byte, error) {
	src, err := ParseSource(location)
	if err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "error parsing model location")
	}

	var data []byte
	if src.IsS3() {
		data, err = l.download(ctx, src)
	} else {
		data, err = os.ReadFile(src.Path)
	}
	if err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "error reading %s", src)
	}
	if len(data) == 0 {
		return nil, inference.NewError(inference.ErrModelLoad, nil, "%s is empty", src)
	}

	return data, nil
}

// LoadDefinitions reads the detector and embedder definitions.
//
// Arguments:
//   - ctx: The context bounding S3 downloads.
//   - detector: The detector model location.
//   - embedder: The embedder model location.
//
// Returns:
//   - models.Definitions: The definitions, ready for Registry.Initialize.
//   - error: An ErrModelLoad error naming the model that failed.
func (l *ModelLoader) LoadDefinitions(ctx context.Context, detector, embedder string) (models.Definitions, error) {
	var defs models.Definitions
	var err error

	if defs.Detector, err = l.Load(ctx, detector); err != nil {
		return models.Definitions{}, errors.WithMessage(err, "detector")
	}
	if defs.Embedder, err = l.Load(ctx, embedder); err != nil {
		return models.Definitions{}, errors.WithMessage(err, "embedder")
	}

	return defs, nil
}

func (l *ModelLoader) download(ctx context.Context, src Source) ([]byte, error) {
	if l.downloader == nil {
		cfg := aws.NewConfig()
		if l.region != "" {
			cfg = cfg.WithRegion(l.region)
		}
		sess, err := session.NewSession(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "error creating aws session")
		}
		l.downloader = s3manager.NewDownloader(sess)
	}

	buf := aws.NewWriteAtBuffer(nil)
	_, err := l.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(src.Bucket),
		Key:    aws.String(src.Key),
	})
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
}

// LoadImageFiles reads one image file, or every image file in a directory sorted by name.
//
// Arguments:
//   - path: A file or directory path.
//
// Returns:
//   - []ImageFile: The files read.
//   - error: Error if loading fails.
func LoadImageFiles(path string) ([]ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []ImageFile{{Path: path, Data: data}}, nil
	}

	return LoadDirectoryImageFiles(path)
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: Slice of ImageFile sorted by path.
//   - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imgs []ImageFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Name())), ".")
		if _, err := images.ParseFormat(ext); err != nil {
			continue
		}

		imgPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, ImageFile{Path: imgPath, Data: data})
	}

	sort.Slice(imgs, func(i, j int) bool {
		return imgs[i].Path < imgs[j].Path
	})

	return imgs, nil
}
