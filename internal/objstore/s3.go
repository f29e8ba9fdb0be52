package objstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gitvault/gitvault/internal/archive"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PayloadSignatureMode selects how the SDK signs the request body for an
// S3-compatible endpoint (spec §6, storage.payloadSignatureMode). "full"
// is the SDK default (SigV4, chunked for large bodies); "streaming" is
// identical for this client's purposes since every object here is either
// small JSON or an archive streamed from memory; "unsigned" disables
// payload signing entirely for endpoints that reject signed payloads.
type PayloadSignatureMode string

const (
	SignatureFull      PayloadSignatureMode = "full"
	SignatureStreaming PayloadSignatureMode = "streaming"
	SignatureUnsigned  PayloadSignatureMode = "unsigned"
)

// Config configures an S3-compatible backend (spec §6, storage.*).
type Config struct {
	Endpoint                  string
	Region                    string
	AccessKeyID               string
	SecretAccessKey           string
	Bucket                    string
	ForcePathStyle            bool
	PayloadSignatureMode      PayloadSignatureMode
	AlwaysCalculateContentMd5 bool
}

// S3 is an AdminStore backed by an S3-compatible bucket via aws-sdk-go-v2.
type S3 struct {
	client    *s3.Client
	bucket    string
	alwaysMd5 bool
	log       *zap.SugaredLogger
}

// NewS3 constructs an S3-compatible backend from cfg.
func NewS3(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*S3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.PayloadSignatureMode == SignatureUnsigned {
			o.APIOptions = append(o.APIOptions, v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware)
		}
	})

	return &S3{client: client, bucket: cfg.Bucket, alwaysMd5: cfg.AlwaysCalculateContentMd5, log: log}, nil
}

// contentMD5 returns the base64-encoded MD5 digest of body when s.alwaysMd5
// is set, so the SDK attaches Content-MD5 to the PUT for endpoints that
// verify it server-side (spec §6, storage.alwaysCalculateContentMd5).
func (s *S3) contentMD5(body []byte) *string {
	if !s.alwaysMd5 {
		return nil
	}
	sum := md5.Sum(body)
	encoded := base64.StdEncoding.EncodeToString(sum[:])
	return &encoded
}

func (s *S3) GetTextIfExists(ctx context.Context, key string) (string, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "getting object %s", key)
	}
	defer out.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return "", false, errors.Wrapf(err, "reading object %s", key)
	}
	return buf.String(), true, nil
}

func (s *S3) UploadText(ctx context.Context, key, content string) error {
	input := &s3.PutObjectInput{
		Bucket:     &s.bucket,
		Key:        &key,
		Body:       strings.NewReader(content),
		ContentMD5: s.contentMD5([]byte(content)),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return errors.Wrapf(err, "putting object %s", key)
	}
	return nil
}

// UploadDirectoryAsTarGz archives localPath, then PUTs it under key unless
// the object already present there carries metadata recording the same
// content hash from a prior upload (spec §6: a suppressed write still
// "must report success").
func (s *S3) UploadDirectoryAsTarGz(ctx context.Context, localPath, key string) error {
	data, sum, err := archive.TarGzDirectory(localPath)
	if err != nil {
		return errors.Wrap(err, "archiving directory")
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	switch {
	case err == nil && head.Metadata["content-sha256"] == sum:
		return nil
	case err != nil && !isNotFound(err):
		return errors.Wrapf(err, "heading object %s", key)
	}

	input := &s3.PutObjectInput{
		Bucket:     &s.bucket,
		Key:        &key,
		Body:       bytes.NewReader(data),
		Metadata:   map[string]string{"content-sha256": sum},
		ContentMD5: s.contentMD5(data),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return errors.Wrapf(err, "putting archive %s", key)
	}
	return nil
}

func (s *S3) DeleteObjects(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += 1000 {
		end := min(start+1000, len(keys))
		if err := s.deleteBatch(ctx, keys[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *S3) deleteBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make([]s3types.ObjectIdentifier, len(keys))
	for i, k := range keys {
		k := k
		objects[i] = s3types.ObjectIdentifier{Key: &k}
	}
	_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: &s.bucket,
		Delete: &s3types.Delete{Objects: objects},
	})
	if err != nil {
		return errors.Wrap(err, "batch deleting objects")
	}
	return nil
}

func (s *S3) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &prefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "listing keys under %s", prefix)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				out = append(out, *obj.Key)
			}
		}
	}
	return out, nil
}

func (s *S3) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.ListKeys(ctx, prefix)
	if err != nil {
		return err
	}
	return s.DeleteObjects(ctx, keys)
}

var _ Store = (*S3)(nil)
var _ AdminStore = (*S3)(nil)

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	return errors.As(err, &nf)
}
