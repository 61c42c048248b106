// Package s3store implements store.ObjectStore against the AWS SDK for Go
// v2, against either real AWS S3 or any path-style-addressable
// S3-compatible endpoint (per the config.Provider record).
package s3store

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	sdkawscfg "github.com/aws/aws-sdk-go-v2/config"
	sdkcreds "github.com/aws/aws-sdk-go-v2/credentials"
	sdks3 "github.com/aws/aws-sdk-go-v2/service/s3"
	sdks3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/nabbar/s3sh/config"
	"github.com/nabbar/s3sh/store"
	"github.com/nabbar/s3sh/vfs"
)

type client struct {
	s3 *sdks3.Client
}

// New builds an ObjectStore for the given provider, resolving credentials
// and region from the environment (§6) unless the provider itself is
// anonymous.
func New(ctx context.Context, p config.Provider) (store.ObjectStore, error) {
	creds := config.ResolveEnv()

	region := p.DefaultRegion
	if creds.Region != "" {
		region = creds.Region
	}
	if region == "" {
		region = "us-east-1"
	}

	var optFns []func(*sdkawscfg.LoadOptions) error
	optFns = append(optFns, sdkawscfg.WithRegion(region))

	if p.Anonymous {
		optFns = append(optFns, sdkawscfg.WithCredentialsProvider(sdkaws.AnonymousCredentials{}))
	} else if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		optFns = append(optFns, sdkawscfg.WithCredentialsProvider(
			sdkcreds.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	} else if creds.Profile != "" {
		optFns = append(optFns, sdkawscfg.WithSharedConfigProfile(creds.Profile))
		if path := config.CredentialsFilePath(); path != "" {
			optFns = append(optFns, sdkawscfg.WithSharedConfigFiles([]string{path}))
		}
	}

	cfg, err := sdkawscfg.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, store.WrapKind(store.ErrorConfig, vfs.KindAuthError, err)
	}

	endpoint := p.EndpointURL
	if endpoint == "" {
		endpoint = creds.EndpointURL
	}

	svc := sdks3.NewFromConfig(cfg, func(o *sdks3.Options) {
		o.UsePathStyle = p.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = sdkaws.String(endpoint)
		}
	})

	return &client{s3: svc}, nil
}

func (c *client) ListBuckets(ctx context.Context) ([]store.BucketInfo, error) {
	out, err := c.s3.ListBuckets(ctx, &sdks3.ListBucketsInput{})
	if err != nil {
		return nil, translate(err)
	}

	res := make([]store.BucketInfo, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		info := store.BucketInfo{Name: sdkaws.ToString(b.Name)}
		if b.CreationDate != nil {
			info.CreationDate = *b.CreationDate
		}
		res = append(res, info)
	}

	return res, nil
}

func (c *client) ListPrefix(ctx context.Context, bucket, prefix, delimiter, continuation string) (store.ListResult, error) {
	in := &sdks3.ListObjectsV2Input{
		Bucket:    sdkaws.String(bucket),
		Prefix:    sdkaws.String(prefix),
		Delimiter: sdkaws.String(delimiter),
	}
	if continuation != "" {
		in.ContinuationToken = sdkaws.String(continuation)
	}

	out, err := c.s3.ListObjectsV2(ctx, in)
	if err != nil {
		return store.ListResult{}, translate(err)
	}

	res := store.ListResult{
		CommonPrefixes: make([]string, 0, len(out.CommonPrefixes)),
		Objects:        make([]store.ObjectInfo, 0, len(out.Contents)),
	}

	for _, cp := range out.CommonPrefixes {
		res.CommonPrefixes = append(res.CommonPrefixes, sdkaws.ToString(cp.Prefix))
	}

	for _, o := range out.Contents {
		obj := store.ObjectInfo{Key: sdkaws.ToString(o.Key)}
		if o.Size != nil {
			obj.Size = uint64(*o.Size)
		}
		if o.LastModified != nil {
			obj.LastModified = *o.LastModified
		}
		res.Objects = append(res.Objects, obj)
	}

	if sdkaws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
		res.NextContinuation = *out.NextContinuationToken
	}

	return res, nil
}

func (c *client) Head(ctx context.Context, bucket, key string) (store.HeadInfo, error) {
	out, err := c.s3.HeadObject(ctx, &sdks3.HeadObjectInput{
		Bucket: sdkaws.String(bucket),
		Key:    sdkaws.String(key),
	})
	if err != nil {
		return store.HeadInfo{}, translate(err)
	}

	info := store.HeadInfo{ContentType: sdkaws.ToString(out.ContentType)}
	if out.ContentLength != nil {
		info.Size = uint64(*out.ContentLength)
	}
	return info, nil
}

func (c *client) GetRange(ctx context.Context, bucket, key string, r store.Range) (io.ReadCloser, error) {
	in := &sdks3.GetObjectInput{
		Bucket: sdkaws.String(bucket),
		Key:    sdkaws.String(key),
		Range:  sdkaws.String(rangeHeader(r)),
	}

	out, err := c.s3.GetObject(ctx, in)
	if err != nil {
		return nil, translate(err)
	}

	return out.Body, nil
}

func (c *client) GetFull(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := c.s3.GetObject(ctx, &sdks3.GetObjectInput{
		Bucket: sdkaws.String(bucket),
		Key:    sdkaws.String(key),
	})
	if err != nil {
		return nil, translate(err)
	}

	return out.Body, nil
}

// rangeHeader renders a store.Range into an HTTP Range header value.
func rangeHeader(r store.Range) string {
	if r.Suffix > 0 {
		return fmt.Sprintf("bytes=-%d", r.Suffix)
	}
	if r.Open {
		return fmt.Sprintf("bytes=%d-", r.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// translate maps SDK/smithy errors onto the shared vfs.Kind taxonomy.
func translate(err error) error {
	var nf *sdks3types.NoSuchKey
	var nb *sdks3types.NoSuchBucket
	if goerrors.As(err, &nf) || goerrors.As(err, &nb) {
		return store.WrapKind(store.ErrorNotFound, vfs.KindNotFound, err)
	}

	var apiErr smithy.APIError
	if goerrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return store.WrapKind(store.ErrorNotFound, vfs.KindNotFound, err)
		case "AccessDenied", "Forbidden":
			return store.WrapKind(store.ErrorPermissionDenied, vfs.KindPermissionDenied, err)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return store.WrapKind(store.ErrorAuth, vfs.KindAuthError, err)
		}
	}

	if strings.Contains(err.Error(), "connection") || strings.Contains(err.Error(), "timeout") {
		return store.WrapKind(store.ErrorNetwork, vfs.KindNetworkError, err)
	}

	return store.WrapKind(store.ErrorResponse, vfs.KindNetworkError, err)
}
