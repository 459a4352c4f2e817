// Package s3 implements a content-addressed mirror Store over AWS S3 and
// S3-compatible services.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	log "github.com/sirupsen/logrus"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/stores"
	"go.permalaunch.dev/core/stores/common"
)

// StoreQueryArgs are query arguments of an s3:// mirror URL, such as
// s3://bucket/site/?Region=us-east-1&SSE=AES256.
type StoreQueryArgs struct {
	// Profile of the shared credentials file. Empty selects default credentials.
	Profile string
	// Endpoint of an S3-compatible service. Setting it forces path-style addressing.
	Endpoint string
	// Region of the bucket. Empty defers to the profile.
	Region string
	// Canned ACL of mirrored objects.
	ACL string
	// StorageClass of mirrored objects.
	StorageClass string
	// SSE names server-side encryption of mirrored objects, eg "AES256".
	SSE string
}

// Codes of S3 errors which mean the mirror can't be written with the
// configured credentials. AccessDenied has no SDK constant.
var authErrorCodes = map[string]bool{
	s3.ErrCodeNoSuchBucket:  true,
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
}

type store struct {
	bucket, prefix string
	args           StoreQueryArgs
	client         *s3.S3
	uploader       *s3manager.Uploader
}

// New returns a mirror Store of the bucket and prefix of |ep|.
// Mirrors don't sign, and ignore the Signer.
func New(ep *url.URL, _ arweave.Signer) (stores.Store, error) {
	var args StoreQueryArgs
	if err := common.ParseStoreArgs(ep, &args); err != nil {
		return nil, err
	}

	var sess, err = newSession(args)
	if err != nil {
		return nil, err
	}
	var client = s3.New(sess)

	return &store{
		bucket:   ep.Host,
		prefix:   strings.TrimPrefix(ep.Path, "/"),
		args:     args,
		client:   client,
		uploader: s3manager.NewUploaderWithClient(client),
	}, nil
}

// newSession resolves credentials and region of |args| up front, so that
// misconfiguration fails the deploy before any file is read.
func newSession(args StoreQueryArgs) (*session.Session, error) {
	var cfg = aws.NewConfig().WithCredentialsChainVerboseErrors(true)
	if args.Region != "" {
		cfg = cfg.WithRegion(args.Region)
	}
	if args.Endpoint != "" {
		cfg = cfg.WithEndpoint(args.Endpoint).WithS3ForcePathStyle(true)
	}

	var sess, err = session.NewSessionWithOptions(session.Options{Config: *cfg, Profile: args.Profile})
	if err != nil {
		return nil, fmt.Errorf("building S3 session: %w", err)
	}
	creds, err := sess.Config.Credentials.Get()
	if err != nil {
		return nil, fmt.Errorf("resolving AWS credentials (profile %q): %w", args.Profile, err)
	}
	var region = aws.StringValue(sess.Config.Region)
	if region == "" {
		return nil, fmt.Errorf("no AWS region for profile %q; set ?Region=", args.Profile)
	}

	log.WithFields(log.Fields{
		"region":   region,
		"endpoint": args.Endpoint,
		"profile":  args.Profile,
		"keyID":    creds.AccessKeyID,
		"provider": creds.ProviderName,
	}).Debug("resolved S3 session")

	return sess, nil
}

func (s *store) Provider() string { return "s3" }

func (s *store) Upload(ctx context.Context, req stores.UploadRequest) (stores.UploadResult, error) {
	var id, err = common.ContentID(req.Body, req.Size)
	if err != nil {
		return stores.UploadResult{}, err
	}
	var key = s.prefix + id

	if found, err := s.headObject(ctx, key); err != nil {
		return stores.UploadResult{}, err
	} else if found {
		log.WithFields(log.Fields{"bucket": s.bucket, "key": key}).Debug("mirror already holds object")
		return stores.UploadResult{ID: id}, nil
	}

	body, err := req.Body()
	if err != nil {
		return stores.UploadResult{}, fmt.Errorf("opening content: %w", err)
	}
	defer body.Close()

	var input = uploadInput(s.bucket, key, s.args, req.Tags)
	input.Body = body

	if _, err = s.uploader.UploadWithContext(ctx, input); err != nil {
		return stores.UploadResult{}, fmt.Errorf("uploading s3://%s/%s: %w", s.bucket, key, err)
	}
	return stores.UploadResult{ID: id}, nil
}

// headObject reports whether |key| exists. A 404 is not an error.
func (s *store) headObject(ctx context.Context, key string) (bool, error) {
	var _, err = s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var rf awserr.RequestFailure
	if errors.As(err, &rf) && rf.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// IsAuthError classifies |err|, which may wrap an SDK error.
func (s *store) IsAuthError(err error) bool {
	var rf awserr.RequestFailure
	if errors.As(err, &rf) && rf.StatusCode() == http.StatusForbidden {
		return true
	}
	var awsErr awserr.Error
	return errors.As(err, &awsErr) && authErrorCodes[awsErr.Code()]
}

func uploadInput(bucket, key string, args StoreQueryArgs, tags arweave.Tags) *s3manager.UploadInput {
	var contentType, metadata = common.SplitTags(tags)
	var input = &s3manager.UploadInput{
		Bucket:               aws.String(bucket),
		Key:                  aws.String(key),
		ContentType:          optional(contentType),
		ACL:                  optional(args.ACL),
		StorageClass:         optional(args.StorageClass),
		ServerSideEncryption: optional(args.SSE),
	}
	if len(metadata) != 0 {
		input.Metadata = aws.StringMap(metadata)
	}
	return input
}

// optional maps "" to an unset field.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
