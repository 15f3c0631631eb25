package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/chainballot/voter-oracle/interfaces"
)

// S3Directory stores one JSON object per profile in an S3 (or compatible)
// bucket under a key prefix.
type S3Directory struct {
	client      *s3.S3
	bucketName  string
	prefix      string
	log         *slog.Logger
	locationURI string
}

// NewS3Directory creates an S3-backed identity directory. Credentials are
// optional; without them the SDK's default chain (env, instance profile)
// applies. An endpoint enables S3-compatible object stores.
func NewS3Directory(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Directory, error) {
	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	uri := fmt.Sprintf("s3://%s/%s?region=%s", bucketName, prefix, region)
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}

	return &S3Directory{
		client:      s3.New(sess),
		bucketName:  bucketName,
		prefix:      strings.Trim(prefix, "/"),
		log:         log,
		locationURI: uri,
	}, nil
}

func (d *S3Directory) key(id interfaces.VoterID) string {
	return path.Join(d.prefix, url.PathEscape(string(id))+".json")
}

// LoadAll lists and reads every profile object under the prefix.
func (d *S3Directory) LoadAll(ctx context.Context) ([]interfaces.Profile, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucketName),
		Prefix: aws.String(d.prefix),
	}
	err := d.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			if strings.HasSuffix(aws.StringValue(obj.Key), ".json") {
				keys = append(keys, aws.StringValue(obj.Key))
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	profiles := make([]interfaces.Profile, 0, len(keys))
	for _, key := range keys {
		out, err := d.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(d.bucketName),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch profile %s: %w", key, err)
		}

		data, err := io.ReadAll(out.Body)
		out.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read profile %s: %w", key, err)
		}

		var p interfaces.Profile
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode profile %s: %w", key, err)
		}
		profiles = append(profiles, p)
	}

	d.log.Debug("Loaded profiles from S3",
		slog.Int("count", len(profiles)),
		slog.String("bucket", d.bucketName))
	return profiles, nil
}

// Load reads a single profile object.
func (d *S3Directory) Load(ctx context.Context, id interfaces.VoterID) (interfaces.Profile, error) {
	out, err := d.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucketName),
		Key:    aws.String(d.key(id)),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return interfaces.Profile{}, interfaces.ErrProfileNotFound
		}
		return interfaces.Profile{}, fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return interfaces.Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	var p interfaces.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return interfaces.Profile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}

// Store uploads the profile object. S3 object puts are atomic: readers see
// either the previous or the new version, never a partial write.
func (d *S3Directory) Store(ctx context.Context, profile interfaces.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	_, err = d.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucketName),
		Key:         aws.String(d.key(profile.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}

	d.log.Debug("Stored profile in S3",
		slog.String("voter", string(profile.ID)),
		slog.String("key", d.key(profile.ID)))
	return nil
}

// Available checks bucket reachability.
func (d *S3Directory) Available(ctx context.Context) bool {
	_, err := d.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(d.bucketName),
	})
	if err != nil {
		d.log.Debug("S3 directory unavailable", "err", err)
		return false
	}
	return true
}

// LocationURI returns the URI this directory was created from.
func (d *S3Directory) LocationURI() string {
	return d.locationURI
}
