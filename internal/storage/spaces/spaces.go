package spaces

import (
	"bytes"
	"context"
	"io"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/polybot/polybot/internal/storage"
)

// Provider implements a photo storage on digitalocean spaces, or any other s3 compatible bucket
type Provider struct {
	spaces *s3.S3
	space  string
}

// New returns a new Provider instance, failing if the space is unreachable
func New(space, endpoint, accessKey, secretKey string, forcePathStyle bool) (*Provider, error) {
	spacesSession, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String("us-east-1"), // Needs to be us-east-1 for Spaces, or it'll fail
		S3ForcePathStyle: aws.Bool(forcePathStyle),
	})
	if err != nil {
		return nil, err
	}

	spaces := s3.New(spacesSession)

	if _, err := spaces.HeadBucket(&s3.HeadBucketInput{Bucket: aws.String(space)}); err != nil {
		return nil, err
	}

	return &Provider{
		spaces: spaces,
		space:  space,
	}, nil
}

// Get returns the object stored under key
func (p *Provider) Get(ctx context.Context, key string) ([]byte, error) {
	object := s3.GetObjectInput{
		Bucket: &p.space,
		Key:    aws.String(key),
	}

	output, err := p.spaces.GetObjectWithContext(ctx, &object)
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}
	defer output.Body.Close()

	buf := new(bytes.Buffer)
	_, err = io.Copy(buf, output.Body)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Put uploads data under key
func (p *Provider) Put(ctx context.Context, key string, data []byte) error {
	object := s3.PutObjectInput{
		Bucket: &p.space,
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
		ACL:    aws.String(s3.ObjectCannedACLPrivate),
	}

	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		object.ContentType = aws.String(contentType)
	}

	_, err := p.spaces.PutObjectWithContext(ctx, &object)
	return err
}
