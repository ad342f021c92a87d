package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
	"github.com/mmyddd/modpack-uploader/storage"
)

// maxParts is the S3 limit on parts per upload.
const maxParts = 10000

// putMultipart uploads body in parts of partSize bytes. The upload is aborted
// if any part fails.
func (p *Provider) putMultipart(
	ctx context.Context,
	key string,
	body io.Reader,
	size int64,
	opts storage.PutOptions,
) error {
	partSize := p.partSize
	if size > partSize*maxParts {
		partSize = (size + maxParts - 1) / maxParts
	}

	createInput := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if opts.ContentType != "" {
		createInput.ContentType = aws.String(opts.ContentType)
	}
	if opts.ContentEncoding != "" {
		createInput.ContentEncoding = aws.String(opts.ContentEncoding)
	}
	if len(opts.Metadata) > 0 {
		createInput.Metadata = opts.Metadata
	}

	createOutput, err := p.api.CreateMultipartUpload(ctx, createInput)
	if err != nil {
		return translateError("put", p.bucket, key, err)
	}
	uploadID := aws.ToString(createOutput.UploadId)

	parts, err := p.uploadParts(ctx, key, uploadID, body, partSize)
	if err != nil {
		p.abortMultipartUpload(ctx, key, uploadID)
		return err
	}

	_, err = p.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(p.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		p.abortMultipartUpload(ctx, key, uploadID)
		return translateError("put", p.bucket, key, err)
	}

	p.debug(ctx, "multipart object stored", "key", key, "size", size, "parts", len(parts))
	return nil
}

func (p *Provider) uploadParts(
	ctx context.Context,
	key, uploadID string,
	body io.Reader,
	partSize int64,
) ([]awstypes.CompletedPart, error) {
	buf := make([]byte, partSize)
	var parts []awstypes.CompletedPart

	for partNumber := int32(1); ; partNumber++ {
		n, readErr := io.ReadFull(body, buf)
		if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
			return nil, uperrors.NewObjectError("put", p.bucket, key, readErr)
		}
		if n == 0 {
			break
		}

		out, err := p.api.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(p.bucket),
			Key:           aws.String(key),
			UploadId:      aws.String(uploadID),
			PartNumber:    aws.Int32(partNumber),
			Body:          bytes.NewReader(buf[:n]),
			ContentLength: aws.Int64(int64(n)),
		})
		if err != nil {
			return nil, translateError("put", p.bucket, key, err)
		}

		parts = append(parts, awstypes.CompletedPart{
			ETag:       out.ETag,
			PartNumber: aws.Int32(partNumber),
		})

		if readErr != nil {
			break
		}
	}

	if len(parts) == 0 {
		return nil, uperrors.NewObjectError("put", p.bucket, key,
			fmt.Errorf("%w: empty multipart body", uperrors.ErrInvalidInput))
	}
	return parts, nil
}

// abortMultipartUpload cleans up a failed multipart upload, even when ctx is cancelled.
func (p *Provider) abortMultipartUpload(ctx context.Context, key, uploadID string) {
	_, err := p.api.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(p.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil && p.logger != nil {
		p.logger.WarnContext(ctx, "failed to abort multipart upload",
			"bucket", p.bucket, "key", key, "upload_id", uploadID, "error", err)
	}
}
