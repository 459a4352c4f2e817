// Package common holds helpers shared by content store backends.
package common

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/url"

	"github.com/gorilla/schema"
	"go.permalaunch.dev/core/arweave"
)

// ContentTypeTag is the name of the tag carrying an upload's MIME type.
const ContentTypeTag = "Content-Type"

// ParseStoreArgs decodes the query arguments of store URL |ep| into |args|.
// Unknown arguments are an error.
func ParseStoreArgs(ep *url.URL, args interface{}) error {
	var decoder = schema.NewDecoder()
	decoder.IgnoreUnknownKeys(false)

	if q, err := url.ParseQuery(ep.RawQuery); err != nil {
		return err
	} else if err = decoder.Decode(args, q); err != nil {
		return fmt.Errorf("parsing store URL arguments: %s", err)
	}
	return nil
}

// ContentID reads content from |open| and returns its content address: the
// unpadded base64url SHA-256 of its bytes. Exactly |size| bytes must be read.
// Stores which aren't natively content-addressed use ContentID to name objects.
func ContentID(open func() (io.ReadCloser, error), size int64) (string, error) {
	var rc, err = open()
	if err != nil {
		return "", fmt.Errorf("opening content: %w", err)
	}
	defer rc.Close()

	var h = sha256.New()
	if n, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	} else if n != size {
		return "", fmt.Errorf("content size mismatch (read %d; expected %d)", n, size)
	}
	return arweave.EncodeB64URL(h.Sum(nil)), nil
}

// SplitTags returns the Content-Type of |tags|, and the remaining tags as a
// metadata map suitable for object stores. Where a tag name repeats, the
// last value wins.
func SplitTags(tags arweave.Tags) (contentType string, metadata map[string]string) {
	metadata = make(map[string]string, len(tags))
	for _, tag := range tags {
		if tag.Name == ContentTypeTag {
			contentType = tag.Value
		} else {
			metadata[tag.Name] = tag.Value
		}
	}
	return contentType, metadata
}
