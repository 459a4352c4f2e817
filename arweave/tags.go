package arweave

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Tag is a name/value pair attached to a data item.
type Tag struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Tags is an ordered list of Tag. Order is significant: it is part of the
// signed data item.
type Tags []Tag

// Get returns the value of the first Tag having |name|, and whether it was found.
func (t Tags) Get(name string) (string, bool) {
	for _, tag := range t {
		if tag.Name == name {
			return tag.Value, true
		}
	}
	return "", false
}

const (
	maxTagCount       = 128
	maxTagNameBytes   = 1024
	maxTagValueBytes  = 3072
	tagsAvroTerminate = 0x00
)

// Validate returns an error if the Tags cannot be carried by a data item.
func (t Tags) Validate() error {
	if len(t) > maxTagCount {
		return fmt.Errorf("too many tags (%d; max %d)", len(t), maxTagCount)
	}
	for i, tag := range t {
		if len(tag.Name) == 0 || len(tag.Name) > maxTagNameBytes {
			return fmt.Errorf("tag %d: invalid name length %d", i, len(tag.Name))
		} else if len(tag.Value) == 0 || len(tag.Value) > maxTagValueBytes {
			return fmt.Errorf("tag %d (%s): invalid value length %d", i, tag.Name, len(tag.Value))
		}
	}
	return nil
}

// EncodeTags serializes Tags using the avro array-of-records encoding
// required by ANS-104. An empty Tags encodes to zero bytes.
func EncodeTags(tags Tags) ([]byte, error) {
	if err := tags.Validate(); err != nil {
		return nil, err
	} else if len(tags) == 0 {
		return nil, nil
	}

	// Avro longs are zig-zag varints, which is exactly binary.AppendVarint.
	var b = binary.AppendVarint(nil, int64(len(tags)))
	for _, tag := range tags {
		b = binary.AppendVarint(b, int64(len(tag.Name)))
		b = append(b, tag.Name...)
		b = binary.AppendVarint(b, int64(len(tag.Value)))
		b = append(b, tag.Value...)
	}
	return append(b, tagsAvroTerminate), nil
}

// DecodeTags is the inverse of EncodeTags.
func DecodeTags(b []byte) (Tags, error) {
	var tags Tags

	for len(b) != 0 {
		var count, n = binary.Varint(b)
		if n <= 0 {
			return nil, errors.New("malformed tag block count")
		}
		b = b[n:]

		if count == 0 {
			if len(b) != 0 {
				return nil, errors.New("trailing bytes after tags terminator")
			}
			return tags, nil
		} else if count < 0 {
			// A negative count is followed by the block's byte size, which we don't need.
			count = -count
			if _, n = binary.Varint(b); n <= 0 {
				return nil, errors.New("malformed tag block size")
			}
			b = b[n:]
		}

		for i := int64(0); i != count; i++ {
			var name, value []byte
			var err error

			if name, b, err = readAvroBytes(b); err != nil {
				return nil, errors.WithMessage(err, "reading tag name")
			} else if value, b, err = readAvroBytes(b); err != nil {
				return nil, errors.WithMessage(err, "reading tag value")
			}
			tags = append(tags, Tag{Name: string(name), Value: string(value)})
		}
	}
	return nil, errors.New("tags missing terminator")
}

func readAvroBytes(b []byte) (out, rest []byte, err error) {
	var l, n = binary.Varint(b)
	if n <= 0 || l < 0 || int64(len(b)-n) < l {
		return nil, nil, errors.New("malformed avro bytes")
	}
	return b[n : n+int(l)], b[n+int(l):], nil
}
