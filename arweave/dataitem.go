package arweave

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// SignatureTypeArweave is the ANS-104 signature type of RSA-PSS Arweave wallets.
const SignatureTypeArweave = 1

// DataItem describes an ANS-104 data item prior to signing.
type DataItem struct {
	// Target is an optional 32-byte recipient (for example an AO process).
	Target []byte
	// Anchor is an optional 32-byte anchor, used to make otherwise identical
	// items unique.
	Anchor []byte
	// Tags of the item.
	Tags Tags
}

// SignedItem is the result of signing a DataItem.
type SignedItem struct {
	// ID of the data item: the base64url SHA-256 of its signature.
	ID string
	// Header is the serialized data item up to, but not including, its payload.
	Header []byte
	// Size of the payload which follows Header.
	Size int64
}

// Len is the total serialized length of the data item.
func (s SignedItem) Len() int64 { return int64(len(s.Header)) + s.Size }

// Reader returns the complete serialized data item, reading its payload from |data|.
func (s SignedItem) Reader(data io.Reader) io.Reader {
	return io.MultiReader(bytes.NewReader(s.Header), io.LimitReader(data, s.Size))
}

// Sign the DataItem with |signer|. |open| returns the item payload of exactly
// |size| bytes, and is invoked once to hash it. Callers invoke it again to
// stream the payload behind SignedItem.Header.
func (d DataItem) Sign(signer Signer, open func() (io.ReadCloser, error), size int64) (SignedItem, error) {
	if err := d.validate(); err != nil {
		return SignedItem{}, err
	}
	var owner = signer.Owner()
	if len(owner) != OwnerLength {
		return SignedItem{}, errors.Errorf("signer owner is %d bytes (expected %d)", len(owner), OwnerLength)
	}
	var tags, err = EncodeTags(d.Tags)
	if err != nil {
		return SignedItem{}, errors.WithMessage(err, "encoding tags")
	}

	rc, err := open()
	if err != nil {
		return SignedItem{}, errors.WithMessage(err, "opening payload")
	}
	dataHash, err := deepHashBlobReader(rc, size)
	if closeErr := rc.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return SignedItem{}, errors.WithMessage(err, "hashing payload")
	}

	var message = deepHashList([][]byte{
		deepHashBlobBytes([]byte("dataitem")),
		deepHashBlobBytes([]byte("1")),
		deepHashBlobBytes([]byte("1")), // Signature type, as a decimal string.
		deepHashBlobBytes(owner),
		deepHashBlobBytes(d.Target),
		deepHashBlobBytes(d.Anchor),
		deepHashBlobBytes(tags),
		dataHash,
	})
	signature, err := signer.Sign(message)
	if err != nil {
		return SignedItem{}, errors.WithMessage(err, "signing data item")
	} else if len(signature) != OwnerLength {
		return SignedItem{}, errors.Errorf("signature is %d bytes (expected %d)", len(signature), OwnerLength)
	}

	var header = make([]byte, 0, 2+2*OwnerLength+2+64+16+len(tags))
	header = binary.LittleEndian.AppendUint16(header, SignatureTypeArweave)
	header = append(header, signature...)
	header = append(header, owner...)
	header = appendOptional(header, d.Target)
	header = appendOptional(header, d.Anchor)
	header = binary.LittleEndian.AppendUint64(header, uint64(len(d.Tags)))
	header = binary.LittleEndian.AppendUint64(header, uint64(len(tags)))
	header = append(header, tags...)

	var id = sha256.Sum256(signature)
	return SignedItem{ID: EncodeB64URL(id[:]), Header: header, Size: size}, nil
}

// SignBytes is a convenience for signing a DataItem having an in-memory payload.
// It returns the item ID and its complete serialization.
func (d DataItem) SignBytes(signer Signer, data []byte) (string, []byte, error) {
	var open = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil }

	var signed, err = d.Sign(signer, open, int64(len(data)))
	if err != nil {
		return "", nil, err
	}
	return signed.ID, append(signed.Header, data...), nil
}

func (d DataItem) validate() error {
	if len(d.Target) != 0 && len(d.Target) != 32 {
		return errors.Errorf("target must be 32 bytes (got %d)", len(d.Target))
	} else if len(d.Anchor) != 0 && len(d.Anchor) != 32 {
		return errors.Errorf("anchor must be 32 bytes (got %d)", len(d.Anchor))
	}
	return nil
}

func appendOptional(b, field []byte) []byte {
	if len(field) == 0 {
		return append(b, 0)
	}
	return append(append(b, 1), field...)
}

// ParsedItem is a decoded data item.
type ParsedItem struct {
	ID        string
	Signature []byte
	Owner     []byte
	Target    []byte
	Anchor    []byte
	Tags      Tags
	Data      []byte
}

// ParseDataItem decodes a complete serialized data item.
func ParseDataItem(b []byte) (ParsedItem, error) {
	var out ParsedItem
	var r = bytes.NewReader(b)

	var sigType uint16
	if err := binary.Read(r, binary.LittleEndian, &sigType); err != nil {
		return out, errors.WithMessage(err, "reading signature type")
	} else if sigType != SignatureTypeArweave {
		return out, errors.Errorf("unsupported signature type %d", sigType)
	}

	out.Signature = make([]byte, OwnerLength)
	out.Owner = make([]byte, OwnerLength)

	if _, err := io.ReadFull(r, out.Signature); err != nil {
		return out, errors.WithMessage(err, "reading signature")
	} else if _, err = io.ReadFull(r, out.Owner); err != nil {
		return out, errors.WithMessage(err, "reading owner")
	}

	var err error
	if out.Target, err = readOptional(r); err != nil {
		return out, errors.WithMessage(err, "reading target")
	} else if out.Anchor, err = readOptional(r); err != nil {
		return out, errors.WithMessage(err, "reading anchor")
	}

	var count, tagBytes uint64
	if err = binary.Read(r, binary.LittleEndian, &count); err != nil {
		return out, errors.WithMessage(err, "reading tag count")
	} else if err = binary.Read(r, binary.LittleEndian, &tagBytes); err != nil {
		return out, errors.WithMessage(err, "reading tag bytes length")
	} else if tagBytes > uint64(r.Len()) {
		return out, errors.New("tag bytes exceed item length")
	}

	var rawTags = make([]byte, tagBytes)
	_, _ = io.ReadFull(r, rawTags)

	if out.Tags, err = DecodeTags(rawTags); err != nil {
		return out, err
	} else if uint64(len(out.Tags)) != count {
		return out, errors.Errorf("tag count mismatch (header %d; decoded %d)", count, len(out.Tags))
	}
	out.Data, _ = io.ReadAll(r)

	var id = sha256.Sum256(out.Signature)
	out.ID = EncodeB64URL(id[:])

	return out, nil
}

// Verify the signature of the ParsedItem.
func (p ParsedItem) Verify() error {
	var tags, err = EncodeTags(p.Tags)
	if err != nil {
		return err
	}
	var message = DeepHash(
		[]byte("dataitem"),
		[]byte("1"),
		[]byte("1"),
		p.Owner,
		p.Target,
		p.Anchor,
		tags,
		p.Data,
	)
	return Verify(p.Owner, message, p.Signature)
}

func readOptional(r *bytes.Reader) ([]byte, error) {
	var present, err = r.ReadByte()
	if err != nil {
		return nil, err
	} else if present == 0 {
		return nil, nil
	}
	var b = make([]byte, 32)
	if _, err = io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
