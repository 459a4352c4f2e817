package arweave

import (
	"crypto/sha512"
	"fmt"
	"io"
	"strconv"
)

// DeepHash computes the Arweave deep hash of a list of byte blobs.
func DeepHash(blobs ...[]byte) []byte {
	var hashes = make([][]byte, len(blobs))
	for i, b := range blobs {
		hashes[i] = deepHashBlobBytes(b)
	}
	return deepHashList(hashes)
}

// deepHashList folds already-hashed list elements into the list's deep hash.
func deepHashList(hashes [][]byte) []byte {
	var acc = sha384([]byte("list" + strconv.Itoa(len(hashes))))
	for _, h := range hashes {
		acc = sha384(acc, h)
	}
	return acc
}

func deepHashBlobBytes(b []byte) []byte {
	var h = sha512.Sum384(b)
	return deepHashTagged(int64(len(b)), h[:])
}

// deepHashBlobReader hashes a blob of exactly |size| bytes read from |r|.
func deepHashBlobReader(r io.Reader, size int64) ([]byte, error) {
	var h = sha512.New384()

	if n, err := io.Copy(h, r); err != nil {
		return nil, err
	} else if n != size {
		return nil, fmt.Errorf("payload size mismatch (read %d bytes; expected %d)", n, size)
	}
	return deepHashTagged(size, h.Sum(nil)), nil
}

func deepHashTagged(size int64, contentHash []byte) []byte {
	var tag = sha384([]byte("blob" + strconv.FormatInt(size, 10)))
	return sha384(tag, contentHash)
}

func sha384(parts ...[]byte) []byte {
	var h = sha512.New384()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	return h.Sum(nil)
}
