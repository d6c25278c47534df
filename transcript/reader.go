// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/quarterdeck-systems/quarterdeck/lib/codec"
)

// maxRecordSize bounds a single record frame. Output records are
// written per read-loop frame, far below this; the limit keeps a
// corrupt length prefix from driving a giant allocation.
const maxRecordSize = 16 << 20

// ErrTruncated reports a transcript whose stream ended before the
// trailer record: the recording process died mid-write or the file
// was cut short.
var ErrTruncated = errors.New("transcript truncated before trailer")

// ErrDigestMismatch reports a trailer digest that does not match the
// records read. The transcript was corrupted or tampered with.
var ErrDigestMismatch = errors.New("transcript digest mismatch")

// Reader iterates the records of a transcript stream, verifying the
// trailer digest as it goes.
type Reader struct {
	meta         Meta
	decompressor *zstd.Decoder
	frames       *bufio.Reader
	hasher       *blake3.Hasher
	finished     bool
}

// NewReader parses the transcript header from source and positions
// the reader at the first record.
func NewReader(source io.Reader) (*Reader, error) {
	buffered := bufio.NewReader(source)

	var magic [4]byte
	if _, err := io.ReadFull(buffered, magic[:]); err != nil {
		return nil, fmt.Errorf("read transcript magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("not a transcript file (magic %q)", magic[:])
	}
	version, err := buffered.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read transcript version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported transcript version %d", version)
	}

	metaLength, err := binary.ReadUvarint(buffered)
	if err != nil {
		return nil, fmt.Errorf("read transcript meta length: %w", err)
	}
	if metaLength > maxRecordSize {
		return nil, fmt.Errorf("transcript meta length %d exceeds limit", metaLength)
	}
	metaBytes := make([]byte, metaLength)
	if _, err := io.ReadFull(buffered, metaBytes); err != nil {
		return nil, fmt.Errorf("read transcript meta: %w", err)
	}
	var meta Meta
	if err := codec.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("decode transcript meta: %w", err)
	}

	decompressor, err := zstd.NewReader(buffered)
	if err != nil {
		return nil, fmt.Errorf("initialize transcript decompressor: %w", err)
	}

	return &Reader{
		meta:         meta,
		decompressor: decompressor,
		frames:       bufio.NewReader(decompressor),
		hasher:       newDigestHasher(),
	}, nil
}

// Meta returns the header metadata.
func (r *Reader) Meta() Meta {
	return r.meta
}

// Next returns the next record. It returns io.EOF after a verified
// trailer; the trailer itself is not surfaced. A stream ending
// without a trailer returns ErrTruncated, and a bad trailer digest
// returns ErrDigestMismatch.
func (r *Reader) Next() (Record, error) {
	if r.finished {
		return Record{}, io.EOF
	}

	length, err := binary.ReadUvarint(r.frames)
	if err != nil {
		r.finish()
		if err == io.EOF {
			return Record{}, ErrTruncated
		}
		return Record{}, fmt.Errorf("read transcript record length: %w", err)
	}
	if length > maxRecordSize {
		r.finish()
		return Record{}, fmt.Errorf("transcript record length %d exceeds limit", length)
	}

	encoded := make([]byte, length)
	if _, err := io.ReadFull(r.frames, encoded); err != nil {
		r.finish()
		return Record{}, ErrTruncated
	}

	var record Record
	if err := codec.Unmarshal(encoded, &record); err != nil {
		r.finish()
		return Record{}, fmt.Errorf("decode transcript record: %w", err)
	}

	if record.Kind == KindTrailer {
		expected := r.hasher.Sum(nil)
		r.finish()
		if !bytes.Equal(record.Digest, expected) {
			return Record{}, ErrDigestMismatch
		}
		return Record{}, io.EOF
	}

	r.hasher.Write(encoded)
	return record, nil
}

func (r *Reader) finish() {
	if r.finished {
		return
	}
	r.finished = true
	r.decompressor.Close()
}

// ReadAll collects every record of a transcript, verifying the
// trailer. Convenience for exports and tests.
func ReadAll(source io.Reader) (Meta, []Record, error) {
	reader, err := NewReader(source)
	if err != nil {
		return Meta{}, nil, err
	}
	var records []Record
	for {
		record, err := reader.Next()
		if err == io.EOF {
			return reader.Meta(), records, nil
		}
		if err != nil {
			return reader.Meta(), records, err
		}
		records = append(records, record)
	}
}
