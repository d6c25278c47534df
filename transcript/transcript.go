// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcript reads and writes terminal session transcripts.
//
// A transcript file is an uncompressed header followed by a zstd
// stream of CBOR records:
//
//	magic "QDTR" | version byte | uvarint length | CBOR Meta
//	zstd( [uvarint length | CBOR Record]... )
//
// The last record in every well-formed transcript is a trailer
// carrying the BLAKE3 digest of all preceding record bytes
// (uncompressed, in stream order). Readers verify the digest; a
// stream that ends without a trailer was truncated.
package transcript

import (
	"time"

	"github.com/zeebo/blake3"
)

// Magic identifies a transcript file. The first four bytes on disk.
var Magic = [4]byte{'Q', 'D', 'T', 'R'}

// Version is the current transcript format version. Readers reject
// versions they do not know; the format carries no compatibility
// negotiation beyond this byte.
const Version = 1

// Meta describes the session a transcript captures. Written once in
// the file header, before any records.
type Meta struct {
	// RunnerID is the runner the session was attached to.
	RunnerID int64 `cbor:"runner_id"`

	// Image is the VM image the runner was launched from, when known.
	Image string `cbor:"image,omitempty"`

	// StartedAt is the wall-clock start of the recording. Record
	// timestamps are offsets from this instant.
	StartedAt time.Time `cbor:"started_at"`

	// Columns and Rows are the display size at recording start. Zero
	// when the size was not yet known.
	Columns int `cbor:"columns,omitempty"`
	Rows    int `cbor:"rows,omitempty"`
}

// Kind discriminates transcript records. The values are format
// constants — changing them breaks existing transcripts.
type Kind uint8

const (
	// KindOutput is bytes the runner sent to the display, ANSI
	// sequences included.
	KindOutput Kind = 1

	// KindInput is bytes the operator sent to the runner. Input is
	// recorded at line granularity, after local editing.
	KindInput Kind = 2

	// KindResize is a display dimension change.
	KindResize Kind = 3

	// KindTrailer terminates the stream and carries the integrity
	// digest. Always the last record.
	KindTrailer Kind = 15
)

// Record is one transcript event.
type Record struct {
	Kind Kind `cbor:"kind"`

	// Elapsed is the offset from Meta.StartedAt.
	Elapsed time.Duration `cbor:"elapsed,omitempty"`

	// Data is the payload for output and input records.
	Data []byte `cbor:"data,omitempty"`

	// Columns and Rows are set on resize records.
	Columns int `cbor:"columns,omitempty"`
	Rows    int `cbor:"rows,omitempty"`

	// Digest is the 32-byte BLAKE3 digest on the trailer record.
	Digest []byte `cbor:"digest,omitempty"`
}

// recordDigestKey is the BLAKE3 keyed-hash domain for transcript
// record digests: the ASCII domain name zero-padded to 32 bytes, so
// the key is inspectable in hex dumps. A fixed format constant.
var recordDigestKey = [32]byte{
	'q', 'u', 'a', 'r', 't', 'e', 'r', 'd', 'e', 'c', 'k', '.',
	't', 'r', 'a', 'n', 's', 'c', 'r', 'i', 'p', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func newDigestHasher() *blake3.Hasher {
	hasher, err := blake3.NewKeyed(recordDigestKey[:])
	if err != nil {
		// NewKeyed fails only on wrong key length, which the fixed
		// array rules out.
		panic("transcript: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}
