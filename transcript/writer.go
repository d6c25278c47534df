// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/quarterdeck-systems/quarterdeck/lib/clock"
	"github.com/quarterdeck-systems/quarterdeck/lib/codec"
)

// Writer appends records to a transcript stream. Not safe for
// concurrent use; the attach loop owns it exclusively.
type Writer struct {
	compressor *zstd.Encoder
	hasher     *blake3.Hasher
	clk        clock.Clock
	started    time.Time
	closed     bool
}

// NewWriter writes the transcript header to sink and returns a Writer
// ready for records. The caller must Close the writer to produce a
// verifiable transcript; an unclosed stream reads back as truncated.
func NewWriter(sink io.Writer, meta Meta, clk clock.Clock) (*Writer, error) {
	if meta.StartedAt.IsZero() {
		meta.StartedAt = clk.Now()
	}

	metaBytes, err := codec.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode transcript meta: %w", err)
	}

	header := make([]byte, 0, 5+binary.MaxVarintLen64+len(metaBytes))
	header = append(header, Magic[:]...)
	header = append(header, Version)
	header = binary.AppendUvarint(header, uint64(len(metaBytes)))
	header = append(header, metaBytes...)
	if _, err := sink.Write(header); err != nil {
		return nil, fmt.Errorf("write transcript header: %w", err)
	}

	compressor, err := zstd.NewWriter(sink, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("initialize transcript compressor: %w", err)
	}

	return &Writer{
		compressor: compressor,
		hasher:     newDigestHasher(),
		clk:        clk,
		started:    meta.StartedAt,
	}, nil
}

// Create opens (or truncates) a transcript file at path, creating
// parent directories as needed. Close the returned file after closing
// the writer.
func Create(path string, meta Meta, clk clock.Clock) (*Writer, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create transcript directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create transcript file: %w", err)
	}
	writer, err := NewWriter(file, meta, clk)
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return writer, file, nil
}

// RecordOutput appends runner output bytes.
func (w *Writer) RecordOutput(data []byte) error {
	return w.append(Record{Kind: KindOutput, Data: data})
}

// RecordInput appends an operator input line.
func (w *Writer) RecordInput(data []byte) error {
	return w.append(Record{Kind: KindInput, Data: data})
}

// RecordResize appends a display dimension change.
func (w *Writer) RecordResize(columns, rows int) error {
	return w.append(Record{Kind: KindResize, Columns: columns, Rows: rows})
}

func (w *Writer) append(record Record) error {
	if w.closed {
		return errors.New("transcript writer is closed")
	}
	record.Elapsed = w.clk.Now().Sub(w.started)

	encoded, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode transcript record: %w", err)
	}
	w.hasher.Write(encoded)
	return w.writeFramed(encoded)
}

// Close appends the trailer record, flushes the compressor, and
// finalizes the stream. Idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	trailer := Record{
		Kind:    KindTrailer,
		Elapsed: w.clk.Now().Sub(w.started),
		Digest:  w.hasher.Sum(nil),
	}
	encoded, err := codec.Marshal(trailer)
	if err != nil {
		return fmt.Errorf("encode transcript trailer: %w", err)
	}
	if err := w.writeFramed(encoded); err != nil {
		return err
	}
	if err := w.compressor.Close(); err != nil {
		return fmt.Errorf("finalize transcript stream: %w", err)
	}
	return nil
}

func (w *Writer) writeFramed(encoded []byte) error {
	var length [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(length[:], uint64(len(encoded)))
	if _, err := w.compressor.Write(length[:n]); err != nil {
		return fmt.Errorf("write transcript record: %w", err)
	}
	if _, err := w.compressor.Write(encoded); err != nil {
		return fmt.Errorf("write transcript record: %w", err)
	}
	return nil
}
